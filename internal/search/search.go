// Package search defines the search-index collaborator contract. The real
// full-text search engine is out of this module's scope; this package
// ships a no-op in-memory implementation sufficient for the URL submission
// guard's cascade-delete step to run standalone.
package search

import (
	"context"
	"sync"

	"github.com/urlsfyi/urls/internal/tid"
)

// Index is notified whenever a Url is created or removed.
type Index interface {
	Upsert(ctx context.Context, id tid.URLID, title, description string) error
	Delete(ctx context.Context, id tid.URLID) error
}

// Noop discards every call. It is the default Index for standalone runs
// and tests.
type Noop struct{}

func (Noop) Upsert(context.Context, tid.URLID, string, string) error { return nil }
func (Noop) Delete(context.Context, tid.URLID) error                 { return nil }

// Memory is a trivial in-process index, useful for tests that want to
// assert a document was (or was not) indexed without a real search engine.
type Memory struct {
	mu   sync.Mutex
	docs map[string]string
}

func NewMemory() *Memory { return &Memory{docs: make(map[string]string)} }

func (m *Memory) Upsert(_ context.Context, id tid.URLID, title, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.docs[id.String()] = title
	return nil
}

func (m *Memory) Delete(_ context.Context, id tid.URLID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.docs, id.String())
	return nil
}

func (m *Memory) Has(id tid.URLID) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.docs[id.String()]
	return ok
}
