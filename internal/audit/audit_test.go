package audit

import (
	"path/filepath"
	"testing"

	"github.com/urlsfyi/urls/internal/store"
)

func setupAuditDB(t *testing.T) {
	t.Helper()
	db, err := store.Open(filepath.Join(t.TempDir(), "audit.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := Init(db); err != nil {
		t.Fatalf("Init: %v", err)
	}
}

func TestRecordAndRecent(t *testing.T) {
	setupAuditDB(t)

	if err := Success(Event{
		RequestID: "req-1",
		UserEmail: "mod@urls.fyi",
		RemoteIP:  "10.0.0.1",
		UserAgent: "test",
		Action:    "login.claim",
		Resource:  "mod@urls.fyi",
	}); err != nil {
		t.Fatalf("Success: %v", err)
	}
	if err := Failure(Event{
		RequestID: "req-2",
		Action:    "role.grant",
		Resource:  "someone:MODERATOR",
	}, "missing modify_user_roles"); err != nil {
		t.Fatalf("Failure: %v", err)
	}

	events, err := Recent(10)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("got %d events, want 2", len(events))
	}

	// Newest first: the failure was recorded last.
	if events[0].Action != "role.grant" || events[0].Result != "failure" {
		t.Fatalf("unexpected first event: %+v", events[0])
	}
	if events[0].Details != "missing modify_user_roles" {
		t.Fatalf("Details = %q", events[0].Details)
	}
	if events[1].Action != "login.claim" || events[1].Result != "success" {
		t.Fatalf("unexpected second event: %+v", events[1])
	}
	if events[1].RequestID != "req-1" || events[1].UserEmail != "mod@urls.fyi" {
		t.Fatalf("request fields not persisted: %+v", events[1])
	}
}

func TestCleanupKeepsRecentEvents(t *testing.T) {
	setupAuditDB(t)

	if err := Record(Event{Action: "login.request", Result: "success"}); err != nil {
		t.Fatalf("Record: %v", err)
	}
	if err := Cleanup(30); err != nil {
		t.Fatalf("Cleanup: %v", err)
	}

	events, err := Recent(10)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("got %d events after cleanup, want 1", len(events))
	}
}
