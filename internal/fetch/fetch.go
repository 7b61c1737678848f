// Package fetch defines the external HTTP collaborator the URL submission
// guard uses to probe a submitted URL before persisting it.
package fetch

import (
	"context"
	"io"
	"net"
	"net/http"
	"time"
)

// Result is the minimal response shape the submission guard needs.
type Result struct {
	StatusCode int
	Body       io.ReadCloser
}

// Client fetches a URL. Implementations must honour the connect=5s,
// total=60s timeouts from the concurrency model.
type Client interface {
	Get(ctx context.Context, url string) (*Result, error)
}

// HTTPClient is the production Client, built on net/http.
type HTTPClient struct {
	client *http.Client
}

// NewHTTPClient builds an HTTPClient with a 5s connect timeout and a 60s
// total request timeout.
func NewHTTPClient() *HTTPClient {
	dialer := &net.Dialer{Timeout: 5 * time.Second}
	transport := &http.Transport{
		DialContext: dialer.DialContext,
	}
	return &HTTPClient{
		client: &http.Client{
			Transport: transport,
			Timeout:   60 * time.Second,
		},
	}
}

func (h *HTTPClient) Get(ctx context.Context, url string) (*Result, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := h.client.Do(req)
	if err != nil {
		return nil, err
	}
	return &Result{StatusCode: resp.StatusCode, Body: resp.Body}, nil
}
