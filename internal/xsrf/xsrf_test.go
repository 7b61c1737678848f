package xsrf

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestNewProducesDistinctTokens(t *testing.T) {
	a, err := New()
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	b, err := New()
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if a == b {
		t.Fatalf("expected distinct tokens")
	}
}

func TestCheckConstantTime(t *testing.T) {
	tok, _ := New()
	if !Check(tok, tok) {
		t.Fatalf("expected matching tokens to pass")
	}
	if Check(tok, "") {
		t.Fatalf("empty token should never match")
	}
	if Check("", tok) {
		t.Fatalf("empty expected should never match")
	}
	if Check(tok, tok+"x") {
		t.Fatalf("mismatched tokens should fail")
	}
}

func TestCheckRequestHeader(t *testing.T) {
	tok, _ := New()
	req := httptest.NewRequest(http.MethodPost, "/", nil)
	req.Header.Set(HeaderName, tok)

	if !CheckRequest(req, tok) {
		t.Fatalf("expected header token to validate")
	}
}

func TestFromRequestReadsCookie(t *testing.T) {
	tok, _ := New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: CookieName, Value: tok})

	if got := FromRequest(req); got != tok {
		t.Fatalf("expected %q, got %q", tok, got)
	}
}
