package urls

import "testing"

func TestCanonicalizeStripsTrackingParams(t *testing.T) {
	got, err := Canonicalize("https://urls.fyi/?utm_source=google&utm_campaign=test&allowed&other=test")
	if err != nil {
		t.Fatalf("Canonicalize: %v", err)
	}
	want := "https://urls.fyi/?allowed&other=test"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestCanonicalizeYoutubeStripsT(t *testing.T) {
	got, err := Canonicalize("https://youtu.be/YYY?t=200")
	if err != nil {
		t.Fatalf("Canonicalize: %v", err)
	}
	want := "https://youtu.be/YYY"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestCanonicalizeTwitterStripsS(t *testing.T) {
	got, err := Canonicalize("https://twitter.com/user/status/123?s=20")
	if err != nil {
		t.Fatalf("Canonicalize: %v", err)
	}
	want := "https://twitter.com/user/status/123"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestCanonicalizeBareEmptyValuedKeyPreserved(t *testing.T) {
	got, err := Canonicalize("https://urls.fyi/no-proto?other_test=&utm_medium=cpc&utm_content=text")
	if err != nil {
		t.Fatalf("Canonicalize: %v", err)
	}
	want := "https://urls.fyi/no-proto?other_test"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestCanonicalizeForcesHTTPSScheme(t *testing.T) {
	got, err := Canonicalize("urls.fyi/path")
	if err != nil {
		t.Fatalf("Canonicalize: %v", err)
	}
	if got[:8] != "https://" {
		t.Errorf("expected https scheme, got %q", got)
	}
}

func TestCanonicalizeIdempotent(t *testing.T) {
	inputs := []string{
		"https://urls.fyi/?utm_source=google&utm_campaign=test&allowed&other=test",
		"https://youtu.be/YYY?t=200",
		"https://twitter.com/user/status/123?s=20",
		"https://urls.fyi/no-proto?other_test=&utm_medium=cpc&utm_content=text",
	}
	for _, in := range inputs {
		once, err := Canonicalize(in)
		if err != nil {
			t.Fatalf("Canonicalize(%q): %v", in, err)
		}
		twice, err := Canonicalize(once)
		if err != nil {
			t.Fatalf("Canonicalize(%q) second pass: %v", once, err)
		}
		if once != twice {
			t.Errorf("not idempotent: %q -> %q -> %q", in, once, twice)
		}
	}
}

func TestCanonicalizeRejectsNoHost(t *testing.T) {
	if _, err := Canonicalize("not a url at all ://"); err == nil {
		t.Errorf("expected an error for a url with no host")
	}
}
