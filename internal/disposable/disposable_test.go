package disposable

import "testing"

func TestIsDisposable(t *testing.T) {
	if !Default.IsDisposable("foo@mailinator.com") {
		t.Errorf("expected mailinator.com to be disposable")
	}
	if Default.IsDisposable("foo@urls.fyi") {
		t.Errorf("expected urls.fyi to not be disposable")
	}
}

func TestNormalizeGmailDots(t *testing.T) {
	if got := Normalize("F.O.O@Gmail.com"); got != "foo@gmail.com" {
		t.Errorf("expected foo@gmail.com, got %q", got)
	}
	if got := Normalize("f.o.o@example.com"); got != "f.o.o@example.com" {
		t.Errorf("non-gmail dots should be preserved, got %q", got)
	}
}
