package logging

import "testing"

func TestNewFormats(t *testing.T) {
	for _, f := range []string{"", "console", "json", "JSON"} {
		l, err := New(Config{Level: "debug", Format: f})
		if err != nil {
			t.Fatalf("format %q: %v", f, err)
		}
		if !l.Core().Enabled(-1) {
			t.Fatalf("format %q: debug not enabled", f)
		}
	}
}

func TestNewRejectsBadConfig(t *testing.T) {
	if _, err := New(Config{Level: "loud"}); err == nil {
		t.Fatalf("bad level accepted")
	}
	if _, err := New(Config{Format: "xml"}); err == nil {
		t.Fatalf("bad format accepted")
	}
}

func TestNamedNil(t *testing.T) {
	Named(nil, "x").Info("dropped")
}
