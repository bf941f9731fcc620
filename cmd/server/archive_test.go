package main

import "testing"

func TestOpenArchiveMirrorFromEnv(t *testing.T) {
	t.Setenv("NM_ARCHIVE_ENDPOINT", "")
	m, err := openArchiveMirror(t.TempDir(), "w", nil)
	if m != nil || err != nil {
		t.Fatalf("unset endpoint: %v %v", m, err)
	}

	t.Setenv("NM_ARCHIVE_ENDPOINT", "storage.example.com")
	t.Setenv("NM_ARCHIVE_BUCKET", "telemetry")
	if _, err := openArchiveMirror(t.TempDir(), "w", nil); err == nil {
		t.Fatalf("missing credentials accepted")
	}

	t.Setenv("NM_ARCHIVE_ACCESS_KEY_ID", "id")
	t.Setenv("NM_ARCHIVE_SECRET_ACCESS_KEY", "secret")
	m, err = openArchiveMirror(t.TempDir(), "w", nil)
	if err != nil || m == nil {
		t.Fatalf("configured mirror: %v %v", m, err)
	}
	m.Close()
}
