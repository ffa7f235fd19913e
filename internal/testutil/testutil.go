// Package testutil provides shared helpers for package tests.
package testutil

import (
	"archive/zip"
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
)

// NewTestLogger creates a test logger that outputs to t.Log.
func NewTestLogger(t *testing.T) zerolog.Logger {
	t.Helper()
	return zerolog.New(zerolog.NewTestWriter(t)).Level(zerolog.DebugLevel)
}

// NopLogger returns a no-op logger for tests that don't need output.
func NopLogger() zerolog.Logger {
	return zerolog.Nop()
}

// WriteFile writes data to name under dir, creating parents, and
// fails the test on error. Returns the full path.
func WriteFile(t *testing.T, dir, name, data string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("Failed to create dir for %s: %v", name, err)
	}
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatalf("Failed to write %s: %v", name, err)
	}
	return path
}

// WriteZip writes a ZIP archive built from the files map (archive path
// → content) to name under dir and returns the full path. Entries are
// written in map order except "mimetype", which goes first when present
// so the archive doubles as a structurally valid EPUB.
func WriteZip(t *testing.T, dir, name string, files map[string]string) string {
	t.Helper()

	buf := new(bytes.Buffer)
	zw := zip.NewWriter(buf)

	writeEntry := func(entry, content string) {
		fw, err := zw.Create(entry)
		if err != nil {
			t.Fatalf("Failed to create zip entry %s: %v", entry, err)
		}
		if _, err := io.WriteString(fw, content); err != nil {
			t.Fatalf("Failed to write zip entry %s: %v", entry, err)
		}
	}

	if mt, ok := files["mimetype"]; ok {
		writeEntry("mimetype", mt)
	}
	for entry, content := range files {
		if entry == "mimetype" {
			continue
		}
		writeEntry(entry, content)
	}

	if err := zw.Close(); err != nil {
		t.Fatalf("Failed to close zip writer: %v", err)
	}

	return WriteFile(t, dir, name, buf.String())
}
