package transcript

import (
	"testing"
	"time"

	"github.com/zenithu-s/book-downloader/internal/config"
	"github.com/zenithu-s/book-downloader/internal/testutil"
)

func TestParseWhisperJSON(t *testing.T) {
	data := []byte(`{
		"text": " Call me Ishmael. Some years ago.",
		"segments": [
			{"id": 0, "start": 0.0, "end": 2.4, "text": " Call me Ishmael."},
			{"id": 1, "start": 2.4, "end": 5.1, "text": " Some years ago."},
			{"id": 2, "start": 5.1, "end": 5.2, "text": "   "}
		],
		"language": "en"
	}`)

	segments, err := parseWhisperJSON(data)
	if err != nil {
		t.Fatalf("parseWhisperJSON() error = %v", err)
	}
	if len(segments) != 2 {
		t.Fatalf("segments = %d, want 2 (blank segment dropped)", len(segments))
	}

	if segments[0].Text != "Call me Ishmael." {
		t.Errorf("segments[0].Text = %q", segments[0].Text)
	}
	if segments[0].End != 2400*time.Millisecond {
		t.Errorf("segments[0].End = %v, want 2.4s", segments[0].End)
	}
	if segments[1].Start != 2400*time.Millisecond {
		t.Errorf("segments[1].Start = %v, want 2.4s", segments[1].Start)
	}
}

func TestParseWhisperJSONFlatTextOnly(t *testing.T) {
	segments, err := parseWhisperJSON([]byte(`{"text": " The whole transcript as one blob. "}`))
	if err != nil {
		t.Fatalf("parseWhisperJSON() error = %v", err)
	}
	if len(segments) != 1 {
		t.Fatalf("segments = %d, want 1", len(segments))
	}
	if segments[0].Text != "The whole transcript as one blob." {
		t.Errorf("segments[0].Text = %q", segments[0].Text)
	}
	if segments[0].Timed() {
		t.Error("flat-text segment reports timestamps")
	}
}

func TestParseWhisperJSONEmpty(t *testing.T) {
	segments, err := parseWhisperJSON([]byte(`{"text": "", "segments": []}`))
	if err != nil {
		t.Fatalf("parseWhisperJSON() error = %v", err)
	}
	if len(segments) != 0 {
		t.Errorf("segments = %d, want 0", len(segments))
	}
}

func TestParseWhisperJSONInvalid(t *testing.T) {
	if _, err := parseWhisperJSON([]byte(`{not json`)); err == nil {
		t.Fatal("parseWhisperJSON() error = nil, want parse failure")
	}
}

func TestWhisperCLIAvailability(t *testing.T) {
	if (&WhisperCLI{}).Available() {
		t.Error("provider without binary reports available")
	}
	if !(&WhisperCLI{binary: "/usr/bin/whisper"}).Available() {
		t.Error("provider with binary reports unavailable")
	}
}

func TestNewWhisperCLIHonorsExplicitPath(t *testing.T) {
	dir := t.TempDir()
	bin := testutil.WriteFile(t, dir, "whisper", "#!/bin/sh\n")

	w := NewWhisperCLI(config.TranscribeConfig{
		WhisperPath: bin,
		Model:       "small",
		Timeout:     time.Minute,
	}, testutil.NopLogger())

	if !w.Available() {
		t.Error("Available() = false with explicit binary path")
	}
	if w.binary != bin {
		t.Errorf("binary = %q, want %q", w.binary, bin)
	}
}
