package transcript

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/zenithu-s/book-downloader/internal/book"
	"github.com/zenithu-s/book-downloader/internal/testutil"
)

type fakeProvider struct {
	available bool
	segments  []book.Segment
	err       error
	calls     int
}

func (f *fakeProvider) Available() bool { return f.available }

func (f *fakeProvider) Transcribe(_ context.Context, _ string) ([]book.Segment, error) {
	f.calls++
	return f.segments, f.err
}

func assertPDF(t *testing.T, path string) {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read rendered document: %v", err)
	}
	if !bytes.HasPrefix(data, []byte("%PDF-")) {
		t.Error("rendered document missing PDF header")
	}
}

func TestBuildFromTranscriptFile(t *testing.T) {
	dir := t.TempDir()
	path := testutil.WriteFile(t, dir, "story.txt",
		"Opening paragraph.\n\nMiddle paragraph.\n\nClosing paragraph.")
	out := filepath.Join(dir, "out.pdf")

	provider := &fakeProvider{available: true}
	b := NewBuilder(provider, testutil.NewTestLogger(t))

	tr, err := b.Build(context.Background(), Request{
		TranscriptPath: path,
		AudioPath:      filepath.Join(dir, "unused.mp3"),
		UseWhisper:     true,
		Title:          "A Story",
		Author:         "Jane Tester",
	}, out)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	if provider.calls != 0 {
		t.Errorf("provider calls = %d, want 0 (transcript file takes precedence)", provider.calls)
	}
	if tr.Source != book.TranscriptFromFile {
		t.Errorf("Source = %q, want %q", tr.Source, book.TranscriptFromFile)
	}
	want := []string{"Opening paragraph.", "Middle paragraph.", "Closing paragraph."}
	if len(tr.Segments) != len(want) {
		t.Fatalf("len(Segments) = %d, want %d", len(tr.Segments), len(want))
	}
	for i, text := range want {
		if tr.Segments[i].Text != text {
			t.Errorf("Segments[%d].Text = %q, want %q", i, tr.Segments[i].Text, text)
		}
	}
	if b.State() != StateDocumentRendered {
		t.Errorf("State() = %q, want %q", b.State(), StateDocumentRendered)
	}
	assertPDF(t, out)
}

func TestBuildTranscribesAudio(t *testing.T) {
	dir := t.TempDir()
	audio := testutil.WriteFile(t, dir, "book.mp3", "fake audio bytes")
	out := filepath.Join(dir, "out.pdf")

	provider := &fakeProvider{
		available: true,
		segments: []book.Segment{
			{Text: "Segment one."},
			{Text: "Segment two."},
			{Text: "Segment three."},
		},
	}
	b := NewBuilder(provider, testutil.NewTestLogger(t))

	tr, err := b.Build(context.Background(), Request{
		AudioPath:  audio,
		UseWhisper: true,
		Title:      "An Audiobook",
	}, out)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	if provider.calls != 1 {
		t.Errorf("provider calls = %d, want 1", provider.calls)
	}
	if tr.Source != book.TranscriptFromAudio {
		t.Errorf("Source = %q, want %q", tr.Source, book.TranscriptFromAudio)
	}

	// Segment order must survive untouched.
	for i, want := range []string{"Segment one.", "Segment two.", "Segment three."} {
		if tr.Segments[i].Text != want {
			t.Errorf("Segments[%d].Text = %q, want %q", i, tr.Segments[i].Text, want)
		}
	}
	assertPDF(t, out)
}

func TestBuildAudioWithoutWhisperEnabled(t *testing.T) {
	dir := t.TempDir()
	audio := testutil.WriteFile(t, dir, "book.mp3", "fake audio bytes")

	provider := &fakeProvider{available: true}
	b := NewBuilder(provider, testutil.NewTestLogger(t))

	_, err := b.Build(context.Background(), Request{AudioPath: audio}, filepath.Join(dir, "out.pdf"))
	if !errors.Is(err, book.ErrTranscriptionUnavailable) {
		t.Fatalf("Build() error = %v, want ErrTranscriptionUnavailable", err)
	}
	if provider.calls != 0 {
		t.Errorf("provider calls = %d, want 0", provider.calls)
	}
	if b.State() != StateFailed {
		t.Errorf("State() = %q, want %q", b.State(), StateFailed)
	}
}

func TestBuildWhisperBinaryAbsent(t *testing.T) {
	dir := t.TempDir()
	audio := testutil.WriteFile(t, dir, "book.mp3", "fake audio bytes")

	b := NewBuilder(&fakeProvider{available: false}, testutil.NewTestLogger(t))

	_, err := b.Build(context.Background(), Request{
		AudioPath:  audio,
		UseWhisper: true,
	}, filepath.Join(dir, "out.pdf"))
	if !errors.Is(err, book.ErrTranscriptionUnavailable) {
		t.Fatalf("Build() error = %v, want ErrTranscriptionUnavailable", err)
	}
}

func TestBuildNilProvider(t *testing.T) {
	dir := t.TempDir()
	audio := testutil.WriteFile(t, dir, "book.mp3", "fake audio bytes")

	b := NewBuilder(nil, testutil.NewTestLogger(t))

	_, err := b.Build(context.Background(), Request{
		AudioPath:  audio,
		UseWhisper: true,
	}, filepath.Join(dir, "out.pdf"))
	if !errors.Is(err, book.ErrTranscriptionUnavailable) {
		t.Fatalf("Build() error = %v, want ErrTranscriptionUnavailable", err)
	}
}

func TestBuildNoSource(t *testing.T) {
	b := NewBuilder(&fakeProvider{available: true}, testutil.NewTestLogger(t))

	_, err := b.Build(context.Background(), Request{Title: "Nothing"}, filepath.Join(t.TempDir(), "out.pdf"))
	if !errors.Is(err, book.ErrNoTranscriptSource) {
		t.Fatalf("Build() error = %v, want ErrNoTranscriptSource", err)
	}
	if b.State() != StateFailed {
		t.Errorf("State() = %q, want %q", b.State(), StateFailed)
	}
}

func TestBuildMissingTranscriptFileFallsBackToAudio(t *testing.T) {
	dir := t.TempDir()
	audio := testutil.WriteFile(t, dir, "book.mp3", "fake audio bytes")

	provider := &fakeProvider{
		available: true,
		segments:  []book.Segment{{Text: "From audio."}},
	}
	b := NewBuilder(provider, testutil.NewTestLogger(t))

	tr, err := b.Build(context.Background(), Request{
		TranscriptPath: filepath.Join(dir, "no-such-transcript.txt"),
		AudioPath:      audio,
		UseWhisper:     true,
	}, filepath.Join(dir, "out.pdf"))
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if provider.calls != 1 {
		t.Errorf("provider calls = %d, want 1", provider.calls)
	}
	if tr.Source != book.TranscriptFromAudio {
		t.Errorf("Source = %q, want %q", tr.Source, book.TranscriptFromAudio)
	}
}

func TestBuildProviderFailure(t *testing.T) {
	dir := t.TempDir()
	audio := testutil.WriteFile(t, dir, "book.mp3", "fake audio bytes")

	provider := &fakeProvider{available: true, err: errors.New("model load failed")}
	b := NewBuilder(provider, testutil.NewTestLogger(t))

	_, err := b.Build(context.Background(), Request{
		AudioPath:  audio,
		UseWhisper: true,
	}, filepath.Join(dir, "out.pdf"))
	if err == nil {
		t.Fatal("Build() error = nil, want transcription failure")
	}
	if b.State() != StateFailed {
		t.Errorf("State() = %q, want %q", b.State(), StateFailed)
	}
}
