package transcript

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog"

	"github.com/zenithu-s/book-downloader/internal/book"
	"github.com/zenithu-s/book-downloader/internal/pdfgen"
)

// State names the builder's position in the audiobook flow.
type State string

const (
	StateIdle               State = "idle"
	StateTranscriptResolved State = "transcript-resolved"
	StateDocumentRendered   State = "document-rendered"
	StateFailed             State = "failed"
)

// Request carries one audiobook-to-PDF job.
type Request struct {
	TranscriptPath string
	AudioPath      string
	UseWhisper     bool
	Title          string
	Author         string
}

// Builder resolves a transcript and renders it as a PDF document.
type Builder struct {
	provider Provider
	renderer *pdfgen.Renderer
	state    State
	logger   zerolog.Logger
}

// NewBuilder creates a transcript builder. The provider may be nil
// when transcription is not configured.
func NewBuilder(provider Provider, logger zerolog.Logger) *Builder {
	return &Builder{
		provider: provider,
		renderer: pdfgen.NewRenderer(logger),
		state:    StateIdle,
		logger:   logger.With().Str("component", "transcript").Logger(),
	}
}

// State reports where the last Build run ended.
func (b *Builder) State() State { return b.state }

// Build resolves the transcript for the request, renders it, and
// writes the PDF to outputPath. Segment order in the rendered document
// is the transcript's own order.
func (b *Builder) Build(ctx context.Context, req Request, outputPath string) (book.Transcript, error) {
	b.state = StateIdle

	transcript, err := b.resolve(ctx, req)
	if err != nil {
		b.transition(StateFailed)
		return book.Transcript{}, err
	}
	b.transition(StateTranscriptResolved)
	b.logger.Info().
		Int("segments", len(transcript.Segments)).
		Str("source", string(transcript.Source)).
		Msg("Transcript resolved")

	doc := pdfgen.Document{
		Title:      req.Title,
		Author:     req.Author,
		Paragraphs: segmentParagraphs(transcript.Segments),
	}
	if err := b.renderer.Render(doc, outputPath); err != nil {
		b.transition(StateFailed)
		return book.Transcript{}, fmt.Errorf("failed to render transcript document: %w", err)
	}
	b.transition(StateDocumentRendered)

	return transcript, nil
}

// resolve picks the transcript source: an existing transcript file
// wins; otherwise audio is transcribed when that was explicitly
// enabled and a provider is installed.
func (b *Builder) resolve(ctx context.Context, req Request) (book.Transcript, error) {
	if req.TranscriptPath != "" {
		if _, err := os.Stat(req.TranscriptPath); err == nil {
			b.logger.Info().Str("path", req.TranscriptPath).Msg("Using existing transcript")
			return ParseFile(req.TranscriptPath)
		}
		b.logger.Warn().
			Str("path", req.TranscriptPath).
			Msg("Transcript file not found, falling back to audio")
	}

	if req.AudioPath != "" {
		if !req.UseWhisper {
			return book.Transcript{}, fmt.Errorf("%w: transcription not enabled for audio input", book.ErrTranscriptionUnavailable)
		}
		if b.provider == nil || !b.provider.Available() {
			return book.Transcript{}, fmt.Errorf("%w: whisper binary not found", book.ErrTranscriptionUnavailable)
		}
		if _, err := os.Stat(req.AudioPath); err != nil {
			return book.Transcript{}, fmt.Errorf("%w: audio file missing: %v", book.ErrNoTranscriptSource, err)
		}

		segments, err := b.provider.Transcribe(ctx, req.AudioPath)
		if err != nil {
			return book.Transcript{}, fmt.Errorf("transcription failed: %w", err)
		}
		return book.Transcript{Segments: segments, Source: book.TranscriptFromAudio}, nil
	}

	return book.Transcript{}, book.ErrNoTranscriptSource
}

func (b *Builder) transition(next State) {
	b.logger.Debug().
		Str("from", string(b.state)).
		Str("to", string(next)).
		Msg("State transition")
	b.state = next
}

func segmentParagraphs(segments []book.Segment) []string {
	paragraphs := make([]string, 0, len(segments))
	for _, s := range segments {
		paragraphs = append(paragraphs, s.Text)
	}
	return paragraphs
}
