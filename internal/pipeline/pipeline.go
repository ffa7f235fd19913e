// Package pipeline wires every stage of a run: search and selection,
// download, conversion, transcript building, and output publishing.
package pipeline

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/zenithu-s/book-downloader/internal/book"
	"github.com/zenithu-s/book-downloader/internal/config"
	"github.com/zenithu-s/book-downloader/internal/convert"
	"github.com/zenithu-s/book-downloader/internal/download"
	"github.com/zenithu-s/book-downloader/internal/output"
	"github.com/zenithu-s/book-downloader/internal/source"
	"github.com/zenithu-s/book-downloader/internal/source/archive"
	"github.com/zenithu-s/book-downloader/internal/source/gutenberg"
	"github.com/zenithu-s/book-downloader/internal/source/standardebooks"
	"github.com/zenithu-s/book-downloader/internal/transcript"
)

// Request describes one pipeline invocation. Audiobook inputs switch
// the run into audiobook mode, where the search fields are ignored.
type Request struct {
	Title       string
	Author      string
	Sites       []string
	StandardURL string
	Convert     bool

	AudiobookTranscript string
	AudiobookAudio      string
	AudiobookTitle      string
	AudiobookAuthor     string
	UseWhisper          bool
}

// AudiobookMode reports whether the request carries audiobook inputs.
func (r Request) AudiobookMode() bool {
	return r.AudiobookTranscript != "" || r.AudiobookAudio != ""
}

// Validate rejects request shapes that cannot start a run.
func (r Request) Validate() error {
	if r.AudiobookMode() {
		return nil
	}

	if r.Title == "" && r.StandardURL == "" {
		return fmt.Errorf("%w: a title, a Standard Ebooks URL, or audiobook inputs are required", book.ErrInvalidInput)
	}
	for _, site := range r.Sites {
		if !book.IsKnownSource(book.Source(site)) {
			return fmt.Errorf("%w: unknown site %q", book.ErrInvalidInput, site)
		}
	}
	return nil
}

// Runner owns the wired pipeline stages for the process lifetime.
type Runner struct {
	search      *source.Service
	downloads   *download.Manager
	converter   *convert.Chain
	transcripts *transcript.Builder
	writer      *output.Writer
	logger      zerolog.Logger
}

// New wires all stages from configuration.
func New(cfg *config.Config, logger zerolog.Logger) *Runner {
	searchClient := &http.Client{Timeout: cfg.Sources.SearchTimeout}

	adapters := []source.Adapter{
		archive.New(cfg.Sources, searchClient, logger),
		gutenberg.New(cfg.Sources, searchClient, logger),
		standardebooks.New(searchClient, logger),
	}
	selector := source.NewSelector(cfg.Sources.Priority, logger)

	// Downloads manage their own per-attempt deadlines.
	downloadClient := &http.Client{}

	return &Runner{
		search:      source.NewService(adapters, selector, cfg.Sources.SearchTimeout, logger),
		downloads:   download.NewManager(cfg.Download, downloadClient, logger),
		converter:   convert.NewChain(cfg.Convert, logger),
		transcripts: transcript.NewBuilder(transcript.NewWhisperCLI(cfg.Transcribe, logger), logger),
		writer:      output.NewWriter(cfg.Output, logger),
		logger:      logger.With().Str("component", "pipeline").Logger(),
	}
}

// Run executes one request end to end and returns the published
// artifact.
func (r *Runner) Run(ctx context.Context, req Request) (book.OutputArtifact, error) {
	if err := req.Validate(); err != nil {
		return book.OutputArtifact{}, err
	}

	if req.AudiobookMode() {
		return r.runAudiobook(ctx, req)
	}

	query := book.SearchQuery{
		Title:       req.Title,
		Author:      req.Author,
		Sites:       toSources(req.Sites),
		StandardURL: req.StandardURL,
	}

	candidate, err := r.search.Find(ctx, query)
	if err != nil {
		return book.OutputArtifact{}, err
	}

	return r.RunCandidate(ctx, candidate, req.Convert)
}

// RunCandidate downloads a specific candidate, converting an EPUB
// result when asked, and publishes the artifact. PDF downloads are
// published as-is; the converter is never consulted for them.
func (r *Runner) RunCandidate(ctx context.Context, candidate book.Candidate, convertToPDF bool) (book.OutputArtifact, error) {
	runID := uuid.New().String()[:8]
	log := r.logger.With().Str("run", runID).Logger()

	scratch, cleanup, err := r.newRunDir(runID, log)
	if err != nil {
		return book.OutputArtifact{}, err
	}
	defer cleanup()

	result, err := r.downloads.Fetch(ctx, candidate, scratch)
	if err != nil {
		return book.OutputArtifact{}, err
	}

	stagedPath := result.Path
	format := result.Format

	if format == book.FormatEPUB && convertToPDF {
		converted := filepath.Join(scratch, "converted.pdf")
		attempts, err := r.converter.Convert(ctx, result.Path, converted)
		if err != nil {
			return book.OutputArtifact{}, err
		}
		log.Info().
			Str("converter", attempts[len(attempts)-1].Converter).
			Int("attempts", len(attempts)).
			Msg("EPUB converted to PDF")
		stagedPath = converted
		format = book.FormatPDF
	}

	name := output.ArtifactName(candidate.Title, candidate.Author, format)
	artifact, err := r.writer.Publish(stagedPath, name, candidate.Title, candidate.Author)
	if err != nil {
		return book.OutputArtifact{}, err
	}

	log.Info().
		Str("path", artifact.Path).
		Str("format", string(format)).
		Msg("Book ready")

	return artifact, nil
}

// runAudiobook renders a transcript (or transcribed audio) to PDF and
// publishes it.
func (r *Runner) runAudiobook(ctx context.Context, req Request) (book.OutputArtifact, error) {
	title := req.AudiobookTitle
	if title == "" {
		title = "audiobook"
	}

	runID := uuid.New().String()[:8]
	log := r.logger.With().Str("run", runID).Logger()

	scratch, cleanup, err := r.newRunDir(runID, log)
	if err != nil {
		return book.OutputArtifact{}, err
	}
	defer cleanup()

	staged := filepath.Join(scratch, "audiobook.pdf")
	transcriptResult, err := r.transcripts.Build(ctx, transcript.Request{
		TranscriptPath: req.AudiobookTranscript,
		AudioPath:      req.AudiobookAudio,
		UseWhisper:     req.UseWhisper,
		Title:          title,
		Author:         req.AudiobookAuthor,
	}, staged)
	if err != nil {
		return book.OutputArtifact{}, err
	}

	name := output.ArtifactName(title, req.AudiobookAuthor, book.FormatPDF)
	artifact, err := r.writer.Publish(staged, name, title, req.AudiobookAuthor)
	if err != nil {
		return book.OutputArtifact{}, err
	}

	log.Info().
		Str("path", artifact.Path).
		Int("segments", len(transcriptResult.Segments)).
		Str("source", string(transcriptResult.Source)).
		Msg("Audiobook PDF ready")

	return artifact, nil
}

// Search exposes the fan-out search for the web UI.
func (r *Runner) Search(ctx context.Context, query book.SearchQuery) (*source.Result, error) {
	return r.search.Search(ctx, query)
}

// OutputDir is where published artifacts land.
func (r *Runner) OutputDir() string {
	return r.writer.Dir()
}

// newRunDir creates the per-run scratch directory holding partial
// downloads and intermediate conversion outputs. The run ID names the
// directory so stray leftovers can be traced back through the logs.
func (r *Runner) newRunDir(runID string, log zerolog.Logger) (string, func(), error) {
	dir, err := os.MkdirTemp("", "bookdl-"+runID+"-")
	if err != nil {
		return "", nil, fmt.Errorf("failed to create scratch dir: %w", err)
	}

	log.Debug().Str("dir", dir).Msg("Scratch dir created")

	cleanup := func() {
		if err := os.RemoveAll(dir); err != nil {
			log.Warn().Err(err).Str("dir", dir).Msg("Failed to remove scratch dir")
		}
	}
	return dir, cleanup, nil
}

func toSources(names []string) []book.Source {
	sources := make([]book.Source, 0, len(names))
	for _, name := range names {
		sources = append(sources, book.Source(name))
	}
	return sources
}
