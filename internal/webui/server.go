// Package webui serves the local browser interface over the pipeline.
package webui

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	"github.com/zenithu-s/book-downloader/internal/book"
	"github.com/zenithu-s/book-downloader/internal/output"
	"github.com/zenithu-s/book-downloader/internal/pipeline"
	"github.com/zenithu-s/book-downloader/internal/source"
	"github.com/zenithu-s/book-downloader/web"
)

// Server hosts the single-user web UI over a wired pipeline.
type Server struct {
	echo   *echo.Echo
	runner *pipeline.Runner
	logger zerolog.Logger

	// runMu serializes pipeline runs. The UI is a single-user tool;
	// concurrent runs would contend for converter subprocesses.
	runMu sync.Mutex
}

// NewServer creates a new web UI server.
func NewServer(runner *pipeline.Runner, logger zerolog.Logger) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	s := &Server{
		echo:   e,
		runner: runner,
		logger: logger.With().Str("component", "webui").Logger(),
	}

	s.setupMiddleware()
	s.setupRoutes()

	return s
}

// setupMiddleware configures Echo middleware.
func (s *Server) setupMiddleware() {
	// Recovery middleware
	s.echo.Use(middleware.Recover())

	// Request ID
	s.echo.Use(middleware.RequestID())

	// Request logging
	s.echo.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogURI:      true,
		LogStatus:   true,
		LogLatency:  true,
		LogMethod:   true,
		LogError:    true,
		HandleError: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			if v.Error != nil {
				s.logger.Error().
					Str("method", v.Method).
					Str("uri", v.URI).
					Int("status", v.Status).
					Dur("latency", v.Latency).
					Err(v.Error).
					Msg("request error")
			} else {
				s.logger.Info().
					Str("method", v.Method).
					Str("uri", v.URI).
					Int("status", v.Status).
					Dur("latency", v.Latency).
					Msg("request")
			}
			return nil
		},
	}))
}

// setupRoutes configures routes.
func (s *Server) setupRoutes() {
	s.echo.GET("/health", s.healthCheck)

	api := s.echo.Group("/api")
	api.POST("/search", s.handleSearch)
	api.POST("/download", s.handleDownload)
	api.POST("/audiobook", s.handleAudiobook)

	s.echo.GET("/downloads/:filename", s.serveArtifact)

	s.registerFrontend()
}

// registerFrontend serves the embedded single-page UI for every path
// the API routes do not claim.
func (s *Server) registerFrontend() {
	staticFS, err := web.StaticFS()
	if err != nil {
		s.logger.Warn().Err(err).Msg("Embedded web UI unavailable")
		return
	}

	fileServer := http.FileServer(http.FS(staticFS))

	s.echo.GET("/*", func(c echo.Context) error {
		path := c.Request().URL.Path

		if strings.HasPrefix(path, "/api/") || strings.HasPrefix(path, "/downloads/") {
			return echo.ErrNotFound
		}

		if path != "/" {
			cleanPath := strings.TrimPrefix(path, "/")
			if file, err := staticFS.Open(cleanPath); err == nil {
				file.Close()
				fileServer.ServeHTTP(c.Response(), c.Request())
				return nil
			}
		}

		indexFile, err := staticFS.Open("index.html")
		if err != nil {
			return echo.ErrNotFound
		}
		defer indexFile.Close()

		return c.Stream(http.StatusOK, "text/html; charset=utf-8", indexFile)
	})
}

// Start begins listening for HTTP requests.
func (s *Server) Start(address string) error {
	s.logger.Info().Str("address", address).Msg("starting web UI server")
	return s.echo.Start(address)
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info().Msg("shutting down web UI server")
	return s.echo.Shutdown(ctx)
}

// --- Handler implementations ---

func (s *Server) healthCheck(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// searchRequest is the /api/search body.
type searchRequest struct {
	Title  string   `json:"title"`
	Author string   `json:"author"`
	Sites  []string `json:"sites"`
}

// searchResponse groups candidates the way the UI renders them: one
// list per source, plus the failure message of any source that errored.
type searchResponse struct {
	Results map[string][]book.Candidate `json:"results"`
	Errors  map[string]string           `json:"errors,omitempty"`
}

func (s *Server) handleSearch(c echo.Context) error {
	var input searchRequest
	if err := c.Bind(&input); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}

	if input.Title == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "title is required"})
	}
	for _, site := range input.Sites {
		if !book.IsKnownSource(book.Source(site)) {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": fmt.Sprintf("unknown site %q", site)})
		}
	}

	query := book.SearchQuery{
		Title:  input.Title,
		Author: input.Author,
		Sites:  toSources(input.Sites),
	}

	result, err := s.runner.Search(c.Request().Context(), query)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}

	return c.JSON(http.StatusOK, groupBySource(result))
}

// downloadRequest is the /api/download body. URL carries the locator
// of a concrete result the user picked from a search response; when it
// is absent the pipeline searches and selects on its own.
type downloadRequest struct {
	Source      string `json:"source"`
	Title       string `json:"title"`
	Author      string `json:"author"`
	URL         string `json:"url"`
	StandardURL string `json:"standard_url"`
	Convert     bool   `json:"convert"`
}

func (s *Server) handleDownload(c echo.Context) error {
	var input downloadRequest
	if err := c.Bind(&input); err != nil {
		return s.runError(c, fmt.Errorf("%w: invalid request body", book.ErrInvalidInput))
	}

	if input.URL == "" && input.Title == "" && input.StandardURL == "" {
		return s.runError(c, fmt.Errorf("%w: a result url, a title, or a standard_url is required", book.ErrInvalidInput))
	}

	ctx := c.Request().Context()

	if input.URL != "" {
		// A picked result skips re-searching and enters the pipeline
		// at the download stage.
		if input.Source != "" && !book.IsKnownSource(book.Source(input.Source)) {
			return s.runError(c, fmt.Errorf("%w: unknown source %q", book.ErrInvalidInput, input.Source))
		}

		s.runMu.Lock()
		artifact, err := s.runner.RunCandidate(ctx, pickedCandidate(input), input.Convert)
		s.runMu.Unlock()
		return s.runReply(c, artifact, err)
	}

	req := pipeline.Request{
		Title:       input.Title,
		Author:      input.Author,
		StandardURL: input.StandardURL,
		Convert:     input.Convert,
	}
	switch {
	case input.StandardURL != "":
		req.Sites = []string{string(book.SourceStandardEbooks)}
	case input.Source != "":
		req.Sites = []string{input.Source}
	}

	s.runMu.Lock()
	artifact, err := s.runner.Run(ctx, req)
	s.runMu.Unlock()
	return s.runReply(c, artifact, err)
}

func (s *Server) handleAudiobook(c echo.Context) error {
	title := c.FormValue("title")
	author := c.FormValue("author")
	useWhisper := parseCheckbox(c.FormValue("use_whisper"))

	uploadDir, err := os.MkdirTemp("", "bookdl-upload-")
	if err != nil {
		return s.runError(c, fmt.Errorf("failed to stage uploads: %w", err))
	}
	defer func() {
		if err := os.RemoveAll(uploadDir); err != nil {
			s.logger.Warn().Err(err).Str("dir", uploadDir).Msg("Failed to remove upload dir")
		}
	}()

	transcriptPath, err := s.saveUpload(c, "transcript", uploadDir)
	if err != nil {
		return s.runError(c, fmt.Errorf("%w: %v", book.ErrInvalidInput, err))
	}
	audioPath, err := s.saveUpload(c, "audio", uploadDir)
	if err != nil {
		return s.runError(c, fmt.Errorf("%w: %v", book.ErrInvalidInput, err))
	}

	req := pipeline.Request{
		AudiobookTranscript: transcriptPath,
		AudiobookAudio:      audioPath,
		AudiobookTitle:      title,
		AudiobookAuthor:     author,
		UseWhisper:          useWhisper,
	}
	if !req.AudiobookMode() {
		return s.runError(c, fmt.Errorf("%w: a transcript or audio file is required", book.ErrInvalidInput))
	}

	s.runMu.Lock()
	artifact, err := s.runner.Run(c.Request().Context(), req)
	s.runMu.Unlock()
	return s.runReply(c, artifact, err)
}

func (s *Server) serveArtifact(c echo.Context) error {
	name := filepath.Base(c.Param("filename"))
	if name == "." || name == ".." || name == string(filepath.Separator) {
		return echo.ErrNotFound
	}

	path := filepath.Join(s.runner.OutputDir(), name)
	if _, err := os.Stat(path); err != nil {
		return echo.ErrNotFound
	}

	return c.Attachment(path, name)
}

// --- Helpers ---

// runResponse is the reply shape of the pipeline-invoking endpoints.
type runResponse struct {
	OK     bool   `json:"ok"`
	Path   string `json:"path,omitempty"`
	File   string `json:"file,omitempty"`
	Title  string `json:"title,omitempty"`
	Author string `json:"author,omitempty"`
	Error  string `json:"error,omitempty"`
	Kind   string `json:"kind,omitempty"`
}

// runReply translates a pipeline outcome into the UI response shape.
func (s *Server) runReply(c echo.Context, artifact book.OutputArtifact, err error) error {
	if err != nil {
		return s.runError(c, err)
	}
	return c.JSON(http.StatusOK, runResponse{
		OK:     true,
		Path:   artifact.Path,
		File:   filepath.Base(artifact.Path),
		Title:  artifact.Title,
		Author: artifact.Author,
	})
}

func (s *Server) runError(c echo.Context, err error) error {
	status := http.StatusInternalServerError
	if errors.Is(err, book.ErrInvalidInput) {
		status = http.StatusBadRequest
	}
	return c.JSON(status, runResponse{Error: err.Error(), Kind: errorKind(err)})
}

// errorKind names the failure class for the UI.
func errorKind(err error) string {
	switch {
	case errors.Is(err, book.ErrInvalidInput):
		return "invalid-input"
	case errors.Is(err, book.ErrNoCandidateFound):
		return "no-candidate-found"
	case errors.Is(err, book.ErrNoDownloadableFormat):
		return "no-downloadable-format"
	case errors.Is(err, book.ErrCorruptDownload):
		return "corrupt-download"
	case errors.Is(err, book.ErrDownloadFailed):
		return "download-failed"
	case errors.Is(err, book.ErrConversionFailed):
		return "conversion-failed"
	case errors.Is(err, book.ErrNoTranscriptSource):
		return "no-transcript-source"
	case errors.Is(err, book.ErrTranscriptionUnavailable):
		return "transcription-unavailable"
	default:
		return "internal"
	}
}

// pickedCandidate rebuilds the candidate the user selected from a
// search response. Sources hand out direct file links, so the format
// is inferred from the locator.
func pickedCandidate(input downloadRequest) book.Candidate {
	format := book.FormatEPUB
	if strings.Contains(strings.ToLower(input.URL), ".pdf") {
		format = book.FormatPDF
	}

	title := input.Title
	if title == "" {
		title = "book"
	}

	return book.Candidate{
		Source:  book.Source(input.Source),
		Title:   title,
		Author:  input.Author,
		Formats: map[book.Format]string{format: input.URL},
	}
}

// saveUpload copies one optional multipart file into dir and returns
// its path, or "" when the field was not sent.
func (s *Server) saveUpload(c echo.Context, field, dir string) (string, error) {
	fh, err := c.FormFile(field)
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return "", nil
		}
		return "", fmt.Errorf("read %s upload: %v", field, err)
	}

	src, err := fh.Open()
	if err != nil {
		return "", fmt.Errorf("open %s upload: %v", field, err)
	}
	defer src.Close()

	// Base plus sanitize keeps client-supplied names inside dir.
	name := output.SanitizeName(filepath.Base(fh.Filename))
	if name == "" {
		name = field
	}
	destPath := filepath.Join(dir, name)

	dest, err := os.Create(destPath)
	if err != nil {
		return "", fmt.Errorf("stage %s upload: %v", field, err)
	}
	defer dest.Close()

	if _, err := io.Copy(dest, src); err != nil {
		return "", fmt.Errorf("stage %s upload: %v", field, err)
	}

	return destPath, nil
}

func groupBySource(result *source.Result) searchResponse {
	resp := searchResponse{Results: map[string][]book.Candidate{}}
	for _, candidate := range result.Candidates {
		key := string(candidate.Source)
		resp.Results[key] = append(resp.Results[key], candidate)
	}
	for _, srcErr := range result.SourceErrors {
		if resp.Errors == nil {
			resp.Errors = map[string]string{}
		}
		resp.Errors[srcErr.Source] = srcErr.Error
	}
	return resp
}

// parseCheckbox interprets the form encodings browsers send for a
// ticked checkbox.
func parseCheckbox(value string) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}

func toSources(names []string) []book.Source {
	if len(names) == 0 {
		return nil
	}
	sources := make([]book.Source, 0, len(names))
	for _, name := range names {
		sources = append(sources, book.Source(name))
	}
	return sources
}
