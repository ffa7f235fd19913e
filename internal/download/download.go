// Package download fetches a candidate's best available format into a
// staging directory and verifies the payload before handing it on.
package download

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/zenithu-s/book-downloader/internal/book"
	"github.com/zenithu-s/book-downloader/internal/config"
)

var (
	errEmptyPayload = errors.New("empty payload")
	errTransfer     = errors.New("transfer interrupted")
)

// httpStatusError is a non-2xx response; only server-side statuses are
// worth retrying.
type httpStatusError struct {
	code int
}

func (e *httpStatusError) Error() string {
	return fmt.Sprintf("unexpected status %d", e.code)
}

func (e *httpStatusError) transient() bool {
	return e.code >= 500
}

// Manager downloads candidate files with retry and verification.
type Manager struct {
	httpClient *http.Client
	cfg        config.DownloadConfig
	logger     zerolog.Logger
}

// NewManager creates a download manager.
func NewManager(cfg config.DownloadConfig, httpClient *http.Client, logger zerolog.Logger) *Manager {
	return &Manager{
		httpClient: httpClient,
		cfg:        cfg,
		logger:     logger.With().Str("component", "download").Logger(),
	}
}

// Fetch downloads the candidate's best format into dir. PDF is
// preferred over EPUB; a candidate offering neither fails with
// ErrNoDownloadableFormat. Transient failures (network errors, 5xx,
// empty payloads) are retried with exponential backoff; 4xx statuses
// are terminal. A payload that fails verification is
// ErrCorruptDownload and is not retried.
func (m *Manager) Fetch(ctx context.Context, candidate book.Candidate, dir string) (book.DownloadResult, error) {
	format, locator, err := pickFormat(candidate)
	if err != nil {
		return book.DownloadResult{}, err
	}

	m.logger.Info().
		Str("title", candidate.Title).
		Str("format", string(format)).
		Str("url", locator).
		Msg("Starting download")

	attempts := m.cfg.Retries + 1
	delay := m.cfg.BackoffInitial
	var lastErr error

	for attempt := 1; attempt <= attempts; attempt++ {
		result, err := m.fetchOnce(ctx, candidate, format, locator, dir)
		if err == nil {
			if attempt > 1 {
				m.logger.Info().Int("attempt", attempt).Msg("Download succeeded after retry")
			}
			return result, nil
		}
		lastErr = err

		if errors.Is(err, book.ErrCorruptDownload) {
			return book.DownloadResult{}, err
		}
		if !isTransient(err) {
			m.logger.Error().Err(err).Msg("Download failed, not retrying")
			return book.DownloadResult{}, fmt.Errorf("%w: %w", book.ErrDownloadFailed, err)
		}
		if attempt == attempts {
			break
		}

		m.logger.Warn().
			Err(err).
			Int("attempt", attempt).
			Int("maxAttempts", attempts).
			Dur("nextRetryIn", delay).
			Msg("Transient download failure, will retry")

		select {
		case <-ctx.Done():
			return book.DownloadResult{}, ctx.Err()
		case <-time.After(delay):
		}

		delay = time.Duration(float64(delay) * m.cfg.BackoffMultiplier)
		if delay > m.cfg.BackoffMax {
			delay = m.cfg.BackoffMax
		}
	}

	m.logger.Error().Err(lastErr).Int("attempts", attempts).Msg("Download failed after all retries")
	return book.DownloadResult{}, fmt.Errorf("%w: %w", book.ErrDownloadFailed, lastErr)
}

// fetchOnce performs a single download attempt under the transfer
// timeout, staging to a partial file and renaming only after the
// payload verifies.
func (m *Manager) fetchOnce(ctx context.Context, candidate book.Candidate, format book.Format, locator, dir string) (book.DownloadResult, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, m.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(attemptCtx, http.MethodGet, locator, nil)
	if err != nil {
		return book.DownloadResult{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", m.cfg.UserAgent)

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return book.DownloadResult{}, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return book.DownloadResult{}, &httpStatusError{code: resp.StatusCode}
	}

	partial := filepath.Join(dir, fmt.Sprintf("download-%s.partial", uuid.New().String()[:8]))
	size, err := m.streamTo(partial, resp.Body)
	if err != nil {
		os.Remove(partial)
		return book.DownloadResult{}, err
	}

	if err := m.verifyPayload(partial, format); err != nil {
		os.Remove(partial)
		return book.DownloadResult{}, err
	}

	final := strings.TrimSuffix(partial, ".partial") + "." + string(format)
	if err := os.Rename(partial, final); err != nil {
		os.Remove(partial)
		return book.DownloadResult{}, fmt.Errorf("failed to stage download: %w", err)
	}

	m.logger.Debug().
		Str("path", final).
		Int64("size", size).
		Msg("Download staged")

	return book.DownloadResult{
		Candidate: candidate,
		Path:      final,
		Format:    format,
		Size:      size,
	}, nil
}

func (m *Manager) streamTo(path string, body io.Reader) (int64, error) {
	f, err := os.Create(path)
	if err != nil {
		return 0, fmt.Errorf("failed to create staging file: %w", err)
	}

	size, err := io.Copy(f, body)
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return 0, fmt.Errorf("%w: %v", errTransfer, err)
	}
	if size == 0 {
		return 0, errEmptyPayload
	}

	return size, nil
}

// verifyPayload checks the staged file's magic bytes against the
// format that was requested.
func (m *Manager) verifyPayload(path string, format book.Format) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open staged file: %w", err)
	}
	defer f.Close()

	head := make([]byte, 64)
	n, err := f.Read(head)
	if err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("failed to read staged file: %w", err)
	}
	head = head[:n]

	switch format {
	case book.FormatPDF:
		if !bytes.HasPrefix(head, []byte("%PDF-")) {
			return fmt.Errorf("%w: payload is not a PDF", book.ErrCorruptDownload)
		}
	case book.FormatEPUB:
		if !bytes.HasPrefix(head, []byte("PK\x03\x04")) {
			return fmt.Errorf("%w: payload is not a ZIP archive", book.ErrCorruptDownload)
		}
		// A conforming EPUB stores "mimetype" as its first entry; its
		// name sits right after the 30-byte local file header.
		if len(head) < 38 || !bytes.Equal(head[30:38], []byte("mimetype")) {
			m.logger.Warn().Str("path", path).Msg("EPUB without leading mimetype entry")
		}
	default:
		return fmt.Errorf("%w: unknown format %q", book.ErrCorruptDownload, format)
	}

	return nil
}

// isTransient reports whether the attempt is worth retrying.
func isTransient(err error) bool {
	var statusErr *httpStatusError
	if errors.As(err, &statusErr) {
		return statusErr.transient()
	}
	if errors.Is(err, errEmptyPayload) || errors.Is(err, errTransfer) {
		return true
	}

	var netErr net.Error
	var dnsErr *net.DNSError
	return errors.As(err, &netErr) || errors.As(err, &dnsErr)
}

// pickFormat applies the format preference: PDF, then EPUB.
func pickFormat(candidate book.Candidate) (book.Format, string, error) {
	if locator, ok := candidate.Formats[book.FormatPDF]; ok && locator != "" {
		return book.FormatPDF, locator, nil
	}
	if locator, ok := candidate.Formats[book.FormatEPUB]; ok && locator != "" {
		return book.FormatEPUB, locator, nil
	}
	return "", "", book.ErrNoDownloadableFormat
}
