package transcript

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/zenithu-s/book-downloader/internal/book"
	"github.com/zenithu-s/book-downloader/internal/config"
	"github.com/zenithu-s/book-downloader/internal/toolpath"
)

// Provider produces transcript segments from an audio file.
type Provider interface {
	Available() bool
	Transcribe(ctx context.Context, audioPath string) ([]book.Segment, error)
}

// WhisperCLI shells out to the whisper command-line tool for local
// transcription.
type WhisperCLI struct {
	binary  string
	model   string
	timeout time.Duration
	logger  zerolog.Logger
}

// NewWhisperCLI probes for the whisper binary and returns the provider.
// Available reports false when no binary was found.
func NewWhisperCLI(cfg config.TranscribeConfig, logger zerolog.Logger) *WhisperCLI {
	return &WhisperCLI{
		binary:  toolpath.Find("whisper", cfg.WhisperPath),
		model:   cfg.Model,
		timeout: cfg.Timeout,
		logger:  logger.With().Str("component", "whisper").Logger(),
	}
}

// Available reports whether the whisper binary was found.
func (w *WhisperCLI) Available() bool { return w.binary != "" }

// Transcribe runs whisper over the audio file and parses its JSON
// output. Transcription is slow on CPU; the configured timeout bounds
// the whole run.
func (w *WhisperCLI) Transcribe(ctx context.Context, audioPath string) ([]book.Segment, error) {
	ctx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()

	outDir, err := os.MkdirTemp("", "whisper-")
	if err != nil {
		return nil, fmt.Errorf("failed to create whisper output dir: %w", err)
	}
	defer os.RemoveAll(outDir)

	cmd := exec.CommandContext(ctx, w.binary, audioPath,
		"--model", w.model,
		"--output_format", "json",
		"--output_dir", outDir,
	)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	w.logger.Info().
		Str("audio", audioPath).
		Str("model", w.model).
		Msg("Transcribing audio, this may take a while")

	started := time.Now()
	if err := cmd.Run(); err != nil {
		detail := strings.TrimSpace(stderr.String())
		if detail != "" {
			return nil, fmt.Errorf("whisper failed: %w: %s", err, detail)
		}
		return nil, fmt.Errorf("whisper failed: %w", err)
	}

	base := strings.TrimSuffix(filepath.Base(audioPath), filepath.Ext(audioPath))
	resultPath := filepath.Join(outDir, base+".json")
	data, err := os.ReadFile(resultPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read whisper output: %w", err)
	}

	segments, err := parseWhisperJSON(data)
	if err != nil {
		return nil, err
	}
	if len(segments) == 0 {
		return nil, fmt.Errorf("whisper produced an empty transcript for %s", filepath.Base(audioPath))
	}

	w.logger.Info().
		Int("segments", len(segments)).
		Dur("elapsed", time.Since(started)).
		Msg("Transcription complete")

	return segments, nil
}

type whisperOutput struct {
	Text     string           `json:"text"`
	Segments []whisperSegment `json:"segments"`
}

type whisperSegment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

func parseWhisperJSON(data []byte) ([]book.Segment, error) {
	var output whisperOutput
	if err := json.Unmarshal(data, &output); err != nil {
		return nil, fmt.Errorf("failed to parse whisper output: %w", err)
	}

	segments := make([]book.Segment, 0, len(output.Segments))
	for _, s := range output.Segments {
		text := strings.TrimSpace(s.Text)
		if text == "" {
			continue
		}
		segments = append(segments, book.Segment{
			Text:  text,
			Start: time.Duration(s.Start * float64(time.Second)),
			End:   time.Duration(s.End * float64(time.Second)),
		})
	}

	// Older whisper builds emit only the flat text field.
	if len(segments) == 0 && strings.TrimSpace(output.Text) != "" {
		segments = append(segments, book.Segment{Text: strings.TrimSpace(output.Text)})
	}

	return segments, nil
}
