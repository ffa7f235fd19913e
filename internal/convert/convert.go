// Package convert turns EPUB files into PDFs through a chain of
// converters: calibre's ebook-convert, pandoc, then a built-in
// text-only renderer. The first converter to produce a PDF wins.
package convert

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/zenithu-s/book-downloader/internal/book"
	"github.com/zenithu-s/book-downloader/internal/config"
)

// Converter turns an EPUB at inputPath into a PDF at outputPath.
type Converter interface {
	Name() string
	Available() bool
	Convert(ctx context.Context, inputPath, outputPath string) error
}

// Chain runs converters in priority order until one succeeds.
// Availability is probed once at construction and cached for the run.
type Chain struct {
	converters []Converter
	logger     zerolog.Logger
}

// NewChain probes the configured converters and assembles the chain.
func NewChain(cfg config.ConvertConfig, logger zerolog.Logger) *Chain {
	log := logger.With().Str("component", "convert").Logger()
	chain := &Chain{
		converters: []Converter{
			newCalibreConverter(cfg, log),
			newPandocConverter(cfg, log),
			newBuiltinConverter(log),
		},
		logger: log,
	}

	for _, conv := range chain.converters {
		if conv.Available() {
			log.Debug().Str("converter", conv.Name()).Msg("Converter available")
		} else {
			log.Debug().Str("converter", conv.Name()).Msg("Converter not installed")
		}
	}

	return chain
}

// Convert runs inputPath through the chain and moves the first
// successful result to outputPath. Unavailable converters are recorded
// as skipped attempts without being invoked. When every converter is
// skipped or fails, the returned error is a *book.ConversionError
// carrying the full attempt record.
func (c *Chain) Convert(ctx context.Context, inputPath, outputPath string) ([]book.ConversionAttempt, error) {
	attempts := make([]book.ConversionAttempt, 0, len(c.converters))

	for _, conv := range c.converters {
		attempt := book.ConversionAttempt{
			Converter: conv.Name(),
			InputPath: inputPath,
		}

		if !conv.Available() {
			attempt.Skipped = true
			attempts = append(attempts, attempt)
			continue
		}

		if err := ctx.Err(); err != nil {
			attempt.Err = err.Error()
			attempts = append(attempts, attempt)
			break
		}

		c.logger.Info().
			Str("converter", conv.Name()).
			Str("input", inputPath).
			Msg("Attempting conversion")

		tempOut := filepath.Join(filepath.Dir(outputPath),
			fmt.Sprintf("convert-%s-%s.pdf", conv.Name(), uuid.New().String()[:8]))

		if err := c.runAttempt(ctx, conv, inputPath, tempOut, outputPath); err != nil {
			attempt.Err = err.Error()
			attempts = append(attempts, attempt)
			c.logger.Warn().
				Err(err).
				Str("converter", conv.Name()).
				Msg("Conversion attempt failed")
			continue
		}

		attempt.OutputPath = outputPath
		attempts = append(attempts, attempt)
		c.logger.Info().
			Str("converter", conv.Name()).
			Str("output", outputPath).
			Msg("Conversion succeeded")
		return attempts, nil
	}

	return attempts, &book.ConversionError{Attempts: attempts}
}

// runAttempt executes one converter against a private temp output and
// promotes the result only if the converter actually produced a file.
// The temp output never survives a failed attempt.
func (c *Chain) runAttempt(ctx context.Context, conv Converter, inputPath, tempOut, outputPath string) error {
	if err := conv.Convert(ctx, inputPath, tempOut); err != nil {
		os.Remove(tempOut)
		return err
	}

	info, err := os.Stat(tempOut)
	if err != nil || info.Size() == 0 {
		os.Remove(tempOut)
		return fmt.Errorf("%s reported success but produced no output", conv.Name())
	}

	if err := os.Rename(tempOut, outputPath); err != nil {
		os.Remove(tempOut)
		return fmt.Errorf("failed to move converted file: %w", err)
	}
	return nil
}
