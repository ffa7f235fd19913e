package convert

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/zenithu-s/book-downloader/internal/epub"
	"github.com/zenithu-s/book-downloader/internal/pdfgen"
)

// builtinConverter extracts the EPUB's text and renders it straight to
// PDF. Text only, no layout fidelity; the last resort when no external
// tool is installed.
type builtinConverter struct {
	renderer *pdfgen.Renderer
	logger   zerolog.Logger
}

func newBuiltinConverter(logger zerolog.Logger) *builtinConverter {
	return &builtinConverter{
		renderer: pdfgen.NewRenderer(logger),
		logger:   logger,
	}
}

func (c *builtinConverter) Name() string { return "builtin" }

// Available always reports true; the built-in renderer has no external
// dependency to probe.
func (c *builtinConverter) Available() bool { return true }

func (c *builtinConverter) Convert(ctx context.Context, inputPath, outputPath string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	bk, err := epub.Extract(inputPath)
	if err != nil {
		return fmt.Errorf("failed to extract EPUB text: %w", err)
	}

	doc := pdfgen.Document{
		Title:      bk.Title,
		Author:     bk.Author,
		Paragraphs: chapterParagraphs(bk.Chapters),
	}

	c.logger.Debug().
		Str("title", doc.Title).
		Int("chapters", len(bk.Chapters)).
		Int("paragraphs", len(doc.Paragraphs)).
		Msg("Rendering extracted text")

	return c.renderer.Render(doc, outputPath)
}

// chapterParagraphs flattens chapter text, one paragraph per non-empty
// line, preserving chapter order.
func chapterParagraphs(chapters []string) []string {
	var out []string
	for _, chapter := range chapters {
		for _, line := range strings.Split(chapter, "\n") {
			line = strings.TrimSpace(line)
			if line != "" {
				out = append(out, line)
			}
		}
	}
	return out
}
