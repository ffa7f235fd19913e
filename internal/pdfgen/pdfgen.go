// Package pdfgen renders plain-text documents into paginated PDF
// files. It backs both the transcript renderer and the built-in EPUB
// conversion fallback, so output stays text-only with no layout
// fidelity beyond paragraphs and page breaks.
package pdfgen

import (
	"fmt"
	"strings"

	"github.com/go-pdf/fpdf"
	"github.com/rs/zerolog"
)

// Document is a text document to render: a title page followed by body
// paragraphs in order.
type Document struct {
	Title      string
	Author     string
	Paragraphs []string
}

// Renderer renders Documents to PDF files on disk.
type Renderer struct {
	logger zerolog.Logger
}

// NewRenderer creates a PDF renderer.
func NewRenderer(logger zerolog.Logger) *Renderer {
	return &Renderer{
		logger: logger.With().Str("component", "pdfgen").Logger(),
	}
}

// Render writes the document to outputPath as an A4 PDF: a title page,
// then the paragraphs in input order, flowing across pages.
func (r *Renderer) Render(doc Document, outputPath string) error {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetTitle(doc.Title, true)
	if doc.Author != "" {
		pdf.SetAuthor(doc.Author, true)
	}
	pdf.SetMargins(20, 20, 20)
	pdf.SetAutoPageBreak(true, 20)

	// Core fonts are cp1252; translate UTF-8 input as closely as the
	// codepage allows.
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pdf.SetFooterFunc(func() {
		if pdf.PageNo() == 1 {
			return
		}
		pdf.SetY(-15)
		pdf.SetFont("Helvetica", "I", 8)
		pdf.CellFormat(0, 10, fmt.Sprintf("%d", pdf.PageNo()), "", 0, "C", false, 0, "")
	})

	r.renderTitlePage(pdf, tr, doc)
	r.renderBody(pdf, tr, doc.Paragraphs)

	if err := pdf.OutputFileAndClose(outputPath); err != nil {
		return fmt.Errorf("failed to write PDF: %w", err)
	}

	r.logger.Debug().
		Str("path", outputPath).
		Int("paragraphs", len(doc.Paragraphs)).
		Msg("Rendered document")
	return nil
}

func (r *Renderer) renderTitlePage(pdf *fpdf.Fpdf, tr func(string) string, doc Document) {
	pdf.AddPage()
	pdf.SetY(90)
	pdf.SetFont("Helvetica", "B", 24)
	pdf.MultiCell(0, 12, tr(doc.Title), "", "C", false)

	if doc.Author != "" {
		pdf.Ln(8)
		pdf.SetFont("Helvetica", "", 14)
		pdf.MultiCell(0, 8, tr("by "+doc.Author), "", "C", false)
	}
}

func (r *Renderer) renderBody(pdf *fpdf.Fpdf, tr func(string) string, paragraphs []string) {
	if len(paragraphs) == 0 {
		return
	}

	pdf.AddPage()
	pdf.SetFont("Helvetica", "", 11)

	for _, p := range paragraphs {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		pdf.MultiCell(0, 6, tr(p), "", "L", false)
		pdf.Ln(4)
	}
}
