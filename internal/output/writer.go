// Package output places finished documents into the user-visible
// output directory under deterministic, filesystem-safe names.
package output

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/zenithu-s/book-downloader/internal/book"
)

// Writer publishes finished artifacts into the output directory.
type Writer struct {
	dir    string
	logger zerolog.Logger
}

// NewWriter creates a writer rooted at dir. The directory is created on
// first publish, not here, so construction never touches the filesystem.
func NewWriter(dir string, logger zerolog.Logger) *Writer {
	return &Writer{
		dir:    dir,
		logger: logger.With().Str("component", "output").Logger(),
	}
}

// Dir returns the output directory the writer publishes into.
func (w *Writer) Dir() string {
	return w.dir
}

// ArtifactName builds the output filename for a book: the sanitized
// title, " - author" when an author is known, and the format extension.
func ArtifactName(title, author string, format book.Format) string {
	name := SanitizeName(title)
	if name == "" {
		name = "untitled"
	}
	if a := SanitizeName(author); a != "" {
		name = name + " - " + a
	}
	return name + "." + string(format)
}

// Publish moves a staged file into the output directory under the given
// name and returns the artifact describing it. The move tries a rename
// first and falls back to copy + delete across filesystems.
func (w *Writer) Publish(stagedPath, name, title, author string) (book.OutputArtifact, error) {
	if err := os.MkdirAll(w.dir, 0o750); err != nil {
		return book.OutputArtifact{}, fmt.Errorf("failed to create output directory: %w", err)
	}

	destPath := filepath.Join(w.dir, name)
	if err := w.moveFile(stagedPath, destPath); err != nil {
		return book.OutputArtifact{}, err
	}

	w.logger.Info().
		Str("path", destPath).
		Str("title", title).
		Msg("Published artifact")

	return book.OutputArtifact{
		Path:   destPath,
		Title:  title,
		Author: author,
	}, nil
}

func (w *Writer) moveFile(sourcePath, destPath string) error {
	// Try rename first (works if same filesystem)
	if err := os.Rename(sourcePath, destPath); err == nil {
		return nil
	}

	// Fall back to copy + delete for cross-filesystem moves
	if err := w.copyFile(sourcePath, destPath); err != nil {
		return err
	}

	if err := os.Remove(sourcePath); err != nil {
		w.logger.Warn().Err(err).Str("path", sourcePath).Msg("Failed to remove staged file after copy")
	}

	return nil
}

func (w *Writer) copyFile(sourcePath, destPath string) error {
	source, err := os.Open(sourcePath)
	if err != nil {
		return fmt.Errorf("failed to open staged file: %w", err)
	}
	defer source.Close()

	dest, err := os.Create(destPath)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer dest.Close()

	if _, err := io.Copy(dest, source); err != nil {
		os.Remove(destPath) // Clean up on failure
		return fmt.Errorf("failed to copy file: %w", err)
	}

	return nil
}
