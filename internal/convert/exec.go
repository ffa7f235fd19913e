package convert

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"runtime"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/zenithu-s/book-downloader/internal/config"
	"github.com/zenithu-s/book-downloader/internal/toolpath"
)

// execConverter shells out to an external conversion tool.
type execConverter struct {
	name    string
	binary  string
	timeout time.Duration
	args    func(inputPath, outputPath string) []string
	logger  zerolog.Logger
}

func (c *execConverter) Name() string { return c.name }

func (c *execConverter) Available() bool { return c.binary != "" }

func (c *execConverter) Convert(ctx context.Context, inputPath, outputPath string) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, c.binary, c.args(inputPath, outputPath)...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	c.logger.Debug().
		Str("binary", c.binary).
		Strs("args", cmd.Args[1:]).
		Msg("Running converter")

	if err := cmd.Run(); err != nil {
		detail := strings.TrimSpace(stderr.String())
		if detail == "" {
			detail = strings.TrimSpace(stdout.String())
		}
		if detail != "" {
			return fmt.Errorf("%s failed: %w: %s", c.name, err, detail)
		}
		return fmt.Errorf("%s failed: %w", c.name, err)
	}

	return nil
}

// newCalibreConverter wraps calibre's ebook-convert. Output format is
// inferred by the tool from the output file extension.
func newCalibreConverter(cfg config.ConvertConfig, logger zerolog.Logger) *execConverter {
	return &execConverter{
		name:    "calibre",
		binary:  toolpath.Find("ebook-convert", cfg.CalibrePath, calibreLocations()...),
		timeout: cfg.Timeout,
		args: func(inputPath, outputPath string) []string {
			return []string{inputPath, outputPath}
		},
		logger: logger,
	}
}

// newPandocConverter wraps pandoc. Whether a usable PDF engine is
// installed only surfaces when pandoc runs; its stderr carries the
// detail.
func newPandocConverter(cfg config.ConvertConfig, logger zerolog.Logger) *execConverter {
	return &execConverter{
		name:    "pandoc",
		binary:  toolpath.Find("pandoc", cfg.PandocPath, pandocLocations()...),
		timeout: cfg.Timeout,
		args: func(inputPath, outputPath string) []string {
			return []string{inputPath, "-o", outputPath}
		},
		logger: logger,
	}
}

func calibreLocations() []string {
	switch runtime.GOOS {
	case "darwin":
		return []string{"/Applications/calibre.app/Contents/MacOS/ebook-convert"}
	case "linux":
		return []string{"/opt/calibre/ebook-convert"}
	case "windows":
		return []string{
			`C:\Program Files\Calibre2\ebook-convert.exe`,
			`C:\Program Files (x86)\Calibre2\ebook-convert.exe`,
		}
	}
	return nil
}

func pandocLocations() []string {
	if runtime.GOOS == "windows" {
		return []string{`C:\Program Files\Pandoc\pandoc.exe`}
	}
	return nil
}
