package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/zenithu-s/book-downloader/internal/book"
	"github.com/zenithu-s/book-downloader/internal/config"
	"github.com/zenithu-s/book-downloader/internal/logger"
	"github.com/zenithu-s/book-downloader/internal/pipeline"
	"github.com/zenithu-s/book-downloader/internal/webui"
)

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "", "path to config file")
	outputDir := flag.String("output", "", "output directory (overrides config)")

	title := flag.String("title", "", "book title to search for")
	author := flag.String("author", "", "author name to filter matches")
	sites := flag.String("sites", "", "comma-separated sources to search (archive,gutenberg,standard)")
	standardURL := flag.String("standard-url", "", "Standard Ebooks book page URL")
	convert := flag.Bool("convert", false, "convert a downloaded EPUB to PDF")

	audiobookTranscript := flag.String("audiobook-transcript", "", "transcript file to render as a PDF")
	audiobookAudio := flag.String("audiobook-audio", "", "audio file to transcribe and render")
	audiobookTitle := flag.String("audiobook-title", "", "title for the audiobook PDF")
	audiobookAuthor := flag.String("audiobook-author", "", "author for the audiobook PDF")
	useWhisper := flag.Bool("use-whisper", false, "allow whisper transcription of the audio file")

	serve := flag.Bool("serve", false, "start the web UI instead of a one-shot run")
	listen := flag.String("listen", "", "web UI listen address (overrides config)")

	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "bookdl: %v\n", err)
		return book.ExitCode(err)
	}
	if *outputDir != "" {
		cfg.Output = *outputDir
	}
	if *listen != "" {
		cfg.Server.Listen = *listen
	}

	log := logger.New(logger.Config{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		Path:       cfg.Logging.Path,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAgeDays: cfg.Logging.MaxAgeDays,
		Compress:   cfg.Logging.Compress,
	})
	defer log.Close()

	if *serve {
		return runServe(cfg, log)
	}

	req := pipeline.Request{
		Title:               *title,
		Author:              *author,
		Sites:               splitSites(*sites),
		StandardURL:         *standardURL,
		Convert:             *convert,
		AudiobookTranscript: *audiobookTranscript,
		AudiobookAudio:      *audiobookAudio,
		AudiobookTitle:      *audiobookTitle,
		AudiobookAuthor:     *audiobookAuthor,
		UseWhisper:          *useWhisper,
	}

	return runOnce(cfg, log, req)
}

// runOnce executes a single pipeline run and prints the artifact path
// to stdout. Logging goes to stderr, so the path stays scriptable.
func runOnce(cfg *config.Config, log *logger.Logger, req pipeline.Request) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runner := pipeline.New(cfg, log.Logger)

	artifact, err := runner.Run(ctx, req)
	if err != nil {
		fmt.Fprintf(os.Stderr, "bookdl: %v\n", err)
		return book.ExitCode(err)
	}

	fmt.Println(artifact.Path)
	return book.ExitOK
}

// runServe starts the web UI and blocks until interrupted.
func runServe(cfg *config.Config, log *logger.Logger) int {
	runner := pipeline.New(cfg, log.Logger)
	server := webui.NewServer(runner, log.Logger)

	errCh := make(chan error, 1)
	go func() {
		if err := server.Start(cfg.Server.Listen); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	select {
	case err := <-errCh:
		fmt.Fprintf(os.Stderr, "bookdl: %v\n", err)
		return book.ExitInternal
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("Shutdown incomplete")
	}

	return book.ExitOK
}

func splitSites(list string) []string {
	if list == "" {
		return nil
	}
	var sites []string
	for _, site := range strings.Split(list, ",") {
		if site = strings.TrimSpace(site); site != "" {
			sites = append(sites, site)
		}
	}
	return sites
}
