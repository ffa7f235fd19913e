// Package gutenberg searches Project Gutenberg through the Gutendex
// API.
package gutenberg

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"

	"github.com/rs/zerolog"

	"github.com/zenithu-s/book-downloader/internal/book"
	"github.com/zenithu-s/book-downloader/internal/config"
)

// Adapter is the Project Gutenberg source adapter.
type Adapter struct {
	httpClient *http.Client
	baseURL    string
	logger     zerolog.Logger
}

// New creates a Gutendex adapter.
func New(cfg config.SourcesConfig, httpClient *http.Client, logger zerolog.Logger) *Adapter {
	return &Adapter{
		httpClient: httpClient,
		baseURL:    strings.TrimRight(cfg.GutendexURL, "/"),
		logger:     logger.With().Str("component", "source").Str("source", string(book.SourceGutenberg)).Logger(),
	}
}

// Name returns the source identifier.
func (a *Adapter) Name() string {
	return string(book.SourceGutenberg)
}

type booksResponse struct {
	Results []bookResult `json:"results"`
}

type bookResult struct {
	Title   string            `json:"title"`
	Authors []bookAuthor      `json:"authors"`
	Formats map[string]string `json:"formats"`
}

type bookAuthor struct {
	Name string `json:"name"`
}

// Search queries /books/?search= and maps the results to candidates.
// When the query carries an author, results are pre-filtered to those
// with a matching author name, mirroring how the site itself behaves.
func (a *Adapter) Search(ctx context.Context, query book.SearchQuery) ([]book.Candidate, error) {
	if query.Title == "" {
		return nil, nil
	}

	reqURL := a.baseURL + "/books/?search=" + url.QueryEscape(query.Title)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", config.UserAgent)

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("gutendex API returned status %d", resp.StatusCode)
	}

	var response booksResponse
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	results := response.Results
	candidates := make([]book.Candidate, 0, len(results))
	for i, r := range results {
		if query.Author != "" && !matchesAuthor(r.Authors, query.Author) {
			continue
		}

		formats := formatLocators(r.Formats)
		if len(formats) == 0 {
			continue
		}

		candidates = append(candidates, book.Candidate{
			Source:  book.SourceGutenberg,
			Title:   r.Title,
			Author:  firstAuthor(r.Authors),
			Formats: formats,
			// Gutendex sorts by popularity; earlier results score higher.
			MatchScore: float64(len(results) - i),
		})
	}

	a.logger.Debug().
		Str("title", query.Title).
		Int("hits", len(results)).
		Int("candidates", len(candidates)).
		Msg("Gutendex search completed")

	return candidates, nil
}

// matchesAuthor reports whether any author name contains the requested
// author, case-insensitively.
func matchesAuthor(authors []bookAuthor, author string) bool {
	needle := strings.ToLower(author)
	for _, a := range authors {
		if strings.Contains(strings.ToLower(a.Name), needle) {
			return true
		}
	}
	return false
}

func firstAuthor(authors []bookAuthor) string {
	if len(authors) == 0 {
		return ""
	}
	return authors[0].Name
}

// formatLocators maps Gutendex format keys (MIME types like
// "application/epub+zip") to locators by substring match. Keys are
// walked in sorted order so repeated runs pick the same locator.
func formatLocators(formats map[string]string) map[book.Format]string {
	keys := make([]string, 0, len(formats))
	for k := range formats {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	locators := make(map[book.Format]string, 2)
	for _, k := range keys {
		href := formats[k]
		if href == "" {
			continue
		}
		lower := strings.ToLower(k)
		switch {
		case strings.Contains(lower, "pdf"):
			if _, ok := locators[book.FormatPDF]; !ok {
				locators[book.FormatPDF] = href
			}
		case strings.Contains(lower, "epub"):
			if _, ok := locators[book.FormatEPUB]; !ok {
				locators[book.FormatEPUB] = href
			}
		}
	}
	return locators
}
