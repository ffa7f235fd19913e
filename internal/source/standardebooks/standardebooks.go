// Package standardebooks resolves a Standard Ebooks book page into a
// download candidate. The site has no search API, so the adapter only
// activates when the query carries an explicit page URL.
package standardebooks

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog"

	"github.com/zenithu-s/book-downloader/internal/book"
	"github.com/zenithu-s/book-downloader/internal/config"
)

// directMatchScore marks a candidate the user pointed at directly; it
// outranks any relevance-ordered search hit.
const directMatchScore = 1000

// Adapter is the Standard Ebooks source adapter.
type Adapter struct {
	httpClient *http.Client
	logger     zerolog.Logger
}

// New creates a Standard Ebooks adapter.
func New(httpClient *http.Client, logger zerolog.Logger) *Adapter {
	return &Adapter{
		httpClient: httpClient,
		logger:     logger.With().Str("component", "source").Str("source", string(book.SourceStandardEbooks)).Logger(),
	}
}

// Name returns the source identifier.
func (a *Adapter) Name() string {
	return string(book.SourceStandardEbooks)
}

// Search fetches the book page named by the query and scrapes its EPUB
// download link. Without a page URL there is nothing to search.
func (a *Adapter) Search(ctx context.Context, query book.SearchQuery) ([]book.Candidate, error) {
	if query.StandardURL == "" {
		return nil, nil
	}

	pageURL, err := url.Parse(query.StandardURL)
	if err != nil {
		return nil, fmt.Errorf("invalid page URL: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, query.StandardURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", config.UserAgent)

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("page returned status %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse page: %w", err)
	}

	href := findEpubLink(doc)
	if href == "" {
		a.logger.Debug().Str("url", query.StandardURL).Msg("No EPUB link on page")
		return nil, nil
	}

	locator := resolveHref(pageURL, href)
	if locator == "" {
		return nil, nil
	}

	title := strings.TrimSpace(doc.Find(`h1[property='schema:name']`).First().Text())
	if title == "" {
		title = query.Title
	}
	author := strings.TrimSpace(doc.Find(`a[property='schema:author']`).First().Text())
	if author == "" {
		author = query.Author
	}

	a.logger.Debug().
		Str("url", query.StandardURL).
		Str("epub", locator).
		Msg("Resolved Standard Ebooks page")

	return []book.Candidate{{
		Source:     book.SourceStandardEbooks,
		Title:      title,
		Author:     author,
		Formats:    map[book.Format]string{book.FormatEPUB: locator},
		MatchScore: directMatchScore,
	}}, nil
}

// findEpubLink scrapes the page for the EPUB download link: first an
// anchor whose href ends in .epub, then one whose text mentions epub,
// then the generic download anchor class.
func findEpubLink(doc *goquery.Document) string {
	var href string

	doc.Find("a[href]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		h, _ := s.Attr("href")
		if strings.HasSuffix(strings.ToLower(h), ".epub") {
			href = h
			return false
		}
		return true
	})
	if href != "" {
		return href
	}

	doc.Find("a[href]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if strings.Contains(strings.ToLower(s.Text()), "epub") {
			href, _ = s.Attr("href")
			return false
		}
		return true
	})
	if href != "" {
		return href
	}

	href, _ = doc.Find("a.ebook-download").First().Attr("href")
	return href
}

// resolveHref makes the scraped href absolute against the page URL.
func resolveHref(pageURL *url.URL, href string) string {
	ref, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return ""
	}
	return pageURL.ResolveReference(ref).String()
}
