// Package archive searches the Internet Archive for downloadable
// books via the advancedsearch and metadata APIs.
package archive

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/zenithu-s/book-downloader/internal/book"
	"github.com/zenithu-s/book-downloader/internal/config"
)

// Adapter is the Internet Archive source adapter.
type Adapter struct {
	httpClient *http.Client
	baseURL    string
	rows       int
	logger     zerolog.Logger
}

// New creates an Internet Archive adapter.
func New(cfg config.SourcesConfig, httpClient *http.Client, logger zerolog.Logger) *Adapter {
	return &Adapter{
		httpClient: httpClient,
		baseURL:    strings.TrimRight(cfg.ArchiveURL, "/"),
		rows:       cfg.ArchiveRows,
		logger:     logger.With().Str("component", "source").Str("source", string(book.SourceArchive)).Logger(),
	}
}

// Name returns the source identifier.
func (a *Adapter) Name() string {
	return string(book.SourceArchive)
}

type searchResponse struct {
	Response struct {
		Docs []searchDoc `json:"docs"`
	} `json:"response"`
}

type searchDoc struct {
	Identifier string       `json:"identifier"`
	Title      string       `json:"title"`
	Creator    stringOrList `json:"creator"`
}

type metadataResponse struct {
	Files []metadataFile `json:"files"`
}

type metadataFile struct {
	Name   string  `json:"name"`
	Format string  `json:"format"`
	Size   flexInt `json:"size"`
}

// Search queries advancedsearch.php and resolves each hit's format
// locators from its metadata files list. Items offering neither PDF
// nor EPUB produce no candidate.
func (a *Adapter) Search(ctx context.Context, query book.SearchQuery) ([]book.Candidate, error) {
	if query.Title == "" {
		return nil, nil
	}

	q := fmt.Sprintf("title:(%q)", query.Title)
	if query.Author != "" {
		q += fmt.Sprintf(" AND creator:(%q)", query.Author)
	}

	params := url.Values{}
	params.Set("q", q)
	params["fl[]"] = []string{"identifier", "title", "creator"}
	params.Set("rows", strconv.Itoa(a.rows))
	params.Set("output", "json")

	var response searchResponse
	if err := a.doRequest(ctx, a.baseURL+"/advancedsearch.php?"+params.Encode(), &response); err != nil {
		return nil, err
	}

	docs := response.Response.Docs
	candidates := make([]book.Candidate, 0, len(docs))
	for i, doc := range docs {
		if doc.Identifier == "" {
			continue
		}

		formats, err := a.itemFormats(ctx, doc.Identifier)
		if err != nil {
			a.logger.Warn().
				Err(err).
				Str("identifier", doc.Identifier).
				Msg("Failed to fetch item metadata, skipping")
			continue
		}
		if len(formats) == 0 {
			continue
		}

		candidates = append(candidates, book.Candidate{
			Source:  book.SourceArchive,
			Title:   doc.Title,
			Author:  doc.Creator.First(),
			Formats: formats,
			// advancedsearch orders by relevance; earlier hits score higher.
			MatchScore: float64(len(docs) - i),
		})
	}

	a.logger.Debug().
		Str("title", query.Title).
		Int("hits", len(docs)).
		Int("candidates", len(candidates)).
		Msg("Archive search completed")

	return candidates, nil
}

// itemFormats fetches an item's metadata and derives format locators
// from its files. The largest file whose format mentions PDF wins the
// PDF slot; the first EPUB-formatted file wins the EPUB slot.
func (a *Adapter) itemFormats(ctx context.Context, identifier string) (map[book.Format]string, error) {
	var meta metadataResponse
	if err := a.doRequest(ctx, a.baseURL+"/metadata/"+url.PathEscape(identifier), &meta); err != nil {
		return nil, err
	}

	var pdfName, epubName string
	var pdfSize int64
	for _, f := range meta.Files {
		if f.Name == "" {
			continue
		}
		format := strings.ToLower(f.Format)
		switch {
		case strings.Contains(format, "pdf"):
			if pdfName == "" || int64(f.Size) > pdfSize {
				pdfName = f.Name
				pdfSize = int64(f.Size)
			}
		case strings.Contains(format, "epub"):
			if epubName == "" {
				epubName = f.Name
			}
		}
	}

	formats := make(map[book.Format]string, 2)
	if pdfName != "" {
		formats[book.FormatPDF] = a.downloadURL(identifier, pdfName)
	}
	if epubName != "" {
		formats[book.FormatEPUB] = a.downloadURL(identifier, epubName)
	}
	return formats, nil
}

func (a *Adapter) downloadURL(identifier, filename string) string {
	return fmt.Sprintf("%s/download/%s/%s", a.baseURL, url.PathEscape(identifier), url.PathEscape(filename))
}

// doRequest performs an HTTP GET request and decodes the JSON response.
func (a *Adapter) doRequest(ctx context.Context, reqURL string, result any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", config.UserAgent)

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("archive API returned status %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return nil
}

// stringOrList accepts a JSON value that may be a single string or an
// array of strings; the metadata API uses both for creator.
type stringOrList []string

func (s *stringOrList) UnmarshalJSON(data []byte) error {
	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		*s = stringOrList{single}
		return nil
	}

	var list []string
	if err := json.Unmarshal(data, &list); err != nil {
		return err
	}
	*s = stringOrList(list)
	return nil
}

// First returns the first value, or "".
func (s stringOrList) First() string {
	if len(s) == 0 {
		return ""
	}
	return s[0]
}

// flexInt accepts a JSON number or a numeric string; file sizes in the
// metadata API arrive as strings. Unparseable values become zero
// rather than failing the whole item.
type flexInt int64

func (n *flexInt) UnmarshalJSON(data []byte) error {
	s := strings.Trim(strings.TrimSpace(string(data)), `"`)
	if s == "" || s == "null" {
		*n = 0
		return nil
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		*n = 0
		return nil
	}
	*n = flexInt(v)
	return nil
}
