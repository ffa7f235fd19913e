// Package book contains the shared domain types for the download and
// conversion pipeline.
package book

import (
	"time"
)

// Format identifies a downloadable book format.
type Format string

const (
	FormatPDF  Format = "pdf"
	FormatEPUB Format = "epub"
)

// Source identifies a search source adapter.
type Source string

const (
	SourceArchive        Source = "archive"
	SourceGutenberg      Source = "gutenberg"
	SourceStandardEbooks Source = "standard"
)

// KnownSources lists every source the pipeline can query, in the
// default priority order used for tie-breaking.
var KnownSources = []Source{SourceArchive, SourceGutenberg, SourceStandardEbooks}

// IsKnownSource reports whether s names a configured adapter.
func IsKnownSource(s Source) bool {
	for _, k := range KnownSources {
		if s == k {
			return true
		}
	}
	return false
}

// SearchQuery describes one book lookup. Values are fixed at
// construction; nothing mutates a query after it is built.
type SearchQuery struct {
	Title  string   `json:"title"`
	Author string   `json:"author,omitempty"`
	Sites  []Source `json:"sites,omitempty"`

	// StandardURL is an explicit Standard Ebooks book page; the
	// standard adapter has no search API and only activates when set.
	StandardURL string `json:"standardUrl,omitempty"`
}

// WantsSite reports whether the query enables the given source.
// An empty site list enables every source.
func (q SearchQuery) WantsSite(s Source) bool {
	if len(q.Sites) == 0 {
		return true
	}
	for _, site := range q.Sites {
		if site == s {
			return true
		}
	}
	return false
}

// Candidate is one normalized search result from a single source.
type Candidate struct {
	Source Source `json:"source"`
	Title  string `json:"title"`
	Author string `json:"author,omitempty"`

	// Formats maps each available format to its download locator.
	// At least one entry is always present.
	Formats map[Format]string `json:"formats"`

	// MatchScore is the source-assigned relevance score; higher is
	// a better match. Scores are only comparable within one run.
	MatchScore float64 `json:"matchScore"`
}

// HasFormat reports whether the candidate offers the format.
func (c Candidate) HasFormat(f Format) bool {
	_, ok := c.Formats[f]
	return ok
}

// DownloadResult is a verified file fetched for a candidate.
type DownloadResult struct {
	Candidate Candidate `json:"candidate"`
	Path      string    `json:"path"`
	Format    Format    `json:"format"`
	Size      int64     `json:"size"`
}

// ConversionAttempt records one converter's outcome within a chain
// run. Skipped marks a converter whose capability was absent on the
// host; it was never invoked, which is distinct from a failure.
type ConversionAttempt struct {
	Converter  string `json:"converter"`
	InputPath  string `json:"inputPath"`
	OutputPath string `json:"outputPath,omitempty"`
	Skipped    bool   `json:"skipped,omitempty"`
	Err        string `json:"error,omitempty"`
}

// TranscriptSource tells where transcript segments came from.
type TranscriptSource string

const (
	TranscriptFromFile  TranscriptSource = "existing-file"
	TranscriptFromAudio TranscriptSource = "transcribed-audio"
)

// Segment is one unit of transcript text. Start and End are zero for
// untimed segments; ordering is always the reading order.
type Segment struct {
	Text  string        `json:"text"`
	Start time.Duration `json:"start,omitempty"`
	End   time.Duration `json:"end,omitempty"`
}

// Timed reports whether the segment carries timestamps.
func (s Segment) Timed() bool {
	return s.Start != 0 || s.End != 0
}

// Transcript is an ordered sequence of segments. Segment order must
// survive rendering unchanged.
type Transcript struct {
	Segments []Segment        `json:"segments"`
	Source   TranscriptSource `json:"source"`
}

// OutputArtifact is the externally visible result of a pipeline run.
type OutputArtifact struct {
	Path   string `json:"path"`
	Title  string `json:"title"`
	Author string `json:"author,omitempty"`
}
