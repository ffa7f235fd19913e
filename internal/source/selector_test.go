package source

import (
	"errors"
	"testing"

	"github.com/zenithu-s/book-downloader/internal/book"
	"github.com/zenithu-s/book-downloader/internal/testutil"
)

func makeCandidate(src book.Source, title, author string, score float64, formats ...book.Format) book.Candidate {
	c := book.Candidate{
		Source:     src,
		Title:      title,
		Author:     author,
		Formats:    make(map[book.Format]string, len(formats)),
		MatchScore: score,
	}
	for _, f := range formats {
		c.Formats[f] = "https://example.com/" + title + "." + string(f)
	}
	return c
}

func defaultSelector(t *testing.T) *Selector {
	t.Helper()
	return NewSelector([]string{"archive", "gutenberg", "standard"}, testutil.NopLogger())
}

// A PDF candidate must win over any non-PDF candidate, regardless of score.
func TestSelectPrefersPDF(t *testing.T) {
	sel := defaultSelector(t)

	candidates := []book.Candidate{
		makeCandidate(book.SourceArchive, "high score epub", "A", 10, book.FormatEPUB),
		makeCandidate(book.SourceGutenberg, "low score pdf", "A", 1, book.FormatPDF),
	}

	best, err := sel.Select(candidates, "")
	if err != nil {
		t.Fatalf("Select() error = %v", err)
	}
	if !best.HasFormat(book.FormatPDF) {
		t.Errorf("selected %q without PDF; want the PDF candidate", best.Title)
	}
}

func TestSelectHigherScoreWins(t *testing.T) {
	sel := defaultSelector(t)

	candidates := []book.Candidate{
		makeCandidate(book.SourceArchive, "weaker", "A", 2, book.FormatPDF),
		makeCandidate(book.SourceArchive, "stronger", "A", 5, book.FormatPDF),
	}

	best, err := sel.Select(candidates, "")
	if err != nil {
		t.Fatalf("Select() error = %v", err)
	}
	if best.Title != "stronger" {
		t.Errorf("selected %q, want %q", best.Title, "stronger")
	}
}

// Tie-scored non-PDF candidates resolve by configured source priority.
func TestSelectTieBreaksBySourcePriority(t *testing.T) {
	candidates := []book.Candidate{
		makeCandidate(book.SourceGutenberg, "from gutenberg", "A", 3, book.FormatEPUB),
		makeCandidate(book.SourceArchive, "from archive", "A", 3, book.FormatEPUB),
	}

	tests := []struct {
		name     string
		priority []string
		want     book.Source
	}{
		{"default order prefers archive", []string{"archive", "gutenberg", "standard"}, book.SourceArchive},
		{"reversed order prefers gutenberg", []string{"gutenberg", "archive", "standard"}, book.SourceGutenberg},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sel := NewSelector(tt.priority, testutil.NopLogger())
			best, err := sel.Select(candidates, "")
			if err != nil {
				t.Fatalf("Select() error = %v", err)
			}
			if best.Source != tt.want {
				t.Errorf("selected source %q, want %q", best.Source, tt.want)
			}
		})
	}
}

func TestSelectAuthorFilter(t *testing.T) {
	sel := defaultSelector(t)

	candidates := []book.Candidate{
		makeCandidate(book.SourceArchive, "wrong author", "Charles Dickens", 9, book.FormatPDF),
		makeCandidate(book.SourceGutenberg, "right author", "Jane Austen", 1, book.FormatEPUB),
	}

	best, err := sel.Select(candidates, "austen")
	if err != nil {
		t.Fatalf("Select() error = %v", err)
	}
	if best.Title != "right author" {
		t.Errorf("selected %q, want the Austen candidate", best.Title)
	}
}

func TestSelectAuthorFilterEliminatesAll(t *testing.T) {
	sel := defaultSelector(t)

	candidates := []book.Candidate{
		makeCandidate(book.SourceArchive, "t", "Charles Dickens", 1, book.FormatPDF),
	}

	_, err := sel.Select(candidates, "tolstoy")
	if !errors.Is(err, book.ErrNoCandidateFound) {
		t.Errorf("Select() error = %v, want ErrNoCandidateFound", err)
	}
}

func TestSelectEmpty(t *testing.T) {
	sel := defaultSelector(t)

	_, err := sel.Select(nil, "")
	if !errors.Is(err, book.ErrNoCandidateFound) {
		t.Errorf("Select() error = %v, want ErrNoCandidateFound", err)
	}
}

// Candidates equal on every ranking key keep their input order.
func TestRankStableOnEqualKeys(t *testing.T) {
	sel := defaultSelector(t)

	candidates := []book.Candidate{
		makeCandidate(book.SourceArchive, "first", "A", 2, book.FormatEPUB),
		makeCandidate(book.SourceArchive, "second", "A", 2, book.FormatEPUB),
		makeCandidate(book.SourceArchive, "third", "A", 2, book.FormatEPUB),
	}

	ranked := sel.Rank(candidates, "")
	want := []string{"first", "second", "third"}
	for i, w := range want {
		if ranked[i].Title != w {
			t.Errorf("ranked[%d] = %q, want %q", i, ranked[i].Title, w)
		}
	}
}

func TestRankDoesNotMutateInput(t *testing.T) {
	sel := defaultSelector(t)

	candidates := []book.Candidate{
		makeCandidate(book.SourceGutenberg, "epub", "A", 1, book.FormatEPUB),
		makeCandidate(book.SourceArchive, "pdf", "A", 1, book.FormatPDF),
	}

	sel.Rank(candidates, "")

	if candidates[0].Title != "epub" || candidates[1].Title != "pdf" {
		t.Errorf("Rank mutated its input: %v", candidates)
	}
}

func TestNewSelectorUnknownPriorityEntries(t *testing.T) {
	// Unknown names are ignored; known sources missing from the list
	// still get distinct ranks.
	sel := NewSelector([]string{"bogus", "standard"}, testutil.NopLogger())

	candidates := []book.Candidate{
		makeCandidate(book.SourceArchive, "from archive", "A", 1, book.FormatEPUB),
		makeCandidate(book.SourceStandardEbooks, "from standard", "A", 1, book.FormatEPUB),
	}

	best, err := sel.Select(candidates, "")
	if err != nil {
		t.Fatalf("Select() error = %v", err)
	}
	if best.Source != book.SourceStandardEbooks {
		t.Errorf("selected %q, want standard (listed) over archive (unlisted)", best.Source)
	}
}
