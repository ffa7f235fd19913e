package source

import (
	"sort"
	"strings"

	"github.com/rs/zerolog"

	"github.com/zenithu-s/book-downloader/internal/book"
)

// Selector ranks candidates and picks the one to download.
type Selector struct {
	priority map[book.Source]int
	logger   zerolog.Logger
}

// NewSelector creates a selector with the given source priority order
// (earlier = preferred). Known sources missing from the list rank after
// the listed ones.
func NewSelector(priority []string, logger zerolog.Logger) *Selector {
	order := make(map[book.Source]int, len(book.KnownSources))
	for i, name := range priority {
		src := book.Source(name)
		if _, seen := order[src]; !seen && book.IsKnownSource(src) {
			order[src] = i
		}
	}
	next := len(priority)
	for _, src := range book.KnownSources {
		if _, ok := order[src]; !ok {
			order[src] = next
			next++
		}
	}

	return &Selector{
		priority: order,
		logger:   logger.With().Str("component", "selector").Logger(),
	}
}

// Select ranks the candidates and returns the best one. author, when
// non-empty, filters candidates to those whose author contains it
// case-insensitively before ranking. Returns ErrNoCandidateFound when
// nothing survives.
func (s *Selector) Select(candidates []book.Candidate, author string) (book.Candidate, error) {
	ranked := s.Rank(candidates, author)
	if len(ranked) == 0 {
		return book.Candidate{}, book.ErrNoCandidateFound
	}

	best := ranked[0]
	s.logger.Info().
		Str("source", string(best.Source)).
		Str("title", best.Title).
		Bool("pdf", best.HasFormat(book.FormatPDF)).
		Float64("score", best.MatchScore).
		Msg("Selected candidate")

	return best, nil
}

// Rank orders candidates by: PDF availability, then source-assigned
// match score, then configured source priority. The sort is stable, so
// candidates equal on all three keys keep their input order.
func (s *Selector) Rank(candidates []book.Candidate, author string) []book.Candidate {
	ranked := s.filterByAuthor(candidates, author)

	sort.SliceStable(ranked, func(i, j int) bool {
		a, b := ranked[i], ranked[j]

		aPDF, bPDF := a.HasFormat(book.FormatPDF), b.HasFormat(book.FormatPDF)
		if aPDF != bPDF {
			return aPDF
		}
		if a.MatchScore != b.MatchScore {
			return a.MatchScore > b.MatchScore
		}
		return s.priority[a.Source] < s.priority[b.Source]
	})

	return ranked
}

// filterByAuthor keeps candidates whose author contains the requested
// author, case-insensitively. An empty filter keeps everything.
func (s *Selector) filterByAuthor(candidates []book.Candidate, author string) []book.Candidate {
	if author == "" {
		return append([]book.Candidate(nil), candidates...)
	}

	needle := strings.ToLower(author)
	kept := make([]book.Candidate, 0, len(candidates))
	for _, c := range candidates {
		if strings.Contains(strings.ToLower(c.Author), needle) {
			kept = append(kept, c)
		}
	}
	return kept
}
