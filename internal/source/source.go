// Package source provides search orchestration across book sources.
package source

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/zenithu-s/book-downloader/internal/book"
)

// Adapter searches one book source. Implementations return a finite,
// possibly empty candidate list and must not panic on zero results.
type Adapter interface {
	Name() string
	Search(ctx context.Context, query book.SearchQuery) ([]book.Candidate, error)
}

// SourceError represents an error from a specific source during search.
type SourceError struct {
	Source string `json:"source"`
	Error  string `json:"error"`
}

// Result contains aggregated search results.
type Result struct {
	Candidates   []book.Candidate `json:"candidates"`
	SourcesUsed  int              `json:"sourcesSearched"`
	SourceErrors []SourceError    `json:"errors,omitempty"`
}

// searchTaskResult represents the result from a single source search.
type searchTaskResult struct {
	source     string
	candidates []book.Candidate
	err        error
}

// Service orchestrates searches across the configured sources.
type Service struct {
	adapters []Adapter
	selector *Selector
	timeout  time.Duration
	logger   zerolog.Logger
}

// NewService creates a search service over the given adapters. timeout
// bounds each adapter's search individually.
func NewService(adapters []Adapter, selector *Selector, timeout time.Duration, logger zerolog.Logger) *Service {
	return &Service{
		adapters: adapters,
		selector: selector,
		timeout:  timeout,
		logger:   logger.With().Str("component", "search").Logger(),
	}
}

// Search executes a search across the sources the query enables. A
// failing source contributes zero candidates and an entry in
// SourceErrors; it never fails the search as a whole.
func (s *Service) Search(ctx context.Context, query book.SearchQuery) (*Result, error) {
	adapters := s.enabledAdapters(query)
	if len(adapters) == 0 {
		return &Result{Candidates: []book.Candidate{}}, nil
	}

	s.logger.Info().
		Int("sourceCount", len(adapters)).
		Str("title", query.Title).
		Str("author", query.Author).
		Msg("Starting search across sources")

	result := s.dispatchSearches(ctx, adapters, query)

	s.logger.Info().
		Int("totalResults", len(result.Candidates)).
		Int("sourcesUsed", result.SourcesUsed).
		Int("errors", len(result.SourceErrors)).
		Msg("Search completed")

	return result, nil
}

// Find searches the enabled sources and selects the best candidate.
func (s *Service) Find(ctx context.Context, query book.SearchQuery) (book.Candidate, error) {
	result, err := s.Search(ctx, query)
	if err != nil {
		return book.Candidate{}, err
	}
	return s.selector.Select(result.Candidates, query.Author)
}

// enabledAdapters filters the adapters to those the query asks for.
func (s *Service) enabledAdapters(query book.SearchQuery) []Adapter {
	enabled := make([]Adapter, 0, len(s.adapters))
	for _, a := range s.adapters {
		if query.WantsSite(book.Source(a.Name())) {
			enabled = append(enabled, a)
		}
	}
	return enabled
}

// dispatchSearches runs searches in parallel across sources.
func (s *Service) dispatchSearches(ctx context.Context, adapters []Adapter, query book.SearchQuery) *Result {
	var wg sync.WaitGroup
	resultsChan := make(chan searchTaskResult, len(adapters))

	for _, a := range adapters {
		wg.Add(1)
		go func(adapter Adapter) {
			defer wg.Done()
			resultsChan <- s.searchSource(ctx, adapter, query)
		}(a)
	}

	// Wait and collect results
	go func() {
		wg.Wait()
		close(resultsChan)
	}()

	return s.aggregateResults(resultsChan)
}

// searchSource performs a search on a single source under its own
// timeout.
func (s *Service) searchSource(ctx context.Context, adapter Adapter, query book.SearchQuery) searchTaskResult {
	result := searchTaskResult{source: adapter.Name()}

	searchCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := time.Now()
	candidates, err := adapter.Search(searchCtx, query)
	elapsed := time.Since(start)

	if err != nil {
		result.err = err
		s.logger.Warn().
			Err(err).
			Str("source", adapter.Name()).
			Dur("elapsed", elapsed).
			Msg("Source search failed")
		return result
	}

	result.candidates = candidates

	s.logger.Debug().
		Str("source", adapter.Name()).
		Int("results", len(candidates)).
		Dur("elapsed", elapsed).
		Msg("Search completed for source")

	return result
}

// aggregateResults collects task results from the channel.
func (s *Service) aggregateResults(resultsChan <-chan searchTaskResult) *Result {
	result := &Result{Candidates: []book.Candidate{}}

	for task := range resultsChan {
		result.SourcesUsed++
		if task.err != nil {
			result.SourceErrors = append(result.SourceErrors, SourceError{
				Source: task.source,
				Error:  task.err.Error(),
			})
			continue
		}
		result.Candidates = append(result.Candidates, task.candidates...)
	}

	return result
}
