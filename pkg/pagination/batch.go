package pagination

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/badgesmith/badgesmith/pkg/dispatch"
	"github.com/rs/zerolog"
)

// BatchConfig holds batch fetcher configuration.
type BatchConfig struct {
	// MaxConcurrency is the maximum number of parallel page fetches. Kept
	// modest: every worker burns pool quota.
	MaxConcurrency int

	// PerPage is the page size requested from the upstream.
	PerPage int

	// Timeout per page fetch.
	Timeout time.Duration
}

// DefaultBatchConfig returns safe defaults.
func DefaultBatchConfig() BatchConfig {
	return BatchConfig{
		MaxConcurrency: 4,
		PerPage:        100,
		Timeout:        15 * time.Second,
	}
}

// pageResult is the outcome of fetching a single page.
type pageResult struct {
	PageNumber int
	Data       []byte
	Err        error
}

// BatchFetcher fetches all pages of a link-paginated listing in parallel.
type BatchFetcher struct {
	dispatcher Dispatcher
	config     BatchConfig
	logger     zerolog.Logger
}

// NewBatchFetcher creates a batch fetcher over the given dispatcher.
func NewBatchFetcher(d Dispatcher, config BatchConfig, logger zerolog.Logger) *BatchFetcher {
	if config.MaxConcurrency <= 0 {
		config.MaxConcurrency = 4
	}
	if config.PerPage <= 0 {
		config.PerPage = 100
	}
	if config.Timeout <= 0 {
		config.Timeout = 15 * time.Second
	}
	return &BatchFetcher{
		dispatcher: d,
		config:     config,
		logger:     logger.With().Str("component", "pagination").Logger(),
	}
}

// FetchAllPages fetches every page of the described listing using a worker
// pool. Returns a map of page number to raw page body; on a worker error the
// pages fetched so far are returned alongside the error.
func (bf *BatchFetcher) FetchAllPages(ctx context.Context, desc dispatch.Descriptor) (map[int][]byte, error) {
	start := time.Now()

	// First page also tells us the total via the Link header.
	firstBody, totalPages, err := bf.fetchPage(ctx, desc, 1)
	if err != nil {
		return nil, fmt.Errorf("fetch first page: %w", err)
	}

	bf.logger.Debug().
		Str("call", desc.Name).
		Int("total_pages", totalPages).
		Msg("Starting parallel page fetch")

	results := map[int][]byte{1: firstBody}
	if totalPages <= 1 {
		return results, nil
	}

	var resultsMu sync.Mutex

	pageQueue := make(chan int, totalPages)
	pageResults := make(chan pageResult, totalPages)

	// Page 1 is already fetched.
	go func() {
		for page := 2; page <= totalPages; page++ {
			pageQueue <- page
		}
		close(pageQueue)
	}()

	var wg sync.WaitGroup
	for i := 0; i < bf.config.MaxConcurrency; i++ {
		wg.Add(1)
		go bf.worker(ctx, desc, pageQueue, pageResults, &wg)
	}
	go func() {
		wg.Wait()
		close(pageResults)
	}()

	var firstErr error
	fetched := 1
	for result := range pageResults {
		if result.Err != nil {
			bf.logger.Warn().
				Err(result.Err).
				Int("page", result.PageNumber).
				Msg("Page fetch failed")
			if firstErr == nil {
				firstErr = result.Err
			}
			continue
		}
		resultsMu.Lock()
		results[result.PageNumber] = result.Data
		fetched++
		resultsMu.Unlock()
	}

	if firstErr != nil {
		return results, fmt.Errorf("partial listing (%d/%d pages): %w", fetched, totalPages, firstErr)
	}

	bf.logger.Debug().
		Str("call", desc.Name).
		Int("pages", fetched).
		Dur("duration", time.Since(start)).
		Msg("Fetch complete")

	return results, nil
}

// worker drains the page queue until it closes or the context ends.
func (bf *BatchFetcher) worker(ctx context.Context, desc dispatch.Descriptor, pageQueue <-chan int, results chan<- pageResult, wg *sync.WaitGroup) {
	defer wg.Done()

	for pageNum := range pageQueue {
		select {
		case <-ctx.Done():
			return
		default:
		}

		pageCtx, cancel := context.WithTimeout(ctx, bf.config.Timeout)
		data, _, err := bf.fetchPage(pageCtx, desc, pageNum)
		cancel()

		results <- pageResult{PageNumber: pageNum, Data: data, Err: err}
		if err != nil {
			return
		}
	}
}

// fetchPage fetches one page and reads the total page count from the Link
// header. A listing with no Link header is a single page.
func (bf *BatchFetcher) fetchPage(ctx context.Context, desc dispatch.Descriptor, page int) ([]byte, int, error) {
	desc.Query = withPageParams(desc.Query, page, bf.config.PerPage)

	result, err := bf.dispatcher.RequestResource(ctx, desc)
	if err != nil {
		return nil, 0, err
	}

	totalPages := 1
	if link := result.Header.Get("Link"); link != "" {
		if last, found, perr := lastPageNumber(link); perr == nil && found {
			totalPages = last
		}
	}
	return result.Body, totalPages, nil
}
