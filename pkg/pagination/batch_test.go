package pagination

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"testing"

	"github.com/badgesmith/badgesmith/pkg/dispatch"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

// pagedDispatcher serves a fixed number of pages and records which were hit.
type pagedDispatcher struct {
	mu         sync.Mutex
	totalPages int
	failPage   int
	served     []int
}

func (p *pagedDispatcher) RequestResource(_ context.Context, desc dispatch.Descriptor) (*dispatch.Result, error) {
	page := 1
	fmt.Sscanf(desc.Query.Get("page"), "%d", &page)

	p.mu.Lock()
	p.served = append(p.served, page)
	p.mu.Unlock()

	if p.failPage != 0 && page == p.failPage {
		return nil, &dispatch.Failure{Kind: dispatch.KindTransientServerError, Message: "boom"}
	}

	header := http.Header{}
	if p.totalPages > 1 {
		header.Set("Link", fmt.Sprintf(`<https://api.example.com/x?page=%d>; rel="last"`, p.totalPages))
	}
	body := fmt.Sprintf(`[{"page": %d}]`, page)
	return &dispatch.Result{StatusCode: 200, Header: header, Body: []byte(body)}, nil
}

func TestFetchAllPages_SinglePage(t *testing.T) {
	d := &pagedDispatcher{totalPages: 1}
	bf := NewBatchFetcher(d, DefaultBatchConfig(), zerolog.Nop())

	pages, err := bf.FetchAllPages(context.Background(), dispatch.Descriptor{Path: "/x"})
	require.NoError(t, err)
	require.Len(t, pages, 1)
	require.JSONEq(t, `[{"page": 1}]`, string(pages[1]))
}

func TestFetchAllPages_AllPagesFetched(t *testing.T) {
	d := &pagedDispatcher{totalPages: 7}
	bf := NewBatchFetcher(d, BatchConfig{MaxConcurrency: 3, PerPage: 10}, zerolog.Nop())

	pages, err := bf.FetchAllPages(context.Background(), dispatch.Descriptor{Path: "/x"})
	require.NoError(t, err)
	require.Len(t, pages, 7)
	for page := 1; page <= 7; page++ {
		require.Contains(t, pages, page)
	}
}

func TestFetchAllPages_PartialOnWorkerError(t *testing.T) {
	d := &pagedDispatcher{totalPages: 5, failPage: 3}
	bf := NewBatchFetcher(d, BatchConfig{MaxConcurrency: 1, PerPage: 10}, zerolog.Nop())

	pages, err := bf.FetchAllPages(context.Background(), dispatch.Descriptor{Path: "/x"})
	require.Error(t, err)

	failure, ok := dispatch.AsFailure(err)
	require.True(t, ok)
	require.Equal(t, dispatch.KindTransientServerError, failure.Kind)

	// Pages fetched before the failure are returned.
	require.Contains(t, pages, 1)
	require.Contains(t, pages, 2)
	require.NotContains(t, pages, 3)
}

func TestFetchAllPages_FirstPageFailureIsFatal(t *testing.T) {
	d := &pagedDispatcher{totalPages: 5, failPage: 1}
	bf := NewBatchFetcher(d, DefaultBatchConfig(), zerolog.Nop())

	pages, err := bf.FetchAllPages(context.Background(), dispatch.Descriptor{Path: "/x"})
	require.Error(t, err)
	require.Nil(t, pages)
}
