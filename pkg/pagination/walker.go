package pagination

import (
	"context"
	"encoding/json"
	"net/url"
	"strconv"

	"github.com/badgesmith/badgesmith/pkg/dispatch"
	"github.com/rs/zerolog"
)

// Dispatcher is the slice of the dispatch layer pagination rides on.
type Dispatcher interface {
	RequestResource(ctx context.Context, desc dispatch.Descriptor) (*dispatch.Result, error)
}

// Walker resolves item counts and full listings from link-paginated
// endpoints.
type Walker struct {
	dispatcher Dispatcher
	logger     zerolog.Logger
}

// NewWalker creates a pagination walker over the given dispatcher.
func NewWalker(d Dispatcher, logger zerolog.Logger) *Walker {
	return &Walker{
		dispatcher: d,
		logger:     logger.With().Str("component", "pagination").Logger(),
	}
}

// CountViaLastPage resolves the total item count of a listing that only
// exposes it implicitly through link pagination. It requests a page size of
// one and reads the last-page number off the Link header: with one item per
// page, the last page number is the count. It never pages through the
// result set; when no pagination metadata is present the count is the number
// of items actually returned (zero or one).
func (w *Walker) CountViaLastPage(ctx context.Context, desc dispatch.Descriptor) (int, error) {
	desc.Query = withPageParams(desc.Query, 1, 1)

	result, err := w.dispatcher.RequestResource(ctx, desc)
	if err != nil {
		return 0, err
	}

	if link := result.Header.Get("Link"); link != "" {
		last, found, perr := lastPageNumber(link)
		if perr != nil {
			// Broken pagination metadata is a provider contract violation,
			// same as a bad payload shape.
			return 0, &dispatch.Failure{
				Kind:    dispatch.KindInvalidResponse,
				Message: "unparseable pagination metadata",
				Err:     perr,
			}
		}
		if found {
			w.logger.Debug().
				Str("call", desc.Name).
				Int("count", last).
				Msg("Count resolved from pagination link")
			return last, nil
		}
	}

	var items []json.RawMessage
	if err := json.Unmarshal(result.Body, &items); err != nil {
		return 0, &dispatch.Failure{
			Kind:    dispatch.KindInvalidResponse,
			Message: "listing body is not an array",
			Err:     err,
		}
	}
	return len(items), nil
}

// withPageParams returns a copy of q with page/per_page set, leaving the
// descriptor's own values untouched.
func withPageParams(q url.Values, page, perPage int) url.Values {
	out := url.Values{}
	for k, vs := range q {
		out[k] = append([]string(nil), vs...)
	}
	out.Set("page", strconv.Itoa(page))
	out.Set("per_page", strconv.Itoa(perPage))
	return out
}
