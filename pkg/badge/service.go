package badge

import (
	"context"
	"encoding/json"

	"github.com/badgesmith/badgesmith/pkg/cache"
	"github.com/badgesmith/badgesmith/pkg/dispatch"
	"github.com/badgesmith/badgesmith/pkg/pagination"
	"github.com/rs/zerolog"
)

// Service renders badges: cache lookup, then fetch → transform → render,
// with classified failures turned into error badges. One service instance
// serves all concurrent badge requests.
type Service struct {
	toolkit Toolkit
	cache   *cache.Manager
	logger  zerolog.Logger
}

// NewService creates a badge service. cacheManager may be nil to disable
// caching.
func NewService(dispatcher *dispatch.Dispatcher, cacheManager *cache.Manager, logger zerolog.Logger) *Service {
	return &Service{
		toolkit: Toolkit{
			Dispatcher: dispatcher,
			Walker:     pagination.NewWalker(dispatcher, logger),
		},
		cache:  cacheManager,
		logger: logger.With().Str("component", "badge").Logger(),
	}
}

// Render produces the badge for one provider and parameter set. It always
// returns a badge: upstream failures render as error badges and a broken
// cache is treated as a miss.
func (s *Service) Render(ctx context.Context, p Provider, params map[string]string) Badge {
	key := cache.Key{Provider: p.Name(), Params: params}

	if s.cache != nil {
		if entry, err := s.cache.Get(ctx, key); err == nil {
			var b Badge
			if err := json.Unmarshal(entry.Data, &b); err == nil {
				return b
			}
			// Corrupt entry: drop it and render fresh.
			_ = s.cache.Delete(ctx, key)
		}
	}

	raw, err := p.Fetch(ctx, s.toolkit, params)
	if err != nil {
		s.logger.Warn().
			Err(err).
			Str("provider", p.Name()).
			Msg("Badge fetch failed")
		return FailureBadge(p.Label(), err)
	}

	value, err := p.Transform(raw)
	if err != nil {
		s.logger.Warn().
			Err(err).
			Str("provider", p.Name()).
			Msg("Badge transform failed")
		return FailureBadge(p.Label(), &dispatch.Failure{
			Kind:    dispatch.KindInvalidResponse,
			Message: "unexpected upstream data",
			Err:     err,
		})
	}

	b := p.Render(value)

	if s.cache != nil {
		if data, err := json.Marshal(b); err == nil {
			if err := s.cache.Set(ctx, key, data, p.CacheTTL()); err != nil {
				s.logger.Warn().Err(err).Str("provider", p.Name()).Msg("Badge cache store failed")
			}
		}
	}

	return b
}
