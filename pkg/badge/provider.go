package badge

import (
	"context"
	"time"

	"github.com/badgesmith/badgesmith/pkg/dispatch"
	"github.com/badgesmith/badgesmith/pkg/pagination"
)

// Toolkit is what a provider's Fetch uses to talk upstream. Providers never
// hold transport state of their own; everything shared lives behind the
// dispatcher.
type Toolkit struct {
	Dispatcher *dispatch.Dispatcher
	Walker     *pagination.Walker
}

// Fetcher retrieves raw upstream data for one badge request.
type Fetcher interface {
	Fetch(ctx context.Context, tk Toolkit, params map[string]string) (any, error)
}

// Transformer reduces fetched data to the value the badge shows.
type Transformer interface {
	Transform(raw any) (any, error)
}

// Renderer formats a transformed value into the badge triple.
type Renderer interface {
	Render(value any) Badge
}

// Provider is one badge kind: an independent bundle of the three
// capabilities plus routing metadata. Bundles are stateless values
// registered once at startup; the service composes them per request.
type Provider interface {
	Fetcher
	Transformer
	Renderer

	// Name is the route name, e.g. "github/stars".
	Name() string

	// Label is the badge's left-hand text.
	Label() string

	// CacheTTL is how long a rendered badge may be served from cache.
	CacheTTL() time.Duration
}
