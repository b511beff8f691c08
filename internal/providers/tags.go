package providers

import (
	"context"
	"time"

	"github.com/badgesmith/badgesmith/pkg/badge"
	"github.com/badgesmith/badgesmith/pkg/dispatch"
)

// Tags counts a repository's tags. Tag counts are not exposed as a single
// field anywhere, so it walks the paginated tag listing and reads the total
// off the last-page link.
type Tags struct{}

func (Tags) Name() string            { return "github/tags" }
func (Tags) Label() string           { return "tags" }
func (Tags) CacheTTL() time.Duration { return 15 * time.Minute }

func (Tags) Fetch(ctx context.Context, tk badge.Toolkit, params map[string]string) (any, error) {
	count, err := tk.Walker.CountViaLastPage(ctx, dispatch.Descriptor{
		Name: "github.tags",
		Path: "/repos/" + params["owner"] + "/" + params["repo"] + "/tags",
		ErrorMessages: map[dispatch.Kind]string{
			dispatch.KindNotFound: "repo not found",
		},
	})
	if err != nil {
		return nil, err
	}
	return count, nil
}

func (Tags) Transform(raw any) (any, error) {
	return raw, nil
}

func (Tags) Render(value any) badge.Badge {
	count, _ := value.(int)
	return badge.Badge{
		Label:   "tags",
		Message: badge.FormatMetric(count),
		Color:   badge.ColorBlue,
	}
}
