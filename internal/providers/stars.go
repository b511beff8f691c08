// Package providers holds the badge provider bundles. Each bundle is an
// independent implementation of the fetch/transform/render capabilities;
// everything upstream-related goes through the shared dispatch layer.
package providers

import (
	"context"
	"time"

	"github.com/badgesmith/badgesmith/pkg/badge"
	"github.com/badgesmith/badgesmith/pkg/dispatch"
)

const starsQuery = `query($owner: String!, $name: String!) {
  repository(owner: $owner, name: $name) {
    stargazerCount
  }
}`

var starsSchema = dispatch.MustCompileSchema(`{
	"type": "object",
	"required": ["data"],
	"properties": {
		"data": {
			"type": "object",
			"required": ["repository"],
			"properties": {
				"repository": {
					"type": "object",
					"required": ["stargazerCount"],
					"properties": {
						"stargazerCount": {"type": "integer"}
					}
				}
			}
		}
	}
}`)

// Stars shows a repository's stargazer count via the query surface.
type Stars struct{}

func (Stars) Name() string            { return "github/stars" }
func (Stars) Label() string           { return "stars" }
func (Stars) CacheTTL() time.Duration { return 5 * time.Minute }

func (Stars) Fetch(ctx context.Context, tk badge.Toolkit, params map[string]string) (any, error) {
	result, err := tk.Dispatcher.RequestQuery(ctx, dispatch.Descriptor{
		Name:     "github.stars",
		Document: starsQuery,
		Variables: map[string]any{
			"owner": params["owner"],
			"name":  params["repo"],
		},
		Schema: starsSchema,
		ErrorMessages: map[dispatch.Kind]string{
			dispatch.KindNotFound: "repo not found",
		},
	})
	if err != nil {
		return nil, err
	}

	var payload struct {
		Data struct {
			Repository struct {
				StargazerCount int `json:"stargazerCount"`
			} `json:"repository"`
		} `json:"data"`
	}
	if err := result.Decode(&payload); err != nil {
		return nil, err
	}
	return payload.Data.Repository.StargazerCount, nil
}

func (Stars) Transform(raw any) (any, error) {
	return raw, nil
}

func (Stars) Render(value any) badge.Badge {
	count, _ := value.(int)
	return badge.Badge{
		Label:   "stars",
		Message: badge.FormatMetric(count),
		Color:   badge.ColorBlue,
	}
}
