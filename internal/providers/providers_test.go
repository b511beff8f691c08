package providers

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/badgesmith/badgesmith/internal/testutil"
	"github.com/badgesmith/badgesmith/pkg/badge"
	"github.com/badgesmith/badgesmith/pkg/credential"
	"github.com/badgesmith/badgesmith/pkg/dispatch"
	"github.com/badgesmith/badgesmith/pkg/pagination"
)

func newToolkit(t *testing.T, mock *testutil.MockUpstream) badge.Toolkit {
	t.Helper()

	logger := zerolog.Nop()
	pool := credential.NewPool([]credential.Spec{
		{ID: "test", Secret: "token-1", Scopes: []credential.Scope{credential.ScopeResource, credential.ScopeQuery}},
	}, credential.Config{}, logger)

	dispatcher, err := dispatch.New(pool, dispatch.Config{
		BaseURL:   mock.URL(),
		UserAgent: "badgesmith-test",
	}, logger)
	require.NoError(t, err)

	return badge.Toolkit{
		Dispatcher: dispatcher,
		Walker:     pagination.NewWalker(dispatcher, logger),
	}
}

func TestStars_Fetch(t *testing.T) {
	mock := testutil.NewMockUpstream()
	defer mock.Close()

	mock.SetResponse("/graphql", testutil.NewQueryDataResponse(
		`{"repository": {"stargazerCount": 1234}}`,
	))

	tk := newToolkit(t, mock)
	raw, err := Stars{}.Fetch(context.Background(), tk, map[string]string{
		"owner": "octocat",
		"repo":  "hello-world",
	})
	require.NoError(t, err)
	assert.Equal(t, 1234, raw)
}

func TestStars_RepoMissing(t *testing.T) {
	mock := testutil.NewMockUpstream()
	defer mock.Close()

	mock.SetResponse("/graphql", testutil.NewQueryErrorResponse(
		"NOT_FOUND", "Could not resolve to a Repository",
	))

	tk := newToolkit(t, mock)
	_, err := Stars{}.Fetch(context.Background(), tk, map[string]string{
		"owner": "octocat",
		"repo":  "gone",
	})
	require.Error(t, err)

	failure, ok := dispatch.AsFailure(err)
	require.True(t, ok)
	assert.Equal(t, dispatch.KindNotFound, failure.Kind)
	assert.Equal(t, "repo not found", failure.Message)
}

func TestStars_SchemaMismatch(t *testing.T) {
	mock := testutil.NewMockUpstream()
	defer mock.Close()

	// stargazerCount arrives as a string: contract violation, not a fault.
	mock.SetResponse("/graphql", testutil.NewQueryDataResponse(
		`{"repository": {"stargazerCount": "many"}}`,
	))

	tk := newToolkit(t, mock)
	_, err := Stars{}.Fetch(context.Background(), tk, map[string]string{
		"owner": "octocat",
		"repo":  "hello-world",
	})
	require.Error(t, err)

	failure, ok := dispatch.AsFailure(err)
	require.True(t, ok)
	assert.Equal(t, dispatch.KindInvalidResponse, failure.Kind)
}

func TestStars_Render(t *testing.T) {
	b := Stars{}.Render(1234)
	assert.Equal(t, badge.Badge{Label: "stars", Message: "1.2k", Color: badge.ColorBlue}, b)
}

func TestTags_Fetch(t *testing.T) {
	mock := testutil.NewMockUpstream()
	defer mock.Close()

	path := "/repos/octocat/hello-world/tags"
	mock.SetResponse(path, testutil.NewPaginatedResponse(
		`[{"name": "v1.0.0"}]`, mock.URL()+path, 42,
	))

	tk := newToolkit(t, mock)
	raw, err := Tags{}.Fetch(context.Background(), tk, map[string]string{
		"owner": "octocat",
		"repo":  "hello-world",
	})
	require.NoError(t, err)
	assert.Equal(t, 42, raw)
	assert.Equal(t, 1, mock.GetRequestCount())
}

func TestTags_SinglePage(t *testing.T) {
	mock := testutil.NewMockUpstream()
	defer mock.Close()

	mock.SetResponse("/repos/octocat/tiny/tags", testutil.NewHealthyResponse(`[]`))

	tk := newToolkit(t, mock)
	raw, err := Tags{}.Fetch(context.Background(), tk, map[string]string{
		"owner": "octocat",
		"repo":  "tiny",
	})
	require.NoError(t, err)
	assert.Equal(t, 0, raw)
}

func TestTags_RepoMissing(t *testing.T) {
	mock := testutil.NewMockUpstream()
	defer mock.Close()

	mock.SetResponse("/repos/octocat/gone/tags", testutil.NewNotFoundResponse())

	tk := newToolkit(t, mock)
	_, err := Tags{}.Fetch(context.Background(), tk, map[string]string{
		"owner": "octocat",
		"repo":  "gone",
	})
	require.Error(t, err)

	failure, ok := dispatch.AsFailure(err)
	require.True(t, ok)
	assert.Equal(t, dispatch.KindNotFound, failure.Kind)
	assert.Equal(t, "repo not found", failure.Message)
}

func TestProviders_CacheTTL(t *testing.T) {
	assert.Equal(t, 5*time.Minute, Stars{}.CacheTTL())
	assert.Equal(t, 15*time.Minute, Tags{}.CacheTTL())
}
