package badge_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/badgesmith/badgesmith/internal/testutil"
	"github.com/badgesmith/badgesmith/pkg/badge"
	"github.com/badgesmith/badgesmith/pkg/credential"
	"github.com/badgesmith/badgesmith/pkg/dispatch"
)

// countProvider renders the item count of a JSON array endpoint.
type countProvider struct {
	path         string
	transformErr error
}

func (p countProvider) Name() string            { return "test/count" }
func (p countProvider) Label() string           { return "items" }
func (p countProvider) CacheTTL() time.Duration { return time.Minute }

func (p countProvider) Fetch(ctx context.Context, tk badge.Toolkit, params map[string]string) (any, error) {
	result, err := tk.Dispatcher.RequestResource(ctx, dispatch.Descriptor{
		Name: "test.count",
		Path: p.path,
	})
	if err != nil {
		return nil, err
	}
	var items []any
	if err := result.Decode(&items); err != nil {
		return nil, err
	}
	return len(items), nil
}

func (p countProvider) Transform(raw any) (any, error) {
	if p.transformErr != nil {
		return nil, p.transformErr
	}
	return raw, nil
}

func (p countProvider) Render(value any) badge.Badge {
	count, _ := value.(int)
	return badge.Badge{
		Label:   p.Label(),
		Message: badge.FormatMetric(count),
		Color:   badge.ColorGreen,
	}
}

func newService(t *testing.T, mock *testutil.MockUpstream) *badge.Service {
	t.Helper()

	logger := zerolog.Nop()
	pool := credential.NewPool([]credential.Spec{
		{ID: "test", Secret: "token-1", Scopes: []credential.Scope{credential.ScopeResource}},
	}, credential.Config{}, logger)

	dispatcher, err := dispatch.New(pool, dispatch.Config{
		BaseURL:        mock.URL(),
		UserAgent:      "badgesmith-test",
		InitialBackoff: time.Millisecond,
		MaxBackoff:     5 * time.Millisecond,
	}, logger)
	if err != nil {
		t.Fatalf("dispatch.New: %v", err)
	}

	return badge.NewService(dispatcher, nil, logger)
}

func TestServiceRender_Success(t *testing.T) {
	mock := testutil.NewMockUpstream()
	defer mock.Close()
	mock.SetResponse("/items", testutil.NewHealthyResponse(`[{}, {}, {}]`))

	svc := newService(t, mock)
	b := svc.Render(context.Background(), countProvider{path: "/items"}, nil)

	want := badge.Badge{Label: "items", Message: "3", Color: badge.ColorGreen}
	if b != want {
		t.Errorf("Render() = %+v, want %+v", b, want)
	}
}

func TestServiceRender_NotFoundBecomesErrorBadge(t *testing.T) {
	mock := testutil.NewMockUpstream()
	defer mock.Close()
	mock.SetResponse("/items", testutil.NewNotFoundResponse())

	svc := newService(t, mock)
	b := svc.Render(context.Background(), countProvider{path: "/items"}, nil)

	if b.Color != badge.ColorRed {
		t.Errorf("Color = %q, want %q", b.Color, badge.ColorRed)
	}
	if b.Label != "items" {
		t.Errorf("Label = %q, want %q", b.Label, "items")
	}
}

func TestServiceRender_TransformFailureBecomesErrorBadge(t *testing.T) {
	mock := testutil.NewMockUpstream()
	defer mock.Close()
	mock.SetResponse("/items", testutil.NewHealthyResponse(`[{}]`))

	svc := newService(t, mock)
	b := svc.Render(context.Background(), countProvider{
		path:         "/items",
		transformErr: errors.New("value out of range"),
	}, nil)

	want := badge.Badge{Label: "items", Message: "unexpected upstream data", Color: badge.ColorLightGrey}
	if b != want {
		t.Errorf("Render() = %+v, want %+v", b, want)
	}
}

func TestServiceRender_UpstreamDownBecomesErrorBadge(t *testing.T) {
	mock := testutil.NewMockUpstream()
	defer mock.Close()
	mock.SetResponse("/items", testutil.NewServerErrorResponse())

	svc := newService(t, mock)
	b := svc.Render(context.Background(), countProvider{path: "/items"}, nil)

	if b.Color != badge.ColorLightGrey {
		t.Errorf("Color = %q, want %q", b.Color, badge.ColorLightGrey)
	}
	// The transient failure was retried before giving up.
	if got := mock.GetRequestCount(); got != 3 {
		t.Errorf("request count = %d, want 3", got)
	}
}
