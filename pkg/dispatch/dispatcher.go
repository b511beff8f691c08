// Package dispatch implements the shared request layer every badge adapter
// calls through. It selects a credential with remaining quota, issues the
// transport call, classifies the outcome into a small failure taxonomy,
// feeds observed quota back to the pool, and retries or rotates credentials
// within fixed bounds.
package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/badgesmith/badgesmith/pkg/credential"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

// Prometheus metrics for dispatch operations.
var (
	dispatchRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dispatch_requests_total",
		Help: "Upstream requests by surface and HTTP status",
	}, []string{"surface", "status"})

	dispatchRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "dispatch_request_duration_seconds",
		Help:    "Upstream request duration by surface",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10},
	}, []string{"surface"})

	dispatchFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dispatch_failures_total",
		Help: "Classified dispatch failures by kind",
	}, []string{"kind"})
)

// responseBodyLimit bounds how much of an upstream body is read. Badge
// payloads are small; anything past this is a broken response.
const responseBodyLimit = 4 << 20

// Result is a validated successful payload. Created per request, discarded
// after the badge render completes.
type Result struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Decode unmarshals the payload into v.
func (r *Result) Decode(v any) error {
	if err := json.Unmarshal(r.Body, v); err != nil {
		return fmt.Errorf("decode payload: %w", err)
	}
	return nil
}

// Config holds dispatcher configuration.
type Config struct {
	// BaseURL is the root of the resource surface, e.g. "https://api.github.com".
	BaseURL string

	// QueryURL is the query-surface endpoint. Defaults to BaseURL + "/graphql".
	QueryURL string

	// UserAgent is sent on every request. Required by the upstream.
	UserAgent string

	// RequestTimeout bounds each transport call. A timeout classifies as a
	// transient server error, since it signals congestion rather than a
	// contract violation. Default 10s.
	RequestTimeout time.Duration

	// TransientRetries is how many extra attempts a transient failure gets
	// with the same credential. Default 2.
	TransientRetries int

	// InitialBackoff and MaxBackoff shape the retry delay. Defaults 500ms/10s.
	InitialBackoff time.Duration
	MaxBackoff     time.Duration

	// HTTPClient overrides the transport, for tests.
	HTTPClient *http.Client
}

// Dispatcher is the single entry point adapters use to talk to the upstream.
// Safe for concurrent use; the credential pool is the only shared mutable
// state between in-flight requests.
type Dispatcher struct {
	pool       *credential.Pool
	httpClient *http.Client
	cfg        Config
	policy     retryPolicy
	logger     zerolog.Logger
}

// New creates a dispatcher over the given credential pool.
func New(pool *credential.Pool, cfg Config, logger zerolog.Logger) (*Dispatcher, error) {
	if pool == nil {
		return nil, fmt.Errorf("credential pool is required")
	}
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base URL is required")
	}
	if cfg.UserAgent == "" {
		return nil, fmt.Errorf("user-agent is required")
	}
	if cfg.QueryURL == "" {
		cfg.QueryURL = cfg.BaseURL + "/graphql"
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 10 * time.Second
	}

	policy := defaultRetryPolicy()
	if cfg.TransientRetries > 0 {
		policy.ExtraAttempts = cfg.TransientRetries
	}
	if cfg.InitialBackoff > 0 {
		policy.InitialBackoff = cfg.InitialBackoff
	}
	if cfg.MaxBackoff > 0 {
		policy.MaxBackoff = cfg.MaxBackoff
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.RequestTimeout}
	}

	return &Dispatcher{
		pool:       pool,
		httpClient: httpClient,
		cfg:        cfg,
		policy:     policy,
		logger:     logger.With().Str("component", "dispatch").Logger(),
	}, nil
}

// RequestResource issues a resource-surface (path-addressed) call.
func (d *Dispatcher) RequestResource(ctx context.Context, desc Descriptor) (*Result, error) {
	desc.Surface = SurfaceResource
	if desc.Method == "" {
		desc.Method = http.MethodGet
	}
	return d.dispatch(ctx, desc)
}

// RequestQuery issues a query-surface (document-based) call.
func (d *Dispatcher) RequestQuery(ctx context.Context, desc Descriptor) (*Result, error) {
	desc.Surface = SurfaceQuery
	return d.dispatch(ctx, desc)
}

// dispatch runs the shared algorithm: acquire a credential, call with bounded
// transient retries, and on an auth rejection disable the credential and
// retry the whole call once with a fresh one. A second auth rejection
// surfaces; unbounded credential churn is worse than a failed badge.
// A response-level rate limit likewise gets one re-acquire: Release has
// already zeroed the credential that hit the wall, so the pool either hands
// back an alternate with quota or reports exhaustion, which fails fast.
func (d *Dispatcher) dispatch(ctx context.Context, desc Descriptor) (*Result, error) {
	start := time.Now()
	defer func() {
		dispatchRequestDuration.WithLabelValues(string(desc.Surface)).Observe(time.Since(start).Seconds())
	}()

	rotated := false
	requotaed := false
	for {
		cred, hint := d.pool.Acquire(desc.scope())
		if hint != nil {
			// Never block the caller waiting for quota; fail fast with the
			// wait duration and let the badge layer decide.
			failure := &Failure{
				Kind:       KindRateLimited,
				Message:    desc.message(KindRateLimited, "no credential with remaining quota"),
				RetryAfter: hint.Wait,
			}
			dispatchFailuresTotal.WithLabelValues(string(failure.Kind)).Inc()
			return nil, failure
		}

		result, failure := d.callWithRetries(ctx, desc, cred)
		if failure == nil {
			return result, nil
		}

		if failure.Kind == KindAuthRejected && !rotated {
			d.pool.Disable(cred)
			rotated = true
			d.logger.Warn().
				Str("call", desc.Name).
				Str("credential", cred.ID()).
				Msg("Credential rejected - rotating and retrying once")
			continue
		}

		if failure.Kind == KindRateLimited && !requotaed {
			requotaed = true
			d.logger.Debug().
				Str("call", desc.Name).
				Str("credential", cred.ID()).
				Msg("Credential hit its rate limit - trying an alternate once")
			continue
		}

		dispatchFailuresTotal.WithLabelValues(string(failure.Kind)).Inc()
		return nil, failure
	}
}

// callWithRetries performs one logical call with the given credential,
// repeating transient failures up to the retry budget with jittered
// exponential backoff. All other classifications return immediately.
func (d *Dispatcher) callWithRetries(ctx context.Context, desc Descriptor, cred *credential.Credential) (*Result, *Failure) {
	var last *Failure

	for attempt := 0; attempt <= d.policy.ExtraAttempts; attempt++ {
		if attempt > 0 {
			dispatchRetriesTotal.WithLabelValues(string(KindTransientServerError)).Inc()
			d.logger.Debug().
				Str("call", desc.Name).
				Int("attempt", attempt).
				Msg("Retrying after transient failure")
			if err := d.policy.sleepBackoff(ctx, attempt); err != nil {
				return nil, &Failure{
					Kind:    KindTransientServerError,
					Message: "cancelled during retry backoff",
					Err:     err,
				}
			}
		}

		result, failure := d.callOnce(ctx, desc, cred)
		if failure == nil {
			if attempt > 0 {
				d.logger.Info().
					Str("call", desc.Name).
					Int("attempt", attempt).
					Msg("Request succeeded after retry")
			}
			return result, nil
		}
		if !failure.Retryable() {
			return nil, failure
		}
		last = failure
	}

	dispatchRetryExhaustedTotal.Inc()
	if last.Err != nil {
		last.Err = fmt.Errorf("%w after %d attempts: %v", ErrRetryExhausted, d.policy.ExtraAttempts+1, last.Err)
	} else {
		last.Err = fmt.Errorf("%w after %d attempts", ErrRetryExhausted, d.policy.ExtraAttempts+1)
	}
	return nil, last
}

// callOnce issues exactly one transport call and classifies its outcome.
// Observed quota is reported back to the pool regardless of outcome.
func (d *Dispatcher) callOnce(ctx context.Context, desc Descriptor, cred *credential.Credential) (*Result, *Failure) {
	ctx, cancel := context.WithTimeout(ctx, d.cfg.RequestTimeout)
	defer cancel()

	req, err := d.buildRequest(ctx, desc, cred)
	if err != nil {
		return nil, &Failure{
			Kind:    KindInvalidResponse,
			Message: "cannot build request",
			Err:     err,
		}
	}

	resp, err := d.httpClient.Do(req)
	if err != nil {
		// Network errors and timeouts signal congestion, not a broken
		// contract: classify retryable.
		dispatchRequestsTotal.WithLabelValues(string(desc.Surface), "network_error").Inc()
		return nil, &Failure{
			Kind:    KindTransientServerError,
			Message: "transport error",
			Err:     err,
		}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, responseBodyLimit))
	if err != nil {
		dispatchRequestsTotal.WithLabelValues(string(desc.Surface), "network_error").Inc()
		return nil, &Failure{
			Kind:    KindTransientServerError,
			Message: "reading response body",
			Err:     err,
		}
	}

	dispatchRequestsTotal.WithLabelValues(string(desc.Surface), fmt.Sprintf("%d", resp.StatusCode)).Inc()

	// The upstream's quota report is authoritative, success or failure.
	d.pool.Release(cred, observationFrom(resp.StatusCode, resp.Header))

	if failure := classify(desc, resp.StatusCode, resp.Header, body); failure != nil {
		d.logger.Warn().
			Str("call", desc.Name).
			Str("credential", cred.ID()).
			Int("status", resp.StatusCode).
			Str("kind", string(failure.Kind)).
			Msg("Upstream call failed")
		return nil, failure
	}

	return &Result{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       body,
	}, nil
}

// buildRequest materializes the descriptor into an HTTP request with the
// credential attached per the surface's authentication convention.
func (d *Dispatcher) buildRequest(ctx context.Context, desc Descriptor, cred *credential.Credential) (*http.Request, error) {
	var req *http.Request
	var err error

	switch desc.Surface {
	case SurfaceQuery:
		payload, merr := json.Marshal(map[string]any{
			"query":     desc.Document,
			"variables": desc.Variables,
		})
		if merr != nil {
			return nil, fmt.Errorf("marshal query document: %w", merr)
		}
		req, err = http.NewRequestWithContext(ctx, http.MethodPost, d.cfg.QueryURL, bytes.NewReader(payload))
		if err == nil {
			req.Header.Set("Content-Type", "application/json")
		}

	default:
		target, perr := url.Parse(d.cfg.BaseURL + desc.Path)
		if perr != nil {
			return nil, fmt.Errorf("parse endpoint path: %w", perr)
		}
		if len(desc.Query) > 0 {
			target.RawQuery = desc.Query.Encode()
		}
		req, err = http.NewRequestWithContext(ctx, desc.Method, target.String(), nil)
	}
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("User-Agent", d.cfg.UserAgent)
	req.Header.Set("Accept", "application/json")
	if !cred.Anonymous() {
		req.Header.Set("Authorization", "token "+cred.Secret())
	}
	return req, nil
}
