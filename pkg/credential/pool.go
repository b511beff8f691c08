package credential

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

// Prometheus metrics for credential pool state.
var (
	poolQuotaRemaining = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "upstream_credential_quota_remaining",
		Help: "Last-known remaining quota per credential",
	}, []string{"credential"})

	poolExhaustedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "upstream_credential_pool_exhausted_total",
		Help: "Acquire calls that found no credential with quota, by scope",
	}, []string{"scope"})

	poolDisabledTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "upstream_credentials_disabled_total",
		Help: "Credentials permanently disabled after authentication rejection",
	})

	poolSecondaryLimitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "upstream_secondary_rate_limits_total",
		Help: "Responses that signaled a secondary rate limit without quota metadata",
	})
)

// DefaultSecondaryLimitBackoff is the window a credential sits out after a
// secondary rate limit that reported no reset time. The upstream asks for at
// least one minute before retrying, so that is the conservative floor.
const DefaultSecondaryLimitBackoff = 60 * time.Second

// Config holds pool configuration.
type Config struct {
	// SecondaryLimitBackoff is applied when a response signals secondary
	// rate limiting without quota metadata. Zero means the default.
	SecondaryLimitBackoff time.Duration
}

// Pool owns the set of credentials for one upstream and their quota state.
// It is shared process-wide and safe for concurrent use; each credential's
// state is updated independently, last writer wins.
type Pool struct {
	creds  []*Credential
	cfg    Config
	logger zerolog.Logger

	// now is stubbed in tests.
	now func() time.Time
}

// NewPool builds a pool from configured specs. An empty spec list yields a
// single anonymous resource-scope credential, so the pool is never empty.
func NewPool(specs []Spec, cfg Config, logger zerolog.Logger) *Pool {
	if cfg.SecondaryLimitBackoff <= 0 {
		cfg.SecondaryLimitBackoff = DefaultSecondaryLimitBackoff
	}
	if len(specs) == 0 {
		specs = []Spec{{ID: AnonymousID, Scopes: []Scope{ScopeResource}}}
	}

	creds := make([]*Credential, 0, len(specs))
	for _, s := range specs {
		scopes := make(map[Scope]bool, len(s.Scopes))
		for _, sc := range s.Scopes {
			scopes[sc] = true
		}
		creds = append(creds, &Credential{
			id:     s.ID,
			secret: s.Secret,
			scopes: scopes,
		})
	}

	logger.Info().
		Int("credentials", len(creds)).
		Dur("secondary_limit_backoff", cfg.SecondaryLimitBackoff).
		Msg("Credential pool initialized")

	return &Pool{
		creds:  creds,
		cfg:    cfg,
		logger: logger,
		now:    time.Now,
	}
}

// WaitHint tells a caller how long until the soonest matching credential
// resets, when no credential currently has quota. The dispatcher turns this
// into a rate-limited failure; nothing in-process ever sleeps on it.
type WaitHint struct {
	Wait time.Duration
}

// Acquire selects a credential for the given scope: among credentials with
// remaining quota (or unknown quota), the one with the most quota left, ties
// broken by the earliest reset time. Exactly one of the return values is
// non-nil. Acquire never blocks.
func (p *Pool) Acquire(scope Scope) (*Credential, *WaitHint) {
	now := p.now()

	var best *Credential
	var bestAvail availability
	minReset := time.Time{}

	for _, c := range p.creds {
		if !c.HasScope(scope) || c.Disabled() {
			continue
		}
		avail := c.availabilityAt(now)
		if !avail.usable {
			if avail.resetAt.After(now) && (minReset.IsZero() || avail.resetAt.Before(minReset)) {
				minReset = avail.resetAt
			}
			continue
		}
		if best == nil ||
			avail.rank > bestAvail.rank ||
			(avail.rank == bestAvail.rank && avail.resetAt.Before(bestAvail.resetAt)) {
			best = c
			bestAvail = avail
		}
	}

	if best != nil {
		return best, nil
	}

	poolExhaustedTotal.WithLabelValues(string(scope)).Inc()

	wait := p.cfg.SecondaryLimitBackoff
	if !minReset.IsZero() {
		wait = minReset.Sub(now)
	}
	p.logger.Warn().
		Str("scope", string(scope)).
		Dur("wait", wait).
		Msg("Credential pool exhausted")

	return nil, &WaitHint{Wait: wait}
}

// Observation carries the quota metadata one upstream response reported.
type Observation struct {
	// Remaining and ResetAt are valid only when HasQuota is true.
	Remaining int
	ResetAt   time.Time

	// HasQuota is true when the response carried quota headers.
	HasQuota bool

	// SecondaryLimit is true when the response signaled secondary rate
	// limiting. Secondary limits do not always report a reset time.
	SecondaryLimit bool
}

// Release records the quota metadata observed on a response. The upstream is
// authoritative: reported values overwrite local state unconditionally. A
// secondary limit without quota metadata forces the credential to zero for a
// fixed backoff window. Responses with neither leave the state untouched.
func (p *Pool) Release(c *Credential, obs Observation) {
	switch {
	case obs.HasQuota:
		c.mu.Lock()
		c.remaining = obs.Remaining
		c.resetAt = obs.ResetAt
		c.known = true
		c.mu.Unlock()

		poolQuotaRemaining.WithLabelValues(c.id).Set(float64(obs.Remaining))
		p.logger.Debug().
			Str("credential", c.id).
			Int("remaining", obs.Remaining).
			Time("reset_at", obs.ResetAt).
			Msg("Credential quota updated")

	case obs.SecondaryLimit:
		resetAt := p.now().Add(p.cfg.SecondaryLimitBackoff)
		c.mu.Lock()
		c.remaining = 0
		c.resetAt = resetAt
		c.known = true
		c.mu.Unlock()

		poolQuotaRemaining.WithLabelValues(c.id).Set(0)
		poolSecondaryLimitsTotal.Inc()
		p.logger.Warn().
			Str("credential", c.id).
			Time("reset_at", resetAt).
			Msg("Secondary rate limit - credential benched for backoff window")
	}
}

// Disable permanently excludes a credential whose secret the upstream
// rejected. The pool shrinks for the rest of the process lifetime; the event
// is reported once.
func (p *Pool) Disable(c *Credential) {
	c.mu.Lock()
	already := c.disabled
	c.disabled = true
	c.mu.Unlock()

	if already {
		return
	}
	poolDisabledTotal.Inc()
	p.logger.Error().
		Str("credential", c.id).
		Msg("Credential authentication rejected - disabled permanently")
}

// Size returns the number of configured credentials, disabled ones included.
func (p *Pool) Size() int {
	return len(p.creds)
}
