// Package credential implements the upstream credential pool. It tracks the
// last-known quota state of every configured credential and selects a usable
// one per request, so concurrent badge renders spread load across the pool
// instead of burning a single token's rate limit.
package credential

import (
	"sync"
	"time"
)

// Scope identifies which upstream API surface a credential is valid for.
type Scope string

const (
	// ScopeResource covers the path-addressed REST surface.
	ScopeResource Scope = "resource"

	// ScopeQuery covers the single-endpoint GraphQL surface.
	ScopeQuery Scope = "query"
)

// AnonymousID is the identifier of the fallback credential the pool creates
// when no secrets are configured. Anonymous access only works on the resource
// surface and carries a much lower baseline quota.
const AnonymousID = "anonymous"

// Spec describes one credential as supplied by configuration.
type Spec struct {
	// ID is a short identifier used in logs and metrics. Never the secret.
	ID string

	// Secret is the token attached to outbound requests. Empty for the
	// anonymous credential.
	Secret string

	// Scopes lists the surfaces this credential may be used for.
	Scopes []Scope
}

// Credential is one authentication secret plus its tracked quota state.
// Quota fields hold whatever the upstream last reported; they start unknown
// and are rebuilt from response metadata after every call.
type Credential struct {
	id     string
	secret string
	scopes map[Scope]bool

	// mu guards the quota fields below. Each credential is locked
	// independently; the pool never holds two credential locks at once.
	mu        sync.Mutex
	remaining int
	known     bool
	resetAt   time.Time
	disabled  bool
}

// ID returns the credential's log-safe identifier.
func (c *Credential) ID() string { return c.id }

// Secret returns the raw token to attach to a request.
func (c *Credential) Secret() string { return c.secret }

// Anonymous reports whether this credential carries no secret.
func (c *Credential) Anonymous() bool { return c.secret == "" }

// HasScope reports whether the credential is valid for the given surface.
func (c *Credential) HasScope(scope Scope) bool { return c.scopes[scope] }

// Remaining returns the last-known remaining quota and whether it is known.
// A credential whose reset time has passed reports unknown again: the window
// has refilled but the upstream has not told us the new count yet.
func (c *Credential) Remaining(now time.Time) (int, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.known || (c.remaining == 0 && !now.Before(c.resetAt)) {
		return 0, false
	}
	return c.remaining, true
}

// ResetAt returns the last-known quota reset time.
func (c *Credential) ResetAt() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.resetAt
}

// Disabled reports whether the credential has been permanently excluded.
func (c *Credential) Disabled() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.disabled
}

// availability is the selection-relevant view of one credential at an instant.
type availability struct {
	usable bool
	// rank orders usable credentials: higher wins. Unknown quota ranks above
	// any known count because a refreshed window is presumed full.
	rank    int
	resetAt time.Time
}

const rankUnknown = int(^uint(0) >> 1) // max int

func (c *Credential) availabilityAt(now time.Time) availability {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.disabled {
		return availability{}
	}
	switch {
	case !c.known:
		return availability{usable: true, rank: rankUnknown, resetAt: c.resetAt}
	case c.remaining > 0:
		return availability{usable: true, rank: c.remaining, resetAt: c.resetAt}
	case !now.Before(c.resetAt):
		// Reset has passed: quota is unknown-but-refreshed until the next
		// response reports a fresh count.
		return availability{usable: true, rank: rankUnknown, resetAt: c.resetAt}
	default:
		return availability{resetAt: c.resetAt}
	}
}
