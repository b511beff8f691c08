package dispatch

import (
	"errors"
	"fmt"
	"time"
)

// Kind classifies a failed upstream call. Every failure the dispatcher
// surfaces carries exactly one kind; adapters and the badge layer branch on
// it, never on raw status codes.
type Kind string

const (
	// KindNotFound means the addressed resource does not exist upstream.
	KindNotFound Kind = "not_found"

	// KindRateLimited means no quota is currently available, either on the
	// credential used or across the whole pool. Carries a retry-after hint.
	KindRateLimited Kind = "rate_limited"

	// KindAuthRejected means the upstream rejected this credential's secret.
	// Scoped to one credential, not a global outage.
	KindAuthRejected Kind = "auth_rejected"

	// KindTransientServerError covers 5xx responses, network errors and
	// timeouts. Retryable.
	KindTransientServerError Kind = "transient_server_error"

	// KindInvalidResponse means the upstream broke its contract: a payload
	// that fails shape validation, an unparseable body, or pagination
	// metadata that cannot be read.
	KindInvalidResponse Kind = "invalid_response"

	// KindDeprecated means the caller used a retired query shape.
	KindDeprecated Kind = "deprecated"
)

// Common errors returned by the dispatcher.
var (
	// ErrRetryExhausted is returned when all retry attempts are exhausted.
	ErrRetryExhausted = errors.New("retry attempts exhausted")

	// ErrContextCancelled is returned when the context is cancelled during
	// retry backoff.
	ErrContextCancelled = errors.New("context cancelled")
)

// Failure is a classified upstream failure. It implements error so it can
// travel through ordinary error returns while keeping the classification
// intact for errors.As.
type Failure struct {
	Kind    Kind
	Message string

	// RetryAfter hints how long until quota replenishes. Only meaningful
	// for KindRateLimited.
	RetryAfter time.Duration

	Err error
}

// Error implements the error interface.
func (f *Failure) Error() string {
	if f.Err != nil {
		return fmt.Sprintf("upstream %s: %s: %v", f.Kind, f.Message, f.Err)
	}
	return fmt.Sprintf("upstream %s: %s", f.Kind, f.Message)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (f *Failure) Unwrap() error {
	return f.Err
}

// Retryable reports whether the dispatcher may retry this failure with the
// same credential.
func (f *Failure) Retryable() bool {
	return f.Kind == KindTransientServerError
}

// AsFailure extracts a *Failure from an error chain. The second return is
// false when the error carries no classification.
func AsFailure(err error) (*Failure, bool) {
	var f *Failure
	if errors.As(err, &f) {
		return f, true
	}
	return nil, false
}
