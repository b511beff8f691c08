package dispatch

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for retry behavior.
var (
	dispatchRetriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dispatch_retries_total",
		Help: "Retry attempts by failure kind",
	}, []string{"kind"})

	dispatchRetryBackoffSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "dispatch_retry_backoff_seconds",
		Help:    "Backoff duration slept before retries",
		Buckets: []float64{0.25, 0.5, 1, 2, 5, 10},
	})

	dispatchRetryExhaustedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dispatch_retry_exhausted_total",
		Help: "Calls that exhausted their transient-error retry budget",
	})
)

// retryPolicy bounds retries of transient server errors. The initial attempt
// is not counted: ExtraAttempts is how many times a failed call is repeated
// with the same credential.
type retryPolicy struct {
	ExtraAttempts  int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

func defaultRetryPolicy() retryPolicy {
	return retryPolicy{
		ExtraAttempts:  2,
		InitialBackoff: 500 * time.Millisecond,
		MaxBackoff:     10 * time.Second,
	}
}

// sleepBackoff waits one jittered exponential step, respecting cancellation.
// attempt is 1-based for the first retry.
func (p retryPolicy) sleepBackoff(ctx context.Context, attempt int) error {
	backoff := p.InitialBackoff
	for i := 1; i < attempt; i++ {
		backoff *= 2
		if backoff > p.MaxBackoff {
			backoff = p.MaxBackoff
			break
		}
	}

	// ±20% jitter to avoid synchronized retry bursts.
	jittered := time.Duration(float64(backoff) * (0.8 + rand.Float64()*0.4))
	dispatchRetryBackoffSeconds.Observe(jittered.Seconds())

	select {
	case <-ctx.Done():
		return fmt.Errorf("%w: %v", ErrContextCancelled, ctx.Err())
	case <-time.After(jittered):
		return nil
	}
}
