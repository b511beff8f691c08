package dispatch

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/badgesmith/badgesmith/pkg/credential"
	"github.com/xeipuuv/gojsonschema"
)

// Upstream rate-limit headers. Remaining is an absolute counter, reset is
// epoch seconds; both must be present for the observation to count.
const (
	headerRateLimitRemaining = "X-RateLimit-Remaining"
	headerRateLimitReset     = "X-RateLimit-Reset"
)

// observationFrom extracts the quota metadata a response carried. A 403/429
// without quota headers is a secondary rate limit: those do not always report
// a reset time, so the pool applies its fixed backoff window instead.
func observationFrom(status int, header http.Header) credential.Observation {
	remainStr := header.Get(headerRateLimitRemaining)
	resetStr := header.Get(headerRateLimitReset)

	if remainStr != "" && resetStr != "" {
		remaining, errRemain := strconv.Atoi(remainStr)
		resetEpoch, errReset := strconv.ParseInt(resetStr, 10, 64)
		if errRemain == nil && errReset == nil {
			return credential.Observation{
				HasQuota:  true,
				Remaining: remaining,
				ResetAt:   time.Unix(resetEpoch, 0),
			}
		}
	}

	if status == http.StatusForbidden || status == http.StatusTooManyRequests {
		return credential.Observation{SecondaryLimit: true}
	}
	return credential.Observation{}
}

// retryAfterHint derives a wait duration from response headers, preferring an
// explicit Retry-After over the quota reset time.
func retryAfterHint(header http.Header, now time.Time) time.Duration {
	if s := header.Get("Retry-After"); s != "" {
		if secs, err := strconv.Atoi(s); err == nil && secs > 0 {
			return time.Duration(secs) * time.Second
		}
	}
	if s := header.Get(headerRateLimitReset); s != "" {
		if epoch, err := strconv.ParseInt(s, 10, 64); err == nil {
			if wait := time.Unix(epoch, 0).Sub(now); wait > 0 {
				return wait
			}
		}
	}
	return 0
}

// queryError is one entry of a query-surface top-level error list.
type queryError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// queryErrorKinds maps upstream query-surface error types onto the failure
// taxonomy. Types outside this table classify as invalid responses.
//
// FORBIDDEN arrives on a 2xx with a healthy credential and means this
// resource denies access (a private repo, say), not that the secret is bad.
// Bad credentials come back as HTTP 401 and go through the status table;
// mapping FORBIDDEN there would disable a working credential on every
// request for a restricted resource.
var queryErrorKinds = map[string]Kind{
	"NOT_FOUND":           KindNotFound,
	"RATE_LIMITED":        KindRateLimited,
	"FORBIDDEN":           KindNotFound,
	"DEPRECATED":          KindDeprecated,
	"INTERNAL":            KindTransientServerError,
	"SERVICE_UNAVAILABLE": KindTransientServerError,
}

// classify inspects a raw response and produces either nil (payload is valid
// for the descriptor) or a typed failure. It never panics on malformed input:
// a body that cannot be read the declared way is itself a classified failure.
func classify(desc Descriptor, status int, header http.Header, body []byte) *Failure {
	// Non-2xx statuses map through a fixed kind table.
	switch {
	case status == http.StatusNotFound || status == http.StatusGone:
		return &Failure{
			Kind:    KindNotFound,
			Message: desc.message(KindNotFound, "not found"),
		}
	case status == http.StatusUnauthorized:
		return &Failure{
			Kind:    KindAuthRejected,
			Message: desc.message(KindAuthRejected, "credential rejected"),
		}
	case status == http.StatusForbidden || status == http.StatusTooManyRequests:
		return &Failure{
			Kind:       KindRateLimited,
			Message:    desc.message(KindRateLimited, "rate limited"),
			RetryAfter: retryAfterHint(header, time.Now()),
		}
	case status >= 500:
		return &Failure{
			Kind:    KindTransientServerError,
			Message: fmt.Sprintf("upstream returned status %d", status),
		}
	case status < 200 || status >= 300:
		return &Failure{
			Kind:    KindInvalidResponse,
			Message: fmt.Sprintf("unexpected status %d", status),
		}
	}

	// Query-surface responses can carry a top-level error list alongside a
	// 2xx status. Inspect it before trusting the payload.
	if desc.Surface == SurfaceQuery {
		if failure := classifyQueryErrors(desc, body); failure != nil {
			return failure
		}
	}

	return validateShape(desc, body)
}

// classifyQueryErrors checks the partial-failure semantics of the query
// surface: a 2xx body with a non-empty errors array never yields a payload.
func classifyQueryErrors(desc Descriptor, body []byte) *Failure {
	var envelope struct {
		Errors []queryError `json:"errors"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return &Failure{
			Kind:    KindInvalidResponse,
			Message: "unparseable query response",
			Err:     err,
		}
	}
	if len(envelope.Errors) == 0 {
		return nil
	}

	first := envelope.Errors[0]
	kind, ok := queryErrorKinds[first.Type]
	if !ok {
		return &Failure{
			Kind:    KindInvalidResponse,
			Message: desc.message(KindInvalidResponse, fmt.Sprintf("query error: %s", first.Message)),
		}
	}
	fallback := first.Message
	if fallback == "" {
		fallback = fmt.Sprintf("query error %s", first.Type)
	}
	return &Failure{
		Kind:    kind,
		Message: desc.message(kind, fallback),
	}
}

// validateShape checks a successful payload against the descriptor's declared
// schema. A mismatch is a provider contract violation, classified as an
// invalid response rather than raised to the caller.
func validateShape(desc Descriptor, body []byte) *Failure {
	if desc.Schema == nil {
		return nil
	}
	result, err := desc.Schema.Validate(gojsonschema.NewBytesLoader(body))
	if err != nil {
		return &Failure{
			Kind:    KindInvalidResponse,
			Message: "unparseable response body",
			Err:     err,
		}
	}
	if !result.Valid() {
		msg := "response shape mismatch"
		if errs := result.Errors(); len(errs) > 0 {
			msg = fmt.Sprintf("response shape mismatch: %s", errs[0].String())
		}
		return &Failure{
			Kind:    KindInvalidResponse,
			Message: desc.message(KindInvalidResponse, msg),
		}
	}
	return nil
}
