// Package testutil provides a configurable mock of the upstream API for
// tests: quota headers, Link pagination, GraphQL error arrays, and
// rate-limit responses.
package testutil

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"time"
)

// MockResponse defines the behavior of one mock endpoint.
type MockResponse struct {
	StatusCode int
	Body       string
	Headers    map[string]string
	Delay      time.Duration
}

// MockUpstream is a configurable fake of the rate-limited upstream API.
type MockUpstream struct {
	server   *httptest.Server
	mu       sync.RWMutex
	handlers map[string]http.HandlerFunc

	// Tracking
	RequestCount int
	AuthHeaders  []string
}

// NewMockUpstream starts a mock upstream server.
func NewMockUpstream() *MockUpstream {
	mock := &MockUpstream{
		handlers: make(map[string]http.HandlerFunc),
	}

	mock.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mock.mu.Lock()
		mock.RequestCount++
		mock.AuthHeaders = append(mock.AuthHeaders, r.Header.Get("Authorization"))
		mock.mu.Unlock()

		mock.mu.RLock()
		handler, exists := mock.handlers[r.URL.Path]
		mock.mu.RUnlock()

		if exists {
			handler(w, r)
			return
		}
		mock.defaultHandler(w, r)
	}))

	return mock
}

// URL returns the mock server URL.
func (m *MockUpstream) URL() string {
	return m.server.URL
}

// Close shuts down the mock server.
func (m *MockUpstream) Close() {
	m.server.Close()
}

// Reset clears tracking state.
func (m *MockUpstream) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.RequestCount = 0
	m.AuthHeaders = nil
}

// SetHandler installs a custom handler for a path.
func (m *MockUpstream) SetHandler(path string, handler http.HandlerFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[path] = handler
}

// SetResponse installs a fixed response for a path.
func (m *MockUpstream) SetResponse(path string, resp MockResponse) {
	m.SetHandler(path, func(w http.ResponseWriter, r *http.Request) {
		if resp.Delay > 0 {
			time.Sleep(resp.Delay)
		}
		for key, value := range resp.Headers {
			w.Header().Set(key, value)
		}
		w.WriteHeader(resp.StatusCode)
		if resp.Body != "" {
			w.Write([]byte(resp.Body))
		}
	})
}

// SetResponseSequence installs responses served in order; the last one
// repeats once the sequence is exhausted.
func (m *MockUpstream) SetResponseSequence(path string, responses []MockResponse) {
	var mu sync.Mutex
	idx := 0
	m.SetHandler(path, func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		resp := responses[idx]
		if idx < len(responses)-1 {
			idx++
		}
		mu.Unlock()

		if resp.Delay > 0 {
			time.Sleep(resp.Delay)
		}
		for key, value := range resp.Headers {
			w.Header().Set(key, value)
		}
		w.WriteHeader(resp.StatusCode)
		if resp.Body != "" {
			w.Write([]byte(resp.Body))
		}
	})
}

// GetRequestCount returns the number of requests received.
func (m *MockUpstream) GetRequestCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.RequestCount
}

// LastAuthHeader returns the Authorization header of the most recent request.
func (m *MockUpstream) LastAuthHeader() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if len(m.AuthHeaders) == 0 {
		return ""
	}
	return m.AuthHeaders[len(m.AuthHeaders)-1]
}

// defaultHandler serves a healthy JSON response with quota headers.
func (m *MockUpstream) defaultHandler(w http.ResponseWriter, r *http.Request) {
	setQuotaHeaders(w, 4999, 3600)
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status": "ok"}`))
}

func setQuotaHeaders(w http.ResponseWriter, remaining int, resetInSeconds int64) {
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
	w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(time.Now().Unix()+resetInSeconds, 10))
}

// QuotaHeaders builds the standard quota header pair.
func QuotaHeaders(remaining int, resetInSeconds int64) map[string]string {
	return map[string]string{
		"X-RateLimit-Remaining": strconv.Itoa(remaining),
		"X-RateLimit-Reset":     strconv.FormatInt(time.Now().Unix()+resetInSeconds, 10),
		"Content-Type":          "application/json; charset=utf-8",
	}
}

// NewHealthyResponse creates a 200 response carrying quota headers.
func NewHealthyResponse(body string) MockResponse {
	return MockResponse{
		StatusCode: http.StatusOK,
		Body:       body,
		Headers:    QuotaHeaders(4999, 3600),
	}
}

// NewPaginatedResponse creates a 200 response whose Link header points at a
// last page, the way per-page-limited listings report their extent.
func NewPaginatedResponse(body string, baseURL string, lastPage int) MockResponse {
	headers := QuotaHeaders(4999, 3600)
	headers["Link"] = fmt.Sprintf(
		`<%s?page=2&per_page=1>; rel="next", <%s?page=%d&per_page=1>; rel="last"`,
		baseURL, baseURL, lastPage,
	)
	return MockResponse{
		StatusCode: http.StatusOK,
		Body:       body,
		Headers:    headers,
	}
}

// NewNotFoundResponse creates a 404 response.
func NewNotFoundResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusNotFound,
		Body:       `{"message": "Not Found"}`,
		Headers:    QuotaHeaders(4998, 3600),
	}
}

// NewUnauthorizedResponse creates a 401 bad-credentials response.
func NewUnauthorizedResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusUnauthorized,
		Body:       `{"message": "Bad credentials"}`,
		Headers:    map[string]string{"Content-Type": "application/json; charset=utf-8"},
	}
}

// NewRateLimitResponse creates a 403 with quota headers reporting zero left.
func NewRateLimitResponse(resetInSeconds int64) MockResponse {
	return MockResponse{
		StatusCode: http.StatusForbidden,
		Body:       `{"message": "API rate limit exceeded"}`,
		Headers:    QuotaHeaders(0, resetInSeconds),
	}
}

// NewSecondaryRateLimitResponse creates a 403 without quota headers, the way
// secondary limits arrive.
func NewSecondaryRateLimitResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusForbidden,
		Body:       `{"message": "You have exceeded a secondary rate limit"}`,
		Headers: map[string]string{
			"Content-Type": "application/json; charset=utf-8",
			"Retry-After":  "60",
		},
	}
}

// NewServerErrorResponse creates a 500 response.
func NewServerErrorResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusInternalServerError,
		Body:       `{"message": "Server Error"}`,
		Headers:    QuotaHeaders(4997, 3600),
	}
}

// NewQueryDataResponse creates a 200 GraphQL response with only data.
func NewQueryDataResponse(data string) MockResponse {
	return MockResponse{
		StatusCode: http.StatusOK,
		Body:       fmt.Sprintf(`{"data": %s}`, data),
		Headers:    QuotaHeaders(4999, 3600),
	}
}

// NewQueryErrorResponse creates a 200 GraphQL response carrying a top-level
// error list, the partial-failure shape of the query surface.
func NewQueryErrorResponse(errType, message string) MockResponse {
	return MockResponse{
		StatusCode: http.StatusOK,
		Body: fmt.Sprintf(`{"data": null, "errors": [{"type": %q, "message": %q}]}`,
			errType, message),
		Headers: QuotaHeaders(4999, 3600),
	}
}
