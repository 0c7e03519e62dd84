// Package testutil provides testing utilities for the Xero client.
package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// APIPath is the path prefix the mock serves the Accounting API under.
const APIPath = "/api.xro/2.0"

// MockResponse defines the behavior for a canned mock response.
type MockResponse struct {
	StatusCode int
	Body       string
	Headers    map[string]string
	Delay      time.Duration
}

// Failure makes matching requests answer with Response instead of the
// in-memory store. Empty Method or Path match anything; Page 0 matches any
// page. Times <= 0 means forever.
type Failure struct {
	Method   string
	Path     string
	Page     int
	Times    int
	Response MockResponse
}

// RecordedRequest is a request seen by the mock.
type RecordedRequest struct {
	Method  string
	Path    string
	RawPath string
	Query   map[string][]string
	Header  http.Header
	Body    []byte
}

// MockXero is an in-memory fake of the Xero Accounting API contacts
// resource, served over httptest.
type MockXero struct {
	server *httptest.Server
	mu     sync.Mutex

	clock       func() time.Time
	pageSize    int
	contacts    map[string]map[string]any
	order       []string
	attachments map[string][]attachment
	failures    []*Failure
	handlers    map[string]http.HandlerFunc
	requests    []RecordedRequest
	rateHeaders bool
	minute      []time.Time
	day         int
}

type attachment struct {
	id       string
	fileName string
	mimeType string
	data     []byte
}

// NewMockXero creates and starts a new mock Xero server.
func NewMockXero() *MockXero {
	mock := &MockXero{
		clock:       time.Now,
		pageSize:    100,
		contacts:    make(map[string]map[string]any),
		attachments: make(map[string][]attachment),
		handlers:    make(map[string]http.HandlerFunc),
		rateHeaders: true,
	}

	mock.server = httptest.NewServer(http.HandlerFunc(mock.serve))
	return mock
}

// URL returns the Accounting API base URL of the mock.
func (m *MockXero) URL() string {
	return m.server.URL + APIPath
}

// Close shuts down the mock server.
func (m *MockXero) Close() {
	m.server.Close()
}

// SetPageSize changes the number of records per page.
func (m *MockXero) SetPageSize(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pageSize = n
}

// SetClock replaces the clock used for UpdatedDateUTC.
func (m *MockXero) SetClock(clock func() time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clock = clock
}

// SetRateLimitHeaders toggles the X-*Limit-Remaining response headers.
func (m *MockXero) SetRateLimitHeaders(enabled bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rateHeaders = enabled
}

// SetHandler overrides the handler for an API path (relative to APIPath).
func (m *MockXero) SetHandler(path string, handler http.HandlerFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[path] = handler
}

// InjectFailure registers a failure rule.
func (m *MockXero) InjectFailure(f Failure) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures = append(m.failures, &f)
}

// Reset clears recorded requests and failure rules. Stored data is kept.
func (m *MockXero) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = nil
	m.failures = nil
}

// GetRequestCount returns the number of requests made to the server.
func (m *MockXero) GetRequestCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.requests)
}

// Requests returns a copy of the recorded requests.
func (m *MockXero) Requests() []RecordedRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]RecordedRequest(nil), m.requests...)
}

// RequestedPages returns the page query values of recorded requests, in order.
func (m *MockXero) RequestedPages() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	var pages []string
	for _, r := range m.requests {
		if p, ok := r.Query["page"]; ok && len(p) > 0 {
			pages = append(pages, p[0])
		}
	}
	return pages
}

func (m *MockXero) serve(w http.ResponseWriter, r *http.Request) {
	body, _ := readBody(r)

	m.mu.Lock()
	m.requests = append(m.requests, RecordedRequest{
		Method:  r.Method,
		Path:    strings.TrimPrefix(r.URL.Path, APIPath),
		RawPath: strings.TrimPrefix(r.URL.EscapedPath(), APIPath),
		Query:   r.URL.Query(),
		Header:  r.Header.Clone(),
		Body:    body,
	})
	m.stampRateLimit(w)
	failure := m.matchFailure(r)
	path := strings.TrimPrefix(r.URL.Path, APIPath)
	handler, custom := m.handlers[path]
	m.mu.Unlock()

	if failure != nil {
		writeResponse(w, failure.Response)
		return
	}

	if !strings.HasPrefix(r.URL.Path, APIPath) {
		http.NotFound(w, r)
		return
	}

	if r.Header.Get("Authorization") == "" || r.Header.Get("Xero-Tenant-Id") == "" {
		writeJSON(w, http.StatusUnauthorized, map[string]any{
			"Title":  "Unauthorized",
			"Status": http.StatusUnauthorized,
			"Detail": "AuthenticationUnsuccessful",
		})
		return
	}

	if custom {
		handler(w, r)
		return
	}

	m.route(w, r, strings.TrimPrefix(r.URL.EscapedPath(), APIPath), body)
}

// matchFailure must be called with m.mu held.
func (m *MockXero) matchFailure(r *http.Request) *Failure {
	path := strings.TrimPrefix(r.URL.Path, APIPath)
	page := r.URL.Query().Get("page")

	for i, f := range m.failures {
		if f.Method != "" && f.Method != r.Method {
			continue
		}
		if f.Path != "" && f.Path != path {
			continue
		}
		if f.Page != 0 && fmt.Sprint(f.Page) != page {
			continue
		}
		if f.Times > 0 {
			f.Times--
			if f.Times == 0 {
				m.failures = append(m.failures[:i], m.failures[i+1:]...)
			}
		}
		return f
	}
	return nil
}

// stampRateLimit must be called with m.mu held.
func (m *MockXero) stampRateLimit(w http.ResponseWriter) {
	now := time.Now()
	m.day++

	recent := m.minute[:0]
	for _, t := range m.minute {
		if now.Sub(t) < time.Minute {
			recent = append(recent, t)
		}
	}
	m.minute = append(recent, now)

	if !m.rateHeaders {
		return
	}
	w.Header().Set("X-MinLimit-Remaining", fmt.Sprint(max(0, 60-len(m.minute))))
	w.Header().Set("X-DayLimit-Remaining", fmt.Sprint(max(0, 5000-m.day)))
	w.Header().Set("X-AppMinLimit-Remaining", fmt.Sprint(max(0, 10000-len(m.minute))))
}

func writeResponse(w http.ResponseWriter, resp MockResponse) {
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
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeNotFound(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusNotFound)
	w.Write([]byte("The resource you're looking for cannot be found"))
}

// validationException mirrors the 400 body Xero sends for rejected input.
func validationException(messages ...string) map[string]any {
	errs := make([]map[string]any, 0, len(messages))
	for _, msg := range messages {
		errs = append(errs, map[string]any{"Message": msg})
	}
	return map[string]any{
		"ErrorNumber": 10,
		"Type":        "ValidationException",
		"Message":     "A validation exception occurred",
		"Elements":    []map[string]any{{"ValidationErrors": errs}},
	}
}

// newID returns a GUID-formatted identifier.
func newID() string {
	b := ulid.Make()
	return fmt.Sprintf("%x-%x-%x-%x-%x", b[0:4], b[4:6], b[6:8], b[8:10], b[10:16])
}

// msDate formats t the way Xero's JSON does: /Date(1573755038314+0000)/.
func msDate(t time.Time) string {
	return fmt.Sprintf("/Date(%d+0000)/", t.UTC().UnixMilli())
}

// NewRateLimitResponse creates a 429 response with Retry-After.
// problem is "minute", "day" or "appminute".
func NewRateLimitResponse(retryAfter int, problem string) MockResponse {
	return MockResponse{
		StatusCode: http.StatusTooManyRequests,
		Headers: map[string]string{
			"Retry-After":          fmt.Sprint(retryAfter),
			"X-Rate-Limit-Problem": problem,
		},
	}
}

// NewServerErrorResponse creates a 500 Internal Server Error response.
func NewServerErrorResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusInternalServerError,
		Body:       `{"ErrorNumber":500,"Type":"UnknownErrorException","Message":"An error occurred in Xero. Check the API Status page http://status.developer.xero.com for current service status."}`,
		Headers: map[string]string{
			"Content-Type": "application/json; charset=utf-8",
		},
	}
}

// NewNotFoundResponse creates a 404 response with Xero's plain text body.
func NewNotFoundResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusNotFound,
		Body:       "The resource you're looking for cannot be found",
		Headers: map[string]string{
			"Content-Type": "text/plain; charset=utf-8",
		},
	}
}
