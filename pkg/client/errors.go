package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Common errors returned by the client.
var (
	// ErrRetryExhausted is returned when all retry attempts are exhausted.
	ErrRetryExhausted = errors.New("retry attempts exhausted")

	// ErrContextCancelled is returned when the context is cancelled during retry.
	ErrContextCancelled = errors.New("context cancelled")

	// ErrRequestBlocked is returned when the rate limiter refuses a request.
	ErrRequestBlocked = errors.New("request blocked")
)

// ErrorClass represents a classification of request failures.
type ErrorClass string

const (
	// ErrorClassClient represents 4xx client errors.
	ErrorClassClient ErrorClass = "client"

	// ErrorClassServer represents 5xx server errors.
	ErrorClassServer ErrorClass = "server"

	// ErrorClassRateLimit represents 429 rate limit errors.
	ErrorClassRateLimit ErrorClass = "rate_limit"

	// ErrorClassNetwork represents network/timeout errors.
	ErrorClassNetwork ErrorClass = "network"
)

// RemoteError is a failed Xero request: a non-2xx response, a transport
// failure, or records Xero rejected inside a batch response.
type RemoteError struct {
	// StatusCode is 0 for transport failures
	StatusCode int
	ErrorClass ErrorClass
	Message    string

	// Xero error body fields (ApiException)
	ErrorNumber      int
	Type             string
	ValidationErrors []string

	// RetryAfter is parsed from the Retry-After header of 429 responses
	RetryAfter time.Duration

	Err error
}

// Error implements the error interface.
func (e *RemoteError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "xero %s error (status %d): %s", e.ErrorClass, e.StatusCode, e.Message)
	if len(e.ValidationErrors) > 0 {
		fmt.Fprintf(&b, " [%s]", strings.Join(e.ValidationErrors, "; "))
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *RemoteError) Unwrap() error {
	return e.Err
}

// IsNotFound reports whether the remote answered 404.
func (e *RemoteError) IsNotFound() bool {
	return e.StatusCode == http.StatusNotFound
}

// blockedError reports a request the client refused to send. It never
// reached Xero, so StatusCode is 0.
func blockedError(err error) *RemoteError {
	return &RemoteError{
		ErrorClass: ErrorClassRateLimit,
		Message:    "request not sent",
		Err:        fmt.Errorf("%w: %w", ErrRequestBlocked, err),
	}
}

// ValidationError is malformed local input detected before any request.
type ValidationError struct {
	Field   string
	Message string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation failed: " + e.Message
	}
	return fmt.Sprintf("validation failed: %s: %s", e.Field, e.Message)
}

// apiException mirrors the Xero error body.
type apiException struct {
	ErrorNumber int    `json:"ErrorNumber"`
	Type        string `json:"Type"`
	Message     string `json:"Message"`
	Title       string `json:"Title"`
	Detail      string `json:"Detail"`
	Elements    []struct {
		ValidationErrors []struct {
			Message string `json:"Message"`
		} `json:"ValidationErrors"`
	} `json:"Elements"`
}

// newRemoteError builds a RemoteError from a failed response body.
// Non-JSON bodies (Xero answers 404 with plain text) become the message.
func newRemoteError(statusCode int, class ErrorClass, body []byte, header http.Header) *RemoteError {
	e := &RemoteError{
		StatusCode: statusCode,
		ErrorClass: class,
		Message:    http.StatusText(statusCode),
	}

	var apiErr apiException
	if err := json.Unmarshal(body, &apiErr); err == nil {
		e.ErrorNumber = apiErr.ErrorNumber
		e.Type = apiErr.Type
		switch {
		case apiErr.Message != "":
			e.Message = apiErr.Message
		case apiErr.Detail != "":
			e.Message = apiErr.Detail
		case apiErr.Title != "":
			e.Message = apiErr.Title
		}
		for _, el := range apiErr.Elements {
			for _, v := range el.ValidationErrors {
				e.ValidationErrors = append(e.ValidationErrors, v.Message)
			}
		}
	} else if text := strings.TrimSpace(string(body)); text != "" && len(text) < 512 {
		e.Message = text
	}

	if ra := header.Get("Retry-After"); ra != "" {
		if secs, err := time.ParseDuration(ra + "s"); err == nil {
			e.RetryAfter = secs
		}
	}

	return e
}

// shouldRetry determines if an error should be retried based on its classification.
func shouldRetry(errorClass ErrorClass) bool {
	switch errorClass {
	case ErrorClassClient:
		// 4xx errors are final (validation, not found, auth)
		return false
	case ErrorClassServer, ErrorClassRateLimit, ErrorClassNetwork:
		return true
	default:
		return false
	}
}
