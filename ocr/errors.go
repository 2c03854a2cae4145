package ocr

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
)

var (
	// ErrMissingAPIKey is returned by NewClient when no API key is configured.
	ErrMissingAPIKey = errors.New("API key is required")

	// ErrEmptyJobID is returned when an operation is called without a job ID.
	ErrEmptyJobID = errors.New("job ID is required")

	// ErrInvalidOptions wraps every configuration validation failure.
	ErrInvalidOptions = errors.New("invalid options")

	// ErrIncompleteResult is returned by ValidateResult for unusable results.
	ErrIncompleteResult = errors.New("incomplete job result")
)

// TimeoutError is returned when a job does not reach a terminal state
// before the polling deadline. The remote job keeps running.
type TimeoutError struct {
	JobID      string
	Timeout    time.Duration
	Elapsed    time.Duration
	LastStatus JobStatus
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("job %s did not complete within %s (last status: %s)", e.JobID, e.Timeout, e.LastStatus)
}

// JobFailedError is returned when the service reports the job as failed or cancelled.
type JobFailedError struct {
	JobID   string
	Status  JobStatus
	Message string
}

func (e *JobFailedError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("job %s %s", e.JobID, e.Status)
	}
	return fmt.Sprintf("job %s %s: %s", e.JobID, e.Status, e.Message)
}

// TransportError is returned when status fetches keep failing past the retry
// limit, or fail with an error that cannot be retried.
type TransportError struct {
	JobID    string
	Attempts int
	Err      error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("status fetch for job %s failed after %d attempt(s): %v", e.JobID, e.Attempts, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// ErrorKind classifies API errors by HTTP status.
type ErrorKind string

const (
	KindAuthentication ErrorKind = "authentication_error"
	KindNotFound       ErrorKind = "not_found_error"
	KindValidation     ErrorKind = "validation_error"
	KindRateLimit      ErrorKind = "rate_limit_error"
	KindServer         ErrorKind = "server_error"
	KindClient         ErrorKind = "client_error"
)

// APIError is a non-2xx response from the service.
type APIError struct {
	StatusCode int
	Kind       ErrorKind
	Message    string
	Body       string
	RetryAfter time.Duration
}

func (e *APIError) Error() string {
	return fmt.Sprintf("leapocr %s (status %d): %s", e.Kind, e.StatusCode, e.Message)
}

// Retryable reports whether the same request may succeed later.
func (e *APIError) Retryable() bool {
	return e.Kind == KindRateLimit || e.Kind == KindServer
}

// newAPIError builds an APIError from a failed response.
func newAPIError(status int, body []byte, header http.Header) *APIError {
	e := &APIError{
		StatusCode: status,
		Body:       string(body),
		RetryAfter: parseRetryAfter(header.Get("Retry-After"), time.Now()),
	}

	switch {
	case status == http.StatusUnauthorized:
		e.Kind, e.Message = KindAuthentication, "invalid API key or authentication failed"
	case status == http.StatusForbidden:
		e.Kind, e.Message = KindAuthentication, "access forbidden - check API key permissions"
	case status == http.StatusNotFound:
		e.Kind, e.Message = KindNotFound, "resource not found"
	case status == http.StatusBadRequest || status == http.StatusUnprocessableEntity:
		e.Kind, e.Message = KindValidation, "validation error"
	case status == http.StatusTooManyRequests:
		e.Kind, e.Message = KindRateLimit, "rate limit exceeded"
	case status >= 500 && status < 600:
		e.Kind, e.Message = KindServer, "server error"
	default:
		e.Kind, e.Message = KindClient, http.StatusText(status)
	}

	if msg := errorMessageFromBody(body); msg != "" {
		e.Message = msg
	}
	return e
}

// errorMessageFromBody understands {"error":"..."}, {"message":"..."} and
// {"error":{"message":"..."}} bodies.
func errorMessageFromBody(body []byte) string {
	var resp struct {
		Error   json.RawMessage `json:"error"`
		Message string          `json:"message"`
		Detail  string          `json:"detail"`
	}
	if json.Unmarshal(body, &resp) != nil {
		return ""
	}
	if len(resp.Error) > 0 {
		var s string
		if json.Unmarshal(resp.Error, &s) == nil && s != "" {
			return s
		}
		var nested struct {
			Message string `json:"message"`
		}
		if json.Unmarshal(resp.Error, &nested) == nil && nested.Message != "" {
			return nested.Message
		}
	}
	if resp.Message != "" {
		return resp.Message
	}
	return resp.Detail
}

// parseRetryAfter accepts delta-seconds or an HTTP date.
func parseRetryAfter(v string, now time.Time) time.Duration {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil {
		if secs < 0 {
			return 0
		}
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(v); err == nil {
		if d := t.Sub(now); d > 0 {
			return d
		}
	}
	return 0
}

// isRetryableFetchError reports whether the poller may retry a failed status fetch.
func isRetryableFetchError(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Retryable()
	}
	return true
}
