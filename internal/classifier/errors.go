package classifier

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"meddoc/internal/services"
)

// ErrResponseParse marks a response body that contained no decodable JSON
// object. It is not retried.
var ErrResponseParse = errors.New("classifier response is not JSON")

// RateLimitError is returned once every attempt was answered with HTTP 429.
type RateLimitError struct {
	Attempts   int
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("classifier rate limited after %d attempts", e.Attempts)
}

func (e *RateLimitError) Unwrap() error { return services.ErrExternalTool }

// StatusError is a non-retryable HTTP failure.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("classifier request: http %d: %s", e.StatusCode, summarizeSnippet(e.Body))
}

func (e *StatusError) Unwrap() error { return services.ErrExternalTool }

// TransportError is returned when the endpoint stayed unreachable for every
// attempt.
type TransportError struct {
	Attempts int
	Err      error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("classifier unreachable after %d attempts: %v", e.Attempts, e.Err)
}

func (e *TransportError) Unwrap() []error { return []error{services.ErrTransient, e.Err} }

// httpStatusError is the per-attempt form of a non-2xx answer.
type httpStatusError struct {
	StatusCode int
	Body       string
	RetryAfter time.Duration
}

func (e *httpStatusError) Error() string {
	return fmt.Sprintf("classifier request: http %d: %s", e.StatusCode, strings.TrimSpace(e.Body))
}

func summarizeSnippet(content string) string {
	clean := strings.Join(strings.Fields(content), " ")
	if clean == "" {
		return "<empty>"
	}
	const limit = 160
	runes := []rune(clean)
	if len(runes) > limit {
		clean = string(runes[:limit]) + "..."
	}
	return clean
}
