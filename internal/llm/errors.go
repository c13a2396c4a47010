package llm

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrorKind classifies a completion-service failure so callers can decide
// whether a turn-level failure is worth surfacing as rate limiting, quota
// exhaustion, or a generic upstream error.
type ErrorKind string

const (
	ErrKindRateLimited   ErrorKind = "rate_limited"
	ErrKindQuotaExceeded ErrorKind = "quota_exceeded"
	ErrKindUpstream      ErrorKind = "upstream"
)

// APIError is the typed error returned by providers on a non-2xx response.
type APIError struct {
	Provider   string
	StatusCode int
	Kind       ErrorKind
	Body       string
}

// Error implements the error interface.
func (e *APIError) Error() string {
	return fmt.Sprintf("%s error (status %d, %s): %s", e.Provider, e.StatusCode, e.Kind, e.Body)
}

// newAPIError classifies a non-2xx provider response.
// 429 is rate limiting unless the body indicates an exhausted quota or
// billing problem, which some providers also signal via 403.
func newAPIError(provider string, status int, body []byte) *APIError {
	kind := ErrKindUpstream
	lower := strings.ToLower(string(body))

	switch {
	case status == http.StatusTooManyRequests:
		kind = ErrKindRateLimited
		if strings.Contains(lower, "quota") || strings.Contains(lower, "billing") {
			kind = ErrKindQuotaExceeded
		}
	case status == http.StatusForbidden && strings.Contains(lower, "quota"):
		kind = ErrKindQuotaExceeded
	case strings.Contains(lower, "insufficient_quota"):
		kind = ErrKindQuotaExceeded
	}

	return &APIError{
		Provider:   provider,
		StatusCode: status,
		Kind:       kind,
		Body:       truncateBody(string(body)),
	}
}

// truncateBody keeps error bodies readable in logs.
func truncateBody(s string) string {
	const max = 512
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}

// IsRateLimited reports whether err is a rate-limit classification.
func IsRateLimited(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Kind == ErrKindRateLimited
}

// IsQuotaExceeded reports whether err is a quota-exhaustion classification.
func IsQuotaExceeded(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Kind == ErrKindQuotaExceeded
}
