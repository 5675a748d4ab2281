package llm

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrorKind classifies API failures from model providers so that callers can
// branch on them exhaustively instead of inspecting error strings.
type ErrorKind int

const (
	// KindOther is any failure not covered by a more specific kind
	// (network errors, malformed responses, 5xx server errors).
	KindOther ErrorKind = iota

	// KindQuotaExceeded means the account has exhausted its usage quota.
	KindQuotaExceeded

	// KindRateLimited means the provider is rejecting requests due to
	// request-rate caps; the condition is transient.
	KindRateLimited

	// KindAuthFailed means the API key is missing, invalid, or expired.
	// This indicates misconfiguration, not transient exhaustion.
	KindAuthFailed
)

// String returns a stable label for the error kind.
func (k ErrorKind) String() string {
	switch k {
	case KindQuotaExceeded:
		return "quota_exceeded"
	case KindRateLimited:
		return "rate_limited"
	case KindAuthFailed:
		return "auth_failed"
	default:
		return "other"
	}
}

// APIError is a typed failure from a model provider call.
type APIError struct {
	Kind       ErrorKind
	Provider   string
	StatusCode int
	Message    string
}

// Error implements the error interface.
func (e *APIError) Error() string {
	return fmt.Sprintf("%s api error (%s, status %d): %s", e.Provider, e.Kind, e.StatusCode, e.Message)
}

// KindOf extracts the ErrorKind from err. Non-API errors report KindOther.
func KindOf(err error) ErrorKind {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Kind
	}
	return KindOther
}

// IsQuotaError reports whether err is a quota-exceeded or rate-limited
// failure, the two kinds that feed the summarization quota breaker.
func IsQuotaError(err error) bool {
	switch KindOf(err) {
	case KindQuotaExceeded, KindRateLimited:
		return true
	default:
		return false
	}
}

// classifyStatus maps an HTTP response from a provider to an *APIError.
// A 429 with a quota-flavored body is reported as quota exhaustion rather
// than a transient rate limit; both feed the quota breaker either way.
func classifyStatus(provider string, statusCode int, body string) *APIError {
	kind := KindOther
	switch statusCode {
	case http.StatusTooManyRequests:
		kind = KindRateLimited
		if strings.Contains(body, "insufficient_quota") || strings.Contains(body, "quota") || strings.Contains(body, "billing") {
			kind = KindQuotaExceeded
		}
	case http.StatusUnauthorized, http.StatusForbidden:
		kind = KindAuthFailed
	}
	return &APIError{
		Kind:       kind,
		Provider:   provider,
		StatusCode: statusCode,
		Message:    truncateBody(body),
	}
}

// truncateBody keeps error messages log-friendly.
func truncateBody(body string) string {
	const max = 512
	if len(body) > max {
		return body[:max]
	}
	return body
}
