package generation

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/alantheprice/proven/pkg/utils"
)

// ErrorKind classifies a generation failure.
type ErrorKind string

const (
	AuthenticationFailed ErrorKind = "authentication-failed"
	RateLimited          ErrorKind = "rate-limited"
	ServiceUnavailable   ErrorKind = "service-unavailable"
	InvalidResponse      ErrorKind = "invalid-response"
	// RequestFailed covers other client errors such as an unknown model.
	RequestFailed ErrorKind = "request-failed"
)

// Error is a classified generation failure.
type Error struct {
	Kind       ErrorKind
	Provider   string
	StatusCode int
	Message    string
	RetryAfter time.Duration
	Err        error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Provider)
	if e.Provider == "" {
		b.WriteString("generation")
	}
	b.WriteString(": ")
	b.WriteString(string(e.Kind))
	if e.StatusCode != 0 {
		fmt.Fprintf(&b, " (status %d)", e.StatusCode)
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// Retryable reports whether the call may be repeated with backoff.
func (e *Error) Retryable() bool {
	return e.Kind == RateLimited || e.Kind == ServiceUnavailable
}

// IsRetryable reports whether err is a retryable *Error.
func IsRetryable(err error) bool {
	var gerr *Error
	return errors.As(err, &gerr) && gerr.Retryable()
}

// KindOf returns the kind of a generation error, or "" for other errors.
func KindOf(err error) ErrorKind {
	var gerr *Error
	if errors.As(err, &gerr) {
		return gerr.Kind
	}
	return ""
}

const maxMessageLen = 500

// ClassifyStatus maps a non-2xx HTTP response to an *Error.
func ClassifyStatus(provider string, status int, header http.Header, body string) *Error {
	msg := strings.TrimSpace(body)
	if len(msg) > maxMessageLen {
		msg = msg[:maxMessageLen] + "..."
	}
	e := &Error{Provider: provider, StatusCode: status, Message: msg}

	switch {
	case status == http.StatusTooManyRequests:
		e.Kind = RateLimited
		e.RetryAfter = utils.RetryAfterFromHeaders(header)
	case status == http.StatusUnauthorized:
		e.Kind = AuthenticationFailed
	case status == http.StatusForbidden:
		// Some providers report exhausted quota as 403.
		if utils.IsRateLimitBody(body) {
			e.Kind = RateLimited
			e.RetryAfter = utils.RetryAfterFromHeaders(header)
		} else {
			e.Kind = AuthenticationFailed
		}
	case status == http.StatusRequestTimeout, status >= 500:
		// 529 is Anthropic's "overloaded"
		e.Kind = ServiceUnavailable
		e.RetryAfter = utils.RetryAfterFromHeaders(header)
	default:
		e.Kind = RequestFailed
	}
	return e
}

// TransportError classifies a failure to reach the service. Cancellation
// is returned unchanged so callers can tell it apart from an outage.
func TransportError(provider string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return &Error{Kind: ServiceUnavailable, Provider: provider, Message: "request failed", Err: err}
}

// Invalid builds an InvalidResponse error.
func Invalid(provider, format string, args ...any) *Error {
	return &Error{Kind: InvalidResponse, Provider: provider, Message: fmt.Sprintf(format, args...)}
}
