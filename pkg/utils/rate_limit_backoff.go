package utils

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// RateLimitBackoff handles rate limit detection and backoff calculations
type RateLimitBackoff struct {
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
	BufferTime time.Duration
	outputFn   func(string)
}

// NewRateLimitBackoff creates a new rate limit backoff handler with sensible defaults
func NewRateLimitBackoff() *RateLimitBackoff {
	return &RateLimitBackoff{
		MaxRetries: 5,
		BaseDelay:  2 * time.Second,
		MaxDelay:   60 * time.Second,
		BufferTime: 2 * time.Second,
	}
}

// SetOutputFunc sets where user-facing wait messages go. nil silences them.
func (rlb *RateLimitBackoff) SetOutputFunc(fn func(string)) {
	rlb.outputFn = fn
}

func (rlb *RateLimitBackoff) print(msg string) {
	if rlb.outputFn != nil {
		rlb.outputFn(msg)
	}
}

// IsRateLimitBody reports whether a non-429 error body still describes a
// rate limit (OpenAI returns some quota errors as 403).
func IsRateLimitBody(body string) bool {
	s := strings.ToLower(body)
	return strings.Contains(s, "rate limit") ||
		strings.Contains(s, "requests per minute") ||
		strings.Contains(s, "rpm exceeded") ||
		strings.Contains(s, "rate exceeded") ||
		strings.Contains(s, "too many requests") ||
		strings.Contains(s, "insufficient_quota") ||
		strings.Contains(s, "insufficient quota") ||
		strings.Contains(s, "resource_exhausted") ||
		(strings.Contains(s, "quota") && strings.Contains(s, "exceeded")) ||
		strings.Contains(s, "current quota")
}

// Delay returns how long to wait before retry number attempt (0-based).
// A positive hint from the provider wins over exponential backoff.
func (rlb *RateLimitBackoff) Delay(hint time.Duration, attempt int) time.Duration {
	if hint > 0 {
		return rlb.capDelay(hint + rlb.BufferTime)
	}
	return rlb.exponentialBackoff(attempt)
}

// RetryAfterFromHeaders parses the rate limit headers used by the supported
// providers. It returns 0 when none is present or parseable.
func RetryAfterFromHeaders(h http.Header) time.Duration {
	if h == nil {
		return 0
	}

	// Retry-After header (in seconds)
	if retryAfter := h.Get("Retry-After"); retryAfter != "" {
		if seconds, err := strconv.Atoi(retryAfter); err == nil && seconds > 0 {
			return time.Duration(seconds) * time.Second
		}
		if at, err := http.ParseTime(retryAfter); err == nil {
			if wait := time.Until(at); wait > 0 {
				return wait
			}
		}
	}

	// Anthropic format (RFC 3339 reset time)
	if reset := h.Get("Anthropic-Ratelimit-Requests-Reset"); reset != "" {
		if at, err := time.Parse(time.RFC3339, reset); err == nil {
			if wait := time.Until(at); wait > 0 {
				return wait
			}
		}
	}

	// OpenAI format (duration such as "1s" or "6m0s")
	for _, key := range []string{"X-Ratelimit-Reset-Requests", "X-Ratelimit-Reset-Tokens"} {
		if reset := h.Get(key); reset != "" {
			if d, err := time.ParseDuration(reset); err == nil && d > 0 {
				return d
			}
		}
	}

	return 0 // No parseable headers found
}

// exponentialBackoff calculates exponential backoff delay
func (rlb *RateLimitBackoff) exponentialBackoff(attempt int) time.Duration {
	delay := rlb.BaseDelay * time.Duration(math.Pow(2, float64(attempt)))
	return rlb.capDelay(delay)
}

// capDelay ensures delay doesn't exceed maximum
func (rlb *RateLimitBackoff) capDelay(delay time.Duration) time.Duration {
	if delay > rlb.MaxDelay {
		return rlb.MaxDelay
	}
	if delay < 0 {
		return rlb.BaseDelay
	}
	return delay
}

// ShouldRetry determines if we should retry based on attempt count
func (rlb *RateLimitBackoff) ShouldRetry(attempt int) bool {
	return attempt < rlb.MaxRetries
}

// Wait blocks for duration or until ctx is done, showing progress for long waits.
func (rlb *RateLimitBackoff) Wait(ctx context.Context, duration time.Duration, provider string) error {
	if duration <= 0 {
		return ctx.Err()
	}

	rlb.print(fmt.Sprintf("Backing off from %s for %v before retry...\n", provider, duration.Round(time.Second)))

	deadline := time.NewTimer(duration)
	defer deadline.Stop()

	// Show progress for long waits
	var tick <-chan time.Time
	if duration > 10*time.Second {
		ticker := time.NewTicker(5 * time.Second)
		defer ticker.Stop()
		tick = ticker.C
	}

	start := time.Now()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-tick:
			remaining := duration - time.Since(start)
			if remaining > 0 {
				rlb.print(fmt.Sprintf("   Still waiting... %v remaining\n", remaining.Round(time.Second)))
			}
		case <-deadline.C:
			return nil
		}
	}
}
