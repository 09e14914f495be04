package utils

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestIsRateLimitBody(t *testing.T) {
	for _, body := range []string{
		"You exceeded your current quota, please check your plan and billing details.",
		`{"error":{"code":"insufficient_quota"}}`,
		"RESOURCE_EXHAUSTED: Quota exceeded for quota metric",
		"Too Many Requests",
		"Rate limit reached for requests per minute",
	} {
		assert.True(t, IsRateLimitBody(body), body)
	}
	assert.False(t, IsRateLimitBody("invalid x-api-key"))
	assert.False(t, IsRateLimitBody("upstream error 502"))
}

func TestRetryAfterFromHeaders(t *testing.T) {
	h := http.Header{}
	assert.Equal(t, time.Duration(0), RetryAfterFromHeaders(h))

	h.Set("Retry-After", "7")
	assert.Equal(t, 7*time.Second, RetryAfterFromHeaders(h))

	h = http.Header{}
	h.Set("X-Ratelimit-Reset-Requests", "1.5s")
	assert.Equal(t, 1500*time.Millisecond, RetryAfterFromHeaders(h))
	assert.Equal(t, time.Duration(0), RetryAfterFromHeaders(nil))
}

func TestDelay(t *testing.T) {
	rlb := NewRateLimitBackoff()
	assert.Equal(t, 2*time.Second, rlb.Delay(0, 0))
	assert.Equal(t, 8*time.Second, rlb.Delay(0, 2))
	assert.Equal(t, 60*time.Second, rlb.Delay(0, 10), "capped at MaxDelay")
	assert.Equal(t, 12*time.Second, rlb.Delay(10*time.Second, 0), "hint plus buffer")
	assert.Equal(t, 60*time.Second, rlb.Delay(10*time.Minute, 0))
}

func TestShouldRetry(t *testing.T) {
	rlb := NewRateLimitBackoff()
	rlb.MaxRetries = 2
	assert.True(t, rlb.ShouldRetry(0))
	assert.True(t, rlb.ShouldRetry(1))
	assert.False(t, rlb.ShouldRetry(2))
}

func TestWaitHonoursContext(t *testing.T) {
	rlb := NewRateLimitBackoff()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	err := rlb.Wait(ctx, time.Minute, "test")
	assert.ErrorIs(t, err, context.Canceled)
	assert.Less(t, time.Since(start), time.Second)

	var msgs []string
	rlb.SetOutputFunc(func(s string) { msgs = append(msgs, s) })
	assert.NoError(t, rlb.Wait(context.Background(), 5*time.Millisecond, "test"))
	assert.Len(t, msgs, 1)
}
