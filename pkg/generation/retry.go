package generation

import (
	"context"
	"errors"
	"fmt"

	"github.com/alantheprice/proven/pkg/utils"
)

// RetryNotifier is told about each retryable failure before the wait.
type RetryNotifier func(err *Error, retry int, wait string)

// Generate calls b with bounded backoff on rate limits and outages, then
// extracts the code artifact from the response. Waits stop when ctx is done.
func Generate(ctx context.Context, b Backend, req Request, backoff *utils.RateLimitBackoff, notify RetryNotifier) (string, error) {
	if backoff == nil {
		backoff = utils.NewRateLimitBackoff()
	}

	for retry := 0; ; retry++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		text, err := b.Generate(ctx, req)
		if err == nil {
			code, err := ExtractCode(text, req.Language)
			if err != nil {
				return "", Invalid(b.Name(), "%v", err)
			}
			return code, nil
		}

		var gerr *Error
		if !errors.As(err, &gerr) || !gerr.Retryable() {
			return "", err
		}
		if !backoff.ShouldRetry(retry) {
			return "", fmt.Errorf("giving up after %d retries: %w", retry, err)
		}

		delay := backoff.Delay(gerr.RetryAfter, retry)
		if notify != nil {
			notify(gerr, retry+1, delay.String())
		}
		if err := backoff.Wait(ctx, delay, b.Name()); err != nil {
			return "", err
		}
	}
}
