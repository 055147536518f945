package cmd

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v5"

	"allthetropes/catwalk/internal/wiki"
)

// retryable reports whether a failed crawl is worth starting over. Server
// load shedding, 5xx, 429 and network errors are; malformed responses and
// anything from the store are not.
func retryable(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	var apiErr *wiki.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code == "maxlag" || apiErr.Code == "ratelimited"
	}
	var httpErr *wiki.HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode >= 500 || httpErr.StatusCode == http.StatusTooManyRequests
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	return errors.Is(err, context.DeadlineExceeded)
}

// withRetries runs op up to retries+1 times with exponential backoff between
// attempts. Errors that are not retryable stop immediately.
func withRetries[T any](ctx context.Context, retries int, logger *slog.Logger, op func() (T, error)) (T, error) {
	attempt := 0
	wrapped := func() (T, error) {
		attempt++
		v, err := op()
		if err != nil && !retryable(err) {
			return v, backoff.Permanent(err)
		}
		return v, err
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 2 * time.Second
	b.MaxInterval = time.Minute

	return backoff.Retry(ctx, wrapped,
		backoff.WithBackOff(b),
		backoff.WithMaxTries(uint(retries+1)),
		backoff.WithNotify(func(err error, wait time.Duration) {
			logger.Warn("crawl failed, retrying", "attempt", attempt, "wait", wait, "err", err)
		}),
	)
}
