package link

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// pollBackOff retries at a fixed interval until timeout has elapsed.
func pollBackOff(ctx context.Context, interval, timeout time.Duration) backoff.BackOff {
	return backoff.WithContext(&backoff.ExponentialBackOff{
		InitialInterval:     interval,
		RandomizationFactor: 0,
		Multiplier:          1,
		MaxInterval:         interval,
		MaxElapsedTime:      timeout,
		Stop:                backoff.Stop,
		Clock:               backoff.SystemClock,
	}, ctx)
}

// Poll calls op until it returns nil, interval apart, for at most timeout.
// The last error from op is returned when the budget runs out.
func Poll(ctx context.Context, interval, timeout time.Duration, op func() error) error {
	return backoff.Retry(op, pollBackOff(ctx, interval, timeout))
}
