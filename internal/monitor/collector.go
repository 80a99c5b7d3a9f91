package monitor

import (
	"context"
	"fmt"
	"time"

	"github.com/rileyhilliard/idrac-power/internal/errors"
	"github.com/sethvargo/go-retry"
)

const (
	// DefaultMaxAttempts is the number of fetches per sample before giving up.
	DefaultMaxAttempts = 3
	// DefaultBaseDelay is the wait before the second attempt; it doubles for
	// every further attempt.
	DefaultBaseDelay = 2 * time.Second
)

// Collector takes one sample from a Fetcher, retrying with exponential
// backoff: attempt 1 immediately, attempt 2 after BaseDelay, attempt 3 after
// 2*BaseDelay, and so on up to MaxAttempts.
type Collector struct {
	fetcher  Fetcher
	reporter Reporter

	MaxAttempts int
	BaseDelay   time.Duration

	now func() time.Time
}

// NewCollector creates a collector with the default retry policy.
func NewCollector(fetcher Fetcher, reporter Reporter) *Collector {
	return &Collector{
		fetcher:     fetcher,
		reporter:    orNop(reporter),
		MaxAttempts: DefaultMaxAttempts,
		BaseDelay:   DefaultBaseDelay,
		now:         time.Now,
	}
}

// Collect fetches metrics and returns them as a Sample stamped with the
// wall-clock time of the successful fetch.
//
// When every attempt fails the returned error has code ErrCollection and
// wraps the last fetch error. If ctx is cancelled before a fetch succeeds,
// ctx.Err() is returned as-is so callers can tell an interrupt from a failure.
func (c *Collector) Collect(ctx context.Context) (Sample, error) {
	maxAttempts := c.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	base := c.BaseDelay
	if base <= 0 {
		base = time.Millisecond
	}

	backoff := retry.WithMaxRetries(uint64(maxAttempts-1), retry.NewExponential(base))

	var (
		attempt int
		lastErr error
		sample  Sample
	)
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		snapshot, err := c.fetcher.FetchMetrics(ctx)
		if err == nil && snapshot == nil {
			err = fmt.Errorf("empty metrics response")
		}
		if err != nil {
			lastErr = err
			if attempt < maxAttempts && ctx.Err() == nil {
				c.reporter.Retrying(attempt, maxAttempts, c.delayBefore(attempt+1, base), err)
			}
			return retry.RetryableError(err)
		}

		sample = Sample{
			Timestamp:   c.now(),
			SystemWatts: snapshot.CurrentWatts,
			Devices:     snapshot.PowerSupplies,
		}
		return nil
	})

	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Sample{}, ctxErr
		}
		if lastErr == nil {
			lastErr = err
		}
		return Sample{}, errors.WrapWithCode(lastErr, errors.ErrCollection,
			fmt.Sprintf("Error collecting sample after %d attempts", attempt),
			"The controller may be busy or unreachable; the next interval will try again.")
	}
	return sample, nil
}

// delayBefore returns the backoff wait that precedes the given 1-based attempt.
func (c *Collector) delayBefore(attempt int, base time.Duration) time.Duration {
	if attempt <= 1 {
		return 0
	}
	return base << uint(attempt-2)
}
