package retry

import (
	"context"
	"time"

	logging "github.com/ipfs/go-log/v2"
	"github.com/jpillora/backoff"
	"github.com/raulk/clock"
	"golang.org/x/xerrors"
)

var log = logging.Logger("retry")

const maxDelayFactor = 32

// Retry runs f until it succeeds, fails with an error retryable rejects, or 1+retries
// attempts have been made. Waits between attempts start at delay and double each time;
// a delay of 0 retries immediately.
func Retry[T any](ctx context.Context, clk clock.Clock, retries int, delay time.Duration, retryable func(error) bool, f func(context.Context) (T, error)) (result T, err error) {
	b := &backoff.Backoff{
		Min:    delay,
		Max:    delay * maxDelayFactor,
		Factor: 2,
	}

	for i := 0; ; i++ {
		result, err = f(ctx)
		if err == nil || i >= retries || !retryable(err) {
			return result, err
		}

		if delay <= 0 {
			// backoff replaces a zero Min with its own default
			log.Infow("retrying after error", "attempt", i+1, "err", err)
			if ctx.Err() != nil {
				var zero T
				return zero, xerrors.Errorf("retry aborted (last error: %s): %w", err, ctx.Err())
			}
			continue
		}

		wait := b.Duration()
		log.Infow("retrying after error", "attempt", i+1, "wait", wait, "err", err)
		select {
		case <-ctx.Done():
			var zero T
			return zero, xerrors.Errorf("retry aborted (last error: %s): %w", err, ctx.Err())
		case <-clk.After(wait):
		}
	}
}
