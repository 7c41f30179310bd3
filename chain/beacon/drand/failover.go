package drand

import (
	"context"

	"golang.org/x/xerrors"

	"github.com/boneyard93501/simple-drand/chain/beacon"
)

type outcome int

const (
	// outcomeSuccess ends the request with the attempt's result.
	outcomeSuccess outcome = iota
	// outcomeRetryable means the endpoint could not be reached or answered garbage.
	outcomeRetryable
	// outcomeFatal means the endpoint answered with data that must not be trusted. The
	// endpoint is not asked again but the next one is.
	outcomeFatal
	// outcomeAbort stops the request without trying further endpoints.
	outcomeAbort
)

type attemptFunc[T any] func(ctx context.Context, url string) (T, outcome, error)

// failover walks an endpoint list strictly in order, one attempt per endpoint, and
// collects the reason each one failed.
type failover[T any] struct {
	urls     []string
	selected int
	failures []*beacon.EndpointError
}

func newFailover[T any](urls []string) *failover[T] {
	return &failover[T]{urls: urls}
}

func (f *failover[T]) run(ctx context.Context, attempt attemptFunc[T]) (T, error) {
	var zero T
	for f.selected < len(f.urls) {
		if err := ctx.Err(); err != nil {
			return zero, xerrors.Errorf("aborted before endpoint %d of %d: %w", f.selected+1, len(f.urls), err)
		}

		url := f.urls[f.selected]
		res, out, err := attempt(ctx, url)
		switch out {
		case outcomeSuccess:
			return res, nil
		case outcomeAbort:
			return zero, &beacon.EndpointError{URL: url, Err: err}
		}

		if ctx.Err() != nil {
			// the caller gave up, whatever the endpoint did is not its fault
			return zero, xerrors.Errorf("aborted during endpoint %d of %d (%s): %w", f.selected+1, len(f.urls), err, ctx.Err())
		}

		log.Debugw("endpoint failed", "url", url, "fatal", out == outcomeFatal, "err", err)
		f.failures = append(f.failures, &beacon.EndpointError{URL: url, Err: err})
		f.selected++
	}
	return zero, &beacon.AllEndpointsFailedError{Failures: f.failures}
}

// retryableSweep reports whether a failed sweep is worth repeating: every endpoint failed
// for transport reasons and none served untrustworthy data.
func retryableSweep(err error) bool {
	var all *beacon.AllEndpointsFailedError
	if !xerrors.As(err, &all) || len(all.Failures) == 0 {
		return false
	}
	for _, f := range all.Failures {
		if !xerrors.Is(f, beacon.ErrTransport) && !xerrors.Is(f, beacon.ErrMalformedBeacon) {
			return false
		}
	}
	return true
}
