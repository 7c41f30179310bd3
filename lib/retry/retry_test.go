package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/raulk/clock"
	"github.com/stretchr/testify/require"
)

var errFlaky = errors.New("flaky")

func always(error) bool { return true }

func TestRetrySucceedsEventually(t *testing.T) {
	calls := 0
	res, err := Retry(context.Background(), clock.New(), 3, time.Millisecond, always, func(context.Context) (int, error) {
		calls++
		if calls < 3 {
			return 0, errFlaky
		}
		return 42, nil
	})
	require.NoError(t, err)
	require.Equal(t, 42, res)
	require.Equal(t, 3, calls)
}

func TestRetryGivesUp(t *testing.T) {
	calls := 0
	_, err := Retry(context.Background(), clock.New(), 2, time.Millisecond, always, func(context.Context) (int, error) {
		calls++
		return 0, errFlaky
	})
	require.ErrorIs(t, err, errFlaky)
	require.Equal(t, 3, calls)
}

func TestRetryZeroRetries(t *testing.T) {
	calls := 0
	_, err := Retry(context.Background(), clock.New(), 0, time.Hour, always, func(context.Context) (int, error) {
		calls++
		return 0, errFlaky
	})
	require.ErrorIs(t, err, errFlaky)
	require.Equal(t, 1, calls)
}

func TestRetryNotRetryable(t *testing.T) {
	calls := 0
	_, err := Retry(context.Background(), clock.New(), 5, time.Millisecond, func(error) bool { return false }, func(context.Context) (int, error) {
		calls++
		return 0, errFlaky
	})
	require.ErrorIs(t, err, errFlaky)
	require.Equal(t, 1, calls)
}

func TestRetryCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	_, err := Retry(ctx, clock.New(), 5, time.Hour, always, func(context.Context) (int, error) {
		calls++
		cancel()
		return 0, errFlaky
	})
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, 1, calls)
}

func TestRetryZeroDelayDoesNotWait(t *testing.T) {
	// a mock clock that is never advanced would block any wait forever
	clk := clock.NewMock()
	calls := 0
	res, err := Retry(context.Background(), clk, 3, 0, always, func(context.Context) (int, error) {
		calls++
		if calls < 4 {
			return 0, errFlaky
		}
		return 7, nil
	})
	require.NoError(t, err)
	require.Equal(t, 7, res)
	require.Equal(t, 4, calls)
}
