package beacon

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/boneyard93501/simple-drand/chain/types"
)

func TestRoundAt(t *testing.T) {
	rc, err := NewRoundClock(1692803367, 30*time.Second)
	require.NoError(t, err)

	// round 11 covers genesis+300 up to genesis+329, genesis+330 opens round 12
	for ts := int64(1692803667); ts < 1692803697; ts++ {
		require.Equal(t, uint64(11), rc.RoundAt(ts))
	}
	require.Equal(t, uint64(12), rc.RoundAt(1692803697))
	ts, err := rc.TimeOfRound(11)
	require.NoError(t, err)
	require.Equal(t, int64(1692803667), ts)

	require.Equal(t, uint64(1), rc.RoundAt(1692803367))
	require.Equal(t, uint64(1), rc.RoundAt(1692803367+29))
	require.Equal(t, uint64(2), rc.RoundAt(1692803367+30))
}

func TestRoundAtQuicknetPeriod(t *testing.T) {
	genesis := int64(1692803367)
	rc, err := NewRoundClock(genesis, 3*time.Second)
	require.NoError(t, err)

	require.Equal(t, uint64(4), rc.RoundAt(genesis+10))
	require.Equal(t, uint64(101), rc.RoundAt(genesis+300))
	require.Equal(t, uint64(102), rc.NextRoundAfter(genesis+300))
}

func TestRoundAtBeforeGenesis(t *testing.T) {
	genesis := int64(1595431050)
	rc, err := NewRoundClock(genesis, 30*time.Second)
	require.NoError(t, err)

	for _, delta := range []int64{1, 2, 29, 30, 100, genesis} {
		require.Equal(t, uint64(0), rc.RoundAt(genesis-delta), "delta %d", delta)
	}
	require.Equal(t, uint64(1), rc.NextRoundAfter(genesis-100))
}

func TestTimeOfRoundZero(t *testing.T) {
	rc, err := NewRoundClock(1595431050, 30*time.Second)
	require.NoError(t, err)

	_, err = rc.TimeOfRound(0)
	require.ErrorIs(t, err, ErrInvalidRound)
}

func TestRoundClockRoundTrip(t *testing.T) {
	for _, period := range []time.Duration{time.Second, 3 * time.Second, 30 * time.Second, 7 * time.Second} {
		genesis := int64(1692803367)
		rc, err := NewRoundClock(genesis, period)
		require.NoError(t, err)

		for r := uint64(1); r < 500; r += 7 {
			ts, err := rc.TimeOfRound(r)
			require.NoError(t, err)
			require.Equal(t, r, rc.RoundAt(ts))
		}

		for ts := genesis; ts < genesis+1000; ts += 13 {
			r := rc.RoundAt(ts)
			start, err := rc.TimeOfRound(r)
			require.NoError(t, err)
			require.LessOrEqual(t, start, ts)
			require.Equal(t, r, rc.RoundAt(start))
		}
	}
}

func TestNewRoundClockRejectsShortPeriod(t *testing.T) {
	_, err := NewRoundClock(1, 0)
	require.Error(t, err)
	_, err = NewRoundClock(1, 500*time.Millisecond)
	require.Error(t, err)
}

func TestClockFor(t *testing.T) {
	rc := ClockFor(&types.ChainInfo{GenesisTime: 100, Period: 3 * time.Second})
	require.Equal(t, uint64(4), rc.RoundAt(110))
	require.Equal(t, 3*time.Second, rc.Period())
	require.Equal(t, int64(100), rc.Genesis())
}

func TestTimeOfRoundOverflow(t *testing.T) {
	rc, err := NewRoundClock(1692803367, 30*time.Second)
	require.NoError(t, err)

	for _, round := range []uint64{1 << 62, math.MaxUint64, (math.MaxInt64-1692803367)/30 + 2} {
		_, err := rc.TimeOfRound(round)
		require.ErrorIs(t, err, ErrRoundNotYetAvailable, "round %d", round)
	}

	// the last round that still has a representable start time
	last := uint64((math.MaxInt64-1692803367)/30 + 1)
	ts, err := rc.TimeOfRound(last)
	require.NoError(t, err)
	require.Greater(t, ts, int64(1692803367))
	require.Equal(t, last, rc.RoundAt(ts))
}
