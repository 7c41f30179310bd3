package beacon

import (
	"math"
	"time"

	"golang.org/x/xerrors"

	"github.com/boneyard93501/simple-drand/chain/types"
)

// RoundClock converts between unix timestamps and drand rounds. Round 1 starts at genesis,
// round 0 means the chain has not started yet.
type RoundClock struct {
	genesis int64
	period  uint64
}

func NewRoundClock(genesis int64, period time.Duration) (RoundClock, error) {
	if period < time.Second {
		return RoundClock{}, xerrors.Errorf("period %s must be at least one second", period)
	}
	return RoundClock{genesis: genesis, period: uint64(period / time.Second)}, nil
}

// ClockFor returns the clock of a validated chain.
func ClockFor(info *types.ChainInfo) RoundClock {
	period := info.PeriodSeconds()
	if period == 0 {
		period = 1
	}
	return RoundClock{genesis: info.GenesisTime, period: period}
}

func (rc RoundClock) RoundAt(ts int64) uint64 {
	if ts < rc.genesis {
		return 0
	}
	fromGenesis := uint64(ts - rc.genesis)
	// number of whole periods since genesis, +1 because round 1 starts at genesis
	return fromGenesis/rc.period + 1
}

func (rc RoundClock) RoundAtTime(t time.Time) uint64 {
	return rc.RoundAt(t.Unix())
}

func (rc RoundClock) TimeOfRound(round uint64) (int64, error) {
	if round == 0 {
		return 0, xerrors.Errorf("round 0 has no time: %w", ErrInvalidRound)
	}
	limit := uint64(math.MaxInt64)
	if rc.genesis > 0 {
		limit -= uint64(rc.genesis)
	}
	if round-1 > limit/rc.period {
		return 0, xerrors.Errorf("round %d starts past the last representable time: %w", round, ErrRoundNotYetAvailable)
	}
	return rc.genesis + int64((round-1)*rc.period), nil
}

func (rc RoundClock) NextRoundAfter(ts int64) uint64 {
	return rc.RoundAt(ts) + 1
}

func (rc RoundClock) Genesis() int64 {
	return rc.genesis
}

func (rc RoundClock) Period() time.Duration {
	return time.Duration(rc.period) * time.Second
}
