package beacon

import (
	"context"
	"time"

	logging "github.com/ipfs/go-log/v2"

	"github.com/boneyard93501/simple-drand/chain/types"
)

var log = logging.Logger("beacon")

type Response struct {
	Entry types.Beacon
	Err   error
}

// RandomBeacon represents a system that provides randomness to callers. Entries handed out
// by Entry have already been verified against the beacon's chain.
type RandomBeacon interface {
	Entry(context.Context, uint64) <-chan Response
	VerifyEntry(context.Context, types.Beacon) error
	RoundAt(context.Context, time.Time) (uint64, error)
	IsChained(context.Context) (bool, error)
}
