package dtypes

import (
	"encoding/hex"

	"golang.org/x/xerrors"
)

type DrandEnum int

func (e DrandEnum) String() string {
	switch e {
	case 1:
		return "mainnet"
	case 2:
		return "quicknet"
	default:
		return "unknown"
	}
}

// DrandConfig describes one drand network: where to fetch it from and which chain it must be.
type DrandConfig struct {
	Network DrandEnum
	// Servers are base URLs, primary first.
	Servers []string
	// ChainHash is the hex encoded hash of the only chain these servers are trusted for.
	ChainHash string
	// ChainInfoJSON optionally pins the chain info locally so it never has to be fetched.
	ChainInfoJSON string
	// Period is the expected round period in seconds, 0 to accept whatever the chain says.
	Period uint64
}

func (dc DrandConfig) ChainHashBytes() ([]byte, error) {
	h, err := hex.DecodeString(dc.ChainHash)
	if err != nil {
		return nil, xerrors.Errorf("decoding chain hash %q: %w", dc.ChainHash, err)
	}
	if len(h) != 32 {
		return nil, xerrors.Errorf("chain hash %q must be 32 bytes, got %d", dc.ChainHash, len(h))
	}
	return h, nil
}
