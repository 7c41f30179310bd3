package types

import (
	"golang.org/x/xerrors"
)

// Scheme selects how a drand network signs its rounds.
type Scheme int

const (
	SchemeUnknown Scheme = iota
	// SchemeChained signs sha256(previous_signature || round) with signatures on G2 and the
	// group key on G1 (drand mainnet, "pedersen-bls-chained").
	SchemeChained
	// SchemeUnchained signs sha256(round) with signatures on G1 and the group key on G2
	// (drand quicknet, "bls-unchained-g1-rfc9380").
	SchemeUnchained
)

const (
	ChainedSchemeID   = "pedersen-bls-chained"
	UnchainedSchemeID = "bls-unchained-g1-rfc9380"
)

var ErrUnsupportedScheme = xerrors.New("unsupported drand scheme")

// SchemeFromID maps a drand scheme identifier to the scheme it names. An empty ID is the
// drand default, which is the chained scheme.
func SchemeFromID(id string) (Scheme, error) {
	switch id {
	case "", ChainedSchemeID:
		return SchemeChained, nil
	case UnchainedSchemeID:
		return SchemeUnchained, nil
	default:
		return SchemeUnknown, xerrors.Errorf("%q: %w", id, ErrUnsupportedScheme)
	}
}

func (s Scheme) ID() string {
	switch s {
	case SchemeChained:
		return ChainedSchemeID
	case SchemeUnchained:
		return UnchainedSchemeID
	default:
		return ""
	}
}

func (s Scheme) IsChained() bool {
	return s == SchemeChained
}

func (s Scheme) String() string {
	switch s {
	case SchemeChained:
		return "chained"
	case SchemeUnchained:
		return "unchained"
	default:
		return "unknown"
	}
}
