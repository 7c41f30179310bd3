package types

import (
	"encoding/hex"
	"time"
)

// ChainInfo is the identity of one drand network. Instances handed out by the trust store
// have been checked against an expected chain hash and must not be modified.
type ChainInfo struct {
	PublicKey   []byte
	Period      time.Duration
	GenesisTime int64
	GenesisSeed []byte
	Scheme      Scheme
	SchemeID    string
	BeaconID    string
	Hash        []byte
}

func (ci *ChainInfo) PeriodSeconds() uint64 {
	return uint64(ci.Period / time.Second)
}

func (ci *ChainInfo) HashString() string {
	return hex.EncodeToString(ci.Hash)
}

func (ci *ChainInfo) Genesis() time.Time {
	return time.Unix(ci.GenesisTime, 0)
}

// ChainInfoRecord is the JSON document drand endpoints serve at /{chain_hash}/info.
type ChainInfoRecord struct {
	PublicKey   string           `json:"public_key"`
	Period      uint64           `json:"period"`
	GenesisTime int64            `json:"genesis_time"`
	Hash        string           `json:"hash,omitempty"`
	GroupHash   string           `json:"groupHash"`
	SchemeID    string           `json:"schemeID,omitempty"`
	Metadata    *ChainInfoLabels `json:"metadata,omitempty"`
}

type ChainInfoLabels struct {
	BeaconID string `json:"beaconID"`
}
