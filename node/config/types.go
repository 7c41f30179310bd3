package config

import (
	"time"

	"github.com/boneyard93501/simple-drand/chain/beacon"
)

// Config is the drand-verify config, read from a TOML file and overridden by DRAND_*
// environment variables.
type Config struct {
	Drand  Drand  `toml:"drand"`
	Crypto Crypto `toml:"crypto"`
	HTTP   HTTP   `toml:"http"`
}

// Drand lists the endpoints, shared by every network, and the chains they serve.
type Drand struct {
	// Primary endpoint, tried first for every request.
	BaseURL string `toml:"base_url"`
	// Endpoints tried in order after the primary failed.
	FallbackURLs []string `toml:"fallback_urls"`

	Quicknet Chain `toml:"quicknet"`
	Mainnet  Chain `toml:"mainnet"`
}

// Chain describes one drand network. ChainHash is the root of trust; the remaining fields
// are optional and, when complete, pin the chain info so it is never fetched.
type Chain struct {
	ChainHash   string `toml:"chain_hash"`
	PublicKey   string `toml:"public_key"`
	GenesisTime int64  `toml:"genesis_time"`
	// Round period in seconds. When set, a chain with another period is rejected.
	Period   uint64 `toml:"period"`
	SchemeID string `toml:"scheme_id"`
	// Genesis seed of the group, needed to recompute the chain hash of a pinned chain.
	GroupHash string `toml:"group_hash"`
	BeaconID  string `toml:"beacon_id"`
}

// Crypto holds the hash-to-curve domain separation tags.
type Crypto struct {
	// Tag for signatures on G1, used by quicknet.
	QuicknetDST string `toml:"quicknet_dst"`
	// Tag for signatures on G2, used by mainnet.
	MainnetDST string `toml:"mainnet_dst"`
}

func (c Crypto) DomainTags() beacon.DomainTags {
	return beacon.DomainTags{
		Chained:   []byte(c.MainnetDST),
		Unchained: []byte(c.QuicknetDST),
	}
}

type HTTP struct {
	// Bound on every single endpoint attempt.
	TimeoutSeconds uint64 `toml:"timeout_seconds"`
	// Extra passes over all endpoints after every one of them failed to respond.
	MaxRetries uint32 `toml:"max_retries"`
	// Wait before the first extra pass, doubled for each further one.
	RetryDelayMS uint64 `toml:"retry_delay_ms"`
}

func (h HTTP) Timeout() time.Duration {
	return time.Duration(h.TimeoutSeconds) * time.Second
}

func (h HTTP) RetryDelay() time.Duration {
	return time.Duration(h.RetryDelayMS) * time.Millisecond
}
