package config

import (
	"encoding/json"
	"fmt"

	"github.com/boneyard93501/simple-drand/build/buildconstants"
	"github.com/boneyard93501/simple-drand/chain/beacon"
	"github.com/boneyard93501/simple-drand/chain/types"
	"github.com/boneyard93501/simple-drand/node/modules/dtypes"
)

const (
	DefaultTimeoutSeconds = 30
	DefaultRetryDelayMS   = 500
)

// Default returns the default config: the public drand endpoints and both league of
// entropy networks pinned to their well known chain info.
func Default() *Config {
	servers := buildconstants.DrandServers
	return &Config{
		Drand: Drand{
			BaseURL:      servers[0],
			FallbackURLs: append([]string(nil), servers[1:]...),
			Quicknet:     presetChain(buildconstants.DrandConfigs[buildconstants.DrandQuicknet]),
			Mainnet:      presetChain(buildconstants.DrandConfigs[buildconstants.DrandMainnet]),
		},
		Crypto: Crypto{
			QuicknetDST: string(beacon.DefaultDomainTags.Unchained),
			MainnetDST:  string(beacon.DefaultDomainTags.Chained),
		},
		HTTP: HTTP{
			TimeoutSeconds: DefaultTimeoutSeconds,
			RetryDelayMS:   DefaultRetryDelayMS,
		},
	}
}

func presetChain(dc dtypes.DrandConfig) Chain {
	var rec types.ChainInfoRecord
	if err := json.Unmarshal([]byte(dc.ChainInfoJSON), &rec); err != nil {
		panic(fmt.Sprintf("preset chain info of %s: %s", dc.Network, err))
	}
	c := Chain{
		ChainHash:   dc.ChainHash,
		PublicKey:   rec.PublicKey,
		GenesisTime: rec.GenesisTime,
		Period:      rec.Period,
		SchemeID:    rec.SchemeID,
		GroupHash:   rec.GroupHash,
	}
	if c.SchemeID == "" {
		c.SchemeID = types.ChainedSchemeID
	}
	if rec.Metadata != nil {
		c.BeaconID = rec.Metadata.BeaconID
	}
	return c
}
