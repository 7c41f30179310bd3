package config

import (
	"encoding/json"
	"io"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
	logging "github.com/ipfs/go-log/v2"
	"github.com/kelseyhightower/envconfig"
	"golang.org/x/xerrors"

	"github.com/boneyard93501/simple-drand/build/buildconstants"
	"github.com/boneyard93501/simple-drand/chain/types"
	"github.com/boneyard93501/simple-drand/node/modules/dtypes"
)

var log = logging.Logger("config")

// EnvPrefix prefixes every environment override, e.g. DRAND_BASE_URL.
const EnvPrefix = "DRAND"

// FromFile loads config from a specified file overriding defaults specified in
// the def parameter. If file does not exist or is empty defaults are assumed.
func FromFile(path string, def *Config) (*Config, error) {
	file, err := os.Open(path)
	switch {
	case os.IsNotExist(err):
		return FromEnv(def)
	case err != nil:
		return nil, err
	}

	defer file.Close() //nolint:errcheck // The file is RO
	return FromReader(file, def)
}

// FromReader loads config from a reader instance.
func FromReader(reader io.Reader, def *Config) (*Config, error) {
	cfg := *def
	cfg.Drand.FallbackURLs = append([]string(nil), def.Drand.FallbackURLs...)

	md, err := toml.NewDecoder(reader).Decode(&cfg)
	if err != nil {
		return nil, xerrors.Errorf("decoding config: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		log.Warnw("ignoring unknown config keys", "keys", undecoded)
	}
	return FromEnv(&cfg)
}

// envOverrides are the settings that can be overridden from the environment.
type envOverrides struct {
	BaseURL      *string  `envconfig:"BASE_URL"`
	FallbackURLs []string `envconfig:"FALLBACK_URLS"`

	QuicknetChainHash *string `envconfig:"QUICKNET_CHAIN_HASH"`
	MainnetChainHash  *string `envconfig:"MAINNET_CHAIN_HASH"`

	QuicknetDST *string `envconfig:"QUICKNET_DST"`
	MainnetDST  *string `envconfig:"MAINNET_DST"`

	TimeoutSeconds *uint64 `envconfig:"TIMEOUT_SECONDS"`
	MaxRetries     *uint32 `envconfig:"MAX_RETRIES"`
	RetryDelayMS   *uint64 `envconfig:"RETRY_DELAY_MS"`
}

// FromEnv returns a copy of cfg with the DRAND_* environment overrides applied.
func FromEnv(cfg *Config) (*Config, error) {
	var env envOverrides
	if err := envconfig.Process(EnvPrefix, &env); err != nil {
		return nil, xerrors.Errorf("processing env vars overrides: %w", err)
	}

	out := *cfg
	set(&out.Drand.BaseURL, env.BaseURL)
	if env.FallbackURLs != nil {
		out.Drand.FallbackURLs = env.FallbackURLs
	}
	set(&out.Drand.Quicknet.ChainHash, env.QuicknetChainHash)
	set(&out.Drand.Mainnet.ChainHash, env.MainnetChainHash)
	set(&out.Crypto.QuicknetDST, env.QuicknetDST)
	set(&out.Crypto.MainnetDST, env.MainnetDST)
	set(&out.HTTP.TimeoutSeconds, env.TimeoutSeconds)
	set(&out.HTTP.MaxRetries, env.MaxRetries)
	set(&out.HTTP.RetryDelayMS, env.RetryDelayMS)
	return &out, nil
}

func set[T any](dst *T, v *T) {
	if v != nil {
		*dst = *v
	}
}

// Network looks up a network by the name used in config files and on the command line.
func Network(name string) (dtypes.DrandEnum, error) {
	n, ok := buildconstants.DrandNetworks[strings.ToLower(name)]
	if !ok {
		return 0, xerrors.Errorf("unknown drand network %q", name)
	}
	return n, nil
}

func (c *Config) Chain(network dtypes.DrandEnum) (Chain, error) {
	switch network {
	case buildconstants.DrandQuicknet:
		return c.Drand.Quicknet, nil
	case buildconstants.DrandMainnet:
		return c.Drand.Mainnet, nil
	default:
		return Chain{}, xerrors.Errorf("unknown drand network %d", network)
	}
}

// Endpoints returns the configured endpoints, primary first.
func (c *Config) Endpoints() []string {
	return types.NewEndpointSet(append([]string{c.Drand.BaseURL}, c.Drand.FallbackURLs...)...).URLs()
}

// DrandConfig builds the description of network used to construct a beacon.
func (c *Config) DrandConfig(network dtypes.DrandEnum) (dtypes.DrandConfig, error) {
	chain, err := c.Chain(network)
	if err != nil {
		return dtypes.DrandConfig{}, err
	}
	if chain.ChainHash == "" {
		return dtypes.DrandConfig{}, xerrors.Errorf("no chain hash configured for %s", network)
	}

	dc := dtypes.DrandConfig{
		Network:   network,
		Servers:   c.Endpoints(),
		ChainHash: strings.ToLower(chain.ChainHash),
		Period:    chain.Period,
	}
	if chain.pinnable() {
		pinned, err := chain.infoJSON()
		if err != nil {
			return dtypes.DrandConfig{}, xerrors.Errorf("chain info of %s: %w", network, err)
		}
		dc.ChainInfoJSON = pinned
	}
	if len(dc.Servers) == 0 && dc.ChainInfoJSON == "" {
		return dtypes.DrandConfig{}, xerrors.Errorf("no endpoints configured for %s", network)
	}
	return dc, nil
}

func (c Chain) pinnable() bool {
	return c.PublicKey != "" && c.GenesisTime > 0 && c.Period > 0 && c.GroupHash != ""
}

// infoJSON renders the chain as the document drand serves at /{chain_hash}/info.
func (c Chain) infoJSON() (string, error) {
	rec := types.ChainInfoRecord{
		PublicKey:   c.PublicKey,
		Period:      c.Period,
		GenesisTime: c.GenesisTime,
		Hash:        strings.ToLower(c.ChainHash),
		GroupHash:   c.GroupHash,
	}
	if c.SchemeID != types.ChainedSchemeID {
		rec.SchemeID = c.SchemeID
	}
	if c.BeaconID != "" {
		rec.Metadata = &types.ChainInfoLabels{BeaconID: c.BeaconID}
	}
	b, err := json.Marshal(rec)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
