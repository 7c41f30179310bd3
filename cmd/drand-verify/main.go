package main

import (
	"os"
	"strconv"
	"time"

	logging "github.com/ipfs/go-log/v2"
	"github.com/urfave/cli/v2"
	"golang.org/x/xerrors"

	"github.com/boneyard93501/simple-drand/build"
	"github.com/boneyard93501/simple-drand/chain/beacon/drand"
	"github.com/boneyard93501/simple-drand/lib/beaconlog"
	"github.com/boneyard93501/simple-drand/node/config"
)

var log = logging.Logger("drand-verify")

func main() {
	beaconlog.SetupLogLevels()

	if err := newApp().Run(os.Args); err != nil {
		log.Errorf("%+v", err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:        "drand-verify",
		Usage:       "fetch and verify drand randomness",
		Version:     build.UserVersion(),
		Description: "Every beacon printed has been verified against the configured chain hash.",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Usage:   "path to the TOML config file",
				Value:   "config.toml",
				EnvVars: []string{"DRAND_CONFIG"},
			},
			&cli.StringFlag{
				Name:    "network",
				Usage:   "drand network: quicknet or mainnet",
				Value:   "quicknet",
				EnvVars: []string{"DRAND_NETWORK"},
			},
			&cli.DurationFlag{
				Name:  "timeout",
				Usage: "bound on every endpoint attempt, overrides http.timeout_seconds",
			},
			&cli.StringSliceFlag{
				Name:  "url",
				Usage: "endpoints to use instead of the configured ones, primary first",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "log level of drand-verify subsystems",
			},
		},
		Before: func(cctx *cli.Context) error {
			if lvl := cctx.String("log-level"); lvl != "" {
				return beaconlog.SetLevel(lvl)
			}
			return nil
		},
		Commands: []*cli.Command{
			infoCmd,
			latestCmd,
			getCmd,
			atCmd,
			roundAtCmd,
			watchCmd,
		},
	}
}

func loadConfig(cctx *cli.Context) (*config.Config, error) {
	cfg, err := config.FromFile(cctx.String("config"), config.Default())
	if err != nil {
		return nil, xerrors.Errorf("loading config %s: %w", cctx.String("config"), err)
	}
	if urls := cctx.StringSlice("url"); len(urls) > 0 {
		cfg.Drand.BaseURL = urls[0]
		cfg.Drand.FallbackURLs = urls[1:]
	}
	return cfg, nil
}

func newBeacon(cctx *cli.Context) (*drand.DrandBeacon, error) {
	cfg, err := loadConfig(cctx)
	if err != nil {
		return nil, err
	}
	network, err := config.Network(cctx.String("network"))
	if err != nil {
		return nil, err
	}
	dc, err := cfg.DrandConfig(network)
	if err != nil {
		return nil, err
	}

	timeout := cfg.HTTP.Timeout()
	if cctx.IsSet("timeout") {
		timeout = cctx.Duration("timeout")
	}
	if timeout <= 0 {
		timeout = drand.DefaultTimeout
	}

	log.Debugw("using drand network", "network", network, "endpoints", dc.Servers, "timeout", timeout,
		"pinned", dc.ChainInfoJSON != "")
	return drand.NewDrandBeacon(dc,
		drand.WithTimeout(timeout),
		drand.WithRetries(int(cfg.HTTP.MaxRetries), cfg.HTTP.RetryDelay()),
		drand.WithDomainTags(cfg.Crypto.DomainTags()),
	)
}

// parseTime accepts unix seconds or RFC 3339.
func parseTime(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	secs, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return time.Time{}, xerrors.Errorf("%q is neither unix seconds nor an RFC 3339 time", s)
	}
	return time.Unix(secs, 0), nil
}
