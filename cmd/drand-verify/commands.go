package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/urfave/cli/v2"
	"golang.org/x/xerrors"

	"github.com/boneyard93501/simple-drand/build"
	"github.com/boneyard93501/simple-drand/chain/beacon"
	"github.com/boneyard93501/simple-drand/chain/types"
)

var infoCmd = &cli.Command{
	Name:  "info",
	Usage: "print the trusted chain info of the network",
	Flags: []cli.Flag{
		&cli.BoolFlag{
			Name:  "json",
			Usage: "print the chain info document as served by drand",
		},
	},
	Action: func(cctx *cli.Context) error {
		db, err := newBeacon(cctx)
		if err != nil {
			return err
		}
		info, err := db.ChainInfo(cctx.Context)
		if err != nil {
			return err
		}

		w := cctx.App.Writer
		if cctx.Bool("json") {
			doc, err := beacon.EncodeChainInfo(info)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(w, "%s\n", doc)
			return err
		}

		rc := beacon.ClockFor(info)
		fmt.Fprintf(w, "Network: %s\n", db.Network())
		fmt.Fprintf(w, "Chain hash: %s\n", info.HashString())
		fmt.Fprintf(w, "Public key: %x\n", info.PublicKey)
		fmt.Fprintf(w, "Scheme: %s (%s)\n", info.SchemeID, info.Scheme)
		fmt.Fprintf(w, "Period: %s\n", info.Period)
		fmt.Fprintf(w, "Genesis: %s\n", info.Genesis().UTC().Format(time.RFC3339))
		fmt.Fprintf(w, "Current round: %d\n", rc.RoundAtTime(build.Clock.Now()))
		return nil
	},
}

var latestCmd = &cli.Command{
	Name:  "latest",
	Usage: "fetch and verify the beacon of the current round",
	Action: func(cctx *cli.Context) error {
		db, err := newBeacon(cctx)
		if err != nil {
			return err
		}
		b, err := db.Latest(cctx.Context)
		if err != nil {
			return err
		}
		return printBeacon(cctx.App.Writer, b)
	},
}

var getCmd = &cli.Command{
	Name:      "get",
	Usage:     "fetch and verify the beacon of a round",
	ArgsUsage: "<round>",
	Action: func(cctx *cli.Context) error {
		if cctx.NArg() != 1 {
			return xerrors.New("expected exactly one round")
		}
		round, err := strconv.ParseUint(cctx.Args().First(), 10, 64)
		if err != nil {
			return xerrors.Errorf("parsing round: %w", err)
		}

		db, err := newBeacon(cctx)
		if err != nil {
			return err
		}
		b, err := db.Round(cctx.Context, round)
		if err != nil {
			return err
		}
		return printBeacon(cctx.App.Writer, b)
	},
}

var atCmd = &cli.Command{
	Name:      "at",
	Usage:     "fetch and verify the beacon of the round covering a time",
	ArgsUsage: "<unix seconds | RFC 3339 time>",
	Action: func(cctx *cli.Context) error {
		if cctx.NArg() != 1 {
			return xerrors.New("expected exactly one time")
		}
		t, err := parseTime(cctx.Args().First())
		if err != nil {
			return err
		}

		db, err := newBeacon(cctx)
		if err != nil {
			return err
		}
		b, err := db.AtTime(cctx.Context, t)
		if err != nil {
			return err
		}
		return printBeacon(cctx.App.Writer, b)
	},
}

var roundAtCmd = &cli.Command{
	Name:      "round-at",
	Usage:     "print the round covering a time, now by default",
	ArgsUsage: "[unix seconds | RFC 3339 time]",
	Action: func(cctx *cli.Context) error {
		t := build.Clock.Now()
		if cctx.NArg() > 0 {
			var err error
			if t, err = parseTime(cctx.Args().First()); err != nil {
				return err
			}
		}

		db, err := newBeacon(cctx)
		if err != nil {
			return err
		}
		info, err := db.ChainInfo(cctx.Context)
		if err != nil {
			return err
		}

		rc := beacon.ClockFor(info)
		round := rc.RoundAtTime(t)
		next := rc.NextRoundAfter(t.Unix())
		at, err := rc.TimeOfRound(next)
		if err != nil {
			return err
		}
		fmt.Fprintf(cctx.App.Writer, "Round: %d\n", round)
		fmt.Fprintf(cctx.App.Writer, "Next round: %d at %s\n", next, time.Unix(at, 0).UTC().Format(time.RFC3339))
		return nil
	},
}

func printBeacon(w io.Writer, b *types.Beacon) error {
	out, err := json.MarshalIndent(b, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "%s\n", out)
	return err
}
