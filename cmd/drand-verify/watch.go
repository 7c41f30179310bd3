package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"contrib.go.opencensus.io/exporter/prometheus"
	"github.com/gorilla/mux"
	"github.com/urfave/cli/v2"
	"go.opencensus.io/stats/view"
	"go.opencensus.io/tag"
	"golang.org/x/xerrors"

	"github.com/boneyard93501/simple-drand/build"
	"github.com/boneyard93501/simple-drand/chain/beacon"
	"github.com/boneyard93501/simple-drand/metrics"
)

var watchCmd = &cli.Command{
	Name:        "watch",
	Usage:       "fetch and verify every new beacon as it is produced",
	Description: "Optionally exports fetch and verification metrics for prometheus.",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:    "listen",
			Usage:   "address to serve /metrics on, empty to disable",
			EnvVars: []string{"DRAND_VERIFY_LISTEN"},
		},
		&cli.IntFlag{
			Name:  "count",
			Usage: "stop after this many beacons, 0 to run until interrupted",
		},
	},
	Action: func(cctx *cli.Context) error {
		ctx, stop := signal.NotifyContext(cctx.Context, os.Interrupt, syscall.SIGTERM)
		defer stop()

		if addr := cctx.String("listen"); addr != "" {
			shutdown, err := serveMetrics(addr)
			if err != nil {
				return err
			}
			defer shutdown()
		}

		db, err := newBeacon(cctx)
		if err != nil {
			return err
		}
		info, err := db.ChainInfo(ctx)
		if err != nil {
			return err
		}
		rc := beacon.ClockFor(info)
		clk := build.Clock

		var last uint64
		for n := 0; cctx.Int("count") == 0 || n < cctx.Int("count"); {
			b, err := db.Latest(ctx)
			switch {
			case ctx.Err() != nil:
				return nil
			case err != nil:
				log.Warnw("fetching latest beacon", "err", err)
			case b.Round != last:
				if err := printBeacon(cctx.App.Writer, b); err != nil {
					return err
				}
				last = b.Round
				n++
				continue
			}

			next := rc.NextRoundAfter(clk.Now().Unix())
			at, err := rc.TimeOfRound(next)
			if err != nil {
				return err
			}
			wait := time.Unix(at, 0).Sub(clk.Now())
			log.Debugw("waiting for next round", "round", next, "wait", wait)
			select {
			case <-ctx.Done():
				return nil
			case <-clk.After(wait):
			}
		}
		return nil
	},
}

func serveMetrics(addr string) (func(), error) {
	if err := view.Register(metrics.DrandViews...); err != nil {
		return nil, xerrors.Errorf("registering views: %w", err)
	}
	ctx, _ := tag.New(context.Background(),
		tag.Insert(metrics.Version, build.BuildVersion),
		tag.Insert(metrics.Commit, build.CurrentCommit),
	)
	metrics.Record(ctx, nil, metrics.Info.M(1))

	pe, err := prometheus.NewExporter(prometheus.Options{
		Namespace: "drand_verify",
	})
	if err != nil {
		return nil, xerrors.Errorf("failed to create the Prometheus stats exporter: %w", err)
	}

	m := mux.NewRouter()
	m.Handle("/metrics", pe)
	srv := &http.Server{Addr: addr, Handler: m, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Errorw("failed to run metrics endpoint", "err", err)
		}
	}()
	log.Infow("serving metrics", "addr", addr)

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
		view.Unregister(metrics.DrandViews...)
	}, nil
}
