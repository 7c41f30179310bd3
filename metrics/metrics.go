package metrics

import (
	"context"
	"time"

	"go.opencensus.io/stats"
	"go.opencensus.io/stats/view"
	"go.opencensus.io/tag"
)

// Distributions
var defaultMillisecondsDistribution = view.Distribution(
	0.01, 0.05, 0.1, 0.3, 0.6, 0.8, 1, 2, 3, 4, 5, 6, 8, // Very short intervals for fast operations
	10, 20, 30, 40, 50, 60, 70, 80, 90, 100, // 10 ms intervals up to 100 ms
	150, 200, 250, 300, 350, 400, 450, 500, // 50 ms intervals from 100 to 500 ms
	600, 700, 800, 900, 1000, // 100 ms intervals from 500 to 1000 ms
	2000, 3000, 4000, 5000, 10000, 20000, 30000, 60000,
)

// Tags
var (
	Version, _     = tag.NewKey("version")
	Commit, _      = tag.NewKey("commit")
	Network, _     = tag.NewKey("network")
	Endpoint, _    = tag.NewKey("endpoint")
	FailureType, _ = tag.NewKey("failure_type")
	Outcome, _     = tag.NewKey("outcome")
)

// Measures
var (
	Info = stats.Int64("info", "Arbitrary counter to tag drand-verify info to", stats.UnitDimensionless)

	BeaconFetchDuration = stats.Float64("beacon/fetch_ms", "Time to fetch and verify a beacon across all endpoints", stats.UnitMilliseconds)
	BeaconVerified      = stats.Int64("beacon/verified", "Counter for beacons that passed verification", stats.UnitDimensionless)
	BeaconRound         = stats.Int64("beacon/round", "Round of the last verified beacon", stats.UnitDimensionless)
	BeaconFetchFailure  = stats.Int64("beacon/fetch_failure", "Counter for requests that could not produce a verified beacon", stats.UnitDimensionless)

	EndpointFailure     = stats.Int64("endpoint/failure", "Counter for failed endpoint attempts", stats.UnitDimensionless)
	VerificationFailure = stats.Int64("beacon/verification_failure", "Counter for beacons rejected by verification", stats.UnitDimensionless)

	ChainInfoResolve = stats.Int64("chaininfo/resolve", "Counter for chain info resolutions", stats.UnitDimensionless)
)

// Views
var (
	InfoView = &view.View{
		Name:        "info",
		Description: "drand-verify information",
		Measure:     Info,
		Aggregation: view.LastValue(),
		TagKeys:     []tag.Key{Version, Commit},
	}
	BeaconFetchDurationView = &view.View{
		Measure:     BeaconFetchDuration,
		Aggregation: defaultMillisecondsDistribution,
		TagKeys:     []tag.Key{Network},
	}
	BeaconVerifiedView = &view.View{
		Measure:     BeaconVerified,
		Aggregation: view.Count(),
		TagKeys:     []tag.Key{Network},
	}
	BeaconRoundView = &view.View{
		Measure:     BeaconRound,
		Aggregation: view.LastValue(),
		TagKeys:     []tag.Key{Network},
	}
	BeaconFetchFailureView = &view.View{
		Measure:     BeaconFetchFailure,
		Aggregation: view.Count(),
		TagKeys:     []tag.Key{Network, FailureType},
	}
	EndpointFailureView = &view.View{
		Measure:     EndpointFailure,
		Aggregation: view.Count(),
		TagKeys:     []tag.Key{Network, Endpoint, FailureType},
	}
	VerificationFailureView = &view.View{
		Measure:     VerificationFailure,
		Aggregation: view.Count(),
		TagKeys:     []tag.Key{Network, Endpoint, FailureType},
	}
	ChainInfoResolveView = &view.View{
		Measure:     ChainInfoResolve,
		Aggregation: view.Count(),
		TagKeys:     []tag.Key{Network, Outcome},
	}
)

// DrandViews is the set of views exported by the watch command.
var DrandViews = []*view.View{
	InfoView,
	BeaconFetchDurationView,
	BeaconVerifiedView,
	BeaconRoundView,
	BeaconFetchFailureView,
	EndpointFailureView,
	VerificationFailureView,
	ChainInfoResolveView,
}

// SinceInMilliseconds returns the duration of time since the provide time as a float64.
func SinceInMilliseconds(startTime time.Time) float64 {
	return float64(time.Since(startTime).Milliseconds())
}

// Timer is a function stopwatch, calling it starts the timer,
// calling the returned function will record the duration.
func Timer(ctx context.Context, m *stats.Float64Measure) func() time.Duration {
	start := time.Now()
	return func() time.Duration {
		stats.Record(ctx, m.M(SinceInMilliseconds(start)))
		return time.Since(start)
	}
}

// WithNetwork tags ctx with the drand network name.
func WithNetwork(ctx context.Context, network string) context.Context {
	ctx, _ = tag.New(ctx, tag.Upsert(Network, network))
	return ctx
}

// Record records measurements under extra tags, ignoring tagging errors.
func Record(ctx context.Context, mutators []tag.Mutator, ms ...stats.Measurement) {
	_ = stats.RecordWithTags(ctx, mutators, ms...)
}
