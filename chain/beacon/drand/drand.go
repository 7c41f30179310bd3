package drand

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"strconv"
	"time"

	logging "github.com/ipfs/go-log/v2"
	"github.com/raulk/clock"
	"go.opencensus.io/tag"
	"golang.org/x/xerrors"

	"github.com/boneyard93501/simple-drand/build"
	"github.com/boneyard93501/simple-drand/chain/beacon"
	"github.com/boneyard93501/simple-drand/chain/types"
	"github.com/boneyard93501/simple-drand/lib/retry"
	"github.com/boneyard93501/simple-drand/metrics"
	"github.com/boneyard93501/simple-drand/node/modules/dtypes"
)

var log = logging.Logger("drand")

const (
	DefaultTimeout    = 30 * time.Second
	DefaultRetryDelay = 500 * time.Millisecond
)

// DrandBeacon retrieves verified randomness from a drand network.
//
// We connect to drand endpoints via their public HTTP API, trying them strictly in the
// configured order. The root trust for the chain is the configured chain hash: chain info
// is only accepted when it hashes to it, and every beacon is verified against that chain
// info before it is returned, whichever endpoint served it.
type DrandBeacon struct {
	network   dtypes.DrandEnum
	endpoints types.EndpointSet
	chainHash []byte
	period    uint64

	fetcher  Fetcher
	trust    *TrustStore
	verifier *beacon.Verifier
	clock    clock.Clock

	timeout    time.Duration
	retries    int
	retryDelay time.Duration
}

type Option func(*DrandBeacon)

func WithFetcher(f Fetcher) Option {
	return func(db *DrandBeacon) { db.fetcher = f }
}

// WithTrustStore shares a trust store between beacons, so each network is only resolved
// once per store.
func WithTrustStore(ts *TrustStore) Option {
	return func(db *DrandBeacon) { db.trust = ts }
}

func WithClock(c clock.Clock) Option {
	return func(db *DrandBeacon) { db.clock = c }
}

// WithTimeout bounds every single endpoint attempt.
func WithTimeout(d time.Duration) Option {
	return func(db *DrandBeacon) { db.timeout = d }
}

// WithRetries repeats a whole pass over the endpoints up to n more times when every
// endpoint failed for transport reasons.
func WithRetries(n int, delay time.Duration) Option {
	return func(db *DrandBeacon) {
		db.retries = n
		db.retryDelay = delay
	}
}

func WithDomainTags(dst beacon.DomainTags) Option {
	return func(db *DrandBeacon) { db.verifier = beacon.NewVerifier(dst) }
}

func NewDrandBeacon(config dtypes.DrandConfig, opts ...Option) (*DrandBeacon, error) {
	hash, err := config.ChainHashBytes()
	if err != nil {
		return nil, err
	}
	if len(config.Servers) == 0 && config.ChainInfoJSON == "" {
		return nil, xerrors.Errorf("drand network %s has neither servers nor pinned chain info", config.Network)
	}

	db := &DrandBeacon{
		network:    config.Network,
		endpoints:  types.NewEndpointSet(config.Servers...),
		chainHash:  hash,
		period:     config.Period,
		verifier:   beacon.NewVerifier(beacon.DefaultDomainTags),
		clock:      build.Clock,
		timeout:    DefaultTimeout,
		retryDelay: DefaultRetryDelay,
	}
	for _, o := range opts {
		o(db)
	}
	if db.fetcher == nil {
		db.fetcher = NewHTTPFetcher()
	}
	if db.trust == nil {
		db.trust = NewTrustStore(db.fetcher, db.verifier)
	}

	if config.ChainInfoJSON != "" {
		if _, err := db.trust.Pin(db.endpoints, hash, []byte(config.ChainInfoJSON)); err != nil {
			return nil, xerrors.Errorf("pinned chain info of %s: %w", config.Network, err)
		}
	}

	return db, nil
}

func (db *DrandBeacon) Network() dtypes.DrandEnum {
	return db.network
}

func (db *DrandBeacon) Endpoints() types.EndpointSet {
	return db.endpoints
}

func (db *DrandBeacon) ctx(ctx context.Context) context.Context {
	return metrics.WithNetwork(ctx, db.network.String())
}

// ChainInfo resolves the trusted chain info of the network, fetching it at most once.
func (db *DrandBeacon) ChainInfo(ctx context.Context) (*types.ChainInfo, error) {
	ctx = db.ctx(ctx)
	info, err := retry.Retry(ctx, db.clock, db.retries, db.retryDelay, retryableSweep, func(ctx context.Context) (*types.ChainInfo, error) {
		return db.trust.Resolve(ctx, db.endpoints, db.chainHash, db.timeout)
	})
	if err != nil {
		metrics.Record(ctx, []tag.Mutator{tag.Upsert(metrics.Outcome, failureType(err))}, metrics.ChainInfoResolve.M(1))
		return nil, xerrors.Errorf("resolving drand chain %x: %w", db.chainHash, err)
	}
	metrics.Record(ctx, []tag.Mutator{tag.Upsert(metrics.Outcome, "ok")}, metrics.ChainInfoResolve.M(1))

	if db.period != 0 && info.PeriodSeconds() != db.period {
		return nil, xerrors.Errorf("chain %s has a %s period, configured %ds: %w", info.HashString(), info.Period, db.period, beacon.ErrUntrustedChain)
	}
	return info, nil
}

func (db *DrandBeacon) IsChained(ctx context.Context) (bool, error) {
	info, err := db.ChainInfo(ctx)
	if err != nil {
		return false, err
	}
	return info.Scheme.IsChained(), nil
}

// RoundAt returns the round covering t, 0 if t is before genesis.
func (db *DrandBeacon) RoundAt(ctx context.Context, t time.Time) (uint64, error) {
	info, err := db.ChainInfo(ctx)
	if err != nil {
		return 0, err
	}
	return beacon.ClockFor(info).RoundAtTime(t), nil
}

func (db *DrandBeacon) NextRoundAfter(ctx context.Context, t time.Time) (uint64, error) {
	info, err := db.ChainInfo(ctx)
	if err != nil {
		return 0, err
	}
	return beacon.ClockFor(info).NextRoundAfter(t.Unix()), nil
}

// Latest returns the beacon of the current round. The round is derived from the local
// clock rather than asking endpoints for their latest, so a skewed endpoint cannot pick it.
func (db *DrandBeacon) Latest(ctx context.Context) (*types.Beacon, error) {
	info, err := db.ChainInfo(ctx)
	if err != nil {
		return nil, err
	}
	now := db.clock.Now()
	round := beacon.ClockFor(info).RoundAtTime(now)
	if round == 0 {
		return nil, xerrors.Errorf("chain %s starts at %s: %w", info.HashString(), info.Genesis(), beacon.ErrRoundNotYetAvailable)
	}
	return db.fetchVerified(ctx, info, round)
}

// Round returns the beacon of round, which must have been reached already.
func (db *DrandBeacon) Round(ctx context.Context, round uint64) (*types.Beacon, error) {
	if round == 0 {
		return nil, xerrors.Errorf("round 0: %w", beacon.ErrInvalidRound)
	}
	info, err := db.ChainInfo(ctx)
	if err != nil {
		return nil, err
	}
	at, err := beacon.ClockFor(info).TimeOfRound(round)
	if err != nil {
		return nil, err
	}
	if now := db.clock.Now().Unix(); at > now {
		return nil, xerrors.Errorf("round %d is due in %ds: %w", round, at-now, beacon.ErrRoundNotYetAvailable)
	}
	return db.fetchVerified(ctx, info, round)
}

// AtTime returns the beacon of the round covering t.
func (db *DrandBeacon) AtTime(ctx context.Context, t time.Time) (*types.Beacon, error) {
	info, err := db.ChainInfo(ctx)
	if err != nil {
		return nil, err
	}
	round := beacon.ClockFor(info).RoundAtTime(t)
	if round == 0 {
		return nil, xerrors.Errorf("%s is before genesis %s: %w", t, info.Genesis(), beacon.ErrInvalidRound)
	}
	return db.Round(ctx, round)
}

// Entry fetches round asynchronously, the current round when round is 0.
func (db *DrandBeacon) Entry(ctx context.Context, round uint64) <-chan beacon.Response {
	out := make(chan beacon.Response, 1)

	go func() {
		defer close(out)

		start := db.clock.Now()
		log.Debugw("start fetching randomness", "round", round)

		var (
			b   *types.Beacon
			err error
		)
		if round == 0 {
			b, err = db.Latest(ctx)
		} else {
			b, err = db.Round(ctx, round)
		}

		var br beacon.Response
		if err != nil {
			br.Err = xerrors.Errorf("drand failed Get request: %w", err)
		} else {
			br.Entry = *b
		}
		log.Debugw("done fetching randomness", "round", round, "took", db.clock.Now().Sub(start))
		out <- br
	}()

	return out
}

// VerifyEntry checks a beacon obtained elsewhere against the trusted chain info.
func (db *DrandBeacon) VerifyEntry(ctx context.Context, b types.Beacon) error {
	info, err := db.ChainInfo(ctx)
	if err != nil {
		return err
	}
	return db.verifier.Verify(&b, info)
}

func (db *DrandBeacon) fetchVerified(ctx context.Context, info *types.ChainInfo, round uint64) (*types.Beacon, error) {
	ctx = db.ctx(ctx)
	stop := metrics.Timer(ctx, metrics.BeaconFetchDuration)

	b, err := retry.Retry(ctx, db.clock, db.retries, db.retryDelay, retryableSweep, func(ctx context.Context) (*types.Beacon, error) {
		fo := newFailover[*types.Beacon](db.endpoints.URLs())
		return fo.run(ctx, func(ctx context.Context, base string) (*types.Beacon, outcome, error) {
			return db.attempt(ctx, info, base, round)
		})
	})
	took := stop()
	if err != nil {
		metrics.Record(ctx, []tag.Mutator{tag.Upsert(metrics.FailureType, failureType(err))}, metrics.BeaconFetchFailure.M(1))
		return nil, xerrors.Errorf("fetching round %d of chain %s: %w", round, info.HashString(), err)
	}

	metrics.Record(ctx, nil, metrics.BeaconVerified.M(1), metrics.BeaconRound.M(int64(b.Round)))
	log.Debugw("verified beacon", "round", b.Round, "chain", info.HashString(), "took", took)
	return b, nil
}

func (db *DrandBeacon) attempt(ctx context.Context, info *types.ChainInfo, base string, round uint64) (*types.Beacon, outcome, error) {
	endpointTag := tag.Upsert(metrics.Endpoint, base)

	data, err := db.fetcher.Fetch(ctx, roundURL(base, hex.EncodeToString(info.Hash), round), db.timeout)
	if err != nil {
		err = asTransport(err)
		metrics.Record(ctx, []tag.Mutator{endpointTag, tag.Upsert(metrics.FailureType, failureType(err))}, metrics.EndpointFailure.M(1))
		return nil, outcomeRetryable, err
	}

	var b types.Beacon
	if err := json.Unmarshal(data, &b); err != nil {
		err = xerrors.Errorf("%s: %w", err, beacon.ErrMalformedBeacon)
		metrics.Record(ctx, []tag.Mutator{endpointTag, tag.Upsert(metrics.FailureType, failureType(err))}, metrics.EndpointFailure.M(1))
		return nil, outcomeRetryable, err
	}
	if b.Round != round {
		err := xerrors.Errorf("asked for round %d, got %d: %w", round, b.Round, beacon.ErrUnexpectedRound)
		metrics.Record(ctx, []tag.Mutator{endpointTag, tag.Upsert(metrics.FailureType, failureType(err))}, metrics.EndpointFailure.M(1))
		return nil, outcomeFatal, err
	}

	if err := db.verifier.Verify(&b, info); err != nil {
		log.Warnw("endpoint served a beacon that failed verification", "url", base, "round", round, "err", err)
		metrics.Record(ctx, []tag.Mutator{endpointTag, tag.Upsert(metrics.FailureType, failureType(err))},
			metrics.EndpointFailure.M(1), metrics.VerificationFailure.M(1))
		return nil, outcomeFatal, err
	}
	return &b, outcomeSuccess, nil
}

// failureType names the most specific reason of err for metrics.
func failureType(err error) string {
	if xerrors.Is(err, beacon.ErrAllEndpointsFailed) {
		return "all_endpoints_failed"
	}
	var se *StatusError
	if xerrors.As(err, &se) {
		return "status_" + strconv.Itoa(se.Code)
	}
	for _, c := range []struct {
		target error
		name   string
	}{
		{beacon.ErrUntrustedChain, "untrusted_chain"},
		{beacon.ErrPairingMismatch, "pairing_mismatch"},
		{beacon.ErrRandomnessMismatch, "randomness_mismatch"},
		{beacon.ErrMissingPreviousSignature, "missing_previous_signature"},
		{beacon.ErrUnexpectedRound, "unexpected_round"},
		{beacon.ErrMalformedChainInfo, "malformed_chain_info"},
		{beacon.ErrMalformedBeacon, "malformed_beacon"},
		{beacon.ErrRoundNotYetAvailable, "not_yet_available"},
		{beacon.ErrInvalidRound, "invalid_round"},
		{context.DeadlineExceeded, "deadline"},
		{context.Canceled, "canceled"},
		{beacon.ErrTransport, "transport"},
	} {
		if xerrors.Is(err, c.target) {
			return c.name
		}
	}
	return "other"
}

var _ beacon.RandomBeacon = (*DrandBeacon)(nil)
