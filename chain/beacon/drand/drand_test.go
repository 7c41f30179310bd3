package drand

import (
	"context"
	"encoding/json"
	"net/http"
	"path"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/xerrors"

	"github.com/boneyard93501/simple-drand/chain/beacon"
	"github.com/boneyard93501/simple-drand/chain/types"
)

// rewrite serves the mock's beacons after passing them through mutate.
func rewrite(t *testing.T, mb *beacon.MockBeacon, mutate func(*types.Beacon)) string {
	return serve(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		round, err := strconv.ParseUint(path.Base(r.URL.Path), 10, 64)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		b, err := mb.Sign(round)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		// the mock memoizes signatures, mutate copies only
		b.Signature = append([]byte(nil), b.Signature...)
		b.Randomness = append([]byte(nil), b.Randomness...)
		mutate(&b)
		_ = json.NewEncoder(w).Encode(b)
	}))
}

func TestRoundFallsBackAfterTimeout(t *testing.T) {
	mb, clk := newNetwork(t, types.SchemeUnchained)
	slow := serve(t, hang())
	good := serve(t, mb.Handler())

	db, err := NewDrandBeacon(configFor(mb, slow, good), WithClock(clk), WithTimeout(100*time.Millisecond))
	require.NoError(t, err)

	b, err := db.Round(context.Background(), 42)
	require.NoError(t, err)
	expected, err := mb.Sign(42)
	require.NoError(t, err)
	require.Equal(t, expected, *b)
	require.Equal(t, int64(1), mb.RoundRequests())
}

func TestLatestAllEndpointsFail(t *testing.T) {
	mb, clk := newNetwork(t, types.SchemeUnchained)
	urls := []string{serve(t, hang()), serve(t, hang()), serve(t, hang())}

	db, err := NewDrandBeacon(pinnedConfigFor(mb, urls...), WithClock(clk), WithTimeout(50*time.Millisecond))
	require.NoError(t, err)

	_, err = db.Latest(context.Background())
	require.ErrorIs(t, err, beacon.ErrAllEndpointsFailed)

	var all *beacon.AllEndpointsFailedError
	require.True(t, xerrors.As(err, &all))
	require.Len(t, all.Failures, len(urls))
	for i, f := range all.Failures {
		require.Equal(t, urls[i], f.URL)
		require.ErrorIs(t, f, beacon.ErrTransport)
	}
}

func TestLatestUsesLocalClock(t *testing.T) {
	mb, clk := newNetwork(t, types.SchemeChained)
	db, err := NewDrandBeacon(configFor(mb, serve(t, mb.Handler())), WithClock(clk))
	require.NoError(t, err)

	b, err := db.Latest(context.Background())
	require.NoError(t, err)
	require.Equal(t, uint64(51), b.Round)
	require.NotEmpty(t, b.PreviousSignature)

	clk.Add(30 * time.Second)
	b, err = db.Latest(context.Background())
	require.NoError(t, err)
	require.Equal(t, uint64(52), b.Round)
	require.Equal(t, int64(1), mb.InfoRequests())
}

func TestLatestBeforeGenesis(t *testing.T) {
	mb, clk := newNetwork(t, types.SchemeUnchained)
	clk.Set(time.Unix(testGenesis-10, 0))
	db, err := NewDrandBeacon(pinnedConfigFor(mb, deadURL(t)), WithClock(clk))
	require.NoError(t, err)

	_, err = db.Latest(context.Background())
	require.ErrorIs(t, err, beacon.ErrRoundNotYetAvailable)
}

func TestTamperedEndpointSkipped(t *testing.T) {
	for _, scheme := range []types.Scheme{types.SchemeChained, types.SchemeUnchained} {
		t.Run(scheme.String(), func(t *testing.T) {
			mb, clk := newNetwork(t, scheme)
			bad := rewrite(t, mb, func(b *types.Beacon) { b.Randomness[0] ^= 1 })
			good := serve(t, mb.Handler())

			db, err := NewDrandBeacon(pinnedConfigFor(mb, bad, good), WithClock(clk))
			require.NoError(t, err)

			b, err := db.Round(context.Background(), 10)
			require.NoError(t, err)
			require.NoError(t, mb.VerifyEntry(context.Background(), *b))
			require.Equal(t, int64(1), mb.RoundRequests())
		})
	}
}

func TestEveryEndpointTampered(t *testing.T) {
	mb, clk := newNetwork(t, types.SchemeUnchained)
	sig := rewrite(t, mb, func(b *types.Beacon) { b.Signature[len(b.Signature)-1] ^= 1 })
	rnd := rewrite(t, mb, func(b *types.Beacon) { b.Randomness[0] ^= 1 })
	round := rewrite(t, mb, func(b *types.Beacon) { b.Round++ })
	garbage := serve(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"round": "ten"}`))
	}))

	db, err := NewDrandBeacon(pinnedConfigFor(mb, sig, rnd, round, garbage), WithClock(clk), WithRetries(3, time.Millisecond))
	require.NoError(t, err)

	_, err = db.Round(context.Background(), 10)
	var all *beacon.AllEndpointsFailedError
	require.True(t, xerrors.As(err, &all))
	require.Len(t, all.Failures, 4)
	require.ErrorIs(t, all.Failures[0], beacon.ErrPairingMismatch)
	require.ErrorIs(t, all.Failures[1], beacon.ErrRandomnessMismatch)
	require.ErrorIs(t, all.Failures[2], beacon.ErrUnexpectedRound)
	require.ErrorIs(t, all.Failures[3], beacon.ErrMalformedBeacon)
}

func TestSweepRetries(t *testing.T) {
	mb, _ := newNetwork(t, types.SchemeUnchained)
	ff := newFakeFetcher(func(ctx context.Context, url string, call int) ([]byte, error) {
		if call == 1 {
			return nil, xerrors.Errorf("connection reset: %w", beacon.ErrTransport)
		}
		b, err := mb.Sign(7)
		if err != nil {
			return nil, err
		}
		return json.Marshal(b)
	})

	db, err := NewDrandBeacon(pinnedConfigFor(mb, "http://a", "http://b"), WithFetcher(ff), WithRetries(1, time.Millisecond))
	require.NoError(t, err)

	b, err := db.Round(context.Background(), 7)
	require.NoError(t, err)
	require.Equal(t, uint64(7), b.Round)

	hash := mb.Info().HashString()
	require.Equal(t, []string{
		roundURL("http://a", hash, 7),
		roundURL("http://b", hash, 7),
		roundURL("http://a", hash, 7),
	}, ff.Order())
}

func TestNoRetryAfterBadData(t *testing.T) {
	mb, _ := newNetwork(t, types.SchemeUnchained)
	ff := newFakeFetcher(func(ctx context.Context, url string, call int) ([]byte, error) {
		b, err := mb.Sign(7)
		if err != nil {
			return nil, err
		}
		b.Randomness[3] ^= 0x10
		return json.Marshal(b)
	})

	db, err := NewDrandBeacon(pinnedConfigFor(mb, "http://a"), WithFetcher(ff), WithRetries(5, time.Millisecond))
	require.NoError(t, err)

	_, err = db.Round(context.Background(), 7)
	require.ErrorIs(t, err, beacon.ErrRandomnessMismatch)
	require.Len(t, ff.Order(), 1)
}

func TestRoundValidation(t *testing.T) {
	mb, clk := newNetwork(t, types.SchemeUnchained)
	db, err := NewDrandBeacon(pinnedConfigFor(mb, deadURL(t)), WithClock(clk))
	require.NoError(t, err)
	ctx := context.Background()

	_, err = db.Round(ctx, 0)
	require.ErrorIs(t, err, beacon.ErrInvalidRound)

	_, err = db.Round(ctx, 52)
	require.ErrorIs(t, err, beacon.ErrRoundNotYetAvailable)

	_, err = db.AtTime(ctx, time.Unix(testGenesis-1, 0))
	require.ErrorIs(t, err, beacon.ErrInvalidRound)

	_, err = db.AtTime(ctx, clk.Now().Add(time.Minute))
	require.ErrorIs(t, err, beacon.ErrRoundNotYetAvailable)
}

func TestAtTime(t *testing.T) {
	mb, clk := newNetwork(t, types.SchemeUnchained)
	db, err := NewDrandBeacon(configFor(mb, serve(t, mb.Handler())), WithClock(clk))
	require.NoError(t, err)
	ctx := context.Background()

	b, err := db.AtTime(ctx, time.Unix(testGenesis+31, 0))
	require.NoError(t, err)
	require.Equal(t, uint64(11), b.Round)

	r, err := db.RoundAt(ctx, time.Unix(testGenesis+31, 0))
	require.NoError(t, err)
	require.Equal(t, uint64(11), r)

	r, err = db.NextRoundAfter(ctx, time.Unix(testGenesis+31, 0))
	require.NoError(t, err)
	require.Equal(t, uint64(12), r)
}

func TestCancellationStopsFallbacks(t *testing.T) {
	mb, clk := newNetwork(t, types.SchemeUnchained)
	ctx, cancel := context.WithCancel(context.Background())

	ff := newFakeFetcher(func(fctx context.Context, url string, call int) ([]byte, error) {
		cancel()
		<-fctx.Done()
		return nil, fctx.Err()
	})
	db, err := NewDrandBeacon(pinnedConfigFor(mb, "http://a", "http://b"), WithFetcher(ff), WithClock(clk), WithRetries(3, time.Millisecond))
	require.NoError(t, err)

	_, err = db.Round(ctx, 5)
	require.ErrorIs(t, err, context.Canceled)
	require.NotErrorIs(t, err, beacon.ErrAllEndpointsFailed)
	require.Equal(t, []string{roundURL("http://a", mb.Info().HashString(), 5)}, ff.Order())
}

func TestEntry(t *testing.T) {
	mb, clk := newNetwork(t, types.SchemeChained)
	db, err := NewDrandBeacon(configFor(mb, serve(t, mb.Handler())), WithClock(clk))
	require.NoError(t, err)
	ctx := context.Background()

	resp := <-db.Entry(ctx, 3)
	require.NoError(t, resp.Err)
	require.Equal(t, uint64(3), resp.Entry.Round)
	require.NoError(t, db.VerifyEntry(ctx, resp.Entry))

	resp = <-db.Entry(ctx, 0)
	require.NoError(t, resp.Err)
	require.Equal(t, mb.CurrentRound(), resp.Entry.Round)

	resp = <-db.Entry(ctx, 1000)
	require.ErrorIs(t, resp.Err, beacon.ErrRoundNotYetAvailable)

	chained, err := db.IsChained(ctx)
	require.NoError(t, err)
	require.True(t, chained)
}

func TestVerifyEntryRejectsForeignBeacon(t *testing.T) {
	mb, clk := newNetwork(t, types.SchemeUnchained)
	other, err := beacon.NewMockBeacon(types.SchemeUnchained, testGenesis+9, 3*time.Second, clk)
	require.NoError(t, err)

	db, err := NewDrandBeacon(pinnedConfigFor(mb, deadURL(t)), WithClock(clk))
	require.NoError(t, err)

	b, err := other.Sign(4)
	require.NoError(t, err)
	require.ErrorIs(t, db.VerifyEntry(context.Background(), b), beacon.ErrPairingMismatch)
}

func TestPeriodMismatch(t *testing.T) {
	mb, clk := newNetwork(t, types.SchemeUnchained)
	cfg := pinnedConfigFor(mb, deadURL(t))
	cfg.Period = 30

	db, err := NewDrandBeacon(cfg, WithClock(clk))
	require.NoError(t, err)
	_, err = db.ChainInfo(context.Background())
	require.ErrorIs(t, err, beacon.ErrUntrustedChain)
}

func TestPinnedChainInfoMustMatch(t *testing.T) {
	mb, _ := newNetwork(t, types.SchemeUnchained)
	other, _ := newNetwork(t, types.SchemeChained)
	cfg := configFor(mb, "http://a")
	cfg.ChainInfoJSON = string(other.ChainInfoJSON())

	_, err := NewDrandBeacon(cfg)
	require.ErrorIs(t, err, beacon.ErrUntrustedChain)
}

func TestNewDrandBeaconNeedsSource(t *testing.T) {
	mb, _ := newNetwork(t, types.SchemeUnchained)
	_, err := NewDrandBeacon(configFor(mb))
	require.Error(t, err)

	cfg := configFor(mb, "http://a")
	cfg.ChainHash = "abcd"
	_, err = NewDrandBeacon(cfg)
	require.Error(t, err)
}

func TestSharedTrustStore(t *testing.T) {
	mb, clk := newNetwork(t, types.SchemeUnchained)
	url := serve(t, mb.Handler())
	ts := NewTrustStore(NewHTTPFetcher(), nil)

	for i := 0; i < 3; i++ {
		db, err := NewDrandBeacon(configFor(mb, url), WithClock(clk), WithTrustStore(ts))
		require.NoError(t, err)
		_, err = db.ChainInfo(context.Background())
		require.NoError(t, err)
	}
	require.Equal(t, int64(1), mb.InfoRequests())
}

func TestRoundFarFuture(t *testing.T) {
	mb, clk := newNetwork(t, types.SchemeUnchained)
	ff := newFakeFetcher(func(ctx context.Context, url string, call int) ([]byte, error) {
		return nil, xerrors.Errorf("unexpected fetch of %s: %w", url, beacon.ErrTransport)
	})
	db, err := NewDrandBeacon(pinnedConfigFor(mb, "http://a"), WithFetcher(ff), WithClock(clk))
	require.NoError(t, err)

	for _, round := range []uint64{1 << 62, ^uint64(0)} {
		_, err := db.Round(context.Background(), round)
		require.ErrorIs(t, err, beacon.ErrRoundNotYetAvailable)
		require.NotErrorIs(t, err, beacon.ErrAllEndpointsFailed)
	}
	require.Empty(t, ff.Order())
}
