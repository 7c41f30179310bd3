package drand

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/raulk/clock"
	"github.com/stretchr/testify/require"

	"github.com/boneyard93501/simple-drand/build/buildconstants"
	"github.com/boneyard93501/simple-drand/chain/beacon"
	"github.com/boneyard93501/simple-drand/chain/types"
	"github.com/boneyard93501/simple-drand/node/modules/dtypes"
)

const testGenesis = int64(1692803367)

func periodFor(scheme types.Scheme) time.Duration {
	if scheme.IsChained() {
		return 30 * time.Second
	}
	return 3 * time.Second
}

// newNetwork starts a mock drand network 50 rounds and one second after its genesis.
func newNetwork(t *testing.T, scheme types.Scheme) (*beacon.MockBeacon, *clock.Mock) {
	t.Helper()
	period := periodFor(scheme)
	clk := clock.NewMock()
	clk.Set(time.Unix(testGenesis, 0).Add(50*period + time.Second))
	mb, err := beacon.NewMockBeacon(scheme, testGenesis, period, clk)
	require.NoError(t, err)
	return mb, clk
}

func serve(t *testing.T, h http.Handler) string {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return srv.URL
}

// deadURL returns the address of a server that is no longer listening.
func deadURL(t *testing.T) string {
	t.Helper()
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()
	return url
}

// hang never answers until the client goes away.
func hang() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	})
}

func configFor(mb *beacon.MockBeacon, urls ...string) dtypes.DrandConfig {
	return dtypes.DrandConfig{
		Network:   buildconstants.DrandQuicknet,
		Servers:   urls,
		ChainHash: mb.Info().HashString(),
	}
}

func pinnedConfigFor(mb *beacon.MockBeacon, urls ...string) dtypes.DrandConfig {
	cfg := configFor(mb, urls...)
	cfg.ChainInfoJSON = string(mb.ChainInfoJSON())
	return cfg
}

// fakeFetcher serves canned responses per URL and counts calls.
type fakeFetcher struct {
	lk     sync.Mutex
	calls  map[string]int
	order  []string
	handle func(ctx context.Context, url string, call int) ([]byte, error)
}

func newFakeFetcher(handle func(ctx context.Context, url string, call int) ([]byte, error)) *fakeFetcher {
	return &fakeFetcher{calls: map[string]int{}, handle: handle}
}

func (f *fakeFetcher) Fetch(ctx context.Context, url string, _ time.Duration) ([]byte, error) {
	f.lk.Lock()
	f.calls[url]++
	call := f.calls[url]
	f.order = append(f.order, url)
	f.lk.Unlock()
	return f.handle(ctx, url, call)
}

func (f *fakeFetcher) Calls(url string) int {
	f.lk.Lock()
	defer f.lk.Unlock()
	return f.calls[url]
}

func (f *fakeFetcher) Order() []string {
	f.lk.Lock()
	defer f.lk.Unlock()
	return append([]string(nil), f.order...)
}
