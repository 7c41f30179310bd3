package drand

import (
	"context"
	"encoding/hex"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
	"golang.org/x/xerrors"

	"github.com/boneyard93501/simple-drand/chain/beacon"
	"github.com/boneyard93501/simple-drand/chain/types"
)

// TrustStore resolves and pins the chain info of drand networks. A chain info is only
// handed out once its recomputed hash matched the hash the caller expects; from then on it
// is kept for the lifetime of the store. Failed resolutions are not remembered.
//
// Concurrent resolutions of the same endpoint set and expected hash share one fetch.
type TrustStore struct {
	fetcher  Fetcher
	verifier *beacon.Verifier

	group singleflight.Group

	lk      sync.RWMutex
	cache   map[string]*types.ChainInfo
	flights map[string]*flight
}

// flight tracks the callers waiting on one in-flight resolution so the fetch can be
// cancelled once nobody waits for it anymore.
type flight struct {
	ctx     context.Context
	cancel  context.CancelFunc
	waiters int
}

func NewTrustStore(fetcher Fetcher, verifier *beacon.Verifier) *TrustStore {
	if verifier == nil {
		verifier = beacon.NewVerifier(beacon.DefaultDomainTags)
	}
	return &TrustStore{
		fetcher:  fetcher,
		verifier: verifier,
		cache:    map[string]*types.ChainInfo{},
		flights:  map[string]*flight{},
	}
}

func trustKey(es types.EndpointSet, expected []byte) string {
	return es.Key() + "#" + hex.EncodeToString(expected)
}

func (ts *TrustStore) Cached(es types.EndpointSet, expected []byte) (*types.ChainInfo, bool) {
	ts.lk.RLock()
	defer ts.lk.RUnlock()
	info, ok := ts.cache[trustKey(es, expected)]
	return info, ok
}

func (ts *TrustStore) store(key string, info *types.ChainInfo) *types.ChainInfo {
	ts.lk.Lock()
	defer ts.lk.Unlock()
	if cur, ok := ts.cache[key]; ok {
		return cur
	}
	ts.cache[key] = info
	return info
}

// Pin validates a locally configured chain info document and caches it as if it had been
// resolved from the endpoint set.
func (ts *TrustStore) Pin(es types.EndpointSet, expected []byte, chainInfoJSON []byte) (*types.ChainInfo, error) {
	info, err := beacon.TrustChainInfo(chainInfoJSON, expected, ts.verifier)
	if err != nil {
		return nil, err
	}
	return ts.store(trustKey(es, expected), info), nil
}

// Resolve returns the trusted chain info of the network served by es. timeout bounds each
// endpoint attempt.
func (ts *TrustStore) Resolve(ctx context.Context, es types.EndpointSet, expected []byte, timeout time.Duration) (*types.ChainInfo, error) {
	key := trustKey(es, expected)
	if info, ok := ts.Cached(es, expected); ok {
		return info, nil
	}

	fctx, release := ts.join(key)
	defer release()

	ch := ts.group.DoChan(key, func() (interface{}, error) {
		if info, ok := ts.Cached(es, expected); ok {
			return info, nil
		}
		info, err := ts.fetch(fctx, es, expected, timeout)
		if err != nil {
			return nil, err
		}
		return ts.store(key, info), nil
	})

	select {
	case <-ctx.Done():
		return nil, xerrors.Errorf("waiting for chain info: %w", ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*types.ChainInfo), nil
	}
}

func (ts *TrustStore) join(key string) (context.Context, func()) {
	ts.lk.Lock()
	defer ts.lk.Unlock()

	f, ok := ts.flights[key]
	if !ok {
		ctx, cancel := context.WithCancel(context.Background())
		f = &flight{ctx: ctx, cancel: cancel}
		ts.flights[key] = f
	}
	f.waiters++

	return f.ctx, func() {
		ts.lk.Lock()
		defer ts.lk.Unlock()

		f.waiters--
		if f.waiters > 0 {
			return
		}
		f.cancel()
		if ts.flights[key] == f {
			delete(ts.flights, key)
			// a later caller must start a fresh fetch rather than join a cancelled one
			ts.group.Forget(key)
		}
	}
}

func (ts *TrustStore) fetch(ctx context.Context, es types.EndpointSet, expected []byte, timeout time.Duration) (*types.ChainInfo, error) {
	urls := es.URLs()
	if len(urls) == 0 {
		return nil, xerrors.New("no endpoints to fetch chain info from")
	}
	hash := hex.EncodeToString(expected)

	log.Debugw("resolving chain info", "chain", hash, "endpoints", len(urls))
	fo := newFailover[*types.ChainInfo](urls)
	return fo.run(ctx, func(ctx context.Context, base string) (*types.ChainInfo, outcome, error) {
		data, err := ts.fetcher.Fetch(ctx, infoURL(base, hash), timeout)
		if err != nil {
			return nil, outcomeRetryable, asTransport(err)
		}
		info, err := beacon.TrustChainInfo(data, expected, ts.verifier)
		switch {
		case xerrors.Is(err, beacon.ErrUntrustedChain):
			log.Warnw("endpoint served an untrusted chain", "url", base, "chain", hash, "err", err)
			return nil, outcomeAbort, err
		case err != nil:
			return nil, outcomeFatal, err
		}
		return info, outcomeSuccess, nil
	})
}
