package beacon

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/drand/kyber"
	"github.com/gorilla/mux"
	"github.com/minio/sha256-simd"
	"github.com/raulk/clock"
	"golang.org/x/xerrors"

	"github.com/boneyard93501/simple-drand/chain/types"
)

// MockBeacon is a drand network whose group secret is known locally. It signs real BLS
// beacons for either scheme and can serve them over the drand HTTP API.
type MockBeacon struct {
	verifier *Verifier
	secret   kyber.Scalar
	info     *types.ChainInfo
	infoJSON []byte
	rc       RoundClock
	clock    clock.Clock

	lk   sync.Mutex
	sigs map[uint64][]byte

	infoRequests  atomic.Int64
	roundRequests atomic.Int64
}

func NewMockBeacon(scheme types.Scheme, genesis int64, period time.Duration, clk clock.Clock) (*MockBeacon, error) {
	v := NewVerifier(DefaultDomainTags)
	secret := v.Scalar(genesis ^ 0x5eed)
	pk, err := v.PublicKey(scheme, secret)
	if err != nil {
		return nil, err
	}
	rc, err := NewRoundClock(genesis, period)
	if err != nil {
		return nil, err
	}
	seed := sha256.Sum256([]byte("mock genesis " + strconv.FormatInt(genesis, 10)))

	unhashed := &types.ChainInfo{
		PublicKey:   pk,
		Period:      period,
		GenesisTime: genesis,
		GenesisSeed: seed[:],
		Scheme:      scheme,
		SchemeID:    scheme.ID(),
		BeaconID:    "mock-" + scheme.String(),
	}
	raw, err := EncodeChainInfo(unhashed)
	if err != nil {
		return nil, err
	}
	// the hash field is omitted above, so parsing recomputes it from the fields
	info, err := ParseChainInfo(raw, v)
	if err != nil {
		return nil, xerrors.Errorf("building mock chain info: %w", err)
	}
	infoJSON, err := EncodeChainInfo(info)
	if err != nil {
		return nil, err
	}

	if clk == nil {
		clk = clock.New()
	}

	return &MockBeacon{
		verifier: v,
		secret:   secret,
		info:     info,
		infoJSON: infoJSON,
		rc:       rc,
		clock:    clk,
		sigs:     map[uint64][]byte{0: seed[:]},
	}, nil
}

func (mb *MockBeacon) Info() *types.ChainInfo {
	return mb.info
}

func (mb *MockBeacon) ChainInfoJSON() []byte {
	return mb.infoJSON
}

func (mb *MockBeacon) InfoRequests() int64 {
	return mb.infoRequests.Load()
}

func (mb *MockBeacon) RoundRequests() int64 {
	return mb.roundRequests.Load()
}

func (mb *MockBeacon) CurrentRound() uint64 {
	return mb.rc.RoundAtTime(mb.clock.Now())
}

func (mb *MockBeacon) signature(round uint64) ([]byte, error) {
	mb.lk.Lock()
	defer mb.lk.Unlock()

	if sig, ok := mb.sigs[round]; ok {
		return sig, nil
	}
	if !mb.info.Scheme.IsChained() {
		sig, err := mb.verifier.Sign(mb.info.Scheme, mb.secret, round, nil)
		if err != nil {
			return nil, err
		}
		mb.sigs[round] = sig
		return sig, nil
	}

	// chained rounds sign over the previous signature, fill the gap from the highest known round
	from := uint64(0)
	for r := range mb.sigs {
		if r < round && r > from {
			from = r
		}
	}
	for r := from + 1; r <= round; r++ {
		sig, err := mb.verifier.Sign(mb.info.Scheme, mb.secret, r, mb.sigs[r-1])
		if err != nil {
			return nil, err
		}
		mb.sigs[r] = sig
	}
	return mb.sigs[round], nil
}

// Sign returns the beacon of round, whether or not the round has been reached yet.
func (mb *MockBeacon) Sign(round uint64) (types.Beacon, error) {
	if round == 0 {
		return types.Beacon{}, ErrInvalidRound
	}
	sig, err := mb.signature(round)
	if err != nil {
		return types.Beacon{}, err
	}
	b := types.Beacon{
		Round:      round,
		Signature:  sig,
		Randomness: RandomnessFromSignature(sig),
	}
	if mb.info.Scheme.IsChained() {
		prev, err := mb.signature(round - 1)
		if err != nil {
			return types.Beacon{}, err
		}
		b.PreviousSignature = prev
	}
	return b, nil
}

// Entry returns round, or the current round when round is 0.
func (mb *MockBeacon) Entry(ctx context.Context, round uint64) <-chan Response {
	out := make(chan Response, 1)
	defer close(out)

	current := mb.CurrentRound()
	if round == 0 {
		round = current
	}
	if round == 0 || round > current {
		out <- Response{Err: xerrors.Errorf("round %d (current %d): %w", round, current, ErrRoundNotYetAvailable)}
		return out
	}

	b, err := mb.Sign(round)
	out <- Response{Entry: b, Err: err}
	return out
}

func (mb *MockBeacon) VerifyEntry(_ context.Context, b types.Beacon) error {
	return mb.verifier.Verify(&b, mb.info)
}

func (mb *MockBeacon) RoundAt(_ context.Context, t time.Time) (uint64, error) {
	return mb.rc.RoundAtTime(t), nil
}

func (mb *MockBeacon) IsChained(context.Context) (bool, error) {
	return mb.info.Scheme.IsChained(), nil
}

// Handler serves the drand HTTP API for this network:
// /{chain_hash}/info, /{chain_hash}/public/latest and /{chain_hash}/public/{round}.
func (mb *MockBeacon) Handler() http.Handler {
	m := mux.NewRouter()
	m.HandleFunc("/{hash}/info", mb.serveInfo).Methods(http.MethodGet)
	m.HandleFunc("/{hash}/public/latest", mb.serveRound).Methods(http.MethodGet)
	m.HandleFunc("/{hash}/public/{round:[0-9]+}", mb.serveRound).Methods(http.MethodGet)
	return m
}

func (mb *MockBeacon) serveInfo(w http.ResponseWriter, r *http.Request) {
	mb.infoRequests.Add(1)
	if mux.Vars(r)["hash"] != mb.info.HashString() {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(mb.infoJSON)
}

func (mb *MockBeacon) serveRound(w http.ResponseWriter, r *http.Request) {
	mb.roundRequests.Add(1)
	vars := mux.Vars(r)
	if vars["hash"] != mb.info.HashString() {
		http.NotFound(w, r)
		return
	}

	var round uint64
	if rs, ok := vars["round"]; ok {
		var err error
		round, err = strconv.ParseUint(rs, 10, 64)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if round == 0 {
			http.Error(w, "round 0 is not a beacon", http.StatusBadRequest)
			return
		}
	}

	resp := <-mb.Entry(r.Context(), round)
	if resp.Err != nil {
		if xerrors.Is(resp.Err, ErrRoundNotYetAvailable) {
			http.Error(w, resp.Err.Error(), http.StatusTooEarly)
			return
		}
		http.Error(w, resp.Err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp.Entry); err != nil {
		log.Warnw("writing mock beacon", "round", round, "err", err)
	}
}

var _ RandomBeacon = (*MockBeacon)(nil)
