package beacon

import (
	"bytes"
	"encoding/binary"

	"github.com/drand/kyber"
	bls "github.com/drand/kyber-bls12381"
	"github.com/drand/kyber/pairing"
	"github.com/minio/sha256-simd"
	"go.uber.org/multierr"
	"golang.org/x/xerrors"

	"github.com/boneyard93501/simple-drand/chain/types"
)

// DomainTags are the hash-to-curve domain separation tags used to map signed messages onto
// the signature group of each scheme.
type DomainTags struct {
	Chained   []byte
	Unchained []byte
}

var DefaultDomainTags = DomainTags{
	Chained:   []byte("BLS_SIG_BLS12381G2_XMD:SHA-256_SSWU_RO_NUL_"),
	Unchained: []byte("BLS_SIG_BLS12381G1_XMD:SHA-256_SSWU_RO_NUL_"),
}

// Verifier checks beacons against the chain they claim to belong to. It holds no mutable
// state and is safe for concurrent use.
type Verifier struct {
	suite pairing.Suite
}

func NewVerifier(dst DomainTags) *Verifier {
	if len(dst.Chained) == 0 {
		dst.Chained = DefaultDomainTags.Chained
	}
	if len(dst.Unchained) == 0 {
		dst.Unchained = DefaultDomainTags.Unchained
	}
	// unchained signatures live on G1, chained ones on G2
	return &Verifier{suite: bls.NewBLS12381SuiteWithDST(dst.Unchained, dst.Chained)}
}

// groups returns the signature group and the key group of a scheme.
func (v *Verifier) groups(s types.Scheme) (kyber.Group, kyber.Group, error) {
	switch s {
	case types.SchemeChained:
		return v.suite.G2(), v.suite.G1(), nil
	case types.SchemeUnchained:
		return v.suite.G1(), v.suite.G2(), nil
	default:
		return nil, nil, xerrors.Errorf("scheme %s: %w", s, types.ErrUnsupportedScheme)
	}
}

func decodePoint(g kyber.Group, data []byte) (kyber.Point, error) {
	if len(data) != g.PointLen() {
		return nil, xerrors.Errorf("expected %d bytes for a %s point, got %d", g.PointLen(), g, len(data))
	}
	p := g.Point()
	if err := p.UnmarshalBinary(data); err != nil {
		return nil, err
	}
	return p, nil
}

// CheckPublicKey makes sure pk is a usable group key for the scheme.
func (v *Verifier) CheckPublicKey(s types.Scheme, pk []byte) error {
	_, keyGroup, err := v.groups(s)
	if err != nil {
		return err
	}
	p, err := decodePoint(keyGroup, pk)
	if err != nil {
		return xerrors.Errorf("decoding public key: %w", err)
	}
	if p.Equal(keyGroup.Point().Null()) {
		return xerrors.New("public key is the identity element")
	}
	return nil
}

// Message returns the digest a beacon of the given round signs under the scheme.
func Message(s types.Scheme, round uint64, prevSig []byte) ([]byte, error) {
	h := sha256.New()
	if s.IsChained() {
		if len(prevSig) == 0 {
			return nil, ErrMissingPreviousSignature
		}
		_, _ = h.Write(prevSig)
	}
	var rb [8]byte
	binary.BigEndian.PutUint64(rb[:], round)
	_, _ = h.Write(rb[:])
	return h.Sum(nil), nil
}

// RandomnessFromSignature is the randomness a drand network publishes for a signature.
func RandomnessFromSignature(sig []byte) []byte {
	r := sha256.Sum256(sig)
	return r[:]
}

// Verify returns nil when both the pairing check and the randomness check pass, and a
// *VerificationError naming every failed check otherwise.
func (v *Verifier) Verify(b *types.Beacon, info *types.ChainInfo) error {
	if b == nil || info == nil {
		return xerrors.New("verify: nil beacon or chain info")
	}

	var reasons error
	if err := v.verifySignature(b, info); err != nil {
		reasons = multierr.Append(reasons, err)
	}
	if !bytes.Equal(RandomnessFromSignature(b.Signature), b.Randomness) {
		reasons = multierr.Append(reasons, ErrRandomnessMismatch)
	}

	if reasons != nil {
		log.Debugw("beacon rejected", "round", b.Round, "chain", info.HashString(), "reasons", reasons)
	}
	return newVerificationError(b.Round, reasons)
}

func (v *Verifier) verifySignature(b *types.Beacon, info *types.ChainInfo) error {
	sigGroup, keyGroup, err := v.groups(info.Scheme)
	if err != nil {
		return xerrors.Errorf("%s: %w", err, ErrPairingMismatch)
	}

	msg, err := Message(info.Scheme, b.Round, b.PreviousSignature)
	if err != nil {
		return err
	}

	sig, err := decodePoint(sigGroup, b.Signature)
	if err != nil {
		return xerrors.Errorf("signature is not a group element (%s): %w", err, ErrPairingMismatch)
	}
	pub, err := decodePoint(keyGroup, info.PublicKey)
	if err != nil {
		return xerrors.Errorf("public key is not a group element (%s): %w", err, ErrPairingMismatch)
	}

	hashable, ok := sigGroup.Point().(kyber.HashablePoint)
	if !ok {
		return xerrors.Errorf("signature group cannot hash to curve: %w", ErrPairingMismatch)
	}
	hm := hashable.Hash(msg)

	var lhs, rhs kyber.Point
	if info.Scheme.IsChained() {
		// e(g1, sig) == e(pk, H(m)), signature on G2
		lhs = v.suite.Pair(v.suite.G1().Point().Base(), sig)
		rhs = v.suite.Pair(pub, hm)
	} else {
		// e(sig, g2) == e(H(m), pk), signature on G1
		lhs = v.suite.Pair(sig, v.suite.G2().Point().Base())
		rhs = v.suite.Pair(hm, pub)
	}
	if !lhs.Equal(rhs) {
		return ErrPairingMismatch
	}
	return nil
}

// Sign produces the signature of a round with a secret scalar. It only exists to build
// fixtures for networks whose key is known locally.
func (v *Verifier) Sign(s types.Scheme, secret kyber.Scalar, round uint64, prevSig []byte) ([]byte, error) {
	sigGroup, _, err := v.groups(s)
	if err != nil {
		return nil, err
	}
	msg, err := Message(s, round, prevSig)
	if err != nil {
		return nil, err
	}
	hashable, ok := sigGroup.Point().(kyber.HashablePoint)
	if !ok {
		return nil, xerrors.New("signature group cannot hash to curve")
	}
	return sigGroup.Point().Mul(secret, hashable.Hash(msg)).MarshalBinary()
}

// PublicKey derives the group key of a secret scalar for the scheme.
func (v *Verifier) PublicKey(s types.Scheme, secret kyber.Scalar) ([]byte, error) {
	_, keyGroup, err := v.groups(s)
	if err != nil {
		return nil, err
	}
	return keyGroup.Point().Mul(secret, nil).MarshalBinary()
}

// Scalar returns a scalar of the pairing suite set to n.
func (v *Verifier) Scalar(n int64) kyber.Scalar {
	return v.suite.G1().Scalar().SetInt64(n)
}
