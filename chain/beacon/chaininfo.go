package beacon

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"time"

	dchain "github.com/drand/drand/v2/common/chain"
	dcrypto "github.com/drand/drand/v2/crypto"
	"golang.org/x/xerrors"

	"github.com/boneyard93501/simple-drand/chain/types"
)

// ParseChainInfo decodes a drand chain info document and recomputes its chain hash using
// drand's canonical encoding. The result is self-consistent but not yet trusted: callers
// must still compare Hash with the hash they expect.
func ParseChainInfo(data []byte, v *Verifier) (*types.ChainInfo, error) {
	var rec types.ChainInfoRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, xerrors.Errorf("decoding chain info (%s): %w", err, ErrMalformedChainInfo)
	}
	if rec.Period < 1 {
		return nil, xerrors.Errorf("period %d: %w", rec.Period, ErrMalformedChainInfo)
	}
	if rec.GenesisTime <= 0 {
		return nil, xerrors.Errorf("genesis time %d: %w", rec.GenesisTime, ErrMalformedChainInfo)
	}
	scheme, err := types.SchemeFromID(rec.SchemeID)
	if err != nil {
		return nil, xerrors.Errorf("%s: %w", err, ErrMalformedChainInfo)
	}
	if _, err := dcrypto.GetSchemeByID(scheme.ID()); err != nil {
		return nil, xerrors.Errorf("scheme %q (%s): %w", scheme.ID(), err, ErrMalformedChainInfo)
	}

	info, err := dchain.InfoFromJSON(bytes.NewReader(data))
	if err != nil {
		return nil, xerrors.Errorf("unable to unmarshal drand chain info (%s): %w", err, ErrMalformedChainInfo)
	}
	pk, err := info.PublicKey.MarshalBinary()
	if err != nil {
		return nil, xerrors.Errorf("encoding public key (%s): %w", err, ErrMalformedChainInfo)
	}
	if err := v.CheckPublicKey(scheme, pk); err != nil {
		return nil, xerrors.Errorf("%s: %w", err, ErrMalformedChainInfo)
	}
	seed, err := hex.DecodeString(rec.GroupHash)
	if err != nil {
		return nil, xerrors.Errorf("decoding group hash (%s): %w", err, ErrMalformedChainInfo)
	}

	hash := info.Hash()
	if rec.Hash != "" {
		claimed, err := hex.DecodeString(rec.Hash)
		if err != nil {
			return nil, xerrors.Errorf("decoding chain hash (%s): %w", err, ErrMalformedChainInfo)
		}
		if !bytes.Equal(claimed, hash) {
			return nil, xerrors.Errorf("record claims hash %x but its fields hash to %x: %w", claimed, hash, ErrUntrustedChain)
		}
	}

	var beaconID string
	if rec.Metadata != nil {
		beaconID = rec.Metadata.BeaconID
	}

	return &types.ChainInfo{
		PublicKey:   pk,
		Period:      time.Duration(rec.Period) * time.Second,
		GenesisTime: rec.GenesisTime,
		GenesisSeed: seed,
		Scheme:      scheme,
		SchemeID:    scheme.ID(),
		BeaconID:    beaconID,
		Hash:        hash,
	}, nil
}

// TrustChainInfo parses a chain info document and accepts it only when its recomputed
// hash equals expected.
func TrustChainInfo(data []byte, expected []byte, v *Verifier) (*types.ChainInfo, error) {
	info, err := ParseChainInfo(data, v)
	if err != nil {
		return nil, err
	}
	if !bytes.Equal(info.Hash, expected) {
		return nil, xerrors.Errorf("chain hash %x does not match expected %x: %w", info.Hash, expected, ErrUntrustedChain)
	}
	return info, nil
}

// EncodeChainInfo renders info as the JSON document drand endpoints serve.
func EncodeChainInfo(info *types.ChainInfo) ([]byte, error) {
	rec := types.ChainInfoRecord{
		PublicKey:   hex.EncodeToString(info.PublicKey),
		Period:      info.PeriodSeconds(),
		GenesisTime: info.GenesisTime,
		Hash:        hex.EncodeToString(info.Hash),
		GroupHash:   hex.EncodeToString(info.GenesisSeed),
		SchemeID:    info.SchemeID,
	}
	if info.BeaconID != "" {
		rec.Metadata = &types.ChainInfoLabels{BeaconID: info.BeaconID}
	}
	return json.Marshal(&rec)
}
