package types

import (
	"encoding/hex"
	"encoding/json"

	"golang.org/x/xerrors"
)

// Beacon is a single round of drand randomness together with the signature that produced it.
// A Beacon only carries meaning next to the ChainInfo of the network it was fetched from.
type Beacon struct {
	Round             uint64
	Randomness        []byte
	Signature         []byte
	PreviousSignature []byte
}

type hexBeacon struct {
	Round             uint64 `json:"round"`
	Randomness        string `json:"randomness"`
	Signature         string `json:"signature"`
	PreviousSignature string `json:"previous_signature,omitempty"`
}

func (b Beacon) MarshalJSON() ([]byte, error) {
	return json.Marshal(&hexBeacon{
		Round:             b.Round,
		Randomness:        hex.EncodeToString(b.Randomness),
		Signature:         hex.EncodeToString(b.Signature),
		PreviousSignature: hex.EncodeToString(b.PreviousSignature),
	})
}

func (b *Beacon) UnmarshalJSON(data []byte) error {
	var hb hexBeacon
	if err := json.Unmarshal(data, &hb); err != nil {
		return err
	}

	var out Beacon
	var err error
	out.Round = hb.Round
	if out.Randomness, err = hex.DecodeString(hb.Randomness); err != nil {
		return xerrors.Errorf("decoding randomness: %w", err)
	}
	if out.Signature, err = hex.DecodeString(hb.Signature); err != nil {
		return xerrors.Errorf("decoding signature: %w", err)
	}
	if out.PreviousSignature, err = hex.DecodeString(hb.PreviousSignature); err != nil {
		return xerrors.Errorf("decoding previous signature: %w", err)
	}
	if len(out.PreviousSignature) == 0 {
		out.PreviousSignature = nil
	}

	*b = out
	return nil
}
