package timelock

import (
	"bytes"

	addr "github.com/filecoin-project/go-address"
	"github.com/filecoin-project/go-state-types/abi"
	"github.com/multiformats/go-multibase"
	"golang.org/x/xerrors"
)

// Action is a deferred call: Value is sent to Target invoking the method addressed by Signature,
// with Data as its serialized parameters, no earlier than epoch Timestamp.
type Action struct {
	Target    addr.Address
	Value     abi.TokenAmount
	Signature string
	Data      []byte
	Timestamp abi.ChainEpoch
}

// ActionID is the BLAKE2b-256 digest of an action's CBOR tuple encoding.
// Actions with identical fields have identical IDs.
type ActionID [32]byte

func (id ActionID) Key() string {
	return string(id[:])
}

// String renders the ID in multibase base32.
func (id ActionID) String() string {
	s, err := multibase.Encode(multibase.Base32, id[:])
	if err != nil {
		panic(err)
	}
	return s
}

// ParseActionID decodes a multibase-encoded action ID.
func ParseActionID(s string) (ActionID, error) {
	var id ActionID
	_, data, err := multibase.Decode(s)
	if err != nil {
		return id, xerrors.Errorf("failed to decode action id %q: %w", s, err)
	}
	if len(data) != len(id) {
		return id, xerrors.Errorf("action id %q has length %d, expected %d", s, len(data), len(id))
	}
	copy(id[:], data)
	return id, nil
}

// Computes the ID of an action. The encoding is a fixed-order CBOR array in which
// the signature and data are length-prefixed, so distinct actions cannot share an encoding.
func ComputeActionID(action *Action, hash func([]byte) [32]byte) (ActionID, error) {
	buf := bytes.Buffer{}
	if err := action.MarshalCBOR(&buf); err != nil {
		return ActionID{}, xerrors.Errorf("failed to construct action id data: %w", err)
	}
	return hash(buf.Bytes()), nil
}
