package runtime

import (
	"bytes"
	"io"

	"github.com/filecoin-project/go-state-types/abi"
	"github.com/filecoin-project/go-state-types/cbor"
	cid "github.com/ipfs/go-cid"
)

// Concrete types associated with the runtime interface.

// MethodMeta binds an exported actor method to the name it is known by.
// For methods addressed by a function signature, Name is that signature.
type MethodMeta struct {
	Name   string
	Method interface{}
}

// VMActor is the interface that all actor code types satisfy to be invoked by a VM.
type VMActor interface {
	// Exports returns the methods callable on this actor, keyed by method number.
	// Each method takes a Runtime and a pointer to CBOR-unmarshalable params, and returns a CBOR-marshalable value.
	Exports() map[abi.MethodNum]MethodMeta
	// Code returns the code ID of the actor.
	Code() cid.Cid
	// IsSingleton reports whether at most one instance of this actor may exist.
	IsSingleton() bool
	// State returns a new, empty state object for the actor.
	State() cbor.Er
}

// Wraps already-serialized bytes as CBOR-marshalable.
type CBORBytes []byte

func (b CBORBytes) MarshalCBOR(w io.Writer) error {
	_, err := w.Write(b)
	return err
}

func (b *CBORBytes) UnmarshalCBOR(r io.Reader) error {
	var c bytes.Buffer
	_, err := c.ReadFrom(r)
	*b = c.Bytes()
	return err
}
