package system

import (
	"github.com/filecoin-project/go-state-types/abi"
	"github.com/filecoin-project/go-state-types/cbor"
	"github.com/filecoin-project/go-state-types/exitcode"
	cid "github.com/ipfs/go-cid"

	"github.com/filecoin-project/go-timelock/actors/builtin"
	"github.com/filecoin-project/go-timelock/actors/runtime"
	"github.com/filecoin-project/go-timelock/actors/util/adt"
)

// The system actor is the implicit sender of messages the VM originates, such as account construction.
// Its state records the manifest of actor code the VM will instantiate.
type Actor struct{}

func (a Actor) Exports() map[abi.MethodNum]builtin.MethodMeta {
	return map[abi.MethodNum]builtin.MethodMeta{
		builtin.MethodConstructor: {Name: "Constructor", Method: a.Constructor},
	}
}

func (a Actor) Code() cid.Cid {
	return builtin.SystemActorCodeID
}

func (a Actor) IsSingleton() bool {
	return true
}

func (a Actor) State() cbor.Er {
	return new(State)
}

var _ runtime.VMActor = Actor{}

func (a Actor) Constructor(rt runtime.Runtime, _ *abi.EmptyValue) *abi.EmptyValue {
	rt.ValidateImmediateCallerIs(builtin.SystemActorAddr)

	st, err := ConstructState(adt.AsStore(rt), nil)
	builtin.RequireNoErr(rt, err, exitcode.ErrIllegalState, "failed to construct state")
	rt.State().Create(st)
	return nil
}
