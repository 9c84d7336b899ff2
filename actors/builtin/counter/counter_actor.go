package counter

import (
	"bytes"

	addr "github.com/filecoin-project/go-address"
	"github.com/filecoin-project/go-state-types/abi"
	"github.com/filecoin-project/go-state-types/cbor"
	"github.com/filecoin-project/go-state-types/exitcode"
	rtt "github.com/filecoin-project/go-state-types/rt"
	cid "github.com/ipfs/go-cid"

	"github.com/filecoin-project/go-timelock/actors/builtin"
	"github.com/filecoin-project/go-timelock/actors/runtime"
)

// Returned by Fail, always.
const ErrFailed = exitcode.FirstActorSpecificExitCode

// The counter actor is a target for time-locked calls.
// It counts increments made by its authority, and can relay an arbitrary message on the authority's behalf.
// A hook message, once set, is relayed each time the authority calls Hook.
// Methods other than the constructor are addressed by function signature.
type Actor struct{}

func (a Actor) Exports() map[abi.MethodNum]builtin.MethodMeta {
	return map[abi.MethodNum]builtin.MethodMeta{
		builtin.MethodConstructor:        {Name: "Constructor", Method: a.Constructor},
		builtin.MethodsCounter.Increment: {Name: builtin.CounterIncrementSignature, Method: a.Increment},
		builtin.MethodsCounter.Fail:      {Name: builtin.CounterFailSignature, Method: a.Fail},
		builtin.MethodsCounter.Relay:     {Name: builtin.CounterRelaySignature, Method: a.Relay},
		builtin.MethodsCounter.Count:     {Name: builtin.CounterCountSignature, Method: a.Count},
		builtin.MethodsCounter.SetHook:   {Name: builtin.CounterSetHookSignature, Method: a.SetHook},
		builtin.MethodsCounter.Hook:      {Name: builtin.CounterHookSignature, Method: a.Hook},
	}
}

func (a Actor) Code() cid.Cid {
	return builtin.CounterActorCodeID
}

func (a Actor) IsSingleton() bool {
	return false
}

func (a Actor) State() cbor.Er {
	return new(State)
}

var _ runtime.VMActor = Actor{}

type ConstructorParams struct {
	// The only address permitted to increment and relay.
	Authority addr.Address
}

func (a Actor) Constructor(rt runtime.Runtime, params *ConstructorParams) *abi.EmptyValue {
	rt.ValidateImmediateCallerIs(builtin.InitActorAddr)

	authority, ok := rt.ResolveAddress(params.Authority)
	if !ok {
		rt.Abortf(exitcode.ErrIllegalArgument, "failed to resolve authority %v", params.Authority)
	}
	rt.State().Create(&State{Authority: authority})
	return nil
}

func (a Actor) Increment(rt runtime.Runtime, _ *abi.EmptyValue) *abi.EmptyValue {
	var st State
	rt.State().Readonly(&st)
	rt.ValidateImmediateCallerIs(st.Authority)

	rt.State().Transaction(&st, func() {
		st.Count++
	})
	rt.Log(rtt.DEBUG, "count incremented to %d", st.Count)
	return nil
}

func (a Actor) Fail(rt runtime.Runtime, _ *abi.EmptyValue) *abi.EmptyValue {
	rt.ValidateImmediateCallerAcceptAny()
	rt.Abortf(ErrFailed, "failed as requested by %v", rt.Message().Caller())
	return nil
}

type RelayParams struct {
	To     addr.Address
	Value  abi.TokenAmount
	Method abi.MethodNum
	Params []byte
}

type RelayReturn struct {
	Code exitcode.ExitCode
	Ret  []byte
}

// Relay sends a message and records its exit code. A failed send does not abort the relay.
func (a Actor) Relay(rt runtime.Runtime, params *RelayParams) *RelayReturn {
	var st State
	rt.State().Readonly(&st)
	rt.ValidateImmediateCallerIs(st.Authority)

	return relay(rt, params)
}

// SetHook records a message to relay on each call to Hook, replacing any earlier hook.
func (a Actor) SetHook(rt runtime.Runtime, params *RelayParams) *abi.EmptyValue {
	rt.ValidateImmediateCallerType(builtin.CallerTypesSignable...)

	buf := bytes.Buffer{}
	err := params.MarshalCBOR(&buf)
	builtin.RequireNoErr(rt, err, exitcode.ErrSerialization, "failed to serialize hook")

	var st State
	rt.State().Transaction(&st, func() {
		st.Hook = buf.Bytes()
	})
	return nil
}

// Hook counts an increment and then relays the hook message, if one is set.
func (a Actor) Hook(rt runtime.Runtime, _ *abi.EmptyValue) *RelayReturn {
	var st State
	rt.State().Readonly(&st)
	rt.ValidateImmediateCallerIs(st.Authority)

	rt.State().Transaction(&st, func() {
		st.Count++
	})
	if len(st.Hook) == 0 {
		return &RelayReturn{Code: exitcode.Ok}
	}

	var hook RelayParams
	err := hook.UnmarshalCBOR(bytes.NewReader(st.Hook))
	builtin.RequireNoErr(rt, err, exitcode.ErrIllegalState, "failed to load hook")
	return relay(rt, &hook)
}

func relay(rt runtime.Runtime, params *RelayParams) *RelayReturn {
	ret, code := rt.Send(params.To, params.Method, builtin.CBORBytes(params.Params), params.Value)
	var out builtin.CBORBytes
	if code.IsSuccess() {
		err := ret.Into(&out)
		builtin.RequireNoErr(rt, err, exitcode.ErrSerialization, "failed to read relayed return")
	}

	var st State
	rt.State().Transaction(&st, func() {
		st.LastRelayCode = code
	})
	rt.Log(rtt.DEBUG, "relayed method %d to %v: exit code %d", params.Method, params.To, code)
	return &RelayReturn{Code: code, Ret: out}
}

type CountReturn struct {
	Count uint64
}

func (a Actor) Count(rt runtime.Runtime, _ *abi.EmptyValue) *CountReturn {
	rt.ValidateImmediateCallerAcceptAny()
	var st State
	rt.State().Readonly(&st)
	return &CountReturn{Count: st.Count}
}
