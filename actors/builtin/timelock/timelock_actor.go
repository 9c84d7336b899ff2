package timelock

import (
	"github.com/filecoin-project/go-state-types/abi"
	"github.com/filecoin-project/go-state-types/cbor"
	"github.com/filecoin-project/go-state-types/exitcode"
	rtt "github.com/filecoin-project/go-state-types/rt"
	"github.com/ipfs/go-cid"

	"github.com/filecoin-project/go-timelock/actors/builtin"
	"github.com/filecoin-project/go-timelock/actors/runtime"
	"github.com/filecoin-project/go-timelock/actors/util/adt"
)

// Timelock-specific exit codes.
const (
	// The action's timestamp is earlier than the current epoch plus the minimum delay.
	ErrInvalidSchedule = exitcode.FirstActorSpecificExitCode + iota
	// The action is not queued: it was never queued or has already executed.
	ErrNotQueued
	// The action is queued but its timestamp has not been reached.
	ErrTooEarly
	// Dispatching the action to its target failed.
	ErrCallFailed
)

// The time-lock actor holds deferred calls until their scheduled epoch.
// Each queued action may be executed once, by anyone, at or after its timestamp.
type Actor struct{}

func (a Actor) Exports() map[abi.MethodNum]builtin.MethodMeta {
	return map[abi.MethodNum]builtin.MethodMeta{
		builtin.MethodConstructor:            {Name: "Constructor", Method: a.Constructor},
		builtin.MethodsTimelock.Queue:        {Name: "Queue", Method: a.Queue},
		builtin.MethodsTimelock.Execute:      {Name: "Execute", Method: a.Execute},
		builtin.MethodsTimelock.GetTimestamp: {Name: "GetTimestamp", Method: a.GetTimestamp},
	}
}

func (a Actor) Code() cid.Cid {
	return builtin.TimelockActorCodeID
}

func (a Actor) IsSingleton() bool {
	return false
}

func (a Actor) State() cbor.Er {
	return new(State)
}

var _ runtime.VMActor = Actor{}

type ConstructorParams struct {
	MinDelay abi.ChainEpoch
}

func (a Actor) Constructor(rt runtime.Runtime, params *ConstructorParams) *abi.EmptyValue {
	rt.ValidateImmediateCallerIs(builtin.InitActorAddr)

	builtin.RequireParam(rt, params.MinDelay >= 0, "negative minimum delay %d", params.MinDelay)

	st, err := ConstructState(adt.AsStore(rt), params.MinDelay)
	builtin.RequireNoErr(rt, err, exitcode.ErrIllegalState, "failed to construct state")
	rt.State().Create(st)
	return nil
}

type QueueReturn struct {
	ID ActionID
}

// Queue records an action for execution at or after its timestamp.
// Queuing an action that is already queued has no further effect.
func (a Actor) Queue(rt runtime.Runtime, params *Action) *QueueReturn {
	rt.ValidateImmediateCallerAcceptAny()
	validateAction(rt, params)

	id, err := ComputeActionID(params, rt.Syscalls().HashBlake2b)
	builtin.RequireNoErr(rt, err, exitcode.ErrSerialization, "failed to compute action id")

	var st State
	rt.State().Transaction(&st, func() {
		earliest, ok := epochAfter(rt.CurrEpoch(), st.MinDelay)
		if !ok {
			rt.Abortf(ErrInvalidSchedule, "no timestamp satisfies minimum delay %d at epoch %d", st.MinDelay, rt.CurrEpoch())
		}
		if params.Timestamp < earliest {
			rt.Abortf(ErrInvalidSchedule, "timestamp %d before earliest allowed %d (epoch %d, min delay %d)",
				params.Timestamp, earliest, rt.CurrEpoch(), st.MinDelay)
		}

		err := st.QueueAction(adt.AsStore(rt), id)
		builtin.RequireNoErr(rt, err, exitcode.ErrIllegalState, "failed to queue action %s", id)
	})

	rt.Log(rtt.INFO, "queued action %s: %s to %v at epoch %d", id, params.Signature, params.Target, params.Timestamp)
	return &QueueReturn{ID: id}
}

type ExecuteReturn struct {
	Ret []byte
}

// Execute dispatches a queued action whose timestamp has been reached, returning the target's return value.
// The action is dequeued before dispatch, so a re-entrant Execute of the same action fails with ErrNotQueued.
// If the call fails the whole message aborts and the action remains queued.
func (a Actor) Execute(rt runtime.Runtime, params *Action) *ExecuteReturn {
	rt.ValidateImmediateCallerAcceptAny()

	id, err := ComputeActionID(params, rt.Syscalls().HashBlake2b)
	builtin.RequireNoErr(rt, err, exitcode.ErrSerialization, "failed to compute action id")

	var st State
	rt.State().Transaction(&st, func() {
		store := adt.AsStore(rt)
		queued, err := st.IsQueued(store, id)
		builtin.RequireNoErr(rt, err, exitcode.ErrIllegalState, "failed to look up action %s", id)
		if !queued {
			rt.Abortf(ErrNotQueued, "action %s is not queued", id)
		}
		if rt.CurrEpoch() < params.Timestamp {
			rt.Abortf(ErrTooEarly, "action %s not executable until epoch %d, current epoch %d", id, params.Timestamp, rt.CurrEpoch())
		}

		err = st.DequeueAction(store, id)
		builtin.RequireNoErr(rt, err, exitcode.ErrIllegalState, "failed to dequeue action %s", id)
	})

	// A queued action passed validation when it was queued.
	method := validateAction(rt, params)

	ret, code := rt.Send(params.Target, method, builtin.CBORBytes(params.Data), params.Value)
	if !code.IsSuccess() {
		rt.Abortf(ErrCallFailed, "action %s: call %s to %v failed: exit code %d", id, params.Signature, params.Target, code)
	}

	var out builtin.CBORBytes
	err = ret.Into(&out)
	builtin.RequireNoErr(rt, err, exitcode.ErrSerialization, "failed to read return of action %s", id)

	rt.Log(rtt.INFO, "executed action %s at epoch %d", id, rt.CurrEpoch())
	return &ExecuteReturn{Ret: out}
}

type GetTimestampParams struct {
	Delay abi.ChainEpoch
}

type GetTimestampReturn struct {
	Timestamp abi.ChainEpoch
}

// GetTimestamp returns the epoch lying delay epochs after the current one.
func (a Actor) GetTimestamp(rt runtime.Runtime, params *GetTimestampParams) *GetTimestampReturn {
	rt.ValidateImmediateCallerAcceptAny()
	builtin.RequireParam(rt, params.Delay >= 0, "negative delay %d", params.Delay)
	ts, ok := epochAfter(rt.CurrEpoch(), params.Delay)
	if !ok {
		rt.Abortf(exitcode.ErrIllegalArgument, "delay %d from epoch %d overflows", params.Delay, rt.CurrEpoch())
	}
	return &GetTimestampReturn{Timestamp: ts}
}

// Checks the parts of an action that can be checked without state, returning the method number
// its signature addresses.
func validateAction(rt runtime.Runtime, action *Action) abi.MethodNum {
	builtin.RequireParam(rt, !action.Value.Nil() && action.Value.Sign() >= 0, "invalid action value %v", action.Value)
	method, err := builtin.GenerateSignatureMethodNum(action.Signature)
	builtin.RequireNoErr(rt, err, exitcode.ErrIllegalArgument, "invalid action signature")
	return method
}
