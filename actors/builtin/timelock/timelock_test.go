package timelock_test

import (
	"context"
	"math"
	"testing"

	addr "github.com/filecoin-project/go-address"
	"github.com/filecoin-project/go-state-types/abi"
	"github.com/filecoin-project/go-state-types/big"
	"github.com/filecoin-project/go-state-types/exitcode"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/filecoin-project/go-timelock/actors/builtin"
	"github.com/filecoin-project/go-timelock/actors/builtin/timelock"
	"github.com/filecoin-project/go-timelock/actors/util/adt"
	"github.com/filecoin-project/go-timelock/support/mock"
	tutil "github.com/filecoin-project/go-timelock/support/testing"
)

func TestExports(t *testing.T) {
	mock.CheckActorExports(t, timelock.Actor{})
}

func TestConstruction(t *testing.T) {
	receiver := tutil.NewIDAddr(t, 100)
	builder := mock.NewBuilder(context.Background(), receiver).
		WithCaller(builtin.InitActorAddr, builtin.InitActorCodeID)

	t.Run("construct with minimum delay", func(t *testing.T) {
		rt := builder.Build(t)
		actor := timelockHarness{t: t, minDelay: 1000}
		actor.constructAndVerify(rt)

		summary := actor.checkState(rt)
		assert.Equal(t, int64(1000), summary.MinDelay)
		assert.Equal(t, 0, summary.QueuedCount)
	})

	t.Run("zero delay is allowed", func(t *testing.T) {
		rt := builder.Build(t)
		actor := timelockHarness{t: t, minDelay: 0}
		actor.constructAndVerify(rt)
	})

	t.Run("negative delay is rejected", func(t *testing.T) {
		rt := builder.Build(t)
		rt.ExpectValidateCallerAddr(builtin.InitActorAddr)
		rt.ExpectAbort(exitcode.ErrIllegalArgument, func() {
			rt.Call(timelock.Actor{}.Constructor, &timelock.ConstructorParams{MinDelay: -1})
		})
	})

	t.Run("only init may construct", func(t *testing.T) {
		rt := builder.Build(t)
		rt.SetCaller(tutil.NewIDAddr(t, 1000), builtin.AccountActorCodeID)
		rt.ExpectValidateCallerAddr(builtin.InitActorAddr)
		rt.ExpectAbort(exitcode.SysErrForbidden, func() {
			rt.Call(timelock.Actor{}.Constructor, &timelock.ConstructorParams{MinDelay: 10})
		})
	})
}

func TestQueue(t *testing.T) {
	receiver := tutil.NewIDAddr(t, 100)
	target := tutil.NewIDAddr(t, 101)
	anne := tutil.NewIDAddr(t, 1000)
	const minDelay = abi.ChainEpoch(1000)

	builder := mock.NewBuilder(context.Background(), receiver).
		WithCaller(builtin.InitActorAddr, builtin.InitActorCodeID).
		WithEpoch(5)

	setup := func(t *testing.T) (*mock.Runtime, *timelockHarness) {
		rt := builder.Build(t)
		actor := timelockHarness{t: t, minDelay: minDelay}
		actor.constructAndVerify(rt)
		rt.SetCaller(anne, builtin.AccountActorCodeID)
		return rt, &actor
	}

	t.Run("queue at earliest allowed epoch", func(t *testing.T) {
		rt, actor := setup(t)
		action := actor.increment(target, rt.GetEpoch()+minDelay)

		rt.ExpectLogsContain("queued action")
		id := actor.queue(rt, action)
		assert.Equal(t, actor.actionID(action), id)
		assert.True(t, actor.isQueued(rt, id))

		summary := actor.checkState(rt)
		assert.Equal(t, 1, summary.QueuedCount)
	})

	t.Run("timestamp before earliest allowed", func(t *testing.T) {
		rt, actor := setup(t)
		action := actor.increment(target, rt.GetEpoch()+minDelay-1)

		rt.ExpectValidateCallerAny()
		rt.ExpectAbortContainsMessage(timelock.ErrInvalidSchedule, "before earliest allowed", func() {
			rt.Call(actor.Queue, action)
		})
		rt.Verify()
		assert.False(t, actor.isQueued(rt, actor.actionID(action)))
		actor.checkState(rt)
	})

	t.Run("timestamp in the past", func(t *testing.T) {
		rt, actor := setup(t)
		rt.ExpectValidateCallerAny()
		rt.ExpectAbort(timelock.ErrInvalidSchedule, func() {
			rt.Call(actor.Queue, actor.increment(target, 0))
		})
	})

	t.Run("minimum delay beyond the epoch range admits no timestamp", func(t *testing.T) {
		rt := builder.Build(t)
		actor := timelockHarness{t: t, minDelay: math.MaxInt64}
		actor.constructAndVerify(rt)
		rt.SetCaller(anne, builtin.AccountActorCodeID)

		for _, ts := range []abi.ChainEpoch{0, rt.GetEpoch(), math.MaxInt64} {
			action := actor.increment(target, ts)
			rt.ExpectValidateCallerAny()
			rt.ExpectAbort(timelock.ErrInvalidSchedule, func() {
				rt.Call(actor.Queue, action)
			})
			rt.Verify()
			assert.False(t, actor.isQueued(rt, actor.actionID(action)))
		}
		actor.checkState(rt)
	})

	t.Run("queueing twice is idempotent", func(t *testing.T) {
		rt, actor := setup(t)
		action := actor.increment(target, rt.GetEpoch()+minDelay+10)

		id1 := actor.queue(rt, action)
		root := rt.StateRoot()
		id2 := actor.queue(rt, action)
		assert.Equal(t, id1, id2)
		assert.Equal(t, root, rt.StateRoot())

		summary := actor.checkState(rt)
		assert.Equal(t, 1, summary.QueuedCount)
	})

	t.Run("actions differing only in data are distinct", func(t *testing.T) {
		rt, actor := setup(t)
		a := actor.increment(target, rt.GetEpoch()+minDelay)
		b := actor.increment(target, rt.GetEpoch()+minDelay)
		b.Data = []byte{0x80}

		idA := actor.queue(rt, a)
		idB := actor.queue(rt, b)
		assert.NotEqual(t, idA, idB)

		summary := actor.checkState(rt)
		assert.Equal(t, 2, summary.QueuedCount)
	})

	t.Run("negative value is rejected", func(t *testing.T) {
		rt, actor := setup(t)
		action := actor.increment(target, rt.GetEpoch()+minDelay)
		action.Value = abi.NewTokenAmount(-1)

		rt.ExpectValidateCallerAny()
		rt.ExpectAbort(exitcode.ErrIllegalArgument, func() {
			rt.Call(actor.Queue, action)
		})
	})

	t.Run("malformed signature is rejected", func(t *testing.T) {
		rt, actor := setup(t)
		for _, sig := range []string{"", "increment", "increment( )", "incr ement()"} {
			action := actor.increment(target, rt.GetEpoch()+minDelay)
			action.Signature = sig

			rt.ExpectValidateCallerAny()
			rt.ExpectAbortContainsMessage(exitcode.ErrIllegalArgument, "invalid action signature", func() {
				rt.Call(actor.Queue, action)
			})
			rt.Verify()
		}
		summary := actor.checkState(rt)
		assert.Equal(t, 0, summary.QueuedCount)
	})
}

func TestExecute(t *testing.T) {
	receiver := tutil.NewIDAddr(t, 100)
	target := tutil.NewIDAddr(t, 101)
	anne := tutil.NewIDAddr(t, 1000)
	bob := tutil.NewIDAddr(t, 1001)
	const minDelay = abi.ChainEpoch(1000)

	builder := mock.NewBuilder(context.Background(), receiver).
		WithCaller(builtin.InitActorAddr, builtin.InitActorCodeID)

	setup := func(t *testing.T) (*mock.Runtime, *timelockHarness) {
		rt := builder.Build(t)
		actor := timelockHarness{t: t, minDelay: minDelay}
		actor.constructAndVerify(rt)
		rt.SetCaller(anne, builtin.AccountActorCodeID)
		return rt, &actor
	}

	t.Run("execute unqueued action", func(t *testing.T) {
		rt, actor := setup(t)
		action := actor.increment(target, minDelay)
		rt.SetEpoch(minDelay)

		rt.ExpectValidateCallerAny()
		rt.ExpectAbortContainsMessage(timelock.ErrNotQueued, "is not queued", func() {
			rt.Call(actor.Execute, action)
		})
		rt.Verify()
	})

	t.Run("malformed unqueued actions are not queued", func(t *testing.T) {
		rt, actor := setup(t)
		rt.SetEpoch(minDelay)

		badSignature := actor.increment(target, 5)
		badSignature.Signature = "test"
		negativeValue := actor.increment(target, 5)
		negativeValue.Value = abi.NewTokenAmount(-1)

		for _, action := range []*timelock.Action{badSignature, negativeValue} {
			rt.ExpectValidateCallerAny()
			rt.ExpectAbort(timelock.ErrNotQueued, func() {
				rt.Call(actor.Execute, action)
			})
			rt.Verify()
		}
	})

	t.Run("execute before timestamp", func(t *testing.T) {
		rt, actor := setup(t)
		action := actor.increment(target, minDelay)
		id := actor.queue(rt, action)

		rt.SetEpoch(minDelay - 1)
		rt.ExpectValidateCallerAny()
		rt.ExpectAbort(timelock.ErrTooEarly, func() {
			rt.Call(actor.Execute, action)
		})
		rt.Verify()
		assert.True(t, actor.isQueued(rt, id))
	})

	t.Run("execute at timestamp by another party", func(t *testing.T) {
		rt, actor := setup(t)
		action := actor.increment(target, minDelay)
		id := actor.queue(rt, action)

		rt.SetEpoch(minDelay)
		rt.SetCaller(bob, builtin.AccountActorCodeID)
		calleeRet := builtin.CBORBytes{0x82, 0x01, 0x02}
		rt.ExpectSend(target, builtin.MethodsCounter.Increment, builtin.CBORBytes(nil), big.Zero(), calleeRet, exitcode.Ok)
		rt.ExpectLogsContain("executed action")
		ret := actor.execute(rt, action)
		assert.Equal(t, []byte(calleeRet), ret.Ret)
		assert.False(t, actor.isQueued(rt, id))

		// a second execution finds nothing queued
		rt.ExpectValidateCallerAny()
		rt.ExpectAbort(timelock.ErrNotQueued, func() {
			rt.Call(actor.Execute, action)
		})
		rt.Verify()

		summary := actor.checkState(rt)
		assert.Equal(t, 0, summary.QueuedCount)
	})

	t.Run("execute long after timestamp forwards value and data", func(t *testing.T) {
		rt, actor := setup(t)
		action := actor.increment(target, minDelay+5)
		action.Signature = builtin.CounterRelaySignature
		action.Value = abi.NewTokenAmount(7)
		action.Data = []byte{0x84, 0x40, 0x40, 0x00, 0x40}
		actor.queue(rt, action)

		rt.SetEpoch(10 * minDelay)
		rt.SetBalance(abi.NewTokenAmount(10))
		rt.ExpectSend(target, builtin.MethodsCounter.Relay, builtin.CBORBytes(action.Data), action.Value, nil, exitcode.Ok)
		ret := actor.execute(rt, action)
		assert.Empty(t, ret.Ret)
		assert.Equal(t, abi.NewTokenAmount(3), rt.GetBalance())
	})

	t.Run("callee failure leaves action queued", func(t *testing.T) {
		rt, actor := setup(t)
		action := actor.increment(target, minDelay)
		action.Signature = builtin.CounterFailSignature
		id := actor.queue(rt, action)

		rt.SetEpoch(minDelay)
		rt.ExpectValidateCallerAny()
		rt.ExpectSend(target, builtin.MethodsCounter.Fail, builtin.CBORBytes(nil), big.Zero(), nil, exitcode.ErrIllegalState)
		rt.ExpectAbortContainsMessage(timelock.ErrCallFailed, "fail()", func() {
			rt.Call(actor.Execute, action)
		})
		rt.Verify()
		assert.True(t, actor.isQueued(rt, id))

		// the same action can still be retried
		rt.ExpectSend(target, builtin.MethodsCounter.Fail, builtin.CBORBytes(nil), big.Zero(), nil, exitcode.Ok)
		actor.execute(rt, action)
		assert.False(t, actor.isQueued(rt, id))
	})

	t.Run("insufficient balance for value leaves action queued", func(t *testing.T) {
		rt, actor := setup(t)
		action := actor.increment(target, minDelay)
		action.Value = abi.NewTokenAmount(100)
		id := actor.queue(rt, action)

		rt.SetEpoch(minDelay)
		rt.ExpectValidateCallerAny()
		rt.ExpectSend(target, builtin.MethodsCounter.Increment, builtin.CBORBytes(nil), action.Value, nil, exitcode.Ok)
		rt.ExpectAbort(exitcode.SysErrInsufficientFunds, func() {
			rt.Call(actor.Execute, action)
		})
		rt.Reset()
		assert.True(t, actor.isQueued(rt, id))
	})

	t.Run("executing one action leaves others queued", func(t *testing.T) {
		rt, actor := setup(t)
		a := actor.increment(target, minDelay)
		b := actor.increment(target, minDelay+1)
		idA := actor.queue(rt, a)
		idB := actor.queue(rt, b)

		rt.SetEpoch(minDelay + 1)
		rt.ExpectSend(target, builtin.MethodsCounter.Increment, builtin.CBORBytes(nil), big.Zero(), nil, exitcode.Ok)
		actor.execute(rt, b)
		assert.True(t, actor.isQueued(rt, idA))
		assert.False(t, actor.isQueued(rt, idB))
	})
}

func TestGetTimestamp(t *testing.T) {
	receiver := tutil.NewIDAddr(t, 100)
	builder := mock.NewBuilder(context.Background(), receiver).
		WithCaller(builtin.InitActorAddr, builtin.InitActorCodeID)

	rt := builder.Build(t)
	actor := timelockHarness{t: t, minDelay: 10}
	actor.constructAndVerify(rt)
	rt.SetCaller(tutil.NewIDAddr(t, 1000), builtin.AccountActorCodeID)

	rt.SetEpoch(123)
	assert.Equal(t, abi.ChainEpoch(1123), actor.getTimestamp(rt, 1000))
	assert.Equal(t, abi.ChainEpoch(123), actor.getTimestamp(rt, 0))

	rt.ExpectValidateCallerAny()
	rt.ExpectAbort(exitcode.ErrIllegalArgument, func() {
		rt.Call(actor.GetTimestamp, &timelock.GetTimestampParams{Delay: -1})
	})
	rt.Verify()

	// the largest representable epoch is reachable, one past it is not
	assert.Equal(t, abi.ChainEpoch(math.MaxInt64), actor.getTimestamp(rt, math.MaxInt64-123))
	rt.ExpectValidateCallerAny()
	rt.ExpectAbortContainsMessage(exitcode.ErrIllegalArgument, "overflows", func() {
		rt.Call(actor.GetTimestamp, &timelock.GetTimestampParams{Delay: math.MaxInt64 - 122})
	})
	rt.Verify()

	// a timestamp from GetTimestamp with the minimum delay can be queued in the same epoch
	ts := actor.getTimestamp(rt, actor.minDelay)
	actor.queue(rt, actor.increment(tutil.NewIDAddr(t, 101), ts))
}

type timelockHarness struct {
	timelock.Actor
	t        testing.TB
	minDelay abi.ChainEpoch
}

func (h *timelockHarness) constructAndVerify(rt *mock.Runtime) {
	rt.ExpectValidateCallerAddr(builtin.InitActorAddr)
	ret := rt.Call(h.Constructor, &timelock.ConstructorParams{MinDelay: h.minDelay})
	assert.Nil(h.t, ret)
	rt.Verify()

	var st timelock.State
	rt.GetState(&st)
	emptyMap, err := adt.StoreEmptyMap(rt.AdtStore(), builtin.DefaultHamtBitwidth)
	require.NoError(h.t, err)
	assert.Equal(h.t, h.minDelay, st.MinDelay)
	assert.Equal(h.t, emptyMap, st.Queued)
}

// Builds an action invoking increment() on the target with no value.
func (h *timelockHarness) increment(target addr.Address, timestamp abi.ChainEpoch) *timelock.Action {
	return &timelock.Action{
		Target:    target,
		Value:     big.Zero(),
		Signature: builtin.CounterIncrementSignature,
		Data:      nil,
		Timestamp: timestamp,
	}
}

func (h *timelockHarness) actionID(action *timelock.Action) timelock.ActionID {
	return actionID(h.t, action)
}

func (h *timelockHarness) queue(rt *mock.Runtime, action *timelock.Action) timelock.ActionID {
	rt.ExpectValidateCallerAny()
	ret := rt.Call(h.Queue, action).(*timelock.QueueReturn)
	rt.Verify()
	return ret.ID
}

func (h *timelockHarness) execute(rt *mock.Runtime, action *timelock.Action) *timelock.ExecuteReturn {
	rt.ExpectValidateCallerAny()
	ret := rt.Call(h.Execute, action).(*timelock.ExecuteReturn)
	rt.Verify()
	return ret
}

func (h *timelockHarness) getTimestamp(rt *mock.Runtime, delay abi.ChainEpoch) abi.ChainEpoch {
	rt.ExpectValidateCallerAny()
	ret := rt.Call(h.GetTimestamp, &timelock.GetTimestampParams{Delay: delay}).(*timelock.GetTimestampReturn)
	rt.Verify()
	return ret.Timestamp
}

func (h *timelockHarness) isQueued(rt *mock.Runtime, id timelock.ActionID) bool {
	var st timelock.State
	rt.GetState(&st)
	queued, err := st.IsQueued(rt.AdtStore(), id)
	require.NoError(h.t, err)
	return queued
}

func (h *timelockHarness) checkState(rt *mock.Runtime) *timelock.StateSummary {
	var st timelock.State
	rt.GetState(&st)
	summary, msgs := timelock.CheckStateInvariants(&st, rt.AdtStore())
	assert.True(h.t, msgs.IsEmpty(), msgs.Messages())
	return summary
}
