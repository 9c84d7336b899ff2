package counter_test

import (
	"context"
	"testing"

	addr "github.com/filecoin-project/go-address"
	"github.com/filecoin-project/go-state-types/abi"
	"github.com/filecoin-project/go-state-types/big"
	"github.com/filecoin-project/go-state-types/exitcode"
	"github.com/stretchr/testify/assert"

	"github.com/filecoin-project/go-timelock/actors/builtin"
	"github.com/filecoin-project/go-timelock/actors/builtin/counter"
	"github.com/filecoin-project/go-timelock/support/mock"
	tutil "github.com/filecoin-project/go-timelock/support/testing"
)

func TestExports(t *testing.T) {
	mock.CheckActorExports(t, counter.Actor{})
}

func TestConstructor(t *testing.T) {
	receiver := tutil.NewIDAddr(t, 101)
	authority := tutil.NewIDAddr(t, 100)
	builder := mock.NewBuilder(context.Background(), receiver).
		WithCaller(builtin.InitActorAddr, builtin.InitActorCodeID)

	t.Run("resolves authority", func(t *testing.T) {
		rt := builder.Build(t)
		robust := tutil.NewActorAddr(t, "timelock")
		rt.AddIDAddress(robust, authority)

		h := counterHarness{t: t}
		h.constructAndVerify(rt, robust)
		st := h.state(rt)
		assert.Equal(t, authority, st.Authority)
		assert.Equal(t, uint64(0), st.Count)
		h.checkState(rt)
	})

	t.Run("unresolvable authority", func(t *testing.T) {
		rt := builder.Build(t)
		rt.ExpectValidateCallerAddr(builtin.InitActorAddr)
		rt.ExpectAbort(exitcode.ErrIllegalArgument, func() {
			rt.Call(counter.Actor{}.Constructor, &counter.ConstructorParams{Authority: tutil.NewActorAddr(t, "nobody")})
		})
	})
}

func TestIncrement(t *testing.T) {
	receiver := tutil.NewIDAddr(t, 101)
	authority := tutil.NewIDAddr(t, 100)
	builder := mock.NewBuilder(context.Background(), receiver).
		WithCaller(builtin.InitActorAddr, builtin.InitActorCodeID)

	t.Run("authority increments", func(t *testing.T) {
		rt := builder.Build(t)
		h := counterHarness{t: t}
		h.constructAndVerify(rt, authority)

		rt.SetCaller(authority, builtin.TimelockActorCodeID)
		for i := 0; i < 3; i++ {
			h.increment(rt)
		}
		assert.Equal(t, uint64(3), h.count(rt))
		summary := h.checkState(rt)
		assert.Equal(t, uint64(3), summary.Count)
	})

	t.Run("others may not increment", func(t *testing.T) {
		rt := builder.Build(t)
		h := counterHarness{t: t}
		h.constructAndVerify(rt, authority)

		rt.SetCaller(tutil.NewIDAddr(t, 1000), builtin.AccountActorCodeID)
		rt.ExpectValidateCallerAddr(authority)
		rt.ExpectAbort(exitcode.SysErrForbidden, func() {
			rt.Call(h.Increment, nil)
		})
		rt.Verify()
		assert.Equal(t, uint64(0), h.count(rt))
	})
}

func TestFail(t *testing.T) {
	rt := mock.NewBuilder(context.Background(), tutil.NewIDAddr(t, 101)).
		WithCaller(builtin.InitActorAddr, builtin.InitActorCodeID).
		Build(t)
	h := counterHarness{t: t}
	h.constructAndVerify(rt, tutil.NewIDAddr(t, 100))

	rt.SetCaller(tutil.NewIDAddr(t, 1000), builtin.AccountActorCodeID)
	rt.ExpectValidateCallerAny()
	rt.ExpectAbortContainsMessage(counter.ErrFailed, "failed as requested", func() {
		rt.Call(h.Fail, nil)
	})
	rt.Verify()
}

func TestRelay(t *testing.T) {
	receiver := tutil.NewIDAddr(t, 101)
	authority := tutil.NewIDAddr(t, 100)
	to := tutil.NewIDAddr(t, 102)
	builder := mock.NewBuilder(context.Background(), receiver).
		WithCaller(builtin.InitActorAddr, builtin.InitActorCodeID)

	t.Run("successful relay", func(t *testing.T) {
		rt := builder.Build(t)
		h := counterHarness{t: t}
		h.constructAndVerify(rt, authority)

		rt.SetCaller(authority, builtin.TimelockActorCodeID)
		rt.SetBalance(abi.NewTokenAmount(5))
		params := []byte{0x81, 0x01}
		rt.ExpectSend(to, abi.MethodNum(7), builtin.CBORBytes(params), abi.NewTokenAmount(5), builtin.CBORBytes{0x40}, exitcode.Ok)
		ret := h.relay(rt, to, abi.NewTokenAmount(5), 7, params)
		assert.Equal(t, exitcode.Ok, ret.Code)
		assert.Equal(t, []byte{0x40}, ret.Ret)
		assert.Equal(t, exitcode.Ok, h.state(rt).LastRelayCode)
		bal := rt.GetBalance()
		assert.True(t, bal.IsZero())
	})

	t.Run("failed relay is recorded without aborting", func(t *testing.T) {
		rt := builder.Build(t)
		h := counterHarness{t: t}
		h.constructAndVerify(rt, authority)

		rt.SetCaller(authority, builtin.TimelockActorCodeID)
		rt.ExpectSend(to, builtin.MethodsTimelock.Execute, builtin.CBORBytes(nil), big.Zero(), nil, exitcode.FirstActorSpecificExitCode+1)
		ret := h.relay(rt, to, big.Zero(), builtin.MethodsTimelock.Execute, nil)
		assert.Equal(t, exitcode.FirstActorSpecificExitCode+1, ret.Code)
		assert.Empty(t, ret.Ret)
		assert.Equal(t, exitcode.FirstActorSpecificExitCode+1, h.state(rt).LastRelayCode)
		h.checkState(rt)
	})

	t.Run("others may not relay", func(t *testing.T) {
		rt := builder.Build(t)
		h := counterHarness{t: t}
		h.constructAndVerify(rt, authority)

		rt.SetCaller(tutil.NewIDAddr(t, 1000), builtin.AccountActorCodeID)
		rt.ExpectValidateCallerAddr(authority)
		rt.ExpectAbort(exitcode.SysErrForbidden, func() {
			rt.Call(h.Relay, &counter.RelayParams{To: to, Value: big.Zero(), Method: 2})
		})
	})
}

func TestHook(t *testing.T) {
	receiver := tutil.NewIDAddr(t, 101)
	authority := tutil.NewIDAddr(t, 100)
	to := tutil.NewIDAddr(t, 102)
	builder := mock.NewBuilder(context.Background(), receiver).
		WithCaller(builtin.InitActorAddr, builtin.InitActorCodeID)

	t.Run("hook without a message only counts", func(t *testing.T) {
		rt := builder.Build(t)
		h := counterHarness{t: t}
		h.constructAndVerify(rt, authority)

		rt.SetCaller(authority, builtin.TimelockActorCodeID)
		ret := h.hook(rt)
		assert.Equal(t, exitcode.Ok, ret.Code)
		assert.Equal(t, uint64(1), h.state(rt).Count)
	})

	t.Run("hook relays the stored message and records failure", func(t *testing.T) {
		rt := builder.Build(t)
		h := counterHarness{t: t}
		h.constructAndVerify(rt, authority)

		rt.SetCaller(tutil.NewIDAddr(t, 1000), builtin.AccountActorCodeID)
		h.setHook(rt, &counter.RelayParams{To: to, Value: big.Zero(), Method: builtin.MethodsTimelock.Execute, Params: []byte{0x80}})
		assert.NotEmpty(t, h.state(rt).Hook)

		rt.SetCaller(authority, builtin.TimelockActorCodeID)
		rt.ExpectSend(to, builtin.MethodsTimelock.Execute, builtin.CBORBytes([]byte{0x80}), big.Zero(), nil, exitcode.FirstActorSpecificExitCode+1)
		ret := h.hook(rt)
		assert.Equal(t, exitcode.FirstActorSpecificExitCode+1, ret.Code)

		st := h.state(rt)
		assert.Equal(t, uint64(1), st.Count)
		assert.Equal(t, exitcode.FirstActorSpecificExitCode+1, st.LastRelayCode)
		h.checkState(rt)
	})

	t.Run("only signable actors may set the hook", func(t *testing.T) {
		rt := builder.Build(t)
		h := counterHarness{t: t}
		h.constructAndVerify(rt, authority)

		rt.SetCaller(authority, builtin.TimelockActorCodeID)
		rt.ExpectValidateCallerType(builtin.CallerTypesSignable...)
		rt.ExpectAbort(exitcode.SysErrForbidden, func() {
			rt.Call(h.SetHook, &counter.RelayParams{To: to, Value: big.Zero(), Method: 2})
		})
		rt.Verify()
		assert.Empty(t, h.state(rt).Hook)
	})

	t.Run("others may not call the hook", func(t *testing.T) {
		rt := builder.Build(t)
		h := counterHarness{t: t}
		h.constructAndVerify(rt, authority)

		rt.SetCaller(tutil.NewIDAddr(t, 1000), builtin.AccountActorCodeID)
		rt.ExpectValidateCallerAddr(authority)
		rt.ExpectAbort(exitcode.SysErrForbidden, func() {
			rt.Call(h.Hook, nil)
		})
		rt.Verify()
		assert.Equal(t, uint64(0), h.state(rt).Count)
	})
}

type counterHarness struct {
	counter.Actor
	t testing.TB
}

func (h *counterHarness) constructAndVerify(rt *mock.Runtime, authority addr.Address) {
	rt.ExpectValidateCallerAddr(builtin.InitActorAddr)
	ret := rt.Call(h.Constructor, &counter.ConstructorParams{Authority: authority})
	assert.Nil(h.t, ret)
	rt.Verify()
}

func (h *counterHarness) increment(rt *mock.Runtime) {
	var st counter.State
	rt.GetState(&st)
	rt.ExpectValidateCallerAddr(st.Authority)
	ret := rt.Call(h.Increment, nil)
	assert.Nil(h.t, ret)
	rt.Verify()
}

func (h *counterHarness) relay(rt *mock.Runtime, to addr.Address, value abi.TokenAmount, method abi.MethodNum, params []byte) *counter.RelayReturn {
	var st counter.State
	rt.GetState(&st)
	rt.ExpectValidateCallerAddr(st.Authority)
	ret := rt.Call(h.Relay, &counter.RelayParams{To: to, Value: value, Method: method, Params: params}).(*counter.RelayReturn)
	rt.Verify()
	return ret
}

func (h *counterHarness) setHook(rt *mock.Runtime, params *counter.RelayParams) {
	rt.ExpectValidateCallerType(builtin.CallerTypesSignable...)
	ret := rt.Call(h.SetHook, params)
	assert.Nil(h.t, ret)
	rt.Verify()
}

func (h *counterHarness) hook(rt *mock.Runtime) *counter.RelayReturn {
	var st counter.State
	rt.GetState(&st)
	rt.ExpectValidateCallerAddr(st.Authority)
	ret := rt.Call(h.Hook, nil).(*counter.RelayReturn)
	rt.Verify()
	return ret
}

func (h *counterHarness) count(rt *mock.Runtime) uint64 {
	rt.ExpectValidateCallerAny()
	ret := rt.Call(h.Count, nil).(*counter.CountReturn)
	rt.Verify()
	return ret.Count
}

func (h *counterHarness) state(rt *mock.Runtime) *counter.State {
	var st counter.State
	rt.GetState(&st)
	return &st
}

func (h *counterHarness) checkState(rt *mock.Runtime) *counter.StateSummary {
	summary, msgs := counter.CheckStateInvariants(h.state(rt))
	assert.True(h.t, msgs.IsEmpty(), msgs.Messages())
	return summary
}
