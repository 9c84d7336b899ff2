package test

import (
	"testing"

	addr "github.com/filecoin-project/go-address"
	"github.com/filecoin-project/go-state-types/abi"
	"github.com/filecoin-project/go-state-types/big"
	"github.com/minio/blake2b-simd"
	"github.com/stretchr/testify/require"

	"github.com/filecoin-project/go-timelock/actors/builtin"
	"github.com/filecoin-project/go-timelock/actors/builtin/counter"
	init_ "github.com/filecoin-project/go-timelock/actors/builtin/init"
	"github.com/filecoin-project/go-timelock/actors/builtin/timelock"
	"github.com/filecoin-project/go-timelock/support/vm"
)

func createTimelock(t *testing.T, v *vm.VM, from addr.Address, minDelay abi.ChainEpoch) addr.Address {
	ret := vm.ApplyOk(t, v, from, builtin.InitActorAddr, big.Zero(), builtin.MethodsInit.Exec, &init_.ExecParams{
		CodeCID:           builtin.TimelockActorCodeID,
		ConstructorParams: vm.MustSerialize(t, &timelock.ConstructorParams{MinDelay: minDelay}),
	})
	execRet, ok := ret.(*init_.ExecReturn)
	require.True(t, ok)
	return execRet.IDAddress
}

func createCounter(t *testing.T, v *vm.VM, from, authority addr.Address) addr.Address {
	ret := vm.ApplyOk(t, v, from, builtin.InitActorAddr, big.Zero(), builtin.MethodsInit.Exec, &init_.ExecParams{
		CodeCID:           builtin.CounterActorCodeID,
		ConstructorParams: vm.MustSerialize(t, &counter.ConstructorParams{Authority: authority}),
	})
	execRet, ok := ret.(*init_.ExecReturn)
	require.True(t, ok)
	return execRet.IDAddress
}

func counterState(t *testing.T, v *vm.VM, a addr.Address) *counter.State {
	var st counter.State
	require.NoError(t, v.GetState(a, &st))
	return &st
}

func isQueued(t *testing.T, v *vm.VM, tl addr.Address, action *timelock.Action) bool {
	var st timelock.State
	require.NoError(t, v.GetState(tl, &st))
	id, err := timelock.ComputeActionID(action, blake2b.Sum256)
	require.NoError(t, err)
	queued, err := st.IsQueued(v.Store(), id)
	require.NoError(t, err)
	return queued
}

func checkTimelockState(t *testing.T, v *vm.VM, tl addr.Address) *timelock.StateSummary {
	var st timelock.State
	require.NoError(t, v.GetState(tl, &st))
	summary, msgs := timelock.CheckStateInvariants(&st, v.Store())
	require.True(t, msgs.IsEmpty(), msgs.Messages())
	return summary
}

// An action incrementing the counter, due at the timestamp.
func incrementAction(target addr.Address, timestamp abi.ChainEpoch) *timelock.Action {
	return &timelock.Action{
		Target:    target,
		Value:     big.Zero(),
		Signature: builtin.CounterIncrementSignature,
		Timestamp: timestamp,
	}
}
