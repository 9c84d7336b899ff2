package vm_test

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	addr "github.com/filecoin-project/go-address"
	"github.com/filecoin-project/go-state-types/abi"
	"github.com/filecoin-project/go-state-types/big"
	"github.com/filecoin-project/go-state-types/exitcode"
	rtt "github.com/filecoin-project/go-state-types/rt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/filecoin-project/go-timelock/actors/builtin"
	"github.com/filecoin-project/go-timelock/actors/builtin/account"
	init_ "github.com/filecoin-project/go-timelock/actors/builtin/init"
	"github.com/filecoin-project/go-timelock/actors/builtin/timelock"
	"github.com/filecoin-project/go-timelock/actors/util/adt"
	tutil "github.com/filecoin-project/go-timelock/support/testing"
	"github.com/filecoin-project/go-timelock/support/vm"
)

func TestSetEpoch(t *testing.T) {
	v := vm.NewVMWithSingletons(context.Background(), t)
	require.NoError(t, v.SetEpoch(10))
	require.NoError(t, v.SetEpoch(10))
	assert.Error(t, v.SetEpoch(9))
	assert.Equal(t, abi.ChainEpoch(10), v.GetEpoch())
}

func TestSenderValidation(t *testing.T) {
	ctx := context.Background()
	v := vm.NewVMWithSingletons(ctx, t)
	addrs := vm.CreateAccounts(ctx, t, v, 1, big.Zero())

	t.Run("unknown sender", func(t *testing.T) {
		vm.ApplyCode(t, v, tutil.NewBLSAddr(t, 1), addrs[0], big.Zero(), builtin.MethodSend, nil, exitcode.SysErrSenderInvalid)
	})

	t.Run("sender must be an account", func(t *testing.T) {
		vm.ApplyCode(t, v, builtin.InitActorAddr, addrs[0], big.Zero(), builtin.MethodSend, nil, exitcode.SysErrSenderInvalid)
	})
}

func TestImplicitAccountCreation(t *testing.T) {
	ctx := context.Background()
	v := vm.NewVMWithSingletons(ctx, t)
	addrs := vm.CreateAccounts(ctx, t, v, 1, abi.NewTokenAmount(100))
	newAddr := tutil.NewBLSAddr(t, 4242)

	_, found := v.NormalizeAddress(newAddr)
	require.False(t, found)

	vm.ApplyOk(t, v, addrs[0], newAddr, abi.NewTokenAmount(40), builtin.MethodSend, nil)

	act, found, err := v.GetActor(newAddr)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, builtin.AccountActorCodeID, act.Code)
	assert.True(t, act.Balance.Equals(abi.NewTokenAmount(40)))

	var st account.State
	require.NoError(t, v.GetState(newAddr, &st))
	assert.Equal(t, newAddr, st.Address)

	idAddr, found := v.NormalizeAddress(newAddr)
	require.True(t, found)
	vm.ExpectInvocation{
		To:     idAddr,
		Method: builtin.MethodSend,
		Value:  vm.ExpectAttoFil(abi.NewTokenAmount(40)),
		SubInvocations: []vm.ExpectInvocation{{
			To:     idAddr,
			Method: builtin.MethodsAccount.Constructor,
			From:   vm.ExpectAddress(builtin.SystemActorAddr),
			Params: vm.ExpectObject(&newAddr),
		}},
	}.Matches(t, v.LastInvocation())
}

func TestFailedMessageRollsBack(t *testing.T) {
	ctx := context.Background()
	v := vm.NewVMWithSingletons(ctx, t)
	addrs := vm.CreateAccounts(ctx, t, v, 2, abi.NewTokenAmount(100))
	senderID, _ := v.NormalizeAddress(addrs[0])
	before := v.StateRoot()

	vm.ApplyCode(t, v, addrs[0], addrs[1], abi.NewTokenAmount(10), abi.MethodNum(99), nil, exitcode.SysErrInvalidMethod)

	// the value transfer is discarded but the call sequence number is not
	sender, _, err := v.GetActor(senderID)
	require.NoError(t, err)
	assert.True(t, sender.Balance.Equals(abi.NewTokenAmount(100)))
	assert.Equal(t, uint64(1), sender.CallSeqNum)
	receiver, _, err := v.GetActor(addrs[1])
	require.NoError(t, err)
	assert.True(t, receiver.Balance.Equals(abi.NewTokenAmount(100)))
	assert.NotEqual(t, before, v.StateRoot())

	t.Run("insufficient funds", func(t *testing.T) {
		vm.ApplyCode(t, v, addrs[0], addrs[1], abi.NewTokenAmount(101), builtin.MethodSend, nil, exitcode.SysErrInsufficientFunds)
	})

	t.Run("negative value", func(t *testing.T) {
		vm.ApplyCode(t, v, addrs[0], addrs[1], abi.NewTokenAmount(-1), builtin.MethodSend, nil, exitcode.SysErrForbidden)
	})

	t.Run("unknown id receiver", func(t *testing.T) {
		vm.ApplyCode(t, v, addrs[0], tutil.NewIDAddr(t, 9999), big.Zero(), builtin.MethodSend, nil, exitcode.SysErrInvalidReceiver)
	})
}

func TestReceipts(t *testing.T) {
	ctx := context.Background()
	v := vm.NewVMWithSingletons(ctx, t)
	addrs := vm.CreateAccounts(ctx, t, v, 1, big.Zero())
	tl := createTimelock(t, v, addrs[0], 5)

	ret := vm.ApplyOk(t, v, addrs[0], tl, big.Zero(), builtin.MethodsTimelock.GetTimestamp, &timelock.GetTimestampParams{Delay: 7})
	assert.Equal(t, abi.ChainEpoch(7), ret.(*timelock.GetTimestampReturn).Timestamp)
	vm.ApplyCode(t, v, addrs[0], tl, big.Zero(), builtin.MethodsTimelock.GetTimestamp, &timelock.GetTimestampParams{Delay: -1}, exitcode.ErrIllegalArgument)

	receipts, err := v.Receipts()
	require.NoError(t, err)
	require.Len(t, receipts, 3)
	assert.Equal(t, exitcode.Ok, receipts[0].ExitCode)
	assert.Equal(t, exitcode.Ok, receipts[1].ExitCode)
	assert.Equal(t, vm.MustSerialize(t, ret), receipts[1].Return)
	assert.Equal(t, exitcode.ErrIllegalArgument, receipts[2].ExitCode)
	assert.Empty(t, receipts[2].Return)

	root, err := v.ReceiptsRoot()
	require.NoError(t, err)
	arr, err := adt.AsArray(v.Store(), root, builtin.DefaultAmtBitwidth)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), arr.Length())
	var last vm.Receipt
	found, err := arr.Get(2, &last)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, exitcode.ErrIllegalArgument, last.ExitCode)

	vm.ApplyOk(t, v, addrs[0], tl, big.Zero(), builtin.MethodsTimelock.GetTimestamp, &timelock.GetTimestampParams{Delay: 1})
	next, err := v.ReceiptsRoot()
	require.NoError(t, err)
	assert.NotEqual(t, root, next)
}

func TestLogLevel(t *testing.T) {
	ctx := context.Background()
	v := vm.NewVMWithSingletons(ctx, t)
	addrs := vm.CreateAccounts(ctx, t, v, 1, big.Zero())
	tl := createTimelock(t, v, addrs[0], 0)
	action := &timelock.Action{Target: tutil.NewIDAddr(t, 1000), Value: big.Zero(), Signature: builtin.CounterIncrementSignature, Timestamp: 3}

	vm.ApplyOk(t, v, addrs[0], tl, big.Zero(), builtin.MethodsTimelock.Queue, action)
	require.Len(t, v.GetLogs(), 1)
	assert.Contains(t, v.GetLogs()[0], "queued action")

	builtin.SetActorsLogLevel(rtt.ERROR, timelock.Actor{})
	defer builtin.ResetActorsLogLevel(timelock.Actor{})
	vm.ApplyOk(t, v, addrs[0], tl, big.Zero(), builtin.MethodsTimelock.Queue, action)
	assert.Empty(t, v.GetLogs())
}

func TestCARRoundTrip(t *testing.T) {
	ctx := context.Background()
	v := vm.NewVMWithSingletons(ctx, t)
	addrs := vm.CreateAccounts(ctx, t, v, 2, abi.NewTokenAmount(1000))
	tl := createTimelock(t, v, addrs[0], 10)
	action := &timelock.Action{Target: addrs[1], Value: big.Zero(), Signature: builtin.CounterIncrementSignature, Timestamp: 10}
	vm.ApplyOk(t, v, addrs[0], tl, big.Zero(), builtin.MethodsTimelock.Queue, action)

	var buf bytes.Buffer
	require.NoError(t, v.ExportCAR(ctx, &buf))

	loaded, err := vm.NewVMFromCAR(ctx, vm.BuiltinActorImpls(), &buf, v.GetEpoch())
	require.NoError(t, err)
	assert.Equal(t, v.StateRoot(), loaded.StateRoot())

	expectedReceipts, err := v.Receipts()
	require.NoError(t, err)
	receipts, err := loaded.Receipts()
	require.NoError(t, err)
	assert.Equal(t, expectedReceipts, receipts)

	var st timelock.State
	require.NoError(t, loaded.GetState(tl, &st))
	assert.Equal(t, abi.ChainEpoch(10), st.MinDelay)

	// the loaded state accepts further messages
	vm.ApplyCode(t, loaded, addrs[0], tl, big.Zero(), builtin.MethodsTimelock.Queue, action, exitcode.Ok)
}

func TestVectorGeneration(t *testing.T) {
	dir := t.TempDir()
	t.Setenv(vm.VectorsDirEnv, dir)

	ctx := context.Background()
	v := vm.NewVMWithSingletons(ctx, t)
	addrs := vm.CreateAccounts(ctx, t, v, 1, big.Zero())
	tl := createTimelock(t, v, addrs[0], 2)
	vm.ApplyOk(t, v, addrs[0], tl, big.Zero(), builtin.MethodsTimelock.Queue,
		&timelock.Action{Target: addrs[0], Value: big.Zero(), Signature: builtin.CounterIncrementSignature, Timestamp: 2})
	vm.ApplyCode(t, v, addrs[0], tl, big.Zero(), builtin.MethodsTimelock.Execute,
		&timelock.Action{Target: addrs[0], Value: big.Zero(), Signature: builtin.CounterIncrementSignature, Timestamp: 2}, timelock.ErrTooEarly)

	files, err := filepath.Glob(filepath.Join(dir, "*.json"))
	require.NoError(t, err)
	require.Len(t, files, 3)

	for _, f := range files {
		tv, err := vm.LoadVector(f)
		require.NoError(t, err)
		assert.NoError(t, tv.Replay(ctx, vm.BuiltinActorImpls()), f)
	}

	// replay writes nothing
	after, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, after, 3)
}

func createTimelock(t *testing.T, v *vm.VM, from addr.Address, minDelay abi.ChainEpoch) addr.Address {
	ret := vm.ApplyOk(t, v, from, builtin.InitActorAddr, big.Zero(), builtin.MethodsInit.Exec, &init_.ExecParams{
		CodeCID:           builtin.TimelockActorCodeID,
		ConstructorParams: vm.MustSerialize(t, &timelock.ConstructorParams{MinDelay: minDelay}),
	})
	return ret.(*init_.ExecReturn).IDAddress
}
