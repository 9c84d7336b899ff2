package vm

import (
	"bytes"
	"context"
	"fmt"
	"testing"

	addr "github.com/filecoin-project/go-address"
	"github.com/filecoin-project/go-state-types/abi"
	"github.com/filecoin-project/go-state-types/big"
	"github.com/filecoin-project/go-state-types/cbor"
	"github.com/filecoin-project/go-state-types/exitcode"
	cid "github.com/ipfs/go-cid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/filecoin-project/go-timelock/actors/builtin"
	"github.com/filecoin-project/go-timelock/actors/builtin/account"
	"github.com/filecoin-project/go-timelock/actors/builtin/exported"
	init_ "github.com/filecoin-project/go-timelock/actors/builtin/init"
	"github.com/filecoin-project/go-timelock/actors/builtin/system"
	"github.com/filecoin-project/go-timelock/support/ipld"
	tutil "github.com/filecoin-project/go-timelock/support/testing"
)

// Actor implementations for every builtin actor, by code.
func BuiltinActorImpls() ActorImplLookup {
	lookup := ActorImplLookup{}
	for _, ba := range exported.BuiltinActors() {
		lookup[ba.Code()] = ba
	}
	return lookup
}

// Creates a new VM and initializes the system and init singletons.
func NewVMWithSingletons(ctx context.Context, t testing.TB) *VM {
	bs := ipld.NewSyncBlockStoreInMemory()
	vm := NewVM(ctx, BuiltinActorImpls(), bs)

	codes := map[string]cid.Cid{}
	for _, ba := range exported.BuiltinActors() {
		codes[builtin.ActorNameByCode(ba.Code())] = ba.Code()
	}
	sysState, err := system.ConstructState(vm.store, codes)
	require.NoError(t, err)
	initializeActor(ctx, t, vm, sysState, builtin.SystemActorCodeID, builtin.SystemActorAddr, big.Zero())

	initState, err := init_.ConstructState(vm.store, "timelock-scenarios")
	require.NoError(t, err)
	initializeActor(ctx, t, vm, initState, builtin.InitActorCodeID, builtin.InitActorAddr, big.Zero())

	_, err = vm.checkpoint()
	require.NoError(t, err)
	return vm
}

// Creates n account actors in the VM with the given balance, returning their pubkey addresses.
func CreateAccounts(ctx context.Context, t testing.TB, vm *VM, n int, balance abi.TokenAmount) []addr.Address {
	vm.mu.Lock()
	defer vm.mu.Unlock()

	var initState init_.State
	initActor, found, err := vm.getActor(builtin.InitActorAddr)
	require.NoError(t, err)
	require.True(t, found)
	require.NoError(t, vm.store.Get(ctx, initActor.Head, &initState))

	pubAddrs := make([]addr.Address, n)
	for i := range pubAddrs {
		pubAddr := tutil.NewBLSAddr(t, int64(93837778+int(initState.NextID)))
		idAddr, err := initState.MapAddressToNewID(vm.store, pubAddr)
		require.NoError(t, err)

		initializeActor(ctx, t, vm, &account.State{Address: pubAddr}, builtin.AccountActorCodeID, idAddr, balance)
		pubAddrs[i] = pubAddr
	}
	require.NoError(t, vm.setActorState(builtin.InitActorAddr, &initState))

	_, err = vm.checkpoint()
	require.NoError(t, err)
	return pubAddrs
}

// Applies the message and requires it to succeed.
func ApplyOk(t testing.TB, v *VM, from, to addr.Address, value abi.TokenAmount, method abi.MethodNum, params interface{}) cbor.Marshaler {
	return ApplyCode(t, v, from, to, value, method, params, exitcode.Ok)
}

// Applies the message and requires it to exit with the given code.
func ApplyCode(t testing.TB, v *VM, from, to addr.Address, value abi.TokenAmount, method abi.MethodNum, params interface{}, code exitcode.ExitCode) cbor.Marshaler {
	result := v.ApplyMessage(from, to, value, method, params)
	require.Equal(t, code, result.Code, "unexpected exit code; logs: %v", v.GetLogs())
	return result.Ret
}

// Serializes the object, failing the test on error.
func MustSerialize(t testing.TB, m cbor.Marshaler) []byte {
	b, err := serialize(m)
	require.NoError(t, err)
	return b
}

//
// Invocation expectations
//

func ExpectObject(v cbor.Marshaler) *objectExpectation {
	return &objectExpectation{v}
}

// distinguishes a non-expectation from an expectation of nil
type objectExpectation struct {
	val cbor.Marshaler
}

func ExpectAttoFil(amount big.Int) *big.Int                    { return &amount }
func ExpectAddress(a addr.Address) *addr.Address               { return &a }
func ExpectBytes(b []byte) *objectExpectation                  { return ExpectObject(builtin.CBORBytes(b)) }
func ExpectExitCode(code exitcode.ExitCode) *exitcode.ExitCode { return &code }

// match by cbor encoding to avoid inconsistencies in internal representations of effectively equal objects
func (oe objectExpectation) matches(obj interface{}) bool {
	if isNil(oe.val) || isNil(obj) {
		return isNil(oe.val) && isNil(obj)
	}
	marshaller, ok := obj.(cbor.Marshaler)
	if !ok {
		return false
	}
	b1, err1 := serialize(oe.val)
	b2, err2 := serialize(marshaller)
	return err1 == nil && err2 == nil && bytes.Equal(b1, b2)
}

type ExpectInvocation struct {
	To       addr.Address
	Method   abi.MethodNum
	Exitcode exitcode.ExitCode

	From           *addr.Address
	Value          *abi.TokenAmount
	Params         *objectExpectation
	Ret            *objectExpectation
	SubInvocations []ExpectInvocation
}

func (ei ExpectInvocation) Matches(t testing.TB, invocation *Invocation) {
	ei.matches(t, "", invocation)
}

func (ei ExpectInvocation) matches(t testing.TB, breadcrumb string, invocation *Invocation) {
	identifier := fmt.Sprintf("%s[%s:%d]", breadcrumb, invocation.Msg.to, invocation.Msg.method)

	// mismatch of to or method probably indicates skipped message or messages out of order. halt.
	require.Equal(t, ei.To, invocation.Msg.to, "%s unexpected `to` address", identifier)
	require.Equal(t, ei.Method, invocation.Msg.method, "%s unexpected method", identifier)

	// other expectations are optional
	if ei.From != nil {
		assert.Equal(t, *ei.From, invocation.Msg.from, "%s unexpected from address", identifier)
	}
	if ei.Value != nil {
		assert.True(t, ei.Value.Equals(invocation.Msg.value), "%s unexpected value %v", identifier, invocation.Msg.value)
	}
	if ei.Params != nil {
		assert.True(t, ei.Params.matches(invocation.Msg.params), "%s params aren't equal (%v != %v)", identifier, ei.Params.val, invocation.Msg.params)
	}
	if ei.SubInvocations != nil {
		for i, invk := range invocation.SubInvocations {
			subidentifier := fmt.Sprintf("%s%d:", identifier, i)
			require.Greater(t, len(ei.SubInvocations), i, "%s unexpected subinvocation [%s:%d]", subidentifier, invk.Msg.to, invk.Msg.method)
			ei.SubInvocations[i].matches(t, subidentifier, invk)
		}
		missingInvocations := len(ei.SubInvocations) - len(invocation.SubInvocations)
		if missingInvocations > 0 {
			missingIndex := len(invocation.SubInvocations)
			missingExpect := ei.SubInvocations[missingIndex]
			require.Failf(t, "missing invocation", "%s%d: expected invocation [%s:%d]", identifier, missingIndex, missingExpect.To, missingExpect.Method)
		}
	}

	// expect results
	assert.Equal(t, ei.Exitcode, invocation.Exitcode, "%s unexpected exitcode", identifier)
	if ei.Ret != nil {
		assert.True(t, ei.Ret.matches(invocation.Ret), "%s unexpected return value (%v != %v)", identifier, ei.Ret.val, invocation.Ret)
	}
}

func ParamsForInvocation(t testing.TB, vm *VM, idxs ...int) interface{} {
	invocations := vm.Invocations()
	var invocation *Invocation
	for _, idx := range idxs {
		require.Greater(t, len(invocations), idx)
		invocation = invocations[idx]
		invocations = invocation.SubInvocations
	}
	require.NotNil(t, invocation)
	return invocation.Msg.params
}

//
//  internal stuff
//

func initializeActor(ctx context.Context, t testing.TB, vm *VM, state cbor.Marshaler, code cid.Cid, a addr.Address, balance abi.TokenAmount) {
	stateCID, err := vm.store.Put(ctx, state)
	require.NoError(t, err)
	actor := &Actor{
		Head:    stateCID,
		Code:    code,
		Balance: balance,
	}
	require.NoError(t, vm.setActor(a, actor))
}
