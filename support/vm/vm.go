package vm

import (
	"bytes"
	"context"
	"reflect"
	"sync"

	addr "github.com/filecoin-project/go-address"
	"github.com/filecoin-project/go-state-types/abi"
	"github.com/filecoin-project/go-state-types/big"
	"github.com/filecoin-project/go-state-types/cbor"
	"github.com/filecoin-project/go-state-types/exitcode"
	rtt "github.com/filecoin-project/go-state-types/rt"
	cid "github.com/ipfs/go-cid"
	ipldcbor "github.com/ipfs/go-ipld-cbor"
	"golang.org/x/xerrors"

	"github.com/filecoin-project/go-timelock/actors/builtin"
	"github.com/filecoin-project/go-timelock/actors/builtin/account"
	init_ "github.com/filecoin-project/go-timelock/actors/builtin/init"
	"github.com/filecoin-project/go-timelock/actors/runtime"
	"github.com/filecoin-project/go-timelock/actors/util/adt"
)

// VM holds the state and executes messages over the state.
// Messages are applied one at a time; concurrent callers are serialized.
type VM struct {
	ctx   context.Context
	bs    ipldcbor.IpldBlockstore
	store adt.Store
	mu    sync.Mutex

	currentEpoch abi.ChainEpoch
	logLevel     rtt.LogLevel

	actorImpls  ActorImplLookup
	stateRoot   cid.Cid  // The last committed root.
	actors      *adt.Map // The current (not necessarily committed) root node.
	actorsDirty bool

	emptyObject cid.Cid
	receipts    *adt.Array

	invocations []*Invocation
	logs        []string
	vectors     *vectorGen
}

// VM types

// Actor is an entry in the state tree.
type Actor struct {
	Head       cid.Cid
	Code       cid.Cid
	CallSeqNum uint64
	Balance    abi.TokenAmount
}

type ActorImplLookup map[cid.Cid]runtime.VMActor

type InternalMessage struct {
	from   addr.Address
	to     addr.Address
	value  abi.TokenAmount
	method abi.MethodNum
	params interface{}
}

func (msg InternalMessage) From() addr.Address {
	return msg.from
}

func (msg InternalMessage) To() addr.Address {
	return msg.to
}

func (msg InternalMessage) Method() abi.MethodNum {
	return msg.method
}

func (msg InternalMessage) Value() abi.TokenAmount {
	return msg.value
}

func (msg InternalMessage) Params() interface{} {
	return msg.params
}

// Invocation records a message dispatched by the VM and the messages it sent in turn.
type Invocation struct {
	Msg            *InternalMessage
	Exitcode       exitcode.ExitCode
	Ret            cbor.Marshaler
	SubInvocations []*Invocation
}

type MessageResult struct {
	Ret  cbor.Marshaler
	Code exitcode.ExitCode
}

// EmptyObject is the head of an actor whose state has not been constructed.
type EmptyObject struct{}

// Receipt is the persisted outcome of a top-level message.
type Receipt struct {
	ExitCode exitcode.ExitCode
	Return   []byte
}

// NewVM creates a new VM with an empty state tree backed by the given block store.
func NewVM(ctx context.Context, actorImpls ActorImplLookup, bs ipldcbor.IpldBlockstore) *VM {
	store := adt.WrapBlockStore(ctx, bs)
	actors, err := adt.MakeEmptyMap(store, builtin.DefaultHamtBitwidth)
	if err != nil {
		panic(err)
	}
	stateRoot, err := actors.Root()
	if err != nil {
		panic(err)
	}
	return newVM(ctx, actorImpls, bs, store, actors, stateRoot)
}

func newVM(ctx context.Context, actorImpls ActorImplLookup, bs ipldcbor.IpldBlockstore, store adt.Store, actors *adt.Map, root cid.Cid) *VM {
	emptyObject, err := store.Put(ctx, &EmptyObject{})
	if err != nil {
		panic(err)
	}
	receipts, err := adt.MakeEmptyArray(store, builtin.DefaultAmtBitwidth)
	if err != nil {
		panic(err)
	}

	return &VM{
		ctx:         ctx,
		bs:          bs,
		store:       store,
		logLevel:    rtt.INFO,
		actorImpls:  actorImpls,
		actors:      actors,
		stateRoot:   root,
		actorsDirty: false,
		emptyObject: emptyObject,
		receipts:    receipts,
		vectors:     newVectorGen(),
	}
}

func (vm *VM) rollback(root cid.Cid) error {
	var err error
	vm.actors, err = adt.AsMap(vm.store, root, builtin.DefaultHamtBitwidth)
	if err != nil {
		return xerrors.Errorf("failed to load node for %s: %w", root, err)
	}

	// reset the root node
	vm.stateRoot = root
	vm.actorsDirty = false
	return nil
}

func (vm *VM) GetActor(a addr.Address) (*Actor, bool, error) {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	return vm.getActor(a)
}

func (vm *VM) getActor(a addr.Address) (*Actor, bool, error) {
	na, found := vm.normalizeAddress(a)
	if !found {
		return nil, false, nil
	}
	var act Actor
	found, err := vm.actors.Get(adt.AddrKey(na), &act)
	return &act, found, err
}

// setActor sets the the actor to the given value whether it previously existed or not.
func (vm *VM) setActor(key addr.Address, a *Actor) error {
	if err := vm.actors.Put(adt.AddrKey(key), a); err != nil {
		return xerrors.Errorf("setting actor in state tree failed: %w", err)
	}
	vm.actorsDirty = true
	return nil
}

// setActorState stores the state and updates the addressed actor's head to point to it.
func (vm *VM) setActorState(key addr.Address, state cbor.Marshaler) error {
	stateCid, err := vm.store.Put(vm.ctx, state)
	if err != nil {
		return err
	}
	a, found, err := vm.getActor(key)
	if err != nil {
		return err
	}
	if !found {
		return xerrors.Errorf("could not find actor %s to set state", key)
	}
	a.Head = stateCid
	return vm.setActor(key, a)
}

func (vm *VM) checkpoint() (cid.Cid, error) {
	// commit the vm state
	root, err := vm.actors.Root()
	if err != nil {
		return cid.Undef, err
	}
	vm.stateRoot = root
	vm.actorsDirty = false

	return root, nil
}

// NormalizeAddress resolves an address to the ID address of an existing actor.
func (vm *VM) NormalizeAddress(a addr.Address) (addr.Address, bool) {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	return vm.normalizeAddress(a)
}

func (vm *VM) normalizeAddress(a addr.Address) (addr.Address, bool) {
	// short-circuit if the address is already an ID address
	if a.Protocol() == addr.ID {
		return a, true
	}

	// resolve the target address via the InitActor, and attempt to load state.
	initActorEntry, found, err := vm.getActor(builtin.InitActorAddr)
	if err != nil {
		panic(xerrors.Errorf("failed to load init actor: %w", err))
	}
	if !found {
		panic(xerrors.Errorf("no init actor"))
	}

	// get a view into the actor state
	var state init_.State
	if err := vm.store.Get(vm.ctx, initActorEntry.Head, &state); err != nil {
		panic(err)
	}

	idAddr, found, err := state.ResolveAddress(vm.store, a)
	if err != nil {
		panic(err)
	}
	return idAddr, found
}

// ApplyMessage applies the message to the current state.
// The message is applied in full or, if it fails, not at all, except for the sender's call sequence number.
func (vm *VM) ApplyMessage(from, to addr.Address, value abi.TokenAmount, method abi.MethodNum, params interface{}) MessageResult {
	vm.mu.Lock()
	defer vm.mu.Unlock()

	// This method does not actually execute the message itself,
	// but rather deals with the pre/post processing of a message.
	// (see: `invocationContext.invoke()` for the dispatch and execution)

	vm.logs = nil
	if err := vm.vectors.before(vm); err != nil {
		panic(err)
	}

	// load actor from global state
	fromID, ok := vm.normalizeAddress(from)
	if !ok {
		return vm.recordResult(from, to, value, method, params, MessageResult{Code: exitcode.SysErrSenderInvalid})
	}

	fromActor, found, err := vm.getActor(fromID)
	if err != nil {
		panic(err)
	}
	if !found {
		// Execution error; sender does not exist at time of message execution.
		return vm.recordResult(from, to, value, method, params, MessageResult{Code: exitcode.SysErrSenderInvalid})
	}

	if !builtin.IsAccountActor(fromActor.Code) {
		// Execution error; sender is not an account.
		return vm.recordResult(from, to, value, method, params, MessageResult{Code: exitcode.SysErrSenderInvalid})
	}

	// Load sender account state to obtain stable pubkey address.
	var senderState account.State
	err = vm.store.Get(vm.ctx, fromActor.Head, &senderState)
	if err != nil {
		panic(err)
	}

	callSeq := fromActor.CallSeqNum
	fromActor.CallSeqNum++
	if err := vm.setActor(fromID, fromActor); err != nil {
		panic(err)
	}

	// checkpoint state
	// Even if the message fails, the call sequence increment is applied.
	priorRoot, err := vm.checkpoint()
	if err != nil {
		panic(err)
	}

	topLevel := topLevelContext{
		originatorStableAddress: senderState.Address,
		originatorCallSeq:       callSeq,
		newActorAddressCount:    0,
	}

	// build internal msg
	imsg := InternalMessage{
		from:   fromID,
		to:     to,
		value:  value,
		method: method,
		params: params,
	}

	// build invocation context
	ctx := newInvocationContext(vm, &topLevel, imsg, vm.emptyObject)

	// 3. invoke
	ret, exitCode := ctx.invoke()

	// Roll back all state if the receipt's exit code is not ok.
	// This is required in addition to rollback within the invocation context since top level messages can fail for
	// more reasons than internal ones. Invocation context still needs its own rollback so actors can recover and
	// proceed from a nested call failure.
	if exitCode != exitcode.Ok {
		if err := vm.rollback(priorRoot); err != nil {
			panic(err)
		}
	} else {
		if _, err := vm.checkpoint(); err != nil {
			panic(err)
		}
	}

	vm.invocations = append(vm.invocations, &ctx.invocation)
	return vm.recordResult(from, to, value, method, params, MessageResult{Ret: ret.inner, Code: exitCode})
}

// Appends the receipt of a top-level message and emits its test vector, if enabled.
func (vm *VM) recordResult(from, to addr.Address, value abi.TokenAmount, method abi.MethodNum, params interface{}, result MessageResult) MessageResult {
	ret, err := serialize(result.Ret)
	if err != nil {
		panic(err)
	}
	if err := vm.receipts.AppendContinuous(&Receipt{ExitCode: result.Code, Return: ret}); err != nil {
		panic(err)
	}
	if err := vm.vectors.after(vm, from, to, value, method, params, result); err != nil {
		panic(err)
	}
	return result
}

func (vm *VM) GetState(a addr.Address, out cbor.Unmarshaler) error {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	act, found, err := vm.getActor(a)
	if err != nil {
		return err
	}
	if !found {
		return xerrors.Errorf("actor %v not found", a)
	}
	return vm.store.Get(vm.ctx, act.Head, out)
}

func (vm *VM) StateRoot() cid.Cid {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	return vm.stateRoot
}

func (vm *VM) Store() adt.Store {
	return vm.store
}

func (vm *VM) GetEpoch() abi.ChainEpoch {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	return vm.currentEpoch
}

// SetEpoch moves the VM clock forward. Epochs never decrease.
func (vm *VM) SetEpoch(epoch abi.ChainEpoch) error {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	if epoch < vm.currentEpoch {
		return xerrors.Errorf("epoch %d precedes current epoch %d", epoch, vm.currentEpoch)
	}
	vm.currentEpoch = epoch
	return nil
}

// SetLogLevel sets the minimum level of actor logs the VM retains, for actors without an override.
func (vm *VM) SetLogLevel(level rtt.LogLevel) {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	vm.logLevel = level
}

// GetLogs returns the lines logged while applying the most recent message.
func (vm *VM) GetLogs() []string {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	return vm.logs
}

// Invocations returns the invocation trace of every message applied so far.
func (vm *VM) Invocations() []*Invocation {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	return vm.invocations
}

// LastInvocation returns the invocation trace of the most recently applied message.
func (vm *VM) LastInvocation() *Invocation {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	if len(vm.invocations) == 0 {
		return nil
	}
	return vm.invocations[len(vm.invocations)-1]
}

// Receipts returns the receipts of all messages applied so far, in order.
func (vm *VM) Receipts() ([]Receipt, error) {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	var out []Receipt
	var r Receipt
	err := vm.receipts.ForEach(&r, func(i int64) error {
		out = append(out, Receipt{ExitCode: r.ExitCode, Return: r.Return})
		return nil
	})
	return out, err
}

// ReceiptsRoot flushes the receipts array and returns its root.
func (vm *VM) ReceiptsRoot() (cid.Cid, error) {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	return vm.receipts.Root()
}

// transfer debits money from one account and credits it to another.
// Aborts the invocation if the debited actor has insufficient funds.
func (ic *invocationContext) transfer(debitFrom addr.Address, creditTo addr.Address, amount abi.TokenAmount) {
	if amount.LessThan(big.Zero()) {
		ic.Abortf(exitcode.SysErrForbidden, "negative transfer %v", amount)
	}
	if amount.IsZero() {
		return
	}

	fromActor, found, err := ic.vm.getActor(debitFrom)
	if err != nil {
		panic(err)
	}
	if !found {
		panic(xerrors.Errorf("unreachable: debit account %s not found", debitFrom))
	}
	if fromActor.Balance.LessThan(amount) {
		ic.Abortf(exitcode.SysErrInsufficientFunds, "insufficient balance %v to transfer %v from %s", fromActor.Balance, amount, debitFrom)
	}
	fromActor.Balance = big.Sub(fromActor.Balance, amount)
	if err := ic.vm.setActor(debitFrom, fromActor); err != nil {
		panic(err)
	}

	toActor, found, err := ic.vm.getActor(creditTo)
	if err != nil {
		panic(err)
	}
	if !found {
		panic(xerrors.Errorf("unreachable: credit account %s not found", creditTo))
	}
	toActor.Balance = big.Add(toActor.Balance, amount)
	if err := ic.vm.setActor(creditTo, toActor); err != nil {
		panic(err)
	}
}

func (vm *VM) getActorImpl(code cid.Cid) (runtime.VMActor, bool) {
	actorImpl, ok := vm.actorImpls[code]
	return actorImpl, ok
}

func serialize(m cbor.Marshaler) ([]byte, error) {
	if isNil(m) {
		return nil, nil
	}
	var buf bytes.Buffer
	if err := m.MarshalCBOR(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func isNil(v interface{}) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Ptr, reflect.Map, reflect.Interface:
		return rv.IsNil()
	}
	return false
}
