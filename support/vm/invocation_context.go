package vm

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"reflect"

	addr "github.com/filecoin-project/go-address"
	"github.com/filecoin-project/go-state-types/abi"
	"github.com/filecoin-project/go-state-types/big"
	"github.com/filecoin-project/go-state-types/cbor"
	"github.com/filecoin-project/go-state-types/exitcode"
	rtt "github.com/filecoin-project/go-state-types/rt"
	cid "github.com/ipfs/go-cid"
	"github.com/minio/blake2b-simd"
	"golang.org/x/xerrors"

	"github.com/filecoin-project/go-timelock/actors/builtin"
	init_ "github.com/filecoin-project/go-timelock/actors/builtin/init"
	"github.com/filecoin-project/go-timelock/actors/builtin/system"
	"github.com/filecoin-project/go-timelock/actors/runtime"
)

// Context for an individual message invocation, including inter-actor sends.
type invocationContext struct {
	vm               *VM
	topLevel         *topLevelContext
	msg              InternalMessage // The message being processed
	fromActor        *Actor          // The immediate calling actor
	toActor          *Actor          // The actor to which message is addressed
	emptyObject      cid.Cid
	allowSideEffects bool
	callerValidated  bool
	invocation       Invocation
}

// Context for a top-level invocation sequence
type topLevelContext struct {
	originatorStableAddress addr.Address // Stable (public key) address of the top-level message sender.
	originatorCallSeq       uint64       // Call sequence number of the top-level message.
	newActorAddressCount    uint64       // Count of calls to NewActorAddress (mutable).
}

func newInvocationContext(vm *VM, topLevel *topLevelContext, msg InternalMessage, emptyObject cid.Cid) invocationContext {
	// Note: the toActor and stateHandle are loaded during the `invoke()`
	return invocationContext{
		vm:               vm,
		topLevel:         topLevel,
		msg:              msg,
		emptyObject:      emptyObject,
		allowSideEffects: true,
		callerValidated:  false,
	}
}

var _ runtime.StateHandle = (*invocationContext)(nil)

func (ic *invocationContext) loadState(obj cbor.Unmarshaler) cid.Cid {
	// The actor must be loaded from store every time since the state may have changed via a different state handle
	// (e.g. in a recursive call).
	actr := ic.loadActor()
	c := actr.Head
	if !c.Defined() {
		ic.Abortf(exitcode.SysErrorIllegalActor, "failed to load undefined state, must construct first")
	}
	err := ic.vm.store.Get(ic.vm.ctx, c, obj)
	if err != nil {
		panic(xerrors.Errorf("failed to load state for actor %s, CID %s: %w", ic.msg.to, c, err))
	}
	return c
}

func (ic *invocationContext) loadActor() *Actor {
	actr, found, err := ic.vm.getActor(ic.msg.to)
	if err != nil {
		panic(err)
	}
	if !found {
		panic(xerrors.Errorf("failed to find actor %s for state", ic.msg.to))
	}
	return actr
}

func (ic *invocationContext) storeActor(actr *Actor) {
	err := ic.vm.setActor(ic.msg.to, actr)
	if err != nil {
		panic(err)
	}
}

/////////////////////////////////////////////
//          Runtime methods
/////////////////////////////////////////////

var _ runtime.Runtime = (*invocationContext)(nil)

// Store implements runtime.Runtime.
func (ic *invocationContext) Store() runtime.Store {
	return ic
}

func (ic *invocationContext) Get(c cid.Cid, o cbor.Unmarshaler) bool {
	err := ic.vm.store.Get(ic.vm.ctx, c, o)
	// assume all errors are not found errors (bad assumption, but ok for testing)
	return err == nil
}

func (ic *invocationContext) Put(x cbor.Marshaler) cid.Cid {
	c, err := ic.vm.store.Put(ic.vm.ctx, x)
	if err != nil {
		ic.Abortf(exitcode.ErrSerialization, "failed to store object: %s", err)
	}
	return c
}

// Message implements runtime.Runtime.
func (ic *invocationContext) Message() runtime.Message {
	return ic.msg
}

var _ runtime.Message = InternalMessage{}

func (msg InternalMessage) Caller() addr.Address {
	return msg.from
}

func (msg InternalMessage) Receiver() addr.Address {
	return msg.to
}

func (msg InternalMessage) ValueReceived() abi.TokenAmount {
	return msg.value
}

// CurrEpoch implements runtime.Runtime.
func (ic *invocationContext) CurrEpoch() abi.ChainEpoch {
	return ic.vm.currentEpoch
}

func (ic *invocationContext) CurrentBalance() abi.TokenAmount {
	// load balance
	act, found, err := ic.vm.getActor(ic.msg.to)
	if err != nil {
		panic(err)
	}
	if !found {
		ic.Abortf(exitcode.SysErrorIllegalActor, "actor %s not found", ic.msg.to)
	}
	return act.Balance
}

// ValidateImmediateCallerAcceptAny implements runtime.Runtime.
func (ic *invocationContext) ValidateImmediateCallerAcceptAny() {
	ic.assertf(!ic.callerValidated, "caller has been double validated")
	ic.callerValidated = true
}

// ValidateImmediateCallerIs implements runtime.Runtime.
func (ic *invocationContext) ValidateImmediateCallerIs(addrs ...addr.Address) {
	ic.assertf(!ic.callerValidated, "caller has been double validated")
	ic.callerValidated = true
	for _, a := range addrs {
		if a == ic.msg.from {
			return
		}
	}
	ic.Abortf(exitcode.SysErrForbidden, "caller address %v forbidden, allowed: %v", ic.msg.from, addrs)
}

// ValidateImmediateCallerType implements runtime.Runtime.
func (ic *invocationContext) ValidateImmediateCallerType(types ...cid.Cid) {
	ic.assertf(!ic.callerValidated, "caller has been double validated")
	ic.callerValidated = true
	for _, t := range types {
		if t.Equals(ic.fromActor.Code) {
			return
		}
	}
	ic.Abortf(exitcode.SysErrForbidden, "caller type %v forbidden, allowed: %v", ic.fromActor.Code, types)
}

// ResolveAddress implements runtime.Runtime.
func (ic *invocationContext) ResolveAddress(address addr.Address) (addr.Address, bool) {
	return ic.vm.normalizeAddress(address)
}

// GetActorCodeCID implements runtime.Runtime.
func (ic *invocationContext) GetActorCodeCID(a addr.Address) (ret cid.Cid, ok bool) {
	entry, found, err := ic.vm.getActor(a)
	if !found {
		return cid.Undef, false
	}
	if err != nil {
		panic(err)
	}
	return entry.Code, true
}

// State implements runtime.Runtime.
func (ic *invocationContext) State() runtime.StateHandle {
	return ic
}

// Send implements runtime.Runtime.
func (ic *invocationContext) Send(toAddr addr.Address, methodNum abi.MethodNum, params cbor.Marshaler, value abi.TokenAmount) (runtime.SendReturn, exitcode.ExitCode) {
	// check if side-effects are allowed
	if !ic.allowSideEffects {
		ic.Abortf(exitcode.SysErrorIllegalActor, "Calling Send() is not allowed during side-effect lock")
	}
	from := ic.msg.to

	// build internal msg
	newMsg := InternalMessage{
		from:   from,
		to:     toAddr,
		value:  value,
		method: methodNum,
		params: params,
	}

	newCtx := newInvocationContext(ic.vm, ic.topLevel, newMsg, ic.emptyObject)

	// checkpoint so the callee's changes can be discarded if it fails
	priorRoot, err := ic.vm.checkpoint()
	if err != nil {
		panic(err)
	}

	ret, code := newCtx.invoke()

	if code != exitcode.Ok {
		if err := ic.vm.rollback(priorRoot); err != nil {
			panic(err)
		}
	}

	ic.invocation.SubInvocations = append(ic.invocation.SubInvocations, &newCtx.invocation)
	return ret, code
}

// NewActorAddress implements runtime.Runtime.
// The address is derived from the top-level sender's stable address and call sequence number,
// and the count of addresses created so far by the top-level message.
func (ic *invocationContext) NewActorAddress() addr.Address {
	var buf bytes.Buffer
	_, err := buf.Write(ic.topLevel.originatorStableAddress.Bytes())
	if err != nil {
		panic(err)
	}
	err = binary.Write(&buf, binary.BigEndian, ic.topLevel.originatorCallSeq)
	if err != nil {
		panic(err)
	}
	err = binary.Write(&buf, binary.BigEndian, ic.topLevel.newActorAddressCount)
	if err != nil {
		panic(err)
	}

	actorAddress, err := addr.NewActorAddress(buf.Bytes())
	if err != nil {
		panic(err)
	}
	ic.topLevel.newActorAddressCount++
	return actorAddress
}

// CreateActor implements runtime.Runtime.
func (ic *invocationContext) CreateActor(codeID cid.Cid, a addr.Address) {
	if ic.msg.to != builtin.InitActorAddr {
		ic.Abortf(exitcode.SysErrForbidden, "only the init actor may create actors")
	}
	if !ic.isBuiltinActor(codeID) {
		ic.Abortf(exitcode.SysErrorIllegalArgument, "Can only create built-in actors.")
	}
	if impl, _ := ic.vm.getActorImpl(codeID); impl.IsSingleton() {
		ic.Abortf(exitcode.SysErrorIllegalArgument, "Can only have one instance of singleton actors.")
	}

	// Check existing address. If nothing there, create empty actor.
	_, found, err := ic.vm.getActor(a)
	if err != nil {
		panic(err)
	}
	if found {
		ic.Abortf(exitcode.SysErrorIllegalArgument, "Actor address already exists")
	}

	newActor := &Actor{
		Head:    ic.emptyObject,
		Code:    codeID,
		Balance: abi.NewTokenAmount(0),
	}
	if err := ic.vm.setActor(a, newActor); err != nil {
		panic(err)
	}
}

// Reports whether the code is named by the system actor's manifest and implemented by the VM.
func (ic *invocationContext) isBuiltinActor(code cid.Cid) bool {
	if _, ok := ic.vm.getActorImpl(code); !ok {
		return false
	}
	sysActor, found, err := ic.vm.getActor(builtin.SystemActorAddr)
	if err != nil {
		panic(err)
	}
	if !found {
		panic(xerrors.Errorf("no system actor"))
	}
	var st system.State
	if err := ic.vm.store.Get(ic.vm.ctx, sysActor.Head, &st); err != nil {
		panic(err)
	}
	m, err := st.LoadManifest(ic.vm.store)
	if err != nil {
		panic(err)
	}
	return m.IsBuiltinActor(code)
}

func (ic *invocationContext) Abortf(errExitCode exitcode.ExitCode, msg string, args ...interface{}) {
	panic(abort{errExitCode, fmt.Sprintf(msg, args...)})
}

func (ic *invocationContext) Syscalls() runtime.Syscalls {
	return ic
}

func (ic *invocationContext) HashBlake2b(data []byte) [32]byte {
	return blake2b.Sum256(data)
}

func (ic *invocationContext) Context() context.Context {
	return ic.vm.ctx
}

func (ic *invocationContext) StartSpan(_ string) runtime.TraceSpan {
	return &fakeTraceSpan{}
}

// Log implements runtime.Runtime.
// Lines below the receiving actor's log level are discarded.
func (ic *invocationContext) Log(level rtt.LogLevel, msg string, args ...interface{}) {
	minLevel := ic.vm.logLevel
	if impl, ok := ic.vm.getActorImpl(ic.toActor.Code); ok {
		minLevel = builtin.GetActorLogLevel(impl, minLevel)
	}
	if level < minLevel {
		return
	}
	ic.vm.logs = append(ic.vm.logs, fmt.Sprintf(msg, args...))
}

/////////////////////////////////////////////
//          State handle methods
/////////////////////////////////////////////

func (ic *invocationContext) Create(obj cbor.Marshaler) {
	actr := ic.loadActor()
	if actr.Head != ic.emptyObject {
		ic.Abortf(exitcode.SysErrorIllegalActor, "failed to construct actor state: already initialized")
	}
	c, err := ic.vm.store.Put(ic.vm.ctx, obj)
	if err != nil {
		ic.Abortf(exitcode.ErrIllegalState, "failed to create actor state: %s", err)
	}
	actr.Head = c
	ic.storeActor(actr)
}

// Readonly is the implementation of the ActorStateHandle interface.
func (ic *invocationContext) Readonly(obj cbor.Unmarshaler) {
	ic.loadState(obj)
}

// Transaction is the implementation of the ActorStateHandle interface.
func (ic *invocationContext) Transaction(obj cbor.Er, f func()) {
	if obj == nil {
		ic.Abortf(exitcode.SysErrorIllegalActor, "Must not pass nil to Transaction()")
	}
	if !ic.allowSideEffects {
		ic.Abortf(exitcode.SysErrorIllegalActor, "nested transaction")
	}

	ic.loadState(obj)
	ic.allowSideEffects = false
	f()
	ic.allowSideEffects = true
	ic.replace(obj)
}

func (ic *invocationContext) replace(obj cbor.Marshaler) cid.Cid {
	actr := ic.loadActor()
	c, err := ic.vm.store.Put(ic.vm.ctx, obj)
	if err != nil {
		ic.Abortf(exitcode.ErrIllegalState, "could not save new state: %s", err)
	}
	actr.Head = c
	ic.storeActor(actr)
	return c
}

/////////////////////////////////////////////
//          Invocation
/////////////////////////////////////////////

// Processes the message, recording its outcome in the invocation trace.
func (ic *invocationContext) invoke() (ret returnWrapper, errcode exitcode.ExitCode) {
	// Apply message to state, with panic recovery for aborts.
	defer func() {
		if r := recover(); r != nil {
			if ar, ok := r.(abort); ok {
				ic.vm.logs = append(ic.vm.logs, ar.String())
				ret = returnWrapper{}
				errcode = ar.code
			} else {
				panic(r)
			}
		}
		ic.invocation.Msg = &ic.msg
		ic.invocation.Exitcode = errcode
		ic.invocation.Ret = ret.inner
	}()

	// pre-dispatch
	// 1. load the caller, which must exist
	// 2. load target actor, creating an account if addressed by an unknown pubkey address
	// 3. transfer value
	// 4. dispatch the method, unless it is a plain send
	fromActor, found, err := ic.vm.getActor(ic.msg.from)
	if err != nil {
		panic(err)
	}
	if !found {
		ic.Abortf(exitcode.SysErrSenderInvalid, "sender %s not found", ic.msg.from)
	}
	ic.fromActor = fromActor

	toActor, toIDAddr := ic.resolveTarget(ic.msg.to)
	ic.toActor = toActor
	ic.msg.to = toIDAddr

	ic.transfer(ic.msg.from, toIDAddr, ic.msg.value)

	if ic.msg.method == builtin.MethodSend {
		return returnWrapper{}, exitcode.Ok
	}

	actorImpl, ok := ic.vm.getActorImpl(ic.toActor.Code)
	if !ok {
		ic.Abortf(exitcode.SysErrInvalidReceiver, "actor implementation not found for code %v", ic.toActor.Code)
	}

	out := ic.dispatch(actorImpl, ic.msg.method, ic.msg.params)
	if !ic.callerValidated {
		ic.Abortf(exitcode.SysErrorIllegalActor, "caller MUST be validated during method execution")
	}
	return returnWrapper{out}, exitcode.Ok
}

// Resolves the target address to an actor, implicitly creating an account actor for an unknown pubkey address.
func (ic *invocationContext) resolveTarget(target addr.Address) (*Actor, addr.Address) {
	if targetIDAddr, found := ic.vm.normalizeAddress(target); found {
		act, found, err := ic.vm.getActor(targetIDAddr)
		if err != nil {
			panic(err)
		}
		if !found {
			ic.Abortf(exitcode.SysErrInvalidReceiver, "actor %s not found", target)
		}
		return act, targetIDAddr
	}

	if target.Protocol() != addr.SECP256K1 && target.Protocol() != addr.BLS {
		// Don't implicitly create an account actor for an address without an associated key.
		ic.Abortf(exitcode.SysErrInvalidReceiver, "cannot create account for address type %d", target.Protocol())
	}

	// Map the address to a new ID in the init actor.
	initActorEntry, found, err := ic.vm.getActor(builtin.InitActorAddr)
	if err != nil {
		panic(err)
	}
	if !found {
		panic(xerrors.Errorf("no init actor"))
	}
	var initState init_.State
	if err := ic.vm.store.Get(ic.vm.ctx, initActorEntry.Head, &initState); err != nil {
		panic(err)
	}
	targetIDAddr, err := initState.MapAddressToNewID(ic.vm.store, target)
	if err != nil {
		panic(err)
	}
	if err := ic.vm.setActorState(builtin.InitActorAddr, &initState); err != nil {
		panic(err)
	}

	newActor := &Actor{
		Head:    ic.emptyObject,
		Code:    builtin.AccountActorCodeID,
		Balance: abi.NewTokenAmount(0),
	}
	if err := ic.vm.setActor(targetIDAddr, newActor); err != nil {
		panic(err)
	}

	// Construct the account from the system actor.
	newMsg := InternalMessage{
		from:   builtin.SystemActorAddr,
		to:     targetIDAddr,
		value:  big.Zero(),
		method: builtin.MethodsAccount.Constructor,
		params: &target,
	}
	newCtx := newInvocationContext(ic.vm, ic.topLevel, newMsg, ic.emptyObject)
	_, code := newCtx.invoke()
	ic.invocation.SubInvocations = append(ic.invocation.SubInvocations, &newCtx.invocation)
	if code != exitcode.Ok {
		ic.Abortf(code, "failed to construct account %s", target)
	}

	act, _, err := ic.vm.getActor(targetIDAddr)
	if err != nil {
		panic(err)
	}
	return act, targetIDAddr
}

// Invokes the exported method, decoding its parameters from their serialized form.
func (ic *invocationContext) dispatch(actor runtime.VMActor, method abi.MethodNum, params interface{}) cbor.Marshaler {
	meta, ok := actor.Exports()[method]
	if !ok {
		ic.Abortf(exitcode.SysErrInvalidMethod, "method %d not exported by %s", method, builtin.ActorNameByCode(actor.Code()))
	}

	m := reflect.ValueOf(meta.Method)
	t := m.Type()
	arg := reflect.New(t.In(1).Elem())
	if !isNil(params) {
		p, ok := params.(cbor.Marshaler)
		if !ok {
			ic.Abortf(exitcode.SysErrorIllegalArgument, "params of type %T are not marshalable", params)
		}
		b, err := serialize(p)
		if err != nil {
			ic.Abortf(exitcode.ErrSerialization, "failed to marshal params for %s: %s", meta.Name, err)
		}
		if err := arg.Interface().(cbor.Unmarshaler).UnmarshalCBOR(bytes.NewReader(b)); err != nil {
			ic.Abortf(exitcode.ErrSerialization, "failed to decode params for %s: %s", meta.Name, err)
		}
	}

	ret := m.Call([]reflect.Value{reflect.ValueOf(ic), arg})
	return ret[0].Interface().(cbor.Marshaler)
}

func (ic *invocationContext) assertf(condition bool, msg string, args ...interface{}) {
	if !condition {
		panic(fmt.Errorf(msg, args...))
	}
}

type abort struct {
	code exitcode.ExitCode
	msg  string
}

func (a abort) String() string {
	return fmt.Sprintf("abort(%v): %s", a.code, a.msg)
}

// returnWrapper passes a method's return value through to its caller.
type returnWrapper struct {
	inner cbor.Marshaler
}

func (r returnWrapper) Into(o cbor.Unmarshaler) error {
	if isNil(r.inner) {
		return nil
	}
	b, err := serialize(r.inner)
	if err != nil {
		return err
	}
	return o.UnmarshalCBOR(bytes.NewReader(b))
}

type fakeTraceSpan struct {
}

func (t fakeTraceSpan) End() {
	// no-op
}
