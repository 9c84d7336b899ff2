package builtin

import (
	"github.com/filecoin-project/go-state-types/abi"
)

const (
	MethodSend        = abi.MethodNum(0)
	MethodConstructor = abi.MethodNum(1)
)

type accMethods struct {
	Constructor   abi.MethodNum
	PubkeyAddress abi.MethodNum
}

var MethodsAccount = accMethods{MethodConstructor, 2}

type iaMethods struct {
	Constructor abi.MethodNum
	Exec        abi.MethodNum
}

var MethodsInit = iaMethods{MethodConstructor, 2}

type tlMethods struct {
	Constructor  abi.MethodNum
	Queue        abi.MethodNum
	Execute      abi.MethodNum
	GetTimestamp abi.MethodNum
}

var MethodsTimelock = tlMethods{MethodConstructor, 2, 3, 4}

// Counter methods other than the constructor are addressed by function signature.
type ctrMethods struct {
	Constructor abi.MethodNum
	Increment   abi.MethodNum
	Fail        abi.MethodNum
	Relay       abi.MethodNum
	Count       abi.MethodNum
	SetHook     abi.MethodNum
	Hook        abi.MethodNum
}

const (
	CounterIncrementSignature = "increment()"
	CounterFailSignature      = "fail()"
	CounterRelaySignature     = "relay(address,uint256,uint64,bytes)"
	CounterCountSignature     = "count()"
	CounterSetHookSignature   = "setHook(address,uint256,uint64,bytes)"
	CounterHookSignature      = "hook()"
)

var MethodsCounter = ctrMethods{
	Constructor: MethodConstructor,
	Increment:   MustGenerateSignatureMethodNum(CounterIncrementSignature),
	Fail:        MustGenerateSignatureMethodNum(CounterFailSignature),
	Relay:       MustGenerateSignatureMethodNum(CounterRelaySignature),
	Count:       MustGenerateSignatureMethodNum(CounterCountSignature),
	SetHook:     MustGenerateSignatureMethodNum(CounterSetHookSignature),
	Hook:        MustGenerateSignatureMethodNum(CounterHookSignature),
}
