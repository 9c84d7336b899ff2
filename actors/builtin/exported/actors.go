package exported

import (
	"github.com/filecoin-project/go-timelock/actors/builtin/account"
	"github.com/filecoin-project/go-timelock/actors/builtin/counter"
	init_ "github.com/filecoin-project/go-timelock/actors/builtin/init"
	"github.com/filecoin-project/go-timelock/actors/builtin/system"
	"github.com/filecoin-project/go-timelock/actors/builtin/timelock"
	"github.com/filecoin-project/go-timelock/actors/runtime"
)

func BuiltinActors() []runtime.VMActor {
	return []runtime.VMActor{
		system.Actor{},
		account.Actor{},
		init_.Actor{},
		timelock.Actor{},
		counter.Actor{},
	}
}
