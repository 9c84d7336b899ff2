package counter

import (
	addr "github.com/filecoin-project/go-address"
	"github.com/filecoin-project/go-state-types/exitcode"
)

type State struct {
	// ID address of the actor permitted to increment and relay.
	Authority addr.Address
	Count     uint64
	// Exit code of the most recent relayed send.
	LastRelayCode exitcode.ExitCode
	// Serialized RelayParams sent by Hook, empty when unset.
	Hook []byte
}
