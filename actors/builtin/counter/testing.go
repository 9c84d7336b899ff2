package counter

import (
	addr "github.com/filecoin-project/go-address"

	"github.com/filecoin-project/go-timelock/actors/builtin"
)

type StateSummary struct {
	Count uint64
}

// Checks internal invariants of counter state.
func CheckStateInvariants(st *State) (*StateSummary, *builtin.MessageAccumulator) {
	acc := &builtin.MessageAccumulator{}
	acc.Require(st.Authority.Protocol() == addr.ID, "authority %v is not an ID address", st.Authority)
	return &StateSummary{Count: st.Count}, acc
}
