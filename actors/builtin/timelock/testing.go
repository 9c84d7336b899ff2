package timelock

import (
	"github.com/filecoin-project/go-timelock/actors/builtin"
	"github.com/filecoin-project/go-timelock/actors/util/adt"
)

type StateSummary struct {
	MinDelay    int64
	QueuedCount int
}

// Checks internal invariants of timelock state.
func CheckStateInvariants(st *State, store adt.Store) (*StateSummary, *builtin.MessageAccumulator) {
	acc := &builtin.MessageAccumulator{}
	summary := &StateSummary{MinDelay: int64(st.MinDelay)}

	acc.Require(st.MinDelay >= 0, "negative minimum delay %d", st.MinDelay)

	ids, err := st.QueuedActionIDs(store)
	if err != nil {
		acc.Addf("error loading queued actions: %v", err)
		return summary, acc
	}
	summary.QueuedCount = len(ids)
	return summary, acc
}
