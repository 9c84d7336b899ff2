package timelock

import (
	"github.com/filecoin-project/go-state-types/abi"
	cid "github.com/ipfs/go-cid"
	"golang.org/x/xerrors"

	"github.com/filecoin-project/go-timelock/actors/builtin"
	"github.com/filecoin-project/go-timelock/actors/util/adt"
)

type State struct {
	// Minimum number of epochs between the current epoch and an action's timestamp at queue time.
	MinDelay abi.ChainEpoch
	// The set of queued action IDs.
	Queued cid.Cid // HAMT[ActionID]
}

func ConstructState(store adt.Store, minDelay abi.ChainEpoch) (*State, error) {
	emptySetCid, err := adt.StoreEmptyMap(store, builtin.DefaultHamtBitwidth)
	if err != nil {
		return nil, xerrors.Errorf("failed to create empty set: %w", err)
	}
	return &State{
		MinDelay: minDelay,
		Queued:   emptySetCid,
	}, nil
}

func (st *State) IsQueued(store adt.Store, id ActionID) (bool, error) {
	queued, err := adt.AsSet(store, st.Queued, builtin.DefaultHamtBitwidth)
	if err != nil {
		return false, xerrors.Errorf("failed to load queued set: %w", err)
	}
	return queued.Has(id)
}

// Adds an action to the queued set. Queuing an already queued action leaves the set unchanged.
func (st *State) QueueAction(store adt.Store, id ActionID) error {
	queued, err := adt.AsSet(store, st.Queued, builtin.DefaultHamtBitwidth)
	if err != nil {
		return xerrors.Errorf("failed to load queued set: %w", err)
	}
	if err := queued.Put(id); err != nil {
		return xerrors.Errorf("failed to put action %s: %w", id, err)
	}
	if st.Queued, err = queued.Root(); err != nil {
		return xerrors.Errorf("failed to flush queued set: %w", err)
	}
	return nil
}

// Removes an action from the queued set, which must contain it.
func (st *State) DequeueAction(store adt.Store, id ActionID) error {
	queued, err := adt.AsSet(store, st.Queued, builtin.DefaultHamtBitwidth)
	if err != nil {
		return xerrors.Errorf("failed to load queued set: %w", err)
	}
	if err := queued.Delete(id); err != nil {
		return xerrors.Errorf("failed to delete action %s: %w", id, err)
	}
	if st.Queued, err = queued.Root(); err != nil {
		return xerrors.Errorf("failed to flush queued set: %w", err)
	}
	return nil
}

// Lists the IDs of all queued actions, in no particular order.
func (st *State) QueuedActionIDs(store adt.Store) ([]ActionID, error) {
	queued, err := adt.AsSet(store, st.Queued, builtin.DefaultHamtBitwidth)
	if err != nil {
		return nil, xerrors.Errorf("failed to load queued set: %w", err)
	}
	var ids []ActionID
	err = queued.ForEach(func(k string) error {
		var id ActionID
		if len(k) != len(id) {
			return xerrors.Errorf("queued key has length %d", len(k))
		}
		copy(id[:], k)
		ids = append(ids, id)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ids, nil
}
