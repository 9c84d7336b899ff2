package system

import (
	cid "github.com/ipfs/go-cid"
	xerrors "golang.org/x/xerrors"

	"github.com/filecoin-project/go-timelock/actors/builtin/manifest"
	"github.com/filecoin-project/go-timelock/actors/util/adt"
)

const ManifestVersion = 1

type State struct {
	BuiltinActors cid.Cid // ManifestData
}

// Constructs state whose manifest names the given actor code IDs.
func ConstructState(store adt.Store, codes map[string]cid.Cid) (*State, error) {
	data, err := manifest.StoreData(store, codes)
	if err != nil {
		return nil, xerrors.Errorf("failed to create manifest: %w", err)
	}
	return &State{BuiltinActors: data}, nil
}

// Loads the manifest of actor code this state records.
func (st *State) LoadManifest(store adt.Store) (*manifest.Manifest, error) {
	m := manifest.Manifest{Version: ManifestVersion, Data: st.BuiltinActors}
	if err := m.Load(store.Context(), store); err != nil {
		return nil, err
	}
	return &m, nil
}
