package manifest

import (
	"context"
	"sort"

	cid "github.com/ipfs/go-cid"
	"golang.org/x/xerrors"

	"github.com/filecoin-project/go-timelock/actors/util/adt"
)

// Manifest names the actor code IDs a VM may instantiate.
type Manifest struct {
	Version uint64 // this is really u32, but cbor-gen can't deal with it
	Data    cid.Cid

	entries map[string]cid.Cid
	codes   map[cid.Cid]string
}

type ManifestEntry struct {
	Name string
	Code cid.Cid
}

type ManifestData struct {
	Entries []ManifestEntry
}

// Stores manifest data naming each code ID, returning its CID.
func StoreData(store adt.Store, codes map[string]cid.Cid) (cid.Cid, error) {
	data := ManifestData{}
	for _, name := range sortedNames(codes) {
		data.Entries = append(data.Entries, ManifestEntry{Name: name, Code: codes[name]})
	}
	c, err := store.Put(store.Context(), &data)
	if err != nil {
		return cid.Undef, xerrors.Errorf("failed to store manifest data: %w", err)
	}
	return c, nil
}

// Load reads the manifest data into memory.
func (m *Manifest) Load(ctx context.Context, store adt.Store) error {
	if m.Version != 1 {
		return xerrors.Errorf("unknown manifest version %d", m.Version)
	}

	var data ManifestData
	if err := store.Get(ctx, m.Data, &data); err != nil {
		return xerrors.Errorf("failed to load manifest data %s: %w", m.Data, err)
	}

	m.entries = make(map[string]cid.Cid, len(data.Entries))
	m.codes = make(map[cid.Cid]string, len(data.Entries))
	for _, e := range data.Entries {
		if _, dup := m.entries[e.Name]; dup {
			return xerrors.Errorf("duplicate manifest entry %s", e.Name)
		}
		m.entries[e.Name] = e.Code
		m.codes[e.Code] = e.Name
	}
	return nil
}

func (m *Manifest) Get(name string) (cid.Cid, bool) {
	c, ok := m.entries[name]
	return c, ok
}

// Reports whether the code is named by the manifest.
func (m *Manifest) IsBuiltinActor(code cid.Cid) bool {
	_, ok := m.codes[code]
	return ok
}

func sortedNames(codes map[string]cid.Cid) []string {
	names := make([]string, 0, len(codes))
	for name := range codes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
