package adt_test

import (
	"context"
	"testing"

	"github.com/filecoin-project/go-state-types/big"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/filecoin-project/go-timelock/actors/builtin"
	"github.com/filecoin-project/go-timelock/actors/util/adt"
	"github.com/filecoin-project/go-timelock/support/ipld"
	tutil "github.com/filecoin-project/go-timelock/support/testing"
)

func TestAddrKey(t *testing.T) {
	idAddress1 := tutil.NewIDAddr(t, 101)
	idAddress2 := tutil.NewIDAddr(t, 102)
	actorAddress1 := tutil.NewActorAddr(t, "actor1")
	actorAddress2 := tutil.NewActorAddr(t, "222")

	t.Run("address to key string conversion", func(t *testing.T) {
		assert.Equal(t, "\x00\x65", adt.AddrKey(idAddress1).Key())
		assert.Equal(t, "\x00\x66", adt.AddrKey(idAddress2).Key())
		assert.Equal(t, "\x02\x58\xbe\x4f\xd7\x75\xa0\xc8\xcd\x9a\xed\x86\x4e\x73\xab\xb1\x86\x46\x5f\xef\xe1", adt.AddrKey(actorAddress1).Key())
		assert.Equal(t, "\x02\xaa\xd0\xb2\x98\xa9\xde\xab\xbb\xb6\u007f\x80\x5f\x66\xaa\x68\x8c\xdd\x89\xad\xf5", adt.AddrKey(actorAddress2).Key())
	})
}

func TestMap(t *testing.T) {
	store := ipld.NewADTStore(context.Background())

	t.Run("put get delete", func(t *testing.T) {
		m, err := adt.MakeEmptyMap(store, builtin.DefaultHamtBitwidth)
		require.NoError(t, err)

		key := adt.AddrKey(tutil.NewIDAddr(t, 100))
		val := big.NewInt(42)
		require.NoError(t, m.Put(key, &val))

		var out big.Int
		found, err := m.Get(key, &out)
		require.NoError(t, err)
		assert.True(t, found)
		assert.True(t, val.Equals(out))

		root, err := m.Root()
		require.NoError(t, err)

		reloaded, err := adt.AsMap(store, root, builtin.DefaultHamtBitwidth)
		require.NoError(t, err)
		has, err := reloaded.Has(key)
		require.NoError(t, err)
		assert.True(t, has)

		found, err = reloaded.TryDelete(key)
		require.NoError(t, err)
		assert.True(t, found)
		found, err = reloaded.TryDelete(key)
		require.NoError(t, err)
		assert.False(t, found)
		assert.Error(t, reloaded.Delete(key))
	})

	t.Run("empty map roots are equal", func(t *testing.T) {
		a, err := adt.StoreEmptyMap(store, builtin.DefaultHamtBitwidth)
		require.NoError(t, err)
		b, err := adt.StoreEmptyMap(store, builtin.DefaultHamtBitwidth)
		require.NoError(t, err)
		assert.Equal(t, a, b)
	})
}

func TestSet(t *testing.T) {
	store := ipld.NewADTStore(context.Background())
	set, err := adt.MakeEmptySet(store, builtin.DefaultHamtBitwidth)
	require.NoError(t, err)

	emptyRoot, err := set.Root()
	require.NoError(t, err)

	for _, k := range []string{"a", "b", "c"} {
		require.NoError(t, set.Put(adt.StringKey(k)))
	}
	// re-adding is a no-op
	require.NoError(t, set.Put(adt.StringKey("a")))

	keys, err := set.CollectKeys()
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a", "b", "c"}, keys)

	has, err := set.Has(adt.StringKey("b"))
	require.NoError(t, err)
	assert.True(t, has)
	has, err = set.Has(adt.StringKey("z"))
	require.NoError(t, err)
	assert.False(t, has)

	for _, k := range []string{"a", "b", "c"} {
		require.NoError(t, set.Delete(adt.StringKey(k)))
	}
	root, err := set.Root()
	require.NoError(t, err)
	assert.Equal(t, emptyRoot, root)
}

func TestArrayAppend(t *testing.T) {
	store := ipld.NewADTStore(context.Background())
	arr, err := adt.MakeEmptyArray(store, builtin.DefaultAmtBitwidth)
	require.NoError(t, err)

	for i := int64(0); i < 20; i++ {
		v := big.NewInt(i * 10)
		require.NoError(t, arr.AppendContinuous(&v))
	}
	assert.Equal(t, uint64(20), arr.Length())

	root, err := arr.Root()
	require.NoError(t, err)
	reloaded, err := adt.AsArray(store, root, builtin.DefaultAmtBitwidth)
	require.NoError(t, err)

	var out big.Int
	var seen []int64
	require.NoError(t, reloaded.ForEach(&out, func(i int64) error {
		assert.True(t, big.NewInt(i*10).Equals(out), "index %d: %v", i, out)
		seen = append(seen, i)
		return nil
	}))
	assert.Len(t, seen, 20)

	found, err := reloaded.Get(25, &out)
	require.NoError(t, err)
	assert.False(t, found)
}
