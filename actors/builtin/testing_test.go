package builtin_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"golang.org/x/xerrors"

	"github.com/filecoin-project/go-timelock/actors/builtin"
)

func TestMessageAccumulator(t *testing.T) {
	t.Run("basics", func(t *testing.T) {
		acc := &builtin.MessageAccumulator{}
		assert.True(t, acc.IsEmpty())

		acc.Add("one")
		assert.False(t, acc.IsEmpty())
		assert.Equal(t, []string{"one"}, acc.Messages())

		acc.Addf("tw%s", "o")
		acc.Require(true, "three")
		acc.Require(false, "fou%s", "r")
		acc.RequireNoError(nil, "five")
		acc.RequireNoError(xerrors.New("boom"), "six")
		assert.Equal(t, []string{"one", "two", "four", "six: boom"}, acc.Messages())
	})

	t.Run("prefix", func(t *testing.T) {
		acc := &builtin.MessageAccumulator{}
		accA := acc.WithPrefix("A")

		accA.Add("aa")
		assert.Equal(t, []string{"Aaa"}, acc.Messages())
		assert.Equal(t, []string{"Aaa"}, accA.Messages())

		accAB := accA.WithPrefix("B")
		accAB.Add("bb")
		assert.Equal(t, []string{"Aaa", "ABbb"}, acc.Messages())
	})

	t.Run("merge", func(t *testing.T) {
		acc1 := &builtin.MessageAccumulator{}
		acc1.Add("one")

		acc2 := &builtin.MessageAccumulator{}
		acc2.Add("two")
		acc2.AddAll(acc1)
		assert.Equal(t, []string{"two", "one"}, acc2.Messages())
	})
}
