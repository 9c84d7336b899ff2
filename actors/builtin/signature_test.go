package builtin_test

import (
	"testing"

	"github.com/filecoin-project/go-state-types/abi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/filecoin-project/go-timelock/actors/builtin"
)

func TestGenerateSignatureMethodNum(t *testing.T) {
	t.Run("known signatures", func(t *testing.T) {
		for sig, expected := range map[string]abi.MethodNum{
			"increment()":                         1437173099,
			"fail()":                              743450780,
			"relay(address,uint256,uint64,bytes)": 3131412141,
			// first chunk of the digest is below the reserved range
			"test()": 1762769070,
		} {
			num, err := builtin.GenerateSignatureMethodNum(sig)
			require.NoError(t, err)
			assert.Equal(t, expected, num, sig)
			assert.GreaterOrEqual(t, uint64(num), uint64(builtin.FirstExportedMethodNumber))
		}
	})

	t.Run("distinct signatures give distinct numbers", func(t *testing.T) {
		a, err := builtin.GenerateSignatureMethodNum("transfer(address,uint256)")
		require.NoError(t, err)
		b, err := builtin.GenerateSignatureMethodNum("transfer(address,uint128)")
		require.NoError(t, err)
		assert.NotEqual(t, a, b)
	})

	t.Run("counter methods are signature derived", func(t *testing.T) {
		assert.Equal(t, builtin.MustGenerateSignatureMethodNum(builtin.CounterIncrementSignature), builtin.MethodsCounter.Increment)
		assert.Equal(t, builtin.MustGenerateSignatureMethodNum(builtin.CounterFailSignature), builtin.MethodsCounter.Fail)
	})

	t.Run("malformed signatures", func(t *testing.T) {
		for _, sig := range []string{
			"",
			"test",
			"()",
			"test(",
			"test( )",
			"test(uint256,)",
			"1test()",
			"test() ",
		} {
			_, err := builtin.GenerateSignatureMethodNum(sig)
			assert.Error(t, err, "%q", sig)
		}
	})

	t.Run("must generate panics on malformed", func(t *testing.T) {
		assert.Panics(t, func() { builtin.MustGenerateSignatureMethodNum("nope") })
	})
}
