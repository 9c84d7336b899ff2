package mock

import (
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/filecoin-project/go-timelock/actors/builtin"
	"github.com/filecoin-project/go-timelock/actors/runtime"
)

// Checks that every method an actor exports can be invoked by a runtime, and that methods
// addressed by function signature are exported under the number derived from that signature.
func CheckActorExports(t *testing.T, act runtime.VMActor) {
	exports := act.Exports()
	require.Contains(t, exports, builtin.MethodConstructor, "actor %s has no constructor", builtin.ActorNameByCode(act.Code()))

	for num, meta := range exports {
		require.NotNil(t, meta.Method, "method %d is nil", num)
		assert.NotEmpty(t, meta.Name, "method %d has no name", num)

		mt := reflect.TypeOf(meta.Method)
		require.Equal(t, reflect.Func, mt.Kind(), "%s is not a function", meta.Name)
		require.Equal(t, 2, mt.NumIn(), "%s must have two parameters", meta.Name)
		assert.Equal(t, typeOfRuntimeInterface, mt.In(0), "%s first parameter must be runtime", meta.Name)
		assert.Equal(t, reflect.Ptr, mt.In(1).Kind(), "%s second parameter must be a pointer", meta.Name)
		assert.True(t, mt.In(1).Implements(typeOfCborUnmarshaler), "%s params must be CBOR-unmarshalable", meta.Name)
		require.Equal(t, 1, mt.NumOut(), "%s must return a single value", meta.Name)
		assert.True(t, mt.Out(0).Implements(typeOfCborMarshaler), "%s must return a CBOR-marshalable value", meta.Name)

		if num >= builtin.FirstExportedMethodNumber {
			derived, err := builtin.GenerateSignatureMethodNum(meta.Name)
			require.NoError(t, err)
			assert.Equal(t, derived, num, "%s exported under %d, its signature derives %d", meta.Name, num, derived)
		}
	}
}
