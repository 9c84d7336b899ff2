package builtin

import (
	"io"
	"testing"

	"github.com/filecoin-project/go-state-types/abi"
	"github.com/filecoin-project/go-state-types/cbor"
	rtt "github.com/filecoin-project/go-state-types/rt"
	"github.com/ipfs/go-cid"
	"github.com/stretchr/testify/assert"
	cbg "github.com/whyrusleeping/cbor-gen"

	"github.com/filecoin-project/go-timelock/actors/runtime"
)

type stateMock struct{}

func (s *stateMock) MarshalCBOR(w io.Writer) error {
	if s == nil {
		_, err := w.Write(cbg.CborNull)
		return err
	}

	return nil
}

func (s *stateMock) UnmarshalCBOR(r io.Reader) error {
	*s = stateMock{}

	return nil
}

type actorMock struct {
	code cid.Cid
}

func (a actorMock) Exports() map[abi.MethodNum]runtime.MethodMeta {
	return map[abi.MethodNum]runtime.MethodMeta{
		MethodConstructor: {Name: "Constructor", Method: a.Constructor},
	}
}

func (a actorMock) Code() cid.Cid {
	return a.code
}

func (a actorMock) IsSingleton() bool {
	return true
}

func (a actorMock) State() cbor.Er { return new(stateMock) }

func (a actorMock) Constructor(rt runtime.Runtime, _ *abi.EmptyValue) *abi.EmptyValue {
	rt.Log(GetActorLogLevel(a, rtt.DEBUG), "Constructor func")

	return nil
}

func TestActorLogLevel(t *testing.T) {
	mock := actorMock{code: SystemActorCodeID}
	defer ResetActorsLogLevel(mock)

	t.Run("log with default", func(t *testing.T) {
		assert.Equal(t, rtt.DEBUG, GetActorLogLevel(mock, rtt.DEBUG))
		assert.Equal(t, rtt.INFO, GetActorLogLevel(mock, rtt.INFO))
		assert.Equal(t, rtt.WARN, GetActorLogLevel(mock, rtt.WARN))
		assert.Equal(t, rtt.ERROR, GetActorLogLevel(mock, rtt.ERROR))
	})

	t.Run("override ignores default", func(t *testing.T) {
		for _, def := range []rtt.LogLevel{rtt.DEBUG, rtt.INFO, rtt.WARN, rtt.ERROR} {
			for _, set := range []rtt.LogLevel{rtt.DEBUG, rtt.INFO, rtt.WARN, rtt.ERROR} {
				SetActorsLogLevel(set, mock)
				assert.Equal(t, set, GetActorLogLevel(mock, def))
			}
		}
	})

	t.Run("override is per actor code", func(t *testing.T) {
		other := actorMock{code: InitActorCodeID}
		SetActorsLogLevel(rtt.ERROR, mock)
		assert.Equal(t, rtt.ERROR, GetActorLogLevel(mock, rtt.DEBUG))
		assert.Equal(t, rtt.DEBUG, GetActorLogLevel(other, rtt.DEBUG))
	})

	t.Run("reset restores default", func(t *testing.T) {
		SetActorsLogLevel(rtt.WARN, mock)
		ResetActorsLogLevel(mock)
		assert.Equal(t, rtt.INFO, GetActorLogLevel(mock, rtt.INFO))
	})
}
