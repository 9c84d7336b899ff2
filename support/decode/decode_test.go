package main

import (
	"bytes"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/filecoin-project/go-timelock/actors/builtin"
)

func TestDecodeAction(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, decodeAction(&out, "85420065406b696e6372656d656e742829401903e8"))
	assert.Contains(t, out.String(), "id:        b6umwst2k4akzbo6dwftmdi4cqeuqfeg3orsba4qo2teflivhi2gq\n")
	assert.Contains(t, out.String(), fmt.Sprintf("signature: increment() (method %d)\n", builtin.MethodsCounter.Increment))
	assert.Contains(t, out.String(), "timestamp: 1000\n")

	assert.Error(t, decodeAction(&out, "zz"))
	assert.Error(t, decodeAction(&out, "01"))
}

func TestDecodeActionID(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, decodeActionID(&out, "b6umwst2k4akzbo6dwftmdi4cqeuqfeg3orsba4qo2teflivhi2gq"))
	assert.Len(t, out.String(), 65)

	assert.Error(t, decodeActionID(&out, "nope"))
}

func TestMethodNum(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, printMethodNum(&out, builtin.CounterRelaySignature))
	assert.Equal(t, fmt.Sprintf("%d\n", builtin.MethodsCounter.Relay), out.String())

	assert.Error(t, printMethodNum(&out, "not a signature"))
}

func TestDecodeInt(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, decodeInt(&out, "000a"))
	assert.Equal(t, "10\n", out.String())
}
