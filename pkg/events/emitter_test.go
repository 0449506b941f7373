package events

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLamportsToSOL(t *testing.T) {
	assert.Equal(t, "0", LamportsToSOL(0))
	assert.Equal(t, "0.000005", LamportsToSOL(5000))
	assert.Equal(t, "1", LamportsToSOL(1_000_000_000))
	assert.Equal(t, "1.5", LamportsToSOL(1_500_000_000))
	assert.Equal(t, "0.000000001", LamportsToSOL(1))
}

func TestNoopEmitter(t *testing.T) {
	e := NewNoopEmitter()
	assert.NoError(t, e.EmitWorkerState("w", "started"))
	assert.NoError(t, e.EmitTransaction(TransactionEvent{Signature: "sig"}))
	assert.NoError(t, e.EmitError("w", assert.AnError))
	e.Close()
}
