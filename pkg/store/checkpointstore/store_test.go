package checkpointstore

import (
	"testing"

	"github.com/allartprotocol/token-indexer/pkg/infra"
	"github.com/allartprotocol/token-indexer/pkg/kvstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSaveAndLoad(t *testing.T) {
	store := New(kvstore.NewMemoryStore(infra.JSON))

	cp := Checkpoint{
		NewestTransaction: "sigNewest",
		Before:            "sigBefore",
		Until:             "sigUntil",
	}
	require.NoError(t, store.Save("signatures-loader", cp))

	loaded := store.Load("signatures-loader")
	assert.Equal(t, cp.NewestTransaction, loaded.NewestTransaction)
	assert.Equal(t, cp.Before, loaded.Before)
	assert.Equal(t, cp.Until, loaded.Until)
	assert.False(t, loaded.UpdatedAt.IsZero())
}

func TestLoadMissingIsColdStart(t *testing.T) {
	store := New(kvstore.NewMemoryStore(infra.JSON))

	loaded := store.Load("signatures-loader")
	assert.True(t, loaded.IsZero())
}

func TestLoadCorruptIsColdStart(t *testing.T) {
	kv := kvstore.NewMemoryStore(infra.JSON)
	require.NoError(t, kv.Set("checkpoint/signatures-loader", "not json"))

	store := New(kv)
	loaded := store.Load("signatures-loader")
	assert.True(t, loaded.IsZero())
}

func TestDeleteForcesColdStart(t *testing.T) {
	store := New(kvstore.NewMemoryStore(infra.JSON))
	require.NoError(t, store.Save("w", Checkpoint{Until: "sig1"}))
	require.NoError(t, store.Delete("w"))

	assert.True(t, store.Load("w").IsZero())
}

func TestWorkersAreIsolated(t *testing.T) {
	store := New(kvstore.NewMemoryStore(infra.JSON))
	require.NoError(t, store.Save("a", Checkpoint{Until: "sigA"}))
	require.NoError(t, store.Save("b", Checkpoint{Until: "sigB"}))

	assert.Equal(t, "sigA", store.Load("a").Until)
	assert.Equal(t, "sigB", store.Load("b").Until)
}

func TestIsZero(t *testing.T) {
	assert.True(t, Checkpoint{}.IsZero())
	assert.False(t, Checkpoint{Before: "sig"}.IsZero())
	assert.False(t, Checkpoint{Until: "sig"}.IsZero())
	assert.False(t, Checkpoint{NewestTransaction: "sig"}.IsZero())
}
