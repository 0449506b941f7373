package kvstore

import (
	"fmt"
	"sync"
	"testing"

	"github.com/allartprotocol/token-indexer/pkg/infra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemorySetGet(t *testing.T) {
	store := NewMemoryStore(infra.JSON)

	require.NoError(t, store.Set("k", "v"))
	v, err := store.Get("k")
	require.NoError(t, err)
	assert.Equal(t, "v", v)

	_, err = store.Get("absent")
	assert.ErrorIs(t, err, ErrKeyNotFound)
}

func TestMemoryListSortsKeys(t *testing.T) {
	store := NewMemoryStore(infra.JSON)
	for _, k := range []string{"q/3", "q/1", "q/2", "x/9"} {
		require.NoError(t, store.Set(k, k))
	}

	pairs, err := store.List("q/")
	require.NoError(t, err)
	require.Len(t, pairs, 3)
	assert.Equal(t, "q/1", pairs[0].Key)
	assert.Equal(t, "q/2", pairs[1].Key)
	assert.Equal(t, "q/3", pairs[2].Key)
}

func TestMemoryConcurrentAccess(t *testing.T) {
	store := NewMemoryStore(infra.JSON)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				key := fmt.Sprintf("k/%d/%d", n, j)
				require.NoError(t, store.SetAny(key, j))
			}
		}(i)
	}
	wg.Wait()

	pairs, err := store.List("k/")
	require.NoError(t, err)
	assert.Len(t, pairs, 400)
}

func TestFactoryBuildsMemoryStore(t *testing.T) {
	store, err := NewFromConfig(Config{Type: KVStoreTypeMemory})
	require.NoError(t, err)
	assert.Equal(t, KVStoreTypeMemory, store.GetName())
}

func TestFactoryRejectsUnknownType(t *testing.T) {
	_, err := NewFromConfig(Config{Type: "redis"})
	require.Error(t, err)
}
