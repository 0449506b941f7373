package kvstore

import (
	"sort"
	"strings"
	"sync"

	"github.com/allartprotocol/token-indexer/pkg/infra"
	"github.com/hashicorp/consul/api"
)

const KVStoreTypeMemory = "memory"

// MemoryStore is a process-local KVStore. It backs tests and throwaway runs
// where nothing needs to survive a restart.
type MemoryStore struct {
	mu    sync.RWMutex
	data  map[string][]byte
	codec infra.Codec
}

func NewMemoryStore(codec infra.Codec) *MemoryStore {
	return &MemoryStore{
		data:  make(map[string][]byte),
		codec: codec,
	}
}

func (m *MemoryStore) GetName() string {
	return KVStoreTypeMemory
}

func (m *MemoryStore) Set(k string, v string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[k] = []byte(v)
	return nil
}

func (m *MemoryStore) Get(k string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[k]
	if !ok {
		return "", ErrKeyNotFound
	}
	return string(v), nil
}

func (m *MemoryStore) GetWithOptions(k string, _ *api.QueryOptions) (string, error) {
	return m.Get(k)
}

func (m *MemoryStore) SetAny(k string, v any) error {
	data, err := m.codec.Marshal(v)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[k] = data
	return nil
}

func (m *MemoryStore) GetAny(k string, v any) (bool, error) {
	m.mu.RLock()
	data, ok := m.data[k]
	m.mu.RUnlock()
	if !ok {
		return false, nil
	}
	if err := m.codec.Unmarshal(data, v); err != nil {
		return false, err
	}
	return true, nil
}

// List returns pairs under prefix in ascending key order, matching the
// iteration order of the durable backends.
func (m *MemoryStore) List(prefix string) ([]*infra.KVPair, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var pairs []*infra.KVPair
	for k, v := range m.data {
		if !strings.HasPrefix(k, prefix) {
			continue
		}
		value := make([]byte, len(v))
		copy(value, v)
		pairs = append(pairs, &infra.KVPair{Key: k, Value: value})
	}
	sort.Slice(pairs, func(i, j int) bool { return pairs[i].Key < pairs[j].Key })
	return pairs, nil
}

func (m *MemoryStore) Delete(k string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, k)
	return nil
}

func (m *MemoryStore) Close() error {
	return nil
}
