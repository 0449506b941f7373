package txstore

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/allartprotocol/token-indexer/pkg/infra"
)

const keyPrefix = "tx/"

// Record is a persisted transaction body keyed by signature.
type Record struct {
	Signature string          `json:"signature"`
	Slot      uint64          `json:"slot"`
	BlockTime *int64          `json:"block_time,omitempty"`
	Fee       uint64          `json:"fee"`
	Body      json.RawMessage `json:"body"`
	StoredAt  time.Time       `json:"stored_at"`
}

type Store interface {
	Put(rec Record) error
	Get(signature string) (*Record, bool, error)
	Has(signature string) (bool, error)
	Count() (int, error)
}

type kvStore struct {
	kv infra.KVStore
}

func New(kv infra.KVStore) Store {
	return &kvStore{kv: kv}
}

func (s *kvStore) txKey(signature string) string {
	return keyPrefix + signature
}

func (s *kvStore) Put(rec Record) error {
	if rec.Signature == "" {
		return fmt.Errorf("transaction record has no signature")
	}
	rec.StoredAt = time.Now().UTC()
	if err := s.kv.SetAny(s.txKey(rec.Signature), rec); err != nil {
		return fmt.Errorf("failed to store transaction %s: %w", rec.Signature, err)
	}
	return nil
}

func (s *kvStore) Get(signature string) (*Record, bool, error) {
	var rec Record
	found, err := s.kv.GetAny(s.txKey(signature), &rec)
	if err != nil {
		return nil, false, fmt.Errorf("failed to get transaction %s: %w", signature, err)
	}
	if !found {
		return nil, false, nil
	}
	return &rec, true, nil
}

func (s *kvStore) Has(signature string) (bool, error) {
	var rec Record
	found, err := s.kv.GetAny(s.txKey(signature), &rec)
	if err != nil {
		return false, fmt.Errorf("failed to check transaction %s: %w", signature, err)
	}
	return found, nil
}

func (s *kvStore) Count() (int, error) {
	pairs, err := s.kv.List(keyPrefix)
	if err != nil {
		return 0, fmt.Errorf("failed to list transactions: %w", err)
	}
	return len(pairs), nil
}
