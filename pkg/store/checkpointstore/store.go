package checkpointstore

import (
	"fmt"
	"time"

	"github.com/allartprotocol/token-indexer/pkg/common/logger"
	"github.com/allartprotocol/token-indexer/pkg/infra"
)

const keyPrefix = "checkpoint/"

// Checkpoint tracks the pagination cursors of one discovery worker.
//
// Before and Until are keyset cursors bounding the next page request:
// "before" is the exclusive upper bound, "until" the exclusive lower bound.
// NewestTransaction anchors the most recent signature seen in the current
// sweep; it seals the bottom of the next backward pass.
type Checkpoint struct {
	NewestTransaction string    `json:"newest_transaction,omitempty"`
	Before            string    `json:"before,omitempty"`
	Until             string    `json:"until,omitempty"`
	UpdatedAt         time.Time `json:"updated_at,omitempty"`
}

// IsZero reports whether the checkpoint carries no cursors (cold start).
func (c Checkpoint) IsZero() bool {
	return c.NewestTransaction == "" && c.Before == "" && c.Until == ""
}

type Store interface {
	// Load returns the persisted checkpoint for the worker. A missing or
	// undecodable record degrades to the zero checkpoint; Load never fails
	// the caller.
	Load(workerID string) Checkpoint
	// Save overwrites the persisted checkpoint. A write failure is returned
	// and fails a clean shutdown.
	Save(workerID string, cp Checkpoint) error
	// Delete removes the checkpoint, forcing a cold start on next run.
	Delete(workerID string) error
}

type kvStore struct {
	kv infra.KVStore
}

func New(kv infra.KVStore) Store {
	return &kvStore{kv: kv}
}

func (s *kvStore) checkpointKey(workerID string) string {
	return keyPrefix + workerID
}

func (s *kvStore) Load(workerID string) Checkpoint {
	var cp Checkpoint
	found, err := s.kv.GetAny(s.checkpointKey(workerID), &cp)
	if err != nil {
		logger.Warn("Checkpoint unreadable, starting from scratch", "worker", workerID, "err", err)
		return Checkpoint{}
	}
	if !found {
		return Checkpoint{}
	}
	return cp
}

func (s *kvStore) Save(workerID string, cp Checkpoint) error {
	cp.UpdatedAt = time.Now().UTC()
	if err := s.kv.SetAny(s.checkpointKey(workerID), cp); err != nil {
		return fmt.Errorf("failed to save checkpoint for %s: %w", workerID, err)
	}
	return nil
}

func (s *kvStore) Delete(workerID string) error {
	if err := s.kv.Delete(s.checkpointKey(workerID)); err != nil {
		return fmt.Errorf("failed to delete checkpoint for %s: %w", workerID, err)
	}
	return nil
}
