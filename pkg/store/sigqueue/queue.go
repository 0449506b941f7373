package sigqueue

import (
	"fmt"
	"sync"
	"time"

	"github.com/allartprotocol/token-indexer/pkg/infra"
)

const (
	pendingPrefix = "queue/pending/"
	claimedPrefix = "queue/claimed/"
	loadedPrefix  = "queue/loaded/"
	failedPrefix  = "queue/failed/"
	seenPrefix    = "queue/seen/"
	seqKey        = "queue/seq"
)

// Item is one signature handed to Enqueue.
type Item struct {
	Signature string
	Slot      uint64
}

// Entry is the persisted form of a queued signature.
type Entry struct {
	RecordID   uint64    `json:"record_id"`
	Signature  string    `json:"signature"`
	Slot       uint64    `json:"slot"`
	EnqueuedAt time.Time `json:"enqueued_at"`
}

// Claim is an exclusively held queue entry. The holder must finish it with
// MarkLoaded, Requeue or MarkFailed.
type Claim struct {
	RecordID  uint64
	Signature string
	Slot      uint64
}

// Queue is a durable work queue of discovered signatures. Dequeue hands each
// record to at most one caller until that record is marked loaded, requeued
// or marked failed.
type Queue interface {
	// Enqueue appends the batch in order. Signatures already known to the
	// queue are skipped, so re-discovery after a lost checkpoint is harmless.
	Enqueue(batch []Item) error
	// Dequeue atomically claims the oldest pending entry, or returns nil
	// when the queue is empty.
	Dequeue() (*Claim, error)
	// MarkLoaded completes a claimed record after its transaction body has
	// been persisted.
	MarkLoaded(recordID uint64) error
	// Requeue returns a claimed record to the pending set, preserving its
	// position.
	Requeue(recordID uint64) error
	// MarkFailed abandons a claimed record, keeping it for manual replay.
	MarkFailed(recordID uint64, reason string) error
	// RecoverClaims moves entries claimed by a previous run back to pending.
	RecoverClaims() (int, error)
	PendingCount() (int, error)
}

type kvQueue struct {
	mu sync.Mutex
	kv infra.KVStore
}

func New(kv infra.KVStore) Queue {
	return &kvQueue{kv: kv}
}

func recordKey(prefix string, recordID uint64) string {
	// Zero-padded so lexicographic key order matches enqueue order.
	return fmt.Sprintf("%s%020d", prefix, recordID)
}

// nextSeq must be called with q.mu held.
func (q *kvQueue) nextSeq() (uint64, error) {
	var seq uint64
	if _, err := q.kv.GetAny(seqKey, &seq); err != nil {
		return 0, fmt.Errorf("failed to read queue sequence: %w", err)
	}
	seq++
	if err := q.kv.SetAny(seqKey, seq); err != nil {
		return 0, fmt.Errorf("failed to advance queue sequence: %w", err)
	}
	return seq, nil
}

func (q *kvQueue) Enqueue(batch []Item) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	for _, item := range batch {
		seenKey := seenPrefix + item.Signature
		var existing uint64
		found, err := q.kv.GetAny(seenKey, &existing)
		if err != nil {
			return fmt.Errorf("failed to check signature %s: %w", item.Signature, err)
		}
		if found {
			continue
		}

		id, err := q.nextSeq()
		if err != nil {
			return err
		}
		entry := Entry{
			RecordID:   id,
			Signature:  item.Signature,
			Slot:       item.Slot,
			EnqueuedAt: time.Now().UTC(),
		}
		if err := q.kv.SetAny(recordKey(pendingPrefix, id), entry); err != nil {
			return fmt.Errorf("failed to enqueue signature %s: %w", item.Signature, err)
		}
		if err := q.kv.SetAny(seenKey, id); err != nil {
			return fmt.Errorf("failed to index signature %s: %w", item.Signature, err)
		}
	}
	return nil
}

func (q *kvQueue) Dequeue() (*Claim, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	pairs, err := q.kv.List(pendingPrefix)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending queue: %w", err)
	}
	if len(pairs) == 0 {
		return nil, nil
	}

	var entry Entry
	if err := infra.JSON.Unmarshal(pairs[0].Value, &entry); err != nil {
		return nil, fmt.Errorf("corrupt queue entry %s: %w", pairs[0].Key, err)
	}

	// Claim first, then remove from pending: a crash in between leaves the
	// record in both sets and RecoverClaims folds it back to one.
	if err := q.kv.SetAny(recordKey(claimedPrefix, entry.RecordID), entry); err != nil {
		return nil, fmt.Errorf("failed to claim record %d: %w", entry.RecordID, err)
	}
	if err := q.kv.Delete(recordKey(pendingPrefix, entry.RecordID)); err != nil {
		return nil, fmt.Errorf("failed to remove pending record %d: %w", entry.RecordID, err)
	}

	return &Claim{RecordID: entry.RecordID, Signature: entry.Signature, Slot: entry.Slot}, nil
}

func (q *kvQueue) takeClaimed(recordID uint64) (Entry, error) {
	var entry Entry
	found, err := q.kv.GetAny(recordKey(claimedPrefix, recordID), &entry)
	if err != nil {
		return entry, fmt.Errorf("failed to read claimed record %d: %w", recordID, err)
	}
	if !found {
		return entry, fmt.Errorf("record %d is not claimed", recordID)
	}
	return entry, nil
}

func (q *kvQueue) MarkLoaded(recordID uint64) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	entry, err := q.takeClaimed(recordID)
	if err != nil {
		return err
	}
	loaded := struct {
		Entry
		LoadedAt time.Time `json:"loaded_at"`
	}{Entry: entry, LoadedAt: time.Now().UTC()}

	if err := q.kv.SetAny(recordKey(loadedPrefix, recordID), loaded); err != nil {
		return fmt.Errorf("failed to mark record %d loaded: %w", recordID, err)
	}
	if err := q.kv.Delete(recordKey(claimedPrefix, recordID)); err != nil {
		return fmt.Errorf("failed to release claimed record %d: %w", recordID, err)
	}
	return nil
}

func (q *kvQueue) Requeue(recordID uint64) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.requeueLocked(recordID)
}

func (q *kvQueue) requeueLocked(recordID uint64) error {
	entry, err := q.takeClaimed(recordID)
	if err != nil {
		return err
	}
	if err := q.kv.SetAny(recordKey(pendingPrefix, recordID), entry); err != nil {
		return fmt.Errorf("failed to requeue record %d: %w", recordID, err)
	}
	if err := q.kv.Delete(recordKey(claimedPrefix, recordID)); err != nil {
		return fmt.Errorf("failed to release claimed record %d: %w", recordID, err)
	}
	return nil
}

func (q *kvQueue) MarkFailed(recordID uint64, reason string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	entry, err := q.takeClaimed(recordID)
	if err != nil {
		return err
	}
	failed := struct {
		Entry
		Reason   string    `json:"reason"`
		FailedAt time.Time `json:"failed_at"`
	}{Entry: entry, Reason: reason, FailedAt: time.Now().UTC()}

	if err := q.kv.SetAny(recordKey(failedPrefix, recordID), failed); err != nil {
		return fmt.Errorf("failed to mark record %d failed: %w", recordID, err)
	}
	if err := q.kv.Delete(recordKey(claimedPrefix, recordID)); err != nil {
		return fmt.Errorf("failed to release claimed record %d: %w", recordID, err)
	}
	return nil
}

func (q *kvQueue) RecoverClaims() (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	pairs, err := q.kv.List(claimedPrefix)
	if err != nil {
		return 0, fmt.Errorf("failed to list claimed records: %w", err)
	}

	recovered := 0
	for _, pair := range pairs {
		var entry Entry
		if err := infra.JSON.Unmarshal(pair.Value, &entry); err != nil {
			return recovered, fmt.Errorf("corrupt claimed entry %s: %w", pair.Key, err)
		}
		if err := q.requeueLocked(entry.RecordID); err != nil {
			return recovered, err
		}
		recovered++
	}
	return recovered, nil
}

func (q *kvQueue) PendingCount() (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	pairs, err := q.kv.List(pendingPrefix)
	if err != nil {
		return 0, fmt.Errorf("failed to list pending queue: %w", err)
	}
	return len(pairs), nil
}
