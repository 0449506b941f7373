package worker

import (
	"context"
	"errors"
	"time"

	"github.com/allartprotocol/token-indexer/internal/rpc"
	"github.com/allartprotocol/token-indexer/pkg/common/logger"
	"github.com/allartprotocol/token-indexer/pkg/events"
	"github.com/allartprotocol/token-indexer/pkg/store/sigqueue"
	"github.com/allartprotocol/token-indexer/pkg/store/txstore"
)

// TransactionsLoader drains the signature queue one claim per tick, fetches
// the full transaction body and persists it. Several instances run against
// the same queue; the claim protocol keeps them off each other's records.
type TransactionsLoader struct {
	lifecycle

	policy FailurePolicy
	tick   time.Duration

	queue sigqueue.Queue
	txs   txstore.Store

	commands <-chan Command
}

type TransactionsLoaderOptions struct {
	Name      string
	Policy    FailurePolicy
	Tick      time.Duration
	Queue     sigqueue.Queue
	Txs       txstore.Store
	Emitter   events.Emitter
	NewClient ClientFactory
	Commands  <-chan Command
	Messages  chan<- Message
}

func NewTransactionsLoader(opts TransactionsLoaderOptions) *TransactionsLoader {
	return &TransactionsLoader{
		lifecycle: lifecycle{
			name:      opts.Name,
			newClient: opts.NewClient,
			messages:  opts.Messages,
			emitter:   opts.Emitter,
		},
		policy:   opts.Policy,
		tick:     opts.Tick,
		queue:    opts.Queue,
		txs:      opts.Txs,
		commands: opts.Commands,
	}
}

func (l *TransactionsLoader) Run(ctx context.Context) {
	logger.Info("Transactions loader running", "worker", l.name, "policy", string(l.policy))

	ticker := time.NewTicker(l.tick)
	defer ticker.Stop()

	for {
		select {
		case cmd := <-l.commands:
			l.handleCommand(cmd)
		case <-ctx.Done():
			logger.Info("Transactions loader exiting", "worker", l.name)
			return
		case <-ticker.C:
			if l.started() {
				l.tickOnce(ctx)
			}
		}
	}
}

func (l *TransactionsLoader) handleCommand(cmd Command) {
	switch cmd.Kind {
	case CommandStart:
		l.handleStart(cmd)
	case CommandStop:
		l.handleStop()
	case CommandLoad:
		logger.Warn("Load only applies to discovery workers", "worker", l.name)
	}
}

func (l *TransactionsLoader) tickOnce(ctx context.Context) {
	claim, err := l.queue.Dequeue()
	if err != nil {
		logger.Error("Failed to dequeue", "worker", l.name, "err", err)
		_ = l.emitter.EmitError(l.name, err)
		return
	}
	if claim == nil {
		return
	}

	tx, err := l.client.GetTransaction(ctx, claim.Signature)
	if err != nil {
		if errors.Is(err, rpc.ErrTxNotFound) {
			logger.Warn("Transaction unknown to node", "worker", l.name, "signature", claim.Signature)
		} else {
			logger.Error("Failed to fetch transaction", "worker", l.name, "signature", claim.Signature, "err", err)
		}
		_ = l.emitter.EmitError(l.name, err)
		l.settleFailure(claim, err)
		return
	}

	rec := txstore.Record{
		Signature: claim.Signature,
		Slot:      tx.Slot,
		BlockTime: tx.BlockTime,
		Body:      tx.Raw,
	}
	if rec.Slot == 0 {
		rec.Slot = claim.Slot
	}
	if tx.Meta != nil {
		rec.Fee = tx.Meta.Fee
	}

	if err := l.txs.Put(rec); err != nil {
		logger.Error("Failed to store transaction", "worker", l.name, "signature", claim.Signature, "err", err)
		_ = l.emitter.EmitError(l.name, err)
		l.settleFailure(claim, err)
		return
	}

	_ = l.emitter.EmitTransaction(events.TransactionEvent{
		Signature: rec.Signature,
		Slot:      rec.Slot,
		FeeSOL:    events.LamportsToSOL(rec.Fee),
	})

	if err := l.queue.MarkLoaded(claim.RecordID); err != nil {
		logger.Error("Failed to mark record loaded", "worker", l.name, "record", claim.RecordID, "err", err)
		_ = l.emitter.EmitError(l.name, err)
	}
}

// settleFailure applies the configured failure policy to a claim that could
// not be completed.
func (l *TransactionsLoader) settleFailure(claim *sigqueue.Claim, cause error) {
	switch l.policy {
	case FailurePolicyDrop:
		if err := l.queue.MarkFailed(claim.RecordID, cause.Error()); err != nil {
			logger.Error("Failed to mark record failed", "worker", l.name, "record", claim.RecordID, "err", err)
		}
	default:
		if err := l.queue.Requeue(claim.RecordID); err != nil {
			logger.Error("Failed to requeue record", "worker", l.name, "record", claim.RecordID, "err", err)
		}
	}
}
