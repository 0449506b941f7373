package worker

import (
	"context"
	"time"

	"github.com/allartprotocol/token-indexer/pkg/common/logger"
	"github.com/allartprotocol/token-indexer/pkg/events"
	"github.com/allartprotocol/token-indexer/pkg/store/checkpointstore"
	"github.com/allartprotocol/token-indexer/pkg/store/sigqueue"
)

// SignaturesLoader walks an address's signature history backwards in pages
// and feeds every discovered signature into the durable queue. Its cursors
// live in a checkpoint that is loaded once at startup and saved once at
// shutdown, so a crash costs at most one sweep of re-discovery.
type SignaturesLoader struct {
	lifecycle

	address    string
	batchLimit int
	tick       time.Duration

	checkpoints checkpointstore.Store
	queue       sigqueue.Queue

	commands <-chan Command
	cp       checkpointstore.Checkpoint
}

type SignaturesLoaderOptions struct {
	Name        string
	Address     string
	BatchLimit  int
	Tick        time.Duration
	Checkpoints checkpointstore.Store
	Queue       sigqueue.Queue
	Emitter     events.Emitter
	NewClient   ClientFactory
	Commands    <-chan Command
	Messages    chan<- Message
}

func NewSignaturesLoader(opts SignaturesLoaderOptions) *SignaturesLoader {
	return &SignaturesLoader{
		lifecycle: lifecycle{
			name:      opts.Name,
			newClient: opts.NewClient,
			messages:  opts.Messages,
			emitter:   opts.Emitter,
		},
		address:     opts.Address,
		batchLimit:  opts.BatchLimit,
		tick:        opts.Tick,
		checkpoints: opts.Checkpoints,
		queue:       opts.Queue,
		commands:    opts.Commands,
	}
}

// Run drives the worker until ctx is cancelled. The final checkpoint write
// happens here, on the way out.
func (l *SignaturesLoader) Run(ctx context.Context) {
	l.cp = l.checkpoints.Load(l.name)
	logger.Info("Signatures loader running",
		"worker", l.name, "address", l.address,
		"before", l.cp.Before, "until", l.cp.Until)

	ticker := time.NewTicker(l.tick)
	defer ticker.Stop()

	for {
		select {
		case cmd := <-l.commands:
			l.handleCommand(cmd)
		case <-ctx.Done():
			if err := l.checkpoints.Save(l.name, l.cp); err != nil {
				logger.Error("Failed to save checkpoint", "worker", l.name, "err", err)
				_ = l.emitter.EmitError(l.name, err)
			}
			logger.Info("Signatures loader exiting", "worker", l.name)
			return
		case <-ticker.C:
			if l.started() {
				l.tickOnce(ctx)
			}
		}
	}
}

func (l *SignaturesLoader) handleCommand(cmd Command) {
	switch cmd.Kind {
	case CommandStart:
		l.handleStart(cmd)
	case CommandStop:
		l.handleStop()
	case CommandLoad:
		if !l.started() {
			logger.Warn("Load ignored while not started", "worker", l.name)
			return
		}
		// Abandon the sweep in progress and rescan with the given bounds.
		l.cp = checkpointstore.Checkpoint{Before: cmd.Before, Until: cmd.Until}
		logger.Info("Cursors replaced", "worker", l.name, "before", cmd.Before, "until", cmd.Until)
	}
}

// tickOnce fetches one page and advances the cursors. The in-memory
// checkpoint only moves after the page is safely enqueued, so an enqueue
// failure re-fetches the same page on the next tick instead of losing it.
func (l *SignaturesLoader) tickOnce(ctx context.Context) {
	cp := l.cp
	page, err := l.client.GetSignaturesForAddress(ctx, l.address, cp.Before, cp.Until, l.batchLimit)
	if err != nil {
		logger.Error("Failed to fetch signatures", "worker", l.name, "before", cp.Before, "err", err)
		_ = l.emitter.EmitError(l.name, err)
		return
	}

	next := cp
	if len(page) > 0 && next.NewestTransaction == "" {
		next.NewestTransaction = page[0].Signature
	}
	if len(page) < l.batchLimit {
		// Short page: the bounded range is exhausted. Seal the sweep so the
		// next pass only covers what arrived above everything seen so far.
		if next.NewestTransaction != "" {
			next.Until = next.NewestTransaction
		}
		next.Before = ""
		next.NewestTransaction = ""
	} else {
		next.Before = page[len(page)-1].Signature
	}

	if len(page) > 0 {
		batch := make([]sigqueue.Item, 0, len(page))
		for _, info := range page {
			batch = append(batch, sigqueue.Item{Signature: info.Signature, Slot: info.Slot})
		}
		if err := l.queue.Enqueue(batch); err != nil {
			logger.Error("Failed to enqueue signatures", "worker", l.name, "count", len(batch), "err", err)
			_ = l.emitter.EmitError(l.name, err)
			return
		}
		logger.Debug("Enqueued signatures", "worker", l.name, "count", len(batch))
	}

	l.cp = next
}
