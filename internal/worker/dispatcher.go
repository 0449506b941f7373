package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/allartprotocol/token-indexer/pkg/common/logger"
	"github.com/allartprotocol/token-indexer/pkg/events"
	"github.com/allartprotocol/token-indexer/pkg/store/checkpointstore"
	"github.com/allartprotocol/token-indexer/pkg/store/sigqueue"
	"github.com/allartprotocol/token-indexer/pkg/store/txstore"
)

// messageBuffer bounds the shared reply channel. Workers drop replies rather
// than block when the dispatcher falls behind.
const messageBuffer = 64

// Options wires a Dispatcher to its stores, its event sink and the RPC
// endpoint every worker is started against.
type Options struct {
	Address            string
	TransactionLoaders int
	Tick               time.Duration
	BatchLimit         int
	Policy             FailurePolicy
	Client             ClientConfig

	Checkpoints checkpointstore.Store
	Queue       sigqueue.Queue
	Txs         txstore.Store
	Emitter     events.Emitter
	NewClient   ClientFactory
}

type runner interface {
	Run(ctx context.Context)
}

type member struct {
	name     string
	commands chan Command
	run      runner
}

// Dispatcher owns the worker pool: one signatures loader plus a configurable
// number of transaction loaders. Each worker listens on its own command
// channel and reports on the shared message channel. The pool is fixed at
// construction time.
type Dispatcher struct {
	opts Options

	members  []member
	messages chan Message
	wg       sync.WaitGroup
}

func NewDispatcher(opts Options) *Dispatcher {
	if opts.NewClient == nil {
		opts.NewClient = NewSolanaChainClient
	}
	if opts.TransactionLoaders < 1 {
		opts.TransactionLoaders = 1
	}
	if opts.Policy == "" {
		opts.Policy = FailurePolicyRequeue
	}

	d := &Dispatcher{
		opts:     opts,
		messages: make(chan Message, messageBuffer),
	}

	sigCommands := make(chan Command, commandBuffer)
	d.members = append(d.members, member{
		name:     "signatures-loader",
		commands: sigCommands,
		run: NewSignaturesLoader(SignaturesLoaderOptions{
			Name:        "signatures-loader",
			Address:     opts.Address,
			BatchLimit:  opts.BatchLimit,
			Tick:        opts.Tick,
			Checkpoints: opts.Checkpoints,
			Queue:       opts.Queue,
			Emitter:     opts.Emitter,
			NewClient:   opts.NewClient,
			Commands:    sigCommands,
			Messages:    d.messages,
		}),
	})

	for i := 0; i < opts.TransactionLoaders; i++ {
		name := fmt.Sprintf("transactions-loader-%d", i)
		commands := make(chan Command, commandBuffer)
		d.members = append(d.members, member{
			name:     name,
			commands: commands,
			run: NewTransactionsLoader(TransactionsLoaderOptions{
				Name:      name,
				Policy:    opts.Policy,
				Tick:      opts.Tick,
				Queue:     opts.Queue,
				Txs:       opts.Txs,
				Emitter:   opts.Emitter,
				NewClient: opts.NewClient,
				Commands:  commands,
				Messages:  d.messages,
			}),
		})
	}

	return d
}

// Run spawns the pool, starts every worker and supervises until ctx is
// cancelled. It returns only after every worker goroutine has finished, so
// the caller can close the stores safely.
func (d *Dispatcher) Run(ctx context.Context) error {
	recovered, err := d.opts.Queue.RecoverClaims()
	if err != nil {
		return fmt.Errorf("failed to recover claimed records: %w", err)
	}
	if recovered > 0 {
		logger.Info("Recovered interrupted claims", "count", recovered)
	}

	for _, m := range d.members {
		d.wg.Add(1)
		go func(m member) {
			defer d.wg.Done()
			m.run.Run(ctx)
		}(m)
	}

	// Every worker gets its start command on its own channel.
	start := Command{Kind: CommandStart, Client: d.opts.Client}
	for _, m := range d.members {
		m.commands <- start
	}
	logger.Info("Worker pool started", "workers", len(d.members))

	for {
		select {
		case msg := <-d.messages:
			d.logMessage(msg)
		case <-ctx.Done():
			logger.Info("Shutdown requested, waiting for workers")
			d.wg.Wait()
			d.drainMessages()
			logger.Info("Worker pool finished")
			return nil
		}
	}
}

// Send delivers a command to the named worker without blocking.
func (d *Dispatcher) Send(name string, cmd Command) error {
	for _, m := range d.members {
		if m.name != name {
			continue
		}
		select {
		case m.commands <- cmd:
			return nil
		default:
			return fmt.Errorf("command channel full for worker %s", name)
		}
	}
	return fmt.Errorf("unknown worker %s", name)
}

// Workers lists the pool members in spawn order.
func (d *Dispatcher) Workers() []string {
	names := make([]string, 0, len(d.members))
	for _, m := range d.members {
		names = append(names, m.name)
	}
	return names
}

func (d *Dispatcher) logMessage(msg Message) {
	switch msg.Kind {
	case MessageStarted, MessageStopped:
		logger.Info("Worker state changed", "worker", msg.Worker, "state", msg.Kind.String())
	case MessageAlreadyStarted, MessageAlreadyStopped:
		logger.Warn("Redundant command", "worker", msg.Worker, "state", msg.Kind.String())
	}
}

func (d *Dispatcher) drainMessages() {
	for {
		select {
		case msg := <-d.messages:
			d.logMessage(msg)
		default:
			return
		}
	}
}
