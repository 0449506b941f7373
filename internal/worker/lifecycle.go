package worker

import (
	"github.com/allartprotocol/token-indexer/pkg/common/logger"
	"github.com/allartprotocol/token-indexer/pkg/events"
)

// lifecycle holds the control-plane state shared by both loader kinds:
// the forward-only state machine and the reply path to the dispatcher.
type lifecycle struct {
	name      string
	newClient ClientFactory
	messages  chan<- Message
	emitter   events.Emitter

	state  State
	client ChainClient
}

func (lc *lifecycle) report(kind MessageKind) {
	select {
	case lc.messages <- Message{Kind: kind, Worker: lc.name}:
	default:
		logger.Warn("Dispatcher message dropped", "worker", lc.name, "message", kind.String())
	}
}

// handleStart binds the worker to its RPC client. It only succeeds from
// NotStarted, so a worker holds exactly one client for its lifetime and a
// repeated start cannot rebind it.
func (lc *lifecycle) handleStart(cmd Command) {
	switch lc.state {
	case StateStarted:
		lc.report(MessageAlreadyStarted)
		return
	case StateStopped:
		lc.report(MessageAlreadyStopped)
		return
	}
	lc.client = lc.newClient(cmd.Client)
	lc.state = StateStarted
	lc.report(MessageStarted)
	_ = lc.emitter.EmitWorkerState(lc.name, lc.state.String())
	logger.Info("Worker started", "worker", lc.name)
}

// handleStop parks the worker. The goroutine stays alive and keeps serving
// its command channel, but Stopped is terminal for the data path.
func (lc *lifecycle) handleStop() {
	if lc.state != StateStarted {
		lc.report(MessageAlreadyStopped)
		return
	}
	lc.state = StateStopped
	lc.report(MessageStopped)
	_ = lc.emitter.EmitWorkerState(lc.name, lc.state.String())
	logger.Info("Worker stopped", "worker", lc.name)
}

func (lc *lifecycle) started() bool { return lc.state == StateStarted }
