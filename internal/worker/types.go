package worker

import (
	"context"
	"time"

	"github.com/allartprotocol/token-indexer/internal/rpc"
	"github.com/allartprotocol/token-indexer/pkg/ratelimiter"
)

// State is the lifecycle phase of a worker. Transitions only move forward:
// NotStarted -> Started -> Stopped.
type State int

const (
	StateNotStarted State = iota
	StateStarted
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateNotStarted:
		return "not started"
	case StateStarted:
		return "started"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// CommandKind tags a Command sent to a worker.
type CommandKind int

const (
	// CommandStart activates a not-yet-started worker with an RPC endpoint.
	CommandStart CommandKind = iota
	// CommandStop deactivates a started worker. The worker keeps draining
	// its command channel but does no more data work.
	CommandStop
	// CommandLoad replaces the in-memory cursors. With empty bounds it
	// restarts discovery from the head of the history.
	CommandLoad
)

func (k CommandKind) String() string {
	switch k {
	case CommandStart:
		return "start"
	case CommandStop:
		return "stop"
	case CommandLoad:
		return "load"
	default:
		return "unknown"
	}
}

// Command is a control instruction delivered on a worker's dedicated
// command channel. Client is set on Start, Before/Until on Load.
type Command struct {
	Kind   CommandKind
	Client ClientConfig
	Before string
	Until  string
}

// ClientConfig carries the RPC endpoint a Start command binds the worker to.
type ClientConfig struct {
	URL         string
	Auth        *rpc.AuthConfig
	Timeout     time.Duration
	MaxRetries  int
	RetryDelay  time.Duration
	RateLimiter *ratelimiter.RateLimiter
}

// MessageKind tags a Message reported by a worker.
type MessageKind int

const (
	MessageStarted MessageKind = iota
	MessageStopped
	MessageAlreadyStarted
	MessageAlreadyStopped
)

func (k MessageKind) String() string {
	switch k {
	case MessageStarted:
		return "started"
	case MessageStopped:
		return "stopped"
	case MessageAlreadyStarted:
		return "already started"
	case MessageAlreadyStopped:
		return "already stopped"
	default:
		return "unknown"
	}
}

// Message is a worker's reply to a lifecycle command, reported on the shared
// dispatcher channel. Informational; the dispatcher drains and logs them.
type Message struct {
	Kind   MessageKind
	Worker string
}

// ChainClient is the slice of the RPC surface the workers consume.
type ChainClient interface {
	GetSignaturesForAddress(ctx context.Context, address, before, until string, limit int) ([]rpc.SignatureInfo, error)
	GetTransaction(ctx context.Context, signature string) (*rpc.TransactionResult, error)
}

// ClientFactory builds a ChainClient from a Start command's endpoint.
type ClientFactory func(cfg ClientConfig) ChainClient

// NewSolanaChainClient is the production ClientFactory.
func NewSolanaChainClient(cfg ClientConfig) ChainClient {
	client := rpc.NewSolanaClient(cfg.URL, cfg.Auth, cfg.Timeout, cfg.RateLimiter)
	if cfg.MaxRetries > 0 {
		client.WithRetry(cfg.MaxRetries, cfg.RetryDelay)
	}
	return client
}

// FailurePolicy decides the fate of a claimed queue entry whose
// transaction fetch failed.
type FailurePolicy string

const (
	// FailurePolicyRequeue returns the entry to the pending set for another
	// attempt on a later tick.
	FailurePolicyRequeue FailurePolicy = "requeue"
	// FailurePolicyDrop moves the entry to the failed set for manual replay.
	FailurePolicyDrop FailurePolicy = "drop"
)

// commandBuffer is the depth of each worker's command channel. Control
// traffic is rare; a small buffer keeps the dispatcher from blocking.
const commandBuffer = 8
