package events

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/shopspring/decimal"
)

const (
	WorkerEventSubject      = "worker.state"
	TransactionEventSubject = "transaction.loaded"
	ErrorEventSubject       = "worker.error"
)

var lamportsPerSOL = decimal.NewFromInt(1_000_000_000)

// LamportsToSOL renders a lamport amount as a SOL decimal string.
func LamportsToSOL(lamports uint64) string {
	return decimal.NewFromUint64(lamports).Div(lamportsPerSOL).String()
}

// WorkerEvent reports a worker lifecycle transition.
type WorkerEvent struct {
	Worker    string `json:"worker"`
	State     string `json:"state"`
	Timestamp int64  `json:"timestamp"`
}

// TransactionEvent reports one persisted transaction.
type TransactionEvent struct {
	Signature string `json:"signature"`
	Slot      uint64 `json:"slot"`
	FeeSOL    string `json:"fee_sol"`
	Timestamp int64  `json:"timestamp"`
}

// ErrorEvent reports a data-path error with enough context for manual replay.
type ErrorEvent struct {
	Worker    string `json:"worker"`
	Message   string `json:"message"`
	Timestamp int64  `json:"timestamp"`
}

type Emitter interface {
	EmitWorkerState(worker, state string) error
	EmitTransaction(ev TransactionEvent) error
	EmitError(worker string, err error) error
	Close()
}

type natsEmitter struct {
	nc            *nats.Conn
	subjectPrefix string
}

func NewNATSEmitter(nc *nats.Conn, subjectPrefix string) Emitter {
	return &natsEmitter{nc: nc, subjectPrefix: subjectPrefix}
}

func (e *natsEmitter) publish(subject string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if err := e.nc.Publish(e.subjectPrefix+"."+subject, data); err != nil {
		return fmt.Errorf("failed to publish %s: %w", subject, err)
	}
	return nil
}

func (e *natsEmitter) EmitWorkerState(worker, state string) error {
	return e.publish(WorkerEventSubject, WorkerEvent{
		Worker:    worker,
		State:     state,
		Timestamp: time.Now().UTC().Unix(),
	})
}

func (e *natsEmitter) EmitTransaction(ev TransactionEvent) error {
	ev.Timestamp = time.Now().UTC().Unix()
	return e.publish(TransactionEventSubject, ev)
}

func (e *natsEmitter) EmitError(worker string, err error) error {
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	return e.publish(ErrorEventSubject, ErrorEvent{
		Worker:    worker,
		Message:   msg,
		Timestamp: time.Now().UTC().Unix(),
	})
}

func (e *natsEmitter) Close() {
	if e.nc != nil {
		e.nc.Close()
	}
}

// NoopEmitter is used when no NATS endpoint is configured.
type NoopEmitter struct{}

func NewNoopEmitter() Emitter { return NoopEmitter{} }

func (NoopEmitter) EmitWorkerState(string, string) error   { return nil }
func (NoopEmitter) EmitTransaction(TransactionEvent) error { return nil }
func (NoopEmitter) EmitError(string, error) error          { return nil }
func (NoopEmitter) Close()                                 {}
