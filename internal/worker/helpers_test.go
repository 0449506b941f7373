package worker

import (
	"context"
	"errors"
	"sync"

	"github.com/allartprotocol/token-indexer/internal/rpc"
	"github.com/allartprotocol/token-indexer/pkg/events"
	"github.com/allartprotocol/token-indexer/pkg/store/sigqueue"
)

// fakeChain scripts RPC responses: signature pages are consumed in order,
// transactions are looked up by signature.
type fakeChain struct {
	mu        sync.Mutex
	pages     [][]rpc.SignatureInfo
	pageCalls []pageRequest
	txs       map[string]*rpc.TransactionResult
	txErrs    map[string]error
}

type pageRequest struct {
	before string
	until  string
}

func (f *fakeChain) GetSignaturesForAddress(_ context.Context, _, before, until string, _ int) ([]rpc.SignatureInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pageCalls = append(f.pageCalls, pageRequest{before: before, until: until})
	if len(f.pages) == 0 {
		return nil, nil
	}
	page := f.pages[0]
	f.pages = f.pages[1:]
	return page, nil
}

func (f *fakeChain) GetTransaction(_ context.Context, signature string) (*rpc.TransactionResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.txErrs[signature]; ok {
		return nil, err
	}
	if tx, ok := f.txs[signature]; ok {
		return tx, nil
	}
	return nil, rpc.ErrTxNotFound
}

func (f *fakeChain) requests() []pageRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]pageRequest(nil), f.pageCalls...)
}

// countingFactory wraps a fakeChain and records how many clients were built.
type countingFactory struct {
	mu    sync.Mutex
	chain *fakeChain
	calls int
}

func (c *countingFactory) factory(ClientConfig) ChainClient {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	return c.chain
}

func (c *countingFactory) built() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

// recordingEmitter captures emitted events for assertions.
type recordingEmitter struct {
	mu     sync.Mutex
	states []string
	txs    []events.TransactionEvent
	errs   []string
}

func (r *recordingEmitter) EmitWorkerState(worker, state string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states = append(r.states, worker+":"+state)
	return nil
}

func (r *recordingEmitter) EmitTransaction(ev events.TransactionEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.txs = append(r.txs, ev)
	return nil
}

func (r *recordingEmitter) EmitError(_ string, err error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errs = append(r.errs, err.Error())
	return nil
}

func (r *recordingEmitter) Close() {}

func (r *recordingEmitter) transactions() []events.TransactionEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]events.TransactionEvent(nil), r.txs...)
}

// flakyQueue lets a test fail Enqueue on demand.
type flakyQueue struct {
	sigqueue.Queue
	failEnqueue bool
}

func (q *flakyQueue) Enqueue(batch []sigqueue.Item) error {
	if q.failEnqueue {
		return errEnqueueDown
	}
	return q.Queue.Enqueue(batch)
}

var errEnqueueDown = errors.New("queue backend unavailable")

func sigs(signatures ...string) []rpc.SignatureInfo {
	page := make([]rpc.SignatureInfo, 0, len(signatures))
	for i, s := range signatures {
		page = append(page, rpc.SignatureInfo{Signature: s, Slot: uint64(100 - i)})
	}
	return page
}
