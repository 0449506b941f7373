package worker

import (
	"context"
	"testing"
	"time"

	"github.com/allartprotocol/token-indexer/internal/rpc"
	"github.com/allartprotocol/token-indexer/pkg/infra"
	"github.com/allartprotocol/token-indexer/pkg/kvstore"
	"github.com/allartprotocol/token-indexer/pkg/store/checkpointstore"
	"github.com/allartprotocol/token-indexer/pkg/store/sigqueue"
	"github.com/allartprotocol/token-indexer/pkg/store/txstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type dispatcherEnv struct {
	kv      *kvstore.MemoryStore
	queue   sigqueue.Queue
	cps     checkpointstore.Store
	txs     txstore.Store
	chain   *fakeChain
	factory *countingFactory
	emitter *recordingEmitter
}

func newDispatcherEnv(t *testing.T) *dispatcherEnv {
	t.Helper()
	kv := kvstore.NewMemoryStore(infra.JSON)
	env := &dispatcherEnv{
		kv:    kv,
		queue: sigqueue.New(kv),
		cps:   checkpointstore.New(kv),
		txs:   txstore.New(kv),
		chain: &fakeChain{
			txs:    map[string]*rpc.TransactionResult{},
			txErrs: map[string]error{},
		},
		emitter: &recordingEmitter{},
	}
	env.factory = &countingFactory{chain: env.chain}
	return env
}

func (e *dispatcherEnv) dispatcher(loaders int) *Dispatcher {
	return NewDispatcher(Options{
		Address:            "ProgAddr1111111111111111111111111111111111",
		TransactionLoaders: loaders,
		Tick:               5 * time.Millisecond,
		BatchLimit:         10,
		Policy:             FailurePolicyRequeue,
		Checkpoints:        e.cps,
		Queue:              e.queue,
		Txs:                e.txs,
		Emitter:            e.emitter,
		NewClient:          e.factory.factory,
	})
}

func runDispatcher(t *testing.T, d *Dispatcher) (cancel context.CancelFunc, done chan error) {
	t.Helper()
	ctx, cancelCtx := context.WithCancel(context.Background())
	done = make(chan error, 1)
	go func() {
		done <- d.Run(ctx)
	}()
	return cancelCtx, done
}

func waitDispatcher(t *testing.T, cancel context.CancelFunc, done chan error) {
	t.Helper()
	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("dispatcher did not release after cancellation")
	}
}

func TestDispatcherEndToEnd(t *testing.T) {
	env := newDispatcherEnv(t)
	env.chain.pages = [][]rpc.SignatureInfo{sigs("s2", "s1")}
	env.chain.txs["s2"] = txResult(2, 5000)
	env.chain.txs["s1"] = txResult(1, 5000)

	d := env.dispatcher(2)
	cancel, done := runDispatcher(t, d)

	require.Eventually(t, func() bool {
		n, err := env.txs.Count()
		return err == nil && n == 2
	}, 2*time.Second, 5*time.Millisecond)

	waitDispatcher(t, cancel, done)

	// One client per pool slot.
	assert.Equal(t, 3, env.factory.built())
	assert.Equal(t,
		[]string{"signatures-loader", "transactions-loader-0", "transactions-loader-1"},
		d.Workers())

	saved := env.cps.Load("signatures-loader")
	assert.Equal(t, "s2", saved.Until)
}

func TestDispatcherRecoversInterruptedClaims(t *testing.T) {
	env := newDispatcherEnv(t)
	env.chain.txs["orphan"] = txResult(7, 5000)

	// A previous run claimed the record and died before finishing it.
	require.NoError(t, env.queue.Enqueue([]sigqueue.Item{{Signature: "orphan", Slot: 7}}))
	claim, err := env.queue.Dequeue()
	require.NoError(t, err)
	require.NotNil(t, claim)

	d := env.dispatcher(1)
	cancel, done := runDispatcher(t, d)

	require.Eventually(t, func() bool {
		found, err := env.txs.Has("orphan")
		return err == nil && found
	}, 2*time.Second, 5*time.Millisecond)

	waitDispatcher(t, cancel, done)
}

func TestDispatcherSendUnknownWorker(t *testing.T) {
	env := newDispatcherEnv(t)
	d := env.dispatcher(1)

	err := d.Send("nobody", Command{Kind: CommandStop})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown worker")
}

func TestDispatcherSendToMember(t *testing.T) {
	env := newDispatcherEnv(t)
	d := env.dispatcher(1)
	cancel, done := runDispatcher(t, d)

	require.NoError(t, d.Send("transactions-loader-0", Command{Kind: CommandStop}))

	waitDispatcher(t, cancel, done)
}
