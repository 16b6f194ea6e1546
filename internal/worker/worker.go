// Package worker provides the per-channel IO worker goroutine with its
// inbox/outbox rings. The caller side batches slot ids in and out under
// the worker's locks; the worker blocks on its inbox condition while
// idle and processes one slot at a time.
package worker

import (
	"sync"

	"go.uber.org/zap"

	"github.com/BaSui01/fetchflow/internal/ring"
	"github.com/BaSui01/fetchflow/types"
)

// Work processes one slot id on the worker goroutine. It must not
// retain the id after returning.
type Work func(slot types.Handle)

// Worker owns the thread-incoming and thread-outgoing rings of one
// channel. All methods except Start and Join may be called concurrently
// with the worker goroutine; the inbox and outbox locks serialize
// access to the rings.
type Worker struct {
	inbox  *ring.Ring
	outbox *ring.Ring

	inboxMu   sync.Mutex
	inboxCond *sync.Cond
	outboxMu  sync.Mutex

	// stop is guarded by inboxMu and observed by the blocking dequeue.
	stop bool
	done chan struct{}

	work   Work
	logger *zap.Logger
}

// New creates a worker whose rings hold up to queueSize slot ids each.
// Call Start to launch the goroutine.
func New(queueSize int, work Work, logger *zap.Logger) *Worker {
	w := &Worker{
		inbox:  ring.New(queueSize),
		outbox: ring.New(queueSize),
		done:   make(chan struct{}),
		work:   work,
		logger: logger.With(zap.String("component", "io_worker")),
	}
	w.inboxCond = sync.NewCond(&w.inboxMu)
	return w
}

// Start launches the worker goroutine.
func (w *Worker) Start() {
	go w.run()
}

func (w *Worker) run() {
	w.logger.Debug("io worker started")
	defer close(w.done)
	for {
		slot := w.dequeueIncoming()
		if slot == types.InvalidHandle {
			// woken up to join
			break
		}
		w.work(slot)
		w.enqueueOutgoing(slot)
	}
	w.logger.Debug("io worker exiting")
}

// dequeueIncoming blocks until a slot id is available or stop is
// requested. Returns the invalid handle on stop.
func (w *Worker) dequeueIncoming() types.Handle {
	w.inboxMu.Lock()
	defer w.inboxMu.Unlock()
	for w.inbox.Empty() && !w.stop {
		w.inboxCond.Wait()
	}
	if w.stop {
		return types.InvalidHandle
	}
	return w.inbox.Dequeue()
}

func (w *Worker) enqueueOutgoing(slot types.Handle) {
	w.outboxMu.Lock()
	defer w.outboxMu.Unlock()
	// the lane discipline guarantees the outbox never overflows: at most
	// queueSize slots are in flight on this channel at any time
	w.outbox.Enqueue(slot)
}

// EnqueueIncoming drains src into the worker's inbox while both rings
// permit, then wakes the worker. Called from the caller side.
func (w *Worker) EnqueueIncoming(src *ring.Ring) {
	w.inboxMu.Lock()
	defer w.inboxMu.Unlock()
	if src.Empty() {
		return
	}
	for !w.inbox.Full() && !src.Empty() {
		w.inbox.Enqueue(src.Dequeue())
	}
	w.inboxCond.Signal()
}

// DequeueOutgoing drains the worker's outbox into dst while both rings
// permit. Called from the caller side.
func (w *Worker) DequeueOutgoing(dst *ring.Ring) {
	w.outboxMu.Lock()
	defer w.outboxMu.Unlock()
	for !dst.Full() && !w.outbox.Empty() {
		dst.Enqueue(w.outbox.Dequeue())
	}
}

// Join requests stop, wakes the worker and waits for the goroutine to
// exit. Slots still in flight are dropped; the engine guarantees no
// callbacks are delivered after shutdown.
func (w *Worker) Join() {
	w.inboxMu.Lock()
	w.stop = true
	w.inboxCond.Signal()
	w.inboxMu.Unlock()
	<-w.done
}
