// Package channel implements the engine's IO channels: lane admission,
// the per-request state machine, the hand-off queues to the IO worker,
// and response callback dispatch. All methods except the worker-side
// request handler run on the engine's goroutine.
package channel

import (
	"strconv"

	"go.uber.org/zap"

	"github.com/BaSui01/fetchflow/internal/metrics"
	"github.com/BaSui01/fetchflow/internal/pool"
	"github.com/BaSui01/fetchflow/internal/ring"
	"github.com/BaSui01/fetchflow/internal/worker"
	"github.com/BaSui01/fetchflow/provider"
	"github.com/BaSui01/fetchflow/types"
)

// Channel is one ordered IO pipeline. Items are admitted from the sent
// queue into a fixed number of lanes, travel to the IO side and back,
// and are reported through the response callback on every caller-visible
// state transition.
type Channel struct {
	index    int
	label    string
	numLanes int

	pool  *pool.Pool
	prov  provider.Provider
	async provider.AsyncProvider

	sent         *ring.Ring
	freeLanes    *ring.Ring
	userIncoming *ring.Ring
	userOutgoing *ring.Ring

	// wrk is nil when the channel runs against an AsyncProvider; items
	// are then handed to the provider inline instead of to a worker.
	wrk *worker.Worker

	collector *metrics.Collector
	logger    *zap.Logger
}

// Config carries the construction parameters shared by all channels of
// one engine.
type Config struct {
	Pool      *pool.Pool
	Provider  provider.Provider
	Async     provider.AsyncProvider
	MaxItems  int
	NumLanes  int
	Collector *metrics.Collector
	Logger    *zap.Logger
}

// New creates a channel and, for synchronous providers, starts its IO
// worker.
func New(index int, cfg Config) *Channel {
	c := &Channel{
		index:        index,
		label:        strconv.Itoa(index),
		numLanes:     cfg.NumLanes,
		pool:         cfg.Pool,
		prov:         cfg.Provider,
		async:        cfg.Async,
		sent:         ring.New(cfg.MaxItems),
		freeLanes:    ring.New(cfg.NumLanes),
		userIncoming: ring.New(cfg.NumLanes),
		userOutgoing: ring.New(cfg.NumLanes),
		collector:    cfg.Collector,
		logger:       cfg.Logger.With(zap.String("component", "channel"), zap.Int("channel", index)),
	}
	for lane := 0; lane < cfg.NumLanes; lane++ {
		c.freeLanes.Enqueue(types.Handle(lane))
	}
	if c.async == nil {
		c.wrk = worker.New(cfg.NumLanes, c.handleRequest, cfg.Logger.With(zap.Int("channel", index)))
		c.wrk.Start()
	}
	return c
}

// Send puts a freshly allocated slot into the sent queue, where it waits
// for a free lane. Returns false when the queue is full.
func (c *Channel) Send(slot types.Handle) bool {
	if c.sent.Full() {
		c.logger.Warn("send: sent queue is full")
		return false
	}
	c.sent.Enqueue(slot)
	return true
}

// Backlog returns the number of items waiting in the sent queue.
func (c *Channel) Backlog() int {
	return c.sent.Count()
}

// LanesInUse returns the number of occupied lanes.
func (c *Channel) LanesInUse() int {
	return c.numLanes - c.freeLanes.Count()
}

// PushOutgoing enqueues a slot into the user-outgoing queue. Used by the
// engine's async completion entry points on cooperative hosts.
func (c *Channel) PushOutgoing(slot types.Handle) {
	c.userOutgoing.Enqueue(slot)
}

// DoWork runs one channel pass: admission, caller-side state
// transitions, hand-off to the IO side, and the outgoing drain with
// callback dispatch.
func (c *Channel) DoWork() {
	// move items from sent- to incoming-queue permitting free lanes
	numMove := c.sent.Count()
	if avail := c.freeLanes.Count(); avail < numMove {
		numMove = avail
	}
	for i := 0; i < numMove; i++ {
		slot := c.sent.Dequeue()
		it := c.pool.Lookup(slot)
		it.Lane = int(c.freeLanes.Dequeue())
		c.userIncoming.Enqueue(slot)
	}

	// apply user flags and advance states before the IO hand-off
	numIncoming := c.userIncoming.Count()
	for i := 0; i < numIncoming; i++ {
		it := c.pool.Lookup(c.userIncoming.Peek(i))
		if it.User.Pause {
			it.State = types.StatePaused
			it.User.Pause = false
		}
		if it.User.Continue {
			if it.State == types.StatePaused {
				it.State = types.StateFetched
			}
			it.User.Continue = false
		}
		if it.User.Cancel {
			it.State = types.StateFailed
			it.User.Finished = true
		}
		switch it.State {
		case types.StateAllocated:
			it.State = types.StateOpening
		case types.StateOpened, types.StateFetched:
			it.State = types.StateFetching
		}
	}

	if c.wrk != nil {
		// move new items into the IO worker and processed items out
		c.wrk.EnqueueIncoming(c.userIncoming)
		c.wrk.DequeueOutgoing(c.userOutgoing)
	} else {
		// cooperative host: hand items to the async provider directly;
		// completions fill user-outgoing from the engine goroutine
		for !c.userIncoming.Empty() {
			c.dispatchAsync(c.userIncoming.Dequeue())
		}
	}

	// drain the outgoing queue, transition states and invoke callbacks
	for !c.userOutgoing.Empty() {
		slot := c.userOutgoing.Dequeue()
		it := c.pool.Lookup(slot)

		// transfer output params from the io- to the user-side
		it.User.ContentSize = it.IO.ContentSize
		it.User.ContentOffset = it.IO.ContentOffset
		it.User.FetchedSize = it.IO.FetchedSize
		if it.IO.Finished {
			it.User.Finished = true
		}

		if it.IO.Failed {
			it.State = types.StateFailed
		} else {
			switch it.State {
			case types.StateOpening:
				// with a pre-bound buffer the first chunk was already
				// fetched during the opening pass; shortcut to FETCHED so
				// the lane is occupied for one pass less
				if it.User.ContentOffset > 0 {
					it.State = types.StateFetched
				} else {
					it.State = types.StateOpened
				}
			case types.StateFetching:
				it.State = types.StateFetched
			}
		}

		c.invokeCallback(slot, it)

		if it.User.Finished {
			c.finish(slot, it)
		} else {
			c.userIncoming.Enqueue(slot)
		}
	}

	if c.collector != nil {
		c.collector.RecordChannelState(c.label, c.LanesInUse(), c.sent.Count())
	}
}

func (c *Channel) invokeCallback(slot types.Handle, it *pool.Item) {
	resp := types.Response{
		Handle:        slot,
		Channel:       it.Channel,
		Lane:          it.Lane,
		Opened:        it.State == types.StateOpened,
		Fetched:       it.State == types.StateFetched,
		Paused:        it.State == types.StatePaused,
		Failed:        it.State == types.StateFailed,
		Finished:      it.User.Finished,
		Cancelled:     it.User.Cancel,
		Path:          it.Path,
		UserData:      it.UserData(),
		ContentSize:   it.User.ContentSize,
		ContentOffset: it.User.ContentOffset - it.User.FetchedSize,
		FetchedSize:   it.User.FetchedSize,
		Buffer:        it.Buffer,
	}
	if resp.Failed {
		if it.User.Cancel {
			resp.ErrorCode = types.ErrCancelled
		} else {
			resp.ErrorCode = it.IO.FailCode
		}
	}
	if c.collector != nil && resp.Fetched {
		c.collector.RecordChunk(c.label, resp.FetchedSize)
	}
	it.Callback(&resp)
}

// finish returns the item's lane and frees its pool slot after the
// final callback was delivered.
func (c *Channel) finish(slot types.Handle, it *pool.Item) {
	outcome := "success"
	switch {
	case it.User.Cancel:
		outcome = "cancelled"
	case it.State == types.StateFailed:
		outcome = "failed"
	}
	if c.collector != nil {
		c.collector.RecordCompletion(c.label, outcome)
	}
	c.logger.Debug("request finished",
		zap.Uint32("slot", uint32(slot)),
		zap.String("path", it.Path),
		zap.String("outcome", outcome),
		zap.Int64("content_size", it.User.ContentSize),
	)
	c.freeLanes.Enqueue(types.Handle(it.Lane))
	c.pool.Free(slot)
}

// Discard joins the channel's worker. Items still in flight are dropped
// without callbacks.
func (c *Channel) Discard() {
	if c.wrk != nil {
		c.wrk.Join()
		c.wrk = nil
	}
}
