package channel

import (
	"errors"
	"io"

	"github.com/BaSui01/fetchflow/internal/pool"
	"github.com/BaSui01/fetchflow/provider"
	"github.com/BaSui01/fetchflow/types"
)

// handleRequest is the worker-side request handler for synchronous
// providers. It runs on the channel's worker goroutine and only touches
// the item's io-side, plus the state/path/buffer fields that are frozen
// while the slot is in flight.
func (c *Channel) handleRequest(slot types.Handle) {
	it := c.pool.Lookup(slot)
	if it == nil {
		return
	}
	if it.IO.Failed {
		// stale or already-failed item, pass through unchanged
		return
	}
	state := it.State
	if state == types.StateOpening {
		f, size, err := c.prov.OpenAndSize(it.Path)
		if err != nil {
			it.IO.Failed = true
			it.IO.Finished = true
			it.IO.FailCode = types.ErrOpenFailed
			if errors.Is(err, provider.ErrNotFound) {
				it.IO.FailCode = types.ErrFileNotFound
			}
			return
		}
		it.IO.File = f
		it.IO.ContentSize = size
		// when a buffer is already bound, skip the OPENED round-trip and
		// fetch the first chunk in the same worker pass
		if it.Buffer != nil {
			state = types.StateFetching
		}
	}
	if state == types.StateFetching {
		eof := c.fetchChunk(it)
		if it.IO.Failed || eof || c.exhausted(it) {
			it.IO.File.Close()
			it.IO.File = nil
			it.IO.Finished = true
		}
	}
	// items in PAUSED or FAILED state pass through untouched
}

// fetchChunk reads the next chunk at the item's content offset into the
// bound buffer and advances the io-side progress. Returns true when the
// provider signalled end-of-content.
func (c *Channel) fetchChunk(it *pool.Item) bool {
	if len(it.Buffer) == 0 {
		it.IO.Failed = true
		it.IO.FailCode = types.ErrNoBuffer
		return false
	}
	want := int64(len(it.Buffer))
	if it.IO.ContentSize > 0 {
		if remain := it.IO.ContentSize - it.IO.ContentOffset; remain < want {
			want = remain
		}
	}
	n, err := it.IO.File.ReadAt(it.Buffer[:want], it.IO.ContentOffset)
	it.IO.FetchedSize = int64(n)
	it.IO.ContentOffset += int64(n)
	switch {
	case err == nil:
		return false
	case errors.Is(err, io.EOF):
		// a short final read ends the content; only unexpected when the
		// provider promised more bytes
		if it.IO.ContentSize > 0 && it.IO.ContentOffset < it.IO.ContentSize {
			it.IO.Failed = true
			it.IO.FailCode = types.ErrUnexpectedEOF
			return false
		}
		it.IO.ContentSize = it.IO.ContentOffset
		return true
	default:
		it.IO.Failed = true
		it.IO.FailCode = types.ErrReadFailed
		return false
	}
}

// exhausted reports whether the item has fetched all known content.
func (c *Channel) exhausted(it *pool.Item) bool {
	return it.IO.ContentSize > 0 && it.IO.ContentOffset >= it.IO.ContentSize
}

// dispatchAsync hands one caller-side item to the async provider on a
// cooperative host. Completions arrive through the engine's
// OnHeadResponse/OnRangeResponse/OnFailed entry points.
func (c *Channel) dispatchAsync(slot types.Handle) {
	it := c.pool.Lookup(slot)
	if it == nil {
		return
	}
	switch it.State {
	case types.StateOpening:
		c.async.StartOpen(slot, it.Path)
	case types.StateFetching:
		c.StartAsyncRead(slot, it)
	default:
		// paused or cancelled items just move to the outgoing queue so
		// they don't get lost
		c.userOutgoing.Enqueue(slot)
	}
}

// StartAsyncRead issues the next range read for an item on a
// cooperative host. Called from dispatchAsync and from the engine's
// head-response entry point when a buffer was pre-bound.
func (c *Channel) StartAsyncRead(slot types.Handle, it *pool.Item) {
	if len(it.Buffer) == 0 {
		it.IO.Failed = true
		it.IO.FailCode = types.ErrNoBuffer
		it.IO.Finished = true
		c.userOutgoing.Enqueue(slot)
		return
	}
	want := int64(len(it.Buffer))
	if it.IO.ContentSize > 0 {
		if remain := it.IO.ContentSize - it.IO.ContentOffset; remain < want {
			want = remain
		}
	}
	c.async.StartRead(slot, it.IO.ContentOffset, it.Buffer[:want])
}
