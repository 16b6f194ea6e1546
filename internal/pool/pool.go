// Package pool provides the fixed-size request item pool with
// generational handles. All allocation happens up front in New; Alloc
// and Free only move indices on the internal free stack, so the request
// path stays allocation-free.
package pool

import (
	"github.com/BaSui01/fetchflow/provider"
	"github.com/BaSui01/fetchflow/types"
)

// UserSide is the caller-owned half of a request item. It may only be
// touched while the item's slot id resides in a caller-side queue.
type UserSide struct {
	// Pause, Continue and Cancel are one-shot flags applied during the
	// next caller-side pass.
	Pause    bool
	Continue bool
	Cancel   bool

	// Mirrors of the io-side progress, copied during the outgoing drain.
	ContentSize   int64
	ContentOffset int64
	FetchedSize   int64

	// Finished is set when the final callback for the item is due.
	Finished bool

	userData     [types.MaxUserDataBytes]byte
	userDataSize int
}

// IOSide is the worker-owned half of a request item. It may only be
// touched while the item's slot id is visible to the worker (or, on
// cooperative hosts, to the async provider).
type IOSide struct {
	File          provider.File
	ContentSize   int64
	ContentOffset int64
	FetchedSize   int64
	Failed        bool
	FailCode      types.ErrorCode
	Finished      bool
}

// Item is one request record. Which half of it may be accessed is
// determined by the queue its slot id currently resides in; the queues
// serialize access, there is no per-item lock.
type Item struct {
	Handle   types.Handle
	State    types.State
	Channel  int
	Lane     int
	Callback types.ResponseCallback
	Buffer   []byte
	Path     string

	User UserSide
	IO   IOSide
}

// UserData returns the read/write view of the item's inline user-data
// block, nil when the request carries none.
func (it *Item) UserData() []byte {
	if it.User.userDataSize == 0 {
		return nil
	}
	return it.User.userData[:it.User.userDataSize]
}

func (it *Item) init(id types.Handle, req *types.Request) {
	it.Handle = id
	it.State = types.StateInitial
	it.Channel = req.Channel
	it.Lane = types.InvalidLane
	it.Callback = req.Callback
	it.Buffer = req.Buffer
	it.Path = req.Path
	if n := len(req.UserData); n > 0 && n <= types.MaxUserDataBytes {
		it.User.userDataSize = n
		copy(it.User.userData[:], req.UserData)
	}
}

// Pool is the fixed-size request item pool. Element 0 of the item array
// anchors the reserved invalid handle and is never handed out.
type Pool struct {
	items     []Item
	genCtrs   []uint16
	freeSlots []uint16
}

// New creates a pool with capacity maxRequests. maxRequests must fit a
// 16-bit slot index.
func New(maxRequests int) *Pool {
	if maxRequests <= 0 || maxRequests >= 1<<16-1 {
		panic("pool: maxRequests out of range")
	}
	p := &Pool{
		items:     make([]Item, maxRequests+1),
		genCtrs:   make([]uint16, maxRequests+1),
		freeSlots: make([]uint16, 0, maxRequests),
	}
	// slot 0 is reserved; push the rest so low indices come out first
	for i := maxRequests; i >= 1; i-- {
		p.freeSlots = append(p.freeSlots, uint16(i))
	}
	return p
}

// Size returns the pool capacity.
func (p *Pool) Size() int {
	return len(p.items) - 1
}

// FreeCount returns the number of unallocated slots.
func (p *Pool) FreeCount() int {
	return len(p.freeSlots)
}

// Alloc takes a free slot, bumps its generation and initializes the item
// from the request descriptor. Returns the invalid handle when the pool
// is exhausted.
func (p *Pool) Alloc(req *types.Request) types.Handle {
	if len(p.freeSlots) == 0 {
		return types.InvalidHandle
	}
	index := p.freeSlots[len(p.freeSlots)-1]
	p.freeSlots = p.freeSlots[:len(p.freeSlots)-1]
	p.genCtrs[index]++
	id := types.MakeHandle(index, p.genCtrs[index])
	it := &p.items[index]
	it.init(id, req)
	it.State = types.StateAllocated
	return id
}

// Free zeroes the item and returns its slot to the free stack. Freeing
// a slot whose stored handle does not match is a contract violation.
func (p *Pool) Free(id types.Handle) {
	index := id.Index()
	if index == 0 || int(index) >= len(p.items) {
		panic("pool: free with invalid slot index")
	}
	it := &p.items[index]
	if it.Handle != id {
		panic("pool: free with stale handle (double free?)")
	}
	*it = Item{}
	p.freeSlots = append(p.freeSlots, index)
}

// Lookup returns the item for a slot id, or nil when the id is invalid
// or stale (generation mismatch after the slot was reused).
func (p *Pool) Lookup(id types.Handle) *Item {
	if id == types.InvalidHandle {
		return nil
	}
	index := id.Index()
	if int(index) >= len(p.items) {
		return nil
	}
	it := &p.items[index]
	if it.Handle != id {
		return nil
	}
	return it
}
