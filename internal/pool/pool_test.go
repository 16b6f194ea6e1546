package pool

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/BaSui01/fetchflow/types"
)

func testRequest() *types.Request {
	return &types.Request{
		Channel:  0,
		Path:     "data/file.bin",
		Callback: func(*types.Response) {},
	}
}

func TestPool_AllocInitializesItem(t *testing.T) {
	p := New(4)
	req := testRequest()
	req.UserData = []byte{1, 2, 3}
	req.Buffer = make([]byte, 16)

	id := p.Alloc(req)
	require.True(t, id.IsValid())

	it := p.Lookup(id)
	require.NotNil(t, it)
	assert.Equal(t, types.StateAllocated, it.State)
	assert.Equal(t, types.InvalidLane, it.Lane)
	assert.Equal(t, "data/file.bin", it.Path)
	assert.Equal(t, []byte{1, 2, 3}, it.UserData())
	assert.Len(t, it.Buffer, 16)
}

func TestPool_Exhaustion(t *testing.T) {
	p := New(2)
	id1 := p.Alloc(testRequest())
	id2 := p.Alloc(testRequest())
	require.True(t, id1.IsValid())
	require.True(t, id2.IsValid())

	assert.Equal(t, types.InvalidHandle, p.Alloc(testRequest()))
	assert.Equal(t, 0, p.FreeCount())

	p.Free(id1)
	id3 := p.Alloc(testRequest())
	assert.True(t, id3.IsValid())
}

func TestPool_StaleHandleLookupFails(t *testing.T) {
	p := New(2)
	id1 := p.Alloc(testRequest())
	p.Free(id1)

	// reuse the same slot; the generation bump must invalidate id1
	var id2 types.Handle
	for i := 0; i < 2; i++ {
		id := p.Alloc(testRequest())
		if id.Index() == id1.Index() {
			id2 = id
		}
	}
	require.True(t, id2.IsValid())
	assert.NotEqual(t, id1, id2)
	assert.Nil(t, p.Lookup(id1))
	assert.NotNil(t, p.Lookup(id2))
}

func TestPool_LookupInvalid(t *testing.T) {
	p := New(2)
	assert.Nil(t, p.Lookup(types.InvalidHandle))
	assert.Nil(t, p.Lookup(types.MakeHandle(1, 7)))    // never allocated
	assert.Nil(t, p.Lookup(types.MakeHandle(9999, 1))) // index out of range
}

func TestPool_DoubleFreePanics(t *testing.T) {
	p := New(2)
	id := p.Alloc(testRequest())
	p.Free(id)
	assert.Panics(t, func() { p.Free(id) })
	assert.Panics(t, func() { p.Free(types.InvalidHandle) })
}

func TestPool_UserDataIsCopied(t *testing.T) {
	p := New(1)
	src := []byte{0xAA, 0xBB}
	req := testRequest()
	req.UserData = src
	id := p.Alloc(req)

	src[0] = 0x00
	it := p.Lookup(id)
	require.NotNil(t, it)
	assert.Equal(t, []byte{0xAA, 0xBB}, it.UserData())
}

// Property: live handles stay unique, lookups agree with the model, and
// the pool never hands out more than its capacity.
func TestPool_ModelCheck(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		capacity := rapid.IntRange(1, 32).Draw(t, "capacity")
		p := New(capacity)
		live := map[types.Handle]bool{}
		var dead []types.Handle

		t.Repeat(map[string]func(*rapid.T){
			"alloc": func(t *rapid.T) {
				id := p.Alloc(testRequest())
				if len(live) == capacity {
					if id != types.InvalidHandle {
						t.Fatalf("alloc succeeded on a full pool")
					}
					return
				}
				if id == types.InvalidHandle {
					t.Fatalf("alloc failed with %d live of %d", len(live), capacity)
				}
				if live[id] {
					t.Fatalf("duplicate live handle %v", id)
				}
				live[id] = true
			},
			"free": func(t *rapid.T) {
				if len(live) == 0 {
					t.Skip()
				}
				var id types.Handle
				for h := range live {
					id = h
					break
				}
				p.Free(id)
				delete(live, id)
				dead = append(dead, id)
			},
			"": func(t *rapid.T) {
				if p.FreeCount() != capacity-len(live) {
					t.Fatalf("free count %d, want %d", p.FreeCount(), capacity-len(live))
				}
				for h := range live {
					if p.Lookup(h) == nil {
						t.Fatalf("live handle %v not found", h)
					}
				}
				for _, h := range dead {
					if p.Lookup(h) != nil {
						t.Fatalf("stale handle %v still resolves", h)
					}
				}
			},
		})
	})
}
