package ring

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/BaSui01/fetchflow/types"
)

func TestRing_EmptyFull(t *testing.T) {
	r := New(3)
	assert.True(t, r.Empty())
	assert.False(t, r.Full())
	assert.Equal(t, 0, r.Count())
	assert.Equal(t, 3, r.Cap())

	r.Enqueue(1)
	r.Enqueue(2)
	r.Enqueue(3)
	assert.True(t, r.Full())
	assert.Equal(t, 3, r.Count())
}

func TestRing_FIFOOrder(t *testing.T) {
	r := New(4)
	for i := 1; i <= 4; i++ {
		r.Enqueue(types.Handle(i))
	}
	for i := 1; i <= 4; i++ {
		assert.Equal(t, types.Handle(i), r.Dequeue())
	}
	assert.True(t, r.Empty())
}

func TestRing_WrapAround(t *testing.T) {
	r := New(2)
	r.Enqueue(1)
	r.Enqueue(2)
	require.Equal(t, types.Handle(1), r.Dequeue())
	r.Enqueue(3)
	require.Equal(t, types.Handle(2), r.Dequeue())
	require.Equal(t, types.Handle(3), r.Dequeue())
	assert.True(t, r.Empty())
}

func TestRing_Peek(t *testing.T) {
	r := New(4)
	r.Enqueue(10)
	r.Enqueue(20)
	r.Enqueue(30)
	assert.Equal(t, types.Handle(10), r.Peek(0))
	assert.Equal(t, types.Handle(20), r.Peek(1))
	assert.Equal(t, types.Handle(30), r.Peek(2))
	// peek does not consume
	assert.Equal(t, 3, r.Count())
}

func TestRing_ContractViolationsPanic(t *testing.T) {
	r := New(1)
	assert.Panics(t, func() { r.Dequeue() })
	r.Enqueue(1)
	assert.Panics(t, func() { r.Enqueue(2) })
	assert.Panics(t, func() { r.Peek(1) })
	assert.Panics(t, func() { New(0) })
}

// Property: a ring behaves like a bounded FIFO queue under any
// interleaving of enqueue/dequeue operations.
func TestRing_ModelCheck(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		capacity := rapid.IntRange(1, 64).Draw(t, "capacity")
		r := New(capacity)
		var model []types.Handle
		next := types.Handle(1)

		t.Repeat(map[string]func(*rapid.T){
			"enqueue": func(t *rapid.T) {
				if r.Full() {
					t.Skip()
				}
				r.Enqueue(next)
				model = append(model, next)
				next++
			},
			"dequeue": func(t *rapid.T) {
				if r.Empty() {
					t.Skip()
				}
				got := r.Dequeue()
				if got != model[0] {
					t.Fatalf("dequeue got %v, want %v", got, model[0])
				}
				model = model[1:]
			},
			"peek": func(t *rapid.T) {
				if r.Empty() {
					t.Skip()
				}
				i := rapid.IntRange(0, r.Count()-1).Draw(t, "i")
				if got := r.Peek(i); got != model[i] {
					t.Fatalf("peek(%d) got %v, want %v", i, got, model[i])
				}
			},
			"": func(t *rapid.T) {
				if r.Count() != len(model) {
					t.Fatalf("count %d, model %d", r.Count(), len(model))
				}
				if r.Empty() != (len(model) == 0) || r.Full() != (len(model) == capacity) {
					t.Fatalf("empty/full out of sync with model")
				}
			},
		})
	})
}
