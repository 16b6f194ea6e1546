package channel

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/BaSui01/fetchflow/internal/pool"
	"github.com/BaSui01/fetchflow/provider"
	"github.com/BaSui01/fetchflow/types"
)

type memProvider struct {
	files map[string][]byte
}

type memFile struct {
	r *bytes.Reader
}

func (f *memFile) ReadAt(dst []byte, off int64) (int, error) {
	return f.r.ReadAt(dst, off)
}

func (f *memFile) Close() error { return nil }

func (p *memProvider) OpenAndSize(path string) (provider.File, int64, error) {
	data, ok := p.files[path]
	if !ok {
		return nil, 0, provider.ErrNotFound
	}
	return &memFile{r: bytes.NewReader(data)}, int64(len(data)), nil
}

func newTestChannel(t *testing.T, p *pool.Pool, files map[string][]byte, numLanes int) *Channel {
	t.Helper()
	c := New(0, Config{
		Pool:     p,
		Provider: &memProvider{files: files},
		MaxItems: p.Size(),
		NumLanes: numLanes,
		Logger:   zap.NewNop(),
	})
	t.Cleanup(c.Discard)
	return c
}

func pumpChannel(t *testing.T, c *Channel, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		require.True(t, time.Now().Before(deadline), "timed out pumping channel")
		c.DoWork()
		time.Sleep(time.Millisecond)
	}
}

func TestChannel_AdmissionRespectsLanes(t *testing.T) {
	p := pool.New(8)
	c := newTestChannel(t, p, map[string][]byte{"f": []byte("x")}, 2)

	var finished int
	for i := 0; i < 5; i++ {
		slot := p.Alloc(&types.Request{
			Path:   "f",
			Buffer: make([]byte, 1),
			Callback: func(resp *types.Response) {
				if resp.Finished {
					finished++
				}
			},
		})
		require.True(t, slot.IsValid())
		require.True(t, c.Send(slot))
	}
	assert.Equal(t, 5, c.Backlog())
	assert.Equal(t, 0, c.LanesInUse())

	// a single pass admits at most numLanes items
	c.DoWork()
	assert.LessOrEqual(t, c.LanesInUse()+finished, 2)
	assert.GreaterOrEqual(t, c.Backlog(), 3)

	pumpChannel(t, c, func() bool { return finished == 5 })
	assert.Equal(t, 0, c.Backlog())
	assert.Equal(t, 0, c.LanesInUse())
}

func TestChannel_SendQueueFull(t *testing.T) {
	p := pool.New(4)
	c := New(0, Config{
		Pool:     p,
		Provider: &memProvider{files: map[string][]byte{}},
		MaxItems: 2, // smaller sent queue than the pool
		NumLanes: 1,
		Logger:   zap.NewNop(),
	})
	defer c.Discard()

	cb := func(*types.Response) {}
	s1 := p.Alloc(&types.Request{Path: "f", Callback: cb})
	s2 := p.Alloc(&types.Request{Path: "f", Callback: cb})
	s3 := p.Alloc(&types.Request{Path: "f", Callback: cb})

	assert.True(t, c.Send(s1))
	assert.True(t, c.Send(s2))
	assert.False(t, c.Send(s3))
}

func TestChannel_LaneReturnedOnFinish(t *testing.T) {
	p := pool.New(4)
	c := newTestChannel(t, p, map[string][]byte{"f": []byte("abcd")}, 1)

	runOne := func() int {
		var lane = -2
		var done bool
		slot := p.Alloc(&types.Request{
			Path:   "f",
			Buffer: make([]byte, 4),
			Callback: func(resp *types.Response) {
				lane = resp.Lane
				done = resp.Finished
			},
		})
		require.True(t, c.Send(slot))
		pumpChannel(t, c, func() bool { return done })
		return lane
	}

	// with a single lane every request reuses lane 0
	assert.Equal(t, 0, runOne())
	assert.Equal(t, 0, runOne())
	assert.Equal(t, 0, p.Size()-p.FreeCount())
}

func TestChannel_NoBufferFetchingFails(t *testing.T) {
	p := pool.New(2)
	c := newTestChannel(t, p, map[string][]byte{"f": []byte("abcd")}, 1)

	var responses []types.Response
	slot := p.Alloc(&types.Request{
		Path: "f",
		Callback: func(resp *types.Response) {
			responses = append(responses, *resp)
		},
	})
	require.True(t, c.Send(slot))

	// opened without a buffer, then failed on the next fetch pass
	pumpChannel(t, c, func() bool {
		return len(responses) > 0 && responses[len(responses)-1].Finished
	})
	require.Len(t, responses, 2)
	assert.True(t, responses[0].Opened)
	assert.True(t, responses[1].Failed)
	assert.Equal(t, types.ErrNoBuffer, responses[1].ErrorCode)
}
