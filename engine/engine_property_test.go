package engine

import (
	"bytes"
	"fmt"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/BaSui01/fetchflow/types"
)

// Property: 每个被接受的请求最终恰好收到一次 Finished 回调；成功的
// 流式请求各数据块拼接后恰好等于原始内容，且块偏移从 0 严格单调递增。
func TestProperty_EveryAcceptedSendFinishesExactlyOnce(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 30

	properties := gopter.NewProperties(parameters)

	properties.Property("all requests finish exactly once with intact content", prop.ForAll(
		func(numRequests, numLanes, fileSize, bufSize int, cancelMask int) bool {
			files := map[string][]byte{}
			for i := 0; i < numRequests; i++ {
				content := bytes.Repeat([]byte{byte('a' + i%26)}, fileSize)
				files[fmt.Sprintf("f%d", i)] = content
			}

			e, err := New(
				types.EngineConfig{MaxRequests: numRequests, NumLanes: numLanes},
				&memProvider{files: files},
				WithLogger(zap.NewNop()),
				WithRegisterer(prometheus.NewRegistry()),
			)
			if err != nil {
				t.Logf("engine setup failed: %v", err)
				return false
			}
			defer e.Close()

			finishes := make([]int, numRequests)
			contents := make([][]byte, numRequests)
			handles := make([]types.Handle, numRequests)
			cancelled := make([]bool, numRequests)
			offsetsOK := true

			for i := 0; i < numRequests; i++ {
				idx := i
				h, err := e.Send(&types.Request{
					Path:   fmt.Sprintf("f%d", i),
					Buffer: make([]byte, bufSize),
					Callback: func(resp *types.Response) {
						if resp.Fetched && resp.FetchedSize > 0 {
							if resp.ContentOffset != int64(len(contents[idx])) {
								t.Logf("request %d: offset %d, want %d", idx, resp.ContentOffset, len(contents[idx]))
								offsetsOK = false
							}
							contents[idx] = append(contents[idx], resp.Buffer[:resp.FetchedSize]...)
						}
						if resp.Finished {
							finishes[idx]++
						}
					},
				})
				if err != nil {
					t.Logf("send %d rejected: %v", i, err)
					return false
				}
				handles[i] = h
				if cancelMask&(1<<i) != 0 {
					e.Cancel(h)
					cancelled[i] = true
				}
			}

			deadline := time.Now().Add(5 * time.Second)
			for {
				done := true
				for i := range finishes {
					if finishes[i] == 0 {
						done = false
					}
				}
				if done || time.Now().After(deadline) {
					break
				}
				e.DoWork()
			}

			for i := range finishes {
				if finishes[i] != 1 {
					t.Logf("request %d finished %d times", i, finishes[i])
					return false
				}
				if e.HandleValid(handles[i]) {
					t.Logf("request %d handle still valid after finish", i)
					return false
				}
				if !cancelled[i] && !bytes.Equal(contents[i], files[fmt.Sprintf("f%d", i)]) {
					t.Logf("request %d content mismatch: got %d bytes, want %d", i, len(contents[i]), fileSize)
					return false
				}
			}
			if !offsetsOK {
				return false
			}
			return true
		},
		gen.IntRange(1, 8),
		gen.IntRange(1, 4),
		gen.IntRange(1, 64),
		gen.IntRange(1, 16),
		gen.IntRange(0, 255),
	))

	properties.TestingRun(t)
}
