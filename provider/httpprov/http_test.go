package httpprov

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/BaSui01/fetchflow/provider"
	"github.com/BaSui01/fetchflow/types"
)

// rangeServer 支持 HEAD 与 Range GET 的测试服务器
func rangeServer(t *testing.T, content []byte) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodHead:
			w.Header().Set("Content-Length", strconv.Itoa(len(content)))
			w.WriteHeader(http.StatusOK)
		case http.MethodGet:
			rng := r.Header.Get("Range")
			if rng == "" {
				w.Write(content)
				return
			}
			var start, end int
			_, err := fmt.Sscanf(rng, "bytes=%d-%d", &start, &end)
			require.NoError(t, err)
			if end >= len(content) {
				end = len(content) - 1
			}
			w.Header().Set("Content-Range", fmt.Sprintf("bytes %d-%d/%d", start, end, len(content)))
			w.WriteHeader(http.StatusPartialContent)
			w.Write(content[start : end+1])
		}
	}))
}

func TestProvider_OpenAndSize(t *testing.T) {
	srv := rangeServer(t, []byte("0123456789"))
	defer srv.Close()

	p := New(DefaultConfig(), zap.NewNop())
	f, size, err := p.OpenAndSize(srv.URL + "/data.bin")
	require.NoError(t, err)
	defer f.Close()
	assert.Equal(t, int64(10), size)
}

func TestProvider_RangeRead(t *testing.T) {
	content := []byte("0123456789")
	srv := rangeServer(t, content)
	defer srv.Close()

	p := New(DefaultConfig(), zap.NewNop())
	f, _, err := p.OpenAndSize(srv.URL + "/data.bin")
	require.NoError(t, err)
	defer f.Close()

	// 中间区间
	buf := make([]byte, 4)
	n, err := f.ReadAt(buf, 3)
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	assert.Equal(t, "3456", string(buf))

	// 末尾短读
	n, err = f.ReadAt(buf, 8)
	assert.Equal(t, 2, n)
	assert.True(t, errors.Is(err, io.EOF))
	assert.Equal(t, "89", string(buf[:n]))
}

func TestProvider_WholeObjectSkipsRangeHeader(t *testing.T) {
	content := []byte("abcd")
	var sawRange bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodHead {
			w.Header().Set("Content-Length", "4")
			return
		}
		if r.Header.Get("Range") != "" {
			sawRange = true
		}
		w.Write(content)
	}))
	defer srv.Close()

	p := New(DefaultConfig(), zap.NewNop())
	f, _, err := p.OpenAndSize(srv.URL)
	require.NoError(t, err)

	buf := make([]byte, 4)
	n, err := f.ReadAt(buf, 0)
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	assert.False(t, sawRange)
}

func TestProvider_NotFound(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	p := New(DefaultConfig(), zap.NewNop())
	_, _, err := p.OpenAndSize(srv.URL + "/missing")
	assert.True(t, errors.Is(err, provider.ErrNotFound))
}

func TestProvider_UnexpectedStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	p := New(DefaultConfig(), zap.NewNop())
	_, _, err := p.OpenAndSize(srv.URL)
	assert.True(t, types.IsErrorCode(err, types.ErrInvalidHTTPStatus))
}

func TestProvider_CompressedContentSizeUnknown(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Encoding", "gzip")
		w.Header().Set("Content-Length", "42")
	}))
	defer srv.Close()

	p := New(DefaultConfig(), zap.NewNop())
	_, size, err := p.OpenAndSize(srv.URL)
	require.NoError(t, err)
	// 压缩响应的大小不可信，回退到 EOF 判定
	assert.Equal(t, int64(0), size)
}

func TestProvider_ServerIgnoresRange(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodHead {
			w.Header().Set("Content-Length", "100")
			return
		}
		io.Copy(w, strings.NewReader(strings.Repeat("x", 100)))
	}))
	defer srv.Close()

	p := New(DefaultConfig(), zap.NewNop())
	f, _, err := p.OpenAndSize(srv.URL)
	require.NoError(t, err)

	buf := make([]byte, 10)
	_, err = f.ReadAt(buf, 50)
	assert.True(t, types.IsErrorCode(err, types.ErrInvalidHTTPStatus))
}
