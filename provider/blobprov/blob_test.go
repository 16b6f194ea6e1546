package blobprov

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocloud.dev/blob/memblob"

	"github.com/BaSui01/fetchflow/provider"
)

func memBucket(t *testing.T, keys map[string][]byte) *Provider {
	t.Helper()
	bucket := memblob.OpenBucket(nil)
	t.Cleanup(func() { bucket.Close() })
	for k, v := range keys {
		require.NoError(t, bucket.WriteAll(context.Background(), k, v, nil))
	}
	return New(bucket)
}

func TestProvider_OpenAndSize(t *testing.T) {
	p := memBucket(t, map[string][]byte{"data/blob.bin": []byte("0123456789")})

	f, size, err := p.OpenAndSize("data/blob.bin")
	require.NoError(t, err)
	defer f.Close()
	assert.Equal(t, int64(10), size)
}

func TestProvider_NotFound(t *testing.T) {
	p := memBucket(t, nil)
	_, _, err := p.OpenAndSize("missing")
	assert.True(t, errors.Is(err, provider.ErrNotFound))
}

func TestProvider_ChunkedReads(t *testing.T) {
	p := memBucket(t, map[string][]byte{"k": []byte("0123456789")})
	f, _, err := p.OpenAndSize("k")
	require.NoError(t, err)
	defer f.Close()

	buf := make([]byte, 4)

	n, err := f.ReadAt(buf, 0)
	require.NoError(t, err)
	assert.Equal(t, "0123", string(buf[:n]))

	n, err = f.ReadAt(buf, 4)
	require.NoError(t, err)
	assert.Equal(t, "4567", string(buf[:n]))

	// final short chunk
	n, err = f.ReadAt(buf, 8)
	assert.Equal(t, 2, n)
	assert.True(t, errors.Is(err, io.EOF))
	assert.Equal(t, "89", string(buf[:n]))
}

func TestProvider_ReadPastEnd(t *testing.T) {
	p := memBucket(t, map[string][]byte{"k": []byte("ab")})
	f, _, err := p.OpenAndSize("k")
	require.NoError(t, err)
	defer f.Close()

	buf := make([]byte, 4)
	n, err := f.ReadAt(buf, 2)
	assert.Equal(t, 0, n)
	assert.True(t, errors.Is(err, io.EOF))
}
