package journal

import (
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/BaSui01/fetchflow/types"
)

func setupJournal(t *testing.T) *Journal {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	j, err := New(db, zap.NewNop())
	require.NoError(t, err)
	return j
}

// 模拟一次成功的流式请求回调序列
func playStreaming(j *Journal, path string) {
	cb := j.Callback(func(*types.Response) {})
	cb(&types.Response{Path: path, Fetched: true, FetchedSize: 4, ContentSize: 10})
	cb(&types.Response{Path: path, Fetched: true, FetchedSize: 4, ContentSize: 10})
	cb(&types.Response{Path: path, Fetched: true, FetchedSize: 2, ContentSize: 10, Finished: true})
}

func TestJournal_RecordsSuccess(t *testing.T) {
	j := setupJournal(t)
	playStreaming(j, "data/a.bin")

	records, err := j.Recent(10)
	require.NoError(t, err)
	require.Len(t, records, 1)

	rec := records[0]
	assert.Equal(t, "data/a.bin", rec.Path)
	assert.Equal(t, OutcomeSuccess, rec.Outcome)
	assert.Equal(t, int64(10), rec.BytesFetched)
	assert.Equal(t, 3, rec.Chunks)
	assert.Equal(t, int64(10), rec.ContentSize)
}

func TestJournal_RecordsFailureAndCancel(t *testing.T) {
	j := setupJournal(t)

	cb := j.Callback(func(*types.Response) {})
	cb(&types.Response{Path: "missing", Failed: true, Finished: true, ErrorCode: types.ErrFileNotFound})

	cb2 := j.Callback(func(*types.Response) {})
	cb2(&types.Response{Path: "cancelled", Failed: true, Cancelled: true, Finished: true, ErrorCode: types.ErrCancelled})

	counts, err := j.CountByOutcome()
	require.NoError(t, err)
	assert.Equal(t, int64(1), counts[OutcomeFailed])
	assert.Equal(t, int64(1), counts[OutcomeCancelled])

	records, err := j.ByPath("missing")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, string(types.ErrFileNotFound), records[0].ErrorCode)
}

func TestJournal_NonTerminalResponsesNotRecorded(t *testing.T) {
	j := setupJournal(t)

	cb := j.Callback(func(*types.Response) {})
	cb(&types.Response{Path: "p", Opened: true})
	cb(&types.Response{Path: "p", Fetched: true, FetchedSize: 4})

	records, err := j.Recent(10)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestJournal_CallbackPassesThrough(t *testing.T) {
	j := setupJournal(t)

	var seen int
	cb := j.Callback(func(*types.Response) { seen++ })
	cb(&types.Response{Path: "p", Opened: true})
	cb(&types.Response{Path: "p", Fetched: true, FetchedSize: 1, Finished: true})
	assert.Equal(t, 2, seen)
}
