package types

// ============================================================
// Request / Response Types
// The request descriptor handed to Send, and the response
// snapshot passed to the user callback.
// ============================================================

// Compile-time limits of the engine. Inline storage inside the request
// pool is sized by these, so they bound what Send accepts.
const (
	// MaxPath is the maximum length of a UTF-8 path/URL in bytes,
	// including a reserved terminator position (the longest accepted
	// path is MaxPath-1 bytes).
	MaxPath = 1024

	// MaxUserDataUint64 is the size of the inline user-data block in
	// 64-bit words.
	MaxUserDataUint64 = 16

	// MaxUserDataBytes is the size of the inline user-data block in bytes.
	MaxUserDataBytes = MaxUserDataUint64 * 8

	// MaxChannels is the hard ceiling for EngineConfig.NumChannels.
	MaxChannels = 16
)

// InvalidLane marks a request that has not been admitted to a lane yet.
const InvalidLane = -1

// ResponseCallback is invoked once per caller-visible state transition,
// always on the goroutine that runs the engine's DoWork. The Response
// (including its Path, UserData and Buffer views) is only valid for the
// duration of the call.
type ResponseCallback func(*Response)

// Request describes one fetch request passed to Send. The engine copies
// what it needs; Buffer stays caller-owned for the whole lifetime of the
// request.
type Request struct {
	// Channel is the index of the IO channel to run this request on.
	Channel int

	// Path is the file path or URL to fetch. Must be non-empty and at
	// most MaxPath-1 bytes long.
	Path string

	// Callback receives response snapshots. Required.
	Callback ResponseCallback

	// Buffer optionally pre-binds a chunk buffer. When nil, the first
	// callback reports Opened; a buffer bound from that callback is used
	// for the next fetch, and without one the request fails with
	// ErrNoBuffer.
	Buffer []byte

	// UserData is copied into the request's inline user-data block at
	// send time. At most MaxUserDataBytes bytes.
	UserData []byte
}

// Response is the snapshot passed to a ResponseCallback. At most one of
// Opened/Fetched/Paused/Failed is true; Finished and Cancelled combine
// with Failed.
type Response struct {
	Handle  Handle
	Channel int
	Lane    int

	// Opened: the resource was opened without a pre-bound buffer; look at
	// ContentSize and bind a buffer now.
	Opened bool
	// Fetched: a chunk of data is available in Buffer.
	Fetched bool
	// Paused: the request sits in the paused state; one callback per
	// DoWork pass while paused.
	Paused bool
	// Failed: the request failed; combined with Finished.
	Failed bool
	// Finished: this is the last callback for the request.
	Finished bool
	// Cancelled: the request was cancelled by the user.
	Cancelled bool

	// ErrorCode carries the failure reason when Failed is set.
	ErrorCode ErrorCode

	// Path borrows the request's stored path.
	Path string

	// UserData is a read/write view of the request's inline user-data
	// block. Only valid during the callback.
	UserData []byte

	// ContentSize is the total size of the resource (0 when unknown).
	ContentSize int64
	// ContentOffset is the start offset of the currently delivered chunk.
	ContentOffset int64
	// FetchedSize is the length of the currently delivered chunk.
	FetchedSize int64

	// Buffer is the currently bound chunk buffer (nil if none).
	Buffer []byte
}
