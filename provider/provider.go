// Package provider defines the IO backend interface consumed by the
// fetch engine, plus the asynchronous variant used on cooperative
// (event-loop) hosts.
package provider

import (
	"errors"
	"io"

	"github.com/BaSui01/fetchflow/types"
)

// File is an open resource handle. ReadAt serves the engine's
// read-range operation; implementations are accessed by one worker
// goroutine at a time.
type File interface {
	io.ReaderAt
	io.Closer
}

// Provider opens resources and reports their total size. Workers call
// OpenAndSize once per request and then issue sequential ReadAt calls
// on the returned File.
type Provider interface {
	// OpenAndSize opens the resource at path and returns its handle and
	// total content size in bytes. A size of 0 with a nil error means
	// the provider cannot vouch for the size; the engine then relies on
	// io.EOF alone to detect the end of the content.
	OpenAndSize(path string) (File, int64, error)
}

// ErrNotFound is returned by providers when the resource does not exist.
var ErrNotFound = errors.New("provider: resource not found")

// Completions is the engine-side continuation surface for asynchronous
// providers. All methods must be called on the engine's goroutine.
type Completions interface {
	// OnHeadResponse delivers the content size for a slot in the opening
	// state.
	OnHeadResponse(slot types.Handle, contentSize int64)
	// OnRangeResponse delivers the byte count of a completed range read.
	OnRangeResponse(slot types.Handle, fetched int64)
	// OnFailed marks the slot as failed with the given reason.
	OnFailed(slot types.Handle, code types.ErrorCode)
}

// AsyncProvider is the cooperative-platform backend. Instead of blocking
// workers, the engine issues StartOpen/StartRead and the provider later
// invokes the bound Completions from the engine's own goroutine (e.g.
// from an event-loop turn).
type AsyncProvider interface {
	// Bind attaches the engine's completion surface. Called once during
	// engine setup, before any Start call.
	Bind(c Completions)
	// StartOpen schedules the open-and-size operation for a slot.
	StartOpen(slot types.Handle, path string)
	// StartRead schedules a range read of len(dst) bytes at offset into
	// dst for a slot that has already been opened.
	StartRead(slot types.Handle, offset int64, dst []byte)
}
