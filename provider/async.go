package provider

import (
	"errors"
	"io"

	"github.com/BaSui01/fetchflow/types"
)

// AsyncAdapter turns a synchronous Provider into an AsyncProvider for
// cooperative (event-loop) hosts. StartOpen and StartRead only record
// the operation; Pump executes everything recorded so far and invokes
// the bound completion entry points, modeling one event-loop turn.
//
// The host drives it as:
//
//	engine.DoWork()
//	adapter.Pump()
//	engine.DoWork()
//
// Files opened for a slot are closed when the slot's content is
// exhausted or its read fails.
type AsyncAdapter struct {
	inner Provider
	comp  Completions

	pending []asyncOp
	files   map[types.Handle]openFile
}

type openFile struct {
	file File
	size int64
}

type asyncOp struct {
	slot   types.Handle
	path   string
	offset int64
	dst    []byte
	read   bool
}

// NewAsyncAdapter wraps a synchronous provider.
func NewAsyncAdapter(inner Provider) *AsyncAdapter {
	return &AsyncAdapter{
		inner: inner,
		files: make(map[types.Handle]openFile),
	}
}

// Bind attaches the engine's completion surface.
func (a *AsyncAdapter) Bind(c Completions) {
	a.comp = c
}

// StartOpen records an open-and-size operation for the next Pump.
func (a *AsyncAdapter) StartOpen(slot types.Handle, path string) {
	a.pending = append(a.pending, asyncOp{slot: slot, path: path})
}

// StartRead records a range read for the next Pump.
func (a *AsyncAdapter) StartRead(slot types.Handle, offset int64, dst []byte) {
	a.pending = append(a.pending, asyncOp{slot: slot, offset: offset, dst: dst, read: true})
}

// Pending returns the number of recorded operations.
func (a *AsyncAdapter) Pending() int {
	return len(a.pending)
}

// Pump executes all recorded operations and delivers their completions.
// Must run on the engine's goroutine, outside DoWork.
func (a *AsyncAdapter) Pump() {
	ops := a.pending
	a.pending = nil
	for _, op := range ops {
		if op.read {
			a.doRead(op)
		} else {
			a.doOpen(op)
		}
	}
}

func (a *AsyncAdapter) doOpen(op asyncOp) {
	f, size, err := a.inner.OpenAndSize(op.path)
	if err != nil {
		code := types.ErrOpenFailed
		if errors.Is(err, ErrNotFound) {
			code = types.ErrFileNotFound
		}
		a.comp.OnFailed(op.slot, code)
		return
	}
	a.files[op.slot] = openFile{file: f, size: size}
	a.comp.OnHeadResponse(op.slot, size)
}

func (a *AsyncAdapter) doRead(op asyncOp) {
	of, ok := a.files[op.slot]
	if !ok {
		a.comp.OnFailed(op.slot, types.ErrReadFailed)
		return
	}
	n, err := of.file.ReadAt(op.dst, op.offset)
	eof := errors.Is(err, io.EOF)
	if err != nil && !eof {
		a.close(op.slot)
		a.comp.OnFailed(op.slot, types.ErrReadFailed)
		return
	}
	if eof || (of.size > 0 && op.offset+int64(n) >= of.size) {
		a.close(op.slot)
	}
	a.comp.OnRangeResponse(op.slot, int64(n))
}

func (a *AsyncAdapter) close(slot types.Handle) {
	if of, ok := a.files[slot]; ok {
		of.file.Close()
		delete(a.files, slot)
	}
}

// Shutdown closes any files still tracked for in-flight slots. Call
// after the engine is closed.
func (a *AsyncAdapter) Shutdown() {
	for slot := range a.files {
		a.close(slot)
	}
	a.pending = nil
}
