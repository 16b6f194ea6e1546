// Package fetchflow provides a top-level convenience entry point for
// creating fetch engines with minimal boilerplate.
//
// Usage:
//
//	import "github.com/BaSui01/fetchflow"
//
//	e, err := fetchflow.New(fetchflow.WithFS())
//	e, err := fetchflow.New(fetchflow.WithHTTP(httpprov.DefaultConfig()))
//	e, err := fetchflow.New(fetchflow.WithProvider(myProvider))
//
// This is a thin wrapper around [quick.New]; both produce identical results.
// Use this package when you prefer the shorter import path.
package fetchflow

import (
	"github.com/BaSui01/fetchflow/engine"
	"github.com/BaSui01/fetchflow/quick"
)

// Option configures the engine created by [New].
type Option = quick.Option

// New creates an [engine.Engine] with minimal configuration.
// At minimum, an IO provider must be specified via [WithFS], [WithHTTP],
// [WithBucket], or [WithProvider].
func New(opts ...Option) (*engine.Engine, error) {
	return quick.New(opts...)
}

// Re-export provider shortcuts so callers never need to import quick/.

// WithProvider sets a pre-built IO provider.
var WithProvider = quick.WithProvider

// WithFS uses the local filesystem backend.
var WithFS = quick.WithFS

// WithFSRoot uses the local filesystem backend rooted at a directory.
var WithFSRoot = quick.WithFSRoot

// WithHTTP uses the HTTP (HEAD + Range GET) backend.
var WithHTTP = quick.WithHTTP

// WithBucket uses a gocloud.dev blob bucket backend.
var WithBucket = quick.WithBucket

// WithChannels sets the number of IO channels.
var WithChannels = quick.WithChannels

// WithLanes sets the number of lanes per channel.
var WithLanes = quick.WithLanes

// WithMaxRequests sets the request pool capacity.
var WithMaxRequests = quick.WithMaxRequests

// WithLogger sets a custom zap logger.
var WithLogger = quick.WithLogger
