// =============================================================================
// Package quick — One-Line Engine Construction
// =============================================================================
// Provides a convenience entry point for creating fetch engines with
// minimal boilerplate. Delegates to engine.New and the provider packages
// internally.
//
// The package lives under quick/ (not root) so the root package can stay
// a thin re-export shim.
//
// Usage:
//
//	import "github.com/BaSui01/fetchflow/quick"
//
//	e, err := quick.New(quick.WithFS())
//	e, err := quick.New(quick.WithHTTP(httpprov.DefaultConfig()))
//	e, err := quick.New(quick.WithProvider(myProvider), quick.WithLanes(4))
//
// =============================================================================
package quick

import (
	"fmt"

	"go.uber.org/zap"
	"gocloud.dev/blob"

	"github.com/BaSui01/fetchflow/engine"
	"github.com/BaSui01/fetchflow/provider"
	"github.com/BaSui01/fetchflow/provider/blobprov"
	"github.com/BaSui01/fetchflow/provider/fsprov"
	"github.com/BaSui01/fetchflow/provider/httpprov"
	"github.com/BaSui01/fetchflow/types"
)

// Option configures the engine created by New.
type Option func(*options)

type options struct {
	cfg      types.EngineConfig
	provider provider.Provider
	logger   *zap.Logger
}

// WithProvider sets a pre-built IO provider.
func WithProvider(p provider.Provider) Option {
	return func(o *options) { o.provider = p }
}

// WithFS uses the local filesystem backend.
func WithFS() Option {
	return func(o *options) { o.provider = fsprov.New() }
}

// WithFSRoot uses the local filesystem backend rooted at dir.
func WithFSRoot(dir string) Option {
	return func(o *options) { o.provider = fsprov.NewWithRoot(dir) }
}

// WithHTTP uses the HTTP (HEAD + Range GET) backend.
func WithHTTP(cfg httpprov.Config) Option {
	return func(o *options) {
		logger := o.logger
		if logger == nil {
			logger = zap.NewNop()
		}
		o.provider = httpprov.New(cfg, logger)
	}
}

// WithBucket uses a gocloud.dev blob bucket backend.
func WithBucket(bucket *blob.Bucket) Option {
	return func(o *options) { o.provider = blobprov.New(bucket) }
}

// WithChannels sets the number of IO channels.
func WithChannels(n int) Option {
	return func(o *options) { o.cfg.NumChannels = n }
}

// WithLanes sets the number of lanes per channel.
func WithLanes(n int) Option {
	return func(o *options) { o.cfg.NumLanes = n }
}

// WithMaxRequests sets the request pool capacity.
func WithMaxRequests(n int) Option {
	return func(o *options) { o.cfg.MaxRequests = n }
}

// WithLogger sets a custom zap logger. Defaults to zap.NewNop().
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// New creates a fetch engine with minimal configuration.
func New(opts ...Option) (*engine.Engine, error) {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	if o.provider == nil {
		return nil, fmt.Errorf("provider is required: use WithProvider, WithFS, WithHTTP, or WithBucket")
	}
	if o.logger == nil {
		o.logger = zap.NewNop()
	}
	return engine.New(o.cfg, o.provider, engine.WithLogger(o.logger))
}
