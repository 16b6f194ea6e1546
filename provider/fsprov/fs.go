// Package fsprov implements the engine's IO provider on top of the
// local filesystem.
package fsprov

import (
	"fmt"
	"os"

	"github.com/BaSui01/fetchflow/provider"
)

// Provider opens local files. The zero value is usable and resolves
// paths as given; a provider made with NewWithRoot prefixes every
// request path with its root directory. Paths are not otherwise
// checked, so ".." components can reach outside that directory.
type Provider struct {
	root string
}

// New creates a filesystem provider resolving paths as given.
func New() *Provider {
	return &Provider{}
}

// NewWithRoot creates a filesystem provider resolving all request paths
// relative to root.
func NewWithRoot(root string) *Provider {
	return &Provider{root: root}
}

// OpenAndSize opens the file and stats it for the total content size.
func (p *Provider) OpenAndSize(path string) (provider.File, int64, error) {
	if p.root != "" {
		path = p.root + string(os.PathSeparator) + path
	}
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, 0, fmt.Errorf("%w: %s", provider.ErrNotFound, path)
		}
		return nil, 0, fmt.Errorf("open %s: %w", path, err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, 0, fmt.Errorf("stat %s: %w", path, err)
	}
	return f, info.Size(), nil
}
