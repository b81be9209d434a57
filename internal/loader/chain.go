package loader

import (
	stencilerrors "github.com/stencilhq/stencil/internal/errors"
)

// ChainLoader tries an ordered list of loaders and delegates to the
// first one that can resolve the name. The environment uses it to
// install a temporary in-memory loader in front of the configured one
// while compiling inline templates.
type ChainLoader struct {
	loaders []Loader
}

var _ Loader = (*ChainLoader)(nil)

// NewChainLoader creates a chain over the given loaders, consulted in
// order.
func NewChainLoader(loaders ...Loader) *ChainLoader {
	return &ChainLoader{loaders: loaders}
}

// Source returns the source from the first loader that resolves the name.
func (l *ChainLoader) Source(name string) (string, error) {
	for _, ld := range l.loaders {
		if ld.Exists(name) {
			return ld.Source(name)
		}
	}
	return "", stencilerrors.NewLoaderError(name, nil)
}

// CacheKey delegates to the first loader that resolves the name.
func (l *ChainLoader) CacheKey(name string) (string, error) {
	for _, ld := range l.loaders {
		if ld.Exists(name) {
			return ld.CacheKey(name)
		}
	}
	return "", stencilerrors.NewLoaderError(name, nil)
}

// IsFresh delegates to the first loader that resolves the name.
func (l *ChainLoader) IsFresh(name string, ts int64) bool {
	for _, ld := range l.loaders {
		if ld.Exists(name) {
			return ld.IsFresh(name, ts)
		}
	}
	return false
}

// Exists reports whether any loader in the chain resolves the name.
func (l *ChainLoader) Exists(name string) bool {
	for _, ld := range l.loaders {
		if ld.Exists(name) {
			return true
		}
	}
	return false
}
