package loader

import (
	"crypto/sha256"
	"encoding/hex"
	"sync"

	stencilerrors "github.com/stencilhq/stencil/internal/errors"
)

// MapLoader serves template source from an in-memory map. It backs
// inline template compilation and is convenient in tests.
type MapLoader struct {
	mu        sync.RWMutex
	templates map[string]string
}

var _ Loader = (*MapLoader)(nil)

// NewMapLoader creates a loader over a copy of the given templates.
func NewMapLoader(templates map[string]string) *MapLoader {
	copied := make(map[string]string, len(templates))
	for name, source := range templates {
		copied[name] = source
	}
	return &MapLoader{templates: copied}
}

// Set adds or replaces a template.
func (l *MapLoader) Set(name, source string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.templates[name] = source
}

// Source returns the stored source for the name.
func (l *MapLoader) Source(name string) (string, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	source, ok := l.templates[name]
	if !ok {
		return "", stencilerrors.NewLoaderError(name, nil)
	}
	return source, nil
}

// CacheKey hashes the source itself: in-memory templates have no stable
// backing location, so identity follows content.
func (l *MapLoader) CacheKey(name string) (string, error) {
	source, err := l.Source(name)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256([]byte(name + "\x00" + source))
	return hex.EncodeToString(sum[:]), nil
}

// IsFresh always reports true for resolvable names: the cache key
// already changes with the content, so a stored artifact can never go
// stale without also changing identity.
func (l *MapLoader) IsFresh(name string, ts int64) bool {
	return l.Exists(name)
}

// Exists reports whether the name is present in the map.
func (l *MapLoader) Exists(name string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, ok := l.templates[name]
	return ok
}
