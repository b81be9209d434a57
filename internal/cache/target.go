package cache

import (
	"fmt"

	"github.com/stencilhq/stencil/internal/compile"
	stencilerrors "github.com/stencilhq/stencil/internal/errors"
)

// DisabledStore never persists anything. Every lookup misses, so the
// environment compiles on every cold load (the in-process memo table
// still short-circuits repeated loads within one environment).
type DisabledStore struct{}

var _ Store = DisabledStore{}

// Key implements Store.
func (DisabledStore) Key(name, identity string) string { return identity }

// Timestamp implements Store.
func (DisabledStore) Timestamp(string) int64 { return 0 }

// Activate implements Store.
func (DisabledStore) Activate(string) (*compile.Program, error) { return nil, nil }

// Write implements Store.
func (DisabledStore) Write(string, []byte) error { return nil }

// ResolveTarget turns the polymorphic cache-target option into one
// concrete Store at configuration time:
//
//	nil or false  -> DisabledStore
//	string path   -> FilesystemStore rooted at the path
//	Store value   -> used as-is
//
// Anything else is a LogicError; the decision happens exactly once so
// no runtime type inspection remains afterwards.
func ResolveTarget(target interface{}) (Store, error) {
	switch t := target.(type) {
	case nil:
		return DisabledStore{}, nil
	case bool:
		if t {
			return nil, stencilerrors.NewLogicError("cache.ResolveTarget",
				"cache target true is ambiguous: use a filesystem path or a Store implementation")
		}
		return DisabledStore{}, nil
	case string:
		if t == "" {
			return DisabledStore{}, nil
		}
		return NewFilesystemStore(t), nil
	case Store:
		return t, nil
	default:
		return nil, stencilerrors.NewLogicError("cache.ResolveTarget",
			fmt.Sprintf("cache target must be a path, false or a Store implementation, got %T", target))
	}
}
