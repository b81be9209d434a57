package extension

import (
	"sort"
	"strings"
	"sync"

	"github.com/stencilhq/stencil/internal/compile"
	stencilerrors "github.com/stencilhq/stencil/internal/errors"
	"github.com/stencilhq/stencil/internal/version"
)

// Registry aggregates registered extensions. Registration is open
// until the first runtime initialization; after that the composition
// is frozen for the life of the registry.
type Registry struct {
	mu           sync.RWMutex
	extensions   []Extension
	initialized  bool
	lastModified int64
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{lastModified: version.BuildTime()}
}

// Register adds an extension. Registering after the registry has been
// initialized is a LogicError: compiled programs already reference the
// frozen composition.
func (r *Registry) Register(ext Extension) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.initialized {
		return stencilerrors.NewLogicError("extension.Register",
			"unable to register extension "+ext.Name()+" as extensions have already been initialized")
	}
	r.extensions = append(r.extensions, ext)
	return nil
}

// Signature returns a string capturing the exact composition of
// registered extensions and their contributed callables. Any change to
// the composition changes the signature, and with it every cache
// identity derived from it.
func (r *Registry) Signature() string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	parts := make([]string, 0, len(r.extensions))
	for _, ext := range r.extensions {
		var names []string
		for name := range ext.Filters() {
			names = append(names, "filter:"+name)
		}
		for name := range ext.Functions() {
			names = append(names, "func:"+name)
		}
		for name := range ext.Tests() {
			names = append(names, "test:"+name)
		}
		for name := range ext.Globals() {
			names = append(names, "global:"+name)
		}
		sort.Strings(names)
		parts = append(parts, ext.Name()+"{"+strings.Join(names, ",")+"}")
	}
	return strings.Join(parts, ";")
}

// LastModified returns the Unix timestamp of the most recent change to
// the extension code: the commit timestamp of the binary every
// extension is compiled into. Stable across processes so freshness
// checks keep trusting artifacts written by earlier runs of the same
// binary; composition changes within a process are reflected in the
// signature, and with it in every cache identity, rather than here.
func (r *Registry) LastModified() int64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.lastModified
}

// Initialized reports whether runtime initialization has happened.
func (r *Registry) Initialized() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.initialized
}

// InitRuntime performs one-time runtime initialization of every
// registered extension. Calls after the first are no-ops; the
// transition to the initialized state is irreversible.
func (r *Registry) InitRuntime(host Host) {
	r.mu.Lock()
	if r.initialized {
		r.mu.Unlock()
		return
	}
	r.initialized = true
	exts := make([]Extension, len(r.extensions))
	copy(exts, r.extensions)
	r.mu.Unlock()

	for _, ext := range exts {
		ext.InitRuntime(host)
	}
}

// Globals merges the globals contributed by every extension, later
// registrations winning on key collision.
func (r *Registry) Globals() map[string]interface{} {
	r.mu.RLock()
	defer r.mu.RUnlock()

	merged := make(map[string]interface{})
	for _, ext := range r.extensions {
		for name, value := range ext.Globals() {
			merged[name] = value
		}
	}
	return merged
}

// Filters aggregates every contributed filter, later registrations
// winning on name collision.
func (r *Registry) Filters() map[string]compile.FilterFunc {
	r.mu.RLock()
	defer r.mu.RUnlock()

	merged := make(map[string]compile.FilterFunc)
	for _, ext := range r.extensions {
		for name, fn := range ext.Filters() {
			merged[name] = fn
		}
	}
	return merged
}

// Functions aggregates every contributed function.
func (r *Registry) Functions() map[string]compile.FunctionFunc {
	r.mu.RLock()
	defer r.mu.RUnlock()

	merged := make(map[string]compile.FunctionFunc)
	for _, ext := range r.extensions {
		for name, fn := range ext.Functions() {
			merged[name] = fn
		}
	}
	return merged
}

// Tests aggregates every contributed test.
func (r *Registry) Tests() map[string]compile.TestFunc {
	r.mu.RLock()
	defer r.mu.RUnlock()

	merged := make(map[string]compile.TestFunc)
	for _, ext := range r.extensions {
		for name, fn := range ext.Tests() {
			merged[name] = fn
		}
	}
	return merged
}
