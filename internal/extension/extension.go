// Package extension manages the pluggable bundles that contribute
// filters, functions, tests and globals to the rendering environment.
//
// The Registry aggregates every registered extension and exposes the
// two pieces of state that feed cache identity: a composition signature
// that changes whenever the set of registered callables changes, and a
// last-modification timestamp used by freshness checks.
package extension

import (
	"github.com/stencilhq/stencil/internal/compile"
)

// Host is the narrow capability view of the environment handed to
// extensions during one-time runtime initialization.
type Host interface {
	Charset() string
	Debug() bool
}

// Extension contributes filters, functions, tests and globals.
type Extension interface {
	// Name identifies the extension inside the composition signature.
	Name() string

	Filters() map[string]compile.FilterFunc
	Functions() map[string]compile.FunctionFunc
	Tests() map[string]compile.TestFunc
	Globals() map[string]interface{}

	// InitRuntime performs one-time runtime initialization. The
	// registry guarantees at most one effective call per extension
	// per registry lifetime.
	InitRuntime(host Host)
}
