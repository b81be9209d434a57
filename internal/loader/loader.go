// Package loader resolves template names to source text and staleness
// metadata. Loaders are the only collaborators that know where template
// source physically lives; the environment consumes them purely through
// the Loader interface.
package loader

// Loader resolves a template name to source text and staleness metadata.
type Loader interface {
	// Source returns the source text for the named template. It fails
	// with a *errors.LoaderError when the name cannot be resolved.
	Source(name string) (string, error)

	// CacheKey returns the per-name component of the template's cache
	// identity. For filesystem loaders this is the resolved path; the
	// key must be stable for as long as the name maps to the same
	// logical template.
	CacheKey(name string) (string, error)

	// IsFresh reports whether the named template was unchanged since
	// the given Unix timestamp.
	IsFresh(name string, ts int64) bool

	// Exists reports whether the loader can resolve the name without
	// loading its source.
	Exists(name string) bool
}
