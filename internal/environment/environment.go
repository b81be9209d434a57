// Package environment implements the orchestration core of the stencil
// engine: it turns a named template into a reusable executable program,
// transparently caching compiled artifacts across process runs.
//
// One Environment owns the in-process memo table, the globals
// lifecycle and the currently active loader. All mutable state is
// guarded by a single mutex, so one Environment may be shared across
// goroutines; the memoized template instances themselves are immutable
// and safe for concurrent rendering.
package environment

import (
	"strings"
	"sync"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"

	"github.com/stencilhq/stencil/internal/cache"
	"github.com/stencilhq/stencil/internal/compile"
	stencilerrors "github.com/stencilhq/stencil/internal/errors"
	"github.com/stencilhq/stencil/internal/extension"
	"github.com/stencilhq/stencil/internal/loader"
	"github.com/stencilhq/stencil/internal/logging"
)

// Options configures a new Environment.
type Options struct {
	// Debug enables verbose pipeline logging.
	Debug bool
	// AutoReload makes cached artifacts subject to freshness checks on
	// every load. Leave off in production to avoid repeated staleness
	// probes; turn on in development for hot reload.
	AutoReload bool
	// StrictVariables makes unknown variable lookups a RuntimeError
	// instead of rendering empty.
	StrictVariables bool
	// AutoEscape HTML-escapes every output expression not marked safe.
	AutoEscape bool
	// Charset is the output character set, default utf-8.
	Charset string
	// Optimizations selects the compiler rewrite passes, as a bit set.
	// The zero value disables them; compile.OptimizeAll (-1) enables
	// every pass. Participates in cache identity since it changes the
	// compiled artifact.
	Optimizations int
	// Cache is the polymorphic cache target: a filesystem path string,
	// false/nil for disabled, or a cache.Store implementation.
	Cache interface{}
	// Pipeline overrides the default compiler. Mostly used by tests.
	Pipeline compile.Pipeline
	// Logger receives pipeline debug logging. Nil means silent.
	Logger logging.Logger
}

// Environment drives the request -> identity -> cache-check ->
// compile-or-load -> activate -> instantiate -> memoize flow.
type Environment struct {
	mu sync.Mutex

	loader   loader.Loader
	registry *extension.Registry
	pipeline compile.Pipeline
	store    cache.Store
	logger   logging.Logger

	debug           bool
	autoReload      bool
	strictVariables bool
	autoEscape      bool
	charset         string
	optimizations   int
	encoder         encoding.Encoding // nil for utf-8 passthrough

	memo            map[string]*Template
	globals         map[string]interface{}
	resolvedGlobals map[string]interface{}
}

// New creates an Environment over the given loader. The core extension
// is registered by default; further extensions may be registered until
// the first template is instantiated.
func New(ld loader.Loader, opts Options) (*Environment, error) {
	if ld == nil {
		return nil, stencilerrors.NewLogicError("environment.New", "a loader is required")
	}

	store, err := cache.ResolveTarget(opts.Cache)
	if err != nil {
		return nil, err
	}

	charset := strings.ToLower(opts.Charset)
	if charset == "" {
		charset = "utf-8"
	}
	var enc encoding.Encoding
	if charset != "utf-8" {
		enc, err = htmlindex.Get(charset)
		if err != nil {
			return nil, stencilerrors.NewLogicError("environment.New", "unknown charset "+opts.Charset)
		}
	}

	pipeline := opts.Pipeline
	if pipeline == nil {
		pipeline = &compile.Compiler{Optimizations: opts.Optimizations}
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.NopLogger{}
	}

	env := &Environment{
		loader:          ld,
		registry:        extension.NewRegistry(),
		pipeline:        pipeline,
		store:           store,
		logger:          logger.WithComponent("environment"),
		debug:           opts.Debug,
		autoReload:      opts.AutoReload,
		strictVariables: opts.StrictVariables,
		autoEscape:      opts.AutoEscape,
		charset:         charset,
		optimizations:   opts.Optimizations,
		encoder:         enc,
		memo:            make(map[string]*Template),
		globals:         make(map[string]interface{}),
	}
	if err := env.registry.Register(extension.NewCoreExtension()); err != nil {
		return nil, err
	}
	return env, nil
}

// RegisterExtension adds an extension. Fails with a LogicError once
// the extension set has been initialized by a first template use.
func (e *Environment) RegisterExtension(ext extension.Extension) error {
	return e.registry.Register(ext)
}

// Extensions exposes the registry to collaborators that need the
// composition signature or the extension-contributed globals.
func (e *Environment) Extensions() *extension.Registry {
	return e.registry
}

// Charset returns the configured output character set.
func (e *Environment) Charset() string { return e.charset }

// Debug reports whether debug mode is enabled.
func (e *Environment) Debug() bool { return e.debug }

// AutoReload reports whether cached artifacts are freshness-checked.
func (e *Environment) AutoReload() bool { return e.autoReload }

// StrictVariables reports whether unknown variables fail renders.
func (e *Environment) StrictVariables() bool { return e.strictVariables }

// Loader returns the currently active loader.
func (e *Environment) Loader() loader.Loader {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.loader
}

// SetLoader replaces the active loader. Already-memoized templates are
// unaffected; identity derivation for new loads consults the new loader.
func (e *Environment) SetLoader(ld loader.Loader) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.loader = ld
}

// runtime assembles the execution runtime handed to programs. The
// registry aggregation is cheap relative to rendering and always
// reflects the frozen post-initialization composition.
func (e *Environment) runtime() *compile.Runtime {
	return &compile.Runtime{
		Filters:         e.registry.Filters(),
		Functions:       e.registry.Functions(),
		Tests:           e.registry.Tests(),
		StrictVariables: e.strictVariables,
		AutoEscape:      e.autoEscape,
	}
}

var _ extension.Host = (*Environment)(nil)
