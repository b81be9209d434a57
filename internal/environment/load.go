package environment

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"

	"github.com/stencilhq/stencil/internal/compile"
	stencilerrors "github.com/stencilhq/stencil/internal/errors"
	"github.com/stencilhq/stencil/internal/loader"
)

// LoadTemplate resolves a name to a renderable template instance,
// going through the full identity -> memo -> artifact-store ->
// compile-or-load -> activate -> instantiate -> memoize pipeline. The
// optional index addresses an embedded sub-template sharing the base
// name.
//
// Repeated loads for the same identity on the same Environment return
// the identical instance and perform no further I/O.
func (e *Environment) LoadTemplate(name string, index ...int) (*Template, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.loadLocked(name, index)
}

// loadLocked runs the load pipeline. The environment mutex must be
// held: memo insertion, globals resolution and the loader reference
// are one critical section per spec'd single-owner semantics.
func (e *Environment) loadLocked(name string, index []int) (*Template, error) {
	identity, err := e.deriveIdentity(e.loader, name, index)
	if err != nil {
		return nil, err
	}

	// Memo hit: no further I/O of any kind.
	if tmpl, ok := e.memo[identity]; ok {
		return tmpl, nil
	}

	program, err := e.loadProgram(e.loader, name, identity)
	if err != nil {
		return nil, err
	}

	// One-time extension runtime initialization before the first
	// instantiation in this environment's lifetime. Idempotent; the
	// registry permanently freezes the composition.
	e.registry.InitRuntime(e)

	tmpl := newTemplate(e, program, identity)
	e.memo[identity] = tmpl
	return tmpl, nil
}

// loadProgram checks the artifact store, falls back to compiling, and
// returns the activated program for the identity.
func (e *Environment) loadProgram(ld loader.Loader, name, identity string) (*compile.Program, error) {
	key := e.store.Key(name, identity)

	ts := e.store.Timestamp(key)
	if ts > 0 {
		// With auto-reload off, any present artifact is trusted
		// unconditionally; otherwise it must pass the freshness check.
		if !e.autoReload || e.isFresh(ld, name, ts) {
			program, err := e.store.Activate(key)
			switch {
			case err != nil:
				// A present but unreadable artifact (corrupt write,
				// incompatible encoding from another build) is a miss:
				// recompiling overwrites it with a readable one.
				e.logger.Warn(context.Background(), err, "discarding unreadable artifact",
					"template", name, "identity", identity)
			case program != nil:
				e.logger.Debug(context.Background(), "artifact cache hit",
					"template", name, "identity", identity)
				return program, nil
			}
		}
	}

	source, err := ld.Source(name)
	if err != nil {
		return nil, err
	}

	program, err := e.pipeline.Compile(source, name)
	if err != nil {
		return nil, stencilerrors.WrapSyntax(name, err)
	}
	e.logger.Debug(context.Background(), "compiled template",
		"template", name, "identity", identity)

	artifact, err := compile.Encode(program)
	if err != nil {
		return nil, err
	}
	if err := e.store.Write(key, artifact); err != nil {
		return nil, err
	}

	// Activate through the store so the per-process activation guard
	// owns the program; a concurrent external writer for the same
	// identity produced identical content, so whichever activation won
	// is interchangeable with ours.
	activated, err := e.store.Activate(key)
	if err != nil {
		return nil, err
	}
	if activated != nil {
		return activated, nil
	}
	// Disabled store: nothing persisted, use the compiled program.
	return program, nil
}

// CreateTemplate compiles template source that exists nowhere in the
// loader, under a random synthetic name. The configured loader is
// temporarily fronted by an in-memory loader holding just this source
// and is restored on every exit path, success or failure.
func (e *Environment) CreateTemplate(source string) (*Template, error) {
	suffix := make([]byte, 16)
	if _, err := rand.Read(suffix); err != nil {
		return nil, fmt.Errorf("generating synthetic template name: %w", err)
	}
	name := "__string_template__" + hex.EncodeToString(suffix)

	e.mu.Lock()
	defer e.mu.Unlock()

	original := e.loader
	e.loader = loader.NewChainLoader(
		loader.NewMapLoader(map[string]string{name: source}),
		original,
	)
	defer func() { e.loader = original }()

	return e.loadLocked(name, nil)
}

// Render loads the named template and renders it with the given
// context merged over the environment globals.
func (e *Environment) Render(name string, vars map[string]interface{}) (string, error) {
	tmpl, err := e.LoadTemplate(name)
	if err != nil {
		return "", err
	}
	return tmpl.Render(vars)
}

// Display renders the named template directly into w, encoding to the
// configured charset.
func (e *Environment) Display(w io.Writer, name string, vars map[string]interface{}) error {
	tmpl, err := e.LoadTemplate(name)
	if err != nil {
		return err
	}
	return tmpl.Display(w, vars)
}
