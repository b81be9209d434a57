package environment

import (
	stencilerrors "github.com/stencilhq/stencil/internal/errors"
)

// AddGlobal registers a value available to every render without being
// passed in the context. Before the extension set is initialized any
// name may be added or overwritten. Afterwards registration is closed:
// only names that already exist may be updated; introducing a new name
// is a LogicError because compiled templates have already resolved
// against the frozen global set.
func (e *Environment) AddGlobal(name string, value interface{}) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.registry.Initialized() {
		snapshot := e.resolvedGlobalsLocked()
		if _, exists := snapshot[name]; !exists {
			return stencilerrors.NewLogicError("environment.AddGlobal",
				"unable to add global "+name+" as the runtime is already initialized")
		}
		snapshot[name] = value
	}

	e.globals[name] = value
	return nil
}

// Globals returns the effective global map: extension-contributed
// globals overlaid with locally registered ones, local values winning
// on collision. After initialization the merge is computed once and
// the snapshot reused; before initialization it is recomputed so
// in-flight registration is always visible.
func (e *Environment) Globals() map[string]interface{} {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.registry.Initialized() {
		return copyGlobals(e.resolvedGlobalsLocked())
	}
	return e.mergeWithExtensionsLocked()
}

// resolvedGlobalsLocked lazily computes and caches the post-
// initialization snapshot.
func (e *Environment) resolvedGlobalsLocked() map[string]interface{} {
	if e.resolvedGlobals == nil {
		e.resolvedGlobals = e.mergeWithExtensionsLocked()
	}
	return e.resolvedGlobals
}

func (e *Environment) mergeWithExtensionsLocked() map[string]interface{} {
	merged := e.registry.Globals()
	for name, value := range e.globals {
		merged[name] = value
	}
	return merged
}

// MergeGlobals overlays the globals under a render context: every key
// already present in vars stays as given, every globals key absent
// from vars is inserted. Context values always win on collision. The
// result is a fresh map; the caller's map is never written to, so one
// context may back concurrent renders. Only the usually much smaller
// globals map is walked for the precedence check.
func (e *Environment) MergeGlobals(vars map[string]interface{}) map[string]interface{} {
	globals := e.Globals()

	merged := make(map[string]interface{}, len(vars)+len(globals))
	for name, value := range vars {
		merged[name] = value
	}
	for name, value := range globals {
		if _, present := merged[name]; !present {
			merged[name] = value
		}
	}
	return merged
}

func copyGlobals(globals map[string]interface{}) map[string]interface{} {
	copied := make(map[string]interface{}, len(globals))
	for name, value := range globals {
		copied[name] = value
	}
	return copied
}
