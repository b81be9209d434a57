package environment

import (
	"errors"
	"fmt"

	stencilerrors "github.com/stencilhq/stencil/internal/errors"
)

// ResolveTemplate returns the first usable template from an ordered
// candidate list mixing names and already-loaded instances.
//
// An instance candidate is returned immediately without a load
// attempt. A name candidate is loaded; a LoaderError records the
// failure and moves on to the next candidate, any other error
// propagates immediately. When every candidate fails: a single
// attempted name re-raises its original LoaderError unmodified to
// preserve diagnostic fidelity, several attempted names raise one
// aggregate LoaderError listing them all.
func (e *Environment) ResolveTemplate(candidates ...interface{}) (*Template, error) {
	if len(candidates) == 0 {
		return nil, stencilerrors.NewLogicError("environment.ResolveTemplate",
			"at least one template name or instance is required")
	}

	var (
		tried   []string
		lastErr error
	)
	for _, candidate := range candidates {
		switch c := candidate.(type) {
		case *Template:
			return c, nil
		case string:
			tmpl, err := e.LoadTemplate(c)
			if err == nil {
				return tmpl, nil
			}
			var le *stencilerrors.LoaderError
			if !errors.As(err, &le) {
				return nil, err
			}
			tried = append(tried, c)
			lastErr = err
		default:
			return nil, stencilerrors.NewLogicError("environment.ResolveTemplate",
				fmt.Sprintf("candidates must be template names or *Template instances, got %T", candidate))
		}
	}

	// Only name candidates can reach this point: an instance candidate
	// returns above, so a non-empty list that exhausted means at least
	// one name was attempted and lastErr is populated.
	if len(tried) == 1 {
		return nil, lastErr
	}
	return nil, stencilerrors.NewAggregateLoaderError(tried)
}
