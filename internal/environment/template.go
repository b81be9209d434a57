package environment

import (
	"io"
	"strings"

	"golang.org/x/text/transform"

	"github.com/stencilhq/stencil/internal/compile"
)

// Template is a loaded, renderable template instance bound to the
// environment that produced it. Instances are memoized per cache
// identity and live for the life of the environment; they are
// immutable and safe for concurrent rendering.
type Template struct {
	env      *Environment
	program  *compile.Program
	identity string
}

func newTemplate(env *Environment, program *compile.Program, identity string) *Template {
	return &Template{env: env, program: program, identity: identity}
}

// Name returns the name the template was compiled under.
func (t *Template) Name() string { return t.program.Name }

// Identity returns the cache identity the instance is memoized under.
func (t *Template) Identity() string { return t.identity }

// Render executes the template with vars merged over the environment
// globals and returns the output.
func (t *Template) Render(vars map[string]interface{}) (string, error) {
	var b strings.Builder
	merged := t.env.MergeGlobals(vars)
	if err := t.program.Execute(t.env.runtime(), merged, &b); err != nil {
		return "", err
	}
	return b.String(), nil
}

// Display executes the template directly into w, transcoding to the
// environment charset when it is not utf-8. Render-time failures
// propagate unchanged; output already written stays written.
func (t *Template) Display(w io.Writer, vars map[string]interface{}) error {
	merged := t.env.MergeGlobals(vars)
	if t.env.encoder == nil {
		return t.program.Execute(t.env.runtime(), merged, w)
	}

	tw := transform.NewWriter(w, t.env.encoder.NewEncoder())
	err := t.program.Execute(t.env.runtime(), merged, tw)
	if cerr := tw.Close(); err == nil {
		err = cerr
	}
	return err
}
