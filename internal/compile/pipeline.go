package compile

import (
	"fmt"

	stencilerrors "github.com/stencilhq/stencil/internal/errors"
)

// Pipeline turns template source into an executable Program. The
// environment only depends on this contract; the lexer and parser
// behind the default implementation are interchangeable.
type Pipeline interface {
	// Compile compiles source under the given template name. Any
	// tokenize, parse or generation failure is returned as a
	// *errors.SyntaxError carrying the name.
	Compile(source, name string) (*Program, error)
}

// Compiler is the default Pipeline implementation.
type Compiler struct {
	// Optimizations selects the rewrite passes applied to the parsed
	// tree, as a bit set. OptimizeNone (the zero value) disables them;
	// OptimizeAll enables every pass.
	Optimizations int
}

var _ Pipeline = (*Compiler)(nil)

// NewCompiler creates the default compiler with every optimization
// enabled.
func NewCompiler() *Compiler {
	return &Compiler{Optimizations: OptimizeAll}
}

// Compile implements Pipeline.
func (c *Compiler) Compile(source, name string) (program *Program, err error) {
	if name == "" {
		return nil, stencilerrors.NewLogicError("compile", "template name must not be empty")
	}

	// An unexpected panic in any stage still surfaces as a SyntaxError
	// so callers see one consistent failure type at this boundary.
	defer func() {
		if r := recover(); r != nil {
			err = stencilerrors.WrapSyntax(name, fmt.Errorf("internal compiler failure: %v", r))
		}
	}()

	tokens, err := newLexer(name, source).tokenize()
	if err != nil {
		return nil, stencilerrors.WrapSyntax(name, err)
	}
	root, err := parse(name, tokens)
	if err != nil {
		return nil, stencilerrors.WrapSyntax(name, err)
	}
	return &Program{Name: name, Root: optimize(root, c.Optimizations)}, nil
}

// NewError creates a located syntax error. Shared by the lexer and
// parser stages.
func NewError(name string, line int, message string) error {
	return stencilerrors.NewSyntaxError(name, line, message)
}
