package errors

import (
	goerrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoaderErrorMessages(t *testing.T) {
	err := NewLoaderError("page.html", nil)
	assert.Equal(t, `template "page.html" not found`, err.Error())

	cause := fmt.Errorf("permission denied")
	err = NewLoaderError("page.html", cause)
	assert.Equal(t, `template "page.html" not found: permission denied`, err.Error())
	assert.Same(t, cause, goerrors.Unwrap(err))

	agg := NewAggregateLoaderError([]string{"a.html", "b.html"})
	assert.Equal(t, "unable to find one of the following templates: a.html, b.html", agg.Error())
}

func TestSyntaxErrorMessages(t *testing.T) {
	err := NewSyntaxError("page.html", 3, "unexpected token")
	assert.Equal(t, `template "page.html" line 3: unexpected token`, err.Error())

	err = NewSyntaxError("page.html", 0, "unexpected token")
	assert.Equal(t, `template "page.html": unexpected token`, err.Error())
}

func TestWrapSyntax(t *testing.T) {
	assert.NoError(t, WrapSyntax("page.html", nil))

	wrapped := WrapSyntax("page.html", fmt.Errorf("boom"))
	var se *SyntaxError
	require.ErrorAs(t, wrapped, &se)
	assert.Equal(t, "page.html", se.Name)

	// An error that already is a SyntaxError keeps its location.
	original := NewSyntaxError("inner.html", 7, "bad token")
	rewrapped := WrapSyntax("outer.html", fmt.Errorf("compiling: %w", original))
	require.ErrorAs(t, rewrapped, &se)
	assert.Equal(t, "inner.html", se.Name)
	assert.Equal(t, 7, se.Line)
}

func TestLogicError(t *testing.T) {
	err := NewLogicError("environment.AddGlobal", "runtime already initialized")
	assert.Contains(t, err.Error(), "environment.AddGlobal")
	assert.Contains(t, err.Error(), "runtime already initialized")
}

func TestRuntimeErrorUnwrap(t *testing.T) {
	cause := fmt.Errorf("division by zero")
	err := &RuntimeError{Name: "calc.html", Message: "line 2", Cause: cause}
	assert.Contains(t, err.Error(), "calc.html")
	assert.True(t, goerrors.Is(err, cause))
}

func TestKindPredicates(t *testing.T) {
	loaderErr := NewLoaderError("x", nil)
	syntaxErr := NewSyntaxError("x", 1, "y")
	logicErr := NewLogicError("op", "reason")

	assert.True(t, IsLoaderError(loaderErr))
	assert.False(t, IsLoaderError(syntaxErr))

	assert.True(t, IsSyntaxError(syntaxErr))
	assert.False(t, IsSyntaxError(logicErr))

	assert.True(t, IsLogicError(logicErr))
	assert.False(t, IsLogicError(loaderErr))

	wrapped := fmt.Errorf("loading: %w", loaderErr)
	assert.True(t, IsLoaderError(wrapped), "predicates must see through wrapping")
}
