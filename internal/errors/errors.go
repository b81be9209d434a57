// Package errors defines the error taxonomy for the stencil engine.
//
// Four kinds cover every failure the environment can surface: LoaderError
// (a template name could not be resolved to source), SyntaxError (lexing,
// parsing or code generation failed), LogicError (API misuse detected
// synchronously) and RuntimeError (failure while executing an already
// loaded template). The environment recovers only from per-candidate
// LoaderErrors during multi-candidate resolution; everything else
// propagates to the caller unchanged.
package errors

import (
	"errors"
	"fmt"
	"strings"
)

// LoaderError reports that a template name could not be resolved to
// source text by the active loader.
type LoaderError struct {
	// Name is the template name that failed to resolve.
	Name string
	// Tried lists every name attempted when the error aggregates a
	// multi-candidate resolution failure. Empty for single-name errors.
	Tried []string
	Cause error
}

// Error implements the error interface.
func (e *LoaderError) Error() string {
	if len(e.Tried) > 0 {
		return fmt.Sprintf("unable to find one of the following templates: %s", strings.Join(e.Tried, ", "))
	}
	msg := fmt.Sprintf("template %q not found", e.Name)
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

// Unwrap returns the underlying cause error.
func (e *LoaderError) Unwrap() error { return e.Cause }

// NewLoaderError creates a loader error for a single template name.
func NewLoaderError(name string, cause error) *LoaderError {
	return &LoaderError{Name: name, Cause: cause}
}

// NewAggregateLoaderError creates a loader error covering every name
// attempted during a failed multi-candidate resolution.
func NewAggregateLoaderError(tried []string) *LoaderError {
	return &LoaderError{Tried: tried}
}

// SyntaxError reports a failure in any compile stage. It always carries
// the name of the template being compiled so callers see one consistent
// failure type at the compilation boundary.
type SyntaxError struct {
	// Name is the template the pipeline was compiling.
	Name string
	// Line is the 1-based source line of the failure, 0 if unknown.
	Line    int
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *SyntaxError) Error() string {
	loc := fmt.Sprintf("template %q", e.Name)
	if e.Line > 0 {
		loc += fmt.Sprintf(" line %d", e.Line)
	}
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", loc, e.Message)
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", loc, e.Cause)
	}
	return loc + ": syntax error"
}

// Unwrap returns the underlying cause error.
func (e *SyntaxError) Unwrap() error { return e.Cause }

// NewSyntaxError creates a syntax error for the named template.
func NewSyntaxError(name string, line int, message string) *SyntaxError {
	return &SyntaxError{Name: name, Line: line, Message: message}
}

// WrapSyntax types an arbitrary compile-stage failure as a SyntaxError
// for the named template. Errors already typed as SyntaxError are
// returned unchanged to preserve their location information.
func WrapSyntax(name string, err error) error {
	if err == nil {
		return nil
	}
	var se *SyntaxError
	if errors.As(err, &se) {
		return err
	}
	return &SyntaxError{Name: name, Cause: err}
}

// LogicError reports misuse of the environment API or configuration.
// It indicates a caller bug, never a runtime condition, and is never
// retried.
type LogicError struct {
	// Op names the operation that was misused.
	Op     string
	Reason string
}

// Error implements the error interface.
func (e *LogicError) Error() string {
	return fmt.Sprintf("%s: %s", e.Op, e.Reason)
}

// NewLogicError creates a logic error for the given operation.
func NewLogicError(op, reason string) *LogicError {
	return &LogicError{Op: op, Reason: reason}
}

// RuntimeError reports a failure during execution of an already loaded
// template. It propagates unchanged through Render and Display.
type RuntimeError struct {
	// Name is the template that was executing.
	Name    string
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *RuntimeError) Error() string {
	msg := fmt.Sprintf("template %q", e.Name)
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

// Unwrap returns the underlying cause error.
func (e *RuntimeError) Unwrap() error { return e.Cause }

// NewRuntimeError creates a runtime error for the named template.
func NewRuntimeError(name, message string) *RuntimeError {
	return &RuntimeError{Name: name, Message: message}
}

// IsLoaderError reports whether err is (or wraps) a LoaderError.
func IsLoaderError(err error) bool {
	var le *LoaderError
	return errors.As(err, &le)
}

// IsSyntaxError reports whether err is (or wraps) a SyntaxError.
func IsSyntaxError(err error) bool {
	var se *SyntaxError
	return errors.As(err, &se)
}

// IsLogicError reports whether err is (or wraps) a LogicError.
func IsLogicError(err error) bool {
	var le *LogicError
	return errors.As(err, &le)
}
