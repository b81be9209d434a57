package compile

import (
	"fmt"
	"html"
	"io"
	"reflect"
	"sort"
	"strconv"

	stencilerrors "github.com/stencilhq/stencil/internal/errors"
)

// Program is the executable form of a compiled template: a pure-data
// node tree plus the name it was compiled under. Programs are immutable
// after compilation and safe for concurrent execution.
type Program struct {
	Name string
	Root *Node
}

// SafeString marks a value as already escaped. The output path writes
// it verbatim even when auto-escaping is on.
type SafeString string

// FilterFunc transforms a value, optionally taking arguments.
type FilterFunc func(value interface{}, args ...interface{}) (interface{}, error)

// FunctionFunc is a callable exposed to template expressions.
type FunctionFunc func(args ...interface{}) (interface{}, error)

// TestFunc implements an "is" test over a value.
type TestFunc func(value interface{}, args ...interface{}) (bool, error)

// Runtime supplies a Program with everything the host environment owns:
// the extension-contributed callables and the evaluation flags.
type Runtime struct {
	Filters   map[string]FilterFunc
	Functions map[string]FunctionFunc
	Tests     map[string]TestFunc

	// StrictVariables makes unknown variable and attribute lookups a
	// RuntimeError instead of rendering empty.
	StrictVariables bool
	// AutoEscape HTML-escapes output values not marked SafeString.
	AutoEscape bool
}

// Execute renders the program into w with the given variables.
// Execution failures are RuntimeErrors carrying the template name.
func (p *Program) Execute(rt *Runtime, vars map[string]interface{}, w io.Writer) error {
	ex := &executor{program: p, rt: rt, vars: vars, w: w}
	return ex.exec(p.Root)
}

type executor struct {
	program *Program
	rt      *Runtime
	vars    map[string]interface{}
	w       io.Writer
}

func (ex *executor) exec(n *Node) error {
	switch n.Kind {
	case NodeSeq:
		for _, child := range n.Children {
			if err := ex.exec(child); err != nil {
				return err
			}
		}
		return nil

	case NodeText:
		_, err := io.WriteString(ex.w, n.SVal)
		return err

	case NodeOutput:
		value, err := ex.eval(n.Children[0])
		if err != nil {
			return err
		}
		_, err = io.WriteString(ex.w, ex.stringify(value))
		return err

	case NodeIf:
		cond, err := ex.eval(n.Children[0])
		if err != nil {
			return err
		}
		if truthy(cond) {
			return ex.exec(n.Children[1])
		}
		if len(n.Children) > 2 {
			return ex.exec(n.Children[2])
		}
		return nil

	case NodeFor:
		return ex.execFor(n)

	default:
		return ex.runtimeErr(n, fmt.Sprintf("cannot execute node kind %d", n.Kind))
	}
}

func (ex *executor) execFor(n *Node) error {
	seq, err := ex.eval(n.Children[0])
	if err != nil {
		return err
	}
	items, err := iterate(seq)
	if err != nil {
		return ex.runtimeErr(n, err.Error())
	}

	loopVar := n.SVal
	prev, hadPrev := ex.vars[loopVar]
	defer func() {
		if hadPrev {
			ex.vars[loopVar] = prev
		} else {
			delete(ex.vars, loopVar)
		}
	}()

	for _, item := range items {
		ex.vars[loopVar] = item
		if err := ex.exec(n.Children[1]); err != nil {
			return err
		}
	}
	return nil
}

func (ex *executor) eval(n *Node) (interface{}, error) {
	switch n.Kind {
	case NodeString:
		return n.SVal, nil
	case NodeNumber:
		return n.NVal, nil
	case NodeBool:
		return n.BVal, nil

	case NodeName:
		value, ok := ex.vars[n.SVal]
		if !ok {
			if ex.rt.StrictVariables {
				return nil, ex.runtimeErr(n, fmt.Sprintf("variable %q does not exist", n.SVal))
			}
			return nil, nil
		}
		return value, nil

	case NodeGetAttr:
		target, err := ex.eval(n.Children[0])
		if err != nil {
			return nil, err
		}
		value, ok := attr(target, n.SVal)
		if !ok {
			if ex.rt.StrictVariables {
				return nil, ex.runtimeErr(n, fmt.Sprintf("attribute %q does not exist", n.SVal))
			}
			return nil, nil
		}
		return value, nil

	case NodeFilter:
		filter, ok := ex.rt.Filters[n.SVal]
		if !ok {
			return nil, ex.runtimeErr(n, fmt.Sprintf("unknown filter %q", n.SVal))
		}
		value, err := ex.eval(n.Children[0])
		if err != nil {
			return nil, err
		}
		args, err := ex.evalArgs(n.Children[1:])
		if err != nil {
			return nil, err
		}
		result, err := filter(value, args...)
		if err != nil {
			return nil, ex.wrapRuntime(n, err)
		}
		return result, nil

	case NodeCall:
		fn, ok := ex.rt.Functions[n.SVal]
		if !ok {
			return nil, ex.runtimeErr(n, fmt.Sprintf("unknown function %q", n.SVal))
		}
		args, err := ex.evalArgs(n.Children)
		if err != nil {
			return nil, err
		}
		result, err := fn(args...)
		if err != nil {
			return nil, ex.wrapRuntime(n, err)
		}
		return result, nil

	case NodeTest:
		test, ok := ex.rt.Tests[n.SVal]
		if !ok {
			return nil, ex.runtimeErr(n, fmt.Sprintf("unknown test %q", n.SVal))
		}
		value, err := ex.evalTestOperand(n.Children[0])
		if err != nil {
			return nil, err
		}
		args, err := ex.evalArgs(n.Children[1:])
		if err != nil {
			return nil, err
		}
		result, err := test(value, args...)
		if err != nil {
			return nil, ex.wrapRuntime(n, err)
		}
		return result, nil

	case NodeNot:
		value, err := ex.eval(n.Children[0])
		if err != nil {
			return nil, err
		}
		return !truthy(value), nil

	case NodeEq, NodeNe:
		left, err := ex.eval(n.Children[0])
		if err != nil {
			return nil, err
		}
		right, err := ex.eval(n.Children[1])
		if err != nil {
			return nil, err
		}
		eq := looseEqual(left, right)
		if n.Kind == NodeNe {
			return !eq, nil
		}
		return eq, nil

	default:
		return nil, ex.runtimeErr(n, fmt.Sprintf("cannot evaluate node kind %d", n.Kind))
	}
}

// evalTestOperand evaluates a test operand without strict-variable
// enforcement so that "is defined" can inspect missing names.
func (ex *executor) evalTestOperand(n *Node) (interface{}, error) {
	if n.Kind == NodeName {
		value, ok := ex.vars[n.SVal]
		if !ok {
			return undefined{}, nil
		}
		return value, nil
	}
	if n.Kind == NodeGetAttr {
		target, err := ex.evalTestOperand(n.Children[0])
		if err != nil {
			return nil, err
		}
		value, ok := attr(target, n.SVal)
		if !ok {
			return undefined{}, nil
		}
		return value, nil
	}
	return ex.eval(n)
}

// undefined marks a name that did not resolve, distinguishable from a
// present nil value by the "defined" test.
type undefined struct{}

// IsUndefined reports whether a value is the undefined marker.
func IsUndefined(v interface{}) bool {
	_, ok := v.(undefined)
	return ok
}

func (ex *executor) evalArgs(nodes []*Node) ([]interface{}, error) {
	if len(nodes) == 0 {
		return nil, nil
	}
	args := make([]interface{}, 0, len(nodes))
	for _, n := range nodes {
		value, err := ex.eval(n)
		if err != nil {
			return nil, err
		}
		args = append(args, value)
	}
	return args, nil
}

func (ex *executor) stringify(value interface{}) string {
	if s, ok := value.(SafeString); ok {
		return string(s)
	}
	s := ToString(value)
	if ex.rt.AutoEscape {
		return html.EscapeString(s)
	}
	return s
}

func (ex *executor) runtimeErr(n *Node, msg string) error {
	err := stencilerrors.NewRuntimeError(ex.program.Name, msg)
	if n.Line > 0 {
		err.Message = fmt.Sprintf("line %d: %s", n.Line, msg)
	}
	return err
}

func (ex *executor) wrapRuntime(n *Node, err error) error {
	return &stencilerrors.RuntimeError{
		Name:    ex.program.Name,
		Message: fmt.Sprintf("line %d", n.Line),
		Cause:   err,
	}
}

// ToString renders a template value the way output nodes do: nil and
// undefined render empty, integral floats render without a decimal
// point.
func ToString(value interface{}) string {
	switch v := value.(type) {
	case nil, undefined:
		return ""
	case SafeString:
		return string(v)
	case string:
		return v
	case bool:
		return strconv.FormatBool(v)
	case float64:
		if v == float64(int64(v)) {
			return strconv.FormatInt(int64(v), 10)
		}
		return strconv.FormatFloat(v, 'g', -1, 64)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case fmt.Stringer:
		return v.String()
	default:
		return fmt.Sprintf("%v", v)
	}
}

// truthy implements template truthiness: nil, undefined, false, zero
// numbers, empty strings and empty collections are false.
func truthy(value interface{}) bool {
	switch v := value.(type) {
	case nil, undefined:
		return false
	case bool:
		return v
	case string:
		return v != ""
	case SafeString:
		return v != ""
	case float64:
		return v != 0
	case int:
		return v != 0
	case int64:
		return v != 0
	}
	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array, reflect.Map:
		return rv.Len() > 0
	case reflect.Ptr, reflect.Interface:
		return !rv.IsNil()
	}
	return true
}

// Truthy is the exported truthiness check used by builtin tests.
func Truthy(value interface{}) bool { return truthy(value) }

// attr resolves dotted attribute access against maps, structs and
// struct pointers.
func attr(target interface{}, name string) (interface{}, bool) {
	switch m := target.(type) {
	case nil, undefined:
		return nil, false
	case map[string]interface{}:
		v, ok := m[name]
		return v, ok
	case map[string]string:
		v, ok := m[name]
		return v, ok
	}

	rv := reflect.ValueOf(target)
	if rv.Kind() == reflect.Ptr {
		if rv.IsNil() {
			return nil, false
		}
		rv = rv.Elem()
	}
	if rv.Kind() == reflect.Struct {
		field := rv.FieldByName(name)
		if field.IsValid() && field.CanInterface() {
			return field.Interface(), true
		}
	}
	if rv.Kind() == reflect.Map && rv.Type().Key().Kind() == reflect.String {
		v := rv.MapIndex(reflect.ValueOf(name))
		if v.IsValid() {
			return v.Interface(), true
		}
	}
	return nil, false
}

// iterate materializes a sequence value for {% for %}. Map iteration
// is key-sorted so renders are deterministic.
func iterate(value interface{}) ([]interface{}, error) {
	switch v := value.(type) {
	case nil, undefined:
		return nil, nil
	case []interface{}:
		return v, nil
	case []string:
		items := make([]interface{}, len(v))
		for i, s := range v {
			items[i] = s
		}
		return items, nil
	}

	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		items := make([]interface{}, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			items[i] = rv.Index(i).Interface()
		}
		return items, nil
	case reflect.Map:
		keys := rv.MapKeys()
		strKeys := make([]string, 0, len(keys))
		byKey := make(map[string]interface{}, len(keys))
		for _, k := range keys {
			ks := ToString(k.Interface())
			strKeys = append(strKeys, ks)
			byKey[ks] = rv.MapIndex(k).Interface()
		}
		sort.Strings(strKeys)
		items := make([]interface{}, 0, len(strKeys))
		for _, k := range strKeys {
			items = append(items, byKey[k])
		}
		return items, nil
	}
	return nil, fmt.Errorf("value of type %T is not iterable", value)
}

// looseEqual compares values after normalizing numbers and strings, so
// template literals compare naturally against context values.
func looseEqual(a, b interface{}) bool {
	if a == nil && b == nil {
		return true
	}
	af, aok := toFloat(a)
	bf, bok := toFloat(b)
	if aok && bok {
		return af == bf
	}
	as, aIsStr := stringValue(a)
	bs, bIsStr := stringValue(b)
	if aIsStr && bIsStr {
		return as == bs
	}
	return reflect.DeepEqual(a, b)
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case int32:
		return float64(n), true
	}
	return 0, false
}

func stringValue(v interface{}) (string, bool) {
	switch s := v.(type) {
	case string:
		return s, true
	case SafeString:
		return string(s), true
	}
	return "", false
}
