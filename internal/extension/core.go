package extension

import (
	"fmt"
	"html"
	"strings"

	"github.com/stencilhq/stencil/internal/compile"
)

// CoreExtension provides the builtin filter, function and test set that
// every environment registers by default.
type CoreExtension struct{}

var _ Extension = (*CoreExtension)(nil)

// NewCoreExtension creates the builtin extension.
func NewCoreExtension() *CoreExtension {
	return &CoreExtension{}
}

// Name implements Extension.
func (e *CoreExtension) Name() string { return "core" }

// InitRuntime implements Extension. The core extension has no runtime
// state to initialize.
func (e *CoreExtension) InitRuntime(Host) {}

// Globals implements Extension.
func (e *CoreExtension) Globals() map[string]interface{} {
	return map[string]interface{}{}
}

// Filters implements Extension.
func (e *CoreExtension) Filters() map[string]compile.FilterFunc {
	return map[string]compile.FilterFunc{
		"upper": func(value interface{}, args ...interface{}) (interface{}, error) {
			return strings.ToUpper(compile.ToString(value)), nil
		},
		"lower": func(value interface{}, args ...interface{}) (interface{}, error) {
			return strings.ToLower(compile.ToString(value)), nil
		},
		"trim": func(value interface{}, args ...interface{}) (interface{}, error) {
			cutset := " \t\n\r"
			if len(args) > 0 {
				cutset = compile.ToString(args[0])
			}
			return strings.Trim(compile.ToString(value), cutset), nil
		},
		"join": filterJoin,
		"default": func(value interface{}, args ...interface{}) (interface{}, error) {
			if compile.IsUndefined(value) || value == nil || compile.ToString(value) == "" {
				if len(args) > 0 {
					return args[0], nil
				}
				return "", nil
			}
			return value, nil
		},
		"length": filterLength,
		"replace": func(value interface{}, args ...interface{}) (interface{}, error) {
			if len(args) != 2 {
				return nil, fmt.Errorf("replace expects exactly 2 arguments, got %d", len(args))
			}
			return strings.ReplaceAll(compile.ToString(value), compile.ToString(args[0]), compile.ToString(args[1])), nil
		},
		"escape": func(value interface{}, args ...interface{}) (interface{}, error) {
			if safe, ok := value.(compile.SafeString); ok {
				return safe, nil
			}
			return compile.SafeString(html.EscapeString(compile.ToString(value))), nil
		},
		"raw": func(value interface{}, args ...interface{}) (interface{}, error) {
			return compile.SafeString(compile.ToString(value)), nil
		},
	}
}

// Functions implements Extension.
func (e *CoreExtension) Functions() map[string]compile.FunctionFunc {
	return map[string]compile.FunctionFunc{
		"range": func(args ...interface{}) (interface{}, error) {
			if len(args) != 2 {
				return nil, fmt.Errorf("range expects exactly 2 arguments, got %d", len(args))
			}
			lo, ok1 := toInt(args[0])
			hi, ok2 := toInt(args[1])
			if !ok1 || !ok2 {
				return nil, fmt.Errorf("range expects numeric bounds")
			}
			var out []interface{}
			for i := lo; i <= hi; i++ {
				out = append(out, float64(i))
			}
			return out, nil
		},
		"min": func(args ...interface{}) (interface{}, error) {
			return pick(args, func(a, b float64) bool { return a < b })
		},
		"max": func(args ...interface{}) (interface{}, error) {
			return pick(args, func(a, b float64) bool { return a > b })
		},
	}
}

// Tests implements Extension.
func (e *CoreExtension) Tests() map[string]compile.TestFunc {
	return map[string]compile.TestFunc{
		"defined": func(value interface{}, args ...interface{}) (bool, error) {
			return !compile.IsUndefined(value), nil
		},
		"empty": func(value interface{}, args ...interface{}) (bool, error) {
			return !compile.Truthy(value), nil
		},
		"odd": func(value interface{}, args ...interface{}) (bool, error) {
			n, ok := toInt(value)
			if !ok {
				return false, fmt.Errorf("odd expects a number")
			}
			return n%2 != 0, nil
		},
		"even": func(value interface{}, args ...interface{}) (bool, error) {
			n, ok := toInt(value)
			if !ok {
				return false, fmt.Errorf("even expects a number")
			}
			return n%2 == 0, nil
		},
	}
}

func filterJoin(value interface{}, args ...interface{}) (interface{}, error) {
	sep := ""
	if len(args) > 0 {
		sep = compile.ToString(args[0])
	}

	var parts []string
	switch v := value.(type) {
	case []string:
		parts = v
	case []interface{}:
		for _, item := range v {
			parts = append(parts, compile.ToString(item))
		}
	case nil:
		return "", nil
	default:
		return nil, fmt.Errorf("join expects a sequence, got %T", value)
	}
	return strings.Join(parts, sep), nil
}

func filterLength(value interface{}, args ...interface{}) (interface{}, error) {
	switch v := value.(type) {
	case nil:
		return float64(0), nil
	case string:
		return float64(len(v)), nil
	case compile.SafeString:
		return float64(len(v)), nil
	case []string:
		return float64(len(v)), nil
	case []interface{}:
		return float64(len(v)), nil
	case map[string]interface{}:
		return float64(len(v)), nil
	default:
		return float64(len(compile.ToString(v))), nil
	}
}

func toInt(v interface{}) (int, bool) {
	switch n := v.(type) {
	case float64:
		return int(n), true
	case int:
		return n, true
	case int64:
		return int(n), true
	}
	return 0, false
}

func pick(args []interface{}, better func(a, b float64) bool) (interface{}, error) {
	if len(args) == 0 {
		return nil, fmt.Errorf("expects at least one argument")
	}
	best, ok := toFloat(args[0])
	if !ok {
		return nil, fmt.Errorf("expects numeric arguments")
	}
	for _, arg := range args[1:] {
		n, ok := toFloat(arg)
		if !ok {
			return nil, fmt.Errorf("expects numeric arguments")
		}
		if better(n, best) {
			best = n
		}
	}
	return best, nil
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}
