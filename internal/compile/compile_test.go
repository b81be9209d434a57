package compile

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	stencilerrors "github.com/stencilhq/stencil/internal/errors"
)

func testRuntime() *Runtime {
	return &Runtime{
		Filters: map[string]FilterFunc{
			"upper": func(value interface{}, args ...interface{}) (interface{}, error) {
				return strings.ToUpper(ToString(value)), nil
			},
			"repeat": func(value interface{}, args ...interface{}) (interface{}, error) {
				if len(args) != 1 {
					return nil, fmt.Errorf("repeat expects one argument")
				}
				n, ok := args[0].(float64)
				if !ok {
					return nil, fmt.Errorf("repeat expects a number")
				}
				return strings.Repeat(ToString(value), int(n)), nil
			},
			"raw": func(value interface{}, args ...interface{}) (interface{}, error) {
				return SafeString(ToString(value)), nil
			},
		},
		Functions: map[string]FunctionFunc{
			"greet": func(args ...interface{}) (interface{}, error) {
				if len(args) == 0 {
					return "hello", nil
				}
				return "hello " + ToString(args[0]), nil
			},
		},
		Tests: map[string]TestFunc{
			"defined": func(value interface{}, args ...interface{}) (bool, error) {
				return !IsUndefined(value), nil
			},
			"even": func(value interface{}, args ...interface{}) (bool, error) {
				n, ok := value.(float64)
				if !ok {
					return false, fmt.Errorf("even expects a number")
				}
				return int(n)%2 == 0, nil
			},
		},
	}
}

func render(t *testing.T, source string, rt *Runtime, vars map[string]interface{}) string {
	t.Helper()
	program, err := NewCompiler().Compile(source, "test.html")
	require.NoError(t, err)

	var b strings.Builder
	require.NoError(t, program.Execute(rt, vars, &b))
	return b.String()
}

func TestRenderText(t *testing.T) {
	assert.Equal(t, "plain text", render(t, "plain text", testRuntime(), nil))
	assert.Equal(t, "", render(t, "", testRuntime(), nil))
}

func TestRenderOutput(t *testing.T) {
	rt := testRuntime()
	vars := map[string]interface{}{
		"name":  "world",
		"count": 3,
		"price": 4.5,
		"user":  map[string]interface{}{"email": "a@b.c"},
	}

	tests := []struct {
		source string
		want   string
	}{
		{"hello {{ name }}", "hello world"},
		{"{{ count }}", "3"},
		{"{{ price }}", "4.5"},
		{"{{ 42 }}", "42"},
		{"{{ \"quoted\" }}", "quoted"},
		{"{{ true }}", "true"},
		{"{{ user.email }}", "a@b.c"},
		{"{{ missing }}", ""},
	}
	for _, tt := range tests {
		t.Run(tt.source, func(t *testing.T) {
			assert.Equal(t, tt.want, render(t, tt.source, rt, vars))
		})
	}
}

func TestRenderStructAttributes(t *testing.T) {
	type author struct {
		Name string
	}
	vars := map[string]interface{}{"author": author{Name: "ada"}}
	assert.Equal(t, "ada", render(t, "{{ author.Name }}", testRuntime(), vars))
}

func TestRenderIf(t *testing.T) {
	rt := testRuntime()

	tests := []struct {
		source string
		vars   map[string]interface{}
		want   string
	}{
		{"{% if ok %}yes{% endif %}", map[string]interface{}{"ok": true}, "yes"},
		{"{% if ok %}yes{% endif %}", map[string]interface{}{"ok": false}, ""},
		{"{% if ok %}yes{% else %}no{% endif %}", map[string]interface{}{"ok": false}, "no"},
		{"{% if not ok %}inverted{% endif %}", map[string]interface{}{"ok": false}, "inverted"},
		{"{% if name == \"a\" %}eq{% endif %}", map[string]interface{}{"name": "a"}, "eq"},
		{"{% if name != \"a\" %}ne{% endif %}", map[string]interface{}{"name": "b"}, "ne"},
		{"{% if n is even %}even{% endif %}", map[string]interface{}{"n": 4.0}, "even"},
		{"{% if n is not even %}odd{% endif %}", map[string]interface{}{"n": 3.0}, "odd"},
		{"{% if ghost is defined %}yes{% else %}no{% endif %}", nil, "no"},
		{"{% if ghost is not defined %}absent{% endif %}", nil, "absent"},
	}
	for _, tt := range tests {
		t.Run(tt.source, func(t *testing.T) {
			assert.Equal(t, tt.want, render(t, tt.source, rt, tt.vars))
		})
	}
}

func TestRenderFor(t *testing.T) {
	rt := testRuntime()

	vars := map[string]interface{}{
		"items": []interface{}{"a", "b", "c"},
		"item":  "outer",
	}
	got := render(t, "{% for item in items %}[{{ item }}]{% endfor %}{{ item }}", rt, vars)
	assert.Equal(t, "[a][b][c]outer", got, "loop variable must be restored after the loop")
}

func TestRenderForMapIsKeySorted(t *testing.T) {
	vars := map[string]interface{}{
		"scores": map[string]interface{}{"b": 2, "a": 1, "c": 3},
	}
	got := render(t, "{% for v in scores %}{{ v }}{% endfor %}", testRuntime(), vars)
	assert.Equal(t, "123", got)
}

func TestRenderFilters(t *testing.T) {
	rt := testRuntime()
	vars := map[string]interface{}{"name": "go"}

	assert.Equal(t, "GO", render(t, "{{ name|upper }}", rt, vars))
	assert.Equal(t, "gogo", render(t, "{{ name|repeat(2) }}", rt, vars))
	assert.Equal(t, "GOGO", render(t, "{{ name|upper|repeat(2) }}", rt, vars))
}

func TestRenderFunctions(t *testing.T) {
	rt := testRuntime()
	assert.Equal(t, "hello", render(t, "{{ greet() }}", rt, nil))
	assert.Equal(t, "hello go", render(t, "{{ greet(\"go\") }}", rt, nil))
}

func TestRenderAutoEscape(t *testing.T) {
	rt := testRuntime()
	rt.AutoEscape = true
	vars := map[string]interface{}{"payload": "<script>"}

	assert.Equal(t, "&lt;script&gt;", render(t, "{{ payload }}", rt, vars))
	assert.Equal(t, "<script>", render(t, "{{ payload|raw }}", rt, vars),
		"safe strings bypass escaping")
}

func TestRuntimeErrors(t *testing.T) {
	rt := testRuntime()
	rt.StrictVariables = true

	tests := []struct {
		name   string
		source string
		vars   map[string]interface{}
	}{
		{"strict missing variable", "{{ missing }}", nil},
		{"strict missing attribute", "{{ user.ghost }}", map[string]interface{}{"user": map[string]interface{}{}}},
		{"unknown filter", "{{ x|nope }}", map[string]interface{}{"x": 1}},
		{"unknown function", "{{ nope() }}", nil},
		{"unknown test", "{% if x is nope %}y{% endif %}", map[string]interface{}{"x": 1}},
		{"failing filter", "{{ x|repeat(\"two\") }}", map[string]interface{}{"x": "a"}},
		{"non-iterable for", "{% for x in n %}y{% endfor %}", map[string]interface{}{"n": 3.0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			program, err := NewCompiler().Compile(tt.source, "test.html")
			require.NoError(t, err)

			var b strings.Builder
			err = program.Execute(rt, tt.vars, &b)
			require.Error(t, err)

			var re *stencilerrors.RuntimeError
			require.ErrorAs(t, err, &re)
			assert.Equal(t, "test.html", re.Name)
		})
	}
}

func TestCompileSyntaxErrors(t *testing.T) {
	tests := []struct {
		name   string
		source string
	}{
		{"unclosed expression", "{{ name"},
		{"unterminated string", "{{ \"oops }}"},
		{"unknown block tag", "{% frobnicate %}"},
		{"unclosed if", "{% if ok %}body"},
		{"unclosed for", "{% for x in items %}body"},
		{"stray endif", "{% endif %}"},
		{"missing in", "{% for x of items %}{% endfor %}"},
		{"empty condition", "{% if %}x{% endif %}"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewCompiler().Compile(tt.source, "broken.html")
			require.Error(t, err)

			var se *stencilerrors.SyntaxError
			require.ErrorAs(t, err, &se)
			assert.Equal(t, "broken.html", se.Name)
		})
	}
}

func TestCompileSyntaxErrorLine(t *testing.T) {
	_, err := NewCompiler().Compile("line one\nline two {{ broken\n", "broken.html")
	require.Error(t, err)

	var se *stencilerrors.SyntaxError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, 2, se.Line)
}

func TestCompileEmptyNameRejected(t *testing.T) {
	_, err := NewCompiler().Compile("x", "")
	require.Error(t, err)
	assert.True(t, stencilerrors.IsLogicError(err))
}

func TestCodecRoundTrip(t *testing.T) {
	source := "{% for item in items %}{{ item|upper }} {% endfor %}"
	program, err := NewCompiler().Compile(source, "list.html")
	require.NoError(t, err)

	artifact, err := Encode(program)
	require.NoError(t, err)

	decoded, err := Decode(artifact)
	require.NoError(t, err)
	require.Equal(t, "list.html", decoded.Name)

	vars := map[string]interface{}{"items": []interface{}{"a", "b"}}
	var original, revived strings.Builder
	require.NoError(t, program.Execute(testRuntime(), vars, &original))
	require.NoError(t, decoded.Execute(testRuntime(), vars, &revived))
	assert.Equal(t, original.String(), revived.String())
}

func TestDecodeRejectsGarbage(t *testing.T) {
	_, err := Decode([]byte("not an artifact"))
	assert.Error(t, err)
}
