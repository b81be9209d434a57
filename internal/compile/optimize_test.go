package compile

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOptimizeRewritesTree(t *testing.T) {
	tests := []struct {
		name   string
		source string
		want   *Node
	}{
		{
			name:   "literal condition folds to the taken branch",
			source: "a{% if true %}b{% endif %}c",
			want: &Node{Kind: NodeSeq, Children: []*Node{
				{Kind: NodeText, Line: 1, SVal: "abc"},
			}},
		},
		{
			name:   "false comparison drops the branch",
			source: `{% if 1 == 2 %}never{% endif %}ok`,
			want: &Node{Kind: NodeSeq, Children: []*Node{
				{Kind: NodeText, Line: 1, SVal: "ok"},
			}},
		},
		{
			name:   "literal else branch survives",
			source: `{% if "" %}then{% else %}else{% endif %}`,
			want: &Node{Kind: NodeSeq, Children: []*Node{
				{Kind: NodeText, Line: 1, SVal: "else"},
			}},
		},
		{
			name:   "negation of a literal folds",
			source: "{% if not false %}kept{% endif %}",
			want: &Node{Kind: NodeSeq, Children: []*Node{
				{Kind: NodeText, Line: 1, SVal: "kept"},
			}},
		},
		{
			name:   "dynamic condition is left alone",
			source: "{% if flag %}x{% endif %}",
			want: &Node{Kind: NodeSeq, Children: []*Node{
				{Kind: NodeIf, Line: 1, Children: []*Node{
					{Kind: NodeName, Line: 1, SVal: "flag"},
					{Kind: NodeSeq, Children: []*Node{
						{Kind: NodeText, Line: 1, SVal: "x"},
					}},
				}},
			}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			program, err := NewCompiler().Compile(tt.source, "opt.html")
			require.NoError(t, err)

			if diff := cmp.Diff(tt.want, program.Root); diff != "" {
				t.Errorf("optimized tree mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestOptimizeNoneKeepsParseShape(t *testing.T) {
	source := `a{% if true %}b{% endif %}`

	program, err := (&Compiler{Optimizations: OptimizeNone}).Compile(source, "opt.html")
	require.NoError(t, err)

	require.Len(t, program.Root.Children, 2)
	assert.Equal(t, NodeText, program.Root.Children[0].Kind)
	assert.Equal(t, NodeIf, program.Root.Children[1].Kind)
}

func TestOptimizePreservesOutput(t *testing.T) {
	source := `{% if 1 == 1 %}hi {% endif %}{{ name }}{% if n is even %}!{% endif %}`
	rt := testRuntime()
	vars := map[string]interface{}{"name": "world", "n": 2.0}

	plain, err := (&Compiler{Optimizations: OptimizeNone}).Compile(source, "opt.html")
	require.NoError(t, err)
	optimized, err := NewCompiler().Compile(source, "opt.html")
	require.NoError(t, err)

	var a, b strings.Builder
	require.NoError(t, plain.Execute(rt, vars, &a))
	require.NoError(t, optimized.Execute(rt, vars, &b))
	assert.Equal(t, a.String(), b.String())
	assert.Equal(t, "hi world!", b.String())
}
