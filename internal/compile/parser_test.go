package compile

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func TestParseTreeShape(t *testing.T) {
	tests := []struct {
		name   string
		source string
		want   *Node
	}{
		{
			name:   "output with filter chain",
			source: `{{ name|upper }}`,
			want: &Node{Kind: NodeSeq, Children: []*Node{
				{Kind: NodeOutput, Line: 1, Children: []*Node{
					{Kind: NodeFilter, Line: 1, SVal: "upper", Children: []*Node{
						{Kind: NodeName, Line: 1, SVal: "name"},
					}},
				}},
			}},
		},
		{
			name:   "negated test",
			source: `{% if n is not even %}x{% endif %}`,
			want: &Node{Kind: NodeSeq, Children: []*Node{
				{Kind: NodeIf, Line: 1, Children: []*Node{
					{Kind: NodeNot, Line: 1, Children: []*Node{
						{Kind: NodeTest, Line: 1, SVal: "even", Children: []*Node{
							{Kind: NodeName, Line: 1, SVal: "n"},
						}},
					}},
					{Kind: NodeSeq, Children: []*Node{
						{Kind: NodeText, Line: 1, SVal: "x"},
					}},
				}},
			}},
		},
		{
			name:   "for over attribute",
			source: `{% for item in page.items %}{{ item }}{% endfor %}`,
			want: &Node{Kind: NodeSeq, Children: []*Node{
				{Kind: NodeFor, Line: 1, SVal: "item", Children: []*Node{
					{Kind: NodeGetAttr, Line: 1, SVal: "items", Children: []*Node{
						{Kind: NodeName, Line: 1, SVal: "page"},
					}},
					{Kind: NodeSeq, Children: []*Node{
						{Kind: NodeOutput, Line: 1, Children: []*Node{
							{Kind: NodeName, Line: 1, SVal: "item"},
						}},
					}},
				}},
			}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// The raw parse shape is under test, so rewrite passes stay off.
			program, err := (&Compiler{Optimizations: OptimizeNone}).Compile(tt.source, "tree.html")
			require.NoError(t, err)

			if diff := cmp.Diff(tt.want, program.Root); diff != "" {
				t.Errorf("parse tree mismatch (-want +got):\n%s", diff)
			}
		})
	}
}
