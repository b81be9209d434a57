package compile

// Optimization levels. Levels are bit flags; OptimizeAll has every bit
// set, so new passes are picked up without callers changing.
const (
	OptimizeNone         = 0
	OptimizeConstantFold = 1 << 0
	OptimizeTextJoin     = 1 << 1
	OptimizeAll          = -1
)

// optimize rewrites a parsed tree according to the enabled passes. The
// rewrite is semantics-preserving: an optimized program renders the
// same output as the unoptimized one. Operates on the freshly parsed
// tree, before it becomes part of an immutable Program.
func optimize(n *Node, level int) *Node {
	if n == nil || level == OptimizeNone {
		return n
	}
	for i, child := range n.Children {
		n.Children[i] = optimize(child, level)
	}
	if level&OptimizeConstantFold != 0 {
		n = foldConstants(n)
	}
	if level&OptimizeTextJoin != 0 && n.Kind == NodeSeq {
		n = joinText(n)
	}
	return n
}

// foldConstants evaluates operators whose operands are literals and
// resolves branches on literal conditions. Children have already been
// optimized, so folds cascade bottom-up.
func foldConstants(n *Node) *Node {
	switch n.Kind {
	case NodeNot:
		if v, ok := literalValue(n.Children[0]); ok {
			return &Node{Kind: NodeBool, Line: n.Line, BVal: !truthy(v)}
		}

	case NodeEq, NodeNe:
		left, lok := literalValue(n.Children[0])
		right, rok := literalValue(n.Children[1])
		if lok && rok {
			eq := looseEqual(left, right)
			if n.Kind == NodeNe {
				eq = !eq
			}
			return &Node{Kind: NodeBool, Line: n.Line, BVal: eq}
		}

	case NodeIf:
		if v, ok := literalValue(n.Children[0]); ok {
			if truthy(v) {
				return n.Children[1]
			}
			if len(n.Children) > 2 {
				return n.Children[2]
			}
			return &Node{Kind: NodeSeq, Line: n.Line}
		}
	}
	return n
}

// joinText flattens nested sequences and merges adjacent text nodes,
// so a folded branch costs a single write at execution time.
func joinText(n *Node) *Node {
	children := make([]*Node, 0, len(n.Children))
	for _, child := range n.Children {
		if child.Kind == NodeSeq {
			children = append(children, child.Children...)
			continue
		}
		children = append(children, child)
	}

	merged := children[:0]
	for _, child := range children {
		if child.Kind == NodeText && len(merged) > 0 && merged[len(merged)-1].Kind == NodeText {
			last := merged[len(merged)-1]
			merged[len(merged)-1] = &Node{Kind: NodeText, Line: last.Line, SVal: last.SVal + child.SVal}
			continue
		}
		merged = append(merged, child)
	}
	n.Children = merged
	return n
}

func literalValue(n *Node) (interface{}, bool) {
	switch n.Kind {
	case NodeString:
		return n.SVal, true
	case NodeNumber:
		return n.NVal, true
	case NodeBool:
		return n.BVal, true
	}
	return nil, false
}
