package engine

import "github.com/sells-group/kpi-screener/internal/model"

// EvaluateLeaf windows the stock's series for the leaf's KPI and runs the
// leaf's method over it. A KPI absent from the table is an empty series,
// which every method fails. The returned audit records the windowed values
// for display; it is not part of the engine contract.
func EvaluateLeaf(leaf model.LeafFilter, stock model.StockSeries) (bool, model.LeafAudit) {
	window := SelectWindow(stock[leaf.KPI], leaf.Method.Duration)
	passed := evaluateMethod(window, leaf.Method)
	return passed, model.LeafAudit{
		Leaf:   leaf.ID,
		KPI:    leaf.KPI,
		Window: window.Values(),
		Passed: passed,
	}
}

// Evaluate runs the logic tree for one stock. Pure recursion with AND/OR
// short-circuit; no shared mutable state. Malformed nodes evaluate false
// (fail closed), but callers are expected to have run ValidateTree first so
// that malformed trees refuse the run instead of silently failing stocks.
func Evaluate(tree *model.Tree, leaves model.LeafSet, stock model.StockSeries) bool {
	verdict, _ := evaluateNode(tree, leaves, stock, nil)
	return verdict
}

// EvaluateWithAudit is Evaluate plus the per-leaf windowed values seen along
// the way. Short-circuited branches contribute no audit entries.
func EvaluateWithAudit(tree *model.Tree, leaves model.LeafSet, stock model.StockSeries) (bool, []model.LeafAudit) {
	audit := make([]model.LeafAudit, 0, len(leaves))
	verdict, audit := evaluateNode(tree, leaves, stock, audit)
	return verdict, audit
}

func evaluateNode(tree *model.Tree, leaves model.LeafSet, stock model.StockSeries, audit []model.LeafAudit) (bool, []model.LeafAudit) {
	if tree == nil {
		return false, audit
	}

	switch tree.Kind {
	case model.NodeLeaf:
		leaf, ok := leaves[tree.Leaf]
		if !ok {
			return false, audit
		}
		passed, entry := EvaluateLeaf(leaf, stock)
		if audit != nil {
			audit = append(audit, entry)
		}
		return passed, audit

	case model.NodeGroup:
		switch tree.Op {
		case model.OpAND:
			for _, child := range tree.Children {
				var passed bool
				passed, audit = evaluateNode(child, leaves, stock, audit)
				if !passed {
					return false, audit
				}
			}
			return len(tree.Children) > 0, audit
		case model.OpOR:
			for _, child := range tree.Children {
				var passed bool
				passed, audit = evaluateNode(child, leaves, stock, audit)
				if passed {
					return true, audit
				}
			}
			return false, audit
		}
		return false, audit
	}

	return false, audit
}
