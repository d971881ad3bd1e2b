package engine

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/kpi-screener/internal/model"
)

// BuildTree flattens a screening request's nested groups into an immutable
// leaf-filter set and the boolean tree that references it.
//
// Leaf IDs are assigned deterministically from the position of each method
// in the request (group, KPI instance, method), so the same request always
// produces the same ID-to-method mapping. Collapse rules: a KPI instance
// with one method becomes a bare leaf; with several, a node under the
// instance's method operator. A group with one instance collapses to that
// instance's node; several combine under the group operator. A single group
// becomes the root directly; several combine under the request's group
// relationship operator.
func BuildTree(req *model.ScreeningRequest) (model.LeafSet, *model.Tree, error) {
	if err := req.Validate(); err != nil {
		return nil, nil, eris.Wrap(err, "engine: build tree")
	}

	leaves := make(model.LeafSet)
	var groupNodes []*model.Tree

	for gi, group := range req.Groups {
		var instanceNodes []*model.Tree

		for ki, inst := range group.KPIs {
			var methodLeaves []*model.Tree
			for mi, method := range inst.Methods {
				id := leafID(gi, ki, mi)
				leaves[id] = model.LeafFilter{ID: id, KPI: inst.KPI, Method: method}
				methodLeaves = append(methodLeaves, model.NewLeaf(id))
			}
			if len(methodLeaves) == 1 {
				instanceNodes = append(instanceNodes, methodLeaves[0])
			} else {
				instanceNodes = append(instanceNodes, model.NewNode(inst.MethodOp, methodLeaves...))
			}
		}

		if len(instanceNodes) == 1 {
			groupNodes = append(groupNodes, instanceNodes[0])
		} else {
			groupNodes = append(groupNodes, model.NewNode(group.Operator, instanceNodes...))
		}
	}

	if len(groupNodes) == 1 {
		return leaves, groupNodes[0], nil
	}
	return leaves, model.NewNode(req.GroupOp, groupNodes...), nil
}

func leafID(group, kpi, method int) model.LeafID {
	return model.LeafID(fmt.Sprintf("g%d.k%d.m%d", group, kpi, method))
}

// ValidateTree checks that every leaf the tree references resolves to an
// entry in the leaf set and that every node is well formed. It returns an
// error naming all unresolvable IDs; a failing tree must refuse the whole
// run rather than skipping leaves per stock.
func ValidateTree(tree *model.Tree, leaves model.LeafSet) error {
	var missing []string
	if err := walkTree(tree, leaves, &missing); err != nil {
		return err
	}
	if len(missing) > 0 {
		return eris.Errorf("engine: logic tree references unknown leaves: %s", strings.Join(missing, ", "))
	}
	return nil
}

func walkTree(tree *model.Tree, leaves model.LeafSet, missing *[]string) error {
	if tree == nil {
		return eris.New("engine: logic tree contains a nil node")
	}
	switch tree.Kind {
	case model.NodeLeaf:
		if _, ok := leaves[tree.Leaf]; !ok {
			*missing = append(*missing, string(tree.Leaf))
		}
		return nil
	case model.NodeGroup:
		if !tree.Op.Valid() {
			return eris.Errorf("engine: logic tree node has unknown operator %q", tree.Op)
		}
		if len(tree.Children) == 0 {
			return eris.New("engine: logic tree node has no children")
		}
		for _, child := range tree.Children {
			if err := walkTree(child, leaves, missing); err != nil {
				return err
			}
		}
		return nil
	}
	return eris.Errorf("engine: logic tree node has unknown kind %q", tree.Kind)
}
