package model

// BoolOp combines child verdicts in the logic tree.
type BoolOp string

const (
	OpAND BoolOp = "AND"
	OpOR  BoolOp = "OR"
)

// Valid reports whether op is AND or OR.
func (op BoolOp) Valid() bool { return op == OpAND || op == OpOR }

// LeafID is the opaque, stable identifier a logic tree uses to reference a
// leaf filter. IDs are assigned deterministically at build time so the same
// request always yields the same ID-to-method mapping.
type LeafID string

// LeafFilter is one indexable (KPI, method) evaluation unit.
type LeafFilter struct {
	ID     LeafID       `json:"id"`
	KPI    string       `json:"kpi"`
	Method MethodConfig `json:"method"`
}

// LeafSet is the immutable collection of leaf filters a tree references.
type LeafSet map[LeafID]LeafFilter

// NodeKind discriminates tree nodes.
type NodeKind string

const (
	NodeLeaf  NodeKind = "leaf"
	NodeGroup NodeKind = "group"
)

// Tree is a boolean AND/OR expression tree whose leaves reference entries in
// a LeafSet by ID. A nil *Tree or a node with an unknown kind or operator is
// malformed and always evaluates false.
type Tree struct {
	Kind     NodeKind `json:"kind"`
	Leaf     LeafID   `json:"leaf,omitempty"`
	Op       BoolOp   `json:"op,omitempty"`
	Children []*Tree  `json:"children,omitempty"`
}

// NewLeaf returns a leaf node referencing id.
func NewLeaf(id LeafID) *Tree {
	return &Tree{Kind: NodeLeaf, Leaf: id}
}

// NewNode returns a group node combining children under op.
func NewNode(op BoolOp, children ...*Tree) *Tree {
	return &Tree{Kind: NodeGroup, Op: op, Children: children}
}

// LeafIDs returns every leaf ID referenced anywhere in the tree, in
// depth-first order. Malformed nodes contribute nothing.
func (t *Tree) LeafIDs() []LeafID {
	if t == nil {
		return nil
	}
	switch t.Kind {
	case NodeLeaf:
		return []LeafID{t.Leaf}
	case NodeGroup:
		var ids []LeafID
		for _, child := range t.Children {
			ids = append(ids, child.LeafIDs()...)
		}
		return ids
	}
	return nil
}
