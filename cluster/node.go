package cluster

import (
	"sort"

	"github.com/icrar/vospace/cmn"
)

// NodeType is the closed discriminator matching the XML `type`/`xsi:type`
// attribute tokens (§3.2, §4.A).
type NodeType int

const (
	TypeNode NodeType = iota
	TypeDataNode
	TypeUnstructuredDataNode
	TypeStructuredDataNode
	TypeContainerNode
	TypeLinkNode
)

func (t NodeType) String() string {
	switch t {
	case TypeNode:
		return cmn.NodeTypeNode
	case TypeDataNode:
		return cmn.NodeTypeDataNode
	case TypeUnstructuredDataNode:
		return cmn.NodeTypeUnstructuredDataNode
	case TypeStructuredDataNode:
		return cmn.NodeTypeStructuredDataNode
	case TypeContainerNode:
		return cmn.NodeTypeContainerNode
	case TypeLinkNode:
		return cmn.NodeTypeLinkNode
	default:
		return "vos:Node"
	}
}

// ParseNodeType maps an XML type token to a NodeType.
func ParseNodeType(token string) (NodeType, error) {
	switch token {
	case cmn.NodeTypeNode:
		return TypeNode, nil
	case cmn.NodeTypeDataNode:
		return TypeDataNode, nil
	case cmn.NodeTypeUnstructuredDataNode:
		return TypeUnstructuredDataNode, nil
	case cmn.NodeTypeStructuredDataNode:
		return TypeStructuredDataNode, nil
	case cmn.NodeTypeContainerNode:
		return TypeContainerNode, nil
	case cmn.NodeTypeLinkNode:
		return TypeLinkNode, nil
	default:
		return 0, cmn.NewErrInvalidURI("unknown node type: %q", token)
	}
}

// IsContainer reports whether t is (or behaves as) a container.
func (t NodeType) IsContainer() bool { return t == TypeContainerNode }

// IsDataNode reports whether t carries DataNode state (accepts/provides/busy).
func (t NodeType) IsDataNode() bool {
	switch t {
	case TypeDataNode, TypeUnstructuredDataNode, TypeStructuredDataNode, TypeContainerNode:
		return true
	default:
		return false
	}
}

// ChildRef is a header-only reference to a child node as returned inside a
// container listing: type and path only, never recursively expanded (§4.A).
type ChildRef struct {
	Path Path
	Type NodeType
	Busy bool
}

// Node is the single concrete representation of every variant in the closed
// sum (§3.2): Node, DataNode, UnstructuredDataNode, StructuredDataNode,
// ContainerNode, LinkNode. A tagged union in one struct—rather than one Go
// type per variant connected by an interface—keeps the codec and the store
// row format simple, since every variant shares the same wire shape modulo
// a few type-gated fields; Type is the single source of truth for which
// fields apply.
type Node struct {
	Path       Path
	Type       NodeType
	Properties []Property
	Capabilities []Capability

	// DataNode-refinement fields; valid when Type.IsDataNode().
	Accepts  []View
	Provides []View
	Busy     bool

	// ContainerNode-only: child references, header-only, path-sorted.
	Children []ChildRef

	// LinkNode-only.
	Target string
}

// NewNode constructs an empty node of the given type at path.
func NewNode(p Path, t NodeType) *Node {
	return &Node{Path: p, Type: t}
}

// SortProperties sorts the node's properties in place (§3.2).
func (n *Node) SortProperties() { SortProperties(n.Properties) }

// SortChildren sorts the node's children in place by ascending path (§3.2).
func (n *Node) SortChildren() {
	sort.Slice(n.Children, func(i, j int) bool { return n.Children[i].Path < n.Children[j].Path })
}

// RemoveProperties empties the property list (used for detail=min reads).
func (n *Node) RemoveProperties() { n.Properties = nil }

// Equal implements the XML round-trip invariant's equality: path, type,
// sorted properties, and variant-specific fields (§8 invariant 4).
func (n *Node) Equal(o *Node) bool {
	if n == nil || o == nil {
		return n == o
	}
	if n.Path != o.Path || n.Type != o.Type {
		return false
	}
	if !equalProps(n.Properties, o.Properties) {
		return false
	}
	switch n.Type {
	case TypeLinkNode:
		return n.Target == o.Target
	case TypeContainerNode:
		if n.Busy != o.Busy || !equalViews(n.Accepts, o.Accepts) || !equalViews(n.Provides, o.Provides) {
			return false
		}
		return equalChildren(n.Children, o.Children)
	default:
		if n.Type.IsDataNode() {
			return n.Busy == o.Busy && equalViews(n.Accepts, o.Accepts) && equalViews(n.Provides, o.Provides)
		}
		return true
	}
}

func equalProps(a, b []Property) bool {
	if len(a) != len(b) {
		return false
	}
	ac := append([]Property(nil), a...)
	bc := append([]Property(nil), b...)
	SortProperties(ac)
	SortProperties(bc)
	for i := range ac {
		if !ac[i].Equal(bc[i]) {
			return false
		}
	}
	return true
}

func equalViews(a, b []View) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].URI != b[i].URI {
			return false
		}
	}
	return true
}

func equalChildren(a, b []ChildRef) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].Path != b[i].Path || a[i].Type != b[i].Type {
			return false
		}
	}
	return true
}
