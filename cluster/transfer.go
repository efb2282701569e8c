package cluster

import "github.com/icrar/vospace/cmn"

// TransferKind discriminates the four concrete Transfer variants (§3.4).
type TransferKind int

const (
	KindPushToSpace TransferKind = iota
	KindPullFromSpace
	KindCopy
	KindMove
)

// Transfer is a client request to move bytes or nodes, materialized as a
// UWS job (§3.4). Like Node, it is one struct keyed by Kind rather than an
// interface hierarchy, since the wire shape differs only in a handful of
// kind-gated fields.
type Transfer struct {
	Kind   TransferKind
	Target Path

	// Protocol-transfer fields (PushToSpace / PullFromSpace).
	Protocols []Protocol
	View      *View

	// Node-transfer fields (Copy / Move).
	Destination Path
	KeepBytes   bool
}

// Direction renders the wire-level `direction` text for t (§3.4): the two
// fixed tokens for protocol transfers, or the destination path for node
// transfers.
func (t *Transfer) Direction(space string) string {
	switch t.Kind {
	case KindPushToSpace:
		return cmn.DirectionPushToSpace
	case KindPullFromSpace:
		return cmn.DirectionPullFromSpace
	default:
		return NodeURI(space, t.Destination)
	}
}

// IsProtocolTransfer reports whether t is a PushToSpace/PullFromSpace.
func (t *Transfer) IsProtocolTransfer() bool {
	return t.Kind == KindPushToSpace || t.Kind == KindPullFromSpace
}

// IsNodeTransfer reports whether t is a Copy/Move.
func (t *Transfer) IsNodeTransfer() bool {
	return t.Kind == KindCopy || t.Kind == KindMove
}
