// Package backend defines the storage backend contract (§4.E) the transfer
// engine calls to provision endpoints and to perform data-plane move/copy/
// delete, and ships reference adapters for the major cloud object stores
// plus an in-process adapter for local development and tests.
package backend

import (
	"context"

	"github.com/icrar/vospace/cluster"
)

// Provider is the abstract storage backend the engine requires (§4.E,
// grounded directly on pyvospace's AbstractSpace/AbstractStorage). All
// operations may fail; the engine treats any error here as InternalError
// and transitions the owning job to ERROR (§4.E, §7).
type Provider interface {
	// CreateStorageNode / DeleteStorageNode perform post-metadata-commit
	// byte-level allocation/cleanup.
	CreateStorageNode(ctx context.Context, n *cluster.Node) error
	DeleteStorageNode(ctx context.Context, n *cluster.Node) error

	// MoveStorageNode / CopyStorageNode are the byte-level counterparts of
	// metadata move/copy.
	MoveStorageNode(ctx context.Context, srcType cluster.NodeType, srcPath cluster.Path, destType cluster.NodeType, destPath cluster.Path) error
	CopyStorageNode(ctx context.Context, srcType cluster.NodeType, srcPath cluster.Path, destType cluster.NodeType, destPath cluster.Path) error

	// AcceptViews / ProvideViews describe content views for max-detail reads
	// (§4.B directory() step 5).
	AcceptViews(n *cluster.Node) []cluster.View
	ProvideViews(n *cluster.Node) []cluster.View

	// FilterEndpoints narrows candidates to the ones legal for this
	// transfer: this node type, path, protocol, and direction (§4.E
	// filter_storage_endpoints). The engine applies its own policy (first
	// endpoint matching scheme + security method) on top of this result.
	FilterEndpoints(candidates []Endpoint, nodeType cluster.NodeType, path cluster.Path, protocolURI string, direction string) []Endpoint
}

// Endpoint is a pre-configured storage endpoint plus the protocol/security
// method it serves, as held by a Provider before filtering.
type Endpoint struct {
	URL            string
	ProtocolURI    string
	SecurityMethod string // "" (plain) or a URI naming a security method
}

// Direction values used by FilterEndpoints, matching the transfer direction
// tokens used elsewhere.
const (
	DirectionPush = "pushToVoSpace"
	DirectionPull = "pullFromVoSpace"
)
