// Package store implements the transactional metadata store described in
// §4.B: node creation, directory listing, property update, move, copy, and
// delete, each running inside one database transaction.
//
// The transactional contract is implemented with go.etcd.io/bbolt, adopted
// from cuemby-warren's use of bbolt as its durable single-writer state
// store: bbolt allows exactly one read-write transaction at a time and gives
// every reader a consistent point-in-time snapshot, which is precisely the
// SERIALIZABLE-equivalent guarantee §5 asks for.
package store

import (
	"encoding/json"
	"time"

	"go.etcd.io/bbolt"

	"github.com/icrar/vospace/cluster"
	"github.com/icrar/vospace/cmn"
)

var nodesBucket = []byte("nodes")

// Identity is the caller's authenticated principal, resolved upstream of
// this package (§1 scope: auth middleware is an external collaborator).
type Identity struct {
	Name string
}

func (i Identity) Equal(o Identity) bool { return i.Name == o.Name }

// PermissionChecker decides whether an identity may create under / read /
// write a given node. The dispatcher wires a concrete implementation; the
// store only calls through this seam so that permission policy never lives
// inside the transactional core.
type PermissionChecker interface {
	CanCreate(id Identity, parent cluster.Path) bool
	CanRead(id Identity, path cluster.Path) bool
	CanWrite(id Identity, path cluster.Path) bool
}

// AllowAll is a permissive PermissionChecker that grants every request; the
// tests use it, and cmd/vospaced opens its store with it.
type AllowAll struct{}

func (AllowAll) CanCreate(Identity, cluster.Path) bool { return true }
func (AllowAll) CanRead(Identity, cluster.Path) bool   { return true }
func (AllowAll) CanWrite(Identity, cluster.Path) bool  { return true }

// row is the on-disk representation of a node: JSON rather than the
// teacher's msgpack, since the store's working set fits comfortably in a
// single embedded KV value and JSON keeps the on-disk format debuggable
// with any bbolt inspector.
type row struct {
	Path       string             `json:"path"`
	Type       cluster.NodeType   `json:"type"`
	Busy       bool               `json:"busy"`
	Owner      string             `json:"owner"`
	Properties []cluster.Property `json:"properties"`
	Accepts    []cluster.View     `json:"accepts,omitempty"`
	Provides   []cluster.View     `json:"provides,omitempty"`
	Target     string             `json:"target,omitempty"`
}

func toRow(n *cluster.Node, owner string) row {
	return row{
		Path:       string(n.Path),
		Type:       n.Type,
		Busy:       n.Busy,
		Owner:      owner,
		Properties: n.Properties,
		Accepts:    n.Accepts,
		Provides:   n.Provides,
		Target:     n.Target,
	}
}

func (r row) toNode() *cluster.Node {
	n := cluster.NewNode(cluster.Path(r.Path), r.Type)
	n.Busy = r.Busy
	n.Properties = append([]cluster.Property(nil), r.Properties...)
	n.Accepts = append([]cluster.View(nil), r.Accepts...)
	n.Provides = append([]cluster.View(nil), r.Provides...)
	n.Target = r.Target
	n.SortProperties()
	return n
}

// Store is the transactional node tree.
type Store struct {
	db      *bbolt.DB
	perms   PermissionChecker
	timeout time.Duration
}

// Open opens (creating if necessary) the bbolt database at path and ensures
// the nodes table and the root container exist.
func Open(path string, timeout time.Duration, perms PermissionChecker) (*Store, error) {
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: timeout})
	if err != nil {
		return nil, cmn.NewErrInternal(err)
	}
	s := &Store{db: db, perms: perms, timeout: timeout}
	if err := s.db.Update(func(tx *bbolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists(nodesBucket)
		if err != nil {
			return err
		}
		if b.Get([]byte("")) == nil {
			root := row{Path: "", Type: cluster.TypeContainerNode}
			buf, _ := json.Marshal(root)
			return b.Put([]byte(""), buf)
		}
		return nil
	}); err != nil {
		return nil, cmn.NewErrInternal(err)
	}
	return s, nil
}

func (s *Store) Close() error { return s.db.Close() }

// DB exposes the underlying bbolt handle so sibling packages (the xaction
// engine's job table, §4.C) can keep their own top-level bucket in the same
// database file without the store's transactional core knowing anything
// about job records.
func (s *Store) DB() *bbolt.DB { return s.db }

func getRow(b *bbolt.Bucket, path cluster.Path) (row, bool) {
	data := b.Get([]byte(path))
	if data == nil {
		return row{}, false
	}
	var r row
	_ = json.Unmarshal(data, &r)
	return r, true
}

func unmarshalRow(data []byte, r *row) error {
	return json.Unmarshal(data, r)
}

func putRow(b *bbolt.Bucket, r row) error {
	buf, err := json.Marshal(r)
	if err != nil {
		return err
	}
	return b.Put([]byte(r.Path), buf)
}

// linkAncestor returns the path of the first strict ancestor of p that is a
// LinkNode, if any (§3.2, §4.B step 2: "no path segment may traverse
// through a LinkNode").
func linkAncestor(b *bbolt.Bucket, p cluster.Path) (cluster.Path, bool) {
	for _, anc := range p.StrictAncestors() {
		if r, ok := getRow(b, anc); ok && r.Type == cluster.TypeLinkNode {
			return anc, true
		}
	}
	return "", false
}

// txRetry runs fn in a read-write bbolt transaction. bbolt serializes
// writers internally (Update already blocks for the configured Timeout and
// returns bbolt.ErrTimeout on contention), so the "at most one retry then
// Conflict" rule from §5/§7 is implemented as: try once, and if the
// transaction reports a timeout, try exactly once more before surfacing
// ErrConflict.
func (s *Store) txRetry(fn func(tx *bbolt.Tx) error) error {
	err := s.db.Update(fn)
	if err == bbolt.ErrTimeout {
		err = s.db.Update(fn)
		if err == bbolt.ErrTimeout {
			return cmn.NewErrConflict("metadata store busy, retry exhausted")
		}
	}
	if err != nil {
		if ve, ok := err.(*cmn.VOSpaceErr); ok {
			return ve
		}
		return cmn.NewErrInternal(err)
	}
	return nil
}
