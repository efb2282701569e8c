package store

import (
	"strings"

	"go.etcd.io/bbolt"

	"github.com/icrar/vospace/cluster"
	"github.com/icrar/vospace/cmn"
)

// Copy duplicates the subtree metadata rooted at src onto dest within one
// transaction (§4.B copy()). It does not touch bytes: the caller (the
// transfer engine) invokes the storage backend to duplicate bytes for every
// contained data node after this metadata transaction commits; a
// post-commit backend failure leaves orphaned byte-level state for the
// backend's own reconciliation, per spec.
func (s *Store) Copy(src, dest cluster.Path, id Identity) (*cluster.Node, []*cluster.Node, error) {
	var result *cluster.Node
	var copied []*cluster.Node
	err := s.txRetry(func(tx *bbolt.Tx) error {
		b := tx.Bucket(nodesBucket)

		if _, ok := getRow(b, src); !ok {
			return cmn.NewErrNodeDoesNotExist(string(src))
		}
		if !s.perms.CanRead(id, src) {
			return cmn.NewErrPermissionDenied("identity %q cannot read %q", id.Name, src)
		}

		destParent, hasParent := dest.Parent()
		if hasParent {
			prow, ok := getRow(b, destParent)
			if !ok || prow.Type != cluster.TypeContainerNode {
				return cmn.NewErrContainerDoesNotExist(string(destParent))
			}
		}
		if _, exists := getRow(b, dest); exists {
			return cmn.NewErrDuplicateNode(string(dest))
		}

		keys, err := subtreeKeys(b, src)
		if err != nil {
			return err
		}

		for _, k := range keys {
			r, _ := getRow(b, cluster.Path(k))
			newPath := string(dest) + strings.TrimPrefix(r.Path, string(src))
			nr := r
			nr.Path = newPath
			nr.Busy = false
			nr.Owner = id.Name
			if err := putRow(b, nr); err != nil {
				return cmn.NewErrInternal(err)
			}
			copied = append(copied, nr.toNode())
		}

		dr, _ := getRow(b, dest)
		result = dr.toNode()
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return result, copied, nil
}
