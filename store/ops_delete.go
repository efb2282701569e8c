package store

import (
	"go.etcd.io/bbolt"

	"github.com/icrar/vospace/cluster"
	"github.com/icrar/vospace/cmn"
)

// Delete removes the node at path and its entire subtree within one
// transaction, returning the removed subtree for post-commit storage
// cleanup (§4.B delete()). Fails with NodeIsBusy if any node in the subtree
// is busy.
func (s *Store) Delete(path cluster.Path, id Identity) ([]*cluster.Node, error) {
	var removed []*cluster.Node
	err := s.txRetry(func(tx *bbolt.Tx) error {
		b := tx.Bucket(nodesBucket)

		if _, ok := getRow(b, path); !ok {
			return cmn.NewErrNodeDoesNotExist(string(path))
		}
		if !s.perms.CanWrite(id, path) {
			return cmn.NewErrPermissionDenied("identity %q cannot delete %q", id.Name, path)
		}

		keys, err := subtreeKeys(b, path)
		if err != nil {
			return err
		}
		if busy, found := anyBusy(b, keys); found {
			return cmn.NewErrNodeIsBusy(string(busy))
		}

		for _, k := range keys {
			r, _ := getRow(b, cluster.Path(k))
			removed = append(removed, r.toNode())
			if err := b.Delete(k); err != nil {
				return cmn.NewErrInternal(err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return removed, nil
}

// SetBusy sets or clears the busy lease on a single node, inside its own
// transaction. Used by the transfer engine to acquire/release the busy
// lease around a push/pull (§5 "busy as a lease").
func (s *Store) SetBusy(path cluster.Path, busy bool) error {
	return s.txRetry(func(tx *bbolt.Tx) error {
		b := tx.Bucket(nodesBucket)
		r, ok := getRow(b, path)
		if !ok {
			return cmn.NewErrNodeDoesNotExist(string(path))
		}
		r.Busy = busy
		return putRow(b, r)
	})
}

// Get loads a single node without permission checks or child expansion;
// used internally by the transfer engine (e.g. to verify a push/pull
// target exists) rather than by external callers.
func (s *Store) Get(path cluster.Path) (*cluster.Node, error) {
	var result *cluster.Node
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(nodesBucket)
		r, ok := getRow(b, path)
		if !ok {
			return cmn.NewErrNodeDoesNotExist(string(path))
		}
		result = r.toNode()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}
