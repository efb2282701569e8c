package store

import (
	"strings"

	"go.etcd.io/bbolt"

	"github.com/icrar/vospace/cluster"
	"github.com/icrar/vospace/cmn"
)

// subtreeKeys returns every key in the nodes bucket at or under path,
// including path itself, in ascending order.
func subtreeKeys(b *bbolt.Bucket, path cluster.Path) ([][]byte, error) {
	prefix := string(path)
	var keys [][]byte
	c := b.Cursor()
	if k, v := c.Seek([]byte(prefix)); k != nil && string(k) == prefix {
		cp := append([]byte(nil), k...)
		keys = append(keys, cp)
		_ = v
	}
	childPrefix := prefix
	if childPrefix != "" {
		childPrefix += "/"
	} else {
		// root: every non-root key is a descendant.
	}
	for k, _ := c.Seek([]byte(childPrefix)); k != nil && strings.HasPrefix(string(k), childPrefix); k, _ = c.Next() {
		if childPrefix == "" && len(k) == 0 {
			continue
		}
		cp := append([]byte(nil), k...)
		keys = append(keys, cp)
	}
	return keys, nil
}

func anyBusy(b *bbolt.Bucket, keys [][]byte) (cluster.Path, bool) {
	for _, k := range keys {
		r, ok := getRow(b, cluster.Path(k))
		if ok && r.Busy {
			return cluster.Path(k), true
		}
	}
	return "", false
}

// Move atomically renames src to dest, rewriting every descendant path in
// the same transaction (§4.B move()). dest's parent must be a container
// that is not a descendant of src; src (or any node under it) must not be
// busy.
func (s *Store) Move(src, dest cluster.Path, id Identity) (*cluster.Node, error) {
	var result *cluster.Node
	err := s.txRetry(func(tx *bbolt.Tx) error {
		b := tx.Bucket(nodesBucket)

		srow, ok := getRow(b, src)
		if !ok {
			return cmn.NewErrNodeDoesNotExist(string(src))
		}
		if !s.perms.CanWrite(id, src) {
			return cmn.NewErrPermissionDenied("identity %q cannot move %q", id.Name, src)
		}

		destParent, hasParent := dest.Parent()
		if hasParent {
			prow, ok := getRow(b, destParent)
			if !ok || prow.Type != cluster.TypeContainerNode {
				return cmn.NewErrContainerDoesNotExist(string(destParent))
			}
			if destParent.HasStrictPrefix(src) || destParent == src {
				return cmn.NewErrInvalidArgument("destination %q is under source %q", dest, src)
			}
		}
		if _, exists := getRow(b, dest); exists {
			return cmn.NewErrDuplicateNode(string(dest))
		}

		keys, err := subtreeKeys(b, src)
		if err != nil {
			return err
		}
		if busy, found := anyBusy(b, keys); found {
			return cmn.NewErrNodeIsBusy(string(busy))
		}

		rows := make([]row, 0, len(keys))
		for _, k := range keys {
			r, _ := getRow(b, cluster.Path(k))
			rows = append(rows, r)
		}
		for _, k := range keys {
			if err := b.Delete(k); err != nil {
				return cmn.NewErrInternal(err)
			}
		}
		for _, r := range rows {
			newPath := string(dest) + strings.TrimPrefix(r.Path, string(src))
			r.Path = newPath
			if err := putRow(b, r); err != nil {
				return cmn.NewErrInternal(err)
			}
		}

		_ = srow
		nr, _ := getRow(b, dest)
		result = nr.toNode()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}
