package store

import (
	"go.etcd.io/bbolt"

	"github.com/icrar/vospace/cluster"
	"github.com/icrar/vospace/cmn"
)

// Update applies merge semantics for each property in n onto the stored
// node at n.Path, per §4.B update(): delete-properties remove the stored
// property by URI if present; other properties are upserted. Attempting to
// modify a property stored with ReadOnly=true fails with PermissionDenied.
func (s *Store) Update(n *cluster.Node, id Identity) (*cluster.Node, error) {
	var result *cluster.Node
	err := s.txRetry(func(tx *bbolt.Tx) error {
		b := tx.Bucket(nodesBucket)

		r, ok := getRow(b, n.Path)
		if !ok {
			return cmn.NewErrNodeDoesNotExist(string(n.Path))
		}
		if !s.perms.CanWrite(id, n.Path) {
			return cmn.NewErrPermissionDenied("identity %q cannot update %q", id.Name, n.Path)
		}

		byURI := make(map[string]cluster.Property, len(r.Properties))
		for _, p := range r.Properties {
			byURI[p.URI] = p
		}

		for _, req := range n.Properties {
			existing, hasExisting := byURI[req.URI]
			if req.Delete {
				if hasExisting {
					if existing.ReadOnly {
						return cmn.NewErrPermissionDenied("property %q is read-only", req.URI)
					}
					delete(byURI, req.URI)
				}
				continue
			}
			if hasExisting && existing.ReadOnly {
				return cmn.NewErrPermissionDenied("property %q is read-only", req.URI)
			}
			byURI[req.URI] = req
		}

		merged := make([]cluster.Property, 0, len(byURI))
		for _, p := range byURI {
			merged = append(merged, p)
		}
		cluster.SortProperties(merged)
		r.Properties = merged

		if err := putRow(b, r); err != nil {
			return cmn.NewErrInternal(err)
		}
		result = r.toNode()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}
