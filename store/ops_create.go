package store

import (
	"go.etcd.io/bbolt"

	"github.com/icrar/vospace/cluster"
	"github.com/icrar/vospace/cmn"
)

// Create inserts node at its own path, per §4.B create():
//  1. no strict ancestor may be a LinkNode, else LinkFound;
//  2. parent must exist and be a ContainerNode, else ContainerDoesNotExist;
//  3. the path must not already be occupied, else DuplicateNode;
//  4. identity must have create permission on the parent, else
//     PermissionDenied;
//  5. properties are installed as submitted; delete-properties on create
//     are ignored (nothing to delete yet).
func (s *Store) Create(n *cluster.Node, id Identity) (*cluster.Node, error) {
	var result *cluster.Node
	err := s.txRetry(func(tx *bbolt.Tx) error {
		b := tx.Bucket(nodesBucket)

		if _, found := linkAncestor(b, n.Path); found {
			return cmn.NewErrLinkFound(string(n.Path))
		}

		parent, hasParent := n.Path.Parent()
		if hasParent {
			prow, ok := getRow(b, parent)
			if !ok || prow.Type != cluster.TypeContainerNode {
				return cmn.NewErrContainerDoesNotExist(string(parent))
			}
		}

		if _, exists := getRow(b, n.Path); exists {
			return cmn.NewErrDuplicateNode(string(n.Path))
		}

		if hasParent && !s.perms.CanCreate(id, parent) {
			return cmn.NewErrPermissionDenied("identity %q cannot create under %q", id.Name, parent)
		}

		props := make([]cluster.Property, 0, len(n.Properties))
		for _, p := range n.Properties {
			if p.Delete {
				continue // delete-properties on create are ignored (§4.B step 5)
			}
			props = append(props, p)
		}
		cluster.SortProperties(props)

		r := toRow(n, id.Name)
		r.Properties = props
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
