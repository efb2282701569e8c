package store

import (
	"strings"

	"go.etcd.io/bbolt"

	"github.com/icrar/vospace/cluster"
	"github.com/icrar/vospace/cmn"
)

// AcceptProvideLookup describes content views for max-detail reads,
// delegated to the storage backend (§4.B step 5, §4.E get_accept_views /
// get_provide_views). The store only needs the seam, not the backend.
type AcceptProvideLookup interface {
	AcceptViews(n *cluster.Node) []cluster.View
	ProvideViews(n *cluster.Node) []cluster.View
}

// Directory loads the node at path and, for containers, its direct
// children, per §4.B directory(). detail is one of cmn.DetailMin,
// cmn.DetailMax, cmn.DetailProperties or "" (defaults to max); limit <= 0
// means unbounded (subject to cmn.DefaultDirLimit).
func (s *Store) Directory(path cluster.Path, id Identity, detail string, limit int, views AcceptProvideLookup) (*cluster.Node, error) {
	var result *cluster.Node
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(nodesBucket)

		r, ok := getRow(b, path)
		if !ok {
			return cmn.NewErrNodeDoesNotExist(string(path))
		}

		if !s.perms.CanRead(id, path) {
			return cmn.NewErrPermissionDenied("identity %q cannot read %q", id.Name, path)
		}
		for _, anc := range path.StrictAncestors() {
			if !s.perms.CanRead(id, anc) {
				return cmn.NewErrPermissionDenied("identity %q cannot read ancestor %q", id.Name, anc)
			}
		}

		n := r.toNode()

		switch detail {
		case cmn.DetailMin:
			n.RemoveProperties()
		case cmn.DetailProperties:
			// children dropped below
		default:
			if n.Type.IsDataNode() && views != nil {
				n.Accepts = views.AcceptViews(n)
				n.Provides = views.ProvideViews(n)
			}
		}

		if n.Type == cluster.TypeContainerNode && detail != cmn.DetailProperties {
			children, err := listChildren(b, path, limit)
			if err != nil {
				return err
			}
			n.Children = children
		}

		result = n
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// listChildren returns the direct children of container at path, in
// ascending path order, optionally truncated to limit (§3.2, §4.B step 4).
// bbolt's Cursor.Seek walks keys in byte order, which for normalized paths
// is exactly ascending path order, so no separate sort is needed.
func listChildren(b *bbolt.Bucket, path cluster.Path, limit int) ([]cluster.ChildRef, error) {
	prefix := string(path)
	if prefix != "" {
		prefix += "/"
	}
	var out []cluster.ChildRef
	c := b.Cursor()
	for k, v := c.Seek([]byte(prefix)); k != nil && strings.HasPrefix(string(k), prefix); k, v = c.Next() {
		rest := strings.TrimPrefix(string(k), prefix)
		if rest == "" || strings.Contains(rest, "/") {
			continue // not a direct child
		}
		var r row
		if err := unmarshalRow(v, &r); err != nil {
			return nil, cmn.NewErrInternal(err)
		}
		out = append(out, cluster.ChildRef{Path: cluster.Path(r.Path), Type: r.Type, Busy: r.Busy})
		if limit > 0 && len(out) >= limit {
			break
		}
		if limit <= 0 && len(out) >= cmn.DefaultDirLimit {
			break
		}
	}
	return out, nil
}
