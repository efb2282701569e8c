package backend

import (
	"context"
	"fmt"

	"cloud.google.com/go/storage"

	"github.com/icrar/vospace/cluster"
)

// GCS is the Google Cloud Storage reference Provider, grounded on the
// teacher's own cloud.google.com/go/storage dependency. Move/copy use the
// storage client's ObjectHandle.CopierFrom so bytes never transit through
// this process. GCS issues no transfer endpoint URLs: it does not implement
// the Endpoints candidate list the engine reads, so protocol transfers
// against it find no endpoint.
type GCS struct {
	client *storage.Client
	bucket string
}

var _ Provider = (*GCS)(nil)

func NewGCS(ctx context.Context, bucket string) (*GCS, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("gcs client: %w", err)
	}
	return &GCS{client: client, bucket: bucket}, nil
}

func (g *GCS) obj(p cluster.Path) *storage.ObjectHandle {
	return g.client.Bucket(g.bucket).Object(string(p))
}

func (g *GCS) CreateStorageNode(ctx context.Context, n *cluster.Node) error {
	w := g.obj(n.Path).NewWriter(ctx)
	return w.Close()
}

func (g *GCS) DeleteStorageNode(ctx context.Context, n *cluster.Node) error {
	return g.obj(n.Path).Delete(ctx)
}

func (g *GCS) CopyStorageNode(ctx context.Context, _ cluster.NodeType, src cluster.Path, _ cluster.NodeType, dest cluster.Path) error {
	_, err := g.obj(dest).CopierFrom(g.obj(src)).Run(ctx)
	return err
}

func (g *GCS) MoveStorageNode(ctx context.Context, srcType cluster.NodeType, src cluster.Path, destType cluster.NodeType, dest cluster.Path) error {
	if err := g.CopyStorageNode(ctx, srcType, src, destType, dest); err != nil {
		return err
	}
	return g.obj(src).Delete(ctx)
}

func (g *GCS) AcceptViews(*cluster.Node) []cluster.View {
	return []cluster.View{{URI: "ivo://ivoa.net/vospace/core#binaryview"}}
}

func (g *GCS) ProvideViews(*cluster.Node) []cluster.View {
	return []cluster.View{{URI: "ivo://ivoa.net/vospace/core#binaryview"}}
}

func (g *GCS) FilterEndpoints(candidates []Endpoint, _ cluster.NodeType, _ cluster.Path, protocolURI string, _ string) []Endpoint {
	out := make([]Endpoint, 0, len(candidates))
	for _, c := range candidates {
		if c.ProtocolURI == protocolURI {
			out = append(out, c)
		}
	}
	return out
}
