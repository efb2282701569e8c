package backend

import (
	"context"
	"fmt"
	"net/url"

	"github.com/Azure/azure-storage-blob-go/azblob"

	"github.com/icrar/vospace/cluster"
)

// Azure is the Azure Blob Storage reference Provider, grounded on the
// teacher's own azure-storage-blob-go dependency. Move/copy use
// StartCopyFromURL so bytes never transit through this process. Azure
// issues no transfer endpoint URLs: it does not implement the Endpoints
// candidate list the engine reads, so protocol transfers against it find no
// endpoint.
type Azure struct {
	container azblob.ContainerURL
}

var _ Provider = (*Azure)(nil)

// NewAzure builds an Azure backend against containerURL, authenticated with
// the given shared-key credential.
func NewAzure(accountName, accountKey, containerName string) (*Azure, error) {
	cred, err := azblob.NewSharedKeyCredential(accountName, accountKey)
	if err != nil {
		return nil, fmt.Errorf("azure credential: %w", err)
	}
	pipeline := azblob.NewPipeline(cred, azblob.PipelineOptions{})
	u, err := url.Parse(fmt.Sprintf("https://%s.blob.core.windows.net/%s", accountName, containerName))
	if err != nil {
		return nil, fmt.Errorf("azure container url: %w", err)
	}
	return &Azure{container: azblob.NewContainerURL(*u, pipeline)}, nil
}

func (a *Azure) blob(p cluster.Path) azblob.BlockBlobURL {
	return a.container.NewBlockBlobURL(string(p))
}

func (a *Azure) CreateStorageNode(ctx context.Context, n *cluster.Node) error {
	_, err := a.blob(n.Path).Upload(ctx, nil, azblob.BlobHTTPHeaders{}, azblob.Metadata{}, azblob.BlobAccessConditions{}, azblob.DefaultAccessTier, nil, azblob.ClientProvidedKeyOptions{})
	return err
}

func (a *Azure) DeleteStorageNode(ctx context.Context, n *cluster.Node) error {
	_, err := a.blob(n.Path).Delete(ctx, azblob.DeleteSnapshotsOptionNone, azblob.BlobAccessConditions{})
	return err
}

func (a *Azure) CopyStorageNode(ctx context.Context, _ cluster.NodeType, src cluster.Path, _ cluster.NodeType, dest cluster.Path) error {
	srcURL := a.blob(src).URL()
	_, err := a.blob(dest).StartCopyFromURL(ctx, srcURL, azblob.Metadata{}, azblob.ModifiedAccessConditions{}, azblob.BlobAccessConditions{}, azblob.DefaultAccessTier, nil)
	return err
}

func (a *Azure) MoveStorageNode(ctx context.Context, srcType cluster.NodeType, src cluster.Path, destType cluster.NodeType, dest cluster.Path) error {
	if err := a.CopyStorageNode(ctx, srcType, src, destType, dest); err != nil {
		return err
	}
	_, err := a.blob(src).Delete(ctx, azblob.DeleteSnapshotsOptionNone, azblob.BlobAccessConditions{})
	return err
}

func (a *Azure) AcceptViews(*cluster.Node) []cluster.View {
	return []cluster.View{{URI: "ivo://ivoa.net/vospace/core#binaryview"}}
}

func (a *Azure) ProvideViews(*cluster.Node) []cluster.View {
	return []cluster.View{{URI: "ivo://ivoa.net/vospace/core#binaryview"}}
}

func (a *Azure) FilterEndpoints(candidates []Endpoint, _ cluster.NodeType, _ cluster.Path, protocolURI string, _ string) []Endpoint {
	out := make([]Endpoint, 0, len(candidates))
	for _, c := range candidates {
		if c.ProtocolURI == protocolURI && c.SecurityMethod != "" {
			out = append(out, c)
		}
	}
	return out
}
