package backend

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"

	"github.com/icrar/vospace/cluster"
)

// S3 is the AWS S3 reference Provider, adopted from the teacher's own
// aws-sdk-go dependency (2lambda123-NVIDIA-aistore requires it directly for
// its own S3 cloud backend). httpput/httpget endpoints are presigned URLs;
// move/copy use S3's server-side CopyObject so bytes never transit through
// this process.
type S3 struct {
	bucket string
	sess   *session.Session
	client *s3.S3
}

var _ Provider = (*S3)(nil)

// NewS3 builds an S3 backend against bucket using the default AWS SDK
// credential chain (environment, shared config, instance role).
func NewS3(bucket, region string) (*S3, error) {
	sess, err := session.NewSession(&aws.Config{Region: aws.String(region)})
	if err != nil {
		return nil, fmt.Errorf("aws session: %w", err)
	}
	return &S3{bucket: bucket, sess: sess, client: s3.New(sess)}, nil
}

func (s *S3) key(p cluster.Path) string { return string(p) }

func (s *S3) CreateStorageNode(_ context.Context, n *cluster.Node) error {
	_, err := s.client.PutObject(&s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(n.Path)),
		Body:   nil,
	})
	return err
}

func (s *S3) DeleteStorageNode(_ context.Context, n *cluster.Node) error {
	_, err := s.client.DeleteObject(&s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(n.Path)),
	})
	return err
}

func (s *S3) MoveStorageNode(ctx context.Context, srcType cluster.NodeType, src cluster.Path, destType cluster.NodeType, dest cluster.Path) error {
	if err := s.CopyStorageNode(ctx, srcType, src, destType, dest); err != nil {
		return err
	}
	_, err := s.client.DeleteObject(&s3.DeleteObjectInput{Bucket: aws.String(s.bucket), Key: aws.String(s.key(src))})
	return err
}

func (s *S3) CopyStorageNode(_ context.Context, _ cluster.NodeType, src cluster.Path, _ cluster.NodeType, dest cluster.Path) error {
	_, err := s.client.CopyObject(&s3.CopyObjectInput{
		Bucket:     aws.String(s.bucket),
		CopySource: aws.String(s.bucket + "/" + s.key(src)),
		Key:        aws.String(s.key(dest)),
	})
	return err
}

func (s *S3) AcceptViews(*cluster.Node) []cluster.View {
	return []cluster.View{{URI: "ivo://ivoa.net/vospace/core#binaryview"}}
}

func (s *S3) ProvideViews(*cluster.Node) []cluster.View {
	return []cluster.View{{URI: "ivo://ivoa.net/vospace/core#binaryview"}}
}

// PresignedEndpoint issues a time-bounded signed URL for path by presigning
// an s3 PutObject (upload) or GetObject (download) request. The transfer
// engine does not call it.
func (s *S3) PresignedEndpoint(path cluster.Path, upload bool, expiry time.Duration) (string, error) {
	if upload {
		req, _ := s.client.PutObjectRequest(&s3.PutObjectInput{Bucket: aws.String(s.bucket), Key: aws.String(s.key(path))})
		return req.Presign(expiry)
	}
	req, _ := s.client.GetObjectRequest(&s3.GetObjectInput{Bucket: aws.String(s.bucket), Key: aws.String(s.key(path))})
	return req.Presign(expiry)
}

func (s *S3) FilterEndpoints(candidates []Endpoint, _ cluster.NodeType, _ cluster.Path, protocolURI string, _ string) []Endpoint {
	out := make([]Endpoint, 0, len(candidates))
	for _, c := range candidates {
		if c.ProtocolURI == protocolURI {
			out = append(out, c)
		}
	}
	return out
}

// newUploader builds an s3manager multipart uploader for sess. Nothing in
// this module calls it.
func newUploader(sess *session.Session) *s3manager.Uploader {
	return s3manager.NewUploader(sess)
}
