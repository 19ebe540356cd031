package fanout

import (
	"context"
	"fmt"
	"path"
	"path/filepath"

	minio "github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/kebairia/backman/internal/catalog"
	"github.com/kebairia/backman/internal/config"
)

// S3 uploads artifacts to an S3-compatible bucket.
type S3 struct {
	cli    *minio.Client
	bucket string
	prefix string
}

// NewS3 builds the destination from config plus resolved access keys.
func NewS3(cfg config.S3Destination, accessKey, secretKey string) (*S3, error) {
	cli, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: !cfg.Insecure,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("s3 client: %w", err)
	}
	return &S3{cli: cli, bucket: cfg.Bucket, prefix: cfg.Prefix}, nil
}

func (s *S3) Ref() catalog.DestinationRef {
	return catalog.DestinationRef{
		Kind:   catalog.DestS3,
		Bucket: s.bucket,
		Prefix: s.prefix,
	}
}

// Store uploads the artifact and sidecar under the configured prefix.
func (s *S3) Store(ctx context.Context, artifactPath string) error {
	for _, src := range []string{artifactPath, artifactPath + catalog.SidecarSuffix} {
		key := path.Join(s.prefix, filepath.Base(src))
		_, err := s.cli.FPutObject(ctx, s.bucket, key, src, minio.PutObjectOptions{
			ContentType: "application/octet-stream",
		})
		if err != nil {
			return fmt.Errorf("%w: put s3://%s/%s: %v", ErrDestinationUnreachable, s.bucket, key, err)
		}
	}
	return nil
}
