// Package fanout copies finished artifacts to the configured destinations.
// Destinations are fully independent: one failure never prevents or rolls
// back another's success.
package fanout

import (
	"context"
	"errors"
	"fmt"

	"github.com/kebairia/backman/internal/catalog"
	"github.com/kebairia/backman/internal/config"
)

// ErrDestinationUnreachable wraps transport failures. Retried with backoff
// before the destination is marked failed for the job.
var ErrDestinationUnreachable = errors.New("destination unreachable")

// Destination is one configured artifact target.
type Destination interface {
	Ref() catalog.DestinationRef
	// Store copies the artifact and its checksum sidecar. Implementations
	// must be idempotent: a retried Store overwrites cleanly.
	Store(ctx context.Context, artifactPath string) error
}

// Secrets resolves S3 access keys stored in Vault. Nil is allowed when all
// destinations carry inline keys.
type Secrets interface {
	S3Credentials(ctx context.Context, path string) (accessKey, secretKey string, err error)
}

// FromConfig builds the destination list in sync order: local destinations
// first, then remote, then S3.
func FromConfig(ctx context.Context, cfg config.Config, secrets Secrets) ([]Destination, error) {
	var dests []Destination

	for _, l := range cfg.Destinations.Local {
		dests = append(dests, NewLocal(l.Path))
	}
	for _, r := range cfg.Destinations.Remote {
		dests = append(dests, NewRemote(r.User, r.Host, r.Path))
	}
	for _, s := range cfg.Destinations.S3 {
		access, secret := s.AccessKey, s.SecretKey
		if s.VaultPath != "" {
			if secrets == nil {
				return nil, fmt.Errorf("s3 %s: vault_path set but no vault client configured", s.Bucket)
			}
			var err error
			access, secret, err = secrets.S3Credentials(ctx, s.VaultPath)
			if err != nil {
				return nil, fmt.Errorf("s3 %s: resolve keys: %w", s.Bucket, err)
			}
		}
		d, err := NewS3(s, access, secret)
		if err != nil {
			return nil, fmt.Errorf("s3 %s: %w", s.Bucket, err)
		}
		dests = append(dests, d)
	}

	return dests, nil
}
