package operations

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/kebairia/backman/internal/archive"
	"github.com/kebairia/backman/internal/catalog"
)

// Restore verifies and extracts one artifact. The artifact may be named by
// catalog path, bare file name, or a path outside the catalog (a copy
// pulled back from a destination) as long as its sidecar sits next to it.
// Restore takes only the shared lock, so concurrent restores are fine
// while a backup or prune of the same name is barred.
func (o *Operator) Restore(
	ctx context.Context,
	artifact string,
	destPath string,
	verifyOnly bool,
) (*archive.RestoreResult, error) {
	rec, err := o.resolveArtifact(artifact)
	if err != nil {
		return nil, err
	}

	lock, err := catalog.AcquireShared(o.cfg.Backup.Root, rec.LogicalName)
	if err != nil {
		return nil, err
	}
	defer lock.Release()

	return archive.Restore(ctx, rec, destPath, verifyOnly, o.log)
}

// resolveArtifact finds the backup record for an artifact reference,
// falling back to reconstructing one from the file itself.
func (o *Operator) resolveArtifact(artifact string) (catalog.BackupRecord, error) {
	cat, err := catalog.Scan(o.cfg.Backup.Root)
	if err != nil {
		return catalog.BackupRecord{}, err
	}
	if rec, ok := cat.FindByArtifact(artifact); ok {
		return rec, nil
	}

	info, err := os.Stat(artifact)
	if err != nil {
		return catalog.BackupRecord{}, fmt.Errorf("artifact %q not found in catalog or on disk", artifact)
	}
	logical, created, err := catalog.ParseArtifactName(filepath.Base(artifact))
	if err != nil {
		return catalog.BackupRecord{}, err
	}
	return catalog.BackupRecord{
		ID:           catalog.RecordID(logical, created),
		LogicalName:  logical,
		CreatedAt:    created,
		ArtifactPath: artifact,
		SizeBytes:    info.Size(),
		Status:       catalog.StatusComplete,
	}, nil
}
