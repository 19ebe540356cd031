package fanout

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/kebairia/backman/internal/catalog"
)

// Local copies artifacts into a directory on this host. The local copy is
// the canonical retry source for later fan-out attempts, so it is synced
// before any remote destination.
type Local struct {
	path string
}

// NewLocal returns a destination writing into dir.
func NewLocal(dir string) *Local {
	return &Local{path: dir}
}

func (l *Local) Ref() catalog.DestinationRef {
	return catalog.DestinationRef{Kind: catalog.DestLocal, Path: l.path}
}

// Store copies the artifact and sidecar with the same write-temp,
// atomic-rename discipline the builder uses.
func (l *Local) Store(ctx context.Context, artifactPath string) error {
	if err := os.MkdirAll(l.path, 0o755); err != nil {
		return fmt.Errorf("%w: %v", ErrDestinationUnreachable, err)
	}
	for _, src := range []string{artifactPath, artifactPath + catalog.SidecarSuffix} {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := copyAtomic(src, filepath.Join(l.path, filepath.Base(src))); err != nil {
			return fmt.Errorf("%w: %v", ErrDestinationUnreachable, err)
		}
	}
	return nil
}

func copyAtomic(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	tmp := dst + catalog.PartialSuffix
	out, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(tmp)
		return err
	}
	if err := out.Sync(); err != nil {
		out.Close()
		os.Remove(tmp)
		return err
	}
	if err := out.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, dst)
}
