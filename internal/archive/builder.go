// Package archive turns staged source data into immutable checksummed
// tar.gz artifacts and restores them. An artifact becomes visible under
// its final name only after the full write-temp, fsync, checksum, atomic
// rename sequence succeeds.
package archive

import (
	"archive/tar"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"syscall"
	"time"

	"github.com/klauspost/compress/gzip"

	"github.com/kebairia/backman/internal/catalog"
	"github.com/kebairia/backman/internal/logger"
	"github.com/kebairia/backman/internal/source"
)

var (
	// ErrBuildFailed wraps any archive build failure. No record exists
	// for a failed build.
	ErrBuildFailed = errors.New("archive build failed")

	// ErrInsufficientSpace is the ENOSPC case of ErrBuildFailed.
	ErrInsufficientSpace = errors.New("insufficient space")
)

// Build archives staged data into <root>/<name>_<timestamp>.tar.gz with a
// .sha256 sidecar, returning the Complete backup record. On any failure
// the partial file and sidecar are removed and no record is returned.
// The caller must hold the exclusive catalog lock for logicalName.
func Build(
	ctx context.Context,
	staged *source.Staged,
	logicalName string,
	kind catalog.Kind,
	root string,
	log logger.Logger,
) (*catalog.BackupRecord, error) {
	createdAt := time.Now().UTC().Truncate(time.Second)
	finalPath := filepath.Join(root, catalog.ArtifactName(logicalName, createdAt))
	partialPath := finalPath + catalog.PartialSuffix
	sidecarPath := finalPath + catalog.SidecarSuffix

	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("%w: create root %q: %v", ErrBuildFailed, root, err)
	}

	log.Info("build started", "name", logicalName, "artifact", filepath.Base(finalPath))

	if err := writePartial(ctx, staged, partialPath); err != nil {
		os.Remove(partialPath)
		if isNoSpace(err) {
			return nil, fmt.Errorf("%w: %w: %v", ErrBuildFailed, ErrInsufficientSpace, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrBuildFailed, err)
	}

	digest, err := catalog.FileSHA256(partialPath)
	if err != nil {
		os.Remove(partialPath)
		return nil, fmt.Errorf("%w: %v", ErrBuildFailed, err)
	}
	if err := catalog.WriteSidecar(finalPath, digest); err != nil {
		os.Remove(partialPath)
		os.Remove(sidecarPath)
		return nil, fmt.Errorf("%w: %v", ErrBuildFailed, err)
	}
	if err := os.Rename(partialPath, finalPath); err != nil {
		os.Remove(partialPath)
		os.Remove(sidecarPath)
		return nil, fmt.Errorf("%w: publish artifact: %v", ErrBuildFailed, err)
	}

	info, err := os.Stat(finalPath)
	if err != nil {
		return nil, fmt.Errorf("%w: stat artifact: %v", ErrBuildFailed, err)
	}

	log.Info("build completed",
		"name", logicalName,
		"artifact", filepath.Base(finalPath),
		"size_bytes", info.Size(),
		"sha256", digest,
	)

	return &catalog.BackupRecord{
		ID:           catalog.RecordID(logicalName, createdAt),
		LogicalName:  logicalName,
		Kind:         kind,
		CreatedAt:    createdAt,
		ArtifactPath: finalPath,
		Checksum:     digest,
		SizeBytes:    info.Size(),
		Status:       catalog.StatusComplete,
	}, nil
}

// writePartial streams the staged data, gzip-compressed, into partialPath
// and fsyncs it.
func writePartial(ctx context.Context, staged *source.Staged, partialPath string) error {
	// O_EXCL backstops the catalog lock: two builders can never
	// interleave writes into the same partial file.
	f, err := os.OpenFile(partialPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return fmt.Errorf("create partial: %w", err)
	}
	defer f.Close()

	gz := gzip.NewWriter(f)

	switch {
	case staged.TarStream != nil:
		if err := copyContext(ctx, gz, staged.TarStream); err != nil {
			return fmt.Errorf("stream source: %w", err)
		}
		if fin, ok := staged.TarStream.(source.Finisher); ok {
			if err := fin.Finish(); err != nil {
				return err
			}
		}
	case staged.Root != "":
		if err := tarTree(ctx, gz, staged.Root); err != nil {
			return err
		}
	default:
		return fmt.Errorf("staged data has neither tree nor stream")
	}

	if err := gz.Close(); err != nil {
		return fmt.Errorf("finish gzip: %w", err)
	}
	if err := f.Sync(); err != nil {
		return fmt.Errorf("sync partial: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close partial: %w", err)
	}
	return nil
}

// tarTree writes the tree rooted at root into w, preserving relative
// paths, permissions and modification times.
func tarTree(ctx context.Context, w io.Writer, root string) error {
	tw := tar.NewWriter(w)

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if cerr := ctx.Err(); cerr != nil {
			return cerr
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return err
		}

		var link string
		if info.Mode()&fs.ModeSymlink != 0 {
			if link, err = os.Readlink(path); err != nil {
				return err
			}
		}

		hdr, err := tar.FileInfoHeader(info, link)
		if err != nil {
			return err
		}
		hdr.Name = filepath.ToSlash(rel)
		if info.IsDir() {
			hdr.Name += "/"
		}
		if err := tw.WriteHeader(hdr); err != nil {
			return err
		}

		if !info.Mode().IsRegular() {
			return nil
		}
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()
		return copyContext(ctx, tw, f)
	})
	if err != nil {
		return err
	}
	return tw.Close()
}

// copyContext is io.Copy with a cancellation check per chunk.
func copyContext(ctx context.Context, dst io.Writer, src io.Reader) error {
	buf := make([]byte, 128*1024)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		n, rerr := src.Read(buf)
		if n > 0 {
			if _, werr := dst.Write(buf[:n]); werr != nil {
				return werr
			}
		}
		if rerr == io.EOF {
			return nil
		}
		if rerr != nil {
			return rerr
		}
	}
}

func isNoSpace(err error) bool {
	return errors.Is(err, syscall.ENOSPC)
}
