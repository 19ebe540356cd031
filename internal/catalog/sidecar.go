package catalog

import (
	"bufio"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

const (
	// ArtifactSuffix is the extension of every finished artifact.
	ArtifactSuffix = ".tar.gz"

	// SidecarSuffix is appended to the artifact path to form the
	// checksum sidecar file.
	SidecarSuffix = ".sha256"

	// PartialSuffix marks an artifact still being written. Files with
	// this suffix are invisible to the catalog except as stale leftovers.
	PartialSuffix = ".partial"
)

// FileSHA256 computes the hex SHA-256 digest of the file at path.
func FileSHA256(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open %q: %w", path, err)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("hash %q: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// WriteSidecar writes the digest next to the artifact in shasum format
// ("<hex>  <basename>"), fsyncing before close so a crash cannot leave a
// Complete artifact with a torn sidecar.
func WriteSidecar(artifactPath, digest string) error {
	sidecar := artifactPath + SidecarSuffix
	f, err := os.OpenFile(sidecar, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("create sidecar %q: %w", sidecar, err)
	}
	if _, err := fmt.Fprintf(f, "%s  %s\n", digest, filepath.Base(artifactPath)); err != nil {
		f.Close()
		return fmt.Errorf("write sidecar %q: %w", sidecar, err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return fmt.Errorf("sync sidecar %q: %w", sidecar, err)
	}
	return f.Close()
}

// ReadSidecar returns the digest stored in the artifact's sidecar file.
// Both the shasum format and a bare digest are accepted.
func ReadSidecar(artifactPath string) (string, error) {
	sidecar := artifactPath + SidecarSuffix
	f, err := os.Open(sidecar)
	if err != nil {
		return "", fmt.Errorf("open sidecar %q: %w", sidecar, err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	if !scanner.Scan() {
		return "", fmt.Errorf("sidecar %q: empty", sidecar)
	}
	digest, _, _ := strings.Cut(strings.TrimSpace(scanner.Text()), " ")
	if len(digest) != sha256.Size*2 {
		return "", fmt.Errorf("sidecar %q: malformed digest", sidecar)
	}
	return strings.ToLower(digest), nil
}
