// Package catalog is the authoritative record of backup artifacts. The
// catalog has no index file: the directory listing of artifacts plus their
// checksum sidecars is always sufficient to rebuild it.
package catalog

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// CorruptEntry is a file the scan could not pair or parse. Corrupt entries
// are surfaced, never silently trusted or cleaned up.
type CorruptEntry struct {
	Path   string
	Reason string
}

// Catalog is the scanned state of one backup root.
type Catalog struct {
	Root    string
	Records []BackupRecord
	Corrupt []CorruptEntry
}

// Scan rebuilds the catalog from the directory listing of root. Artifacts
// and sidecars are paired by name; an artifact without a readable sidecar,
// a sidecar without its artifact, a stale .partial file, or an unparsable
// name all land in Corrupt.
func Scan(root string) (*Catalog, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		if os.IsNotExist(err) {
			return &Catalog{Root: root}, nil
		}
		return nil, fmt.Errorf("scan %q: %w", root, err)
	}

	cat := &Catalog{Root: root}
	artifacts := make(map[string]bool)
	sidecars := make(map[string]bool)

	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		switch {
		case strings.HasSuffix(name, PartialSuffix):
			cat.Corrupt = append(cat.Corrupt, CorruptEntry{
				Path:   filepath.Join(root, name),
				Reason: "stale partial artifact",
			})
		case strings.HasSuffix(name, SidecarSuffix):
			sidecars[strings.TrimSuffix(name, SidecarSuffix)] = true
		case strings.HasSuffix(name, ArtifactSuffix):
			artifacts[name] = true
		}
	}

	for name := range artifacts {
		path := filepath.Join(root, name)
		if !sidecars[name] {
			cat.Corrupt = append(cat.Corrupt, CorruptEntry{
				Path:   path,
				Reason: "missing checksum sidecar",
			})
			continue
		}
		logical, created, err := ParseArtifactName(name)
		if err != nil {
			cat.Corrupt = append(cat.Corrupt, CorruptEntry{Path: path, Reason: err.Error()})
			continue
		}
		digest, err := ReadSidecar(path)
		if err != nil {
			cat.Corrupt = append(cat.Corrupt, CorruptEntry{
				Path:   path,
				Reason: fmt.Sprintf("unreadable sidecar: %v", err),
			})
			continue
		}
		info, err := os.Stat(path)
		if err != nil {
			cat.Corrupt = append(cat.Corrupt, CorruptEntry{Path: path, Reason: err.Error()})
			continue
		}
		cat.Records = append(cat.Records, BackupRecord{
			ID:           RecordID(logical, created),
			LogicalName:  logical,
			CreatedAt:    created,
			ArtifactPath: path,
			Checksum:     digest,
			SizeBytes:    info.Size(),
			Status:       StatusComplete,
		})
	}

	for name := range sidecars {
		if !artifacts[name] {
			cat.Corrupt = append(cat.Corrupt, CorruptEntry{
				Path:   filepath.Join(root, name+SidecarSuffix),
				Reason: "sidecar without artifact",
			})
		}
	}

	sort.Slice(cat.Records, func(i, j int) bool {
		return cat.Records[i].CreatedAt.After(cat.Records[j].CreatedAt)
	})
	sort.Slice(cat.Corrupt, func(i, j int) bool {
		return cat.Corrupt[i].Path < cat.Corrupt[j].Path
	})
	return cat, nil
}

// ForName returns the Complete records of one logical source, newest first.
func (c *Catalog) ForName(logicalName string) []BackupRecord {
	var out []BackupRecord
	for _, r := range c.Records {
		if r.LogicalName == logicalName && r.Status == StatusComplete {
			out = append(out, r)
		}
	}
	return out
}

// Names returns all logical names present in the catalog, sorted.
func (c *Catalog) Names() []string {
	seen := make(map[string]bool)
	for _, r := range c.Records {
		seen[r.LogicalName] = true
	}
	names := make([]string, 0, len(seen))
	for n := range seen {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// FindByArtifact resolves a record by artifact path or bare file name.
func (c *Catalog) FindByArtifact(pathOrName string) (BackupRecord, bool) {
	base := filepath.Base(pathOrName)
	for _, r := range c.Records {
		if r.ArtifactPath == pathOrName || filepath.Base(r.ArtifactPath) == base {
			return r, true
		}
	}
	return BackupRecord{}, false
}
