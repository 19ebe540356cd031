// Package source collects backup sources into a form the archive builder
// can consume. Each collector wraps an external tool behind the Source
// interface so the core never depends on a specific binary's argument
// syntax; a missing tool is a runtime capability failure.
package source

import (
	"context"
	"errors"
	"io"

	"github.com/kebairia/backman/internal/catalog"
)

var (
	// ErrSourceNotFound means the configured path does not exist.
	// Fatal for that source's job only.
	ErrSourceNotFound = errors.New("source not found")

	// ErrVolumeNotFound means the named docker volume does not exist.
	ErrVolumeNotFound = errors.New("docker volume not found")

	// ErrToolMissing means the external dump binary is absent. Soft
	// failure: the source is skipped with a warning, not aborted.
	ErrToolMissing = errors.New("dump tool not installed")
)

// Staged is collected source data ready for archiving. Exactly one of Root
// and TarStream is set: Root is a directory tree the builder walks itself,
// TarStream is a ready-made tar stream the builder only compresses.
type Staged struct {
	Root      string
	TarStream io.ReadCloser

	cleanup func() error
}

// Close releases any staging directory or stream behind the staged data.
func (s *Staged) Close() error {
	var err error
	if s.TarStream != nil {
		err = s.TarStream.Close()
	}
	if s.cleanup != nil {
		if cerr := s.cleanup(); err == nil {
			err = cerr
		}
	}
	return err
}

// Source is one configured backup source.
type Source interface {
	// Name is the logical name the artifact is filed under.
	Name() string
	// Kind reports the source kind for the backup record.
	Kind() catalog.Kind
	// Collect stages the source's data. The caller owns the returned
	// Staged and must Close it.
	Collect(ctx context.Context) (*Staged, error)
}
