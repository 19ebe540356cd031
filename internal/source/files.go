package source

import (
	"context"
	"fmt"
	"os"

	"github.com/kebairia/backman/internal/catalog"
)

// Files backs up a directory tree as-is. No staging: the archive builder
// reads the tree directly.
type Files struct {
	name string
	path string
}

// NewFiles returns a collector for the tree at path, filed under name.
func NewFiles(name, path string) *Files {
	return &Files{name: name, path: path}
}

func (f *Files) Name() string       { return f.name }
func (f *Files) Kind() catalog.Kind { return catalog.KindFiles }

// Collect confirms the tree exists and hands it to the builder.
func (f *Files) Collect(ctx context.Context) (*Staged, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	info, err := os.Stat(f.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrSourceNotFound, f.path)
		}
		return nil, fmt.Errorf("stat %q: %w", f.path, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s is not a directory", ErrSourceNotFound, f.path)
	}
	return &Staged{Root: f.path}, nil
}
