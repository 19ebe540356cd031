package operations

import (
	"context"

	"github.com/kebairia/backman/internal/catalog"
)

// List rebuilds the catalog from the backup root's directory listing,
// including corrupt entries that need operator attention.
func (o *Operator) List(_ context.Context) (*catalog.Catalog, error) {
	return catalog.Scan(o.cfg.Backup.Root)
}
