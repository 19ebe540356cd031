package retention

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/kebairia/backman/internal/catalog"
	"github.com/kebairia/backman/internal/logger"
)

// ErrRetentionViolation guards the retention floor: a prune that would
// retain fewer records than the policy promises aborts entirely. Should
// not occur under a correct policy; it means operator attention.
var ErrRetentionViolation = errors.New("retention policy violation")

// Prune plans and, unless dryRun, executes GFS pruning for one logical
// name. It holds the exclusive catalog lock for the duration. Deletion
// proceeds unit-at-a-time (artifact, then sidecar); cancellation is only
// honored between units, so a unit is never half-skipped — and a crash
// inside a unit leaves a sidecar-without-artifact that the next catalog
// scan flags as corrupt rather than trusts.
func Prune(
	ctx context.Context,
	root string,
	logicalName string,
	policy Policy,
	dryRun bool,
	log logger.Logger,
) (*Report, error) {
	lock, err := catalog.Acquire(root, logicalName)
	if err != nil {
		return nil, err
	}
	defer lock.Release()

	cat, err := catalog.Scan(root)
	if err != nil {
		return nil, err
	}
	records := cat.ForName(logicalName)

	report := Plan(logicalName, records, policy)
	report.DryRun = dryRun

	// Floor check: never retain fewer records than the daily tier
	// promises (bounded by what exists).
	floor := int(policy.KeepDaily)
	if len(records) < floor {
		floor = len(records)
	}
	if len(report.Keep) < floor {
		return nil, fmt.Errorf("%w: plan retains %d of %d records, floor is %d",
			ErrRetentionViolation, len(report.Keep), len(records), floor)
	}

	if dryRun {
		log.Info("prune dry-run",
			"name", logicalName,
			"keep", len(report.Keep),
			"delete", len(report.Delete),
		)
		return &report, nil
	}

	for _, rec := range report.Delete {
		if err := ctx.Err(); err != nil {
			return &report, err
		}
		if err := deleteUnit(rec); err != nil {
			return &report, fmt.Errorf("delete %s: %w", rec.ID, err)
		}
		report.Deleted++
		log.Info("pruned", "id", rec.ID, "artifact", rec.ArtifactPath)
	}

	return &report, nil
}

// deleteUnit removes one record's artifact and sidecar. The artifact goes
// first: an interrupted unit then looks like a sidecar without artifact,
// which the catalog scan reports as corrupt.
func deleteUnit(rec catalog.BackupRecord) error {
	if err := os.Remove(rec.ArtifactPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove artifact: %w", err)
	}
	if err := os.Remove(rec.SidecarPath()); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove sidecar: %w", err)
	}
	return nil
}
