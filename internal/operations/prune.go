package operations

import (
	"context"
	"fmt"

	"github.com/kebairia/backman/internal/catalog"
	"github.com/kebairia/backman/internal/notify"
	"github.com/kebairia/backman/internal/retention"
)

// Prune applies the configured GFS policy to every logical name in the
// catalog. A retention-floor violation aborts the whole run; it means the
// policy computed a plan that would under-retain and needs operator
// attention.
func (o *Operator) Prune(ctx context.Context, dryRun bool) ([]retention.Report, error) {
	cat, err := catalog.Scan(o.cfg.Backup.Root)
	if err != nil {
		return nil, err
	}

	policy := retention.Policy{
		KeepDaily:   o.cfg.Retention.KeepDaily,
		KeepWeekly:  o.cfg.Retention.KeepWeekly,
		KeepMonthly: o.cfg.Retention.KeepMonthly,
	}

	var reports []retention.Report
	deleted := 0
	for _, name := range cat.Names() {
		if err := ctx.Err(); err != nil {
			return reports, err
		}
		rep, err := retention.Prune(ctx, o.cfg.Backup.Root, name, policy, dryRun, o.log)
		if err != nil {
			o.notify(ctx, "Retention Failed",
				fmt.Sprintf("prune of %q aborted: %v", name, err), notify.SeverityError)
			return reports, err
		}
		reports = append(reports, *rep)
		deleted += rep.Deleted
	}

	if !dryRun {
		o.notify(ctx, fmt.Sprintf("Retention Pruned %d artifacts", deleted),
			fmt.Sprintf("%d logical name(s) processed", len(reports)), notify.SeverityInfo)
	}
	return reports, nil
}
