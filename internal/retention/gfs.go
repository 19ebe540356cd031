// Package retention classifies and prunes historical backups under a
// grandfather-father-son policy: fine-grained daily buckets for recent
// artifacts, coarser weekly and monthly buckets for older ones.
package retention

import (
	"fmt"
	"sort"
	"time"

	"github.com/kebairia/backman/internal/catalog"
)

// Policy is the immutable GFS configuration.
type Policy struct {
	KeepDaily   uint
	KeepWeekly  uint
	KeepMonthly uint
}

// Report is the outcome of planning (and, unless dry-run, executing) a
// prune for one logical name.
type Report struct {
	LogicalName string
	Keep        []catalog.BackupRecord
	Delete      []catalog.BackupRecord
	Deleted     int
	DryRun      bool
}

func dailyKey(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

func weeklyKey(t time.Time) string {
	year, week := t.UTC().ISOWeek()
	return fmt.Sprintf("%04d-W%02d", year, week)
}

func monthlyKey(t time.Time) string {
	return t.UTC().Format("2006-01")
}

// Plan buckets the Complete records of one logical name and splits them
// into keep and delete sets. Records must all share a logical name; they
// are re-sorted newest first internally.
func Plan(logicalName string, records []catalog.BackupRecord, policy Policy) Report {
	recs := make([]catalog.BackupRecord, len(records))
	copy(recs, records)
	sort.Slice(recs, func(i, j int) bool {
		return recs[i].CreatedAt.After(recs[j].CreatedAt)
	})

	retained := make(map[string]bool)

	// Daily tier: the most recent record of each of the latest
	// keep_daily calendar-date buckets.
	markTier(recs, retained, policy.KeepDaily, dailyKey, nil)

	// Weekly tier: ISO-week buckets not already covered by the daily
	// tier, most recent record each.
	markTier(recs, retained, policy.KeepWeekly, weeklyKey, retained)

	// Monthly tier: calendar-month buckets not covered above.
	markTier(recs, retained, policy.KeepMonthly, monthlyKey, retained)

	report := Report{LogicalName: logicalName}
	for _, r := range recs {
		if retained[r.ID] {
			report.Keep = append(report.Keep, r)
		} else {
			report.Delete = append(report.Delete, r)
		}
	}
	return report
}

// markTier retains the newest record in each of the latest keep buckets
// produced by key. Buckets already holding a record retained by an earlier
// tier are skipped, and already-retained records are never candidates.
func markTier(
	recs []catalog.BackupRecord,
	retained map[string]bool,
	keep uint,
	key func(time.Time) string,
	earlier map[string]bool,
) {
	if keep == 0 {
		return
	}

	covered := make(map[string]bool)
	if earlier != nil {
		for _, r := range recs {
			if earlier[r.ID] {
				covered[key(r.CreatedAt)] = true
			}
		}
	}

	kept := uint(0)
	seen := make(map[string]bool)
	for _, r := range recs {
		if kept >= keep {
			return
		}
		k := key(r.CreatedAt)
		if covered[k] || seen[k] {
			continue
		}
		seen[k] = true
		if retained[r.ID] {
			continue
		}
		retained[r.ID] = true
		kept++
	}
}
