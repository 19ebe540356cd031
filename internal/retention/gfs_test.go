package retention

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/kebairia/backman/internal/catalog"
	"github.com/kebairia/backman/internal/logger"
)

func record(name string, created time.Time) catalog.BackupRecord {
	return catalog.BackupRecord{
		ID:          catalog.RecordID(name, created),
		LogicalName: name,
		CreatedAt:   created,
		Status:      catalog.StatusComplete,
	}
}

func TestPlan_DailyOnlyKeepsSevenNewest(t *testing.T) {
	base := time.Date(2026, 8, 25, 2, 0, 0, 0, time.UTC)
	var records []catalog.BackupRecord
	for day := 0; day < 20; day++ {
		records = append(records, record("home", base.AddDate(0, 0, -day)))
	}

	report := Plan("home", records, Policy{KeepDaily: 7})

	if len(report.Keep) != 7 {
		t.Fatalf("keep = %d, want 7", len(report.Keep))
	}
	if len(report.Delete) != 13 {
		t.Fatalf("delete = %d, want 13", len(report.Delete))
	}
	// exactly the 7 most recent
	for i, r := range report.Keep {
		want := base.AddDate(0, 0, -i)
		if !r.CreatedAt.Equal(want) {
			t.Errorf("keep[%d] = %v, want %v", i, r.CreatedAt, want)
		}
	}
}

func TestPlan_KeepsNewestPerDailyBucket(t *testing.T) {
	// Two backups on the same calendar date: only the newer survives
	// the daily tier.
	day := time.Date(2026, 8, 25, 0, 0, 0, 0, time.UTC)
	records := []catalog.BackupRecord{
		record("home", day.Add(22*time.Hour)),
		record("home", day.Add(3*time.Hour)),
		record("home", day.AddDate(0, 0, -1).Add(12*time.Hour)),
	}

	report := Plan("home", records, Policy{KeepDaily: 2})

	if len(report.Keep) != 2 {
		t.Fatalf("keep = %d, want 2", len(report.Keep))
	}
	if !report.Keep[0].CreatedAt.Equal(day.Add(22 * time.Hour)) {
		t.Errorf("keep[0] = %v, want same-day newest", report.Keep[0].CreatedAt)
	}
	if len(report.Delete) != 1 || !report.Delete[0].CreatedAt.Equal(day.Add(3*time.Hour)) {
		t.Errorf("delete = %+v, want the older same-day record", report.Delete)
	}
}

func TestPlan_WeeklyAndMonthlyTiers(t *testing.T) {
	// One record per day over ~14 weeks (back to mid-May).
	base := time.Date(2026, 8, 25, 1, 0, 0, 0, time.UTC)
	var records []catalog.BackupRecord
	for day := 0; day < 100; day++ {
		records = append(records, record("home", base.AddDate(0, 0, -day)))
	}

	policy := Policy{KeepDaily: 7, KeepWeekly: 4, KeepMonthly: 2}
	report := Plan("home", records, policy)

	// 7 daily + 4 weekly + 2 monthly, all from distinct buckets.
	if len(report.Keep) != 13 {
		t.Fatalf("keep = %d, want 13: %v", len(report.Keep), keepDates(report))
	}
	if len(report.Keep)+len(report.Delete) != len(records) {
		t.Fatalf("keep+delete = %d, want %d", len(report.Keep)+len(report.Delete), len(records))
	}

	// The weekly picks are each the newest record of a week not covered
	// by the daily tier, so none of them falls inside the last 7 days.
	cutoff := base.AddDate(0, 0, -6)
	for _, r := range report.Keep[7:] {
		if r.CreatedAt.After(cutoff) {
			t.Errorf("coarse-tier pick %v newer than daily cutoff %v", r.CreatedAt, cutoff)
		}
	}
}

func keepDates(r Report) []string {
	var out []string
	for _, rec := range r.Keep {
		out = append(out, rec.CreatedAt.Format("2006-01-02"))
	}
	return out
}

func TestPlan_FewerRecordsThanPolicy(t *testing.T) {
	base := time.Date(2026, 8, 25, 1, 0, 0, 0, time.UTC)
	records := []catalog.BackupRecord{
		record("home", base),
		record("home", base.AddDate(0, 0, -1)),
	}

	report := Plan("home", records, Policy{KeepDaily: 7, KeepWeekly: 4})
	if len(report.Delete) != 0 {
		t.Errorf("delete = %+v, want none when under quota", report.Delete)
	}
}

func writeUnit(t *testing.T, root, name string, created time.Time) {
	t.Helper()
	path := filepath.Join(root, catalog.ArtifactName(name, created))
	if err := os.WriteFile(path, []byte(path), 0o644); err != nil {
		t.Fatal(err)
	}
	digest, err := catalog.FileSHA256(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := catalog.WriteSidecar(path, digest); err != nil {
		t.Fatal(err)
	}
}

func TestPrune_DeletesArtifactAndSidecar(t *testing.T) {
	root := t.TempDir()
	base := time.Date(2026, 8, 25, 2, 0, 0, 0, time.UTC)
	for day := 0; day < 10; day++ {
		writeUnit(t, root, "home", base.AddDate(0, 0, -day))
	}

	rep, err := Prune(context.Background(), root, "home",
		Policy{KeepDaily: 3}, false, logger.Nop())
	if err != nil {
		t.Fatalf("Prune: %v", err)
	}
	if rep.Deleted != 7 {
		t.Errorf("deleted = %d, want 7", rep.Deleted)
	}

	cat, err := catalog.Scan(root)
	if err != nil {
		t.Fatal(err)
	}
	if len(cat.Records) != 3 {
		t.Errorf("records after prune = %d, want 3", len(cat.Records))
	}
	if len(cat.Corrupt) != 0 {
		t.Errorf("corrupt after prune = %+v", cat.Corrupt)
	}
}

func TestPrune_FloorViolationAborts(t *testing.T) {
	// 10 records bunched onto 3 calendar days: the daily tier can only
	// retain 3, below the floor of min(keep_daily, total) = 7. The prune
	// must abort and delete nothing.
	root := t.TempDir()
	base := time.Date(2026, 8, 25, 2, 0, 0, 0, time.UTC)
	for i := 0; i < 10; i++ {
		writeUnit(t, root, "home", base.AddDate(0, 0, -(i%3)).Add(time.Duration(i)*time.Minute))
	}

	_, err := Prune(context.Background(), root, "home",
		Policy{KeepDaily: 7}, false, logger.Nop())
	if !errors.Is(err, ErrRetentionViolation) {
		t.Fatalf("Prune error = %v, want ErrRetentionViolation", err)
	}

	cat, err := catalog.Scan(root)
	if err != nil {
		t.Fatal(err)
	}
	if got := len(cat.ForName("home")); got != 10 {
		t.Errorf("records after aborted prune = %d, want all 10 intact", got)
	}
	if len(cat.Corrupt) != 0 {
		t.Errorf("corrupt after aborted prune = %+v", cat.Corrupt)
	}
}

func TestPrune_DryRunTouchesNothing(t *testing.T) {
	root := t.TempDir()
	base := time.Date(2026, 8, 25, 2, 0, 0, 0, time.UTC)
	for day := 0; day < 10; day++ {
		writeUnit(t, root, "home", base.AddDate(0, 0, -day))
	}
	before, err := os.ReadDir(root)
	if err != nil {
		t.Fatal(err)
	}

	first, err := Prune(context.Background(), root, "home",
		Policy{KeepDaily: 3}, true, logger.Nop())
	if err != nil {
		t.Fatalf("Prune dry-run: %v", err)
	}
	if first.Deleted != 0 {
		t.Errorf("dry-run deleted = %d", first.Deleted)
	}
	if len(first.Delete) != 7 {
		t.Errorf("dry-run delete set = %d, want 7", len(first.Delete))
	}

	after, err := os.ReadDir(root)
	if err != nil {
		t.Fatal(err)
	}
	if len(before) != len(after) {
		t.Fatalf("dry-run changed the directory: %d -> %d entries", len(before), len(after))
	}

	// Running it again yields an identical report.
	second, err := Prune(context.Background(), root, "home",
		Policy{KeepDaily: 3}, true, logger.Nop())
	if err != nil {
		t.Fatalf("second dry-run: %v", err)
	}
	if !reflect.DeepEqual(first.Delete, second.Delete) || !reflect.DeepEqual(first.Keep, second.Keep) {
		t.Errorf("dry-run not idempotent")
	}
}

func TestPrune_OtherNamesUntouched(t *testing.T) {
	root := t.TempDir()
	base := time.Date(2026, 8, 25, 2, 0, 0, 0, time.UTC)
	for day := 0; day < 5; day++ {
		writeUnit(t, root, "home", base.AddDate(0, 0, -day))
		writeUnit(t, root, "mysql_appdb", base.AddDate(0, 0, -day))
	}

	if _, err := Prune(context.Background(), root, "home",
		Policy{KeepDaily: 1}, false, logger.Nop()); err != nil {
		t.Fatalf("Prune: %v", err)
	}

	cat, err := catalog.Scan(root)
	if err != nil {
		t.Fatal(err)
	}
	if got := len(cat.ForName("mysql_appdb")); got != 5 {
		t.Errorf("mysql_appdb records = %d, want untouched 5", got)
	}
	if got := len(cat.ForName("home")); got != 1 {
		t.Errorf("home records = %d, want 1", got)
	}
}
