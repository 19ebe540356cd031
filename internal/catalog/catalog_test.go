package catalog

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestArtifactNameRoundTrip(t *testing.T) {
	created := time.Date(2026, 8, 25, 14, 30, 5, 0, time.UTC)

	for _, name := range []string{"home", "mysql_appdb", "docker_vol_grafana"} {
		base := ArtifactName(name, created)
		gotName, gotTime, err := ParseArtifactName(base)
		if err != nil {
			t.Fatalf("ParseArtifactName(%q): %v", base, err)
		}
		if gotName != name {
			t.Errorf("logical name = %q, want %q", gotName, name)
		}
		if !gotTime.Equal(created) {
			t.Errorf("created = %v, want %v", gotTime, created)
		}
	}
}

func TestParseArtifactName_Rejects(t *testing.T) {
	for _, base := range []string{
		"noext",
		"nosuffix.tar",
		"badtime_2026_9999.tar.gz",
		"underscoreless.tar.gz",
	} {
		if _, _, err := ParseArtifactName(base); err == nil {
			t.Errorf("ParseArtifactName(%q) succeeded, want error", base)
		}
	}
}

func TestRecordID(t *testing.T) {
	created := time.Date(2026, 8, 25, 14, 30, 5, 0, time.UTC)
	if got := RecordID("home", created); got != "home@20260825_143005" {
		t.Errorf("RecordID = %q", got)
	}
}

func TestSidecarRoundTrip(t *testing.T) {
	dir := t.TempDir()
	artifact := filepath.Join(dir, "home_20260825_143005.tar.gz")
	if err := os.WriteFile(artifact, []byte("payload"), 0o644); err != nil {
		t.Fatal(err)
	}

	digest, err := FileSHA256(artifact)
	if err != nil {
		t.Fatalf("FileSHA256: %v", err)
	}
	if err := WriteSidecar(artifact, digest); err != nil {
		t.Fatalf("WriteSidecar: %v", err)
	}
	got, err := ReadSidecar(artifact)
	if err != nil {
		t.Fatalf("ReadSidecar: %v", err)
	}
	if got != digest {
		t.Errorf("sidecar digest = %q, want %q", got, digest)
	}
}

func writeArtifact(t *testing.T, root, logical string, created time.Time) string {
	t.Helper()
	path := filepath.Join(root, ArtifactName(logical, created))
	if err := os.WriteFile(path, []byte(logical+created.String()), 0o644); err != nil {
		t.Fatal(err)
	}
	digest, err := FileSHA256(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := WriteSidecar(path, digest); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestScan_RebuildsFromDirectory(t *testing.T) {
	root := t.TempDir()
	base := time.Date(2026, 8, 20, 3, 0, 0, 0, time.UTC)
	writeArtifact(t, root, "home", base)
	writeArtifact(t, root, "home", base.Add(24*time.Hour))
	writeArtifact(t, root, "mysql_appdb", base)

	cat, err := Scan(root)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(cat.Records) != 3 {
		t.Fatalf("records = %d, want 3", len(cat.Records))
	}
	if len(cat.Corrupt) != 0 {
		t.Fatalf("corrupt = %+v, want none", cat.Corrupt)
	}

	home := cat.ForName("home")
	if len(home) != 2 {
		t.Fatalf("home records = %d, want 2", len(home))
	}
	// newest first
	if !home[0].CreatedAt.After(home[1].CreatedAt) {
		t.Errorf("records not sorted newest first: %v, %v", home[0].CreatedAt, home[1].CreatedAt)
	}

	names := cat.Names()
	if len(names) != 2 || names[0] != "home" || names[1] != "mysql_appdb" {
		t.Errorf("names = %v", names)
	}
}

func TestScan_FlagsCorruptEntries(t *testing.T) {
	root := t.TempDir()
	base := time.Date(2026, 8, 20, 3, 0, 0, 0, time.UTC)

	// artifact without sidecar
	orphan := filepath.Join(root, ArtifactName("orphan", base))
	if err := os.WriteFile(orphan, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	// sidecar without artifact: simulates a crash between artifact
	// deletion and sidecar deletion
	widow := filepath.Join(root, ArtifactName("widow", base)+SidecarSuffix)
	if err := os.WriteFile(widow, []byte("deadbeef  x\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	// stale partial from an interrupted build
	partial := filepath.Join(root, ArtifactName("stale", base)+PartialSuffix)
	if err := os.WriteFile(partial, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	// one healthy record
	writeArtifact(t, root, "home", base)

	cat, err := Scan(root)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(cat.Records) != 1 {
		t.Fatalf("records = %d, want 1", len(cat.Records))
	}
	if len(cat.Corrupt) != 3 {
		t.Fatalf("corrupt = %d entries (%+v), want 3", len(cat.Corrupt), cat.Corrupt)
	}
}

func TestScan_MissingRootIsEmpty(t *testing.T) {
	cat, err := Scan(filepath.Join(t.TempDir(), "nope"))
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(cat.Records) != 0 || len(cat.Corrupt) != 0 {
		t.Errorf("expected empty catalog, got %+v", cat)
	}
}

func TestLock_RejectsSecondWriter(t *testing.T) {
	root := t.TempDir()

	lock, err := Acquire(root, "home")
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	defer lock.Release()

	if _, err := Acquire(root, "home"); !errors.Is(err, ErrLocked) {
		t.Fatalf("second Acquire error = %v, want ErrLocked", err)
	}
	// a different logical name is unaffected
	other, err := Acquire(root, "mysql_appdb")
	if err != nil {
		t.Fatalf("Acquire other name: %v", err)
	}
	other.Release()
}

func TestLock_SharedReadersCoexist(t *testing.T) {
	root := t.TempDir()

	r1, err := AcquireShared(root, "home")
	if err != nil {
		t.Fatalf("AcquireShared: %v", err)
	}
	defer r1.Release()

	r2, err := AcquireShared(root, "home")
	if err != nil {
		t.Fatalf("second AcquireShared: %v", err)
	}
	defer r2.Release()

	if _, err := Acquire(root, "home"); !errors.Is(err, ErrLocked) {
		t.Fatalf("writer during readers error = %v, want ErrLocked", err)
	}
}
