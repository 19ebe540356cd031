package source

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/kebairia/backman/internal/catalog"
	"github.com/kebairia/backman/internal/config"
	"github.com/kebairia/backman/internal/logger"
)

func TestFiles_Collect(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "a.txt"), []byte("a"), 0o644); err != nil {
		t.Fatal(err)
	}

	f := NewFiles("home", dir)
	if f.Kind() != catalog.KindFiles {
		t.Errorf("kind = %q", f.Kind())
	}

	staged, err := f.Collect(context.Background())
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	defer staged.Close()
	if staged.Root != dir {
		t.Errorf("root = %q, want %q", staged.Root, dir)
	}
}

func TestFiles_MissingPath(t *testing.T) {
	f := NewFiles("home", filepath.Join(t.TempDir(), "gone"))
	if _, err := f.Collect(context.Background()); !errors.Is(err, ErrSourceNotFound) {
		t.Fatalf("Collect error = %v, want ErrSourceNotFound", err)
	}
}

func TestFiles_FileInsteadOfDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "file.txt")
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	f := NewFiles("home", path)
	if _, err := f.Collect(context.Background()); !errors.Is(err, ErrSourceNotFound) {
		t.Fatalf("Collect error = %v, want ErrSourceNotFound", err)
	}
}

func TestParseSelector(t *testing.T) {
	for _, valid := range []string{"all", "files", "database", "docker"} {
		if _, err := ParseSelector(valid); err != nil {
			t.Errorf("ParseSelector(%q): %v", valid, err)
		}
	}
	if _, err := ParseSelector("tape"); err == nil {
		t.Error("ParseSelector(tape) succeeded, want error")
	}
}

func TestFromConfig_SelectorFiltersKinds(t *testing.T) {
	cfg := config.Config{
		Sources: config.SourcesConfig{
			Files:         []config.FileSource{{Name: "home", Path: "/home"}},
			MySQL:         []config.DatabaseSource{{Name: "mysql_appdb", Database: "appdb"}},
			Postgres:      []config.DatabaseSource{{Name: "pg_appdb", Database: "appdb"}},
			DockerVolumes: []config.VolumeSource{{Name: "docker_vol_grafana", Volume: "grafana"}},
		},
	}
	log := logger.Nop()

	cases := []struct {
		selector Selector
		want     int
	}{
		{SelectAll, 4},
		{SelectFiles, 1},
		{SelectDatabase, 2},
		{SelectDocker, 1},
	}
	for _, tc := range cases {
		got, err := FromConfig(context.Background(), cfg, tc.selector, nil, log)
		if err != nil {
			t.Fatalf("FromConfig(%s): %v", tc.selector, err)
		}
		if len(got) != tc.want {
			t.Errorf("FromConfig(%s) = %d sources, want %d", tc.selector, len(got), tc.want)
		}
	}
}

func TestFromConfig_VaultPathWithoutClient(t *testing.T) {
	cfg := config.Config{
		Sources: config.SourcesConfig{
			MySQL: []config.DatabaseSource{
				{Name: "mysql_appdb", Database: "appdb", VaultPath: "kv/data/mysql"},
			},
		},
	}
	if _, err := FromConfig(context.Background(), cfg, SelectDatabase, nil, logger.Nop()); err == nil {
		t.Fatal("expected error for vault_path without vault client")
	}
}
