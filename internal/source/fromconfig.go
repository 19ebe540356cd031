package source

import (
	"context"
	"fmt"

	"github.com/kebairia/backman/internal/config"
	"github.com/kebairia/backman/internal/logger"
)

// Selector filters which source kinds a run operates on; mirrors the CLI
// --type flag.
type Selector string

const (
	SelectAll      Selector = "all"
	SelectFiles    Selector = "files"
	SelectDatabase Selector = "database"
	SelectDocker   Selector = "docker"
)

// ParseSelector validates a --type value.
func ParseSelector(s string) (Selector, error) {
	switch Selector(s) {
	case SelectAll, SelectFiles, SelectDatabase, SelectDocker:
		return Selector(s), nil
	}
	return "", fmt.Errorf("unknown source type %q (want all, files, database or docker)", s)
}

// Secrets resolves database passwords stored in Vault. Nil is allowed when
// every source carries inline credentials.
type Secrets interface {
	DBPassword(ctx context.Context, path string) (string, error)
}

// FromConfig builds the collector list for a run, filtered by selector.
// Vault-backed passwords are resolved up front so a secrets outage fails
// the run before any artifact is touched.
func FromConfig(
	ctx context.Context,
	cfg config.Config,
	selector Selector,
	secrets Secrets,
	log logger.Logger,
) ([]Source, error) {
	var sources []Source

	if selector == SelectAll || selector == SelectFiles {
		for _, fs := range cfg.Sources.Files {
			sources = append(sources, NewFiles(fs.Name, fs.Path))
		}
	}

	if selector == SelectAll || selector == SelectDatabase {
		for _, src := range cfg.Sources.MySQL {
			password, err := resolvePassword(ctx, src, secrets)
			if err != nil {
				return nil, fmt.Errorf("mysql source %q: %w", src.Name, err)
			}
			sources = append(sources, NewMySQLDump(src, password, log))
		}
		for _, src := range cfg.Sources.Postgres {
			password, err := resolvePassword(ctx, src, secrets)
			if err != nil {
				return nil, fmt.Errorf("postgres source %q: %w", src.Name, err)
			}
			sources = append(sources, NewPostgresDump(src, password, log))
		}
	}

	if selector == SelectAll || selector == SelectDocker {
		for _, vs := range cfg.Sources.DockerVolumes {
			sources = append(sources, NewDockerVolume(vs.Name, vs.Volume, log))
		}
	}

	return sources, nil
}

func resolvePassword(ctx context.Context, src config.DatabaseSource, secrets Secrets) (string, error) {
	if src.VaultPath == "" {
		return src.Password, nil
	}
	if secrets == nil {
		return "", fmt.Errorf("vault_path set but no vault client configured")
	}
	password, err := secrets.DBPassword(ctx, src.VaultPath)
	if err != nil {
		return "", fmt.Errorf("resolve password: %w", err)
	}
	return password, nil
}
