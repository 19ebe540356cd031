package source

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/kebairia/backman/internal/catalog"
	"github.com/kebairia/backman/internal/config"
	"github.com/kebairia/backman/internal/logger"
)

const pgdumpBin = "pg_dump"

// PostgresDump collects a PostgreSQL database via pg_dump. pg_dump takes a
// single consistent snapshot of the database by default, which is the
// consistency level this subsystem promises.
type PostgresDump struct {
	name     string
	host     string
	port     string
	database string
	username string
	password string
	log      logger.Logger
}

// NewPostgresDump builds a collector from the source config; password must
// already be resolved (inline or from Vault).
func NewPostgresDump(src config.DatabaseSource, password string, log logger.Logger) *PostgresDump {
	p := &PostgresDump{
		name:     src.Name,
		host:     src.Host,
		port:     src.Port,
		database: src.Database,
		username: src.Username,
		password: password,
		log:      log,
	}
	if p.host == "" {
		p.host = "localhost"
	}
	if p.port == "" {
		p.port = "5432"
	}
	return p
}

func (p *PostgresDump) Name() string       { return p.name }
func (p *PostgresDump) Kind() catalog.Kind { return catalog.KindPostgresDump }

// Collect runs pg_dump into a staging directory.
func (p *PostgresDump) Collect(ctx context.Context) (*Staged, error) {
	if _, err := exec.LookPath(pgdumpBin); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrToolMissing, pgdumpBin)
	}

	stageDir, err := os.MkdirTemp("", "backman-postgres-*")
	if err != nil {
		return nil, fmt.Errorf("create staging dir: %w", err)
	}
	cleanup := func() error { return os.RemoveAll(stageDir) }

	dumpPath := filepath.Join(stageDir, p.database+".sql")
	args := []string{
		"-h", p.host,
		"-p", p.port,
		"-U", p.username,
		"-d", p.database,
		"-F", "plain",
		"-f", dumpPath,
	}
	cmd := exec.CommandContext(ctx, pgdumpBin, args...)
	// PGPASSWORD for non-interactive auth
	cmd.Env = append(os.Environ(), "PGPASSWORD="+p.password)
	cmd.Stderr = os.Stderr

	p.log.Info("dump started",
		"source", p.name,
		"engine", "postgres",
		"database", p.database,
	)

	start := time.Now()
	if err := cmd.Run(); err != nil {
		cleanup()
		return nil, fmt.Errorf("pg_dump %q: %w", p.database, err)
	}

	p.log.Info("dump completed",
		"source", p.name,
		"engine", "postgres",
		"duration", time.Since(start).String(),
	)
	return &Staged{Root: stageDir, cleanup: cleanup}, nil
}
