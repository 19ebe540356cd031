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

const mysqldumpBin = "mysqldump"

// MySQLDump collects a MySQL database via mysqldump with a consistent
// single-transaction snapshot.
type MySQLDump struct {
	name     string
	host     string
	port     string
	database string
	username string
	password string
	log      logger.Logger
}

// NewMySQLDump builds a collector from the source config; password must
// already be resolved (inline or from Vault).
func NewMySQLDump(src config.DatabaseSource, password string, log logger.Logger) *MySQLDump {
	m := &MySQLDump{
		name:     src.Name,
		host:     src.Host,
		port:     src.Port,
		database: src.Database,
		username: src.Username,
		password: password,
		log:      log,
	}
	if m.host == "" {
		m.host = "localhost"
	}
	if m.port == "" {
		m.port = "3306"
	}
	return m
}

func (m *MySQLDump) Name() string       { return m.name }
func (m *MySQLDump) Kind() catalog.Kind { return catalog.KindMySQLDump }

// Collect runs mysqldump into a staging directory.
func (m *MySQLDump) Collect(ctx context.Context) (*Staged, error) {
	if _, err := exec.LookPath(mysqldumpBin); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrToolMissing, mysqldumpBin)
	}

	stageDir, err := os.MkdirTemp("", "backman-mysql-*")
	if err != nil {
		return nil, fmt.Errorf("create staging dir: %w", err)
	}
	cleanup := func() error { return os.RemoveAll(stageDir) }

	dumpPath := filepath.Join(stageDir, m.database+".sql")
	out, err := os.Create(dumpPath)
	if err != nil {
		cleanup()
		return nil, fmt.Errorf("create dump file: %w", err)
	}
	defer out.Close()

	args := []string{
		"--single-transaction",
		"--routines",
		"--triggers",
		"-h", m.host,
		"-P", m.port,
		"-u", m.username,
		m.database,
	}
	cmd := exec.CommandContext(ctx, mysqldumpBin, args...)
	// MYSQL_PWD keeps the password off the process list.
	cmd.Env = append(os.Environ(), "MYSQL_PWD="+m.password)
	cmd.Stdout = out
	cmd.Stderr = os.Stderr

	m.log.Info("dump started",
		"source", m.name,
		"engine", "mysql",
		"database", m.database,
	)

	start := time.Now()
	if err := cmd.Run(); err != nil {
		cleanup()
		return nil, fmt.Errorf("mysqldump %q: %w", m.database, err)
	}
	if err := out.Sync(); err != nil {
		cleanup()
		return nil, fmt.Errorf("sync dump file: %w", err)
	}

	m.log.Info("dump completed",
		"source", m.name,
		"engine", "mysql",
		"duration", time.Since(start).String(),
	)
	return &Staged{Root: stageDir, cleanup: cleanup}, nil
}
