// Package operations wires collectors, the archive builder, destination
// fan-out and retention into the run-to-completion entry points the CLI
// calls.
package operations

import (
	"context"
	"fmt"

	"github.com/kebairia/backman/internal/config"
	"github.com/kebairia/backman/internal/fanout"
	"github.com/kebairia/backman/internal/logger"
	"github.com/kebairia/backman/internal/notify"
	"github.com/kebairia/backman/internal/source"
	"github.com/kebairia/backman/internal/vault"
)

// JobStatus is the aggregate outcome of a job or run. Ordering for
// aggregation is Failed > PartialSuccess > Success.
type JobStatus string

const (
	StatusSuccess        JobStatus = "success"
	StatusPartialSuccess JobStatus = "partial-success"
	StatusFailed         JobStatus = "failed"
)

func worse(a, b JobStatus) JobStatus {
	rank := map[JobStatus]int{StatusSuccess: 0, StatusPartialSuccess: 1, StatusFailed: 2}
	if rank[b] > rank[a] {
		return b
	}
	return a
}

// ExitCode maps a run status onto the process exit code: 0 full success,
// 1 partial success, 2 failure.
func ExitCode(s JobStatus) int {
	switch s {
	case StatusSuccess:
		return 0
	case StatusPartialSuccess:
		return 1
	default:
		return 2
	}
}

// Operator holds the immutable run configuration and collaborators.
type Operator struct {
	cfg      config.Config
	log      logger.Logger
	notifier notify.Notifier
	vaultCli *vault.Client
}

// Option overrides an Operator collaborator.
type Option func(*Operator)

// WithNotifier replaces the default log-backed notifier.
func WithNotifier(n notify.Notifier) Option {
	return func(o *Operator) { o.notifier = n }
}

// New loads the configuration and builds the operator. The Vault client is
// only created when an address is configured.
func New(ctx context.Context, configPath string, opts ...Option) (*Operator, error) {
	var cfg config.Config
	if err := cfg.Load(configPath); err != nil {
		return nil, err
	}

	log := logger.Global()
	op := &Operator{
		cfg:      cfg,
		log:      log,
		notifier: notify.NewLogNotifier(log),
	}

	if cfg.Vault.Address != "" {
		cli, err := vault.NewClient(ctx,
			vault.WithAddress(cfg.Vault.Address),
			vault.WithAppRole(cfg.Vault.RoleID, cfg.Vault.RoleName),
		)
		if err != nil {
			return nil, fmt.Errorf("vault client init: %w", err)
		}
		op.vaultCli = cli
	}

	for _, opt := range opts {
		opt(op)
	}
	return op, nil
}

// Config exposes the loaded configuration (read-only by convention).
func (o *Operator) Config() config.Config { return o.cfg }

// dbSecrets adapts the optional Vault client for source construction;
// a typed nil pointer must not leak into the interface.
func (o *Operator) dbSecrets() source.Secrets {
	if o.vaultCli == nil {
		return nil
	}
	return o.vaultCli
}

func (o *Operator) s3Secrets() fanout.Secrets {
	if o.vaultCli == nil {
		return nil
	}
	return o.vaultCli
}

func (o *Operator) notify(ctx context.Context, title, message string, sev notify.Severity) {
	if err := o.notifier.Notify(ctx, notify.Event{
		Title:    title,
		Message:  message,
		Severity: sev,
	}); err != nil {
		o.log.Warn("notification delivery failed", "title", title, "error", err.Error())
	}
}
