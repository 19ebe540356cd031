package operations

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kebairia/backman/internal/archive"
	"github.com/kebairia/backman/internal/catalog"
	"github.com/kebairia/backman/internal/fanout"
	"github.com/kebairia/backman/internal/notify"
	"github.com/kebairia/backman/internal/source"
)

// Backup runs every selected source to completion: collect, build the
// artifact, then fan out to the destinations. Jobs are strictly
// sequential; only the fan-out stage inside a job is parallel. Per-source
// failures are isolated: one failed job never aborts the queue.
func (o *Operator) Backup(
	ctx context.Context,
	selector source.Selector,
	dryRun bool,
) (*RunReport, error) {
	sources, err := source.FromConfig(ctx, o.cfg, selector, o.dbSecrets(), o.log)
	if err != nil {
		return nil, err
	}
	dests, err := fanout.FromConfig(ctx, o.cfg, o.s3Secrets())
	if err != nil {
		return nil, err
	}

	run := &RunReport{StartedAt: time.Now().UTC(), Status: StatusSuccess, DryRun: dryRun}

	if dryRun {
		for _, src := range sources {
			run.Jobs = append(run.Jobs, JobReport{
				Name:   src.Name(),
				Kind:   src.Kind(),
				Status: StatusSuccess,
			})
			o.log.Info("would back up", "name", src.Name(), "kind", string(src.Kind()))
		}
		run.CompletedAt = time.Now().UTC()
		return run, nil
	}

	for _, src := range sources {
		if ctx.Err() != nil {
			break
		}
		job := o.backupOne(ctx, src, dests)
		run.Jobs = append(run.Jobs, job)
		if !job.Skipped {
			run.Status = worse(run.Status, job.Status)
		}
	}
	run.CompletedAt = time.Now().UTC()

	if err := run.Write(o.cfg.Backup.Root); err != nil {
		o.log.Warn("run report not written", "error", err.Error())
	}

	switch run.Status {
	case StatusSuccess:
		o.notify(ctx, "Backup Success",
			fmt.Sprintf("%d job(s) completed", len(run.Jobs)), notify.SeverityInfo)
	case StatusPartialSuccess:
		o.notify(ctx, "Backup PartialSuccess",
			"some destinations failed; local artifacts are intact", notify.SeverityWarning)
	default:
		o.notify(ctx, "Backup Failed",
			"at least one source produced no artifact", notify.SeverityError)
	}

	return run, nil
}

// backupOne runs a single source job under the exclusive catalog lock.
func (o *Operator) backupOne(
	ctx context.Context,
	src source.Source,
	dests []fanout.Destination,
) JobReport {
	start := time.Now()
	job := JobReport{Name: src.Name(), Kind: src.Kind(), Status: StatusSuccess}

	lock, err := catalog.Acquire(o.cfg.Backup.Root, src.Name())
	if err != nil {
		job.Status = StatusFailed
		job.Error = err.Error()
		return job
	}
	defer lock.Release()

	staged, err := src.Collect(ctx)
	if err != nil {
		if errors.Is(err, source.ErrToolMissing) {
			// Soft failure: skip with a warning, do not degrade the run.
			o.log.Warn("source skipped", "name", src.Name(), "reason", err.Error())
			job.Skipped = true
			job.Error = err.Error()
			return job
		}
		o.log.Error("collect failed", "name", src.Name(), "error", err.Error())
		job.Status = StatusFailed
		job.Error = err.Error()
		return job
	}
	defer staged.Close()

	rec, err := archive.Build(ctx, staged, src.Name(), src.Kind(), o.cfg.Backup.Root, o.log)
	if err != nil {
		o.log.Error("build failed", "name", src.Name(), "error", err.Error())
		job.Status = StatusFailed
		job.Error = err.Error()
		return job
	}
	job.ArtifactPath = rec.ArtifactPath
	job.SizeBytes = rec.SizeBytes

	results := fanout.Sync(ctx, rec, dests, fanout.Options{
		Workers:            o.cfg.Fanout.Workers,
		DestinationTimeout: o.cfg.Fanout.DestinationTimeout,
		MaxRetries:         o.cfg.Fanout.MaxRetries,
		RetryBase:          o.cfg.Fanout.RetryBase,
	}, o.log)
	job.Destinations = rec.Destinations
	if !fanout.AllSynced(results) {
		job.Status = StatusPartialSuccess
	}

	job.Duration = time.Since(start)
	return job
}
