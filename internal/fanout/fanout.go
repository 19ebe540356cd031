package fanout

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/kebairia/backman/internal/catalog"
	"github.com/kebairia/backman/internal/logger"
)

// Options tunes the sync stage. Zero values are filled with the defaults
// (4 workers, 300s per-destination timeout, 3 retries, 2s backoff base).
type Options struct {
	Workers            int
	DestinationTimeout time.Duration
	MaxRetries         uint64
	RetryBase          time.Duration
}

func (o Options) withDefaults() Options {
	if o.Workers < 1 {
		o.Workers = 4
	}
	if o.DestinationTimeout <= 0 {
		o.DestinationTimeout = 300 * time.Second
	}
	if o.MaxRetries == 0 {
		o.MaxRetries = 3
	}
	if o.RetryBase <= 0 {
		o.RetryBase = 2 * time.Second
	}
	return o
}

// Result is the resolved outcome for one destination.
type Result struct {
	Ref      catalog.DestinationRef
	Status   catalog.DestStatus
	Attempts int
	Err      error
}

// Sync fans the record's artifact out to all destinations and appends one
// resolved DestinationState per destination to rec.Destinations. Local
// destinations go first, sequentially; they are the canonical retry source,
// so a local failure marks the remaining destinations failed without an
// attempt. Remote and S3 destinations then run through a bounded worker
// pool. Every entry resolves to Synced or Failed, even on abort.
func Sync(
	ctx context.Context,
	rec *catalog.BackupRecord,
	dests []Destination,
	opts Options,
	log logger.Logger,
) []Result {
	opts = opts.withDefaults()

	base := len(rec.Destinations)
	for _, d := range dests {
		rec.Destinations = append(rec.Destinations, catalog.DestinationState{
			Ref:    d.Ref(),
			Status: catalog.DestPending,
		})
	}

	results := make([]Result, len(dests))
	resolve := func(i int, res Result) {
		results[i] = res
		state := &rec.Destinations[base+i]
		state.Status = res.Status
		state.Attempts = res.Attempts
		if res.Err != nil {
			state.Error = res.Err.Error()
		}
	}

	localOK := true
	var deferred []int
	for i, d := range dests {
		if d.Ref().Kind != catalog.DestLocal {
			deferred = append(deferred, i)
			continue
		}
		res := syncOne(ctx, d, rec.ArtifactPath, opts, log)
		resolve(i, res)
		if res.Status != catalog.DestSynced {
			localOK = false
		}
	}

	if !localOK {
		for _, i := range deferred {
			resolve(i, Result{
				Ref:    dests[i].Ref(),
				Status: catalog.DestFailed,
				Err:    fmt.Errorf("skipped: local copy failed"),
			})
		}
		return results
	}

	jobs := make(chan int)
	var wg sync.WaitGroup
	workers := opts.Workers
	if workers > len(deferred) {
		workers = len(deferred)
	}
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				resolve(i, syncOne(ctx, dests[i], rec.ArtifactPath, opts, log))
			}
		}()
	}
	for _, i := range deferred {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	return results
}

// syncOne stores the artifact on one destination with per-attempt timeout
// and exponential backoff, resolving to Synced or Failed.
func syncOne(
	ctx context.Context,
	dest Destination,
	artifactPath string,
	opts Options,
	log logger.Logger,
) Result {
	ref := dest.Ref()
	attempts := 0

	operation := func() error {
		attempts++
		attemptCtx, cancel := context.WithTimeout(ctx, opts.DestinationTimeout)
		defer cancel()
		return dest.Store(attemptCtx, artifactPath)
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = opts.RetryBase

	err := backoff.Retry(operation,
		backoff.WithContext(backoff.WithMaxRetries(bo, opts.MaxRetries), ctx))
	if err != nil {
		log.Warn("destination sync failed",
			"destination", ref.String(),
			"attempts", attempts,
			"error", err.Error(),
		)
		return Result{Ref: ref, Status: catalog.DestFailed, Attempts: attempts, Err: err}
	}

	log.Info("destination synced",
		"destination", ref.String(),
		"attempts", attempts,
	)
	return Result{Ref: ref, Status: catalog.DestSynced, Attempts: attempts}
}

// AllSynced reports whether every destination resolved to Synced.
func AllSynced(results []Result) bool {
	for _, r := range results {
		if r.Status != catalog.DestSynced {
			return false
		}
	}
	return true
}
