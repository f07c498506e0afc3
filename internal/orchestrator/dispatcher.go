// Package orchestrator ingests webhook and admin triggers, coalesces them
// per (project_id, commit_id) key, runs the per-commit pipeline on a
// bounded worker pool, and tracks run status — grounded on the reference
// implementation's jobs.dispatcher worker-pool shape, generalized with the
// keyed-pending-slot coalescing §4.9/§5 require (the reference dispatcher
// has no notion of coalescing; every event gets its own queue slot).
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/livingdocs/pipeline/internal/core"
)

// Dispatcher implements core.JobDispatcher with at most one in-flight job
// per key plus at most one coalesced pending slot: a trigger for a key
// that already has a job running replaces whatever is in that key's
// pending slot rather than queuing a second run.
type Dispatcher struct {
	job        core.Job
	maxWorkers int
	logger     *slog.Logger

	queue chan core.Trigger

	mu       sync.Mutex
	inFlight map[string]bool
	pending  map[string]core.Trigger

	wg sync.WaitGroup
}

// NewDispatcher starts a Dispatcher with maxWorkers goroutines draining
// its internal queue. If maxWorkers is 0 or negative, it defaults to 1.
func NewDispatcher(ctx context.Context, job core.Job, maxWorkers int, logger *slog.Logger) *Dispatcher {
	if maxWorkers <= 0 {
		maxWorkers = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	d := &Dispatcher{
		job:        job,
		maxWorkers: maxWorkers,
		logger:     logger,
		queue:      make(chan core.Trigger, 256),
		inFlight:   make(map[string]bool),
		pending:    make(map[string]core.Trigger),
	}
	d.startWorkers(ctx)
	return d
}

func (d *Dispatcher) startWorkers(ctx context.Context) {
	for i := 0; i < d.maxWorkers; i++ {
		d.wg.Add(1)
		go func(workerID int) {
			defer d.wg.Done()
			d.logger.Info("starting pipeline worker", "id", workerID)
			for t := range d.queue {
				d.runOne(ctx, workerID, t)
			}
			d.logger.Info("shutting down pipeline worker", "id", workerID)
		}(i)
	}
}

func (d *Dispatcher) runOne(ctx context.Context, workerID int, t core.Trigger) {
	key := t.Key()
	d.logger.Info("worker picked up pipeline run", "worker_id", workerID, "key", key)

	if err := d.job.Run(ctx, t); err != nil {
		d.logger.Error("pipeline run finished with error", "key", key, "error", err)
	}

	d.mu.Lock()
	next, hasNext := d.pending[key]
	delete(d.pending, key)
	if !hasNext {
		delete(d.inFlight, key)
	}
	d.mu.Unlock()

	if hasNext {
		d.logger.Info("re-running coalesced trigger", "key", key)
		if err := d.enqueue(next); err != nil {
			d.logger.Error("failed to re-enqueue coalesced trigger", "key", key, "error", err)
		}
	}
}

// Dispatch enqueues t. If a job for t.Key() is already in-flight, t
// replaces whatever trigger currently occupies that key's pending slot
// (the newer payload wins) and Dispatch returns immediately without
// touching the queue — the in-flight run is never cancelled, and exactly
// one re-run follows it, using the newest pending payload.
func (d *Dispatcher) Dispatch(ctx context.Context, t core.Trigger) error {
	key := t.Key()

	d.mu.Lock()
	if d.inFlight[key] {
		d.pending[key] = t
		d.mu.Unlock()
		d.logger.InfoContext(ctx, "coalesced trigger into pending slot", "key", key)
		return nil
	}
	d.inFlight[key] = true
	d.mu.Unlock()

	return d.enqueue(t)
}

func (d *Dispatcher) enqueue(t core.Trigger) error {
	select {
	case d.queue <- t:
		return nil
	default:
		d.mu.Lock()
		delete(d.inFlight, t.Key())
		d.mu.Unlock()
		return fmt.Errorf("pipeline queue is full, cannot accept trigger for %s", t.Key())
	}
}

// Stop closes the queue and waits for in-flight workers to finish.
func (d *Dispatcher) Stop() {
	d.logger.Info("stopping dispatcher and waiting for runs to finish")
	close(d.queue)
	d.wg.Wait()
	d.logger.Info("all pipeline runs have finished")
}
