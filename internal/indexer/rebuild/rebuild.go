// Package rebuild orchestrates full index rebuilds.
//
// Rebuild flow:
//  1. Sweep generations abandoned by earlier failed runs
//  2. Create a fresh generation index with periodic refresh disabled
//  3. Stream the active corpus from the system of record in pages
//  4. Bulk-load each page into the generation, counting rejects
//  5. Restore the refresh interval and force a refresh
//  6. Atomically swap the alias onto the new generation
//  7. Prune superseded generations
//
// Live traffic keeps hitting the old generation through the alias for the
// whole run; a failed or cancelled run deletes its generation and leaves
// the alias untouched.
package rebuild

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"forumsearch/internal/config"
	"forumsearch/internal/question"
	"forumsearch/internal/search"
)

// ErrRebuildInProgress is returned when a rebuild for the alias is already
// pending or running.
var ErrRebuildInProgress = errors.New("rebuild already in progress")

// ErrJobNotFound is returned for unknown job IDs.
var ErrJobNotFound = errors.New("rebuild job not found")

// ErrJobNotCancelable is returned when cancelling a job that already ended.
var ErrJobNotCancelable = errors.New("rebuild job is not pending or running")

// Status represents the current status of a rebuild job.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCanceled  Status = "canceled"
)

// terminal reports whether the status is an end state.
func (s Status) terminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCanceled:
		return true
	default:
		return false
	}
}

// Job represents a single rebuild run.
type Job struct {
	ID         string
	Alias      string
	Generation string

	Status     Status
	StartTime  time.Time
	EndTime    time.Time
	DocsTotal  int64
	DocsLoaded int64
	DocsFailed int64
	Error      string

	mu     sync.Mutex
	cancel context.CancelFunc
}

// Progress returns a snapshot of the job progress.
func (j *Job) Progress() JobProgress {
	j.mu.Lock()
	defer j.mu.Unlock()
	return JobProgress{
		ID:         j.ID,
		Alias:      j.Alias,
		Generation: j.Generation,
		Status:     j.Status,
		DocsTotal:  j.DocsTotal,
		DocsLoaded: j.DocsLoaded,
		DocsFailed: j.DocsFailed,
		StartTime:  j.StartTime,
		EndTime:    j.EndTime,
		Error:      j.Error,
	}
}

// JobProgress is a snapshot of job progress.
type JobProgress struct {
	ID         string    `json:"id"`
	Alias      string    `json:"alias"`
	Generation string    `json:"generation"`
	Status     Status    `json:"status"`
	DocsTotal  int64     `json:"docsTotal"`
	DocsLoaded int64     `json:"docsLoaded"`
	DocsFailed int64     `json:"docsFailed"`
	StartTime  time.Time `json:"startTime"`
	EndTime    time.Time `json:"endTime,omitempty"`
	Error      string    `json:"error,omitempty"`
}

// Orchestrator manages rebuild jobs for one alias.
type Orchestrator struct {
	cfg    config.RebuildConfig
	store  question.Store
	engine search.Engine
	alias  string
	logger *slog.Logger

	mu   sync.Mutex
	jobs map[string]*Job
}

// New creates a rebuild orchestrator.
func New(cfg config.RebuildConfig, store question.Store, engine search.Engine, alias string, logger *slog.Logger) *Orchestrator {
	if cfg.PageSize <= 0 {
		cfg.PageSize = 500
	}
	if cfg.Keep < 0 {
		cfg.Keep = 0
	}
	return &Orchestrator{
		cfg:    cfg,
		store:  store,
		engine: engine,
		alias:  alias,
		logger: logger.With("component", "rebuild"),
		jobs:   make(map[string]*Job),
	}
}

// StartRebuild initiates a rebuild and returns the job ID. Only one rebuild
// per alias runs at a time.
func (o *Orchestrator) StartRebuild(ctx context.Context) (string, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	for _, job := range o.jobs {
		job.mu.Lock()
		active := !job.Status.terminal()
		job.mu.Unlock()
		if active {
			return "", fmt.Errorf("%w for alias %s", ErrRebuildInProgress, o.alias)
		}
	}

	jobCtx, cancel := context.WithCancel(ctx)
	job := &Job{
		ID:     uuid.NewString(),
		Alias:  o.alias,
		Status: StatusPending,
		cancel: cancel,
	}
	o.jobs[job.ID] = job

	go o.runJob(jobCtx, job)
	return job.ID, nil
}

// runJob executes the rebuild job.
func (o *Orchestrator) runJob(jobCtx context.Context, job *Job) {
	defer job.cancel()

	job.mu.Lock()
	job.Status = StatusRunning
	job.StartTime = time.Now()
	job.mu.Unlock()

	o.logger.Info("starting rebuild job", "job_id", job.ID, "alias", o.alias)

	err := o.doRebuild(jobCtx, job)

	job.mu.Lock()
	job.EndTime = time.Now()
	if err != nil {
		if jobCtx.Err() != nil {
			job.Status = StatusCanceled
		} else {
			job.Status = StatusFailed
			job.Error = err.Error()
		}
		job.mu.Unlock()
		o.logger.Error("rebuild job failed", "job_id", job.ID, "error", err)
		return
	}
	job.Status = StatusCompleted
	duration := job.EndTime.Sub(job.StartTime)
	loaded := job.DocsLoaded
	job.mu.Unlock()

	o.logger.Info("rebuild job completed",
		"job_id", job.ID, "duration", duration, "docs_loaded", loaded)
}

// doRebuild performs the rebuild work. On any failure after the generation
// was created, the generation is deleted and the alias stays put.
func (o *Orchestrator) doRebuild(ctx context.Context, job *Job) error {
	if err := o.sweepAbandoned(ctx); err != nil {
		o.logger.Warn("abandoned generation sweep failed", "error", err)
	}

	generation := search.GenerationName(o.alias, time.Now())
	job.mu.Lock()
	job.Generation = generation
	job.mu.Unlock()

	if err := o.engine.CreateIndex(ctx, generation); err != nil {
		return fmt.Errorf("create generation: %w", err)
	}

	if err := o.load(ctx, job, generation); err != nil {
		o.discard(generation)
		return err
	}

	if err := o.promote(ctx, generation); err != nil {
		// The swap may have landed on the engine before the error made
		// it back. Re-read the alias before deciding the run failed.
		targets, readErr := o.engine.AliasTarget(context.WithoutCancel(ctx), o.alias)
		if readErr == nil && len(targets) == 1 && targets[0] == generation {
			o.logger.Warn("alias swap reported an error but took effect",
				"generation", generation, "error", err)
		} else {
			o.discard(generation)
			return err
		}
	}

	o.prune(ctx, generation)
	return nil
}

// load streams the active corpus into the generation.
func (o *Orchestrator) load(ctx context.Context, job *Job, generation string) error {
	if err := o.engine.SetRefreshInterval(ctx, generation, "-1"); err != nil {
		return fmt.Errorf("disable refresh: %w", err)
	}

	total, err := o.store.CountActiveQuestions(ctx)
	if err != nil {
		return fmt.Errorf("count active questions: %w", err)
	}
	job.mu.Lock()
	job.DocsTotal = total
	job.mu.Unlock()

	iter, err := o.store.StreamActiveQuestions(ctx, o.cfg.PageSize)
	if err != nil {
		return fmt.Errorf("stream active questions: %w", err)
	}
	defer iter.Close(context.WithoutCancel(ctx))

	for iter.Next(ctx) {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		page := iter.Page()
		docs := make([]*search.Document, 0, len(page))
		for _, q := range page {
			docs = append(docs, search.Transform(q))
		}
		failed, err := o.engine.BulkUpsert(ctx, generation, docs)
		if err != nil {
			return fmt.Errorf("bulk load page: %w", err)
		}
		job.mu.Lock()
		job.DocsLoaded += int64(len(docs) - failed)
		job.DocsFailed += int64(failed)
		job.mu.Unlock()
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("iterate active questions: %w", err)
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}

	job.mu.Lock()
	rejected := job.DocsFailed
	job.mu.Unlock()
	if rejected > 0 {
		// Per-document rejects do not abort the run. The documents are
		// logged by the engine and surface in the job's failure count.
		o.logger.Warn("bulk load rejected documents", "generation", generation, "rejected", rejected)
	}

	if err := o.engine.SetRefreshInterval(ctx, generation, "1s"); err != nil {
		return fmt.Errorf("restore refresh interval: %w", err)
	}
	if err := o.engine.Refresh(ctx, generation); err != nil {
		return fmt.Errorf("refresh generation: %w", err)
	}
	return nil
}

// promote swaps the alias onto the generation in one atomic operation.
func (o *Orchestrator) promote(ctx context.Context, generation string) error {
	old, err := o.engine.AliasTarget(ctx, o.alias)
	if err != nil {
		return fmt.Errorf("resolve current alias target: %w", err)
	}
	if err := o.engine.SwapAlias(ctx, o.alias, old, generation); err != nil {
		return fmt.Errorf("swap alias: %w", err)
	}
	return nil
}

// prune deletes generations superseded by the one just promoted, keeping
// the configured number of spares (newest first).
func (o *Orchestrator) prune(ctx context.Context, current string) {
	names, err := o.engine.Generations(ctx, o.alias)
	if err != nil {
		o.logger.Warn("failed to list generations for pruning", "error", err)
		return
	}
	search.SortGenerations(o.alias, names)

	spares := 0
	for _, name := range names {
		if name == current {
			continue
		}
		if spares < o.cfg.Keep {
			spares++
			continue
		}
		if err := o.engine.DeleteIndex(ctx, name); err != nil {
			o.logger.Warn("failed to prune generation", "generation", name, "error", err)
			continue
		}
		o.logger.Info("pruned superseded generation", "generation", name)
	}
}

// sweepAbandoned deletes generations no job owns and the alias does not
// point at, left behind when a previous process died mid-rebuild.
func (o *Orchestrator) sweepAbandoned(ctx context.Context) error {
	names, err := o.engine.Generations(ctx, o.alias)
	if err != nil {
		return fmt.Errorf("list generations: %w", err)
	}
	targets, err := o.engine.AliasTarget(ctx, o.alias)
	if err != nil {
		return fmt.Errorf("resolve alias target: %w", err)
	}
	live := make(map[string]bool, len(targets))
	for _, t := range targets {
		live[t] = true
	}

	owned := make(map[string]bool)
	o.mu.Lock()
	for _, job := range o.jobs {
		p := job.Progress()
		if !p.Status.terminal() && p.Generation != "" {
			owned[p.Generation] = true
		}
	}
	o.mu.Unlock()

	spares := 0
	for _, name := range names {
		if live[name] || owned[name] {
			continue
		}
		// Keep configured spares even when sweeping.
		if spares < o.cfg.Keep {
			spares++
			continue
		}
		if err := o.engine.DeleteIndex(ctx, name); err != nil {
			o.logger.Warn("failed to sweep abandoned generation", "generation", name, "error", err)
			continue
		}
		o.logger.Info("swept abandoned generation", "generation", name)
	}
	return nil
}

// discard deletes a generation that will never be promoted.
func (o *Orchestrator) discard(generation string) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := o.engine.DeleteIndex(ctx, generation); err != nil {
		o.logger.Warn("failed to delete discarded generation",
			"generation", generation, "error", err)
	}
}

// CancelRebuild cancels a pending or running rebuild job.
func (o *Orchestrator) CancelRebuild(jobID string) error {
	o.mu.Lock()
	job, ok := o.jobs[jobID]
	o.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrJobNotFound, jobID)
	}

	job.mu.Lock()
	defer job.mu.Unlock()

	switch job.Status {
	case StatusPending, StatusRunning:
		if job.cancel != nil {
			job.cancel()
		}
		return nil
	default:
		return fmt.Errorf("%w: %s (status: %s)", ErrJobNotCancelable, jobID, job.Status)
	}
}

// GetJob returns the status of a rebuild job.
func (o *Orchestrator) GetJob(jobID string) (*JobProgress, error) {
	o.mu.Lock()
	job, ok := o.jobs[jobID]
	o.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrJobNotFound, jobID)
	}
	progress := job.Progress()
	return &progress, nil
}

// ListJobs returns all known rebuild jobs.
func (o *Orchestrator) ListJobs() []JobProgress {
	o.mu.Lock()
	defer o.mu.Unlock()

	result := make([]JobProgress, 0, len(o.jobs))
	for _, job := range o.jobs {
		result = append(result, job.Progress())
	}
	return result
}

// CleanupCompletedJobs removes ended jobs older than maxAge from the
// registry and returns how many were removed.
func (o *Orchestrator) CleanupCompletedJobs(maxAge time.Duration) int {
	o.mu.Lock()
	defer o.mu.Unlock()

	cutoff := time.Now().Add(-maxAge)
	removed := 0
	for id, job := range o.jobs {
		p := job.Progress()
		if p.Status.terminal() && !p.EndTime.IsZero() && p.EndTime.Before(cutoff) {
			delete(o.jobs, id)
			removed++
		}
	}
	return removed
}
