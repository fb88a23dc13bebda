// Package pipeline runs per-file processing jobs on a bounded worker
// pool and aggregates their outcomes into run statistics.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	apperrors "github.com/mplosser/data-call-report/internal/errors"
)

// Status classifies the outcome of a single job.
type Status string

const (
	StatusProcessed Status = "processed"
	StatusSkipped   Status = "skipped"
	StatusErrored   Status = "errored"
)

// Job is one independent unit of work, usually a single raw filing.
// Run reports the outcome and a short human-readable message; a
// non-nil error always marks the job errored regardless of the
// returned status.
type Job struct {
	ID  string
	Run func(ctx context.Context) (Status, string, error)
}

// Result records the outcome of one job.
type Result struct {
	ID       string
	Status   Status
	Message  string
	Err      error
	Duration time.Duration
}

// Stats aggregates results across a run. Unrecognized inputs are
// counted apart from real failures so a directory full of stray
// files does not read like a broken parser.
type Stats struct {
	Processed    int
	Skipped      int
	Unrecognized int
	Errored      int
}

// Add folds one result into the counters.
func (s *Stats) Add(r Result) {
	switch {
	case r.Status == StatusProcessed:
		s.Processed++
	case r.Status == StatusSkipped:
		s.Skipped++
	case apperrors.IsUnrecognized(r.Err):
		s.Unrecognized++
	default:
		s.Errored++
	}
}

func (s Stats) String() string {
	return fmt.Sprintf("%d processed, %d skipped, %d unrecognized, %d errored",
		s.Processed, s.Skipped, s.Unrecognized, s.Errored)
}

// Runner executes jobs concurrently on a fixed number of workers.
type Runner struct {
	workers int
	logger  *slog.Logger
	tracer  trace.Tracer
}

// NewRunner creates a runner with the given pool width. A
// non-positive width defaults to the number of CPUs.
func NewRunner(workers int, logger *slog.Logger) *Runner {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		workers: workers,
		logger:  logger.With(slog.String("component", "pipeline")),
		tracer:  otel.Tracer("pipeline"),
	}
}

// Run executes every job and returns one result per job in input
// order. Individual failures never abort the run; cancelling ctx
// fails the jobs that have not started yet.
func (r *Runner) Run(ctx context.Context, jobs []Job) ([]Result, Stats) {
	r.logger.Info("starting run",
		slog.Int("jobs", len(jobs)),
		slog.Int("workers", r.workers))

	results := make([]Result, len(jobs))

	var g errgroup.Group
	g.SetLimit(r.workers)
	for i, job := range jobs {
		g.Go(func() error {
			results[i] = r.runJob(ctx, job)
			return nil
		})
	}
	// Workers record failures in their result slot instead of
	// returning them, so Wait is only a completion barrier.
	_ = g.Wait()

	var stats Stats
	for _, res := range results {
		stats.Add(res)
	}

	r.logger.Info("run finished",
		slog.Int("processed", stats.Processed),
		slog.Int("skipped", stats.Skipped),
		slog.Int("unrecognized", stats.Unrecognized),
		slog.Int("errored", stats.Errored))
	return results, stats
}

func (r *Runner) runJob(ctx context.Context, job Job) (res Result) {
	res = Result{ID: job.ID}
	if err := ctx.Err(); err != nil {
		res.Status = StatusErrored
		res.Err = err
		res.Message = "cancelled before start"
		return res
	}

	logger := r.logger.With(slog.String("job", job.ID))
	start := time.Now()

	ctx, span := r.tracer.Start(ctx, "process_file",
		trace.WithAttributes(attribute.String("job.id", job.ID)))
	defer span.End()

	defer func() {
		if p := recover(); p != nil {
			res.Status = StatusErrored
			res.Err = fmt.Errorf("job panicked: %v", p)
			res.Message = ""
			res.Duration = time.Since(start)
			logger.Error("job panicked", slog.Any("panic", p))
			span.SetStatus(codes.Error, "panic")
		}
	}()

	status, message, err := job.Run(ctx)
	res.Duration = time.Since(start)
	res.Status, res.Message, res.Err = status, message, err
	if err != nil {
		res.Status = StatusErrored
	} else if res.Status == "" {
		res.Status = StatusProcessed
	}
	span.SetAttributes(attribute.String("job.status", string(res.Status)))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}

	switch {
	case err != nil && apperrors.IsUnrecognized(err):
		logger.Warn("unrecognized input", slog.String("error", err.Error()))
	case err != nil:
		logger.Error("job failed",
			slog.String("error", err.Error()),
			slog.Duration("duration", res.Duration))
	case res.Status == StatusSkipped:
		logger.Info("job skipped", slog.String("reason", message))
	default:
		logger.Info("job completed",
			slog.String("message", message),
			slog.Duration("duration", res.Duration))
	}
	return res
}
