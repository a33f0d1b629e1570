// Package batch downloads every video named in a list file, skipping those already recorded in the completion log.
//
// Each URL becomes an independent Job. Jobs run through a bounded pool; inside a job the resolve and fetch steps are
// retried together with exponential backoff (a fresh signed URL per attempt), a success is appended to the
// completion log, and the job then holds its pool slot for the pacing delay whether it succeeded or not. A job that
// exhausts its retries is reported and left out of the log, so the next run picks it up again.
package batch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	"go.uber.org/zap"

	"github.com/alanbriolat/loom-archiver"
	"github.com/alanbriolat/loom-archiver/async"
	"github.com/alanbriolat/loom-archiver/generic"
	"github.com/alanbriolat/loom-archiver/internal/completion"
	"github.com/alanbriolat/loom-archiver/internal/pool"
	"github.com/alanbriolat/loom-archiver/internal/retry"
)

type Config struct {
	// ListPath is a text file of source URLs, one per line.
	ListPath string
	// OutputDir receives the downloaded files; defaults to loom_archiver.DefaultOutputDir.
	OutputDir string
	// Prefix, if set, turns filenames into "{prefix}-{index}-{id}.mp4".
	Prefix string
	// Delay is how long each job keeps its slot after finishing.
	Delay       time.Duration
	Concurrency int
	Retry       retry.Policy
}

var DefaultConfig = Config{
	OutputDir:   loom_archiver.DefaultOutputDir,
	Delay:       loom_archiver.DefaultDelay,
	Concurrency: loom_archiver.DefaultConcurrency,
	Retry:       retry.DefaultPolicy,
}

// Job is one source URL to download. Index is the 1-based position among the URLs not yet completed.
type Job struct {
	SourceURL string
	ID        string
	Path      string
	Index     int
	Delay     time.Duration
}

type Failure struct {
	Job Job
	Err error
}

type Report struct {
	RunID string
	// Listed is the number of non-blank lines in the list file.
	Listed int
	// Skipped were already in the completion log.
	Skipped   int
	Succeeded []Job
	Failed    []Failure
}

func (r *Report) Attempted() int {
	return len(r.Succeeded) + len(r.Failed)
}

// Err combines every job failure, or returns nil if there were none.
func (r *Report) Err() error {
	var result error
	for _, f := range r.Failed {
		result = multierror.Append(result, multierror.Prefix(f.Err, fmt.Sprintf("[%s]", f.Job.SourceURL)))
	}
	return result
}

type Orchestrator struct {
	downloader loom_archiver.Downloader
	completed  completion.Log
	wait       func(ctx context.Context, d time.Duration) error
}

type Option func(*Orchestrator)

// WithWait replaces the function used for the pacing delay.
func WithWait(wait func(ctx context.Context, d time.Duration) error) Option {
	return func(o *Orchestrator) {
		o.wait = wait
	}
}

func New(downloader loom_archiver.Downloader, completed completion.Log, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		downloader: downloader,
		completed:  completed,
		wait:       async.Sleep,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Run downloads everything in cfg.ListPath that the completion log does not already contain. Only setup problems
// (unreadable log or list, uncreatable output directory) are returned as errors; individual job failures are
// collected in the Report.
func (o *Orchestrator) Run(ctx context.Context, cfg Config) (*Report, error) {
	report := &Report{RunID: uuid.NewString()}
	logger := loom_archiver.Logger(ctx).Sugar().Named("batch").With("run_id", report.RunID)

	completed, err := o.completed.Load()
	if err != nil {
		return nil, err
	}
	urls, err := ReadList(cfg.ListPath)
	if err != nil {
		return nil, err
	}

	outputDir := cfg.OutputDir
	if outputDir == "" {
		outputDir = loom_archiver.DefaultOutputDir
	}
	if outputDir, err = filepath.Abs(outputDir); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(outputDir, 0775); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	jobs := PlanJobs(urls, completed, outputDir, cfg.Prefix, cfg.Delay)
	report.Listed = len(urls)
	report.Skipped = len(urls) - len(jobs)
	logger.Infof("%d URLs listed, %d already downloaded, %d to download into %s",
		report.Listed, report.Skipped, len(jobs), outputDir)

	tasks := make([]pool.Task[Job], len(jobs))
	for i, job := range jobs {
		job := job
		tasks[i] = func(ctx context.Context) (Job, error) {
			return job, o.runJob(ctx, job, cfg.Retry, logger)
		}
	}
	for i, result := range pool.RunBounded(ctx, tasks, cfg.Concurrency) {
		if result.IsErr() {
			report.Failed = append(report.Failed, Failure{Job: jobs[i], Err: result.Error})
		} else {
			report.Succeeded = append(report.Succeeded, jobs[i])
		}
	}

	if len(report.Failed) > 0 {
		logger.Warnf("%d of %d downloads failed", len(report.Failed), report.Attempted())
	} else {
		logger.Infof("all %d downloads complete", report.Attempted())
	}
	return report, nil
}

func (o *Orchestrator) runJob(ctx context.Context, job Job, policy retry.Policy, logger *zap.SugaredLogger) error {
	log := logger.With("index", job.Index, "id", job.ID)
	log.Infof("Downloading video %s and saving to %s", job.ID, job.Path)

	policy.OnRetry = func(attempt int, err error, delay time.Duration) {
		log.Warnf("attempt %d/%d failed: %v (retrying in %s)", attempt, policy.MaxAttempts, err, delay)
	}
	err := retry.Do(ctx, policy, func(ctx context.Context) error {
		mediaURL, err := o.downloader.Resolve(ctx, job.ID)
		if err != nil {
			return err
		}
		return o.downloader.Fetch(ctx, mediaURL, job.Path)
	})
	if err == nil {
		if err = o.completed.MarkCompleted(job.SourceURL); err != nil {
			err = fmt.Errorf("downloaded but not recorded as complete: %w", err)
		}
	}
	if err != nil {
		log.Errorf("Failed to download video %s: %v", job.ID, err)
	} else {
		log.Infof("Downloaded video %s", job.ID)
	}

	if job.Delay > 0 {
		log.Infof("Waiting for %s before the next download...", job.Delay)
		_ = o.wait(ctx, job.Delay)
	}
	return err
}

// ReadList returns the trimmed, non-blank lines of the list file in order.
func ReadList(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read URL list: %w", err)
	}
	var urls []string
	for _, line := range strings.Split(string(data), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			urls = append(urls, line)
		}
	}
	return urls, nil
}

// PlanJobs drops already completed URLs and numbers the rest from 1 in list order.
func PlanJobs(urls []string, completed generic.Set[string], outputDir string, prefix string, delay time.Duration) []Job {
	var jobs []Job
	for _, u := range urls {
		if completed != nil && completed.Contains(u) {
			continue
		}
		index := len(jobs) + 1
		id := loom_archiver.ExtractID(u)
		jobs = append(jobs, Job{
			SourceURL: u,
			ID:        id,
			Path:      filepath.Join(outputDir, loom_archiver.TargetFilename(prefix, index, id)),
			Index:     index,
			Delay:     delay,
		})
	}
	return jobs
}
