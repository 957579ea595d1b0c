// Package dispatcher drives a chunked job to completion by fanning
// out one worker per pending chunk under a bounded concurrency limit,
// re-scheduling retryable failures in waves.
package dispatcher

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/oukeidos/doctrans/internal/apperrors"
	"github.com/oukeidos/doctrans/internal/job"
	"github.com/oukeidos/doctrans/internal/logger"
	"github.com/oukeidos/doctrans/internal/worker"
	"golang.org/x/sync/errgroup"
)

const (
	// DefaultConcurrency should stay at or below the RPM limit;
	// anything higher just queues workers on rate-limit denials.
	DefaultConcurrency = 4
	// DefaultMaxRounds bounds the quota-retry waves for one dispatch.
	DefaultMaxRounds = 10
	// DefaultMaxWait clamps the advisory retry-after between waves.
	DefaultMaxWait = 2 * time.Minute
	// minWait is the floor for between-wave backoff when no advisory
	// wait was supplied.
	minWait = time.Second
)

// Config holds dispatch settings. Zero values fall back to defaults.
type Config struct {
	Concurrency int
	MaxRounds   int
	MaxWait     time.Duration
}

func (c Config) withDefaults() Config {
	if c.Concurrency <= 0 {
		c.Concurrency = DefaultConcurrency
	}
	if c.MaxRounds <= 0 {
		c.MaxRounds = DefaultMaxRounds
	}
	if c.MaxWait <= 0 {
		c.MaxWait = DefaultMaxWait
	}
	return c
}

// Processor handles one chunk; *worker.Worker is the production
// implementation.
type Processor interface {
	Process(ctx context.Context, task worker.Task) worker.Result
}

// Dispatcher runs translation jobs.
type Dispatcher struct {
	jobs job.Store
	proc Processor
	cfg  Config

	// sleep waits between waves; swapped out in tests.
	sleep func(ctx context.Context, d time.Duration) error
}

func New(jobs job.Store, proc Processor, cfg Config) *Dispatcher {
	return &Dispatcher{
		jobs:  jobs,
		proc:  proc,
		cfg:   cfg.withDefaults(),
		sleep: sleepCtx,
	}
}

// Run translates every pending chunk of the job, in waves. Completion
// is detected through the job's counter, never through chunk ordering.
// A non-retryable worker failure surfaces after its wave has drained;
// retryable failures are retried in later waves after the advisory
// wait.
func (d *Dispatcher) Run(ctx context.Context, jobID, userID string) error {
	for round := 0; round < d.cfg.MaxRounds; round++ {
		current, err := d.jobs.Get(ctx, jobID, userID)
		if err != nil {
			return err
		}
		switch current.Status {
		case job.StatusTranslationCompleted:
			return nil
		case job.StatusChunked, job.StatusTranslationInProgress:
		default:
			return apperrors.State(fmt.Sprintf("job %s is %s; translation cannot start", jobID, current.Status))
		}

		pending := pendingChunks(current)
		if len(pending) == 0 {
			// Counter says everything is accounted but the status has
			// not flipped; the record is inconsistent.
			return apperrors.Fatal(fmt.Errorf("job %s has no pending chunks but status %s", jobID, current.Status))
		}

		logger.Info("Dispatching translation wave",
			"job", jobID, "round", round+1, "pending", len(pending), "workers", d.cfg.Concurrency)

		wait, err := d.runWave(ctx, current, pending)
		if err != nil {
			return err
		}
		if wait < 0 {
			// Every pending chunk succeeded.
			return d.confirmCompleted(ctx, jobID, userID)
		}

		if wait < minWait {
			wait = minWait
		}
		if wait > d.cfg.MaxWait {
			wait = d.cfg.MaxWait
		}
		logger.Info("Waiting before retry wave", "job", jobID, "wait", wait.String())
		if err := d.sleep(ctx, wait); err != nil {
			return err
		}
	}
	return apperrors.New(apperrors.KindQuota,
		fmt.Sprintf("job %s still has pending chunks after %d dispatch rounds", jobID, d.cfg.MaxRounds), nil)
}

// runWave processes the pending chunks concurrently. Siblings of a
// failed chunk are never canceled: a late success still persists its
// translated object even though the job record has already flipped to
// TRANSLATION_FAILED. It returns a negative wait when everything
// succeeded, the advisory wait for the next wave when retryable
// failures remain, or the first non-retryable error once the wave has
// drained.
func (d *Dispatcher) runWave(ctx context.Context, current *job.Job, pending []int) (time.Duration, error) {
	var g errgroup.Group
	g.SetLimit(d.cfg.Concurrency)

	var mu sync.Mutex
	retryWait := time.Duration(-1)
	var terminal error

	for _, index := range pending {
		index := index
		g.Go(func() error {
			res := d.proc.Process(ctx, worker.Task{
				JobID:          current.JobID,
				UserID:         current.UserID,
				ChunkIndex:     index,
				TargetLanguage: current.TargetLanguage,
				Tone:           current.Tone,
			})
			if res.Success {
				return nil
			}
			if !res.Retryable {
				mu.Lock()
				if terminal == nil {
					terminal = res.Err
				}
				mu.Unlock()
				return nil
			}
			mu.Lock()
			if res.RetryAfter > retryWait {
				retryWait = res.RetryAfter
			} else if retryWait < 0 {
				retryWait = 0
			}
			mu.Unlock()
			logger.Warn("Chunk deferred", "job", current.JobID, "index", index, "error", res.Err)
			return nil
		})
	}
	// Group funcs always return nil; errors are collected above.
	_ = g.Wait()
	if terminal != nil {
		return 0, terminal
	}
	return retryWait, nil
}

func (d *Dispatcher) confirmCompleted(ctx context.Context, jobID, userID string) error {
	final, err := d.jobs.Get(ctx, jobID, userID)
	if err != nil {
		return err
	}
	if final.Status != job.StatusTranslationCompleted {
		return apperrors.Fatal(fmt.Errorf("job %s finished dispatch in status %s with %d/%d chunks",
			jobID, final.Status, final.TranslatedChunks, final.TotalChunks))
	}
	logger.Info("Translation completed",
		"job", jobID, "chunks", final.TotalChunks, "usage_total", final.TokensUsed, "cost", final.EstimatedCost)
	return nil
}

// pendingChunks lists the chunk indexes not yet accounted on the job.
func pendingChunks(j *job.Job) []int {
	done := make(map[int]bool, len(j.CompletedChunks))
	for _, idx := range j.CompletedChunks {
		done[idx] = true
	}
	var pending []int
	for i := 0; i < j.TotalChunks; i++ {
		if !done[i] {
			pending = append(pending, i)
		}
	}
	return pending
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
