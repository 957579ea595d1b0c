// Package worker processes exactly one chunk of one job end to end:
// load, estimate, acquire quota, translate, persist, advance progress.
// Workers are independent; none reads another worker's output.
package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/oukeidos/doctrans/internal/apperrors"
	"github.com/oukeidos/doctrans/internal/chunker"
	"github.com/oukeidos/doctrans/internal/gemini"
	"github.com/oukeidos/doctrans/internal/job"
	"github.com/oukeidos/doctrans/internal/logger"
	"github.com/oukeidos/doctrans/internal/objstore"
	"github.com/oukeidos/doctrans/internal/ratelimit"
	"github.com/oukeidos/doctrans/internal/tokens"
)

const (
	// DefaultTimeout is the wall-clock budget for one chunk.
	DefaultTimeout = 5 * time.Minute
	// DefaultPromptOverheadTokens approximates the prompt scaffolding
	// added on top of content and context.
	DefaultPromptOverheadTokens = 200
	// failStatusTimeout bounds the detached TRANSLATION_FAILED write.
	failStatusTimeout = 10 * time.Second
)

// Config holds worker settings. Zero values fall back to defaults.
type Config struct {
	Timeout              time.Duration
	PromptOverheadTokens int
}

func (c Config) withDefaults() Config {
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.PromptOverheadTokens <= 0 {
		c.PromptOverheadTokens = DefaultPromptOverheadTokens
	}
	return c
}

// Task identifies one unit of work.
type Task struct {
	JobID          string
	UserID         string
	ChunkIndex     int
	TargetLanguage string
	Tone           string
}

// Result is the outcome of processing one task, success or not.
type Result struct {
	Success          bool
	JobID            string
	ChunkIndex       int
	TranslatedKey    string
	TokensUsed       gemini.TokensUsed
	EstimatedCost    float64
	ProcessingTimeMs int64
	Err              error
	// Retryable marks failures the dispatcher may re-schedule,
	// including quota denials.
	Retryable bool
	// RetryAfter is the advisory wait for quota denials.
	RetryAfter time.Duration
}

// Worker translates single chunks. Safe for concurrent use.
type Worker struct {
	jobs       job.Store
	objects    objstore.Store
	limiter    ratelimit.Limiter
	translator gemini.Translator
	cfg        Config

	now func() time.Time
}

func New(jobs job.Store, objects objstore.Store, limiter ratelimit.Limiter, translator gemini.Translator, cfg Config) *Worker {
	return &Worker{
		jobs:       jobs,
		objects:    objects,
		limiter:    limiter,
		translator: translator,
		cfg:        cfg.withDefaults(),
		now:        time.Now,
	}
}

// Process runs the full per-chunk contract. Quota denials come back as
// retryable results without touching the job record; non-retryable
// failures flip the job to TRANSLATION_FAILED best-effort.
func (w *Worker) Process(ctx context.Context, task Task) Result {
	started := w.now()
	ctx, cancel := context.WithTimeout(ctx, w.cfg.Timeout)
	defer cancel()

	res := w.process(ctx, task)
	res.JobID = task.JobID
	res.ChunkIndex = task.ChunkIndex
	res.ProcessingTimeMs = w.now().Sub(started).Milliseconds()
	return res
}

func (w *Worker) process(ctx context.Context, task Task) Result {
	// Step 1: load the job and check it accepts translation work.
	current, err := w.jobs.Get(ctx, task.JobID, task.UserID)
	if err != nil {
		return w.failed(ctx, task, err)
	}
	if current.Status != job.StatusChunked && current.Status != job.StatusTranslationInProgress {
		return w.failed(ctx, task, apperrors.State(
			fmt.Sprintf("job %s is %s; chunk translation not accepted", task.JobID, current.Status)))
	}
	if task.ChunkIndex < 0 || task.ChunkIndex >= current.TotalChunks {
		return w.failed(ctx, task, apperrors.Validation(
			fmt.Errorf("chunk index %d out of range for %d chunks", task.ChunkIndex, current.TotalChunks)))
	}

	translatedKey := objstore.TranslatedChunkKey(task.JobID, task.ChunkIndex)

	// A chunk already accounted for needs no work; the translated
	// object is in place from the earlier run.
	if current.ChunkCompleted(task.ChunkIndex) {
		return Result{Success: true, TranslatedKey: translatedKey}
	}

	// Step 2: load the chunk record. Context comes exclusively from the
	// pre-computed previousSummary; nothing under translated/ is read.
	obj, err := w.objects.Get(ctx, current.ChunkKeys[task.ChunkIndex])
	if err != nil {
		return w.failed(ctx, task, err)
	}
	var ch chunker.Chunk
	if err := json.Unmarshal(obj.Body, &ch); err != nil {
		return w.failed(ctx, task, apperrors.Fatal(fmt.Errorf("corrupt chunk record at %s: %w", current.ChunkKeys[task.ChunkIndex], err)))
	}

	// Step 3: estimate tokens for the quota reservation.
	estimate := tokens.Estimate(ch.PrimaryContent) + tokens.Estimate(ch.PreviousSummary) + w.cfg.PromptOverheadTokens

	// Step 4: acquire quota. Denial is retryable and leaves the job
	// record untouched.
	decision, err := w.limiter.Acquire(ctx, estimate)
	if err != nil {
		return w.failed(ctx, task, err)
	}
	if !decision.Granted {
		return Result{
			Err:        apperrors.Quota("", decision.RetryAfter),
			Retryable:  true,
			RetryAfter: decision.RetryAfter,
		}
	}

	// Step 5: translate.
	opts := gemini.Options{
		TargetLanguage:     task.TargetLanguage,
		Tone:               task.Tone,
		PreserveFormatting: true,
	}
	var tctx gemini.Context
	if ch.PreviousSummary != "" {
		tctx.PreviousChunks = []string{ch.PreviousSummary}
	}
	translated, err := w.translator.Translate(ctx, ch.PrimaryContent, opts, tctx)
	if err != nil {
		return w.failed(ctx, task, err)
	}

	// Reconcile the reservation against actual usage. Best-effort; a
	// failure here never fails the chunk.
	if consumeErr := w.limiter.Consume(ctx, estimate, translated.TokensUsed.Total); consumeErr != nil {
		logger.Warn("Rate-limit reconciliation failed", "job", task.JobID, "index", task.ChunkIndex, "error", consumeErr)
	}

	// Step 6: persist the translated output with sidecar metadata.
	metadata := map[string]string{
		"jobid":          task.JobID,
		"chunkindex":     strconv.Itoa(task.ChunkIndex),
		"sourcelanguage": current.SourceLanguage,
		"targetlanguage": task.TargetLanguage,
		"tokensused":     strconv.Itoa(translated.TokensUsed.Total),
		"estimatedcost":  strconv.FormatFloat(translated.EstimatedCost, 'f', -1, 64),
		"translatedat":   w.now().UTC().Format(time.RFC3339),
	}
	if err := w.objects.Put(ctx, translatedKey, []byte(translated.TranslatedText), metadata); err != nil {
		return w.failed(ctx, task, err)
	}

	// Step 7: advance the job counters at most once for this chunk.
	now := w.now()
	_, err = w.jobs.Update(ctx, task.JobID, task.UserID, func(j *job.Job) error {
		_, advErr := j.AdvanceProgress(task.ChunkIndex, translated.TokensUsed.Total, translated.EstimatedCost, now)
		return advErr
	})
	if err != nil {
		return w.failed(ctx, task, err)
	}

	logger.Info("Chunk translated",
		"job", task.JobID,
		"index", task.ChunkIndex,
		"usage_total", translated.TokensUsed.Total,
		"cost", translated.EstimatedCost,
	)

	// Step 8: report success.
	return Result{
		Success:       true,
		TranslatedKey: translatedKey,
		TokensUsed:    translated.TokensUsed,
		EstimatedCost: translated.EstimatedCost,
	}
}

// failed wraps an error into a Result. Non-retryable errors flip the
// job to TRANSLATION_FAILED; the status write is best-effort so it
// never masks the original failure.
func (w *Worker) failed(ctx context.Context, task Task, err error) Result {
	retryable := apperrors.IsRetryable(err)
	if !retryable {
		// The worker context may have hit its wall-clock budget or been
		// canceled; the status write runs on a short detached context so
		// it can still land.
		updateCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), failStatusTimeout)
		defer cancel()
		now := w.now()
		_, updateErr := w.jobs.Update(updateCtx, task.JobID, task.UserID, func(j *job.Job) error {
			return j.FailTranslation(apperrors.PublicMessage(err), now)
		})
		if updateErr != nil {
			logger.Warn("Could not record job failure", "job", task.JobID, "index", task.ChunkIndex, "error", updateErr)
		}
	}
	return Result{
		Err:        err,
		Retryable:  retryable,
		RetryAfter: apperrors.RetryAfterOf(err),
	}
}
