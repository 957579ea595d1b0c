package pipeline

import (
	"context"
	"fmt"

	"github.com/oukeidos/doctrans/internal/apperrors"
	"github.com/oukeidos/doctrans/internal/dispatcher"
	"github.com/oukeidos/doctrans/internal/job"
	"github.com/oukeidos/doctrans/internal/logger"
	"github.com/oukeidos/doctrans/internal/worker"
)

// TranslationStatus is the terminal state of a translation run.
type TranslationStatus string

const (
	TranslationStatusSuccess TranslationStatus = "Success"
	TranslationStatusFailure TranslationStatus = "Failure"
)

// TranslationResult contains structured outputs from RunTranslation.
type TranslationResult struct {
	Status           TranslationStatus
	JobStatus        job.Status
	TranslatedChunks int
	TotalChunks      int
	TokensUsed       int
	EstimatedCost    float64
	ErrorMessage     string
}

// RunTranslation dispatches workers for every pending chunk of a
// chunked job and reports the job's final state. The returned error
// reflects the dispatch outcome; the job record remains the canonical
// report either way.
func RunTranslation(ctx context.Context, deps Deps, cfg Config, jobID, userID string) (TranslationResult, error) {
	if err := deps.validate(); err != nil {
		return TranslationResult{}, apperrors.Validation(err)
	}
	if deps.Limiter == nil {
		return TranslationResult{}, apperrors.Validation(fmt.Errorf("rate limiter is required"))
	}
	if deps.Translator == nil {
		return TranslationResult{}, apperrors.Validation(fmt.Errorf("translation client is required"))
	}
	cfg, notes := cfg.Normalize()
	for _, note := range notes {
		logger.Warn("Config normalized", "detail", note)
	}

	w := worker.New(deps.Jobs, deps.Objects, deps.Limiter, deps.Translator, cfg.Worker)
	d := dispatcher.New(deps.Jobs, w, cfg.Dispatch)

	runErr := d.Run(ctx, jobID, userID)

	final, err := deps.Jobs.Get(ctx, jobID, userID)
	if err != nil {
		if runErr != nil {
			return TranslationResult{}, runErr
		}
		return TranslationResult{}, err
	}

	res := TranslationResult{
		JobStatus:        final.Status,
		TranslatedChunks: final.TranslatedChunks,
		TotalChunks:      final.TotalChunks,
		TokensUsed:       final.TokensUsed,
		EstimatedCost:    final.EstimatedCost,
		ErrorMessage:     final.ErrorMessage,
	}
	if runErr == nil && final.Status == job.StatusTranslationCompleted {
		res.Status = TranslationStatusSuccess
		return res, nil
	}
	res.Status = TranslationStatusFailure
	return res, runErr
}
