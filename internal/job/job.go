// Package job holds the durable job record and its state machine. The
// record is the single source of truth for translation progress; all
// mutation goes through conditional updates on a Store.
package job

import (
	"fmt"
	"time"

	"github.com/oukeidos/doctrans/internal/apperrors"
)

// Status is a job lifecycle state. Transitions are monotonic; see
// CanTransition.
type Status string

const (
	StatusPendingUpload         Status = "PENDING_UPLOAD"
	StatusChunking              Status = "CHUNKING"
	StatusChunked               Status = "CHUNKED"
	StatusChunkingFailed        Status = "CHUNKING_FAILED"
	StatusTranslationInProgress Status = "TRANSLATION_IN_PROGRESS"
	StatusTranslationCompleted  Status = "TRANSLATION_COMPLETED"
	StatusTranslationFailed     Status = "TRANSLATION_FAILED"
)

var transitions = map[Status][]Status{
	StatusPendingUpload:         {StatusChunking},
	StatusChunking:              {StatusChunked, StatusChunkingFailed},
	StatusChunked:               {StatusTranslationInProgress, StatusTranslationFailed},
	StatusTranslationInProgress: {StatusTranslationCompleted, StatusTranslationFailed},
}

// CanTransition reports whether the state machine permits moving from s
// to next.
func (s Status) CanTransition(next Status) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Terminal reports whether no further transitions exist from s.
func (s Status) Terminal() bool {
	return len(transitions[s]) == 0
}

// Job is the persisted record for one document translation. Created at
// upload, mutated by the chunker once and then by translation workers;
// never deleted.
type Job struct {
	JobID          string `json:"jobId"`
	UserID         string `json:"userId"`
	Status         Status `json:"status"`
	SourceLanguage string `json:"sourceLanguage,omitempty"`
	TargetLanguage string `json:"targetLanguage"`
	Tone           string `json:"tone"`

	// Source object coordinates.
	FileID    string `json:"fileId"`
	SourceKey string `json:"sourceKey"`

	// Chunking metadata, set once when the chunker completes.
	TotalChunks              int      `json:"totalChunks"`
	ChunkKeys                []string `json:"chunkKeys,omitempty"`
	OriginalTokenCount       int      `json:"originalTokenCount,omitempty"`
	AverageChunkSize         int      `json:"averageChunkSize,omitempty"`
	ChunkingProcessingTimeMs int64    `json:"chunkingProcessingTimeMs,omitempty"`

	// Translation progress. TranslatedChunks is the length of
	// CompletedChunks; the explicit set is what makes counter
	// advancement idempotent per chunk.
	TranslatedChunks int     `json:"translatedChunks"`
	CompletedChunks  []int   `json:"completedChunks,omitempty"`
	TokensUsed       int     `json:"tokensUsed"`
	EstimatedCost    float64 `json:"estimatedCost"`

	ErrorMessage string `json:"errorMessage,omitempty"`

	CreatedAt              time.Time  `json:"createdAt"`
	UpdatedAt              time.Time  `json:"updatedAt"`
	TranslationStartedAt   *time.Time `json:"translationStartedAt,omitempty"`
	TranslationCompletedAt *time.Time `json:"translationCompletedAt,omitempty"`
	FailedAt               *time.Time `json:"failedAt,omitempty"`
}

// Validate checks required fields and the record's internal invariants.
// Stores call it on read to reject corrupt records early.
func (j *Job) Validate() error {
	if j.JobID == "" {
		return fmt.Errorf("jobId is empty")
	}
	if j.UserID == "" {
		return fmt.Errorf("userId is empty")
	}
	if j.Status == "" {
		return fmt.Errorf("status is empty")
	}
	if j.TranslatedChunks > j.TotalChunks {
		return fmt.Errorf("translatedChunks %d exceeds totalChunks %d", j.TranslatedChunks, j.TotalChunks)
	}
	if j.Status == StatusChunked && len(j.ChunkKeys) != j.TotalChunks {
		return fmt.Errorf("chunked job has %d chunk keys for %d chunks", len(j.ChunkKeys), j.TotalChunks)
	}
	if j.Status == StatusTranslationCompleted && j.TranslatedChunks != j.TotalChunks {
		return fmt.Errorf("completed job has %d/%d chunks translated", j.TranslatedChunks, j.TotalChunks)
	}
	return nil
}

func (j *Job) transition(next Status, now time.Time) error {
	if !j.Status.CanTransition(next) {
		return apperrors.State(fmt.Sprintf("job %s cannot move from %s to %s", j.JobID, j.Status, next))
	}
	j.Status = next
	j.UpdatedAt = now
	return nil
}

// BeginChunking moves the job into CHUNKING.
func (j *Job) BeginChunking(now time.Time) error {
	return j.transition(StatusChunking, now)
}

// CompleteChunking records the chunker's output and moves the job into
// CHUNKED.
func (j *Job) CompleteChunking(chunkKeys []string, originalTokens, averageChunkSize int, elapsedMs int64, now time.Time) error {
	if len(chunkKeys) == 0 {
		return apperrors.Fatal(fmt.Errorf("chunking completed with zero chunks"))
	}
	if err := j.transition(StatusChunked, now); err != nil {
		return err
	}
	j.TotalChunks = len(chunkKeys)
	j.ChunkKeys = append([]string(nil), chunkKeys...)
	j.OriginalTokenCount = originalTokens
	j.AverageChunkSize = averageChunkSize
	j.ChunkingProcessingTimeMs = elapsedMs
	return nil
}

// FailChunking moves the job into CHUNKING_FAILED with a reason.
func (j *Job) FailChunking(reason string, now time.Time) error {
	if err := j.transition(StatusChunkingFailed, now); err != nil {
		return err
	}
	j.ErrorMessage = reason
	j.FailedAt = &now
	return nil
}

// AdvanceProgress records the successful translation of chunkIndex.
// It is idempotent per chunk: a repeat call for an already-completed
// index reports advanced=false and changes nothing. The first
// advancement moves the job into TRANSLATION_IN_PROGRESS; the last one
// moves it into TRANSLATION_COMPLETED.
func (j *Job) AdvanceProgress(chunkIndex, tokensUsed int, cost float64, now time.Time) (advanced bool, err error) {
	if j.Status != StatusChunked && j.Status != StatusTranslationInProgress {
		return false, apperrors.State(fmt.Sprintf("job %s is %s; translation progress not accepted", j.JobID, j.Status))
	}
	if chunkIndex < 0 || chunkIndex >= j.TotalChunks {
		return false, apperrors.Validation(fmt.Errorf("chunk index %d out of range for %d chunks", chunkIndex, j.TotalChunks))
	}
	for _, done := range j.CompletedChunks {
		if done == chunkIndex {
			return false, nil
		}
	}

	if j.Status == StatusChunked {
		if err := j.transition(StatusTranslationInProgress, now); err != nil {
			return false, err
		}
		j.TranslationStartedAt = &now
	}

	j.CompletedChunks = append(j.CompletedChunks, chunkIndex)
	j.TranslatedChunks = len(j.CompletedChunks)
	j.TokensUsed += tokensUsed
	j.EstimatedCost += cost
	j.UpdatedAt = now

	if j.TranslatedChunks == j.TotalChunks {
		if err := j.transition(StatusTranslationCompleted, now); err != nil {
			return false, err
		}
		j.TranslationCompletedAt = &now
	}
	return true, nil
}

// FailTranslation moves the job into TRANSLATION_FAILED with the first
// non-retryable error's message. Calling it on an already-terminal job
// is a state error the caller may ignore.
func (j *Job) FailTranslation(reason string, now time.Time) error {
	if err := j.transition(StatusTranslationFailed, now); err != nil {
		return err
	}
	j.ErrorMessage = reason
	j.FailedAt = &now
	return nil
}

// ChunkCompleted reports whether chunkIndex has already been accounted.
func (j *Job) ChunkCompleted(chunkIndex int) bool {
	for _, done := range j.CompletedChunks {
		if done == chunkIndex {
			return true
		}
	}
	return false
}
