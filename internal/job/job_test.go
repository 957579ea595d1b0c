package job

import (
	"testing"
	"time"

	"github.com/oukeidos/doctrans/internal/apperrors"
)

func newChunkedJob(totalChunks int) *Job {
	keys := make([]string, totalChunks)
	for i := range keys {
		keys[i] = "chunks/u/f/k"
	}
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	return &Job{
		JobID:          "job-1",
		UserID:         "user-1",
		Status:         StatusChunked,
		TargetLanguage: "es",
		Tone:           "neutral",
		TotalChunks:    totalChunks,
		ChunkKeys:      keys,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

func TestStatusTransitions(t *testing.T) {
	allowed := []struct{ from, to Status }{
		{StatusPendingUpload, StatusChunking},
		{StatusChunking, StatusChunked},
		{StatusChunking, StatusChunkingFailed},
		{StatusChunked, StatusTranslationInProgress},
		{StatusChunked, StatusTranslationFailed},
		{StatusTranslationInProgress, StatusTranslationCompleted},
		{StatusTranslationInProgress, StatusTranslationFailed},
	}
	for _, tc := range allowed {
		if !tc.from.CanTransition(tc.to) {
			t.Errorf("%s -> %s should be allowed", tc.from, tc.to)
		}
	}

	denied := []struct{ from, to Status }{
		{StatusChunked, StatusChunking},
		{StatusTranslationCompleted, StatusTranslationFailed},
		{StatusTranslationFailed, StatusTranslationInProgress},
		{StatusChunkingFailed, StatusChunked},
		{StatusPendingUpload, StatusChunked},
		{StatusChunked, StatusTranslationCompleted},
	}
	for _, tc := range denied {
		if tc.from.CanTransition(tc.to) {
			t.Errorf("%s -> %s should be denied", tc.from, tc.to)
		}
	}

	for _, s := range []Status{StatusChunkingFailed, StatusTranslationCompleted, StatusTranslationFailed} {
		if !s.Terminal() {
			t.Errorf("%s should be terminal", s)
		}
	}
}

func TestAdvanceProgress_Lifecycle(t *testing.T) {
	j := newChunkedJob(3)
	now := j.UpdatedAt

	advanced, err := j.AdvanceProgress(1, 100, 0.01, now)
	if err != nil || !advanced {
		t.Fatalf("first advance failed: advanced=%v err=%v", advanced, err)
	}
	if j.Status != StatusTranslationInProgress {
		t.Errorf("first completion should start translation, got %s", j.Status)
	}
	if j.TranslationStartedAt == nil {
		t.Errorf("translationStartedAt not set")
	}

	if _, err := j.AdvanceProgress(0, 100, 0.01, now); err != nil {
		t.Fatal(err)
	}
	if j.Status != StatusTranslationInProgress {
		t.Errorf("mid-flight job should stay in progress, got %s", j.Status)
	}

	advanced, err = j.AdvanceProgress(2, 100, 0.01, now)
	if err != nil || !advanced {
		t.Fatalf("final advance failed: advanced=%v err=%v", advanced, err)
	}
	if j.Status != StatusTranslationCompleted {
		t.Errorf("job should be completed, got %s", j.Status)
	}
	if j.TranslatedChunks != 3 || j.TokensUsed != 300 {
		t.Errorf("totals wrong: chunks=%d tokens=%d", j.TranslatedChunks, j.TokensUsed)
	}
	if j.TranslationCompletedAt == nil {
		t.Errorf("translationCompletedAt not set")
	}
}

func TestAdvanceProgress_Idempotent(t *testing.T) {
	j := newChunkedJob(2)
	now := j.UpdatedAt

	if _, err := j.AdvanceProgress(0, 100, 0.5, now); err != nil {
		t.Fatal(err)
	}
	advanced, err := j.AdvanceProgress(0, 100, 0.5, now)
	if err != nil {
		t.Fatal(err)
	}
	if advanced {
		t.Errorf("repeat advance for the same chunk must be a no-op")
	}
	if j.TranslatedChunks != 1 || j.TokensUsed != 100 || j.EstimatedCost != 0.5 {
		t.Errorf("double-accounted: chunks=%d tokens=%d cost=%v", j.TranslatedChunks, j.TokensUsed, j.EstimatedCost)
	}
}

func TestAdvanceProgress_OutOfOrderCompletion(t *testing.T) {
	j := newChunkedJob(10)
	now := j.UpdatedAt
	for _, idx := range []int{0, 2, 1, 4, 3, 5, 6, 8, 7, 9} {
		if _, err := j.AdvanceProgress(idx, 10, 0.001, now); err != nil {
			t.Fatalf("advance %d failed: %v", idx, err)
		}
		if j.TranslatedChunks > j.TotalChunks {
			t.Fatalf("translatedChunks %d exceeded total %d", j.TranslatedChunks, j.TotalChunks)
		}
	}
	if j.Status != StatusTranslationCompleted {
		t.Errorf("out-of-order completion should still finish the job, got %s", j.Status)
	}
}

func TestAdvanceProgress_Preconditions(t *testing.T) {
	j := newChunkedJob(2)
	now := j.UpdatedAt

	if _, err := j.AdvanceProgress(5, 10, 0, now); err == nil {
		t.Errorf("out-of-range index should fail")
	} else if kind, _ := apperrors.KindOf(err); kind != apperrors.KindValidation {
		t.Errorf("expected validation error, got %q", kind)
	}

	j.Status = StatusPendingUpload
	if _, err := j.AdvanceProgress(0, 10, 0, now); err == nil {
		t.Errorf("advance on a non-chunked job should fail")
	} else if kind, _ := apperrors.KindOf(err); kind != apperrors.KindState {
		t.Errorf("expected state error, got %q", kind)
	}
}

func TestFailTranslation(t *testing.T) {
	j := newChunkedJob(2)
	now := j.UpdatedAt
	if err := j.FailTranslation("Gemini authentication failed (401).", now); err != nil {
		t.Fatal(err)
	}
	if j.Status != StatusTranslationFailed || j.ErrorMessage == "" || j.FailedAt == nil {
		t.Errorf("failure not recorded: %+v", j)
	}
	// A terminal job accepts no further failure writes.
	if err := j.FailTranslation("again", now); err == nil {
		t.Errorf("double-fail should be a state error")
	}
}

func TestCompleteChunking(t *testing.T) {
	now := time.Now()
	j := &Job{JobID: "j", UserID: "u", Status: StatusPendingUpload, CreatedAt: now, UpdatedAt: now}
	if err := j.BeginChunking(now); err != nil {
		t.Fatal(err)
	}
	keys := []string{"chunks/u/f/a.json", "chunks/u/f/b.json"}
	if err := j.CompleteChunking(keys, 900, 450, 12, now); err != nil {
		t.Fatal(err)
	}
	if j.Status != StatusChunked || j.TotalChunks != 2 {
		t.Errorf("chunking not recorded: status=%s total=%d", j.Status, j.TotalChunks)
	}
	if err := j.Validate(); err != nil {
		t.Errorf("chunked job should validate: %v", err)
	}

	empty := &Job{JobID: "j2", UserID: "u", Status: StatusChunking, CreatedAt: now, UpdatedAt: now}
	if err := empty.CompleteChunking(nil, 0, 0, 0, now); err == nil {
		t.Errorf("zero-chunk completion must fail")
	}
}
