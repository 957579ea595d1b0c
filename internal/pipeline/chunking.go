package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/oukeidos/doctrans/internal/apperrors"
	"github.com/oukeidos/doctrans/internal/chunker"
	"github.com/oukeidos/doctrans/internal/job"
	"github.com/oukeidos/doctrans/internal/logger"
	"github.com/oukeidos/doctrans/internal/objstore"
)

// ChunkingResult summarizes a completed chunking stage.
type ChunkingResult struct {
	TotalChunks        int
	OriginalTokenCount int
	AverageChunkSize   int
	ProcessingTimeMs   int64
	ChunkKeys          []string
}

// RunChunking splits a job's source document into chunk records. The
// job moves PENDING_UPLOAD -> CHUNKING -> CHUNKED; any failure lands
// it in CHUNKING_FAILED with a reason. Chunk objects are written
// strictly in index order.
func RunChunking(ctx context.Context, deps Deps, cfg Config, jobID, userID string) (ChunkingResult, error) {
	if err := deps.validate(); err != nil {
		return ChunkingResult{}, apperrors.Validation(err)
	}
	cfg, notes := cfg.Normalize()
	for _, note := range notes {
		logger.Warn("Config normalized", "detail", note)
	}
	if err := cfg.Validate(); err != nil {
		return ChunkingResult{}, apperrors.Validation(fmt.Errorf("invalid configuration: %w", err))
	}

	current, err := deps.Jobs.Get(ctx, jobID, userID)
	if err != nil {
		return ChunkingResult{}, err
	}

	if _, err := deps.Jobs.Update(ctx, jobID, userID, func(j *job.Job) error {
		return j.BeginChunking(time.Now().UTC())
	}); err != nil {
		return ChunkingResult{}, err
	}

	res, err := chunkSource(ctx, deps, cfg, current)
	if err != nil {
		reason := apperrors.PublicMessage(err)
		if _, failErr := deps.Jobs.Update(ctx, jobID, userID, func(j *job.Job) error {
			return j.FailChunking(reason, time.Now().UTC())
		}); failErr != nil {
			logger.Warn("Could not record chunking failure", "job", jobID, "error", failErr)
		}
		return ChunkingResult{}, err
	}

	if _, err := deps.Jobs.Update(ctx, jobID, userID, func(j *job.Job) error {
		return j.CompleteChunking(res.ChunkKeys, res.OriginalTokenCount, res.AverageChunkSize, res.ProcessingTimeMs, time.Now().UTC())
	}); err != nil {
		return ChunkingResult{}, err
	}

	logger.Info("Chunking completed", "job", jobID, "chunks", res.TotalChunks, "avg_chunk_size", res.AverageChunkSize)
	return res, nil
}

func chunkSource(ctx context.Context, deps Deps, cfg Config, current *job.Job) (ChunkingResult, error) {
	if current.SourceKey == "" {
		return ChunkingResult{}, apperrors.Fatal(fmt.Errorf("job %s has no source key", current.JobID))
	}
	src, err := deps.Objects.Get(ctx, current.SourceKey)
	if err != nil {
		return ChunkingResult{}, err
	}

	// The source object must carry its ownership metadata; a bare
	// object cannot be attributed and chunking it would be unsafe.
	for _, key := range []string{objstore.MetaUserID, objstore.MetaJobID, objstore.MetaFileID} {
		if src.Metadata[key] == "" {
			return ChunkingResult{}, apperrors.Fatal(fmt.Errorf("source object %s is missing required metadata %q", current.SourceKey, key))
		}
	}
	if src.Metadata[objstore.MetaUserID] != current.UserID || src.Metadata[objstore.MetaJobID] != current.JobID {
		return ChunkingResult{}, apperrors.Fatal(fmt.Errorf("source object %s metadata does not match job %s", current.SourceKey, current.JobID))
	}

	result, err := chunker.New(cfg.Chunker).Chunk(string(src.Body))
	if err != nil {
		return ChunkingResult{}, err
	}

	keys := make([]string, 0, len(result.Chunks))
	for _, ch := range result.Chunks {
		body, err := json.Marshal(ch)
		if err != nil {
			return ChunkingResult{}, apperrors.Storage(fmt.Errorf("encoding chunk %d: %w", ch.ChunkIndex, err))
		}
		key := objstore.ChunkKey(current.UserID, current.FileID, ch.ChunkID)
		if err := deps.Objects.Put(ctx, key, body, map[string]string{
			objstore.MetaUserID: current.UserID,
			objstore.MetaJobID:  current.JobID,
			objstore.MetaFileID: current.FileID,
		}); err != nil {
			return ChunkingResult{}, err
		}
		keys = append(keys, key)
	}

	return ChunkingResult{
		TotalChunks:        result.Metadata.TotalChunks,
		OriginalTokenCount: result.Metadata.OriginalTokenCount,
		AverageChunkSize:   result.Metadata.AverageChunkSize,
		ProcessingTimeMs:   result.Metadata.ProcessingTimeMs,
		ChunkKeys:          keys,
	}, nil
}
