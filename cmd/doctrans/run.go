package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/oukeidos/doctrans/internal/chunker"
	"github.com/oukeidos/doctrans/internal/cleanup"
	"github.com/oukeidos/doctrans/internal/dispatcher"
	"github.com/oukeidos/doctrans/internal/gemini"
	"github.com/oukeidos/doctrans/internal/job"
	"github.com/oukeidos/doctrans/internal/logger"
	"github.com/oukeidos/doctrans/internal/objstore"
	"github.com/oukeidos/doctrans/internal/pipeline"
	"github.com/oukeidos/doctrans/internal/ratelimit"
	"github.com/spf13/cobra"
)

type runOptions struct {
	targetLang  string
	tone        string
	modelName   string
	chunkSize   int
	contextSize int
	concurrency int
	rpm         int
	tpm         int
	rpd         int
	allowEnv    bool
	envOnly     bool
}

// newRunCmd translates a local file end to end in one process, with
// in-memory stores and the single-process limiter. No Redis or S3
// required.
func newRunCmd() *cobra.Command {
	opts := runOptions{}
	cmd := &cobra.Command{
		Use:   "run <input.txt> <output-dir>",
		Short: "Chunk and translate a local document in one process",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLocal(cmd, args[0], args[1], &opts)
		},
		SilenceUsage: true,
	}
	cmd.SetUsageTemplate(subcommandUsageTemplate)
	cmd.Flags().StringVar(&opts.targetLang, "target", "", "Target language code: es, fr, it, de, zh (required)")
	cmd.Flags().StringVar(&opts.tone, "tone", "neutral", "Tone: formal, informal, or neutral")
	cmd.Flags().StringVar(&opts.modelName, "model", gemini.DefaultModel, "Gemini model name")
	cmd.Flags().IntVar(&opts.chunkSize, "chunk-size", chunker.DefaultPrimaryChunkSize, "Primary chunk token budget")
	cmd.Flags().IntVar(&opts.contextSize, "context-size", chunker.DefaultContextSize, "Context excerpt token budget")
	cmd.Flags().IntVar(&opts.concurrency, "concurrency", dispatcher.DefaultConcurrency, "Concurrent chunk workers")
	cmd.Flags().IntVar(&opts.rpm, "rpm", ratelimit.DefaultRequestsPerMinute, "Requests-per-minute limit")
	cmd.Flags().IntVar(&opts.tpm, "tpm", ratelimit.DefaultTokensPerMinute, "Tokens-per-minute limit")
	cmd.Flags().IntVar(&opts.rpd, "rpd", ratelimit.DefaultRequestsPerDay, "Requests-per-day limit")
	cmd.Flags().BoolVar(&opts.allowEnv, "allow-env", false, "Allow GEMINI_API_KEY from the environment")
	cmd.Flags().BoolVar(&opts.envOnly, "env-only", false, "Use only the environment for the API key")
	return cmd
}

func runLocal(cmd *cobra.Command, inputPath, outputDir string, opts *runOptions) error {
	if opts.targetLang == "" {
		return fmt.Errorf("--target is required")
	}

	apiKey, source, err := resolveAPIKey(opts.allowEnv, opts.envOnly)
	if err != nil {
		return err
	}
	logger.Info("API key resolved", "source", source)

	body, err := os.ReadFile(inputPath)
	if err != nil {
		return fmt.Errorf("failed to read input file: %w", err)
	}
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	ctx, stop := signalContext()
	defer stop()

	limiter, err := ratelimit.NewLocal(ratelimit.Config{
		RequestsPerMinute: opts.rpm,
		TokensPerMinute:   opts.tpm,
		RequestsPerDay:    opts.rpd,
	})
	if err != nil {
		return err
	}
	client, err := gemini.NewClient(ctx, apiKey, gemini.Config{Model: opts.modelName})
	if err != nil {
		return fmt.Errorf("failed to create Gemini client: %w", err)
	}
	cleanup.Register(client.Close)

	jobs := job.NewMemoryStore()
	objects := objstore.NewMemoryStore()
	deps := pipeline.Deps{Jobs: jobs, Objects: objects, Limiter: limiter, Translator: client}

	userID := "local"
	jobID := uuid.NewString()
	fileID := uuid.NewString()
	sourceKey := objstore.SourceKey(userID, fileID, filepath.Base(inputPath))
	if err := objects.Put(ctx, sourceKey, body, map[string]string{
		objstore.MetaUserID: userID,
		objstore.MetaJobID:  jobID,
		objstore.MetaFileID: fileID,
	}); err != nil {
		return err
	}
	now := time.Now().UTC()
	if err := jobs.Create(ctx, &job.Job{
		JobID:          jobID,
		UserID:         userID,
		Status:         job.StatusPendingUpload,
		TargetLanguage: opts.targetLang,
		Tone:           opts.tone,
		FileID:         fileID,
		SourceKey:      sourceKey,
		CreatedAt:      now,
		UpdatedAt:      now,
	}); err != nil {
		return err
	}

	cfg := pipeline.Config{
		Chunker: chunker.Options{PrimaryChunkSize: opts.chunkSize, ContextSize: opts.contextSize},
	}
	cfg.Dispatch.Concurrency = opts.concurrency

	chRes, err := pipeline.RunChunking(ctx, deps, cfg, jobID, userID)
	if err != nil {
		return err
	}
	logger.Info("Chunking completed", "chunks", chRes.TotalChunks)

	started := time.Now()
	trRes, err := pipeline.RunTranslation(ctx, deps, cfg, jobID, userID)
	printTranslationStats(cmd, trRes, time.Since(started), opts.modelName)
	if err != nil {
		return err
	}

	// Write each translated chunk to its own file, in index order.
	for i := 0; i < chRes.TotalChunks; i++ {
		obj, err := objects.Get(ctx, objstore.TranslatedChunkKey(jobID, i))
		if err != nil {
			return fmt.Errorf("translated chunk %d missing: %w", i, err)
		}
		name := filepath.Join(outputDir, fmt.Sprintf("chunk-%04d.txt", i))
		if err := os.WriteFile(name, obj.Body, 0o644); err != nil {
			return fmt.Errorf("failed to write %s: %w", name, err)
		}
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Wrote %d translated chunks to %s\n", chRes.TotalChunks, outputDir)
	return nil
}
