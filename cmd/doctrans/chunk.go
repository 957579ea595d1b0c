package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/oukeidos/doctrans/internal/chunker"
	"github.com/oukeidos/doctrans/internal/job"
	"github.com/oukeidos/doctrans/internal/objstore"
	"github.com/oukeidos/doctrans/internal/pipeline"
	"github.com/spf13/cobra"
)

type chunkOptions struct {
	stores       storeOptions
	userID       string
	jobID        string
	fileID       string
	targetLang   string
	tone         string
	chunkSize    int
	contextSize  int
	minChunkSize int
}

func newChunkCmd() *cobra.Command {
	opts := chunkOptions{}
	cmd := &cobra.Command{
		Use:   "chunk <input.txt>",
		Short: "Upload a document and split it into translation chunks",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runChunk(cmd, args[0], &opts)
		},
		SilenceUsage: true,
	}
	cmd.SetUsageTemplate(subcommandUsageTemplate)
	addStoreFlags(cmd, &opts.stores)
	cmd.Flags().StringVar(&opts.userID, "user", "", "Owning user id (required)")
	cmd.Flags().StringVar(&opts.jobID, "job", "", "Job id (generated when empty)")
	cmd.Flags().StringVar(&opts.fileID, "file-id", "", "File id (generated when empty)")
	cmd.Flags().StringVar(&opts.targetLang, "target", "", "Target language code: es, fr, it, de, zh (required)")
	cmd.Flags().StringVar(&opts.tone, "tone", "neutral", "Tone: formal, informal, or neutral")
	cmd.Flags().IntVar(&opts.chunkSize, "chunk-size", chunker.DefaultPrimaryChunkSize, "Primary chunk token budget")
	cmd.Flags().IntVar(&opts.contextSize, "context-size", chunker.DefaultContextSize, "Context excerpt token budget")
	cmd.Flags().IntVar(&opts.minChunkSize, "min-chunk-size", 0, "Minimum chunk token size (0 disables)")
	return cmd
}

func runChunk(cmd *cobra.Command, inputPath string, opts *chunkOptions) error {
	if opts.userID == "" {
		return fmt.Errorf("--user is required")
	}
	if opts.targetLang == "" {
		return fmt.Errorf("--target is required")
	}
	if opts.jobID == "" {
		opts.jobID = uuid.NewString()
	}
	if opts.fileID == "" {
		opts.fileID = uuid.NewString()
	}

	ctx, stop := signalContext()
	defer stop()

	jobs, objects, _, err := openStores(ctx, &opts.stores)
	if err != nil {
		return err
	}

	body, err := os.ReadFile(inputPath)
	if err != nil {
		return fmt.Errorf("failed to read input file: %w", err)
	}

	sourceKey := objstore.SourceKey(opts.userID, opts.fileID, filepath.Base(inputPath))
	if err := objects.Put(ctx, sourceKey, body, map[string]string{
		objstore.MetaUserID: opts.userID,
		objstore.MetaJobID:  opts.jobID,
		objstore.MetaFileID: opts.fileID,
	}); err != nil {
		return err
	}

	now := time.Now().UTC()
	if err := jobs.Create(ctx, &job.Job{
		JobID:          opts.jobID,
		UserID:         opts.userID,
		Status:         job.StatusPendingUpload,
		TargetLanguage: opts.targetLang,
		Tone:           opts.tone,
		FileID:         opts.fileID,
		SourceKey:      sourceKey,
		CreatedAt:      now,
		UpdatedAt:      now,
	}); err != nil {
		return err
	}

	cfg := pipeline.Config{Chunker: chunker.Options{
		PrimaryChunkSize: opts.chunkSize,
		ContextSize:      opts.contextSize,
		MinChunkSize:     opts.minChunkSize,
	}}
	res, err := pipeline.RunChunking(ctx, pipeline.Deps{Jobs: jobs, Objects: objects}, cfg, opts.jobID, opts.userID)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Job: %s\n", opts.jobID)
	fmt.Fprintf(out, "Chunks: %d\n", res.TotalChunks)
	fmt.Fprintf(out, "Original Tokens: %d\n", res.OriginalTokenCount)
	fmt.Fprintf(out, "Average Chunk Size: %d tokens\n", res.AverageChunkSize)
	fmt.Fprintf(out, "Chunking Time: %dms\n", res.ProcessingTimeMs)
	return nil
}
