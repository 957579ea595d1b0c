package main

import (
	"fmt"

	"github.com/oukeidos/doctrans/internal/gemini"
	"github.com/oukeidos/doctrans/internal/job"
	"github.com/oukeidos/doctrans/internal/ratelimit"
	"github.com/spf13/cobra"
)

type statusOptions struct {
	stores    storeOptions
	userID    string
	jobID     string
	modelName string
}

func newStatusCmd() *cobra.Command {
	opts := statusOptions{}
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show job progress and rate-limit usage",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(cmd, &opts)
		},
		SilenceUsage: true,
	}
	cmd.SetUsageTemplate(subcommandUsageTemplate)
	cmd.Flags().StringVar(&opts.stores.redisAddr, "redis", "localhost:6379", "Redis address for job records and rate-limit state")
	cmd.Flags().IntVar(&opts.stores.redisDB, "redis-db", 0, "Redis database number")
	cmd.Flags().StringVar(&opts.userID, "user", "", "Owning user id (required)")
	cmd.Flags().StringVar(&opts.jobID, "job", "", "Job id (required)")
	cmd.Flags().StringVar(&opts.modelName, "model", gemini.DefaultModel, "Model whose rate-limit usage to show")
	return cmd
}

func runStatus(cmd *cobra.Command, opts *statusOptions) error {
	if opts.userID == "" || opts.jobID == "" {
		return fmt.Errorf("--user and --job are required")
	}

	ctx, stop := signalContext()
	defer stop()

	redisClient := openRedis(&opts.stores)
	jobs := job.NewRedisStore(redisClient)

	current, err := jobs.Get(ctx, opts.jobID, opts.userID)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Job: %s\n", current.JobID)
	fmt.Fprintf(out, "Status: %s\n", current.Status)
	fmt.Fprintf(out, "Target: %s (%s)\n", current.TargetLanguage, current.Tone)
	if current.TotalChunks > 0 {
		fmt.Fprintf(out, "Progress: %d/%d chunks\n", current.TranslatedChunks, current.TotalChunks)
	}
	if current.TokensUsed > 0 {
		fmt.Fprintf(out, "Tokens: %d\n", current.TokensUsed)
		fmt.Fprintf(out, "Estimated Cost: $%.5f\n", current.EstimatedCost)
	}
	if current.ErrorMessage != "" {
		fmt.Fprintf(out, "Error: %s\n", current.ErrorMessage)
	}

	limiter, err := openLimiter(redisClient, opts.modelName, ratelimit.Config{})
	if err != nil {
		return err
	}
	usage, err := limiter.Usage(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "\n--- Rate Limits (%s) ---\n", opts.modelName)
	fmt.Fprintf(out, "RPM: %d/%d\n", usage.RPMUsed, usage.RPMLimit)
	fmt.Fprintf(out, "TPM: %d/%d\n", usage.TPMUsed, usage.TPMLimit)
	fmt.Fprintf(out, "RPD: %d/%d\n", usage.RPDUsed, usage.RPDLimit)
	return nil
}
