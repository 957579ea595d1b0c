package main

import (
	"fmt"
	"time"

	"github.com/oukeidos/doctrans/internal/cleanup"
	"github.com/oukeidos/doctrans/internal/dispatcher"
	"github.com/oukeidos/doctrans/internal/gemini"
	"github.com/oukeidos/doctrans/internal/logger"
	"github.com/oukeidos/doctrans/internal/pipeline"
	"github.com/oukeidos/doctrans/internal/ratelimit"
	"github.com/spf13/cobra"
)

type translateOptions struct {
	stores      storeOptions
	userID      string
	jobID       string
	modelName   string
	concurrency int
	maxRetries  int
	rpm         int
	tpm         int
	rpd         int
	timezone    string
	allowEnv    bool
	envOnly     bool
}

func newTranslateCmd() *cobra.Command {
	opts := translateOptions{}
	cmd := &cobra.Command{
		Use:   "translate",
		Short: "Translate every pending chunk of a chunked job",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTranslate(cmd, &opts)
		},
		SilenceUsage: true,
	}
	cmd.SetUsageTemplate(subcommandUsageTemplate)
	addStoreFlags(cmd, &opts.stores)
	cmd.Flags().StringVar(&opts.userID, "user", "", "Owning user id (required)")
	cmd.Flags().StringVar(&opts.jobID, "job", "", "Job id (required)")
	cmd.Flags().StringVar(&opts.modelName, "model", gemini.DefaultModel, "Gemini model name")
	cmd.Flags().IntVar(&opts.concurrency, "concurrency", dispatcher.DefaultConcurrency, "Concurrent chunk workers")
	cmd.Flags().IntVar(&opts.maxRetries, "max-retries", gemini.DefaultMaxRetries, "Per-call retry budget for 429/5xx")
	cmd.Flags().IntVar(&opts.rpm, "rpm", ratelimit.DefaultRequestsPerMinute, "Requests-per-minute limit")
	cmd.Flags().IntVar(&opts.tpm, "tpm", ratelimit.DefaultTokensPerMinute, "Tokens-per-minute limit")
	cmd.Flags().IntVar(&opts.rpd, "rpd", ratelimit.DefaultRequestsPerDay, "Requests-per-day limit")
	cmd.Flags().StringVar(&opts.timezone, "reset-timezone", ratelimit.DefaultTimezone, "Timezone of the daily reset")
	cmd.Flags().BoolVar(&opts.allowEnv, "allow-env", false, "Allow GEMINI_API_KEY from the environment")
	cmd.Flags().BoolVar(&opts.envOnly, "env-only", false, "Use only the environment for the API key")
	return cmd
}

func runTranslate(cmd *cobra.Command, opts *translateOptions) error {
	if opts.userID == "" || opts.jobID == "" {
		return fmt.Errorf("--user and --job are required")
	}

	apiKey, source, err := resolveAPIKey(opts.allowEnv, opts.envOnly)
	if err != nil {
		return err
	}
	logger.Info("API key resolved", "source", source)

	ctx, stop := signalContext()
	defer stop()

	jobs, objects, redisClient, err := openStores(ctx, &opts.stores)
	if err != nil {
		return err
	}

	limitCfg := ratelimit.Config{
		RequestsPerMinute:  opts.rpm,
		TokensPerMinute:    opts.tpm,
		RequestsPerDay:     opts.rpd,
		DailyResetTimezone: opts.timezone,
	}
	limiter, err := openLimiter(redisClient, opts.modelName, limitCfg)
	if err != nil {
		return err
	}

	client, err := gemini.NewClient(ctx, apiKey, gemini.Config{
		Model:      opts.modelName,
		MaxRetries: opts.maxRetries,
	})
	if err != nil {
		return fmt.Errorf("failed to create Gemini client: %w", err)
	}
	cleanup.Register(client.Close)

	cfg := pipeline.Config{RateLimit: limitCfg}
	cfg.Dispatch.Concurrency = opts.concurrency

	started := time.Now()
	res, err := pipeline.RunTranslation(ctx, pipeline.Deps{
		Jobs:       jobs,
		Objects:    objects,
		Limiter:    limiter,
		Translator: client,
	}, cfg, opts.jobID, opts.userID)
	printTranslationStats(cmd, res, time.Since(started), opts.modelName)
	return err
}
