package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/oukeidos/doctrans/internal/auth"
	"github.com/oukeidos/doctrans/internal/cleanup"
	"github.com/oukeidos/doctrans/internal/job"
	"github.com/oukeidos/doctrans/internal/logger"
	"github.com/oukeidos/doctrans/internal/objstore"
	"github.com/oukeidos/doctrans/internal/pipeline"
	"github.com/oukeidos/doctrans/internal/ratelimit"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var (
	isTerminal   = term.IsTerminal
	getKey       = auth.GetKey
	getEnvKey    = auth.GetEnvKey
	getStatus    = auth.GetStatus
	promptForKey = auth.PromptForAPIKey
)

// resolveAPIKey handles the logic for finding the Gemini API key.
func resolveAPIKey(allowEnv, envOnly bool) (string, string, error) {
	if envOnly {
		if key, ok := getEnvKey(); ok {
			return key, "Environment Variable", nil
		}
		return "", "", fmt.Errorf("env-only set but GEMINI_API_KEY is not set")
	}

	if key, source := getKey(false); key != "" {
		return key, source, nil
	}

	if allowEnv {
		if key, ok := getEnvKey(); ok {
			return key, "Environment Variable", nil
		}
	}

	if isTerminal(int(os.Stdin.Fd())) {
		key, err := promptForKey("Gemini API Key (press Enter to skip): ")
		if err != nil {
			return "", "", fmt.Errorf("error reading API key: %w", err)
		}
		if strings.TrimSpace(key) != "" {
			return strings.TrimSpace(key), "Terminal Prompt", nil
		}
	}

	if !isTerminal(int(os.Stdin.Fd())) {
		return "", "", fmt.Errorf("no API key available (non-interactive shell); set keychain or use --allow-env")
	}
	if allowEnv {
		return "", "", fmt.Errorf("API key is required; not found in keychain or environment")
	}
	return "", "", fmt.Errorf("API key is required; not found in keychain (environment disabled by default; use --allow-env)")
}

// storeOptions name the shared backing stores.
type storeOptions struct {
	redisAddr string
	redisDB   int
	bucket    string
}

func addStoreFlags(cmd *cobra.Command, opts *storeOptions) {
	cmd.Flags().StringVar(&opts.redisAddr, "redis", "localhost:6379", "Redis address for job records and rate-limit state")
	cmd.Flags().IntVar(&opts.redisDB, "redis-db", 0, "Redis database number")
	cmd.Flags().StringVar(&opts.bucket, "bucket", "", "S3 bucket holding source, chunk, and translated objects")
}

func openRedis(opts *storeOptions) *redis.Client {
	client := redis.NewClient(&redis.Options{Addr: opts.redisAddr, DB: opts.redisDB})
	cleanup.Register(client.Close)
	return client
}

func openStores(ctx context.Context, opts *storeOptions) (job.Store, objstore.Store, *redis.Client, error) {
	if opts.bucket == "" {
		return nil, nil, nil, fmt.Errorf("an S3 bucket is required; set --bucket")
	}
	objects, err := objstore.NewS3Store(ctx, opts.bucket)
	if err != nil {
		return nil, nil, nil, err
	}
	client := openRedis(opts)
	return job.NewRedisStore(client), objects, client, nil
}

func openLimiter(client *redis.Client, apiID string, cfg ratelimit.Config) (ratelimit.Limiter, error) {
	return ratelimit.NewStoreLimiter(ratelimit.NewRedisStateStore(client), apiID, cfg)
}

func printTranslationStats(cmd *cobra.Command, res pipeline.TranslationResult, duration time.Duration, model string) {
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "\n--- Execution Stats ---")
	fmt.Fprintf(out, "Time: %s\n", duration)
	fmt.Fprintf(out, "Model: %s\n", model)
	fmt.Fprintf(out, "Job Status: %s\n", res.JobStatus)
	fmt.Fprintf(out, "Chunks: %d/%d\n", res.TranslatedChunks, res.TotalChunks)
	if res.TokensUsed > 0 {
		fmt.Fprintf(out, "Tokens: %d\n", res.TokensUsed)
		fmt.Fprintf(out, "Estimated Cost: $%.5f\n", res.EstimatedCost)
	}
	if res.ErrorMessage != "" {
		fmt.Fprintf(out, "Error: %s\n", res.ErrorMessage)
	}
}

func signalContext() (context.Context, func()) {
	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Warn("Cancellation requested")
		cancel()
	}()
	stop := func() {
		signal.Stop(sigCh)
		cancel()
	}
	return ctx, stop
}
