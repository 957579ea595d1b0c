package gemini

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"github.com/oukeidos/doctrans/internal/apperrors"
	"github.com/oukeidos/doctrans/internal/httpclient"
	"google.golang.org/api/option"
)

// Client calls the Gemini API with the bounded retry policy. Safe for
// concurrent use by multiple workers.
type Client struct {
	client *genai.Client
	model  *genai.GenerativeModel
	cfg    Config

	// generate performs one API call; swapped out in tests.
	generate func(ctx context.Context, prompt string) (string, TokensUsed, error)
	// sleep waits between retries; swapped out in tests.
	sleep func(ctx context.Context, d time.Duration) error
}

var _ Translator = (*Client)(nil)

// NewClient creates a Gemini-backed translation client.
//
// Note: option.WithHTTPClient interferes with the genai library's
// internal header injection for API keys, causing 403 errors, so
// timeouts are enforced via context in Translate instead.
func NewClient(ctx context.Context, apiKey string, cfg Config) (*Client, error) {
	cfg = cfg.withDefaults()
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, err
	}
	model := client.GenerativeModel(cfg.Model)
	c := &Client{
		client: client,
		model:  model,
		cfg:    cfg,
		sleep:  sleepCtx,
	}
	c.generate = c.generateContent
	return c, nil
}

// Close closes the underlying genai client.
func (c *Client) Close() error {
	return c.client.Close()
}

// Translate builds the prompt, calls the API, and retries 429/5xx up
// to the configured budget with exponential backoff and jitter.
// Non-retryable classifications (auth, bad request, validation)
// surface immediately.
func (c *Client) Translate(ctx context.Context, text string, opts Options, tctx Context) (*Result, error) {
	prompt, err := buildPrompt(text, opts, tctx)
	if err != nil {
		return nil, err
	}

	started := time.Now()
	var translated string
	var usage TokensUsed

	for attempt := 0; ; attempt++ {
		translated, usage, err = c.generate(ctx, prompt)
		if err == nil {
			break
		}
		if attempt >= c.cfg.MaxRetries || !retryableKind(err) {
			return nil, err
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		if sleepErr := c.sleep(ctx, retryDelay(c.cfg.InitialRetryDelay, attempt)); sleepErr != nil {
			return nil, sleepErr
		}
	}

	return &Result{
		TranslatedText:   translated,
		TokensUsed:       usage,
		EstimatedCost:    CostOf(usage.Input, c.cfg.PricePerMillionInputTokens),
		ProcessingTimeMs: time.Since(started).Milliseconds(),
	}, nil
}

func (c *Client) generateContent(ctx context.Context, prompt string) (string, TokensUsed, error) {
	ctx, cancel := context.WithTimeout(ctx, httpclient.DefaultTimeout)
	defer cancel()

	resp, err := c.model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", TokensUsed{}, classifyGeminiError(err)
	}

	text, err := extractResponseText(resp)
	if err != nil {
		return "", TokensUsed{}, apperrors.Validation(err)
	}

	var usage TokensUsed
	if resp.UsageMetadata != nil {
		usage = TokensUsed{
			Input:  int(resp.UsageMetadata.PromptTokenCount),
			Output: int(resp.UsageMetadata.CandidatesTokenCount),
			Total:  int(resp.UsageMetadata.TotalTokenCount),
		}
	}
	return text, usage, nil
}

// retryDelay computes the wait before retry k as
// initial * 2^k * (1 +/- 0.25 jitter).
func retryDelay(initial time.Duration, attempt int) time.Duration {
	base := float64(initial) * float64(int64(1)<<attempt)
	factor := 0.75 + rand.Float64()*0.5
	return time.Duration(base * factor)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func extractResponseText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil {
		return "", fmt.Errorf("no response received from Gemini")
	}
	if len(resp.Candidates) == 0 {
		return "", fmt.Errorf("no candidates returned from Gemini")
	}
	for _, candidate := range resp.Candidates {
		if candidate.Content == nil || len(candidate.Content.Parts) == 0 {
			continue
		}
		var combined strings.Builder
		for _, part := range candidate.Content.Parts {
			if text, ok := part.(genai.Text); ok {
				combined.WriteString(string(text))
			}
		}
		if combined.Len() > 0 {
			return combined.String(), nil
		}
	}
	return "", fmt.Errorf("no text parts found in Gemini response")
}
