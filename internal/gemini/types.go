package gemini

import (
	"context"
	"time"
)

// Options controls a single translation request.
type Options struct {
	// TargetLanguage is an ISO 639-1 code from the supported set.
	TargetLanguage string
	// Tone is one of "formal", "informal", "neutral". Empty means neutral.
	Tone string
	// AdditionalInstructions are appended to the prompt verbatim.
	AdditionalInstructions string
	// PreserveFormatting asks the model to keep paragraph breaks and
	// inline structure of the source.
	PreserveFormatting bool
}

// Context carries text that precedes the content being translated.
// It is included in the prompt for continuity only, never translated.
type Context struct {
	PreviousChunks []string
}

// TokensUsed mirrors the usage metadata of one API call.
type TokensUsed struct {
	Input  int `json:"input"`
	Output int `json:"output"`
	Total  int `json:"total"`
}

// Result is the outcome of a successful translation call.
type Result struct {
	TranslatedText   string
	TokensUsed       TokensUsed
	EstimatedCost    float64
	ProcessingTimeMs int64
}

// Translator is the interface workers depend on; *Client implements it
// and MockTranslator stands in for tests.
type Translator interface {
	Translate(ctx context.Context, text string, opts Options, tctx Context) (*Result, error)
}

// Config holds the client settings. Zero values fall back to defaults.
type Config struct {
	Model                      string
	MaxRetries                 int
	InitialRetryDelay          time.Duration
	PricePerMillionInputTokens float64
}

const (
	DefaultModel             = "gemini-3-flash-preview"
	DefaultMaxRetries        = 3
	DefaultInitialRetryDelay = 1000 * time.Millisecond
)

func (c Config) withDefaults() Config {
	if c.Model == "" {
		c.Model = DefaultModel
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = DefaultMaxRetries
	}
	if c.InitialRetryDelay <= 0 {
		c.InitialRetryDelay = DefaultInitialRetryDelay
	}
	if c.PricePerMillionInputTokens <= 0 {
		c.PricePerMillionInputTokens = PriceFor(c.Model)
	}
	return c
}
