// Package pipeline composes the chunking and translation stages over
// the persistence adapters. The CLI and any future event triggers call
// into it; nothing here knows about transport.
package pipeline

import (
	"fmt"

	"github.com/oukeidos/doctrans/internal/chunker"
	"github.com/oukeidos/doctrans/internal/dispatcher"
	"github.com/oukeidos/doctrans/internal/gemini"
	"github.com/oukeidos/doctrans/internal/job"
	"github.com/oukeidos/doctrans/internal/objstore"
	"github.com/oukeidos/doctrans/internal/ratelimit"
	"github.com/oukeidos/doctrans/internal/worker"
)

// Config holds all settings for a pipeline run.
type Config struct {
	Chunker   chunker.Options
	RateLimit ratelimit.Config
	Client    gemini.Config
	Worker    worker.Config
	Dispatch  dispatcher.Config
}

const (
	MinConcurrency = 1
	MaxConcurrency = 20
)

// Normalize applies safe bounds to config values and returns notes for
// any adjustment made. A zero concurrency is left alone; the
// dispatcher fills in its own default.
func (c Config) Normalize() (Config, []string) {
	var notes []string
	if c.Dispatch.Concurrency > MaxConcurrency {
		notes = append(notes, fmt.Sprintf("concurrency clamped from %d to %d (max %d)", c.Dispatch.Concurrency, MaxConcurrency, MaxConcurrency))
		c.Dispatch.Concurrency = MaxConcurrency
	}
	if c.Dispatch.Concurrency < 0 {
		notes = append(notes, fmt.Sprintf("negative concurrency %d raised to %d", c.Dispatch.Concurrency, MinConcurrency))
		c.Dispatch.Concurrency = MinConcurrency
	}
	effective := c.Dispatch.Concurrency
	if effective == 0 {
		effective = dispatcher.DefaultConcurrency
	}
	rpm := c.RateLimit.RequestsPerMinute
	if rpm <= 0 {
		rpm = ratelimit.DefaultRequestsPerMinute
	}
	if effective > rpm {
		notes = append(notes, fmt.Sprintf("concurrency %d exceeds the %d rpm limit; workers beyond it will mostly wait on quota", effective, rpm))
	}
	return c, notes
}

// Validate checks the configuration before a run.
func (c Config) Validate() error {
	if c.Chunker.PrimaryChunkSize < 0 {
		return fmt.Errorf("primary chunk size must be 0 (default) or positive, got %d", c.Chunker.PrimaryChunkSize)
	}
	if c.Chunker.ContextSize < 0 {
		return fmt.Errorf("context size must be 0 (default) or positive, got %d", c.Chunker.ContextSize)
	}
	if c.Chunker.MinChunkSize > 0 && c.Chunker.PrimaryChunkSize > 0 && c.Chunker.MinChunkSize > c.Chunker.PrimaryChunkSize {
		return fmt.Errorf("min chunk size %d exceeds primary chunk size %d", c.Chunker.MinChunkSize, c.Chunker.PrimaryChunkSize)
	}
	return nil
}

// Deps are the external adapters a pipeline run operates on.
type Deps struct {
	Jobs       job.Store
	Objects    objstore.Store
	Limiter    ratelimit.Limiter
	Translator gemini.Translator
}

func (d Deps) validate() error {
	if d.Jobs == nil {
		return fmt.Errorf("job store is required")
	}
	if d.Objects == nil {
		return fmt.Errorf("object store is required")
	}
	return nil
}
