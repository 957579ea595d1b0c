package ratelimit

import "context"

// Limiter is consulted by every worker before each LLM call.
//
// Acquire reserves one request slot and estimatedTokens from the TPM
// bucket; on grant all three buckets decrement atomically. A denial
// carries the advisory wait of the blocking bucket. Storage failures
// surface as errors; the limiter never silently permits a request in
// the absence of state.
//
// Consume reconciles the TPM reservation after the call, when actual
// usage is known. Reset restores pristine buckets; it exists for tests
// and operational resets.
type Limiter interface {
	Acquire(ctx context.Context, estimatedTokens int) (Decision, error)
	Consume(ctx context.Context, estimatedTokens, actualTokens int) error
	Usage(ctx context.Context) (Usage, error)
	Reset(ctx context.Context) error
}
