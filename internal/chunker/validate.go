package chunker

import (
	"fmt"
	"strings"

	"github.com/oukeidos/doctrans/internal/tokens"
)

// Validate checks a chunk against every size invariant. The chunker
// calls it on each emitted chunk; stores may call it on read to guard
// against records written by a buggy producer.
func (c *Chunker) Validate(ch Chunk) error {
	if strings.TrimSpace(ch.PrimaryContent) == "" {
		return fmt.Errorf("primary content is empty")
	}
	if ch.ChunkIndex < 0 || ch.ChunkIndex >= ch.TotalChunks {
		return fmt.Errorf("chunk index %d out of range for %d chunks", ch.ChunkIndex, ch.TotalChunks)
	}
	if ch.ChunkID == "" {
		return fmt.Errorf("chunk id is empty")
	}

	if n := tokens.Estimate(ch.PrimaryContent); n > c.primaryMax {
		return fmt.Errorf("primary content is %d tokens, limit %d", n, c.primaryMax)
	}
	if c.minSize > 0 && ch.ChunkIndex < ch.TotalChunks-1 {
		if n := tokens.Estimate(ch.PrimaryContent); n < c.minSize {
			return fmt.Errorf("primary content is %d tokens, minimum %d", n, c.minSize)
		}
	}

	if n := tokens.Estimate(ch.PreviousSummary); n > c.contextMax {
		return fmt.Errorf("previous summary is %d tokens, limit %d", n, c.contextMax)
	}
	if n := tokens.Estimate(ch.NextPreview); n > c.contextMax {
		return fmt.Errorf("next preview is %d tokens, limit %d", n, c.contextMax)
	}

	if ch.ChunkIndex == 0 && ch.PreviousSummary != "" {
		return fmt.Errorf("first chunk must have no previous summary")
	}
	if ch.ChunkIndex == ch.TotalChunks-1 && ch.NextPreview != "" {
		return fmt.Errorf("last chunk must have no next preview")
	}
	return nil
}
