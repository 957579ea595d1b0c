// Package chunker partitions long-form text into translator-sized chunks
// while preserving sentence boundaries. Each chunk carries bounded context
// excerpts from its neighbors so that chunks can be translated
// independently yet coherently.
package chunker

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/oukeidos/doctrans/internal/apperrors"
	"github.com/oukeidos/doctrans/internal/tokens"
)

const (
	// DefaultPrimaryChunkSize is the per-chunk token budget for primary
	// content. Kept below the model's practical window so context
	// excerpts and prompt scaffolding fit on top.
	DefaultPrimaryChunkSize = 3500
	// DefaultContextSize is the token budget for each context excerpt.
	DefaultContextSize = 250
)

// Options configures a Chunker. Zero values fall back to defaults.
type Options struct {
	PrimaryChunkSize int
	ContextSize      int
	// MinChunkSize, when positive, is enforced for every chunk except
	// the last (a short document's sole chunk is always allowed).
	MinChunkSize int
	// SentenceTerminators override the default set of ". ! ?".
	SentenceTerminators []rune
}

// Chunk is one translator-sized unit of a document. Created once by the
// chunker and read-only thereafter.
type Chunk struct {
	ChunkID         string `json:"chunkId"`
	ChunkIndex      int    `json:"chunkIndex"`
	TotalChunks     int    `json:"totalChunks"`
	PrimaryContent  string `json:"primaryContent"`
	PreviousSummary string `json:"previousSummary"`
	NextPreview     string `json:"nextPreview"`
}

// Metadata summarizes a chunking run.
type Metadata struct {
	TotalChunks        int   `json:"totalChunks"`
	OriginalTokenCount int   `json:"originalTokenCount"`
	AverageChunkSize   int   `json:"averageChunkSize"`
	ProcessingTimeMs   int64 `json:"processingTimeMs"`
}

// Result is the output of a chunking run.
type Result struct {
	Chunks   []Chunk  `json:"chunks"`
	Metadata Metadata `json:"metadata"`
}

// Chunker splits documents under a fixed token budget.
type Chunker struct {
	primaryMax  int
	contextMax  int
	minSize     int
	terminators map[rune]bool
}

// New returns a Chunker with defaults applied for unset options.
func New(opts Options) *Chunker {
	c := &Chunker{
		primaryMax: opts.PrimaryChunkSize,
		contextMax: opts.ContextSize,
		minSize:    opts.MinChunkSize,
	}
	if c.primaryMax <= 0 {
		c.primaryMax = DefaultPrimaryChunkSize
	}
	if c.contextMax <= 0 {
		c.contextMax = DefaultContextSize
	}
	terms := opts.SentenceTerminators
	if len(terms) == 0 {
		terms = []rune{'.', '!', '?'}
	}
	c.terminators = make(map[rune]bool, len(terms))
	for _, r := range terms {
		c.terminators[r] = true
	}
	return c
}

// group is a packed run of sentences forming one chunk's primary content.
type group struct {
	sentences []string
	count     tokens.Count
}

func (g group) text() string {
	return strings.Join(g.sentences, " ")
}

// Chunk splits text into an ordered chunk sequence. The concatenation of
// all primary contents in order reproduces the sentence stream of the
// input up to whitespace normalization. Empty input is a validation
// error; the chunker never emits zero chunks.
func (c *Chunker) Chunk(text string) (*Result, error) {
	start := time.Now()

	if strings.TrimSpace(text) == "" {
		return nil, apperrors.Validation(fmt.Errorf("cannot chunk empty or whitespace-only input"))
	}

	sentences := splitSentences(text, c.terminators)
	if len(sentences) == 0 {
		return nil, apperrors.Validation(fmt.Errorf("no sentences found in input"))
	}

	groups := c.pack(sentences)
	total := len(groups)

	chunks := make([]Chunk, total)
	for i, g := range groups {
		chunks[i] = Chunk{
			ChunkID:        chunkID(i, total),
			ChunkIndex:     i,
			TotalChunks:    total,
			PrimaryContent: g.text(),
		}
		if i > 0 {
			chunks[i].PreviousSummary = c.trailingExcerpt(groups[i-1])
		}
		if i < total-1 {
			chunks[i].NextPreview = c.leadingExcerpt(groups[i+1])
		}
	}

	// Self-check every emitted chunk. A violation here is a bug in the
	// packing above and must abort the job loudly.
	for i := range chunks {
		if err := c.Validate(chunks[i]); err != nil {
			return nil, apperrors.Fatal(fmt.Errorf("chunk %d failed validation: %w", i, err))
		}
	}

	originalTokens := tokens.Estimate(strings.Join(sentences, " "))
	return &Result{
		Chunks: chunks,
		Metadata: Metadata{
			TotalChunks:        total,
			OriginalTokenCount: originalTokens,
			AverageChunkSize:   originalTokens / total,
			ProcessingTimeMs:   time.Since(start).Milliseconds(),
		},
	}, nil
}

// pack walks sentences in order and accumulates them greedily until the
// next sentence would exceed the primary budget. A sentence that alone
// exceeds the budget is split on word boundaries; its final piece stays
// open so following sentences can still fill it.
func (c *Chunker) pack(sentences []string) []group {
	var groups []group
	var cur group

	flush := func() {
		if len(cur.sentences) > 0 {
			groups = append(groups, cur)
			cur = group{}
		}
	}

	for _, sentence := range sentences {
		m := tokens.Measure(sentence)
		if m.Tokens() > c.primaryMax {
			flush()
			pieces := splitOversized(sentence, c.primaryMax)
			for _, piece := range pieces[:len(pieces)-1] {
				groups = append(groups, group{
					sentences: []string{piece},
					count:     tokens.Measure(piece),
				})
			}
			last := pieces[len(pieces)-1]
			cur = group{sentences: []string{last}, count: tokens.Measure(last)}
			continue
		}

		joined := cur.count.Join(m)
		if len(cur.sentences) > 0 && joined.Tokens() > c.primaryMax {
			flush()
			joined = m
		}
		cur.sentences = append(cur.sentences, sentence)
		cur.count = joined
	}
	flush()
	return groups
}

// trailingExcerpt returns the suffix of a group's primary content that
// fits the context budget, cut at a sentence boundary where possible and
// at a word boundary otherwise.
func (c *Chunker) trailingExcerpt(g group) string {
	var picked []string
	var acc tokens.Count
	for i := len(g.sentences) - 1; i >= 0; i-- {
		m := tokens.Measure(g.sentences[i])
		joined := m.Join(acc)
		if joined.Tokens() > c.contextMax {
			break
		}
		picked = append([]string{g.sentences[i]}, picked...)
		acc = joined
	}
	if len(picked) > 0 {
		return strings.Join(picked, " ")
	}
	// No whole sentence fits: fall back to the trailing words of the
	// last sentence.
	words := strings.Fields(g.sentences[len(g.sentences)-1])
	return joinBudgetedSuffix(words, c.contextMax)
}

// leadingExcerpt is the mirror of trailingExcerpt for the following
// chunk's primary content.
func (c *Chunker) leadingExcerpt(g group) string {
	var picked []string
	var acc tokens.Count
	for _, sentence := range g.sentences {
		m := tokens.Measure(sentence)
		joined := acc.Join(m)
		if joined.Tokens() > c.contextMax {
			break
		}
		picked = append(picked, sentence)
		acc = joined
	}
	if len(picked) > 0 {
		return strings.Join(picked, " ")
	}
	words := strings.Fields(g.sentences[0])
	return joinBudgetedPrefix(words, c.contextMax)
}

func joinBudgetedPrefix(words []string, budget int) string {
	var acc tokens.Count
	end := 0
	for _, w := range words {
		joined := acc.Join(tokens.Measure(w))
		if joined.Tokens() > budget {
			break
		}
		acc = joined
		end++
	}
	return strings.Join(words[:end], " ")
}

func joinBudgetedSuffix(words []string, budget int) string {
	var acc tokens.Count
	start := len(words)
	for i := len(words) - 1; i >= 0; i-- {
		joined := tokens.Measure(words[i]).Join(acc)
		if joined.Tokens() > budget {
			break
		}
		acc = joined
		start = i
	}
	return strings.Join(words[start:], " ")
}

func chunkID(index, total int) string {
	suffix := strings.SplitN(uuid.NewString(), "-", 2)[0]
	return fmt.Sprintf("chunk-%04d-of-%04d-%s", index, total, suffix)
}
