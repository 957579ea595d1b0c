package chunker

import (
	"fmt"
	"strings"
	"testing"

	"github.com/oukeidos/doctrans/internal/apperrors"
	"github.com/oukeidos/doctrans/internal/tokens"
)

func sampleText(sentences int) string {
	var b strings.Builder
	for i := 0; i < sentences; i++ {
		fmt.Fprintf(&b, "Sentence number %d carries a handful of ordinary words for testing purposes. ", i)
	}
	return b.String()
}

func TestChunk_EmptyInput(t *testing.T) {
	c := New(Options{})
	for _, input := range []string{"", "   ", "\n\n\t "} {
		_, err := c.Chunk(input)
		if err == nil {
			t.Fatalf("expected error for input %q", input)
		}
		if kind, _ := apperrors.KindOf(err); kind != apperrors.KindValidation {
			t.Errorf("expected validation error, got kind %q", kind)
		}
	}
}

func TestChunk_SingleChunk(t *testing.T) {
	c := New(Options{})
	res, err := c.Chunk("A short document. It easily fits in one chunk.")
	if err != nil {
		t.Fatalf("Chunk failed: %v", err)
	}
	if len(res.Chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(res.Chunks))
	}
	ch := res.Chunks[0]
	if ch.PreviousSummary != "" || ch.NextPreview != "" {
		t.Errorf("sole chunk must have empty context fields: prev=%q next=%q", ch.PreviousSummary, ch.NextPreview)
	}
	if ch.TotalChunks != 1 || ch.ChunkIndex != 0 {
		t.Errorf("unexpected numbering: index=%d total=%d", ch.ChunkIndex, ch.TotalChunks)
	}
	if res.Metadata.TotalChunks != 1 {
		t.Errorf("metadata total = %d, want 1", res.Metadata.TotalChunks)
	}
}

func TestChunk_SizeInvariants(t *testing.T) {
	c := New(Options{PrimaryChunkSize: 120, ContextSize: 30})
	res, err := c.Chunk(sampleText(200))
	if err != nil {
		t.Fatalf("Chunk failed: %v", err)
	}
	if len(res.Chunks) < 3 {
		t.Fatalf("expected several chunks, got %d", len(res.Chunks))
	}
	for i, ch := range res.Chunks {
		if n := tokens.Estimate(ch.PrimaryContent); n > 120 {
			t.Errorf("chunk %d primary is %d tokens, limit 120", i, n)
		}
		if n := tokens.Estimate(ch.PreviousSummary); n > 30 {
			t.Errorf("chunk %d previous summary is %d tokens, limit 30", i, n)
		}
		if n := tokens.Estimate(ch.NextPreview); n > 30 {
			t.Errorf("chunk %d next preview is %d tokens, limit 30", i, n)
		}
		if ch.ChunkIndex != i {
			t.Errorf("chunk %d has index %d", i, ch.ChunkIndex)
		}
		if ch.TotalChunks != len(res.Chunks) {
			t.Errorf("chunk %d total = %d, want %d", i, ch.TotalChunks, len(res.Chunks))
		}
	}
	if res.Chunks[0].PreviousSummary != "" {
		t.Errorf("first chunk must have empty previous summary")
	}
	if last := res.Chunks[len(res.Chunks)-1]; last.NextPreview != "" {
		t.Errorf("last chunk must have empty next preview")
	}
}

func TestChunk_Reconstruction(t *testing.T) {
	text := sampleText(150)
	c := New(Options{PrimaryChunkSize: 100})
	res, err := c.Chunk(text)
	if err != nil {
		t.Fatalf("Chunk failed: %v", err)
	}

	primaries := make([]string, len(res.Chunks))
	for i, ch := range res.Chunks {
		primaries[i] = ch.PrimaryContent
	}
	reassembled := strings.Join(primaries, " ")

	normalized := strings.Join(strings.Fields(text), " ")
	if reassembled != normalized {
		t.Errorf("concatenated primaries do not reproduce the input")
	}

	sum := 0
	for _, p := range primaries {
		sum += tokens.Estimate(p)
	}
	diff := sum - res.Metadata.OriginalTokenCount
	if diff < 0 {
		diff = -diff
	}
	if diff > 50 {
		t.Errorf("token sum %d deviates from original %d by more than 50", sum, res.Metadata.OriginalTokenCount)
	}
}

func TestChunk_ContextExcerpts(t *testing.T) {
	c := New(Options{PrimaryChunkSize: 120, ContextSize: 40})
	res, err := c.Chunk(sampleText(200))
	if err != nil {
		t.Fatalf("Chunk failed: %v", err)
	}
	for k := 0; k+1 < len(res.Chunks); k++ {
		cur, next := res.Chunks[k], res.Chunks[k+1]
		if cur.NextPreview == "" {
			t.Fatalf("chunk %d has empty next preview", k)
		}
		if next.PreviousSummary == "" {
			t.Fatalf("chunk %d has empty previous summary", k+1)
		}
		if !strings.HasPrefix(next.PrimaryContent, cur.NextPreview) {
			t.Errorf("chunk %d next preview is not a prefix of chunk %d primary", k, k+1)
		}
		if !strings.HasSuffix(cur.PrimaryContent, next.PreviousSummary) {
			t.Errorf("chunk %d previous summary is not a suffix of chunk %d primary", k+1, k)
		}
		// Primary material must not repeat across adjacent chunks.
		head := strings.Join(strings.Fields(next.PrimaryContent)[:5], " ")
		if strings.Contains(cur.PrimaryContent, head) {
			t.Errorf("chunk %d primary leaks into chunk %d", k+1, k)
		}
	}
}

func TestChunk_UniqueIDs(t *testing.T) {
	c := New(Options{PrimaryChunkSize: 100})
	res, err := c.Chunk(sampleText(100))
	if err != nil {
		t.Fatalf("Chunk failed: %v", err)
	}
	seen := make(map[string]bool)
	for _, ch := range res.Chunks {
		if seen[ch.ChunkID] {
			t.Errorf("duplicate chunk id %q", ch.ChunkID)
		}
		seen[ch.ChunkID] = true
		want := fmt.Sprintf("chunk-%04d-of-%04d-", ch.ChunkIndex, ch.TotalChunks)
		if !strings.HasPrefix(ch.ChunkID, want) {
			t.Errorf("chunk id %q does not match pattern %q*", ch.ChunkID, want)
		}
	}
}

func TestChunk_OversizedSentence(t *testing.T) {
	// One giant "sentence" with no terminator until the very end.
	giant := strings.Repeat("tremendously ", 2000) + "long."
	c := New(Options{PrimaryChunkSize: 500})
	res, err := c.Chunk(giant)
	if err != nil {
		t.Fatalf("Chunk failed: %v", err)
	}
	if len(res.Chunks) < 2 {
		t.Fatalf("expected the oversized sentence to split, got %d chunks", len(res.Chunks))
	}
	for i, ch := range res.Chunks {
		if n := tokens.Estimate(ch.PrimaryContent); n > 500 {
			t.Errorf("chunk %d is %d tokens, limit 500", i, n)
		}
	}
	var words []string
	for _, ch := range res.Chunks {
		words = append(words, strings.Fields(ch.PrimaryContent)...)
	}
	if got, want := len(words), 2001; got != want {
		t.Errorf("word-boundary split lost words: got %d, want %d", got, want)
	}
}

func TestSplitSentences(t *testing.T) {
	terms := map[rune]bool{'.': true, '!': true, '?': true}
	cases := []struct {
		name  string
		input string
		want  []string
	}{
		{
			name:  "basic",
			input: "First here. Second there! Third?",
			want:  []string{"First here.", "Second there!", "Third?"},
		},
		{
			name:  "decimal stays intact",
			input: "Pi is roughly 3.14 in value. Next sentence.",
			want:  []string{"Pi is roughly 3.14 in value.", "Next sentence."},
		},
		{
			name:  "whitespace runs collapse",
			input: "Spaced   out.\tTabbed in.",
			want:  []string{"Spaced out.", "Tabbed in."},
		},
		{
			name:  "paragraph break without terminator",
			input: "No terminator here\n\nNew paragraph starts.",
			want:  []string{"No terminator here", "New paragraph starts."},
		},
		{
			name:  "closing quote after terminator",
			input: `He said "stop." Then he left.`,
			want:  []string{`He said "stop."`, "Then he left."},
		},
		{
			name:  "terminator runs",
			input: "Really?! Yes... Fine.",
			want:  []string{"Really?!", "Yes...", "Fine."},
		},
		{
			name:  "trailing text without terminator",
			input: "Complete sentence. dangling tail",
			want:  []string{"Complete sentence.", "dangling tail"},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := splitSentences(tc.input, terms)
			if len(got) != len(tc.want) {
				t.Fatalf("got %d sentences %q, want %d", len(got), got, len(tc.want))
			}
			for i := range got {
				if got[i] != tc.want[i] {
					t.Errorf("sentence %d = %q, want %q", i, got[i], tc.want[i])
				}
			}
		})
	}
}

func TestValidate_Violations(t *testing.T) {
	c := New(Options{PrimaryChunkSize: 50, ContextSize: 10, MinChunkSize: 5})
	big := strings.Repeat("word ", 400)

	cases := []struct {
		name string
		ch   Chunk
	}{
		{"empty primary", Chunk{ChunkID: "x", TotalChunks: 1}},
		{"oversized primary", Chunk{ChunkID: "x", TotalChunks: 1, PrimaryContent: big}},
		{"oversized summary", Chunk{ChunkID: "x", ChunkIndex: 1, TotalChunks: 2, PrimaryContent: "Fine text here.", PreviousSummary: big}},
		{"summary on first", Chunk{ChunkID: "x", ChunkIndex: 0, TotalChunks: 2, PrimaryContent: "Fine text here with a few more words added.", PreviousSummary: "tail"}},
		{"preview on last", Chunk{ChunkID: "x", ChunkIndex: 1, TotalChunks: 2, PrimaryContent: "Fine text here with a few more words added.", NextPreview: "head"}},
		{"bad index", Chunk{ChunkID: "x", ChunkIndex: 3, TotalChunks: 2, PrimaryContent: "Fine text here."}},
		{"under minimum", Chunk{ChunkID: "x", ChunkIndex: 0, TotalChunks: 2, PrimaryContent: "Tiny.", NextPreview: "head"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if err := c.Validate(tc.ch); err == nil {
				t.Errorf("expected a validation failure")
			}
		})
	}
}

func BenchmarkChunk_50kTokens(b *testing.B) {
	// ~50k tokens of plain prose; the contract is well under 5 seconds.
	text := sampleText(4000)
	c := New(Options{})
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := c.Chunk(text); err != nil {
			b.Fatal(err)
		}
	}
}
