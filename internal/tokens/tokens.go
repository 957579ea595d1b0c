// Package tokens provides the single token-count approximation shared by
// the chunker and the translation worker. Both sides must agree on the
// same counter so that chunk size limits line up with the quota math.
package tokens

import (
	"strings"

	"github.com/rivo/uniseg"
)

// Count carries the raw measurements behind a token estimate. Keeping the
// parts separate lets callers combine measurements of adjacent pieces of
// text without re-scanning the joined string.
type Count struct {
	Words     int
	Graphemes int
}

// Measure scans text and returns its word and grapheme-cluster counts.
// Word boundaries follow Unicode segmentation (UAX #29), so CJK text
// without spaces still produces sensible counts.
func Measure(text string) Count {
	var c Count
	state := -1
	rest := text
	for len(rest) > 0 {
		var word string
		word, rest, state = uniseg.FirstWordInString(rest, state)
		if strings.TrimSpace(word) != "" {
			c.Words++
		}
	}
	c.Graphemes = uniseg.GraphemeClusterCount(text)
	return c
}

// Join combines two measurements as if the texts were concatenated with a
// single space between them. Joining empty pieces adds nothing.
func (c Count) Join(other Count) Count {
	if other.Graphemes == 0 {
		return c
	}
	if c.Graphemes == 0 {
		return other
	}
	return Count{
		Words:     c.Words + other.Words,
		Graphemes: c.Graphemes + 1 + other.Graphemes,
	}
}

// Tokens converts a measurement into an approximate LLM token count.
// The estimate is the larger of two standard heuristics: ~3/4 word per
// token and ~4 characters per token. Taking the maximum keeps the
// estimate conservative for both space-separated and dense scripts.
func (c Count) Tokens() int {
	byWords := (c.Words*4 + 2) / 3
	byChars := (c.Graphemes + 3) / 4
	if byWords > byChars {
		return byWords
	}
	return byChars
}

// Estimate returns the approximate token count of text.
func Estimate(text string) int {
	return Measure(text).Tokens()
}
