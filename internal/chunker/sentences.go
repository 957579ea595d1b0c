package chunker

import (
	"strings"
	"unicode"

	"github.com/oukeidos/doctrans/internal/tokens"
)

// closers may trail a sentence terminator and still belong to the
// sentence, e.g. `He said "stop."` or `(Really?)`.
var closers = map[rune]bool{
	'"':  true,
	'\'': true,
	')':  true,
	']':  true,
	'}':  true,
	'”': true, // right double quotation mark
	'’': true, // right single quotation mark
	'»': true, // right guillemet
}

// splitSentences segments text into sentences on the configured
// terminators. Whitespace runs collapse to single spaces, paragraph
// breaks always end a sentence, and a terminator followed by a
// non-space rune (decimals, abbrev-internal dots) does not split.
func splitSentences(text string, terminators map[rune]bool) []string {
	var sentences []string
	var b strings.Builder
	pendingSpace := false

	flush := func() {
		s := strings.TrimSpace(b.String())
		if s != "" {
			sentences = append(sentences, s)
		}
		b.Reset()
		pendingSpace = false
	}

	runes := []rune(text)
	for i := 0; i < len(runes); i++ {
		r := runes[i]

		if unicode.IsSpace(r) {
			if isParagraphBreak(runes, i) {
				flush()
				continue
			}
			if b.Len() > 0 {
				pendingSpace = true
			}
			continue
		}

		if pendingSpace {
			b.WriteRune(' ')
			pendingSpace = false
		}
		b.WriteRune(r)

		if !terminators[r] {
			continue
		}
		// Absorb any run of terminators and trailing closers, e.g.
		// "?!", "...", or a closing quote after the period.
		j := i + 1
		for j < len(runes) && (terminators[runes[j]] || closers[runes[j]]) {
			b.WriteRune(runes[j])
			j++
		}
		i = j - 1
		// Sentence ends only when followed by whitespace or the end of
		// input; "3.14" stays intact.
		if j >= len(runes) || unicode.IsSpace(runes[j]) {
			flush()
		}
	}
	flush()
	return sentences
}

// isParagraphBreak reports whether the whitespace at position i contains
// more than one newline before the next non-space rune.
func isParagraphBreak(runes []rune, i int) bool {
	newlines := 0
	for ; i < len(runes) && unicode.IsSpace(runes[i]); i++ {
		if runes[i] == '\n' {
			newlines++
		}
	}
	return newlines >= 2
}

// splitOversized splits a single sentence whose token estimate exceeds
// the budget into word-boundary pieces, each within the budget. A single
// word larger than the budget is cut at grapheme boundaries as a last
// resort.
func splitOversized(sentence string, budget int) []string {
	words := strings.Fields(sentence)
	var pieces []string
	var cur []string
	var acc tokens.Count

	flush := func() {
		if len(cur) > 0 {
			pieces = append(pieces, strings.Join(cur, " "))
			cur = nil
			acc = tokens.Count{}
		}
	}

	for _, word := range words {
		m := tokens.Measure(word)
		if m.Tokens() > budget {
			flush()
			pieces = append(pieces, splitLongWord(word, budget)...)
			continue
		}
		joined := acc.Join(m)
		if len(cur) > 0 && joined.Tokens() > budget {
			flush()
			joined = m
		}
		cur = append(cur, word)
		acc = joined
	}
	flush()

	if len(pieces) == 0 {
		return []string{sentence}
	}
	return pieces
}

// splitLongWord cuts an unbroken word into budget-sized pieces. The char
// heuristic is 4 graphemes per token, and a rune never holds more than
// one grapheme cluster, so budget*4 runes stay within the budget.
func splitLongWord(word string, budget int) []string {
	maxGraphemes := budget * 4
	if maxGraphemes < 1 {
		maxGraphemes = 1
	}
	var pieces []string
	var b strings.Builder
	count := 0
	gr := []rune(word)
	for _, r := range gr {
		b.WriteRune(r)
		count++
		if count >= maxGraphemes {
			pieces = append(pieces, b.String())
			b.Reset()
			count = 0
		}
	}
	if b.Len() > 0 {
		pieces = append(pieces, b.String())
	}
	return pieces
}
