package gemini

import (
	"fmt"
	"strings"

	"github.com/oukeidos/doctrans/internal/apperrors"
	"github.com/oukeidos/doctrans/internal/language"
)

// Tones is the closed set of accepted tone directives.
var Tones = map[string]string{
	"formal":   "Use a formal register appropriate for professional documents.",
	"informal": "Use an informal, conversational register.",
	"neutral":  "Use a neutral register, neither stiff nor casual.",
}

const (
	contextOpen  = "=== CONTEXT (do not translate) ==="
	contextClose = "=== END CONTEXT ==="
	textOpen     = "=== TEXT TO TRANSLATE ==="
	textClose    = "=== END TEXT ==="
)

// buildPrompt composes the deterministic translation prompt. The same
// inputs always yield the same prompt string.
func buildPrompt(text string, opts Options, tctx Context) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", apperrors.Validation(fmt.Errorf("text to translate is empty"))
	}
	lang, err := language.Get(opts.TargetLanguage)
	if err != nil {
		return "", apperrors.Validation(err)
	}
	tone := strings.ToLower(strings.TrimSpace(opts.Tone))
	if tone == "" {
		tone = "neutral"
	}
	toneDirective, ok := Tones[tone]
	if !ok {
		return "", apperrors.Validation(fmt.Errorf("unsupported tone %q (supported: formal, informal, neutral)", opts.Tone))
	}

	var b strings.Builder
	fmt.Fprintf(&b, "You are a professional translator. Translate the text below into %s.\n\n", lang.Name)
	b.WriteString("Rules:\n")
	fmt.Fprintf(&b, "- %s\n", toneDirective)
	if opts.PreserveFormatting {
		b.WriteString("- Preserve the original formatting: keep paragraph breaks, line breaks, and list structure exactly as in the source.\n")
	}
	b.WriteString("- Translate faithfully; do not add, omit, or summarize content.\n")
	if instructions := strings.TrimSpace(opts.AdditionalInstructions); instructions != "" {
		fmt.Fprintf(&b, "- %s\n", instructions)
	}

	if len(tctx.PreviousChunks) > 0 {
		b.WriteString("\n")
		b.WriteString(contextOpen)
		b.WriteString("\n")
		b.WriteString("The following precedes the text and is provided for continuity of terminology and pronouns only.\n\n")
		for _, chunk := range tctx.PreviousChunks {
			if chunk == "" {
				continue
			}
			b.WriteString(chunk)
			b.WriteString("\n")
		}
		b.WriteString(contextClose)
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(textOpen)
	b.WriteString("\n")
	b.WriteString(text)
	b.WriteString("\n")
	b.WriteString(textClose)
	b.WriteString("\n\n")
	fmt.Fprintf(&b, "Respond with ONLY the %s translation of the text between the markers. No preamble, no explanations.", lang.Name)

	return b.String(), nil
}
