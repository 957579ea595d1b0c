package gemini

import (
	"strings"
	"testing"

	"github.com/oukeidos/doctrans/internal/apperrors"
)

func TestBuildPrompt_Deterministic(t *testing.T) {
	opts := Options{TargetLanguage: "es", Tone: "formal", PreserveFormatting: true}
	tctx := Context{PreviousChunks: []string{"Earlier paragraph."}}

	a, err := buildPrompt("Hello world.", opts, tctx)
	if err != nil {
		t.Fatalf("buildPrompt: %v", err)
	}
	b, err := buildPrompt("Hello world.", opts, tctx)
	if err != nil {
		t.Fatalf("buildPrompt: %v", err)
	}
	if a != b {
		t.Fatal("identical inputs produced different prompts")
	}
}

func TestBuildPrompt_Structure(t *testing.T) {
	opts := Options{
		TargetLanguage:         "de",
		Tone:                   "informal",
		AdditionalInstructions: "Keep product names in English.",
		PreserveFormatting:     true,
	}
	tctx := Context{PreviousChunks: []string{"The previous chunk text."}}

	prompt, err := buildPrompt("Translate me.", opts, tctx)
	if err != nil {
		t.Fatalf("buildPrompt: %v", err)
	}

	for _, want := range []string{
		"German",
		"informal, conversational",
		"Preserve the original formatting",
		"Keep product names in English.",
		contextOpen,
		"The previous chunk text.",
		contextClose,
		textOpen,
		"Translate me.",
		textClose,
	} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q", want)
		}
	}

	if idx := strings.Index(prompt, contextClose); idx > strings.Index(prompt, textOpen) {
		t.Error("context block must precede the text block")
	}
}

func TestBuildPrompt_NoContextBlockWithoutContext(t *testing.T) {
	prompt, err := buildPrompt("Hello.", Options{TargetLanguage: "fr"}, Context{})
	if err != nil {
		t.Fatalf("buildPrompt: %v", err)
	}
	if strings.Contains(prompt, contextOpen) {
		t.Error("empty context still produced a context block")
	}
	if !strings.Contains(prompt, "neutral register") {
		t.Error("empty tone did not default to neutral")
	}
}

func TestBuildPrompt_Validation(t *testing.T) {
	tests := []struct {
		name string
		text string
		opts Options
	}{
		{"unsupported language", "Hello.", Options{TargetLanguage: "ja"}},
		{"empty language", "Hello.", Options{}},
		{"unsupported tone", "Hello.", Options{TargetLanguage: "es", Tone: "sarcastic"}},
		{"empty text", "   ", Options{TargetLanguage: "es"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := buildPrompt(tt.text, tt.opts, Context{})
			if err == nil {
				t.Fatal("want error, got nil")
			}
			if kind, ok := apperrors.KindOf(err); !ok || kind != apperrors.KindValidation {
				t.Fatalf("kind = %v, want validation", kind)
			}
		})
	}
}

func TestBuildPrompt_LanguageCodeCaseInsensitive(t *testing.T) {
	prompt, err := buildPrompt("Hello.", Options{TargetLanguage: "ZH"}, Context{})
	if err != nil {
		t.Fatalf("buildPrompt: %v", err)
	}
	if !strings.Contains(prompt, "Chinese (Simplified)") {
		t.Error("uppercase code did not resolve to the language name")
	}
}
