package language

import (
	"fmt"
	"sort"
	"strings"
)

// Language represents a supported target language.
type Language struct {
	Code string
	Name string
}

// Languages is the closed set of supported target languages, keyed by
// ISO 639-1 code. Translation requests for any other code are rejected
// before an API call is made.
var Languages = map[string]Language{
	"es": {Code: "es", Name: "Spanish"},
	"fr": {Code: "fr", Name: "French"},
	"it": {Code: "it", Name: "Italian"},
	"de": {Code: "de", Name: "German"},
	"zh": {Code: "zh", Name: "Chinese (Simplified)"},
}

// Get returns the language for a code, case-insensitively.
func Get(code string) (Language, error) {
	lang, ok := Languages[strings.ToLower(strings.TrimSpace(code))]
	if !ok {
		return Language{}, fmt.Errorf("unsupported target language %q (supported: %s)", code, strings.Join(Codes(), ", "))
	}
	return lang, nil
}

// Codes returns the supported codes in sorted order.
func Codes() []string {
	codes := make([]string, 0, len(Languages))
	for code := range Languages {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}
