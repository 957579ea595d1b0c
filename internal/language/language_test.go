package language

import "testing"

func TestGet_Supported(t *testing.T) {
	cases := map[string]string{
		"es": "Spanish",
		"fr": "French",
		"it": "Italian",
		"de": "German",
		"zh": "Chinese (Simplified)",
	}
	for code, name := range cases {
		lang, err := Get(code)
		if err != nil {
			t.Errorf("Get(%q) failed: %v", code, err)
			continue
		}
		if lang.Name != name {
			t.Errorf("Get(%q).Name = %q, want %q", code, lang.Name, name)
		}
	}
}

func TestGet_CaseAndWhitespace(t *testing.T) {
	lang, err := Get(" ES ")
	if err != nil {
		t.Fatalf("Get(\" ES \") failed: %v", err)
	}
	if lang.Code != "es" {
		t.Errorf("expected code es, got %q", lang.Code)
	}
}

func TestGet_Unsupported(t *testing.T) {
	for _, code := range []string{"ko", "ja", "en", "", "xx"} {
		if _, err := Get(code); err == nil {
			t.Errorf("Get(%q) should fail", code)
		}
	}
}

func TestCodes_Sorted(t *testing.T) {
	codes := Codes()
	if len(codes) != 5 {
		t.Fatalf("expected 5 codes, got %d", len(codes))
	}
	for i := 1; i < len(codes); i++ {
		if codes[i-1] >= codes[i] {
			t.Errorf("codes not sorted: %v", codes)
		}
	}
}
