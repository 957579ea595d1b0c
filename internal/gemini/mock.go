package gemini

import "context"

// MockTranslator for testing. Responses are returned in order; the
// last entry repeats once the list is exhausted.
type MockTranslator struct {
	Responses []MockResponse
	Calls     []MockCall
}

type MockResponse struct {
	Result *Result
	Err    error
}

type MockCall struct {
	Text string
	Opts Options
	Tctx Context
}

func (m *MockTranslator) Translate(_ context.Context, text string, opts Options, tctx Context) (*Result, error) {
	m.Calls = append(m.Calls, MockCall{Text: text, Opts: opts, Tctx: tctx})
	if len(m.Responses) == 0 {
		return &Result{TranslatedText: "translated: " + text}, nil
	}
	idx := len(m.Calls) - 1
	if idx >= len(m.Responses) {
		idx = len(m.Responses) - 1
	}
	r := m.Responses[idx]
	return r.Result, r.Err
}
