package apperrors

import (
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestKindOf(t *testing.T) {
	err := Transient(errors.New("socket closed"))
	kind, ok := KindOf(err)
	if !ok {
		t.Fatalf("expected a tagged error")
	}
	if kind != KindTransient {
		t.Errorf("expected %q, got %q", KindTransient, kind)
	}

	if _, ok := KindOf(errors.New("plain")); ok {
		t.Errorf("plain error should not carry a kind")
	}
}

func TestKindOf_Wrapped(t *testing.T) {
	inner := Auth(errors.New("401"))
	wrapped := fmt.Errorf("calling translate: %w", inner)
	kind, ok := KindOf(wrapped)
	if !ok || kind != KindAuth {
		t.Errorf("expected auth kind through wrapping, got %q ok=%v", kind, ok)
	}
}

func TestIsRetryable(t *testing.T) {
	cases := []struct {
		err       error
		retryable bool
	}{
		{Transient(errors.New("503")), true},
		{RateLimit(errors.New("429")), true},
		{Quota("", 5 * time.Second), true},
		{Storage(errors.New("cas conflict")), true},
		{Auth(errors.New("401")), false},
		{BadRequest(errors.New("400")), false},
		{Validation(errors.New("bad language")), false},
		{NotFound("job missing"), false},
		{State("job not chunked"), false},
		{Fatal(errors.New("oversized chunk")), false},
		{errors.New("untagged"), false},
		{nil, false},
	}
	for _, tc := range cases {
		if got := IsRetryable(tc.err); got != tc.retryable {
			t.Errorf("IsRetryable(%v) = %v, want %v", tc.err, got, tc.retryable)
		}
	}
}

func TestQuotaRetryAfter(t *testing.T) {
	err := Quota("rpm exhausted", 1500*time.Millisecond)
	if got := RetryAfterOf(err); got != 1500*time.Millisecond {
		t.Errorf("RetryAfterOf = %v, want 1.5s", got)
	}
	if !IsRateLimit(err) {
		t.Errorf("quota denial should count as rate limiting")
	}
	if got := RetryAfterOf(errors.New("plain")); got != 0 {
		t.Errorf("plain error should carry no wait, got %v", got)
	}
}

func TestPublicMessage(t *testing.T) {
	err := New(KindAuth, "Gemini authentication failed (401).", errors.New("secret internals"))
	if msg := PublicMessage(err); msg != "Gemini authentication failed (401)." {
		t.Errorf("unexpected public message: %q", msg)
	}
	if msg := PublicMessage(nil); msg != "" {
		t.Errorf("nil error should produce empty message, got %q", msg)
	}
}

func TestDefaultSafeMessages(t *testing.T) {
	for _, kind := range []Kind{
		KindTransient, KindRateLimit, KindQuota, KindAuth, KindValidation,
		KindBadRequest, KindNotFound, KindState, KindStorage, KindFatal,
	} {
		err := New(kind, "", nil)
		if err.Error() == "" || err.Error() == "unknown error" {
			t.Errorf("kind %q has no default message", kind)
		}
	}
}

func TestUnwrap(t *testing.T) {
	cause := errors.New("root cause")
	err := Storage(cause)
	if !errors.Is(err, cause) {
		t.Errorf("expected errors.Is to reach the cause")
	}
}
