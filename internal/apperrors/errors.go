package apperrors

import (
	"errors"
	"strings"
	"time"
)

type Kind string

const (
	KindTransient  Kind = "transient"
	KindRateLimit  Kind = "rate_limit"
	KindQuota      Kind = "quota"
	KindAuth       Kind = "auth"
	KindValidation Kind = "validation"
	KindBadRequest Kind = "bad_request"
	KindNotFound   Kind = "not_found"
	KindState      Kind = "state"
	KindStorage    Kind = "storage"
	KindFatal      Kind = "fatal"
)

type Error struct {
	Kind Kind
	// SafeMessage is intended for user-facing output and logs.
	SafeMessage string
	// Cause keeps the original internal error for troubleshooting.
	Cause error
	// RetryAfter is the advisory wait before the operation may succeed.
	// Set only for quota denials.
	RetryAfter time.Duration
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	msg := strings.TrimSpace(e.SafeMessage)
	if msg != "" {
		return msg
	}
	if e.Cause != nil {
		return e.Cause.Error()
	}
	return "unknown error"
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

func defaultSafeMessage(kind Kind) string {
	switch kind {
	case KindTransient:
		return "Temporary upstream error. Please try again."
	case KindRateLimit:
		return "Upstream rate limit exceeded. Please try again later."
	case KindQuota:
		return "Request quota exhausted. Please try again later."
	case KindAuth:
		return "Authentication failed. Please verify your API key and permissions."
	case KindValidation:
		return "Input validation failed."
	case KindBadRequest:
		return "Request rejected by upstream API."
	case KindNotFound:
		return "Requested resource was not found."
	case KindState:
		return "Operation not allowed in the current job state."
	case KindStorage:
		return "Temporary storage error. Please try again."
	case KindFatal:
		return "Internal invariant violated."
	default:
		return "Request failed."
	}
}

func New(kind Kind, safeMessage string, cause error) error {
	msg := strings.TrimSpace(safeMessage)
	if msg == "" {
		msg = defaultSafeMessage(kind)
	}
	return &Error{
		Kind:        kind,
		SafeMessage: msg,
		Cause:       cause,
	}
}

func Transient(err error) error {
	return New(KindTransient, "", err)
}

func RateLimit(err error) error {
	return New(KindRateLimit, "", err)
}

// Quota reports a denial by our own rate limiter. retryAfter is the
// advisory wait supplied by the blocking bucket.
func Quota(safeMessage string, retryAfter time.Duration) error {
	msg := strings.TrimSpace(safeMessage)
	if msg == "" {
		msg = defaultSafeMessage(KindQuota)
	}
	return &Error{
		Kind:        KindQuota,
		SafeMessage: msg,
		RetryAfter:  retryAfter,
	}
}

func Auth(err error) error {
	return New(KindAuth, "", err)
}

func Validation(err error) error {
	return New(KindValidation, "", err)
}

func BadRequest(err error) error {
	return New(KindBadRequest, "", err)
}

func NotFound(safeMessage string) error {
	return New(KindNotFound, safeMessage, nil)
}

func State(safeMessage string) error {
	return New(KindState, safeMessage, nil)
}

func Storage(err error) error {
	return New(KindStorage, "", err)
}

func Fatal(err error) error {
	return New(KindFatal, "", err)
}

func KindOf(err error) (Kind, bool) {
	var e *Error
	if !errors.As(err, &e) {
		return "", false
	}
	return e.Kind, true
}

func PublicMessage(err error) string {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Error()
	}
	return err.Error()
}

func IsRetryable(err error) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	// Transient: upstream 5xx, network issues.
	// RateLimit: upstream 429.
	// Quota: our own limiter denied the acquire.
	// Storage: conditional-update conflicts, store throttling.
	switch e.Kind {
	case KindTransient, KindRateLimit, KindQuota, KindStorage:
		return true
	}
	return false
}

func IsRateLimit(err error) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Kind == KindRateLimit || e.Kind == KindQuota
}

// RetryAfterOf extracts the advisory wait from a quota denial.
// Returns zero when the error carries no wait hint.
func RetryAfterOf(err error) time.Duration {
	var e *Error
	if !errors.As(err, &e) {
		return 0
	}
	return e.RetryAfter
}
