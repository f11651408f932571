package enhance

import (
	"fmt"
	"net/http"
)

// Kind classifies an enhancement failure. Retryability is a property of the
// kind, not of the call site.
type Kind string

const (
	KindNotConfigured    Kind = "not_configured"
	KindEmptyInput       Kind = "empty_input"
	KindNetwork          Kind = "network"
	KindRateLimited      Kind = "rate_limited"
	KindServer           Kind = "server_error"
	KindAuth             Kind = "auth"
	KindAPI              Kind = "api_error"
	KindParse            Kind = "parse_error"
	KindRetriesExhausted Kind = "retries_exhausted"
)

// Error is the typed failure returned by the client and its providers.
type Error struct {
	Kind     Kind
	Provider string
	Message  string
	Cause    error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("enhance: %s", e.Kind)
	if e.Provider != "" {
		msg += " (" + e.Provider + ")"
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Cause }

// Retryable reports whether the failure may succeed on a later attempt.
func (e *Error) Retryable() bool {
	switch e.Kind {
	case KindNetwork, KindRateLimited, KindServer:
		return true
	}
	return false
}

// Is matches errors by kind so callers can use errors.Is with a bare
// &Error{Kind: ...} probe.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

func newError(kind Kind, provider, format string, args ...any) *Error {
	return &Error{Kind: kind, Provider: provider, Message: fmt.Sprintf(format, args...)}
}

// classifyStatus maps a non-200 response status onto the common taxonomy.
// Shared by every provider variant.
func classifyStatus(provider string, status int, body []byte) *Error {
	snippet := string(body)
	if len(snippet) > 200 {
		snippet = snippet[:200]
	}
	switch {
	case status == http.StatusUnauthorized:
		return newError(KindAuth, provider, "authentication failed (401)")
	case status == http.StatusTooManyRequests:
		return newError(KindRateLimited, provider, "rate limit exceeded (429)")
	case status >= 500 && status <= 599:
		return newError(KindServer, provider, "server error %d: %s", status, snippet)
	default:
		return newError(KindAPI, provider, "unexpected status %d: %s", status, snippet)
	}
}
