package output

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/oppfinder/opps/internal/resilience"
	"github.com/oppfinder/opps/internal/search"
)

// Error is a structured error with code, message, and optional hint.
type Error struct {
	Code       string
	Message    string
	Hint       string
	HTTPStatus int
	Retryable  bool
	Cause      error
}

func (e *Error) Error() string {
	if e.Hint != "" {
		return fmt.Sprintf("%s: %s", e.Message, e.Hint)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// ExitCode returns the appropriate exit code for this error.
func (e *Error) ExitCode() int {
	return ExitCodeFor(e.Code)
}

// Error constructors for common cases.

func ErrUsage(msg string) *Error {
	return &Error{Code: CodeUsage, Message: msg}
}

func ErrUsageHint(msg, hint string) *Error {
	return &Error{Code: CodeUsage, Message: msg, Hint: hint}
}

func ErrNotFound(resource, identifier string) *Error {
	return &Error{
		Code:    CodeNotFound,
		Message: fmt.Sprintf("%s not found: %s", resource, identifier),
	}
}

func ErrNotFoundHint(resource, identifier, hint string) *Error {
	return &Error{
		Code:    CodeNotFound,
		Message: fmt.Sprintf("%s not found: %s", resource, identifier),
		Hint:    hint,
	}
}

func ErrRateLimit(msg string) *Error {
	if msg == "" {
		msg = "Rate limited"
	}
	return &Error{
		Code:       CodeRateLimit,
		Message:    msg,
		Hint:       "Try again later",
		HTTPStatus: http.StatusTooManyRequests,
		Retryable:  true,
	}
}

func ErrNetwork(cause error) *Error {
	return &Error{
		Code:      CodeNetwork,
		Message:   "Network error",
		Hint:      cause.Error(),
		Retryable: true,
		Cause:     cause,
	}
}

func ErrAPI(status int, msg string) *Error {
	return &Error{
		Code:       CodeAPI,
		Message:    msg,
		HTTPStatus: status,
		Retryable:  status >= 500,
	}
}

func ErrDecode(cause error) *Error {
	return &Error{
		Code:    CodeDecode,
		Message: "Unexpected response from search endpoint",
		Hint:    cause.Error(),
		Cause:   cause,
	}
}

func ErrAmbiguous(resource string, matches []string) *Error {
	hint := "Be more specific"
	if len(matches) > 0 && len(matches) <= 5 {
		hint = fmt.Sprintf("Did you mean: %v", matches)
	}
	return &Error{
		Code:    CodeAmbiguous,
		Message: fmt.Sprintf("Ambiguous %s", resource),
		Hint:    hint,
	}
}

// FromFetchError maps a fetch failure onto the CLI error taxonomy.
func FromFetchError(fe *search.FetchError) *Error {
	switch {
	case errors.Is(fe, resilience.ErrRateLimited):
		e := ErrRateLimit(fe.Message)
		e.Cause = fe
		return e
	case errors.Is(fe, resilience.ErrCircuitOpen):
		return &Error{
			Code:      CodeNetwork,
			Message:   "Search endpoint unavailable",
			Hint:      "Recent requests failed; retry after the cool-down",
			Retryable: true,
			Cause:     fe,
		}
	}

	switch fe.Kind {
	case search.KindRemote:
		if fe.Status == http.StatusTooManyRequests {
			e := ErrRateLimit(fe.Message)
			e.Cause = fe
			return e
		}
		if fe.Status == http.StatusNotFound {
			return &Error{
				Code:       CodeNotFound,
				Message:    fe.Message,
				Hint:       "Check base_url with: opps config show",
				HTTPStatus: fe.Status,
				Cause:      fe,
			}
		}
		e := ErrAPI(fe.Status, fe.Message)
		e.Cause = fe
		return e
	case search.KindDecode:
		return ErrDecode(fe)
	default:
		return &Error{
			Code:      CodeNetwork,
			Message:   "Network error",
			Hint:      fe.Message,
			Retryable: true,
			Cause:     fe,
		}
	}
}

// AsError attempts to convert an error to an *Error.
func AsError(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	var fe *search.FetchError
	if errors.As(err, &fe) {
		return FromFetchError(fe)
	}
	return &Error{
		Code:    CodeAPI,
		Message: err.Error(),
		Cause:   err,
	}
}
