package search

import (
	"context"
	"errors"
	"fmt"
)

// ErrFetchFailed matches every fetch failure via errors.Is, whatever its kind.
var ErrFetchFailed = errors.New("fetch failed")

// FailureKind classifies a fetch failure. Callers treat all kinds alike;
// the kind only feeds logging and trace output.
type FailureKind int

const (
	KindTransport FailureKind = iota // request could not be sent or received
	KindRemote                       // endpoint reported a failure status
	KindDecode                       // response was not a valid ResultPage
)

func (k FailureKind) String() string {
	switch k {
	case KindTransport:
		return "transport"
	case KindRemote:
		return "remote"
	case KindDecode:
		return "decode"
	default:
		return "unknown"
	}
}

// FetchError is the normalized failure of a single fetch.
type FetchError struct {
	Kind    FailureKind
	Message string
	Status  int // HTTP status for KindRemote, 0 otherwise
	Err     error
}

func (e *FetchError) Error() string {
	if e.Err != nil && e.Message == "" {
		return fmt.Sprintf("fetch failed: %v", e.Err)
	}
	return "fetch failed: " + e.Message
}

func (e *FetchError) Unwrap() error { return e.Err }

// Is makes every FetchError match ErrFetchFailed.
func (e *FetchError) Is(target error) bool {
	return target == ErrFetchFailed
}

// TransportError wraps a send/receive failure.
func TransportError(err error) *FetchError {
	return &FetchError{Kind: KindTransport, Message: err.Error(), Err: err}
}

// RemoteError reports a failure status from the endpoint.
func RemoteError(status int, msg string) *FetchError {
	if msg == "" {
		msg = fmt.Sprintf("request failed (HTTP %d)", status)
	}
	return &FetchError{Kind: KindRemote, Message: msg, Status: status}
}

// DecodeError wraps a payload that could not be turned into a ResultPage.
func DecodeError(err error) *FetchError {
	return &FetchError{Kind: KindDecode, Message: "malformed response: " + err.Error(), Err: err}
}

// normalizeFetchError folds any error returned by a Searcher into a
// *FetchError. Deadline and cancellation errors count as transport failures.
func normalizeFetchError(err error) *FetchError {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &FetchError{Kind: KindTransport, Message: "request timed out", Err: err}
	}
	return TransportError(err)
}
