// Package errors defines typed errors with categories for user-friendly reporting.
// It provides a structured approach to error handling with machine-readable error kinds
// and human-friendly messages. Errors raised while talking to Capture Center carry
// the protocol step that failed, the service-assigned error identifier and, when the
// failure happened inside a batch, the batch identifier an operator needs to find it
// on the server.
//
// The package supports wrapping underlying errors while maintaining error kind information,
// so callers can branch on Kind with KindOf and still reach the root cause via errors.Unwrap.
package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
)

// Kind is a machine-readable error category.
type Kind string

const (
	// AuthFailed indicates one of the three login steps failed.
	AuthFailed Kind = "auth_failed"
	// NotLoggedIn indicates an operation was attempted without an established session.
	NotLoggedIn Kind = "not_logged_in"
	// Transport indicates a network or timeout failure with no parseable server response.
	Transport Kind = "transport"
	// Service indicates a non-success HTTP response from the server.
	Service Kind = "service"
	// Ingestion indicates a service or transport failure while closing a batch.
	Ingestion Kind = "ingestion"
	// InvalidInput indicates a request rejected before any remote call.
	InvalidInput Kind = "invalid_input"
	// Config indicates missing or malformed client configuration.
	Config Kind = "config"
)

const (
	// UnknownErrorID is used when a failing response carries no parseable error identifier.
	UnknownErrorID = "UnknownOccError"
	// NoErrorID is used when the failure did not come from the service at all.
	NoErrorID = "noOccError"
)

// E wraps an error with kind and human-friendly message.
type E struct {
	Kind    Kind
	Message string
	// ErrorID is the service-assigned error identifier, if any.
	ErrorID string
	// BatchID is set when the failure occurred mid-batch.
	BatchID string
	// Context names the protocol step that failed.
	Context string
	Err     error
}

func (e *E) Error() string {
	var inner string
	if e.Err != nil {
		inner = e.Err.Error()
	}
	var b strings.Builder
	b.WriteString(string(e.Kind))
	if e.Context != "" {
		b.WriteString(": ")
		b.WriteString(e.Context)
	}
	if e.Message != "" && !strings.Contains(inner, e.Message) {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if e.BatchID != "" {
		fmt.Fprintf(&b, " (batch %s)", e.BatchID)
	}
	if e.ErrorID != "" && !strings.Contains(inner, e.ErrorID) {
		fmt.Fprintf(&b, " [%s]", e.ErrorID)
	}
	if inner != "" {
		b.WriteString(": ")
		b.WriteString(inner)
	}
	return b.String()
}

func (e *E) Unwrap() error { return e.Err }

func Wrap(kind Kind, msg string, err error) *E { return &E{Kind: kind, Message: msg, Err: err} }
func New(kind Kind, msg string) *E             { return &E{Kind: kind, Message: msg} }

// WithContext sets the protocol step label and returns e.
func (e *E) WithContext(context string) *E {
	e.Context = context
	return e
}

// KindOf returns the kind of the outermost *E in err's chain, or "" if there is none.
func KindOf(err error) Kind {
	var e *E
	if stderrors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// Is reports whether err carries an *E of the given kind anywhere in its chain.
func Is(err error, kind Kind) bool {
	for err != nil {
		var e *E
		if !stderrors.As(err, &e) {
			return false
		}
		if e.Kind == kind {
			return true
		}
		err = e.Err
	}
	return false
}

// ErrorIDOf returns the first service error identifier found in err's chain.
func ErrorIDOf(err error) string {
	for err != nil {
		var e *E
		if !stderrors.As(err, &e) {
			return ""
		}
		if e.ErrorID != "" {
			return e.ErrorID
		}
		err = e.Err
	}
	return ""
}

// BatchIDOf returns the batch identifier carried by err, if any.
func BatchIDOf(err error) string {
	for err != nil {
		var e *E
		if !stderrors.As(err, &e) {
			return ""
		}
		if e.BatchID != "" {
			return e.BatchID
		}
		err = e.Err
	}
	return ""
}
