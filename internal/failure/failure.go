// Package failure defines the reason-coded errors returned by the
// authentication handlers, the export pipeline and the studio collaborators.
package failure

import (
	"errors"
	"fmt"
)

// Reason is a short machine-readable failure code.
type Reason string

const (
	ProviderError       Reason = "provider_error"
	StateMismatch       Reason = "state_mismatch"
	MissingCode         Reason = "missing_code"
	TokenExchangeFailed Reason = "token_exchange_failed"
	InvalidToken        Reason = "invalid_token"
	MissingToken        Reason = "missing_token"
	NotConfigured       Reason = "not_configured"
	InvalidCredential   Reason = "invalid_credential"
	Unauthenticated     Reason = "unauthenticated"
	MissingName         Reason = "missing_name"
	ArtifactNotFound    Reason = "artifact_not_found"
	PublishFailed       Reason = "publish_failed"
	SynthesisFailed     Reason = "synthesis_failed"
	BadRequest          Reason = "bad_request"
	InternalError       Reason = "internal_error"
)

// Error is a failure with a reason code. Detail is safe to show to the user;
// Err, when set, is the underlying cause and is only logged.
type Error struct {
	Reason Reason
	Detail string
	Err    error
}

func (e *Error) Error() string {
	switch {
	case e.Detail != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Reason, e.Detail, e.Err)
	case e.Detail != "":
		return fmt.Sprintf("%s: %s", e.Reason, e.Detail)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Reason, e.Err)
	default:
		return string(e.Reason)
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New returns a failure with the given reason and user-facing detail.
func New(reason Reason, detail string) *Error {
	return &Error{Reason: reason, Detail: detail}
}

// Wrap attaches a reason to err. Errors that already carry a reason keep it.
func Wrap(err error, reason Reason, detail string) error {
	if err == nil {
		return nil
	}
	var fe *Error
	if errors.As(err, &fe) {
		return err
	}
	return &Error{Reason: reason, Detail: detail, Err: err}
}

// ReasonOf extracts the reason from err. Unclassified errors are InternalError.
func ReasonOf(err error) Reason {
	if err == nil {
		return ""
	}
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Reason
	}
	return InternalError
}

// Is reports whether err carries the given reason.
func Is(err error, reason Reason) bool {
	return err != nil && ReasonOf(err) == reason
}

// Message returns the user-facing text for err. Unclassified errors never
// leak their internals.
func Message(err error) string {
	var fe *Error
	if errors.As(err, &fe) {
		if fe.Detail != "" {
			return fe.Detail
		}
		return string(fe.Reason)
	}
	return "internal error"
}
