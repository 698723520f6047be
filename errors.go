package auth

import (
	"errors"
	"fmt"

	goerrors "github.com/goliatone/go-errors"
)

// ErrorKind is the normalized classification of a failed operation.
type ErrorKind string

const (
	ErrorKindNone          ErrorKind = ""
	ErrorKindInvalidInput  ErrorKind = "invalid_input"
	ErrorKindInvalidState  ErrorKind = "invalid_state"
	ErrorKindNotAuthorized ErrorKind = "not_authorized"
	ErrorKindUserNotFound  ErrorKind = "user_not_found"
	ErrorKindDuplicateUser ErrorKind = "duplicate_user"
	ErrorKindInvalidCode   ErrorKind = "invalid_code"
	ErrorKindUnknown       ErrorKind = "unknown"
)

func (k ErrorKind) String() string {
	if k == ErrorKindNone {
		return "none"
	}
	return string(k)
}

const (
	TextCodeInvalidInput        = "AUTH_INVALID_INPUT"
	TextCodeInvalidState        = "AUTH_INVALID_SESSION_PHASE"
	TextCodeInvalidSessionState = "AUTH_INVALID_SESSION_STATE"
	TextCodeNotAuthorized       = "AUTH_NOT_AUTHORIZED"
	TextCodeUserNotFound        = "AUTH_USER_NOT_FOUND"
	TextCodeUsernameExists      = "AUTH_USERNAME_EXISTS"
	TextCodeCodeMismatch        = "AUTH_CODE_MISMATCH"
)

// ErrInvalidInput is returned when an intent fails local validation.
var ErrInvalidInput = goerrors.New("invalid input", goerrors.CategoryBadInput).
	WithTextCode(TextCodeInvalidInput).
	WithCode(goerrors.CodeBadRequest)

// ErrInvalidState is returned when an operation is not allowed in the current phase.
var ErrInvalidState = goerrors.New("operation not allowed in current session phase", goerrors.CategoryOperation).
	WithTextCode(TextCodeInvalidState).
	WithCode(goerrors.CodeConflict)

// ErrInvalidSessionState is returned when a SessionState breaks its invariants.
var ErrInvalidSessionState = goerrors.New("session state is inconsistent", goerrors.CategoryInternal).
	WithTextCode(TextCodeInvalidSessionState).
	WithCode(goerrors.CodeInternal)

// ErrNotAuthorized is the provider's "wrong credentials" failure.
var ErrNotAuthorized = goerrors.New("incorrect username or password", goerrors.CategoryAuth).
	WithTextCode(TextCodeNotAuthorized).
	WithCode(goerrors.CodeUnauthorized)

// ErrUserNotFound is the provider's "no such user" failure.
var ErrUserNotFound = goerrors.New("user does not exist", goerrors.CategoryNotFound).
	WithTextCode(TextCodeUserNotFound).
	WithCode(goerrors.CodeNotFound)

// ErrUsernameExists is the provider's "duplicate registration" failure.
var ErrUsernameExists = goerrors.New("username already exists", goerrors.CategoryConflict).
	WithTextCode(TextCodeUsernameExists).
	WithCode(goerrors.CodeConflict)

// ErrCodeMismatch is the provider's "wrong confirmation code" failure.
var ErrCodeMismatch = goerrors.New("incorrect verification code", goerrors.CategoryValidation).
	WithTextCode(TextCodeCodeMismatch).
	WithCode(goerrors.CodeBadRequest)

// errorKinds is the error mapping table. Each sentinel carries its own
// category so matching stays unambiguous.
var errorKinds = []struct {
	target error
	kind   ErrorKind
}{
	{ErrInvalidInput, ErrorKindInvalidInput},
	{ErrInvalidState, ErrorKindInvalidState},
	{ErrNotAuthorized, ErrorKindNotAuthorized},
	{ErrUserNotFound, ErrorKindUserNotFound},
	{ErrUsernameExists, ErrorKindDuplicateUser},
	{ErrCodeMismatch, ErrorKindInvalidCode},
}

// ClassifyError maps any error to an ErrorKind. Unmapped errors, including
// timeouts and cancellations, are ErrorKindUnknown.
func ClassifyError(err error) ErrorKind {
	if err == nil {
		return ErrorKindNone
	}
	for _, entry := range errorKinds {
		if errors.Is(err, entry.target) {
			return entry.kind
		}
	}
	return ErrorKindUnknown
}

// ProviderError captures a normalized identity provider failure.
//
// Reason is one of the provider sentinels (ErrNotAuthorized, ErrUserNotFound,
// ErrUsernameExists, ErrCodeMismatch) or nil for unclassified failures. Err is
// the underlying client error.
type ProviderError struct {
	Provider    string
	Operation   string
	Code        string
	Description string
	Reason      error
	Err         error
}

// NewProviderError builds a ProviderError for the given provider operation.
func NewProviderError(provider, operation string, reason, err error) *ProviderError {
	return &ProviderError{
		Provider:  provider,
		Operation: operation,
		Reason:    reason,
		Err:       err,
	}
}

func (e *ProviderError) Error() string {
	if e == nil {
		return "provider error"
	}

	scope := "provider"
	if e.Provider != "" && e.Operation != "" {
		scope = fmt.Sprintf("%s %s", e.Provider, e.Operation)
	} else if e.Provider != "" {
		scope = e.Provider
	} else if e.Operation != "" {
		scope = e.Operation
	}

	switch {
	case e.Code != "" && e.Description != "":
		return fmt.Sprintf("%s failed: %s: %s", scope, e.Code, e.Description)
	case e.Description != "":
		return fmt.Sprintf("%s failed: %s", scope, e.Description)
	case e.Code != "":
		return fmt.Sprintf("%s failed: %s", scope, e.Code)
	case e.Err != nil:
		return fmt.Sprintf("%s failed: %v", scope, e.Err)
	case e.Reason != nil:
		return fmt.Sprintf("%s failed: %v", scope, e.Reason)
	}

	return fmt.Sprintf("%s failed", scope)
}

// Unwrap exposes both the sentinel reason and the client error to errors.Is/As.
func (e *ProviderError) Unwrap() []error {
	if e == nil {
		return nil
	}
	out := make([]error, 0, 2)
	if e.Reason != nil {
		out = append(out, e.Reason)
	}
	if e.Err != nil {
		out = append(out, e.Err)
	}
	return out
}

// Metadata returns the error details as a flat map for logging.
func (e *ProviderError) Metadata() map[string]any {
	if e == nil {
		return nil
	}

	meta := map[string]any{}
	if e.Provider != "" {
		meta["provider"] = e.Provider
	}
	if e.Operation != "" {
		meta["operation"] = e.Operation
	}
	if e.Code != "" {
		meta["code"] = e.Code
	}
	if e.Description != "" {
		meta["description"] = e.Description
	}
	if kind := ClassifyError(e); kind != ErrorKindUnknown {
		meta["kind"] = string(kind)
	}
	return meta
}
