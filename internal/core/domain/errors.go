package domain

import "errors"

// Code is a stable five-letter policy error code. Codes are safe to show to
// end users verbatim and map to HTTP 400 at the transport boundary.
type Code string

const (
	CodeLocked          Code = "LOCKD"
	CodeWeakPassword    Code = "WEAKP"
	CodeLoginRequired   Code = "LOGIN"
	CodeDenied          Code = "DNIED"
	CodeBadCredentials  Code = "CREDS"
	CodeModifiedData    Code = "MODAT"
	CodeTaken           Code = "TAKEN"
	CodeLastEmail       Code = "CDLEA"
	CodeUnverifiedEmail Code = "VRFY1"
	CodeAlreadyVerified Code = "VRFY2"
	CodeAlreadyMember   Code = "ISMBR"
	CodeNotFound        Code = "NTFND"
	CodeNotOwner        Code = "OWNER"
)

// Error is a policy violation raised by the identity layer.
type Error struct {
	Code    Code
	Message string
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Message == "" {
		return string(e.Code)
	}
	return string(e.Code) + ": " + e.Message
}

// NewError builds a policy error with the given code and message.
func NewError(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// CodeOf extracts the policy code from an error chain, if any.
func CodeOf(err error) (Code, bool) {
	var domainErr *Error
	if errors.As(err, &domainErr) {
		return domainErr.Code, true
	}
	return "", false
}
