package engine

import (
	"errors"
	"fmt"
)

// Code identifies a settlement failure class. Codes are stable API: the
// orchestrator's retry table and the HTTP error payloads key off them.
type Code string

const (
	CodeInvalidSignature     Code = "InvalidSignature"
	CodeInvalidNonce         Code = "InvalidNonce"
	CodeCallFailed           Code = "CallFailed"
	CodeTransferFailed       Code = "TransferFailed"
	CodeOnlyAuthorizedCaller Code = "OnlyAuthorizedCaller"
)

// Error is the engine's structured failure: a code, the failing batch index
// for CallFailed, and the underlying cause (logged, never forwarded).
type Error struct {
	Code  Code
	Index int
	cause error
}

func (e *Error) Error() string {
	if e.Code == CodeCallFailed {
		return fmt.Sprintf("%s(%d)", e.Code, e.Index)
	}
	return string(e.Code)
}

func (e *Error) Unwrap() error { return e.cause }

// Message is the user-visible half of the {code, message} pair.
func (e *Error) Message() string {
	switch e.Code {
	case CodeInvalidSignature:
		return "operation signature is malformed or does not recover to the sender"
	case CodeInvalidNonce:
		return "operation nonce does not match the account's current counter"
	case CodeCallFailed:
		return fmt.Sprintf("batch call %d reverted", e.Index)
	case CodeTransferFailed:
		return "fee compensation transfer could not move funds"
	case CodeOnlyAuthorizedCaller:
		return "batch executor invoked outside the settlement boundary"
	}
	return string(e.Code)
}

func newError(code Code, cause error) *Error {
	return &Error{Code: code, Index: -1, cause: cause}
}

func newCallFailed(index int, cause error) *Error {
	return &Error{Code: CodeCallFailed, Index: index, cause: cause}
}

// HasCode reports whether err is an engine Error with the given code.
func HasCode(err error, code Code) bool {
	var e *Error
	return errors.As(err, &e) && e.Code == code
}
