package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// Provider error codes interpreted by the connection manager.
const (
	CodeUserRejected      = 4001
	CodeUnrecognizedChain = 4902
	CodeRequestPending    = -32002
)

// Kind classifies a provider failure.
type Kind int

const (
	KindProviderFailure Kind = iota
	KindUnavailable
	KindUserRejected
	KindRequestPending
	KindUnrecognizedChain
	KindTimeout
)

func (k Kind) String() string {
	switch k {
	case KindUnavailable:
		return "unavailable"
	case KindUserRejected:
		return "user_rejected"
	case KindRequestPending:
		return "request_pending"
	case KindUnrecognizedChain:
		return "unrecognized_chain"
	case KindTimeout:
		return "timeout"
	default:
		return "provider_failure"
	}
}

// Error is a decoded provider failure.
type Error struct {
	Kind    Kind            `json:"-"`
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

func (e *Error) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("provider error %d: %s", e.Code, e.Message)
	}
	return e.Message
}

// NewError builds an Error and classifies it from its code.
func NewError(code int, message string) *Error {
	return &Error{Kind: kindForCode(code), Code: code, Message: message}
}

func kindForCode(code int) Kind {
	switch code {
	case CodeUserRejected:
		return KindUserRejected
	case CodeRequestPending:
		return KindRequestPending
	case CodeUnrecognizedChain:
		return KindUnrecognizedChain
	default:
		return KindProviderFailure
	}
}

// Decode converts any error returned by a Provider into *Error.
func Decode(err error) *Error {
	if err == nil {
		return nil
	}

	var perr *Error
	if errors.As(err, &perr) {
		decoded := *perr
		if decoded.Kind == KindProviderFailure {
			decoded.Kind = kindForCode(decoded.Code)
		}
		return &decoded
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return &Error{Kind: KindTimeout, Message: "request timed out"}
	}

	return &Error{Kind: KindProviderFailure, Message: err.Error()}
}
