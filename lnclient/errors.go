package lnclient

import (
	"errors"
	"fmt"
)

// ErrorKind classifies lightning failures so that callers can tell transient
// transport problems apart from fatal validation problems without inspecting
// error strings.
type ErrorKind string

const (
	ErrKindConnection   ErrorKind = "connection"
	ErrKindGetInfo      ErrorKind = "get_info"
	ErrKindGetNodeInfo  ErrorKind = "get_node_info"
	ErrKindListChannels ErrorKind = "list_channels"
	ErrKindGetGraph     ErrorKind = "get_graph"
	ErrKindPayment      ErrorKind = "payment"
	ErrKindInvoice      ErrorKind = "invoice"
	ErrKindRpc          ErrorKind = "rpc"
	ErrKindValidation   ErrorKind = "validation"
	ErrKindNotFound     ErrorKind = "not_found"
	ErrKindParse        ErrorKind = "parse"
	ErrKindStreaming    ErrorKind = "streaming"
)

// Error is the error type returned by every LNClient implementation.
type Error struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s error: %s: %s", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s error: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(kind ErrorKind, err error, format string, args ...interface{}) *Error {
	return &Error{
		Kind:    kind,
		Message: fmt.Sprintf(format, args...),
		Err:     err,
	}
}

func ConnectionError(err error, format string, args ...interface{}) *Error {
	return newError(ErrKindConnection, err, format, args...)
}

func GetInfoError(err error, format string, args ...interface{}) *Error {
	return newError(ErrKindGetInfo, err, format, args...)
}

func RpcError(err error, format string, args ...interface{}) *Error {
	return newError(ErrKindRpc, err, format, args...)
}

func ValidationError(format string, args ...interface{}) *Error {
	return newError(ErrKindValidation, nil, format, args...)
}

func NotFoundError(format string, args ...interface{}) *Error {
	return newError(ErrKindNotFound, nil, format, args...)
}

func ParseError(err error, format string, args ...interface{}) *Error {
	return newError(ErrKindParse, err, format, args...)
}

func StreamingError(err error, format string, args ...interface{}) *Error {
	return newError(ErrKindStreaming, err, format, args...)
}

// IsKind reports whether err carries the given lightning error kind.
func IsKind(err error, kind ErrorKind) bool {
	var lnErr *Error
	if errors.As(err, &lnErr) {
		return lnErr.Kind == kind
	}
	return false
}
