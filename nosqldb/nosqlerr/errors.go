//
// Copyright (C) 2019, 2024 Oracle and/or its affiliates. All rights reserved.
//
// Licensed under the Universal Permissive License v 1.0 as shown at https://oss.oracle.com/licenses/upl
//
// Please see LICENSE.txt file included in the top-level directory of the
// appropriate download for a copy of the license and additional information.
//

// Package nosqlerr defines types and error code constants that represent errors
// which may be returned by the driver.
package nosqlerr

import (
	"errors"
	"fmt"
)

// Error represents an error that wraps the error code, error message and an
// optional cause of the error.
//
// This implements the error interface.
type Error struct {
	// Code specifies the error code.
	Code ErrorCode `json:"code"`

	// Message specifies the description of error.
	Message string `json:"message"`

	// Cause optionally specifies the cause of error.
	Cause error `json:"cause,omitempty"`
}

// New creates an error with the specified error code and message.
func New(code ErrorCode, msgFmt string, msgArgs ...interface{}) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(msgFmt, msgArgs...),
	}
}

// NewWithCause creates an error with the specified error code, message and the cause of error.
func NewWithCause(code ErrorCode, cause error, msgFmt string, msgArgs ...interface{}) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(msgFmt, msgArgs...),
		Cause:   cause,
	}
}

// Error returns a descriptive message for the error.
func (e *Error) Error() string {
	if e.Cause == nil {
		return fmt.Sprintf("[%s]: %s", e.Code.String(), e.Message)
	}

	return fmt.Sprintf("[%s]: %s. Caused by:\n\t%s", e.Code.String(), e.Message, e.Cause.Error())
}

// Unwrap returns the cause of the error, so that errors.Is and errors.As can
// inspect the chain.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Retryable returns whether the error is a recoverable error that may be
// handed to a retry policy.
func (e *Error) Retryable() bool {
	return retryableErrors[e.Code]
}

// retryableErrors represents a map whose keys are the error codes of pre-defined
// errors that are retryable. This is used as a fast lookup table to check if
// an error is retryable.
var retryableErrors = map[ErrorCode]bool{
	ServerError:       true,
	Overloaded:        true,
	IsBootstrapping:   true,
	Unavailable:       true,
	ReadTimeout:       true,
	WriteTimeout:      true,
	ConnectionFailure: true,
	TruncateError:     true,
}

// NewIllegalArgument creates an IllegalArgument error with the specified message.
func NewIllegalArgument(msgFmt string, msgArgs ...interface{}) *Error {
	return New(IllegalArgument, msgFmt, msgArgs...)
}

// NewIllegalState creates an IllegalState error with the specified message.
func NewIllegalState(msgFmt string, msgArgs ...interface{}) *Error {
	return New(IllegalState, msgFmt, msgArgs...)
}

// NewRequestTimeout creates a RequestTimeout error with the specified message.
func NewRequestTimeout(msgFmt string, msgArgs ...interface{}) *Error {
	return New(RequestTimeout, msgFmt, msgArgs...)
}

// NewConfigurationError creates a ConfigurationError error with the specified message.
func NewConfigurationError(msgFmt string, msgArgs ...interface{}) *Error {
	return New(ConfigurationError, msgFmt, msgArgs...)
}

// Is checks if the specified error is, or wraps, an Error value and the error
// code matches any of the expected error codes if specified.
func Is(err error, expectedCodes ...ErrorCode) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}

	if len(expectedCodes) == 0 {
		return true
	}

	for _, code := range expectedCodes {
		if e.Code == code {
			return true
		}
	}

	return false
}

// CodeOf returns the error code of err, or UnknownError if err is not an Error.
// It returns NoError for a nil err.
func CodeOf(err error) ErrorCode {
	if err == nil {
		return NoError
	}

	var e *Error
	if !errors.As(err, &e) {
		return UnknownError
	}
	return e.Code
}

// IsRecoverable returns true if the specified error is a node-reported error
// that may be handed to a retry policy.
func IsRecoverable(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.Retryable()
}

// IsFatal returns true if the specified error is a protocol error that must
// never be retried.
func IsFatal(err error) bool {
	c := CodeOf(err)
	return c >= ProtocolError && c < ServerError
}

// IsIllegalArgument returns true if the specified error is an IllegalArgument error,
// otherwise returns false.
func IsIllegalArgument(err error) bool {
	return Is(err, IllegalArgument)
}

// IsRequestTimeout returns true if the specified error is a RequestTimeout error,
// otherwise returns false.
func IsRequestTimeout(err error) bool {
	return Is(err, RequestTimeout)
}

// ErrorCode represents the error code.
// Error codes are divided into categories as follows:
//
// 1. Error codes for client-side errors, range from 1 to 50(exclusive).
// These are raised by the driver itself before or instead of contacting a node,
// such as illegal arguments, unknown profiles, an exhausted query plan or a
// full admission queue.
//
// 2. Error codes for fatal protocol errors, range from 50 to 100(exclusive).
// These are reported by a node and are never retried.
//
// 3. Error codes for recoverable protocol errors, range from 100 to 125(exclusive).
// These are reported by a node, or by the transport on behalf of a node, and
// are handed to the retry policy.
//
// 4. Other errors, begin from 125.
// These include the request timeout and unknown errors.
type ErrorCode int

const (
	// NoError represents there is no error.
	NoError ErrorCode = iota // 0

	// IllegalArgument error represents the application provided an illegal
	// argument for the operation.
	IllegalArgument // 1

	// ConfigurationError represents a request referenced an execution profile
	// or policy that does not exist. It is raised before the request is
	// registered with the throttler.
	ConfigurationError // 2

	// NoNodesAvailable represents the query plan was empty or has been
	// exhausted before any attempt succeeded.
	NoNodesAvailable // 3

	// CapacityExceeded represents the throttler's pending queue is full and
	// the request could not be admitted.
	CapacityExceeded // 4

	// ClientClosed represents the session or its throttler was closed while
	// the request was pending, or before it was submitted.
	ClientClosed // 5

	// IllegalState error represents an illegal state, such as a throttler
	// ticket being signalled more than once.
	IllegalState // 6

	// RequestCancelled represents the caller cancelled the request context.
	RequestCancelled // 7
)

const (
	// ProtocolError represents the node could not decode or process the
	// request message.
	ProtocolError ErrorCode = iota + 50 // 50

	// SyntaxError represents the statement is syntactically invalid.
	SyntaxError // 51

	// InvalidQuery represents the statement is syntactically valid but
	// invalid, for example it references an unknown table.
	InvalidQuery // 52

	// Unauthorized represents the logged user lacks permission to perform
	// the operation.
	Unauthorized // 53

	// AuthenticationError represents the node rejected the credentials.
	AuthenticationError // 54

	// AlreadyExists represents a schema element already exists.
	AlreadyExists // 55

	// FunctionFailure represents a user defined function failed during
	// execution.
	FunctionFailure // 56
)

const (
	// ServerError represents there is an internal problem on the node.
	// Most of these problems are temporary.
	ServerError ErrorCode = iota + 100 // 100

	// Overloaded represents the node is overloaded and shed the request.
	Overloaded // 101

	// IsBootstrapping represents the node is still bootstrapping.
	IsBootstrapping // 102

	// Unavailable represents the coordinator knew up front that not enough
	// replicas were alive to satisfy the requested consistency.
	Unavailable // 103

	// ReadTimeout represents the coordinator timed out waiting for replica
	// responses to a read.
	ReadTimeout // 104

	// WriteTimeout represents the coordinator timed out waiting for replica
	// acknowledgements of a write. The write may have been partially applied.
	WriteTimeout // 105

	// ConnectionFailure represents the transport could not reach the node or
	// lost the connection while the attempt was in flight.
	ConnectionFailure // 106

	// TruncateError represents an error during a truncate operation.
	TruncateError // 107
)

const (
	// RequestTimeout error represents the request does not complete when the
	// request timeout elapses.
	//
	// It is possible that the request has been retried a number of times
	// before the timeout occurs.
	RequestTimeout ErrorCode = iota + 125 // 125

	// UnknownError represents an unknown error has occurred.
	UnknownError // 126
)

var codeNames = map[ErrorCode]string{
	NoError:             "NoError",
	IllegalArgument:     "IllegalArgument",
	ConfigurationError:  "ConfigurationError",
	NoNodesAvailable:    "NoNodesAvailable",
	CapacityExceeded:    "CapacityExceeded",
	ClientClosed:        "ClientClosed",
	IllegalState:        "IllegalState",
	RequestCancelled:    "RequestCancelled",
	ProtocolError:       "ProtocolError",
	SyntaxError:         "SyntaxError",
	InvalidQuery:        "InvalidQuery",
	Unauthorized:        "Unauthorized",
	AuthenticationError: "AuthenticationError",
	AlreadyExists:       "AlreadyExists",
	FunctionFailure:     "FunctionFailure",
	ServerError:         "ServerError",
	Overloaded:          "Overloaded",
	IsBootstrapping:     "IsBootstrapping",
	Unavailable:         "Unavailable",
	ReadTimeout:         "ReadTimeout",
	WriteTimeout:        "WriteTimeout",
	ConnectionFailure:   "ConnectionFailure",
	TruncateError:       "TruncateError",
	RequestTimeout:      "RequestTimeout",
	UnknownError:        "UnknownError",
}

// String returns the name of the error code.
func (c ErrorCode) String() string {
	if s, ok := codeNames[c]; ok {
		return s
	}
	return fmt.Sprintf("ErrorCode(%d)", int(c))
}

// IsKnown reports whether c is one of the error codes defined in this package.
func (c ErrorCode) IsKnown() bool {
	_, ok := codeNames[c]
	return ok
}
