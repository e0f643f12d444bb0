// SPDX-FileCopyrightText: 2024 Campus Rallye Admin contributors
//
// SPDX-License-Identifier: Apache-2.0

package auth

import (
	"errors"
	"fmt"
)

// ErrorCode categorizes every failure the identity bridge can produce.
type ErrorCode string

const (
	// ErrCodeVerification covers bad signature, wrong issuer, wrong audience,
	// malformed token and missing token header. Always treated as "no identity".
	ErrCodeVerification ErrorCode = "verification_failed"
	// ErrCodeAuthorization means the identity is valid but policy says no.
	ErrCodeAuthorization ErrorCode = "access_denied"
	// ErrCodeConfiguration means a required environment value is absent.
	ErrCodeConfiguration ErrorCode = "configuration_missing"
	// ErrCodeDataLayer means a profile lookup or insert itself failed.
	// Never conflated with "profile not found".
	ErrCodeDataLayer ErrorCode = "data_layer_failure"
)

var errorMessages = map[ErrorCode]string{
	ErrCodeVerification:  "token verification failed",
	ErrCodeAuthorization: "access denied",
	ErrCodeConfiguration: "required configuration missing",
	ErrCodeDataLayer:     "data layer call failed",
}

// Error wraps bridge failures with a stable code.
type Error struct {
	Code    ErrorCode
	Message string
	Err     error
}

func (e *Error) Error() string {
	base := e.Message
	if base == "" {
		base = string(e.Code)
	}
	if e.Err == nil {
		return base
	}
	return fmt.Sprintf("%s: %v", base, e.Err)
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}

// NewError wraps err with the default message for code.
func NewError(code ErrorCode, err error) error {
	msg, ok := errorMessages[code]
	if !ok {
		msg = string(code)
	}
	return &Error{Code: code, Message: msg, Err: err}
}

// NewErrorf creates an error with the given code and a formatted message.
func NewErrorf(code ErrorCode, format string, args ...interface{}) error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// HasCode reports whether err carries the given bridge error code.
func HasCode(err error, code ErrorCode) bool {
	var bridgeErr *Error
	if errors.As(err, &bridgeErr) {
		return bridgeErr.Code == code
	}
	return false
}
