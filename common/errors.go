package common

import (
	"fmt"
	"net"

	"github.com/pkg/errors"
)

// Defines the error kinds surfaced by management sessions.

// Fixed authentication failure messages.
// A rejected login exchange and a refused request on an established session are reported
// with different text, so the caller can tell bad credentials from an expired session.
const (
	MsgLoginRejected  = "login rejected: invalid credentials"
	MsgSessionExpired = "session expired or not logged in"
)

// ConfigError reports an invalid session configuration, detected at construction.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("configuration error [%s] %s", e.Field, e.Reason)
}

// NewConfigError delivers a configuration error for the named field.
func NewConfigError(field, reason string) error {
	return &ConfigError{Field: field, Reason: reason}
}

// AuthError reports a rejected login or an expired session.
type AuthError struct {
	Message string
}

func (e *AuthError) Error() string {
	return "authentication error: " + e.Message
}

// NewAuthError delivers an authentication error with the given message.
func NewAuthError(msg string) error {
	return &AuthError{Message: msg}
}

// NetworkError reports a transport level failure: connection, DNS, timeout, or a reply
// that could not be understood at the HTTP layer.
type NetworkError struct {
	Op  string
	URL string
	Err error
}

func (e *NetworkError) Error() string {
	if e.URL == "" {
		return fmt.Sprintf("network error [%s] %v", e.Op, e.Err)
	}
	return fmt.Sprintf("network error [%s %s] %v", e.Op, e.URL, e.Err)
}

// Cause returns the underlying error, for use with errors.Cause.
func (e *NetworkError) Cause() error { return e.Err }

// Unwrap returns the underlying error.
func (e *NetworkError) Unwrap() error { return e.Err }

// Timeout reports whether the failure was caused by a timeout.
func (e *NetworkError) Timeout() bool {
	var ne net.Error
	if errors.As(e.Err, &ne) {
		return ne.Timeout()
	}
	return false
}

// NewNetworkError wraps err as a network error for the operation op against url.
func NewNetworkError(op, url string, err error) error {
	return &NetworkError{Op: op, URL: url, Err: err}
}

// ValidationError reports a structurally invalid argument. It is always raised before any
// request is sent.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "validation error: " + e.Reason
}

// NewValidationError delivers a validation error.
func NewValidationError(format string, args ...interface{}) error {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}

// ActionError reports an operation that reached the server and was authenticated, but that
// the server says failed.
type ActionError struct {
	Code    string
	Message string
}

func (e *ActionError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("action failed '%s'", e.Message)
	}
	return fmt.Sprintf("action failed [%s] '%s'", e.Code, e.Message)
}

// NewActionError delivers an action failure with the server's code and message.
func NewActionError(code, msg string) error {
	return &ActionError{Code: code, Message: msg}
}

// IsConfigError reports whether err, or any error it wraps, is a ConfigError.
func IsConfigError(err error) bool {
	var target *ConfigError
	return errors.As(err, &target)
}

// IsAuthError reports whether err, or any error it wraps, is an AuthError.
func IsAuthError(err error) bool {
	var target *AuthError
	return errors.As(err, &target)
}

// IsNetworkError reports whether err, or any error it wraps, is a NetworkError.
func IsNetworkError(err error) bool {
	var target *NetworkError
	return errors.As(err, &target)
}

// IsValidationError reports whether err, or any error it wraps, is a ValidationError.
func IsValidationError(err error) bool {
	var target *ValidationError
	return errors.As(err, &target)
}

// IsActionError reports whether err, or any error it wraps, is an ActionError.
func IsActionError(err error) bool {
	var target *ActionError
	return errors.As(err, &target)
}
