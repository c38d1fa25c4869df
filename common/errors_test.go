package common

import (
	"net"
	"testing"

	"github.com/pkg/errors"
	assert "github.com/stretchr/testify/require"
)

func TestErrorKinds(t *testing.T) {
	assert.True(t, IsConfigError(NewConfigError("protocol", "bad")))
	assert.True(t, IsAuthError(NewAuthError(MsgSessionExpired)))
	assert.True(t, IsNetworkError(NewNetworkError("GET", "http://host", errors.New("refused"))))
	assert.True(t, IsValidationError(NewValidationError("node %d is nil", 1)))
	assert.True(t, IsActionError(NewActionError("1", "failed")))

	assert.False(t, IsAuthError(NewActionError("1", "failed")), "Kinds should be distinct")
	assert.False(t, IsNetworkError(nil), "nil is no kind")
}

func TestErrorKindsSurviveWrapping(t *testing.T) {
	err := errors.Wrap(NewAuthError(MsgLoginRejected), "open failed")
	assert.True(t, IsAuthError(err), "Wrapped error should still be an AuthError")

	var ae *AuthError
	assert.True(t, errors.As(err, &ae))
	assert.Equal(t, MsgLoginRejected, ae.Message)
}

func TestErrorMessages(t *testing.T) {
	assert.Equal(t, "configuration error [port] out of range", NewConfigError("port", "out of range").Error())
	assert.Equal(t, "authentication error: "+MsgSessionExpired, NewAuthError(MsgSessionExpired).Error())
	assert.Equal(t, "validation error: node 2 is nil", NewValidationError("node %d is nil", 2).Error())
	assert.Equal(t, "action failed 'bad thing'", NewActionError("", "bad thing").Error())
	assert.Equal(t, "action failed [3] 'no such node'", NewActionError("3", "no such node").Error())
	assert.Equal(t, "network error [parse] junk", NewNetworkError("parse", "", errors.New("junk")).Error())
	assert.Equal(t, "network error [GET http://h/] refused", NewNetworkError("GET", "http://h/", errors.New("refused")).Error())
}

type timeoutError struct{}

func (timeoutError) Error() string   { return "i/o timeout" }
func (timeoutError) Timeout() bool   { return true }
func (timeoutError) Temporary() bool { return true }

var _ net.Error = timeoutError{}

func TestNetworkErrorTimeout(t *testing.T) {
	cause := errors.Wrap(timeoutError{}, "read")
	err := NewNetworkError("GET", "http://h/", cause)

	var nerr *NetworkError
	assert.True(t, errors.As(err, &nerr))
	assert.True(t, nerr.Timeout(), "Expecting a timeout")
	assert.Equal(t, timeoutError{}, errors.Cause(err), "Cause should deliver the root error")

	assert.False(t, NewNetworkError("GET", "", errors.New("refused")).(*NetworkError).Timeout())
}
