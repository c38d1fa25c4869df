package common

import (
	"context"
	"fmt"
	"time"

	"github.com/imdario/mergo"
)

// unique type to prevent assignment.
type sessionEventContextKey struct{}

// ContextSessionTrace returns the SessionTrace associated with the
// provided context. If none, it returns nil.
func ContextSessionTrace(ctx context.Context) *SessionTrace {
	trace, _ := ctx.Value(sessionEventContextKey{}).(*SessionTrace)
	return trace
}

// WithSessionTrace returns a new context based on the provided parent
// ctx. Sessions created with the returned context will use
// the provided trace hooks, unless hooks are supplied explicitly as a session option.
func WithSessionTrace(ctx context.Context, trace *SessionTrace) context.Context {
	return context.WithValue(ctx, sessionEventContextKey{}, trace)
}

// SessionTrace defines a structure for handling trace events.
type SessionTrace struct {
	// LoginStart is called before a login exchange is submitted.
	LoginStart func(target, user string)

	// LoginDone is called when a login attempt completes, ok indicating whether the
	// session is now authenticated.
	LoginDone func(target, user string, ok bool, err error, d time.Duration)

	// LogoutDone is called after a logout attempt, err indicating any problem detected.
	LogoutDone func(target string, err error)

	// ExchangeStart is called before an HTTP request is sent.
	ExchangeStart func(id, method, url string, body []byte)

	// ExchangeDone is called after an HTTP exchange completes.
	ExchangeDone func(id, method, url string, status int, body []byte, err error, d time.Duration)

	// Retry is called when an authentication failure triggers a re-login and retry.
	Retry func(target string, cause error)

	// Error is called after an error condition has been detected.
	Error func(context, target string, err error)
}

// NoOpLoggingHooks provides set of hooks that do nothing.
var NoOpLoggingHooks = &SessionTrace{
	LoginStart:    func(target, user string) {},
	LoginDone:     func(target, user string, ok bool, err error, d time.Duration) {},
	LogoutDone:    func(target string, err error) {},
	ExchangeStart: func(id, method, url string, body []byte) {},
	ExchangeDone:  func(id, method, url string, status int, body []byte, err error, d time.Duration) {},
	Retry:         func(target string, cause error) {},
	Error:         func(context, target string, err error) {},
}

// CompleteTrace returns a copy of trace, with any undefined hooks set to no-ops.
func CompleteTrace(trace *SessionTrace) *SessionTrace {
	if trace == nil {
		return NoOpLoggingHooks
	}
	resolved := *trace
	_ = mergo.Merge(&resolved, NoOpLoggingHooks)
	return &resolved
}

// NewLoggingHooks provides a set of hooks that write each event to the sink.
// If debug is set, request and response bodies are written too.
func NewLoggingHooks(sink Sink, debug bool) *SessionTrace {
	emit := func(format string, args ...interface{}) {
		_ = sink.WriteLine(fmt.Sprintf(format, args...))
		_ = sink.Flush()
	}

	trace := &SessionTrace{
		LoginStart: func(target, user string) {
			emit("MGMT-LoginStart target:%s user:%s", target, user)
		},
		LoginDone: func(target, user string, ok bool, err error, d time.Duration) {
			if ok {
				emit("MGMT-LoginDone target:%s user:%s ok:true took:%dms", target, user, d.Milliseconds())
				return
			}
			emit("MGMT-LoginDone target:%s user:%s ok:false err:%v took:%dms", target, user, err, d.Milliseconds())
		},
		LogoutDone: func(target string, err error) {
			if err != nil {
				emit("MGMT-LogoutDone target:%s warning:%v", target, err)
				return
			}
			emit("MGMT-LogoutDone target:%s", target)
		},
		ExchangeDone: func(id, method, url string, status int, body []byte, err error, d time.Duration) {
			emit("MGMT-ExchangeDone id:%s %s %s status:%d err:%v took:%dms", id, method, url, status, err, d.Milliseconds())
		},
		Retry: func(target string, cause error) {
			emit("MGMT-Retry target:%s cause:%v", target, cause)
		},
		Error: func(context, target string, err error) {
			emit("MGMT-Error context:%s target:%s err:%v", context, target, err)
		},
	}

	if debug {
		trace.ExchangeStart = func(id, method, url string, body []byte) {
			emit("MGMT-ExchangeStart id:%s %s %s body:%s", id, method, url, body)
		}
		exchangeDone := trace.ExchangeDone
		trace.ExchangeDone = func(id, method, url string, status int, body []byte, err error, d time.Duration) {
			exchangeDone(id, method, url, status, body, err, d)
			emit("MGMT-Response id:%s body:%s", id, body)
		}
	}
	return CompleteTrace(trace)
}
