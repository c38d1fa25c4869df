package client

import (
	"io"
	"net/http"
	"time"

	"github.com/damianoneill/mgmt/common"
)

// Defines structs describing session configuration.

// Supported protocols.
const (
	HTTP  = "http"
	HTTPS = "https"
)

// SessionOption implements options for configuring session behaviour.
type SessionOption func(*SessionConfig)

// SessionConfig defines properties controlling session behaviour.
type SessionConfig struct {
	// http or https.
	protocol string
	// Optional port, zero meaning the protocol default.
	port int
	// Credentials used to log in.
	user     string
	password string
	// Re-login and retry once when the server reports an expired session.
	keepalive bool
	// Log request and response bodies.
	debug bool
	// Log in when the session is created.
	autoLogin bool
	// Timeout applied to each HTTP exchange, zero meaning no timeout.
	timeout time.Duration
	// Skip verification of the server certificate.
	insecureSkipVerify bool
	// Destination of log lines.
	sink common.Sink
	// Records an invalid sink option, reported when the session is created.
	sinkErr error
	// Explicit trace hooks, overriding the sink derived hooks.
	trace *common.SessionTrace
	// Caller supplied http client; a cookie jar is added if it has none.
	httpClient *http.Client
	// Caller supplied transport, used verbatim.
	transport Transport
}

var defaultConfig = SessionConfig{
	protocol:  HTTPS,
	keepalive: true,
	autoLogin: true,
}

// Protocol defines the protocol used to reach the host, one of http or https.
// Default value is https.
func Protocol(value string) SessionOption {
	return func(c *SessionConfig) {
		c.protocol = value
	}
}

// Port defines the port used to reach the host.
// Default value is the protocol default port.
func Port(value int) SessionOption {
	return func(c *SessionConfig) {
		c.port = value
	}
}

// Credentials defines the user name and password used to log in.
func Credentials(user, password string) SessionOption {
	return func(c *SessionConfig) {
		c.user = user
		c.password = password
	}
}

// Keepalive defines whether an expired session is logged in again and the failed request retried once.
// Default value is true.
func Keepalive(value bool) SessionOption {
	return func(c *SessionConfig) {
		c.keepalive = value
	}
}

// Debug defines whether request and response bodies are logged.
// Default value is false.
func Debug(value bool) SessionOption {
	return func(c *SessionConfig) {
		c.debug = value
	}
}

// AutoLogin defines whether the session logs in when it is created.
// Default value is true.
func AutoLogin(value bool) SessionOption {
	return func(c *SessionConfig) {
		c.autoLogin = value
	}
}

// Timeout defines the timeout applied to each HTTP exchange.
// Default value is 0, meaning the http.Client default (no timeout).
func Timeout(value time.Duration) SessionOption {
	return func(c *SessionConfig) {
		c.timeout = value
	}
}

// InsecureSkipVerify disables verification of the server certificate for https.
func InsecureSkipVerify(value bool) SessionOption {
	return func(c *SessionConfig) {
		c.insecureSkipVerify = value
	}
}

// LogSink defines the sink that receives session log lines.
// Default value is common.StdoutSink().
func LogSink(sink common.Sink) SessionOption {
	return func(c *SessionConfig) {
		if sink == nil {
			c.sinkErr = common.NewConfigError("log sink", "sink must not be nil")
			return
		}
		c.sink, c.sinkErr = sink, nil
	}
}

// LogWriter defines a writer that receives session log lines.
func LogWriter(w io.Writer) SessionOption {
	return func(c *SessionConfig) {
		c.sink, c.sinkErr = common.NewWriterSink(w)
	}
}

// LoggingHooks defines a set of logging hooks to be used by the session.
// Default value is common.NewLoggingHooks for the configured sink.
func LoggingHooks(trace *common.SessionTrace) SessionOption {
	return func(c *SessionConfig) {
		c.trace = trace
	}
}

// HTTPClient defines the http client used for exchanges.
func HTTPClient(value *http.Client) SessionOption {
	return func(c *SessionConfig) {
		c.httpClient = value
	}
}

// WithTransport defines the transport used for exchanges, bypassing http client construction.
func WithTransport(value Transport) SessionOption {
	return func(c *SessionConfig) {
		c.transport = value
	}
}

func resolveConfig(opts []SessionOption) (*SessionConfig, error) {
	config := defaultConfig
	for _, opt := range opts {
		opt(&config)
	}

	if config.protocol != HTTP && config.protocol != HTTPS {
		return nil, common.NewConfigError("protocol", "must be http or https, got '"+config.protocol+"'")
	}
	if config.port < 0 || config.port > 65535 {
		return nil, common.NewConfigError("port", "out of range")
	}
	if config.sinkErr != nil {
		return nil, config.sinkErr
	}
	if config.sink == nil {
		config.sink = common.StdoutSink()
	}
	return &config, nil
}
