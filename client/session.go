package client

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/damianoneill/mgmt/common"
)

// Dialect defines the wire protocol specific behaviour plugged into a Session.
// Implementations perform their exchanges with RoundTrip, so that the keepalive policy
// is applied only by the session.
type Dialect interface {
	// Name identifies the dialect in log output.
	Name() string

	// Login authenticates the session, returning nil only on confirmed success.
	Login(ctx context.Context, s *Session) error

	// Logout ends the server side session.
	Logout(ctx context.Context, s *Session) error
}

// Request defines a single HTTP exchange. It is built afresh for each attempt.
type Request interface {
	HTTPRequest(ctx context.Context, baseURL string) (*http.Request, error)
}

// RequestFunc adapts a function to a Request.
type RequestFunc func(ctx context.Context, baseURL string) (*http.Request, error)

// HTTPRequest calls f.
func (f RequestFunc) HTTPRequest(ctx context.Context, baseURL string) (*http.Request, error) {
	return f(ctx, baseURL)
}

// Sensitive is implemented by requests whose body must not be logged, such as logins.
type Sensitive interface {
	Sensitive() bool
}

// Reply holds the raw result of an exchange.
type Reply struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// ReplyHandler parses a reply. Returning an AuthError marks the session closed and,
// if keepalive is enabled, triggers a single re-login and retry.
type ReplyHandler func(reply *Reply) error

// Session represents an authenticated connection to a single management host.
// A Session is not safe for concurrent requests; use one session per worker.
type Session struct {
	config    *SessionConfig
	host      string
	dialect   Dialect
	transport Transport
	trace     *common.SessionTrace

	mu      sync.Mutex
	closed  bool
	baseURL string
}

// New creates a session to host using the supplied dialect.
// Unless AutoLogin(false) is specified, the session attempts to log in; a failed login
// is not an error, the returned session simply remains closed.
func New(ctx context.Context, host string, dialect Dialect, opts ...SessionOption) (*Session, error) {
	if host == "" {
		return nil, common.NewConfigError("host", "must not be empty")
	}
	if dialect == nil {
		return nil, common.NewConfigError("dialect", "must not be nil")
	}

	cfg, err := resolveConfig(opts)
	if err != nil {
		return nil, err
	}

	s := &Session{config: cfg, host: host, dialect: dialect, closed: true}
	s.baseURL = s.defaultBaseURL()

	switch {
	case cfg.trace != nil:
		s.trace = common.CompleteTrace(cfg.trace)
	case common.ContextSessionTrace(ctx) != nil:
		s.trace = common.CompleteTrace(common.ContextSessionTrace(ctx))
	default:
		s.trace = common.NewLoggingHooks(cfg.sink, cfg.debug)
	}

	s.transport = cfg.transport
	if s.transport == nil {
		if s.transport, err = newHTTPTransport(cfg); err != nil {
			return nil, err
		}
	}

	if cfg.autoLogin {
		s.Open(ctx)
	}
	return s, nil
}

func (s *Session) defaultBaseURL() string {
	host := s.host
	if s.config.port > 0 {
		host = net.JoinHostPort(s.host, strconv.Itoa(s.config.port))
	}
	return fmt.Sprintf("%s://%s", s.config.protocol, host)
}

// Open logs in, returning true only if the dialect confirms success.
// Failures are logged, never returned.
func (s *Session) Open(ctx context.Context) bool {
	begin := time.Now()
	s.trace.LoginStart(s.host, s.config.user)

	err := s.dialect.Login(ctx, s)
	ok := err == nil
	s.setClosed(!ok)

	s.trace.LoginDone(s.host, s.config.user, ok, err, time.Since(begin))
	return ok
}

// Login is an alias for Open.
func (s *Session) Login(ctx context.Context) bool {
	return s.Open(ctx)
}

// Close logs out and marks the session closed. It is a no-op on a closed session and
// never reports an error; problems are only logged.
func (s *Session) Close(ctx context.Context) {
	if s.Closed() {
		return
	}
	defer s.setClosed(true)

	err := s.dialect.Logout(ctx, s)
	if err != nil && !common.IsAuthError(err) {
		s.trace.Error("Logout", s.host, err)
	}
	s.trace.LogoutDone(s.host, err)

	if c, ok := s.transport.(idleCloser); ok {
		c.CloseIdleConnections()
	}
}

// Closed reports whether the session is not authenticated.
func (s *Session) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *Session) setClosed(closed bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = closed
}

// BaseURL delivers the URL prefix of all requests.
func (s *Session) BaseURL() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.baseURL
}

// SetBaseURL redirects subsequent requests, for dialects whose login reply names a new endpoint.
func (s *Session) SetBaseURL(u string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.baseURL = u
}

// DefaultBaseURL delivers the base URL derived from the session configuration.
func (s *Session) DefaultBaseURL() string {
	return s.defaultBaseURL()
}

// ResetBaseURL restores the base URL derived from the session configuration.
func (s *Session) ResetBaseURL() {
	s.SetBaseURL(s.defaultBaseURL())
}

// Host delivers the management host the session targets.
func (s *Session) Host() string { return s.host }

// User delivers the configured user name.
func (s *Session) User() string { return s.config.user }

// Password delivers the configured password.
func (s *Session) Password() string { return s.config.password }

// Protocol delivers the configured protocol, http or https.
func (s *Session) Protocol() string { return s.config.protocol }

// Port delivers the configured port, zero meaning the protocol default.
func (s *Session) Port() int { return s.config.port }

// Keepalive reports whether expired sessions are logged in again.
func (s *Session) Keepalive() bool { return s.config.keepalive }

// Debug reports whether bodies are logged.
func (s *Session) Debug() bool { return s.config.debug }

// Dialect delivers the dialect plugged into the session.
func (s *Session) Dialect() Dialect { return s.dialect }

// Trace delivers the trace hooks in use by the session.
func (s *Session) Trace() *common.SessionTrace { return s.trace }

// Log reports a dialect level problem through the session error hook.
func (s *Session) Log(context string, err error) {
	s.trace.Error(context, s.host, err)
}

// RoundTrip performs a single exchange, without any retry.
// Transport failures are delivered as a common.NetworkError.
func (s *Session) RoundTrip(ctx context.Context, req Request) (reply *Reply, err error) {
	hreq, err := req.HTTPRequest(ctx, s.BaseURL())
	if err != nil {
		return nil, errors.Wrap(err, "failed to build request")
	}

	id := uuid.NewString()
	method, target := hreq.Method, hreq.URL.String()
	s.trace.ExchangeStart(id, method, target, requestBody(req, hreq))

	var status int
	var body []byte
	defer func(begin time.Time) {
		s.trace.ExchangeDone(id, method, target, status, body, err, time.Since(begin))
	}(time.Now())

	resp, err := s.transport.Do(hreq)
	if err != nil {
		err = common.NewNetworkError(method, target, err)
		return nil, err
	}
	defer resp.Body.Close()

	status = resp.StatusCode
	if body, err = io.ReadAll(resp.Body); err != nil {
		err = common.NewNetworkError(method, target, errors.Wrap(err, "failed to read response"))
		return nil, err
	}
	return &Reply{StatusCode: resp.StatusCode, Header: resp.Header, Body: body}, nil
}

// Execute performs the exchange and hands the reply to handler.
// If the exchange fails authentication the session is marked closed and, with keepalive
// enabled, the session logs in once more and resends the request. There is never more
// than one retry. Network errors, including timeouts, are returned without retry.
func (s *Session) Execute(ctx context.Context, req Request, handler ReplyHandler) error {
	return s.execute(ctx, req, handler, s.config.keepalive)
}

// ExecuteOnce is Execute without the keepalive retry.
func (s *Session) ExecuteOnce(ctx context.Context, req Request, handler ReplyHandler) error {
	return s.execute(ctx, req, handler, false)
}

const maxAttempts = 2

func (s *Session) execute(ctx context.Context, req Request, handler ReplyHandler, retry bool) error {
	attempts := 1
	if retry {
		attempts = maxAttempts
	}

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		var reply *Reply
		if reply, err = s.RoundTrip(ctx, req); err == nil {
			err = handler(reply)
		}
		if err == nil || !common.IsAuthError(err) {
			return err
		}

		s.setClosed(true)
		s.trace.Error("Authentication", s.host, err)

		if attempt == attempts {
			break
		}
		s.trace.Retry(s.host, err)
		if !s.Open(ctx) {
			break
		}
	}
	return err
}

func requestBody(req Request, hreq *http.Request) []byte {
	if sr, ok := req.(Sensitive); ok && sr.Sensitive() {
		return []byte("<redacted>")
	}
	if hreq.GetBody == nil {
		return nil
	}
	rc, err := hreq.GetBody()
	if err != nil {
		return nil
	}
	defer rc.Close()
	b, _ := io.ReadAll(rc)
	return b
}
