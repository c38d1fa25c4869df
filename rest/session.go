package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/pkg/errors"

	"github.com/damianoneill/mgmt/client"
	"github.com/damianoneill/mgmt/common"
)

// Dialect defines the hooks through which a JSON API variant customises a Session.
type Dialect interface {
	// Name identifies the dialect in log output.
	Name() string

	// LoginURL delivers the absolute URL to which credentials are posted.
	LoginURL(s *Session) string

	// LoginBody delivers the value posted, as JSON, to the login URL.
	LoginBody(s *Session) interface{}

	// ProcessLoginResponse inspects a successful login reply. It may redirect the
	// session with SetBaseURL.
	ProcessLoginResponse(s *Session, result *Result) error

	// UpdateProperties refreshes any server metadata cached by the dialect.
	UpdateProperties(ctx context.Context, s *Session) error

	// Logout ends the server side session.
	Logout(ctx context.Context, s *Session) error

	// CheckResponseForErrors detects application level failures in a reply, which the
	// server may signal with any HTTP status.
	CheckResponseForErrors(result *Result) error
}

// CallOption qualifies a request.
type CallOption func(*call)

type call struct {
	body    interface{}
	hasBody bool
	params  url.Values
	headers http.Header
}

// Body defines the value sent, as JSON, in the request body.
func Body(v interface{}) CallOption {
	return func(c *call) {
		c.body, c.hasBody = v, true
	}
}

// Params defines the query parameters added to the request URL.
func Params(v url.Values) CallOption {
	return func(c *call) {
		c.params = v
	}
}

// Headers defines additional request headers.
func Headers(h http.Header) CallOption {
	return func(c *call) {
		c.headers = h
	}
}

// Session represents a JSON API session.
type Session struct {
	*client.Session
	dialect Dialect

	loggingIn  bool
	loggingOut bool
}

// NewSession creates a session to host speaking the supplied dialect.
func NewSession(ctx context.Context, host string, dialect Dialect, opts ...client.SessionOption) (*Session, error) {
	if dialect == nil {
		return nil, common.NewConfigError("dialect", "must not be nil")
	}
	s := &Session{dialect: dialect}
	cs, err := client.New(ctx, host, &adapter{s: s}, opts...)
	if err != nil {
		return nil, err
	}
	s.Session = cs
	return s, nil
}

// Dialect delivers the JSON dialect of the session.
func (s *Session) Dialect() Dialect { return s.dialect }

// Get issues a GET request for location, relative to the session base URL.
func (s *Session) Get(ctx context.Context, location string, opts ...CallOption) (*Result, error) {
	return s.communicate(ctx, http.MethodGet, location, opts)
}

// Post issues a POST request for location, relative to the session base URL.
func (s *Session) Post(ctx context.Context, location string, opts ...CallOption) (*Result, error) {
	return s.communicate(ctx, http.MethodPost, location, opts)
}

// Put issues a PUT request for location, relative to the session base URL.
func (s *Session) Put(ctx context.Context, location string, opts ...CallOption) (*Result, error) {
	return s.communicate(ctx, http.MethodPut, location, opts)
}

// Delete issues a DELETE request for location, relative to the session base URL.
func (s *Session) Delete(ctx context.Context, location string, opts ...CallOption) (*Result, error) {
	return s.communicate(ctx, http.MethodDelete, location, opts)
}

func (s *Session) communicate(ctx context.Context, method, location string, opts []CallOption) (*Result, error) {
	c := &call{}
	for _, opt := range opts {
		opt(c)
	}
	req, err := newJSONRequest(method, location, c)
	if err != nil {
		return nil, err
	}

	var result *Result
	handler := func(reply *client.Reply) (err error) {
		result, err = s.handleReply(reply)
		return
	}

	// Requests made while logging in or out must not trigger a re-login.
	if s.loggingIn || s.loggingOut {
		err = s.ExecuteOnce(ctx, req, handler)
	} else {
		err = s.Execute(ctx, req, handler)
	}
	if err != nil {
		s.Log(fmt.Sprintf("%s %s", method, location), err)
		return result, err
	}
	return result, nil
}

// handleReply maps a reply to a result, running the dialect error checks on error
// bodies as well as on successful ones.
func (s *Session) handleReply(reply *client.Reply) (*Result, error) {
	if reply.StatusCode == http.StatusForbidden {
		if s.loggingIn {
			return nil, common.NewAuthError(common.MsgLoginRejected)
		}
		return nil, common.NewAuthError(common.MsgSessionExpired)
	}

	result := DecodeResult(reply.StatusCode, reply.Body)
	if err := s.dialect.CheckResponseForErrors(result); err != nil {
		if s.loggingIn && common.IsAuthError(err) {
			err = common.NewAuthError(common.MsgLoginRejected)
		}
		return result, err
	}
	if reply.StatusCode >= http.StatusBadRequest {
		return result, common.NewActionError(fmt.Sprintf("http-%d", reply.StatusCode), strings.TrimSpace(result.Text()))
	}
	return result, nil
}

func (s *Session) login(ctx context.Context) error {
	s.loggingIn = true
	defer func() { s.loggingIn = false }()

	s.ResetBaseURL()
	req, err := newJSONRequest(http.MethodPost, s.dialect.LoginURL(s), &call{body: s.dialect.LoginBody(s), hasBody: true})
	if err != nil {
		return err
	}
	req.absolute, req.sensitive = true, true

	reply, err := s.RoundTrip(ctx, req)
	if err != nil {
		return err
	}
	result, err := s.handleReply(reply)
	if err != nil {
		return err
	}
	if err = s.dialect.ProcessLoginResponse(s, result); err != nil {
		return errors.Wrap(err, "failed to process login response")
	}
	if err = s.dialect.UpdateProperties(ctx, s); err != nil {
		s.Log("UpdateProperties", err)
	}
	return nil
}

func (s *Session) logout(ctx context.Context) error {
	s.loggingOut = true
	defer func() { s.loggingOut = false }()
	return s.dialect.Logout(ctx, s)
}

// adapter presents a Session as a client.Dialect.
type adapter struct {
	s *Session
}

func (a *adapter) Name() string { return a.s.dialect.Name() }

// Login may be called by client.New before NewSession has stored the client session.
func (a *adapter) Login(ctx context.Context, cs *client.Session) error {
	a.s.Session = cs
	return a.s.login(ctx)
}

func (a *adapter) Logout(ctx context.Context, cs *client.Session) error {
	return a.s.logout(ctx)
}

// jsonRequest is an immutable JSON exchange.
type jsonRequest struct {
	method    string
	location  string
	body      []byte
	params    url.Values
	headers   http.Header
	absolute  bool
	sensitive bool
}

func newJSONRequest(method, location string, c *call) (*jsonRequest, error) {
	r := &jsonRequest{method: method, location: location, params: c.params, headers: c.headers}
	if c.hasBody {
		b, err := json.Marshal(c.body)
		if err != nil {
			return nil, common.NewValidationError("request body cannot be encoded as json: %v", err)
		}
		r.body = b
	}
	return r, nil
}

func (r *jsonRequest) Sensitive() bool { return r.sensitive }

func (r *jsonRequest) HTTPRequest(ctx context.Context, baseURL string) (*http.Request, error) {
	target := r.location
	if !r.absolute {
		target = baseURL + r.location
	}
	u, err := url.Parse(target)
	if err != nil {
		return nil, errors.Wrap(err, "invalid location")
	}
	if len(r.params) > 0 {
		q := u.Query()
		for k, vs := range r.params {
			for _, v := range vs {
				q.Add(k, v)
			}
		}
		u.RawQuery = q.Encode()
	}

	var body io.Reader = http.NoBody
	if r.body != nil {
		body = bytes.NewReader(r.body)
	}
	req, err := http.NewRequestWithContext(ctx, r.method, u.String(), body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if r.body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, vs := range r.headers {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	return req, nil
}
