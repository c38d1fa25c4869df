// Package concerto implements the Concerto dialect of the JSON management API.
package concerto

import (
	"context"
	"encoding/json"
	"net"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"github.com/pkg/errors"

	"github.com/damianoneill/mgmt/client"
	"github.com/damianoneill/mgmt/common"
	"github.com/damianoneill/mgmt/rest"
)

// Concerto endpoints.
const (
	LoginPath      = "/api/v1/auth/login"
	LogoutPath     = "/api/v1/auth/logout"
	PropertiesPath = "/api/v1/system/properties"
)

// Result codes of the {"code": ..., "msg": ...} envelope.
const (
	CodeSuccess      = "success"
	CodeUnauthorized = "unauthorized"
)

// ExceptionPattern matches the exception block of an html error page, capturing the
// exception name and message.
var ExceptionPattern = regexp.MustCompile(`(?s)<div class="exception">\s*<h2>([^<]+)</h2>\s*<pre>(.*?)</pre>`)

// Dialect implements rest.Dialect for Concerto servers.
type Dialect struct {
	mu         sync.Mutex
	properties map[string]interface{}
}

// NewDialect delivers a Concerto dialect with no cached properties.
func NewDialect() *Dialect {
	return &Dialect{}
}

// Name identifies the dialect in log output.
func (d *Dialect) Name() string { return "concerto" }

// LoginURL delivers the login endpoint below the session base URL.
func (d *Dialect) LoginURL(s *rest.Session) string {
	return s.DefaultBaseURL() + LoginPath
}

type loginBody struct {
	Data loginData `json:"data"`
}

type loginData struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Server   string `json:"server"`
}

// LoginBody delivers the credentials object posted at login.
func (d *Dialect) LoginBody(s *rest.Session) interface{} {
	return &loginBody{Data: loginData{Username: s.User(), Password: s.Password(), Server: s.Host()}}
}

// ProcessLoginResponse redirects the session when the login reply names the API endpoint,
// either as data.base_url or as data.port.
func (d *Dialect) ProcessLoginResponse(s *rest.Session, result *rest.Result) error {
	obj, ok := result.Object()
	if !ok {
		return nil
	}
	data, ok := obj["data"].(map[string]interface{})
	if !ok {
		return nil
	}

	if base := rest.StringMember(data, "base_url"); base != "" {
		if strings.HasPrefix(base, "/") {
			base = s.DefaultBaseURL() + base
		}
		s.SetBaseURL(strings.TrimSuffix(base, "/"))
		return nil
	}

	if port := rest.StringMember(data, "port"); port != "" {
		if _, err := strconv.Atoi(port); err != nil {
			return errors.Errorf("invalid port '%s' in login response", port)
		}
		u, err := url.Parse(s.DefaultBaseURL())
		if err != nil {
			return err
		}
		u.Host = net.JoinHostPort(u.Hostname(), port)
		s.SetBaseURL(u.String())
	}
	return nil
}

// UpdateProperties fetches and caches the server properties.
func (d *Dialect) UpdateProperties(ctx context.Context, s *rest.Session) error {
	result, err := s.Get(ctx, PropertiesPath)
	if err != nil {
		return err
	}
	props := map[string]interface{}{}
	if obj, ok := result.Object(); ok {
		if data, ok := obj["data"].(map[string]interface{}); ok {
			props = data
		}
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.properties = props
	return nil
}

// Properties delivers a copy of the cached server properties.
func (d *Dialect) Properties() map[string]interface{} {
	d.mu.Lock()
	defer d.mu.Unlock()
	props := make(map[string]interface{}, len(d.properties))
	for k, v := range d.properties {
		props[k] = v
	}
	return props
}

// Logout posts to the logout endpoint.
func (d *Dialect) Logout(ctx context.Context, s *rest.Session) error {
	_, err := s.Post(ctx, LogoutPath)
	return err
}

// CheckResponseForErrors recognises three failure shapes:
// an html page carrying an exception block, a text reply whose last line is a
// {"success": false} object, and a {"code": ...} object whose code is not success.
func (d *Dialect) CheckResponseForErrors(result *rest.Result) error {
	if !result.IsJSON() {
		return checkText(result.Text())
	}
	obj, ok := result.Object()
	if !ok {
		return nil
	}
	return checkObject(obj)
}

func checkText(text string) error {
	if m := ExceptionPattern.FindStringSubmatch(text); m != nil {
		return common.NewActionError(strings.TrimSpace(m[1]), strings.TrimSpace(m[2]))
	}

	lines := strings.Split(strings.TrimSpace(text), "\n")
	if len(lines) < 2 {
		return nil
	}
	var obj map[string]interface{}
	if err := json.Unmarshal([]byte(strings.TrimSpace(lines[len(lines)-1])), &obj); err != nil {
		return nil
	}
	if success, ok := obj["success"].(bool); ok && !success {
		return common.NewActionError("", rest.StringMember(obj, "msg"))
	}
	return nil
}

func checkObject(obj map[string]interface{}) error {
	if code, ok := obj["code"]; ok && code != nil {
		c := rest.StringMember(obj, "code")
		switch {
		case c == CodeSuccess:
		case strings.EqualFold(c, CodeUnauthorized):
			return common.NewAuthError(common.MsgSessionExpired + ": " + rest.StringMember(obj, "msg"))
		default:
			return common.NewActionError(c, rest.StringMember(obj, "msg"))
		}
	}
	return rest.CheckSuccessEnvelope(&rest.Result{Value: obj})
}

// Session is a JSON session speaking the Concerto dialect.
type Session struct {
	*rest.Session
	dialect *Dialect
}

// NewSession creates a Concerto session to host.
func NewSession(ctx context.Context, host string, opts ...client.SessionOption) (*Session, error) {
	d := NewDialect()
	rs, err := rest.NewSession(ctx, host, d, opts...)
	if err != nil {
		return nil, err
	}
	return &Session{Session: rs, dialect: d}, nil
}

// Properties delivers the server properties cached at login.
func (s *Session) Properties() map[string]interface{} {
	return s.dialect.Properties()
}
