package xg

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/pkg/errors"

	"github.com/damianoneill/mgmt/client"
	"github.com/damianoneill/mgmt/common"
)

// Endpoints of the html login framework.
const (
	LoginPath  = "/admin/launch?script=rh&template=login&action=login"
	LogoutPath = "/admin/launch?script=rh&template=logout&action=logout"
)

// LogoutConfirmation is the text expected in the reply to a logout.
const LogoutConfirmation = "You have been logged out"

// LoginMatcher decides whether the reply to a login form identifies a successful login.
// The html login framework has no structured result, so success is recognised from the
// page content.
type LoginMatcher interface {
	Match(body string) bool
}

// SignatureMatcher matches a login reply if it contains all the substrings of at least
// one signature. Different server versions deliver different landing pages.
type SignatureMatcher [][]string

// Match implements LoginMatcher.
func (m SignatureMatcher) Match(body string) bool {
	for _, signature := range m {
		if len(signature) > 0 && containsAll(body, signature) {
			return true
		}
	}
	return false
}

func containsAll(body string, parts []string) bool {
	for _, p := range parts {
		if !strings.Contains(body, p) {
			return false
		}
	}
	return true
}

// DefaultLoginSignatures recognise the dashboard redirect delivered after a successful login.
var DefaultLoginSignatures = SignatureMatcher{
	{"template=dashboard", "HTTP-EQUIV='Refresh'"},
	{"template=dashboard", `http-equiv="refresh"`},
	{"template=home", "HTTP-EQUIV='Refresh'"},
}

type loginRequest struct {
	user, password string
}

func (r *loginRequest) HTTPRequest(ctx context.Context, baseURL string) (*http.Request, error) {
	form := url.Values{
		"f_user_id":      {r.user},
		"f_password":     {r.password},
		"f_login_submit": {"Login"},
		"f_referrer":     {""},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+LoginPath, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req, nil
}

func (r *loginRequest) Sensitive() bool { return true }

var logoutRequest = client.RequestFunc(func(ctx context.Context, baseURL string) (*http.Request, error) {
	return http.NewRequestWithContext(ctx, http.MethodGet, baseURL+LogoutPath, http.NoBody)
})

// dialect implements client.Dialect for the html login framework fronting the XG gateway.
type dialect struct {
	matcher LoginMatcher
}

func (d *dialect) Name() string { return "xg" }

func (d *dialect) Login(ctx context.Context, s *client.Session) error {
	reply, err := s.RoundTrip(ctx, &loginRequest{user: s.User(), password: s.Password()})
	if err != nil {
		return err
	}
	if reply.StatusCode >= http.StatusBadRequest {
		return common.NewNetworkError(http.MethodPost, s.BaseURL()+LoginPath, errors.Errorf("login returned HTTP status %d", reply.StatusCode))
	}
	if !d.matcher.Match(string(reply.Body)) {
		return common.NewAuthError(common.MsgLoginRejected)
	}
	return nil
}

func (d *dialect) Logout(ctx context.Context, s *client.Session) error {
	reply, err := s.RoundTrip(ctx, logoutRequest)
	if err != nil {
		return err
	}
	if !strings.Contains(string(reply.Body), LogoutConfirmation) {
		return errors.New("logout not confirmed by server")
	}
	return nil
}
