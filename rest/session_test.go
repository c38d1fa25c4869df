package rest

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"testing"
	"time"

	assert "github.com/stretchr/testify/require"

	"github.com/damianoneill/mgmt/client"
	"github.com/damianoneill/mgmt/common"
	"github.com/damianoneill/mgmt/testserver"
)

func newTestSession(t *testing.T, ts *testserver.Server, opts ...client.SessionOption) *Session {
	opts = append([]client.SessionOption{
		client.Protocol(client.HTTP),
		client.Credentials(testserver.TestUserName, testserver.TestPassword),
		client.LoggingHooks(common.NoOpLoggingHooks),
	}, opts...)
	s, err := NewSession(context.Background(), ts.Host(), BasicDialect{}, opts...)
	assert.NoError(t, err, "Not expecting new session to fail")
	return s
}

func echoed(t *testing.T, r *Result) map[string]interface{} {
	obj, ok := r.Object()
	assert.True(t, ok, "Expecting a JSON object")
	data, ok := obj["data"].(map[string]interface{})
	assert.True(t, ok, "Expecting a data member")
	return data
}

func TestLogin(t *testing.T) {
	ts := testserver.NewServer(t, testserver.TestUserName, testserver.TestPassword)
	defer ts.Close()

	s := newTestSession(t, ts)
	assert.False(t, s.Closed())
	assert.Equal(t, "json", s.Dialect().Name())

	s.Close(context.Background())
	assert.True(t, s.Closed())
	assert.Equal(t, 1, ts.Count(testserver.BasicLogout))
	assert.Equal(t, 0, ts.ActiveSessions())
}

func TestLoginRejected(t *testing.T) {
	ts := testserver.NewServer(t, testserver.TestUserName, testserver.TestPassword)
	defer ts.Close()

	s := newTestSession(t, ts, client.Credentials("intruder", "guess"))
	assert.True(t, s.Closed(), "Session should remain closed")

	_, err := NewSession(context.Background(), ts.Host(), nil)
	assert.True(t, common.IsConfigError(err))
}

func loginOutcome(err *error) client.SessionOption {
	return client.LoggingHooks(&common.SessionTrace{
		LoginDone: func(target, user string, ok bool, e error, d time.Duration) { *err = e },
	})
}

func TestLoginRejectedReportsBadCredentials(t *testing.T) {
	ts := testserver.NewServer(t, testserver.TestUserName, testserver.TestPassword)
	defer ts.Close()

	var loginErr error
	s := newTestSession(t, ts, client.Credentials("intruder", "guess"), loginOutcome(&loginErr))
	assert.True(t, s.Closed())
	assert.True(t, common.IsAuthError(loginErr), "Expecting an AuthError, got %v", loginErr)
	assert.Contains(t, loginErr.Error(), common.MsgLoginRejected)
	assert.NotContains(t, loginErr.Error(), common.MsgSessionExpired)
}

func TestMethods(t *testing.T) {
	ts := testserver.NewServer(t, testserver.TestUserName, testserver.TestPassword)
	defer ts.Close()
	s := newTestSession(t, ts)
	defer s.Close(context.Background())

	r, err := s.Get(context.Background(), "/api/v1/things", Params(url.Values{"limit": {"10"}}), Headers(http.Header{"X-Test": {"yes"}}))
	assert.NoError(t, err)
	data := echoed(t, r)
	assert.Equal(t, "GET", data["method"])
	assert.Equal(t, "/api/v1/things", data["path"])
	assert.Equal(t, "limit=10", data["query"])
	assert.Equal(t, "yes", data["header"])

	r, err = s.Post(context.Background(), "/api/v1/things", Body(map[string]string{"name": "widget"}))
	assert.NoError(t, err)
	data = echoed(t, r)
	assert.Equal(t, "POST", data["method"])
	assert.Equal(t, map[string]interface{}{"name": "widget"}, data["body"])

	r, err = s.Put(context.Background(), "/api/v1/things/1", Body([]int{1, 2}))
	assert.NoError(t, err)
	assert.Equal(t, "PUT", echoed(t, r)["method"])

	r, err = s.Delete(context.Background(), "/api/v1/things/1")
	assert.NoError(t, err)
	assert.Equal(t, "DELETE", echoed(t, r)["method"])
	assert.Nil(t, echoed(t, r)["body"])
}

func TestApplicationFailure(t *testing.T) {
	ts := testserver.NewServer(t, testserver.TestUserName, testserver.TestPassword)
	defer ts.Close()
	ts.Handle(http.MethodPost, "/api/v1/fail", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"success": false, "msg": "bad thing"}`)
	})
	s := newTestSession(t, ts)
	defer s.Close(context.Background())

	r, err := s.Post(context.Background(), "/api/v1/fail")
	assert.Equal(t, &common.ActionError{Message: "bad thing"}, err)
	assert.NotNil(t, r, "The result should accompany the error")
	assert.False(t, s.Closed(), "Application failures should not close the session")
}

func TestHTTPFailure(t *testing.T) {
	ts := testserver.NewServer(t, testserver.TestUserName, testserver.TestPassword)
	defer ts.Close()
	ts.Handle(http.MethodGet, "/api/v1/broken", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "internal failure", http.StatusInternalServerError)
	})
	s := newTestSession(t, ts)
	defer s.Close(context.Background())

	r, err := s.Get(context.Background(), "/api/v1/broken")
	assert.Equal(t, &common.ActionError{Code: "http-500", Message: "internal failure"}, err)
	assert.Equal(t, http.StatusInternalServerError, r.StatusCode)
}

func TestExpiredSessionIsRenewed(t *testing.T) {
	ts := testserver.NewServer(t, testserver.TestUserName, testserver.TestPassword)
	defer ts.Close()
	s := newTestSession(t, ts)
	defer s.Close(context.Background())

	ts.ExpireSessions()
	r, err := s.Get(context.Background(), "/api/v1/things")
	assert.NoError(t, err)
	assert.Equal(t, "GET", echoed(t, r)["method"])
	assert.Equal(t, 2, ts.Count(testserver.BasicLogin))
	assert.Equal(t, 2, ts.Count("/api/v1/things"))
}

func TestExpiredSessionWithoutKeepalive(t *testing.T) {
	ts := testserver.NewServer(t, testserver.TestUserName, testserver.TestPassword)
	defer ts.Close()
	s := newTestSession(t, ts, client.Keepalive(false))

	ts.ExpireSessions()
	_, err := s.Get(context.Background(), "/api/v1/things")
	assert.True(t, common.IsAuthError(err), "Expecting an AuthError, got %v", err)
	assert.Contains(t, err.Error(), common.MsgSessionExpired)
	assert.True(t, s.Closed())
	assert.Equal(t, 1, ts.Count(testserver.BasicLogin))
}

func TestUnencodableBodySendsNothing(t *testing.T) {
	ts := testserver.NewServer(t, testserver.TestUserName, testserver.TestPassword)
	defer ts.Close()
	s := newTestSession(t, ts)
	defer s.Close(context.Background())

	_, err := s.Post(context.Background(), "/api/v1/things", Body(make(chan int)))
	assert.True(t, common.IsValidationError(err), "Expecting a ValidationError, got %v", err)
	assert.Equal(t, 0, ts.Count("/api/v1/things"))
}
