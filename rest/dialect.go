package rest

import (
	"context"
	"fmt"

	"github.com/damianoneill/mgmt/common"
)

// Endpoints used by the BasicDialect.
const (
	BasicLoginPath  = "/api/login"
	BasicLogoutPath = "/api/logout"
)

// BasicDialect implements a plain JSON API: credentials are posted as
// {"username": ..., "password": ...} and replies of the form {"success": false, "msg": ...}
// are failures.
type BasicDialect struct{}

// Name identifies the dialect in log output.
func (BasicDialect) Name() string { return "json" }

// LoginURL delivers the login endpoint below the session base URL.
func (BasicDialect) LoginURL(s *Session) string {
	return s.DefaultBaseURL() + BasicLoginPath
}

// LoginBody delivers the credentials object posted at login.
func (BasicDialect) LoginBody(s *Session) interface{} {
	return map[string]string{"username": s.User(), "password": s.Password()}
}

// ProcessLoginResponse accepts any successful login reply.
func (BasicDialect) ProcessLoginResponse(*Session, *Result) error { return nil }

// UpdateProperties does nothing; the dialect has no server properties.
func (BasicDialect) UpdateProperties(context.Context, *Session) error { return nil }

// Logout posts to the logout endpoint.
func (BasicDialect) Logout(ctx context.Context, s *Session) error {
	_, err := s.Post(ctx, BasicLogoutPath)
	return err
}

// CheckResponseForErrors rejects {"success": false} replies.
func (BasicDialect) CheckResponseForErrors(result *Result) error {
	return CheckSuccessEnvelope(result)
}

// CheckSuccessEnvelope reports a common.ActionError for a JSON object whose success
// member is false.
func CheckSuccessEnvelope(result *Result) error {
	obj, ok := result.Object()
	if !ok {
		return nil
	}
	if success, ok := obj["success"].(bool); ok && !success {
		return common.NewActionError("", StringMember(obj, "msg"))
	}
	return nil
}

// StringMember delivers the named member of obj as a string.
func StringMember(obj map[string]interface{}, name string) string {
	switch v := obj[name].(type) {
	case nil:
		return ""
	case string:
		return v
	default:
		return fmt.Sprint(v)
	}
}
