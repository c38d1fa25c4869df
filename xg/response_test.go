package xg

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	assert "github.com/stretchr/testify/require"

	"github.com/damianoneill/mgmt/common"
)

const queryReply = `<?xml version="1.0" encoding="UTF-8"?>
<xg-response>
  <query-response>
    <return-status><return-code>0</return-code><return-msg></return-msg></return-status>
    <nodes>
      <node><name>/a/b</name><type>string</type><value>X</value></node>
      <node><name>/a/c</name><type>string</type><value>  padded  </value></node>
    </nodes>
  </query-response>
</xg-response>`

func TestParseQueryResponse(t *testing.T) {
	req, _ := NewQueryRequest([]string{"/a/*"}, 0)
	resp, err := ParseResponse([]byte(queryReply), req, "")
	assert.NoError(t, err)
	assert.NoError(t, resp.Err())
	assert.Equal(t, 0, resp.Code)

	want := []*Node{
		{Name: "/a/b", Type: "string", Value: "X"},
		{Name: "/a/c", Type: "string", Value: "  padded  "},
	}
	if diff := cmp.Diff(want, resp.Nodes); diff != "" {
		t.Errorf("Nodes mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, map[string]string{"/a/b": "X", "/a/c": "  padded  "}, resp.Values, "Values should be returned verbatim")
}

func TestParseResponseStripsPrefix(t *testing.T) {
	req, _ := NewQueryRequest([]string{"/a/*"}, 0)
	resp, err := ParseResponse([]byte(queryReply), req, "/a")
	assert.NoError(t, err)
	assert.Equal(t, "X", resp.Values["/b"])
	assert.Equal(t, "/a/b", resp.Nodes[0].Name, "Node names should not be stripped")
}

func TestParseResponseNamelessNodes(t *testing.T) {
	req, _ := NewQueryRequest([]string{"/system/hostname", "/system/uptime"}, 0)
	body := `<xg-response><query-response><nodes>` +
		`<node><value>box</value></node><node><value>100</value></node>` +
		`</nodes></query-response></xg-response>`
	resp, err := ParseResponse([]byte(body), req, "")
	assert.NoError(t, err)
	assert.Equal(t, map[string]string{"/system/hostname": "box", "/system/uptime": "100"}, resp.Values)
}

func TestParseActionFailure(t *testing.T) {
	body := `<xg-response><action-response><return-status>` +
		`<return-code>14</return-code><return-msg> no such action </return-msg>` +
		`</return-status></action-response></xg-response>`
	resp, err := ParseResponse([]byte(body), nil, "")
	assert.NoError(t, err, "A failure status is not a parse error")
	assert.Equal(t, &ActionResult{Code: 14, Message: "no such action"}, resp.Result())
	assert.False(t, resp.Result().Success())

	err = resp.Err()
	assert.True(t, common.IsActionError(err))
	assert.Equal(t, &common.ActionError{Code: "14", Message: "no such action"}, err)
}

func TestParseLoginPageIsAuthError(t *testing.T) {
	body := `<html><form><input name="f_user_id"/></form></html>`
	resp, err := ParseResponse([]byte(body), nil, "")
	assert.Nil(t, resp)
	assert.True(t, common.IsAuthError(err), "Expecting an AuthError, got %v", err)
	assert.Contains(t, err.Error(), common.MsgSessionExpired)
}

func TestParseGarbage(t *testing.T) {
	for _, body := range []string{"", "<html>oops</html>", "not xml <xg-response"} {
		resp, err := ParseResponse([]byte(body), nil, "")
		assert.Nil(t, resp)
		assert.True(t, common.IsNetworkError(err), "Expecting a NetworkError for %q, got %v", body, err)
	}
}

func TestParseInvalidReturnCode(t *testing.T) {
	body := `<xg-response><set-response><return-status><return-code>x</return-code></return-status></set-response></xg-response>`
	_, err := ParseResponse([]byte(body), nil, "")
	assert.True(t, common.IsNetworkError(err))
}
