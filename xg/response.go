package xg

import (
	"bytes"
	"strconv"
	"strings"

	"github.com/antchfx/xmlquery"
	"github.com/antchfx/xpath"
	"github.com/pkg/errors"

	"github.com/damianoneill/mgmt/common"
)

// LoginPageMarkers identify the login form, which the server delivers in place of an XG
// response once the session has expired.
var LoginPageMarkers = []string{`name="f_user_id"`, "template=login"}

// Response is the parsed result of a Request.
type Response struct {
	// Raw holds the response body.
	Raw []byte
	// Code is the server return code, zero meaning success.
	Code int
	// Message is the server return message.
	Message string
	// Nodes holds the returned nodes in server order.
	Nodes []*Node
	// Values maps each returned node name, with any strip prefix removed, to its value.
	Values map[string]string
}

// ActionResult is the outcome of a set or action request.
type ActionResult struct {
	Code    int
	Message string
}

// Success reports whether the server accepted the request.
func (r *ActionResult) Success() bool { return r.Code == 0 }

// Err delivers a common.ActionError if the server reported failure.
func (r *Response) Err() error {
	if r.Code != 0 {
		return common.NewActionError(strconv.Itoa(r.Code), r.Message)
	}
	return nil
}

// Result delivers the return status of the response.
func (r *Response) Result() *ActionResult {
	return &ActionResult{Code: r.Code, Message: r.Message}
}

var (
	xpRoot       = xpath.MustCompile(`/xg-response`)
	xpReturnCode = xpath.MustCompile(`/xg-response/*/return-status/return-code`)
	xpReturnMsg  = xpath.MustCompile(`/xg-response/*/return-status/return-msg`)
	xpNodes      = xpath.MustCompile(`/xg-response/*/nodes/node`)
)

// ParseResponse decodes body as the reply to req.
// Nodes returned without a name take the name of the request node at the same position.
// strip, if not empty, is removed from the start of each key of Response.Values.
func ParseResponse(body []byte, req *Request, strip string) (*Response, error) {
	if !bytes.Contains(body, []byte("<xg-response")) {
		if IsLoginPage(body) {
			return nil, common.NewAuthError(common.MsgSessionExpired)
		}
		return nil, common.NewNetworkError("parse", "", errors.New("reply is not an xg-response"))
	}

	doc, err := xmlquery.Parse(bytes.NewReader(body))
	if err != nil {
		return nil, common.NewNetworkError("parse", "", errors.Wrap(err, "malformed xg-response"))
	}
	if xmlquery.QuerySelector(doc, xpRoot) == nil {
		return nil, common.NewNetworkError("parse", "", errors.New("missing xg-response element"))
	}

	resp := &Response{Raw: body, Values: map[string]string{}}
	if n := xmlquery.QuerySelector(doc, xpReturnCode); n != nil {
		code := strings.TrimSpace(n.InnerText())
		if resp.Code, err = strconv.Atoi(code); err != nil {
			return nil, common.NewNetworkError("parse", "", errors.Errorf("invalid return code '%s'", code))
		}
	}
	if n := xmlquery.QuerySelector(doc, xpReturnMsg); n != nil {
		resp.Message = strings.TrimSpace(n.InnerText())
	}

	var requested []*Node
	if req != nil {
		requested = req.nodes
	}
	for i, n := range xmlquery.QuerySelectorAll(doc, xpNodes) {
		node := &Node{
			Name:  childText(n, "name"),
			Type:  childText(n, "type"),
			Value: childValue(n),
		}
		if node.Name == "" && i < len(requested) {
			node.Name = requested[i].Name
		}
		resp.Nodes = append(resp.Nodes, node)
		resp.Values[strings.TrimPrefix(node.Name, strip)] = node.Value
	}
	return resp, nil
}

// IsLoginPage reports whether body is the server login form.
func IsLoginPage(body []byte) bool {
	for _, marker := range LoginPageMarkers {
		if bytes.Contains(body, []byte(marker)) {
			return true
		}
	}
	return false
}

func childText(n *xmlquery.Node, name string) string {
	if c := n.SelectElement(name); c != nil {
		return strings.TrimSpace(c.InnerText())
	}
	return ""
}

func childValue(n *xmlquery.Node) string {
	if c := n.SelectElement("value"); c != nil {
		return c.InnerText()
	}
	return ""
}
