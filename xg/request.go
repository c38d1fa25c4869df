package xg

import (
	"bytes"
	"context"
	"encoding/xml"
	"net/http"
	"strings"

	"github.com/pkg/errors"

	"github.com/damianoneill/mgmt/common"
)

// GatewayPath is the endpoint receiving all XG requests.
const GatewayPath = "/admin/launch?script=xg"

// Kind identifies the operation carried by a request.
type Kind int

const (
	// QueryKind reads nodes.
	QueryKind Kind = iota
	// SetKind writes nodes.
	SetKind
	// ActionKind invokes a named action.
	ActionKind
)

func (k Kind) String() string {
	switch k {
	case QueryKind:
		return "query"
	case SetKind:
		return "set"
	case ActionKind:
		return "action"
	default:
		return "unknown"
	}
}

// Request is an XG operation. It is immutable once created.
type Request struct {
	kind   Kind
	action string
	nodes  []*Node
	body   []byte
}

// Request structs.

type xgRequest struct {
	XMLName xml.Name       `xml:"xg-request"`
	Query   *queryRequest  `xml:"query-request,omitempty"`
	Set     *setRequest    `xml:"set-request,omitempty"`
	Action  *actionRequest `xml:"action-request,omitempty"`
}

type queryRequest struct {
	Nodes []queryNode `xml:"nodes>node"`
}

type queryNode struct {
	Name  string    `xml:"name"`
	Flags *flagList `xml:"flags,omitempty"`
}

type flagList struct {
	Flag []string `xml:"flag"`
}

type setRequest struct {
	Nodes []valueNode `xml:"nodes>node"`
}

type actionRequest struct {
	Name  string     `xml:"action-name"`
	Nodes *valueList `xml:"nodes,omitempty"`
}

type valueList struct {
	Node []valueNode `xml:"node"`
}

type valueNode struct {
	Subop string `xml:"subop,omitempty"`
	Name  string `xml:"name"`
	Type  string `xml:"type,omitempty"`
	Value string `xml:"value"`
}

// NewQueryRequest delivers a query for the named nodes, applying flags to every node.
func NewQueryRequest(names []string, flags Flags) (*Request, error) {
	if len(names) == 0 {
		return nil, common.NewValidationError("query requires at least one node name")
	}
	nodes := make([]*Node, 0, len(names))
	for i, name := range names {
		if err := validateName(name); err != nil {
			return nil, errors.Wrapf(err, "node %d", i)
		}
		nodes = append(nodes, &Node{Name: name, Flags: flags})
	}
	return newRequest(QueryKind, "", nodes)
}

// NewSetRequest delivers a set request writing the supplied nodes.
func NewSetRequest(nodes []*Node) (*Request, error) {
	if len(nodes) == 0 {
		return nil, common.NewValidationError("set requires at least one node")
	}
	copied, err := copyNodes(nodes)
	if err != nil {
		return nil, err
	}
	return newRequest(SetKind, "", copied)
}

// NewActionRequest delivers a request invoking the named action with optional context nodes.
func NewActionRequest(name string, nodes []*Node) (*Request, error) {
	if err := validateName(name); err != nil {
		return nil, errors.Wrap(err, "action")
	}
	copied, err := copyNodes(nodes)
	if err != nil {
		return nil, err
	}
	return newRequest(ActionKind, name, copied)
}

func newRequest(kind Kind, action string, nodes []*Node) (*Request, error) {
	r := &Request{kind: kind, action: action, nodes: nodes}
	body, err := xml.Marshal(r.envelope())
	if err != nil {
		return nil, errors.Wrap(err, "failed to encode xg request")
	}
	r.body = append([]byte(xml.Header), body...)
	return r, nil
}

func validateName(name string) error {
	if strings.TrimSpace(name) == "" {
		return common.NewValidationError("node name must not be empty")
	}
	if !strings.HasPrefix(name, "/") {
		return common.NewValidationError("node name '%s' must be an absolute path", name)
	}
	return nil
}

func copyNodes(nodes []*Node) ([]*Node, error) {
	copied := make([]*Node, 0, len(nodes))
	for i, n := range nodes {
		if n == nil {
			return nil, common.NewValidationError("node %d is nil", i)
		}
		if err := validateName(n.Name); err != nil {
			return nil, errors.Wrapf(err, "node %d", i)
		}
		c := *n
		copied = append(copied, &c)
	}
	return copied, nil
}

func (r *Request) envelope() *xgRequest {
	env := &xgRequest{}
	switch r.kind {
	case QueryKind:
		q := &queryRequest{}
		for _, n := range r.nodes {
			qn := queryNode{Name: n.Name}
			if names := n.Flags.Names(); len(names) > 0 {
				qn.Flags = &flagList{Flag: names}
			}
			q.Nodes = append(q.Nodes, qn)
		}
		env.Query = q
	case SetKind:
		s := &setRequest{}
		for _, n := range r.nodes {
			s.Nodes = append(s.Nodes, toValueNode(n, "set"))
		}
		env.Set = s
	case ActionKind:
		a := &actionRequest{Name: r.action}
		if len(r.nodes) > 0 {
			a.Nodes = &valueList{}
			for _, n := range r.nodes {
				a.Nodes.Node = append(a.Nodes.Node, toValueNode(n, ""))
			}
		}
		env.Action = a
	}
	return env
}

func toValueNode(n *Node, subop string) valueNode {
	typ := n.Type
	if typ == "" {
		typ = TypeString
	}
	return valueNode{Subop: subop, Name: n.Name, Type: typ, Value: n.Value}
}

// Kind delivers the operation kind.
func (r *Request) Kind() Kind { return r.kind }

// Action delivers the action name of an action request.
func (r *Request) Action() string { return r.action }

// Nodes delivers a copy of the request nodes, in request order.
func (r *Request) Nodes() []*Node {
	nodes := make([]*Node, len(r.nodes))
	for i, n := range r.nodes {
		c := *n
		nodes[i] = &c
	}
	return nodes
}

// Marshal delivers the XML document.
func (r *Request) Marshal() []byte {
	return append([]byte(nil), r.body...)
}

func (r *Request) String() string {
	return string(r.body)
}

// HTTPRequest delivers the POST of the document to the gateway.
func (r *Request) HTTPRequest(ctx context.Context, baseURL string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+GatewayPath, bytes.NewReader(r.body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "text/xml; charset=utf-8")
	return req, nil
}
