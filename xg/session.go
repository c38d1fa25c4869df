package xg

import (
	"context"
	"net/http"

	"github.com/pkg/errors"

	"github.com/damianoneill/mgmt/client"
	"github.com/damianoneill/mgmt/common"
)

// SaveConfigAction persists the running configuration.
const SaveConfigAction = "/mgmtd/db/save"

// Session represents an XG session.
type Session interface {
	// Open logs in, returning true on success. A failed login is logged, never returned as an error.
	Open(ctx context.Context) bool

	// Login is an alias for Open.
	Login(ctx context.Context) bool

	// Close logs out. It is a no-op if the session is already closed.
	Close(ctx context.Context)

	// Closed reports whether the session is not authenticated.
	Closed() bool

	// GetNodes queries the named nodes and returns the returned nodes by name.
	// Names ending in /*, /** or /*** request shallow, subtree or subtree-including-self iteration.
	GetNodes(ctx context.Context, names []string, opts ...QueryOption) (map[string]*Node, error)

	// GetNode queries a single node.
	GetNode(ctx context.Context, name string, opts ...QueryOption) (*Node, error)

	// GetNodeValues queries the named nodes and returns their values by name, with
	// any Strip prefix removed from the names.
	GetNodeValues(ctx context.Context, names []string, opts ...QueryOption) (map[string]string, error)

	// PerformAction invokes the named action with optional context nodes.
	PerformAction(ctx context.Context, name string, nodes ...*Node) (*ActionResult, error)

	// PerformSet writes the nodes delivered by the source. If the source implements
	// PendingUpdates, its pending updates are cleared once the server accepts the write.
	PerformSet(ctx context.Context, nodes NodeSource) (*ActionResult, error)

	// SaveConfig persists the running configuration.
	SaveConfig(ctx context.Context) (*ActionResult, error)

	// SendRequest submits the request and parses the reply. strip is removed from the
	// start of each key of Response.Values.
	SendRequest(ctx context.Context, req *Request, strip string) (*Response, error)

	// SendRequestOnce is SendRequest without the keepalive re-login and retry.
	SendRequestOnce(ctx context.Context, req *Request, strip string) (*Response, error)
}

// QueryOption qualifies a query.
type QueryOption func(*queryConfig)

type queryConfig struct {
	flags Flags
	strip string
}

// WithoutState excludes state nodes, applied to every node of the query.
func WithoutState() QueryOption {
	return func(c *queryConfig) { c.flags |= NoState }
}

// WithoutConfig excludes configuration nodes, applied to every node of the query.
func WithoutConfig() QueryOption {
	return func(c *queryConfig) { c.flags |= NoConfig }
}

// Strip removes prefix from the start of each name returned by GetNodeValues.
func Strip(prefix string) QueryOption {
	return func(c *queryConfig) { c.strip = prefix }
}

type sImpl struct {
	*client.Session
}

// NewSession creates an XG session to host, recognising successful logins with the
// DefaultLoginSignatures.
func NewSession(ctx context.Context, host string, opts ...client.SessionOption) (Session, error) {
	return NewSessionWithMatcher(ctx, host, DefaultLoginSignatures, opts...)
}

// NewSessionWithMatcher creates an XG session to host, recognising successful logins with matcher.
func NewSessionWithMatcher(ctx context.Context, host string, matcher LoginMatcher, opts ...client.SessionOption) (Session, error) {
	if matcher == nil {
		return nil, common.NewConfigError("login matcher", "must not be nil")
	}
	cs, err := client.New(ctx, host, &dialect{matcher: matcher}, opts...)
	if err != nil {
		return nil, err
	}
	return &sImpl{Session: cs}, nil
}

func (s *sImpl) GetNodes(ctx context.Context, names []string, opts ...QueryOption) (map[string]*Node, error) {
	resp, err := s.query(ctx, names, opts)
	if err != nil {
		return nil, err
	}
	nodes := make(map[string]*Node, len(resp.Nodes))
	for _, n := range resp.Nodes {
		nodes[n.Name] = n
	}
	return nodes, nil
}

func (s *sImpl) GetNode(ctx context.Context, name string, opts ...QueryOption) (*Node, error) {
	nodes, err := s.GetNodes(ctx, []string{name}, opts...)
	if err != nil {
		return nil, err
	}
	if n, ok := nodes[name]; ok {
		return n, nil
	}
	return nil, common.NewActionError("", "node "+name+" not returned")
}

func (s *sImpl) GetNodeValues(ctx context.Context, names []string, opts ...QueryOption) (map[string]string, error) {
	resp, err := s.query(ctx, names, opts)
	if err != nil {
		return nil, err
	}
	return resp.Values, nil
}

func (s *sImpl) query(ctx context.Context, names []string, opts []QueryOption) (*Response, error) {
	cfg := &queryConfig{}
	for _, opt := range opts {
		opt(cfg)
	}
	req, err := NewQueryRequest(names, cfg.flags)
	if err != nil {
		return nil, err
	}
	resp, err := s.SendRequest(ctx, req, cfg.strip)
	if err != nil {
		return nil, err
	}
	return resp, resp.Err()
}

func (s *sImpl) PerformAction(ctx context.Context, name string, nodes ...*Node) (*ActionResult, error) {
	req, err := NewActionRequest(name, nodes)
	if err != nil {
		return nil, err
	}
	return s.perform(ctx, req)
}

func (s *sImpl) PerformSet(ctx context.Context, source NodeSource) (*ActionResult, error) {
	if source == nil {
		return nil, common.NewValidationError("set requires a node source")
	}
	nodes := source.SetNodes()
	if len(nodes) == 0 {
		return &ActionResult{Message: "no pending updates"}, nil
	}
	req, err := NewSetRequest(nodes)
	if err != nil {
		return nil, err
	}
	result, err := s.perform(ctx, req)
	if err != nil {
		return result, err
	}
	if p, ok := source.(PendingUpdates); ok {
		p.ClearPendingUpdates()
	}
	return result, nil
}

func (s *sImpl) SaveConfig(ctx context.Context) (*ActionResult, error) {
	return s.PerformAction(ctx, SaveConfigAction)
}

func (s *sImpl) perform(ctx context.Context, req *Request) (*ActionResult, error) {
	resp, err := s.SendRequest(ctx, req, "")
	if err != nil {
		return nil, err
	}
	return resp.Result(), resp.Err()
}

func (s *sImpl) SendRequest(ctx context.Context, req *Request, strip string) (*Response, error) {
	return s.send(ctx, req, strip, s.Execute)
}

func (s *sImpl) SendRequestOnce(ctx context.Context, req *Request, strip string) (*Response, error) {
	return s.send(ctx, req, strip, s.ExecuteOnce)
}

type executor func(ctx context.Context, req client.Request, handler client.ReplyHandler) error

func (s *sImpl) send(ctx context.Context, req *Request, strip string, execute executor) (*Response, error) {
	if req == nil {
		return nil, common.NewValidationError("request must not be nil")
	}
	var resp *Response
	err := execute(ctx, req, func(reply *client.Reply) (err error) {
		resp, err = s.parseReply(reply, req, strip)
		return
	})
	if err != nil {
		s.Log("SendRequest "+req.Kind().String(), err)
		return nil, err
	}
	return resp, nil
}

func (s *sImpl) parseReply(reply *client.Reply, req *Request, strip string) (*Response, error) {
	switch {
	case reply.StatusCode == http.StatusUnauthorized || reply.StatusCode == http.StatusForbidden:
		return nil, common.NewAuthError(common.MsgSessionExpired)
	case reply.StatusCode >= http.StatusBadRequest:
		return nil, common.NewNetworkError(http.MethodPost, s.BaseURL()+GatewayPath,
			errors.Errorf("gateway returned HTTP status %d", reply.StatusCode))
	}
	return ParseResponse(reply.Body, req, strip)
}
