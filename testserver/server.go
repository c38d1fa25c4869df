// Package testserver provides an in-process management server for exercising sessions.
// It implements the html login framework and XG gateway, and the Concerto JSON API.
package testserver

import (
	"encoding/json"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
)

// Default credentials accepted by the server.
const (
	TestUserName = "admin"
	TestPassword = "password"
)

// Page bodies delivered by the html login framework.
const (
	LoginSuccessPage = `<html><head><META HTTP-EQUIV='Refresh' CONTENT='0;URL=/admin/launch?script=rh&template=dashboard'></head></html>`
	LoginFormPage    = `<html><body><form action="/admin/launch?script=rh&template=login&action=login"><input name="f_user_id"/><input name="f_password" type="password"/></form></body></html>`
	LogoutPage       = `<html><body>You have been logged out</body></html>`
)

const cookieName = "session_id"

// Request paths, as seen by the server.
const (
	XGLoginPath        = "/admin/launch?script=rh&template=login&action=login"
	XGLogoutPath       = "/admin/launch?script=rh&template=logout&action=logout"
	XGGatewayPath      = "/admin/launch?script=xg"
	ConcertoLogin      = "/api/v1/auth/login"
	ConcertoLogout     = "/api/v1/auth/logout"
	ConcertoProperties = "/api/v1/system/properties"
	BasicLogin         = "/api/login"
	BasicLogout        = "/api/logout"
)

// Option configures the server.
type Option func(*Server)

// WithTLS serves https with a self-signed certificate.
func WithTLS() Option {
	return func(s *Server) { s.tls = true }
}

// WithNodes defines the initial node tree.
func WithNodes(nodes map[string]string) Option {
	return func(s *Server) {
		for k, v := range nodes {
			s.nodes[k] = v
		}
	}
}

// WithLoginPage defines the page delivered after a successful html login.
func WithLoginPage(page string) Option {
	return func(s *Server) { s.loginPage = page }
}

// WithLoginData defines the data member of the Concerto login reply.
func WithLoginData(data map[string]interface{}) Option {
	return func(s *Server) { s.loginData = data }
}

// WithLoginReply replaces the Concerto login reply, whatever the credentials.
func WithLoginReply(status int, body string) Option {
	return func(s *Server) { s.loginReply = &cannedReply{status: status, body: body} }
}

// WithProperties defines the Concerto server properties.
func WithProperties(props map[string]interface{}) Option {
	return func(s *Server) { s.properties = props }
}

// Server is a test management server.
type Server struct {
	srv *httptest.Server
	tls bool

	user, password string

	mu         sync.Mutex
	sessions   map[string]bool
	nodes      map[string]string
	failures   map[string]actionFailure
	actions    []string
	counts     map[string]int
	handlers   map[string]http.HandlerFunc
	loginPage  string
	loginData  map[string]interface{}
	loginReply *cannedReply
	properties map[string]interface{}
}

type cannedReply struct {
	status int
	body   string
}

type actionFailure struct {
	code int
	msg  string
}

// NewServer delivers a started server accepting the given credentials.
// t may be nil, as in examples; otherwise the server is closed when the test completes.
func NewServer(t testing.TB, user, password string, opts ...Option) *Server {
	s := &Server{
		user:       user,
		password:   password,
		sessions:   map[string]bool{},
		nodes:      map[string]string{},
		failures:   map[string]actionFailure{},
		counts:     map[string]int{},
		handlers:   map[string]http.HandlerFunc{},
		loginPage:  LoginSuccessPage,
		properties: map[string]interface{}{"version": "1.0"},
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.tls {
		s.srv = httptest.NewTLSServer(http.HandlerFunc(s.serve))
	} else {
		s.srv = httptest.NewServer(http.HandlerFunc(s.serve))
	}
	if t != nil {
		t.Cleanup(s.srv.Close)
	}
	return s
}

// Close shuts down the server.
func (s *Server) Close() {
	s.srv.Close()
}

// URL delivers the base URL of the server.
func (s *Server) URL() string { return s.srv.URL }

// Host delivers the host:port of the server.
func (s *Server) Host() string {
	u, _ := url.Parse(s.srv.URL)
	return u.Host
}

// Client delivers an http client trusting the server certificate.
func (s *Server) Client() *http.Client { return s.srv.Client() }

// ExpireSessions invalidates all authenticated sessions.
func (s *Server) ExpireSessions() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions = map[string]bool{}
}

// ActiveSessions delivers the number of authenticated sessions.
func (s *Server) ActiveSessions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Count delivers the number of requests received for the path (including any query).
func (s *Server) Count(path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counts[path]
}

// Node delivers the value of a node.
func (s *Server) Node(name string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.nodes[name]
	return v, ok
}

// Actions delivers the names of the actions performed, in order.
func (s *Server) Actions() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.actions...)
}

// FailAction makes subsequent invocations of the named action, or any set request if
// name is "set", report the given return code.
func (s *Server) FailAction(name string, code int, msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[name] = actionFailure{code: code, msg: msg}
}

// Handle registers a handler for an authenticated JSON request.
func (s *Server) Handle(method, path string, h http.HandlerFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[method+" "+path] = h
}

func (s *Server) serve(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	s.counts[r.URL.RequestURI()]++
	s.mu.Unlock()

	switch r.URL.RequestURI() {
	case XGLoginPath:
		s.xgLogin(w, r)
	case XGLogoutPath:
		s.logout(r)
		_, _ = io.WriteString(w, LogoutPage)
	case XGGatewayPath:
		s.xgGateway(w, r)
	case ConcertoLogin:
		s.concertoLogin(w, r)
	case BasicLogin:
		s.basicLogin(w, r)
	case ConcertoLogout, BasicLogout:
		if !s.authenticated(r) {
			writeJSON(w, http.StatusForbidden, map[string]interface{}{"code": "unauthorized", "msg": "not logged in"})
			return
		}
		s.logout(r)
		writeJSON(w, http.StatusOK, map[string]interface{}{"code": "success"})
	default:
		s.concertoAPI(w, r)
	}
}

func (s *Server) newSession(w http.ResponseWriter) {
	id := uuid.NewString()
	s.mu.Lock()
	s.sessions[id] = true
	s.mu.Unlock()
	http.SetCookie(w, &http.Cookie{Name: cookieName, Value: id, Path: "/"})
}

func (s *Server) authenticated(r *http.Request) bool {
	c, err := r.Cookie(cookieName)
	if err != nil {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessions[c.Value]
}

func (s *Server) logout(r *http.Request) {
	if c, err := r.Cookie(cookieName); err == nil {
		s.mu.Lock()
		delete(s.sessions, c.Value)
		s.mu.Unlock()
	}
}

func (s *Server) xgLogin(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if r.PostForm.Get("f_user_id") != s.user || r.PostForm.Get("f_password") != s.password {
		_, _ = io.WriteString(w, LoginFormPage)
		return
	}
	s.newSession(w)
	_, _ = io.WriteString(w, s.loginPage)
}

// Server side view of the xg-request envelope.
type xgRequest struct {
	XMLName xml.Name `xml:"xg-request"`
	Query   *struct {
		Nodes []struct {
			Name  string `xml:"name"`
			Flags *struct {
				Flag []string `xml:"flag"`
			} `xml:"flags"`
		} `xml:"nodes>node"`
	} `xml:"query-request"`
	Set *struct {
		Nodes []xgNode `xml:"nodes>node"`
	} `xml:"set-request"`
	Action *struct {
		Name  string   `xml:"action-name"`
		Nodes *xgNodes `xml:"nodes"`
	} `xml:"action-request"`
}

type xgNode struct {
	Subop string `xml:"subop,omitempty"`
	Name  string `xml:"name"`
	Type  string `xml:"type,omitempty"`
	Value string `xml:"value"`
}

type xgStatus struct {
	Code int    `xml:"return-code"`
	Msg  string `xml:"return-msg"`
}

type xgReply struct {
	Status xgStatus `xml:"return-status"`
	Nodes  *xgNodes `xml:"nodes,omitempty"`
}

type xgNodes struct {
	Node []xgNode `xml:"node"`
}

type xgResponse struct {
	XMLName xml.Name `xml:"xg-response"`
	Query   *xgReply `xml:"query-response,omitempty"`
	Set     *xgReply `xml:"set-response,omitempty"`
	Action  *xgReply `xml:"action-response,omitempty"`
}

func (s *Server) xgGateway(w http.ResponseWriter, r *http.Request) {
	if !s.authenticated(r) {
		_, _ = io.WriteString(w, LoginFormPage)
		return
	}
	req := &xgRequest{}
	if err := xml.NewDecoder(r.Body).Decode(req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	resp := &xgResponse{}
	s.mu.Lock()
	switch {
	case req.Query != nil:
		reply := &xgReply{Nodes: &xgNodes{}}
		for _, n := range req.Query.Nodes {
			reply.Nodes.Node = append(reply.Nodes.Node, s.lookup(n.Name)...)
		}
		resp.Query = reply
	case req.Set != nil:
		reply := &xgReply{}
		if f, ok := s.failures["set"]; ok {
			reply.Status = xgStatus{Code: f.code, Msg: f.msg}
		} else {
			for _, n := range req.Set.Nodes {
				s.nodes[n.Name] = n.Value
			}
			reply.Status.Msg = "OK"
		}
		resp.Set = reply
	case req.Action != nil:
		reply := &xgReply{}
		s.actions = append(s.actions, req.Action.Name)
		if f, ok := s.failures[req.Action.Name]; ok {
			reply.Status = xgStatus{Code: f.code, Msg: f.msg}
		} else {
			reply.Status.Msg = "OK"
		}
		resp.Action = reply
	}
	s.mu.Unlock()

	b, err := xml.Marshal(resp)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/xml")
	_, _ = w.Write(b)
}

// lookup resolves a node name, honouring wildcard suffixes. Must be called with mu held.
func (s *Server) lookup(name string) []xgNode {
	base, mode := name, ""
	for _, suffix := range []string{"/***", "/**", "/*"} {
		if strings.HasSuffix(name, suffix) {
			base, mode = strings.TrimSuffix(name, suffix), suffix
			break
		}
	}

	var names []string
	for n := range s.nodes {
		rel := strings.TrimPrefix(n, base+"/")
		switch {
		case mode == "" && n == name:
		case mode == "/***" && n == base:
		case mode != "" && strings.HasPrefix(n, base+"/"):
			if mode == "/*" && strings.Contains(rel, "/") {
				continue
			}
		default:
			continue
		}
		names = append(names, n)
	}
	sort.Strings(names)

	nodes := make([]xgNode, 0, len(names))
	for _, n := range names {
		nodes = append(nodes, xgNode{Name: n, Type: "string", Value: s.nodes[n]})
	}
	return nodes
}

func (s *Server) concertoLogin(w http.ResponseWriter, r *http.Request) {
	if s.loginReply != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(s.loginReply.status)
		_, _ = io.WriteString(w, s.loginReply.body)
		return
	}
	body := struct {
		Data struct {
			Username string `json:"username"`
			Password string `json:"password"`
			Server   string `json:"server"`
		} `json:"data"`
	}{}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{"success": false, "msg": err.Error()})
		return
	}
	if body.Data.Username != s.user || body.Data.Password != s.password {
		writeJSON(w, http.StatusForbidden, map[string]interface{}{"code": "unauthorized", "msg": "invalid credentials"})
		return
	}
	s.newSession(w)

	s.mu.Lock()
	data := map[string]interface{}{"user": body.Data.Username}
	for k, v := range s.loginData {
		data[k] = v
	}
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "data": data})
}

func (s *Server) basicLogin(w http.ResponseWriter, r *http.Request) {
	body := struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}{}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Username != s.user || body.Password != s.password {
		writeJSON(w, http.StatusForbidden, map[string]interface{}{"success": false, "msg": "invalid credentials"})
		return
	}
	s.newSession(w)
	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true})
}

func (s *Server) concertoAPI(w http.ResponseWriter, r *http.Request) {
	if !s.authenticated(r) {
		writeJSON(w, http.StatusForbidden, map[string]interface{}{"code": "unauthorized", "msg": "session expired"})
		return
	}

	s.mu.Lock()
	h, ok := s.handlers[r.Method+" "+r.URL.Path]
	props := s.properties
	s.mu.Unlock()

	switch {
	case ok:
		h(w, r)
	case r.Method == http.MethodGet && r.URL.Path == ConcertoProperties:
		writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "data": props})
	default:
		s.echo(w, r)
	}
}

// echo reflects the request in a success envelope.
func (s *Server) echo(w http.ResponseWriter, r *http.Request) {
	b, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	var body interface{}
	if len(b) > 0 {
		if err := json.Unmarshal(b, &body); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]interface{}{"code": "bad-request", "msg": err.Error()})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"code": "success",
		"data": map[string]interface{}{
			"method": r.Method,
			"path":   r.URL.Path,
			"query":  r.URL.RawQuery,
			"header": r.Header.Get("X-Test"),
			"body":   body,
		},
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// String describes the server.
func (s *Server) String() string {
	return fmt.Sprintf("testserver %s", s.srv.URL)
}
