package xg

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Flags qualify how a node is queried.
type Flags uint8

const (
	// NoState excludes state nodes from a query.
	NoState Flags = 1 << iota
	// NoConfig excludes configuration nodes from a query.
	NoConfig
)

// Names delivers the wire names of the flags that are set.
func (f Flags) Names() []string {
	var names []string
	if f&NoState != 0 {
		names = append(names, "no-state")
	}
	if f&NoConfig != 0 {
		names = append(names, "no-config")
	}
	return names
}

// Iteration describes the wildcard suffix of a node name.
// The server interprets the suffix; the client forwards it verbatim.
type Iteration int

const (
	// IterateNone addresses the node itself.
	IterateNone Iteration = iota
	// IterateShallow addresses the immediate children (suffix /*).
	IterateShallow
	// IterateSubtree addresses all descendants (suffix /**).
	IterateSubtree
	// IterateSubtreeSelf addresses the node and all its descendants (suffix /***).
	IterateSubtreeSelf
)

func (i Iteration) String() string {
	switch i {
	case IterateNone:
		return "none"
	case IterateShallow:
		return "shallow"
	case IterateSubtree:
		return "subtree"
	case IterateSubtreeSelf:
		return "subtree-self"
	default:
		return fmt.Sprintf("Iteration(%d)", int(i))
	}
}

// IterationOf reports the iteration requested by the suffix of name.
func IterationOf(name string) Iteration {
	switch {
	case strings.HasSuffix(name, "/***"):
		return IterateSubtreeSelf
	case strings.HasSuffix(name, "/**"):
		return IterateSubtree
	case strings.HasSuffix(name, "/*"):
		return IterateShallow
	default:
		return IterateNone
	}
}

// BaseName strips any wildcard suffix from name.
func BaseName(name string) string {
	for _, suffix := range []string{"/***", "/**", "/*"} {
		if strings.HasSuffix(name, suffix) {
			return strings.TrimSuffix(name, suffix)
		}
	}
	return name
}

// Iterate delivers the name addressing the immediate children of name.
func Iterate(name string) string { return BaseName(name) + "/*" }

// Subtree delivers the name addressing all descendants of name.
func Subtree(name string) string { return BaseName(name) + "/**" }

// SubtreeSelf delivers the name addressing name and all its descendants.
func SubtreeSelf(name string) string { return BaseName(name) + "/***" }

// Default node data type.
const TypeString = "string"

// Node is an addressable path in the management tree, optionally carrying a value.
type Node struct {
	Name  string
	Type  string
	Value string
	Flags Flags
}

// NewNode delivers a node with no value, for use in queries.
func NewNode(name string) *Node {
	return &Node{Name: name}
}

// NewValueNode delivers a node carrying value, for use in set and action requests.
// An empty type defaults to string.
func NewValueNode(name, typ string, value interface{}) *Node {
	if typ == "" {
		typ = TypeString
	}
	return &Node{Name: name, Type: typ, Value: fmt.Sprint(value)}
}

func (n *Node) String() string {
	if n.Value == "" {
		return n.Name
	}
	return fmt.Sprintf("%s=%s", n.Name, n.Value)
}

// NodeSource delivers the nodes written by a set request.
type NodeSource interface {
	SetNodes() []*Node
}

// PendingUpdates is a NodeSource that tracks uncommitted writes.
// ClearPendingUpdates is called once the writes have been accepted by the server.
type PendingUpdates interface {
	NodeSource
	ClearPendingUpdates()
}

// NodeList is a plain list of nodes. It does not track pending updates.
type NodeList []*Node

// SetNodes delivers the list.
func (l NodeList) SetNodes() []*Node { return l }

// NodeDict holds node values by name and records which have been changed since the last
// successful set.
type NodeDict struct {
	mu      sync.Mutex
	nodes   map[string]*Node
	order   []string
	pending map[string]bool
}

// NewNodeDict delivers an empty node collection.
func NewNodeDict() *NodeDict {
	return &NodeDict{nodes: map[string]*Node{}, pending: map[string]bool{}}
}

// Load stores values received from a server without marking them pending.
func (d *NodeDict) Load(values map[string]string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	names := make([]string, 0, len(values))
	for name := range values {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		d.store(NewValueNode(name, "", values[name]))
	}
}

// Set records a new value for name and marks it pending.
func (d *NodeDict) Set(name, typ string, value interface{}) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.store(NewValueNode(name, typ, value))
	d.pending[name] = true
}

func (d *NodeDict) store(n *Node) {
	if _, ok := d.nodes[n.Name]; !ok {
		d.order = append(d.order, n.Name)
	}
	d.nodes[n.Name] = n
}

// Get delivers the value held for name.
func (d *NodeDict) Get(name string) (string, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	n, ok := d.nodes[name]
	if !ok {
		return "", false
	}
	return n.Value, true
}

// Names delivers the node names in insertion order.
func (d *NodeDict) Names() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.order...)
}

// Len delivers the number of nodes held.
func (d *NodeDict) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.order)
}

// SetNodes delivers the pending nodes in insertion order.
func (d *NodeDict) SetNodes() []*Node {
	d.mu.Lock()
	defer d.mu.Unlock()
	var nodes []*Node
	for _, name := range d.order {
		if d.pending[name] {
			n := *d.nodes[name]
			nodes = append(nodes, &n)
		}
	}
	return nodes
}

// ClearPendingUpdates forgets all pending writes, keeping the values.
func (d *NodeDict) ClearPendingUpdates() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.pending = map[string]bool{}
}
