package xg

import (
	"testing"

	assert "github.com/stretchr/testify/require"
)

func TestIteration(t *testing.T) {
	assert.Equal(t, IterateNone, IterationOf("/net/interface"))
	assert.Equal(t, IterateShallow, IterationOf("/net/interface/*"))
	assert.Equal(t, IterateSubtree, IterationOf("/net/interface/**"))
	assert.Equal(t, IterateSubtreeSelf, IterationOf("/net/interface/***"))

	assert.Equal(t, "/net/interface/*", Iterate("/net/interface"))
	assert.Equal(t, "/net/interface/**", Subtree("/net/interface/*"))
	assert.Equal(t, "/net/interface/***", SubtreeSelf("/net/interface/**"))
	assert.Equal(t, "/net/interface", BaseName("/net/interface/***"))
	assert.Equal(t, "subtree-self", IterateSubtreeSelf.String())
}

func TestFlagNames(t *testing.T) {
	assert.Nil(t, Flags(0).Names())
	assert.Equal(t, []string{"no-state"}, NoState.Names())
	assert.Equal(t, []string{"no-state", "no-config"}, (NoState | NoConfig).Names())
}

func TestNewValueNode(t *testing.T) {
	n := NewValueNode("/system/hostname", "", 42)
	assert.Equal(t, TypeString, n.Type, "Type should default to string")
	assert.Equal(t, "42", n.Value)
	assert.Equal(t, "/system/hostname=42", n.String())
	assert.Equal(t, "/system/hostname", NewNode("/system/hostname").String())
}

func TestNodeDict(t *testing.T) {
	d := NewNodeDict()
	d.Load(map[string]string{"/b": "2", "/a": "1"})
	assert.Equal(t, []string{"/a", "/b"}, d.Names(), "Loaded nodes should be ordered by name")
	assert.Empty(t, d.SetNodes(), "Loaded nodes are not pending")

	d.Set("/c", "uint32", 3)
	d.Set("/a", "", "one")
	v, ok := d.Get("/a")
	assert.True(t, ok)
	assert.Equal(t, "one", v)
	assert.Equal(t, 3, d.Len())

	pending := d.SetNodes()
	assert.Len(t, pending, 2)
	assert.Equal(t, "/a", pending[0].Name, "Pending nodes should follow insertion order")
	assert.Equal(t, "/c", pending[1].Name)
	assert.Equal(t, "uint32", pending[1].Type)

	pending[0].Value = "modified"
	v, _ = d.Get("/a")
	assert.Equal(t, "one", v, "SetNodes should deliver copies")

	d.ClearPendingUpdates()
	assert.Empty(t, d.SetNodes())
	v, _ = d.Get("/c")
	assert.Equal(t, "3", v, "Values should be kept after clearing")

	_, ok = d.Get("/missing")
	assert.False(t, ok)
}
