// Package fdt in-memory flattened device tree with a DTB encoder.
//
// Node offsets are stable indexes handed out by the tree, the root is offset 0.
package fdt

import (
	"encoding/binary"
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNotFound  = errors.New("fdt: node not found")
	ErrExists    = errors.New("fdt: node exists")
	ErrBadOffset = errors.New("fdt: bad node offset")
	ErrBadName   = errors.New("fdt: bad node name")
)

type Property struct {
	Name  string
	Value []byte
}

type node struct {
	name     string
	parent   int
	children []int
	props    []Property
}

type Tree struct {
	nodes []*node
}

func New() *Tree {
	return &Tree{nodes: []*node{{name: "", parent: -1}}}
}

func (t *Tree) node(off int) (*node, error) {
	if off < 0 || off >= len(t.nodes) {
		return nil, fmt.Errorf("%w: %d", ErrBadOffset, off)
	}
	return t.nodes[off], nil
}

func (t *Tree) child(parent int, name string) (int, bool) {
	for _, c := range t.nodes[parent].children {
		if t.nodes[c].name == name {
			return c, true
		}
	}
	return 0, false
}

// PathOffset resolves an absolute path like "/idme/serial"
func (t *Tree) PathOffset(path string) (int, error) {
	if !strings.HasPrefix(path, "/") {
		return 0, fmt.Errorf("%w: relative path %q", ErrBadName, path)
	}
	off := 0
	for _, part := range strings.Split(path, "/") {
		if part == "" {
			continue
		}
		c, ok := t.child(off, part)
		if !ok {
			return 0, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		off = c
	}
	return off, nil
}

func (t *Tree) AddSubnode(parent int, name string) (int, error) {
	if _, err := t.node(parent); err != nil {
		return 0, err
	}
	if name == "" || strings.ContainsAny(name, "/\x00") {
		return 0, fmt.Errorf("%w: %q", ErrBadName, name)
	}
	if _, ok := t.child(parent, name); ok {
		return 0, fmt.Errorf("%w: %s", ErrExists, name)
	}

	t.nodes = append(t.nodes, &node{name: name, parent: parent})
	off := len(t.nodes) - 1
	t.nodes[parent].children = append(t.nodes[parent].children, off)
	return off, nil
}

func (t *Tree) setProp(off int, name string, value []byte) error {
	n, err := t.node(off)
	if err != nil {
		return err
	}
	for i := range n.props {
		if n.props[i].Name == name {
			n.props[i].Value = value
			return nil
		}
	}
	n.props = append(n.props, Property{Name: name, Value: value})
	return nil
}

// SetPropString stores value NUL terminated
func (t *Tree) SetPropString(off int, name, value string) error {
	return t.setProp(off, name, append([]byte(value), 0))
}

// SetPropU32 stores value as a big-endian cell
func (t *Tree) SetPropU32(off int, name string, value uint32) error {
	b := make([]byte, 4)
	binary.BigEndian.PutUint32(b, value)
	return t.setProp(off, name, b)
}

// Prop returns the raw value of a property
func (t *Tree) Prop(off int, name string) ([]byte, bool) {
	n, err := t.node(off)
	if err != nil {
		return nil, false
	}
	for _, p := range n.props {
		if p.Name == name {
			return p.Value, true
		}
	}
	return nil, false
}

func (t *Tree) PropString(off int, name string) (string, bool) {
	v, ok := t.Prop(off, name)
	if !ok {
		return "", false
	}
	return strings.TrimRight(string(v), "\x00"), true
}

func (t *Tree) PropU32(off int, name string) (uint32, bool) {
	v, ok := t.Prop(off, name)
	if !ok || len(v) != 4 {
		return 0, false
	}
	return binary.BigEndian.Uint32(v), true
}

// Children names of the direct children in insertion order
func (t *Tree) Children(off int) []string {
	n, err := t.node(off)
	if err != nil {
		return nil
	}
	out := make([]string, 0, len(n.children))
	for _, c := range n.children {
		out = append(out, t.nodes[c].name)
	}
	return out
}
