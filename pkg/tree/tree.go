// Package tree inspects object trees: it prints them, counts their nodes
// and checks them for parameters that cannot produce a usable solid.
package tree

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/chazu/implicad/pkg/bbox"
	"github.com/chazu/implicad/pkg/object"
)

// Node is a snapshot of one object in a tree.
type Node struct {
	Kind     object.Kind
	Attrs    map[string]float64
	BBox     bbox.Box
	Children []*Node
	// Path locates the node from the root, e.g. "union/1:transformer".
	Path string
}

// Build snapshots o and everything below it. A nil object gives nil.
func Build(o object.Object) *Node {
	if o == nil {
		return nil
	}
	return build(o, o.Describe().Kind.String())
}

func build(o object.Object, path string) *Node {
	d := o.Describe()
	n := &Node{Kind: d.Kind, Attrs: d.Attrs, BBox: o.BBox(), Path: path}
	for i, c := range d.Children {
		n.Children = append(n.Children, build(c, fmt.Sprintf("%s/%d:%s", path, i, c.Describe().Kind)))
	}
	return n
}

// Walk calls fn for n and its descendants, parents first.
func (n *Node) Walk(fn func(*Node)) {
	if n == nil {
		return
	}
	fn(n)
	for _, c := range n.Children {
		c.Walk(fn)
	}
}

// Stats summarizes the shape of a tree.
type Stats struct {
	Nodes int
	// Distinct counts each shared subtree once.
	Distinct int
	Depth    int
	Leaves   int
}

// Count returns the statistics of the tree rooted at o.
func Count(o object.Object) Stats {
	var s Stats
	seen := make(map[object.Object]bool)
	var visit func(o object.Object, depth int)
	visit = func(o object.Object, depth int) {
		s.Nodes++
		s.Depth = max(s.Depth, depth)
		if !seen[o] {
			seen[o] = true
			s.Distinct++
		}
		children := o.Describe().Children
		if len(children) == 0 {
			s.Leaves++
		}
		for _, c := range children {
			visit(c, depth+1)
		}
	}
	if o != nil {
		visit(o, 1)
	}
	return s
}

// Format renders o as an indented outline, one node per line.
func Format(o object.Object) string {
	n := Build(o)
	if n == nil {
		return "<none>"
	}
	var sb strings.Builder
	n.format(&sb, 0)
	return strings.TrimSuffix(sb.String(), "\n")
}

func (n *Node) format(sb *strings.Builder, depth int) {
	sb.WriteString(strings.Repeat("  ", depth))
	sb.WriteString(n.Summary())
	sb.WriteByte('\n')
	for _, c := range n.Children {
		c.format(sb, depth+1)
	}
}

// Summary is the node on a single line: kind, sorted attributes and bbox.
func (n *Node) Summary() string {
	var sb strings.Builder
	sb.WriteString(n.Kind.String())
	for _, k := range slices.Sorted(maps.Keys(n.Attrs)) {
		fmt.Fprintf(&sb, " %s=%g", k, n.Attrs[k])
	}
	switch {
	case n.BBox.IsEmpty():
		sb.WriteString(" bbox=empty")
	case isUnbounded(n.BBox):
		sb.WriteString(" bbox=unbounded")
	default:
		fmt.Fprintf(&sb, " bbox=%s", n.BBox)
	}
	return sb.String()
}

func isUnbounded(b bbox.Box) bool {
	lim := object.Infinity / 2
	return b.Min.X < -lim || b.Min.Y < -lim || b.Min.Z < -lim ||
		b.Max.X > lim || b.Max.Y > lim || b.Max.Z > lim
}
