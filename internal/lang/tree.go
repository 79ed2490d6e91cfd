// Package lang extracts symbol and reference queries from source files
// using tree-sitter grammars: symbols are captured under an outer
// category (function, class, struct, enum, interface, trait, impl,
// module, type_alias) with a symbol_name sub-capture; references are
// captured under an edge-type category (calls, imports, implements).
package lang

import sitter "github.com/smacker/go-tree-sitter"

// Point is a 0-indexed row/column position in the source.
type Point struct {
	Row    uint32
	Column uint32
}

// Node is a parsed AST node, detached from the tree-sitter C tree so it can
// outlive a parse call without pinning cgo memory.
type Node struct {
	Type       string
	StartByte  uint32
	EndByte    uint32
	StartPoint Point
	EndPoint   Point
	Children   []*Node
}

// Content returns the source slice spanned by n.
func (n *Node) Content(source []byte) string {
	if n == nil || n.StartByte >= n.EndByte || int(n.EndByte) > len(source) {
		return ""
	}
	return string(source[n.StartByte:n.EndByte])
}

// Child returns the first direct child of the given type, or nil.
func (n *Node) Child(nodeType string) *Node {
	for _, c := range n.Children {
		if c.Type == nodeType {
			return c
		}
	}
	return nil
}

// Walk calls fn for n and every descendant, depth-first, pre-order. fn
// returning false stops descent into that subtree.
func (n *Node) Walk(fn func(*Node) bool) {
	if n == nil || !fn(n) {
		return
	}
	for _, c := range n.Children {
		c.Walk(fn)
	}
}

// Tree is a parsed file.
type Tree struct {
	Root   *Node
	Source []byte
}

func convertNode(ts *sitter.Node) *Node {
	if ts == nil {
		return nil
	}
	n := &Node{
		Type:       ts.Type(),
		StartByte:  ts.StartByte(),
		EndByte:    ts.EndByte(),
		StartPoint: Point{Row: ts.StartPoint().Row, Column: ts.StartPoint().Column},
		EndPoint:   Point{Row: ts.EndPoint().Row, Column: ts.EndPoint().Column},
		Children:   make([]*Node, 0, ts.ChildCount()),
	}
	for i := 0; i < int(ts.ChildCount()); i++ {
		if child := ts.Child(i); child != nil {
			n.Children = append(n.Children, convertNode(child))
		}
	}
	return n
}
