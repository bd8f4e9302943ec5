// Package pytree is the concrete syntax tree produced by the parser. Every
// byte of the source is kept: whitespace and comments live in the prefix of
// the leaf that follows them, so printing a tree reproduces its source.
package pytree

import (
	"iter"
	"slices"
	"strings"
)

// NL is either a *Node or a *Leaf.
type NL interface {
	// Type is a token kind for leaves and a grammar symbol for nodes.
	Type() int
	Parent() *Node
	Prefix() string
	SetPrefix(string)
	String() string
	Clone() NL

	setParent(*Node)
}

// Node is a non-terminal with an ordered list of children.
type Node struct {
	typ      int
	Children []NL
	parent   *Node
}

// Leaf is a terminal. An empty Value marks an invisible bracket.
type Leaf struct {
	typ    int
	Value  string
	prefix string
	parent *Node

	Lineno int
	Column int

	// Set by the bracket tracker while a line is assembled.
	BracketDepth   int
	OpeningBracket *Leaf
}

// NewNode creates a node and adopts its children.
func NewNode(typ int, children ...NL) *Node {
	n := &Node{typ: typ}
	for _, ch := range children {
		n.AppendChild(ch)
	}
	return n
}

// NewLeaf creates a leaf with an empty prefix.
func NewLeaf(typ int, value string) *Leaf {
	return &Leaf{typ: typ, Value: value}
}

// NewLeafWithPrefix creates a leaf preceded by prefix.
func NewLeafWithPrefix(typ int, value, prefix string) *Leaf {
	return &Leaf{typ: typ, Value: value, prefix: prefix}
}

func (n *Node) Type() int           { return n.typ }
func (n *Node) Parent() *Node       { return n.parent }
func (n *Node) setParent(p *Node)   { n.parent = p }
func (l *Leaf) Type() int           { return l.typ }
func (l *Leaf) Parent() *Node       { return l.parent }
func (l *Leaf) setParent(p *Node)   { l.parent = p }
func (l *Leaf) Prefix() string      { return l.prefix }
func (l *Leaf) SetPrefix(p string)  { l.prefix = p }
func (l *Leaf) String() string      { return l.prefix + l.Value }

// SetType reclassifies a leaf, e.g. a trailing comment that has to stand on
// its own line.
func (l *Leaf) SetType(t int) { l.typ = t }

// Prefix of a node is the prefix of its first leaf.
func (n *Node) Prefix() string {
	if len(n.Children) == 0 {
		return ""
	}
	return n.Children[0].Prefix()
}

func (n *Node) SetPrefix(p string) {
	if len(n.Children) > 0 {
		n.Children[0].SetPrefix(p)
	}
}

func (n *Node) String() string {
	var b strings.Builder
	n.write(&b)
	return b.String()
}

func (n *Node) write(b *strings.Builder) {
	for _, ch := range n.Children {
		switch c := ch.(type) {
		case *Node:
			c.write(b)
		case *Leaf:
			b.WriteString(c.prefix)
			b.WriteString(c.Value)
		}
	}
}

func (n *Node) Clone() NL {
	c := &Node{typ: n.typ}
	for _, ch := range n.Children {
		c.AppendChild(ch.Clone())
	}
	return c
}

func (l *Leaf) Clone() NL {
	return &Leaf{
		typ:    l.typ,
		Value:  l.Value,
		prefix: l.prefix,
		Lineno: l.Lineno,
		Column: l.Column,
	}
}

// AppendChild adds child at the end, taking ownership of it.
func (n *Node) AppendChild(child NL) {
	child.setParent(n)
	n.Children = append(n.Children, child)
}

// InsertChild inserts child at index i.
func (n *Node) InsertChild(i int, child NL) {
	child.setParent(n)
	n.Children = slices.Insert(n.Children, i, child)
}

// SetChild replaces the i-th child.
func (n *Node) SetChild(i int, child NL) {
	child.setParent(n)
	n.Children[i].setParent(nil)
	n.Children[i] = child
}

// Index returns the position of child among n's children, or -1.
func (n *Node) Index(child NL) int {
	for i, ch := range n.Children {
		if ch == child {
			return i
		}
	}
	return -1
}

// Remove detaches nl from its parent and returns its former index, or -1
// when it had no parent.
func Remove(nl NL) int {
	p := nl.Parent()
	if p == nil {
		return -1
	}
	i := p.Index(nl)
	if i >= 0 {
		p.Children = slices.Delete(p.Children, i, i+1)
	}
	nl.setParent(nil)
	return i
}

// Replace puts news in place of old within old's parent.
func Replace(old NL, news ...NL) {
	p := old.Parent()
	if p == nil {
		return
	}
	i := p.Index(old)
	if i < 0 {
		return
	}
	for _, nw := range news {
		nw.setParent(p)
	}
	p.Children = slices.Replace(p.Children, i, i+1, news...)
	old.setParent(nil)
}

// NextSibling returns the node immediately after nl in its parent, or nil.
func NextSibling(nl NL) NL {
	p := nl.Parent()
	if p == nil {
		return nil
	}
	i := p.Index(nl)
	if i < 0 || i+1 >= len(p.Children) {
		return nil
	}
	return p.Children[i+1]
}

// PrevSibling returns the node immediately before nl in its parent, or nil.
func PrevSibling(nl NL) NL {
	p := nl.Parent()
	if p == nil {
		return nil
	}
	i := p.Index(nl)
	if i <= 0 {
		return nil
	}
	return p.Children[i-1]
}

// Depth is the number of ancestors of nl.
func Depth(nl NL) int {
	d := 0
	for p := nl.Parent(); p != nil; p = p.Parent() {
		d++
	}
	return d
}

// Leaves yields every leaf under nl from left to right.
func Leaves(nl NL) iter.Seq[*Leaf] {
	return func(yield func(*Leaf) bool) {
		walkLeaves(nl, yield)
	}
}

func walkLeaves(nl NL, yield func(*Leaf) bool) bool {
	switch n := nl.(type) {
	case *Leaf:
		return yield(n)
	case *Node:
		for _, ch := range n.Children {
			if !walkLeaves(ch, yield) {
				return false
			}
		}
	}
	return true
}

// PreOrder yields nl and all of its descendants, parents first.
func PreOrder(nl NL) iter.Seq[NL] {
	return func(yield func(NL) bool) {
		walkPreOrder(nl, yield)
	}
}

func walkPreOrder(nl NL, yield func(NL) bool) bool {
	if !yield(nl) {
		return false
	}
	if n, ok := nl.(*Node); ok {
		for _, ch := range n.Children {
			if !walkPreOrder(ch, yield) {
				return false
			}
		}
	}
	return true
}

// FirstLeaf returns the leftmost leaf under nl, or nil for an empty node.
func FirstLeaf(nl NL) *Leaf {
	for l := range Leaves(nl) {
		return l
	}
	return nil
}

// LastLeaf returns the rightmost leaf under nl, or nil for an empty node.
func LastLeaf(nl NL) *Leaf {
	for {
		switch n := nl.(type) {
		case *Leaf:
			return n
		case *Node:
			if len(n.Children) == 0 {
				return nil
			}
			nl = n.Children[len(n.Children)-1]
		}
	}
}

// Lineno returns the line number of the first leaf under nl, or 0.
func Lineno(nl NL) int {
	if l := FirstLeaf(nl); l != nil {
		return l.Lineno
	}
	return 0
}
