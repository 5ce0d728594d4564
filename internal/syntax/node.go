package syntax

// Node is an ephemeral cursor over a green tree. It carries the absolute offset
// of its element and a link to the cursor it was reached from. Nodes are cheap
// and created on demand during a traversal; they are never stored in documents.
type Node struct {
	green  *Green
	parent *Node
	offset int
	index  int
}

// NewRoot returns a cursor at the root of tree.
func NewRoot(tree *Green) *Node {
	return &Node{green: tree}
}

func (n *Node) Green() *Green {
	return n.green
}

func (n *Node) Kind() Kind {
	return n.green.kind
}

func (n *Node) IsToken() bool {
	return n.green.token
}

func (n *Node) Span() Span {
	return Span{Start: n.offset, End: n.offset + n.green.width}
}

func (n *Node) Text() string {
	return n.green.Text()
}

// Parent returns nil for the root.
func (n *Node) Parent() *Node {
	return n.parent
}

// Index is the position of the element among its parent's children.
func (n *Node) Index() int {
	return n.index
}

// Children returns all child tokens and nodes.
func (n *Node) Children() []*Node {
	if n.green.token {
		return nil
	}
	out := make([]*Node, 0, len(n.green.children))
	offset := n.offset
	for i, g := range n.green.children {
		out = append(out, &Node{green: g, parent: n, offset: offset, index: i})
		offset += g.width
	}
	return out
}

// ChildNodes returns the child nodes, skipping tokens.
func (n *Node) ChildNodes() []*Node {
	var out []*Node
	for _, c := range n.Children() {
		if !c.IsToken() {
			out = append(out, c)
		}
	}
	return out
}

// FirstChild returns the first child (token or node) of the given kind.
func (n *Node) FirstChild(kind Kind) *Node {
	if n == nil || n.green.token {
		return nil
	}
	offset := n.offset
	for i, g := range n.green.children {
		if g.kind == kind {
			return &Node{green: g, parent: n, offset: offset, index: i}
		}
		offset += g.width
	}
	return nil
}

// ChildrenOfKind returns the children (tokens or nodes) of the given kind.
func (n *Node) ChildrenOfKind(kind Kind) []*Node {
	var out []*Node
	for _, c := range n.Children() {
		if c.Kind() == kind {
			out = append(out, c)
		}
	}
	return out
}

// HasChild reports whether a direct child has the given kind.
func (n *Node) HasChild(kind Kind) bool {
	if n == nil || n.green.token {
		return false
	}
	for _, g := range n.green.children {
		if g.kind == kind {
			return true
		}
	}
	return false
}

// Walk visits n and its descendants in preorder. Returning false from fn skips
// the children of the visited element.
func (n *Node) Walk(fn func(*Node) bool) {
	if !fn(n) {
		return
	}
	for _, c := range n.Children() {
		c.Walk(fn)
	}
}

// Descendants returns all descendant nodes (not tokens) of the given kind in preorder.
func (n *Node) Descendants(kind Kind) []*Node {
	var out []*Node
	n.Walk(func(c *Node) bool {
		if c.IsToken() {
			return false
		}
		if c != n && c.Kind() == kind {
			out = append(out, c)
		}
		return true
	})
	return out
}

// Tokens returns the leaf tokens below n in document order.
func (n *Node) Tokens() []*Node {
	var out []*Node
	n.Walk(func(c *Node) bool {
		if c.IsToken() {
			out = append(out, c)
			return false
		}
		return true
	})
	return out
}

func (n *Node) FirstToken() *Node {
	if n.green.token {
		return n
	}
	for _, c := range n.Children() {
		if t := c.FirstToken(); t != nil {
			return t
		}
	}
	return nil
}

func (n *Node) LastToken() *Node {
	if n.green.token {
		return n
	}
	children := n.Children()
	for i := len(children) - 1; i >= 0; i-- {
		if t := children[i].LastToken(); t != nil {
			return t
		}
	}
	return nil
}

// TokensAt returns the token ending at or containing offset from the left and
// the token starting at or containing offset from the right. Either may be nil
// at the edges of the text. When offset falls inside a token both are the same.
func (n *Node) TokensAt(offset int) (left, right *Node) {
	n.Walk(func(c *Node) bool {
		span := c.Span()
		if offset < span.Start || offset > span.End {
			return false
		}
		if !c.IsToken() {
			return true
		}
		if span.Start < offset && offset <= span.End {
			left = c
		}
		if span.Start <= offset && offset < span.End && right == nil {
			right = c
		}
		return false
	})
	return left, right
}

// Ancestors returns the chain of parents from n's parent up to the root.
func (n *Node) Ancestors() []*Node {
	var out []*Node
	for p := n.parent; p != nil; p = p.parent {
		out = append(out, p)
	}
	return out
}

// Ancestor returns the closest ancestor (or n itself) of the given kind.
func (n *Node) Ancestor(kind Kind) *Node {
	for c := n; c != nil; c = c.parent {
		if !c.IsToken() && c.Kind() == kind {
			return c
		}
	}
	return nil
}

// CoveringNode returns the innermost node (not token) whose span contains offset.
// An offset at the end of a node counts as inside it, so the cursor right after
// the last character of an argument still lands in that argument.
func (n *Node) CoveringNode(offset int) *Node {
	found := n
	n.Walk(func(c *Node) bool {
		if c.IsToken() || !c.Span().ContainsInclusive(offset) {
			return false
		}
		found = c
		return true
	})
	return found
}
