// Package syntax provides the lossless concrete syntax tree shared by all grammars.
//
// A tree has two layers. Green elements are immutable and position independent:
// a token stores its kind and text, a node stores its kind and children. Because
// nothing in a green element depends on where it sits in the file, identical
// subtrees can be shared between revisions of a document. Absolute positions and
// parent links are computed on demand by the red cursor (see Node).
package syntax

import "strings"

// Green is an immutable tree element: either a token or an internal node.
// Children slices are owned by the element and must not be modified.
type Green struct {
	kind     Kind
	token    bool
	text     string
	width    int
	children []*Green
}

func newToken(kind Kind, text string) *Green {
	return &Green{kind: kind, token: true, text: text, width: len(text)}
}

func newNode(kind Kind, children []*Green) *Green {
	width := 0
	for _, c := range children {
		width += c.width
	}
	return &Green{kind: kind, children: children, width: width}
}

func (g *Green) Kind() Kind {
	return g.kind
}

func (g *Green) IsToken() bool {
	return g.token
}

// Width is the length of the element's text in bytes.
func (g *Green) Width() int {
	return g.width
}

func (g *Green) Children() []*Green {
	return g.children
}

// Text reproduces the source text covered by the element.
func (g *Green) Text() string {
	if g.token {
		return g.text
	}
	var sb strings.Builder
	sb.Grow(g.width)
	g.writeText(&sb)
	return sb.String()
}

func (g *Green) writeText(sb *strings.Builder) {
	if g.token {
		sb.WriteString(g.text)
		return
	}
	for _, c := range g.children {
		c.writeText(sb)
	}
}

// maxCachedChildren bounds which nodes are interned. Small nodes (keys, short
// groups, single commands) make up most of a tree and are the ones that repeat
// across revisions.
const maxCachedChildren = 3

// maxCacheEntries bounds the memory held by a NodeCache; the cache is cleared
// when it grows past this size.
const maxCacheEntries = 1 << 16

type tokenKey struct {
	kind Kind
	text string
}

type nodeKey struct {
	kind     Kind
	n        uint8
	children [maxCachedChildren]*Green
}

// NodeCache interns green elements so that re-parsing a document reuses the
// element instances of unchanged subtrees. Tokens are interned by (kind, text)
// and small nodes by (kind, child identities); since children are interned
// first, equal subtrees resolve to the same pointer.
//
// A NodeCache is not safe for concurrent use. A nil *NodeCache disables interning.
type NodeCache struct {
	tokens map[tokenKey]*Green
	nodes  map[nodeKey]*Green
	hits   int
}

func NewNodeCache() *NodeCache {
	return &NodeCache{
		tokens: make(map[tokenKey]*Green),
		nodes:  make(map[nodeKey]*Green),
	}
}

// Len returns the number of interned elements.
func (c *NodeCache) Len() int {
	if c == nil {
		return 0
	}
	return len(c.tokens) + len(c.nodes)
}

// Hits returns how many elements were reused since the cache was created.
func (c *NodeCache) Hits() int {
	if c == nil {
		return 0
	}
	return c.hits
}

func (c *NodeCache) token(kind Kind, text string) *Green {
	if c == nil {
		return newToken(kind, text)
	}
	key := tokenKey{kind: kind, text: text}
	if g, ok := c.tokens[key]; ok {
		c.hits++
		return g
	}
	c.trim()
	g := newToken(kind, text)
	c.tokens[key] = g
	return g
}

// node takes ownership of children.
func (c *NodeCache) node(kind Kind, children []*Green) *Green {
	if c == nil || len(children) > maxCachedChildren {
		return newNode(kind, children)
	}
	key := nodeKey{kind: kind, n: uint8(len(children))}
	copy(key.children[:], children)
	if g, ok := c.nodes[key]; ok {
		c.hits++
		return g
	}
	c.trim()
	g := newNode(kind, children)
	c.nodes[key] = g
	return g
}

func (c *NodeCache) trim() {
	if len(c.tokens)+len(c.nodes) < maxCacheEntries {
		return
	}
	c.tokens = make(map[tokenKey]*Green)
	c.nodes = make(map[nodeKey]*Green)
}

type parent struct {
	kind  Kind
	first int
}

// Checkpoint marks a position in the builder so a node can later be started
// around elements that were already pushed (see StartNodeAt).
type Checkpoint int

// Builder assembles a green tree bottom-up in document order.
type Builder struct {
	cache    *NodeCache
	parents  []parent
	children []*Green
}

func NewBuilder(cache *NodeCache) *Builder {
	return &Builder{cache: cache}
}

func (b *Builder) StartNode(kind Kind) {
	b.parents = append(b.parents, parent{kind: kind, first: len(b.children)})
}

func (b *Builder) Token(kind Kind, text string) {
	b.children = append(b.children, b.cache.token(kind, text))
}

func (b *Builder) FinishNode() {
	p := b.parents[len(b.parents)-1]
	b.parents = b.parents[:len(b.parents)-1]
	children := make([]*Green, len(b.children)-p.first)
	copy(children, b.children[p.first:])
	b.children = b.children[:p.first]
	b.children = append(b.children, b.cache.node(p.kind, children))
}

func (b *Builder) Checkpoint() Checkpoint {
	return Checkpoint(len(b.children))
}

// StartNodeAt starts a node whose first child is the element pushed at cp.
func (b *Builder) StartNodeAt(cp Checkpoint, kind Kind) {
	b.parents = append(b.parents, parent{kind: kind, first: int(cp)})
}

// Finish returns the root. The builder must hold exactly one finished element.
func (b *Builder) Finish() *Green {
	if len(b.parents) != 0 || len(b.children) != 1 {
		panic("syntax: unbalanced builder")
	}
	root := b.children[0]
	b.children = b.children[:0]
	return root
}
