package feature

import (
	"strings"

	"texlsp/internal/document"
)

// Definition returns the definitions of the name under pos. On an include or
// bibliography argument it returns the start of the linked file.
func (e *Engine) Definition(uri string, pos document.Position) ([]Location, error) {
	doc, err := e.document(uri)
	if err != nil {
		return nil, err
	}
	offset := doc.Offset(pos)
	for _, edge := range e.ws.Edges(uri) {
		if edge.Span.ContainsInclusive(offset) {
			return []Location{{URI: edge.Target}}, nil
		}
	}
	c, _, err := e.cursorAt(uri, pos)
	if err != nil || c == nil {
		return nil, err
	}
	defs, _ := e.definitions(c)
	return defs, nil
}

// References returns the uses of the name under pos in every document that
// can see its definitions, optionally preceded by the definitions.
func (e *Engine) References(uri string, pos document.Position, includeDeclaration bool) ([]Location, error) {
	c, _, err := e.cursorAt(uri, pos)
	if err != nil || c == nil {
		return nil, err
	}
	return e.references(c, includeDeclaration), nil
}

func (e *Engine) references(c *cursor, includeDeclaration bool) []Location {
	defs, set := e.definitions(c)
	var out []Location
	if includeDeclaration {
		out = append(out, defs...)
	}

	// A use in X sees a definition in D exactly when X reaches D.
	var scope []string
	seen := make(map[string]bool)
	addScope := func(uris []string) {
		for _, u := range uris {
			if !seen[u] {
				seen[u] = true
				scope = append(scope, u)
			}
		}
	}
	if len(defs) == 0 {
		addScope(e.ws.ReferencingClosure(c.doc.URI))
		addScope(e.ws.ReachableURIs(c.doc.URI))
	}
	for _, s := range set.named(c.name) {
		addScope(e.ws.ReferencingClosure(s.URI))
	}

	for _, u := range scope {
		doc := set.docs[u]
		if u == c.doc.URI {
			doc = c.doc
		}
		if doc == nil {
			if doc, _ = e.ws.Get(u); doc == nil {
				continue
			}
		}
		for _, r := range doc.References {
			if r.Kind == c.kind && r.Name == c.name {
				out = append(out, Location{URI: u, Range: doc.Range(r.Span)})
			}
		}
	}
	return out
}

type HighlightKind int

const (
	HighlightRead HighlightKind = iota + 1
	HighlightWrite
)

type Highlight struct {
	Range document.Range
	Kind  HighlightKind
}

// Highlights marks the definitions and uses of the name under pos inside its
// own document.
func (e *Engine) Highlights(uri string, pos document.Position) ([]Highlight, error) {
	c, doc, err := e.cursorAt(uri, pos)
	if err != nil || c == nil {
		return nil, err
	}
	var out []Highlight
	for _, s := range doc.Symbols {
		if kind, ok := referenceKindOf(s.Kind); ok && kind == c.kind && s.Name == c.name {
			out = append(out, Highlight{Range: doc.Range(s.Span), Kind: HighlightWrite})
		}
	}
	for _, r := range doc.References {
		if r.Kind == c.kind && r.Name == c.name {
			out = append(out, Highlight{Range: doc.Range(r.Span), Kind: HighlightRead})
		}
	}
	return out, nil
}

// PrepareRename returns the range of the renamable name under pos and its
// current text, or nil when there is nothing to rename.
func (e *Engine) PrepareRename(uri string, pos document.Position) (*document.Range, string, error) {
	c, doc, err := e.cursorAt(uri, pos)
	if err != nil || c == nil {
		return nil, "", err
	}
	r := doc.Range(c.span)
	return &r, c.name, nil
}

type TextEdit struct {
	Range   document.Range
	NewText string
}

// Rename replaces the name under pos at all definitions and uses.
func (e *Engine) Rename(uri string, pos document.Position, newName string) (map[string][]TextEdit, error) {
	c, _, err := e.cursorAt(uri, pos)
	if err != nil || c == nil {
		return nil, err
	}
	if c.kind == document.CommandReference {
		newName = strings.TrimPrefix(newName, `\`)
	}
	edits := make(map[string][]TextEdit)
	seen := make(map[Location]bool)
	for _, loc := range e.references(c, true) {
		if seen[loc] {
			continue
		}
		seen[loc] = true
		edits[loc.URI] = append(edits[loc.URI], TextEdit{Range: loc.Range, NewText: newName})
	}
	return edits, nil
}
