// Package feature answers editor queries over the workspace. Every function
// reads immutable documents and returns plain data with editor coordinates.
package feature

import (
	"fmt"

	"github.com/tliron/commonlog"

	"texlsp/internal/cache"
	"texlsp/internal/document"
	"texlsp/internal/index"
	"texlsp/internal/syntax"
	"texlsp/internal/workspace"
)

var log = commonlog.GetLogger("texlsp.feature")

// ErrNotFound is returned for queries against a document the workspace does
// not know.
var ErrNotFound = fmt.Errorf("feature: %w", workspace.ErrNotFound)

type Location struct {
	URI   string
	Range document.Range
}

type Engine struct {
	ws    *workspace.Workspace
	cache *cache.Cache
	index *index.Index
}

// New creates an engine. ix may be nil, which disables workspace symbols.
func New(ws *workspace.Workspace, c *cache.Cache, ix *index.Index) *Engine {
	return &Engine{ws: ws, cache: c, index: ix}
}

func (e *Engine) document(uri string) (*document.Document, error) {
	doc, err := e.ws.Get(uri)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, uri)
	}
	return doc, nil
}

var queryKinds = map[cache.Query][]document.SymbolKind{
	cache.VisibleLabels:       {document.LabelSymbol},
	cache.VisibleEntries:      {document.EntrySymbol, document.BibItemSymbol},
	cache.VisibleCommands:     {document.CommandSymbol},
	cache.VisibleEnvironments: {document.EnvironmentSymbol, document.TheoremSymbol},
	cache.VisibleStrings:      {document.StringSymbol},
}

func queryFor(kind document.ReferenceKind) cache.Query {
	switch kind {
	case document.CitationReference:
		return cache.VisibleEntries
	case document.CommandReference:
		return cache.VisibleCommands
	case document.EnvironmentReference:
		return cache.VisibleEnvironments
	case document.StringReference:
		return cache.VisibleStrings
	}
	return cache.VisibleLabels
}

func referenceKindOf(kind document.SymbolKind) (document.ReferenceKind, bool) {
	switch kind {
	case document.LabelSymbol:
		return document.LabelReference, true
	case document.EntrySymbol, document.BibItemSymbol:
		return document.CitationReference, true
	case document.CommandSymbol:
		return document.CommandReference, true
	case document.EnvironmentSymbol, document.TheoremSymbol:
		return document.EnvironmentReference, true
	case document.StringSymbol:
		return document.StringReference, true
	}
	return 0, false
}

// visibleSet holds the definitions of one kind visible from a document,
// together with the revisions they were taken from.
type visibleSet struct {
	symbols []document.Symbol
	docs    map[string]*document.Document
}

func (v *visibleSet) named(name string) []document.Symbol {
	var out []document.Symbol
	for _, s := range v.symbols {
		if s.Name == name {
			out = append(out, s)
		}
	}
	return out
}

func (v *visibleSet) location(s document.Symbol) Location {
	return Location{URI: s.URI, Range: v.docs[s.URI].Range(s.Span)}
}

// visible returns the definitions answering query in the documents reachable
// from uri, in reachability then document order.
func (e *Engine) visible(uri string, query cache.Query) *visibleSet {
	value := e.cache.Get(uri, query, func() (any, cache.Deps) {
		deps := cache.Deps{uri: -1}
		set := &visibleSet{docs: make(map[string]*document.Document)}
		for _, doc := range e.ws.ReachableFrom(uri) {
			deps[doc.URI] = doc.Revision
			set.docs[doc.URI] = doc
			set.symbols = append(set.symbols, doc.SymbolsOf(queryKinds[query]...)...)
		}
		return set, deps
	})
	return value.(*visibleSet)
}

// VisibleLabels lists the names of the labels visible from uri.
func (e *Engine) VisibleLabels(uri string) []string {
	var out []string
	for _, s := range e.visible(uri, cache.VisibleLabels).symbols {
		out = append(out, s.Name)
	}
	return out
}

// cursor describes the name under the editor cursor.
type cursor struct {
	doc        *document.Document
	name       string
	kind       document.ReferenceKind
	span       syntax.Span
	definition *document.Symbol
}

func (e *Engine) cursorAt(uri string, pos document.Position) (*cursor, *document.Document, error) {
	doc, err := e.document(uri)
	if err != nil {
		return nil, nil, err
	}
	offset := doc.Offset(pos)
	for _, r := range doc.References {
		if r.Span.ContainsInclusive(offset) {
			return &cursor{doc: doc, name: r.Name, kind: r.Kind, span: r.Span}, doc, nil
		}
	}
	for i, s := range doc.Symbols {
		kind, ok := referenceKindOf(s.Kind)
		if ok && s.Span.ContainsInclusive(offset) {
			return &cursor{doc: doc, name: s.Name, kind: kind, span: s.Span, definition: &doc.Symbols[i]}, doc, nil
		}
	}
	return nil, doc, nil
}

// definitions resolves the cursor name from the point of view of its document.
func (e *Engine) definitions(c *cursor) ([]Location, *visibleSet) {
	set := e.visible(c.doc.URI, queryFor(c.kind))
	var out []Location
	for _, s := range set.named(c.name) {
		out = append(out, set.location(s))
	}
	return out, set
}
