// Package workspace holds all known documents and the link edges between
// them. Documents are immutable values replaced as a whole, so a reader that
// got a document observes one consistent revision of it.
package workspace

import (
	"fmt"
	"sort"
	"sync"

	"github.com/tliron/commonlog"

	"texlsp/internal/document"
	"texlsp/internal/syntax"
)

var log = commonlog.GetLogger("texlsp.workspace")

// Edge is a resolved link from one document to another.
type Edge struct {
	Source string
	Target string
	Kind   document.LinkKind
	Span   syntax.Span
}

// Links is the outcome of resolving all links of a document.
type Links struct {
	Edges       []Edge
	Diagnostics []document.Diagnostic // missing files
	Unresolved  int                   // links without a target, reported or not
}

type entry struct {
	doc   *document.Document
	open  bool
	links Links
}

type Workspace struct {
	mu          sync.RWMutex
	docs        map[string]*entry
	forward     map[string][]Edge
	backward    map[string]map[string]struct{}
	subscribers map[int]chan Event
	nextSubID   int
}

func New() *Workspace {
	return &Workspace{
		docs:        make(map[string]*entry),
		forward:     make(map[string][]Edge),
		backward:    make(map[string]map[string]struct{}),
		subscribers: make(map[int]chan Event),
	}
}

// Get returns the current revision of a document.
func (w *Workspace) Get(uri string) (*document.Document, error) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	e, ok := w.docs[uri]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, uri)
	}
	return e.doc, nil
}

func (w *Workspace) Contains(uri string) bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	_, ok := w.docs[uri]
	return ok
}

// Revision returns the revision of the stored document.
func (w *Workspace) Revision(uri string) (int64, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	e, ok := w.docs[uri]
	if !ok {
		return 0, false
	}
	return e.doc.Revision, true
}

// AddOrReplace stores doc, replacing any earlier revision of the same URI.
// The open flag and the links of an existing document are kept.
func (w *Workspace) AddOrReplace(doc *document.Document) {
	w.mu.Lock()
	defer w.mu.Unlock()
	e, ok := w.docs[doc.URI]
	if !ok {
		e = &entry{}
		w.docs[doc.URI] = e
	}
	e.doc = doc
	typ := DocumentUpdated
	if !ok {
		typ = DocumentCreated
	}
	w.emit(Event{Type: typ, Document: w.documentEvent(e)})
}

func (w *Workspace) documentEvent(e *entry) *DocumentEvent {
	return &DocumentEvent{
		URI:      e.doc.URI,
		Revision: e.doc.Revision,
		Open:     e.open,
		Language: e.doc.Language.String(),
	}
}

// SetOpen marks a document as opened or closed in the editor.
func (w *Workspace) SetOpen(uri string, open bool) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	e, ok := w.docs[uri]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, uri)
	}
	if e.open != open {
		e.open = open
		w.emit(Event{Type: DocumentUpdated, Document: w.documentEvent(e)})
	}
	return nil
}

func (w *Workspace) IsOpen(uri string) bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	e, ok := w.docs[uri]
	return ok && e.open
}

// Remove deletes a document and its outgoing edges. Edges of other documents
// pointing to it stay until those documents are relinked.
func (w *Workspace) Remove(uri string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.remove(uri)
}

func (w *Workspace) remove(uri string) error {
	e, ok := w.docs[uri]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, uri)
	}
	w.replaceEdges(uri, nil)
	delete(w.docs, uri)
	w.emit(Event{Type: DocumentRemoved, Document: w.documentEvent(e)})
	return nil
}

// SetLinks replaces the outgoing edges of source and returns the targets
// that were added and removed.
func (w *Workspace) SetLinks(source string, links Links) (added, removed []string, err error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	e, ok := w.docs[source]
	if !ok {
		return nil, nil, fmt.Errorf("%w: %s", ErrNotFound, source)
	}
	for _, edge := range links.Edges {
		if edge.Source != source {
			return nil, nil, fmt.Errorf("workspace: edge source %s does not match %s", edge.Source, source)
		}
	}
	e.links = links
	added, removed = w.replaceEdges(source, links.Edges)
	return added, removed, nil
}

func (w *Workspace) replaceEdges(source string, edges []Edge) (added, removed []string) {
	before := targetSet(w.forward[source])
	after := targetSet(edges)
	for _, edge := range w.forward[source] {
		if _, keep := after[edge.Target]; keep {
			continue
		}
		if _, done := before[edge.Target]; !done {
			continue
		}
		delete(before, edge.Target)
		if bl := w.backward[edge.Target]; bl != nil {
			delete(bl, source)
			if len(bl) == 0 {
				delete(w.backward, edge.Target)
			}
		}
		removed = append(removed, edge.Target)
		w.emit(Event{Type: EdgeRemoved, Edge: &EdgeEvent{Source: source, Target: edge.Target}})
	}
	old := targetSet(w.forward[source])
	seen := make(map[string]struct{})
	for _, edge := range edges {
		if _, dup := seen[edge.Target]; dup {
			continue
		}
		seen[edge.Target] = struct{}{}
		if _, had := old[edge.Target]; had {
			continue
		}
		if w.backward[edge.Target] == nil {
			w.backward[edge.Target] = make(map[string]struct{})
		}
		w.backward[edge.Target][source] = struct{}{}
		added = append(added, edge.Target)
		w.emit(Event{Type: EdgeAdded, Edge: &EdgeEvent{Source: source, Target: edge.Target}})
	}
	if len(edges) == 0 {
		delete(w.forward, source)
	} else {
		w.forward[source] = append([]Edge(nil), edges...)
	}
	return added, removed
}

func targetSet(edges []Edge) map[string]struct{} {
	out := make(map[string]struct{}, len(edges))
	for _, e := range edges {
		out[e.Target] = struct{}{}
	}
	return out
}

// Edges returns the outgoing edges of a document in discovery order.
func (w *Workspace) Edges(source string) []Edge {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return append([]Edge(nil), w.forward[source]...)
}

// LinkDiagnostics returns the missing-file diagnostics of the last resolution.
func (w *Workspace) LinkDiagnostics(uri string) []document.Diagnostic {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if e, ok := w.docs[uri]; ok {
		return e.links.Diagnostics
	}
	return nil
}

// Unresolved returns the documents that have links without a target, sorted.
func (w *Workspace) Unresolved() []string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	var out []string
	for uri, e := range w.docs {
		if e.links.Unresolved > 0 {
			out = append(out, uri)
		}
	}
	sort.Strings(out)
	return out
}

// ReachableFrom returns the documents in the forward closure of uri, uri
// first, in depth-first discovery order. Edges to unknown documents are
// skipped. Cycles are cut by the visited set.
func (w *Workspace) ReachableFrom(uri string) []*document.Document {
	w.mu.RLock()
	defer w.mu.RUnlock()
	var out []*document.Document
	for _, u := range w.reachable(uri) {
		out = append(out, w.docs[u].doc)
	}
	return out
}

// ReachableURIs is ReachableFrom returning URIs.
func (w *Workspace) ReachableURIs(uri string) []string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.reachable(uri)
}

func (w *Workspace) reachable(uri string) []string {
	if _, ok := w.docs[uri]; !ok {
		return nil
	}
	visited := map[string]bool{uri: true}
	out := []string{uri}
	stack := []string{uri}
	// explicit stack of iterators keeps preorder without recursion
	next := map[string]int{}
	for len(stack) > 0 {
		top := stack[len(stack)-1]
		edges := w.forward[top]
		i := next[top]
		if i >= len(edges) {
			stack = stack[:len(stack)-1]
			continue
		}
		next[top] = i + 1
		target := edges[i].Target
		if visited[target] {
			continue
		}
		visited[target] = true
		if _, ok := w.docs[target]; !ok {
			continue
		}
		out = append(out, target)
		stack = append(stack, target)
	}
	return out
}

// Referencing returns the documents with an edge to uri, sorted.
func (w *Workspace) Referencing(uri string) []string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	out := make([]string, 0, len(w.backward[uri]))
	for src := range w.backward[uri] {
		if _, ok := w.docs[src]; ok {
			out = append(out, src)
		}
	}
	sort.Strings(out)
	return out
}

// ReferencingClosure returns uri and every document that reaches it, in
// breadth-first order.
func (w *Workspace) ReferencingClosure(uri string) []string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.referencingClosure(uri)
}

func (w *Workspace) referencingClosure(uri string) []string {
	visited := map[string]bool{uri: true}
	out := []string{uri}
	for i := 0; i < len(out); i++ {
		var sources []string
		for src := range w.backward[out[i]] {
			if !visited[src] {
				sources = append(sources, src)
			}
		}
		sort.Strings(sources)
		for _, src := range sources {
			visited[src] = true
			out = append(out, src)
		}
	}
	return out
}

// Roots returns the documents whose forward closure should be analyzed as a
// project: documents nothing links to, plus one document of every cycle not
// reachable from such a document.
func (w *Workspace) Roots() []string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	uris := w.sortedURIs()
	covered := make(map[string]bool)
	var out []string
	for _, uri := range uris {
		if w.hasParent(uri) {
			continue
		}
		out = append(out, uri)
		for _, u := range w.reachable(uri) {
			covered[u] = true
		}
	}
	for _, uri := range uris {
		if covered[uri] {
			continue
		}
		out = append(out, uri)
		for _, u := range w.reachable(uri) {
			covered[u] = true
		}
	}
	return out
}

func (w *Workspace) hasParent(uri string) bool {
	for src := range w.backward[uri] {
		if _, ok := w.docs[src]; ok && src != uri {
			return true
		}
	}
	return false
}

// RemoveIfUnreachable removes uri unless it is open or reachable from an open
// document. It reports whether the document was removed.
func (w *Workspace) RemoveIfUnreachable(uri string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	e, ok := w.docs[uri]
	if !ok || e.open {
		return false
	}
	for _, src := range w.referencingClosure(uri) {
		if other, ok := w.docs[src]; ok && other.open {
			return false
		}
	}
	log.Debugf("removing unreachable document %s", uri)
	_ = w.remove(uri)
	return true
}

// Documents returns all documents sorted by URI.
func (w *Workspace) Documents() []*document.Document {
	w.mu.RLock()
	defer w.mu.RUnlock()
	out := make([]*document.Document, 0, len(w.docs))
	for _, uri := range w.sortedURIs() {
		out = append(out, w.docs[uri].doc)
	}
	return out
}

func (w *Workspace) sortedURIs() []string {
	uris := make([]string, 0, len(w.docs))
	for uri := range w.docs {
		uris = append(uris, uri)
	}
	sort.Strings(uris)
	return uris
}
