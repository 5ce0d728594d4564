// Package pipeline turns editor and file system events into published
// document revisions. Work for one URI runs in submission order on the
// scheduler; a revision that has been superseded by a later submission is
// never parsed or published.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/tliron/commonlog"

	"texlsp/internal/cache"
	"texlsp/internal/document"
	"texlsp/internal/index"
	"texlsp/internal/metrics"
	"texlsp/internal/resolver"
	"texlsp/internal/scheduler"
	"texlsp/internal/syntax"
	"texlsp/internal/workspace"
)

var log = commonlog.GetLogger("texlsp.pipeline")

var ErrNotOpen = errors.New("pipeline: document is not open")

// maxCachedNodes bounds the interning table kept per URI between revisions.
const maxCachedNodes = 1 << 16

type WatchKind int

const (
	WatchCreated WatchKind = iota + 1
	WatchModified
	WatchDeleted
)

func (k WatchKind) String() string {
	switch k {
	case WatchCreated:
		return "created"
	case WatchModified:
		return "modified"
	case WatchDeleted:
		return "deleted"
	}
	return "unknown"
}

// Listener is called after a document was published or removed.
type Listener func(uri string)

type Config struct {
	Workspace *workspace.Workspace
	Cache     *cache.Cache
	Scheduler *scheduler.Scheduler
	FS        FileSystem
	Index     *index.Index // optional
	Roots     []string
}

// state is what the pipeline knows about a URI ahead of the workspace: the
// newest submitted revision and its text.
type state struct {
	latest   int64
	text     string
	language document.Language
	open     bool
	nodes    *syntax.NodeCache
	// discovered is set for documents that were only loaded because another
	// document links to them.
	discovered bool
}

type Pipeline struct {
	ws    *workspace.Workspace
	cache *cache.Cache
	sched *scheduler.Scheduler
	fs    FileSystem
	index *index.Index

	mu        sync.Mutex
	resolver  *resolver.Resolver
	states    map[string]*state
	revision  int64
	listeners []Listener
}

func New(cfg Config) *Pipeline {
	fs := cfg.FS
	if fs == nil {
		fs = OSFileSystem{}
	}
	p := &Pipeline{
		ws:     cfg.Workspace,
		cache:  cfg.Cache,
		sched:  cfg.Scheduler,
		fs:     fs,
		index:  cfg.Index,
		states: make(map[string]*state),
	}
	p.resolver = resolver.New(cfg.Roots, p.exists)
	return p
}

// exists reports whether a path is a workspace document or a file on disk.
func (p *Pipeline) exists(path string) bool {
	return p.ws.Contains(document.URIFromPath(path)) || p.fs.IsFile(path)
}

// OnPublish registers a listener.
func (p *Pipeline) OnPublish(l Listener) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.listeners = append(p.listeners, l)
}

func (p *Pipeline) notify(uri string) {
	p.mu.Lock()
	listeners := append([]Listener(nil), p.listeners...)
	p.mu.Unlock()
	for _, l := range listeners {
		l(uri)
	}
}

// SetRoots replaces the extra include directories and relinks every document.
func (p *Pipeline) SetRoots(roots []string) {
	p.mu.Lock()
	p.resolver = resolver.New(roots, p.exists)
	p.mu.Unlock()
	for _, doc := range p.ws.Documents() {
		p.scheduleRelink(doc.URI)
	}
}

// Open submits the editor content of a newly opened document.
func (p *Pipeline) Open(uri, languageID string, version int32, text string) error {
	lang, ok := document.LanguageFromID(languageID)
	if !ok {
		lang = languageOf(uri)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	st := p.stateOf(uri)
	st.open = true
	st.discovered = false
	st.language = lang
	return p.submit(uri, st, version, text)
}

// Change applies incremental or full changes to an open document.
func (p *Pipeline) Change(uri string, version int32, changes []document.Change) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	st, ok := p.states[uri]
	if !ok || !st.open {
		return fmt.Errorf("%w: %s", ErrNotOpen, uri)
	}
	return p.submit(uri, st, version, document.ApplyChanges(st.text, changes))
}

// Close hands a document back to the disk. Its disk content is reloaded if
// the file exists, otherwise it is dropped unless an open document still
// includes it.
func (p *Pipeline) Close(uri string) error {
	p.mu.Lock()
	st, ok := p.states[uri]
	if !ok || !st.open {
		p.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrNotOpen, uri)
	}
	st.open = false
	p.mu.Unlock()

	return p.sched.Schedule(scheduler.Task{
		Name: "close " + uri,
		Key:  uri,
		Execute: func(ctx context.Context) error {
			if p.isOpen(uri) {
				return nil
			}
			_ = p.ws.SetOpen(uri, false)
			if path, err := document.PathFromURI(uri); err == nil && p.fs.IsFile(path) {
				return p.load(uri, false)
			}
			referencing := p.ws.Referencing(uri)
			edges := p.ws.Edges(uri)
			if p.ws.RemoveIfUnreachable(uri) {
				p.forget(ctx, uri, referencing)
				p.prune(ctx, edges)
			}
			return nil
		},
	})
}

// WatchEvent reacts to a change on disk. Open documents belong to the editor
// and are left alone.
func (p *Pipeline) WatchEvent(uri string, kind WatchKind) error {
	path, err := document.PathFromURI(uri)
	if err != nil {
		return err
	}
	if _, ok := document.LanguageFromPath(path); !ok {
		return nil
	}
	log.Debugf("watch event %s for %s", kind, uri)
	switch kind {
	case WatchCreated, WatchModified:
		return p.load(uri, false)
	case WatchDeleted:
		return p.sched.Schedule(scheduler.Task{
			Name: "delete " + uri,
			Key:  uri,
			Execute: func(ctx context.Context) error {
				if p.isOpen(uri) || !p.ws.Contains(uri) {
					return nil
				}
				referencing := p.ws.Referencing(uri)
				edges := p.ws.Edges(uri)
				p.cache.Invalidate(uri)
				if err := p.ws.Remove(uri); err != nil {
					return err
				}
				p.forget(ctx, uri, referencing)
				p.prune(ctx, edges)
				return nil
			},
		})
	}
	return fmt.Errorf("pipeline: unknown watch event %d", kind)
}

// Load reads a document from disk unless it is open in the editor.
func (p *Pipeline) Load(uri string) error {
	return p.load(uri, false)
}

// load submits the disk content of uri. discovered marks a document that is
// loaded only as the target of a link; any other load clears the mark.
func (p *Pipeline) load(uri string, discovered bool) error {
	path, err := document.PathFromURI(uri)
	if err != nil {
		return err
	}
	data, err := p.fs.ReadFile(path)
	if err != nil {
		return fmt.Errorf("load %s: %w", uri, err)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	_, known := p.states[uri]
	st := p.stateOf(uri)
	if st.open {
		return nil
	}
	st.discovered = discovered && (!known || st.discovered)
	st.language = languageOf(uri)
	return p.submit(uri, st, 0, string(data))
}

// Relink resolves the links of every document with unresolved links again.
func (p *Pipeline) Relink() {
	for _, uri := range p.ws.Unresolved() {
		p.scheduleRelink(uri)
	}
}

// Await blocks until every task submitted for uri so far has finished.
func (p *Pipeline) Await(ctx context.Context, uri string) error {
	done := make(chan struct{})
	err := p.sched.Schedule(scheduler.Task{
		Name: "await " + uri,
		Key:  uri,
		Execute: func(context.Context) error {
			close(done)
			return nil
		},
	})
	if err != nil {
		return err
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Flush blocks until no task is queued or running.
func (p *Pipeline) Flush(ctx context.Context) error {
	return p.sched.Wait(ctx)
}

func (p *Pipeline) stateOf(uri string) *state {
	st, ok := p.states[uri]
	if !ok {
		st = &state{language: languageOf(uri), nodes: syntax.NewNodeCache()}
		p.states[uri] = st
	}
	return st
}

func (p *Pipeline) isOpen(uri string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	st, ok := p.states[uri]
	return ok && st.open
}

// current reports whether rev is still the newest submission for uri.
func (p *Pipeline) current(uri string, rev int64) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	st, ok := p.states[uri]
	return ok && st.latest == rev
}

// submit assigns the next revision and queues its parse. p.mu must be held.
func (p *Pipeline) submit(uri string, st *state, version int32, text string) error {
	p.revision++
	rev := p.revision
	st.latest = rev
	st.text = text
	lang, open, nodes := st.language, st.open, st.nodes
	return p.sched.Schedule(scheduler.Task{
		Name: fmt.Sprintf("parse %s@%d", uri, rev),
		Key:  uri,
		Execute: func(ctx context.Context) error {
			err := p.apply(ctx, uri, rev, version, lang, open, nodes, text)
			if err != nil {
				metrics.Tasks.WithLabelValues("failed").Inc()
			}
			return err
		},
	})
}

func (p *Pipeline) apply(ctx context.Context, uri string, rev int64, version int32, lang document.Language, open bool, nodes *syntax.NodeCache, text string) error {
	if !p.current(uri, rev) {
		metrics.Tasks.WithLabelValues("superseded").Inc()
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if nodes.Len() > maxCachedNodes {
		p.mu.Lock()
		if st, ok := p.states[uri]; ok && st.nodes == nodes {
			st.nodes = syntax.NewNodeCache()
			nodes = st.nodes
		}
		p.mu.Unlock()
	}

	start := time.Now()
	doc := document.Parse(document.Params{
		URI:      uri,
		Revision: rev,
		Version:  version,
		Language: lang,
		Text:     text,
		Cache:    nodes,
	})
	metrics.Parses.WithLabelValues(lang.String()).Inc()
	metrics.ParseDuration.WithLabelValues(lang.String()).Observe(time.Since(start).Seconds())

	if !p.current(uri, rev) {
		metrics.Tasks.WithLabelValues("superseded").Inc()
		return nil
	}
	created := !p.ws.Contains(uri)
	p.ws.AddOrReplace(doc)
	if open {
		_ = p.ws.SetOpen(uri, true)
	}
	p.cache.Invalidate(uri)
	p.relink(uri)
	if created {
		for _, other := range p.ws.Unresolved() {
			if other != uri {
				p.scheduleRelink(other)
			}
		}
	}
	if p.index != nil {
		if err := p.index.Update(ctx, doc); err != nil {
			log.Warningf("could not index %s: %s", uri, err)
		}
	}
	metrics.Documents.Set(float64(len(p.ws.Documents())))
	metrics.Tasks.WithLabelValues("applied").Inc()
	log.Debugf("published %s rev %d", uri, rev)
	p.notify(uri)
	return nil
}

func (p *Pipeline) scheduleRelink(uri string) {
	err := p.sched.Schedule(scheduler.Task{
		Name: "relink " + uri,
		Key:  uri,
		Execute: func(context.Context) error {
			if p.relink(uri) {
				p.notify(uri)
			}
			return nil
		},
	})
	if err != nil {
		log.Debugf("could not schedule relink of %s: %s", uri, err)
	}
}

// relink resolves the links of uri, replaces its edges and loads targets
// that are not in the workspace yet. It reports whether the links changed
// the graph or the link diagnostics.
func (p *Pipeline) relink(uri string) bool {
	doc, err := p.ws.Get(uri)
	if err != nil {
		return false
	}
	p.mu.Lock()
	r := p.resolver
	p.mu.Unlock()

	resolved, diags := r.ResolveAll(doc)
	links := workspace.Links{Diagnostics: diags}
	for _, res := range resolved {
		if res.URI == "" {
			links.Unresolved++
			continue
		}
		links.Edges = append(links.Edges, workspace.Edge{
			Source: uri,
			Target: res.URI,
			Kind:   res.Link.Kind,
			Span:   res.Link.Span,
		})
	}
	before := len(p.ws.LinkDiagnostics(uri))
	added, removed, err := p.ws.SetLinks(uri, links)
	if err != nil {
		log.Warningf("could not link %s: %s", uri, err)
		return false
	}
	changed := len(added) > 0 || len(removed) > 0 || before != len(diags)
	if changed {
		p.cache.Invalidate(uri)
	}
	for _, target := range added {
		if p.ws.Contains(target) {
			continue
		}
		if err := p.load(target, true); err != nil {
			log.Warningf("could not load %s: %s", target, err)
		}
	}
	return changed
}

// forget drops everything derived from a removed document and relinks the
// documents that included it.
func (p *Pipeline) forget(ctx context.Context, uri string, referencing []string) {
	p.mu.Lock()
	delete(p.states, uri)
	p.mu.Unlock()
	p.cache.Invalidate(uri)
	if p.index != nil {
		if err := p.index.Remove(ctx, uri); err != nil {
			log.Warningf("could not unindex %s: %s", uri, err)
		}
	}
	metrics.Documents.Set(float64(len(p.ws.Documents())))
	log.Infof("removed %s", uri)
	for _, src := range referencing {
		p.scheduleRelink(src)
	}
	p.notify(uri)
}

// prune removes the link targets of a removed document that were only
// loaded through links and that no remaining document links to. Their own
// targets are pruned in turn.
func (p *Pipeline) prune(ctx context.Context, edges []workspace.Edge) {
	for len(edges) > 0 {
		target := edges[0].Target
		edges = edges[1:]
		if !p.isDiscovered(target) || len(p.ws.Referencing(target)) > 0 {
			continue
		}
		next := p.ws.Edges(target)
		if p.ws.RemoveIfUnreachable(target) {
			p.forget(ctx, target, nil)
			edges = append(edges, next...)
		}
	}
}

func (p *Pipeline) isDiscovered(uri string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	st, ok := p.states[uri]
	return ok && st.discovered && !st.open
}

func languageOf(uri string) document.Language {
	if path, err := document.PathFromURI(uri); err == nil {
		if lang, ok := document.LanguageFromPath(path); ok {
			return lang
		}
	}
	return document.LaTeX
}
