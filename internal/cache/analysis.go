// Package cache memoizes derived queries over the workspace. Entries remember
// the document revisions they observed, so a lookup never returns a value
// computed from an older revision than the one currently stored.
package cache

import (
	"fmt"
	"sync"

	"github.com/tliron/commonlog"
	"golang.org/x/sync/singleflight"

	"texlsp/internal/metrics"
)

var log = commonlog.GetLogger("texlsp.cache")

type Query int

const (
	VisibleLabels Query = iota
	VisibleEntries
	VisibleCommands
	VisibleEnvironments
	VisibleStrings
	ProjectDiagnostics
)

func (q Query) String() string {
	switch q {
	case VisibleLabels:
		return "visible-labels"
	case VisibleEntries:
		return "visible-entries"
	case VisibleCommands:
		return "visible-commands"
	case VisibleEnvironments:
		return "visible-environments"
	case VisibleStrings:
		return "visible-strings"
	case ProjectDiagnostics:
		return "project-diagnostics"
	}
	return fmt.Sprintf("query-%d", int(q))
}

// Deps maps every document a computation read to the revision it saw.
type Deps map[string]int64

// Graph is the part of the workspace the cache needs.
type Graph interface {
	Revision(uri string) (int64, bool)
	ReferencingClosure(uri string) []string
}

type key struct {
	uri   string
	query Query
}

type entry struct {
	deps  Deps
	value any
}

type Cache struct {
	graph   Graph
	mu      sync.Mutex
	entries map[key]*entry
	// generation moves on every invalidation; a computation that overlapped
	// one is returned to its caller but not stored.
	generation uint64
	group      singleflight.Group
}

func New(graph Graph) *Cache {
	return &Cache{graph: graph, entries: make(map[key]*entry)}
}

// Compute produces a value together with the revisions it depended on.
type Compute func() (any, Deps)

// Get returns the cached value of query for uri, or computes and stores it.
// Concurrent lookups of the same key share one computation.
func (c *Cache) Get(uri string, query Query, compute Compute) any {
	k := key{uri: uri, query: query}
	c.mu.Lock()
	e, ok := c.entries[k]
	generation := c.generation
	c.mu.Unlock()

	if ok && c.fresh(e.deps) {
		metrics.CacheRequests.WithLabelValues(query.String(), "hit").Inc()
		return e.value
	}
	metrics.CacheRequests.WithLabelValues(query.String(), "miss").Inc()

	// The generation is part of the flight key, so a lookup that starts after
	// an invalidation never joins a computation that started before it.
	flight := fmt.Sprintf("%d\x00%d\x00%s", generation, query, uri)
	v, _, shared := c.group.Do(flight, func() (any, error) {
		value, deps := compute()
		c.mu.Lock()
		defer c.mu.Unlock()
		if c.generation == generation {
			c.entries[k] = &entry{deps: deps, value: value}
		} else {
			log.Debugf("dropping %s of %s computed across an invalidation", query, uri)
		}
		return &entry{deps: deps, value: value}, nil
	})
	result := v.(*entry)
	if shared && !c.fresh(result.deps) {
		// A revision moved before the invalidation reached the cache.
		value, _ := compute()
		return value
	}
	return result.value
}

func (c *Cache) fresh(deps Deps) bool {
	for uri, rev := range deps {
		current, ok := c.graph.Revision(uri)
		if !ok || current != rev {
			return false
		}
	}
	return true
}

// Invalidate evicts every entry keyed by uri or by a document that reaches it.
func (c *Cache) Invalidate(uri string) {
	closure := c.graph.ReferencingClosure(uri)
	c.mu.Lock()
	defer c.mu.Unlock()
	c.generation++
	evicted := 0
	for _, u := range closure {
		for k := range c.entries {
			if k.uri == u {
				delete(c.entries, k)
				evicted++
			}
		}
	}
	if evicted > 0 {
		metrics.CacheEvictions.Add(float64(evicted))
		log.Debugf("invalidated %d entries for %s", evicted, uri)
	}
}

// Clear drops all entries.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.generation++
	c.entries = make(map[key]*entry)
}

func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
