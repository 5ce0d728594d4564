package cache_test

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"texlsp/internal/cache"
)

type fakeGraph struct {
	mu        sync.Mutex
	revisions map[string]int64
	parents   map[string][]string
}

func (g *fakeGraph) Revision(uri string) (int64, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	rev, ok := g.revisions[uri]
	return rev, ok
}

func (g *fakeGraph) ReferencingClosure(uri string) []string {
	out := []string{uri}
	for i := 0; i < len(out); i++ {
		out = append(out, g.parents[out[i]]...)
	}
	return out
}

func (g *fakeGraph) bump(uri string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.revisions[uri]++
}

func newGraph() *fakeGraph {
	return &fakeGraph{
		revisions: map[string]int64{"main": 1, "chap": 1, "other": 1},
		parents:   map[string][]string{"chap": {"main"}},
	}
}

func counting(calls *int32, g *fakeGraph, value string, uris ...string) cache.Compute {
	return func() (any, cache.Deps) {
		atomic.AddInt32(calls, 1)
		deps := cache.Deps{}
		for _, u := range uris {
			deps[u], _ = g.Revision(u)
		}
		return value, deps
	}
}

func TestGetMemoizes(t *testing.T) {
	g := newGraph()
	c := cache.New(g)
	var calls int32

	assert.Equal(t, "v", c.Get("main", cache.VisibleLabels, counting(&calls, g, "v", "main", "chap")))
	assert.Equal(t, "v", c.Get("main", cache.VisibleLabels, counting(&calls, g, "v", "main", "chap")))
	assert.Equal(t, int32(1), calls)

	c.Get("main", cache.VisibleEntries, counting(&calls, g, "e", "main"))
	assert.Equal(t, int32(2), calls, "query kinds are separate keys")
	assert.Equal(t, 2, c.Len())
}

func TestRevisionBumpIsAMiss(t *testing.T) {
	g := newGraph()
	c := cache.New(g)
	var calls int32

	c.Get("main", cache.VisibleLabels, counting(&calls, g, "v1", "main", "chap"))
	g.bump("chap")
	got := c.Get("main", cache.VisibleLabels, counting(&calls, g, "v2", "main", "chap"))
	assert.Equal(t, "v2", got)
	assert.Equal(t, int32(2), calls)
}

func TestInvalidateReverseClosure(t *testing.T) {
	g := newGraph()
	c := cache.New(g)
	var calls int32

	c.Get("main", cache.VisibleLabels, counting(&calls, g, "m", "main"))
	c.Get("chap", cache.VisibleLabels, counting(&calls, g, "c", "chap"))
	c.Get("other", cache.VisibleLabels, counting(&calls, g, "o", "other"))

	c.Invalidate("chap")
	assert.Equal(t, 1, c.Len(), "only the unrelated entry survives")

	c.Get("other", cache.VisibleLabels, counting(&calls, g, "o", "other"))
	assert.Equal(t, int32(3), calls)

	c.Clear()
	assert.Equal(t, 0, c.Len())
}

func TestComputationAcrossInvalidationIsNotStored(t *testing.T) {
	g := newGraph()
	c := cache.New(g)
	compute := func() (any, cache.Deps) {
		c.Invalidate("main")
		return "stale", cache.Deps{"main": 1}
	}
	assert.Equal(t, "stale", c.Get("main", cache.VisibleLabels, compute))
	assert.Equal(t, 0, c.Len())
}

func TestConcurrentGet(t *testing.T) {
	g := newGraph()
	c := cache.New(g)
	var calls int32
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.Equal(t, "v", c.Get("main", cache.VisibleLabels, counting(&calls, g, "v", "main")))
		}()
	}
	wg.Wait()
	assert.GreaterOrEqual(t, atomic.LoadInt32(&calls), int32(1))
}

func TestLookupAfterInvalidationDoesNotJoinOlderComputation(t *testing.T) {
	g := newGraph()
	c := cache.New(g)
	started := make(chan struct{})
	release := make(chan struct{})

	first := make(chan any, 1)
	go func() {
		first <- c.Get("main", cache.VisibleLabels, func() (any, cache.Deps) {
			close(started)
			<-release
			return "v1", cache.Deps{"main": 1}
		})
	}()
	<-started

	g.bump("main")
	c.Invalidate("main")

	second := make(chan any, 1)
	go func() {
		second <- c.Get("main", cache.VisibleLabels, func() (any, cache.Deps) {
			return "v2", cache.Deps{"main": 2}
		})
	}()

	select {
	case got := <-second:
		assert.Equal(t, "v2", got)
	case <-time.After(5 * time.Second):
		close(release)
		t.Fatal("lookup after invalidation waited for the older computation")
	}
	close(release)
	assert.Equal(t, "v1", <-first)

	var calls int32
	got := c.Get("main", cache.VisibleLabels, counting(&calls, g, "v3", "main"))
	assert.Equal(t, "v2", got, "the older computation is not stored")
	assert.Zero(t, calls)
}
