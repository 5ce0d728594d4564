package workspace_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"texlsp/internal/document"
	"texlsp/internal/workspace"
)

func doc(uri string, rev int64) *document.Document {
	return document.Parse(document.Params{URI: uri, Revision: rev, Language: document.LaTeX, Text: "x"})
}

func link(ws *workspace.Workspace, t *testing.T, source string, targets ...string) ([]string, []string) {
	t.Helper()
	var edges []workspace.Edge
	for _, target := range targets {
		edges = append(edges, workspace.Edge{Source: source, Target: target, Kind: document.IncludeLink})
	}
	added, removed, err := ws.SetLinks(source, workspace.Links{Edges: edges})
	require.NoError(t, err)
	return added, removed
}

func uris(docs []*document.Document) []string {
	var out []string
	for _, d := range docs {
		out = append(out, d.URI)
	}
	return out
}

func TestGetAndReplace(t *testing.T) {
	ws := workspace.New()
	_, err := ws.Get("a")
	assert.True(t, errors.Is(err, workspace.ErrNotFound))

	ws.AddOrReplace(doc("a", 1))
	require.NoError(t, ws.SetOpen("a", true))
	ws.AddOrReplace(doc("a", 2))

	got, err := ws.Get("a")
	require.NoError(t, err)
	assert.Equal(t, int64(2), got.Revision)
	assert.True(t, ws.IsOpen("a"), "open flag survives replacement")

	rev, ok := ws.Revision("a")
	assert.True(t, ok)
	assert.Equal(t, int64(2), rev)
}

func TestReachableFromIsCycleSafe(t *testing.T) {
	ws := workspace.New()
	ws.AddOrReplace(doc("a", 1))
	ws.AddOrReplace(doc("b", 1))
	link(ws, t, "a", "b")
	link(ws, t, "b", "a")

	assert.Equal(t, []string{"a", "b"}, uris(ws.ReachableFrom("a")))
	assert.Equal(t, []string{"b", "a"}, uris(ws.ReachableFrom("b")))
}

func TestReachableFromOrder(t *testing.T) {
	ws := workspace.New()
	for _, u := range []string{"main", "c1", "c2", "fig", "refs"} {
		ws.AddOrReplace(doc(u, 1))
	}
	link(ws, t, "main", "c1", "c2", "refs")
	link(ws, t, "c1", "fig")
	link(ws, t, "c2", "fig", "missing")

	assert.Equal(t, []string{"main", "c1", "fig", "c2", "refs"}, ws.ReachableURIs("main"))
	assert.Empty(t, ws.ReachableURIs("unknown"))
}

func TestSetLinksDiff(t *testing.T) {
	ws := workspace.New()
	ws.AddOrReplace(doc("a", 1))

	added, removed := link(ws, t, "a", "b", "c", "b")
	assert.Equal(t, []string{"b", "c"}, added)
	assert.Empty(t, removed)

	added, removed = link(ws, t, "a", "c", "d")
	assert.Equal(t, []string{"d"}, added)
	assert.Equal(t, []string{"b"}, removed)

	assert.Empty(t, ws.Referencing("b"))
	assert.Equal(t, []string{"a"}, ws.Referencing("c"))

	_, _, err := ws.SetLinks("a", workspace.Links{Edges: []workspace.Edge{{Source: "x", Target: "y"}}})
	assert.Error(t, err)
}

func TestReferencingClosureAndRoots(t *testing.T) {
	ws := workspace.New()
	for _, u := range []string{"main", "chap", "fig", "x", "y"} {
		ws.AddOrReplace(doc(u, 1))
	}
	link(ws, t, "main", "chap")
	link(ws, t, "chap", "fig")
	link(ws, t, "x", "y")
	link(ws, t, "y", "x")

	assert.Equal(t, []string{"fig", "chap", "main"}, ws.ReferencingClosure("fig"))
	assert.Equal(t, []string{"main", "x"}, ws.Roots())
}

func TestRemoveIfUnreachable(t *testing.T) {
	ws := workspace.New()
	ws.AddOrReplace(doc("main", 1))
	ws.AddOrReplace(doc("chap", 1))
	ws.AddOrReplace(doc("lone", 1))
	require.NoError(t, ws.SetOpen("main", true))
	link(ws, t, "main", "chap")

	assert.False(t, ws.RemoveIfUnreachable("main"), "open")
	assert.False(t, ws.RemoveIfUnreachable("chap"), "reachable from open document")
	assert.True(t, ws.RemoveIfUnreachable("lone"))
	assert.False(t, ws.Contains("lone"))

	require.NoError(t, ws.SetOpen("main", false))
	assert.True(t, ws.RemoveIfUnreachable("chap"))
}

func TestRemoveDropsOutgoingEdges(t *testing.T) {
	ws := workspace.New()
	ws.AddOrReplace(doc("a", 1))
	ws.AddOrReplace(doc("b", 1))
	link(ws, t, "a", "b")

	require.NoError(t, ws.Remove("a"))
	assert.Empty(t, ws.Referencing("b"))
	assert.True(t, errors.Is(ws.Remove("a"), workspace.ErrNotFound))
}

func TestUnresolvedAndLinkDiagnostics(t *testing.T) {
	ws := workspace.New()
	ws.AddOrReplace(doc("a", 1))
	ws.AddOrReplace(doc("b", 1))
	diag := document.Diagnostic{URI: "a", Code: document.CodeMissingFile, Message: "missing"}
	_, _, err := ws.SetLinks("a", workspace.Links{Diagnostics: []document.Diagnostic{diag}, Unresolved: 1})
	require.NoError(t, err)

	assert.Equal(t, []string{"a"}, ws.Unresolved())
	assert.Equal(t, []document.Diagnostic{diag}, ws.LinkDiagnostics("a"))
	assert.Empty(t, ws.LinkDiagnostics("b"))
}

func TestSubscribe(t *testing.T) {
	ws := workspace.New()
	ctx, cancel := context.WithCancel(context.Background())
	events, err := ws.Subscribe(ctx)
	require.NoError(t, err)

	ws.AddOrReplace(doc("a", 1))
	link(ws, t, "a", "b")
	require.NoError(t, ws.Remove("a"))

	want := []workspace.EventType{
		workspace.DocumentCreated,
		workspace.EdgeAdded,
		workspace.EdgeRemoved,
		workspace.DocumentRemoved,
	}
	for _, typ := range want {
		select {
		case ev := <-events:
			assert.Equal(t, typ, ev.Type)
		case <-time.After(time.Second):
			t.Fatalf("no %s event", typ)
		}
	}

	cancel()
	require.Eventually(t, func() bool {
		_, open := <-events
		return !open
	}, time.Second, 10*time.Millisecond)
}
