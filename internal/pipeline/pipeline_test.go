package pipeline_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"texlsp/internal/cache"
	"texlsp/internal/document"
	"texlsp/internal/index"
	"texlsp/internal/pipeline"
	"texlsp/internal/scheduler"
	"texlsp/internal/workspace"
)

type harness struct {
	t     *testing.T
	ws    *workspace.Workspace
	fs    *pipeline.MapFS
	sched *scheduler.Scheduler
	ix    *index.Index
	p     *pipeline.Pipeline

	mu        sync.Mutex
	published map[string]int
}

func newHarness(t *testing.T, files map[string]string, start bool) *harness {
	ws := workspace.New()
	ix, err := index.Open()
	require.NoError(t, err)
	h := &harness{
		t:         t,
		ws:        ws,
		fs:        pipeline.NewMapFS(files),
		sched:     scheduler.New(4),
		ix:        ix,
		published: map[string]int{},
	}
	h.p = pipeline.New(pipeline.Config{
		Workspace: ws,
		Cache:     cache.New(ws),
		Scheduler: h.sched,
		FS:        h.fs,
		Index:     ix,
	})
	h.p.OnPublish(func(uri string) {
		h.mu.Lock()
		h.published[uri]++
		h.mu.Unlock()
	})
	if start {
		h.sched.Start(context.Background())
	}
	t.Cleanup(func() {
		h.sched.Stop()
		ix.Close()
	})
	return h
}

func (h *harness) flush() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(h.t, h.p.Flush(ctx))
}

func (h *harness) text(uri string) string {
	doc, err := h.ws.Get(uri)
	require.NoError(h.t, err)
	return doc.Text
}

func (h *harness) publishedCount(uri string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.published[uri]
}

func uri(path string) string {
	return document.URIFromPath(path)
}

func TestOpenLoadsIncludedFilesFromDisk(t *testing.T) {
	h := newHarness(t, map[string]string{
		"/project/chapters/one.tex": "\\section{One}\\label{sec:one}\n",
		"/project/refs.bib":         "@article{knuth, title={TAOCP}}\n",
	}, true)
	main := uri("/project/main.tex")
	require.NoError(t, h.p.Open(main, "latex", 1, "\\input{chapters/one}\n\\bibliography{refs}\n\\ref{sec:one}\n"))
	h.flush()

	assert.True(t, h.ws.Contains(uri("/project/chapters/one.tex")))
	assert.True(t, h.ws.Contains(uri("/project/refs.bib")))
	assert.True(t, h.ws.IsOpen(main))
	assert.False(t, h.ws.IsOpen(uri("/project/chapters/one.tex")))

	var targets []string
	for _, e := range h.ws.Edges(main) {
		targets = append(targets, e.Target)
	}
	assert.Equal(t, []string{uri("/project/chapters/one.tex"), uri("/project/refs.bib")}, targets)
	assert.Empty(t, h.ws.LinkDiagnostics(main))

	n, err := h.ix.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestIncrementalChanges(t *testing.T) {
	h := newHarness(t, nil, true)
	main := uri("/project/main.tex")
	require.NoError(t, h.p.Open(main, "latex", 1, "hello world"))
	require.NoError(t, h.p.Change(main, 2, []document.Change{{
		Range: &document.Range{
			Start: document.Position{Line: 0, Character: 6},
			End:   document.Position{Line: 0, Character: 11},
		},
		Text: "there",
	}}))
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, h.p.Await(ctx, main))

	doc, err := h.ws.Get(main)
	require.NoError(t, err)
	assert.Equal(t, "hello there", doc.Text)
	assert.Equal(t, int32(2), doc.Version)
}

func TestSupersededRevisionsAreNeverPublished(t *testing.T) {
	h := newHarness(t, nil, false)
	main := uri("/project/main.tex")
	require.NoError(t, h.p.Open(main, "latex", 1, "a"))
	for v := int32(2); v <= 6; v++ {
		require.NoError(t, h.p.Change(main, v, []document.Change{{Text: string(rune('a' + v))}}))
	}
	h.sched.Start(context.Background())
	h.flush()

	doc, err := h.ws.Get(main)
	require.NoError(t, err)
	assert.Equal(t, "g", doc.Text)
	assert.Equal(t, int32(6), doc.Version)
	assert.Equal(t, 1, h.publishedCount(main))
}

func TestRevisionsIncrease(t *testing.T) {
	h := newHarness(t, nil, true)
	main := uri("/project/main.tex")
	require.NoError(t, h.p.Open(main, "latex", 1, "a"))
	h.flush()
	first, _ := h.ws.Revision(main)
	require.NoError(t, h.p.Change(main, 2, []document.Change{{Text: "b"}}))
	h.flush()
	second, _ := h.ws.Revision(main)
	assert.Greater(t, second, first)
}

func TestChangeRequiresOpenDocument(t *testing.T) {
	h := newHarness(t, nil, true)
	err := h.p.Change(uri("/project/main.tex"), 1, []document.Change{{Text: "x"}})
	assert.ErrorIs(t, err, pipeline.ErrNotOpen)
	assert.ErrorIs(t, h.p.Close(uri("/project/main.tex")), pipeline.ErrNotOpen)
}

func TestCloseReloadsDiskContent(t *testing.T) {
	h := newHarness(t, map[string]string{"/project/main.tex": "on disk"}, true)
	main := uri("/project/main.tex")
	require.NoError(t, h.p.Open(main, "latex", 1, "unsaved"))
	h.flush()
	assert.Equal(t, "unsaved", h.text(main))

	require.NoError(t, h.p.Close(main))
	h.flush()
	assert.Equal(t, "on disk", h.text(main))
	assert.False(t, h.ws.IsOpen(main))
}

func TestCloseRemovesUnsavedDocument(t *testing.T) {
	h := newHarness(t, nil, true)
	scratch := uri("/project/scratch.tex")
	require.NoError(t, h.p.Open(scratch, "latex", 1, "\\label{x}"))
	h.flush()
	require.True(t, h.ws.Contains(scratch))

	require.NoError(t, h.p.Close(scratch))
	h.flush()
	assert.False(t, h.ws.Contains(scratch))
	n, err := h.ix.Count(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestCloseKeepsDocumentIncludedByOpenDocument(t *testing.T) {
	h := newHarness(t, nil, true)
	draft := uri("/project/draft.tex")
	main := uri("/project/main.tex")
	require.NoError(t, h.p.Open(draft, "latex", 1, "draft"))
	h.flush()
	require.NoError(t, h.p.Open(main, "latex", 1, "\\input{draft}"))
	h.flush()
	require.Len(t, h.ws.Edges(main), 1)

	require.NoError(t, h.p.Close(draft))
	h.flush()
	assert.True(t, h.ws.Contains(draft))
}

func TestClosePrunesTargetsOnlyReachedThroughClosedDocument(t *testing.T) {
	h := newHarness(t, map[string]string{
		"/project/a.tex":       "\\input{b}",
		"/project/b.tex":       "b",
		"/project/shared.tex":  "shared",
		"/project/other.tex":   "\\input{shared}",
		"/project/scanned.tex": "scanned",
	}, true)
	require.NoError(t, h.p.Load(uri("/project/other.tex")))
	require.NoError(t, h.p.Load(uri("/project/scanned.tex")))
	h.flush()
	scratch := uri("/project/scratch.tex")
	require.NoError(t, h.p.Open(scratch, "latex", 1, "\\input{a}\\input{shared}\\input{scanned}"))
	h.flush()
	require.True(t, h.ws.Contains(uri("/project/a.tex")))
	require.True(t, h.ws.Contains(uri("/project/b.tex")))

	require.NoError(t, h.p.Close(scratch))
	h.flush()
	assert.False(t, h.ws.Contains(scratch))
	assert.False(t, h.ws.Contains(uri("/project/a.tex")))
	assert.False(t, h.ws.Contains(uri("/project/b.tex")))
	assert.True(t, h.ws.Contains(uri("/project/shared.tex")))
	assert.True(t, h.ws.Contains(uri("/project/other.tex")))
	assert.True(t, h.ws.Contains(uri("/project/scanned.tex")))
}

func TestWatchedTargetIsNotPruned(t *testing.T) {
	h := newHarness(t, map[string]string{"/project/a.tex": "a"}, true)
	scratch := uri("/project/scratch.tex")
	a := uri("/project/a.tex")
	require.NoError(t, h.p.Open(scratch, "latex", 1, "\\input{a}"))
	h.flush()
	require.True(t, h.ws.Contains(a))
	require.NoError(t, h.p.WatchEvent(a, pipeline.WatchModified))
	h.flush()

	require.NoError(t, h.p.Close(scratch))
	h.flush()
	assert.False(t, h.ws.Contains(scratch))
	assert.True(t, h.ws.Contains(a))
}

func TestCreatedFileResolvesMissingInclude(t *testing.T) {
	h := newHarness(t, nil, true)
	main := uri("/project/main.tex")
	require.NoError(t, h.p.Open(main, "latex", 1, "\\input{intro}\n"))
	h.flush()
	diags := h.ws.LinkDiagnostics(main)
	require.Len(t, diags, 1)
	assert.Equal(t, document.CodeMissingFile, diags[0].Code)

	h.fs.Write("/project/intro.tex", "\\section{Intro}")
	require.NoError(t, h.p.WatchEvent(uri("/project/intro.tex"), pipeline.WatchCreated))
	h.flush()

	assert.True(t, h.ws.Contains(uri("/project/intro.tex")))
	assert.Empty(t, h.ws.LinkDiagnostics(main))
	require.Len(t, h.ws.Edges(main), 1)
	assert.Equal(t, uri("/project/intro.tex"), h.ws.Edges(main)[0].Target)
}

func TestDeletedFileIsRemovedAndReported(t *testing.T) {
	h := newHarness(t, map[string]string{"/project/intro.tex": "intro"}, true)
	main := uri("/project/main.tex")
	intro := uri("/project/intro.tex")
	require.NoError(t, h.p.Open(main, "latex", 1, "\\include{intro}\n"))
	h.flush()
	require.True(t, h.ws.Contains(intro))

	h.fs.Delete("/project/intro.tex")
	require.NoError(t, h.p.WatchEvent(intro, pipeline.WatchDeleted))
	h.flush()

	assert.False(t, h.ws.Contains(intro))
	assert.Empty(t, h.ws.Edges(main))
	diags := h.ws.LinkDiagnostics(main)
	require.Len(t, diags, 1)
	assert.Equal(t, document.CodeMissingFile, diags[0].Code)
}

func TestWatchEventsLeaveOpenDocumentsAlone(t *testing.T) {
	h := newHarness(t, map[string]string{"/project/main.tex": "disk"}, true)
	main := uri("/project/main.tex")
	require.NoError(t, h.p.Open(main, "latex", 1, "editor"))
	h.flush()

	h.fs.Write("/project/main.tex", "disk changed")
	require.NoError(t, h.p.WatchEvent(main, pipeline.WatchModified))
	require.NoError(t, h.p.WatchEvent(main, pipeline.WatchDeleted))
	h.flush()
	assert.Equal(t, "editor", h.text(main))
}

func TestWatchEventsIgnoreOtherFiles(t *testing.T) {
	h := newHarness(t, map[string]string{"/project/notes.txt": "x"}, true)
	require.NoError(t, h.p.WatchEvent(uri("/project/notes.txt"), pipeline.WatchCreated))
	h.flush()
	assert.Empty(t, h.ws.Documents())
}

func TestLoadDetectsLanguage(t *testing.T) {
	h := newHarness(t, map[string]string{"/project/refs.bib": "@misc{a, title={A}}"}, true)
	require.NoError(t, h.p.Load(uri("/project/refs.bib")))
	h.flush()
	doc, err := h.ws.Get(uri("/project/refs.bib"))
	require.NoError(t, err)
	assert.Equal(t, document.BibTeX, doc.Language)
	assert.Equal(t, int32(0), doc.Version)
}

func TestSetRootsRelinks(t *testing.T) {
	h := newHarness(t, map[string]string{"/project/styles/local.tex": "x"}, true)
	main := uri("/project/main.tex")
	require.NoError(t, h.p.Open(main, "latex", 1, "\\input{local}"))
	h.flush()
	require.Len(t, h.ws.LinkDiagnostics(main), 1)

	h.p.SetRoots([]string{"styles"})
	h.flush()
	assert.Empty(t, h.ws.LinkDiagnostics(main))
	assert.True(t, h.ws.Contains(uri("/project/styles/local.tex")))
}
