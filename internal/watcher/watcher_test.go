package watcher

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"texlsp/internal/document"
	"texlsp/internal/pipeline"
)

type recorder struct {
	mu     sync.Mutex
	events map[string][]pipeline.WatchKind
}

func (r *recorder) WatchEvent(uri string, kind pipeline.WatchKind) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events[uri] = append(r.events[uri], kind)
	return nil
}

func (r *recorder) has(uri string, kind pipeline.WatchKind) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, k := range r.events[uri] {
		if k == kind {
			return true
		}
	}
	return false
}

func TestConvertOp(t *testing.T) {
	for op, want := range map[fsnotify.Op]pipeline.WatchKind{
		fsnotify.Create: pipeline.WatchCreated,
		fsnotify.Write:  pipeline.WatchModified,
		fsnotify.Remove: pipeline.WatchDeleted,
		fsnotify.Rename: pipeline.WatchDeleted,
	} {
		got, ok := convertOp(op)
		assert.True(t, ok)
		assert.Equal(t, want, got, op.String())
	}
	_, ok := convertOp(fsnotify.Chmod)
	assert.False(t, ok)
}

func TestWatcherReportsTexFiles(t *testing.T) {
	root := t.TempDir()
	r := &recorder{events: map[string][]pipeline.WatchKind{}}
	w, err := New(r)
	require.NoError(t, err)
	require.NoError(t, w.Add(root))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	w.Start(ctx)
	defer w.Stop()

	path := filepath.Join(root, "main.tex")
	require.NoError(t, os.WriteFile(path, []byte("\\section{A}"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "notes.txt"), []byte("x"), 0o644))
	uri := document.URIFromPath(path)
	assert.Eventually(t, func() bool { return r.has(uri, pipeline.WatchCreated) }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, os.Remove(path))
	assert.Eventually(t, func() bool { return r.has(uri, pipeline.WatchDeleted) }, 2*time.Second, 10*time.Millisecond)

	r.mu.Lock()
	defer r.mu.Unlock()
	assert.NotContains(t, r.events, document.URIFromPath(filepath.Join(root, "notes.txt")))
}
