package scanner_test

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"texlsp/internal/document"
	"texlsp/internal/pipeline"
	"texlsp/internal/scanner"
)

type recorder struct {
	mu   sync.Mutex
	uris []string
}

func (r *recorder) WatchEvent(uri string, kind pipeline.WatchKind) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if kind == pipeline.WatchCreated {
		r.uris = append(r.uris, uri)
	}
	return nil
}

func write(t *testing.T, root, name string) {
	path := filepath.Join(root, filepath.FromSlash(name))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
}

func TestScanFindsProjectFiles(t *testing.T) {
	root := t.TempDir()
	for _, name := range []string{
		"main.tex", "refs.bib", "chapters/intro.tex", "style/local.sty",
		"notes.txt", ".git/config.tex", "_minted-main/out.tex", "node_modules/a.tex",
	} {
		write(t, root, name)
	}

	r := &recorder{}
	n, err := scanner.Scan(context.Background(), root, 3, r)
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	sort.Strings(r.uris)
	want := []string{
		document.URIFromPath(filepath.Join(root, "chapters", "intro.tex")),
		document.URIFromPath(filepath.Join(root, "main.tex")),
		document.URIFromPath(filepath.Join(root, "refs.bib")),
		document.URIFromPath(filepath.Join(root, "style", "local.sty")),
	}
	assert.Equal(t, want, r.uris)
}

func TestScanStopsOnCancel(t *testing.T) {
	root := t.TempDir()
	write(t, root, "main.tex")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := scanner.Scan(ctx, root, 1, &recorder{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestIgnoreDir(t *testing.T) {
	assert.True(t, scanner.IgnoreDir("/p/.git"))
	assert.True(t, scanner.IgnoreDir("/p/_minted-thesis"))
	assert.True(t, scanner.IgnoreDir("node_modules"))
	assert.False(t, scanner.IgnoreDir("/p/chapters"))
	assert.False(t, scanner.IgnoreDir("."))
}
