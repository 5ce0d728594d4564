package index_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"texlsp/internal/document"
	"texlsp/internal/index"
)

func parse(uri string, rev int64, text string) *document.Document {
	lang, _ := document.LanguageFromPath(uri)
	return document.Parse(document.Params{URI: uri, Revision: rev, Language: lang, Text: text})
}

func names(symbols []index.Symbol) []string {
	var out []string
	for _, s := range symbols {
		out = append(out, s.Name)
	}
	return out
}

func TestUpdateAndSearch(t *testing.T) {
	ctx := context.Background()
	ix, err := index.Open()
	require.NoError(t, err)
	defer ix.Close()

	require.NoError(t, ix.Update(ctx, parse("file:///a.tex", 1, "\\section{Intro}\n\\label{fig:plot}\\label{sec:intro}")))
	require.NoError(t, ix.Update(ctx, parse("file:///r.bib", 1, "@article{figueroa, title={T}}")))

	n, err := ix.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	got, err := ix.Search(ctx, "fig", 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"fig:plot", "figueroa"}, names(got))
	assert.Equal(t, document.LabelSymbol, got[0].Kind)
	assert.Equal(t, uint32(1), got[0].Range.Start.Line)

	got, err = ix.Search(ctx, "", 2)
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestUpdateReplacesAndIgnoresOlderRevisions(t *testing.T) {
	ctx := context.Background()
	ix, err := index.Open()
	require.NoError(t, err)
	defer ix.Close()

	require.NoError(t, ix.Update(ctx, parse("file:///a.tex", 2, `\label{new}`)))
	require.NoError(t, ix.Update(ctx, parse("file:///a.tex", 1, `\label{old}`)))
	got, err := ix.Search(ctx, "", 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"new"}, names(got))

	require.NoError(t, ix.Remove(ctx, "file:///a.tex"))
	n, err := ix.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestClosed(t *testing.T) {
	ix, err := index.Open()
	require.NoError(t, err)
	require.NoError(t, ix.Close())
	_, err = ix.Search(context.Background(), "x", 1)
	assert.True(t, errors.Is(err, index.ErrClosed))
}
