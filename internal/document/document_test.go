package document_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"texlsp/internal/document"
	"texlsp/internal/syntax"
)

func parseTex(text string) *document.Document {
	return document.Parse(document.Params{
		URI:      "file:///project/main.tex",
		Revision: 1,
		Language: document.LaTeX,
		Text:     text,
	})
}

func parseBib(text string) *document.Document {
	return document.Parse(document.Params{
		URI:      "file:///project/refs.bib",
		Revision: 1,
		Language: document.BibTeX,
		Text:     text,
	})
}

func codes(diags []document.Diagnostic) []document.Code {
	var out []document.Code
	for _, d := range diags {
		out = append(out, d.Code)
	}
	return out
}

func TestLabelAndReference(t *testing.T) {
	doc := parseTex(`\section{Intro}\label{fig:1} see \ref{fig:1}`)
	assert.Empty(t, doc.Diagnostics)
	assert.Equal(t, "/project/main.tex", doc.Path)

	labels := doc.SymbolsOf(document.LabelSymbol)
	require.Len(t, labels, 1)
	assert.Equal(t, "fig:1", labels[0].Name)
	assert.Equal(t, "Intro", labels[0].Detail)
	assert.Equal(t, "fig:1", doc.Text[labels[0].Span.Start:labels[0].Span.End])

	refs := doc.ReferencesOf(document.LabelReference)
	require.Len(t, refs, 1)
	assert.Equal(t, "fig:1", refs[0].Name)
}

func TestLabelDetailUsesCaption(t *testing.T) {
	doc := parseTex("\\section{S}\\begin{figure}\\label{f}\\caption{A plot}\\end{figure}")
	labels := doc.SymbolsOf(document.LabelSymbol)
	require.Len(t, labels, 1)
	assert.Equal(t, "A plot", labels[0].Detail)
}

func TestLinks(t *testing.T) {
	doc := parseTex(`\documentclass{article}\usepackage{amsmath}\input{b.tex}\bibliography{refs,more}\import{sub/}{c}`)
	var got []string
	for _, l := range doc.Links {
		got = append(got, l.Kind.String()+":"+l.Dir+l.Path)
	}
	assert.Equal(t, []string{
		"class:article", "package:amsmath", "include:b.tex",
		"bibliography:refs", "bibliography:more", "include:sub/c",
	}, got)
}

func TestDefinitions(t *testing.T) {
	doc := parseTex(`\newcommand{\foo}{x}\def\bar{y}\newenvironment{myenv}{}{}\newtheorem{thm}{Theorem}\foo\begin{myenv}\end{myenv}`)
	var names []string
	for _, s := range doc.SymbolsOf(document.CommandSymbol, document.EnvironmentSymbol, document.TheoremSymbol) {
		names = append(names, s.Kind.String()+":"+s.Name)
	}
	assert.Equal(t, []string{"command:foo", "command:bar", "environment:myenv", "theorem:thm"}, names)

	cmds := doc.ReferencesOf(document.CommandReference)
	require.NotEmpty(t, cmds)
	last := cmds[len(cmds)-1]
	assert.Equal(t, "foo", last.Name)
	assert.Equal(t, "foo", doc.Text[last.Span.Start:last.Span.End])

	envs := doc.ReferencesOf(document.EnvironmentReference)
	assert.Len(t, envs, 2, "begin and end name")
}

func TestSyntaxDiagnostics(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []document.Code
	}{
		{"clean", `\begin{a}$x$\end{a}`, nil},
		{"stray brace", `a}b`, []document.Code{document.CodeUnexpectedBrace}},
		{"missing brace", `\textbf{a`, []document.Code{document.CodeMissingBrace}},
		{"stray end", `\end{x}`, []document.Code{document.CodeMismatchedEnvironment}},
		{"unclosed environment", `\begin{itemize}\item a`, []document.Code{document.CodeUnclosedEnvironment}},
		{"unclosed math", `$x`, []document.Code{document.CodeUnclosedMath}},
		{"invalid", "a\xffb", []document.Code{document.CodeInvalidCharacter}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, codes(parseTex(tt.text).Diagnostics))
		})
	}
}

func TestUnclosedEnvironmentKeepsSymbols(t *testing.T) {
	doc := parseTex("\\begin{itemize}\n\\item a\n\\label{after}\\ref{after}")
	require.Len(t, doc.Diagnostics, 1)
	assert.Equal(t, document.CodeUnclosedEnvironment, doc.Diagnostics[0].Code)
	assert.Len(t, doc.SymbolsOf(document.LabelSymbol), 1)
	assert.Len(t, doc.ReferencesOf(document.LabelReference), 1)
}

func TestBibtexEntries(t *testing.T) {
	doc := parseBib(`@string{acm = "ACM"}
@article{knuth, author = {Knuth}, title = {TAOCP}, publisher = acm}`)
	assert.Empty(t, doc.Diagnostics)
	entries := doc.SymbolsOf(document.EntrySymbol)
	require.Len(t, entries, 1)
	assert.Equal(t, "knuth", entries[0].Name)
	assert.Equal(t, "article", entries[0].Detail)
	assert.Equal(t, "TAOCP", entries[0].Fields["title"])

	strs := doc.SymbolsOf(document.StringSymbol)
	require.Len(t, strs, 1)
	assert.Equal(t, "ACM", strs[0].Detail)

	uses := doc.ReferencesOf(document.StringReference)
	require.Len(t, uses, 1)
	assert.Equal(t, "acm", uses[0].Name)
}

func TestBibtexDiagnostics(t *testing.T) {
	tests := []struct {
		text string
		want []document.Code
	}{
		{"@article", []document.Code{document.CodeExpectingLCurly}},
		{"@article{", []document.Code{document.CodeExpectingRCurly, document.CodeExpectingKey}},
		{"@article{k, title}", []document.Code{document.CodeExpectingEq}},
		{"@article{k, title = }", []document.Code{document.CodeExpectingValue}},
		{"@article{k, title = x", []document.Code{document.CodeExpectingRCurly}},
		{"@article{k, = x}", []document.Code{document.CodeUnexpectedBibtex, document.CodeExpectingEq}},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			assert.Equal(t, tt.want, codes(parseBib(tt.text).Diagnostics))
		})
	}
}

func TestLineIndex(t *testing.T) {
	text := "ab\r\n😀x\nlast"
	li := document.NewLineIndex(text)
	assert.Equal(t, 3, li.LineCount())

	assert.Equal(t, document.Position{Line: 0, Character: 2}, li.Position(2))
	assert.Equal(t, document.Position{Line: 1, Character: 0}, li.Position(4))
	assert.Equal(t, document.Position{Line: 1, Character: 2}, li.Position(8))
	assert.Equal(t, document.Position{Line: 2, Character: 4}, li.Position(len(text)))

	assert.Equal(t, 8, li.Offset(document.Position{Line: 1, Character: 2}))
	assert.Equal(t, 2, li.Offset(document.Position{Line: 0, Character: 99}), "clamped before CRLF")
	assert.Equal(t, len(text), li.Offset(document.Position{Line: 9, Character: 0}))

	span := syntax.Span{Start: 4, End: 9}
	assert.Equal(t, span, li.Span(li.Range(span)))
}

func TestApplyChanges(t *testing.T) {
	text := "hello\nworld"
	text = document.ApplyChanges(text, []document.Change{
		{Range: &document.Range{
			Start: document.Position{Line: 1, Character: 0},
			End:   document.Position{Line: 1, Character: 5},
		}, Text: "there"},
		{Range: &document.Range{
			Start: document.Position{Line: 0, Character: 5},
			End:   document.Position{Line: 0, Character: 5},
		}, Text: ","},
	})
	assert.Equal(t, "hello,\nthere", text)
	assert.Equal(t, "new", document.ApplyChange(text, document.Change{Text: "new"}))
}

func TestLanguageDetection(t *testing.T) {
	lang, ok := document.LanguageFromPath("/a/b.BIB")
	assert.True(t, ok)
	assert.Equal(t, document.BibTeX, lang)
	lang, ok = document.LanguageFromID("latex")
	assert.True(t, ok)
	assert.Equal(t, document.LaTeX, lang)
	_, ok = document.LanguageFromPath("x.png")
	assert.False(t, ok)
}

func TestURIRoundTrip(t *testing.T) {
	uri := document.URIFromPath("/tmp/some dir/a.tex")
	assert.Equal(t, "file:///tmp/some%20dir/a.tex", uri)
	path, err := document.PathFromURI(uri)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/some dir/a.tex", path)

	_, err = document.PathFromURI("untitled:1")
	assert.Error(t, err)
}

func TestParseSharesTreeWithCache(t *testing.T) {
	cache := syntax.NewNodeCache()
	params := document.Params{URI: "file:///a.tex", Language: document.LaTeX, Text: `\label{a} \ref{b}`, Cache: cache}
	first := document.Parse(params)
	params.Revision, params.Text = 2, `\label{a} \ref{c}`
	second := document.Parse(params)
	assert.Same(t, first.Green.Children()[0], second.Green.Children()[0])
	assert.Equal(t, int64(2), second.Revision)
}

func TestDeepNestingIsDiagnosed(t *testing.T) {
	doc := parseTex(strings.Repeat("{", 300) + strings.Repeat("}", 300) + `\label{after}`)
	assert.Contains(t, codes(doc.Diagnostics), document.CodeNestingTooDeep)
	labels := doc.SymbolsOf(document.LabelSymbol)
	require.Len(t, labels, 1)
	assert.Equal(t, "after", labels[0].Name)
}
