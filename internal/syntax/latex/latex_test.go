package latex_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"texlsp/internal/syntax"
	"texlsp/internal/syntax/latex"
)

func kinds(tokens []syntax.Token) []string {
	out := make([]string, len(tokens))
	for i, t := range tokens {
		out[i] = latex.KindName(t.Kind)
	}
	return out
}

func TestTokenize(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{"command with group", `\label{a}`, []string{"CommandName", "LCurly", "Word", "RCurly"}},
		{"starred command", `\section*{x}`, []string{"CommandName", "LCurly", "Word", "RCurly"}},
		{"control symbol", `\\[2pt]`, []string{"CommandName", "LBrack", "Word", "RBrack"}},
		{"comment to end of line", "a % b {\nc", []string{"Word", "Whitespace", "Comment", "LineBreak", "Word"}},
		{"crlf", "a\r\nb", []string{"Word", "LineBreak", "Word"}},
		{"math delimiters", `$x$ $$y$$`, []string{"Dollar", "Word", "Dollar", "Whitespace", "DoubleDollar", "Word", "DoubleDollar"}},
		{"key value", `a=b,c`, []string{"Word", "Eq", "Word", "Comma", "Word"}},
		{"lone backslash", `a\`, []string{"Word", "Invalid"}},
		{"invalid utf8", "a\xffb", []string{"Word", "Invalid", "Word"}},
		{"verb", `\verb|}{|x`, []string{"CommandName", "VerbatimText", "Word"}},
		{"verbatim environment", "\\begin{verbatim}%}\\end{verbatim}", []string{
			"CommandName", "LCurly", "Word", "RCurly", "VerbatimText",
			"CommandName", "LCurly", "Word", "RCurly",
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, kinds(latex.Tokenize(tt.input)))
		})
	}
}

func TestTokenizeMarksInvalid(t *testing.T) {
	tokens := latex.Tokenize("\xff")
	require.Len(t, tokens, 1)
	assert.True(t, tokens[0].Error)
	assert.Equal(t, 1, tokens[0].Span.Len())
}

func parse(src string) *syntax.Node {
	return syntax.NewRoot(latex.Parse(src, nil))
}

func TestParseLabelAndReference(t *testing.T) {
	root := parse(`\label{fig:1} see \ref{fig:1, tab:2}`)
	assert.Equal(t, latex.Root, root.Kind())

	defs := root.Descendants(latex.LabelDefinition)
	require.Len(t, defs, 1)
	keys := latex.NthKeys(defs[0], 0)
	require.Len(t, keys, 1)
	assert.Equal(t, "fig:1", latex.KeyName(keys[0]))
	assert.Equal(t, syntax.Span{Start: 7, End: 12}, keys[0].Span())

	refs := root.Descendants(latex.LabelReference)
	require.Len(t, refs, 1)
	var names []string
	for _, k := range latex.NthKeys(refs[0], 0) {
		names = append(names, latex.KeyName(k))
	}
	assert.Equal(t, []string{"fig:1", "tab:2"}, names)
}

func TestParseKeyWithSpaces(t *testing.T) {
	root := parse("\\label{my\n  label}")
	keys := latex.NthKeys(root.Descendants(latex.LabelDefinition)[0], 0)
	require.Len(t, keys, 1)
	assert.Equal(t, "my label", latex.KeyName(keys[0]))
}

func TestParseCitationWithOptions(t *testing.T) {
	root := parse(`\cite[see][p. 5]{knuth, lamport}`)
	cites := root.Descendants(latex.Citation)
	require.Len(t, cites, 1)
	assert.Len(t, cites[0].ChildrenOfKind(latex.BrackGroup), 2)
	assert.Len(t, latex.NthKeys(cites[0], 0), 2)
}

func TestParseEnvironment(t *testing.T) {
	root := parse("\\begin{itemize}\n\\item a\n\\end{itemize}")
	envs := root.Descendants(latex.Environment)
	require.Len(t, envs, 1)
	assert.True(t, envs[0].HasChild(latex.End))
	assert.Equal(t, "itemize", latex.KeyName(latex.EnvironmentName(envs[0])))
}

func TestParseUnclosedEnvironmentKeepsLaterSymbols(t *testing.T) {
	root := parse("\\begin{itemize}\n\\item a\n\\section{Next}\\label{later}")
	envs := root.Descendants(latex.Environment)
	require.Len(t, envs, 1)
	assert.False(t, envs[0].HasChild(latex.End))
	assert.Len(t, root.Descendants(latex.Section), 1)
	assert.Len(t, root.Descendants(latex.LabelDefinition), 1)
	assert.Empty(t, root.Descendants(syntax.Error))
}

func TestParseEndClosesOuterEnvironment(t *testing.T) {
	root := parse(`\begin{a}\begin{b}x\end{a}y`)
	envs := root.Descendants(latex.Environment)
	require.Len(t, envs, 2)
	assert.True(t, envs[0].HasChild(latex.End), "outer environment is closed")
	assert.False(t, envs[1].HasChild(latex.End), "inner environment stays open")
	assert.Equal(t, latex.Text, root.ChildNodes()[1].Kind())
}

func TestParseStrayEnd(t *testing.T) {
	root := parse(`\begin{a}x\end{b}\end{a}`)
	errs := root.Descendants(syntax.Error)
	require.Len(t, errs, 1)
	assert.Equal(t, `\end{b}`, errs[0].Text())
	envs := root.Descendants(latex.Environment)
	require.Len(t, envs, 1)
	assert.True(t, envs[0].HasChild(latex.End))
}

func TestParseStrayBrace(t *testing.T) {
	root := parse(`a } \label{x}`)
	errs := root.Descendants(syntax.Error)
	require.Len(t, errs, 1)
	assert.Equal(t, "}", errs[0].Text())
	assert.Len(t, root.Descendants(latex.LabelDefinition), 1)
}

func TestParseMissingBrace(t *testing.T) {
	root := parse(`\textbf{a \label{x}`)
	groups := root.Descendants(latex.CurlyGroup)
	require.NotEmpty(t, groups)
	assert.False(t, groups[0].HasChild(latex.RCurly))
	assert.Len(t, root.Descendants(latex.LabelDefinition), 1)
}

func TestParseBraceClosesMath(t *testing.T) {
	root := parse(`\textbf{$x} y$`)
	math := root.Descendants(latex.InlineMath)
	require.Len(t, math, 2)
	assert.Equal(t, "$x", math[0].Text())
	assert.Equal(t, "$", math[1].Text())
}

func TestParseMath(t *testing.T) {
	root := parse(`$a$ \(b\) \[c\] $$d$$`)
	assert.Len(t, root.Descendants(latex.InlineMath), 2)
	assert.Len(t, root.Descendants(latex.DisplayMath), 2)
	for _, m := range append(root.Descendants(latex.InlineMath), root.Descendants(latex.DisplayMath)...) {
		assert.Len(t, m.Tokens(), 3, m.Text())
	}
}

func TestParseVerbatimEnvironment(t *testing.T) {
	root := parse("\\begin{verbatim}\\label{no} }\n\\end{verbatim}\\label{yes}")
	assert.Len(t, root.Descendants(latex.Verbatim), 1)
	defs := root.Descendants(latex.LabelDefinition)
	require.Len(t, defs, 1)
	assert.Equal(t, "yes", latex.KeyName(latex.NthKeys(defs[0], 0)[0]))
	assert.Empty(t, root.Descendants(syntax.Error))
}

func TestParseDefinitions(t *testing.T) {
	root := parse(`\newcommand{\foo}[1]{#1} \def\bar#1{x} \newenvironment{env}{a}{b} \newtheorem{thm}{Theorem}`)
	defs := root.Descendants(latex.CommandDefinition)
	require.Len(t, defs, 2)
	assert.Equal(t, `\foo`, defs[0].FirstChild(latex.CurlyGroup).FirstChild(latex.CommandName).Text())
	assert.Equal(t, `\bar`, defs[1].ChildrenOfKind(latex.CommandName)[1].Text())

	envs := root.Descendants(latex.EnvironmentDefinition)
	require.Len(t, envs, 1)
	assert.Equal(t, "env", latex.KeyName(latex.NthKeys(envs[0], 0)[0]))

	thms := root.Descendants(latex.TheoremDefinition)
	require.Len(t, thms, 1)
	assert.Equal(t, "Theorem", latex.GroupText(latex.CurlyGroups(thms[0])[1]))
}

func TestParseIncludes(t *testing.T) {
	root := parse(`\documentclass[a4paper]{article}\usepackage{amsmath,graphicx}\input{chapters/intro}\bibliography{refs}\addbibresource{more.bib}\subimport{dir/}{file}`)
	assert.Len(t, root.Descendants(latex.ClassInclude), 1)
	pkgs := root.Descendants(latex.PackageInclude)
	require.Len(t, pkgs, 1)
	assert.Len(t, latex.NthKeys(pkgs[0], 0), 2)
	inc := root.Descendants(latex.LatexInclude)
	require.Len(t, inc, 1)
	assert.Equal(t, "chapters/intro", latex.KeyName(latex.NthKeys(inc[0], 0)[0]))
	assert.Len(t, root.Descendants(latex.BibtexInclude), 1)
	assert.Len(t, root.Descendants(latex.BiblatexInclude), 1)
	imports := root.Descendants(latex.Import)
	require.Len(t, imports, 1)
	assert.Equal(t, "dir/", latex.KeyName(latex.NthKeys(imports[0], 0)[0]))
	assert.Equal(t, "file", latex.KeyName(latex.NthKeys(imports[0], 1)[0]))
}

func TestParseSectionTitle(t *testing.T) {
	root := parse(`\section[short]{A  \emph{long}  title}`)
	secs := root.Descendants(latex.Section)
	require.Len(t, secs, 1)
	assert.Equal(t, "A \\emph{long} title", latex.GroupText(latex.CurlyGroups(secs[0])[0]))
	level, ok := latex.SectionLevel(latex.CommandNameOf(secs[0]))
	assert.True(t, ok)
	assert.Equal(t, 1, level)
}

func TestParseGenericCommandTakesGroups(t *testing.T) {
	root := parse(`\foo [a] {b}{c} d`)
	cmds := root.Descendants(latex.Command)
	require.Len(t, cmds, 1)
	assert.Equal(t, `\foo [a] {b}{c}`, cmds[0].Text())
}

func TestParseSharesUnchangedSubtrees(t *testing.T) {
	cache := syntax.NewNodeCache()
	first := latex.Parse(`\label{a} text \ref{b}`, cache)
	hits := cache.Hits()
	second := latex.Parse(`\label{a} text \ref{c}`, cache)
	assert.Greater(t, cache.Hits(), hits)
	assert.Same(t, first.Children()[0], second.Children()[0])
}

func checkRoundTrip(t *testing.T, src string) {
	t.Helper()
	tokens := latex.Tokenize(src)
	offset := 0
	for _, tok := range tokens {
		require.Equal(t, offset, tok.Span.Start, "gap or overlap before token")
		require.Greater(t, tok.Span.End, tok.Span.Start, "empty token")
		offset = tok.Span.End
	}
	require.Equal(t, len(src), offset)

	root := syntax.NewRoot(latex.Parse(src, nil))
	var sb strings.Builder
	leaves := root.Tokens()
	for _, leaf := range leaves {
		sb.WriteString(leaf.Text())
	}
	require.Equal(t, src, sb.String())
	require.Len(t, leaves, len(tokens))
}

func TestRoundTripMalformed(t *testing.T) {
	inputs := []string{
		"",
		"}}}{{{",
		`\begin{a}\end{b}\end{a}\end{c}`,
		`\begin{`,
		`\begin{a`,
		`$$$`,
		`\(\]\[\)`,
		`\label{\ref{x}`,
		`\cite[{]}`,
		`[[]]]`,
		"\\verb",
		"\\begin{verbatim}",
		"\\newcommand{",
		"\\section{\\begin{x}}\\end{x}",
		"%\\begin{x}\n\\end{x}",
	}
	for _, in := range inputs {
		checkRoundTrip(t, in)
	}
}

func FuzzRoundTrip(f *testing.F) {
	f.Add(`\documentclass{article}\begin{document}\section{A}\label{a}\ref{a}$x$\end{document}`)
	f.Add(`\begin{itemize}\item{]}\end{enumerate}`)
	f.Add("\\verb|x| %c\n\\[a\\)")
	f.Fuzz(func(t *testing.T, src string) {
		checkRoundTrip(t, src)
	})
}

// depth returns the height of the tree below n without recursion.
func depth(n *syntax.Node) int {
	type item struct {
		n *syntax.Node
		d int
	}
	max := 0
	stack := []item{{n, 1}}
	for len(stack) > 0 {
		it := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if it.d > max {
			max = it.d
		}
		for _, c := range it.n.Children() {
			stack = append(stack, item{c, it.d + 1})
		}
	}
	return max
}

func TestParseDeepNestingIsBounded(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{"braces", strings.Repeat("{", 5000) + `\label{deep}` + strings.Repeat("}", 5000)},
		{"environments", strings.Repeat(`\begin{a}`, 5000) + `\label{deep}`},
		{"math in groups", strings.Repeat("{$", 3000)},
		{"commands", strings.Repeat(`\textbf{`, 5000)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checkRoundTrip(t, tt.src)
			root := parse(tt.src)
			assert.Less(t, depth(root), 4000)
			assert.NotEmpty(t, root.Descendants(syntax.Error))
		})
	}
}

func TestParseClosersAfterDeepNesting(t *testing.T) {
	src := strings.Repeat(`\begin{a}`, 100) + `\label{x}` + strings.Repeat(`\end{a}`, 100) + `\ref{x}`
	root := parse(src)
	assert.Empty(t, root.Descendants(syntax.Error))
	assert.Len(t, root.Descendants(latex.LabelDefinition), 1)
	assert.Len(t, root.Descendants(latex.LabelReference), 1)
}

func BenchmarkParseDeepBraces(b *testing.B) {
	src := strings.Repeat("{", 40000) + strings.Repeat("}", 40000)
	b.SetBytes(int64(len(src)))
	for i := 0; i < b.N; i++ {
		latex.Parse(src, nil)
	}
}

func BenchmarkParseDeepEnvironments(b *testing.B) {
	src := strings.Repeat(`\begin{a}`, 40000)
	b.SetBytes(int64(len(src)))
	for i := 0; i < b.N; i++ {
		latex.Parse(src, nil)
	}
}

func BenchmarkParseFlat(b *testing.B) {
	src := strings.Repeat(`\section{A}\label{a} text $x$ \ref{a} \cite{k}`+"\n", 5000)
	b.SetBytes(int64(len(src)))
	for i := 0; i < b.N; i++ {
		latex.Parse(src, nil)
	}
}
