package feature

import (
	"strings"

	"texlsp/internal/cache"
	"texlsp/internal/document"
	"texlsp/internal/fuzzy"
	"texlsp/internal/syntax"
	"texlsp/internal/syntax/latex"
)

type CompletionKind int

const (
	LabelCompletion CompletionKind = iota + 1
	CitationCompletion
	CommandCompletion
	EnvironmentCompletion
)

type CompletionItem struct {
	Label  string
	Kind   CompletionKind
	Detail string
	// Range is replaced by Label when the item is accepted.
	Range   document.Range
	Builtin bool
}

const maxCompletionItems = 200

// completionSite is the syntactic context of the cursor.
type completionSite struct {
	kind   CompletionKind
	span   syntax.Span // the partially typed word, replaced on accept
	prefix string      // the part of the word before the cursor
}

// Completion proposes names for the word under pos, ranked against the part
// of the word already typed. Exact prefixes rank above fuzzy matches, equal
// matches keep definition order.
func (e *Engine) Completion(uri string, pos document.Position) ([]CompletionItem, error) {
	doc, err := e.document(uri)
	if err != nil {
		return nil, err
	}
	if doc.Language != document.LaTeX {
		return nil, nil
	}
	site, ok := completionSiteAt(doc, doc.Offset(pos))
	if !ok {
		return nil, nil
	}

	var candidates []CompletionItem
	seen := make(map[string]bool)
	add := func(item CompletionItem) {
		if item.Label == "" || seen[item.Label] {
			return
		}
		seen[item.Label] = true
		item.Kind = site.kind
		item.Range = doc.Range(site.span)
		candidates = append(candidates, item)
	}
	switch site.kind {
	case LabelCompletion:
		for _, s := range e.visible(uri, cache.VisibleLabels).symbols {
			add(CompletionItem{Label: s.Name, Detail: s.Detail})
		}
	case CitationCompletion:
		for _, s := range e.visible(uri, cache.VisibleEntries).symbols {
			add(CompletionItem{Label: s.Name, Detail: entryDetail(s)})
		}
	case CommandCompletion:
		for _, s := range e.visible(uri, cache.VisibleCommands).symbols {
			add(CompletionItem{Label: s.Name, Detail: s.Detail})
		}
		for _, b := range builtinCommands {
			add(CompletionItem{Label: b.name, Detail: b.detail, Builtin: true})
		}
	case EnvironmentCompletion:
		for _, s := range e.visible(uri, cache.VisibleEnvironments).symbols {
			add(CompletionItem{Label: s.Name, Detail: s.Detail})
		}
		for _, b := range builtinEnvironments {
			add(CompletionItem{Label: b.name, Detail: b.detail, Builtin: true})
		}
	}

	names := make([]string, len(candidates))
	for i, c := range candidates {
		names[i] = c.Label
	}
	ranked := fuzzy.Rank(site.prefix, names)
	if len(ranked) > maxCompletionItems {
		ranked = ranked[:maxCompletionItems]
	}
	out := make([]CompletionItem, 0, len(ranked))
	for _, i := range ranked {
		out = append(out, candidates[i])
	}
	return out, nil
}

func entryDetail(s document.Symbol) string {
	if s.Kind == document.BibItemSymbol {
		return "bibitem"
	}
	if title := s.Fields["title"]; title != "" {
		return s.Detail + ": " + title
	}
	return s.Detail
}

func completionSiteAt(doc *document.Document, offset int) (completionSite, bool) {
	root := doc.Root()
	left, _ := root.TokensAt(offset)
	if left != nil && (left.Kind() == latex.CommandName || left.Kind() == latex.Invalid) && strings.HasPrefix(left.Text(), `\`) {
		span := nameSpan(left)
		name := doc.Text[span.Start:span.End]
		switch {
		case isLetterName(name) && offset >= span.Start && offset <= span.End:
			return completionSite{kind: CommandCompletion, span: span, prefix: doc.Text[span.Start:offset]}, true
		case !isLetterName(name) && name != `\` && offset == span.Start:
			// a bare backslash, possibly glued to the following space or line break
			return completionSite{kind: CommandCompletion, span: syntax.Span{Start: offset, End: offset}}, true
		}
		return completionSite{}, false
	}

	node := root.CoveringNode(offset)
	for node != nil && node.Kind() != latex.CurlyGroup {
		node = node.Parent()
	}
	if node == nil || offset <= node.Span().Start {
		return completionSite{}, false
	}
	if closer := node.FirstChild(latex.RCurly); closer != nil && offset > closer.Span().Start {
		return completionSite{}, false
	}
	parent := node.Parent()
	if parent == nil {
		return completionSite{}, false
	}
	var kind CompletionKind
	switch parent.Kind() {
	case latex.LabelReference, latex.LabelReferenceRange:
		kind = LabelCompletion
	case latex.Citation:
		kind = CitationCompletion
	case latex.Begin, latex.End:
		kind = EnvironmentCompletion
	default:
		return completionSite{}, false
	}

	inner := syntax.Span{Start: node.Span().Start + 1, End: node.Span().End}
	if closer := node.FirstChild(latex.RCurly); closer != nil {
		inner.End = closer.Span().Start
	}
	span := wordAround(doc.Text, inner, offset)
	return completionSite{kind: kind, span: span, prefix: doc.Text[span.Start:offset]}, true
}

// wordAround returns the key under offset inside a comma separated list.
func wordAround(text string, bounds syntax.Span, offset int) syntax.Span {
	const separators = ",{} \t\r\n"
	start := offset
	for start > bounds.Start && !strings.ContainsRune(separators, rune(text[start-1])) {
		start--
	}
	end := offset
	for end < bounds.End && !strings.ContainsRune(separators, rune(text[end])) {
		end++
	}
	return syntax.Span{Start: start, End: end}
}

func isLetterName(name string) bool {
	if name == "" {
		return false
	}
	c := name[0]
	return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c == '@'
}

// nameSpan is the span of a command token without backslash and star.
func nameSpan(tok *syntax.Node) syntax.Span {
	span := tok.Span()
	span.Start++
	if strings.HasSuffix(tok.Text(), "*") && span.End > span.Start {
		span.End--
	}
	return span
}
