package feature

import (
	"context"
	"sort"

	"texlsp/internal/document"
	"texlsp/internal/syntax"
	"texlsp/internal/syntax/bibtex"
	"texlsp/internal/syntax/latex"
)

type FoldingRange struct {
	StartLine      uint32
	StartCharacter uint32
	EndLine        uint32
	EndCharacter   uint32
}

// FoldingRanges returns the multi-line environments, sections and
// bibliography entries of a document.
func (e *Engine) FoldingRanges(uri string) ([]FoldingRange, error) {
	doc, err := e.document(uri)
	if err != nil {
		return nil, err
	}
	var spans []syntax.Span
	if doc.Language == document.BibTeX {
		for _, n := range doc.Root().ChildNodes() {
			switch n.Kind() {
			case bibtex.Entry, bibtex.StringDef, bibtex.Preamble, bibtex.CommentEntry:
				spans = append(spans, n.Span())
			}
		}
	} else {
		for _, s := range sectionSpans(doc) {
			spans = append(spans, s.full)
		}
		for _, n := range doc.Root().Descendants(latex.Environment) {
			spans = append(spans, n.Span())
		}
	}
	sort.SliceStable(spans, func(i, j int) bool { return spans[i].Start < spans[j].Start })

	var out []FoldingRange
	for _, span := range spans {
		r := doc.Range(trimTrailingSpace(doc.Text, span))
		if r.End.Line > r.Start.Line {
			out = append(out, FoldingRange{
				StartLine:      r.Start.Line,
				StartCharacter: r.Start.Character,
				EndLine:        r.End.Line,
				EndCharacter:   r.End.Character,
			})
		}
	}
	return out, nil
}

func trimTrailingSpace(text string, span syntax.Span) syntax.Span {
	for span.End > span.Start {
		switch text[span.End-1] {
		case ' ', '\t', '\r', '\n':
			span.End--
			continue
		}
		break
	}
	return span
}

type section struct {
	symbol document.Symbol
	full   syntax.Span // up to the next section of the same or a higher level
}

func sectionSpans(doc *document.Document) []section {
	symbols := doc.SymbolsOf(document.SectionSymbol)
	out := make([]section, len(symbols))
	for i, s := range symbols {
		end := len(doc.Text)
		for _, next := range symbols[i+1:] {
			if next.Level <= s.Level {
				end = next.Full.Start
				break
			}
		}
		out[i] = section{symbol: s, full: syntax.Span{Start: s.Full.Start, End: end}}
	}
	return out
}

type DocumentSymbol struct {
	Name           string
	Detail         string
	Kind           document.SymbolKind
	Range          document.Range
	SelectionRange document.Range
	Children       []DocumentSymbol
}

type outlineNode struct {
	symbol   DocumentSymbol
	span     syntax.Span
	section  bool
	children []*outlineNode
}

// DocumentSymbols returns the outline of a document: nested sections with
// labeled environments and definitions for LaTeX, entries and strings for
// BibTeX.
func (e *Engine) DocumentSymbols(uri string) ([]DocumentSymbol, error) {
	doc, err := e.document(uri)
	if err != nil {
		return nil, err
	}
	var items []*outlineNode
	item := func(name, detail string, kind document.SymbolKind, full, sel syntax.Span, isSection bool) {
		items = append(items, &outlineNode{
			symbol: DocumentSymbol{
				Name:           name,
				Detail:         detail,
				Kind:           kind,
				Range:          doc.Range(full),
				SelectionRange: doc.Range(sel),
			},
			span:    full,
			section: isSection,
		})
	}

	if doc.Language == document.BibTeX {
		for _, s := range doc.SymbolsOf(document.EntrySymbol, document.StringSymbol) {
			item(s.Name, s.Detail, s.Kind, s.Full, s.Span, false)
		}
	} else {
		for _, s := range sectionSpans(doc) {
			item(s.symbol.Name, s.symbol.Detail, document.SectionSymbol, trimTrailingSpace(doc.Text, s.full), s.symbol.Span, true)
		}
		for _, env := range doc.Root().Descendants(latex.Environment) {
			labels := env.Descendants(latex.LabelDefinition)
			key := latex.EnvironmentName(env)
			if len(labels) == 0 || key == nil {
				continue
			}
			names := latex.NthKeys(labels[0], 0)
			if len(names) == 0 || labels[0].Ancestor(latex.Environment).Span() != env.Span() {
				continue
			}
			item(latex.KeyName(names[0]), latex.KeyName(key), document.LabelSymbol, env.Span(), names[0].Span(), false)
		}
		for _, s := range doc.SymbolsOf(document.CommandSymbol, document.EnvironmentSymbol, document.TheoremSymbol) {
			item(s.Name, s.Detail, s.Kind, s.Full, s.Span, false)
		}
	}
	sort.SliceStable(items, func(i, j int) bool { return items[i].span.Start < items[j].span.Start })
	return nest(items), nil
}

// nest hangs every item below the innermost section that contains it.
func nest(items []*outlineNode) []DocumentSymbol {
	var roots []*outlineNode
	var stack []*outlineNode
	for _, it := range items {
		for len(stack) > 0 && stack[len(stack)-1].span.End <= it.span.Start {
			stack = stack[:len(stack)-1]
		}
		if len(stack) == 0 {
			roots = append(roots, it)
		} else {
			top := stack[len(stack)-1]
			top.children = append(top.children, it)
		}
		if it.section {
			stack = append(stack, it)
		}
	}
	return flatten(roots)
}

func flatten(nodes []*outlineNode) []DocumentSymbol {
	out := make([]DocumentSymbol, 0, len(nodes))
	for _, n := range nodes {
		sym := n.symbol
		sym.Children = flatten(n.children)
		out = append(out, sym)
	}
	return out
}

type DocumentLink struct {
	Range  document.Range
	Target string
}

// DocumentLinks returns the resolved include and bibliography arguments.
func (e *Engine) DocumentLinks(uri string) ([]DocumentLink, error) {
	doc, err := e.document(uri)
	if err != nil {
		return nil, err
	}
	var out []DocumentLink
	for _, edge := range e.ws.Edges(uri) {
		if edge.Span.End > len(doc.Text) {
			continue
		}
		out = append(out, DocumentLink{Range: doc.Range(edge.Span), Target: edge.Target})
	}
	return out, nil
}

type WorkspaceSymbol struct {
	Name     string
	Detail   string
	Kind     document.SymbolKind
	Location Location
}

const maxWorkspaceSymbols = 256

// WorkspaceSymbols searches the definitions of all known documents.
func (e *Engine) WorkspaceSymbols(ctx context.Context, query string) ([]WorkspaceSymbol, error) {
	if e.index == nil {
		return nil, nil
	}
	found, err := e.index.Search(ctx, query, maxWorkspaceSymbols)
	if err != nil {
		return nil, err
	}
	out := make([]WorkspaceSymbol, 0, len(found))
	for _, s := range found {
		out = append(out, WorkspaceSymbol{
			Name:     s.Name,
			Detail:   s.Detail,
			Kind:     s.Kind,
			Location: Location{URI: s.URI, Range: s.Range},
		})
	}
	return out, nil
}
