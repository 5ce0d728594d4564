package document

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"texlsp/internal/syntax"
	"texlsp/internal/syntax/latex"
)

// extractLatex walks the tree once, collecting symbols, references, links and
// syntax diagnostics.
func extractLatex(d *Document) {
	root := d.Root()
	section := ""
	root.Walk(func(n *syntax.Node) bool {
		if n.IsToken() {
			if n.Kind() == latex.Invalid {
				d.diagnose(n.Span(), CodeInvalidCharacter, "Invalid character")
			}
			return false
		}
		switch n.Kind() {
		case syntax.Error:
			latexError(d, n)
			return false
		case latex.CurlyGroup:
			if !n.HasChild(latex.RCurly) {
				d.diagnose(n.FirstToken().Span(), CodeMissingBrace, `Missing "}" inserted`)
			}
		case latex.Environment:
			environment(d, n)
		case latex.InlineMath, latex.DisplayMath:
			if !mathClosed(n) {
				d.diagnose(n.FirstToken().Span(), CodeUnclosedMath, "Unclosed math")
			}
		case latex.Section:
			title := titleOf(n)
			level, _ := latex.SectionLevel(latex.CommandNameOf(n))
			section = title
			if title != "" {
				d.Symbols = append(d.Symbols, Symbol{
					Name:   title,
					Kind:   SectionSymbol,
					URI:    d.URI,
					Span:   n.Span(),
					Full:   n.Span(),
					Detail: strings.TrimPrefix(latex.CommandNameOf(n), `\`),
					Level:  level,
				})
			}
		case latex.LabelDefinition:
			for _, key := range latex.NthKeys(n, 0) {
				d.Symbols = append(d.Symbols, Symbol{
					Name:   latex.KeyName(key),
					Kind:   LabelSymbol,
					URI:    d.URI,
					Span:   key.Span(),
					Full:   n.Span(),
					Detail: labelDetail(n, section),
				})
			}
		case latex.LabelReference:
			d.references(n, latex.NthKeys(n, 0), LabelReference)
		case latex.LabelReferenceRange:
			d.references(n, latex.NthKeys(n, 0), LabelReference)
			d.references(n, latex.NthKeys(n, 1), LabelReference)
		case latex.Citation:
			var keys []*syntax.Node
			for _, key := range latex.NthKeys(n, 0) {
				if latex.KeyName(key) != "*" {
					keys = append(keys, key)
				}
			}
			d.references(n, keys, CitationReference)
		case latex.BibItem:
			for _, key := range latex.NthKeys(n, 0) {
				d.Symbols = append(d.Symbols, Symbol{
					Name: latex.KeyName(key),
					Kind: BibItemSymbol,
					URI:  d.URI,
					Span: key.Span(),
					Full: n.Span(),
				})
			}
		case latex.LatexInclude:
			d.links(latex.NthKeys(n, 0), IncludeLink, "")
		case latex.BibtexInclude, latex.BiblatexInclude:
			d.links(latex.NthKeys(n, 0), BibliographyLink, "")
		case latex.PackageInclude:
			d.links(latex.NthKeys(n, 0), PackageLink, "")
		case latex.ClassInclude:
			d.links(latex.NthKeys(n, 0), ClassLink, "")
		case latex.Import:
			dirs := latex.NthKeys(n, 0)
			if len(dirs) > 0 {
				d.links(latex.NthKeys(n, 1), IncludeLink, latex.KeyName(dirs[0]))
			}
		case latex.CommandDefinition:
			commandDefinition(d, n)
		case latex.EnvironmentDefinition:
			for _, key := range latex.NthKeys(n, 0) {
				d.Symbols = append(d.Symbols, Symbol{
					Name:   latex.KeyName(key),
					Kind:   EnvironmentSymbol,
					URI:    d.URI,
					Span:   key.Span(),
					Full:   n.Span(),
					Detail: latex.CommandNameOf(n),
				})
			}
		case latex.TheoremDefinition:
			theoremDefinition(d, n)
		case latex.Command:
			tok := n.FirstChild(latex.CommandName)
			if name := commandName(tok.Text()); name != "" {
				d.References = append(d.References, Reference{
					Name: name,
					Kind: CommandReference,
					Span: nameSpan(tok),
					Full: n.Span(),
				})
			}
		}
		return true
	})
}

func latexError(d *Document, n *syntax.Node) {
	if end := n.FirstChild(latex.End); end != nil {
		name := ""
		if key := latex.EnvironmentName(end); key != nil {
			name = latex.KeyName(key)
		}
		d.diagnose(end.Span(), CodeMismatchedEnvironment, fmt.Sprintf("Mismatched environment %q", name))
		return
	}
	if n.HasChild(latex.RCurly) {
		d.diagnose(n.Span(), CodeUnexpectedBrace, `Unexpected "}"`)
		return
	}
	d.diagnose(n.Span(), CodeNestingTooDeep, "Nesting too deep")
}

func environment(d *Document, n *syntax.Node) {
	key := latex.EnvironmentName(n)
	name := ""
	if key != nil {
		name = latex.KeyName(key)
		span := key.Span()
		d.References = append(d.References, Reference{
			Name: name,
			Kind: EnvironmentReference,
			Span: span,
			Full: n.Span(),
		})
		if end := n.FirstChild(latex.End); end != nil {
			if endKey := latex.EnvironmentName(end); endKey != nil {
				d.References = append(d.References, Reference{
					Name: name,
					Kind: EnvironmentReference,
					Span: endKey.Span(),
					Full: n.Span(),
				})
			}
		}
	}
	if !n.HasChild(latex.End) {
		begin := n.FirstChild(latex.Begin)
		d.diagnose(begin.Span(), CodeUnclosedEnvironment, fmt.Sprintf("Unclosed environment %q", name))
	}
}

func mathClosed(n *syntax.Node) bool {
	children := n.Children()
	if len(children) < 2 {
		return false
	}
	open, last := children[0], children[len(children)-1]
	if !last.IsToken() {
		return false
	}
	switch open.Kind() {
	case latex.Dollar, latex.DoubleDollar:
		return last.Kind() == open.Kind()
	case latex.CommandName:
		switch open.Text() {
		case `\(`:
			return last.Text() == `\)`
		case `\[`:
			return last.Text() == `\]`
		}
	}
	return false
}

func (d *Document) references(n *syntax.Node, keys []*syntax.Node, kind ReferenceKind) {
	for _, key := range keys {
		d.References = append(d.References, Reference{
			Name: latex.KeyName(key),
			Kind: kind,
			Span: key.Span(),
			Full: n.Span(),
		})
	}
}

func (d *Document) links(keys []*syntax.Node, kind LinkKind, dir string) {
	for _, key := range keys {
		d.Links = append(d.Links, Link{
			Kind: kind,
			Path: latex.KeyName(key),
			Dir:  dir,
			Span: key.Span(),
		})
	}
}

func commandDefinition(d *Document, n *syntax.Node) {
	var tok *syntax.Node
	if names := n.ChildrenOfKind(latex.CommandName); len(names) > 1 {
		tok = names[1]
	} else if group := n.FirstChild(latex.CurlyGroup); group != nil {
		tok = group.FirstChild(latex.CommandName)
	}
	if tok == nil {
		return
	}
	name := commandName(tok.Text())
	if name == "" {
		return
	}
	d.Symbols = append(d.Symbols, Symbol{
		Name:   name,
		Kind:   CommandSymbol,
		URI:    d.URI,
		Span:   nameSpan(tok),
		Full:   n.Span(),
		Detail: shorten(strings.Join(strings.Fields(n.Text()), " "), 80),
	})
}

func theoremDefinition(d *Document, n *syntax.Node) {
	groups := latex.CurlyGroups(n)
	if len(groups) == 0 {
		return
	}
	keys := latex.Keys(groups[0])
	if len(keys) == 0 {
		return
	}
	title := ""
	if len(groups) > 1 {
		title = latex.GroupText(groups[1])
	}
	d.Symbols = append(d.Symbols, Symbol{
		Name:   latex.KeyName(keys[0]),
		Kind:   TheoremSymbol,
		URI:    d.URI,
		Span:   keys[0].Span(),
		Full:   n.Span(),
		Detail: title,
	})
}

// labelDetail describes what a label points to: the caption of the
// surrounding float if there is one, otherwise the current section.
func labelDetail(label *syntax.Node, section string) string {
	if env := label.Ancestor(latex.Environment); env != nil {
		if captions := env.Descendants(latex.Caption); len(captions) > 0 {
			if title := titleOf(captions[0]); title != "" {
				return title
			}
		}
	}
	return section
}

// titleOf returns the text of the last curly group argument.
func titleOf(n *syntax.Node) string {
	groups := latex.CurlyGroups(n)
	if len(groups) == 0 {
		return ""
	}
	return latex.GroupText(groups[len(groups)-1])
}

// commandName strips the backslash and star; control symbols yield "".
func commandName(text string) string {
	name := strings.TrimSuffix(strings.TrimPrefix(text, `\`), "*")
	if name == "" {
		return ""
	}
	c := name[0]
	if (c < 'a' || c > 'z') && (c < 'A' || c > 'Z') && c != '@' {
		return ""
	}
	return name
}

func shorten(s string, n int) string {
	if len(s) <= n {
		return s
	}
	cut := n
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "…"
}

// nameSpan is the span of a command token without backslash and star.
func nameSpan(tok *syntax.Node) syntax.Span {
	span := tok.Span()
	span.Start++
	if strings.HasSuffix(tok.Text(), "*") {
		span.End--
	}
	return span
}
