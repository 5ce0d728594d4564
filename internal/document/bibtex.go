package document

import (
	"texlsp/internal/syntax"
	"texlsp/internal/syntax/bibtex"
)

func extractBibtex(d *Document) {
	d.Root().Walk(func(n *syntax.Node) bool {
		if n.IsToken() {
			if n.Kind() == bibtex.Invalid {
				d.diagnose(n.Span(), CodeUnexpectedBibtex, "Invalid character")
			}
			return false
		}
		switch n.Kind() {
		case syntax.Error:
			d.diagnose(n.Span(), CodeUnexpectedBibtex, "Unexpected input")
			return false
		case bibtex.Entry:
			entry(d, n)
		case bibtex.StringDef:
			stringDef(d, n)
		case bibtex.Preamble:
			delimited(d, n)
		case bibtex.Field:
			field(d, n)
		case bibtex.Literal:
			if tok := n.FirstToken(); tok.Kind() == bibtex.Word {
				d.References = append(d.References, Reference{
					Name: tok.Text(),
					Kind: StringReference,
					Span: tok.Span(),
					Full: n.Span(),
				})
			}
		}
		return true
	})
}

// delimited reports a missing opening or closing delimiter and returns false
// when the node has no opening delimiter.
func delimited(d *Document, n *syntax.Node) bool {
	open := n.FirstChild(bibtex.LCurly)
	closer := bibtex.RCurly
	if open == nil {
		open = n.FirstChild(bibtex.LParen)
		closer = bibtex.RParen
	}
	if open == nil {
		d.diagnose(emptyAt(n.FirstToken().Span().End), CodeExpectingLCurly, `Expecting a curly bracket: "{"`)
		return false
	}
	if !n.HasChild(closer) {
		d.diagnose(emptyAt(n.Span().End), CodeExpectingRCurly, `Expecting a curly bracket: "}"`)
	}
	return true
}

func entry(d *Document, n *syntax.Node) {
	if !delimited(d, n) {
		return
	}
	key := bibtex.KeyOf(n)
	if key == nil {
		open := n.FirstChild(bibtex.LCurly)
		if open == nil {
			open = n.FirstChild(bibtex.LParen)
		}
		d.diagnose(emptyAt(open.Span().End), CodeExpectingKey, "Expecting a key")
		return
	}
	d.Symbols = append(d.Symbols, Symbol{
		Name:   key.Text(),
		Kind:   EntrySymbol,
		URI:    d.URI,
		Span:   key.Span(),
		Full:   n.Span(),
		Detail: bibtex.TypeName(n),
		Fields: bibtex.FieldValues(n),
	})
}

func stringDef(d *Document, n *syntax.Node) {
	if !delimited(d, n) {
		return
	}
	key := bibtex.KeyOf(n)
	if key == nil {
		d.diagnose(emptyAt(n.FirstToken().Span().End), CodeExpectingKey, "Expecting a key")
		return
	}
	checkAssignment(d, n, key.Span().End)
	value := n.FirstChild(bibtex.Value)
	d.Symbols = append(d.Symbols, Symbol{
		Name:   key.Text(),
		Kind:   StringSymbol,
		URI:    d.URI,
		Span:   key.Span(),
		Full:   n.Span(),
		Detail: bibtex.ValueText(value),
	})
}

func field(d *Document, n *syntax.Node) {
	checkAssignment(d, n, n.FirstToken().Span().End)
}

// checkAssignment reports a missing "=" or value behind the name ending at nameEnd.
func checkAssignment(d *Document, n *syntax.Node, nameEnd int) {
	eq := n.FirstChild(bibtex.Eq)
	if eq == nil {
		d.diagnose(emptyAt(nameEnd), CodeExpectingEq, `Expecting an equality sign: "="`)
		return
	}
	if !n.HasChild(bibtex.Value) {
		d.diagnose(emptyAt(eq.Span().End), CodeExpectingValue, "Expecting a field value")
	}
}
