package feature

import (
	"strings"

	"texlsp/internal/document"
	"texlsp/internal/syntax"
	"texlsp/internal/syntax/bibtex"
)

type FormatOptions struct {
	TabSize      int
	InsertSpaces bool
}

func (o FormatOptions) indent() string {
	if !o.InsertSpaces {
		return "\t"
	}
	if o.TabSize <= 0 {
		return "  "
	}
	return strings.Repeat(" ", o.TabSize)
}

// FormatBibtex lays out every well-formed entry and string definition of a
// BibTeX document as a type and key line followed by one indented field per
// line. Field values are kept as written. Entries with syntax errors and all
// text between entries are left alone. LaTeX documents yield no edits.
func (e *Engine) FormatBibtex(uri string, opts FormatOptions) ([]TextEdit, error) {
	doc, err := e.document(uri)
	if err != nil {
		return nil, err
	}
	if doc.Language != document.BibTeX {
		return nil, nil
	}
	indent := opts.indent()
	var edits []TextEdit
	for _, n := range doc.Root().ChildNodes() {
		var (
			text string
			ok   bool
		)
		switch n.Kind() {
		case bibtex.Entry:
			text, ok = formatEntry(n, indent)
		case bibtex.StringDef:
			text, ok = formatStringDef(n)
		}
		if !ok {
			continue
		}
		span := trimTrailingSpace(doc.Text, n.Span())
		if doc.Text[span.Start:span.End] == text {
			continue
		}
		edits = append(edits, TextEdit{Range: doc.Range(span), NewText: text})
	}
	log.Debugf("formatting %s: %d edits", uri, len(edits))
	return edits, nil
}

// closed reports whether n ends with its closing delimiter and contains no
// error nodes.
func closed(n *syntax.Node) bool {
	if len(n.Descendants(syntax.Error)) > 0 {
		return false
	}
	last := n.LastToken()
	return last != nil && (last.Kind() == bibtex.RCurly || last.Kind() == bibtex.RParen)
}

func formatEntry(entry *syntax.Node, indent string) (string, bool) {
	key := bibtex.KeyOf(entry)
	if key == nil || !closed(entry) {
		return "", false
	}
	var sb strings.Builder
	sb.WriteString("@" + bibtex.TypeName(entry) + "{" + key.Text() + ",")
	for _, field := range bibtex.Fields(entry) {
		value := field.FirstChild(bibtex.Value)
		if value == nil {
			return "", false
		}
		sb.WriteString("\n" + indent + field.FirstToken().Text() + " = " + strings.TrimSpace(value.Text()) + ",")
	}
	sb.WriteString("\n}")
	return sb.String(), true
}

func formatStringDef(def *syntax.Node) (string, bool) {
	key := bibtex.KeyOf(def)
	value := def.FirstChild(bibtex.Value)
	if key == nil || value == nil || !closed(def) {
		return "", false
	}
	return "@" + bibtex.TypeName(def) + "{" + key.Text() + " = " + strings.TrimSpace(value.Text()) + "}", true
}
