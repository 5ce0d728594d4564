package bibtex

import (
	"strings"

	"texlsp/internal/syntax"
)

// TypeName returns the lower-case entry type of an entry-like node without the @.
func TypeName(n *syntax.Node) string {
	tok := n.FirstChild(Type)
	if tok == nil {
		return ""
	}
	return strings.ToLower(strings.TrimPrefix(tok.Text(), "@"))
}

// KeyOf returns the key token node of an Entry or the name of a StringDef.
func KeyOf(n *syntax.Node) *syntax.Node {
	if key := n.FirstChild(Key); key != nil {
		return key.FirstToken()
	}
	return nil
}

// FieldName returns the lower-case name of a Field node.
func FieldName(field *syntax.Node) string {
	return strings.ToLower(field.FirstToken().Text())
}

// Fields returns the fields of an entry in order.
func Fields(entry *syntax.Node) []*syntax.Node {
	return entry.ChildrenOfKind(Field)
}

// ValueText flattens a value: delimiters are removed, concatenated terms are
// joined and whitespace is collapsed. String references are kept verbatim.
func ValueText(value *syntax.Node) string {
	if value == nil {
		return ""
	}
	var sb strings.Builder
	for _, term := range value.ChildNodes() {
		for _, tok := range term.Tokens() {
			switch tok.Kind() {
			case LCurly, RCurly, Quote:
			case Whitespace:
				sb.WriteByte(' ')
			default:
				sb.WriteString(tok.Text())
			}
		}
	}
	return strings.Join(strings.Fields(sb.String()), " ")
}

// FieldValues returns the flattened values of an entry's fields by lower-case
// name. The first occurrence of a field wins.
func FieldValues(entry *syntax.Node) map[string]string {
	out := make(map[string]string)
	for _, f := range Fields(entry) {
		name := FieldName(f)
		if _, ok := out[name]; ok {
			continue
		}
		out[name] = ValueText(f.FirstChild(Value))
	}
	return out
}
