package syntax

// Kind identifies a token or node category. Each grammar declares its own kinds
// starting after Error.
type Kind uint16

// Error is the kind of error nodes in every grammar. Error nodes wrap tokens that
// could not extend the current production.
const Error Kind = 0

// Token is one lexer output. Tokens produced from a source text cover it
// completely, without gaps or overlaps.
type Token struct {
	Kind  Kind
	Span  Span
	Error bool // lexical error: no grammar rule matched these bytes
}

func (t Token) Text(src string) string {
	return src[t.Span.Start:t.Span.End]
}
