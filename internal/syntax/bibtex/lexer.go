package bibtex

import (
	"unicode/utf8"

	"texlsp/internal/syntax"
)

// Tokenize splits a BibTeX source into tokens covering the whole input.
func Tokenize(src string) []syntax.Token {
	var out []syntax.Token
	for pos := 0; pos < len(src); {
		tok := next(src, pos)
		out = append(out, tok)
		pos = tok.Span.End
	}
	return out
}

func next(src string, start int) syntax.Token {
	single := func(kind syntax.Kind) syntax.Token {
		return syntax.Token{Kind: kind, Span: syntax.Span{Start: start, End: start + 1}}
	}
	cur := start
	switch c := src[cur]; {
	case isSpace(c):
		for cur < len(src) && isSpace(src[cur]) {
			cur++
		}
		return syntax.Token{Kind: Whitespace, Span: syntax.Span{Start: start, End: cur}}
	case c == '@':
		cur++
		for cur < len(src) && isLetter(src[cur]) {
			cur++
		}
		return syntax.Token{Kind: Type, Span: syntax.Span{Start: start, End: cur}}
	case c == '{':
		return single(LCurly)
	case c == '}':
		return single(RCurly)
	case c == '(':
		return single(LParen)
	case c == ')':
		return single(RParen)
	case c == ',':
		return single(Comma)
	case c == '=':
		return single(Eq)
	case c == '#':
		return single(Hash)
	case c == '"':
		return single(Quote)
	case c == '\\':
		cur++
		if cur >= len(src) {
			return syntax.Token{Kind: Invalid, Span: syntax.Span{Start: start, End: cur}, Error: true}
		}
		if isLetter(src[cur]) {
			for cur < len(src) && isLetter(src[cur]) {
				cur++
			}
		} else if r, size := utf8.DecodeRuneInString(src[cur:]); r != utf8.RuneError || size > 1 {
			cur += size
		} else {
			return syntax.Token{Kind: Invalid, Span: syntax.Span{Start: start, End: cur}, Error: true}
		}
		return syntax.Token{Kind: CommandName, Span: syntax.Span{Start: start, End: cur}}
	}

	if r, size := utf8.DecodeRuneInString(src[cur:]); r == utf8.RuneError && size <= 1 {
		return syntax.Token{Kind: Invalid, Span: syntax.Span{Start: start, End: cur + 1}, Error: true}
	}
	digits := true
	for cur < len(src) && !isSpecial(src[cur]) {
		r, size := utf8.DecodeRuneInString(src[cur:])
		if r == utf8.RuneError && size <= 1 {
			break
		}
		if r < '0' || r > '9' {
			digits = false
		}
		cur += size
	}
	if digits {
		return syntax.Token{Kind: Number, Span: syntax.Span{Start: start, End: cur}}
	}
	return syntax.Token{Kind: Word, Span: syntax.Span{Start: start, End: cur}}
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\f' || c == '\v'
}

func isLetter(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

// isSpecial reports whether c ends a word. An @ only starts an entry type at
// the beginning of a token, so e-mail addresses stay one word.
func isSpecial(c byte) bool {
	switch c {
	case '{', '}', '(', ')', ',', '=', '#', '"', '\\':
		return true
	}
	return isSpace(c)
}
