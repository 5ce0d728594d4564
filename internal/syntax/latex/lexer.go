package latex

import (
	"strings"
	"unicode/utf8"

	"texlsp/internal/syntax"
)

// verbatimEnvironments are environments whose body is not tokenized.
var verbatimEnvironments = map[string]bool{
	"verbatim":     true,
	"verbatim*":    true,
	"Verbatim":     true,
	"lstlisting":   true,
	"minted":       true,
	"comment":      true,
	"filecontents": true,
}

// IsVerbatimEnvironment reports whether the body of environment name is raw text.
func IsVerbatimEnvironment(name string) bool {
	return verbatimEnvironments[name]
}

// Lexer splits LaTeX source into tokens. It never fails: bytes that match no
// rule become Invalid tokens. Calling Next after the end of input keeps
// returning an empty token at len(src).
type Lexer struct {
	src   string
	start int
	cur   int

	// verbatim is set after "\begin{name}" of a verbatim environment and holds
	// the offset where the raw body starts.
	verbatim      string
	verbatimStart int
	// afterVerb is set after "\verb" so the delimited argument is taken raw.
	afterVerb bool
}

func NewLexer(src string) *Lexer {
	return &Lexer{src: src, verbatimStart: -1}
}

// Tokenize lexes the whole input.
func Tokenize(src string) []syntax.Token {
	l := NewLexer(src)
	var out []syntax.Token
	for {
		tok, ok := l.Next()
		if !ok {
			return out
		}
		out = append(out, tok)
	}
}

// Next returns the next token and false at the end of input.
func (l *Lexer) Next() (syntax.Token, bool) {
	if l.cur >= len(l.src) {
		return syntax.Token{Kind: Invalid, Span: syntax.Span{Start: len(l.src), End: len(l.src)}}, false
	}
	l.start = l.cur

	if l.verbatim != "" && l.cur == l.verbatimStart {
		name := l.verbatim
		l.verbatim = ""
		l.verbatimStart = -1
		end := strings.Index(l.src[l.cur:], `\end{`+name+`}`)
		if end < 0 {
			end = len(l.src) - l.cur
		}
		if end > 0 {
			l.cur += end
			return l.token(VerbatimText), true
		}
	}

	if l.afterVerb {
		l.afterVerb = false
		if tok, ok := l.verbArgument(); ok {
			return tok, true
		}
	}

	c := l.src[l.cur]
	switch c {
	case ' ', '\t', '\f', '\v':
		for l.cur < len(l.src) && isBlank(l.src[l.cur]) {
			l.cur++
		}
		return l.token(Whitespace), true
	case '\n':
		l.cur++
		return l.token(LineBreak), true
	case '\r':
		l.cur++
		if l.cur < len(l.src) && l.src[l.cur] == '\n' {
			l.cur++
		}
		return l.token(LineBreak), true
	case '%':
		for l.cur < len(l.src) && l.src[l.cur] != '\n' && l.src[l.cur] != '\r' {
			l.cur++
		}
		return l.token(Comment), true
	case '{':
		l.cur++
		return l.token(LCurly), true
	case '}':
		l.cur++
		return l.token(RCurly), true
	case '[':
		l.cur++
		return l.token(LBrack), true
	case ']':
		l.cur++
		return l.token(RBrack), true
	case ',':
		l.cur++
		return l.token(Comma), true
	case '=':
		l.cur++
		return l.token(Eq), true
	case '$':
		l.cur++
		if l.cur < len(l.src) && l.src[l.cur] == '$' {
			l.cur++
			return l.token(DoubleDollar), true
		}
		return l.token(Dollar), true
	case '\\':
		return l.command()
	}

	r, size := utf8.DecodeRuneInString(l.src[l.cur:])
	if r == utf8.RuneError && size <= 1 {
		l.cur++
		return l.invalid(), true
	}
	for l.cur < len(l.src) {
		c := l.src[l.cur]
		if isSpecial(c) {
			break
		}
		r, size := utf8.DecodeRuneInString(l.src[l.cur:])
		if r == utf8.RuneError && size <= 1 {
			break
		}
		l.cur += size
	}
	return l.token(Word), true
}

func (l *Lexer) command() (syntax.Token, bool) {
	l.cur++ // backslash
	if l.cur >= len(l.src) {
		return l.invalid(), true
	}
	if isLetter(l.src[l.cur]) {
		for l.cur < len(l.src) && isLetter(l.src[l.cur]) {
			l.cur++
		}
		if l.cur < len(l.src) && l.src[l.cur] == '*' {
			l.cur++
		}
		name := l.src[l.start:l.cur]
		switch name {
		case `\verb`, `\verb*`:
			l.afterVerb = true
		case `\begin`:
			l.detectVerbatim()
		}
		return l.token(CommandName), true
	}
	r, size := utf8.DecodeRuneInString(l.src[l.cur:])
	if r == utf8.RuneError && size <= 1 {
		return l.invalid(), true
	}
	l.cur += size
	return l.token(CommandName), true
}

// detectVerbatim looks for "{name}" directly behind "\begin" and arms raw
// lexing of the environment body when name is a verbatim environment.
func (l *Lexer) detectVerbatim() {
	rest := l.src[l.cur:]
	if !strings.HasPrefix(rest, "{") {
		return
	}
	end := strings.IndexByte(rest, '}')
	if end < 0 {
		return
	}
	name := rest[1:end]
	if !verbatimEnvironments[name] {
		return
	}
	l.verbatim = name
	l.verbatimStart = l.cur + end + 1
}

// verbArgument lexes "|text|" behind \verb. The argument ends at the next
// occurrence of the delimiter or at the end of the line.
func (l *Lexer) verbArgument() (syntax.Token, bool) {
	delim, size := utf8.DecodeRuneInString(l.src[l.cur:])
	if delim == utf8.RuneError || delim == '\n' || delim == '\r' || delim == ' ' || delim == '\t' || isLetter(l.src[l.cur]) {
		return syntax.Token{}, false
	}
	l.cur += size
	for l.cur < len(l.src) {
		r, n := utf8.DecodeRuneInString(l.src[l.cur:])
		if r == '\n' || r == '\r' {
			break
		}
		l.cur += n
		if r == delim {
			break
		}
	}
	return l.token(VerbatimText), true
}

func (l *Lexer) token(kind syntax.Kind) syntax.Token {
	return syntax.Token{Kind: kind, Span: syntax.Span{Start: l.start, End: l.cur}}
}

func (l *Lexer) invalid() syntax.Token {
	return syntax.Token{Kind: Invalid, Span: syntax.Span{Start: l.start, End: l.cur}, Error: true}
}

func isBlank(c byte) bool {
	return c == ' ' || c == '\t' || c == '\f' || c == '\v'
}

func isLetter(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || c == '@'
}

func isSpecial(c byte) bool {
	switch c {
	case ' ', '\t', '\f', '\v', '\n', '\r', '%', '{', '}', '[', ']', ',', '=', '$', '\\':
		return true
	}
	return false
}
