package bibtex

import (
	"math"
	"strings"

	"texlsp/internal/syntax"
)

const eofKind syntax.Kind = math.MaxUint16

// maxNesting bounds the depth of nested curly group nodes. Braces below it
// stay tokens of the innermost group, balanced but without nodes of their own.
const maxNesting = 256

type parser struct {
	src    string
	tokens []syntax.Token
	pos    int
	b      *syntax.Builder
	depth  int
}

// Parse builds the lossless tree of a BibTeX source. Every @type token starts
// a new entry, so a malformed entry never swallows the ones after it.
// The cache may be nil.
func Parse(src string, cache *syntax.NodeCache) *syntax.Green {
	p := &parser{
		src:    src,
		tokens: Tokenize(src),
		b:      syntax.NewBuilder(cache),
	}
	p.b.StartNode(Root)
	for !p.eof() {
		if !p.at(Type) {
			p.junk()
			continue
		}
		switch strings.ToLower(p.text()[1:]) {
		case "string":
			p.stringDef()
		case "preamble":
			p.preamble()
		case "comment":
			p.commentEntry()
		default:
			p.entry()
		}
	}
	p.b.FinishNode()
	return p.b.Finish()
}

func (p *parser) eof() bool {
	return p.pos >= len(p.tokens)
}

func (p *parser) peek() syntax.Kind {
	if p.eof() {
		return eofKind
	}
	return p.tokens[p.pos].Kind
}

func (p *parser) at(kind syntax.Kind) bool {
	return p.peek() == kind
}

func (p *parser) text() string {
	return p.tokens[p.pos].Text(p.src)
}

func (p *parser) bump() {
	tok := p.tokens[p.pos]
	p.b.Token(tok.Kind, tok.Text(p.src))
	p.pos++
}

func (p *parser) trivia() {
	for p.at(Whitespace) {
		p.bump()
	}
}

func (p *parser) ahead(kind syntax.Kind) bool {
	j := p.pos
	for j < len(p.tokens) && p.tokens[j].Kind == Whitespace {
		j++
	}
	return j < len(p.tokens) && p.tokens[j].Kind == kind
}

func (p *parser) errorToken() {
	p.b.StartNode(syntax.Error)
	p.bump()
	p.b.FinishNode()
}

func (p *parser) junk() {
	p.b.StartNode(Junk)
	for !p.eof() && !p.at(Type) {
		p.bump()
	}
	p.b.FinishNode()
}

// open consumes the entry delimiter and returns the matching closing kind.
func (p *parser) open() (syntax.Kind, bool) {
	p.trivia()
	switch p.peek() {
	case LCurly:
		p.bump()
		return RCurly, true
	case LParen:
		p.bump()
		return RParen, true
	}
	return 0, false
}

// recover wraps everything up to the closing delimiter or the next entry in
// error nodes and consumes the delimiter.
func (p *parser) recover(closer syntax.Kind) {
	for !p.eof() && !p.at(Type) && !p.at(closer) {
		if p.at(Whitespace) {
			p.bump()
			continue
		}
		p.errorToken()
	}
	if p.at(closer) {
		p.bump()
	}
}

func (p *parser) key() {
	p.b.StartNode(Key)
	p.bump()
	p.b.FinishNode()
}

func (p *parser) entry() {
	p.b.StartNode(Entry)
	defer p.b.FinishNode()
	p.bump()
	closer, ok := p.open()
	if !ok {
		return
	}
	p.trivia()
	if p.at(Word) || p.at(Number) {
		p.key()
	}
	for {
		p.trivia()
		switch p.peek() {
		case eofKind, Type:
			return
		case closer:
			p.bump()
			return
		case Word:
			p.field()
		case Comma:
			p.bump()
		default:
			p.errorToken()
		}
	}
}

func (p *parser) field() {
	p.b.StartNode(Field)
	p.bump()
	if p.ahead(Eq) {
		p.trivia()
		p.bump()
		if p.startsValueAhead() {
			p.trivia()
			p.value()
		}
	}
	p.b.FinishNode()
}

func (p *parser) stringDef() {
	p.b.StartNode(StringDef)
	defer p.b.FinishNode()
	p.bump()
	closer, ok := p.open()
	if !ok {
		return
	}
	p.trivia()
	if p.at(Word) {
		p.key()
	}
	if p.ahead(Eq) {
		p.trivia()
		p.bump()
		if p.startsValueAhead() {
			p.trivia()
			p.value()
		}
	}
	p.recover(closer)
}

func (p *parser) preamble() {
	p.b.StartNode(Preamble)
	defer p.b.FinishNode()
	p.bump()
	closer, ok := p.open()
	if !ok {
		return
	}
	if p.startsValueAhead() {
		p.trivia()
		p.value()
	}
	p.recover(closer)
}

func (p *parser) commentEntry() {
	p.b.StartNode(CommentEntry)
	p.bump()
	for !p.eof() && !p.at(Type) {
		p.bump()
	}
	p.b.FinishNode()
}

func startsValue(kind syntax.Kind) bool {
	switch kind {
	case LCurly, Quote, Word, Number:
		return true
	}
	return false
}

func (p *parser) startsValueAhead() bool {
	j := p.pos
	for j < len(p.tokens) && p.tokens[j].Kind == Whitespace {
		j++
	}
	return j < len(p.tokens) && startsValue(p.tokens[j].Kind)
}

// value parses terms joined by #.
func (p *parser) value() {
	p.b.StartNode(Value)
	p.term()
	for p.ahead(Hash) {
		p.trivia()
		p.bump()
		if !p.startsValueAhead() {
			break
		}
		p.trivia()
		p.term()
	}
	p.b.FinishNode()
}

func (p *parser) term() {
	switch p.peek() {
	case LCurly:
		p.curlyGroup()
	case Quote:
		p.quoteGroup()
	default:
		p.b.StartNode(Literal)
		p.bump()
		p.b.FinishNode()
	}
}

func (p *parser) curlyGroup() {
	p.b.StartNode(CurlyGroup)
	p.bump()
	p.depth++
	defer func() { p.depth-- }()
	flat := 0
	for !p.eof() && !p.at(Type) {
		switch p.peek() {
		case RCurly:
			p.bump()
			if flat == 0 {
				p.b.FinishNode()
				return
			}
			flat--
		case LCurly:
			if p.depth >= maxNesting {
				p.bump()
				flat++
				continue
			}
			p.curlyGroup()
		default:
			p.bump()
		}
	}
	p.b.FinishNode()
}

// quoteGroup stops before a closing brace at depth zero, which most likely
// closes the entry of an unterminated quote.
func (p *parser) quoteGroup() {
	p.b.StartNode(QuoteGroup)
	p.bump()
loop:
	for !p.eof() && !p.at(Type) {
		switch p.peek() {
		case Quote:
			p.bump()
			break loop
		case RCurly:
			break loop
		case LCurly:
			p.curlyGroup()
		default:
			p.bump()
		}
	}
	p.b.FinishNode()
}
