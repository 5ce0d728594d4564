package latex

import (
	"math"
	"strings"

	"texlsp/internal/syntax"
)

const eofKind syntax.Kind = math.MaxUint16

type shape uint8

const (
	shapeLabel shape = iota + 1
	shapeRef
	shapeRefRange
	shapeCite
	shapeBibItem
	shapeInclude
	shapeBibtex
	shapeBiblatex
	shapePackage
	shapeClass
	shapeImport
	shapeNewCommand
	shapeDef
	shapeNewEnvironment
	shapeNewTheorem
	shapeDeclareTheorem
	shapeCaption
	shapeSection
	shapeVerb
)

// commandShapes maps command names (without a trailing star) to the grammar
// of their arguments. Commands not listed here are parsed generically.
var commandShapes = map[string]shape{
	`\label`: shapeLabel,

	`\ref`: shapeRef, `\eqref`: shapeRef, `\autoref`: shapeRef, `\pageref`: shapeRef,
	`\cref`: shapeRef, `\Cref`: shapeRef, `\cpageref`: shapeRef, `\Cpageref`: shapeRef,
	`\nameref`: shapeRef, `\Nameref`: shapeRef, `\vref`: shapeRef, `\Vref`: shapeRef,
	`\labelcref`: shapeRef, `\subref`: shapeRef,

	`\crefrange`: shapeRefRange, `\Crefrange`: shapeRefRange,
	`\cpagerefrange`: shapeRefRange, `\Cpagerefrange`: shapeRefRange,

	`\cite`: shapeCite, `\Cite`: shapeCite, `\nocite`: shapeCite, `\citep`: shapeCite,
	`\citet`: shapeCite, `\citealp`: shapeCite, `\citealt`: shapeCite, `\citeauthor`: shapeCite,
	`\Citeauthor`: shapeCite, `\citeyear`: shapeCite, `\citeyearpar`: shapeCite, `\citetitle`: shapeCite,
	`\parencite`: shapeCite, `\Parencite`: shapeCite, `\textcite`: shapeCite, `\Textcite`: shapeCite,
	`\autocite`: shapeCite, `\Autocite`: shapeCite, `\footcite`: shapeCite, `\footcitetext`: shapeCite,
	`\fullcite`: shapeCite, `\smartcite`: shapeCite, `\Smartcite`: shapeCite, `\supercite`: shapeCite,
	`\citeurl`: shapeCite, `\citedate`: shapeCite,

	`\bibitem`: shapeBibItem,

	`\input`: shapeInclude, `\include`: shapeInclude, `\subfile`: shapeInclude,
	`\subfileinclude`: shapeInclude, `\InputIfFileExists`: shapeInclude,

	`\bibliography`: shapeBibtex,

	`\addbibresource`: shapeBiblatex, `\addglobalbib`: shapeBiblatex,

	`\usepackage`: shapePackage, `\RequirePackage`: shapePackage,

	`\documentclass`: shapeClass, `\LoadClass`: shapeClass,

	`\import`: shapeImport, `\subimport`: shapeImport, `\inputfrom`: shapeImport,
	`\subinputfrom`: shapeImport, `\includefrom`: shapeImport, `\subincludefrom`: shapeImport,

	`\newcommand`: shapeNewCommand, `\renewcommand`: shapeNewCommand, `\providecommand`: shapeNewCommand,
	`\DeclareRobustCommand`: shapeNewCommand, `\DeclareMathOperator`: shapeNewCommand,

	`\def`: shapeDef, `\gdef`: shapeDef, `\edef`: shapeDef, `\xdef`: shapeDef,

	`\newenvironment`: shapeNewEnvironment, `\renewenvironment`: shapeNewEnvironment,

	`\newtheorem`:     shapeNewTheorem,
	`\declaretheorem`: shapeDeclareTheorem,

	`\caption`: shapeCaption,

	`\part`: shapeSection, `\chapter`: shapeSection, `\section`: shapeSection,
	`\subsection`: shapeSection, `\subsubsection`: shapeSection,
	`\paragraph`: shapeSection, `\subparagraph`: shapeSection,

	`\verb`: shapeVerb,
}

type frameKind uint8

const (
	frameCurly frameKind = iota
	frameBrack
	frameMath
	frameEnv
)

// frame is an open construct that some later token may close.
type frame struct {
	kind      frameKind
	closeKind syntax.Kind // math delimiter
	closeText string      // text of a command delimiter such as \)
	name      string      // environment name
}

// maxNesting bounds the number of open frames. Openers beyond it are wrapped
// in Error nodes, which keeps the tree depth and every recursive walk over
// it bounded.
const maxNesting = 256

type parser struct {
	src    string
	tokens []syntax.Token
	pos    int
	b      *syntax.Builder
	frames []frame

	curlies int            // open curly frames
	envs    map[string]int // open environment frames by name
	solid   []int          // indices of the open frames that are not brackets
}

// Parse builds the lossless tree of a LaTeX source. It never fails; malformed
// input ends up in Error nodes or in constructs missing their closing token.
// The cache may be nil.
func Parse(src string, cache *syntax.NodeCache) *syntax.Green {
	p := &parser{
		src:    src,
		tokens: Tokenize(src),
		b:      syntax.NewBuilder(cache),
		envs:   make(map[string]int),
	}
	p.b.StartNode(Root)
	p.content()
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

func (p *parser) textAt(i int) string {
	return p.tokens[i].Text(p.src)
}

func (p *parser) bump() {
	tok := p.tokens[p.pos]
	p.b.Token(tok.Kind, tok.Text(p.src))
	p.pos++
}

func (p *parser) trivia() {
	for !p.eof() && IsTrivia(p.peek()) {
		p.bump()
	}
}

// ahead reports whether the next non-trivia token has the given kind. No
// tokens are consumed.
func (p *parser) ahead(kind syntax.Kind) bool {
	j := p.pos
	for j < len(p.tokens) && IsTrivia(p.tokens[j].Kind) {
		j++
	}
	return j < len(p.tokens) && p.tokens[j].Kind == kind
}

// groupNameAfter reads the name in "{name}" following the token at index i,
// skipping trivia. Words are joined with single spaces.
func (p *parser) groupNameAfter(i int) (string, bool) {
	j := i + 1
	for j < len(p.tokens) && IsTrivia(p.tokens[j].Kind) {
		j++
	}
	if j >= len(p.tokens) || p.tokens[j].Kind != LCurly {
		return "", false
	}
	var words []string
	for j++; j < len(p.tokens); j++ {
		switch p.tokens[j].Kind {
		case Word:
			words = append(words, p.textAt(j))
		case Whitespace, LineBreak:
		case RCurly:
			return strings.Join(words, " "), true
		default:
			return "", false
		}
	}
	return "", false
}

func (p *parser) isEnd(name string) bool {
	if !p.at(CommandName) || p.textAt(p.pos) != `\end` {
		return false
	}
	got, ok := p.groupNameAfter(p.pos)
	return ok && got == name
}

func (p *parser) closesMath(f frame) bool {
	if !p.at(f.closeKind) {
		return false
	}
	return f.closeText == "" || p.textAt(p.pos) == f.closeText
}

// stops reports whether the current token closes one of the open frames.
// A closing brace closes any enclosing group and \end{x} any enclosing
// environment x, skipping over the frames in between. Brackets and math
// delimiters only close the innermost frame; bracket groups are transparent
// so a math delimiter still closes math around an unterminated [.
func (p *parser) stops() bool {
	if p.eof() {
		return true
	}
	switch p.peek() {
	case RCurly:
		return p.curlies > 0
	case RBrack:
		return len(p.frames) > 0 && p.frames[len(p.frames)-1].kind == frameBrack
	case Dollar, DoubleDollar:
		return p.innerMathCloses()
	case CommandName:
		if p.innerMathCloses() {
			return true
		}
		if len(p.envs) == 0 || p.textAt(p.pos) != `\end` {
			return false
		}
		name, ok := p.groupNameAfter(p.pos)
		return ok && p.envs[name] > 0
	}
	return false
}

// innerMathCloses reports whether the innermost frame that is not a bracket
// group is math closed by the current token.
func (p *parser) innerMathCloses() bool {
	if len(p.solid) == 0 {
		return false
	}
	f := p.frames[p.solid[len(p.solid)-1]]
	return f.kind == frameMath && p.closesMath(f)
}

func (p *parser) push(f frame) {
	switch f.kind {
	case frameCurly:
		p.curlies++
	case frameEnv:
		p.envs[f.name]++
	}
	if f.kind != frameBrack {
		p.solid = append(p.solid, len(p.frames))
	}
	p.frames = append(p.frames, f)
}

func (p *parser) pop() {
	f := p.frames[len(p.frames)-1]
	switch f.kind {
	case frameCurly:
		p.curlies--
	case frameEnv:
		if p.envs[f.name]--; p.envs[f.name] == 0 {
			delete(p.envs, f.name)
		}
	}
	if f.kind != frameBrack {
		p.solid = p.solid[:len(p.solid)-1]
	}
	p.frames = p.frames[:len(p.frames)-1]
}

// opens reports whether the current token would open a new frame, either
// directly or through the groups of a command.
func (p *parser) opens() bool {
	switch p.peek() {
	case LCurly, Dollar, DoubleDollar:
		return true
	case CommandName:
		switch p.textAt(p.pos) {
		case `\begin`, `\(`, `\[`:
			return true
		}
		j := p.pos + 1
		for j < len(p.tokens) && IsTrivia(p.tokens[j].Kind) {
			j++
		}
		return j < len(p.tokens) && (p.tokens[j].Kind == LCurly || p.tokens[j].Kind == LBrack)
	}
	return false
}

func (p *parser) content() {
	for !p.stops() {
		if len(p.frames) >= maxNesting && p.opens() {
			p.errorToken()
			continue
		}
		switch p.peek() {
		case LCurly:
			p.curlyGroup()
		case RCurly:
			p.errorToken()
		case Dollar:
			p.math(InlineMath, Dollar, "")
		case DoubleDollar:
			p.math(DisplayMath, DoubleDollar, "")
		case CommandName:
			p.command()
		default:
			p.text()
		}
	}
}

func (p *parser) text() {
	p.b.StartNode(Text)
loop:
	for !p.stops() {
		switch p.peek() {
		case LCurly, RCurly, Dollar, DoubleDollar, CommandName:
			break loop
		}
		p.bump()
	}
	p.b.FinishNode()
}

func (p *parser) errorToken() {
	p.b.StartNode(syntax.Error)
	p.bump()
	p.b.FinishNode()
}

func (p *parser) curlyGroup() {
	p.b.StartNode(CurlyGroup)
	p.bump()
	p.push(frame{kind: frameCurly})
	p.content()
	p.pop()
	if p.at(RCurly) {
		p.bump()
	}
	p.b.FinishNode()
}

func (p *parser) brackGroup() {
	p.b.StartNode(BrackGroup)
	p.bump()
	p.push(frame{kind: frameBrack})
	p.content()
	p.pop()
	if p.at(RBrack) {
		p.bump()
	}
	p.b.FinishNode()
}

// keyGroup parses a curly group holding a key or a comma separated list of
// keys. Anything else inside the group is parsed as ordinary content.
func (p *parser) keyGroup(list bool) {
	p.b.StartNode(CurlyGroup)
	p.bump()
	p.push(frame{kind: frameCurly})
	if list {
		p.keyList()
	} else {
		p.trivia()
		if p.at(Word) {
			p.key()
		}
		p.trivia()
	}
	p.content()
	p.pop()
	if p.at(RCurly) {
		p.bump()
	}
	p.b.FinishNode()
}

func (p *parser) keyList() {
	p.b.StartNode(KeyList)
loop:
	for !p.stops() {
		switch p.peek() {
		case Word:
			p.key()
		case Comma, Whitespace, LineBreak, Comment:
			p.bump()
		default:
			break loop
		}
	}
	p.b.FinishNode()
}

// key consumes words separated by whitespace. Trailing whitespace is left
// for the caller.
func (p *parser) key() {
	p.b.StartNode(Key)
	p.bump()
	for {
		j := p.pos
		for j < len(p.tokens) && (p.tokens[j].Kind == Whitespace || p.tokens[j].Kind == LineBreak) {
			j++
		}
		if j >= len(p.tokens) || p.tokens[j].Kind != Word {
			break
		}
		for p.pos <= j {
			p.bump()
		}
	}
	p.b.FinishNode()
}

func (p *parser) optBrack() {
	if p.ahead(LBrack) {
		p.trivia()
		p.brackGroup()
	}
}

func (p *parser) curlyArg() {
	if p.ahead(LCurly) {
		p.trivia()
		p.curlyGroup()
	}
}

func (p *parser) keyArg(list bool) {
	if p.ahead(LCurly) {
		p.trivia()
		p.keyGroup(list)
	}
}

func (p *parser) command() {
	name := p.textAt(p.pos)
	switch name {
	case `\begin`:
		p.environment()
		return
	case `\end`:
		// no open environment matches, otherwise content would have stopped
		p.b.StartNode(syntax.Error)
		p.end()
		p.b.FinishNode()
		return
	case `\(`:
		p.math(InlineMath, CommandName, `\)`)
		return
	case `\[`:
		p.math(DisplayMath, CommandName, `\]`)
		return
	}

	switch commandShapes[strings.TrimSuffix(name, "*")] {
	case shapeLabel:
		p.node(LabelDefinition, func() { p.keyArg(false) })
	case shapeRef:
		p.node(LabelReference, func() { p.keyArg(true) })
	case shapeRefRange:
		p.node(LabelReferenceRange, func() {
			p.keyArg(false)
			p.keyArg(false)
		})
	case shapeCite:
		p.node(Citation, func() {
			p.optBrack()
			p.optBrack()
			p.keyArg(true)
		})
	case shapeBibItem:
		p.node(BibItem, func() {
			p.optBrack()
			p.keyArg(false)
		})
	case shapeInclude:
		p.node(LatexInclude, func() { p.keyArg(true) })
	case shapeBibtex:
		p.node(BibtexInclude, func() { p.keyArg(true) })
	case shapeBiblatex:
		p.node(BiblatexInclude, func() {
			p.optBrack()
			p.keyArg(true)
		})
	case shapePackage:
		p.node(PackageInclude, func() {
			p.optBrack()
			p.keyArg(true)
			p.optBrack()
		})
	case shapeClass:
		p.node(ClassInclude, func() {
			p.optBrack()
			p.keyArg(false)
		})
	case shapeImport:
		p.node(Import, func() {
			p.keyArg(false)
			p.keyArg(false)
		})
	case shapeNewCommand:
		p.node(CommandDefinition, func() {
			p.definedCommandName()
			p.optBrack()
			p.optBrack()
			p.curlyArg()
		})
	case shapeDef:
		p.node(CommandDefinition, func() {
			if p.ahead(CommandName) {
				p.trivia()
				p.bump()
			}
			for p.at(Word) {
				p.bump()
			}
			p.curlyArg()
		})
	case shapeNewEnvironment:
		p.node(EnvironmentDefinition, func() {
			p.keyArg(false)
			p.optBrack()
			p.optBrack()
			p.curlyArg()
			p.curlyArg()
		})
	case shapeNewTheorem:
		p.node(TheoremDefinition, func() {
			p.keyArg(false)
			p.optBrack()
			p.curlyArg()
			p.optBrack()
		})
	case shapeDeclareTheorem:
		p.node(TheoremDefinition, func() {
			p.optBrack()
			p.keyArg(false)
			p.optBrack()
		})
	case shapeCaption:
		p.node(Caption, func() {
			p.optBrack()
			p.curlyArg()
		})
	case shapeSection:
		p.node(Section, func() {
			p.optBrack()
			p.curlyArg()
		})
	case shapeVerb:
		p.node(Command, func() {
			if p.at(VerbatimText) {
				p.bump()
			}
		})
	default:
		p.genericCommand()
	}
}

// node wraps the command token and the arguments parsed by args.
func (p *parser) node(kind syntax.Kind, args func()) {
	p.b.StartNode(kind)
	p.bump()
	args()
	p.b.FinishNode()
}

// genericCommand takes all groups that follow the command name.
func (p *parser) genericCommand() {
	p.b.StartNode(Command)
	p.bump()
	for {
		if p.ahead(LCurly) {
			p.trivia()
			p.curlyGroup()
		} else if p.ahead(LBrack) {
			p.trivia()
			p.brackGroup()
		} else {
			break
		}
	}
	p.b.FinishNode()
}

// definedCommandName parses the name argument of \newcommand, either a bare
// command name or a command name in braces.
func (p *parser) definedCommandName() {
	if p.ahead(CommandName) {
		p.trivia()
		p.bump()
		return
	}
	if !p.ahead(LCurly) {
		return
	}
	p.trivia()
	p.b.StartNode(CurlyGroup)
	p.bump()
	p.push(frame{kind: frameCurly})
	p.trivia()
	if p.at(CommandName) {
		p.bump()
	}
	p.content()
	p.pop()
	if p.at(RCurly) {
		p.bump()
	}
	p.b.FinishNode()
}

func (p *parser) environment() {
	p.b.StartNode(Environment)
	name, ok := p.begin()
	if p.at(VerbatimText) {
		p.b.StartNode(Verbatim)
		p.bump()
		p.b.FinishNode()
	} else {
		if !ok {
			// an environment without a readable name can only be closed from outside
			name = "\x00"
		}
		p.push(frame{kind: frameEnv, name: name})
		p.content()
		p.pop()
	}
	if p.isEnd(name) {
		p.end()
	}
	p.b.FinishNode()
}

func (p *parser) begin() (string, bool) {
	p.b.StartNode(Begin)
	name, ok := p.groupNameAfter(p.pos)
	p.bump()
	p.keyArg(false)
	for {
		if p.at(LBrack) {
			p.brackGroup()
		} else if p.at(LCurly) {
			p.curlyGroup()
		} else {
			break
		}
	}
	p.b.FinishNode()
	return name, ok
}

func (p *parser) end() {
	p.b.StartNode(End)
	p.bump()
	p.keyArg(false)
	p.b.FinishNode()
}

func (p *parser) math(kind, closeKind syntax.Kind, closeText string) {
	f := frame{kind: frameMath, closeKind: closeKind, closeText: closeText}
	p.b.StartNode(kind)
	p.bump()
	p.push(f)
	p.content()
	p.pop()
	if p.closesMath(f) {
		p.bump()
	}
	p.b.FinishNode()
}
