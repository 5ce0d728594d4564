package latex

import (
	"strings"

	"texlsp/internal/syntax"
)

// KeyName returns the words of a Key node joined with single spaces.
func KeyName(key *syntax.Node) string {
	var words []string
	for _, tok := range key.Tokens() {
		if tok.Kind() == Word {
			words = append(words, tok.Text())
		}
	}
	return strings.Join(words, " ")
}

// Keys returns the keys of a key group, in order.
func Keys(group *syntax.Node) []*syntax.Node {
	if group == nil {
		return nil
	}
	if list := group.FirstChild(KeyList); list != nil {
		return list.ChildrenOfKind(Key)
	}
	return group.ChildrenOfKind(Key)
}

// CurlyGroups returns the curly group arguments of a command node.
func CurlyGroups(cmd *syntax.Node) []*syntax.Node {
	return cmd.ChildrenOfKind(CurlyGroup)
}

// NthKeys returns the keys of the n-th curly group argument of cmd.
func NthKeys(cmd *syntax.Node, n int) []*syntax.Node {
	groups := CurlyGroups(cmd)
	if n >= len(groups) {
		return nil
	}
	return Keys(groups[n])
}

// CommandNameOf returns the command token of a command-like node including
// the backslash, or "" if there is none.
func CommandNameOf(cmd *syntax.Node) string {
	if tok := cmd.FirstChild(CommandName); tok != nil {
		return tok.Text()
	}
	return ""
}

// EnvironmentName returns the name key of an Environment, Begin or End node.
func EnvironmentName(n *syntax.Node) *syntax.Node {
	switch n.Kind() {
	case Environment:
		n = n.FirstChild(Begin)
	}
	if n == nil {
		return nil
	}
	keys := NthKeys(n, 0)
	if len(keys) == 0 {
		return nil
	}
	return keys[0]
}

// GroupText returns the text inside a group without its delimiters, with
// runs of whitespace collapsed and comments dropped.
func GroupText(group *syntax.Node) string {
	if group == nil {
		return ""
	}
	var sb strings.Builder
	for _, tok := range group.Tokens() {
		switch {
		case tok.Parent().Green() == group.Green() && (tok.Kind() == LCurly || tok.Kind() == RCurly || tok.Kind() == LBrack || tok.Kind() == RBrack):
		case tok.Kind() == Comment:
		case IsTrivia(tok.Kind()):
			sb.WriteByte(' ')
		default:
			sb.WriteString(tok.Text())
		}
	}
	return strings.Join(strings.Fields(sb.String()), " ")
}

var sectionLevels = map[string]int{
	`\part`:          -1,
	`\chapter`:       0,
	`\section`:       1,
	`\subsection`:    2,
	`\subsubsection`: 3,
	`\paragraph`:     4,
	`\subparagraph`:  5,
}

// SectionLevel returns the nesting level of a sectioning command.
func SectionLevel(name string) (int, bool) {
	level, ok := sectionLevels[strings.TrimSuffix(name, "*")]
	return level, ok
}

// IsMath reports whether kind is a math span.
func IsMath(kind syntax.Kind) bool {
	return kind == InlineMath || kind == DisplayMath
}
