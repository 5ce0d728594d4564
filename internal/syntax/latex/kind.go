// Package latex implements the lexer and error-tolerant parser for LaTeX sources.
package latex

import "texlsp/internal/syntax"

// Token kinds.
const (
	Whitespace syntax.Kind = iota + 1
	LineBreak
	Comment
	LCurly
	RCurly
	LBrack
	RBrack
	Comma
	Eq
	Word
	Dollar
	DoubleDollar
	CommandName
	VerbatimText
	Invalid
)

// Node kinds.
const (
	Root syntax.Kind = iota + 64
	Text
	CurlyGroup
	BrackGroup
	Key
	KeyList
	Command
	Environment
	Begin
	End
	Verbatim
	InlineMath
	DisplayMath
	Section
	LabelDefinition
	LabelReference
	LabelReferenceRange
	Citation
	BibItem
	LatexInclude
	BibtexInclude
	BiblatexInclude
	PackageInclude
	ClassInclude
	Import
	CommandDefinition
	EnvironmentDefinition
	TheoremDefinition
	Caption
)

var kindNames = map[syntax.Kind]string{
	syntax.Error:          "Error",
	Whitespace:            "Whitespace",
	LineBreak:             "LineBreak",
	Comment:               "Comment",
	LCurly:                "LCurly",
	RCurly:                "RCurly",
	LBrack:                "LBrack",
	RBrack:                "RBrack",
	Comma:                 "Comma",
	Eq:                    "Eq",
	Word:                  "Word",
	Dollar:                "Dollar",
	DoubleDollar:          "DoubleDollar",
	CommandName:           "CommandName",
	VerbatimText:          "VerbatimText",
	Invalid:               "Invalid",
	Root:                  "Root",
	Text:                  "Text",
	CurlyGroup:            "CurlyGroup",
	BrackGroup:            "BrackGroup",
	Key:                   "Key",
	KeyList:               "KeyList",
	Command:               "Command",
	Environment:           "Environment",
	Begin:                 "Begin",
	End:                   "End",
	Verbatim:              "Verbatim",
	InlineMath:            "InlineMath",
	DisplayMath:           "DisplayMath",
	Section:               "Section",
	LabelDefinition:       "LabelDefinition",
	LabelReference:        "LabelReference",
	LabelReferenceRange:   "LabelReferenceRange",
	Citation:              "Citation",
	BibItem:               "BibItem",
	LatexInclude:          "LatexInclude",
	BibtexInclude:         "BibtexInclude",
	BiblatexInclude:       "BiblatexInclude",
	PackageInclude:        "PackageInclude",
	ClassInclude:          "ClassInclude",
	Import:                "Import",
	CommandDefinition:     "CommandDefinition",
	EnvironmentDefinition: "EnvironmentDefinition",
	TheoremDefinition:     "TheoremDefinition",
	Caption:               "Caption",
}

// KindName returns a readable name for debugging output and tests.
func KindName(k syntax.Kind) string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "Unknown"
}

// IsTrivia reports whether tokens of kind k carry no syntactic meaning.
func IsTrivia(k syntax.Kind) bool {
	return k == Whitespace || k == LineBreak || k == Comment
}
