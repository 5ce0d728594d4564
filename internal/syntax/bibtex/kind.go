// Package bibtex implements the lexer and error-tolerant parser for BibTeX
// bibliography files.
package bibtex

import "texlsp/internal/syntax"

// Token kinds.
const (
	Whitespace syntax.Kind = iota + 1
	Type
	LCurly
	RCurly
	LParen
	RParen
	Comma
	Eq
	Hash
	Quote
	Word
	Number
	CommandName
	Invalid
)

// Node kinds.
const (
	Root syntax.Kind = iota + 64
	Junk
	Entry
	StringDef
	Preamble
	CommentEntry
	Key
	Field
	Value
	CurlyGroup
	QuoteGroup
	Literal
)

var kindNames = map[syntax.Kind]string{
	syntax.Error: "Error",
	Whitespace:   "Whitespace",
	Type:         "Type",
	LCurly:       "LCurly",
	RCurly:       "RCurly",
	LParen:       "LParen",
	RParen:       "RParen",
	Comma:        "Comma",
	Eq:           "Eq",
	Hash:         "Hash",
	Quote:        "Quote",
	Word:         "Word",
	Number:       "Number",
	CommandName:  "CommandName",
	Invalid:      "Invalid",
	Root:         "Root",
	Junk:         "Junk",
	Entry:        "Entry",
	StringDef:    "StringDef",
	Preamble:     "Preamble",
	CommentEntry: "CommentEntry",
	Key:          "Key",
	Field:        "Field",
	Value:        "Value",
	CurlyGroup:   "CurlyGroup",
	QuoteGroup:   "QuoteGroup",
	Literal:      "Literal",
}

func KindName(k syntax.Kind) string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "Unknown"
}
