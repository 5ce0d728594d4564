package document

import (
	"fmt"

	"texlsp/internal/syntax"
)

type SymbolKind int

const (
	LabelSymbol SymbolKind = iota + 1
	EntrySymbol
	CommandSymbol
	EnvironmentSymbol
	SectionSymbol
	StringSymbol
	TheoremSymbol
	BibItemSymbol
)

var symbolKindNames = map[SymbolKind]string{
	LabelSymbol:       "label",
	EntrySymbol:       "entry",
	CommandSymbol:     "command",
	EnvironmentSymbol: "environment",
	SectionSymbol:     "section",
	StringSymbol:      "string",
	TheoremSymbol:     "theorem",
	BibItemSymbol:     "bibitem",
}

func (k SymbolKind) String() string {
	if name, ok := symbolKindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("SymbolKind(%d)", int(k))
}

// Symbol is a definition found in a single document.
type Symbol struct {
	Name   string
	Kind   SymbolKind
	URI    string
	Span   syntax.Span // the name
	Full   syntax.Span // the whole defining construct
	Detail string      // entry type, section or caption title, theorem title
	Level  int         // sectioning level
	Fields map[string]string
}

// IsCitable reports whether a citation may refer to the symbol.
func (s Symbol) IsCitable() bool {
	return s.Kind == EntrySymbol || s.Kind == BibItemSymbol
}

type ReferenceKind int

const (
	LabelReference ReferenceKind = iota + 1
	CitationReference
	CommandReference
	EnvironmentReference
	StringReference
)

// Reference is a use of a name defined elsewhere.
type Reference struct {
	Name string
	Kind ReferenceKind
	Span syntax.Span
	Full syntax.Span
}

// Targets returns the symbol kinds a reference may resolve to.
func (k ReferenceKind) Targets() []SymbolKind {
	switch k {
	case LabelReference:
		return []SymbolKind{LabelSymbol}
	case CitationReference:
		return []SymbolKind{EntrySymbol, BibItemSymbol}
	case CommandReference:
		return []SymbolKind{CommandSymbol}
	case EnvironmentReference:
		return []SymbolKind{EnvironmentSymbol, TheoremSymbol}
	case StringReference:
		return []SymbolKind{StringSymbol}
	}
	return nil
}

type LinkKind int

const (
	IncludeLink LinkKind = iota + 1
	BibliographyLink
	PackageLink
	ClassLink
)

func (k LinkKind) String() string {
	switch k {
	case IncludeLink:
		return "include"
	case BibliographyLink:
		return "bibliography"
	case PackageLink:
		return "package"
	case ClassLink:
		return "class"
	}
	return "unknown"
}

// Extension is appended to a link target when the bare name does not exist.
func (k LinkKind) Extension() string {
	switch k {
	case IncludeLink:
		return ".tex"
	case BibliographyLink:
		return ".bib"
	case PackageLink:
		return ".sty"
	case ClassLink:
		return ".cls"
	}
	return ""
}

// Link is an unresolved reference to another file.
type Link struct {
	Kind LinkKind
	Path string
	Dir  string // extra directory of \import-like commands, relative to the source
	Span syntax.Span
}

type Severity int

const (
	SeverityError Severity = iota + 1
	SeverityWarning
	SeverityInformation
	SeverityHint
)

// Code identifies the cause of a diagnostic.
type Code int

const (
	CodeUnexpectedBrace       Code = 1
	CodeMissingBrace          Code = 2
	CodeMismatchedEnvironment Code = 3
	CodeUnclosedEnvironment   Code = 4
	CodeUnclosedMath          Code = 5
	CodeInvalidCharacter      Code = 6
	CodeNestingTooDeep        Code = 7

	CodeExpectingLCurly  Code = 10
	CodeExpectingKey     Code = 11
	CodeExpectingRCurly  Code = 12
	CodeExpectingEq      Code = 13
	CodeExpectingValue   Code = 14
	CodeUnexpectedBibtex Code = 15

	CodeMissingFile Code = 20

	CodeUnresolvedReference Code = 30
	CodeUnresolvedCitation  Code = 31
	CodeDuplicateLabel      Code = 32
	CodeDuplicateEntry      Code = 33
	CodeUndefinedString     Code = 34
)

type Diagnostic struct {
	URI      string
	Span     syntax.Span
	Severity Severity
	Code     Code
	Message  string
}
