// Package document holds the parsed state of a single source file for one
// revision: text, lossless tree, extracted symbols, references, links and
// syntax diagnostics. Documents are immutable; every edit produces a new one.
package document

import (
	"path/filepath"
	"time"

	"github.com/tliron/commonlog"

	"texlsp/internal/syntax"
	"texlsp/internal/syntax/bibtex"
	"texlsp/internal/syntax/latex"
)

var log = commonlog.GetLogger("texlsp.document")

type Document struct {
	URI      string
	Path     string // empty for non-file URIs
	Revision int64
	Version  int32 // editor version, zero for documents read from disk
	Language Language
	Text     string
	Green    *syntax.Green
	Lines    *LineIndex

	Symbols     []Symbol
	References  []Reference
	Links       []Link
	Diagnostics []Diagnostic // syntax diagnostics only
}

type Params struct {
	URI      string
	Revision int64
	Version  int32
	Language Language
	Text     string
	Cache    *syntax.NodeCache // shared with earlier revisions of the same URI, may be nil
}

// Parse lexes and parses the text and extracts everything a document knows
// about itself. It never fails.
func Parse(params Params) *Document {
	start := time.Now()
	doc := &Document{
		URI:      params.URI,
		Revision: params.Revision,
		Version:  params.Version,
		Language: params.Language,
		Text:     params.Text,
		Lines:    NewLineIndex(params.Text),
	}
	if path, err := PathFromURI(params.URI); err == nil {
		doc.Path = path
	}

	switch params.Language {
	case BibTeX:
		doc.Green = bibtex.Parse(params.Text, params.Cache)
		extractBibtex(doc)
	default:
		doc.Language = LaTeX
		doc.Green = latex.Parse(params.Text, params.Cache)
		extractLatex(doc)
	}

	log.Debugf("parsed %s rev %d in %s (%d symbols, %d links)",
		doc.URI, doc.Revision, time.Since(start), len(doc.Symbols), len(doc.Links))
	return doc
}

// Root returns a cursor at the root of the syntax tree.
func (d *Document) Root() *syntax.Node {
	return syntax.NewRoot(d.Green)
}

// Dir returns the directory of the document's file.
func (d *Document) Dir() string {
	if d.Path == "" {
		return ""
	}
	return filepath.Dir(d.Path)
}

// Range converts a byte span of this document.
func (d *Document) Range(span syntax.Span) Range {
	return d.Lines.Range(span)
}

// Offset converts an editor position of this document.
func (d *Document) Offset(pos Position) int {
	return d.Lines.Offset(pos)
}

// SymbolsOf returns the symbols of the given kinds in document order.
func (d *Document) SymbolsOf(kinds ...SymbolKind) []Symbol {
	var out []Symbol
	for _, s := range d.Symbols {
		for _, k := range kinds {
			if s.Kind == k {
				out = append(out, s)
				break
			}
		}
	}
	return out
}

// ReferencesOf returns the references of the given kind in document order.
func (d *Document) ReferencesOf(kind ReferenceKind) []Reference {
	var out []Reference
	for _, r := range d.References {
		if r.Kind == kind {
			out = append(out, r)
		}
	}
	return out
}

func (d *Document) diagnose(span syntax.Span, code Code, msg string) {
	d.Diagnostics = append(d.Diagnostics, Diagnostic{
		URI:      d.URI,
		Span:     span,
		Severity: SeverityError,
		Code:     code,
		Message:  msg,
	})
}

// emptyAt returns an empty span at offset.
func emptyAt(offset int) syntax.Span {
	return syntax.Span{Start: offset, End: offset}
}
