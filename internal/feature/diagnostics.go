package feature

import (
	"fmt"
	"sort"

	"texlsp/internal/cache"
	"texlsp/internal/document"
)

type Diagnostic struct {
	Range    document.Range
	Severity document.Severity
	Code     document.Code
	Message  string
}

// bibtex predefines the month abbreviations as strings.
var predefinedStrings = map[string]bool{
	"jan": true, "feb": true, "mar": true, "apr": true, "may": true, "jun": true,
	"jul": true, "aug": true, "sep": true, "oct": true, "nov": true, "dec": true,
}

// Diagnostics returns the diagnostics of every document reachable from uri:
// stored syntax diagnostics, missing files, unresolved names and duplicate
// definitions. Duplicates are judged in reachability order, the first
// definition wins.
func (e *Engine) Diagnostics(uri string) (map[string][]Diagnostic, error) {
	if _, err := e.document(uri); err != nil {
		return nil, err
	}
	value := e.cache.Get(uri, cache.ProjectDiagnostics, func() (any, cache.Deps) {
		deps := cache.Deps{uri: -1}
		docs := e.ws.ReachableFrom(uri)
		for _, doc := range docs {
			deps[doc.URI] = doc.Revision
		}
		return e.project(docs), deps
	})
	return value.(map[string][]Diagnostic), nil
}

func (e *Engine) project(docs []*document.Document) map[string][]Diagnostic {
	out := make(map[string][]Diagnostic, len(docs))
	add := func(doc *document.Document, d document.Diagnostic) {
		out[doc.URI] = append(out[doc.URI], Diagnostic{
			Range:    doc.Range(d.Span),
			Severity: d.Severity,
			Code:     d.Code,
			Message:  d.Message,
		})
	}
	warn := func(doc *document.Document, s document.Symbol, code document.Code, format string) {
		add(doc, document.Diagnostic{
			URI:      doc.URI,
			Span:     s.Span,
			Severity: document.SeverityWarning,
			Code:     code,
			Message:  fmt.Sprintf(format, s.Name),
		})
	}

	labels := make(map[string]bool)
	entries := make(map[string]bool)
	for _, doc := range docs {
		out[doc.URI] = []Diagnostic{}
		for _, d := range doc.Diagnostics {
			add(doc, d)
		}
		for _, d := range e.ws.LinkDiagnostics(doc.URI) {
			add(doc, d)
		}
		for _, s := range doc.Symbols {
			switch s.Kind {
			case document.LabelSymbol:
				if labels[s.Name] {
					warn(doc, s, document.CodeDuplicateLabel, "Duplicate label %q")
				}
				labels[s.Name] = true
			case document.EntrySymbol:
				if entries[s.Name] {
					warn(doc, s, document.CodeDuplicateEntry, "Duplicate entry %q")
				}
				entries[s.Name] = true
			}
		}
		e.unresolved(doc, add)
	}
	for uri := range out {
		sortDiagnostics(out[uri])
	}
	return out
}

// unresolved reports uses in doc that no definition visible from doc answers.
func (e *Engine) unresolved(doc *document.Document, add func(*document.Document, document.Diagnostic)) {
	codes := map[document.ReferenceKind]struct {
		code   document.Code
		format string
	}{
		document.LabelReference:    {document.CodeUnresolvedReference, "Undefined reference %q"},
		document.CitationReference: {document.CodeUnresolvedCitation, "Undefined citation %q"},
		document.StringReference:   {document.CodeUndefinedString, "Undefined string %q"},
	}
	sets := make(map[document.ReferenceKind]map[string]bool)
	for _, r := range doc.References {
		c, ok := codes[r.Kind]
		if !ok {
			continue
		}
		if r.Kind == document.StringReference && predefinedStrings[r.Name] {
			continue
		}
		names, ok := sets[r.Kind]
		if !ok {
			names = make(map[string]bool)
			for _, s := range e.visible(doc.URI, queryFor(r.Kind)).symbols {
				names[s.Name] = true
			}
			sets[r.Kind] = names
		}
		if names[r.Name] {
			continue
		}
		add(doc, document.Diagnostic{
			URI:      doc.URI,
			Span:     r.Span,
			Severity: document.SeverityWarning,
			Code:     c.code,
			Message:  fmt.Sprintf(c.format, r.Name),
		})
	}
}

func sortDiagnostics(diags []Diagnostic) {
	sort.SliceStable(diags, func(i, j int) bool {
		a, b := diags[i].Range.Start, diags[j].Range.Start
		if a != b {
			return a.Before(b)
		}
		return diags[i].Code < diags[j].Code
	})
}

// AllDiagnostics returns the diagnostics of every known document, each
// document analyzed from every project root that reaches it. Documents
// without diagnostics map to an empty slice.
func (e *Engine) AllDiagnostics() map[string][]Diagnostic {
	out := make(map[string][]Diagnostic)
	seen := make(map[string]map[Diagnostic]bool)
	for _, doc := range e.ws.Documents() {
		out[doc.URI] = []Diagnostic{}
		seen[doc.URI] = make(map[Diagnostic]bool)
	}
	for _, root := range e.ws.Roots() {
		project, err := e.Diagnostics(root)
		if err != nil {
			log.Debugf("skipping removed root %s", root)
			continue
		}
		for uri, diags := range project {
			if seen[uri] == nil {
				seen[uri] = make(map[Diagnostic]bool)
			}
			for _, d := range diags {
				if !seen[uri][d] {
					seen[uri][d] = true
					out[uri] = append(out[uri], d)
				}
			}
		}
	}
	for uri := range out {
		sortDiagnostics(out[uri])
	}
	return out
}
