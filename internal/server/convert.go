package server

import (
	protocol "github.com/tliron/glsp/protocol_3_16"

	"texlsp/internal/document"
	"texlsp/internal/feature"
)

func toPosition(p protocol.Position) document.Position {
	return document.Position{Line: uint32(p.Line), Character: uint32(p.Character)}
}

func toRangePtr(r *protocol.Range) *document.Range {
	if r == nil {
		return nil
	}
	return &document.Range{Start: toPosition(r.Start), End: toPosition(r.End)}
}

func fromPosition(p document.Position) protocol.Position {
	return protocol.Position{Line: protocol.UInteger(p.Line), Character: protocol.UInteger(p.Character)}
}

func fromRange(r document.Range) protocol.Range {
	return protocol.Range{Start: fromPosition(r.Start), End: fromPosition(r.End)}
}

func fromLocations(locs []feature.Location) []protocol.Location {
	out := make([]protocol.Location, 0, len(locs))
	for _, l := range locs {
		out = append(out, protocol.Location{URI: l.URI, Range: fromRange(l.Range)})
	}
	return out
}

func fromSeverity(s document.Severity) protocol.DiagnosticSeverity {
	switch s {
	case document.SeverityError:
		return protocol.DiagnosticSeverityError
	case document.SeverityWarning:
		return protocol.DiagnosticSeverityWarning
	case document.SeverityInformation:
		return protocol.DiagnosticSeverityInformation
	}
	return protocol.DiagnosticSeverityHint
}

func fromDiagnostics(diags []feature.Diagnostic) []protocol.Diagnostic {
	source := serverName
	out := make([]protocol.Diagnostic, 0, len(diags))
	for _, d := range diags {
		severity := fromSeverity(d.Severity)
		out = append(out, protocol.Diagnostic{
			Range:    fromRange(d.Range),
			Severity: &severity,
			Code:     &protocol.IntegerOrString{Value: protocol.Integer(d.Code)},
			Source:   &source,
			Message:  d.Message,
		})
	}
	return out
}

func (s *Server) sendDiagnostics(uri string, diags []feature.Diagnostic) {
	s.sendNotification(protocol.ServerTextDocumentPublishDiagnostics, protocol.PublishDiagnosticsParams{
		URI:         uri,
		Diagnostics: fromDiagnostics(diags),
	})
}

func fromSymbolKind(k document.SymbolKind) protocol.SymbolKind {
	switch k {
	case document.LabelSymbol:
		return protocol.SymbolKindKey
	case document.EntrySymbol, document.BibItemSymbol:
		return protocol.SymbolKindStruct
	case document.CommandSymbol:
		return protocol.SymbolKindFunction
	case document.EnvironmentSymbol, document.TheoremSymbol:
		return protocol.SymbolKindClass
	case document.SectionSymbol:
		return protocol.SymbolKindModule
	case document.StringSymbol:
		return protocol.SymbolKindString
	}
	return protocol.SymbolKindVariable
}

func fromCompletionKind(k feature.CompletionKind) protocol.CompletionItemKind {
	switch k {
	case feature.LabelCompletion:
		return protocol.CompletionItemKindReference
	case feature.CitationCompletion:
		return protocol.CompletionItemKindConstant
	case feature.CommandCompletion:
		return protocol.CompletionItemKindFunction
	case feature.EnvironmentCompletion:
		return protocol.CompletionItemKindModule
	}
	return protocol.CompletionItemKindText
}

func fromDocumentSymbols(symbols []feature.DocumentSymbol) []protocol.DocumentSymbol {
	out := make([]protocol.DocumentSymbol, 0, len(symbols))
	for _, sym := range symbols {
		ds := protocol.DocumentSymbol{
			Name:           sym.Name,
			Kind:           fromSymbolKind(sym.Kind),
			Range:          fromRange(sym.Range),
			SelectionRange: fromRange(sym.SelectionRange),
			Children:       fromDocumentSymbols(sym.Children),
		}
		if sym.Detail != "" {
			detail := sym.Detail
			ds.Detail = &detail
		}
		out = append(out, ds)
	}
	return out
}
