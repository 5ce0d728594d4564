package server

import (
	"github.com/tliron/glsp"
	protocol "github.com/tliron/glsp/protocol_3_16"

	"texlsp/internal/feature"
	"texlsp/internal/metrics"
)

func (s *Server) textDocumentFoldingRange(
	context *glsp.Context,
	params *protocol.FoldingRangeParams,
) ([]protocol.FoldingRange, error) {
	metrics.Requests.WithLabelValues("foldingRange").Inc()
	uri := params.TextDocument.URI
	s.await(uri)
	ranges, err := s.engine.FoldingRanges(uri)
	if err != nil {
		return nil, err
	}
	out := make([]protocol.FoldingRange, 0, len(ranges))
	for _, r := range ranges {
		startChar := protocol.UInteger(r.StartCharacter)
		endChar := protocol.UInteger(r.EndCharacter)
		out = append(out, protocol.FoldingRange{
			StartLine:      protocol.UInteger(r.StartLine),
			StartCharacter: &startChar,
			EndLine:        protocol.UInteger(r.EndLine),
			EndCharacter:   &endChar,
		})
	}
	return out, nil
}

func (s *Server) textDocumentDocumentSymbol(
	context *glsp.Context,
	params *protocol.DocumentSymbolParams,
) (any, error) {
	metrics.Requests.WithLabelValues("documentSymbol").Inc()
	uri := params.TextDocument.URI
	s.await(uri)
	symbols, err := s.engine.DocumentSymbols(uri)
	if err != nil {
		return nil, err
	}
	return fromDocumentSymbols(symbols), nil
}

func (s *Server) textDocumentDocumentLink(
	context *glsp.Context,
	params *protocol.DocumentLinkParams,
) ([]protocol.DocumentLink, error) {
	metrics.Requests.WithLabelValues("documentLink").Inc()
	uri := params.TextDocument.URI
	s.await(uri)
	links, err := s.engine.DocumentLinks(uri)
	if err != nil {
		return nil, err
	}
	out := make([]protocol.DocumentLink, 0, len(links))
	for _, l := range links {
		target := l.Target
		out = append(out, protocol.DocumentLink{Range: fromRange(l.Range), Target: &target})
	}
	return out, nil
}

func (s *Server) workspaceSymbol(
	context *glsp.Context,
	params *protocol.WorkspaceSymbolParams,
) ([]protocol.SymbolInformation, error) {
	metrics.Requests.WithLabelValues("workspaceSymbol").Inc()
	found, err := s.engine.WorkspaceSymbols(s.ctx, params.Query)
	if err != nil {
		return nil, err
	}
	symbols := make([]protocol.SymbolInformation, 0, len(found))
	for _, sym := range found {
		symbols = append(symbols, protocol.SymbolInformation{
			Name: sym.Name,
			Kind: fromSymbolKind(sym.Kind),
			Location: protocol.Location{
				URI:   sym.Location.URI,
				Range: fromRange(sym.Location.Range),
			},
		})
	}
	return symbols, nil
}

func (s *Server) textDocumentFormatting(
	context *glsp.Context,
	params *protocol.DocumentFormattingParams,
) ([]protocol.TextEdit, error) {
	metrics.Requests.WithLabelValues("formatting").Inc()
	uri := params.TextDocument.URI
	s.await(uri)
	opts := feature.FormatOptions{InsertSpaces: true, TabSize: 2}
	if size, ok := params.Options["tabSize"].(float64); ok {
		opts.TabSize = int(size)
	}
	if spaces, ok := params.Options["insertSpaces"].(bool); ok {
		opts.InsertSpaces = spaces
	}
	edits, err := s.engine.FormatBibtex(uri, opts)
	if err != nil || len(edits) == 0 {
		return nil, err
	}
	out := make([]protocol.TextEdit, 0, len(edits))
	for _, e := range edits {
		out = append(out, protocol.TextEdit{Range: fromRange(e.Range), NewText: e.NewText})
	}
	return out, nil
}
