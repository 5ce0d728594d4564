package server

import (
	"fmt"

	"github.com/tliron/glsp"
	protocol "github.com/tliron/glsp/protocol_3_16"

	"texlsp/internal/feature"
	"texlsp/internal/metrics"
)

func (s *Server) textDocumentDefinition(
	context *glsp.Context,
	params *protocol.DefinitionParams,
) (any, error) {
	metrics.Requests.WithLabelValues("definition").Inc()
	uri := params.TextDocument.URI
	s.await(uri)
	locs, err := s.engine.Definition(uri, toPosition(params.Position))
	if err != nil || len(locs) == 0 {
		return nil, err
	}
	return fromLocations(locs), nil
}

func (s *Server) textDocumentReferences(
	context *glsp.Context,
	params *protocol.ReferenceParams,
) ([]protocol.Location, error) {
	metrics.Requests.WithLabelValues("references").Inc()
	uri := params.TextDocument.URI
	s.await(uri)
	locs, err := s.engine.References(uri, toPosition(params.Position), params.Context.IncludeDeclaration)
	if err != nil {
		return nil, err
	}
	return fromLocations(locs), nil
}

func (s *Server) textDocumentHover(
	context *glsp.Context,
	params *protocol.HoverParams,
) (*protocol.Hover, error) {
	metrics.Requests.WithLabelValues("hover").Inc()
	uri := params.TextDocument.URI
	s.await(uri)
	hover, err := s.engine.Hover(uri, toPosition(params.Position))
	if err != nil || hover == nil {
		return nil, err
	}
	r := fromRange(hover.Range)
	return &protocol.Hover{
		Contents: protocol.MarkupContent{
			Kind:  protocol.MarkupKindMarkdown,
			Value: hover.Markdown,
		},
		Range: &r,
	}, nil
}

func (s *Server) textDocumentCompletion(
	context *glsp.Context,
	params *protocol.CompletionParams,
) (any, error) {
	metrics.Requests.WithLabelValues("completion").Inc()
	uri := params.TextDocument.URI
	s.await(uri)
	items, err := s.engine.Completion(uri, toPosition(params.Position))
	if err != nil {
		return nil, err
	}
	list := protocol.CompletionList{
		// The ranking depends on the typed prefix, so the client asks again.
		IsIncomplete: true,
		Items:        make([]protocol.CompletionItem, 0, len(items)),
	}
	for i, item := range items {
		kind := fromCompletionKind(item.Kind)
		sortText := fmt.Sprintf("%04d", i)
		ci := protocol.CompletionItem{
			Label:    item.Label,
			Kind:     &kind,
			SortText: &sortText,
			TextEdit: protocol.TextEdit{
				Range:   fromRange(item.Range),
				NewText: item.Label,
			},
		}
		if item.Detail != "" {
			detail := item.Detail
			ci.Detail = &detail
		}
		list.Items = append(list.Items, ci)
	}
	return list, nil
}

// prepareRenameResult is the range and placeholder form of a prepareRename
// answer.
type prepareRenameResult struct {
	Range       protocol.Range `json:"range"`
	Placeholder string         `json:"placeholder"`
}

func (s *Server) textDocumentPrepareRename(
	context *glsp.Context,
	params *protocol.PrepareRenameParams,
) (any, error) {
	metrics.Requests.WithLabelValues("prepareRename").Inc()
	uri := params.TextDocument.URI
	s.await(uri)
	r, name, err := s.engine.PrepareRename(uri, toPosition(params.Position))
	if err != nil || r == nil {
		return nil, err
	}
	return prepareRenameResult{Range: fromRange(*r), Placeholder: name}, nil
}

func (s *Server) textDocumentRename(
	context *glsp.Context,
	params *protocol.RenameParams,
) (*protocol.WorkspaceEdit, error) {
	metrics.Requests.WithLabelValues("rename").Inc()
	uri := params.TextDocument.URI
	s.await(uri)
	edits, err := s.engine.Rename(uri, toPosition(params.Position), params.NewName)
	if err != nil || len(edits) == 0 {
		return nil, err
	}
	changes := make(map[protocol.DocumentUri][]protocol.TextEdit, len(edits))
	for target, list := range edits {
		for _, e := range list {
			changes[target] = append(changes[target], protocol.TextEdit{Range: fromRange(e.Range), NewText: e.NewText})
		}
	}
	return &protocol.WorkspaceEdit{Changes: changes}, nil
}

func (s *Server) textDocumentDocumentHighlight(
	context *glsp.Context,
	params *protocol.DocumentHighlightParams,
) ([]protocol.DocumentHighlight, error) {
	metrics.Requests.WithLabelValues("documentHighlight").Inc()
	uri := params.TextDocument.URI
	s.await(uri)
	highlights, err := s.engine.Highlights(uri, toPosition(params.Position))
	if err != nil {
		return nil, err
	}
	out := make([]protocol.DocumentHighlight, 0, len(highlights))
	for _, h := range highlights {
		kind := protocol.DocumentHighlightKindRead
		if h.Kind == feature.HighlightWrite {
			kind = protocol.DocumentHighlightKindWrite
		}
		out = append(out, protocol.DocumentHighlight{Range: fromRange(h.Range), Kind: &kind})
	}
	return out, nil
}
