package server

import (
	"fmt"

	"github.com/tliron/glsp"
	protocol "github.com/tliron/glsp/protocol_3_16"

	"texlsp/internal/metrics"
)

func (s *Server) workspaceExecuteCommand(
	context *glsp.Context,
	params *protocol.ExecuteCommandParams,
) (any, error) {
	s.captureNotify(context)
	metrics.Requests.WithLabelValues("executeCommand").Inc()
	switch params.Command {
	case commandShowDependencyGraph:
		return s.showGraph(context)
	case commandReindex:
		return nil, s.reindex()
	}
	return nil, fmt.Errorf("unknown command %q", params.Command)
}

// showGraph starts the graph viewer on first use and asks the client to
// open it.
func (s *Server) showGraph(ctx *glsp.Context) (any, error) {
	url, err := s.viewer.Show(s.ctx, s.ws, s.currentConfig().GraphAddress)
	if err != nil {
		return nil, err
	}
	ctx.Notify(
		"window/showDocument",
		protocol.ShowDocumentParams{
			URI:      protocol.URI(url),
			External: &protocol.True,
		},
	)
	return url, nil
}

// reindex drops all cached analysis, rescans the root and resolves every
// link again.
func (s *Server) reindex() error {
	if s.pipeline == nil {
		return errNotInitialized
	}
	s.cache.Clear()
	s.mu.Lock()
	root := s.root
	roots := s.config.RootDirectories
	s.mu.Unlock()
	s.pipeline.SetRoots(roots)
	if root != "" {
		go s.scan(root)
	}
	s.scheduleDiagnostics()
	return nil
}
