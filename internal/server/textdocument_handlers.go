package server

import (
	"fmt"
	"time"

	"github.com/tliron/glsp"
	protocol "github.com/tliron/glsp/protocol_3_16"

	"texlsp/internal/document"
	"texlsp/internal/pipeline"
)

func (s *Server) textDocumentDidOpen(
	context *glsp.Context,
	params *protocol.DidOpenTextDocumentParams,
) error {
	s.captureNotify(context)
	if s.pipeline == nil {
		return errNotInitialized
	}
	item := params.TextDocument
	return s.pipeline.Open(item.URI, item.LanguageID, int32(item.Version), item.Text)
}

func (s *Server) textDocumentDidChange(
	context *glsp.Context,
	params *protocol.DidChangeTextDocumentParams,
) error {
	s.captureNotify(context)
	if s.pipeline == nil {
		return errNotInitialized
	}
	changes := make([]document.Change, 0, len(params.ContentChanges))
	for _, raw := range params.ContentChanges {
		switch change := raw.(type) {
		case protocol.TextDocumentContentChangeEvent:
			changes = append(changes, document.Change{Range: toRangePtr(change.Range), Text: change.Text})
		case protocol.TextDocumentContentChangeEventWhole:
			changes = append(changes, document.Change{Text: change.Text})
		default:
			return fmt.Errorf("unexpected change event type %T", raw)
		}
	}
	return s.pipeline.Change(params.TextDocument.URI, int32(params.TextDocument.Version), changes)
}

func (s *Server) textDocumentDidSave(
	context *glsp.Context,
	params *protocol.DidSaveTextDocumentParams,
) error {
	s.captureNotify(context)
	if s.pipeline == nil {
		return errNotInitialized
	}
	if s.currentConfig().BuildOnSave {
		log.Debugf("build on save requested for %s", params.TextDocument.URI)
	}
	// Saving may create the file an unresolved include is waiting for.
	s.pipeline.Relink()
	return nil
}

func (s *Server) textDocumentDidClose(
	context *glsp.Context,
	params *protocol.DidCloseTextDocumentParams,
) error {
	s.captureNotify(context)
	if s.pipeline == nil {
		return errNotInitialized
	}
	return s.pipeline.Close(params.TextDocument.URI)
}

func (s *Server) workspaceDidChangeWatchedFiles(
	context *glsp.Context,
	params *protocol.DidChangeWatchedFilesParams,
) error {
	s.captureNotify(context)
	if s.pipeline == nil {
		return errNotInitialized
	}
	for _, change := range params.Changes {
		var kind pipeline.WatchKind
		switch change.Type {
		case protocol.FileChangeTypeCreated:
			kind = pipeline.WatchCreated
		case protocol.FileChangeTypeChanged:
			kind = pipeline.WatchModified
		case protocol.FileChangeTypeDeleted:
			kind = pipeline.WatchDeleted
		default:
			continue
		}
		if err := s.pipeline.WatchEvent(change.URI, kind); err != nil {
			log.Warningf("watch event for %s: %s", change.URI, err)
		}
	}
	return nil
}

// scheduleDiagnostics publishes diagnostics once no document was published
// for the configured delay.
func (s *Server) scheduleDiagnostics() {
	delay := s.currentConfig().DiagnosticsDelay.Std()
	s.debounceMu.Lock()
	defer s.debounceMu.Unlock()
	if s.debounce != nil {
		s.debounce.Stop()
	}
	s.debounce = time.AfterFunc(delay, s.publishDiagnostics)
}

// publishDiagnostics sends the diagnostics of every known document and
// clears those of documents that no longer have any.
func (s *Server) publishDiagnostics() {
	all := s.engine.AllDiagnostics()

	s.debounceMu.Lock()
	var cleared []string
	for uri := range s.published {
		if len(all[uri]) == 0 {
			cleared = append(cleared, uri)
			delete(s.published, uri)
		}
	}
	for uri, diags := range all {
		if len(diags) > 0 {
			s.published[uri] = true
		}
	}
	s.debounceMu.Unlock()

	for uri, diags := range all {
		if len(diags) == 0 {
			continue
		}
		s.sendDiagnostics(uri, diags)
	}
	for _, uri := range cleared {
		s.sendDiagnostics(uri, nil)
	}
}
