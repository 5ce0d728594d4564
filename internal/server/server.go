// Package server connects the analysis core to editors over the Language
// Server Protocol.
package server

import (
	"context"
	"errors"
	"os"
	"sync"
	"time"

	"github.com/tliron/commonlog"
	"github.com/tliron/glsp"
	protocol "github.com/tliron/glsp/protocol_3_16"
	glspserver "github.com/tliron/glsp/server"

	"texlsp/internal/cache"
	"texlsp/internal/config"
	"texlsp/internal/feature"
	"texlsp/internal/graph"
	"texlsp/internal/index"
	"texlsp/internal/pipeline"
	"texlsp/internal/scheduler"
	"texlsp/internal/watcher"
	"texlsp/internal/workspace"
)

var log = commonlog.GetLogger("texlsp.server")

const serverName = "texlsp"

// errNotInitialized is returned for document notifications that arrive
// before the initialize request.
var errNotInitialized = errors.New("server not initialized")

const (
	commandShowDependencyGraph = "texlsp.showDependencyGraph"
	commandReindex             = "texlsp.reindex"
)

// relinkInterval is how often documents with unresolved links are resolved
// again, for files that appear without a watch event.
const relinkInterval = 30 * time.Second

// awaitTimeout bounds how long a request waits for pending edits of its
// document.
const awaitTimeout = 2 * time.Second

type Server struct {
	version string
	handler protocol.Handler
	glspSrv *glspserver.Server

	ctx    context.Context
	cancel context.CancelFunc

	ws       *workspace.Workspace
	cache    *cache.Cache
	index    *index.Index
	engine   *feature.Engine
	viewer   *graph.Viewer
	fs       pipeline.FileSystem
	sched    *scheduler.Scheduler
	pipeline *pipeline.Pipeline
	watcher  *watcher.Watcher

	mu     sync.Mutex
	config config.Config
	root   string

	// Debouncer for diagnostics.
	debounceMu sync.Mutex
	debounce   *time.Timer
	published  map[string]bool // documents with diagnostics on the client

	// Context for sending notifications (captured from latest request).
	notifyMu sync.Mutex
	notify   glsp.NotifyFunc

	// exitFn is called on the exit notification.
	exitFn func(int)
}

type Option func(*Server)

// WithFileSystem replaces the disk, for tests.
func WithFileSystem(fs pipeline.FileSystem) Option {
	return func(s *Server) { s.fs = fs }
}

// WithVersion sets the version reported to the client.
func WithVersion(version string) Option {
	return func(s *Server) { s.version = version }
}

func New(opts ...Option) *Server {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		version:   "(dev)",
		ctx:       ctx,
		cancel:    cancel,
		ws:        workspace.New(),
		viewer:    graph.New(),
		fs:        pipeline.OSFileSystem{},
		config:    config.Default(),
		published: make(map[string]bool),
		exitFn:    os.Exit,
	}
	for _, o := range opts {
		o(s)
	}
	s.cache = cache.New(s.ws)
	ix, err := index.Open()
	if err != nil {
		log.Errorf("workspace symbols disabled: %s", err)
		ix = nil
	}
	s.index = ix
	s.engine = feature.New(s.ws, s.cache, s.index)

	s.handler = protocol.Handler{
		Initialize:  s.initialize,
		Initialized: s.initialized,
		Shutdown:    s.shutdown,
		Exit:        s.exit,
		SetTrace:    s.setTrace,

		TextDocumentDidOpen:   s.textDocumentDidOpen,
		TextDocumentDidChange: s.textDocumentDidChange,
		TextDocumentDidSave:   s.textDocumentDidSave,
		TextDocumentDidClose:  s.textDocumentDidClose,

		WorkspaceDidChangeWatchedFiles:  s.workspaceDidChangeWatchedFiles,
		WorkspaceDidChangeConfiguration: s.workspaceDidChangeConfiguration,

		TextDocumentHover:             s.textDocumentHover,
		TextDocumentDefinition:        s.textDocumentDefinition,
		TextDocumentReferences:        s.textDocumentReferences,
		TextDocumentCompletion:        s.textDocumentCompletion,
		TextDocumentRename:            s.textDocumentRename,
		TextDocumentPrepareRename:     s.textDocumentPrepareRename,
		TextDocumentDocumentHighlight: s.textDocumentDocumentHighlight,
		TextDocumentFoldingRange:      s.textDocumentFoldingRange,
		TextDocumentDocumentSymbol:    s.textDocumentDocumentSymbol,
		TextDocumentDocumentLink:      s.textDocumentDocumentLink,
		TextDocumentFormatting:        s.textDocumentFormatting,
		WorkspaceSymbol:               s.workspaceSymbol,
		WorkspaceExecuteCommand:       s.workspaceExecuteCommand,
	}
	s.glspSrv = glspserver.NewServer(&s.handler, serverName, false)
	return s
}

// RunStdio starts the server using stdio transport.
func (s *Server) RunStdio() error {
	return s.glspSrv.RunStdio()
}

// RunTCP starts the server listening on the given address.
func (s *Server) RunTCP(addr string) error {
	return s.glspSrv.RunTCP(addr)
}

func (s *Server) currentConfig() config.Config {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.config
}

// captureNotify stores the notification function for asynchronous use.
func (s *Server) captureNotify(ctx *glsp.Context) {
	if ctx == nil || ctx.Notify == nil {
		return
	}
	s.notifyMu.Lock()
	s.notify = ctx.Notify
	s.notifyMu.Unlock()
}

func (s *Server) sendNotification(method string, params any) {
	s.notifyMu.Lock()
	fn := s.notify
	s.notifyMu.Unlock()
	if fn != nil {
		fn(method, params)
	}
}

// await waits until the pending edits of uri are applied.
func (s *Server) await(uri string) {
	if s.pipeline == nil {
		return
	}
	ctx, cancel := context.WithTimeout(s.ctx, awaitTimeout)
	defer cancel()
	if err := s.pipeline.Await(ctx, uri); err != nil {
		log.Warningf("answering %s from a stale revision: %s", uri, err)
	}
}
