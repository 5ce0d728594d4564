package server

import (
	"context"
	"fmt"

	"github.com/tliron/glsp"
	protocol "github.com/tliron/glsp/protocol_3_16"

	"texlsp/internal/config"
	"texlsp/internal/document"
	"texlsp/internal/metrics"
	"texlsp/internal/pipeline"
	"texlsp/internal/scanner"
	"texlsp/internal/scheduler"
	"texlsp/internal/watcher"
)

func (s *Server) initialize(
	context *glsp.Context,
	params *protocol.InitializeParams,
) (any, error) {
	s.captureNotify(context)
	metrics.Requests.WithLabelValues("initialize").Inc()

	// Config
	cfg, err := config.Load(params.InitializationOptions)
	if err != nil {
		return nil, err
	}
	log.Infof("config: %+v", cfg)

	// Root
	root := ""
	switch {
	case params.RootURI != nil && *params.RootURI != "":
		if path, err := document.PathFromURI(*params.RootURI); err == nil {
			root = path
		}
	case params.RootPath != nil:
		root = *params.RootPath
	case len(params.WorkspaceFolders) > 0:
		if path, err := document.PathFromURI(params.WorkspaceFolders[0].URI); err == nil {
			root = path
		}
	}
	log.Infof("root is %q", root)

	s.mu.Lock()
	s.config = cfg
	s.root = root
	s.mu.Unlock()

	s.sched = scheduler.New(cfg.Workers)
	s.sched.Start(s.ctx)
	s.pipeline = pipeline.New(pipeline.Config{
		Workspace: s.ws,
		Cache:     s.cache,
		Scheduler: s.sched,
		FS:        s.fs,
		Index:     s.index,
		Roots:     cfg.RootDirectories,
	})
	s.pipeline.OnPublish(func(string) { s.scheduleDiagnostics() })
	s.schedulePeriodicRelink()

	if cfg.MetricsAddress != "" {
		go func() {
			if err := metrics.Serve(s.ctx, cfg.MetricsAddress); err != nil {
				log.Errorf("metrics server: %s", err)
			}
		}()
	}
	if root != "" && cfg.IndexOnStartup {
		go s.scan(root)
	}
	if root != "" && cfg.Watch {
		if err := s.startWatcher(root); err != nil {
			log.Warningf("could not watch %s: %s", root, err)
		}
	}

	syncKind := protocol.TextDocumentSyncKindIncremental

	capabilities := s.handler.CreateServerCapabilities()
	capabilities.TextDocumentSync = &protocol.TextDocumentSyncOptions{
		OpenClose: &protocol.True,
		Change:    &syncKind,
		Save:      &protocol.SaveOptions{IncludeText: &protocol.False},
	}
	capabilities.CompletionProvider = &protocol.CompletionOptions{
		TriggerCharacters: []string{"\\", "{", ","},
	}
	capabilities.RenameProvider = &protocol.RenameOptions{
		PrepareProvider: &protocol.True,
	}
	capabilities.ExecuteCommandProvider = &protocol.ExecuteCommandOptions{
		Commands: []string{commandShowDependencyGraph, commandReindex},
	}

	version := s.version
	return protocol.InitializeResult{
		Capabilities: capabilities,
		ServerInfo: &protocol.InitializeResultServerInfo{
			Name:    serverName,
			Version: &version,
		},
	}, nil
}

// schedulePeriodicRelink resolves unresolved links again from time to time,
// for files that appear without a watch event.
func (s *Server) schedulePeriodicRelink() {
	s.sched.SchedulePeriodic(s.ctx, relinkInterval, scheduler.Task{
		Name: "relink unresolved",
		Key:  "relink",
		Execute: func(context.Context) error {
			s.pipeline.Relink()
			return nil
		},
	})
}

func (s *Server) initialized(
	context *glsp.Context,
	params *protocol.InitializedParams,
) error {
	s.captureNotify(context)
	log.Info("client initialized")
	return nil
}

// scan loads every project file below root and relinks afterwards.
func (s *Server) scan(root string) {
	n, err := scanner.Scan(s.ctx, root, s.currentConfig().Workers, s.pipeline)
	if err != nil {
		log.Warningf("scan of %s stopped: %s", root, err)
		return
	}
	log.Infof("indexed %d files below %s", n, root)
}

func (s *Server) startWatcher(root string) error {
	w, err := watcher.New(s.pipeline)
	if err != nil {
		return err
	}
	if err := w.Add(root); err != nil {
		w.Stop()
		return err
	}
	w.Start(s.ctx)
	s.watcher = w
	return nil
}

func (s *Server) workspaceDidChangeConfiguration(
	context *glsp.Context,
	params *protocol.DidChangeConfigurationParams,
) error {
	s.captureNotify(context)
	cfg, err := config.Overlay(s.currentConfig(), params.Settings)
	if err != nil {
		log.Warningf("ignoring configuration: %s", err)
		return err
	}
	s.mu.Lock()
	old := s.config
	s.config = cfg
	s.mu.Unlock()

	if old.Workers != cfg.Workers {
		log.Infof("workers changes from %d to %d apply after a restart", old.Workers, cfg.Workers)
	}
	if s.pipeline != nil && fmt.Sprint(old.RootDirectories) != fmt.Sprint(cfg.RootDirectories) {
		s.pipeline.SetRoots(cfg.RootDirectories)
	}
	return nil
}

func (s *Server) shutdown(context *glsp.Context) error {
	log.Info("shutting down")
	s.debounceMu.Lock()
	if s.debounce != nil {
		s.debounce.Stop()
	}
	s.debounceMu.Unlock()

	if s.watcher != nil {
		s.watcher.Stop()
	}
	if s.sched != nil {
		s.sched.Stop()
	}
	if err := s.viewer.Close(); err != nil {
		log.Warningf("could not close graph viewer: %s", err)
	}
	s.cancel()
	if s.index != nil {
		return s.index.Close()
	}
	return nil
}

func (s *Server) exit(context *glsp.Context) error {
	s.exitFn(0)
	return nil
}

func (s *Server) setTrace(context *glsp.Context, params *protocol.SetTraceParams) error {
	protocol.SetTraceValue(params.Value)
	return nil
}
