// Package watcher turns fsnotify events below a set of directories into
// watch events, for editors that do not watch files themselves.
package watcher

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/tliron/commonlog"

	"texlsp/internal/document"
	"texlsp/internal/pipeline"
	"texlsp/internal/scanner"
)

var log = commonlog.GetLogger("texlsp.watcher")

type Watcher struct {
	fsw     *fsnotify.Watcher
	handler scanner.Handler

	stopOnce sync.Once
	done     chan struct{}
}

func New(handler scanner.Handler) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &Watcher{fsw: fsw, handler: handler, done: make(chan struct{})}, nil
}

// Add watches root and all its subdirectories.
func (w *Watcher) Add(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && scanner.IgnoreDir(path) {
			return filepath.SkipDir
		}
		return w.fsw.Add(path)
	})
}

// Start forwards events until ctx is done or Stop is called.
func (w *Watcher) Start(ctx context.Context) {
	go w.run(ctx)
}

func (w *Watcher) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.done:
			return
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handle(event)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			log.Warningf("watch error: %s", err)
		}
	}
}

func (w *Watcher) handle(event fsnotify.Event) {
	if event.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if !scanner.IgnoreDir(event.Name) {
				if err := w.Add(event.Name); err != nil {
					log.Warningf("could not watch %s: %s", event.Name, err)
				}
			}
			return
		}
	}
	if _, ok := document.LanguageFromPath(event.Name); !ok {
		return
	}
	kind, ok := convertOp(event.Op)
	if !ok {
		return
	}
	uri := document.URIFromPath(event.Name)
	if err := w.handler.WatchEvent(uri, kind); err != nil {
		log.Warningf("could not handle %s of %s: %s", kind, uri, err)
	}
}

// convertOp maps an fsnotify operation. A rename reports the old name, which
// no longer exists; the new name arrives as a create.
func convertOp(op fsnotify.Op) (pipeline.WatchKind, bool) {
	switch {
	case op.Has(fsnotify.Create):
		return pipeline.WatchCreated, true
	case op.Has(fsnotify.Write):
		return pipeline.WatchModified, true
	case op.Has(fsnotify.Remove), op.Has(fsnotify.Rename):
		return pipeline.WatchDeleted, true
	}
	return 0, false
}

// Stop stops the watcher.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.done)
		if err := w.fsw.Close(); err != nil {
			log.Warningf("could not close watcher: %s", err)
		}
	})
}
