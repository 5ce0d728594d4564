// scanner is used to find the TeX and BibTeX files of a project on startup.
package scanner

import (
	"context"
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/tliron/commonlog"
	"golang.org/x/sync/errgroup"

	"texlsp/internal/document"
	"texlsp/internal/pipeline"
)

var log = commonlog.GetLogger("texlsp.scanner")

// Handler receives one created event per file found.
type Handler interface {
	WatchEvent(uri string, kind pipeline.WatchKind) error
}

var ignoredDirs = map[string]bool{
	"node_modules": true,
	"_minted":      true,
	"svg-inkscape": true,
}

// IgnoreDir reports whether a directory is never part of a project: hidden
// directories and tool output.
func IgnoreDir(path string) bool {
	base := filepath.Base(path)
	if base == "." || base == ".." {
		return false
	}
	return strings.HasPrefix(base, ".") || ignoredDirs[base] || strings.HasPrefix(base, "_minted-")
}

// Scan walks the entire subtree under root and reports every file with a
// TeX or BibTeX extension to h, from at most workers goroutines. It returns
// the number of files reported once all of them were handled.
func Scan(ctx context.Context, root string, workers int, h Handler) (int, error) {
	if workers < 1 {
		workers = 1
	}
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	log.Infof("scanning %q", root)
	found := 0
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			log.Warningf("walk error: %s", err)
			return nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if d.IsDir() {
			if path != root && IgnoreDir(path) {
				log.Debugf("skipping %q", path)
				return fs.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		if _, ok := document.LanguageFromPath(path); !ok {
			return nil
		}
		found++
		uri := document.URIFromPath(path)
		g.Go(func() error {
			if err := h.WatchEvent(uri, pipeline.WatchCreated); err != nil {
				log.Warningf("could not load %s: %s", uri, err)
			}
			return nil
		})
		return nil
	})
	if waitErr := g.Wait(); err == nil {
		err = waitErr
	}
	if err != nil {
		return found, err
	}
	log.Infof("found %d files under %q", found, root)
	return found, nil
}
