// Package resolver maps the raw link targets of a document to files.
package resolver

import (
	"fmt"
	"path/filepath"

	"github.com/tliron/commonlog"

	"texlsp/internal/document"
)

var log = commonlog.GetLogger("texlsp.resolver")

// Locator reports whether a file is known at path, either as a document of
// the workspace or on disk.
type Locator func(path string) bool

type Resolver struct {
	roots  []string
	exists Locator
}

// New creates a resolver searching the source directory first and then each
// root directory in order. Relative roots are taken relative to the source
// directory.
func New(roots []string, exists Locator) *Resolver {
	return &Resolver{roots: append([]string(nil), roots...), exists: exists}
}

// Roots returns the configured root directories.
func (r *Resolver) Roots() []string {
	return r.roots
}

// Resolved is a link with the file it points to. Path and URI are empty when
// no candidate exists.
type Resolved struct {
	Link document.Link
	Path string
	URI  string
}

// Candidates lists the paths tried for link, in order: for every base
// directory the bare name and then the name with the link kind's extension.
func (r *Resolver) Candidates(sourceDir string, link document.Link) []string {
	name := filepath.FromSlash(link.Path)
	if name == "" {
		return nil
	}
	var bases []string
	if filepath.IsAbs(name) {
		bases = []string{""}
	} else {
		bases = append(bases, sourceDir)
		for _, root := range r.roots {
			if !filepath.IsAbs(root) {
				root = filepath.Join(sourceDir, root)
			}
			bases = append(bases, root)
		}
	}

	seen := make(map[string]bool)
	var out []string
	add := func(p string) {
		p = filepath.Clean(p)
		if !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
	}
	ext := link.Kind.Extension()
	for _, base := range bases {
		dir := base
		if link.Dir != "" {
			dir = filepath.Join(base, filepath.FromSlash(link.Dir))
		}
		full := filepath.Join(dir, name)
		add(full)
		if ext != "" && filepath.Ext(full) != ext {
			add(full + ext)
		}
	}
	return out
}

// Resolve returns the first existing candidate of link.
func (r *Resolver) Resolve(sourceDir string, link document.Link) (string, bool) {
	for _, candidate := range r.Candidates(sourceDir, link) {
		if r.exists(candidate) {
			return candidate, true
		}
	}
	return "", false
}

// ResolveAll resolves every link of doc and reports missing files. Package
// and class links that do not resolve are expected to come from the TeX
// distribution and are not reported.
func (r *Resolver) ResolveAll(doc *document.Document) ([]Resolved, []document.Diagnostic) {
	var out []Resolved
	var diags []document.Diagnostic
	dir := doc.Dir()
	for _, link := range doc.Links {
		if dir == "" {
			out = append(out, Resolved{Link: link})
			continue
		}
		path, ok := r.Resolve(dir, link)
		if ok {
			out = append(out, Resolved{Link: link, Path: path, URI: document.URIFromPath(path)})
			continue
		}
		out = append(out, Resolved{Link: link})
		if link.Kind == document.PackageLink || link.Kind == document.ClassLink {
			continue
		}
		log.Debugf("unresolved %s link %q in %s", link.Kind, link.Path, doc.URI)
		diags = append(diags, document.Diagnostic{
			URI:      doc.URI,
			Span:     link.Span,
			Severity: document.SeverityError,
			Code:     document.CodeMissingFile,
			Message:  fmt.Sprintf("Could not find file %q", link.Path),
		})
	}
	return out, diags
}
