package document

import (
	"fmt"
	"net/url"
	"path/filepath"
	"runtime"
	"strings"
)

type Language int

const (
	LaTeX Language = iota + 1
	BibTeX
)

func (l Language) String() string {
	switch l {
	case LaTeX:
		return "latex"
	case BibTeX:
		return "bibtex"
	}
	return "unknown"
}

// LanguageFromID maps an editor language identifier.
func LanguageFromID(id string) (Language, bool) {
	switch strings.ToLower(id) {
	case "latex", "tex", "plaintex", "context":
		return LaTeX, true
	case "bibtex", "bib", "biblatex":
		return BibTeX, true
	}
	return 0, false
}

// LanguageFromPath detects the language from a file extension.
func LanguageFromPath(path string) (Language, bool) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".tex", ".sty", ".cls", ".ltx", ".dtx", ".def":
		return LaTeX, true
	case ".bib":
		return BibTeX, true
	}
	return 0, false
}

// URIFromPath builds a file URI from a file system path.
func URIFromPath(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	slashed := filepath.ToSlash(filepath.Clean(abs))
	if runtime.GOOS == "windows" {
		slashed = "/" + slashed
	}
	u := url.URL{Scheme: "file", Path: slashed}
	return u.String()
}

// PathFromURI returns the file system path of a file URI.
func PathFromURI(uri string) (string, error) {
	u, err := url.Parse(uri)
	if err != nil {
		return "", fmt.Errorf("parse uri %q: %w", uri, err)
	}
	if u.Scheme != "file" {
		return "", fmt.Errorf("unsupported uri scheme %q", u.Scheme)
	}
	path := u.Path
	if runtime.GOOS == "windows" {
		path = strings.TrimPrefix(path, "/")
	}
	return filepath.FromSlash(path), nil
}
