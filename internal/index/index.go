// Package index keeps an in-memory SQLite table of the definitions of every
// known document for workspace-wide symbol search. Nothing is written to
// disk; the table is rebuilt from the documents on every start.
package index

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	"github.com/mattn/go-sqlite3"
	"github.com/tliron/commonlog"

	"texlsp/internal/document"
	"texlsp/internal/fuzzy"
)

var log = commonlog.GetLogger("texlsp.index")

const driverName = "sqlite3_texlsp"

var ErrClosed = errors.New("index: closed")

func init() {
	sql.Register(driverName, &sqlite3.SQLiteDriver{
		ConnectHook: func(conn *sqlite3.SQLiteConn) error {
			return conn.RegisterFunc("fuzzy_score", fuzzyScore, true)
		},
	})
}

// fuzzyScore is exposed to SQL; -1 means no match.
func fuzzyScore(pattern, name string) int64 {
	m := fuzzy.Score(pattern, name)
	if m.Tier == fuzzy.NoMatch {
		return -1
	}
	return int64(m.Value())
}

// Symbol is a search result.
type Symbol struct {
	Name   string
	Kind   document.SymbolKind
	URI    string
	Detail string
	Range  document.Range
}

type Index struct {
	mu     sync.Mutex
	db     *sql.DB
	closed bool
}

// Open creates an empty index.
func Open() (*Index, error) {
	db, err := sql.Open(driverName, "file::memory:?_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open index: %w", err)
	}
	// every connection to :memory: is a separate database
	db.SetMaxOpenConns(1)
	if err := initSchema(db); err != nil {
		db.Close()
		return nil, err
	}
	return &Index{db: db}, nil
}

func (ix *Index) Close() error {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	if ix.closed {
		return nil
	}
	ix.closed = true
	return ix.db.Close()
}

// Update replaces the symbols of doc unless a newer revision is indexed.
func (ix *Index) Update(ctx context.Context, doc *document.Document) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	if ix.closed {
		return ErrClosed
	}

	tx, err := ix.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var stored int64
	err = tx.QueryRowContext(ctx, "SELECT revision FROM documents WHERE uri = ?", doc.URI).Scan(&stored)
	switch {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return fmt.Errorf("failed to read revision of %s: %w", doc.URI, err)
	case stored > doc.Revision:
		return nil
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM symbols WHERE uri = ?", doc.URI); err != nil {
		return fmt.Errorf("failed to delete symbols of %s: %w", doc.URI, err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO documents (uri, revision) VALUES (?, ?)
         ON CONFLICT(uri) DO UPDATE SET revision = excluded.revision`,
		doc.URI, doc.Revision); err != nil {
		return fmt.Errorf("failed to store revision of %s: %w", doc.URI, err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO symbols (uri, name, kind, detail, start_line, start_character, end_line, end_character)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()
	for _, sym := range doc.Symbols {
		r := doc.Range(sym.Full)
		if _, err := stmt.ExecContext(ctx, doc.URI, sym.Name, int(sym.Kind), sym.Detail,
			r.Start.Line, r.Start.Character, r.End.Line, r.End.Character); err != nil {
			return fmt.Errorf("failed to insert symbol %q: %w", sym.Name, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit symbols of %s: %w", doc.URI, err)
	}
	log.Debugf("indexed %d symbols of %s", len(doc.Symbols), doc.URI)
	return nil
}

// Remove drops a document and its symbols.
func (ix *Index) Remove(ctx context.Context, uri string) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	if ix.closed {
		return ErrClosed
	}
	if _, err := ix.db.ExecContext(ctx, "DELETE FROM documents WHERE uri = ?", uri); err != nil {
		return fmt.Errorf("failed to remove %s: %w", uri, err)
	}
	return nil
}

// Search returns up to limit symbols whose name matches query, best first.
func (ix *Index) Search(ctx context.Context, query string, limit int) ([]Symbol, error) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	if ix.closed {
		return nil, ErrClosed
	}

	rows, err := ix.db.QueryContext(ctx,
		`SELECT uri, name, kind, detail, start_line, start_character, end_line, end_character
         FROM (
             SELECT *, fuzzy_score(?, name) AS score FROM symbols
         )
         WHERE score >= 0
         ORDER BY score, name, uri, start_line
         LIMIT ?`, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to search symbols: %w", err)
	}
	defer rows.Close()

	var out []Symbol
	for rows.Next() {
		var s Symbol
		var kind int
		if err := rows.Scan(&s.URI, &s.Name, &kind, &s.Detail,
			&s.Range.Start.Line, &s.Range.Start.Character,
			&s.Range.End.Line, &s.Range.End.Character); err != nil {
			return nil, fmt.Errorf("failed to scan symbol: %w", err)
		}
		s.Kind = document.SymbolKind(kind)
		out = append(out, s)
	}
	return out, rows.Err()
}

// Count returns the number of indexed symbols.
func (ix *Index) Count(ctx context.Context) (int, error) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	if ix.closed {
		return 0, ErrClosed
	}
	var n int
	if err := ix.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM symbols").Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count symbols: %w", err)
	}
	return n, nil
}
