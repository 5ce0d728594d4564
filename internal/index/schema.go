package index

import (
	"database/sql"
	"fmt"
)

const schemaVersion = 1

func initSchema(db *sql.DB) error {
	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("failed to get schema version: %w", err)
	}
	if version == schemaVersion {
		return nil
	}

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	queries := []string{
		// One row per indexed document and the revision its symbols come from.
		`CREATE TABLE IF NOT EXISTS documents (
            uri TEXT PRIMARY KEY,
            revision INTEGER NOT NULL
        )`,

		// Positions are stored already converted to editor coordinates so that
		// results need no access to the document text.
		`CREATE TABLE IF NOT EXISTS symbols (
            uri TEXT NOT NULL,
            name TEXT NOT NULL,
            kind INTEGER NOT NULL,
            detail TEXT NOT NULL,
            start_line INTEGER NOT NULL,
            start_character INTEGER NOT NULL,
            end_line INTEGER NOT NULL,
            end_character INTEGER NOT NULL,
            FOREIGN KEY (uri) REFERENCES documents(uri) ON DELETE CASCADE
        )`,

		`CREATE INDEX IF NOT EXISTS idx_symbols_uri ON symbols(uri)`,
		`CREATE INDEX IF NOT EXISTS idx_symbols_name ON symbols(name)`,
	}
	for _, query := range queries {
		if _, err := tx.Exec(query); err != nil {
			return fmt.Errorf("failed to execute query %q: %w", query, err)
		}
	}
	if _, err := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", schemaVersion)); err != nil {
		return fmt.Errorf("failed to update schema version: %w", err)
	}
	return tx.Commit()
}
