package db

import (
	"database/sql"
	"fmt"
)

// migrations is a list of SQL statements applied in order after schema creation.
// Each migration must be idempotent. Append new migrations at the end.
var migrations = []string{
	// Migration 1: catalog "genre" sort and top-genre report group by category.
	`CREATE INDEX IF NOT EXISTS idx_books_category ON books(category)`,
	// Migration 2: catalog "recent" sort.
	`CREATE INDEX IF NOT EXISTS idx_books_created_at ON books(created_at DESC)`,
}

// Migrate ensures the schema exists and runs the database migrations.
func Migrate(db *sql.DB) error {
	if err := EnsureSchema(db); err != nil {
		return err
	}

	for i, m := range migrations {
		if _, err := db.Exec(m); err != nil {
			return fmt.Errorf("running migration %d: %w", i+1, err)
		}
	}

	return nil
}
