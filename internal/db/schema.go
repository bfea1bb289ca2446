package db

import (
	"database/sql"
	"fmt"
)

// schema is the full database schema.
const schema = `
CREATE TABLE IF NOT EXISTS users (
    id            INTEGER PRIMARY KEY,
    username      TEXT NOT NULL,
    password_hash TEXT NOT NULL,
    role          TEXT NOT NULL DEFAULT 'patron' CHECK (role IN ('admin', 'librarian', 'patron')),
    image         BLOB,
    image_mime    TEXT,
    created_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    deleted_at    DATETIME
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_users_username_active
    ON users(username) WHERE deleted_at IS NULL;

CREATE TABLE IF NOT EXISTS books (
    id         INTEGER PRIMARY KEY,
    title      TEXT NOT NULL,
    author     TEXT NOT NULL,
    category   TEXT NOT NULL DEFAULT 'General',
    stock      INTEGER NOT NULL DEFAULT 0 CHECK (stock >= 0),
    created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_books_title_author
    ON books(title, author);

CREATE TABLE IF NOT EXISTS loans (
    id                   INTEGER PRIMARY KEY,
    book_id              INTEGER NOT NULL REFERENCES books(id),
    user_id              INTEGER NOT NULL REFERENCES users(id),
    loan_date            DATETIME NOT NULL,
    expected_return_date DATETIME NOT NULL,
    actual_return_date   DATETIME,
    fine                 INTEGER NOT NULL DEFAULT 0 CHECK (fine >= 0),
    processed_by         INTEGER REFERENCES users(id),
    returned_by          INTEGER REFERENCES users(id)
);

CREATE INDEX IF NOT EXISTS idx_loans_user_date
    ON loans(user_id, loan_date DESC);

CREATE INDEX IF NOT EXISTS idx_loans_book
    ON loans(book_id);

CREATE INDEX IF NOT EXISTS idx_loans_open
    ON loans(book_id) WHERE actual_return_date IS NULL;

CREATE TRIGGER IF NOT EXISTS trg_loans_due_date_fixed
BEFORE UPDATE OF expected_return_date ON loans
WHEN NEW.expected_return_date IS NOT OLD.expected_return_date
BEGIN
    SELECT RAISE(ABORT, 'expected_return_date cannot change');
END;

CREATE TRIGGER IF NOT EXISTS trg_loans_closed_final
BEFORE UPDATE ON loans
WHEN OLD.actual_return_date IS NOT NULL
BEGIN
    SELECT RAISE(ABORT, 'loan is already closed');
END;

CREATE TABLE IF NOT EXISTS settings (
    key   TEXT PRIMARY KEY,
    value TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS revoked_tokens (
    jti        TEXT PRIMARY KEY,
    expires_at DATETIME NOT NULL
);
`

// EnsureSchema creates all tables, indexes and triggers if they don't already exist.
func EnsureSchema(db *sql.DB) error {
	_, err := db.Exec(schema)
	if err != nil {
		return fmt.Errorf("creating schema: %w", err)
	}
	return nil
}
