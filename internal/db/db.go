package db

import (
	"database/sql"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"
)

// connParams are applied by the driver to every pooled connection.
// _txlock=immediate makes BeginTx take the write lock up front, so a
// read-then-update inside a transaction cannot race another writer.
// _time_format=sqlite stores times as sortable text with a UTC offset.
var connParams = []string{
	"_txlock=immediate",
	"_time_format=sqlite",
	"_pragma=busy_timeout(5000)",
	"_pragma=foreign_keys(1)",
	"_pragma=journal_mode(WAL)",
	"_pragma=synchronous(NORMAL)",
}

// Open opens a SQLite database connection with the library's pragmas.
func Open(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", dsn(path))
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	return db, nil
}

func dsn(path string) string {
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + strings.Join(connParams, "&")
}
