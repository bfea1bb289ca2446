package store

import (
	"database/sql"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/sqlite3"
	"github.com/jmoiron/sqlx"
)

// dialect builds the catalog and report queries. Queries are prepared so
// user input is always passed as arguments.
var dialect = goqu.Dialect("sqlite3")

func from(table any) *goqu.SelectDataset {
	return dialect.From(table).Prepared(true)
}

// scanner wraps db for struct scanning of goqu-built queries.
func scanner(db *sql.DB) *sqlx.DB {
	return sqlx.NewDb(db, "sqlite")
}
