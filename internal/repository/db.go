package repository

import (
	"database/sql"
)

// SQLExecutor is the subset of database/sql shared by *sql.DB and *sql.Tx.
// Repositories run against it so the same code serves both plain reads and
// statements joined to a unit of work.
type SQLExecutor interface {
	Exec(query string, args ...interface{}) (sql.Result, error)
	Query(query string, args ...interface{}) (*sql.Rows, error)
	QueryRow(query string, args ...interface{}) *sql.Row
}

var (
	_ SQLExecutor = (*sql.DB)(nil)
	_ SQLExecutor = (*sql.Tx)(nil)
)
