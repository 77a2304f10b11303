package dialect

import "context"

// Dialect names for the supported database families.
const (
	H2       = "h2"
	MySQL    = "mysql"
	SQLite   = "sqlite"
	Postgres = "postgres"
	Generic  = "generic"
)

// ExecQuerier wraps the two database operations used by the save engine.
//
// The args argument is a []any of positional parameters. For Exec, v is
// either nil or a *sql.Result. For Query, v is a *sql.Rows.
type ExecQuerier interface {
	Exec(ctx context.Context, query string, args, v any) error
	Query(ctx context.Context, query string, args, v any) error
}

// Driver is the interface that wraps all necessary operations for
// connecting to a relational store.
type Driver interface {
	ExecQuerier
	// Tx starts and returns a new transaction.
	Tx(context.Context) (Tx, error)
	// Close closes the underlying connection.
	Close() error
	// Dialect returns the dialect name of the driver.
	Dialect() string
}

// Tx wraps the Exec and Query operations in a transaction.
type Tx interface {
	ExecQuerier
	Commit() error
	Rollback() error
}
