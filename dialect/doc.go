// Package dialect defines the database families understood by the save
// engine and the statement execution boundary it talks to.
//
// # Supported Dialects
//
//   - H2: merge-using-values family
//   - Postgres: PostgreSQL
//   - MySQL: MySQL/MariaDB
//   - SQLite: SQLite 3.24+
//   - Generic: ANSI insert/update only, no upsert syntax
//
// # Dialect Constants
//
//	dialect.H2       = "h2"
//	dialect.Postgres = "postgres"
//	dialect.MySQL    = "mysql"
//	dialect.SQLite   = "sqlite"
//	dialect.Generic  = "generic"
//
// # Driver Interface
//
//	type Driver interface {
//	    Exec(ctx context.Context, query string, args, v any) error
//	    Query(ctx context.Context, query string, args, v any) error
//	    Tx(ctx context.Context) (Tx, error)
//	    Close() error
//	    Dialect() string
//	}
//
// A save command runs every statement on one ExecQuerier, usually a Tx:
//
//	drv, err := sql.Open(dialect.Postgres, "postgres://...")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	tx, err := drv.Tx(ctx)
//	...
//	res, err := client.Save(ctx, save.NewSQLExecutor(tx, flavor), roots)
//
// # Sub-packages
//
//   - dialect/sql: database/sql driver, statement rendering per flavor
//   - dialect/sql/sqlgraph: constraint violation recognition
package dialect
