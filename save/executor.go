package save

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/TrueNine/jimmer/dialect"
	"github.com/TrueNine/jimmer/dialect/sql"
)

// Statement is one SQL text executed with one or more parameter rows.
type Statement struct {
	SQL  string
	Rows [][]any
	// Batched asks for one driver-level batched call instead of one call
	// per row.
	Batched bool
	// GeneratedID asks for the id assigned by the database to each row.
	GeneratedID bool
}

// ExecResult is the outcome of a Statement.
type ExecResult struct {
	// Affected holds the affected row count of each parameter row.
	Affected []int64
	// IDs holds the generated id of each row when GeneratedID was set.
	IDs []any
}

// Total returns the sum of the affected row counts.
func (r *ExecResult) Total() int64 {
	var n int64
	for _, a := range r.Affected {
		n += a
	}
	return n
}

// Query is a SELECT issued by the save engine itself.
type Query struct {
	SQL    string
	Args   []any
	Reason sql.QueryReason
}

// Executor runs the statements of a save command. All calls of one
// command happen sequentially on the same connection or transaction.
type Executor interface {
	Exec(context.Context, *Statement) (*ExecResult, error)
	Query(context.Context, *Query) ([][]any, error)
}

// BatchError is returned by executors when a parameter row fails.
type BatchError struct {
	// Index is the failing row, or -1 if the driver does not tell.
	Index int
	Err   error
}

// Error returns the error string.
func (e *BatchError) Error() string {
	if e.Index < 0 {
		return fmt.Sprintf("save: batch failed: %v", e.Err)
	}
	return fmt.Sprintf("save: row %d failed: %v", e.Index, e.Err)
}

// Unwrap returns the underlying error.
func (e *BatchError) Unwrap() error {
	return e.Err
}

const savepoint = "jimmer_save"

// SQLExecutor is an Executor running statements on a dialect.ExecQuerier,
// usually a dialect.Tx.
type SQLExecutor struct {
	conn   dialect.ExecQuerier
	flavor sql.Flavor
	logger *slog.Logger
}

// ExecutorOption configures the SQLExecutor.
type ExecutorOption func(*SQLExecutor)

// ExecutorLogger sets the logger of executed statements.
func ExecutorLogger(l *slog.Logger) ExecutorOption {
	return func(e *SQLExecutor) {
		e.logger = l
	}
}

// NewSQLExecutor returns an executor running statements of the given
// flavor on conn.
func NewSQLExecutor(conn dialect.ExecQuerier, flavor sql.Flavor, opts ...ExecutorOption) *SQLExecutor {
	e := &SQLExecutor{conn: conn, flavor: flavor, logger: slog.Default()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// savepoints reports whether statements run under a savepoint, so that a
// failing statement leaves the transaction usable.
func (e *SQLExecutor) savepoints() bool {
	if !e.flavor.Savepoint {
		return false
	}
	_, ok := e.conn.(dialect.Tx)
	return ok
}

// Exec implements Executor. A batched statement runs under one savepoint,
// other statements under one savepoint per row.
func (e *SQLExecutor) Exec(ctx context.Context, stmt *Statement) (*ExecResult, error) {
	e.logger.DebugContext(ctx, "exec", "sql", stmt.SQL, "rows", len(stmt.Rows), "batched", stmt.Batched)
	res := &ExecResult{Affected: make([]int64, len(stmt.Rows))}
	if stmt.GeneratedID {
		res.IDs = make([]any, len(stmt.Rows))
	}
	run := func(i int) error {
		affected, id, err := e.execRow(ctx, stmt, stmt.Rows[i])
		if err != nil {
			return &BatchError{Index: i, Err: err}
		}
		res.Affected[i] = affected
		if stmt.GeneratedID {
			res.IDs[i] = id
		}
		return nil
	}
	if stmt.Batched {
		err := e.guard(ctx, func() error {
			for i := range stmt.Rows {
				if err := run(i); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
		return res, nil
	}
	for i := range stmt.Rows {
		if err := e.guard(ctx, func() error { return run(i) }); err != nil {
			return nil, err
		}
	}
	return res, nil
}

func (e *SQLExecutor) execRow(ctx context.Context, stmt *Statement, row []any) (int64, any, error) {
	if stmt.GeneratedID && e.flavor.GeneratedKey == sql.GeneratedReturning {
		rows := &sql.Rows{}
		if err := e.conn.Query(ctx, stmt.SQL, row, rows); err != nil {
			return 0, nil, err
		}
		values, err := sql.ScanValues(rows)
		if err != nil {
			return 0, nil, err
		}
		if len(values) != 1 || len(values[0]) == 0 {
			return 0, nil, fmt.Errorf("save: expected one generated id, got %d rows", len(values))
		}
		return 1, values[0][0], nil
	}
	var res sql.Result
	if err := e.conn.Exec(ctx, stmt.SQL, row, &res); err != nil {
		return 0, nil, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, nil, err
	}
	if !stmt.GeneratedID {
		return affected, nil, nil
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, nil, err
	}
	return affected, id, nil
}

// guard runs fn under a savepoint when the flavor needs one.
func (e *SQLExecutor) guard(ctx context.Context, fn func() error) error {
	if !e.savepoints() {
		return fn()
	}
	if err := e.conn.Exec(ctx, "savepoint "+savepoint, []any{}, nil); err != nil {
		return err
	}
	if err := fn(); err != nil {
		if rerr := e.conn.Exec(ctx, "rollback to savepoint "+savepoint, []any{}, nil); rerr != nil {
			return fmt.Errorf("%w: rollback to savepoint: %v", err, rerr)
		}
		return err
	}
	return e.conn.Exec(ctx, "release savepoint "+savepoint, []any{}, nil)
}

// Query implements Executor. The reason of q is stored in the context
// passed to the connection.
func (e *SQLExecutor) Query(ctx context.Context, q *Query) ([][]any, error) {
	e.logger.DebugContext(ctx, "query", "sql", q.SQL, "args", q.Args, "reason", q.Reason.String())
	ctx = sql.WithReason(ctx, q.Reason)
	rows := &sql.Rows{}
	if err := e.conn.Query(ctx, q.SQL, q.Args, rows); err != nil {
		return nil, err
	}
	return sql.ScanValues(rows)
}

var _ Executor = (*SQLExecutor)(nil)
