package sql

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/TrueNine/jimmer/dialect"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenDB(t *testing.T) {
	tests := []struct {
		name    string
		driver  string
		dialect string
	}{
		{"Postgres", dialect.Postgres, dialect.Postgres},
		{"MySQL", dialect.MySQL, dialect.MySQL},
		{"SQLite", dialect.SQLite, dialect.SQLite},
		{"H2", dialect.H2, dialect.H2},
		{"Wrapped", "postgres-otel", dialect.Postgres},
		{"Unknown", "oracle", "oracle"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, _, err := sqlmock.New()
			require.NoError(t, err)
			defer db.Close()

			drv := OpenDB(tt.driver, db)
			assert.NotNil(t, drv)
			assert.Equal(t, tt.dialect, drv.Dialect())
			assert.Same(t, db, drv.DB())
		})
	}
}

func TestDriverQuery(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	drv := OpenDB(dialect.Postgres, db)

	t.Run("scan_values", func(t *testing.T) {
		mock.ExpectQuery("SELECT tb_1_.ID, tb_1_.NAME FROM DEPARTMENT tb_1_").
			WillReturnRows(sqlmock.NewRows([]string{"ID", "NAME"}).
				AddRow(1, []byte("Market")).
				AddRow(2, nil))

		rows := &Rows{}
		err := drv.Query(context.Background(), "SELECT tb_1_.ID, tb_1_.NAME FROM DEPARTMENT tb_1_", []any{}, rows)
		require.NoError(t, err)
		values, err := ScanValues(rows)
		require.NoError(t, err)
		require.Len(t, values, 2)
		assert.Equal(t, "Market", values[0][1])
		assert.Nil(t, values[1][1])
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("query_with_args", func(t *testing.T) {
		mock.ExpectQuery("SELECT NAME FROM BOOK WHERE ID = \\$1").
			WithArgs(1).
			WillReturnRows(sqlmock.NewRows([]string{"NAME"}).AddRow("GraphQL in Action"))

		rows := &Rows{}
		err := drv.Query(context.Background(), "SELECT NAME FROM BOOK WHERE ID = $1", []any{1}, rows)
		require.NoError(t, err)
		require.NoError(t, rows.Close())
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("query_error", func(t *testing.T) {
		expectedErr := errors.New("database error")
		mock.ExpectQuery("SELECT").WillReturnError(expectedErr)

		rows := &Rows{}
		err := drv.Query(context.Background(), "SELECT", []any{}, rows)
		require.ErrorIs(t, err, expectedErr)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("invalid_target", func(t *testing.T) {
		err := drv.Query(context.Background(), "SELECT 1", []any{}, nil)
		require.Error(t, err)
		err = drv.Query(context.Background(), "SELECT 1", "x", &Rows{})
		require.Error(t, err)
	})
}

func TestDriverExec(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	drv := OpenDB(dialect.MySQL, db)

	t.Run("result", func(t *testing.T) {
		mock.ExpectExec("INSERT INTO TREE_NODE").
			WillReturnResult(sqlmock.NewResult(7, 1))

		var res Result
		err := drv.Exec(context.Background(), "INSERT INTO TREE_NODE(NAME) VALUES(?)", []any{"root"}, &res)
		require.NoError(t, err)
		id, err := res.LastInsertId()
		require.NoError(t, err)
		assert.EqualValues(t, 7, id)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("exec_error", func(t *testing.T) {
		expectedErr := errors.New("constraint violation")
		mock.ExpectExec("DELETE").WillReturnError(expectedErr)

		err := drv.Exec(context.Background(), "DELETE FROM BOOK", []any{}, nil)
		require.ErrorIs(t, err, expectedErr)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("invalid_target", func(t *testing.T) {
		var n int
		err := drv.Exec(context.Background(), "DELETE FROM BOOK", []any{}, &n)
		require.Error(t, err)
	})
}

func TestDriverTransaction(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	drv := OpenDB(dialect.Postgres, db)

	t.Run("commit", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectExec("INSERT INTO BOOK").WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectCommit()

		tx, err := drv.Tx(context.Background())
		require.NoError(t, err)
		err = tx.Exec(context.Background(), "INSERT INTO BOOK(NAME) VALUES($1)", []any{"a"}, nil)
		require.NoError(t, err)
		require.NoError(t, tx.Commit())
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("rollback", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectExec("INSERT INTO BOOK").WillReturnError(errors.New("error"))
		mock.ExpectRollback()

		tx, err := drv.Tx(context.Background())
		require.NoError(t, err)
		err = tx.Exec(context.Background(), "INSERT INTO BOOK(NAME) VALUES($1)", []any{"a"}, nil)
		require.Error(t, err)
		require.NoError(t, tx.Rollback())
		require.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestStatsDriver(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	var slow []string
	drv := NewStatsDriver(OpenDB(dialect.SQLite, db),
		WithSlowThreshold(0),
		WithSlowQueryHook(func(_ context.Context, query string, _ []any, _ time.Duration) {
			slow = append(slow, query)
		}),
	)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectQuery("SELECT").WillReturnRows(sqlmock.NewRows([]string{"ID"}).AddRow(1))
	mock.ExpectQuery("SELECT").WillReturnError(errors.New("boom"))
	mock.ExpectCommit()

	ctx := context.Background()
	tx, err := drv.Tx(ctx)
	require.NoError(t, err)
	require.NoError(t, tx.Exec(ctx, "INSERT INTO BOOK(ID) VALUES(?)", []any{1}, nil))
	rows := &Rows{}
	require.NoError(t, tx.Query(WithReason(ctx, ReasonInvestigateConstraintViolation), "SELECT ID FROM BOOK", []any{}, rows))
	require.NoError(t, rows.Close())
	require.Error(t, tx.Query(WithReason(ctx, ReasonFetchKeyIDs), "SELECT ID FROM BOOK", []any{}, &Rows{}))
	require.NoError(t, tx.Commit())
	require.NoError(t, mock.ExpectationsWereMet())

	stats := drv.QueryStats().Stats()
	assert.EqualValues(t, 1, stats.TotalExecs)
	assert.EqualValues(t, 2, stats.TotalQueries)
	assert.EqualValues(t, 1, stats.Errors)
	assert.EqualValues(t, 3, stats.SlowQueries)
	assert.EqualValues(t, 1, stats.ByReason[ReasonInvestigateConstraintViolation])
	assert.EqualValues(t, 1, stats.ByReason[ReasonFetchKeyIDs])
	assert.Len(t, slow, 3)
	assert.Contains(t, stats.String(), "investigations=1")

	drv.QueryStats().Reset()
	assert.Zero(t, drv.QueryStats().Stats().TotalQueries)
	assert.Empty(t, drv.QueryStats().Stats().ByReason)
}

func TestQueryReason(t *testing.T) {
	ctx := context.Background()
	assert.Equal(t, ReasonNone, ReasonFromContext(ctx))
	assert.Equal(t, ReasonLoadMiddleTable, ReasonFromContext(WithReason(ctx, ReasonLoadMiddleTable)))
	assert.Equal(t, "INVESTIGATE_CONSTRAINT_VIOLATION_ERROR", ReasonInvestigateConstraintViolation.String())
	assert.Equal(t, "NONE", ReasonNone.String())
}
