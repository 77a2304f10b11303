package save_test

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TrueNine/jimmer"
	"github.com/TrueNine/jimmer/dialect/sql"
	"github.com/TrueNine/jimmer/save"
)

var (
	errH2Unique = errors.New(`Unique index or primary key violation: "PUBLIC.PRIMARY_KEY_4 ON PUBLIC.TREE_NODE(NODE_ID) VALUES (1)"`)
	errH2Ref    = errors.New(`Referential integrity constraint violation: "FK_PARENT: PUBLIC.TREE_NODE FOREIGN KEY(PARENT_ID) REFERENCES PUBLIC.TREE_NODE(NODE_ID)"`)
	errPgUnique = &pq.Error{Code: "23505", Message: `duplicate key value violates unique constraint "business_key_book"`}
	errPgRef    = &pq.Error{Code: "23503", Message: `insert or update on table "shop_customer_mapping" violates foreign key constraint "fk_customer"`}
)

// failing returns an executor failing every statement with err at row
// index, and answering queries with rows.
func failing(index int, err error, rows ...[][]any) *fakeExecutor {
	f := &fakeExecutor{
		exec: func(*save.Statement) (*save.ExecResult, error) {
			return nil, &save.BatchError{Index: index, Err: err}
		},
	}
	f.query = func(*save.Query) ([][]any, error) {
		i := len(f.queries) - 1
		if i < len(rows) {
			return rows[i], nil
		}
		return nil, nil
	}
	return f
}

func TestInsertOnlyIDConflict(t *testing.T) {
	drv, mock := newMock(t)
	rec := &recorder{Executor: save.NewSQLExecutor(drv, sql.H2)}
	client := newClient(t, sql.H2)

	// The same command fails the same way once the row exists.
	var last error
	for i := 0; i < 2; i++ {
		const insert = "insert into TREE_NODE(NODE_ID, NAME) values(?, ?)"
		mock.ExpectExec(insert).WithArgs(int64(50), "Food").WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(insert).WithArgs(int64(1), "Drinks").WillReturnError(errH2Unique)
		mock.ExpectQuery("select tb_1_.NODE_ID from TREE_NODE tb_1_ where tb_1_.NODE_ID = ?").
			WithArgs(int64(1)).
			WillReturnRows(sqlmock.NewRows([]string{"NODE_ID"}).AddRow(int64(1)))

		rec.stmts, rec.queries = nil, nil
		_, err := client.Save(context.Background(), rec, []*save.Entity{
			save.New("TreeNode").SetID(50).Set("name", "Food"),
			save.New("TreeNode").SetID(1).Set("name", "Drinks"),
		}, save.WithMode(save.InsertOnly))
		require.NoError(t, mock.ExpectationsWereMet())

		require.Len(t, rec.stmts, 1)
		assert.Len(t, rec.stmts[0].Rows, 2)
		assert.True(t, rec.stmts[0].Batched)
		require.Len(t, rec.queries, 1)
		assert.Equal(t, sql.ReasonInvestigateConstraintViolation, rec.queries[0].Reason)

		var se *jimmer.SaveError
		require.ErrorAs(t, err, &se)
		assert.Equal(t, jimmer.NotUnique, se.Kind)
		assert.True(t, se.ID)
		assert.True(t, se.IsMatched("id"))
		v, _ := se.Value("id")
		assert.Equal(t, int64(1), v)
		assert.ErrorIs(t, err, errH2Unique)
		assert.EqualError(t, err, `save error caused by the path "<root>": cannot save the entity, the value of the id property "TreeNode.id" is "1" which already exists`)
		if last != nil {
			assert.Equal(t, last.Error(), err.Error())
		}
		last = err
	}
}

func TestKeyConflict(t *testing.T) {
	t.Run("single_row", func(t *testing.T) {
		exec := failing(0, errPgUnique, [][]any{{int64(12)}})
		_, err := newClient(t, sql.H2).Save(context.Background(), exec, []*save.Entity{
			save.New("Book").SetID(10).Set("name", "GraphQL in Action").Set("edition", 3),
		}, save.WithMode(save.UpdateOnly))

		require.Len(t, exec.queries, 1)
		assert.Equal(t, "select tb_1_.ID from BOOK tb_1_ where (tb_1_.NAME, tb_1_.EDITION) = (?, ?)", exec.queries[0].SQL)
		assert.Equal(t, []any{"GraphQL in Action", int64(3)}, exec.queries[0].Args)

		var se *jimmer.SaveError
		require.ErrorAs(t, err, &se)
		assert.False(t, se.ID)
		assert.True(t, se.IsMatched("name", "edition"))
		assert.True(t, se.IsMatched("edition", "name"))
		assert.False(t, se.IsMatched("name"))
		assert.EqualError(t, err, `save error caused by the path "<root>": cannot save the entity, the value of the key properties "[Book.name, Book.edition]" are "(GraphQL in Action, 3)" which already exists`)
	})

	t.Run("batched", func(t *testing.T) {
		exec := failing(-1, errPgUnique,
			nil,
			[][]any{{int64(3), "Learning GraphQL", int64(1)}},
		)
		_, err := newClient(t, sql.Postgres).Save(context.Background(), exec, []*save.Entity{
			save.New("Book").SetID(10).Set("name", "GraphQL in Action").Set("edition", 3),
			save.New("Book").SetID(11).Set("name", "Learning GraphQL").Set("edition", 1),
		}, save.WithMode(save.InsertOnly))

		require.Len(t, exec.queries, 2)
		assert.Equal(t, "select tb_1_.ID from BOOK tb_1_ where tb_1_.ID = any($1)", exec.queries[0].SQL)
		assert.Equal(t, []any{pq.Array([]any{int64(10), int64(11)})}, exec.queries[0].Args)
		assert.Equal(t, "select tb_1_.ID, tb_1_.NAME, tb_1_.EDITION from BOOK tb_1_ where (tb_1_.NAME, tb_1_.EDITION) in (($1, $2), ($3, $4))", exec.queries[1].SQL)
		for _, q := range exec.queries {
			assert.Equal(t, sql.ReasonInvestigateConstraintViolation, q.Reason)
		}

		var se *jimmer.SaveError
		require.ErrorAs(t, err, &se)
		assert.True(t, se.IsMatched("edition", "name"))
		name, _ := se.Value("name")
		assert.Equal(t, "Learning GraphQL", name)
	})

	t.Run("own_row", func(t *testing.T) {
		exec := failing(0, errPgUnique, [][]any{{int64(10)}})
		_, err := newClient(t, sql.H2).Save(context.Background(), exec, []*save.Entity{
			save.New("Book").SetID(10).Set("name", "GraphQL in Action").Set("edition", 3),
		}, save.WithMode(save.UpdateOnly))
		assert.True(t, jimmer.IsUnknownConstraint(err))
		assert.False(t, jimmer.IsSaveError(err))
		var pqErr *pq.Error
		assert.ErrorAs(t, err, &pqErr)
	})

	t.Run("single_column", func(t *testing.T) {
		exec := failing(0, errPgUnique, nil, [][]any{{int64(2)}})
		_, err := newClient(t, sql.H2).Save(context.Background(), exec, []*save.Entity{
			save.New("BookStore").SetID(1).Set("name", "MANNING"),
		}, save.WithMode(save.InsertOnly))
		require.Len(t, exec.queries, 2)
		assert.Equal(t, "select tb_1_.ID from BOOK_STORE tb_1_ where tb_1_.NAME = ?", exec.queries[1].SQL)
		assert.EqualError(t, err, `save error caused by the path "<root>": cannot save the entity, the value of the key property "[BookStore.name]" is "MANNING" which already exists`)
	})
}

func TestIllegalTargetID(t *testing.T) {
	t.Run("reference", func(t *testing.T) {
		exec := failing(1, errH2Ref)
		_, err := newClient(t, sql.H2).Save(context.Background(), exec, []*save.Entity{
			save.New("TreeNode").SetID(100).Set("name", "Pepsi").Set("parent", save.Ref("TreeNode", 3)),
			save.New("TreeNode").SetID(101).Set("name", "Nescafe").Set("parent", save.Ref("TreeNode", 50)),
		}, save.WithMode(save.InsertOnly))

		// Only the failing row is checked: its id, its key, then its parent.
		tests := []struct {
			sql  string
			args []any
		}{
			{"select tb_1_.NODE_ID from TREE_NODE tb_1_ where tb_1_.NODE_ID = ?", []any{int64(101)}},
			{"select tb_1_.NODE_ID from TREE_NODE tb_1_ where (tb_1_.NAME, tb_1_.PARENT_ID) = (?, ?)", []any{"Nescafe", int64(50)}},
			{"select tb_1_.NODE_ID from TREE_NODE tb_1_ where tb_1_.NODE_ID = ?", []any{int64(50)}},
		}
		require.Len(t, exec.queries, len(tests))
		for i, tt := range tests {
			assert.Equal(t, tt.sql, exec.queries[i].SQL)
			assert.Equal(t, tt.args, exec.queries[i].Args)
			assert.Equal(t, sql.ReasonInvestigateConstraintViolation, exec.queries[i].Reason)
		}

		var se *jimmer.SaveError
		require.ErrorAs(t, err, &se)
		assert.Equal(t, jimmer.IllegalTargetID, se.Kind)
		assert.Equal(t, "<root>.parent", se.Path.String())
		assert.Equal(t, "parent", se.Prop)
		assert.Equal(t, []any{int64(50)}, se.TargetIDs)
		assert.True(t, jimmer.IsIllegalTargetID(err))
		assert.EqualError(t, err, `save error caused by the path "<root>.parent": cannot save the entity, the associated id of the reference property "TreeNode.parent" is "50" but there is no corresponding associated object in the database`)
	})

	t.Run("batched", func(t *testing.T) {
		exec := failing(-1, errH2Ref, nil, nil, [][]any{{int64(7)}})
		_, err := newClient(t, sql.H2).Save(context.Background(), exec, []*save.Entity{
			save.New("Book").SetID(1).Set("name", "A").Set("edition", 1).Set("store", save.Ref("BookStore", 8)),
			save.New("Book").SetID(2).Set("name", "B").Set("edition", 1).Set("store", save.Ref("BookStore", 7)),
			save.New("Book").SetID(3).Set("name", "C").Set("edition", 1).Set("store", save.Ref("BookStore", 9)),
		}, save.WithMode(save.InsertOnly))

		require.Len(t, exec.queries, 3)
		assert.Equal(t, "select tb_1_.ID from BOOK tb_1_ where tb_1_.ID in (?, ?, ?)", exec.queries[0].SQL)
		assert.Equal(t, "select tb_1_.ID, tb_1_.NAME, tb_1_.EDITION from BOOK tb_1_ where (tb_1_.NAME, tb_1_.EDITION) in ((?, ?), (?, ?), (?, ?))", exec.queries[1].SQL)
		assert.Equal(t, "select tb_1_.ID from BOOK_STORE tb_1_ where tb_1_.ID in (?, ?, ?)", exec.queries[2].SQL)
		var se *jimmer.SaveError
		require.ErrorAs(t, err, &se)
		assert.Equal(t, []any{int64(8), int64(9)}, se.TargetIDs)
		assert.Equal(t, "<root>.store", se.Path.String())
		assert.EqualError(t, err, `save error caused by the path "<root>.store": cannot save the entity, the associated ids of the reference property "Book.store" are "[8, 9]" but there are no corresponding associated objects in the database`)
	})

	t.Run("nested_path", func(t *testing.T) {
		exec := &fakeExecutor{}
		exec.exec = func(stmt *save.Statement) (*save.ExecResult, error) {
			if len(exec.stmts) == 2 {
				return nil, &save.BatchError{Index: 0, Err: errH2Ref}
			}
			return affectedOnes(stmt), nil
		}
		root := save.New("TreeNode").SetID(1).Set("name", "Food").Set("childNodes", []*save.Entity{
			save.New("TreeNode").SetID(2).Set("name", "Drinks").Set("childNodes", []*save.Entity{
				save.New("TreeNode").SetID(3).Set("name", "Cola"),
			}),
		})
		_, err := newClient(t, sql.H2).Save(context.Background(), exec, []*save.Entity{root}, save.WithMode(save.InsertOnly))
		// The insert of Drinks fails and the lookup finds no parent row.
		var se *jimmer.SaveError
		require.ErrorAs(t, err, &se)
		assert.Equal(t, "<root>.childNodes.parent", se.Path.String())
		assert.Equal(t, []any{int64(1)}, se.TargetIDs)
	})

	t.Run("inconclusive", func(t *testing.T) {
		exec := failing(0, errH2Ref, nil, nil, [][]any{{int64(50)}})
		_, err := newClient(t, sql.H2).Save(context.Background(), exec, []*save.Entity{
			save.New("TreeNode").SetID(2).Set("name", "Coca Cola").Set("parent", save.Ref("TreeNode", 50)),
		}, save.WithMode(save.InsertOnly))
		var ee *jimmer.ExecutionError
		require.ErrorAs(t, err, &ee)
		assert.True(t, ee.Inconclusive)
		assert.Equal(t, "<root>", ee.Path.String())
		assert.ErrorIs(t, err, errH2Ref)
	})

	t.Run("investigation_fails", func(t *testing.T) {
		exec := failing(0, errH2Ref)
		exec.query = func(*save.Query) ([][]any, error) {
			return nil, errors.New("current transaction is aborted")
		}
		_, err := newClient(t, sql.H2).Save(context.Background(), exec, []*save.Entity{
			save.New("TreeNode").SetID(2).Set("name", "Coca Cola").Set("parent", save.Ref("TreeNode", 50)),
		}, save.WithMode(save.InsertOnly))
		var ee *jimmer.ExecutionError
		require.ErrorAs(t, err, &ee)
		assert.False(t, ee.Inconclusive)
		assert.ErrorIs(t, err, errH2Ref)
		assert.Len(t, exec.queries, 1)
	})
}
