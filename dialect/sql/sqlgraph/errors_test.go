package sqlgraph

import (
	"database/sql"
	"errors"
	"fmt"
	"testing"

	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

type stateErr string

func (e stateErr) Error() string    { return "driver error" }
func (e stateErr) SQLState() string { return string(e) }

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Violation
	}{
		{"nil", nil, NoViolation},
		{"plain", errors.New("connection refused"), NoViolation},
		{"pq_unique", &pq.Error{Code: "23505"}, UniqueViolation},
		{"pq_fk", &pq.Error{Code: "23503"}, ForeignKeyViolation},
		{"pq_check", &pq.Error{Code: "23514"}, CheckViolation},
		{"pq_other", &pq.Error{Code: "40001"}, NoViolation},
		{"pq_wrapped", fmt.Errorf("dialect/sql: exec: %w", &pq.Error{Code: "23505"}), UniqueViolation},
		{"mysql_duplicate", &mysql.MySQLError{Number: 1062, Message: "Duplicate entry '1' for key 'PRIMARY'"}, UniqueViolation},
		{"mysql_child", &mysql.MySQLError{Number: 1452}, ForeignKeyViolation},
		{"mysql_parent", &mysql.MySQLError{Number: 1451}, ForeignKeyViolation},
		{"mysql_other", &mysql.MySQLError{Number: 1205}, NoViolation},
		{"sqlstate", stateErr("23503"), ForeignKeyViolation},
		{"sqlite_text", errors.New("UNIQUE constraint failed: BOOK.NAME, BOOK.EDITION"), UniqueViolation},
		{"sqlite_fk_text", errors.New("FOREIGN KEY constraint failed"), ForeignKeyViolation},
		{"h2_text", errors.New(`Unique index or primary key violation: "PUBLIC.PRIMARY_KEY_2 ON PUBLIC.TREE_NODE(NODE_ID)"`), UniqueViolation},
		{"h2_fk_text", errors.New(`Referential integrity constraint violation: "FK_TREE_NODE__PARENT"`), ForeignKeyViolation},
		{"check_text", errors.New("CHECK constraint failed: price_positive"), CheckViolation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.err))
		})
	}
}

func TestClassifySQLite(t *testing.T) {
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	defer db.Close()
	db.SetMaxOpenConns(1)

	_, err = db.Exec("PRAGMA foreign_keys = ON")
	require.NoError(t, err)
	_, err = db.Exec("create table PARENT(ID integer primary key)")
	require.NoError(t, err)
	_, err = db.Exec("create table CHILD(ID integer primary key, PARENT_ID integer references PARENT(ID))")
	require.NoError(t, err)
	_, err = db.Exec("insert into PARENT(ID) values(1)")
	require.NoError(t, err)

	_, err = db.Exec("insert into PARENT(ID) values(1)")
	require.Error(t, err)
	assert.Equal(t, UniqueViolation, Classify(err))
	assert.True(t, IsUniqueConstraintError(err))

	_, err = db.Exec("insert into CHILD(ID, PARENT_ID) values(1, 50)")
	require.Error(t, err)
	assert.Equal(t, ForeignKeyViolation, Classify(err))
	assert.True(t, IsForeignKeyConstraintError(err))
	assert.True(t, IsConstraintError(err))
}

func TestViolationString(t *testing.T) {
	assert.Equal(t, "unique", UniqueViolation.String())
	assert.Equal(t, "foreign key", ForeignKeyViolation.String())
	assert.Equal(t, "none", NoViolation.String())
}
