// Package sqlgraph recognizes constraint violations reported by the
// supported database drivers.
package sqlgraph

import (
	"errors"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// Violation is the kind of constraint an error reports.
type Violation int

// Violation kinds.
const (
	NoViolation Violation = iota
	// UniqueViolation covers primary key and unique index violations.
	UniqueViolation
	// ForeignKeyViolation covers missing referenced rows.
	ForeignKeyViolation
	// CheckViolation covers check constraints. It is never investigated.
	CheckViolation
)

// String implements the fmt.Stringer interface.
func (v Violation) String() string {
	switch v {
	case UniqueViolation:
		return "unique"
	case ForeignKeyViolation:
		return "foreign key"
	case CheckViolation:
		return "check"
	default:
		return "none"
	}
}

// PostgreSQL SQLSTATE codes for constraint violations (Class 23).
const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
	pgCheckViolation      = "23514"
)

// MySQL error numbers for constraint violations.
const (
	mysqlDuplicateEntry         = 1062
	mysqlForeignKeyParent       = 1451 // Cannot delete or update a parent row
	mysqlForeignKeyChild        = 1452 // Cannot add or update a child row
	mysqlCheckConstraintViolate = 3819
)

// sqlStateError is implemented by drivers exposing SQLSTATE codes, like pgx.
type sqlStateError interface {
	SQLState() string
}

// Classify returns the kind of constraint violation err reports, looking
// at the driver error types first and the message text last.
func Classify(err error) Violation {
	if err == nil {
		return NoViolation
	}
	if pqErr := (*pq.Error)(nil); errors.As(err, &pqErr) {
		return fromSQLState(string(pqErr.Code))
	}
	if myErr := (*mysql.MySQLError)(nil); errors.As(err, &myErr) {
		switch myErr.Number {
		case mysqlDuplicateEntry:
			return UniqueViolation
		case mysqlForeignKeyParent, mysqlForeignKeyChild:
			return ForeignKeyViolation
		case mysqlCheckConstraintViolate:
			return CheckViolation
		}
		return NoViolation
	}
	if liteErr := (*sqlite.Error)(nil); errors.As(err, &liteErr) {
		switch liteErr.Code() {
		case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
			return UniqueViolation
		case sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY:
			return ForeignKeyViolation
		case sqlite3.SQLITE_CONSTRAINT_CHECK:
			return CheckViolation
		}
		// Fall through to the message for other extended codes.
	}
	if e, ok := asError[sqlStateError](err); ok {
		if v := fromSQLState(e.SQLState()); v != NoViolation {
			return v
		}
	}
	msg := err.Error()
	switch {
	case containsAny(msg,
		"Error 1062",                            // MySQL (string fallback)
		"violates unique constraint",            // Postgres (string fallback)
		"UNIQUE constraint failed",              // SQLite
		"Unique index or primary key violation", // H2
	):
		return UniqueViolation
	case containsAny(msg,
		"Error 1451",
		"Error 1452",
		"violates foreign key constraint",
		"FOREIGN KEY constraint failed",
		"Referential integrity constraint violation", // H2
	):
		return ForeignKeyViolation
	case containsAny(msg,
		"Error 3819",
		"violates check constraint",
		"CHECK constraint failed",
	):
		return CheckViolation
	}
	return NoViolation
}

func fromSQLState(code string) Violation {
	switch code {
	case pgUniqueViolation:
		return UniqueViolation
	case pgForeignKeyViolation:
		return ForeignKeyViolation
	case pgCheckViolation:
		return CheckViolation
	}
	return NoViolation
}

// IsConstraintError returns true if the error resulted from a database constraint violation.
func IsConstraintError(err error) bool {
	return Classify(err) != NoViolation
}

// IsUniqueConstraintError reports if the error resulted from a DB uniqueness constraint violation.
func IsUniqueConstraintError(err error) bool {
	return Classify(err) == UniqueViolation
}

// IsForeignKeyConstraintError reports if the error resulted from a database foreign-key constraint violation.
func IsForeignKeyConstraintError(err error) bool {
	return Classify(err) == ForeignKeyViolation
}

// asError attempts to extract an error implementing interface T from the error chain.
func asError[T any](err error) (T, bool) {
	var target T
	for err != nil {
		if e, ok := err.(T); ok {
			return e, true
		}
		err = errors.Unwrap(err)
	}
	return target, false
}

func containsAny(s string, substrings ...string) bool {
	for _, sub := range substrings {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
