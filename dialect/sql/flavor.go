package sql

import (
	"fmt"

	"github.com/TrueNine/jimmer/dialect"
)

// PlaceholderStyle selects how bind parameters are written.
type PlaceholderStyle int

// Placeholder styles.
const (
	PlaceholderQuestion PlaceholderStyle = iota + 1 // ?
	PlaceholderDollar                               // $1, $2, ...
)

// MembershipStyle selects how "column is one of values" is written.
type MembershipStyle int

// Membership styles.
const (
	MembershipInList   MembershipStyle = iota + 1 // c in (?, ?)
	MembershipAnyArray                            // c = any(?)
)

// ExclusionStyle selects how "column is none of values" is written.
type ExclusionStyle int

// Exclusion styles.
const (
	ExclusionNotIn  ExclusionStyle = iota + 1 // c not in (?, ?)
	ExclusionNotAny                           // not (c = any(?))
)

// UpsertStyle selects the entity upsert syntax.
type UpsertStyle int

// Upsert styles.
const (
	UpsertMerge          UpsertStyle = iota + 1 // merge into ... using(values(...))
	UpsertOnConflict                            // insert ... on conflict(...) do update
	UpsertOnDuplicateKey                        // insert ... on duplicate key update
	UpsertPlainInsert                           // insert, conflicts are investigated
)

// MiddleUpsertStyle selects the junction table insert-if-absent syntax.
type MiddleUpsertStyle int

// Junction upsert styles.
const (
	MiddleMerge        MiddleUpsertStyle = iota + 1 // merge ... when not matched then insert
	MiddleOnConflict                                // insert ... on conflict(...) do nothing
	MiddleInsertIgnore                              // insert ignore into ...
	MiddleLookupInsert                              // select existing rows, insert the rest
)

// GeneratedKeyStyle selects how database-assigned ids are read back.
type GeneratedKeyStyle int

// Generated key styles.
const (
	GeneratedLastInsertID GeneratedKeyStyle = iota + 1 // sql.Result.LastInsertId
	GeneratedReturning                                 // insert ... returning ID
)

// Flavor is the fixed set of syntax choices of one database family.
// Every choice must be set; see Validate.
type Flavor struct {
	Name         string
	Placeholder  PlaceholderStyle
	Membership   MembershipStyle
	Exclusion    ExclusionStyle
	Upsert       UpsertStyle
	MiddleUpsert MiddleUpsertStyle
	GeneratedKey GeneratedKeyStyle
	// Savepoint wraps every statement executed inside a transaction in a
	// savepoint, for databases that abort the transaction on error.
	Savepoint bool
	// Batch reports whether the family accepts batched execution.
	Batch bool
}

// Predefined flavors.
var (
	H2 = Flavor{
		Name:         dialect.H2,
		Placeholder:  PlaceholderQuestion,
		Membership:   MembershipInList,
		Exclusion:    ExclusionNotIn,
		Upsert:       UpsertMerge,
		MiddleUpsert: MiddleMerge,
		GeneratedKey: GeneratedLastInsertID,
		Batch:        true,
	}
	Postgres = Flavor{
		Name:         dialect.Postgres,
		Placeholder:  PlaceholderDollar,
		Membership:   MembershipAnyArray,
		Exclusion:    ExclusionNotAny,
		Upsert:       UpsertOnConflict,
		MiddleUpsert: MiddleOnConflict,
		GeneratedKey: GeneratedReturning,
		Savepoint:    true,
		Batch:        true,
	}
	MySQL = Flavor{
		Name:         dialect.MySQL,
		Placeholder:  PlaceholderQuestion,
		Membership:   MembershipInList,
		Exclusion:    ExclusionNotIn,
		Upsert:       UpsertOnDuplicateKey,
		MiddleUpsert: MiddleInsertIgnore,
		GeneratedKey: GeneratedLastInsertID,
		Batch:        true,
	}
	SQLite = Flavor{
		Name:         dialect.SQLite,
		Placeholder:  PlaceholderQuestion,
		Membership:   MembershipInList,
		Exclusion:    ExclusionNotIn,
		Upsert:       UpsertOnConflict,
		MiddleUpsert: MiddleOnConflict,
		GeneratedKey: GeneratedLastInsertID,
		Batch:        true,
	}
	Generic = Flavor{
		Name:         dialect.Generic,
		Placeholder:  PlaceholderQuestion,
		Membership:   MembershipInList,
		Exclusion:    ExclusionNotIn,
		Upsert:       UpsertPlainInsert,
		MiddleUpsert: MiddleLookupInsert,
		GeneratedKey: GeneratedLastInsertID,
		Batch:        false,
	}
)

// FlavorOf returns the predefined flavor registered under the given
// dialect name.
func FlavorOf(name string) (Flavor, error) {
	switch name {
	case dialect.H2:
		return H2, nil
	case dialect.Postgres:
		return Postgres, nil
	case dialect.MySQL:
		return MySQL, nil
	case dialect.SQLite:
		return SQLite, nil
	case dialect.Generic:
		return Generic, nil
	default:
		return Flavor{}, fmt.Errorf("dialect/sql: unknown dialect %q", name)
	}
}

// Validate reports an error if one of the flavor choices is left unset
// or out of range.
func (f Flavor) Validate() error {
	switch {
	case f.Name == "":
		return fmt.Errorf("dialect/sql: flavor without a name")
	case f.Placeholder < PlaceholderQuestion || f.Placeholder > PlaceholderDollar:
		return fmt.Errorf("dialect/sql: flavor %q: placeholder style is not set", f.Name)
	case f.Membership < MembershipInList || f.Membership > MembershipAnyArray:
		return fmt.Errorf("dialect/sql: flavor %q: membership style is not set", f.Name)
	case f.Exclusion < ExclusionNotIn || f.Exclusion > ExclusionNotAny:
		return fmt.Errorf("dialect/sql: flavor %q: exclusion style is not set", f.Name)
	case f.Upsert < UpsertMerge || f.Upsert > UpsertPlainInsert:
		return fmt.Errorf("dialect/sql: flavor %q: upsert style is not set", f.Name)
	case f.MiddleUpsert < MiddleMerge || f.MiddleUpsert > MiddleLookupInsert:
		return fmt.Errorf("dialect/sql: flavor %q: junction upsert style is not set", f.Name)
	case f.GeneratedKey < GeneratedLastInsertID || f.GeneratedKey > GeneratedReturning:
		return fmt.Errorf("dialect/sql: flavor %q: generated key style is not set", f.Name)
	}
	return nil
}

// SilentMiddleViolations reports whether the junction upsert of the flavor
// swallows foreign key violations instead of failing.
func (f Flavor) SilentMiddleViolations() bool {
	return f.MiddleUpsert == MiddleInsertIgnore
}
