// Package sql implements the dialect.Driver interface on top of
// database/sql and renders the statements of the save engine for each
// database family.
//
// # Flavors
//
// A Flavor is the fixed set of syntax choices of one family: placeholder
// style, membership and exclusion predicates, entity upsert, junction
// upsert and how generated ids are read back. Statements are rendered by
// the flavor:
//
//	sql.H2.Insert("TREE_NODE", []string{"NODE_ID", "NAME", "PARENT_ID"}, "")
//	// insert into TREE_NODE(NODE_ID, NAME, PARENT_ID) values(?, ?, ?)
//
//	sql.Postgres.UpsertSQL("BOOK", []string{"ID", "NAME", "EDITION"}, []string{"ID"}, []string{"NAME", "EDITION"})
//	// insert into BOOK(ID, NAME, EDITION) values($1, $2, $3)
//	//     on conflict(ID) do update set NAME = excluded.NAME, EDITION = excluded.EDITION
//
// Statements executed with parameter rows only hold placeholders; lookups
// like SelectIn and DeleteMiddle bind their arguments and return them.
//
// # Query Reasons
//
// Every SELECT issued by the save engine carries a QueryReason in its
// context (WithReason, ReasonFromContext), so loggers and drivers can tell
// a diagnostic query from a junction lookup.
//
// # Statistics
//
// StatsDriver wraps a dialect.Driver, counts statements per reason and
// reports slow ones:
//
//	drv := sql.NewStatsDriver(db,
//		sql.WithSlowThreshold(200*time.Millisecond),
//		sql.WithStatsLogger(slog.Default()),
//	)
//	fmt.Println(drv.QueryStats().Stats())
//
// Constraint violation recognition lives in the sqlgraph sub-package.
package sql
