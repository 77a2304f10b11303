package sql

import "context"

// QueryReason tells why the save engine issued a SELECT statement.
type QueryReason int

// Query reasons.
const (
	// ReasonNone marks statements issued on behalf of the caller.
	ReasonNone QueryReason = iota
	// ReasonLoadMiddleTable marks the lookup of existing junction rows
	// done by flavors without a junction upsert syntax.
	ReasonLoadMiddleTable
	// ReasonFetchKeyIDs marks the lookup of ids for rows that were
	// upserted by business key.
	ReasonFetchKeyIDs
	// ReasonInvestigateConstraintViolation marks read-only diagnostic
	// queries issued after a constraint violation.
	ReasonInvestigateConstraintViolation
)

// String implements the fmt.Stringer interface.
func (r QueryReason) String() string {
	switch r {
	case ReasonNone:
		return "NONE"
	case ReasonLoadMiddleTable:
		return "LOAD_MIDDLE_TABLE"
	case ReasonFetchKeyIDs:
		return "FETCH_KEY_IDS"
	case ReasonInvestigateConstraintViolation:
		return "INVESTIGATE_CONSTRAINT_VIOLATION_ERROR"
	default:
		return "UNKNOWN"
	}
}

type reasonCtxKey struct{}

// WithReason returns a new context that carries the given query reason.
func WithReason(ctx context.Context, r QueryReason) context.Context {
	return context.WithValue(ctx, reasonCtxKey{}, r)
}

// ReasonFromContext returns the query reason stored in ctx, or ReasonNone.
func ReasonFromContext(ctx context.Context) QueryReason {
	r, _ := ctx.Value(reasonCtxKey{}).(QueryReason)
	return r
}
