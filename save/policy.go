package save

import "github.com/TrueNine/jimmer/dialect"

// BatchKey selects an entry of a BatchPolicy.
type BatchKey struct {
	// Dialect is a dialect name, or "" for every dialect.
	Dialect  string
	Strategy IDStrategy
}

// BatchPolicy decides, per dialect and id strategy, whether statements
// may run as one batched call. Statements that do not read generated ids
// are looked up with the strategy of the entity type, or StrategyNone for
// junction tables.
type BatchPolicy map[BatchKey]bool

// DefaultBatchPolicy returns the policy executing inserts of database
// assigned ids row by row on every dialect.
func DefaultBatchPolicy() BatchPolicy {
	p := BatchPolicy{{Strategy: StrategyIdentity}: false}
	for _, d := range []string{dialect.H2, dialect.Postgres, dialect.MySQL, dialect.SQLite, dialect.Generic} {
		p[BatchKey{Dialect: d, Strategy: StrategyIdentity}] = false
	}
	return p
}

// Allows reports whether statements of the given dialect and strategy
// may be batched. Entries of the dialect take precedence over entries for
// every dialect. Missing entries allow batching except for identity.
func (p BatchPolicy) Allows(dialectName string, s IDStrategy) bool {
	if v, ok := p[BatchKey{Dialect: dialectName, Strategy: s}]; ok {
		return v
	}
	if v, ok := p[BatchKey{Strategy: s}]; ok {
		return v
	}
	return s != StrategyIdentity
}

// With returns a copy of p with the entry k set to v.
func (p BatchPolicy) With(k BatchKey, v bool) BatchPolicy {
	out := make(BatchPolicy, len(p)+1)
	for key, val := range p {
		out[key] = val
	}
	out[k] = v
	return out
}
