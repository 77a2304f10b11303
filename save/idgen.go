package save

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/TrueNine/jimmer/schema"
	"github.com/TrueNine/jimmer/schema/field"
)

// IDStrategy tells where the ids of new rows come from.
type IDStrategy int

// Id strategies.
const (
	// StrategyNone requires the caller to set every id.
	StrategyNone IDStrategy = iota
	// StrategyIdentity lets the database assign ids, read back after
	// each insert.
	StrategyIdentity
	// StrategyUUID generates random uuids in process.
	StrategyUUID
	// StrategySequence generates increasing integers in process.
	StrategySequence
	// StrategyUser calls a caller-supplied function.
	StrategyUser
)

var strategyNames = map[IDStrategy]string{
	StrategyNone:     "none",
	StrategyIdentity: "identity",
	StrategyUUID:     "uuid",
	StrategySequence: "sequence",
	StrategyUser:     "user",
}

// String implements the fmt.Stringer interface.
func (s IDStrategy) String() string {
	if n, ok := strategyNames[s]; ok {
		return n
	}
	return fmt.Sprintf("IDStrategy(%d)", int(s))
}

// ParseIDStrategy returns the strategy named name.
func ParseIDStrategy(name string) (IDStrategy, error) {
	for s, n := range strategyNames {
		if n == name {
			return s, nil
		}
	}
	return StrategyNone, fmt.Errorf("save: unknown id strategy %q", name)
}

// IDGenerator supplies the ids of new rows.
type IDGenerator interface {
	Strategy() IDStrategy
	// Generate returns a new id for a row of typ, or nil if the database
	// assigns it.
	Generate(ctx context.Context, typ *schema.Type) (any, error)
}

type identity struct{}

// Identity returns the generator of database-assigned ids.
func Identity() IDGenerator { return identity{} }

func (identity) Strategy() IDStrategy { return StrategyIdentity }

func (identity) Generate(context.Context, *schema.Type) (any, error) { return nil, nil }

// UUIDGenerator generates random (version 4) uuids for uuid and string
// id properties.
type UUIDGenerator struct{}

// Strategy implements IDGenerator.
func (UUIDGenerator) Strategy() IDStrategy { return StrategyUUID }

// Generate implements IDGenerator.
func (UUIDGenerator) Generate(_ context.Context, typ *schema.Type) (any, error) {
	id := uuid.New()
	switch typ.ID.Type {
	case field.TypeUUID:
		return id, nil
	case field.TypeString:
		return id.String(), nil
	}
	return nil, fmt.Errorf("save: uuid ids do not fit %s.%s of type %s", typ.Name, typ.ID.Name, typ.ID.Type)
}

// SequenceGenerator generates increasing integer ids shared by every
// entity type. It is safe for concurrent use.
type SequenceGenerator struct {
	next atomic.Int64
}

// NewSequenceGenerator returns a sequence whose first id is start.
func NewSequenceGenerator(start int64) *SequenceGenerator {
	g := &SequenceGenerator{}
	g.next.Store(start - 1)
	return g
}

// Strategy implements IDGenerator.
func (*SequenceGenerator) Strategy() IDStrategy { return StrategySequence }

// Generate implements IDGenerator.
func (g *SequenceGenerator) Generate(_ context.Context, typ *schema.Type) (any, error) {
	switch typ.ID.Type {
	case field.TypeInt, field.TypeInt64:
		return g.next.Add(1), nil
	}
	return nil, fmt.Errorf("save: sequence ids do not fit %s.%s of type %s", typ.Name, typ.ID.Name, typ.ID.Type)
}

// GeneratorFunc type is an adapter which allows the use of ordinary
// functions as id generators.
type GeneratorFunc func(context.Context, *schema.Type) (any, error)

// Strategy implements IDGenerator.
func (GeneratorFunc) Strategy() IDStrategy { return StrategyUser }

// Generate returns f(ctx, typ).
func (f GeneratorFunc) Generate(ctx context.Context, typ *schema.Type) (any, error) {
	return f(ctx, typ)
}

// generatorOf returns the generator for a strategy configured by name.
func generatorOf(s IDStrategy, start int64) (IDGenerator, error) {
	switch s {
	case StrategyNone:
		return nil, nil
	case StrategyIdentity:
		return Identity(), nil
	case StrategyUUID:
		return UUIDGenerator{}, nil
	case StrategySequence:
		return NewSequenceGenerator(start), nil
	}
	return nil, fmt.Errorf("save: strategy %s cannot be configured by name", s)
}
