package schema

import (
	"fmt"
	"strings"

	"github.com/go-openapi/inflect"

	"github.com/TrueNine/jimmer/schema/edge"
	"github.com/TrueNine/jimmer/schema/field"
)

type (
	// Field is implemented by the field builders.
	Field interface {
		Descriptor() *field.Descriptor
	}
	// Edge is implemented by the edge builders.
	Edge interface {
		Descriptor() *edge.Descriptor
	}
)

// Relation tells how an association is stored.
type Relation int

// Association storage kinds.
const (
	// ForeignKey associations are a column of the owner table.
	ForeignKey Relation = iota + 1
	// MiddleTable associations are rows of a junction table.
	MiddleTable
	// MappedBy associations are the foreign key column of the target
	// table pointing back at the owner.
	MappedBy
)

// String implements the fmt.Stringer interface.
func (r Relation) String() string {
	switch r {
	case ForeignKey:
		return "foreign key"
	case MiddleTable:
		return "middle table"
	case MappedBy:
		return "mapped by"
	default:
		return "invalid"
	}
}

// Def is the definition of one entity type, resolved by NewModel.
type Def struct {
	name   string
	table  string
	id     Field
	fields []Field
	edges  []Edge
	key    []string
}

// Entity starts the definition of the entity type name.
//
//	schema.Entity("TreeNode").
//		ID(field.Int64("id").StorageKey("NODE_ID")).
//		Fields(field.String("name")).
//		Edges(
//			edge.To("parent", "TreeNode").Unique().Nillable(),
//			edge.From("childNodes", "TreeNode").Ref("parent"),
//		).
//		Key("name", "parent")
func Entity(name string) *Def {
	return &Def{name: name}
}

// Table overrides the default table name.
func (d *Def) Table(name string) *Def {
	d.table = name
	return d
}

// ID sets the id property.
func (d *Def) ID(f Field) *Def {
	d.id = f
	return d
}

// Fields appends scalar properties.
func (d *Def) Fields(fs ...Field) *Def {
	d.fields = append(d.fields, fs...)
	return d
}

// Edges appends association properties.
func (d *Def) Edges(es ...Edge) *Def {
	d.edges = append(d.edges, es...)
	return d
}

// Key sets the business key: scalar properties or to-one foreign key
// associations whose values identify a row besides its id.
func (d *Def) Key(props ...string) *Def {
	d.key = props
	return d
}

// Type is a resolved entity type.
type Type struct {
	Name   string
	Table  string
	ID     *field.Descriptor
	Fields []*field.Descriptor
	Assocs []*Assoc
	Key    []string

	fields map[string]*field.Descriptor
	assocs map[string]*Assoc
}

// Field returns the scalar property name.
func (t *Type) Field(name string) (*field.Descriptor, bool) {
	f, ok := t.fields[name]
	return f, ok
}

// Assoc returns the association property name.
func (t *Type) Assoc(name string) (*Assoc, bool) {
	a, ok := t.assocs[name]
	return a, ok
}

// KeyColumns returns the columns of the business key, in key order.
func (t *Type) KeyColumns() []string {
	cols := make([]string, len(t.Key))
	for i, p := range t.Key {
		cols[i] = t.ColumnOf(p)
	}
	return cols
}

// ColumnOf returns the column of a scalar property or foreign key
// association of t, or "" if prop has no column in the table of t.
func (t *Type) ColumnOf(prop string) string {
	if prop == t.ID.Name {
		return t.ID.Column
	}
	if f, ok := t.fields[prop]; ok {
		return f.Column
	}
	if a, ok := t.assocs[prop]; ok && a.Relation == ForeignKey {
		return a.Column
	}
	return ""
}

// Assoc is a resolved association property.
type Assoc struct {
	*edge.Descriptor
	Owner    *Type
	Target   *Type
	Relation Relation
	// Column is the foreign key column: on the owner table for ForeignKey,
	// on the target table for MappedBy.
	Column string
	// Middle is the junction table of MiddleTable associations.
	Middle *Middle
	// Ref is the owning association of an inverse association.
	Ref *Assoc
}

// IsList reports whether the association holds several targets.
func (a *Assoc) IsList() bool { return !a.Unique }

// Middle describes the junction table of an association.
type Middle struct {
	Table        string
	OwnerColumn  string
	TargetColumn string
	// Discriminator is set when the table is shared by several
	// associations.
	Discriminator *edge.Discriminator
}

// Model is a read-only registry of resolved entity types. It is safe for
// concurrent use once built.
type Model struct {
	types map[string]*Type
	order []*Type
}

// NewModel resolves and validates the given definitions.
func NewModel(defs ...*Def) (*Model, error) {
	m := &Model{types: make(map[string]*Type, len(defs))}
	for _, d := range defs {
		t, err := d.resolve()
		if err != nil {
			return nil, err
		}
		if _, ok := m.types[t.Name]; ok {
			return nil, fmt.Errorf("schema: duplicate entity type %q", t.Name)
		}
		m.types[t.Name] = t
		m.order = append(m.order, t)
	}
	// Owning associations first, inverse ones refer to them.
	for _, inverse := range []bool{false, true} {
		for _, t := range m.order {
			for _, a := range t.Assocs {
				if a.Inverse != inverse {
					continue
				}
				if err := m.link(a); err != nil {
					return nil, err
				}
			}
		}
	}
	for _, t := range m.order {
		for _, p := range t.Key {
			if t.ColumnOf(p) == "" || p == t.ID.Name {
				return nil, fmt.Errorf("schema: key property %q of %s is not a scalar or foreign key property", p, t.Name)
			}
		}
	}
	return m, nil
}

// Type returns the entity type name.
func (m *Model) Type(name string) (*Type, bool) {
	t, ok := m.types[name]
	return t, ok
}

// Types returns the entity types in definition order.
func (m *Model) Types() []*Type {
	return append([]*Type(nil), m.order...)
}

func (d *Def) resolve() (*Type, error) {
	if d.name == "" {
		return nil, fmt.Errorf("schema: entity type without a name")
	}
	if d.id == nil {
		return nil, fmt.Errorf("schema: entity type %s has no id property", d.name)
	}
	t := &Type{
		Name:   d.name,
		Table:  d.table,
		Key:    d.key,
		fields: make(map[string]*field.Descriptor),
		assocs: make(map[string]*Assoc),
	}
	if t.Table == "" {
		t.Table = upperSnake(d.name)
	}
	seen := make(map[string]bool)
	column := func(f Field) (*field.Descriptor, error) {
		desc := *f.Descriptor()
		if desc.Name == "" || seen[desc.Name] {
			return nil, fmt.Errorf("schema: invalid or duplicate property %q in %s", desc.Name, d.name)
		}
		if !desc.Type.Valid() {
			return nil, fmt.Errorf("schema: property %s.%s has an invalid type", d.name, desc.Name)
		}
		seen[desc.Name] = true
		if desc.Column == "" {
			desc.Column = upperSnake(desc.Name)
		}
		return &desc, nil
	}
	id, err := column(d.id)
	if err != nil {
		return nil, err
	}
	t.ID = id
	for _, f := range d.fields {
		desc, err := column(f)
		if err != nil {
			return nil, err
		}
		t.Fields = append(t.Fields, desc)
		t.fields[desc.Name] = desc
	}
	for _, e := range d.edges {
		desc := e.Descriptor()
		if desc.Name == "" || seen[desc.Name] {
			return nil, fmt.Errorf("schema: invalid or duplicate property %q in %s", desc.Name, d.name)
		}
		seen[desc.Name] = true
		a := &Assoc{Descriptor: desc, Owner: t}
		t.Assocs = append(t.Assocs, a)
		t.assocs[desc.Name] = a
	}
	return t, nil
}

func (m *Model) link(a *Assoc) error {
	target, ok := m.types[a.Type]
	if !ok {
		return fmt.Errorf("schema: association %s.%s refers to unknown type %q", a.Owner.Name, a.Name, a.Type)
	}
	a.Target = target
	key := a.StorageKey
	switch {
	case a.Inverse:
		ref, ok := target.assocs[a.RefName]
		if !ok || ref.Inverse {
			return fmt.Errorf("schema: inverse association %s.%s refers to unknown owning association %s.%s", a.Owner.Name, a.Name, target.Name, a.RefName)
		}
		if ref.Target != a.Owner {
			return fmt.Errorf("schema: association %s.%s does not point back at %s", target.Name, ref.Name, a.Owner.Name)
		}
		a.Ref = ref
		switch ref.Relation {
		case ForeignKey:
			a.Relation = MappedBy
			a.Column = ref.Column
		case MiddleTable:
			a.Relation = MiddleTable
			a.Middle = &Middle{
				Table:         ref.Middle.Table,
				OwnerColumn:   ref.Middle.TargetColumn,
				TargetColumn:  ref.Middle.OwnerColumn,
				Discriminator: ref.Middle.Discriminator,
			}
		}
	case a.Unique && (key == nil || key.Table == ""):
		a.Relation = ForeignKey
		a.Column = upperSnake(a.Name) + "_ID"
		if key != nil && key.Column != "" {
			a.Column = key.Column
		}
	default:
		a.Relation = MiddleTable
		mid := &Middle{
			Table:         a.Owner.Table + "_" + target.Table + "_MAPPING",
			OwnerColumn:   upperSnake(a.Owner.Name) + "_ID",
			TargetColumn:  upperSnake(target.Name) + "_ID",
			Discriminator: a.Discriminator,
		}
		if key != nil && key.Table != "" {
			mid.Table = key.Table
		}
		if key != nil && len(key.Columns) > 0 {
			if len(key.Columns) != 2 {
				return fmt.Errorf("schema: junction of %s.%s needs exactly two columns", a.Owner.Name, a.Name)
			}
			mid.OwnerColumn, mid.TargetColumn = key.Columns[0], key.Columns[1]
		}
		if mid.OwnerColumn == mid.TargetColumn {
			return fmt.Errorf("schema: junction of %s.%s needs distinct owner and target columns", a.Owner.Name, a.Name)
		}
		a.Middle = mid
	}
	return nil
}

// upperSnake returns the default storage name of an identifier:
// TreeNode -> TREE_NODE, storeName -> STORE_NAME.
func upperSnake(s string) string {
	return strings.ToUpper(inflect.Underscore(s))
}
