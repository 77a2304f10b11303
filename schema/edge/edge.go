package edge

// Descriptor describes an association property of an entity type.
type Descriptor struct {
	Name          string         // property name
	Type          string         // target entity type name
	Unique        bool           // to-one association
	Nullable      bool           // foreign key column accepts NULL
	Inverse       bool           // declared with From
	RefName       string         // owning association of an inverse edge
	StorageKey    *StorageKey    // column or junction table override
	Discriminator *Discriminator // junction rows filter
	Comment       string
}

// StorageKey holds the storage configuration of an association: the
// foreign key column of a to-one association, or the junction table of a
// many-to-many association.
type StorageKey struct {
	Table   string   // junction table name
	Columns []string // junction owner and target columns
	Column  string   // foreign key column
}

// Discriminator restricts the rows of a junction table shared by several
// associations, like a "type" column holding "VIP" or "ORDINARY".
type Discriminator struct {
	Column string
	Value  any
}

// StorageOption allows configuring an association storage using
// functional options.
type StorageOption func(*StorageKey)

// Table sets the junction table name of a many-to-many association.
func Table(name string) StorageOption {
	return func(key *StorageKey) {
		key.Table = name
	}
}

// Columns sets the owner and target columns of the junction table.
func Columns(owner, target string) StorageOption {
	return func(key *StorageKey) {
		key.Columns = []string{owner, target}
	}
}

// Column sets the foreign key column of a to-one association.
func Column(name string) StorageOption {
	return func(key *StorageKey) {
		key.Column = name
	}
}

// To defines an association owned by the declaring type. A unique
// association is stored as a foreign key column of the declaring table,
// other associations as rows of a junction table.
//
//	edge.To("parent", "TreeNode").Unique().Nillable()
//	edge.To("authors", "Author").StorageKey(edge.Table("BOOK_AUTHOR_MAPPING"))
func To(name, typ string) *assocBuilder {
	return &assocBuilder{desc: &Descriptor{Name: name, Type: typ}}
}

// From defines the inverse side of an association declared with To on
// the target type. Saving an inverse association saves the targets after
// the declaring entity, bound to it.
//
//	edge.From("childNodes", "TreeNode").Ref("parent")
func From(name, typ string) *inverseBuilder {
	return &inverseBuilder{desc: &Descriptor{Name: name, Type: typ, Inverse: true}}
}

// assocBuilder is the builder for associations declared with To.
type assocBuilder struct {
	desc *Descriptor
}

// Unique sets the association to be to-one.
func (b *assocBuilder) Unique() *assocBuilder {
	b.desc.Unique = true
	return b
}

// Nillable allows the foreign key column to be NULL.
func (b *assocBuilder) Nillable() *assocBuilder {
	b.desc.Nullable = true
	return b
}

// StorageKey overrides the default storage of the association.
//
//	edge.To("parent", "TreeNode").Unique().StorageKey(edge.Column("PARENT_ID"))
//	edge.To("customers", "Customer").StorageKey(
//		edge.Table("shop_customer_mapping"),
//		edge.Columns("shop_id", "customer_id"),
//	)
func (b *assocBuilder) StorageKey(opts ...StorageOption) *assocBuilder {
	if b.desc.StorageKey == nil {
		b.desc.StorageKey = &StorageKey{}
	}
	for _, opt := range opts {
		opt(b.desc.StorageKey)
	}
	return b
}

// Discriminator restricts the junction rows of the association to the
// rows whose column holds value.
func (b *assocBuilder) Discriminator(column string, value any) *assocBuilder {
	b.desc.Discriminator = &Discriminator{Column: column, Value: value}
	return b
}

// Comment sets the association comment.
func (b *assocBuilder) Comment(c string) *assocBuilder {
	b.desc.Comment = c
	return b
}

// Descriptor implements the schema.Edge interface by returning its descriptor.
func (b *assocBuilder) Descriptor() *Descriptor {
	return b.desc
}

// inverseBuilder is the builder for associations declared with From.
type inverseBuilder struct {
	desc *Descriptor
}

// Ref sets the owning association this edge is the inverse of.
func (b *inverseBuilder) Ref(ref string) *inverseBuilder {
	b.desc.RefName = ref
	return b
}

// Unique sets the inverse association to be to-one.
func (b *inverseBuilder) Unique() *inverseBuilder {
	b.desc.Unique = true
	return b
}

// Comment sets the association comment.
func (b *inverseBuilder) Comment(c string) *inverseBuilder {
	b.desc.Comment = c
	return b
}

// Descriptor implements the schema.Edge interface by returning its descriptor.
func (b *inverseBuilder) Descriptor() *Descriptor {
	return b.desc
}
