package save

// Entity is the input of a save command: one object of an entity type
// with the properties the caller explicitly set. A property that is not
// set is left untouched in the database, while a property set to nil is
// written as NULL.
//
// Association values are *Entity for to-one associations and []*Entity
// for the others. An entity with an id and no other property is a
// reference: it is never saved, only its id is used.
type Entity struct {
	typ   string
	id    any
	hasID bool
	props map[string]any
	order []string
}

// New returns an empty entity of the given type.
func New(typ string) *Entity {
	return &Entity{typ: typ, props: make(map[string]any)}
}

// Ref returns a reference to the existing entity typ with the given id.
func Ref(typ string, id any) *Entity {
	return New(typ).SetID(id)
}

// SetID sets the id of the entity.
func (e *Entity) SetID(id any) *Entity {
	e.id, e.hasID = id, true
	return e
}

// Set sets the property prop to v.
func (e *Entity) Set(prop string, v any) *Entity {
	if _, ok := e.props[prop]; !ok {
		e.order = append(e.order, prop)
	}
	e.props[prop] = v
	return e
}

// Type returns the entity type name.
func (e *Entity) Type() string { return e.typ }

// ID returns the id of the entity, if set.
func (e *Entity) ID() (any, bool) { return e.id, e.hasID }

// Get returns the value of prop, if set.
func (e *Entity) Get(prop string) (any, bool) {
	v, ok := e.props[prop]
	return v, ok
}

// Props returns the names of the set properties, in the order they were
// first set.
func (e *Entity) Props() []string {
	return append([]string(nil), e.order...)
}

// IsRef reports whether the entity only carries an id.
func (e *Entity) IsRef() bool {
	return e.hasID && len(e.props) == 0
}
