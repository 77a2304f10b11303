package save

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/TrueNine/jimmer"
	"github.com/TrueNine/jimmer/schema"
)

// opKind is the statement kind chosen for a node.
type opKind int

const (
	opInsert opKind = iota + 1
	opUpdate
	opUpsertID
	opUpsertKey
)

func (o opKind) String() string {
	switch o {
	case opInsert:
		return "insert"
	case opUpdate:
		return "update"
	case opUpsertID:
		return "upsert"
	case opUpsertKey:
		return "upsert by key"
	}
	return "invalid"
}

type visitState int

const (
	unvisited visitState = iota
	visiting
	placed
)

// node is one row to write, indexed in the command arena by its id or,
// when it has none yet, by the entity it comes from.
type node struct {
	seq      int
	typ      *schema.Type
	path     jimmer.Path
	entities []*Entity

	id    any
	hasID bool
	// generated is set when the database assigns the id on insert.
	generated bool
	// proposed is set when id is generated for a row upserted by key.
	proposed bool

	fields map[string]any
	refs   map[string]*ref

	op    opKind
	level int
	state visitState
	// needsID is set when a later statement binds the id of the node.
	needsID bool
}

// ref is the value of a foreign key association of a node.
type ref struct {
	assoc  *schema.Assoc
	target *node // nil for references by id and nulls
	id     any
	null   bool
	// deferred foreign keys are inserted as NULL and set by an update
	// once every row exists.
	deferred bool
}

// value returns the foreign key value bound when the owner row is written.
func (r *ref) value() (any, error) {
	switch {
	case r.null || r.deferred:
		return nil, nil
	case r.target == nil:
		return r.id, nil
	case !r.target.hasID:
		return nil, fmt.Errorf("save: id of %s at path %q is not known", r.target.typ.Name, r.target.path)
	default:
		return r.target.id, nil
	}
}

// targetID returns the id the foreign key points at, ignoring deferral.
func (r *ref) targetID() (any, bool) {
	switch {
	case r.null:
		return nil, false
	case r.target == nil:
		return r.id, true
	default:
		return r.target.id, r.target.hasID
	}
}

// middleTask is the desired content of one junction table association of
// one owner.
type middleTask struct {
	owner   *node
	assoc   *schema.Assoc
	path    jimmer.Path
	targets []*ref
}

// batch is a group of nodes written by one statement.
type batch struct {
	typ    *schema.Type
	op     opKind
	level  int
	nodes  []*node
	cols   []column
	idCol  bool // the id column is bound
	update []string
}

// column is one bound column of a batch: the id, a field or a foreign key.
type column struct {
	prop string
	name string
	ref  bool
}

// resolver builds the arena of a save command and orders its statements.
type resolver struct {
	model   *schema.Model
	mode    Mode
	genOf   func(*schema.Type) IDGenerator
	byEnt   map[*Entity]*node
	byID    map[key]*node
	nodes   []*node
	middles []*middleTask
	tasks   map[*node]map[string]*middleTask
}

func newResolver(model *schema.Model, mode Mode, genOf func(*schema.Type) IDGenerator) *resolver {
	return &resolver{
		model: model,
		mode:  mode,
		genOf: genOf,
		byEnt: make(map[*Entity]*node),
		byID:  make(map[key]*node),
		tasks: make(map[*node]map[string]*middleTask),
	}
}

// collect adds the graph of root to the arena.
func (r *resolver) collect(root *Entity) error {
	if root == nil {
		return jimmer.NewConfigurationError(jimmer.Root(), "nil root entity")
	}
	if root.IsRef() {
		return jimmer.NewConfigurationError(jimmer.Root(), "the root %s only has an id, there is nothing to save", root.typ)
	}
	_, err := r.visit(root, jimmer.Root())
	return err
}

func (r *resolver) visit(e *Entity, path jimmer.Path) (*node, error) {
	if n, ok := r.byEnt[e]; ok {
		return n, nil
	}
	typ, ok := r.model.Type(e.typ)
	if !ok {
		return nil, jimmer.NewConfigurationError(path, "unknown entity type %q", e.typ)
	}
	id, hasID := e.id, e.hasID
	if v, ok := e.props[typ.ID.Name]; ok {
		id, hasID = v, true
	}
	var n *node
	if hasID {
		cid, err := typ.ID.Type.Convert(id)
		if err != nil {
			return nil, jimmer.NewConfigurationError(path, "id of %s: %v", typ.Name, err)
		}
		if cid == nil {
			return nil, jimmer.NewConfigurationError(path, "id of %s is null", typ.Name)
		}
		k, err := idKey(typ, cid)
		if err != nil {
			return nil, err
		}
		n = r.byID[k]
		if n == nil {
			n = r.newNode(typ, path)
			n.id, n.hasID = cid, true
			r.byID[k] = n
		}
	} else {
		n = r.newNode(typ, path)
	}
	r.byEnt[e] = n
	n.entities = append(n.entities, e)

	for _, prop := range e.order {
		if prop == typ.ID.Name {
			continue
		}
		v := e.props[prop]
		if f, ok := typ.Field(prop); ok {
			cv, err := f.Type.Convert(v)
			if err != nil {
				return nil, jimmer.NewConfigurationError(path, "property %s.%s: %v", typ.Name, prop, err)
			}
			if old, ok := n.fields[prop]; ok && !sameValue(old, cv) {
				return nil, jimmer.NewConfigurationError(path, "conflicting values %v and %v of %s.%s", old, cv, typ.Name, prop)
			}
			n.fields[prop] = cv
			continue
		}
		a, ok := typ.Assoc(prop)
		if !ok {
			return nil, jimmer.NewConfigurationError(path, "unknown property %s.%s", typ.Name, prop)
		}
		var err error
		switch a.Relation {
		case schema.ForeignKey:
			err = r.visitReference(n, a, v, path.Append(prop))
		case schema.MiddleTable:
			err = r.visitMiddle(n, a, v, path.Append(prop))
		case schema.MappedBy:
			err = r.visitMappedBy(n, a, v, path.Append(prop))
		}
		if err != nil {
			return nil, err
		}
	}
	return n, nil
}

func (r *resolver) newNode(typ *schema.Type, path jimmer.Path) *node {
	n := &node{
		seq:    len(r.nodes),
		typ:    typ,
		path:   path,
		fields: make(map[string]any),
		refs:   make(map[string]*ref),
	}
	r.nodes = append(r.nodes, n)
	return n
}

// targets returns the entities of an association value.
func targets(a *schema.Assoc, v any, path jimmer.Path) ([]*Entity, error) {
	switch v := v.(type) {
	case nil:
		return nil, nil
	case *Entity:
		if a.IsList() {
			return nil, jimmer.NewConfigurationError(path, "association %s.%s holds a list", a.Owner.Name, a.Name)
		}
		if v == nil {
			return nil, nil
		}
		return []*Entity{v}, nil
	case []*Entity:
		if !a.IsList() {
			return nil, jimmer.NewConfigurationError(path, "association %s.%s holds one entity", a.Owner.Name, a.Name)
		}
		for _, e := range v {
			if e == nil {
				return nil, jimmer.NewConfigurationError(path, "nil entity in %s.%s", a.Owner.Name, a.Name)
			}
		}
		return v, nil
	}
	return nil, jimmer.NewConfigurationError(path, "invalid value %T of association %s.%s", v, a.Owner.Name, a.Name)
}

// target resolves one associated entity into a ref.
func (r *resolver) target(a *schema.Assoc, e *Entity, path jimmer.Path) (*ref, error) {
	if e.typ != a.Target.Name {
		return nil, jimmer.NewConfigurationError(path, "association %s.%s expects %s, got %s", a.Owner.Name, a.Name, a.Target.Name, e.typ)
	}
	if e.IsRef() {
		id, err := a.Target.ID.Type.Convert(e.id)
		if err != nil || id == nil {
			return nil, jimmer.NewConfigurationError(path, "invalid id %v of %s", e.id, a.Target.Name)
		}
		k, err := idKey(a.Target, id)
		if err != nil {
			return nil, err
		}
		return &ref{assoc: a, target: r.byID[k], id: id}, nil
	}
	n, err := r.visit(e, path)
	if err != nil {
		return nil, err
	}
	return &ref{assoc: a, target: n}, nil
}

func (r *resolver) visitReference(n *node, a *schema.Assoc, v any, path jimmer.Path) error {
	es, err := targets(a, v, path)
	if err != nil {
		return err
	}
	if len(es) == 0 {
		n.refs[a.Name] = &ref{assoc: a, null: true}
		return nil
	}
	rf, err := r.target(a, es[0], path)
	if err != nil {
		return err
	}
	n.refs[a.Name] = rf
	return nil
}

func (r *resolver) visitMiddle(n *node, a *schema.Assoc, v any, path jimmer.Path) error {
	es, err := targets(a, v, path)
	if err != nil {
		return err
	}
	byName := r.tasks[n]
	if byName == nil {
		byName = make(map[string]*middleTask)
		r.tasks[n] = byName
	}
	task := byName[a.Name]
	if task == nil {
		task = &middleTask{owner: n, assoc: a, path: path}
		byName[a.Name] = task
		r.middles = append(r.middles, task)
	}
	for _, e := range es {
		rf, err := r.target(a, e, path)
		if err != nil {
			return err
		}
		task.targets = append(task.targets, rf)
	}
	return nil
}

func (r *resolver) visitMappedBy(n *node, a *schema.Assoc, v any, path jimmer.Path) error {
	es, err := targets(a, v, path)
	if err != nil {
		return err
	}
	for _, e := range es {
		if e.typ != a.Target.Name {
			return jimmer.NewConfigurationError(path, "association %s.%s expects %s, got %s", a.Owner.Name, a.Name, a.Target.Name, e.typ)
		}
		child, err := r.visit(e, path)
		if err != nil {
			return err
		}
		child.refs[a.Ref.Name] = &ref{assoc: a.Ref, target: n}
	}
	return nil
}

// order assigns a level to every node so that the targets of foreign keys
// are written first. Each reference cycle is broken at its last nullable
// foreign key, which is deferred. It returns the deferred foreign keys.
func (r *resolver) order() ([]*deferredRef, error) {
	if err := r.link(); err != nil {
		return nil, err
	}
	var deferred []*deferredRef
	for {
		cycle := r.findCycle()
		if cycle == nil {
			break
		}
		var cut *deferredRef
		for i := len(cycle) - 1; i >= 0 && cut == nil; i-- {
			if cycle[i].ref.assoc.Nullable {
				cut = cycle[i]
			}
		}
		if cut == nil {
			last := cycle[len(cycle)-1]
			return nil, jimmer.NewConfigurationError(last.owner.path, "cannot save the cycle through the non-nullable association %s.%s",
				last.owner.typ.Name, last.ref.assoc.Name)
		}
		cut.ref.deferred = true
		deferred = append(deferred, cut)
	}
	r.reset()
	var place func(n *node)
	place = func(n *node) {
		n.state = visiting
		level := 0
		for _, rf := range n.dependencies() {
			if rf.target.state == unvisited {
				place(rf.target)
			}
			level = max(level, rf.target.level+1)
		}
		n.level = level
		n.state = placed
	}
	for _, n := range r.nodes {
		if n.state == unvisited {
			place(n)
		}
	}
	return deferred, nil
}

// link points references by id at the node saved with that id, when the
// node was collected after the reference.
func (r *resolver) link() error {
	bind := func(rf *ref) error {
		if rf.null || rf.target != nil {
			return nil
		}
		k, err := idKey(rf.assoc.Target, rf.id)
		if err != nil {
			return err
		}
		rf.target = r.byID[k]
		return nil
	}
	for _, n := range r.nodes {
		for _, rf := range n.refs {
			if err := bind(rf); err != nil {
				return err
			}
		}
	}
	for _, task := range r.middles {
		for _, rf := range task.targets {
			if err := bind(rf); err != nil {
				return err
			}
		}
	}
	return nil
}

// findCycle returns the foreign keys of a reference cycle, the closing
// one last, or nil if the references are acyclic.
func (r *resolver) findCycle() []*deferredRef {
	r.reset()
	var (
		stack []*deferredRef
		visit func(n *node) []*deferredRef
	)
	visit = func(n *node) []*deferredRef {
		n.state = visiting
		for _, rf := range n.dependencies() {
			edge := &deferredRef{owner: n, ref: rf}
			switch rf.target.state {
			case visiting:
				start := len(stack)
				for i := len(stack) - 1; i >= 0; i-- {
					if stack[i].owner == rf.target {
						start = i
						break
					}
				}
				return append(append([]*deferredRef(nil), stack[start:]...), edge)
			case unvisited:
				stack = append(stack, edge)
				if cycle := visit(rf.target); cycle != nil {
					return cycle
				}
				stack = stack[:len(stack)-1]
			}
		}
		n.state = placed
		return nil
	}
	for _, n := range r.nodes {
		if n.state == unvisited {
			if cycle := visit(n); cycle != nil {
				return cycle
			}
		}
	}
	return nil
}

// dependencies returns the foreign keys of the node pointing at nodes of
// the command, in association order.
func (n *node) dependencies() []*ref {
	var deps []*ref
	for _, a := range n.typ.Assocs {
		rf, ok := n.refs[a.Name]
		if ok && rf.target != nil && !rf.null && !rf.deferred {
			deps = append(deps, rf)
		}
	}
	return deps
}

func (r *resolver) reset() {
	for _, n := range r.nodes {
		n.state = unvisited
	}
}

// deferredRef is a foreign key set by an update after the inserts.
type deferredRef struct {
	owner *node
	ref   *ref
}

// plan chooses the operation and id of every node.
func (r *resolver) plan(ctx context.Context) error {
	for _, n := range r.nodes {
		for _, rf := range n.refs {
			if rf.target != nil {
				rf.target.needsID = true
			}
		}
	}
	for _, task := range r.middles {
		task.owner.needsID = true
		for _, rf := range task.targets {
			if rf.target != nil {
				rf.target.needsID = true
			}
		}
	}
	for _, n := range r.nodes {
		switch {
		case r.mode == UpdateOnly:
			if !n.hasID {
				return jimmer.NewConfigurationError(n.path, "cannot update %s without id", n.typ.Name)
			}
			n.op = opUpdate
		case r.mode == Upsert && n.hasID:
			n.op = opUpsertID
		case r.mode == Upsert && n.hasKey():
			n.op = opUpsertKey
		default:
			n.op = opInsert
		}
		if n.hasID {
			continue
		}
		gen := r.genOf(n.typ)
		if gen == nil {
			if n.op == opUpsertKey {
				continue
			}
			return jimmer.NewConfigurationError(n.path, "cannot save %s without id, no id generator is configured", n.typ.Name)
		}
		id, err := gen.Generate(ctx, n.typ)
		if err != nil {
			return jimmer.NewConfigurationError(n.path, "generate id of %s: %v", n.typ.Name, err)
		}
		if id == nil {
			// Rows upserted by key are looked up by key afterwards.
			n.generated = n.op != opUpsertKey
			continue
		}
		if id, err = n.typ.ID.Type.Convert(id); err != nil {
			return jimmer.NewConfigurationError(n.path, "generated id of %s: %v", n.typ.Name, err)
		}
		n.id = id
		if n.op == opUpsertKey {
			// Only used if the row is new.
			n.proposed = true
			continue
		}
		n.hasID = true
	}
	return nil
}

// boundID reports whether the row written for the node carries an id.
func (n *node) boundID() bool {
	return n.hasID || n.proposed
}

// hasKey reports whether every business key property of the node is set.
func (n *node) hasKey() bool {
	if len(n.typ.Key) == 0 {
		return false
	}
	for _, p := range n.typ.Key {
		_, isField := n.fields[p]
		_, isRef := n.refs[p]
		if !isField && !isRef {
			return false
		}
	}
	return true
}

// keyValues returns the business key of the node, or false if a part is
// unknown or NULL.
func (n *node) keyValues() ([]any, bool) {
	values := make([]any, len(n.typ.Key))
	for i, p := range n.typ.Key {
		if v, ok := n.fields[p]; ok && v != nil {
			values[i] = v
			continue
		}
		rf, ok := n.refs[p]
		if !ok {
			return nil, false
		}
		id, ok := rf.targetID()
		if !ok {
			return nil, false
		}
		values[i] = id
	}
	return values, true
}

// columns returns the bound columns of the node in table order: id,
// fields, foreign keys.
func (n *node) columns() []column {
	var cols []column
	if n.boundID() {
		cols = append(cols, column{prop: n.typ.ID.Name, name: n.typ.ID.Column})
	}
	for _, f := range n.typ.Fields {
		if _, ok := n.fields[f.Name]; ok {
			cols = append(cols, column{prop: f.Name, name: f.Column})
		}
	}
	for _, a := range n.typ.Assocs {
		if _, ok := n.refs[a.Name]; ok && a.Relation == schema.ForeignKey {
			cols = append(cols, column{prop: a.Name, name: a.Column, ref: true})
		}
	}
	return cols
}

// value returns the bound value of column c.
func (n *node) value(c column) (any, error) {
	switch {
	case c.prop == n.typ.ID.Name:
		return n.id, nil
	case c.ref:
		return n.refs[c.prop].value()
	default:
		return n.fields[c.prop], nil
	}
}

// batches groups the nodes into statements, ordered by level and then by
// first appearance.
func (r *resolver) batches() []*batch {
	var out []*batch
	index := make(map[string]*batch)
	for _, n := range r.nodes {
		cols := n.columns()
		names := make([]string, len(cols))
		for i, c := range cols {
			names[i] = c.name
		}
		if (n.op == opUpdate || n.op == opUpsertID) && len(cols) == 1 {
			// Nothing but the id: the row only anchors associations.
			continue
		}
		sig := fmt.Sprintf("%d|%s|%d|%s", n.level, n.typ.Name, n.op, strings.Join(names, ","))
		b := index[sig]
		if b == nil {
			b = &batch{typ: n.typ, op: n.op, level: n.level, cols: cols}
			b.idCol = len(cols) > 0 && cols[0].prop == n.typ.ID.Name
			index[sig] = b
			out = append(out, b)
		}
		b.nodes = append(b.nodes, n)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].level < out[j].level })
	return out
}

func sameValue(a, b any) bool {
	ka, err := keyOf(a)
	if err != nil {
		return false
	}
	kb, err := keyOf(b)
	return err == nil && ka == kb
}
