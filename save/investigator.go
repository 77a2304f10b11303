package save

import (
	"context"
	"errors"

	"github.com/TrueNine/jimmer"
	"github.com/TrueNine/jimmer/dialect/sql"
	"github.com/TrueNine/jimmer/dialect/sql/sqlgraph"
	"github.com/TrueNine/jimmer/schema"
)

// failure is a failed entity statement.
type failure struct {
	typ   *schema.Type
	op    opKind
	nodes []*node // one per parameter row
	stmt  *Statement
	err   error
	// deferred is set for the updates of deferred foreign keys.
	deferred bool
}

// candidates returns the nodes whose rows may have caused the failure and
// the driver error. A failing row reported by the executor narrows the
// candidates to its node.
func (f *failure) candidates() ([]*node, error) {
	var be *BatchError
	if errors.As(f.err, &be) {
		if be.Index >= 0 && be.Index < len(f.nodes) {
			return f.nodes[be.Index : be.Index+1], be.Err
		}
		return f.nodes, be.Err
	}
	return f.nodes, f.err
}

// investigate turns a failed statement into the error returned to the
// caller. Recognized constraint violations are diagnosed with read-only
// queries; the first query matching a row decides the error.
func (cmd *command) investigate(ctx context.Context, f *failure) error {
	cands, cause := f.candidates()
	path := cands[0].path
	violation := sqlgraph.Classify(cause)
	var (
		se  *jimmer.SaveError
		err error
	)
	switch violation {
	case sqlgraph.UniqueViolation:
		se, err = cmd.findNotUnique(ctx, f, cands)
	case sqlgraph.ForeignKeyViolation:
		// Some databases report a duplicated row as a foreign key violation.
		if !f.deferred {
			se, err = cmd.findNotUnique(ctx, f, cands)
		}
		if se == nil && err == nil {
			se, err = cmd.findIllegalTarget(ctx, f, cands)
		}
	default:
		return &jimmer.ExecutionError{Path: path, SQL: f.stmt.SQL, Err: cause}
	}
	if err != nil {
		cmd.logger.DebugContext(ctx, "investigation failed", "type", f.typ.Name, "error", err)
		return &jimmer.ExecutionError{Path: path, SQL: f.stmt.SQL, Err: cause}
	}
	if se == nil {
		cmd.logger.WarnContext(ctx, "unknown constraint violation",
			"type", f.typ.Name, "violation", violation.String(), "error", cause)
		return &jimmer.ExecutionError{Path: path, SQL: f.stmt.SQL, Err: cause, Inconclusive: true}
	}
	se.Err = cause
	return cmd.translate(ctx, se, f.stmt)
}

// findNotUnique checks the ids, then the business keys, of the candidates.
func (cmd *command) findNotUnique(ctx context.Context, f *failure, cands []*node) (*jimmer.SaveError, error) {
	typ := f.typ
	if f.op == opInsert || f.op == opUpsertKey {
		se, err := cmd.findExistingID(ctx, typ, cands)
		if se != nil || err != nil {
			return se, err
		}
	}
	if len(typ.Key) == 0 || f.op == opUpsertKey {
		return nil, nil
	}
	return cmd.findExistingKey(ctx, typ, cands)
}

func (cmd *command) findExistingID(ctx context.Context, typ *schema.Type, cands []*node) (*jimmer.SaveError, error) {
	var (
		ids   []any
		owner []*node
		seen  = make(map[key]bool)
	)
	for _, n := range cands {
		if !n.boundID() {
			continue
		}
		k, err := keyOf(n.id)
		if err != nil {
			return nil, err
		}
		if !seen[k] {
			seen[k] = true
			ids = append(ids, n.id)
			owner = append(owner, n)
		}
	}
	if len(ids) == 0 {
		return nil, nil
	}
	found, err := cmd.existing(ctx, typ, ids)
	if err != nil {
		return nil, err
	}
	for i, id := range ids {
		k, _ := keyOf(id)
		if found[k] {
			return &jimmer.SaveError{
				Kind:   jimmer.NotUnique,
				Path:   owner[i].path,
				Type:   typ.Name,
				Props:  []string{typ.ID.Name},
				ID:     true,
				Values: map[string]any{typ.ID.Name: id},
			}, nil
		}
	}
	return nil, nil
}

func (cmd *command) findExistingKey(ctx context.Context, typ *schema.Type, cands []*node) (*jimmer.SaveError, error) {
	var (
		tuples [][]any
		owner  []*node
		seen   = make(map[key]bool)
	)
	for _, n := range cands {
		values, ok := n.keyValues()
		if !ok {
			continue
		}
		k, err := keyOf(values...)
		if err != nil {
			return nil, err
		}
		if !seen[k] {
			seen[k] = true
			tuples = append(tuples, values)
			owner = append(owner, n)
		}
	}
	if len(tuples) == 0 {
		return nil, nil
	}
	keyCols := typ.KeyColumns()
	cols := []string{typ.ID.Column}
	if len(tuples) > 1 {
		// Rows are matched back to their tuple by the key columns.
		cols = append(cols, keyCols...)
	}
	query, args := cmd.flavor.SelectTuples(typ.Table, cols, keyCols, tuples)
	rows, err := cmd.exec.Query(ctx, &Query{SQL: query, Args: args, Reason: sql.ReasonInvestigateConstraintViolation})
	if err != nil {
		return nil, err
	}
	types := keyTypes(typ)
	// Ids of the existing rows holding each key.
	holders := make(map[key][]key, len(rows))
	for _, row := range rows {
		var k key
		if len(tuples) == 1 {
			k, err = keyOf(tuples[0]...)
		} else {
			k, err = rowKey(types, row[1:])
		}
		if err != nil {
			return nil, err
		}
		id, err := typ.ID.Type.Convert(row[0])
		if err != nil {
			return nil, err
		}
		idk, err := keyOf(id)
		if err != nil {
			return nil, err
		}
		holders[k] = append(holders[k], idk)
	}
	for i, values := range tuples {
		n := owner[i]
		k, _ := keyOf(values...)
		for _, idk := range holders[k] {
			if n.hasID {
				// A row keeping its own key is not a conflict.
				if own, _ := keyOf(n.id); own == idk {
					continue
				}
			}
			se := &jimmer.SaveError{
				Kind:   jimmer.NotUnique,
				Path:   n.path,
				Type:   typ.Name,
				Props:  append([]string(nil), typ.Key...),
				Values: make(map[string]any, len(typ.Key)),
			}
			for j, p := range typ.Key {
				se.Values[p] = values[j]
			}
			return se, nil
		}
	}
	return nil, nil
}

// findIllegalTarget checks that the targets of the foreign keys bound by
// the candidates exist, association by association.
func (cmd *command) findIllegalTarget(ctx context.Context, f *failure, cands []*node) (*jimmer.SaveError, error) {
	for _, a := range f.typ.Assocs {
		if a.Relation != schema.ForeignKey {
			continue
		}
		var (
			ids   []any
			users [][]*node
			index = make(map[key]int)
		)
		for _, n := range cands {
			rf, ok := n.refs[a.Name]
			if !ok || rf.deferred != f.deferred {
				continue
			}
			id, ok := rf.targetID()
			if !ok {
				continue
			}
			k, err := keyOf(id)
			if err != nil {
				return nil, err
			}
			i, ok := index[k]
			if !ok {
				i = len(ids)
				index[k] = i
				ids = append(ids, id)
				users = append(users, nil)
			}
			users[i] = append(users[i], n)
		}
		if len(ids) == 0 {
			continue
		}
		found, err := cmd.existing(ctx, a.Target, ids)
		if err != nil {
			return nil, err
		}
		var (
			missing []any
			first   *node
		)
		for i, id := range ids {
			k, _ := keyOf(id)
			if found[k] {
				continue
			}
			missing = append(missing, id)
			if first == nil || users[i][0].seq < first.seq {
				first = users[i][0]
			}
		}
		if len(missing) > 0 {
			return &jimmer.SaveError{
				Kind:      jimmer.IllegalTargetID,
				Path:      first.path.Append(a.Name),
				Type:      f.typ.Name,
				Prop:      a.Name,
				TargetIDs: missing,
			}, nil
		}
	}
	return nil, nil
}

// existing returns the keys of the given ids found in the table of typ.
func (cmd *command) existing(ctx context.Context, typ *schema.Type, ids []any) (map[key]bool, error) {
	query, args := cmd.flavor.SelectIn(typ.Table, []string{typ.ID.Column}, typ.ID.Column, ids)
	rows, err := cmd.exec.Query(ctx, &Query{SQL: query, Args: args, Reason: sql.ReasonInvestigateConstraintViolation})
	if err != nil {
		return nil, err
	}
	found := make(map[key]bool, len(rows))
	for _, row := range rows {
		id, err := typ.ID.Type.Convert(row[0])
		if err != nil {
			return nil, err
		}
		k, err := keyOf(id)
		if err != nil {
			return nil, err
		}
		found[k] = true
	}
	return found, nil
}
