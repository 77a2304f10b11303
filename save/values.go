package save

import (
	"context"
	"fmt"
	"slices"

	"github.com/TrueNine/jimmer"
	"github.com/TrueNine/jimmer/dialect/sql"
	"github.com/TrueNine/jimmer/schema"
	"github.com/TrueNine/jimmer/schema/field"
)

// statement renders the statement of b and binds one row per node.
// Rows are bound when the batch runs, so ids of earlier batches are known.
func (cmd *command) statement(b *batch) (*Statement, error) {
	names := make([]string, len(b.cols))
	for i, c := range b.cols {
		names[i] = c.name
	}
	stmt := &Statement{}
	idCol := b.typ.ID.Column
	switch b.op {
	case opInsert:
		stmt.GeneratedID = !b.idCol
		returning := ""
		if stmt.GeneratedID {
			returning = idCol
		}
		stmt.SQL = cmd.flavor.Insert(b.typ.Table, names, returning)
	case opUpdate:
		stmt.SQL = cmd.flavor.Update(b.typ.Table, names[1:], []string{idCol})
	case opUpsertID:
		stmt.SQL = cmd.flavor.UpsertSQL(b.typ.Table, names, []string{idCol}, names[1:])
	case opUpsertKey:
		keys := b.typ.KeyColumns()
		var update []string
		for _, n := range names {
			if n != idCol && !slices.Contains(keys, n) {
				update = append(update, n)
			}
		}
		stmt.SQL = cmd.flavor.UpsertSQL(b.typ.Table, names, keys, update)
	default:
		return nil, fmt.Errorf("save: invalid operation %d", b.op)
	}
	for _, n := range b.nodes {
		row := make([]any, 0, len(b.cols))
		for _, c := range b.cols {
			v, err := n.value(c)
			if err != nil {
				return nil, err
			}
			row = append(row, v)
		}
		if b.op == opUpdate {
			// Set columns first, the id last.
			row = append(row[1:], row[0])
		}
		stmt.Rows = append(stmt.Rows, row)
	}
	s := cmd.strategyOf(b.typ)
	if stmt.GeneratedID {
		s = StrategyIdentity
	}
	stmt.Batched = cmd.batched(s)
	return stmt, nil
}

// write executes the statement of b and records what it wrote.
func (cmd *command) write(ctx context.Context, b *batch) error {
	stmt, err := cmd.statement(b)
	if err != nil {
		return &jimmer.ExecutionError{Path: b.nodes[0].path, Err: err}
	}
	cmd.logger.DebugContext(ctx, "save batch",
		"type", b.typ.Name, "op", b.op.String(), "level", b.level,
		"rows", len(stmt.Rows), "batched", stmt.Batched)
	res, err := cmd.exec.Exec(ctx, stmt)
	if err != nil {
		return cmd.investigate(ctx, &failure{
			typ:   b.typ,
			op:    b.op,
			nodes: b.nodes,
			stmt:  stmt,
			err:   err,
		})
	}
	cmd.result.affected[b.typ.Name] += res.Total()
	if stmt.GeneratedID {
		if len(res.IDs) != len(b.nodes) {
			return &jimmer.ExecutionError{Path: b.nodes[0].path, SQL: stmt.SQL,
				Err: fmt.Errorf("save: expected %d generated ids, got %d", len(b.nodes), len(res.IDs))}
		}
		for i, n := range b.nodes {
			id, err := b.typ.ID.Type.Convert(res.IDs[i])
			if err != nil || id == nil {
				return &jimmer.ExecutionError{Path: n.path, SQL: stmt.SQL,
					Err: fmt.Errorf("save: invalid generated id %v of %s: %v", res.IDs[i], b.typ.Name, err)}
			}
			n.id, n.hasID = id, true
		}
	}
	if b.op == opUpsertKey {
		return cmd.fetchKeyIDs(ctx, b)
	}
	return nil
}

// fetchKeyIDs reads back, by business key, the ids of rows upserted by key
// whose id a later statement binds.
func (cmd *command) fetchKeyIDs(ctx context.Context, b *batch) error {
	var (
		nodes  []*node
		tuples [][]any
	)
	for _, n := range b.nodes {
		if !n.needsID {
			continue
		}
		values, ok := n.keyValues()
		if !ok {
			return &jimmer.ExecutionError{Path: n.path, Err: fmt.Errorf("save: incomplete key of %s", b.typ.Name)}
		}
		nodes = append(nodes, n)
		tuples = append(tuples, values)
	}
	if len(nodes) == 0 {
		return nil
	}
	keyCols := b.typ.KeyColumns()
	query, args := cmd.flavor.SelectTuples(b.typ.Table, append([]string{b.typ.ID.Column}, keyCols...), keyCols, tuples)
	rows, err := cmd.exec.Query(ctx, &Query{SQL: query, Args: args, Reason: sql.ReasonFetchKeyIDs})
	if err != nil {
		return &jimmer.ExecutionError{Path: nodes[0].path, SQL: query, Err: err}
	}
	types := keyTypes(b.typ)
	ids := make(map[key]any, len(rows))
	for _, row := range rows {
		k, err := rowKey(types, row[1:])
		if err != nil {
			return &jimmer.ExecutionError{Path: nodes[0].path, SQL: query, Err: err}
		}
		if ids[k], err = b.typ.ID.Type.Convert(row[0]); err != nil {
			return &jimmer.ExecutionError{Path: nodes[0].path, SQL: query, Err: err}
		}
	}
	for i, n := range nodes {
		k, err := keyOf(tuples[i]...)
		if err != nil {
			return &jimmer.ExecutionError{Path: n.path, SQL: query, Err: err}
		}
		id, ok := ids[k]
		if !ok {
			return &jimmer.ExecutionError{Path: n.path, SQL: query,
				Err: fmt.Errorf("save: no %s row found by key after upsert", b.typ.Name)}
		}
		n.id, n.hasID = id, true
	}
	return nil
}

// writeDeferred sets the foreign keys left NULL to break reference cycles,
// one update statement per association.
func (cmd *command) writeDeferred(ctx context.Context, refs []*deferredRef) error {
	type group struct {
		assoc *schema.Assoc
		nodes []*node
		rows  [][]any
	}
	var groups []*group
	index := make(map[*schema.Assoc]*group)
	for _, d := range refs {
		g := index[d.ref.assoc]
		if g == nil {
			g = &group{assoc: d.ref.assoc}
			index[d.ref.assoc] = g
			groups = append(groups, g)
		}
		id, ok := d.ref.targetID()
		if !ok || !d.owner.hasID {
			return &jimmer.ExecutionError{Path: d.owner.path, Err: fmt.Errorf("save: id of %s is not known", d.ref.assoc.Target.Name)}
		}
		g.nodes = append(g.nodes, d.owner)
		g.rows = append(g.rows, []any{id, d.owner.id})
	}
	for _, g := range groups {
		typ := g.assoc.Owner
		stmt := &Statement{
			SQL:     cmd.flavor.Update(typ.Table, []string{g.assoc.Column}, []string{typ.ID.Column}),
			Rows:    g.rows,
			Batched: cmd.batched(cmd.strategyOf(typ)),
		}
		cmd.logger.DebugContext(ctx, "save deferred references",
			"type", typ.Name, "prop", g.assoc.Name, "rows", len(g.rows))
		res, err := cmd.exec.Exec(ctx, stmt)
		if err != nil {
			return cmd.investigate(ctx, &failure{
				typ:      typ,
				op:       opUpdate,
				nodes:    g.nodes,
				stmt:     stmt,
				err:      err,
				deferred: true,
			})
		}
		cmd.result.affected[typ.Name] += res.Total()
	}
	return nil
}

func keyTypes(typ *schema.Type) []field.Type {
	types := make([]field.Type, len(typ.Key))
	for i, p := range typ.Key {
		types[i] = propType(typ, p)
	}
	return types
}
