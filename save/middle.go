package save

import (
	"context"
	"errors"
	"fmt"

	"github.com/TrueNine/jimmer"
	"github.com/TrueNine/jimmer/dialect/sql"
	"github.com/TrueNine/jimmer/dialect/sql/sqlgraph"
	"github.com/TrueNine/jimmer/schema"
)

// middleRow is one junction row to insert.
type middleRow struct {
	task   *middleTask
	target any
}

// reconcile synchronizes the junction tables with the desired targets of
// every owner: stale rows are deleted per owner, missing rows are
// inserted by one statement per association.
func (cmd *command) reconcile(ctx context.Context, tasks []*middleTask) error {
	var (
		order  []*schema.Assoc
		groups = make(map[*schema.Assoc][]*middleTask)
	)
	for _, t := range tasks {
		if _, ok := groups[t.assoc]; !ok {
			order = append(order, t.assoc)
		}
		groups[t.assoc] = append(groups[t.assoc], t)
	}
	for _, a := range order {
		if err := cmd.reconcileAssoc(ctx, a, groups[a]); err != nil {
			return err
		}
	}
	return nil
}

func (cmd *command) reconcileAssoc(ctx context.Context, a *schema.Assoc, tasks []*middleTask) error {
	m := a.Middle
	columns := []string{m.OwnerColumn, m.TargetColumn}
	var filters []sql.ColumnValue
	if m.Discriminator != nil {
		columns = append(columns, m.Discriminator.Column)
		filters = append(filters, sql.ColumnValue{Column: m.Discriminator.Column, Value: m.Discriminator.Value})
	}
	var rows []middleRow
	for _, t := range tasks {
		if !t.owner.hasID {
			return &jimmer.ExecutionError{Path: t.path, Err: fmt.Errorf("save: id of %s is not known", t.owner.typ.Name)}
		}
		desired, err := t.desired()
		if err != nil {
			return err
		}
		owner := sql.ColumnValue{Column: m.OwnerColumn, Value: t.owner.id}
		// Rows of owners inserted by this command cannot exist yet.
		fresh := t.owner.op == opInsert
		if !fresh {
			query, args := cmd.flavor.DeleteMiddle(m.Table, owner, m.TargetColumn, desired, filters)
			stmt := &Statement{SQL: query, Rows: [][]any{args}}
			res, err := cmd.exec.Exec(ctx, stmt)
			if err != nil {
				return cmd.middleFailure(ctx, t, stmt, err, nil)
			}
			cmd.result.affected[m.Table] += res.Total()
		}
		if len(desired) > 0 && !fresh && cmd.flavor.MiddleUpsert == sql.MiddleLookupInsert {
			if desired, err = cmd.absent(ctx, t, owner, desired, filters); err != nil {
				return err
			}
		}
		for _, id := range desired {
			rows = append(rows, middleRow{task: t, target: id})
		}
	}
	if len(rows) == 0 {
		return nil
	}
	stmt := &Statement{
		SQL:     cmd.flavor.UpsertMiddle(m.Table, columns),
		Batched: cmd.batched(StrategyNone),
	}
	for _, r := range rows {
		row := []any{r.task.owner.id, r.target}
		if m.Discriminator != nil {
			row = append(row, m.Discriminator.Value)
		}
		stmt.Rows = append(stmt.Rows, row)
	}
	cmd.logger.DebugContext(ctx, "save junction rows", "table", m.Table, "prop", a.Name, "rows", len(rows))
	res, err := cmd.exec.Exec(ctx, stmt)
	if err != nil {
		return cmd.middleFailure(ctx, rows[0].task, stmt, err, rows)
	}
	cmd.result.affected[m.Table] += res.Total()
	if cmd.flavor.SilentMiddleViolations() && res.Total() < int64(len(rows)) {
		// Rows are skipped both when they exist and when a target is
		// missing; only the latter is an error.
		se, err := cmd.findMissingTargets(ctx, a, rows)
		if err != nil {
			return &jimmer.ExecutionError{Path: rows[0].task.path, SQL: stmt.SQL, Err: err}
		}
		if se != nil {
			return cmd.translate(ctx, se, stmt)
		}
	}
	return nil
}

// desired returns the distinct target ids of the task in first-seen order.
func (t *middleTask) desired() ([]any, error) {
	var (
		ids  []any
		seen = make(map[key]bool)
	)
	for _, rf := range t.targets {
		id, ok := rf.targetID()
		if !ok {
			return nil, &jimmer.ExecutionError{Path: t.path, Err: fmt.Errorf("save: id of %s is not known", t.assoc.Target.Name)}
		}
		k, err := keyOf(id)
		if err != nil {
			return nil, err
		}
		if !seen[k] {
			seen[k] = true
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// absent returns the targets of owner missing in the junction table, for
// flavors without an insert-if-absent syntax.
func (cmd *command) absent(ctx context.Context, t *middleTask, owner sql.ColumnValue, desired []any, filters []sql.ColumnValue) ([]any, error) {
	m := t.assoc.Middle
	query, args := cmd.flavor.SelectMiddle(m.Table, owner, m.TargetColumn, desired, filters)
	existing, err := cmd.exec.Query(ctx, &Query{SQL: query, Args: args, Reason: sql.ReasonLoadMiddleTable})
	if err != nil {
		return nil, &jimmer.ExecutionError{Path: t.path, SQL: query, Err: err}
	}
	found := make(map[key]bool, len(existing))
	for _, row := range existing {
		id, err := t.assoc.Target.ID.Type.Convert(row[0])
		if err != nil {
			return nil, &jimmer.ExecutionError{Path: t.path, SQL: query, Err: err}
		}
		k, err := keyOf(id)
		if err != nil {
			return nil, err
		}
		found[k] = true
	}
	var out []any
	for _, id := range desired {
		if k, _ := keyOf(id); !found[k] {
			out = append(out, id)
		}
	}
	return out, nil
}

// middleFailure turns a failed junction statement into the returned error.
// Foreign key violations are investigated on the target table with the
// target ids of every row of the statement.
func (cmd *command) middleFailure(ctx context.Context, t *middleTask, stmt *Statement, err error, cands []middleRow) error {
	cause := err
	var be *BatchError
	if errors.As(err, &be) {
		cause = be.Err
	}
	violation := sqlgraph.Classify(cause)
	if violation != sqlgraph.ForeignKeyViolation || len(cands) == 0 {
		return &jimmer.ExecutionError{Path: t.path, SQL: stmt.SQL, Err: cause}
	}
	se, ierr := cmd.findMissingTargets(ctx, t.assoc, cands)
	switch {
	case ierr != nil:
		cmd.logger.DebugContext(ctx, "investigation failed", "table", t.assoc.Middle.Table, "error", ierr)
		return &jimmer.ExecutionError{Path: t.path, SQL: stmt.SQL, Err: cause}
	case se == nil:
		cmd.logger.WarnContext(ctx, "unknown constraint violation",
			"table", t.assoc.Middle.Table, "violation", violation.String(), "error", cause)
		return &jimmer.ExecutionError{Path: t.path, SQL: stmt.SQL, Err: cause, Inconclusive: true}
	}
	se.Err = cause
	return cmd.translate(ctx, se, stmt)
}

// findMissingTargets looks up every target id of rows in the target table
// and attributes the missing ones to the first owner binding one.
func (cmd *command) findMissingTargets(ctx context.Context, a *schema.Assoc, rows []middleRow) (*jimmer.SaveError, error) {
	var (
		ids   []any
		first = make(map[key]*middleTask)
	)
	for _, r := range rows {
		k, err := keyOf(r.target)
		if err != nil {
			return nil, err
		}
		if _, ok := first[k]; !ok {
			first[k] = r.task
			ids = append(ids, r.target)
		}
	}
	found, err := cmd.existing(ctx, a.Target, ids)
	if err != nil {
		return nil, err
	}
	var (
		missing []any
		task    *middleTask
	)
	for _, id := range ids {
		k, _ := keyOf(id)
		if found[k] {
			continue
		}
		missing = append(missing, id)
		if task == nil {
			task = first[k]
		}
	}
	if len(missing) == 0 {
		return nil, nil
	}
	return &jimmer.SaveError{
		Kind:      jimmer.IllegalTargetID,
		Path:      task.path,
		Type:      a.Owner.Name,
		Prop:      a.Name,
		TargetIDs: missing,
	}, nil
}
