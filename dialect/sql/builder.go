package sql

import (
	"strconv"
	"strings"

	"github.com/lib/pq"
)

// Alias of the target table in statements rendered by this package.
const (
	TableAlias  = "tb_1_"
	SourceAlias = "tb_2_"
)

// Builder accumulates SQL text and bind arguments for one statement.
type Builder struct {
	sb     strings.Builder
	style  PlaceholderStyle
	total  int
	args   []any
	flavor Flavor
}

// Builder returns a new statement builder for the flavor.
func (f Flavor) Builder() *Builder {
	return &Builder{style: f.Placeholder, flavor: f}
}

// WriteString appends s to the statement.
func (b *Builder) WriteString(s string) *Builder {
	b.sb.WriteString(s)
	return b
}

// Param writes a placeholder without binding a value. Used for statements
// executed with parameter rows.
func (b *Builder) Param() *Builder {
	b.total++
	switch b.style {
	case PlaceholderDollar:
		b.sb.WriteByte('$')
		b.sb.WriteString(strconv.Itoa(b.total))
	default:
		b.sb.WriteByte('?')
	}
	return b
}

// Params writes n comma separated placeholders.
func (b *Builder) Params(n int) *Builder {
	for i := 0; i < n; i++ {
		if i > 0 {
			b.sb.WriteString(", ")
		}
		b.Param()
	}
	return b
}

// Arg writes a placeholder and binds v to it.
func (b *Builder) Arg(v any) *Builder {
	b.args = append(b.args, v)
	return b.Param()
}

// Args writes comma separated placeholders bound to vs.
func (b *Builder) Args(vs ...any) *Builder {
	for i, v := range vs {
		if i > 0 {
			b.sb.WriteString(", ")
		}
		b.Arg(v)
	}
	return b
}

// Join writes the elements of s separated by sep.
func (b *Builder) Join(s []string, sep string) *Builder {
	b.sb.WriteString(strings.Join(s, sep))
	return b
}

// In writes a membership predicate using the flavor's membership style.
func (b *Builder) In(column string, vs []any) *Builder {
	switch b.flavor.Membership {
	case MembershipAnyArray:
		return b.WriteString(column).WriteString(" = any(").Arg(pq.Array(vs)).WriteString(")")
	default:
		return b.WriteString(column).WriteString(" in (").Args(vs...).WriteString(")")
	}
}

// NotIn writes an exclusion predicate using the flavor's exclusion style.
func (b *Builder) NotIn(column string, vs []any) *Builder {
	switch b.flavor.Exclusion {
	case ExclusionNotAny:
		return b.WriteString("not (").WriteString(column).WriteString(" = any(").Arg(pq.Array(vs)).WriteString("))")
	default:
		return b.WriteString(column).WriteString(" not in (").Args(vs...).WriteString(")")
	}
}

// String returns the statement text.
func (b *Builder) String() string { return b.sb.String() }

// Query returns the statement text and its bound arguments.
func (b *Builder) Query() (string, []any) {
	return b.sb.String(), b.args
}

// ColumnValue is a column bound to a fixed value.
type ColumnValue struct {
	Column string
	Value  any
}

// Insert renders an insert statement for parameter rows. If returning is
// not empty and the flavor reads generated keys with a returning clause,
// the clause is appended.
func (f Flavor) Insert(table string, columns []string, returning string) string {
	b := f.Builder()
	b.WriteString("insert into ").WriteString(table).
		WriteString("(").Join(columns, ", ").WriteString(") values(").
		Params(len(columns)).WriteString(")")
	if returning != "" && f.GeneratedKey == GeneratedReturning {
		b.WriteString(" returning ").WriteString(returning)
	}
	return b.String()
}

// Update renders an update statement for parameter rows laid out as the
// set columns followed by the where columns.
func (f Flavor) Update(table string, set, where []string) string {
	b := f.Builder()
	b.WriteString("update ").WriteString(table).WriteString(" set ")
	for i, c := range set {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(c).WriteString(" = ").Param()
	}
	b.WriteString(" where ")
	for i, c := range where {
		if i > 0 {
			b.WriteString(" and ")
		}
		b.WriteString(c).WriteString(" = ").Param()
	}
	return b.String()
}

// UpsertSQL renders an insert-or-update statement for parameter rows. The
// conflict columns identify an existing row; the update columns are
// overwritten when it exists. An empty update list keeps the existing row.
func (f Flavor) UpsertSQL(table string, columns, conflict, update []string) string {
	switch f.Upsert {
	case UpsertMerge:
		b := f.Builder()
		b.WriteString("merge into ").WriteString(table).WriteString(" ").WriteString(TableAlias).
			WriteString(" using(values(").Params(len(columns)).WriteString(")) ").
			WriteString(SourceAlias).WriteString("(").Join(columns, ", ").WriteString(") on ").
			WriteString(matchSource(conflict))
		if len(update) > 0 {
			b.WriteString(" when matched then update set ")
			for i, c := range update {
				if i > 0 {
					b.WriteString(", ")
				}
				b.WriteString(c).WriteString(" = ").WriteString(SourceAlias + "." + c)
			}
		}
		return b.WriteString(" when not matched then insert(").Join(columns, ", ").
			WriteString(") values(").Join(qualify(SourceAlias, columns), ", ").WriteString(")").String()
	case UpsertOnConflict:
		b := f.Builder()
		b.WriteString(f.Insert(table, columns, "")).
			WriteString(" on conflict(").Join(conflict, ", ").WriteString(")")
		if len(update) == 0 {
			return b.WriteString(" do nothing").String()
		}
		b.WriteString(" do update set ")
		for i, c := range update {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(c).WriteString(" = excluded.").WriteString(c)
		}
		return b.String()
	case UpsertOnDuplicateKey:
		if len(update) == 0 {
			update = conflict[:1]
		}
		b := f.Builder()
		b.WriteString(f.Insert(table, columns, "")).WriteString(" on duplicate key update ")
		for i, c := range update {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(c).WriteString(" = values(").WriteString(c).WriteString(")")
		}
		return b.String()
	default:
		return f.Insert(table, columns, "")
	}
}

// SelectIn renders a diagnostic or lookup query selecting columns of
// table where column matches one of values. A single value is compared
// with equality.
func (f Flavor) SelectIn(table string, selects []string, column string, values []any) (string, []any) {
	b := f.Builder()
	b.WriteString("select ").Join(qualify(TableAlias, selects), ", ").
		WriteString(" from ").WriteString(table).WriteString(" ").WriteString(TableAlias).
		WriteString(" where ")
	col := TableAlias + "." + column
	if len(values) == 1 {
		b.WriteString(col).WriteString(" = ").Arg(values[0])
	} else {
		b.In(col, values)
	}
	return b.Query()
}

// SelectTuples renders a query selecting columns of table where the
// tuple of columns matches one of tuples. Single-column tuples fall back
// to SelectIn.
func (f Flavor) SelectTuples(table string, selects, columns []string, tuples [][]any) (string, []any) {
	if len(columns) == 1 {
		values := make([]any, len(tuples))
		for i, t := range tuples {
			values[i] = t[0]
		}
		return f.SelectIn(table, selects, columns[0], values)
	}
	b := f.Builder()
	b.WriteString("select ").Join(qualify(TableAlias, selects), ", ").
		WriteString(" from ").WriteString(table).WriteString(" ").WriteString(TableAlias).
		WriteString(" where (").Join(qualify(TableAlias, columns), ", ").WriteString(")")
	if len(tuples) == 1 {
		b.WriteString(" = (").Args(tuples[0]...).WriteString(")")
		return b.Query()
	}
	b.WriteString(" in (")
	for i, t := range tuples {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString("(").Args(t...).WriteString(")")
	}
	return b.WriteString(")").Query()
}

// DeleteMiddle renders the removal of junction rows of owner whose target
// is not one of keep. An empty keep list removes every row of owner.
func (f Flavor) DeleteMiddle(table string, owner ColumnValue, target string, keep []any, filters []ColumnValue) (string, []any) {
	b := f.Builder()
	b.WriteString("delete from ").WriteString(table).WriteString(" where ").
		WriteString(owner.Column).WriteString(" = ").Arg(owner.Value)
	if len(keep) > 0 {
		b.WriteString(" and ").NotIn(target, keep)
	}
	for _, cv := range filters {
		b.WriteString(" and ").WriteString(cv.Column).WriteString(" = ").Arg(cv.Value)
	}
	return b.Query()
}

// SelectMiddle renders the lookup of existing junction rows of owner
// whose target is one of targets.
func (f Flavor) SelectMiddle(table string, owner ColumnValue, target string, targets []any, filters []ColumnValue) (string, []any) {
	b := f.Builder()
	b.WriteString("select ").WriteString(TableAlias+"."+target).
		WriteString(" from ").WriteString(table).WriteString(" ").WriteString(TableAlias).
		WriteString(" where ").WriteString(TableAlias+"."+owner.Column).WriteString(" = ").Arg(owner.Value).
		WriteString(" and ").In(TableAlias+"."+target, targets)
	for _, cv := range filters {
		b.WriteString(" and ").WriteString(TableAlias + "." + cv.Column).WriteString(" = ").Arg(cv.Value)
	}
	return b.Query()
}

// UpsertMiddle renders the insert-if-absent of junction rows. Flavors
// without such syntax get a plain insert; the caller filters existing rows
// first.
func (f Flavor) UpsertMiddle(table string, columns []string) string {
	switch f.MiddleUpsert {
	case MiddleMerge:
		return f.Builder().
			WriteString("merge into ").WriteString(table).WriteString(" ").WriteString(TableAlias).
			WriteString(" using(values(").Params(len(columns)).WriteString(")) ").
			WriteString(SourceAlias).WriteString("(").Join(columns, ", ").WriteString(") on ").
			WriteString(matchSource(columns)).
			WriteString(" when not matched then insert(").Join(columns, ", ").
			WriteString(") values(").Join(qualify(SourceAlias, columns), ", ").WriteString(")").
			String()
	case MiddleOnConflict:
		return f.Builder().
			WriteString(f.Insert(table, columns, "")).
			WriteString(" on conflict(").Join(columns, ", ").WriteString(") do nothing").
			String()
	case MiddleInsertIgnore:
		return f.Builder().
			WriteString("insert ignore into ").WriteString(table).
			WriteString("(").Join(columns, ", ").WriteString(") values(").
			Params(len(columns)).WriteString(")").
			String()
	default:
		return f.Insert(table, columns, "")
	}
}

func qualify(alias string, columns []string) []string {
	out := make([]string, len(columns))
	for i, c := range columns {
		out[i] = alias + "." + c
	}
	return out
}

func matchSource(columns []string) string {
	parts := make([]string, len(columns))
	for i, c := range columns {
		parts[i] = TableAlias + "." + c + " = " + SourceAlias + "." + c
	}
	return strings.Join(parts, " and ")
}
