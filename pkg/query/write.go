package query

import (
	"fmt"
	"sort"
	"strings"

	"querykit/pkg/dialect"
)

// Set assigns a value for INSERT or UPDATE. Setting the same column twice
// keeps the last value in the original position.
func (b *Builder) Set(column string, value any) *Builder {
	column = strings.TrimSpace(column)
	if err := dialect.CheckIdent(column); err != nil {
		return b.fail(err)
	}
	for i := range b.sets {
		if b.sets[i].column == column {
			b.sets[i].value = value
			return b
		}
	}
	b.sets = append(b.sets, assignment{column: column, value: value})
	return b
}

// SetMap assigns every entry of m in sorted key order.
func (b *Builder) SetMap(m map[string]any) *Builder {
	for _, k := range sortedKeys(m) {
		b.Set(k, m[k])
	}
	return b
}

// SetAsBatch stages rows for a multi-row INSERT. Columns are the sorted keys
// of the first row; every row must carry exactly the same keys.
func (b *Builder) SetAsBatch(rows []map[string]any) *Builder {
	if len(rows) == 0 {
		return b
	}
	cols := sortedKeys(rows[0])
	if b.batchCols == nil {
		for _, c := range cols {
			if err := dialect.CheckIdent(c); err != nil {
				return b.fail(err)
			}
		}
		b.batchCols = cols
	} else if !sameKeys(b.batchCols, rows[0]) {
		return b.fail(&dialect.SpecError{Field: "batch row", Value: strings.Join(cols, ","), Reason: "columns differ from the staged batch"})
	}
	for i, r := range rows {
		if !sameKeys(b.batchCols, r) {
			return b.fail(&dialect.SpecError{Field: "batch row", Value: i, Reason: "columns differ from the first row"})
		}
		vals := make([]any, len(b.batchCols))
		for j, c := range b.batchCols {
			vals[j] = r[c]
		}
		b.batch = append(b.batch, vals)
	}
	return b
}

// OnConflict names the key columns an upsert resolves conflicts on. Only
// dialects whose upsert needs them (PostgreSQL) use them.
func (b *Builder) OnConflict(keys ...string) *Builder {
	b.conflict = append(b.conflict[:0:0], keys...)
	return b
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func sameKeys(cols []string, row map[string]any) bool {
	if len(cols) != len(row) {
		return false
	}
	for _, c := range cols {
		if _, ok := row[c]; !ok {
			return false
		}
	}
	return true
}

func (b *Builder) writeTarget() error {
	if b.err != nil {
		return b.err
	}
	if b.table == "" {
		return ErrNoTable
	}
	return nil
}

// buildInsert renders the INSERT in "?" form.
func (b *Builder) buildInsert(replace bool) (string, []any, error) {
	if err := b.writeTarget(); err != nil {
		return "", nil, err
	}
	if len(b.batch) > 0 && len(b.sets) > 0 {
		b.fail(&dialect.SpecError{Field: "insert values", Value: b.table, Reason: "Set and SetAsBatch cannot be combined"})
		return "", nil, b.err
	}
	ins := dialect.InsertDef{Table: b.table, Replace: replace, ConflictKeys: b.conflict}
	var args []any
	row := func(vals []any) []string {
		out := make([]string, len(vals))
		for i, v := range vals {
			var a []any
			out[i], a = placeholder(v)
			args = append(args, a...)
		}
		return out
	}
	if len(b.batch) > 0 {
		ins.Columns = b.batchCols
		for _, r := range b.batch {
			ins.Rows = append(ins.Rows, row(r))
		}
	} else if len(b.sets) > 0 {
		vals := make([]any, len(b.sets))
		for i, s := range b.sets {
			ins.Columns = append(ins.Columns, s.column)
			vals[i] = s.value
		}
		ins.Rows = [][]string{row(vals)}
	}
	sql, err := b.d.Insert(ins)
	if err != nil {
		return "", nil, err
	}
	return sql, args, nil
}

// InsertSQL renders an INSERT of the staged values. With replace set the
// dialect's upsert form is used, or *dialect.UnsupportedError is returned
// where the dialect has none.
func (b *Builder) InsertSQL(replace bool) (string, []any, error) {
	sql, args, err := b.buildInsert(replace)
	if err != nil {
		return "", nil, err
	}
	return b.finish(sql, args)
}

func (b *Builder) buildUpdate() (string, []any, error) {
	if err := b.writeTarget(); err != nil {
		return "", nil, err
	}
	if len(b.sets) == 0 {
		return "", nil, &dialect.PreconditionError{Dialect: b.d.Name, Operation: "UPDATE", Missing: "at least one assignment"}
	}
	var (
		sb   strings.Builder
		args []any
	)
	sb.WriteString("UPDATE " + b.d.QuoteIdent(b.table) + " SET ")
	for i, s := range b.sets {
		if i > 0 {
			sb.WriteString(", ")
		}
		ph, a := placeholder(s.value)
		sb.WriteString(b.d.QuoteIdent(s.column) + " = " + ph)
		args = append(args, a...)
	}
	where, a, err := b.conds.render()
	if err != nil {
		return "", nil, err
	}
	if where != "" {
		sb.WriteString(" WHERE " + where)
		args = append(args, a...)
	}
	return sb.String(), args, nil
}

// UpdateSQL renders an UPDATE of the staged assignments filtered by the
// WHERE predicates. Limit and Offset are ignored.
func (b *Builder) UpdateSQL() (string, []any, error) {
	sql, args, err := b.buildUpdate()
	if err != nil {
		return "", nil, err
	}
	return b.finish(sql, args)
}

func (b *Builder) buildDelete() (string, []any, error) {
	if err := b.writeTarget(); err != nil {
		return "", nil, err
	}
	sql := "DELETE FROM " + b.d.QuoteIdent(b.table)
	where, args, err := b.conds.render()
	if err != nil {
		return "", nil, err
	}
	if where != "" {
		sql += " WHERE " + where
	}
	return sql, args, nil
}

// DeleteSQL renders a DELETE filtered by the WHERE predicates.
func (b *Builder) DeleteSQL() (string, []any, error) {
	sql, args, err := b.buildDelete()
	if err != nil {
		return "", nil, err
	}
	return b.finish(sql, args)
}

// TruncateSQL renders the dialect statement that empties the table.
func (b *Builder) TruncateSQL() (string, []any, error) {
	if err := b.writeTarget(); err != nil {
		return "", nil, err
	}
	sql, err := b.d.Truncate(b.table)
	if err != nil {
		return "", nil, fmt.Errorf("query: truncate %s: %w", b.table, err)
	}
	return sql, nil, nil
}
