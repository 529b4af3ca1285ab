package query

import (
	"fmt"
	"regexp"
	"strings"

	"querykit/pkg/dialect"
)

// Select appends fields to the select list. Each field is quoted as an
// identifier unless it looks like an expression. An empty list selects *.
func (b *Builder) Select(fields ...string) *Builder {
	for _, f := range fields {
		if f = strings.TrimSpace(f); f != "" {
			b.fields = append(b.fields, f)
		}
	}
	return b
}

// Distinct turns the statement into SELECT DISTINCT.
func (b *Builder) Distinct() *Builder { b.distinct = true; return b }

// From sets the target table. "users u" and "users AS u" alias it.
func (b *Builder) From(table string) *Builder {
	b.table = strings.TrimSpace(table)
	return b
}

// Table is From under the name used by write statements.
func (b *Builder) Table(table string) *Builder { return b.From(table) }

var simpleCond = regexp.MustCompile(`^\s*([A-Za-z_][\w.]*)\s*=\s*([A-Za-z_][\w.]*)\s*$`)

// joinCondition quotes both sides of "a.b = c.d"; anything else is kept
// verbatim.
func (b *Builder) joinCondition(on string) string {
	m := simpleCond.FindStringSubmatch(on)
	if m == nil {
		return strings.TrimSpace(on)
	}
	return b.d.QuoteIdent(m[1]) + " = " + b.d.QuoteIdent(m[2])
}

func (b *Builder) join(kind joinKind, table, on string) *Builder {
	table = strings.TrimSpace(table)
	if table == "" {
		return b.fail(&dialect.SpecError{Field: "join table", Value: table, Reason: "must not be empty"})
	}
	b.joins = append(b.joins, join{kind: kind, table: table, on: on})
	return b
}

// Join adds a plain JOIN.
func (b *Builder) Join(table, on string) *Builder      { return b.join(joinPlain, table, on) }
func (b *Builder) JoinInner(table, on string) *Builder { return b.join(joinInner, table, on) }
func (b *Builder) JoinLeft(table, on string) *Builder  { return b.join(joinLeft, table, on) }
func (b *Builder) JoinRight(table, on string) *Builder { return b.join(joinRight, table, on) }

// JoinOuter adds a FULL OUTER JOIN.
func (b *Builder) JoinOuter(table, on string) *Builder { return b.join(joinOuter, table, on) }

// GroupBy appends grouping fields.
func (b *Builder) GroupBy(fields ...string) *Builder {
	for _, f := range fields {
		if f = strings.TrimSpace(f); f != "" {
			b.group = append(b.group, f)
		}
	}
	return b
}

// OrderBy appends "field ASC|DESC". dir is case-insensitive and defaults to
// ASC when empty.
func (b *Builder) OrderBy(field, dir string) *Builder {
	col, ok := b.column(field)
	if !ok {
		return b
	}
	switch d := strings.ToUpper(strings.TrimSpace(dir)); d {
	case "", "ASC":
		b.order = append(b.order, col+" ASC")
	case "DESC":
		b.order = append(b.order, col+" DESC")
	default:
		b.fail(&dialect.SpecError{Field: "order direction", Value: dir, Reason: "want ASC or DESC"})
	}
	return b
}

// OrderByExpr appends a raw ORDER BY term.
func (b *Builder) OrderByExpr(expr string) *Builder {
	if expr = strings.TrimSpace(expr); expr != "" {
		b.order = append(b.order, expr)
	}
	return b
}

// Limit bounds the number of rows. n <= 0 removes the bound.
func (b *Builder) Limit(n int) *Builder { b.limit = max(n, 0); return b }

// Offset skips rows. n <= 0 removes the offset.
func (b *Builder) Offset(n int) *Builder { b.offset = max(n, 0); return b }

func (b *Builder) with(recursive bool, name string, body Statement, cols []string) *Builder {
	if err := dialect.CheckIdent(name); err != nil {
		return b.fail(err)
	}
	if body == nil {
		return b.fail(&dialect.SpecError{Field: "cte body", Value: name, Reason: "must not be nil"})
	}
	b.ctes = append(b.ctes, cte{name: name, cols: append([]string(nil), cols...), body: body})
	b.recursive = b.recursive || recursive
	return b
}

// With registers a common table expression.
func (b *Builder) With(name string, body Statement, cols ...string) *Builder {
	return b.with(false, name, body, cols)
}

// WithRecursive registers a recursive common table expression.
func (b *Builder) WithRecursive(name string, body Statement, cols ...string) *Builder {
	return b.with(true, name, body, cols)
}

// Sub returns an empty builder with the same dialect and parameter mode,
// for use as a CTE body or subquery.
func (b *Builder) Sub() *Builder { return b.sub() }

func (b *Builder) union(all bool, fn func(*Builder)) *Builder {
	branch := b.sub()
	fn(branch)
	b.unions = append(b.unions, union{all: all, b: branch})
	return b
}

// Union appends a UNION branch built by fn on a fresh builder.
func (b *Builder) Union(fn func(*Builder)) *Builder { return b.union(false, fn) }

// UnionAll appends a UNION ALL branch.
func (b *Builder) UnionAll(fn func(*Builder)) *Builder { return b.union(true, fn) }

// Build renders the SELECT with "?" placeholders and its arguments. It
// implements Statement.
func (b *Builder) Build() (string, []any, error) {
	if b.err != nil {
		return "", nil, b.err
	}
	if b.table == "" {
		return "", nil, ErrNoTable
	}
	var (
		sb   strings.Builder
		args []any
	)
	if len(b.ctes) > 0 {
		sb.WriteString("WITH ")
		if b.recursive {
			sb.WriteString(b.d.RecursiveKeyword)
		}
		for i, c := range b.ctes {
			if i > 0 {
				sb.WriteString(", ")
			}
			body, a, err := c.body.Build()
			if err != nil {
				return "", nil, fmt.Errorf("query: cte %s: %w", c.name, err)
			}
			sb.WriteString(b.d.QuoteIdent(c.name))
			if len(c.cols) > 0 {
				sb.WriteString(" (" + b.d.QuoteIdentList(c.cols) + ")")
			}
			sb.WriteString(" AS (" + body + ")")
			args = append(args, a...)
		}
		sb.WriteByte(' ')
	}

	sb.WriteString("SELECT ")
	if b.distinct {
		sb.WriteString("DISTINCT ")
	}
	if len(b.fields) == 0 {
		sb.WriteByte('*')
	} else {
		sb.WriteString(b.d.QuoteIdentList(b.fields))
	}
	sb.WriteString(" FROM ")
	sb.WriteString(b.d.QuoteIdent(b.table))
	for _, j := range b.joins {
		sb.WriteString(" " + string(j.kind) + " " + b.d.QuoteIdent(j.table))
		if on := b.joinCondition(j.on); on != "" {
			sb.WriteString(" ON " + on)
		}
	}

	where, a, err := b.conds.render()
	if err != nil {
		return "", nil, err
	}
	if where != "" {
		sb.WriteString(" WHERE " + where)
		args = append(args, a...)
	}
	if len(b.group) > 0 {
		sb.WriteString(" GROUP BY " + b.d.QuoteIdentList(b.group))
	}
	having, a, err := b.having.render()
	if err != nil {
		return "", nil, err
	}
	if having != "" {
		sb.WriteString(" HAVING " + having)
		args = append(args, a...)
	}
	for i, u := range b.unions {
		body, a, err := b.unionBranch(i, u.b)
		if err != nil {
			return "", nil, fmt.Errorf("query: union: %w", err)
		}
		if u.all {
			sb.WriteString(" UNION ALL ")
		} else {
			sb.WriteString(" UNION ")
		}
		sb.WriteString(body)
		args = append(args, a...)
	}
	if len(b.order) > 0 {
		sb.WriteString(" ORDER BY " + strings.Join(b.order, ", "))
	}
	sql := b.d.Limit(sb.String(), dialect.Page{Limit: b.limit, Offset: b.offset, Ordered: len(b.order) > 0})
	return sql, args, nil
}

// unionBranch renders the i-th UNION branch. A paged branch becomes a
// derived table so its bound stays local to it. Ordering without a bound
// has no effect inside a UNION and is rejected.
func (b *Builder) unionBranch(i int, branch *Builder) (string, []any, error) {
	body, args, err := branch.Build()
	if err != nil {
		return "", nil, err
	}
	if branch.limit == 0 && branch.offset == 0 {
		if len(branch.order) > 0 {
			return "", nil, &dialect.SpecError{Field: "union branch", Value: branch.table, Reason: "ORDER BY needs Limit or Offset inside a UNION"}
		}
		return body, args, nil
	}
	alias := b.d.QuoteIdent(fmt.Sprintf("u%d", i+1))
	return "SELECT * FROM (" + body + ") " + alias, args, nil
}

// ToSQL renders the SELECT statement. In parameterized mode args holds the
// bound values; otherwise values are inlined and args is nil.
func (b *Builder) ToSQL() (string, []any, error) {
	sql, args, err := b.Build()
	if err != nil {
		return "", nil, err
	}
	return b.finish(sql, args)
}
