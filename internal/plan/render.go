package plan

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"querykit/pkg/dialect"
	"querykit/pkg/query"
	"querykit/pkg/schema"
)

// Statement is one rendered statement and where it came from.
type Statement struct {
	Source string // "table users" or "query seed"
	Verb   string // "create", "drop" or a query verb
	SQL    string
	Args   []any
}

// Rendered holds the statements of a plan for one dialect.
type Rendered struct {
	Dialect    dialect.Name
	Statements []Statement
}

// Render renders every table and every query that applies to d. With
// parameterized set, query values are returned as bind arguments in the
// dialect's placeholder style instead of inlined literals.
func Render(p *Plan, d *dialect.Dialect, parameterized bool) ([]Statement, error) {
	var out []Statement
	sb := schema.New(d)
	for i := range p.Tables {
		stmts, err := tableStatements(sb, &p.Tables[i])
		if err != nil {
			return nil, err
		}
		out = append(out, stmts...)
	}
	for i := range p.Queries {
		q := &p.Queries[i]
		if !q.For(d) {
			continue
		}
		st, err := renderQuery(d, q, parameterized)
		if err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	return out, nil
}

// RenderAll renders p for each dialect concurrently. Results keep the order
// of names. The first failure cancels the remaining renders.
func RenderAll(ctx context.Context, p *Plan, names []string, parameterized bool) ([]Rendered, error) {
	out := make([]Rendered, len(names))
	g, ctx := errgroup.WithContext(ctx)
	for i, name := range names {
		g.Go(func() error {
			d, err := dialect.Get(name)
			if err != nil {
				return err
			}
			if err := ctx.Err(); err != nil {
				return err
			}
			stmts, err := Render(p, d, parameterized)
			if err != nil {
				return fmt.Errorf("%s: %w", d.Name, err)
			}
			out[i] = Rendered{Dialect: d.Name, Statements: stmts}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func tableStatements(sb *schema.Builder, t *Table) ([]Statement, error) {
	src := "table " + t.Name
	var out []Statement
	if t.DropFirst {
		sql, err := sb.DropTable(t.Name, true)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", src, err)
		}
		out = append(out, Statement{Source: src, Verb: "drop", SQL: sql})
	}

	ct := sb.CreateTable(t.Name)
	if t.IfNotExists {
		ct.IfNotExists()
	}
	for _, m := range t.Columns {
		ct.AddColumnMap(m)
	}
	for _, m := range t.Indexes {
		ct.AddIndexMap(m)
	}
	if len(t.PrimaryKey) > 0 {
		ct.PrimaryKey(t.PrimaryKey...)
	}
	if opt := tableOptions(t.Options, sb.Dialect()); opt != "" {
		ct.Options(opt)
	}
	stmts, err := ct.Statements()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", src, err)
	}
	for _, sql := range stmts {
		out = append(out, Statement{Source: src, Verb: "create", SQL: sql})
	}
	return out, nil
}

func tableOptions(opts map[string]string, d *dialect.Dialect) string {
	for key, v := range opts {
		if x, err := dialect.Get(key); err == nil && x.Name == d.Name {
			return v
		}
	}
	return ""
}

func renderQuery(d *dialect.Dialect, q *Query, parameterized bool) (Statement, error) {
	var opts []query.Option
	if parameterized {
		opts = append(opts, query.Parameterized())
	}
	b := query.New(d, opts...)
	verb, sql, args, err := q.render(b)
	if err != nil {
		return Statement{}, fmt.Errorf("query %s: %w", q.label(), err)
	}
	return Statement{Source: "query " + q.label(), Verb: verb, SQL: sql, Args: args}, nil
}

func (q *Query) label() string {
	if q.Name != "" {
		return q.Name
	}
	verb, target, _ := q.Verb()
	if verb == VerbSQL {
		return verb
	}
	return verb + " " + target
}

// render renders q with b, returning the verb and the rendered statement.
func (q *Query) render(b *query.Builder) (verb, sql string, args []any, err error) {
	verb, err = q.configure(b)
	if err != nil {
		return "", "", nil, err
	}
	switch verb {
	case VerbSelect:
		sql, args, err = b.ToSQL()
	case VerbInsert:
		sql, args, err = b.InsertSQL(q.Replace)
	case VerbUpdate:
		sql, args, err = b.UpdateSQL()
	case VerbDelete:
		sql, args, err = b.DeleteSQL()
	case VerbTruncate:
		sql, args, err = b.TruncateSQL()
	case VerbSQL:
		sql, args = strings.TrimSpace(q.SQL), q.Args
		if len(args) > 0 {
			sql = b.Dialect().Rebind(sql)
		}
	}
	return verb, sql, args, err
}

// configure stages every clause of q on b and returns the verb.
func (q *Query) configure(b *query.Builder) (string, error) {
	verb, target, err := q.Verb()
	if err != nil {
		return "", err
	}
	if verb == VerbSQL {
		return verb, nil
	}
	b.Table(target)

	if len(q.Select) > 0 {
		b.Select(q.Select...)
	}
	if q.Distinct {
		b.Distinct()
	}
	for _, j := range q.Joins {
		switch strings.ToLower(strings.TrimSpace(j.Kind)) {
		case "":
			b.Join(j.Table, j.On)
		case "inner":
			b.JoinInner(j.Table, j.On)
		case "left":
			b.JoinLeft(j.Table, j.On)
		case "right":
			b.JoinRight(j.Table, j.On)
		case "outer", "full":
			b.JoinOuter(j.Table, j.On)
		default:
			return "", fmt.Errorf("join kind %q (want inner, left, right or outer)", j.Kind)
		}
	}
	for _, k := range sortedKeys(q.Where) {
		b.Where(k, q.Where[k])
	}
	for _, k := range sortedInKeys(q.WhereIn) {
		b.WhereIn(k, q.WhereIn[k]...)
	}
	for _, f := range q.WhereNull {
		b.WhereNull(f)
	}
	for _, f := range q.WhereNotNull {
		b.WhereNotNull(f)
	}
	if len(q.GroupBy) > 0 {
		b.GroupBy(q.GroupBy...)
	}
	for _, k := range sortedKeys(q.Having) {
		b.Having(k, q.Having[k])
	}
	for _, o := range q.OrderBy {
		b.OrderBy(o.Field, o.Dir)
	}
	if q.Limit > 0 {
		b.Limit(q.Limit)
	}
	if q.Offset > 0 {
		b.Offset(q.Offset)
	}
	if len(q.Set) > 0 {
		b.SetMap(q.Set)
	}
	if len(q.Values) > 0 {
		b.SetAsBatch(q.Values)
	}
	if len(q.OnConflict) > 0 {
		b.OnConflict(q.OnConflict...)
	}
	return verb, b.Err()
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func sortedInKeys(m map[string][]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
