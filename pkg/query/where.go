package query

import (
	"fmt"
	"reflect"
	"strings"

	"querykit/pkg/dialect"
)

type predKind int

const (
	predExpr predKind = iota
	predOpen
	predClose
)

type predicate struct {
	kind predKind
	or   bool
	sql  string
	args []any
}

// predicates is an ordered predicate list with explicit bracket markers.
type predicates struct {
	list  []predicate
	depth int
}

func (p *predicates) add(or bool, sql string, args []any) {
	p.list = append(p.list, predicate{kind: predExpr, or: or, sql: sql, args: args})
}

func (p *predicates) open(or bool) {
	p.list = append(p.list, predicate{kind: predOpen, or: or})
	p.depth++
}

// close fails when nothing is open or when the innermost group is empty.
func (p *predicates) close() error {
	if p.depth == 0 {
		return ErrUnbalancedBrackets
	}
	if n := len(p.list); n > 0 && p.list[n-1].kind == predOpen {
		return ErrUnbalancedBrackets
	}
	p.list = append(p.list, predicate{kind: predClose})
	p.depth--
	return nil
}

func (p *predicates) empty() bool { return len(p.list) == 0 }

// render joins predicates left to right. AND is implied; OR comes from the
// Or* variants. The connector of the first predicate in a group is dropped.
func (p *predicates) render() (string, []any, error) {
	if p.depth != 0 {
		return "", nil, ErrUnbalancedBrackets
	}
	var (
		sb   strings.Builder
		args []any
		conj bool
	)
	for _, x := range p.list {
		if x.kind == predClose {
			sb.WriteByte(')')
			conj = true
			continue
		}
		if conj {
			if x.or {
				sb.WriteString(" OR ")
			} else {
				sb.WriteString(" AND ")
			}
		}
		if x.kind == predOpen {
			sb.WriteByte('(')
			conj = false
			continue
		}
		sb.WriteString(x.sql)
		args = append(args, x.args...)
		conj = true
	}
	return sb.String(), args, nil
}

// Side selects where LIKE wildcards are placed.
type Side int

const (
	SideBoth Side = iota
	SideLeft
	SideRight
	SideNone
)

func (s Side) wrap(v string) string {
	switch s {
	case SideLeft:
		return "%" + v
	case SideRight:
		return v + "%"
	case SideNone:
		return v
	}
	return "%" + v + "%"
}

// Symbolic operators are matched with or without a separating space; word
// operators need one. Longer spellings come first.
var (
	symbolOps = []string{"<=", ">=", "<>", "!=", "=", "<", ">"}
	wordOps   = []string{"NOT LIKE", "IS NOT", "LIKE", "IS"}
)

// splitOperator separates a trailing operator from field: "age >=" yields
// ("age", ">="). The default operator is "=".
func splitOperator(field string) (string, string) {
	f := strings.TrimSpace(field)
	upper := strings.ToUpper(f)
	for _, op := range wordOps {
		if strings.HasSuffix(upper, " "+op) {
			return strings.TrimSpace(f[:len(f)-len(op)]), op
		}
	}
	for _, op := range symbolOps {
		if strings.HasSuffix(f, op) {
			return strings.TrimSpace(f[:len(f)-len(op)]), op
		}
	}
	return f, "="
}

// placeholder inlines dialect.Raw values and defers everything else.
func placeholder(v any) (string, []any) {
	if r, ok := v.(dialect.Raw); ok {
		return string(r), nil
	}
	return "?", []any{v}
}

func (b *Builder) column(field string) (string, bool) {
	if err := dialect.CheckIdent(field); err != nil {
		b.fail(err)
		return "", false
	}
	return b.d.QuoteIdent(field), true
}

func (b *Builder) comparison(field string, value any) (string, []any, bool) {
	name, op := splitOperator(field)
	col, ok := b.column(name)
	if !ok {
		return "", nil, false
	}
	if value == nil {
		switch op {
		case "=", "IS":
			return col + " IS NULL", nil, true
		case "!=", "<>", "IS NOT":
			return col + " IS NOT NULL", nil, true
		}
	}
	ph, args := placeholder(value)
	return col + " " + op + " " + ph, args, true
}

func (b *Builder) addComparison(dst *predicates, or bool, field string, value any) *Builder {
	if sql, args, ok := b.comparison(field, value); ok {
		dst.add(or, sql, args)
	}
	return b
}

// Where adds "field op value", ANDed with what precedes it. The operator may
// trail the field ("age >=", "name LIKE"); it defaults to "=". A nil value
// renders IS NULL (or IS NOT NULL for != and <>). Wrap the value in
// dialect.Raw to emit it verbatim.
func (b *Builder) Where(field string, value any) *Builder {
	return b.addComparison(&b.conds, false, field, value)
}

// OrWhere is Where joined with OR.
func (b *Builder) OrWhere(field string, value any) *Builder {
	return b.addComparison(&b.conds, true, field, value)
}

// expand flattens a single slice argument into its elements.
func expand(values []any) []any {
	if len(values) != 1 || values[0] == nil {
		return values
	}
	if _, ok := values[0].([]byte); ok {
		return values
	}
	rv := reflect.ValueOf(values[0])
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return values
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out
}

func (b *Builder) in(or, not bool, field string, values []any) *Builder {
	col, ok := b.column(field)
	if !ok {
		return b
	}
	values = expand(values)
	if len(values) == 0 {
		if not {
			b.conds.add(or, "1 = 1", nil)
		} else {
			b.conds.add(or, "1 = 0", nil)
		}
		return b
	}
	phs := make([]string, len(values))
	var args []any
	for i, v := range values {
		var a []any
		phs[i], a = placeholder(v)
		args = append(args, a...)
	}
	op := " IN ("
	if not {
		op = " NOT IN ("
	}
	b.conds.add(or, col+op+strings.Join(phs, ", ")+")", args)
	return b
}

// WhereIn adds "field IN (...)". A single slice argument is expanded. An
// empty list matches nothing.
func (b *Builder) WhereIn(field string, values ...any) *Builder {
	return b.in(false, false, field, values)
}

func (b *Builder) OrWhereIn(field string, values ...any) *Builder {
	return b.in(true, false, field, values)
}

// WhereNotIn adds "field NOT IN (...)". An empty list matches everything.
func (b *Builder) WhereNotIn(field string, values ...any) *Builder {
	return b.in(false, true, field, values)
}

func (b *Builder) OrWhereNotIn(field string, values ...any) *Builder {
	return b.in(true, true, field, values)
}

func (b *Builder) null(or, not bool, field string) *Builder {
	col, ok := b.column(field)
	if !ok {
		return b
	}
	if not {
		b.conds.add(or, col+" IS NOT NULL", nil)
	} else {
		b.conds.add(or, col+" IS NULL", nil)
	}
	return b
}

func (b *Builder) WhereNull(field string) *Builder      { return b.null(false, false, field) }
func (b *Builder) OrWhereNull(field string) *Builder    { return b.null(true, false, field) }
func (b *Builder) WhereNotNull(field string) *Builder   { return b.null(false, true, field) }
func (b *Builder) OrWhereNotNull(field string) *Builder { return b.null(true, true, field) }

func (b *Builder) between(or, not bool, field string, lo, hi any) *Builder {
	col, ok := b.column(field)
	if !ok {
		return b
	}
	loPH, loArgs := placeholder(lo)
	hiPH, hiArgs := placeholder(hi)
	op := " BETWEEN "
	if not {
		op = " NOT BETWEEN "
	}
	b.conds.add(or, col+op+loPH+" AND "+hiPH, append(loArgs, hiArgs...))
	return b
}

func (b *Builder) WhereBetween(field string, lo, hi any) *Builder {
	return b.between(false, false, field, lo, hi)
}

func (b *Builder) OrWhereBetween(field string, lo, hi any) *Builder {
	return b.between(true, false, field, lo, hi)
}

func (b *Builder) WhereNotBetween(field string, lo, hi any) *Builder {
	return b.between(false, true, field, lo, hi)
}

func (b *Builder) OrWhereNotBetween(field string, lo, hi any) *Builder {
	return b.between(true, true, field, lo, hi)
}

func (b *Builder) like(or, not bool, field string, value any, side Side) *Builder {
	col, ok := b.column(field)
	if !ok {
		return b
	}
	var (
		ph   string
		args []any
	)
	switch v := value.(type) {
	case nil:
		return b.fail(&dialect.SpecError{Field: "like pattern", Value: field, Reason: "must not be nil"})
	case dialect.Raw:
		ph = string(v)
	case string:
		ph, args = "?", []any{side.wrap(v)}
	default:
		ph, args = "?", []any{side.wrap(fmt.Sprint(v))}
	}
	op := " LIKE "
	if not {
		op = " NOT LIKE "
	}
	b.conds.add(or, col+op+ph, args)
	return b
}

// Like adds "field LIKE pattern" with wildcards placed per side. A
// dialect.Raw value is emitted verbatim and side is ignored.
func (b *Builder) Like(field string, value any, side Side) *Builder {
	return b.like(false, false, field, value, side)
}

func (b *Builder) OrLike(field string, value any, side Side) *Builder {
	return b.like(true, false, field, value, side)
}

func (b *Builder) NotLike(field string, value any, side Side) *Builder {
	return b.like(false, true, field, value, side)
}

func (b *Builder) OrNotLike(field string, value any, side Side) *Builder {
	return b.like(true, true, field, value, side)
}

// WhereExpr adds a raw predicate. "?" marks in expr bind args in order;
// dialect.Raw args are written in place of their mark.
func (b *Builder) WhereExpr(expr string, args ...any) *Builder {
	expr, args = inlineRaw(expr, args)
	b.conds.add(false, expr, args)
	return b
}

func (b *Builder) OrWhereExpr(expr string, args ...any) *Builder {
	expr, args = inlineRaw(expr, args)
	b.conds.add(true, expr, args)
	return b
}

// WhereBrackets opens a parenthesized group ANDed with what precedes it.
func (b *Builder) WhereBrackets() *Builder {
	b.conds.open(false)
	return b
}

// OrWhereBrackets opens a parenthesized group ORed with what precedes it.
func (b *Builder) OrWhereBrackets() *Builder {
	b.conds.open(true)
	return b
}

// WhereBracketsEnd closes the innermost group. Closing with no open group,
// or closing an empty group, records ErrUnbalancedBrackets.
func (b *Builder) WhereBracketsEnd() *Builder {
	if err := b.conds.close(); err != nil {
		b.fail(err)
	}
	return b
}

// Having adds a HAVING comparison with the same operator rules as Where.
func (b *Builder) Having(field string, value any) *Builder {
	return b.addComparison(&b.having, false, field, value)
}

func (b *Builder) OrHaving(field string, value any) *Builder {
	return b.addComparison(&b.having, true, field, value)
}

// HavingExpr adds a raw HAVING predicate, e.g. "COUNT(*) > ?". Args follow
// the WhereExpr rules.
func (b *Builder) HavingExpr(expr string, args ...any) *Builder {
	expr, args = inlineRaw(expr, args)
	b.having.add(false, expr, args)
	return b
}
