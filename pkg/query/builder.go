// Package query is a fluent SQL statement builder bound to one dialect.
//
// A Builder accumulates the shape of a single statement (select list,
// joins, predicates, grouping, ordering, pagination, assignments) and renders
// it on a terminal call. Values are quoted inline through the dialect by
// default; with the Parameterized option they are returned as arguments and
// the placeholders are rebound to the dialect bind style.
//
//	b := query.New(dialect.MustGet("pgsql"))
//	sql, args, err := b.Select("id", "name").From("users").
//		Where("age >=", 18).OrderBy("name", "asc").Limit(10).ToSQL()
//
// A Builder is not safe for concurrent use. Call Flush to reuse it for a new
// statement.
package query

import (
	"errors"
	"io"
	"log/slog"

	"querykit/pkg/dialect"
)

var (
	// ErrNoTable is returned when a statement is rendered without a table.
	ErrNoTable = errors.New("query: no table")
	// ErrUnbalancedBrackets is returned when bracket groups do not match.
	ErrUnbalancedBrackets = errors.New("query: unbalanced brackets")
	// ErrNoExecutor is returned by terminal calls when no executor was set.
	ErrNoExecutor = errors.New("query: no executor")
)

// Statement is anything that renders to SQL with "?" placeholders.
// *Builder implements it, which lets a builder serve as a CTE body.
type Statement interface {
	Build() (string, []any, error)
}

// SQL is verbatim statement text usable as a Statement.
type SQL string

// Build implements Statement.
func (s SQL) Build() (string, []any, error) { return string(s), nil, nil }

// Option configures a Builder.
type Option func(*Builder)

// WithExecutor sets the collaborator used by terminal calls.
func WithExecutor(x Executor) Option { return func(b *Builder) { b.exec = x } }

// WithLogger sets the logger used to trace statements before execution.
func WithLogger(l *slog.Logger) Option { return func(b *Builder) { b.log = l } }

// Parameterized makes render calls return placeholders and arguments instead
// of inlined literals. dialect.Raw values are always inlined.
func Parameterized() Option { return func(b *Builder) { b.params = true } }

type joinKind string

const (
	joinInner joinKind = "INNER JOIN"
	joinLeft  joinKind = "LEFT JOIN"
	joinRight joinKind = "RIGHT JOIN"
	joinOuter joinKind = "FULL OUTER JOIN"
	joinPlain joinKind = "JOIN"
)

type join struct {
	kind  joinKind
	table string
	on    string
}

type cte struct {
	name string
	cols []string
	body Statement
}

type union struct {
	all bool
	b   *Builder
}

type assignment struct {
	column string
	value  any
}

// Builder accumulates one statement.
type Builder struct {
	d      *dialect.Dialect
	exec   Executor
	log    *slog.Logger
	params bool

	fields    []string
	distinct  bool
	table     string
	joins     []join
	conds     predicates
	group     []string
	having    predicates
	order     []string
	limit     int
	offset    int
	sets      []assignment
	batchCols []string
	batch     [][]any
	conflict  []string
	ctes      []cte
	recursive bool
	unions    []union

	err error
}

// New binds a builder to d.
func New(d *dialect.Dialect, opts ...Option) *Builder {
	b := &Builder{d: d}
	for _, o := range opts {
		o(b)
	}
	if b.log == nil {
		b.log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return b
}

// Dialect returns the bound dialect.
func (b *Builder) Dialect() *dialect.Dialect { return b.d }

// Err returns the first configuration error, if any.
func (b *Builder) Err() error { return b.err }

func (b *Builder) fail(err error) *Builder {
	if b.err == nil {
		b.err = err
	}
	return b
}

// Flush clears all statement state. The dialect, executor, logger and
// parameter mode are kept.
func (b *Builder) Flush() *Builder {
	*b = Builder{d: b.d, exec: b.exec, log: b.log, params: b.params}
	return b
}

// sub returns an empty builder sharing b's configuration.
func (b *Builder) sub() *Builder {
	return &Builder{d: b.d, exec: b.exec, log: b.log, params: b.params}
}
