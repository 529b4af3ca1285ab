package schema

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"

	"querykit/pkg/dialect"
	"querykit/pkg/query"
)

// ErrNoExecutor is returned by the execution helpers when the builder was
// created without an executor.
var ErrNoExecutor = query.ErrNoExecutor

// Option configures a Builder.
type Option func(*Builder)

// WithExecutor sets the collaborator used by Apply, HasTable, Tables and
// Describe.
func WithExecutor(x query.Executor) Option { return func(b *Builder) { b.exec = x } }

// WithLogger sets the logger used for executed statements.
func WithLogger(l *slog.Logger) Option { return func(b *Builder) { b.log = l } }

// Builder renders schema statements for one dialect. Every render method
// returns a single SQL statement or an error; nothing is executed unless an
// execution helper is called.
type Builder struct {
	d    *dialect.Dialect
	exec query.Executor
	log  *slog.Logger
}

// New binds a schema builder to d.
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

// CreateTable starts a CREATE TABLE statement.
func (b *Builder) CreateTable(name string) *Table {
	t := &Table{d: b.d, name: strings.TrimSpace(name)}
	if err := dialect.CheckIdent(t.name); err != nil {
		t.fail(err)
	}
	return t
}

func (b *Builder) DropTable(name string, ifExists bool) (string, error) {
	if err := dialect.CheckIdent(name); err != nil {
		return "", err
	}
	return b.d.DropTable(name, ifExists)
}

func (b *Builder) RenameTable(from, to string) (string, error) {
	if err := checkIdents(from, to); err != nil {
		return "", err
	}
	return b.d.RenameTable(from, to)
}

// ExistsTable renders a query whose single value is positive when the table
// exists.
func (b *Builder) ExistsTable(name string) (string, error) {
	if err := dialect.CheckIdent(name); err != nil {
		return "", err
	}
	return b.d.ExistsTable(name)
}

func (b *Builder) DescribeTable(name string) (string, error) {
	if err := dialect.CheckIdent(name); err != nil {
		return "", err
	}
	return b.d.DescribeTable(name)
}

func (b *Builder) CreateDatabase(name string) (string, error) {
	if err := dialect.CheckIdent(name); err != nil {
		return "", err
	}
	return b.d.CreateDatabase(name)
}

func (b *Builder) DropDatabase(name string) (string, error) {
	if err := dialect.CheckIdent(name); err != nil {
		return "", err
	}
	return b.d.DropDatabase(name)
}

func (b *Builder) ShowDatabases() (string, error) { return b.d.ShowDatabases() }

func (b *Builder) ShowTables() (string, error) { return b.d.ShowTables() }

func (b *Builder) ShowIndex(table string) (string, error) {
	if err := dialect.CheckIdent(table); err != nil {
		return "", err
	}
	return b.d.ShowIndex(table)
}

func (b *Builder) Truncate(table string) (string, error) {
	if err := dialect.CheckIdent(table); err != nil {
		return "", err
	}
	return b.d.Truncate(table)
}

// AddColumn renders ALTER TABLE ... ADD for c. A comment the dialect can
// only attach with a second statement fails with *dialect.PreconditionError;
// use AddColumnStatements for those.
func (b *Builder) AddColumn(table string, c *Column) (string, error) {
	return b.alterColumn(ModeAdd, table, c)
}

// AddColumnStatements is AddColumn followed by the statements attaching the
// column comment on dialects without inline comments.
func (b *Builder) AddColumnStatements(table string, c *Column) ([]string, error) {
	return b.alterColumnStatements(ModeAdd, table, c)
}

// AddColumnMap is AddColumn for a column decoded from a map.
func (b *Builder) AddColumnMap(table string, m map[string]any) (string, error) {
	c, err := ColumnFromMap(m)
	if err != nil {
		return "", err
	}
	return b.AddColumn(table, c)
}

// ModifyColumn renders the dialect's in-place redefinition of c. Comments
// follow the AddColumn rules.
func (b *Builder) ModifyColumn(table string, c *Column) (string, error) {
	return b.alterColumn(ModeModify, table, c)
}

// ModifyColumnStatements is ModifyColumn plus the comment statements.
func (b *Builder) ModifyColumnStatements(table string, c *Column) ([]string, error) {
	return b.alterColumnStatements(ModeModify, table, c)
}

func (b *Builder) alterColumnStatements(mode Mode, table string, c *Column) ([]string, error) {
	if c == nil {
		return nil, &dialect.SpecError{Field: "column", Value: table, Reason: "nil column"}
	}
	sql, err := c.Render(b.d, mode, table)
	if err != nil {
		return nil, err
	}
	comments, err := c.Comments(b.d, table)
	if err != nil {
		return nil, err
	}
	return append([]string{sql}, comments...), nil
}

func (b *Builder) alterColumn(mode Mode, table string, c *Column) (string, error) {
	stmts, err := b.alterColumnStatements(mode, table, c)
	if err != nil {
		return "", err
	}
	if len(stmts) > 1 {
		op := dialect.OpAddColumn
		if mode == ModeModify {
			op = dialect.OpModifyColumn
		}
		return "", &dialect.PreconditionError{Dialect: b.d.Name, Operation: op,
			Missing: "a separate COMMENT statement for the column comment; use the Statements variant"}
	}
	return stmts[0], nil
}

func (b *Builder) DropColumn(table, column string) (string, error) {
	if err := checkIdents(table, column); err != nil {
		return "", err
	}
	return b.d.DropColumn(table, column)
}

// CreateIndex renders the standalone statement for ix. table is used when
// the index has no bound table.
func (b *Builder) CreateIndex(table string, ix *Index) (string, error) {
	if ix == nil {
		return "", &dialect.SpecError{Field: "index", Value: table, Reason: "nil index"}
	}
	return ix.Render(b.d, table)
}

// CreateIndexSQL wraps a raw index clause into an ALTER TABLE ... ADD.
func (b *Builder) CreateIndexSQL(table, clause string) (string, error) {
	if err := dialect.CheckIdent(table); err != nil {
		return "", err
	}
	if strings.TrimSpace(clause) == "" {
		return "", &dialect.SpecError{Field: "index", Value: table, Reason: "empty SQL fragment"}
	}
	return fmt.Sprintf("ALTER TABLE %s ADD %s", b.d.QuoteIdent(table), strings.TrimSpace(clause)), nil
}

// CreateIndexMap is CreateIndex for an index decoded from a map.
func (b *Builder) CreateIndexMap(table string, m map[string]any) (string, error) {
	ix, err := IndexFromMap(m)
	if err != nil {
		return "", err
	}
	return b.CreateIndex(table, ix)
}

func (b *Builder) DropIndex(table, name string) (string, error) {
	if err := dialect.CheckIdent(name); err != nil {
		return "", err
	}
	return b.d.DropIndex(table, name)
}

// PrimaryKey renders ALTER TABLE ... ADD PRIMARY KEY over cols.
func (b *Builder) PrimaryKey(table string, cols ...string) (string, error) {
	if err := checkIdents(append([]string{table}, cols...)...); err != nil {
		return "", err
	}
	return b.d.AddPrimaryKey(table, "", cols)
}

// DropPrimaryKey renders the removal of the table's primary key. name is
// only needed where the dialect addresses the key by constraint name and
// the default (PK_<table>, <table>_pkey) does not apply.
func (b *Builder) DropPrimaryKey(table, name string) (string, error) {
	if err := dialect.CheckIdent(table); err != nil {
		return "", err
	}
	return b.d.DropPrimaryKey(table, name)
}

func checkIdents(ids ...string) error {
	for _, id := range ids {
		if err := dialect.CheckIdent(id); err != nil {
			return err
		}
	}
	return nil
}

// Apply executes stmts in order and stops at the first failure.
func (b *Builder) Apply(ctx context.Context, stmts ...string) error {
	if b.exec == nil {
		return ErrNoExecutor
	}
	for i, s := range stmts {
		b.log.Debug("schema apply", "dialect", b.d.Name, "n", i+1, "of", len(stmts), "sql", s)
		if _, err := b.exec.Exec(ctx, s); err != nil {
			return fmt.Errorf("schema: apply statement %d of %d: %w", i+1, len(stmts), err)
		}
	}
	return nil
}

// HasTable reports whether table exists.
func (b *Builder) HasTable(ctx context.Context, table string) (bool, error) {
	if b.exec == nil {
		return false, ErrNoExecutor
	}
	sql, err := b.ExistsTable(table)
	if err != nil {
		return false, err
	}
	v, err := b.exec.Value(ctx, sql)
	if err != nil {
		return false, fmt.Errorf("schema: exists %s: %w", table, err)
	}
	n, err := toCount(v)
	if err != nil {
		return false, fmt.Errorf("schema: exists %s: %w", table, err)
	}
	return n > 0, nil
}

// tableColumns are the result columns that carry a table name across the
// supported dictionaries.
var tableColumns = []string{"table_name", "TABLE_NAME", "name"}

// Tables lists the tables visible to the executor's connection.
func (b *Builder) Tables(ctx context.Context) ([]string, error) {
	if b.exec == nil {
		return nil, ErrNoExecutor
	}
	sql, err := b.ShowTables()
	if err != nil {
		return nil, err
	}
	rows, err := b.exec.Rows(ctx, sql)
	if err != nil {
		return nil, fmt.Errorf("schema: show tables: %w", err)
	}
	out := make([]string, 0, len(rows))
	for _, r := range rows {
		v, ok := singleValue(r, tableColumns)
		if !ok {
			return nil, fmt.Errorf("schema: show tables: unexpected row shape %v", r)
		}
		out = append(out, asString(v))
	}
	return out, nil
}

// Describe returns the dialect's column listing for table.
func (b *Builder) Describe(ctx context.Context, table string) ([]map[string]any, error) {
	if b.exec == nil {
		return nil, ErrNoExecutor
	}
	sql, err := b.DescribeTable(table)
	if err != nil {
		return nil, err
	}
	rows, err := b.exec.Rows(ctx, sql)
	if err != nil {
		return nil, fmt.Errorf("schema: describe %s: %w", table, err)
	}
	return rows, nil
}

// Indexes returns the dialect's index listing for table.
func (b *Builder) Indexes(ctx context.Context, table string) ([]map[string]any, error) {
	if b.exec == nil {
		return nil, ErrNoExecutor
	}
	sql, err := b.ShowIndex(table)
	if err != nil {
		return nil, err
	}
	rows, err := b.exec.Rows(ctx, sql)
	if err != nil {
		return nil, fmt.Errorf("schema: show index %s: %w", table, err)
	}
	return rows, nil
}

func singleValue(row map[string]any, keys []string) (any, bool) {
	if len(row) == 1 {
		for _, v := range row {
			return v, true
		}
	}
	for _, k := range keys {
		if v, ok := row[k]; ok {
			return v, true
		}
	}
	return nil, false
}

func asString(v any) string {
	switch x := v.(type) {
	case []byte:
		return string(x)
	case string:
		return x
	}
	return fmt.Sprint(v)
}

var errNotCount = errors.New("value is not a count")

// toCount converts the scalar shapes drivers return for COUNT(*).
func toCount(v any) (int64, error) {
	switch x := v.(type) {
	case int64:
		return x, nil
	case int32:
		return int64(x), nil
	case int:
		return int64(x), nil
	case uint64:
		return int64(x), nil
	case float64:
		return int64(x), nil
	case []byte:
		return strconv.ParseInt(strings.TrimSpace(string(x)), 10, 64)
	case string:
		return strconv.ParseInt(strings.TrimSpace(x), 10, 64)
	case nil:
		return 0, nil
	}
	return 0, fmt.Errorf("%w: %T", errNotCount, v)
}
