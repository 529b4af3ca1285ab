package schema

import (
	"fmt"
	"strings"

	"querykit/pkg/dialect"
)

// tableLine is either a column builder or a raw SQL fragment.
type tableLine struct {
	col *Column
	raw string
}

// indexLine is either an index builder or a raw SQL fragment.
type indexLine struct {
	ix  *Index
	raw string
}

// Table accumulates a CREATE TABLE statement. Obtain one from
// Builder.CreateTable.
type Table struct {
	d           *dialect.Dialect
	name        string
	ifNotExists bool
	columns     []tableLine
	indexes     []indexLine
	primary     []string
	options     string
	err         error
}

func (t *Table) fail(err error) {
	if t.err == nil {
		t.err = err
	}
}

// IfNotExists makes the statement a no-op when the table already exists.
func (t *Table) IfNotExists() *Table { t.ifNotExists = true; return t }

// AddColumn appends a column built with the Column builder.
func (t *Table) AddColumn(c *Column) *Table {
	if c == nil {
		t.fail(&dialect.SpecError{Field: "column", Value: t.name, Reason: "nil column"})
		return t
	}
	t.columns = append(t.columns, tableLine{col: c})
	return t
}

// AddColumnSQL appends a column definition verbatim.
func (t *Table) AddColumnSQL(fragment string) *Table {
	if strings.TrimSpace(fragment) == "" {
		t.fail(&dialect.SpecError{Field: "column", Value: t.name, Reason: "empty SQL fragment"})
		return t
	}
	t.columns = append(t.columns, tableLine{raw: strings.TrimSpace(fragment)})
	return t
}

// AddColumnMap appends a column decoded from a map (see ColumnFromMap).
func (t *Table) AddColumnMap(m map[string]any) *Table {
	c, err := ColumnFromMap(m)
	if err != nil {
		t.fail(err)
		return t
	}
	return t.AddColumn(c)
}

// AddIndex appends an index. Kinds the dialect cannot declare inline are
// emitted as separate statements after CREATE TABLE.
func (t *Table) AddIndex(ix *Index) *Table {
	if ix == nil {
		t.fail(&dialect.SpecError{Field: "index", Value: t.name, Reason: "nil index"})
		return t
	}
	t.indexes = append(t.indexes, indexLine{ix: ix})
	return t
}

// AddIndexSQL appends a table-body index clause verbatim.
func (t *Table) AddIndexSQL(fragment string) *Table {
	if strings.TrimSpace(fragment) == "" {
		t.fail(&dialect.SpecError{Field: "index", Value: t.name, Reason: "empty SQL fragment"})
		return t
	}
	t.indexes = append(t.indexes, indexLine{raw: strings.TrimSpace(fragment)})
	return t
}

// AddIndexMap appends an index decoded from a map (see IndexFromMap).
func (t *Table) AddIndexMap(m map[string]any) *Table {
	ix, err := IndexFromMap(m)
	if err != nil {
		t.fail(err)
		return t
	}
	return t.AddIndex(ix)
}

// PrimaryKey declares a table-level primary key over cols.
func (t *Table) PrimaryKey(cols ...string) *Table {
	for _, c := range cols {
		if err := dialect.CheckIdent(c); err != nil {
			t.fail(err)
			return t
		}
	}
	t.primary = append(t.primary, cols...)
	return t
}

// Options sets a trailing table option string such as "ENGINE=InnoDB".
func (t *Table) Options(suffix string) *Table {
	t.options = strings.TrimSpace(suffix)
	return t
}

// Statements renders the table. The first statement is CREATE TABLE; it is
// followed by standalone index statements and then column comment
// statements, in declaration order.
func (t *Table) Statements() ([]string, error) {
	if t.err != nil {
		return nil, t.err
	}
	var (
		lines    []string
		trailing []string
		comments []string
	)
	for _, l := range t.columns {
		if l.col == nil {
			lines = append(lines, l.raw)
			continue
		}
		frag, err := l.col.Render(t.d, ModeCreate, t.name)
		if err != nil {
			return nil, fmt.Errorf("schema: table %s: column %s: %w", t.name, l.col.ColumnName(), err)
		}
		lines = append(lines, frag)
		more, err := l.col.Comments(t.d, t.name)
		if err != nil {
			return nil, fmt.Errorf("schema: table %s: column %s: %w", t.name, l.col.ColumnName(), err)
		}
		comments = append(comments, more...)
	}
	if len(t.primary) > 0 {
		lines = append(lines, "PRIMARY KEY ("+t.d.QuoteIdentList(t.primary)+")")
	}
	for _, l := range t.indexes {
		if l.ix == nil {
			lines = append(lines, l.raw)
			continue
		}
		def, err := l.ix.Def(t.d, t.name)
		if err != nil {
			return nil, fmt.Errorf("schema: table %s: index: %w", t.name, err)
		}
		sql, ok, err := t.d.InlineIndex(def)
		if err != nil {
			return nil, fmt.Errorf("schema: table %s: index %s: %w", t.name, def.Name, err)
		}
		if ok {
			lines = append(lines, sql)
			continue
		}
		sql, err = t.d.CreateIndex(def)
		if err != nil {
			return nil, fmt.Errorf("schema: table %s: index %s: %w", t.name, def.Name, err)
		}
		trailing = append(trailing, sql)
	}

	create, err := t.d.CreateTable(dialect.TableDef{
		Name:        t.name,
		IfNotExists: t.ifNotExists,
		Lines:       lines,
		Options:     t.options,
	})
	if err != nil {
		return nil, fmt.Errorf("schema: table %s: %w", t.name, err)
	}
	out := make([]string, 0, 1+len(trailing)+len(comments))
	out = append(out, create)
	out = append(out, trailing...)
	return append(out, comments...), nil
}

// SQL returns only the CREATE TABLE statement.
func (t *Table) SQL() (string, error) {
	stmts, err := t.Statements()
	if err != nil {
		return "", err
	}
	return stmts[0], nil
}
