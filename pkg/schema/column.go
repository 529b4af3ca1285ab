// Package schema builds dialect-specific DDL from abstract column, index and
// table definitions.
//
// A Column or Index is a small fluent builder over a plain spec value. Setters
// never fail; the first configuration error (unknown type, malformed
// identifier) is recorded and returned by every render call, so a chain can be
// written without intermediate checks:
//
//	col := schema.String("name").Length(64).NotNull()
//	frag, err := col.Render(d, schema.ModeCreate, "")
//
// Rendering is delegated to the bound *dialect.Dialect, which owns the type
// tables, clause order and the operations it cannot express.
package schema

import (
	"strings"

	"querykit/pkg/dialect"
)

// Mode selects how a column definition is rendered.
type Mode int

const (
	// ModeCreate renders the bare fragment used inside CREATE TABLE.
	ModeCreate Mode = iota
	// ModeAdd renders ALTER TABLE ... ADD.
	ModeAdd
	// ModeModify renders the dialect's in-place column redefinition.
	ModeModify
)

func (m Mode) String() string {
	switch m {
	case ModeAdd:
		return "add"
	case ModeModify:
		return "modify"
	}
	return "create"
}

// ColumnSpec is the abstract description of a column.
//
// Default holds a Go value quoted through the dialect at render time; wrap it
// in dialect.Raw to emit an expression such as CURRENT_TIMESTAMP verbatim.
// HasDefault distinguishes "DEFAULT NULL" from "no default".
type ColumnSpec struct {
	Name       string
	Type       dialect.ColumnType
	Length     dialect.Length
	Nullable   bool
	Unique     bool
	Unsigned   bool
	Default    any
	HasDefault bool
	Comment    string
	First      bool
	After      string
}

// Column is a fluent builder for one column definition.
type Column struct {
	spec ColumnSpec
	err  error
}

// NewColumn starts a column of the given abstract type.
func NewColumn(name string, t dialect.ColumnType) *Column {
	c := &Column{spec: ColumnSpec{Name: strings.TrimSpace(name), Type: t}}
	c.check()
	return c
}

// ColumnFromSpec wraps a copy of spec.
func ColumnFromSpec(spec ColumnSpec) *Column {
	c := &Column{spec: spec}
	c.check()
	return c
}

func (c *Column) check() {
	if err := dialect.CheckIdent(c.spec.Name); err != nil {
		c.fail(err)
	}
	if !c.spec.Type.Valid() {
		c.fail(&dialect.SpecError{Field: "column type", Value: string(c.spec.Type), Reason: "unknown type"})
	}
}

// fail keeps the first error only.
func (c *Column) fail(err error) {
	if c.err == nil {
		c.err = err
	}
}

func Primary(name string) *Column    { return NewColumn(name, dialect.TypePrimary) }
func BigPrimary(name string) *Column { return NewColumn(name, dialect.TypeBigPrimary) }
func String(name string) *Column     { return NewColumn(name, dialect.TypeString) }
func Text(name string) *Column       { return NewColumn(name, dialect.TypeText) }
func MediumText(name string) *Column { return NewColumn(name, dialect.TypeMediumText) }
func LongText(name string) *Column   { return NewColumn(name, dialect.TypeLongText) }
func TinyInt(name string) *Column    { return NewColumn(name, dialect.TypeTinyInt) }
func SmallInt(name string) *Column   { return NewColumn(name, dialect.TypeSmallInt) }
func Integer(name string) *Column    { return NewColumn(name, dialect.TypeInteger) }
func BigInt(name string) *Column     { return NewColumn(name, dialect.TypeBigInt) }
func Float(name string) *Column      { return NewColumn(name, dialect.TypeFloat) }
func Double(name string) *Column     { return NewColumn(name, dialect.TypeDouble) }
func Decimal(name string) *Column    { return NewColumn(name, dialect.TypeDecimal) }
func DateTime(name string) *Column   { return NewColumn(name, dialect.TypeDateTime) }
func Timestamp(name string) *Column  { return NewColumn(name, dialect.TypeTimestamp) }
func Time(name string) *Column       { return NewColumn(name, dialect.TypeTime) }
func Date(name string) *Column       { return NewColumn(name, dialect.TypeDate) }
func Binary(name string) *Column     { return NewColumn(name, dialect.TypeBinary) }
func Boolean(name string) *Column    { return NewColumn(name, dialect.TypeBoolean) }
func Money(name string) *Column      { return NewColumn(name, dialect.TypeMoney) }
func JSON(name string) *Column       { return NewColumn(name, dialect.TypeJSON) }

// Name renames the column.
func (c *Column) Name(name string) *Column {
	c.spec.Name = strings.TrimSpace(name)
	if err := dialect.CheckIdent(c.spec.Name); err != nil {
		c.fail(err)
	}
	return c
}

// Type changes the abstract type.
func (c *Column) Type(t dialect.ColumnType) *Column {
	c.spec.Type = t
	if !t.Valid() {
		c.fail(&dialect.SpecError{Field: "column type", Value: string(t), Reason: "unknown type"})
	}
	return c
}

// Length sets a single-value length.
func (c *Column) Length(n int) *Column {
	if n < 0 {
		c.fail(&dialect.SpecError{Field: "column length", Value: n, Reason: "must not be negative"})
		return c
	}
	c.spec.Length = dialect.Size(n)
	return c
}

// Precision sets a precision/scale pair.
func (c *Column) Precision(p, s int) *Column {
	if p <= 0 || s < 0 || s > p {
		c.fail(&dialect.SpecError{Field: "column precision", Value: dialect.Precision(p, s).String(), Reason: "want 0 <= scale <= precision"})
		return c
	}
	c.spec.Length = dialect.Precision(p, s)
	return c
}

func (c *Column) Nullable() *Column { c.spec.Nullable = true; return c }
func (c *Column) NotNull() *Column  { c.spec.Nullable = false; return c }
func (c *Column) Unique() *Column   { c.spec.Unique = true; return c }
func (c *Column) Unsigned() *Column { c.spec.Unsigned = true; return c }

// Default sets a value that is quoted by the dialect.
func (c *Column) Default(v any) *Column {
	c.spec.Default = v
	c.spec.HasDefault = true
	return c
}

// DefaultRaw sets an unquoted default expression.
func (c *Column) DefaultRaw(expr string) *Column {
	return c.Default(dialect.Raw(expr))
}

func (c *Column) Comment(text string) *Column { c.spec.Comment = text; return c }

// First places the column first (MySQL only; ignored elsewhere).
func (c *Column) First() *Column {
	c.spec.First = true
	c.spec.After = ""
	return c
}

// After places the column after another one (MySQL only; ignored elsewhere).
func (c *Column) After(col string) *Column {
	c.spec.After = strings.TrimSpace(col)
	c.spec.First = false
	return c
}

// Spec returns a copy of the current spec.
func (c *Column) Spec() ColumnSpec { return c.spec }

// Err returns the first configuration error.
func (c *Column) Err() error { return c.err }

// ColumnName returns the raw column name.
func (c *Column) ColumnName() string { return c.spec.Name }

// Def resolves the spec against d.
func (c *Column) Def(d *dialect.Dialect) (dialect.ColumnDef, error) {
	if c.err != nil {
		return dialect.ColumnDef{}, c.err
	}
	typ, td, err := d.ResolveType(c.spec.Type, c.spec.Length, c.spec.Unsigned)
	if err != nil {
		return dialect.ColumnDef{}, err
	}
	def := dialect.ColumnDef{
		Name:     c.spec.Name,
		Type:     typ,
		Nullable: c.spec.Nullable,
		Identity: td.Identity,
		Unique:   c.spec.Unique,
		Comment:  c.spec.Comment,
		First:    c.spec.First,
		After:    c.spec.After,
	}
	if c.spec.HasDefault {
		v, err := d.QuoteValue(c.spec.Default)
		if err != nil {
			return dialect.ColumnDef{}, err
		}
		def.Default = v
		def.HasDefault = true
	}
	return def, nil
}

// Render produces the column DDL for mode. ModeAdd and ModeModify need a
// table name. Operations the dialect cannot express fail with
// *dialect.UnsupportedError before any other check.
func (c *Column) Render(d *dialect.Dialect, mode Mode, table string) (string, error) {
	op := dialect.OpAddColumn
	if mode == ModeModify {
		op = dialect.OpModifyColumn
	}
	if mode != ModeCreate && !d.Supports(op) {
		return "", &dialect.UnsupportedError{Dialect: d.Name, Operation: op}
	}
	def, err := c.Def(d)
	if err != nil {
		return "", err
	}
	switch mode {
	case ModeCreate:
		return d.ColumnFragment(def), nil
	case ModeAdd, ModeModify:
		if strings.TrimSpace(table) == "" {
			return "", &dialect.PreconditionError{Dialect: d.Name, Operation: op, Missing: "a table name"}
		}
		if mode == ModeAdd {
			return d.AddColumn(table, def)
		}
		return d.ModifyColumn(table, def)
	}
	return "", &dialect.SpecError{Field: "column mode", Value: int(mode), Reason: "unknown mode"}
}

// Comments returns the follow-up statements that attach the column comment
// on dialects without inline comments. It is empty otherwise.
func (c *Column) Comments(d *dialect.Dialect, table string) ([]string, error) {
	if c.err != nil {
		return nil, c.err
	}
	sql, err := d.ColumnComment(table, c.spec.Name, c.spec.Comment)
	if err != nil || sql == "" {
		return nil, err
	}
	return []string{sql}, nil
}
