package dialect

import (
	"fmt"
	"strings"
)

// TableDef is a CREATE TABLE request. Lines are already-rendered column,
// key and index definitions.
type TableDef struct {
	Name        string
	IfNotExists bool
	Lines       []string
	Options     string
}

// ColumnDef is a column whose type and default have been rendered for the
// dialect; the name is raw.
type ColumnDef struct {
	Name       string
	Type       string
	Nullable   bool
	Identity   bool
	Default    string
	HasDefault bool
	Unique     bool
	Comment    string
	First      bool
	After      string
}

// IndexKind distinguishes index flavors.
type IndexKind string

const (
	IndexPlain    IndexKind = "index"
	IndexUnique   IndexKind = "unique"
	IndexFulltext IndexKind = "fulltext"
	IndexForeign  IndexKind = "foreign"
)

// Valid reports whether k is a known kind.
func (k IndexKind) Valid() bool {
	switch k {
	case IndexPlain, IndexUnique, IndexFulltext, IndexForeign:
		return true
	}
	return false
}

// IndexDef is an index or key with raw identifiers.
type IndexDef struct {
	Kind       IndexKind
	Name       string
	Table      string
	Columns    []string
	RefTable   string
	RefColumns []string
	OnDelete   string
	OnUpdate   string
}

// InsertDef is an INSERT with rendered values. Rows holds one rendered
// literal (or placeholder) per column.
type InsertDef struct {
	Table        string
	Columns      []string
	Rows         [][]string
	Replace      bool
	ConflictKeys []string
}

// ColumnFragment renders "name type [clauses]" in the dialect clause order.
func (d *Dialect) ColumnFragment(c ColumnDef) string {
	var b strings.Builder
	b.WriteString(d.QuoteIdent(c.Name))
	b.WriteByte(' ')
	b.WriteString(c.Type)
	for _, cl := range d.clauseOrder() {
		switch cl {
		case ClauseNotNull:
			if !c.Nullable && !c.Identity {
				b.WriteString(" NOT NULL")
			}
		case ClauseDefault:
			if c.HasDefault && !c.Identity {
				b.WriteString(" DEFAULT ")
				b.WriteString(c.Default)
			}
		case ClauseUnique:
			if c.Unique && !c.Identity {
				b.WriteString(" UNIQUE")
			}
		case ClauseComment:
			if c.Comment != "" {
				b.WriteString(" COMMENT ")
				b.WriteString(d.Literal(c.Comment))
			}
		case ClausePosition:
			if c.First {
				b.WriteString(" FIRST")
			} else if c.After != "" {
				b.WriteString(" AFTER ")
				b.WriteString(d.QuoteIdent(c.After))
			}
		}
	}
	return b.String()
}

// ForeignClause renders "FOREIGN KEY (...) REFERENCES t (...)" with
// optional referential actions.
func (d *Dialect) ForeignClause(ix IndexDef) string {
	var b strings.Builder
	fmt.Fprintf(&b, "FOREIGN KEY (%s) REFERENCES %s (%s)",
		d.QuoteIdentList(ix.Columns), d.QuoteIdent(ix.RefTable), d.QuoteIdentList(ix.RefColumns))
	if ix.OnDelete != "" {
		b.WriteString(" ON DELETE ")
		b.WriteString(strings.ToUpper(ix.OnDelete))
	}
	if ix.OnUpdate != "" {
		b.WriteString(" ON UPDATE ")
		b.WriteString(strings.ToUpper(ix.OnUpdate))
	}
	return b.String()
}

// CreateTable renders a CREATE TABLE statement.
func (d *Dialect) CreateTable(t TableDef) (string, error) {
	if err := d.require(OpCreateTable); err != nil {
		return "", err
	}
	if t.IfNotExists {
		if err := d.require(OpIfNotExists); err != nil {
			return "", err
		}
	}
	if len(t.Lines) == 0 {
		return "", &PreconditionError{Dialect: d.Name, Operation: OpCreateTable, Missing: "at least one column"}
	}
	if d.Render.CreateTable != nil {
		return d.Render.CreateTable(d, t)
	}
	return DefaultCreateTable(d, t), nil
}

// DefaultCreateTable renders the portable CREATE TABLE form.
func DefaultCreateTable(d *Dialect, t TableDef) string {
	var b strings.Builder
	b.WriteString("CREATE TABLE ")
	if t.IfNotExists {
		b.WriteString("IF NOT EXISTS ")
	}
	b.WriteString(d.QuoteIdent(t.Name))
	b.WriteString(" (\n  ")
	b.WriteString(strings.Join(t.Lines, ",\n  "))
	b.WriteString("\n)")
	if t.Options != "" {
		b.WriteByte(' ')
		b.WriteString(t.Options)
	}
	return b.String()
}

// DropTable renders DROP TABLE.
func (d *Dialect) DropTable(table string, ifExists bool) (string, error) {
	if err := d.require(OpDropTable); err != nil {
		return "", err
	}
	if ifExists {
		if err := d.require(OpIfExists); err != nil {
			return "", err
		}
	}
	if d.Render.DropTable != nil {
		return d.Render.DropTable(d, table, ifExists)
	}
	if ifExists {
		return "DROP TABLE IF EXISTS " + d.QuoteIdent(table), nil
	}
	return "DROP TABLE " + d.QuoteIdent(table), nil
}

// RenameTable renders a table rename.
func (d *Dialect) RenameTable(from, to string) (string, error) {
	if err := d.require(OpRenameTable); err != nil {
		return "", err
	}
	if d.Render.RenameTable != nil {
		return d.Render.RenameTable(d, from, to)
	}
	return fmt.Sprintf("ALTER TABLE %s RENAME TO %s", d.QuoteIdent(from), d.QuoteIdent(to)), nil
}

// ExistsTable renders a query returning a positive count when table exists.
func (d *Dialect) ExistsTable(table string) (string, error) {
	if err := d.require(OpExistsTable); err != nil {
		return "", err
	}
	if d.Render.ExistsTable != nil {
		return d.Render.ExistsTable(d, table)
	}
	return "SELECT COUNT(*) FROM information_schema.tables WHERE table_name = " + d.Literal(table), nil
}

// DescribeTable renders a query listing the columns of table.
func (d *Dialect) DescribeTable(table string) (string, error) {
	if err := d.require(OpDescribeTable); err != nil {
		return "", err
	}
	if d.Render.DescribeTable != nil {
		return d.Render.DescribeTable(d, table)
	}
	return "SELECT column_name, data_type, is_nullable, column_default FROM information_schema.columns WHERE table_name = " +
		d.Literal(table) + " ORDER BY ordinal_position", nil
}

// Truncate renders a statement that empties table.
func (d *Dialect) Truncate(table string) (string, error) {
	if err := d.require(OpTruncate); err != nil {
		return "", err
	}
	if d.Render.Truncate != nil {
		return d.Render.Truncate(d, table)
	}
	return "TRUNCATE TABLE " + d.QuoteIdent(table), nil
}

// ShowTables renders a query listing tables.
func (d *Dialect) ShowTables() (string, error) {
	if err := d.require(OpShowTables); err != nil {
		return "", err
	}
	if d.Render.ShowTables != nil {
		return d.Render.ShowTables(d)
	}
	return "SELECT table_name FROM information_schema.tables ORDER BY table_name", nil
}

// ShowIndex renders a query listing the indexes of table.
func (d *Dialect) ShowIndex(table string) (string, error) {
	if err := d.require(OpShowIndex); err != nil {
		return "", err
	}
	if d.Render.ShowIndex == nil {
		return "", &UnsupportedError{Dialect: d.Name, Operation: OpShowIndex}
	}
	return d.Render.ShowIndex(d, table)
}

// ShowDatabases renders a query listing databases.
func (d *Dialect) ShowDatabases() (string, error) {
	if err := d.require(OpShowDatabases); err != nil {
		return "", err
	}
	if d.Render.ShowDatabases == nil {
		return "", &UnsupportedError{Dialect: d.Name, Operation: OpShowDatabases}
	}
	return d.Render.ShowDatabases(d)
}

// CreateDatabase renders CREATE DATABASE.
func (d *Dialect) CreateDatabase(name string) (string, error) {
	if err := d.require(OpCreateDatabase); err != nil {
		return "", err
	}
	if d.Render.CreateDatabase != nil {
		return d.Render.CreateDatabase(d, name)
	}
	return "CREATE DATABASE " + d.QuoteIdent(name), nil
}

// DropDatabase renders DROP DATABASE.
func (d *Dialect) DropDatabase(name string) (string, error) {
	if err := d.require(OpDropDatabase); err != nil {
		return "", err
	}
	if d.Render.DropDatabase != nil {
		return d.Render.DropDatabase(d, name)
	}
	return "DROP DATABASE " + d.QuoteIdent(name), nil
}

// AddColumn renders ALTER TABLE ... ADD for c.
func (d *Dialect) AddColumn(table string, c ColumnDef) (string, error) {
	if err := d.require(OpAddColumn); err != nil {
		return "", err
	}
	if d.Render.AddColumn != nil {
		return d.Render.AddColumn(d, table, c)
	}
	return fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s", d.QuoteIdent(table), d.ColumnFragment(c)), nil
}

// ModifyColumn renders an in-place column redefinition.
func (d *Dialect) ModifyColumn(table string, c ColumnDef) (string, error) {
	if err := d.require(OpModifyColumn); err != nil {
		return "", err
	}
	if d.Render.ModifyColumn != nil {
		return d.Render.ModifyColumn(d, table, c)
	}
	return fmt.Sprintf("ALTER TABLE %s MODIFY COLUMN %s", d.QuoteIdent(table), d.ColumnFragment(c)), nil
}

// DropColumn renders ALTER TABLE ... DROP COLUMN.
func (d *Dialect) DropColumn(table, column string) (string, error) {
	if err := d.require(OpDropColumn); err != nil {
		return "", err
	}
	if d.Render.DropColumn != nil {
		return d.Render.DropColumn(d, table, column)
	}
	return fmt.Sprintf("ALTER TABLE %s DROP COLUMN %s", d.QuoteIdent(table), d.QuoteIdent(column)), nil
}

// ColumnComment renders the follow-up statement attaching a comment to a
// column. It returns "" for dialects that render comments inline.
func (d *Dialect) ColumnComment(table, column, text string) (string, error) {
	if text == "" || d.InlineComments() {
		return "", nil
	}
	if d.Render.ColumnComment != nil {
		return d.Render.ColumnComment(d, table, column, text)
	}
	return fmt.Sprintf("COMMENT ON COLUMN %s.%s IS %s",
		d.QuoteIdent(table), d.QuoteIdent(column), d.Literal(text)), nil
}

func (d *Dialect) checkIndex(ix IndexDef) error {
	if ix.Kind == IndexFulltext {
		if err := d.require(OpFulltextIndex); err != nil {
			return err
		}
	}
	if len(ix.Columns) == 0 {
		return &SpecError{Field: "index columns", Value: ix.Name, Reason: "at least one column is required"}
	}
	if ix.Kind == IndexForeign && (ix.RefTable == "" || len(ix.RefColumns) == 0) {
		return &SpecError{Field: "foreign key", Value: ix.Name, Reason: "a referenced table and columns are required"}
	}
	return nil
}

// InlineIndex renders the table-body form of ix. The boolean is false when
// the dialect cannot declare this kind inside CREATE TABLE; the caller must
// then issue CreateIndex after the table exists.
func (d *Dialect) InlineIndex(ix IndexDef) (string, bool, error) {
	if err := d.checkIndex(ix); err != nil {
		return "", false, err
	}
	if d.Render.InlineIndex != nil {
		return d.Render.InlineIndex(d, ix)
	}
	return DefaultInlineIndex(d, ix), true, nil
}

// DefaultInlineIndex renders the MySQL-style table-body index clause.
func DefaultInlineIndex(d *Dialect, ix IndexDef) string {
	name := d.QuoteIdent(ix.Name)
	cols := d.QuoteIdentList(ix.Columns)
	switch ix.Kind {
	case IndexUnique:
		return fmt.Sprintf("UNIQUE INDEX %s (%s)", name, cols)
	case IndexFulltext:
		return fmt.Sprintf("FULLTEXT INDEX %s (%s)", name, cols)
	case IndexForeign:
		return fmt.Sprintf("CONSTRAINT %s %s", name, d.ForeignClause(ix))
	}
	return fmt.Sprintf("INDEX %s (%s)", name, cols)
}

// CreateIndex renders the standalone statement for ix.
func (d *Dialect) CreateIndex(ix IndexDef) (string, error) {
	if err := d.require(OpCreateIndex); err != nil {
		return "", err
	}
	if err := d.checkIndex(ix); err != nil {
		return "", err
	}
	if ix.Kind == IndexForeign {
		if err := d.require(OpAddForeignKey); err != nil {
			return "", err
		}
	}
	if strings.TrimSpace(ix.Table) == "" {
		return "", &PreconditionError{Dialect: d.Name, Operation: OpCreateIndex, Missing: "a table name"}
	}
	if d.Render.CreateIndex != nil {
		return d.Render.CreateIndex(d, ix)
	}
	return DefaultCreateIndex(d, ix), nil
}

// DefaultCreateIndex renders CREATE [UNIQUE|FULLTEXT] INDEX or, for
// foreign keys, ALTER TABLE ... ADD CONSTRAINT.
func DefaultCreateIndex(d *Dialect, ix IndexDef) string {
	table := d.QuoteIdent(ix.Table)
	name := d.QuoteIdent(ix.Name)
	cols := d.QuoteIdentList(ix.Columns)
	switch ix.Kind {
	case IndexForeign:
		return fmt.Sprintf("ALTER TABLE %s ADD CONSTRAINT %s %s", table, name, d.ForeignClause(ix))
	case IndexUnique:
		return fmt.Sprintf("CREATE UNIQUE INDEX %s ON %s (%s)", name, table, cols)
	case IndexFulltext:
		return fmt.Sprintf("CREATE FULLTEXT INDEX %s ON %s (%s)", name, table, cols)
	}
	return fmt.Sprintf("CREATE INDEX %s ON %s (%s)", name, table, cols)
}

// DropIndex renders DROP INDEX.
func (d *Dialect) DropIndex(table, name string) (string, error) {
	if err := d.require(OpDropIndex); err != nil {
		return "", err
	}
	if d.Render.DropIndex != nil {
		return d.Render.DropIndex(d, table, name)
	}
	return "DROP INDEX " + d.QuoteIdent(name), nil
}

// AddPrimaryKey renders ALTER TABLE ... ADD PRIMARY KEY. name is optional.
func (d *Dialect) AddPrimaryKey(table, name string, cols []string) (string, error) {
	if err := d.require(OpAddPrimaryKey); err != nil {
		return "", err
	}
	if len(cols) == 0 {
		return "", &SpecError{Field: "primary key", Value: table, Reason: "at least one column is required"}
	}
	if d.Render.AddPrimaryKey != nil {
		return d.Render.AddPrimaryKey(d, table, name, cols)
	}
	if name != "" {
		return fmt.Sprintf("ALTER TABLE %s ADD CONSTRAINT %s PRIMARY KEY (%s)",
			d.QuoteIdent(table), d.QuoteIdent(name), d.QuoteIdentList(cols)), nil
	}
	return fmt.Sprintf("ALTER TABLE %s ADD PRIMARY KEY (%s)", d.QuoteIdent(table), d.QuoteIdentList(cols)), nil
}

// DropPrimaryKey renders the removal of the primary key of table. name is
// the constraint name where the dialect needs one.
func (d *Dialect) DropPrimaryKey(table, name string) (string, error) {
	if err := d.require(OpDropPrimaryKey); err != nil {
		return "", err
	}
	if d.Render.DropPrimaryKey != nil {
		return d.Render.DropPrimaryKey(d, table, name)
	}
	return fmt.Sprintf("ALTER TABLE %s DROP PRIMARY KEY", d.QuoteIdent(table)), nil
}

// Insert renders an INSERT (or upsert when ins.Replace is set).
func (d *Dialect) Insert(ins InsertDef) (string, error) {
	if err := d.require(OpInsert); err != nil {
		return "", err
	}
	if ins.Replace {
		if err := d.require(OpReplace); err != nil {
			return "", err
		}
	}
	if len(ins.Columns) == 0 || len(ins.Rows) == 0 {
		return "", &PreconditionError{Dialect: d.Name, Operation: OpInsert, Missing: "at least one value"}
	}
	if d.Render.Insert != nil {
		return d.Render.Insert(d, ins)
	}
	if ins.Replace {
		return "", &UnsupportedError{Dialect: d.Name, Operation: OpReplace}
	}
	return DefaultInsert(d, "INSERT INTO", ins), nil
}

// DefaultInsert renders "<verb> t (cols) VALUES (...), (...)".
func DefaultInsert(d *Dialect, verb string, ins InsertDef) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s (%s) VALUES ", verb, d.QuoteIdent(ins.Table), d.QuoteIdentList(ins.Columns))
	for i, row := range ins.Rows {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteByte('(')
		b.WriteString(strings.Join(row, ", "))
		b.WriteByte(')')
	}
	return b.String()
}
