// Package sqlserver registers the Microsoft SQL Server dialect.
//
// T-SQL has no CREATE TABLE IF NOT EXISTS, so guarded creation is rendered
// as an IF OBJECT_ID(...) IS NULL block. Pagination uses OFFSET/FETCH,
// which requires an ORDER BY; one is synthesized when the query has none.
package sqlserver

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/jmoiron/sqlx"

	"querykit/pkg/dialect"
)

// Dialect is the registered SQL Server dialect.
var Dialect = &dialect.Dialect{
	Name:           dialect.SQLServer,
	Aliases:        []string{"sqlserver", "mssql"},
	Quote:          dialect.QuotePair{Open: "[", Close: "]"},
	MaxIdentLength: 128,
	Bind:           sqlx.AT,
	TrueLiteral:    "1",
	FalseLiteral:   "0",
	Types:          types,
	Unsupported:    []dialect.Operation{dialect.OpFulltextIndex, dialect.OpReplace},
	Render: dialect.Renderers{
		Literal:        literal,
		Limit:          limit,
		CreateTable:    createTable,
		RenameTable:    renameTable,
		ExistsTable:    existsTable,
		DescribeTable:  describeTable,
		ShowTables:     showTables,
		ShowIndex:      showIndex,
		ShowDatabases:  showDatabases,
		AddColumn:      addColumn,
		ModifyColumn:   modifyColumn,
		ColumnComment:  columnComment,
		InlineIndex:    inlineIndex,
		DropIndex:      dropIndex,
		AddPrimaryKey:  addPrimaryKey,
		DropPrimaryKey: dropPrimaryKey,
	},
}

func init() { dialect.Register(Dialect) }

var types = map[dialect.ColumnType]dialect.TypeDef{
	dialect.TypePrimary:    {Template: "int IDENTITY(1,1) NOT NULL PRIMARY KEY", Identity: true},
	dialect.TypeBigPrimary: {Template: "bigint IDENTITY(1,1) NOT NULL PRIMARY KEY", Identity: true},
	dialect.TypeString:     {Template: "nvarchar({length})", Default: dialect.Size(255)},
	dialect.TypeText:       {Template: "nvarchar(max)"},
	dialect.TypeMediumText: {Template: "nvarchar(max)"},
	dialect.TypeLongText:   {Template: "nvarchar(max)"},
	dialect.TypeTinyInt:    {Template: "tinyint"},
	dialect.TypeSmallInt:   {Template: "smallint"},
	dialect.TypeInteger:    {Template: "int"},
	dialect.TypeBigInt:     {Template: "bigint"},
	dialect.TypeFloat:      {Template: "real"},
	dialect.TypeDouble:     {Template: "float"},
	dialect.TypeDecimal:    {Template: "decimal({length})", Default: dialect.Precision(10, 2)},
	dialect.TypeDateTime:   {Template: "datetime2"},
	dialect.TypeTimestamp:  {Template: "datetime2"},
	dialect.TypeTime:       {Template: "time"},
	dialect.TypeDate:       {Template: "date"},
	dialect.TypeBinary:     {Template: "varbinary(max)"},
	dialect.TypeBoolean:    {Template: "bit"},
	dialect.TypeMoney:      {Template: "money"},
	dialect.TypeJSON:       {Template: "nvarchar(max)"},
}

// literal prefixes N for text outside ASCII so it survives a non-Unicode
// collation.
func literal(_ *dialect.Dialect, s string) string {
	q := dialect.DefaultLiteral(s)
	for i := 0; i < len(s); i++ {
		if s[i] >= utf8.RuneSelf {
			return "N" + q
		}
	}
	return q
}

func limit(_ *dialect.Dialect, sql string, p dialect.Page) string {
	if !p.Ordered {
		sql += " ORDER BY (SELECT NULL)"
	}
	return dialect.OffsetFetch(sql, p)
}

// objectName renders the N'...' literal OBJECT_ID expects.
func objectName(d *dialect.Dialect, table string) string {
	return "N" + dialect.DefaultLiteral(d.QuoteIdent(table))
}

func createTable(d *dialect.Dialect, t dialect.TableDef) (string, error) {
	if !t.IfNotExists {
		return dialect.DefaultCreateTable(d, t), nil
	}
	inner := t
	inner.IfNotExists = false
	body := strings.ReplaceAll(dialect.DefaultCreateTable(d, inner), "\n", "\n  ")
	return fmt.Sprintf("IF OBJECT_ID(%s, N'U') IS NULL\nBEGIN\n  %s;\nEND;", objectName(d, t.Name), body), nil
}

func renameTable(d *dialect.Dialect, from, to string) (string, error) {
	bare := to
	if i := strings.LastIndex(bare, "."); i >= 0 {
		bare = bare[i+1:]
	}
	return fmt.Sprintf("EXEC sp_rename %s, %s", "N"+dialect.DefaultLiteral(from), "N"+dialect.DefaultLiteral(bare)), nil
}

func existsTable(d *dialect.Dialect, table string) (string, error) {
	return fmt.Sprintf("SELECT COUNT(*) FROM sys.tables WHERE object_id = OBJECT_ID(%s, N'U')", objectName(d, table)), nil
}

func describeTable(d *dialect.Dialect, table string) (string, error) {
	return fmt.Sprintf("SELECT c.name AS column_name, t.name AS data_type, c.is_nullable, "+
		"OBJECT_DEFINITION(c.default_object_id) AS column_default FROM sys.columns c "+
		"JOIN sys.types t ON t.user_type_id = c.user_type_id "+
		"WHERE c.object_id = OBJECT_ID(%s) ORDER BY c.column_id", objectName(d, table)), nil
}

func showTables(*dialect.Dialect) (string, error) {
	return "SELECT TABLE_NAME FROM INFORMATION_SCHEMA.TABLES WHERE TABLE_TYPE = 'BASE TABLE' ORDER BY TABLE_NAME", nil
}

func showIndex(d *dialect.Dialect, table string) (string, error) {
	return fmt.Sprintf("SELECT i.name AS index_name, i.type_desc, i.is_unique, i.is_primary_key FROM sys.indexes i "+
		"WHERE i.object_id = OBJECT_ID(%s) AND i.name IS NOT NULL ORDER BY i.name", objectName(d, table)), nil
}

func showDatabases(*dialect.Dialect) (string, error) {
	return "SELECT name FROM sys.databases ORDER BY name", nil
}

// addColumn uses the T-SQL form, which has no COLUMN keyword.
func addColumn(d *dialect.Dialect, table string, c dialect.ColumnDef) (string, error) {
	return fmt.Sprintf("ALTER TABLE %s ADD %s", d.QuoteIdent(table), d.ColumnFragment(c)), nil
}

// modifyColumn spells out NULL explicitly; ALTER COLUMN cannot change the
// default, which lives in a separate constraint.
func modifyColumn(d *dialect.Dialect, table string, c dialect.ColumnDef) (string, error) {
	null := " NULL"
	if !c.Nullable {
		null = " NOT NULL"
	}
	return fmt.Sprintf("ALTER TABLE %s ALTER COLUMN %s %s%s",
		d.QuoteIdent(table), d.QuoteIdent(c.Name), c.Type, null), nil
}

func columnComment(d *dialect.Dialect, table, column, text string) (string, error) {
	schema, bare := "dbo", table
	if i := strings.LastIndex(table, "."); i > 0 {
		schema, bare = table[:i], table[i+1:]
	}
	return fmt.Sprintf("EXEC sp_addextendedproperty N'MS_Description', %s, N'SCHEMA', %s, N'TABLE', %s, N'COLUMN', %s",
		literal(d, text), "N"+dialect.DefaultLiteral(schema), "N"+dialect.DefaultLiteral(bare),
		"N"+dialect.DefaultLiteral(column)), nil
}

func inlineIndex(d *dialect.Dialect, ix dialect.IndexDef) (string, bool, error) {
	switch ix.Kind {
	case dialect.IndexUnique:
		return fmt.Sprintf("CONSTRAINT %s UNIQUE (%s)", d.QuoteIdent(ix.Name), d.QuoteIdentList(ix.Columns)), true, nil
	case dialect.IndexForeign:
		return fmt.Sprintf("CONSTRAINT %s %s", d.QuoteIdent(ix.Name), d.ForeignClause(ix)), true, nil
	}
	return fmt.Sprintf("INDEX %s (%s)", d.QuoteIdent(ix.Name), d.QuoteIdentList(ix.Columns)), true, nil
}

func dropIndex(d *dialect.Dialect, table, name string) (string, error) {
	if table == "" {
		return "", &dialect.PreconditionError{Dialect: d.Name, Operation: dialect.OpDropIndex, Missing: "a table name"}
	}
	return "DROP INDEX " + d.QuoteIdent(name) + " ON " + d.QuoteIdent(table), nil
}

func pkName(table string) string {
	if i := strings.LastIndex(table, "."); i >= 0 {
		table = table[i+1:]
	}
	return "PK_" + table
}

func addPrimaryKey(d *dialect.Dialect, table, name string, cols []string) (string, error) {
	if name == "" {
		name = pkName(table)
	}
	return fmt.Sprintf("ALTER TABLE %s ADD CONSTRAINT %s PRIMARY KEY (%s)",
		d.QuoteIdent(table), d.QuoteIdent(name), d.QuoteIdentList(cols)), nil
}

func dropPrimaryKey(d *dialect.Dialect, table, name string) (string, error) {
	if name == "" {
		name = pkName(table)
	}
	return fmt.Sprintf("ALTER TABLE %s DROP CONSTRAINT %s", d.QuoteIdent(table), d.QuoteIdent(name)), nil
}
