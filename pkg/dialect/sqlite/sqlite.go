// Package sqlite registers the SQLite dialect.
//
// SQLite has a single database per connection and a limited ALTER TABLE:
// columns cannot be modified in place and keys cannot be added or dropped
// after creation. Those operations fail with dialect.ErrUnsupported.
package sqlite

import (
	"fmt"

	"github.com/jmoiron/sqlx"

	"querykit/pkg/dialect"
)

// Dialect is the registered SQLite dialect.
var Dialect = &dialect.Dialect{
	Name:             dialect.SQLite,
	Aliases:          []string{"sqlite3"},
	Quote:            dialect.QuotePair{Open: `"`, Close: `"`},
	Bind:             sqlx.QUESTION,
	TrueLiteral:      "1",
	FalseLiteral:     "0",
	RecursiveKeyword: "RECURSIVE ",
	Types:            types,
	Unsupported: []dialect.Operation{
		dialect.OpCreateDatabase,
		dialect.OpDropDatabase,
		dialect.OpShowDatabases,
		dialect.OpModifyColumn,
		dialect.OpFulltextIndex,
		dialect.OpAddForeignKey,
		dialect.OpAddPrimaryKey,
		dialect.OpDropPrimaryKey,
	},
	Render: dialect.Renderers{
		Limit:         limit,
		ExistsTable:   existsTable,
		DescribeTable: describeTable,
		Truncate:      truncate,
		ShowTables:    showTables,
		ShowIndex:     showIndex,
		ColumnComment: columnComment,
		InlineIndex:   inlineIndex,
		Insert:        insert,
	},
}

func init() { dialect.Register(Dialect) }

var types = map[dialect.ColumnType]dialect.TypeDef{
	dialect.TypePrimary:    {Template: "integer PRIMARY KEY AUTOINCREMENT", Identity: true},
	dialect.TypeBigPrimary: {Template: "integer PRIMARY KEY AUTOINCREMENT", Identity: true},
	dialect.TypeString:     {Template: "text"},
	dialect.TypeText:       {Template: "text"},
	dialect.TypeMediumText: {Template: "text"},
	dialect.TypeLongText:   {Template: "text"},
	dialect.TypeTinyInt:    {Template: "integer"},
	dialect.TypeSmallInt:   {Template: "integer"},
	dialect.TypeInteger:    {Template: "integer"},
	dialect.TypeBigInt:     {Template: "integer"},
	dialect.TypeFloat:      {Template: "real"},
	dialect.TypeDouble:     {Template: "real"},
	dialect.TypeDecimal:    {Template: "numeric"},
	dialect.TypeDateTime:   {Template: "text"},
	dialect.TypeTimestamp:  {Template: "text"},
	dialect.TypeTime:       {Template: "text"},
	dialect.TypeDate:       {Template: "text"},
	dialect.TypeBinary:     {Template: "blob"},
	dialect.TypeBoolean:    {Template: "integer"},
	dialect.TypeMoney:      {Template: "numeric"},
	dialect.TypeJSON:       {Template: "text"},
}

// limit uses LIMIT -1 for offset-only pagination; SQLite has no bare OFFSET.
func limit(d *dialect.Dialect, sql string, p dialect.Page) string {
	if p.Limit <= 0 {
		return fmt.Sprintf("%s LIMIT -1 OFFSET %d", sql, p.Offset)
	}
	return dialect.DefaultLimit(d, sql, p)
}

func existsTable(d *dialect.Dialect, table string) (string, error) {
	return "SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = " + d.Literal(table), nil
}

func describeTable(d *dialect.Dialect, table string) (string, error) {
	return "PRAGMA table_info(" + d.QuoteIdent(table) + ")", nil
}

func truncate(d *dialect.Dialect, table string) (string, error) {
	return "DELETE FROM " + d.QuoteIdent(table), nil
}

func showTables(*dialect.Dialect) (string, error) {
	return "SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' ORDER BY name", nil
}

func showIndex(d *dialect.Dialect, table string) (string, error) {
	return "PRAGMA index_list(" + d.QuoteIdent(table) + ")", nil
}

// columnComment drops comments; SQLite keeps none.
func columnComment(*dialect.Dialect, string, string, string) (string, error) { return "", nil }

func inlineIndex(d *dialect.Dialect, ix dialect.IndexDef) (string, bool, error) {
	switch ix.Kind {
	case dialect.IndexUnique:
		return fmt.Sprintf("CONSTRAINT %s UNIQUE (%s)", d.QuoteIdent(ix.Name), d.QuoteIdentList(ix.Columns)), true, nil
	case dialect.IndexForeign:
		return fmt.Sprintf("CONSTRAINT %s %s", d.QuoteIdent(ix.Name), d.ForeignClause(ix)), true, nil
	}
	return "", false, nil
}

func insert(d *dialect.Dialect, ins dialect.InsertDef) (string, error) {
	if ins.Replace {
		return dialect.DefaultInsert(d, "INSERT OR REPLACE INTO", ins), nil
	}
	return dialect.DefaultInsert(d, "INSERT INTO", ins), nil
}
