// Package mysql registers the MySQL dialect.
//
// Identifiers are quoted with backticks, string literals escape both single
// quotes and backslashes (the server treats backslash as an escape character
// under the default sql_mode), and column comments and FIRST/AFTER position
// hints render inline.
package mysql

import (
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"querykit/pkg/dialect"
)

// Dialect is the registered MySQL dialect.
var Dialect = &dialect.Dialect{
	Name:             dialect.MySQL,
	Aliases:          []string{"mariadb"},
	Quote:            dialect.QuotePair{Open: "`", Close: "`"},
	MaxIdentLength:   64,
	Bind:             sqlx.QUESTION,
	TrueLiteral:      "1",
	FalseLiteral:     "0",
	RecursiveKeyword: "RECURSIVE ",
	Types:            types,
	ClauseOrder: []dialect.Clause{
		dialect.ClauseNotNull,
		dialect.ClauseDefault,
		dialect.ClauseUnique,
		dialect.ClauseComment,
		dialect.ClausePosition,
	},
	Render: dialect.Renderers{
		Literal:        literal,
		Limit:          limit,
		RenameTable:    renameTable,
		ExistsTable:    existsTable,
		DescribeTable:  describeTable,
		ShowTables:     showTables,
		ShowIndex:      showIndex,
		ShowDatabases:  showDatabases,
		DropIndex:      dropIndex,
		Insert:         insert,
		CreateDatabase: createDatabase,
	},
}

func init() { dialect.Register(Dialect) }

var types = map[dialect.ColumnType]dialect.TypeDef{
	dialect.TypePrimary:    {Template: "int({length}) unsigned NOT NULL AUTO_INCREMENT PRIMARY KEY", Default: dialect.Size(11), Identity: true},
	dialect.TypeBigPrimary: {Template: "bigint({length}) unsigned NOT NULL AUTO_INCREMENT PRIMARY KEY", Default: dialect.Size(20), Identity: true},
	dialect.TypeString:     {Template: "varchar({length})", Default: dialect.Size(255)},
	dialect.TypeText:       {Template: "text"},
	dialect.TypeMediumText: {Template: "mediumtext"},
	dialect.TypeLongText:   {Template: "longtext"},
	dialect.TypeTinyInt:    {Template: "tinyint({length})", Default: dialect.Size(3), Unsigned: true},
	dialect.TypeSmallInt:   {Template: "smallint({length})", Default: dialect.Size(6), Unsigned: true},
	dialect.TypeInteger:    {Template: "int({length})", Default: dialect.Size(11), Unsigned: true},
	dialect.TypeBigInt:     {Template: "bigint({length})", Default: dialect.Size(20), Unsigned: true},
	dialect.TypeFloat:      {Template: "float", Unsigned: true},
	dialect.TypeDouble:     {Template: "double", Unsigned: true},
	dialect.TypeDecimal:    {Template: "decimal({length})", Default: dialect.Precision(10, 2), Unsigned: true},
	dialect.TypeDateTime:   {Template: "datetime"},
	dialect.TypeTimestamp:  {Template: "timestamp"},
	dialect.TypeTime:       {Template: "time"},
	dialect.TypeDate:       {Template: "date"},
	dialect.TypeBinary:     {Template: "blob"},
	dialect.TypeBoolean:    {Template: "tinyint(1)"},
	dialect.TypeMoney:      {Template: "decimal({length})", Default: dialect.Precision(19, 4), Unsigned: true},
	dialect.TypeJSON:       {Template: "json"},
}

var literalEscaper = strings.NewReplacer(`\`, `\\`, `'`, `''`)

func literal(_ *dialect.Dialect, s string) string {
	return "'" + literalEscaper.Replace(s) + "'"
}

// limit uses the largest row count for offset-only pagination; MySQL has no
// bare OFFSET.
func limit(d *dialect.Dialect, sql string, p dialect.Page) string {
	if p.Limit <= 0 {
		return fmt.Sprintf("%s LIMIT 18446744073709551615 OFFSET %d", sql, p.Offset)
	}
	return dialect.DefaultLimit(d, sql, p)
}

func renameTable(d *dialect.Dialect, from, to string) (string, error) {
	return "RENAME TABLE " + d.QuoteIdent(from) + " TO " + d.QuoteIdent(to), nil
}

func existsTable(d *dialect.Dialect, table string) (string, error) {
	return "SELECT COUNT(*) FROM information_schema.tables WHERE table_schema = DATABASE() AND table_name = " +
		d.Literal(table), nil
}

func describeTable(d *dialect.Dialect, table string) (string, error) {
	return "SHOW COLUMNS FROM " + d.QuoteIdent(table), nil
}

func showTables(*dialect.Dialect) (string, error) { return "SHOW TABLES", nil }

func showIndex(d *dialect.Dialect, table string) (string, error) {
	return "SHOW INDEX FROM " + d.QuoteIdent(table), nil
}

func showDatabases(*dialect.Dialect) (string, error) { return "SHOW DATABASES", nil }

func createDatabase(d *dialect.Dialect, name string) (string, error) {
	return "CREATE DATABASE " + d.QuoteIdent(name) + " DEFAULT CHARACTER SET utf8mb4", nil
}

func dropIndex(d *dialect.Dialect, table, name string) (string, error) {
	if table == "" {
		return "", &dialect.PreconditionError{Dialect: d.Name, Operation: dialect.OpDropIndex, Missing: "a table name"}
	}
	return "DROP INDEX " + d.QuoteIdent(name) + " ON " + d.QuoteIdent(table), nil
}

// insert renders REPLACE INTO for replace requests.
func insert(d *dialect.Dialect, ins dialect.InsertDef) (string, error) {
	if ins.Replace {
		return dialect.DefaultInsert(d, "REPLACE INTO", ins), nil
	}
	return dialect.DefaultInsert(d, "INSERT INTO", ins), nil
}
