// Package oracle registers the Oracle dialect (12c and later).
//
// Dictionary lookups compare upper-cased names so that both quoted and
// unquoted table names are found. Multi-row inserts are rendered as
// INSERT ALL, and fulltext indexes use Oracle Text (CTXSYS.CONTEXT).
package oracle

import (
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"querykit/pkg/dialect"
)

// Dialect is the registered Oracle dialect.
var Dialect = &dialect.Dialect{
	Name:           dialect.Oracle,
	Aliases:        []string{"oracle", "ora", "godror"},
	Quote:          dialect.QuotePair{Open: `"`, Close: `"`},
	MaxIdentLength: 30,
	Bind:           sqlx.NAMED,
	TrueLiteral:    "1",
	FalseLiteral:   "0",
	Types:          types,
	ClauseOrder:    []dialect.Clause{dialect.ClauseDefault, dialect.ClauseNotNull, dialect.ClauseUnique},
	Unsupported: []dialect.Operation{
		dialect.OpCreateDatabase,
		dialect.OpDropDatabase,
		dialect.OpShowDatabases,
		dialect.OpIfNotExists,
		dialect.OpIfExists,
		dialect.OpReplace,
	},
	Render: dialect.Renderers{
		Limit:         limit,
		ExistsTable:   existsTable,
		DescribeTable: describeTable,
		ShowTables:    showTables,
		ShowIndex:     showIndex,
		AddColumn:     addColumn,
		ModifyColumn:  modifyColumn,
		InlineIndex:   inlineIndex,
		CreateIndex:   createIndex,
		Insert:        insert,
	},
}

func init() { dialect.Register(Dialect) }

var types = map[dialect.ColumnType]dialect.TypeDef{
	dialect.TypePrimary:    {Template: "number({length}) GENERATED BY DEFAULT ON NULL AS IDENTITY PRIMARY KEY", Default: dialect.Size(10), Identity: true},
	dialect.TypeBigPrimary: {Template: "number({length}) GENERATED BY DEFAULT ON NULL AS IDENTITY PRIMARY KEY", Default: dialect.Size(19), Identity: true},
	dialect.TypeString:     {Template: "varchar2({length})", Default: dialect.Size(255)},
	dialect.TypeText:       {Template: "clob"},
	dialect.TypeMediumText: {Template: "clob"},
	dialect.TypeLongText:   {Template: "clob"},
	dialect.TypeTinyInt:    {Template: "number({length})", Default: dialect.Size(3)},
	dialect.TypeSmallInt:   {Template: "number({length})", Default: dialect.Size(5)},
	dialect.TypeInteger:    {Template: "number({length})", Default: dialect.Size(10)},
	dialect.TypeBigInt:     {Template: "number({length})", Default: dialect.Size(19)},
	dialect.TypeFloat:      {Template: "binary_float"},
	dialect.TypeDouble:     {Template: "binary_double"},
	dialect.TypeDecimal:    {Template: "number({length})", Default: dialect.Precision(10, 2)},
	dialect.TypeDateTime:   {Template: "timestamp"},
	dialect.TypeTimestamp:  {Template: "timestamp"},
	dialect.TypeTime:       {Template: "timestamp"},
	dialect.TypeDate:       {Template: "date"},
	dialect.TypeBinary:     {Template: "blob"},
	dialect.TypeBoolean:    {Template: "number(1)"},
	dialect.TypeMoney:      {Template: "number({length})", Default: dialect.Precision(19, 4)},
	dialect.TypeJSON:       {Template: "clob"},
}

// dictName renders the upper-cased literal compared against dictionary
// views, dropping any schema prefix. A Caser is stateful, so one is built
// per call.
func dictName(d *dialect.Dialect, table string) string {
	if i := strings.LastIndex(table, "."); i >= 0 {
		table = table[i+1:]
	}
	return d.Literal(cases.Upper(language.Und).String(table))
}

func limit(_ *dialect.Dialect, sql string, p dialect.Page) string {
	return dialect.OffsetFetch(sql, p)
}

func existsTable(d *dialect.Dialect, table string) (string, error) {
	return "SELECT COUNT(*) FROM user_tables WHERE UPPER(table_name) = " + dictName(d, table), nil
}

func describeTable(d *dialect.Dialect, table string) (string, error) {
	return "SELECT column_name, data_type, nullable, data_default FROM user_tab_columns WHERE UPPER(table_name) = " +
		dictName(d, table) + " ORDER BY column_id", nil
}

func showTables(*dialect.Dialect) (string, error) {
	return "SELECT table_name FROM user_tables ORDER BY table_name", nil
}

func showIndex(d *dialect.Dialect, table string) (string, error) {
	return "SELECT index_name, index_type, uniqueness FROM user_indexes WHERE UPPER(table_name) = " +
		dictName(d, table) + " ORDER BY index_name", nil
}

func addColumn(d *dialect.Dialect, table string, c dialect.ColumnDef) (string, error) {
	return fmt.Sprintf("ALTER TABLE %s ADD (%s)", d.QuoteIdent(table), d.ColumnFragment(c)), nil
}

func modifyColumn(d *dialect.Dialect, table string, c dialect.ColumnDef) (string, error) {
	return fmt.Sprintf("ALTER TABLE %s MODIFY (%s)", d.QuoteIdent(table), d.ColumnFragment(c)), nil
}

func foreign(d *dialect.Dialect, ix dialect.IndexDef) (string, error) {
	if ix.OnUpdate != "" {
		return "", &dialect.UnsupportedError{Dialect: d.Name, Operation: "FOREIGN KEY ON UPDATE"}
	}
	return fmt.Sprintf("CONSTRAINT %s %s", d.QuoteIdent(ix.Name), d.ForeignClause(ix)), nil
}

func inlineIndex(d *dialect.Dialect, ix dialect.IndexDef) (string, bool, error) {
	switch ix.Kind {
	case dialect.IndexUnique:
		return fmt.Sprintf("CONSTRAINT %s UNIQUE (%s)", d.QuoteIdent(ix.Name), d.QuoteIdentList(ix.Columns)), true, nil
	case dialect.IndexForeign:
		sql, err := foreign(d, ix)
		return sql, err == nil, err
	}
	return "", false, nil
}

func createIndex(d *dialect.Dialect, ix dialect.IndexDef) (string, error) {
	switch ix.Kind {
	case dialect.IndexFulltext:
		return fmt.Sprintf("CREATE INDEX %s ON %s (%s) INDEXTYPE IS CTXSYS.CONTEXT",
			d.QuoteIdent(ix.Name), d.QuoteIdent(ix.Table), d.QuoteIdentList(ix.Columns)), nil
	case dialect.IndexForeign:
		sql, err := foreign(d, ix)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("ALTER TABLE %s ADD %s", d.QuoteIdent(ix.Table), sql), nil
	}
	return dialect.DefaultCreateIndex(d, ix), nil
}

// insert renders INSERT ALL for more than one row; Oracle before 23c has no
// multi-row VALUES list.
func insert(d *dialect.Dialect, ins dialect.InsertDef) (string, error) {
	if len(ins.Rows) == 1 {
		return dialect.DefaultInsert(d, "INSERT INTO", ins), nil
	}
	var b strings.Builder
	b.WriteString("INSERT ALL")
	target := fmt.Sprintf(" INTO %s (%s) VALUES (", d.QuoteIdent(ins.Table), d.QuoteIdentList(ins.Columns))
	for _, row := range ins.Rows {
		b.WriteString(target)
		b.WriteString(strings.Join(row, ", "))
		b.WriteByte(')')
	}
	b.WriteString(" SELECT 1 FROM DUAL")
	return b.String(), nil
}
