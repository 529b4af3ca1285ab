// Package postgres registers the PostgreSQL dialect.
package postgres

import (
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"querykit/pkg/dialect"
)

// Dialect is the registered PostgreSQL dialect.
var Dialect = &dialect.Dialect{
	Name:             dialect.PostgreSQL,
	Aliases:          []string{"postgres", "postgresql", "pgx"},
	Quote:            dialect.QuotePair{Open: `"`, Close: `"`},
	MaxIdentLength:   63,
	Bind:             sqlx.DOLLAR,
	TrueLiteral:      "TRUE",
	FalseLiteral:     "FALSE",
	RecursiveKeyword: "RECURSIVE ",
	Types:            types,
	Unsupported:      []dialect.Operation{dialect.OpFulltextIndex},
	Render: dialect.Renderers{
		Literal:        literal,
		ExistsTable:    existsTable,
		DescribeTable:  describeTable,
		ShowTables:     showTables,
		ShowIndex:      showIndex,
		ShowDatabases:  showDatabases,
		AddColumn:      addColumn,
		ModifyColumn:   modifyColumn,
		InlineIndex:    inlineIndex,
		DropPrimaryKey: dropPrimaryKey,
		Insert:         insert,
	},
}

func init() { dialect.Register(Dialect) }

var types = map[dialect.ColumnType]dialect.TypeDef{
	dialect.TypePrimary:    {Template: "serial NOT NULL PRIMARY KEY", Identity: true},
	dialect.TypeBigPrimary: {Template: "bigserial NOT NULL PRIMARY KEY", Identity: true},
	dialect.TypeString:     {Template: "varchar({length})", Default: dialect.Size(255)},
	dialect.TypeText:       {Template: "text"},
	dialect.TypeMediumText: {Template: "text"},
	dialect.TypeLongText:   {Template: "text"},
	dialect.TypeTinyInt:    {Template: "smallint"},
	dialect.TypeSmallInt:   {Template: "smallint"},
	dialect.TypeInteger:    {Template: "integer"},
	dialect.TypeBigInt:     {Template: "bigint"},
	dialect.TypeFloat:      {Template: "real"},
	dialect.TypeDouble:     {Template: "double precision"},
	dialect.TypeDecimal:    {Template: "numeric({length})", Default: dialect.Precision(10, 2)},
	dialect.TypeDateTime:   {Template: "timestamp"},
	dialect.TypeTimestamp:  {Template: "timestamp"},
	dialect.TypeTime:       {Template: "time"},
	dialect.TypeDate:       {Template: "date"},
	dialect.TypeBinary:     {Template: "bytea"},
	dialect.TypeBoolean:    {Template: "boolean"},
	dialect.TypeMoney:      {Template: "numeric({length})", Default: dialect.Precision(19, 4)},
	dialect.TypeJSON:       {Template: "jsonb"},
}

// literal switches to the E'...' escape form when the text holds a backslash so the
// result is the same whatever standard_conforming_strings is set to.
func literal(_ *dialect.Dialect, s string) string {
	if !strings.Contains(s, `\`) {
		return dialect.DefaultLiteral(s)
	}
	s = strings.ReplaceAll(s, `\`, `\\`)
	return "E'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// splitSchema returns the schema literal (or current_schema()) and the bare
// table name literal for dictionary lookups.
func splitSchema(d *dialect.Dialect, table string) (string, string) {
	if i := strings.LastIndex(table, "."); i > 0 {
		return d.Literal(table[:i]), d.Literal(table[i+1:])
	}
	return "current_schema()", d.Literal(table)
}

func existsTable(d *dialect.Dialect, table string) (string, error) {
	schema, name := splitSchema(d, table)
	return fmt.Sprintf("SELECT COUNT(*) FROM information_schema.tables WHERE table_schema = %s AND table_name = %s",
		schema, name), nil
}

func describeTable(d *dialect.Dialect, table string) (string, error) {
	schema, name := splitSchema(d, table)
	return fmt.Sprintf("SELECT column_name, data_type, is_nullable, column_default FROM information_schema.columns "+
		"WHERE table_schema = %s AND table_name = %s ORDER BY ordinal_position", schema, name), nil
}

func showTables(*dialect.Dialect) (string, error) {
	return "SELECT table_name FROM information_schema.tables WHERE table_schema = current_schema() " +
		"AND table_type = 'BASE TABLE' ORDER BY table_name", nil
}

func showIndex(d *dialect.Dialect, table string) (string, error) {
	schema, name := splitSchema(d, table)
	return fmt.Sprintf("SELECT indexname, indexdef FROM pg_indexes WHERE schemaname = %s AND tablename = %s ORDER BY indexname",
		schema, name), nil
}

func showDatabases(*dialect.Dialect) (string, error) {
	return "SELECT datname FROM pg_database WHERE datistemplate = false ORDER BY datname", nil
}

func addColumn(d *dialect.Dialect, table string, c dialect.ColumnDef) (string, error) {
	return fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s", d.QuoteIdent(table), d.ColumnFragment(c)), nil
}

// modifyColumn renders one ALTER TABLE with an action per changed property.
func modifyColumn(d *dialect.Dialect, table string, c dialect.ColumnDef) (string, error) {
	col := d.QuoteIdent(c.Name)
	actions := []string{fmt.Sprintf("ALTER COLUMN %s TYPE %s", col, c.Type)}
	if c.Nullable {
		actions = append(actions, fmt.Sprintf("ALTER COLUMN %s DROP NOT NULL", col))
	} else {
		actions = append(actions, fmt.Sprintf("ALTER COLUMN %s SET NOT NULL", col))
	}
	if c.HasDefault {
		actions = append(actions, fmt.Sprintf("ALTER COLUMN %s SET DEFAULT %s", col, c.Default))
	}
	return fmt.Sprintf("ALTER TABLE %s %s", d.QuoteIdent(table), strings.Join(actions, ", ")), nil
}

// inlineIndex keeps unique and foreign keys as table constraints; plain
// indexes have no table-body form and need a table for CREATE INDEX.
func inlineIndex(d *dialect.Dialect, ix dialect.IndexDef) (string, bool, error) {
	switch ix.Kind {
	case dialect.IndexUnique:
		return fmt.Sprintf("CONSTRAINT %s UNIQUE (%s)", d.QuoteIdent(ix.Name), d.QuoteIdentList(ix.Columns)), true, nil
	case dialect.IndexForeign:
		return fmt.Sprintf("CONSTRAINT %s %s", d.QuoteIdent(ix.Name), d.ForeignClause(ix)), true, nil
	}
	if strings.TrimSpace(ix.Table) == "" {
		return "", false, &dialect.PreconditionError{Dialect: d.Name, Operation: dialect.OpCreateIndex, Missing: "a bound table name"}
	}
	return "", false, nil
}

func dropPrimaryKey(d *dialect.Dialect, table, name string) (string, error) {
	if name == "" {
		bare := table
		if i := strings.LastIndex(bare, "."); i >= 0 {
			bare = bare[i+1:]
		}
		name = bare + "_pkey"
	}
	return fmt.Sprintf("ALTER TABLE %s DROP CONSTRAINT %s", d.QuoteIdent(table), d.QuoteIdent(name)), nil
}

// insert renders ON CONFLICT ... DO UPDATE for replace requests.
func insert(d *dialect.Dialect, ins dialect.InsertDef) (string, error) {
	sql := dialect.DefaultInsert(d, "INSERT INTO", ins)
	if !ins.Replace {
		return sql, nil
	}
	if len(ins.ConflictKeys) == 0 {
		return "", &dialect.PreconditionError{Dialect: d.Name, Operation: dialect.OpReplace, Missing: "conflict key columns"}
	}
	keys := make(map[string]struct{}, len(ins.ConflictKeys))
	for _, k := range ins.ConflictKeys {
		keys[k] = struct{}{}
	}
	var updates []string
	for _, c := range ins.Columns {
		if _, ok := keys[c]; ok {
			continue
		}
		q := d.QuoteIdent(c)
		updates = append(updates, fmt.Sprintf("%s = EXCLUDED.%s", q, q))
	}
	conflict := d.QuoteIdentList(ins.ConflictKeys)
	if len(updates) == 0 {
		return fmt.Sprintf("%s ON CONFLICT (%s) DO NOTHING", sql, conflict), nil
	}
	return fmt.Sprintf("%s ON CONFLICT (%s) DO UPDATE SET %s", sql, conflict, strings.Join(updates, ", ")), nil
}
