// Package dialect describes how each supported database spells SQL.
//
// A Dialect is an immutable table of data (quote characters, type names,
// default lengths, boolean literals) plus a set of optional rendering
// strategies. Every abstract operation is dispatched through a Dialect
// method: a nil strategy falls back to the default renderer defined in this
// package, and an operation listed in Unsupported fails with an
// *UnsupportedError instead of emitting invalid SQL.
//
// Concrete dialects live in subpackages and register themselves at init:
//
//	import _ "querykit/pkg/dialect/all"
//
//	d, err := dialect.Get("pgsql")
package dialect

import (
	"strings"

	"github.com/jmoiron/sqlx"
)

// Name is the canonical driver tag of a dialect.
type Name string

// Canonical dialect names. They match the driver names accepted by Get.
const (
	MySQL      Name = "mysql"
	PostgreSQL Name = "pgsql"
	SQLServer  Name = "sqlsrv"
	SQLite     Name = "sqlite"
	Oracle     Name = "oci"
)

// Operation names an abstract SQL operation that a dialect may or may not
// support. The value is used verbatim in error messages.
type Operation string

const (
	OpCreateDatabase Operation = "CREATE DATABASE"
	OpDropDatabase   Operation = "DROP DATABASE"
	OpShowDatabases  Operation = "SHOW DATABASES"
	OpShowTables     Operation = "SHOW TABLES"
	OpShowIndex      Operation = "SHOW INDEX"
	OpDescribeTable  Operation = "DESCRIBE TABLE"
	OpExistsTable    Operation = "EXISTS TABLE"
	OpCreateTable    Operation = "CREATE TABLE"
	OpIfNotExists    Operation = "CREATE TABLE IF NOT EXISTS"
	OpDropTable      Operation = "DROP TABLE"
	OpIfExists       Operation = "DROP TABLE IF EXISTS"
	OpRenameTable    Operation = "RENAME TABLE"
	OpTruncate       Operation = "TRUNCATE TABLE"
	OpAddColumn      Operation = "ADD COLUMN"
	OpModifyColumn   Operation = "MODIFY COLUMN"
	OpDropColumn     Operation = "DROP COLUMN"
	OpCreateIndex    Operation = "CREATE INDEX"
	OpFulltextIndex  Operation = "FULLTEXT INDEX"
	OpDropIndex      Operation = "DROP INDEX"
	OpAddForeignKey  Operation = "ADD FOREIGN KEY"
	OpAddPrimaryKey  Operation = "ADD PRIMARY KEY"
	OpDropPrimaryKey Operation = "DROP PRIMARY KEY"
	OpInsert         Operation = "INSERT"
	OpReplace        Operation = "REPLACE"
)

// Operations lists every operation in a stable order (used by capability
// listings).
func Operations() []Operation {
	return []Operation{
		OpCreateDatabase, OpDropDatabase, OpShowDatabases, OpShowTables,
		OpShowIndex, OpDescribeTable, OpExistsTable, OpCreateTable,
		OpIfNotExists, OpDropTable, OpIfExists, OpRenameTable, OpTruncate,
		OpAddColumn, OpModifyColumn, OpDropColumn, OpCreateIndex,
		OpFulltextIndex, OpDropIndex, OpAddForeignKey, OpAddPrimaryKey,
		OpDropPrimaryKey, OpInsert, OpReplace,
	}
}

// QuotePair holds the opening and closing identifier quote characters.
type QuotePair struct {
	Open  string
	Close string
}

// Clause is one of the optional trailing clauses of a column definition.
type Clause int

const (
	ClauseNotNull Clause = iota
	ClauseDefault
	ClauseUnique
	ClauseComment
	ClausePosition
)

// DefaultClauseOrder is used when a dialect does not set ClauseOrder.
var DefaultClauseOrder = []Clause{ClauseNotNull, ClauseDefault, ClauseUnique}

// Dialect is the immutable description of one database's SQL flavor.
type Dialect struct {
	Name    Name
	Aliases []string

	Quote QuotePair
	// MaxIdentLength bounds generated identifiers (index names); 0 means
	// unlimited.
	MaxIdentLength int
	// Bind is the sqlx bind type used to rebind "?" placeholders.
	Bind int

	TrueLiteral  string
	FalseLiteral string

	// RecursiveKeyword is emitted after WITH when any CTE is recursive.
	RecursiveKeyword string

	Types       map[ColumnType]TypeDef
	ClauseOrder []Clause

	Unsupported []Operation

	Render Renderers
}

// Renderers holds the per-dialect rendering strategies. A nil field means
// the default renderer applies.
type Renderers struct {
	Literal func(d *Dialect, s string) string
	Limit   func(d *Dialect, sql string, p Page) string

	CreateTable   func(d *Dialect, t TableDef) (string, error)
	DropTable     func(d *Dialect, table string, ifExists bool) (string, error)
	RenameTable   func(d *Dialect, from, to string) (string, error)
	ExistsTable   func(d *Dialect, table string) (string, error)
	DescribeTable func(d *Dialect, table string) (string, error)
	Truncate      func(d *Dialect, table string) (string, error)
	ShowTables    func(d *Dialect) (string, error)
	ShowIndex     func(d *Dialect, table string) (string, error)

	ShowDatabases  func(d *Dialect) (string, error)
	CreateDatabase func(d *Dialect, name string) (string, error)
	DropDatabase   func(d *Dialect, name string) (string, error)

	AddColumn     func(d *Dialect, table string, c ColumnDef) (string, error)
	ModifyColumn  func(d *Dialect, table string, c ColumnDef) (string, error)
	DropColumn    func(d *Dialect, table, column string) (string, error)
	ColumnComment func(d *Dialect, table, column, text string) (string, error)

	InlineIndex    func(d *Dialect, ix IndexDef) (string, bool, error)
	CreateIndex    func(d *Dialect, ix IndexDef) (string, error)
	DropIndex      func(d *Dialect, table, name string) (string, error)
	AddPrimaryKey  func(d *Dialect, table, name string, cols []string) (string, error)
	DropPrimaryKey func(d *Dialect, table, name string) (string, error)

	Insert func(d *Dialect, ins InsertDef) (string, error)
}

// String returns the canonical name.
func (d *Dialect) String() string { return string(d.Name) }

// Supports reports whether op is available in this dialect.
func (d *Dialect) Supports(op Operation) bool {
	for _, u := range d.Unsupported {
		if u == op {
			return false
		}
	}
	return true
}

func (d *Dialect) require(op Operation) error {
	if d.Supports(op) {
		return nil
	}
	return &UnsupportedError{Dialect: d.Name, Operation: op}
}

// Rebind rewrites "?" placeholders into the dialect bind style.
func (d *Dialect) Rebind(query string) string {
	if d.Bind == sqlx.QUESTION || d.Bind == sqlx.UNKNOWN {
		return query
	}
	return sqlx.Rebind(d.Bind, query)
}

// TypeTable returns a copy of the dialect type table.
func (d *Dialect) TypeTable() map[ColumnType]TypeDef {
	out := make(map[ColumnType]TypeDef, len(d.Types))
	for k, v := range d.Types {
		out[k] = v
	}
	return out
}

func (d *Dialect) clauseOrder() []Clause {
	if len(d.ClauseOrder) == 0 {
		return DefaultClauseOrder
	}
	return d.ClauseOrder
}

func (d *Dialect) hasClause(c Clause) bool {
	for _, x := range d.clauseOrder() {
		if x == c {
			return true
		}
	}
	return false
}

// InlineComments reports whether column comments render inside the column
// definition rather than as a follow-up statement.
func (d *Dialect) InlineComments() bool { return d.hasClause(ClauseComment) }

// Positional reports whether FIRST/AFTER column hints are rendered.
func (d *Dialect) Positional() bool { return d.hasClause(ClausePosition) }

func normalizeName(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
