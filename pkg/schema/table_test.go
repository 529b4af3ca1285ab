package schema_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/jmoiron/sqlx"
	rsql "github.com/rqlite/sql"
	_ "modernc.org/sqlite"

	"querykit/pkg/dialect"
	"querykit/pkg/schema"
)

func TestTable_MySQL(t *testing.T) {
	t.Parallel()

	stmts, err := schema.New(mustDialect(t, "mysql")).
		CreateTable("users").
		AddColumn(schema.Integer("id").Unsigned()).
		AddColumn(schema.String("name").NotNull()).
		PrimaryKey("id").
		AddIndex(schema.UniqueIndex("name")).
		Options("ENGINE=InnoDB").
		Statements()
	if err != nil {
		t.Fatalf("Statements() error = %v", err)
	}
	want := []string{
		"CREATE TABLE `users` (\n" +
			"  `id` int(11) unsigned NOT NULL,\n" +
			"  `name` varchar(255) NOT NULL,\n" +
			"  PRIMARY KEY (`id`),\n" +
			"  UNIQUE INDEX `uniq_users_name` (`name`)\n" +
			") ENGINE=InnoDB",
	}
	if diff := cmp.Diff(want, stmts); diff != "" {
		t.Fatalf("Statements() mismatch (-want +got):\n%s", diff)
	}
}

func TestTable_PostgresTrailingStatements(t *testing.T) {
	t.Parallel()

	stmts, err := schema.New(mustDialect(t, "pgsql")).
		CreateTable("posts").
		AddColumn(schema.Primary("id")).
		AddColumn(schema.Text("body").Comment("post body")).
		AddColumnSQL(`"score" integer DEFAULT 0`).
		AddIndex(schema.PlainIndex("body")).
		AddIndex(schema.UniqueIndex("score")).
		Statements()
	if err != nil {
		t.Fatalf("Statements() error = %v", err)
	}
	want := []string{
		"CREATE TABLE \"posts\" (\n" +
			"  \"id\" serial NOT NULL PRIMARY KEY,\n" +
			"  \"body\" text NOT NULL,\n" +
			"  \"score\" integer DEFAULT 0,\n" +
			"  CONSTRAINT \"uniq_posts_score\" UNIQUE (\"score\")\n" +
			")",
		`CREATE INDEX "idx_posts_body" ON "posts" ("body")`,
		`COMMENT ON COLUMN "posts"."body" IS 'post body'`,
	}
	if diff := cmp.Diff(want, stmts); diff != "" {
		t.Fatalf("Statements() mismatch (-want +got):\n%s", diff)
	}
}

func TestTable_IfNotExists(t *testing.T) {
	t.Parallel()

	sql, err := schema.New(mustDialect(t, "sqlsrv")).
		CreateTable("users").
		IfNotExists().
		AddColumn(schema.String("name")).
		SQL()
	if err != nil {
		t.Fatalf("SQL() error = %v", err)
	}
	want := "IF OBJECT_ID(N'[users]', N'U') IS NULL\nBEGIN\n  CREATE TABLE [users] (\n    [name] nvarchar(255) NOT NULL\n  );\nEND;"
	if sql != want {
		t.Fatalf("SQL() = %q, want %q", sql, want)
	}

	sql, err = schema.New(mustDialect(t, "sqlite")).CreateTable("users").IfNotExists().AddColumn(schema.String("name")).SQL()
	if err != nil {
		t.Fatalf("sqlite SQL() error = %v", err)
	}
	if !strings.HasPrefix(sql, `CREATE TABLE IF NOT EXISTS "users" (`) {
		t.Fatalf("sqlite SQL() = %q", sql)
	}

	_, err = schema.New(mustDialect(t, "oci")).CreateTable("users").IfNotExists().AddColumn(schema.String("name")).SQL()
	var ue *dialect.UnsupportedError
	if !errors.As(err, &ue) || ue.Operation != dialect.OpIfNotExists {
		t.Fatalf("oci IfNotExists error = %v, want UnsupportedError for %s", err, dialect.OpIfNotExists)
	}
}

func TestTable_Errors(t *testing.T) {
	t.Parallel()

	b := schema.New(mustDialect(t, "mysql"))
	tests := []struct {
		name    string
		table   *schema.Table
		wantErr error
		wantMsg string
	}{
		{"no columns", b.CreateTable("t"), dialect.ErrPrecondition, "at least one column"},
		{"bad name", b.CreateTable(" "), dialect.ErrInvalidSpec, "identifier"},
		{"bad column", b.CreateTable("t").AddColumn(schema.NewColumn("c", "geometry")), dialect.ErrInvalidSpec, "schema: table t: column c"},
		{"nil column", b.CreateTable("t").AddColumn(nil), dialect.ErrInvalidSpec, "nil column"},
		{"bad map column", b.CreateTable("t").AddColumnMap(map[string]any{"name": "c"}), dialect.ErrInvalidSpec, "type"},
		{"bad primary", b.CreateTable("t").AddColumn(schema.String("c")).PrimaryKey(""), dialect.ErrInvalidSpec, "identifier"},
		{"foreign without reference", b.CreateTable("t").AddColumn(schema.Integer("u")).AddIndex(schema.ForeignKey("u")), dialect.ErrInvalidSpec, "foreign key"},
		{"empty raw index", b.CreateTable("t").AddColumn(schema.String("c")).AddIndexSQL("  "), dialect.ErrInvalidSpec, "empty SQL fragment"},
	}
	for _, tt := range tests {
		_, err := tt.table.Statements()
		if !errors.Is(err, tt.wantErr) {
			t.Errorf("%s: error = %v, want %v", tt.name, err, tt.wantErr)
			continue
		}
		if !strings.Contains(err.Error(), tt.wantMsg) {
			t.Errorf("%s: error %q does not mention %q", tt.name, err, tt.wantMsg)
		}
	}
}

func sqliteUsers(b *schema.Builder) *schema.Table {
	return b.CreateTable("users").
		AddColumn(schema.Primary("id")).
		AddColumn(schema.String("email")).
		AddColumn(schema.Integer("age").Nullable().Default(0)).
		AddColumn(schema.Boolean("active").Default(true).Comment("dropped by sqlite")).
		AddIndex(schema.UniqueIndex("email")).
		AddIndex(schema.PlainIndex("age"))
}

func TestTable_SQLiteParses(t *testing.T) {
	t.Parallel()

	stmts, err := sqliteUsers(schema.New(mustDialect(t, "sqlite"))).Statements()
	if err != nil {
		t.Fatalf("Statements() error = %v", err)
	}
	if len(stmts) != 2 {
		t.Fatalf("Statements() = %q, want CREATE TABLE and one CREATE INDEX", stmts)
	}

	stmt, err := rsql.NewParser(strings.NewReader(stmts[0])).ParseStatement()
	if err != nil {
		t.Fatalf("parse %q: %v", stmts[0], err)
	}
	if _, ok := stmt.(*rsql.CreateTableStatement); !ok {
		t.Fatalf("parsed %T, want *sql.CreateTableStatement", stmt)
	}

	stmt, err = rsql.NewParser(strings.NewReader(stmts[1])).ParseStatement()
	if err != nil {
		t.Fatalf("parse %q: %v", stmts[1], err)
	}
	if _, ok := stmt.(*rsql.CreateIndexStatement); !ok {
		t.Fatalf("parsed %T, want *sql.CreateIndexStatement", stmt)
	}
}

// sqlxExecutor runs statements on an in-memory SQLite database.
type sqlxExecutor struct{ db *sqlx.DB }

func (x sqlxExecutor) Exec(ctx context.Context, q string, args ...any) (int64, error) {
	res, err := x.db.ExecContext(ctx, q, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (x sqlxExecutor) Rows(ctx context.Context, q string, args ...any) ([]map[string]any, error) {
	rows, err := x.db.QueryxContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []map[string]any
	for rows.Next() {
		m := map[string]any{}
		if err := rows.MapScan(m); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (x sqlxExecutor) Row(ctx context.Context, q string, args ...any) (map[string]any, error) {
	rows, err := x.Rows(ctx, q, args...)
	if err != nil || len(rows) == 0 {
		return nil, err
	}
	return rows[0], nil
}

func (x sqlxExecutor) Value(ctx context.Context, q string, args ...any) (any, error) {
	vals, err := x.db.QueryRowxContext(ctx, q, args...).SliceScan()
	if err != nil {
		return nil, err
	}
	return vals[0], nil
}

func openSQLite(t *testing.T) *sqlx.DB {
	t.Helper()
	db, err := sqlx.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	// Every pooled connection would get its own in-memory database.
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestBuilder_ApplySQLite(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	db := openSQLite(t)
	b := schema.New(mustDialect(t, "sqlite"), schema.WithExecutor(sqlxExecutor{db: db}))

	ok, err := b.HasTable(ctx, "users")
	if err != nil || ok {
		t.Fatalf("HasTable() before create = %v, %v", ok, err)
	}

	stmts, err := sqliteUsers(b).Statements()
	if err != nil {
		t.Fatalf("Statements() error = %v", err)
	}
	if err := b.Apply(ctx, stmts...); err != nil {
		t.Fatalf("Apply() error = %v", err)
	}

	ok, err = b.HasTable(ctx, "users")
	if err != nil || !ok {
		t.Fatalf("HasTable() after create = %v, %v", ok, err)
	}

	tables, err := b.Tables(ctx)
	if err != nil {
		t.Fatalf("Tables() error = %v", err)
	}
	if diff := cmp.Diff([]string{"users"}, tables); diff != "" {
		t.Fatalf("Tables() mismatch (-want +got):\n%s", diff)
	}

	cols, err := b.Describe(ctx, "users")
	if err != nil {
		t.Fatalf("Describe() error = %v", err)
	}
	if len(cols) != 4 {
		t.Fatalf("Describe() returned %d columns, want 4", len(cols))
	}

	idx, err := b.Indexes(ctx, "users")
	if err != nil {
		t.Fatalf("Indexes() error = %v", err)
	}
	var found bool
	for _, r := range idx {
		if name, _ := r["name"].(string); name == "idx_users_age" {
			found = true
		}
	}
	if !found {
		t.Fatalf("Indexes() = %v, want idx_users_age", idx)
	}

	if _, err := db.ExecContext(ctx, `INSERT INTO "users" ("email") VALUES ('a@example.com')`); err != nil {
		t.Fatalf("insert: %v", err)
	}
	var active, age int
	if err := db.QueryRowContext(ctx, `SELECT "active", "age" FROM "users"`).Scan(&active, &age); err != nil {
		t.Fatalf("select: %v", err)
	}
	if active != 1 || age != 0 {
		t.Fatalf("defaults = (%d, %d), want (1, 0)", active, age)
	}

	// The unique constraint is declared inline.
	if _, err := db.ExecContext(ctx, `INSERT INTO "users" ("email") VALUES ('a@example.com')`); err == nil {
		t.Fatal("duplicate email inserted, want unique violation")
	}

	sql, err := b.DropTable("users", true)
	if err != nil {
		t.Fatalf("DropTable() error = %v", err)
	}
	if err := b.Apply(ctx, sql); err != nil {
		t.Fatalf("Apply(drop) error = %v", err)
	}
	if ok, _ := b.HasTable(ctx, "users"); ok {
		t.Fatal("HasTable() after drop = true")
	}
}

// fakeExecutor records statements and replays canned results.
type fakeExecutor struct {
	execs  []string
	failAt int
	value  any
	rows   []map[string]any
}

var errBoom = errors.New("boom")

func (f *fakeExecutor) Exec(_ context.Context, q string, _ ...any) (int64, error) {
	f.execs = append(f.execs, q)
	if f.failAt > 0 && len(f.execs) == f.failAt {
		return 0, errBoom
	}
	return 0, nil
}

func (f *fakeExecutor) Rows(context.Context, string, ...any) ([]map[string]any, error) {
	return f.rows, nil
}

func (f *fakeExecutor) Row(context.Context, string, ...any) (map[string]any, error) {
	if len(f.rows) == 0 {
		return nil, nil
	}
	return f.rows[0], nil
}

func (f *fakeExecutor) Value(context.Context, string, ...any) (any, error) { return f.value, nil }

func TestBuilder_ExecutionHelpers(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	if err := schema.New(mustDialect(t, "mysql")).Apply(ctx, "SELECT 1"); !errors.Is(err, schema.ErrNoExecutor) {
		t.Fatalf("Apply() without executor = %v, want ErrNoExecutor", err)
	}

	f := &fakeExecutor{failAt: 2}
	b := schema.New(mustDialect(t, "mysql"), schema.WithExecutor(f))
	err := b.Apply(ctx, "A", "B", "C")
	if !errors.Is(err, errBoom) || !strings.Contains(err.Error(), "statement 2 of 3") {
		t.Fatalf("Apply() error = %v", err)
	}
	if diff := cmp.Diff([]string{"A", "B"}, f.execs); diff != "" {
		t.Fatalf("Apply() stopped wrong (-want +got):\n%s", diff)
	}

	for _, v := range []any{int64(1), []byte("3"), "2", float64(1), int32(5)} {
		f.value = v
		ok, err := b.HasTable(ctx, "users")
		if err != nil || !ok {
			t.Errorf("HasTable() with %T = %v, %v", v, ok, err)
		}
	}
	f.value = struct{}{}
	if _, err := b.HasTable(ctx, "users"); err == nil {
		t.Error("HasTable() with a non-count value should fail")
	}

	f.rows = []map[string]any{{"TABLE_NAME": "a", "TABLE_SCHEMA": "db"}, {"Tables_in_db": []byte("b")}}
	got, err := b.Tables(ctx)
	if err != nil {
		t.Fatalf("Tables() error = %v", err)
	}
	if diff := cmp.Diff([]string{"a", "b"}, got); diff != "" {
		t.Fatalf("Tables() mismatch (-want +got):\n%s", diff)
	}
}

func TestBuilder_Statements(t *testing.T) {
	t.Parallel()

	tests := []struct {
		dialect string
		render  func(b *schema.Builder) (string, error)
		want    string
	}{
		{"mysql", func(b *schema.Builder) (string, error) { return b.DropTable("users", false) }, "DROP TABLE `users`"},
		{"pgsql", func(b *schema.Builder) (string, error) { return b.DropTable("users", true) }, `DROP TABLE IF EXISTS "users"`},
		{"mysql", func(b *schema.Builder) (string, error) { return b.RenameTable("a", "b") }, "RENAME TABLE `a` TO `b`"},
		{"sqlite", func(b *schema.Builder) (string, error) { return b.RenameTable("a", "b") }, `ALTER TABLE "a" RENAME TO "b"`},
		{"sqlsrv", func(b *schema.Builder) (string, error) { return b.RenameTable("a", "b") }, "EXEC sp_rename N'a', N'b'"},
		{"sqlite", func(b *schema.Builder) (string, error) { return b.Truncate("users") }, `DELETE FROM "users"`},
		{"pgsql", func(b *schema.Builder) (string, error) { return b.Truncate("users") }, `TRUNCATE TABLE "users"`},
		{"mysql", func(b *schema.Builder) (string, error) { return b.CreateDatabase("app") }, "CREATE DATABASE `app` DEFAULT CHARACTER SET utf8mb4"},
		{"pgsql", func(b *schema.Builder) (string, error) { return b.DropDatabase("app") }, `DROP DATABASE "app"`},
		{"mysql", func(b *schema.Builder) (string, error) { return b.DropColumn("users", "age") }, "ALTER TABLE `users` DROP COLUMN `age`"},
		{"sqlsrv", func(b *schema.Builder) (string, error) { return b.AddColumn("users", schema.Integer("age").Nullable()) }, "ALTER TABLE [users] ADD [age] int"},
		{"pgsql", func(b *schema.Builder) (string, error) {
			return b.ModifyColumn("users", schema.Integer("age").Default(1))
		}, `ALTER TABLE "users" ALTER COLUMN "age" TYPE integer, ALTER COLUMN "age" SET NOT NULL, ALTER COLUMN "age" SET DEFAULT 1`},
		{"mysql", func(b *schema.Builder) (string, error) {
			return b.AddColumnMap("users", map[string]any{"name": "nick", "type": "string", "length": 32, "nullable": true})
		}, "ALTER TABLE `users` ADD COLUMN `nick` varchar(32)"},
		{"mysql", func(b *schema.Builder) (string, error) { return b.CreateIndex("users", schema.PlainIndex("nick")) }, "CREATE INDEX `idx_users_nick` ON `users` (`nick`)"},
		{"mysql", func(b *schema.Builder) (string, error) {
			return b.CreateIndexSQL("users", "UNIQUE KEY `nick_u` (`nick`)")
		}, "ALTER TABLE `users` ADD UNIQUE KEY `nick_u` (`nick`)"},
		{"pgsql", func(b *schema.Builder) (string, error) {
			return b.CreateIndexMap("users", map[string]any{"kind": "unique", "columns": []any{"nick"}})
		}, `CREATE UNIQUE INDEX "uniq_users_nick" ON "users" ("nick")`},
		{"mysql", func(b *schema.Builder) (string, error) { return b.DropIndex("users", "idx_users_nick") }, "DROP INDEX `idx_users_nick` ON `users`"},
		{"pgsql", func(b *schema.Builder) (string, error) { return b.DropIndex("", "idx_users_nick") }, `DROP INDEX "idx_users_nick"`},
		{"mysql", func(b *schema.Builder) (string, error) { return b.PrimaryKey("users", "id") }, "ALTER TABLE `users` ADD PRIMARY KEY (`id`)"},
		{"sqlsrv", func(b *schema.Builder) (string, error) { return b.PrimaryKey("users", "id") }, "ALTER TABLE [users] ADD CONSTRAINT [PK_users] PRIMARY KEY ([id])"},
		{"pgsql", func(b *schema.Builder) (string, error) { return b.DropPrimaryKey("users", "") }, `ALTER TABLE "users" DROP CONSTRAINT "users_pkey"`},
		{"mysql", func(b *schema.Builder) (string, error) { return b.DropPrimaryKey("users", "") }, "ALTER TABLE `users` DROP PRIMARY KEY"},
		{"sqlite", func(b *schema.Builder) (string, error) { return b.DescribeTable("users") }, `PRAGMA table_info("users")`},
		{"mysql", func(b *schema.Builder) (string, error) { return b.ShowIndex("users") }, "SHOW INDEX FROM `users`"},
		{"mysql", func(b *schema.Builder) (string, error) { return b.ShowTables() }, "SHOW TABLES"},
		{"pgsql", func(b *schema.Builder) (string, error) { return b.ShowDatabases() }, "SELECT datname FROM pg_database WHERE datistemplate = false ORDER BY datname"},
	}
	for i, tt := range tests {
		got, err := tt.render(schema.New(mustDialect(t, tt.dialect)))
		if err != nil {
			t.Errorf("#%d %s: error = %v", i, tt.dialect, err)
			continue
		}
		if got != tt.want {
			t.Errorf("#%d %s: got %q, want %q", i, tt.dialect, got, tt.want)
		}
	}
}

func TestBuilder_StatementErrors(t *testing.T) {
	t.Parallel()

	sqlite := schema.New(mustDialect(t, "sqlite"))
	if _, err := sqlite.CreateDatabase("app"); !errors.Is(err, dialect.ErrUnsupported) {
		t.Errorf("sqlite CreateDatabase error = %v", err)
	}
	if _, err := sqlite.PrimaryKey("users", "id"); !errors.Is(err, dialect.ErrUnsupported) {
		t.Errorf("sqlite PrimaryKey error = %v", err)
	}
	if _, err := sqlite.ModifyColumn("users", schema.String("s")); !errors.Is(err, dialect.ErrUnsupported) {
		t.Errorf("sqlite ModifyColumn error = %v", err)
	}

	mysql := schema.New(mustDialect(t, "mysql"))
	if _, err := mysql.DropIndex("", "idx"); !errors.Is(err, dialect.ErrPrecondition) {
		t.Errorf("mysql DropIndex without table error = %v", err)
	}
	if _, err := mysql.DropTable("", false); !errors.Is(err, dialect.ErrInvalidSpec) {
		t.Errorf("DropTable(\"\") error = %v", err)
	}
	if _, err := mysql.AddColumn("users", nil); !errors.Is(err, dialect.ErrInvalidSpec) {
		t.Errorf("AddColumn(nil) error = %v", err)
	}
	if _, err := mysql.PrimaryKey("users"); !errors.Is(err, dialect.ErrInvalidSpec) {
		t.Errorf("PrimaryKey without columns error = %v", err)
	}
}

func TestBuilder_AlterColumnComment(t *testing.T) {
	t.Parallel()

	nick := func() *schema.Column { return schema.String("nick").Comment("display name") }
	tests := []struct {
		dialect string
		alter   string
		comment string
	}{
		{"pgsql", `ALTER TABLE "users" ADD COLUMN "nick"`, `COMMENT ON COLUMN "users"."nick" IS 'display name'`},
		{"oci", `ALTER TABLE "users" ADD`, `COMMENT ON COLUMN "users"."nick" IS 'display name'`},
		{"sqlsrv", `ALTER TABLE [users] ADD [nick]`, "EXEC sp_addextendedproperty N'MS_Description'"},
	}
	for _, tt := range tests {
		b := schema.New(mustDialect(t, tt.dialect))

		if _, err := b.AddColumn("users", nick()); !errors.Is(err, dialect.ErrPrecondition) {
			t.Errorf("%s AddColumn with comment error = %v, want ErrPrecondition", tt.dialect, err)
		}
		if _, err := b.ModifyColumn("users", nick()); !errors.Is(err, dialect.ErrPrecondition) {
			t.Errorf("%s ModifyColumn with comment error = %v, want ErrPrecondition", tt.dialect, err)
		}

		stmts, err := b.AddColumnStatements("users", nick())
		if err != nil {
			t.Errorf("%s AddColumnStatements error = %v", tt.dialect, err)
			continue
		}
		if len(stmts) != 2 {
			t.Errorf("%s AddColumnStatements = %q, want 2 statements", tt.dialect, stmts)
			continue
		}
		if !strings.HasPrefix(stmts[0], tt.alter) || strings.Contains(stmts[0], "display name") {
			t.Errorf("%s alter = %q, want prefix %q without the comment", tt.dialect, stmts[0], tt.alter)
		}
		if !strings.HasPrefix(stmts[1], tt.comment) || !strings.Contains(stmts[1], "display name") {
			t.Errorf("%s comment = %q, want prefix %q", tt.dialect, stmts[1], tt.comment)
		}

		stmts, err = b.ModifyColumnStatements("users", nick())
		if err != nil || len(stmts) != 2 {
			t.Errorf("%s ModifyColumnStatements = %q, %v; want 2 statements", tt.dialect, stmts, err)
		}
	}

	// Inline comments stay a single statement.
	mysql := schema.New(mustDialect(t, "mysql"))
	sql, err := mysql.AddColumn("users", nick())
	if err != nil || !strings.Contains(sql, "COMMENT 'display name'") {
		t.Errorf("mysql AddColumn = %q, %v", sql, err)
	}
	stmts, err := mysql.AddColumnStatements("users", nick())
	if err != nil || len(stmts) != 1 {
		t.Errorf("mysql AddColumnStatements = %q, %v; want 1 statement", stmts, err)
	}
}
