package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// run executes one CLI invocation with a clean environment and returns its
// stdout, stderr and error.
func run(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	t.Setenv("QUERYKIT_DIALECT", "")
	t.Setenv("QUERYKIT_DSN", "")

	var stdout, stderr bytes.Buffer
	root := newRootCmd()
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	root.SetArgs(args)
	err := root.Execute()
	return stdout.String(), stderr.String(), err
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

const itemsPlan = `
tables:
  - name: items
    if_not_exists: true
    columns:
      - { name: id, type: integer }
      - { name: name, type: string, length: 40 }
    primary_key: [id]
queries:
  - name: seed
    insert: items
    values:
      - { id: 1, name: a }
      - { id: 2, name: b }
  - name: listing
    from: items
    select: [id, name]
    order_by: [{ field: id, dir: asc }]
`

func TestDialects(t *testing.T) {
	out, _, err := run(t, "dialects")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 6)
	assert.True(t, strings.HasPrefix(lines[0], "NAME"))
	for _, want := range []string{"mysql", "oci", "pgsql", "sqlite", "sqlsrv", "postgres", "sqlite3", "mssql"} {
		assert.Contains(t, out, want)
	}
	assert.NotContains(t, out, "-\n", "every dialect has a backend")
}

func TestRender_SingleDialect(t *testing.T) {
	p := writeFile(t, "plan.yaml", itemsPlan)

	out, _, err := run(t, "render", p, "--dialect", "sqlite3")
	require.NoError(t, err)
	assert.Contains(t, out, "-- table items (create)\nCREATE TABLE IF NOT EXISTS \"items\"")
	assert.Contains(t, out, "-- query seed (insert)\n")
	assert.Contains(t, out, `SELECT "id", "name" FROM "items" ORDER BY "id" ASC;`)
	assert.NotContains(t, out, "-- args:")
}

func TestRender_Params(t *testing.T) {
	p := writeFile(t, "plan.yaml", itemsPlan)

	out, _, err := run(t, "render", p, "--dialect", "postgres", "--params")
	require.NoError(t, err)
	assert.Contains(t, out, "$1")
	assert.Contains(t, out, `-- args: [1,"a",2,"b"]`)
}

func TestRender_All(t *testing.T) {
	// Oracle has no CREATE TABLE IF NOT EXISTS.
	_, _, err := run(t, "render", writeFile(t, "plan.yaml", itemsPlan), "--all")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "oci")

	p := writeFile(t, "plan.yaml", strings.Replace(itemsPlan, "    if_not_exists: true\n", "", 1))

	out, stderr, err := run(t, "render", p, "--all")
	require.NoError(t, err)
	assert.Empty(t, stderr)
	assert.Equal(t, 5, strings.Count(out, "-- dialect: "))
	idx := func(s string) int { return strings.Index(out, "-- dialect: "+s+"\n") }
	assert.Less(t, idx("mysql"), idx("oci"))
	assert.Less(t, idx("oci"), idx("pgsql"))
	assert.Contains(t, out, "INSERT ALL")
	assert.Contains(t, out, "CREATE TABLE `items`")
}

func TestRender_RequiresDialect(t *testing.T) {
	p := writeFile(t, "plan.yaml", itemsPlan)

	_, _, err := run(t, "render", p)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dialect is required")
}

func TestInvalidConfigRefused(t *testing.T) {
	cfg := writeFile(t, "querykit.yaml", "dialect: nosuchdb\nload: { batch_size: 0 }\n")

	_, stderr, err := run(t, "--config", cfg, "inspect", "tables")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "configuration is invalid")
	assert.Contains(t, stderr, "error: dialect: unknown dialect")
	assert.Contains(t, stderr, "error: load.batch_size:")
}

func TestValidateOnly(t *testing.T) {
	cfg := writeFile(t, "querykit.json", `{"dialect": "mysql", "dsn": "u:p@tcp(db:3306)/app"}`)

	out, _, err := run(t, "--config", cfg, "--validate", "inspect", "tables")
	require.NoError(t, err)
	assert.Contains(t, out, "configuration is valid: "+cfg)
}

func TestApplyLoadInspect_SQLite(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "app.db")
	p := writeFile(t, "plan.yaml", itemsPlan)

	out, _, err := run(t, "--dialect", "sqlite", "--dsn", dsn, "apply", p)
	require.NoError(t, err)
	assert.Contains(t, out, "table items")
	assert.Contains(t, out, "query seed")
	assert.Contains(t, out, "-- query listing\n")
	assert.Contains(t, out, `"name":"a"`)
	assert.Contains(t, out, `"name":"b"`)

	csvPath := writeFile(t, "items.csv", "id,name\n3,c\n4,d\n5,e\n")
	out, _, err = run(t, "--dialect", "sqlite", "--dsn", dsn, "load", csvPath, "--table", "items", "--batch-size", "2")
	require.NoError(t, err)
	assert.Equal(t, "loaded 3 rows into items\n", out)

	out, _, err = run(t, "--dialect", "sqlite", "--dsn", dsn, "inspect", "tables")
	require.NoError(t, err)
	assert.Equal(t, "items\n", out)

	out, _, err = run(t, "--dialect", "sqlite", "--dsn", dsn, "inspect", "describe", "items")
	require.NoError(t, err)
	assert.Equal(t, 2, strings.Count(out, "\n"))
	assert.Contains(t, out, `"name":"name"`)

	// A second apply is idempotent for the table but the seed collides.
	_, _, err = run(t, "--dialect", "sqlite", "--dsn", dsn, "apply", p)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "query seed")
}

func TestLoad_Errors(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "app.db")
	csvPath := writeFile(t, "items.csv", "id,name\n1,a\n")

	_, _, err := run(t, "--dialect", "sqlite", "--dsn", dsn, "load", csvPath)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--table is required")

	_, _, err = run(t, "--dialect", "sqlite", "--dsn", dsn, "load", csvPath, "--table", "missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rows loaded before error")

	_, _, err = run(t, "--dialect", "sqlite", "load", csvPath, "--table", "items")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dsn is required")
}

func TestProbe(t *testing.T) {
	csvPath := writeFile(t, "Vehicle Owners.csv", "ID,Full Name,Registered\n1,Ann,2024-01-31\n2,,2024-02-01\n")

	out, _, err := run(t, "probe", csvPath, "--normalize")
	require.NoError(t, err)
	assert.Contains(t, out, "name: vehicle_owners\n")
	assert.Contains(t, out, "name: full_name")
	assert.Contains(t, out, "type: bigint")
	assert.Contains(t, out, "type: date")
	assert.Contains(t, out, "nullable: true")

	// The output is a plan that renders.
	p := writeFile(t, "probed.yaml", out)
	sql, _, err := run(t, "render", p, "--dialect", "mysql")
	require.NoError(t, err)
	assert.Contains(t, sql, "CREATE TABLE `vehicle_owners`")
}

func TestLoad_Create(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "app.db")
	csvPath := writeFile(t, "people.csv", "Id,Full Name\n1,Ann\n2,Bob\n")

	out, _, err := run(t, "--dialect", "sqlite", "--dsn", dsn, "load", csvPath, "--table", "people", "--create", "--normalize")
	require.NoError(t, err)
	assert.Equal(t, "loaded 2 rows into people\n", out)

	// The table exists now, so a second load only appends.
	out, _, err = run(t, "--dialect", "sqlite", "--dsn", dsn, "load", csvPath, "--table", "people", "--create", "--normalize")
	require.NoError(t, err)
	assert.Equal(t, "loaded 2 rows into people\n", out)

	out, _, err = run(t, "--dialect", "sqlite", "--dsn", dsn, "inspect", "describe", "people")
	require.NoError(t, err)
	assert.Contains(t, out, `"name":"full_name"`)
}
