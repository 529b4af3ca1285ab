package mssql

import (
	"context"
	"os"
	"strings"
	"testing"

	"querykit/internal/storage"
	"querykit/pkg/query"
	"querykit/pkg/schema"
)

// TestMSSQLStorageRegistrationUsesNewRepositoryHook verifies that the backend
// registered in init() resolves every alias through the newRepository hook
// and that wrappedRepo propagates close behavior.
func TestMSSQLStorageRegistrationUsesNewRepositoryHook(t *testing.T) {
	ctx := context.Background()

	origNewRepository := newRepository
	defer func() { newRepository = origNewRepository }()

	var (
		calls    int
		gotCfg   Config
		closed   int
		fakeRepo = &Repository{}
	)
	newRepository = func(ctx context.Context, cfg Config) (*Repository, func(), error) {
		calls++
		gotCfg = cfg
		return fakeRepo, func() { closed++ }, nil
	}

	for _, kind := range []string{"sqlsrv", "sqlserver", "mssql"} {
		cfg := storage.Config{Kind: kind, DSN: "sqlserver://sa:pw@example?database=app"}
		repo, err := storage.New(ctx, cfg)
		if err != nil {
			t.Fatalf("storage.New(%q) error = %v, want nil", kind, err)
		}
		if gotCfg.DSN != cfg.DSN {
			t.Errorf("hook cfg.DSN = %q, want %q", gotCfg.DSN, cfg.DSN)
		}
		w, ok := repo.(*wrappedRepo)
		if !ok {
			t.Fatalf("storage.New() type = %T, want *wrappedRepo", repo)
		}
		if w.Repository != fakeRepo {
			t.Fatalf("wrappedRepo.Repository = %p, want %p", w.Repository, fakeRepo)
		}
		repo.Close()
	}
	if calls != 3 || closed != 3 {
		t.Fatalf("calls=%d closed=%d, want 3 and 3", calls, closed)
	}
}

func TestNewRepository_InvalidDSN(t *testing.T) {
	t.Parallel()

	_, _, err := NewRepository(context.Background(), Config{DSN: "server=localhost;connection timeout=abc"})
	if err == nil {
		t.Fatal("NewRepository() error = nil, want DSN error")
	}
	if !strings.HasPrefix(err.Error(), "mssql dsn:") {
		t.Fatalf("error = %q, want mssql dsn prefix", err)
	}
}

// TestIntegration_BulkCopy runs only when TEST_MSSQL_DSN points at a live
// server.
func TestIntegration_BulkCopy(t *testing.T) {
	dsn := os.Getenv("TEST_MSSQL_DSN")
	if dsn == "" {
		t.Skip("TEST_MSSQL_DSN not set")
	}
	ctx := context.Background()

	repo, err := storage.New(ctx, storage.Config{Kind: "mssql", DSN: dsn})
	if err != nil {
		t.Fatalf("storage.New: %v", err)
	}
	defer repo.Close()

	sb := schema.New(repo.Dialect(), schema.WithExecutor(repo))
	drop, _ := sb.DropTable("querykit_it_bulk", true)
	stmts, err := sb.CreateTable("querykit_it_bulk").
		AddColumn(schema.Primary("id")).
		AddColumn(schema.String("name").Length(40)).
		Statements()
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if err := sb.Apply(ctx, append([]string{drop}, stmts...)...); err != nil {
		t.Fatalf("apply: %v", err)
	}
	defer func() { _ = sb.Apply(ctx, drop) }()

	n, err := storage.CopyFnFor(repo, "querykit_it_bulk", nil)(ctx, []string{"name"}, [][]any{{"a"}, {"b"}, {"c"}})
	if err != nil || n != 3 {
		t.Fatalf("copy = %d, %v; want 3, nil", n, err)
	}

	v, err := query.New(repo.Dialect(), query.WithExecutor(repo)).Select("COUNT(*)").From("querykit_it_bulk").RowColumn(ctx)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if v != int64(3) {
		t.Fatalf("count = %v (%T), want 3", v, v)
	}
}
