package storage

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"sync"
	"testing"

	"querykit/pkg/dialect"
	_ "querykit/pkg/dialect/all"
)

// fakeRepo is an in-memory Repository that records every statement.
type fakeRepo struct {
	d *dialect.Dialect

	mu     sync.Mutex
	stmts  []string
	args   [][]any
	rows   []map[string]any
	execN  int64
	err    error
	closed bool
}

func newFakeRepo(t testing.TB, name string) *fakeRepo {
	t.Helper()
	return &fakeRepo{d: dialect.MustGet(name)}
}

func (f *fakeRepo) record(q string, args []any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stmts = append(f.stmts, q)
	f.args = append(f.args, args)
	return f.err
}

func (f *fakeRepo) Exec(_ context.Context, q string, args ...any) (int64, error) {
	if err := f.record(q, args); err != nil {
		return 0, err
	}
	return f.execN, nil
}

func (f *fakeRepo) Rows(_ context.Context, q string, args ...any) ([]map[string]any, error) {
	if err := f.record(q, args); err != nil {
		return nil, err
	}
	return f.rows, nil
}

func (f *fakeRepo) Row(_ context.Context, q string, args ...any) (map[string]any, error) {
	if err := f.record(q, args); err != nil {
		return nil, err
	}
	if len(f.rows) == 0 {
		return nil, nil
	}
	return f.rows[0], nil
}

func (f *fakeRepo) Value(_ context.Context, q string, args ...any) (any, error) {
	if err := f.record(q, args); err != nil {
		return nil, err
	}
	return nil, nil
}

func (f *fakeRepo) Dialect() *dialect.Dialect { return f.d }
func (f *fakeRepo) Close()                    { f.closed = true }

// TestRegisterAndNew_Success verifies that registering a backend enables New()
// to return the corresponding repository.
func TestRegisterAndNew_Success(t *testing.T) {
	t.Parallel()

	kind := "fake"
	Register(kind, func(ctx context.Context, cfg Config) (Repository, error) {
		return newFakeRepo(t, "sqlite"), nil
	})

	repo, err := New(context.Background(), Config{Kind: kind})
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	if repo == nil {
		t.Fatalf("New returned nil repo")
	}

	found := false
	for _, k := range ListKinds() {
		if k == kind {
			found = true
			break
		}
	}
	if !found {
		t.Fatalf("registered kind %q not present in ListKinds: %v", kind, ListKinds())
	}
}

// TestNew_Unsupported verifies that unsupported kinds return a helpful error.
func TestNew_Unsupported(t *testing.T) {
	t.Parallel()

	_, err := New(context.Background(), Config{Kind: "does-not-exist"})
	if err == nil {
		t.Fatalf("expected error for unsupported kind")
	}
	if got, want := err.Error(), "unsupported storage.kind=does-not-exist"; got != want {
		t.Fatalf("error = %q, want %q", got, want)
	}
}

// TestNew_ResolvesDialectAliases checks that aliases reach the backend
// registered under the canonical dialect name.
func TestNew_ResolvesDialectAliases(t *testing.T) {
	t.Parallel()

	var got []string
	var mu sync.Mutex
	Register("oci", func(ctx context.Context, cfg Config) (Repository, error) {
		mu.Lock()
		got = append(got, cfg.Kind)
		mu.Unlock()
		return newFakeRepo(t, "oci"), nil
	})

	for _, kind := range []string{"oci", "Oracle", " ora "} {
		repo, err := New(context.Background(), Config{Kind: kind})
		if err != nil {
			t.Fatalf("New(%q): %v", kind, err)
		}
		if repo.Dialect().Name != dialect.Oracle {
			t.Fatalf("New(%q) dialect = %s", kind, repo.Dialect().Name)
		}
	}
	if len(got) != 3 {
		t.Fatalf("factory calls = %d, want 3", len(got))
	}
}

// TestRegister_Override verifies that re-registering a kind overrides the
// previous factory.
func TestRegister_Override(t *testing.T) {
	t.Parallel()

	kind := "override"
	calls := 0

	Register(kind, func(ctx context.Context, cfg Config) (Repository, error) {
		calls++
		return newFakeRepo(t, "sqlite"), nil
	})
	Register(kind, func(ctx context.Context, cfg Config) (Repository, error) {
		calls += 10
		return newFakeRepo(t, "sqlite"), nil
	})

	if _, err := New(context.Background(), Config{Kind: kind}); err != nil {
		t.Fatalf("New error: %v", err)
	}
	if calls != 10 {
		t.Fatalf("factory call count = %d, want 10", calls)
	}
}

// TestListKinds_Snapshot checks that ListKinds returns a sorted copy.
func TestListKinds_Snapshot(t *testing.T) {
	t.Parallel()

	Register("snap", func(ctx context.Context, cfg Config) (Repository, error) { return newFakeRepo(t, "sqlite"), nil })

	a := ListKinds()
	if len(a) == 0 {
		t.Fatalf("ListKinds empty after registration")
	}
	for i := 1; i < len(a); i++ {
		if strings.Compare(a[i-1], a[i]) > 0 {
			t.Fatalf("ListKinds not sorted: %v", a)
		}
	}
	a[0] = "mutated"

	b := ListKinds()
	if reflect.DeepEqual(a, b) {
		t.Fatalf("ListKinds returned same slice; want snapshot copy")
	}
}

// TestRegister_AllowsErrors shows factories can return errors that bubble up.
func TestRegister_AllowsErrors(t *testing.T) {
	t.Parallel()

	kind := "errkind"
	want := errors.New("boom")

	Register(kind, func(ctx context.Context, cfg Config) (Repository, error) {
		return nil, want
	})

	_, err := New(context.Background(), Config{Kind: kind})
	if !errors.Is(err, want) {
		t.Fatalf("want %v, got %v", want, err)
	}
}

func TestConfigTimeout(t *testing.T) {
	t.Parallel()

	if got := (Config{}).Timeout(); got != DefaultPingTimeout {
		t.Fatalf("Timeout() = %v, want %v", got, DefaultPingTimeout)
	}
	if got := (Config{PingTimeout: 42}).Timeout(); got != 42 {
		t.Fatalf("Timeout() = %v, want 42ns", got)
	}
}
