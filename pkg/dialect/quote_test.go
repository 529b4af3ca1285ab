package dialect_test

import (
	"database/sql"
	"errors"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"

	"querykit/pkg/dialect"
	_ "querykit/pkg/dialect/all"
)

func mustDialect(t testing.TB, name string) *dialect.Dialect {
	t.Helper()
	d, err := dialect.Get(name)
	if err != nil {
		t.Fatalf("dialect.Get(%q) error = %v", name, err)
	}
	return d
}

func TestQuoteIdent(t *testing.T) {
	t.Parallel()

	tests := []struct {
		dialect string
		in      string
		want    string
	}{
		{"mysql", "users", "`users`"},
		{"mysql", "db.users", "`db`.`users`"},
		{"mysql", "u.*", "`u`.*"},
		{"mysql", "*", "*"},
		{"mysql", "we`ird", "`we``ird`"},
		{"mysql", "`already`", "`already`"},
		{"mysql", "COUNT(*)", "COUNT(*)"},
		{"mysql", "name AS n", "`name` AS `n`"},
		{"mysql", "u.name as n", "`u`.`name` AS `n`"},
		{"pgsql", "public.users", `"public"."users"`},
		{"pgsql", `we"ird`, `"we""ird"`},
		{"sqlsrv", "dbo.Users", "[dbo].[Users]"},
		{"sqlsrv", "weird]id", "[weird]]id]"},
		{"sqlsrv", "[dbo].[Users]", "[dbo].[Users]"},
		{"sqlite", "events", `"events"`},
		{"oci", "hr.employees", `"hr"."employees"`},
		{"mysql", "a + b", "a + b"},
		{"mysql", "first-name", "`first-name`"},
		{"pgsql", "t.first-name", `"t"."first-name"`},
		{"sqlsrv", "unit/price", "[unit/price]"},
		{"pgsql", "a+b AS total", `"a+b" AS "total"`},
		{"pgsql", "price * qty", "price * qty"},
		{"mysql", "", ""},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.dialect+"/"+tt.in, func(t *testing.T) {
			t.Parallel()
			d := mustDialect(t, tt.dialect)
			if got := d.QuoteIdent(tt.in); got != tt.want {
				t.Fatalf("QuoteIdent(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

// TestQuoteIdent_MatchesPgx cross-checks PostgreSQL quoting against pgx's
// own identifier sanitizer.
func TestQuoteIdent_MatchesPgx(t *testing.T) {
	t.Parallel()

	d := mustDialect(t, "postgres")
	for _, parts := range [][]string{
		{"users"},
		{"public", "users"},
		{"odd\"name"},
		{"Mixed", "Case"},
	} {
		want := pgx.Identifier(parts).Sanitize()
		if got := d.QuoteIdent(strings.Join(parts, ".")); got != want {
			t.Errorf("QuoteIdent(%q) = %q, pgx.Identifier.Sanitize = %q", parts, got, want)
		}
	}
}

type status int

type label string

type point struct{ X, Y int }

func TestQuoteValue(t *testing.T) {
	t.Parallel()

	ts := time.Date(2024, 3, 9, 14, 5, 6, 0, time.UTC)
	n := 7
	var nilPtr *int

	tests := []struct {
		dialect string
		in      any
		want    string
	}{
		{"mysql", nil, "NULL"},
		{"mysql", 42, "42"},
		{"mysql", int64(-3), "-3"},
		{"mysql", uint8(9), "9"},
		{"mysql", 1.5, "1.5"},
		{"mysql", float32(0.25), "0.25"},
		{"mysql", true, "1"},
		{"mysql", false, "0"},
		{"pgsql", true, "TRUE"},
		{"pgsql", false, "FALSE"},
		{"sqlite", true, "1"},
		{"sqlsrv", false, "0"},
		{"oci", true, "1"},
		{"mysql", "O'Brien", "'O''Brien'"},
		{"sqlite", "O'Brien", "'O''Brien'"},
		{"sqlsrv", "O'Brien", "'O''Brien'"},
		{"mysql", `C:\tmp`, `'C:\\tmp'`},
		{"pgsql", "plain", "'plain'"},
		{"pgsql", `C:\tmp`, `E'C:\\tmp'`},
		{"pgsql", `it's\here`, `E'it''s\\here'`},
		{"sqlsrv", "Zürich", "N'Zürich'"},
		{"sqlsrv", "Zurich", "'Zurich'"},
		{"mysql", []byte("bytes"), "'bytes'"},
		{"mysql", ts, "'2024-03-09 14:05:06'"},
		{"mysql", dialect.Raw("NOW()"), "NOW()"},
		{"mysql", sql.NullString{String: "x", Valid: true}, "'x'"},
		{"mysql", sql.NullInt64{}, "NULL"},
		{"mysql", status(3), "3"},
		{"mysql", label("lbl"), "'lbl'"},
		{"mysql", &n, "7"},
		{"mysql", nilPtr, "NULL"},
		{"pgsql", `{"k":"v's"}`, `'{"k":"v''s"}'`},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.dialect, func(t *testing.T) {
			t.Parallel()
			d := mustDialect(t, tt.dialect)
			got, err := d.QuoteValue(tt.in)
			if err != nil {
				t.Fatalf("QuoteValue(%#v) error = %v", tt.in, err)
			}
			if got != tt.want {
				t.Fatalf("QuoteValue(%#v) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestQuoteValue_Unsupported(t *testing.T) {
	t.Parallel()

	d := mustDialect(t, "mysql")
	for _, v := range []any{
		[]int{1, 2},
		map[string]int{"a": 1},
		point{1, 2},
		make(chan int),
		func() {},
		math.NaN(),
		math.Inf(1),
	} {
		_, err := d.QuoteValue(v)
		if err == nil {
			t.Errorf("QuoteValue(%T) error = nil, want ErrValue", v)
			continue
		}
		if !errors.Is(err, dialect.ErrValue) {
			t.Errorf("QuoteValue(%T) error = %v, want errors.Is ErrValue", v, err)
		}
		var ve *dialect.ValueError
		if !errors.As(err, &ve) {
			t.Errorf("QuoteValue(%T) error type = %T, want *ValueError", v, err)
		}
	}
}

func TestCheckIdent(t *testing.T) {
	t.Parallel()

	for _, ok := range []string{"users", "public.users", "a_b"} {
		if err := dialect.CheckIdent(ok); err != nil {
			t.Errorf("CheckIdent(%q) error = %v, want nil", ok, err)
		}
	}
	for _, bad := range []string{"", "  ", "a..b", ".a", "a.", "a\x00b"} {
		err := dialect.CheckIdent(bad)
		if !errors.Is(err, dialect.ErrInvalidSpec) {
			t.Errorf("CheckIdent(%q) error = %v, want ErrInvalidSpec", bad, err)
		}
	}
}

func BenchmarkQuoteIdent(b *testing.B) {
	d := mustDialect(b, "mysql")
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		_ = d.QuoteIdent("schema.table_name")
	}
}

func BenchmarkQuoteValue(b *testing.B) {
	d := mustDialect(b, "pgsql")
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		if _, err := d.QuoteValue(`value with 'quote' and \ backslash`); err != nil {
			b.Fatal(err)
		}
	}
}
