package schema

import (
	"strconv"
	"strings"

	"github.com/zeebo/xxh3"

	"querykit/pkg/dialect"
)

// IndexSpec is the abstract description of an index or key. Name and Table
// are optional: the name defaults to one derived from the table and columns,
// and the table is usually supplied by the enclosing schema statement.
type IndexSpec struct {
	Kind       dialect.IndexKind
	Name       string
	Columns    []string
	RefTable   string
	RefColumns []string
	OnDelete   string
	OnUpdate   string
	Table      string
}

// Index is a fluent builder for one index or key.
type Index struct {
	spec IndexSpec
	err  error
}

// NewIndex starts an index of the given kind over cols.
func NewIndex(kind dialect.IndexKind, cols ...string) *Index {
	ix := &Index{spec: IndexSpec{Kind: kind}}
	if !kind.Valid() {
		ix.fail(&dialect.SpecError{Field: "index kind", Value: string(kind), Reason: "want index, unique, fulltext or foreign"})
	}
	return ix.Column(cols...)
}

// IndexFromSpec wraps a copy of spec.
func IndexFromSpec(spec IndexSpec) *Index {
	ix := NewIndex(spec.Kind, spec.Columns...).
		Name(spec.Name).
		Table(spec.Table).
		OnDelete(spec.OnDelete).
		OnUpdate(spec.OnUpdate)
	if spec.RefTable != "" || len(spec.RefColumns) > 0 {
		ix.Reference(spec.RefTable, spec.RefColumns...)
	}
	return ix
}

func PlainIndex(cols ...string) *Index    { return NewIndex(dialect.IndexPlain, cols...) }
func UniqueIndex(cols ...string) *Index   { return NewIndex(dialect.IndexUnique, cols...) }
func FulltextIndex(cols ...string) *Index { return NewIndex(dialect.IndexFulltext, cols...) }
func ForeignKey(cols ...string) *Index    { return NewIndex(dialect.IndexForeign, cols...) }

func (ix *Index) fail(err error) {
	if ix.err == nil {
		ix.err = err
	}
}

// Name sets an explicit index name.
func (ix *Index) Name(name string) *Index {
	ix.spec.Name = strings.TrimSpace(name)
	return ix
}

// Column appends columns, preserving order.
func (ix *Index) Column(cols ...string) *Index {
	for _, c := range cols {
		c = strings.TrimSpace(c)
		if err := dialect.CheckIdent(c); err != nil {
			ix.fail(err)
			continue
		}
		ix.spec.Columns = append(ix.spec.Columns, c)
	}
	return ix
}

// Reference sets the referenced table and columns of a foreign key.
func (ix *Index) Reference(table string, cols ...string) *Index {
	ix.spec.RefTable = strings.TrimSpace(table)
	ix.spec.RefColumns = append([]string(nil), cols...)
	return ix
}

func (ix *Index) OnDelete(action string) *Index { ix.spec.OnDelete = action; return ix }
func (ix *Index) OnUpdate(action string) *Index { ix.spec.OnUpdate = action; return ix }

// Table binds the index to a table.
func (ix *Index) Table(table string) *Index {
	ix.spec.Table = strings.TrimSpace(table)
	return ix
}

// Spec returns a copy of the current spec.
func (ix *Index) Spec() IndexSpec {
	s := ix.spec
	s.Columns = append([]string(nil), s.Columns...)
	s.RefColumns = append([]string(nil), s.RefColumns...)
	return s
}

func (ix *Index) Err() error { return ix.err }

// Kind returns the index kind.
func (ix *Index) Kind() dialect.IndexKind { return ix.spec.Kind }

var namePrefix = map[dialect.IndexKind]string{
	dialect.IndexPlain:    "idx",
	dialect.IndexUnique:   "uniq",
	dialect.IndexFulltext: "ft",
	dialect.IndexForeign:  "fk",
}

// DefaultIndexName derives "<prefix>_<table>_<cols>" and, when the result
// exceeds limit, keeps a prefix of it followed by a 16-digit xxh3 digest of
// the full name. limit <= 0 means no limit.
func DefaultIndexName(kind dialect.IndexKind, table string, cols []string, limit int) string {
	parts := []string{namePrefix[kind]}
	if table != "" {
		if i := strings.LastIndex(table, "."); i >= 0 {
			table = table[i+1:]
		}
		parts = append(parts, table)
	}
	parts = append(parts, cols...)
	name := strings.ReplaceAll(strings.Join(parts, "_"), ".", "_")
	if limit <= 0 || len(name) <= limit {
		return name
	}
	sum := strconv.FormatUint(xxh3.HashString(name), 16)
	sum = strings.Repeat("0", 16-len(sum)) + sum
	keep := limit - len(sum) - 1
	if keep <= 0 {
		return sum[:min(limit, len(sum))]
	}
	return name[:keep] + "_" + sum
}

// Def resolves the spec for d. table is used when none is bound.
func (ix *Index) Def(d *dialect.Dialect, table string) (dialect.IndexDef, error) {
	if ix.err != nil {
		return dialect.IndexDef{}, ix.err
	}
	if ix.spec.Table != "" {
		table = ix.spec.Table
	}
	def := dialect.IndexDef{
		Kind:       ix.spec.Kind,
		Name:       ix.spec.Name,
		Table:      table,
		Columns:    append([]string(nil), ix.spec.Columns...),
		RefTable:   ix.spec.RefTable,
		RefColumns: append([]string(nil), ix.spec.RefColumns...),
		OnDelete:   ix.spec.OnDelete,
		OnUpdate:   ix.spec.OnUpdate,
	}
	if def.Name == "" {
		def.Name = DefaultIndexName(def.Kind, table, def.Columns, d.MaxIdentLength)
	}
	return def, nil
}

// Inline renders the table-body form. ok is false when the dialect cannot
// declare this kind inside CREATE TABLE; use Render after the table exists.
func (ix *Index) Inline(d *dialect.Dialect) (sql string, ok bool, err error) {
	def, err := ix.Def(d, "")
	if err != nil {
		return "", false, err
	}
	return d.InlineIndex(def)
}

// Render produces the standalone statement. table is used when the index
// has no bound table.
func (ix *Index) Render(d *dialect.Dialect, table string) (string, error) {
	def, err := ix.Def(d, table)
	if err != nil {
		return "", err
	}
	return d.CreateIndex(def)
}
