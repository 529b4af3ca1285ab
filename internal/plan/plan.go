// Package plan decodes plan documents and renders them into SQL.
//
// A plan lists tables to create and queries to run. Tables use the map form
// of pkg/schema columns and indexes; queries name exactly one verb (from,
// insert, update, delete, truncate or sql) plus the clauses it needs:
//
//	tables:
//	  - name: users
//	    if_not_exists: true
//	    columns:
//	      - { name: id, type: primary }
//	      - { name: email, type: string, length: 190 }
//	    indexes:
//	      - { kind: unique, columns: [email] }
//	    options: { mysql: "ENGINE=InnoDB" }
//	queries:
//	  - name: seed
//	    insert: users
//	    values: [{ email: a@example.com }, { email: b@example.com }]
//	  - name: recent
//	    from: users
//	    select: [id, email]
//	    where: { "id >": 10 }
//	    order_by: [{ field: id, dir: desc }]
//	    limit: 5
package plan

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"querykit/pkg/dialect"
	_ "querykit/pkg/dialect/all"
)

// Plan is a decoded plan document.
type Plan struct {
	Tables  []Table `json:"tables,omitempty" yaml:"tables,omitempty"`
	Queries []Query `json:"queries,omitempty" yaml:"queries,omitempty"`
}

// Table describes one CREATE TABLE.
type Table struct {
	Name        string           `json:"name" yaml:"name"`
	IfNotExists bool             `json:"if_not_exists,omitempty" yaml:"if_not_exists,omitempty"`
	DropFirst   bool             `json:"drop_first,omitempty" yaml:"drop_first,omitempty"`
	Columns     []map[string]any `json:"columns" yaml:"columns"`
	Indexes     []map[string]any `json:"indexes,omitempty" yaml:"indexes,omitempty"`
	PrimaryKey  []string         `json:"primary_key,omitempty" yaml:"primary_key,omitempty"`

	// Options maps a dialect name or alias to a raw table options suffix.
	Options map[string]string `json:"options,omitempty" yaml:"options,omitempty"`
}

// Query describes one DML statement.
type Query struct {
	Name string `json:"name" yaml:"name"`

	// Dialects restricts the query to these dialects. Empty means all.
	Dialects []string `json:"dialects" yaml:"dialects"`

	From     string `json:"from" yaml:"from"`
	Insert   string `json:"insert" yaml:"insert"`
	Update   string `json:"update" yaml:"update"`
	Delete   string `json:"delete" yaml:"delete"`
	Truncate string `json:"truncate" yaml:"truncate"`
	SQL      string `json:"sql" yaml:"sql"`

	Select       []string         `json:"select" yaml:"select"`
	Distinct     bool             `json:"distinct" yaml:"distinct"`
	Joins        []Join           `json:"joins" yaml:"joins"`
	Where        map[string]any   `json:"where" yaml:"where"`
	WhereIn      map[string][]any `json:"where_in" yaml:"where_in"`
	WhereNull    []string         `json:"where_null" yaml:"where_null"`
	WhereNotNull []string         `json:"where_not_null" yaml:"where_not_null"`
	GroupBy      []string         `json:"group_by" yaml:"group_by"`
	Having       map[string]any   `json:"having" yaml:"having"`
	OrderBy      []Order          `json:"order_by" yaml:"order_by"`
	Limit        int              `json:"limit" yaml:"limit"`
	Offset       int              `json:"offset" yaml:"offset"`
	Set          map[string]any   `json:"set" yaml:"set"`
	Values       []map[string]any `json:"values" yaml:"values"`
	Replace      bool             `json:"replace" yaml:"replace"`
	OnConflict   []string         `json:"on_conflict" yaml:"on_conflict"`
	Args         []any            `json:"args" yaml:"args"`
}

// Join is one JOIN clause. Kind is "", inner, left, right or outer.
type Join struct {
	Kind  string `json:"kind" yaml:"kind"`
	Table string `json:"table" yaml:"table"`
	On    string `json:"on" yaml:"on"`
}

// Order is one ORDER BY term.
type Order struct {
	Field string `json:"field" yaml:"field"`
	Dir   string `json:"dir" yaml:"dir"`
}

// Verbs a query may name.
const (
	VerbSelect   = "select"
	VerbInsert   = "insert"
	VerbUpdate   = "update"
	VerbDelete   = "delete"
	VerbTruncate = "truncate"
	VerbSQL      = "sql"
)

// Verb returns the statement kind of q and its target table (the raw SQL for
// VerbSQL). Exactly one verb field must be set.
func (q *Query) Verb() (verb, target string, err error) {
	set := map[string]string{
		VerbSelect:   q.From,
		VerbInsert:   q.Insert,
		VerbUpdate:   q.Update,
		VerbDelete:   q.Delete,
		VerbTruncate: q.Truncate,
		VerbSQL:      q.SQL,
	}
	var found []string
	for v, t := range set {
		if strings.TrimSpace(t) != "" {
			found = append(found, v)
		}
	}
	sort.Strings(found)
	switch len(found) {
	case 0:
		return "", "", fmt.Errorf("query %q: one of from, insert, update, delete, truncate or sql is required", q.Name)
	case 1:
		return found[0], strings.TrimSpace(set[found[0]]), nil
	default:
		return "", "", fmt.Errorf("query %q: verbs %s are mutually exclusive", q.Name, strings.Join(found, ", "))
	}
}

// For reports whether q applies to dialect d.
func (q *Query) For(d *dialect.Dialect) bool {
	if len(q.Dialects) == 0 {
		return true
	}
	for _, name := range q.Dialects {
		if x, err := dialect.Get(name); err == nil && x.Name == d.Name {
			return true
		}
	}
	return false
}

// ReadFile decodes the plan at path; the extension selects the format.
func ReadFile(path string) (*Plan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("plan: %w", err)
	}
	p, err := Decode(data, filepath.Ext(path))
	if err != nil {
		return nil, fmt.Errorf("plan: %s: %w", path, err)
	}
	return p, nil
}

// Decode parses a JSON (".json") or YAML (".yaml", ".yml") plan and
// validates it. Unknown keys are rejected.
func Decode(data []byte, ext string) (*Plan, error) {
	p := &Plan{}
	switch strings.ToLower(ext) {
	case ".json":
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		dec.UseNumber()
		if err := dec.Decode(p); err != nil {
			return nil, err
		}
		normalizeNumbers(p)
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(p); err != nil && err != io.EOF {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unsupported plan format %q (want .json, .yaml or .yml)", ext)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

// Validate checks names and verbs. Column and index maps are checked when
// the plan is rendered, since their types depend on the dialect.
func (p *Plan) Validate() error {
	var errs []error
	tables := map[string]bool{}
	for i, t := range p.Tables {
		name := strings.TrimSpace(t.Name)
		switch {
		case name == "":
			errs = append(errs, fmt.Errorf("tables[%d]: name is required", i))
		case tables[name]:
			errs = append(errs, fmt.Errorf("tables[%d]: duplicate table %q", i, name))
		}
		tables[name] = true
		if len(t.Columns) == 0 {
			errs = append(errs, fmt.Errorf("tables[%d]: table %q has no columns", i, name))
		}
		for key := range t.Options {
			if _, err := dialect.Get(key); err != nil {
				errs = append(errs, fmt.Errorf("tables[%d].options: %w", i, err))
			}
		}
	}
	queries := map[string]bool{}
	for i := range p.Queries {
		q := &p.Queries[i]
		if q.Name != "" {
			if queries[q.Name] {
				errs = append(errs, fmt.Errorf("queries[%d]: duplicate query %q", i, q.Name))
			}
			queries[q.Name] = true
		}
		if _, _, err := q.Verb(); err != nil {
			errs = append(errs, fmt.Errorf("queries[%d]: %w", i, err))
		}
		for _, name := range q.Dialects {
			if _, err := dialect.Get(name); err != nil {
				errs = append(errs, fmt.Errorf("queries[%d].dialects: %w", i, err))
			}
		}
	}
	return errors.Join(errs...)
}

// normalizeNumbers turns json.Number values into int when they are integral
// and float64 otherwise, matching what yaml.v3 produces.
func normalizeNumbers(p *Plan) {
	for i := range p.Tables {
		for _, m := range p.Tables[i].Columns {
			normalizeMap(m)
		}
		for _, m := range p.Tables[i].Indexes {
			normalizeMap(m)
		}
	}
	for i := range p.Queries {
		q := &p.Queries[i]
		normalizeMap(q.Where)
		normalizeMap(q.Having)
		normalizeMap(q.Set)
		for _, m := range q.Values {
			normalizeMap(m)
		}
		for k, vs := range q.WhereIn {
			for j := range vs {
				vs[j] = normalizeValue(vs[j])
			}
			q.WhereIn[k] = vs
		}
		for j := range q.Args {
			q.Args[j] = normalizeValue(q.Args[j])
		}
	}
}

func normalizeMap(m map[string]any) {
	for k, v := range m {
		m[k] = normalizeValue(v)
	}
}

func normalizeValue(v any) any {
	switch x := v.(type) {
	case json.Number:
		if n, err := x.Int64(); err == nil {
			return int(n)
		}
		if f, err := x.Float64(); err == nil {
			return f
		}
		return x.String()
	case map[string]any:
		normalizeMap(x)
		return x
	case []any:
		for i := range x {
			x[i] = normalizeValue(x[i])
		}
		return x
	}
	return v
}
