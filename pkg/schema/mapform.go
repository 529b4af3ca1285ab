package schema

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"querykit/pkg/dialect"
)

// ColumnFromMap builds a column from a decoded YAML or JSON object.
//
// Recognized keys: name, type, length, nullable, unique, unsigned, default,
// default_raw, comment, first, after. length is an integer, a
// [precision, scale] list or a "p,s" string. Unknown keys and values of the
// wrong type are rejected with a *dialect.SpecError.
func ColumnFromMap(m map[string]any) (*Column, error) {
	if err := checkKeys("column", m, columnKeys); err != nil {
		return nil, err
	}
	name, err := mapString(m, "name", true)
	if err != nil {
		return nil, err
	}
	typName, err := mapString(m, "type", true)
	if err != nil {
		return nil, err
	}
	typ, err := dialect.ParseColumnType(typName)
	if err != nil {
		return nil, err
	}
	c := NewColumn(name, typ)

	if v, ok := m["length"]; ok && v != nil {
		l, err := parseLength(v)
		if err != nil {
			return nil, err
		}
		if l.Pair {
			c.Precision(l.Size, l.Scale)
		} else {
			c.Length(l.Size)
		}
	}
	for key, set := range map[string]func(){
		"nullable": func() { c.Nullable() },
		"unique":   func() { c.Unique() },
		"unsigned": func() { c.Unsigned() },
		"first":    func() { c.First() },
	} {
		on, err := mapBool(m, key)
		if err != nil {
			return nil, err
		}
		if on {
			set()
		}
	}
	_, hasDefault := m["default"]
	_, hasRaw := m["default_raw"]
	if hasDefault && hasRaw {
		return nil, &dialect.SpecError{Field: "column default", Value: name, Reason: "default and default_raw are mutually exclusive"}
	}
	if v, ok := m["default"]; ok {
		c.Default(v)
	}
	if hasRaw {
		expr, err := mapString(m, "default_raw", true)
		if err != nil {
			return nil, err
		}
		c.DefaultRaw(expr)
	}
	if s, err := mapString(m, "comment", false); err != nil {
		return nil, err
	} else if s != "" {
		c.Comment(s)
	}
	if s, err := mapString(m, "after", false); err != nil {
		return nil, err
	} else if s != "" {
		c.After(s)
	}
	if c.err != nil {
		return nil, c.err
	}
	return c, nil
}

// IndexFromMap builds an index from a decoded YAML or JSON object.
//
// Recognized keys: kind (default "index"), name, columns, table, references
// (an object with table and columns), on_delete, on_update.
func IndexFromMap(m map[string]any) (*Index, error) {
	if err := checkKeys("index", m, indexKeys); err != nil {
		return nil, err
	}
	kind, err := mapString(m, "kind", false)
	if err != nil {
		return nil, err
	}
	if kind == "" {
		kind = string(dialect.IndexPlain)
	}
	cols, err := mapStrings(m, "columns")
	if err != nil {
		return nil, err
	}
	spec := IndexSpec{Kind: dialect.IndexKind(strings.ToLower(kind)), Columns: cols}
	if spec.Name, err = mapString(m, "name", false); err != nil {
		return nil, err
	}
	if spec.Table, err = mapString(m, "table", false); err != nil {
		return nil, err
	}
	if spec.OnDelete, err = mapString(m, "on_delete", false); err != nil {
		return nil, err
	}
	if spec.OnUpdate, err = mapString(m, "on_update", false); err != nil {
		return nil, err
	}
	if raw, ok := m["references"]; ok && raw != nil {
		ref, ok := raw.(map[string]any)
		if !ok {
			return nil, wrongType("references", raw, "an object")
		}
		if err := checkKeys("references", ref, refKeys); err != nil {
			return nil, err
		}
		if spec.RefTable, err = mapString(ref, "table", true); err != nil {
			return nil, err
		}
		if spec.RefColumns, err = mapStrings(ref, "columns"); err != nil {
			return nil, err
		}
	}
	ix := IndexFromSpec(spec)
	if ix.err != nil {
		return nil, ix.err
	}
	if len(spec.Columns) == 0 {
		return nil, &dialect.SpecError{Field: "index columns", Value: spec.Name, Reason: "at least one column is required"}
	}
	return ix, nil
}

var (
	columnKeys = keySet("name", "type", "length", "nullable", "unique", "unsigned",
		"default", "default_raw", "comment", "first", "after")
	indexKeys = keySet("kind", "name", "columns", "table", "references", "on_delete", "on_update")
	refKeys   = keySet("table", "columns")
)

func keySet(keys ...string) map[string]struct{} {
	out := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		out[k] = struct{}{}
	}
	return out
}

// checkKeys reports the first unknown key in sorted order so errors are
// stable.
func checkKeys(what string, m map[string]any, allowed map[string]struct{}) error {
	var unknown []string
	for k := range m {
		if _, ok := allowed[k]; !ok {
			unknown = append(unknown, k)
		}
	}
	if len(unknown) == 0 {
		return nil
	}
	sort.Strings(unknown)
	return &dialect.SpecError{Field: what + " key", Value: unknown[0], Reason: "unknown key"}
}

func wrongType(key string, v any, want string) error {
	return &dialect.SpecError{Field: key, Value: fmt.Sprintf("%v", v), Reason: fmt.Sprintf("got %T, want %s", v, want)}
}

func mapString(m map[string]any, key string, required bool) (string, error) {
	v, ok := m[key]
	if !ok || v == nil {
		if required {
			return "", &dialect.SpecError{Field: key, Value: "", Reason: "is required"}
		}
		return "", nil
	}
	s, ok := v.(string)
	if !ok {
		return "", wrongType(key, v, "a string")
	}
	return s, nil
}

func mapBool(m map[string]any, key string) (bool, error) {
	v, ok := m[key]
	if !ok || v == nil {
		return false, nil
	}
	b, ok := v.(bool)
	if !ok {
		return false, wrongType(key, v, "a boolean")
	}
	return b, nil
}

// mapStrings accepts a list of strings or a single comma-separated string.
func mapStrings(m map[string]any, key string) ([]string, error) {
	v, ok := m[key]
	if !ok || v == nil {
		return nil, nil
	}
	switch x := v.(type) {
	case string:
		var out []string
		for _, p := range strings.Split(x, ",") {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
		return out, nil
	case []string:
		return append([]string(nil), x...), nil
	case []any:
		out := make([]string, 0, len(x))
		for _, e := range x {
			s, ok := e.(string)
			if !ok {
				return nil, wrongType(key, e, "a list of strings")
			}
			out = append(out, s)
		}
		return out, nil
	}
	return nil, wrongType(key, v, "a list of strings")
}

func parseLength(v any) (dialect.Length, error) {
	switch x := v.(type) {
	case string:
		p, s, pair := strings.Cut(x, ",")
		size, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return dialect.Length{}, wrongType("length", v, "an integer or \"p,s\"")
		}
		if !pair {
			return dialect.Size(size), nil
		}
		scale, err := strconv.Atoi(strings.TrimSpace(s))
		if err != nil {
			return dialect.Length{}, wrongType("length", v, "an integer or \"p,s\"")
		}
		return dialect.Precision(size, scale), nil
	case []any:
		if len(x) != 2 {
			return dialect.Length{}, wrongType("length", v, "a [precision, scale] pair")
		}
		p, ok1 := toInt(x[0])
		s, ok2 := toInt(x[1])
		if !ok1 || !ok2 {
			return dialect.Length{}, wrongType("length", v, "a [precision, scale] pair")
		}
		return dialect.Precision(p, s), nil
	}
	n, ok := toInt(v)
	if !ok {
		return dialect.Length{}, wrongType("length", v, "an integer")
	}
	return dialect.Size(n), nil
}

// toInt accepts the integer shapes produced by yaml.v3 and encoding/json.
func toInt(v any) (int, bool) {
	switch x := v.(type) {
	case int:
		return x, true
	case int64:
		return int(x), true
	case uint64:
		return int(x), true
	case float64:
		if x != math.Trunc(x) {
			return 0, false
		}
		return int(x), true
	}
	return 0, false
}
