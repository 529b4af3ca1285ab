package dialect

import (
	"database/sql/driver"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"
	"time"
)

// Raw is SQL text that is rendered verbatim instead of being quoted.
type Raw string

// TimeLayout is the literal format used for time.Time values.
const TimeLayout = "2006-01-02 15:04:05.999999"

// exprChars mark an identifier as an expression that must not be quoted.
// Operators only count when spaced out, so "first-name" is still a name.
const exprChars = "()', \t\r\n"

// QuoteIdent quotes each dot-separated segment of id. Wildcards, segments
// that are already quoted and expression-like input pass through unchanged.
// "expr AS alias" quotes both sides.
func (d *Dialect) QuoteIdent(id string) string {
	id = strings.TrimSpace(id)
	if id == "" || id == "*" {
		return id
	}
	if left, right, ok := splitAlias(id); ok {
		return d.QuoteIdent(left) + " AS " + d.QuoteIdent(right)
	}
	if d.isQuoted(id) || strings.ContainsAny(id, exprChars) {
		return id
	}
	parts := strings.Split(id, ".")
	for i, p := range parts {
		parts[i] = d.quoteSegment(p)
	}
	return strings.Join(parts, ".")
}

// QuoteIdents quotes every identifier in ids.
func (d *Dialect) QuoteIdents(ids ...string) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = d.QuoteIdent(id)
	}
	return out
}

// QuoteIdentList quotes ids and joins them with ", ".
func (d *Dialect) QuoteIdentList(ids []string) string {
	return strings.Join(d.QuoteIdents(ids...), ", ")
}

func (d *Dialect) quoteSegment(s string) string {
	if s == "*" || d.isQuoted(s) {
		return s
	}
	esc := strings.ReplaceAll(s, d.Quote.Close, d.Quote.Close+d.Quote.Close)
	return d.Quote.Open + esc + d.Quote.Close
}

func (d *Dialect) isQuoted(s string) bool {
	return len(s) >= 2 && strings.HasPrefix(s, d.Quote.Open) && strings.HasSuffix(s, d.Quote.Close)
}

// splitAlias splits "expr AS alias" on the last case-insensitive " AS ".
func splitAlias(id string) (string, string, bool) {
	i := strings.LastIndex(strings.ToUpper(id), " AS ")
	if i <= 0 {
		return "", "", false
	}
	left := strings.TrimSpace(id[:i])
	right := strings.TrimSpace(id[i+4:])
	if left == "" || right == "" || strings.ContainsAny(right, exprChars) {
		return "", "", false
	}
	return left, right, true
}

// CheckIdent rejects identifiers that cannot name a table or column.
func CheckIdent(id string) error {
	switch {
	case strings.TrimSpace(id) == "":
		return &SpecError{Field: "identifier", Value: id, Reason: "must not be empty"}
	case strings.ContainsRune(id, 0):
		return &SpecError{Field: "identifier", Value: id, Reason: "contains a NUL byte"}
	}
	for _, seg := range strings.Split(id, ".") {
		if strings.TrimSpace(seg) == "" {
			return &SpecError{Field: "identifier", Value: id, Reason: "has an empty segment"}
		}
	}
	return nil
}

// Literal renders s as a string literal using the dialect escaping rules.
func (d *Dialect) Literal(s string) string {
	if d.Render.Literal != nil {
		return d.Render.Literal(d, s)
	}
	return DefaultLiteral(s)
}

// DefaultLiteral wraps s in single quotes, doubling embedded quotes.
func DefaultLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// QuoteValue renders v as a SQL literal.
func (d *Dialect) QuoteValue(v any) (string, error) {
	switch x := v.(type) {
	case nil:
		return "NULL", nil
	case Raw:
		return string(x), nil
	case bool:
		if x {
			return d.TrueLiteral, nil
		}
		return d.FalseLiteral, nil
	case int:
		return strconv.FormatInt(int64(x), 10), nil
	case int8:
		return strconv.FormatInt(int64(x), 10), nil
	case int16:
		return strconv.FormatInt(int64(x), 10), nil
	case int32:
		return strconv.FormatInt(int64(x), 10), nil
	case int64:
		return strconv.FormatInt(x, 10), nil
	case uint:
		return strconv.FormatUint(uint64(x), 10), nil
	case uint8:
		return strconv.FormatUint(uint64(x), 10), nil
	case uint16:
		return strconv.FormatUint(uint64(x), 10), nil
	case uint32:
		return strconv.FormatUint(uint64(x), 10), nil
	case uint64:
		return strconv.FormatUint(x, 10), nil
	case float32:
		return formatFloat(float64(x), 32, v)
	case float64:
		return formatFloat(x, 64, v)
	case string:
		return d.Literal(x), nil
	case []byte:
		return d.Literal(string(x)), nil
	case time.Time:
		return d.Literal(x.Format(TimeLayout)), nil
	case driver.Valuer:
		val, err := x.Value()
		if err != nil {
			return "", &ValueError{Value: v, Err: err}
		}
		return d.QuoteValue(val)
	case fmt.Stringer:
		return d.Literal(x.String()), nil
	}
	return d.quoteReflect(v)
}

// quoteReflect handles named types whose underlying kind is quotable.
func (d *Dialect) quoteReflect(v any) (string, error) {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.FormatInt(rv.Int(), 10), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return strconv.FormatUint(rv.Uint(), 10), nil
	case reflect.Float32, reflect.Float64:
		return formatFloat(rv.Float(), 64, v)
	case reflect.Bool:
		return d.QuoteValue(rv.Bool())
	case reflect.String:
		return d.Literal(rv.String()), nil
	case reflect.Pointer:
		if rv.IsNil() {
			return "NULL", nil
		}
		return d.QuoteValue(rv.Elem().Interface())
	}
	return "", &ValueError{Value: v}
}

func formatFloat(f float64, bits int, orig any) (string, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return "", &ValueError{Value: orig, Err: fmt.Errorf("%v has no SQL literal", f)}
	}
	return strconv.FormatFloat(f, 'g', -1, bits), nil
}
