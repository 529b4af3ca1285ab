package dialect

import (
	"sort"
	"strconv"
	"strings"
)

// ColumnType is an abstract column type, mapped to a concrete type name by
// each dialect's type table.
type ColumnType string

const (
	TypePrimary    ColumnType = "primary"
	TypeBigPrimary ColumnType = "bigprimary"
	TypeString     ColumnType = "string"
	TypeText       ColumnType = "text"
	TypeMediumText ColumnType = "mediumtext"
	TypeLongText   ColumnType = "longtext"
	TypeTinyInt    ColumnType = "tinyint"
	TypeSmallInt   ColumnType = "smallint"
	TypeInteger    ColumnType = "integer"
	TypeBigInt     ColumnType = "bigint"
	TypeFloat      ColumnType = "float"
	TypeDouble     ColumnType = "double"
	TypeDecimal    ColumnType = "decimal"
	TypeDateTime   ColumnType = "datetime"
	TypeTimestamp  ColumnType = "timestamp"
	TypeTime       ColumnType = "time"
	TypeDate       ColumnType = "date"
	TypeBinary     ColumnType = "binary"
	TypeBoolean    ColumnType = "boolean"
	TypeMoney      ColumnType = "money"
	TypeJSON       ColumnType = "json"
)

var columnTypes = []ColumnType{
	TypePrimary, TypeBigPrimary, TypeString, TypeText, TypeMediumText,
	TypeLongText, TypeTinyInt, TypeSmallInt, TypeInteger, TypeBigInt,
	TypeFloat, TypeDouble, TypeDecimal, TypeDateTime, TypeTimestamp,
	TypeTime, TypeDate, TypeBinary, TypeBoolean, TypeMoney, TypeJSON,
}

// typeAliases accepts the spellings commonly found in hand-written specs.
var typeAliases = map[string]ColumnType{
	"pk":          TypePrimary,
	"bigpk":       TypeBigPrimary,
	"big_primary": TypeBigPrimary,
	"varchar":     TypeString,
	"medium_text": TypeMediumText,
	"long_text":   TypeLongText,
	"int":         TypeInteger,
	"bool":        TypeBoolean,
	"blob":        TypeBinary,
}

// ColumnTypes returns every abstract column type.
func ColumnTypes() []ColumnType {
	return append([]ColumnType(nil), columnTypes...)
}

// Valid reports whether t is one of the enumerated column types.
func (t ColumnType) Valid() bool {
	for _, c := range columnTypes {
		if c == t {
			return true
		}
	}
	return false
}

// ParseColumnType resolves a type name (case-insensitive, aliases allowed).
func ParseColumnType(s string) (ColumnType, error) {
	n := normalizeName(s)
	if t := ColumnType(n); t.Valid() {
		return t, nil
	}
	if t, ok := typeAliases[n]; ok {
		return t, nil
	}
	return "", &SpecError{Field: "column type", Value: s, Reason: "unknown type"}
}

// Length is a column length: either a single size or a precision/scale
// pair. The zero value means "use the dialect default".
type Length struct {
	Size  int
	Scale int
	Pair  bool
}

// Size returns a single-value length.
func Size(n int) Length { return Length{Size: n} }

// Precision returns a precision/scale pair.
func Precision(p, s int) Length { return Length{Size: p, Scale: s, Pair: true} }

// IsZero reports whether no length was set.
func (l Length) IsZero() bool { return l.Size == 0 && !l.Pair }

// String renders the placeholder substitution: "255" or "10,2".
func (l Length) String() string {
	if l.Pair {
		return strconv.Itoa(l.Size) + "," + strconv.Itoa(l.Scale)
	}
	return strconv.Itoa(l.Size)
}

// LengthPlaceholder is replaced by the rendered Length in type templates.
const LengthPlaceholder = "{length}"

// TypeDef is one entry of a dialect type table.
type TypeDef struct {
	// Template is the concrete type, optionally containing {length}.
	Template string
	// Default length used when the caller supplies none.
	Default Length
	// Unsigned marks types that accept the UNSIGNED marker.
	Unsigned bool
	// Identity types carry their own key clauses; nullability, default and
	// unique settings are not rendered for them.
	Identity bool
}

// ResolveType renders the concrete type for t. The caller's length wins
// over the dialect default; templates without a placeholder ignore it.
func (d *Dialect) ResolveType(t ColumnType, l Length, unsigned bool) (string, TypeDef, error) {
	def, ok := d.Types[t]
	if !ok {
		if !t.Valid() {
			return "", TypeDef{}, &SpecError{Field: "column type", Value: string(t), Reason: "unknown type"}
		}
		return "", TypeDef{}, &UnsupportedError{Dialect: d.Name, Operation: Operation("column type " + string(t))}
	}
	out := def.Template
	if strings.Contains(out, LengthPlaceholder) {
		if l.IsZero() {
			l = def.Default
		}
		out = strings.ReplaceAll(out, LengthPlaceholder, l.String())
	}
	if unsigned && def.Unsigned {
		out += " unsigned"
	}
	return out, def, nil
}

// SortedTypes returns the keys of a type table in name order.
func SortedTypes(m map[ColumnType]TypeDef) []ColumnType {
	out := make([]ColumnType, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
