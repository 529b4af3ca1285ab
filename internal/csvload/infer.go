package csvload

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// DefaultSampleRows is the number of records Infer reads when asked for zero.
const DefaultSampleRows = 1000

// maxStringLength is the widest column inferred as "string"; longer values
// make the column "text".
const maxStringLength = 255

// Only layouts every supported database accepts as a literal are inferred.
var (
	timestampLayouts = []string{time.RFC3339Nano, time.RFC3339, "2006-01-02 15:04:05", "2006-01-02T15:04:05"}
	dateLayouts      = []string{"2006-01-02"}
)

// Infer reads up to sample records (DefaultSampleRows when sample <= 0) after
// the header and returns one column in pkg/schema map form per header cell:
// name, type and, where it applies, length and nullable. A column is nullable
// when a sampled value is empty or equals opt.Null.
//
// Every non-empty value must fit a type for the column to get it; the
// candidates are tried from narrowest to widest: bigint, boolean, double,
// date, datetime, string and text. The sampled records are consumed, so a
// load needs a fresh Reader.
func (r *Reader) Infer(sample int) ([]map[string]any, error) {
	if sample <= 0 {
		sample = DefaultSampleRows
	}
	n := len(r.columns)
	cols := make([][]string, n)
	nullable := make([]bool, n)
	for read := 0; read < sample; {
		rec, err := r.read()
		if errors.Is(err, io.EOF) {
			break
		}
		var pe *csv.ParseError
		if err != nil && !errors.As(err, &pe) {
			return nil, fmt.Errorf("csvload: infer: %w", err)
		}
		if err != nil || len(rec) != n {
			continue
		}
		read++
		for i, v := range rec {
			v = strings.TrimSpace(v)
			if v == "" || (r.opt.Null != "" && v == r.opt.Null) {
				nullable[i] = true
				continue
			}
			cols[i] = append(cols[i], v)
		}
	}

	out := make([]map[string]any, n)
	for i, name := range r.columns {
		m := map[string]any{"name": name}
		typ, width := inferType(cols[i])
		m["type"] = typ
		if typ == "string" {
			m["length"] = width
		}
		if nullable[i] || len(cols[i]) == 0 {
			m["nullable"] = true
		}
		out[i] = m
	}
	return out, nil
}

// inferType picks the narrowest type all values satisfy. width is the
// suggested string length.
func inferType(values []string) (typ string, width int) {
	if len(values) == 0 {
		return "string", maxStringLength
	}
	switch {
	case allMatch(values, isInt):
		return "bigint", 0
	case allMatch(values, isBool):
		return "boolean", 0
	case allMatch(values, isNumber):
		return "double", 0
	case allMatch(values, isDate):
		return "date", 0
	case allMatch(values, isTimestamp):
		return "datetime", 0
	}
	longest := 0
	for _, v := range values {
		if l := len([]rune(v)); l > longest {
			longest = l
		}
	}
	if longest > maxStringLength {
		return "text", 0
	}
	return "string", maxStringLength
}

func allMatch(vals []string, fn func(string) bool) bool {
	for _, v := range vals {
		if !fn(v) {
			return false
		}
	}
	return true
}

func isInt(s string) bool {
	_, err := strconv.ParseInt(s, 10, 64)
	return err == nil
}

func isBool(s string) bool {
	switch strings.ToLower(s) {
	case "true", "false":
		return true
	}
	return false
}

func isNumber(s string) bool {
	_, err := strconv.ParseFloat(s, 64)
	return err == nil
}

func isDate(s string) bool { return parsesAs(s, dateLayouts) }

func isTimestamp(s string) bool { return parsesAs(s, timestampLayouts) || isDate(s) }

func parsesAs(s string, layouts []string) bool {
	for _, l := range layouts {
		if _, err := time.Parse(l, s); err == nil {
			return true
		}
	}
	return false
}

// NormalizeName turns header text into a lowercase ASCII identifier: accents
// are stripped, runs of spaces, dashes, dots and underscores become one
// underscore, and anything else is dropped. An empty result becomes "col".
// Names longer than 63 bytes keep their first 10 and last 53 bytes.
func NormalizeName(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	ascii, _, err := transform.String(t, strings.ToLower(strings.TrimSpace(s)))
	if err != nil {
		ascii = strings.ToLower(strings.TrimSpace(s))
	}

	var b strings.Builder
	underscore := false
	for _, r := range ascii {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			underscore = false
		case r == '_' || r == ' ' || r == '-' || r == '.':
			if !underscore {
				b.WriteByte('_')
				underscore = true
			}
		}
	}
	name := strings.Trim(b.String(), "_")
	switch {
	case name == "":
		return "col"
	case len(name) > 63:
		return name[:10] + name[len(name)-53:]
	}
	return name
}

// NormalizeColumns applies NormalizeName to every header name. It fails when
// two headers normalize to the same name.
func (r *Reader) NormalizeColumns() error {
	seen := make(map[string]string, len(r.columns))
	out := make([]string, len(r.columns))
	for i, c := range r.columns {
		n := NormalizeName(c)
		if prev, ok := seen[n]; ok {
			return fmt.Errorf("csvload: headers %q and %q both normalize to %q", prev, c, n)
		}
		seen[n] = c
		out[i] = n
	}
	r.columns = out
	return nil
}
