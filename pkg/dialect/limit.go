package dialect

import (
	"strconv"
	"strings"
	"unicode"
)

// Kind is the statement kind derived from the leading keyword of SQL text.
type Kind string

const (
	KindSelect Kind = "SELECT"
	KindInsert Kind = "INSERT"
	KindUpdate Kind = "UPDATE"
	KindDelete Kind = "DELETE"
	KindOther  Kind = "OTHER"
)

// Page carries pagination bounds. Zero means unset.
type Page struct {
	Limit  int
	Offset int
	// Ordered reports whether the statement already has an ORDER BY.
	Ordered bool
}

// IsZero reports whether no pagination was requested.
func (p Page) IsZero() bool { return p.Limit <= 0 && p.Offset <= 0 }

// StatementKind inspects the normalized leading keyword of sql. A WITH
// prefix is skipped so the statement that follows the CTE list decides.
func StatementKind(sql string) Kind {
	words := topLevelWords(sql)
	if len(words) == 0 {
		return KindOther
	}
	if words[0] != "WITH" {
		return keywordKind(words[0])
	}
	for _, w := range words[1:] {
		if k := keywordKind(w); k != KindOther {
			return k
		}
	}
	return KindOther
}

func keywordKind(w string) Kind {
	switch w {
	case "SELECT", "VALUES":
		return KindSelect
	case "INSERT", "REPLACE", "MERGE":
		return KindInsert
	case "UPDATE":
		return KindUpdate
	case "DELETE":
		return KindDelete
	}
	return KindOther
}

// topLevelWords returns the upper-cased bare words of sql outside of
// parentheses and quoted sections. A statement that opens with a
// parenthesis (a parenthesized SELECT) yields the words inside it.
func topLevelWords(sql string) []string {
	s := strings.TrimLeftFunc(sql, func(r rune) bool { return unicode.IsSpace(r) || r == '(' })
	var (
		words []string
		cur   strings.Builder
		depth int
		quote rune
	)
	flush := func() {
		if cur.Len() > 0 {
			words = append(words, strings.ToUpper(cur.String()))
			cur.Reset()
		}
	}
	for _, r := range s {
		switch {
		case quote != 0:
			if r == quote {
				quote = 0
			}
			continue
		case r == '\'' || r == '"' || r == '`':
			flush()
			quote = r
		case r == '[':
			flush()
			quote = ']'
		case r == '(':
			flush()
			depth++
		case r == ')':
			flush()
			if depth > 0 {
				depth--
			}
		case depth > 0:
		case unicode.IsLetter(r) || r == '_':
			cur.WriteRune(r)
		default:
			flush()
		}
	}
	flush()
	return words
}

// Limit appends the dialect pagination clause to sql. Statements that are
// not SELECTs are returned unchanged.
func (d *Dialect) Limit(sql string, p Page) string {
	if p.IsZero() || StatementKind(sql) != KindSelect {
		return sql
	}
	if d.Render.Limit != nil {
		return d.Render.Limit(d, sql, p)
	}
	return DefaultLimit(d, sql, p)
}

// DefaultLimit renders "LIMIT n OFFSET m", omitting unset parts.
func DefaultLimit(_ *Dialect, sql string, p Page) string {
	var b strings.Builder
	b.WriteString(sql)
	if p.Limit > 0 {
		b.WriteString(" LIMIT ")
		b.WriteString(strconv.Itoa(p.Limit))
	}
	if p.Offset > 0 {
		b.WriteString(" OFFSET ")
		b.WriteString(strconv.Itoa(p.Offset))
	}
	return b.String()
}

// OffsetFetch renders the SQL:2008 "OFFSET m ROWS FETCH NEXT n ROWS ONLY"
// form shared by SQL Server and Oracle.
func OffsetFetch(sql string, p Page) string {
	var b strings.Builder
	b.WriteString(sql)
	b.WriteString(" OFFSET ")
	b.WriteString(strconv.Itoa(max(p.Offset, 0)))
	b.WriteString(" ROWS")
	if p.Limit > 0 {
		b.WriteString(" FETCH NEXT ")
		b.WriteString(strconv.Itoa(p.Limit))
		b.WriteString(" ROWS ONLY")
	}
	return b.String()
}
