package query

import (
	"fmt"
	"strings"

	"querykit/pkg/dialect"
)

// finish converts "?"-form SQL into the output form: rebound placeholders
// with args in parameterized mode, inlined literals otherwise.
func (b *Builder) finish(sql string, args []any) (string, []any, error) {
	if b.params {
		return b.d.Rebind(sql), args, nil
	}
	out, err := Inline(b.d, sql, args)
	if err != nil {
		return "", nil, err
	}
	return out, nil, nil
}

// Inline replaces each "?" placeholder in sql with the dialect literal of
// the matching argument. Marks inside quoted strings or quoted identifiers
// are left alone. The number of marks must equal len(args).
func Inline(d *dialect.Dialect, sql string, args []any) (string, error) {
	if len(args) == 0 && !strings.Contains(sql, "?") {
		return sql, nil
	}
	out, n, err := rewriteMarks(sql, func(n int) (string, error) {
		if n >= len(args) {
			return "", fmt.Errorf("query: %d placeholders for %d arguments", n+1, len(args))
		}
		lit, err := d.QuoteValue(args[n])
		if err != nil {
			return "", fmt.Errorf("query: argument %d: %w", n+1, err)
		}
		return lit, nil
	})
	if err != nil {
		return "", err
	}
	if n != len(args) {
		return "", fmt.Errorf("query: %d placeholders for %d arguments", n, len(args))
	}
	return out, nil
}

// inlineRaw substitutes dialect.Raw arguments into expr at their "?" marks
// and returns the arguments left to bind. Unmatched marks and surplus
// arguments are kept so the count mismatch is still reported.
func inlineRaw(expr string, args []any) (string, []any) {
	var rest []any
	out, n, _ := rewriteMarks(expr, func(n int) (string, error) {
		if n >= len(args) {
			return "?", nil
		}
		if r, ok := args[n].(dialect.Raw); ok {
			return string(r), nil
		}
		rest = append(rest, args[n])
		return "?", nil
	})
	if n < len(args) {
		rest = append(rest, args[n:]...)
	}
	return out, rest
}

// rewriteMarks calls fn with the ordinal of every "?" outside quoted text
// and writes its result in place of the mark.
func rewriteMarks(sql string, fn func(n int) (string, error)) (string, int, error) {
	var (
		sb  strings.Builder
		n   int
		end byte
	)
	sb.Grow(len(sql) + 16)
	for i := 0; i < len(sql); i++ {
		c := sql[i]
		if end != 0 {
			sb.WriteByte(c)
			if c == end {
				end = 0
			}
			continue
		}
		switch c {
		case '\'', '"', '`':
			end = c
		case '[':
			end = ']'
		case '?':
			rep, err := fn(n)
			if err != nil {
				return "", n, err
			}
			sb.WriteString(rep)
			n++
			continue
		}
		sb.WriteByte(c)
	}
	return sb.String(), n, nil
}
