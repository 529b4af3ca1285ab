package plan

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"querykit/pkg/dialect"
	"querykit/pkg/query"
	"querykit/pkg/schema"
)

// Result reports the outcome of one applied table or query.
type Result struct {
	Source string
	Verb   string
	// Rows is the affected row count for writes and the number of rows
	// returned for selects. Table results report the statement count.
	Rows int64
	// Data holds the rows of a select.
	Data []map[string]any
}

// Apply executes p against x, which must run SQL rendered for d. Tables are
// created first, then queries run in document order with bound arguments.
// Apply stops at the first failure and returns the results so far.
func Apply(ctx context.Context, p *Plan, d *dialect.Dialect, x query.Executor, log *slog.Logger) ([]Result, error) {
	if log == nil {
		log = slog.Default()
	}
	sb := schema.New(d, schema.WithExecutor(x), schema.WithLogger(log))

	var results []Result
	for i := range p.Tables {
		t := &p.Tables[i]
		stmts, err := tableStatements(sb, t)
		if err != nil {
			return results, err
		}
		sqls := make([]string, len(stmts))
		for j, st := range stmts {
			sqls[j] = st.SQL
		}
		start := time.Now()
		if err := sb.Apply(ctx, sqls...); err != nil {
			return results, fmt.Errorf("table %s: %w", t.Name, err)
		}
		log.InfoContext(ctx, "plan: table applied", "table", t.Name, "statements", len(sqls), "elapsed", time.Since(start).Truncate(time.Millisecond))
		results = append(results, Result{Source: "table " + t.Name, Verb: "create", Rows: int64(len(sqls))})
	}

	for i := range p.Queries {
		q := &p.Queries[i]
		if !q.For(d) {
			log.DebugContext(ctx, "plan: query skipped", "query", q.label(), "dialect", d.Name)
			continue
		}
		start := time.Now()
		res, err := q.apply(ctx, query.New(d, query.WithExecutor(x), query.WithLogger(log), query.Parameterized()))
		if err != nil {
			return results, fmt.Errorf("query %s: %w", q.label(), err)
		}
		log.InfoContext(ctx, "plan: query applied", "query", q.label(), "verb", res.Verb, "rows", res.Rows, "elapsed", time.Since(start).Truncate(time.Millisecond))
		results = append(results, res)
	}
	return results, nil
}

func (q *Query) apply(ctx context.Context, b *query.Builder) (Result, error) {
	verb, err := q.configure(b)
	if err != nil {
		return Result{}, err
	}
	res := Result{Source: "query " + q.label(), Verb: verb}
	switch verb {
	case VerbSelect:
		rows, err := b.Rows(ctx)
		if err != nil {
			return Result{}, err
		}
		res.Rows, res.Data = int64(len(rows)), rows
		return res, nil
	case VerbInsert:
		res.Rows, err = b.Insert(ctx, q.Replace)
	case VerbUpdate:
		res.Rows, err = b.Update(ctx)
	case VerbDelete:
		res.Rows, err = b.Delete(ctx)
	case VerbTruncate:
		res.Rows, err = b.Truncate(ctx)
	case VerbSQL:
		res.Rows, err = b.Execute(ctx, q.SQL, q.Args...)
	}
	if err != nil {
		return Result{}, err
	}
	return res, nil
}
