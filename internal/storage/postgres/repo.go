// Package postgres implements a PostgreSQL storage.Repository on pgx v5.
//
// Statements run through database/sql on top of a pgxpool.Pool, so every
// dialect shares the same executor code; bulk loads bypass it and use the
// COPY protocol of the pool directly.
package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"

	"querykit/internal/storage"
	"querykit/pkg/dialect"
	_ "querykit/pkg/dialect/postgres"
)

// Config holds Postgres repository configuration.
type Config struct {
	DSN         string // connection string for pgxpool
	PingTimeout time.Duration
}

// Repository is a Postgres-backed storage.Repository.
type Repository struct {
	*storage.DB
	pool *pgxpool.Pool
}

// NewRepository opens a pool, checks connectivity and returns the repository
// plus a Close function for cleanup.
func NewRepository(ctx context.Context, cfg Config) (*Repository, func(), error) {
	pcfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, nil, fmt.Errorf("postgres dsn: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, pcfg)
	if err != nil {
		return nil, nil, fmt.Errorf("pgxpool: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, storage.Config{PingTimeout: cfg.PingTimeout}.Timeout())
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("postgres: ping: %w", err)
	}

	db := sqlx.NewDb(stdlib.OpenDBFromPool(pool), "pgx")
	r := &Repository{DB: storage.NewDB(dialect.MustGet(string(dialect.PostgreSQL)), db), pool: pool}
	closeFn := func() {
		r.DB.Close()
		pool.Close()
	}
	return r, closeFn, nil
}

// CopyFrom bulk-loads rows into table with the COPY protocol. table may be
// schema-qualified ("public.events").
func (r *Repository) CopyFrom(ctx context.Context, table string, columns []string, rows [][]any) (int64, error) {
	if len(columns) == 0 {
		return 0, fmt.Errorf("postgres: CopyFrom: columns must not be empty")
	}
	if len(rows) == 0 {
		return 0, nil
	}
	n, err := r.pool.CopyFrom(ctx, Identifier(table), columns, pgx.CopyFromRows(rows))
	if err != nil {
		return n, fmt.Errorf("postgres: copy %s: %w", table, err)
	}
	return n, nil
}

// Identifier splits a dotted table name into a pgx identifier.
func Identifier(table string) pgx.Identifier {
	return pgx.Identifier(strings.Split(table, "."))
}
