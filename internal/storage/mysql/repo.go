// Package mysql implements a MySQL/MariaDB storage.Repository on
// go-sql-driver/mysql. Bulk loads go through the generic multi-row INSERT
// path of the storage package.
package mysql

import (
	"context"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"

	"querykit/internal/storage"
	"querykit/pkg/dialect"
	_ "querykit/pkg/dialect/mysql"
)

// Config holds MySQL repository configuration.
type Config struct {
	DSN         string // e.g. "user:pass@tcp(localhost:3306)/app"
	PingTimeout time.Duration
}

// Repository is a MySQL-backed storage.Repository.
type Repository struct {
	*storage.DB
}

// normalizeDSN validates dsn and turns on parseTime so DATETIME columns scan
// into time.Time.
func normalizeDSN(dsn string) (string, error) {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return "", err
	}
	cfg.ParseTime = true
	return cfg.FormatDSN(), nil
}

// NewRepository validates the DSN, opens a handle, checks it and returns the
// repository plus a Close function for cleanup.
func NewRepository(ctx context.Context, cfg Config) (*Repository, func(), error) {
	dsn, err := normalizeDSN(cfg.DSN)
	if err != nil {
		return nil, nil, fmt.Errorf("mysql dsn: %w", err)
	}
	db, err := sqlx.Open("mysql", dsn)
	if err != nil {
		return nil, nil, fmt.Errorf("mysql: open: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, storage.Config{PingTimeout: cfg.PingTimeout}.Timeout())
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("mysql: ping: %w", err)
	}
	r := &Repository{DB: storage.NewDB(dialect.MustGet(string(dialect.MySQL)), db)}
	return r, r.DB.Close, nil
}
