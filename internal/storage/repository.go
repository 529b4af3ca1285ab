// Package storage executes rendered SQL against live databases.
//
// Each backend lives in its own subpackage and registers a Factory under the
// canonical dialect name in init. Callers import internal/storage/all (or a
// single backend) and call New with a Config; the returned Repository is a
// query.Executor bound to the dialect its SQL must be rendered for.
package storage

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"querykit/pkg/dialect"
	"querykit/pkg/query"
)

// Repository is a live database handle that runs SQL rendered for Dialect.
type Repository interface {
	query.Executor
	Dialect() *dialect.Dialect
	Close()
}

// Config selects and configures a backend.
type Config struct {
	// Kind is a dialect name or alias, e.g. "pgsql", "postgres", "sqlite3".
	Kind string

	// DSN is passed to the backend driver after validation.
	DSN string

	// PingTimeout bounds the connectivity check done by New. Zero means
	// DefaultPingTimeout.
	PingTimeout time.Duration
}

// DefaultPingTimeout is used when Config.PingTimeout is zero.
const DefaultPingTimeout = 5 * time.Second

// Timeout returns the effective ping timeout.
func (c Config) Timeout() time.Duration {
	if c.PingTimeout <= 0 {
		return DefaultPingTimeout
	}
	return c.PingTimeout
}

// Factory opens a Repository for cfg.
type Factory func(ctx context.Context, cfg Config) (Repository, error)

var (
	mu        sync.RWMutex
	factories = map[string]Factory{}
)

// Register makes a backend available under kind. Registering the same kind
// again replaces the previous factory.
func Register(kind string, f Factory) {
	mu.Lock()
	defer mu.Unlock()
	factories[strings.ToLower(strings.TrimSpace(kind))] = f
}

// New opens the backend registered for cfg.Kind. Dialect aliases resolve to
// the canonical name, so "postgres" finds the backend registered as "pgsql".
func New(ctx context.Context, cfg Config) (Repository, error) {
	f, ok := lookup(cfg.Kind)
	if !ok {
		return nil, fmt.Errorf("unsupported storage.kind=%s", cfg.Kind)
	}
	return f(ctx, cfg)
}

func lookup(kind string) (Factory, bool) {
	key := strings.ToLower(strings.TrimSpace(kind))
	mu.RLock()
	defer mu.RUnlock()
	if f, ok := factories[key]; ok {
		return f, true
	}
	d, err := dialect.Get(key)
	if err != nil {
		return nil, false
	}
	f, ok := factories[string(d.Name)]
	return f, ok
}

// ListKinds returns the registered kinds, sorted. The slice is a copy.
func ListKinds() []string {
	mu.RLock()
	defer mu.RUnlock()
	out := make([]string, 0, len(factories))
	for k := range factories {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
