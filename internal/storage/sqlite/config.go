package sqlite

import (
	"strings"
	"time"
)

// Config holds SQLite repository configuration derived from storage.Config.
type Config struct {
	// DSN is a SQLite connection string or file path, e.g.:
	//   "file:app.db?_pragma=busy_timeout(5000)"
	//   "app.db"
	//   ":memory:"
	DSN string

	PingTimeout time.Duration
}

// inMemory reports whether every connection would open its own private
// database, in which case the pool is limited to one connection.
func (c Config) inMemory() bool {
	dsn := strings.TrimSpace(c.DSN)
	return dsn == ":memory:" ||
		strings.HasPrefix(dsn, "file::memory:") ||
		(strings.Contains(dsn, "mode=memory") && !strings.Contains(dsn, "cache=shared"))
}
