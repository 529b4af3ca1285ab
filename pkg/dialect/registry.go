package dialect

import (
	"fmt"
	"sort"
	"sync"
)

var (
	registryMu sync.RWMutex
	registry   = map[string]*Dialect{}
)

// Register makes d available under its name and aliases. Registering a name
// again replaces the previous dialect.
func Register(d *Dialect) {
	if d == nil || d.Name == "" {
		panic("dialect: Register called with an unnamed dialect")
	}
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[normalizeName(string(d.Name))] = d
	for _, a := range d.Aliases {
		registry[normalizeName(a)] = d
	}
}

// Get returns the dialect registered under a driver name or alias.
func Get(driver string) (*Dialect, error) {
	registryMu.RLock()
	d, ok := registry[normalizeName(driver)]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("dialect %q: %w", driver, ErrUnknownDialect)
	}
	return d, nil
}

// MustGet is Get for package-level wiring; it panics on unknown names.
func MustGet(driver string) *Dialect {
	d, err := Get(driver)
	if err != nil {
		panic(err)
	}
	return d
}

// List returns the canonical names of all registered dialects, sorted.
func List() []Name {
	registryMu.RLock()
	defer registryMu.RUnlock()
	seen := make(map[Name]struct{}, len(registry))
	out := make([]Name, 0, len(registry))
	for _, d := range registry {
		if _, ok := seen[d.Name]; ok {
			continue
		}
		seen[d.Name] = struct{}{}
		out = append(out, d.Name)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
