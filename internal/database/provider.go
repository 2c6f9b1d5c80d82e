package database

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/kozaktomas/samephoto/internal/config"
)

// Backend names.
const (
	BackendPostgres = "postgres"
	BackendMariaDB  = "mariadb"
	BackendSQLite   = "sqlite"
)

// ErrNoDatabase is returned by Open when no database URL is configured.
var ErrNoDatabase = errors.New("no database configured: DATABASE_URL is empty")

// Opener connects to a backend and prepares its schema.
type Opener func(ctx context.Context, cfg *config.DatabaseConfig) (Store, error)

var (
	backendsMu sync.RWMutex
	backends   = make(map[string]Opener)
)

// RegisterBackend registers a store opener under a backend name.
// This is called by the backend packages from init to avoid import cycles.
func RegisterBackend(name string, open Opener) {
	backendsMu.Lock()
	defer backendsMu.Unlock()
	backends[name] = open
}

// Backends returns the names of the registered backends.
func Backends() []string {
	backendsMu.RLock()
	defer backendsMu.RUnlock()

	names := make([]string, 0, len(backends))
	for name := range backends {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// BackendFor returns the backend name for a database URL.
//
//	postgres://... or postgresql://...      -> postgres
//	mysql://... or mariadb://...            -> mariadb
//	sqlite://..., file:... or *.db/*.sqlite -> sqlite
func BackendFor(url string) (string, error) {
	lower := strings.ToLower(url)
	switch {
	case strings.HasPrefix(lower, "postgres://"), strings.HasPrefix(lower, "postgresql://"):
		return BackendPostgres, nil
	case strings.HasPrefix(lower, "mysql://"), strings.HasPrefix(lower, "mariadb://"):
		return BackendMariaDB, nil
	case strings.HasPrefix(lower, "sqlite://"), strings.HasPrefix(lower, "file:"),
		strings.HasSuffix(lower, ".db"), strings.HasSuffix(lower, ".sqlite"):
		return BackendSQLite, nil
	default:
		return "", fmt.Errorf("unsupported database URL %q", url)
	}
}

// TrimScheme strips a "scheme://" prefix from a database URL.
func TrimScheme(url string) string {
	if _, rest, ok := strings.Cut(url, "://"); ok {
		return rest
	}
	return url
}

// Open connects to the backend selected by cfg.URL.
func Open(ctx context.Context, cfg *config.DatabaseConfig) (Store, error) {
	if cfg == nil || cfg.URL == "" {
		return nil, ErrNoDatabase
	}

	name, err := BackendFor(cfg.URL)
	if err != nil {
		return nil, err
	}

	backendsMu.RLock()
	open, ok := backends[name]
	backendsMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%s backend not registered", name)
	}

	store, err := open(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s store: %w", name, err)
	}
	return store, nil
}
