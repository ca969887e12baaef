// Package storage mirrors finished tables into a relational database. The
// CSV output stays the primary artifact; a database copy is optional per
// step.
//
// Backends register themselves by kind from their init functions; import
// courtetl/internal/storage/all to enable every built-in backend.
package storage

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/pkg/errors"
)

// Repository is the minimal surface a backend provides.
type Repository interface {
	// CopyFrom bulk-inserts rows into the configured table and returns the
	// number of rows written.
	CopyFrom(ctx context.Context, columns []string, rows [][]any) (int64, error)

	// Exec runs a single statement, typically DDL.
	Exec(ctx context.Context, sql string) error

	Close()
}

// Config selects and configures a backend.
type Config struct {
	Kind  string
	DSN   string
	Table string
}

// Factory opens a Repository for cfg.
type Factory func(ctx context.Context, cfg Config) (Repository, error)

// Dialect renders backend-specific SQL.
type Dialect interface {
	// CreateTable returns a statement that creates table with the given
	// columns when it does not already exist.
	CreateTable(table string, columns []Column) string
}

// Column is one destination column.
type Column struct {
	Name string
	// Int marks the row-index column; all other columns hold text.
	Int bool
}

type backend struct {
	open    Factory
	dialect Dialect
}

var (
	mu       sync.RWMutex
	backends = map[string]backend{}
)

// Register makes a backend available under kind. It is called from backend
// init functions; registering a kind twice replaces the earlier entry.
func Register(kind string, open Factory, d Dialect) {
	mu.Lock()
	defer mu.Unlock()
	backends[kind] = backend{open: open, dialect: d}
}

// Kinds lists the registered backends in sorted order.
func Kinds() []string {
	mu.RLock()
	defer mu.RUnlock()
	out := make([]string, 0, len(backends))
	for k := range backends {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func lookup(kind string) (backend, error) {
	mu.RLock()
	b, ok := backends[kind]
	mu.RUnlock()
	if !ok {
		return backend{}, errors.Errorf("storage: no backend registered for kind %q (have %s)", kind, strings.Join(Kinds(), ", "))
	}
	return b, nil
}

// New opens a Repository for cfg.Kind.
func New(ctx context.Context, cfg Config) (Repository, error) {
	b, err := lookup(cfg.Kind)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(cfg.Table) == "" {
		return nil, errors.New("storage: table must not be empty")
	}
	return b.open(ctx, cfg)
}

// EnsureTable creates table in repo when it does not exist, using the
// dialect registered for kind.
func EnsureTable(ctx context.Context, kind string, repo Repository, table string, columns []Column) error {
	b, err := lookup(kind)
	if err != nil {
		return err
	}
	if len(columns) == 0 {
		return errors.Errorf("storage: no columns for table %s", table)
	}
	return errors.Wrapf(repo.Exec(ctx, b.dialect.CreateTable(table, columns)), "create table %s", table)
}

// SplitFQN splits "schema.table" into its non-empty parts.
func SplitFQN(fqn string) []string {
	var out []string
	for _, p := range strings.Split(fqn, ".") {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// QuoteWith quotes every part of a dotted name with open/close, doubling any
// embedded close character.
func QuoteWith(fqn string, open, close string) string {
	parts := SplitFQN(fqn)
	for i, p := range parts {
		parts[i] = open + strings.ReplaceAll(p, close, close+close) + close
	}
	return strings.Join(parts, ".")
}
