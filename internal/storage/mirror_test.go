package storage

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"

	"courtetl/internal/config"
	"courtetl/internal/frame"
	"courtetl/internal/logger"
)

type fakeRepo struct {
	mu      sync.Mutex
	execs   []string
	rows    [][]any
	batches int
	failAt  int
	closed  bool
}

func (r *fakeRepo) CopyFrom(_ context.Context, _ []string, rows [][]any) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.batches++
	if r.failAt > 0 && r.batches == r.failAt {
		return 0, errors.New("disk full")
	}
	for _, row := range rows {
		r.rows = append(r.rows, append([]any(nil), row...))
	}
	return int64(len(rows)), nil
}

func (r *fakeRepo) Exec(_ context.Context, sql string) error {
	r.execs = append(r.execs, sql)
	return nil
}

func (r *fakeRepo) Close() { r.closed = true }

type fakeDialect struct{}

func (fakeDialect) CreateTable(table string, cols []Column) string {
	names := make([]string, len(cols))
	for i, c := range cols {
		names[i] = c.Name
		if c.Int {
			names[i] += ":int"
		}
	}
	return "create " + table + "(" + strings.Join(names, ",") + ")"
}

func registerFake(t *testing.T, kind string, repo *fakeRepo) {
	t.Helper()
	Register(kind, func(context.Context, Config) (Repository, error) { return repo, nil }, fakeDialect{})
}

func opinionsFrame() *frame.Frame {
	f := frame.New("id", "plain_text")
	_ = f.AppendStrings(0, "10", "first")
	_ = f.Append(4, []frame.Value{frame.Str("11"), frame.Null})
	_ = f.AppendStrings(7, "12", "third")
	return f
}

func TestMirrorCopiesIndexAndCells(t *testing.T) {
	t.Parallel()

	repo := &fakeRepo{}
	registerFake(t, "fake-mirror", repo)
	cfg := config.Storage{Kind: "fake-mirror", DB: config.DBConfig{DSN: "x", Table: "opinions", AutoCreateTable: true, BatchSize: 2}}

	n, err := Mirror(context.Background(), logger.NopLogger, "judges", cfg, opinionsFrame())
	if err != nil {
		t.Fatalf("Mirror: %v", err)
	}
	if n != 3 {
		t.Fatalf("rows = %d, want 3", n)
	}
	if diff := cmp.Diff([]string{"create opinions(row_index:int,id,plain_text)"}, repo.execs); diff != "" {
		t.Fatalf("ddl (-want +got):\n%s", diff)
	}
	want := [][]any{
		{int64(0), "10", "first"},
		{int64(4), "11", nil},
		{int64(7), "12", "third"},
	}
	if diff := cmp.Diff(want, repo.rows); diff != "" {
		t.Fatalf("rows (-want +got):\n%s", diff)
	}
	if repo.batches != 2 {
		t.Fatalf("batches = %d, want 2", repo.batches)
	}
	if !repo.closed {
		t.Fatal("repository not closed")
	}
}

func TestMirrorWithoutAutoCreateRunsNoDDL(t *testing.T) {
	t.Parallel()

	repo := &fakeRepo{}
	registerFake(t, "fake-noddl", repo)
	cfg := config.Storage{Kind: "fake-noddl", DB: config.DBConfig{DSN: "x", Table: "t"}}
	if _, err := Mirror(context.Background(), logger.NopLogger, "judges", cfg, opinionsFrame()); err != nil {
		t.Fatalf("Mirror: %v", err)
	}
	if len(repo.execs) != 0 {
		t.Fatalf("unexpected DDL: %v", repo.execs)
	}
}

func TestMirrorPropagatesCopyError(t *testing.T) {
	t.Parallel()

	repo := &fakeRepo{failAt: 2}
	registerFake(t, "fake-fail", repo)
	cfg := config.Storage{Kind: "fake-fail", DB: config.DBConfig{DSN: "x", Table: "t", BatchSize: 1}}
	_, err := Mirror(context.Background(), logger.NopLogger, "judges", cfg, opinionsFrame())
	if err == nil || !strings.Contains(err.Error(), "disk full") {
		t.Fatalf("want copy error, got %v", err)
	}
}

func TestNewUnknownKind(t *testing.T) {
	t.Parallel()

	if _, err := New(context.Background(), Config{Kind: "oracle", Table: "t"}); err == nil {
		t.Fatal("want error for unregistered kind")
	}
}

func TestQuoteWith(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in, open, close, want string
	}{
		{"opinions", `"`, `"`, `"opinions"`},
		{"public.opinions", `"`, `"`, `"public"."opinions"`},
		{"dbo.a]b", "[", "]", "[dbo].[a]]b]"},
		{"a`b", "`", "`", "`a``b`"},
	}
	for _, tt := range tests {
		if got := QuoteWith(tt.in, tt.open, tt.close); got != tt.want {
			t.Errorf("QuoteWith(%q) = %s, want %s", tt.in, got, tt.want)
		}
	}
}
