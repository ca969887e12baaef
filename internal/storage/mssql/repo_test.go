package mssql

import (
	"context"
	"testing"

	"courtetl/internal/storage"
)

func TestCreateTable(t *testing.T) {
	t.Parallel()

	got := Dialect{}.CreateTable("dbo.opinions", []storage.Column{{Name: "row_index", Int: true}, {Name: "a]b"}})
	want := "IF OBJECT_ID(N'[dbo].[opinions]', N'U') IS NULL\n" +
		"CREATE TABLE [dbo].[opinions] ([row_index] BIGINT NOT NULL, [a]]b] NVARCHAR(MAX) NULL);"
	if got != want {
		t.Fatalf("got\n%s\nwant\n%s", got, want)
	}
}

func TestAdapterRegistration(t *testing.T) {
	orig := newRepository
	defer func() { newRepository = orig }()

	var got Config
	closed := false
	newRepository = func(ctx context.Context, cfg Config) (*Repository, func(), error) {
		got = cfg
		return &Repository{}, func() { closed = true }, nil
	}
	want := storage.Config{Kind: "mssql", DSN: "sqlserver://sa:pw@localhost:1433?database=courts", Table: "dbo.opinions"}
	repo, err := storage.New(context.Background(), want)
	if err != nil {
		t.Fatalf("storage.New: %v", err)
	}
	if got.DSN != want.DSN || got.Table != want.Table {
		t.Fatalf("adapter passed %+v", got)
	}
	repo.Close()
	if !closed {
		t.Fatal("Close did not invoke closeFn")
	}
}

func TestEmptyCopyIsNoop(t *testing.T) {
	t.Parallel()

	n, err := (&Repository{}).CopyFrom(context.Background(), []string{"a"}, nil)
	if err != nil || n != 0 {
		t.Fatalf("CopyFrom = %d, %v", n, err)
	}
}
