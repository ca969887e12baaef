package postgres

import (
	"strings"

	"courtetl/internal/storage"
)

// Dialect renders Postgres DDL.
type Dialect struct{}

// CreateTable renders CREATE TABLE IF NOT EXISTS with double-quoted
// identifiers. The row index is BIGINT NOT NULL; data columns are TEXT.
func (Dialect) CreateTable(table string, columns []storage.Column) string {
	defs := make([]string, len(columns))
	for i, c := range columns {
		if c.Int {
			defs[i] = quoteIdent(c.Name) + " BIGINT NOT NULL"
		} else {
			defs[i] = quoteIdent(c.Name) + " TEXT"
		}
	}
	return "CREATE TABLE IF NOT EXISTS " + storage.QuoteWith(table, `"`, `"`) +
		" (\n  " + strings.Join(defs, ",\n  ") + "\n);"
}

func quoteIdent(id string) string { return `"` + strings.ReplaceAll(id, `"`, `""`) + `"` }
