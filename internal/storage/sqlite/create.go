package sqlite

import (
	"strings"

	"courtetl/internal/storage"
)

// Dialect renders SQLite DDL.
type Dialect struct{}

// CreateTable renders CREATE TABLE IF NOT EXISTS; the row index is INTEGER
// NOT NULL and data columns are TEXT.
func (Dialect) CreateTable(table string, columns []storage.Column) string {
	defs := make([]string, len(columns))
	for i, c := range columns {
		typ := "TEXT"
		if c.Int {
			typ = "INTEGER NOT NULL"
		}
		defs[i] = quoteIdent(c.Name) + " " + typ
	}
	return "CREATE TABLE IF NOT EXISTS " + storage.QuoteWith(table, `"`, `"`) + " (" + strings.Join(defs, ", ") + ")"
}
