package mysql

import (
	"strings"

	"courtetl/internal/storage"
)

// Dialect renders MySQL DDL. Data columns are LONGTEXT since opinion bodies
// exceed TEXT's 64 KiB.
type Dialect struct{}

// CreateTable renders CREATE TABLE IF NOT EXISTS with backtick quoting.
func (Dialect) CreateTable(table string, columns []storage.Column) string {
	defs := make([]string, len(columns))
	for i, c := range columns {
		typ := "LONGTEXT NULL"
		if c.Int {
			typ = "BIGINT NOT NULL"
		}
		defs[i] = quoteIdent(c.Name) + " " + typ
	}
	return "CREATE TABLE IF NOT EXISTS " + storage.QuoteWith(table, "`", "`") +
		" (" + strings.Join(defs, ", ") + ") DEFAULT CHARSET=utf8mb4"
}
