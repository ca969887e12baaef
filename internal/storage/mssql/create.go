package mssql

import (
	"strings"

	"courtetl/internal/storage"
)

// Dialect renders SQL Server DDL.
type Dialect struct{}

// CreateTable guards CREATE TABLE with OBJECT_ID, since SQL Server has no
// IF NOT EXISTS for tables.
func (Dialect) CreateTable(table string, columns []storage.Column) string {
	defs := make([]string, len(columns))
	for i, c := range columns {
		typ := "NVARCHAR(MAX) NULL"
		if c.Int {
			typ = "BIGINT NOT NULL"
		}
		defs[i] = msIdent(c.Name) + " " + typ
	}
	fqn := storage.QuoteWith(table, "[", "]")
	return "IF OBJECT_ID(N'" + strings.ReplaceAll(fqn, "'", "''") + "', N'U') IS NULL\n" +
		"CREATE TABLE " + fqn + " (" + strings.Join(defs, ", ") + ");"
}
