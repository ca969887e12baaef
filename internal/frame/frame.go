// Package frame implements the small in-memory table used by the pipeline:
// ordered named columns, a per-row integer index, and rows of nullable string
// cells. It provides the relational primitives the transforms are built from
// (null filters, membership filters, projection, inner merge, accumulation).
package frame

import (
	"strings"

	"github.com/pkg/errors"
)

var (
	// ErrColumnNotFound is returned when a step references a column the
	// table does not have.
	ErrColumnNotFound = errors.New("column not found")

	// ErrSchemaMismatch is returned when rows or tables with a different
	// column layout are combined.
	ErrSchemaMismatch = errors.New("schema mismatch")
)

// Value is a nullable cell.
type Value struct {
	S     string
	Valid bool
}

// Null is the missing value.
var Null = Value{}

// Str returns a non-null cell holding s.
func Str(s string) Value { return Value{S: s, Valid: true} }

// IsNull reports whether v is missing.
func (v Value) IsNull() bool { return !v.Valid }

// Any returns nil for a null cell and the string otherwise. It is the form
// database drivers and pgx COPY expect.
func (v Value) Any() any {
	if !v.Valid {
		return nil
	}
	return v.S
}

// String renders the cell the way it is written to CSV: nulls are empty.
func (v Value) String() string { return v.S }

// Frame is a table of nullable string cells.
type Frame struct {
	columns []string
	lookup  map[string]int
	index   []int
	rows    [][]Value
}

// New returns an empty Frame with the given columns.
func New(columns ...string) *Frame {
	return NewWithCapacity(0, columns...)
}

// NewWithCapacity is New with room for n rows.
func NewWithCapacity(n int, columns ...string) *Frame {
	cols := append([]string(nil), columns...)
	lookup := make(map[string]int, len(cols))
	for i, c := range cols {
		// First occurrence wins, matching how lookups resolve duplicates.
		if _, ok := lookup[c]; !ok {
			lookup[c] = i
		}
	}
	return &Frame{
		columns: cols,
		lookup:  lookup,
		index:   make([]int, 0, n),
		rows:    make([][]Value, 0, n),
	}
}

// Columns returns a copy of the column names in order.
func (f *Frame) Columns() []string { return append([]string(nil), f.columns...) }

// Width is the number of columns.
func (f *Frame) Width() int { return len(f.columns) }

// Len is the number of rows.
func (f *Frame) Len() int { return len(f.rows) }

// Index returns the index label of row i.
func (f *Frame) Index(i int) int { return f.index[i] }

// Row returns row i. The slice is shared with the frame and must not be
// modified.
func (f *Frame) Row(i int) []Value { return f.rows[i] }

// Has reports whether the frame has a column called name.
func (f *Frame) Has(name string) bool {
	_, ok := f.lookup[name]
	return ok
}

// ColumnIndex returns the position of column name.
func (f *Frame) ColumnIndex(name string) (int, error) {
	if i, ok := f.lookup[name]; ok {
		return i, nil
	}
	return -1, errors.Wrapf(ErrColumnNotFound, "%q (have %s)", name, strings.Join(f.columns, ", "))
}

// Get returns the cell of row i in column name.
func (f *Frame) Get(i int, name string) (Value, error) {
	c, err := f.ColumnIndex(name)
	if err != nil {
		return Null, err
	}
	return f.rows[i][c], nil
}

// Append adds a row with the given index label. The row is retained, not
// copied.
func (f *Frame) Append(index int, row []Value) error {
	if len(row) != len(f.columns) {
		return errors.Wrapf(ErrSchemaMismatch, "row has %d cells, frame has %d columns", len(row), len(f.columns))
	}
	f.index = append(f.index, index)
	f.rows = append(f.rows, row)
	return nil
}

// AppendStrings is Append for tests and small fixtures: empty strings become
// nulls.
func (f *Frame) AppendStrings(index int, cells ...string) error {
	row := make([]Value, len(cells))
	for i, s := range cells {
		if s != "" {
			row[i] = Str(s)
		}
	}
	return f.Append(index, row)
}

// ResetIndex relabels rows 0..n-1.
func (f *Frame) ResetIndex() {
	for i := range f.index {
		f.index[i] = i
	}
}

// Filter returns a new frame holding the rows for which keep returns true.
// Index labels are preserved.
func (f *Frame) Filter(keep func(row []Value) bool) *Frame {
	out := NewWithCapacity(0, f.columns...)
	for i, r := range f.rows {
		if keep(r) {
			out.index = append(out.index, f.index[i])
			out.rows = append(out.rows, r)
		}
	}
	return out
}

// DropNull returns the rows where every named column is non-null.
func (f *Frame) DropNull(columns ...string) (*Frame, error) {
	ix, err := f.positions(columns)
	if err != nil {
		return nil, err
	}
	return f.Filter(func(row []Value) bool {
		for _, c := range ix {
			if row[c].IsNull() {
				return false
			}
		}
		return true
	}), nil
}

// IsIn returns the rows whose column value is one of allowed. Null cells
// never match.
func (f *Frame) IsIn(column string, allowed []string) (*Frame, error) {
	c, err := f.ColumnIndex(column)
	if err != nil {
		return nil, err
	}
	set := make(map[string]struct{}, len(allowed))
	for _, a := range allowed {
		set[a] = struct{}{}
	}
	return f.Filter(func(row []Value) bool {
		if row[c].IsNull() {
			return false
		}
		_, ok := set[row[c].S]
		return ok
	}), nil
}

// Select projects the frame onto columns, in the given order. Every column
// must exist.
func (f *Frame) Select(columns ...string) (*Frame, error) {
	ix, err := f.positions(columns)
	if err != nil {
		return nil, err
	}
	out := NewWithCapacity(len(f.rows), columns...)
	for i, r := range f.rows {
		row := make([]Value, len(ix))
		for j, c := range ix {
			row[j] = r[c]
		}
		out.index = append(out.index, f.index[i])
		out.rows = append(out.rows, row)
	}
	return out, nil
}

func (f *Frame) positions(columns []string) ([]int, error) {
	ix := make([]int, len(columns))
	for i, name := range columns {
		c, err := f.ColumnIndex(name)
		if err != nil {
			return nil, err
		}
		ix[i] = c
	}
	return ix, nil
}

func sameColumns(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
