package csv

import (
	"encoding/csv"
	"io"
	"strconv"

	"github.com/pkg/errors"

	"courtetl/internal/frame"
)

// WriteFrame writes f as CSV. The first column is the row index with an
// empty header cell; nulls are written as empty fields.
func WriteFrame(w io.Writer, f *frame.Frame) error {
	cw := csv.NewWriter(w)

	cols := f.Columns()
	rec := make([]string, len(cols)+1)
	copy(rec[1:], cols)
	if err := cw.Write(rec); err != nil {
		return errors.Wrap(err, "write header")
	}

	for i := 0; i < f.Len(); i++ {
		rec[0] = strconv.Itoa(f.Index(i))
		for j, v := range f.Row(i) {
			rec[j+1] = v.String()
		}
		if err := cw.Write(rec); err != nil {
			return errors.Wrapf(err, "write row %d", i)
		}
	}
	cw.Flush()
	return errors.Wrap(cw.Error(), "flush csv")
}
