package frame

import "github.com/pkg/errors"

// Accumulator concatenates frames with identical columns. Rows are appended
// to one growable backing slice, so building a result from many chunks is
// amortized linear.
type Accumulator struct {
	f      *Frame
	chunks int
}

// NewAccumulator returns an empty accumulator. sizeHint pre-sizes the row
// storage; zero is fine.
func NewAccumulator(sizeHint int) *Accumulator {
	return &Accumulator{f: NewWithCapacity(sizeHint)}
}

// Add appends every row of part, keeping its index labels. The first frame
// added fixes the column layout; later frames must match it.
func (a *Accumulator) Add(part *Frame) error {
	if part == nil {
		return nil
	}
	if a.chunks == 0 && a.f.Len() == 0 {
		rows, index := a.f.rows, a.f.index
		a.f = NewWithCapacity(0, part.columns...)
		a.f.rows, a.f.index = rows, index
	} else if !sameColumns(a.f.columns, part.columns) {
		return errors.Wrapf(ErrSchemaMismatch, "chunk %d has columns %v, want %v", a.chunks, part.columns, a.f.columns)
	}
	a.f.rows = append(a.f.rows, part.rows...)
	a.f.index = append(a.f.index, part.index...)
	a.chunks++
	return nil
}

// Chunks is the number of frames added.
func (a *Accumulator) Chunks() int { return a.chunks }

// Frame returns the accumulated table. The accumulator must not be used
// afterwards.
func (a *Accumulator) Frame() *Frame { return a.f }

// Concat joins frames with identical columns into one.
func Concat(parts ...*Frame) (*Frame, error) {
	n := 0
	for _, p := range parts {
		if p != nil {
			n += p.Len()
		}
	}
	acc := NewAccumulator(n)
	for _, p := range parts {
		if err := acc.Add(p); err != nil {
			return nil, err
		}
	}
	return acc.Frame(), nil
}
