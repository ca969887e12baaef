package csv

import (
	"context"
	"encoding/csv"
	"io"

	"github.com/pkg/errors"

	"courtetl/internal/frame"
)

// ChunkReader reads a CSV stream as a sequence of frames of at most Size
// rows. Index labels are 0-based row positions in the source, continuing
// across chunks.
type ChunkReader struct {
	cr      *csv.Reader
	columns []string
	size    int
	na      map[string]struct{}
	offset  int
	done    bool
}

// NewChunkReader reads the header from r and returns a reader producing
// chunks of size rows. size must be positive.
func NewChunkReader(r io.Reader, size int, opt Options) (*ChunkReader, error) {
	if size <= 0 {
		return nil, errors.Errorf("chunk size must be > 0, got %d", size)
	}
	cr := csv.NewReader(r)
	if opt.Comma != 0 {
		cr.Comma = opt.Comma
	}
	cr.LazyQuotes = opt.LazyQuotes
	cr.ReuseRecord = true
	// Width is checked per row so short rows can be padded.
	cr.FieldsPerRecord = -1

	hdr, err := cr.Read()
	if err == io.EOF {
		return &ChunkReader{cr: cr, size: size, done: true}, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "read header")
	}
	return &ChunkReader{
		cr:      cr,
		columns: canonicalHeader(hdr, opt),
		size:    size,
		na:      opt.naSet(),
	}, nil
}

// Columns returns the canonical header.
func (c *ChunkReader) Columns() []string { return append([]string(nil), c.columns...) }

// Offset is the number of data rows read so far.
func (c *ChunkReader) Offset() int { return c.offset }

// Next returns the next chunk, or io.EOF once the source is exhausted. A
// returned chunk always has at least one row.
//
// Rows shorter than the header are padded with nulls; a row longer than the
// header is an error carrying its line number.
func (c *ChunkReader) Next(ctx context.Context) (*frame.Frame, error) {
	if c.done {
		return nil, io.EOF
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	width := len(c.columns)
	chunk := frame.NewWithCapacity(c.size, c.columns...)
	for chunk.Len() < c.size {
		rec, err := c.cr.Read()
		if err == io.EOF {
			c.done = true
			break
		}
		if err != nil {
			return nil, errors.Wrapf(err, "csv read after row %d", c.offset)
		}
		if len(rec) > width {
			line, _ := c.cr.FieldPos(0)
			return nil, errors.Errorf("line %d: expected %d fields, saw %d", line, width, len(rec))
		}

		row := make([]frame.Value, width)
		for i, s := range rec {
			if _, missing := c.na[s]; !missing {
				row[i] = frame.Str(s)
			}
		}
		if err := chunk.Append(c.offset, row); err != nil {
			return nil, err
		}
		c.offset++
	}
	if chunk.Len() == 0 {
		return nil, io.EOF
	}
	return chunk, nil
}

// ReadAll reads an entire (small) table, e.g. a reference table joined
// against every chunk.
func ReadAll(ctx context.Context, r io.Reader, opt Options) (*frame.Frame, error) {
	const batch = 64 * 1024
	cr, err := NewChunkReader(r, batch, opt)
	if err != nil {
		return nil, err
	}
	acc := frame.NewAccumulator(0)
	for {
		chunk, err := cr.Next(ctx)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if err := acc.Add(chunk); err != nil {
			return nil, err
		}
	}
	if acc.Chunks() == 0 {
		return frame.New(cr.columns...), nil
	}
	return acc.Frame(), nil
}
