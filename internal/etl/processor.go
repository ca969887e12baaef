// Package etl runs one chunked pass over a CSV source: read fixed-size row
// chunks, transform each, accumulate the results and write them out once as
// a compressed CSV.
package etl

import (
	"context"
	"io"
	"time"

	"github.com/pkg/errors"
	"github.com/zeebo/xxh3"

	"courtetl/internal/codec"
	"courtetl/internal/config"
	"courtetl/internal/datasource"
	"courtetl/internal/frame"
	"courtetl/internal/logger"
	"courtetl/internal/metrics"
	csvparser "courtetl/internal/parser/csv"
	"courtetl/internal/sink"
	"courtetl/internal/storage"
	"courtetl/internal/transformer"
)

// Processor holds the settings for one run. The zero values of ChunkSize,
// Compression and Log mean config.DefaultChunkSize, bz2 and no logging.
type Processor struct {
	// Source is opened once per ChunkData call; SourceURI names it in errors
	// and selects the input codec by extension.
	Source    datasource.Source
	SourceURI string

	Sink sink.Sink

	ChunkSize   int
	Parser      csvparser.Options
	Compression codec.Kind
	Log         logger.Logger

	// Job and Step label metrics.
	Job  string
	Step string

	// Storage, when set, receives a copy of the final table.
	Storage *config.Storage
}

// Summary describes a finished RunParse.
type Summary struct {
	Chunks      int
	RowsRead    int64
	RowsWritten int64
	// Bytes is the compressed size written to the sink.
	Bytes int64
	// Digest is the xxh3 hash of the uncompressed CSV.
	Digest   uint64
	Mirrored int64
	Duration time.Duration
}

type readStats struct {
	chunks int
	rows   int64
}

func (p *Processor) log() logger.Logger {
	if p.Log == nil {
		return logger.NopLogger
	}
	return p.Log
}

func (p *Processor) chunkSize() int {
	if p.ChunkSize <= 0 {
		return config.DefaultChunkSize
	}
	return p.ChunkSize
}

// ChunkData reads the source chunk by chunk, applies fn to each chunk and
// returns the concatenated results. The source is closed on every path.
//
// A source with a header but no rows yields fn applied to an empty table, so
// the result still carries the transform's column layout.
func (p *Processor) ChunkData(ctx context.Context, fn transformer.Func) (*frame.Frame, error) {
	f, _, err := p.chunkData(ctx, fn)
	return f, err
}

func (p *Processor) chunkData(ctx context.Context, fn transformer.Func) (*frame.Frame, readStats, error) {
	var st readStats
	if p.Source == nil {
		return nil, st, errors.New("etl: no source")
	}
	if fn == nil {
		return nil, st, errors.New("etl: no transform")
	}

	raw, err := p.Source.Open(ctx)
	if err != nil {
		return nil, st, errors.Wrapf(err, "open %s", p.SourceURI)
	}
	rc, err := codec.NewReader(codec.FromName(p.SourceURI), raw)
	if err != nil {
		return nil, st, errors.Wrapf(err, "decompress %s", p.SourceURI)
	}
	defer rc.Close()

	size := p.chunkSize()
	cr, err := csvparser.NewChunkReader(rc, size, p.Parser)
	if err != nil {
		return nil, st, errors.Wrapf(err, "read %s", p.SourceURI)
	}

	log := p.log()
	acc := frame.NewAccumulator(0)
	for {
		chunk, err := cr.Next(ctx)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, st, errors.Wrapf(err, "read %s", p.SourceURI)
		}
		log.Infof("Processing row: %d", st.chunks*size)
		st.rows += int64(chunk.Len())

		out, err := fn(chunk)
		if err != nil {
			return nil, st, errors.Wrapf(err, "chunk %d of %s", st.chunks, p.SourceURI)
		}
		if err := acc.Add(out); err != nil {
			return nil, st, errors.Wrapf(err, "accumulate chunk %d", st.chunks)
		}
		st.chunks++
		metrics.RecordChunk(p.Job, p.Step)
	}

	if st.chunks == 0 {
		cols := cr.Columns()
		if len(cols) == 0 {
			return frame.New(), st, nil
		}
		out, err := fn(frame.New(cols...))
		if err != nil {
			return nil, st, errors.Wrapf(err, "empty %s", p.SourceURI)
		}
		return out, st, nil
	}
	return acc.Frame(), st, nil
}

// RunParse runs ChunkData and writes the result to the sink as compressed
// CSV with a leading index column. Output is published only if every stage
// succeeded; on failure the sink is left untouched.
func (p *Processor) RunParse(ctx context.Context, fn transformer.Func) (Summary, error) {
	start := time.Now()
	sum, err := p.runParse(ctx, fn)
	sum.Duration = time.Since(start)
	metrics.RecordStep(p.Job, p.Step, err, sum.Duration)
	if err != nil {
		return sum, err
	}
	metrics.RecordRows(p.Job, p.Step, "read", sum.RowsRead)
	metrics.RecordRows(p.Job, p.Step, "written", sum.RowsWritten)
	metrics.RecordOutputBytes(p.Job, p.Step, sum.Bytes)
	return sum, nil
}

func (p *Processor) runParse(ctx context.Context, fn transformer.Func) (Summary, error) {
	var sum Summary
	if p.Sink == nil {
		return sum, errors.New("etl: no sink")
	}
	kind, err := codec.Parse(string(p.Compression))
	if err != nil {
		return sum, err
	}
	kind = codec.Resolve(kind, p.Sink.URI())

	f, st, err := p.chunkData(ctx, fn)
	if err != nil {
		return sum, err
	}
	sum.Chunks, sum.RowsRead, sum.RowsWritten = st.chunks, st.rows, int64(f.Len())

	if err := ctx.Err(); err != nil {
		return sum, err
	}
	obj, err := p.stage(ctx, kind, f, &sum)
	if err != nil {
		return sum, err
	}

	// Publish only once the mirror has succeeded.
	if p.Storage != nil {
		n, err := storage.Mirror(ctx, p.log(), p.Job, *p.Storage, f)
		if err != nil {
			_ = obj.Abort()
			return sum, errors.Wrapf(err, "mirror into %s", p.Storage.DB.Table)
		}
		sum.Mirrored = n
	}

	if err := obj.Commit(ctx); err != nil {
		_ = obj.Abort()
		return sum, errors.Wrapf(err, "commit %s", p.Sink.URI())
	}
	p.log().Infof("wrote %d rows (%d bytes) to %s", sum.RowsWritten, sum.Bytes, p.Sink.URI())
	return sum, nil
}

// stage writes f through the codec into a new sink object and closes it,
// filling in the byte count and digest. The caller commits or aborts.
func (p *Processor) stage(ctx context.Context, kind codec.Kind, f *frame.Frame, sum *Summary) (sink.Object, error) {
	obj, err := p.Sink.Create(ctx)
	if err != nil {
		return nil, errors.Wrapf(err, "create %s", p.Sink.URI())
	}
	counted := &countingWriter{WriteCloser: obj}
	zw, err := codec.NewWriter(kind, counted)
	if err != nil {
		_ = obj.Abort()
		return nil, err
	}

	h := xxh3.New()
	if err := csvparser.WriteFrame(io.MultiWriter(zw, h), f); err != nil {
		_ = zw.Close()
		_ = obj.Abort()
		return nil, errors.Wrapf(err, "write %s", p.Sink.URI())
	}
	if err := zw.Close(); err != nil {
		_ = obj.Abort()
		return nil, errors.Wrapf(err, "close %s", p.Sink.URI())
	}
	sum.Bytes, sum.Digest = counted.n, h.Sum64()
	return obj, nil
}

// countingWriter counts bytes passed to the sink object.
type countingWriter struct {
	io.WriteCloser
	n int64
}

func (w *countingWriter) Write(b []byte) (int, error) {
	n, err := w.WriteCloser.Write(b)
	w.n += int64(n)
	return n, err
}
