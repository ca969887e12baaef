// Package codec wraps sources and sinks with the compression their names (or
// the step configuration) call for. Input compression is inferred from the
// file extension; output compression is chosen explicitly and defaults to
// bzip2, which is what the published bulk CSVs use.
package codec

import (
	"io"
	"path"
	"strings"

	"github.com/dsnet/compress/bzip2"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/pkg/errors"
)

// Kind names a compression format.
type Kind string

const (
	None  Kind = "none"
	Bzip2 Kind = "bz2"
	Gzip  Kind = "gzip"
	Zstd  Kind = "zstd"
	// Infer picks the format from the file extension.
	Infer Kind = "infer"
)

// Parse validates a configured compression name. The empty string means
// Bzip2.
func Parse(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "bz2", "bzip2":
		return Bzip2, nil
	case "gz", "gzip":
		return Gzip, nil
	case "zst", "zstd":
		return Zstd, nil
	case "none", "plain":
		return None, nil
	case "infer":
		return Infer, nil
	}
	return "", errors.Errorf("unknown compression %q", s)
}

// FromName infers the format from the extension of a path or URI.
func FromName(name string) Kind {
	// Drop any query string so "…/x.csv.bz2?sig=…" still resolves.
	if i := strings.IndexByte(name, '?'); i >= 0 {
		name = name[:i]
	}
	switch strings.ToLower(path.Ext(name)) {
	case ".bz2":
		return Bzip2
	case ".gz":
		return Gzip
	case ".zst":
		return Zstd
	}
	return None
}

// Resolve turns Infer into a concrete kind using name.
func Resolve(k Kind, name string) Kind {
	if k == Infer {
		return FromName(name)
	}
	return k
}

type readCloser struct {
	io.Reader
	closers []func() error
}

func (r *readCloser) Close() error {
	var first error
	for _, c := range r.closers {
		if err := c(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// NewReader decompresses src according to k. Closing the result closes src.
func NewReader(k Kind, src io.ReadCloser) (io.ReadCloser, error) {
	switch k {
	case None, "":
		return src, nil
	case Bzip2:
		zr, err := bzip2.NewReader(src, nil)
		if err != nil {
			src.Close()
			return nil, errors.Wrap(err, "bzip2 reader")
		}
		return &readCloser{Reader: zr, closers: []func() error{zr.Close, src.Close}}, nil
	case Gzip:
		zr, err := gzip.NewReader(src)
		if err != nil {
			src.Close()
			return nil, errors.Wrap(err, "gzip reader")
		}
		return &readCloser{Reader: zr, closers: []func() error{zr.Close, src.Close}}, nil
	case Zstd:
		zr, err := zstd.NewReader(src)
		if err != nil {
			src.Close()
			return nil, errors.Wrap(err, "zstd reader")
		}
		return &readCloser{Reader: zr, closers: []func() error{
			func() error { zr.Close(); return nil },
			src.Close,
		}}, nil
	}
	src.Close()
	return nil, errors.Errorf("codec: cannot read %q", k)
}

type writeCloser struct {
	io.Writer
	closers []func() error
}

// Close flushes the compressor before closing the destination; the
// destination is closed even if the flush fails.
func (w *writeCloser) Close() error {
	var first error
	for _, c := range w.closers {
		if err := c(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// NewWriter compresses into dst according to k. Closing the result flushes the
// compressor and closes dst.
func NewWriter(k Kind, dst io.WriteCloser) (io.WriteCloser, error) {
	switch k {
	case None, "":
		return dst, nil
	case Bzip2:
		zw, err := bzip2.NewWriter(dst, &bzip2.WriterConfig{Level: bzip2.BestCompression})
		if err != nil {
			return nil, errors.Wrap(err, "bzip2 writer")
		}
		return &writeCloser{Writer: zw, closers: []func() error{zw.Close, dst.Close}}, nil
	case Gzip:
		zw := gzip.NewWriter(dst)
		return &writeCloser{Writer: zw, closers: []func() error{zw.Close, dst.Close}}, nil
	case Zstd:
		zw, err := zstd.NewWriter(dst)
		if err != nil {
			return nil, errors.Wrap(err, "zstd writer")
		}
		return &writeCloser{Writer: zw, closers: []func() error{zw.Close, dst.Close}}, nil
	}
	return nil, errors.Errorf("codec: cannot write %q", k)
}
