// Package sink stages step outputs on local disk and publishes them only
// when the whole step succeeded, so a failed run never leaves a truncated
// file (or object) behind under the output name.
package sink

import (
	"context"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"

	"courtetl/internal/objstore"
)

// Sink creates staged objects for one output URI.
type Sink interface {
	Create(ctx context.Context) (Object, error)
	URI() string
}

// Object is a staged output. Close finishes writing; Commit publishes and
// must follow a successful Close. Abort discards the staged bytes and is
// safe to call at any point, including after Commit (where it is a no-op).
type Object interface {
	io.WriteCloser
	Commit(ctx context.Context) error
	Abort() error
}

// Putter uploads a finished object.
type Putter interface {
	Put(ctx context.Context, bucket, key string, body io.ReadSeeker, size int64) error
}

// Resolve maps an output URI to a Sink. s3 may be nil when no output is on
// S3.
func Resolve(uri string, s3 Putter) (Sink, error) {
	switch {
	case strings.HasPrefix(uri, "s3://"):
		if s3 == nil {
			return nil, errors.Errorf("%s: s3 is not configured", uri)
		}
		bucket, key, err := objstore.ParseURI(uri)
		if err != nil {
			return nil, err
		}
		return &S3{uri: uri, bucket: bucket, key: key, put: s3}, nil
	case strings.HasPrefix(uri, "file://"):
		u, err := url.Parse(uri)
		if err != nil {
			return nil, errors.Wrapf(err, "parse %s", uri)
		}
		return NewLocal(u.Path), nil
	case strings.Contains(uri, "://"):
		return nil, errors.Errorf("%s: unsupported output scheme", uri)
	}
	return NewLocal(uri), nil
}

// staged is a temp file that is closed at most once and removed on Abort
// unless it was handed off.
type staged struct {
	f       *os.File
	closed  bool
	settled bool
}

func newStaged(dir, pattern string) (*staged, error) {
	f, err := os.CreateTemp(dir, pattern)
	if err != nil {
		return nil, errors.Wrap(err, "stage output")
	}
	return &staged{f: f}, nil
}

func (s *staged) Write(p []byte) (int, error) { return s.f.Write(p) }

func (s *staged) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	if err := s.f.Sync(); err != nil {
		s.f.Close()
		return errors.Wrapf(err, "sync %s", s.f.Name())
	}
	return s.f.Close()
}

func (s *staged) Abort() error {
	if s.settled {
		return nil
	}
	s.settled = true
	if !s.closed {
		s.closed = true
		_ = s.f.Close()
	}
	if err := os.Remove(s.f.Name()); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func (s *staged) name() string { return s.f.Name() }

func tempPattern(target string) string {
	return "." + filepath.Base(target) + ".tmp-*"
}
