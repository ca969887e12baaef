// Package file implements the local filesystem data source.
package file

import (
	"context"
	"io"
	"os"

	"github.com/pkg/errors"
)

// Local opens one file from the local disk.
type Local struct{ path string }

// NewLocal returns a Local bound to path.
func NewLocal(path string) *Local { return &Local{path: path} }

// Path is the bound path.
func (l *Local) Path() string { return l.path }

// Open opens the file for reading. A canceled context short-circuits before
// touching the filesystem; filesystem errors are wrapped with the path and
// still satisfy errors.Is(err, os.ErrNotExist).
//
// Sources are read front to back once, so the kernel is told to read ahead
// aggressively where that hint exists.
func (l *Local) Open(ctx context.Context) (io.ReadCloser, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}
	f, err := os.Open(l.path)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", l.path)
	}
	adviseSequential(f)
	return f, nil
}
