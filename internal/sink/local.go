package sink

import (
	"context"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

// Local writes a file next to its final path and renames it into place on
// Commit, which replaces any previous output atomically.
type Local struct{ path string }

// NewLocal returns a Local for path.
func NewLocal(path string) *Local { return &Local{path: path} }

// URI is the output path.
func (l *Local) URI() string { return l.path }

// Create stages a temp file in the target directory, creating it if needed.
func (l *Local) Create(ctx context.Context) (Object, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	dir := filepath.Dir(l.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrapf(err, "create %s", dir)
	}
	st, err := newStaged(dir, tempPattern(l.path))
	if err != nil {
		return nil, err
	}
	return &localObject{staged: st, path: l.path}, nil
}

type localObject struct {
	*staged
	path string
}

func (o *localObject) Commit(ctx context.Context) error {
	if !o.closed {
		return errors.Errorf("commit %s: object not closed", o.path)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.Chmod(o.name(), 0o644); err != nil {
		return errors.Wrapf(err, "commit %s", o.path)
	}
	if err := os.Rename(o.name(), o.path); err != nil {
		return errors.Wrapf(err, "commit %s", o.path)
	}
	o.settled = true
	return nil
}
