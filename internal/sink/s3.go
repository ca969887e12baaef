package sink

import (
	"context"
	"os"

	"github.com/pkg/errors"
)

// S3 stages the output in the OS temp dir and uploads it on Commit.
type S3 struct {
	uri, bucket, key string
	put              Putter
}

func (s *S3) URI() string { return s.uri }

func (s *S3) Create(ctx context.Context) (Object, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	st, err := newStaged("", tempPattern(s.key))
	if err != nil {
		return nil, err
	}
	return &s3Object{staged: st, sink: s}, nil
}

type s3Object struct {
	*staged
	sink *S3
}

func (o *s3Object) Commit(ctx context.Context) error {
	if !o.closed {
		return errors.Errorf("commit %s: object not closed", o.sink.uri)
	}
	f, err := os.Open(o.name())
	if err != nil {
		return errors.Wrapf(err, "commit %s", o.sink.uri)
	}
	defer f.Close()
	fi, err := f.Stat()
	if err != nil {
		return errors.Wrapf(err, "commit %s", o.sink.uri)
	}
	if err := o.sink.put.Put(ctx, o.sink.bucket, o.sink.key, f, fi.Size()); err != nil {
		return err
	}
	// The upload is the published copy; the staged file is scratch.
	o.settled = true
	_ = os.Remove(o.name())
	return nil
}
