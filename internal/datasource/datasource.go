// Package datasource opens the byte streams the pipeline reads: local
// files, HTTP(S) downloads and S3 objects, chosen by URI scheme.
package datasource

import (
	"context"
	"io"
	"net/url"
	"strings"

	"github.com/pkg/errors"

	"courtetl/internal/datasource/file"
	"courtetl/internal/datasource/httpds"
	"courtetl/internal/objstore"
)

// Source opens a fresh stream on every call.
type Source interface {
	Open(ctx context.Context) (io.ReadCloser, error)
}

// Resolver maps URIs to Sources. HTTP and S3 are optional; resolving a
// scheme whose client is nil is an error.
type Resolver struct {
	HTTP *httpds.Client
	S3   *objstore.Store
}

// Resolve accepts a bare path, file://, http(s):// or s3:// URI.
func (r Resolver) Resolve(uri string) (Source, error) {
	switch scheme(uri) {
	case "":
		return file.NewLocal(uri), nil
	case "file":
		u, err := url.Parse(uri)
		if err != nil {
			return nil, errors.Wrapf(err, "parse %s", uri)
		}
		return file.NewLocal(u.Path), nil
	case "http", "https":
		if r.HTTP == nil {
			return nil, errors.Errorf("%s: no http client configured", uri)
		}
		return httpds.NewSource(r.HTTP, uri), nil
	case "s3":
		if r.S3 == nil {
			return nil, errors.Errorf("%s: s3 is not configured", uri)
		}
		bucket, key, err := objstore.ParseURI(uri)
		if err != nil {
			return nil, err
		}
		return objstore.NewObject(r.S3, bucket, key), nil
	default:
		return nil, errors.Errorf("%s: unsupported scheme", uri)
	}
}

// scheme returns the lower-cased URI scheme, or "" for plain paths
// (including Windows drive letters such as C:\data).
func scheme(uri string) string {
	i := strings.Index(uri, "://")
	if i <= 1 {
		return ""
	}
	return strings.ToLower(uri[:i])
}

// Scheme exposes the scheme detection used by Resolve.
func Scheme(uri string) string { return scheme(uri) }
