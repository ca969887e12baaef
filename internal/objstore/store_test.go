package objstore

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"strings"
	"sync"
	"testing"

	aws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"courtetl/internal/config"
)

// fakeS3 serves path-style GET and PUT against an in-memory bucket map.
type fakeS3 struct {
	mu    sync.Mutex
	state map[string][]byte
}

func (f *fakeS3) RoundTrip(req *http.Request) (*http.Response, error) {
	path := strings.TrimPrefix(req.URL.Path, "/")
	f.mu.Lock()
	defer f.mu.Unlock()
	switch req.Method {
	case http.MethodPut:
		body, _ := io.ReadAll(req.Body)
		f.state[path] = body
		return &http.Response{StatusCode: http.StatusOK, Body: io.NopCloser(bytes.NewReader(nil)), Header: http.Header{"ETag": {"\"etag\""}}}, nil
	case http.MethodGet:
		if b, ok := f.state[path]; ok {
			return &http.Response{StatusCode: http.StatusOK, Body: io.NopCloser(bytes.NewReader(b)), Header: http.Header{}}, nil
		}
		const notFound = `<?xml version="1.0"?><Error><Code>NoSuchKey</Code><Message>missing</Message></Error>`
		return &http.Response{StatusCode: http.StatusNotFound, Body: io.NopCloser(strings.NewReader(notFound)), Header: http.Header{"Content-Type": {"application/xml"}}}, nil
	}
	return &http.Response{StatusCode: http.StatusNotImplemented, Body: io.NopCloser(bytes.NewReader(nil)), Header: http.Header{}}, nil
}

func newFakeStore(t *testing.T) (*Store, *fakeS3) {
	t.Helper()
	fake := &fakeS3{state: map[string][]byte{}}
	st, err := New(context.Background(), config.S3{
		Region:          "us-east-1",
		Endpoint:        "https://mock.s3.local",
		AccessKeyID:     "AKIA",
		SecretAccessKey: "SECRET",
		PathStyle:       true,
	}, func(o *s3.Options) {
		o.HTTPClient = &http.Client{Transport: fake}
		o.RequestChecksumCalculation = aws.RequestChecksumCalculationWhenRequired
		o.ResponseChecksumValidation = aws.ResponseChecksumValidationWhenRequired
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return st, fake
}

func TestParseURI(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in          string
		bucket, key string
		wantErr     bool
	}{
		{in: "s3://courts/raw/dockets.csv.bz2", bucket: "courts", key: "raw/dockets.csv.bz2"},
		{in: "s3://courts/", wantErr: true},
		{in: "s3:///key", wantErr: true},
		{in: "https://courts/key", wantErr: true},
	}
	for _, tt := range tests {
		b, k, err := ParseURI(tt.in)
		if (err != nil) != tt.wantErr {
			t.Fatalf("ParseURI(%q) err = %v, wantErr %v", tt.in, err, tt.wantErr)
		}
		if !tt.wantErr && (b != tt.bucket || k != tt.key) {
			t.Fatalf("ParseURI(%q) = %q, %q", tt.in, b, k)
		}
	}
}

func TestPutThenOpen(t *testing.T) {
	t.Parallel()

	st, fake := newFakeStore(t)
	ctx := context.Background()
	payload := []byte(",id,court_id\n0,1,scotus\n")
	if err := st.Put(ctx, "courts", "out/dockets.csv", bytes.NewReader(payload), int64(len(payload))); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if got := fake.state["courts/out/dockets.csv"]; !bytes.Equal(got, payload) {
		t.Fatalf("stored %q", got)
	}

	rc, err := NewObject(st, "courts", "out/dockets.csv").Open(ctx)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer rc.Close()
	got, _ := io.ReadAll(rc)
	if !bytes.Equal(got, payload) {
		t.Fatalf("read %q", got)
	}
}

func TestOpenMissingObject(t *testing.T) {
	t.Parallel()

	st, _ := newFakeStore(t)
	if _, err := NewObject(st, "courts", "nope.csv").Open(context.Background()); err == nil {
		t.Fatal("expected error for missing object")
	}
}
