// Package objstore reads and writes whole objects in S3 or an S3-compatible
// service (MinIO) addressed as s3://bucket/key.
package objstore

import (
	"context"
	"io"
	"net/url"
	"strings"

	aws "github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/pkg/errors"

	"courtetl/internal/config"
)

// DefaultRegion is used when the config names none.
const DefaultRegion = "us-east-1"

// Store wraps an S3 client.
type Store struct {
	client *s3.Client
}

// New builds a Store. Empty credentials fall back to the default AWS chain
// (env, shared config, instance role).
func New(ctx context.Context, cfg config.S3, optFns ...func(*s3.Options)) (*Store, error) {
	region := cfg.Region
	if region == "" {
		region = DefaultRegion
	}
	loadOpts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(region)}
	if cfg.AccessKeyID != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, cfg.SessionToken),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, errors.Wrap(err, "load aws config")
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.PathStyle
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		for _, fn := range optFns {
			fn(o)
		}
	})
	return &Store{client: client}, nil
}

// ParseURI splits s3://bucket/key.
func ParseURI(uri string) (bucket, key string, err error) {
	u, err := url.Parse(uri)
	if err != nil {
		return "", "", errors.Wrapf(err, "parse %s", uri)
	}
	if u.Scheme != "s3" {
		return "", "", errors.Errorf("%s: not an s3:// uri", uri)
	}
	key = strings.TrimPrefix(u.Path, "/")
	if u.Host == "" || key == "" {
		return "", "", errors.Errorf("%s: want s3://bucket/key", uri)
	}
	return u.Host, key, nil
}

// Get opens the object body. The caller must close it.
func (s *Store) Get(ctx context.Context, bucket, key string) (io.ReadCloser, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{Bucket: &bucket, Key: &key})
	if err != nil {
		return nil, errors.Wrapf(err, "get s3://%s/%s", bucket, key)
	}
	return out.Body, nil
}

// Put uploads body as the whole object, replacing any existing one.
func (s *Store) Put(ctx context.Context, bucket, key string, body io.ReadSeeker, size int64) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        &bucket,
		Key:           &key,
		Body:          body,
		ContentLength: aws.Int64(size),
	})
	if err != nil {
		return errors.Wrapf(err, "put s3://%s/%s", bucket, key)
	}
	return nil
}

// Object is a datasource.Source reading one object.
type Object struct {
	store       *Store
	bucket, key string
}

// NewObject binds bucket/key to s.
func NewObject(s *Store, bucket, key string) *Object {
	return &Object{store: s, bucket: bucket, key: key}
}

// Open starts the download.
func (o *Object) Open(ctx context.Context) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return o.store.Get(ctx, o.bucket, o.key)
}
