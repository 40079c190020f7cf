package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
)

var _ FileStore = (*S3Store)(nil)

// S3API is the part of *s3.Client the store calls.
type S3API interface {
	GetObject(ctx context.Context, in *s3.GetObjectInput, opts ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, in *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	HeadObject(ctx context.Context, in *s3.HeadObjectInput, opts ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
}

// S3Store keeps files as objects of one bucket, below an optional prefix.
type S3Store struct {
	api    S3API
	bucket string
	prefix string
}

func NewS3(api S3API, bucket, prefix string) *S3Store {
	return &S3Store{api: api, bucket: bucket, prefix: strings.Trim(prefix, "/")}
}

func (s *S3Store) key(name string) string {
	return path.Join(s.prefix, strings.TrimPrefix(name, "/"))
}

// URL returns the s3:// location of name.
func (s *S3Store) URL(name string) string {
	return "s3://" + s.bucket + "/" + s.key(name)
}

func (s *S3Store) Read(ctx context.Context, name string) (io.ReadCloser, error) {
	out, err := s.api.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(name)),
	})
	if err != nil {
		return nil, s.fail("read", name, err)
	}
	return out.Body, nil
}

// Write buffers the object and uploads it on Close. Knowledge documents and
// memory exports are small JSON files.
func (s *S3Store) Write(ctx context.Context, name string) (io.WriteCloser, error) {
	return &s3Writer{ctx: ctx, store: s, name: name}, nil
}

func (s *S3Store) Exists(ctx context.Context, name string) (bool, error) {
	_, err := s.api.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(name)),
	})
	if err == nil {
		return true, nil
	}
	if notFound(err) {
		return false, nil
	}
	return false, s.fail("stat", name, err)
}

func (s *S3Store) fail(op, name string, err error) error {
	if notFound(err) {
		err = os.ErrNotExist
	}
	return fmt.Errorf("storage: %s %s: %w", op, s.URL(name), err)
}

type s3Writer struct {
	ctx    context.Context
	store  *S3Store
	name   string
	buf    bytes.Buffer
	closed bool
}

func (w *s3Writer) Write(p []byte) (int, error) {
	if w.closed {
		return 0, os.ErrClosed
	}
	return w.buf.Write(p)
}

func (w *s3Writer) Close() error {
	if w.closed {
		return os.ErrClosed
	}
	w.closed = true
	in := &s3.PutObjectInput{
		Bucket:        aws.String(w.store.bucket),
		Key:           aws.String(w.store.key(w.name)),
		Body:          bytes.NewReader(w.buf.Bytes()),
		ContentLength: aws.Int64(int64(w.buf.Len())),
	}
	if strings.HasSuffix(w.name, ".json") {
		in.ContentType = aws.String("application/json")
	}
	if _, err := w.store.api.PutObject(w.ctx, in); err != nil {
		return w.store.fail("write", w.name, err)
	}
	return nil
}

func notFound(err error) bool {
	var apiErr smithy.APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	code := apiErr.ErrorCode()
	return code == "NoSuchKey" || code == "NotFound"
}
