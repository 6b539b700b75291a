package store

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"path"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	appconfig "sysync/internal/config"
)

// S3Backend stores objects in an S3 (or S3-compatible) bucket under an
// optional key prefix.
type S3Backend struct {
	client *s3.Client
	bucket string
	prefix string
}

// NewS3Backend builds an S3 client from the store configuration. When access
// keys are present a static credential provider is used, otherwise the
// default AWS credential chain applies. A non-empty endpoint switches to
// path-style addressing for S3-compatible servers.
func NewS3Backend(cfg appconfig.StoreConfig) (*S3Backend, error) {
	if cfg.S3Bucket == "" {
		return nil, errors.New("s3 store requires a bucket")
	}

	var opts []func(*awsconfig.LoadOptions) error
	if cfg.S3Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.S3Region))
	}
	if cfg.S3AccessKey != "" && cfg.S3SecretKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.S3AccessKey, cfg.S3SecretKey, "")))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(), opts...)
	if err != nil {
		return nil, fmt.Errorf("loading aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.S3Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.S3Endpoint)
			o.UsePathStyle = true
		}
	})

	return &S3Backend{client: client, bucket: cfg.S3Bucket, prefix: cfg.S3Prefix}, nil
}

func (b *S3Backend) objectKey(key string) string {
	if b.prefix == "" {
		return key
	}
	return path.Join(b.prefix, key)
}

// Create returns a writer that streams into a multipart upload. The upload
// result is surfaced by Close.
func (b *S3Backend) Create(key string) (io.WriteCloser, error) {
	pr, pw := io.Pipe()
	w := &s3Writer{pw: pw, done: make(chan error, 1)}

	uploader := manager.NewUploader(b.client)
	go func() {
		_, err := uploader.Upload(context.Background(), &s3.PutObjectInput{
			Bucket: aws.String(b.bucket),
			Key:    aws.String(b.objectKey(key)),
			Body:   pr,
		})
		if err != nil {
			pr.CloseWithError(err)
		}
		w.done <- err
	}()

	return w, nil
}

func (b *S3Backend) Open(key string) (io.ReadCloser, error) {
	out, err := b.client.GetObject(context.Background(), &s3.GetObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(b.objectKey(key)),
	})
	if err != nil {
		return nil, wrapNotFound(key, err)
	}
	return out.Body, nil
}

func (b *S3Backend) Size(key string) (int64, error) {
	out, err := b.client.HeadObject(context.Background(), &s3.HeadObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(b.objectKey(key)),
	})
	if err != nil {
		return 0, wrapNotFound(key, err)
	}
	return aws.ToInt64(out.ContentLength), nil
}

func (b *S3Backend) Remove(key string) error {
	// Verify existence first: DeleteObject succeeds on missing keys, but
	// Backend callers distinguish the two cases.
	if _, err := b.Size(key); err != nil {
		return err
	}
	_, err := b.client.DeleteObject(context.Background(), &s3.DeleteObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(b.objectKey(key)),
	})
	return err
}

// wrapNotFound maps S3 missing-key errors onto fs.ErrNotExist so callers can
// use a single errors.Is check across backends.
func wrapNotFound(key string, err error) error {
	var noKey *types.NoSuchKey
	var notFound *types.NotFound
	if errors.As(err, &noKey) || errors.As(err, &notFound) {
		return fmt.Errorf("object %s: %w", key, fs.ErrNotExist)
	}
	return err
}

// s3Writer adapts the pipe-fed uploader to io.WriteCloser.
type s3Writer struct {
	pw   *io.PipeWriter
	done chan error
}

func (w *s3Writer) Write(p []byte) (int, error) {
	return w.pw.Write(p)
}

func (w *s3Writer) Close() error {
	if err := w.pw.Close(); err != nil {
		return err
	}
	return <-w.done
}

var _ Backend = (*S3Backend)(nil)
