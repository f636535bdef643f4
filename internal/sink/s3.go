package sink

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/JonMunkholm/transfer/internal/config"
)

// PutObjectAPI is the subset of the S3 client the sink uses.
type PutObjectAPI interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3 uploads objects to a bucket. Each object is spooled to a temp file and
// uploaded on Close with a known length.
type S3 struct {
	Client PutObjectAPI
	Bucket string
	Prefix string
}

// NewS3 builds an S3 sink from the default AWS credential chain, applying the
// region, endpoint and path-style overrides from cfg.
func NewS3(ctx context.Context, bucket string, cfg config.StorageConfig) (*S3, error) {
	if bucket == "" {
		return nil, errors.New("S3 bucket is required")
	}

	var opts []func(*awsconfig.LoadOptions) error
	if cfg.S3Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.S3Region))
	}
	awsConfig, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}

	var s3Opts []func(*s3.Options)
	if cfg.S3Endpoint != "" {
		endpoint := cfg.S3Endpoint
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.BaseEndpoint = &endpoint
		})
	}
	if cfg.S3UsePathStyle {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.UsePathStyle = true
		})
	}

	return &S3{
		Client: s3.NewFromConfig(awsConfig, s3Opts...),
		Bucket: bucket,
		Prefix: cfg.S3Prefix,
	}, nil
}

// Key returns the object key for name.
func (s *S3) Key(name string) string {
	if s.Prefix == "" {
		return name
	}
	return path.Join(s.Prefix, name)
}

// Create starts spooling an object.
func (s *S3) Create(ctx context.Context, name, contentType string) (Object, error) {
	if name == "" {
		return nil, errors.New("object name is required")
	}
	spool, err := os.CreateTemp("", "transfer-s3-*")
	if err != nil {
		return nil, fmt.Errorf("create spool file: %w", err)
	}
	return &s3Object{ctx: ctx, sink: s, key: s.Key(name), contentType: contentType, spool: spool}, nil
}

type s3Object struct {
	ctx         context.Context
	sink        *S3
	key         string
	contentType string
	spool       *os.File
	done        bool
}

func (o *s3Object) Write(p []byte) (int, error) {
	return o.spool.Write(p)
}

func (o *s3Object) Close() error {
	if o.done {
		return nil
	}
	o.done = true
	defer os.Remove(o.spool.Name())
	defer o.spool.Close()

	size, err := o.spool.Seek(0, io.SeekCurrent)
	if err != nil {
		return fmt.Errorf("spool size: %w", err)
	}
	if _, err := o.spool.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("rewind spool: %w", err)
	}

	in := &s3.PutObjectInput{
		Bucket:        aws.String(o.sink.Bucket),
		Key:           aws.String(o.key),
		Body:          o.spool,
		ContentLength: aws.Int64(size),
	}
	if o.contentType != "" {
		in.ContentType = aws.String(o.contentType)
	}
	if _, err := o.sink.Client.PutObject(o.ctx, in); err != nil {
		return fmt.Errorf("put s3://%s/%s: %w", o.sink.Bucket, o.key, err)
	}
	return nil
}

func (o *s3Object) Abort() error {
	if o.done {
		return nil
	}
	o.done = true
	return errors.Join(o.spool.Close(), os.Remove(o.spool.Name()))
}
