// Package s3 stores uploaded files in an S3 compatible bucket.
package s3

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/learnhub/learnhub/pkg/observability/logger"
)

const (
	defaultOperationTimeout = 30 * time.Second
	healthCheckTimeout      = 2 * time.Second
)

var (
	// ErrClosed is returned by every operation after Close.
	ErrClosed = errors.New("s3 adapter is closed")

	errKeyRequired = errors.New("object key is required")
)

// Config points the adapter at a bucket. Endpoint and UsePathStyle target
// S3 compatible servers such as MinIO.
type Config struct {
	Bucket          string
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string
	UsePathStyle    bool
	// PublicBaseURL replaces the bucket URL in returned object URLs (CDN, custom domain).
	PublicBaseURL    string
	OperationTimeout time.Duration
}

// Object is the result of an upload.
type Object struct {
	Key  string
	ETag string
	URL  string
}

type s3API interface {
	HeadBucket(ctx context.Context, params *awss3.HeadBucketInput, optFns ...func(*awss3.Options)) (*awss3.HeadBucketOutput, error)
	PutObject(ctx context.Context, params *awss3.PutObjectInput, optFns ...func(*awss3.Options)) (*awss3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, params *awss3.DeleteObjectInput, optFns ...func(*awss3.Options)) (*awss3.DeleteObjectOutput, error)
}

// Adapter uploads and deletes resume objects.
type Adapter struct {
	client s3API
	log    logger.Logger
	cfg    Config
	closed atomic.Bool
}

// NewAdapter builds the S3 client and fails unless the bucket answers HeadBucket.
func NewAdapter(cfg Config, log logger.Logger) (*Adapter, error) {
	switch {
	case log == nil:
		return nil, errors.New("logger is required")
	case strings.TrimSpace(cfg.Bucket) == "":
		return nil, errors.New("s3 bucket is required")
	case strings.TrimSpace(cfg.Region) == "":
		return nil, errors.New("aws region is required")
	}
	if cfg.OperationTimeout <= 0 {
		cfg.OperationTimeout = defaultOperationTimeout
	}

	client, err := newClient(cfg)
	if err != nil {
		return nil, err
	}
	a := &Adapter{client: client, log: log, cfg: cfg}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.OperationTimeout)
	defer cancel()
	if err := a.Ping(ctx); err != nil {
		return nil, err
	}
	log.Info("s3 adapter initialized", "bucket", cfg.Bucket, "region", cfg.Region, "endpoint", cfg.Endpoint)
	return a, nil
}

func newClient(cfg Config) (*awss3.Client, error) {
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.AccessKeyID != "" || cfg.SecretAccessKey != "" {
		static := credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, cfg.SessionToken)
		opts = append(opts, awsconfig.WithCredentialsProvider(static))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(), opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config for s3: %w", err)
	}
	return awss3.NewFromConfig(awsCfg, func(o *awss3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	}), nil
}

// begin checks the adapter is open and bounds ctx by OperationTimeout.
func (a *Adapter) begin(ctx context.Context) (context.Context, context.CancelFunc, error) {
	if a.closed.Load() {
		return nil, nil, ErrClosed
	}
	if a.cfg.OperationTimeout <= 0 {
		ctx, cancel := context.WithCancel(ctx)
		return ctx, cancel, nil
	}
	ctx, cancel := context.WithTimeout(ctx, a.cfg.OperationTimeout)
	return ctx, cancel, nil
}

// Ping issues HeadBucket against the configured bucket.
func (a *Adapter) Ping(ctx context.Context) error {
	if a.closed.Load() {
		return ErrClosed
	}
	if _, err := a.client.HeadBucket(ctx, &awss3.HeadBucketInput{Bucket: aws.String(a.cfg.Bucket)}); err != nil {
		return fmt.Errorf("s3 ping failed: %w", err)
	}
	return nil
}

// Upload stores body under key and returns the object with its public URL.
func (a *Adapter) Upload(ctx context.Context, key string, body io.Reader, contentType string) (*Object, error) {
	key = strings.TrimLeft(strings.TrimSpace(key), "/")
	ctx, cancel, err := a.begin(ctx)
	if err != nil {
		return nil, err
	}
	defer cancel()
	switch {
	case key == "":
		return nil, errKeyRequired
	case body == nil:
		return nil, errors.New("object body is required")
	}

	in := &awss3.PutObjectInput{Bucket: aws.String(a.cfg.Bucket), Key: aws.String(key), Body: body}
	if ct := strings.TrimSpace(contentType); ct != "" {
		in.ContentType = aws.String(ct)
	}
	out, err := a.client.PutObject(ctx, in)
	if err != nil {
		return nil, fmt.Errorf("upload object %q: %w", key, err)
	}
	return &Object{
		Key:  key,
		ETag: strings.Trim(aws.ToString(out.ETag), `" `),
		URL:  a.ObjectURL(key),
	}, nil
}

// Delete removes key. Deleting a missing key is not an error.
func (a *Adapter) Delete(ctx context.Context, key string) error {
	key = strings.TrimSpace(key)
	ctx, cancel, err := a.begin(ctx)
	if err != nil {
		return err
	}
	defer cancel()
	if key == "" {
		return errKeyRequired
	}
	if _, err := a.client.DeleteObject(ctx, &awss3.DeleteObjectInput{Bucket: aws.String(a.cfg.Bucket), Key: aws.String(key)}); err != nil {
		return fmt.Errorf("delete object %q: %w", key, err)
	}
	return nil
}

func (a *Adapter) baseURL() string {
	if base := strings.TrimRight(strings.TrimSpace(a.cfg.PublicBaseURL), "/"); base != "" {
		return base
	}
	if endpoint := strings.TrimRight(strings.TrimSpace(a.cfg.Endpoint), "/"); endpoint != "" {
		return endpoint + "/" + a.cfg.Bucket
	}
	if a.cfg.UsePathStyle {
		return "https://s3." + a.cfg.Region + ".amazonaws.com/" + a.cfg.Bucket
	}
	return "https://" + a.cfg.Bucket + ".s3." + a.cfg.Region + ".amazonaws.com"
}

// ObjectURL returns the URL under which key is served. Each path segment is escaped.
func (a *Adapter) ObjectURL(key string) string {
	segments := strings.Split(key, "/")
	for i := range segments {
		segments[i] = url.PathEscape(segments[i])
	}
	return a.baseURL() + "/" + strings.Join(segments, "/")
}

// KeyFromURL reverses ObjectURL. It reports false for URLs outside this bucket.
func (a *Adapter) KeyFromURL(objectURL string) (string, bool) {
	rest, ok := strings.CutPrefix(objectURL, a.baseURL()+"/")
	if !ok {
		return "", false
	}
	key, err := url.PathUnescape(rest)
	if err != nil || key == "" {
		return "", false
	}
	return key, true
}

// HealthCheck pings the bucket with a two second cap.
func (a *Adapter) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
	defer cancel()
	if err := a.Ping(ctx); err != nil {
		a.log.Error("s3 health check failed", "error", err)
		return fmt.Errorf("s3 health check failed: %w", err)
	}
	return nil
}

// Close marks the adapter closed. The SDK client holds no connections to release.
func (a *Adapter) Close() error {
	a.closed.Store(true)
	return nil
}
