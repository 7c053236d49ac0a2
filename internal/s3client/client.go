package s3client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"go.uber.org/zap"

	appConfig "b2downloader/config"
	"b2downloader/internal/models"
)

// s3API is the subset of *s3.Client used here.
type s3API interface {
	ListBuckets(ctx context.Context, params *s3.ListBucketsInput, optFns ...func(*s3.Options)) (*s3.ListBucketsOutput, error)
	HeadBucket(ctx context.Context, params *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
	ListObjectVersions(ctx context.Context, params *s3.ListObjectVersionsInput, optFns ...func(*s3.Options)) (*s3.ListObjectVersionsOutput, error)
	manager.DownloadAPIClient
}

// Client is a storage session bound to one bucket.
type Client struct {
	api         s3API
	downloader  *manager.Downloader
	bucket      string
	include     []string
	listTimeout time.Duration
	connTimeout time.Duration
	pageSize    int32
	log         *zap.Logger
}

const defaultPageSize = 1000

func New(cfg *appConfig.Config, log *zap.Logger) (*Client, error) {
	opts := []func(*config.LoadOptions) error{
		config.WithCredentialsProvider(credentials.StaticCredentialsProvider{
			Value: aws.Credentials{
				AccessKeyID:     cfg.KeyID,
				SecretAccessKey: cfg.AppKey,
			},
		}),
	}
	if cfg.Region != "" {
		opts = append(opts, config.WithRegion(cfg.Region))
	}

	awsConfig, err := config.LoadDefaultConfig(context.TODO(), opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	if awsConfig.Region == "" {
		awsConfig.Region = "us-east-1"
	}

	var s3Client *s3.Client
	if cfg.Endpoint != "" {
		s3Client = s3.NewFromConfig(awsConfig, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		})
	} else {
		s3Client = s3.NewFromConfig(awsConfig)
	}

	return newWithAPI(s3Client, cfg, log), nil
}

func newWithAPI(api s3API, cfg *appConfig.Config, log *zap.Logger) *Client {
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{
		api:         api,
		downloader:  manager.NewDownloader(api),
		bucket:      cfg.BucketName,
		include:     cfg.Include,
		listTimeout: cfg.ListTimeout,
		connTimeout: cfg.ConnectTimeout,
		pageSize:    defaultPageSize,
		log:         log.With(zap.String("bucket", cfg.BucketName)),
	}
}

func (c *Client) BucketName() string {
	return c.bucket
}

// Authorize verifies the credentials against the endpoint.
func (c *Client) Authorize(ctx context.Context) error {
	ctx, cancel := withTimeout(ctx, c.connTimeout)
	defer cancel()
	if _, err := c.api.ListBuckets(ctx, &s3.ListBucketsInput{}); err != nil {
		return fmt.Errorf("%w: %w", models.ErrAuth, err)
	}
	return nil
}

// Connect checks that the bucket exists and is reachable with these credentials.
func (c *Client) Connect(ctx context.Context) error {
	ctx, cancel := withTimeout(ctx, c.connTimeout)
	defer cancel()
	_, err := c.api.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(c.bucket)})
	if err == nil {
		return nil
	}

	switch classify(err) {
	case errNotFound:
		return fmt.Errorf("%w: %s", models.ErrBucketNotFound, c.bucket)
	case errDenied:
		return fmt.Errorf("%w: bucket %s: %w", models.ErrAuth, c.bucket, err)
	default:
		return fmt.Errorf("%w: bucket %s: %w", models.ErrConnection, c.bucket, err)
	}
}

// Fetch downloads the named object into w and returns the bytes written.
func (c *Client) Fetch(ctx context.Context, name string, w io.WriterAt) (int64, error) {
	n, err := c.downloader.Download(ctx, w, &s3.GetObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(name),
	})
	if err != nil {
		if classify(err) == errNotFound {
			return n, fmt.Errorf("%w: %s: object not found: %w", models.ErrTransfer, name, err)
		}
		return n, fmt.Errorf("%w: %s: %w", models.ErrTransfer, name, err)
	}
	return n, nil
}

// withTimeout bounds ctx by d; d <= 0 leaves it unbounded.
func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, d)
}

type errClass int

const (
	errOther errClass = iota
	errNotFound
	errDenied
)

// classify maps SDK errors onto the few cases callers care about.
func classify(err error) errClass {
	var notFound *types.NotFound
	var noSuchKey *types.NoSuchKey
	var noSuchBucket *types.NoSuchBucket
	if errors.As(err, &notFound) || errors.As(err, &noSuchKey) || errors.As(err, &noSuchBucket) {
		return errNotFound
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchKey", "NotFound", "NoSuchBucket":
			return errNotFound
		case "AccessDenied", "Forbidden", "InvalidAccessKeyId", "SignatureDoesNotMatch", "Unauthorized":
			return errDenied
		}
	}

	var respErr *awshttp.ResponseError
	if errors.As(err, &respErr) {
		switch respErr.HTTPStatusCode() {
		case http.StatusNotFound:
			return errNotFound
		case http.StatusUnauthorized, http.StatusForbidden:
			return errDenied
		}
	}
	return errOther
}
