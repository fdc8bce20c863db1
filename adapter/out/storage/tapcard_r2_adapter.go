// Package storage uploads generated artifacts to Cloudflare R2.
package storage

import (
	"context"
	"fmt"
	"io"
	"strings"

	"tapcard_server/core/port/out"
	"tapcard_server/pkg/apperr"
	"tapcard_server/pkg/httputil"
	"tapcard_server/pkg/resilience"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/sony/gobreaker"
)

// R2Config holds R2 bucket settings.
type R2Config struct {
	AccountID       string
	AccessKeyID     string
	AccessKeySecret string
	Bucket          string
	PublicBaseURL   string
}

func (c R2Config) Enabled() bool {
	return c.AccountID != "" && c.AccessKeyID != "" && c.AccessKeySecret != "" && c.Bucket != ""
}

// putter is the subset of *s3.Client the adapter uses.
type putter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// R2Adapter implements out.ObjectStorage on R2's S3-compatible API.
type R2Adapter struct {
	client  putter
	bucket  string
	baseURL string
	cb      *gobreaker.CircuitBreaker
}

var _ out.ObjectStorage = (*R2Adapter)(nil)

// NewR2Adapter builds an S3 client pointed at the account's R2 endpoint.
func NewR2Adapter(ctx context.Context, cfg R2Config) (*R2Adapter, error) {
	awsCfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion("auto"),
		config.WithHTTPClient(httputil.NewClient(httputil.StorageClientConfig())),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID, cfg.AccessKeySecret, "",
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load R2 config: %w", err)
	}

	endpoint := fmt.Sprintf("https://%s.r2.cloudflarestorage.com", cfg.AccountID)
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(endpoint)
	})

	baseURL := cfg.PublicBaseURL
	if baseURL == "" {
		baseURL = endpoint + "/" + cfg.Bucket
	}
	return newR2Adapter(client, cfg.Bucket, baseURL), nil
}

func uploadBreakerConfig() resilience.BreakerConfig {
	cfg := resilience.DefaultBreakerConfig("r2-upload")
	cfg.ConsecutiveFailures = 3
	cfg.Interval = 0
	return cfg
}

func newR2Adapter(client putter, bucket, baseURL string) *R2Adapter {
	return &R2Adapter{
		client:  client,
		bucket:  bucket,
		baseURL: strings.TrimRight(baseURL, "/"),
		cb:      resilience.NewBreaker(uploadBreakerConfig()),
	}
}

// Put uploads body under key and returns its public URL.
func (a *R2Adapter) Put(ctx context.Context, key string, body io.Reader, contentType string) (string, error) {
	_, err := a.cb.Execute(func() (any, error) {
		return a.client.PutObject(ctx, &s3.PutObjectInput{
			Bucket:      aws.String(a.bucket),
			Key:         aws.String(key),
			Body:        body,
			ContentType: aws.String(contentType),
		})
	})
	if err != nil {
		return "", apperr.ExternalError("r2", err)
	}
	return fmt.Sprintf("%s/%s", a.baseURL, key), nil
}
