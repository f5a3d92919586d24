package archive

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/gofiber/fiber/v2/log"

	"github.com/ManuelReschke/CoachDesk/internal/pkg/config"
)

type s3API interface {
	HeadBucket(ctx context.Context, params *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
	CreateBucket(ctx context.Context, params *s3.CreateBucketInput, optFns ...func(*s3.Options)) (*s3.CreateBucketOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Client stores verified webhook payloads in an S3 bucket.
type Client struct {
	s3     s3API
	bucket string
	prefix string
	region string
	custom bool
}

// NewClient creates the archive client and checks that the bucket is reachable.
func NewClient(ctx context.Context, cfg config.ArchiveConfig, dev bool) (*Client, error) {
	if !cfg.Enabled {
		return nil, fmt.Errorf("webhook archive is disabled")
	}

	awsConfig, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID,
			cfg.SecretAccessKey,
			"",
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	s3Client := s3.NewFromConfig(awsConfig, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			// S3-compatible stores (MinIO, B2) want path-style URLs
			o.UsePathStyle = true
		}
	})

	c := newClient(s3Client, cfg)
	if err := c.ensureBucket(ctx, dev); err != nil {
		return nil, fmt.Errorf("failed to connect to S3: %w", err)
	}

	log.Infof("[Archive] Archiving webhooks to bucket: %s", cfg.Bucket)
	return c, nil
}

func newClient(api s3API, cfg config.ArchiveConfig) *Client {
	return &Client{
		s3:     api,
		bucket: cfg.Bucket,
		prefix: strings.Trim(cfg.Prefix, "/"),
		region: cfg.Region,
		custom: cfg.Endpoint != "",
	}
}

// ensureBucket checks the bucket and creates it outside production.
func (c *Client) ensureBucket(ctx context.Context, dev bool) error {
	_, err := c.s3.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(c.bucket)})
	if err == nil {
		return nil
	}
	if !dev {
		return fmt.Errorf("bucket %s not accessible: %w", c.bucket, err)
	}

	log.Warnf("[Archive] Bucket %s not found, attempting to create it", c.bucket)
	input := &s3.CreateBucketInput{Bucket: aws.String(c.bucket)}
	// us-east-1 and custom endpoints reject a location constraint
	if !c.custom && c.region != "us-east-1" {
		input.CreateBucketConfiguration = &types.CreateBucketConfiguration{
			LocationConstraint: types.BucketLocationConstraint(c.region),
		}
	}
	if _, err := c.s3.CreateBucket(ctx, input); err != nil {
		return fmt.Errorf("failed to create bucket %s: %w", c.bucket, err)
	}
	return nil
}

// ObjectKey returns the key for a webhook payload: <prefix>/stripe/YYYY/MM/<id>.json
func (c *Client) ObjectKey(eventID string, receivedAt time.Time) string {
	receivedAt = receivedAt.UTC()
	key := fmt.Sprintf("stripe/%04d/%02d/%s.json", receivedAt.Year(), int(receivedAt.Month()), eventID)
	if c.prefix == "" {
		return key
	}
	return c.prefix + "/" + key
}

func (c *Client) ArchiveWebhook(ctx context.Context, eventID string, receivedAt time.Time, payload []byte) error {
	key := c.ObjectKey(eventID, receivedAt)
	_, err := c.s3.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(c.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(payload),
		ContentType:   aws.String("application/json"),
		ContentLength: aws.Int64(int64(len(payload))),
		Metadata: map[string]string{
			"event-id":      eventID,
			"upload-source": "coachdesk-webhook",
		},
	})
	if err != nil {
		return fmt.Errorf("failed to upload %s: %w", key, err)
	}
	log.Debugf("[Archive] Stored s3://%s/%s", c.bucket, key)
	return nil
}
