// Package objectstore wraps aws-sdk-go-v2 for the S3-compatible tier of
// spec.md §6: bucket naming convention `nlds.<transaction-uuid>`, object
// path convention `<bucket>:<object>`, and an idempotent bucket-policy
// manager (testable property 7), grounded on the teacher's
// storage/s3aws.go client-construction and streaming-upload/download
// patterns.
package objectstore

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
)

// Config is the subset of spec.md §6's objectstore block this client
// needs.
type Config struct {
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
	Tenancy   string
}

// Client wraps an s3.Client plus a manager.Uploader for chunked,
// concurrent uploads, mirroring the teacher's
// HetznerUploadMultipleFiles/HetznerUploaderFile client+uploader pairing.
type Client struct {
	s3       *s3.Client
	uploader *manager.Uploader
	tenancy  string
}

// New builds a Client against a single S3-compatible endpoint, using
// path-style addressing as the teacher's LakeFS/MinIO/Hetzner helpers
// all do for non-AWS-hosted endpoints.
func New(ctx context.Context, cfg Config) (*Client, error) {
	awsCfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(cfg.Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")),
		config.WithEndpointResolverWithOptions(aws.EndpointResolverWithOptionsFunc(
			func(service, region string, options ...interface{}) (aws.Endpoint, error) {
				return aws.Endpoint{URL: cfg.Endpoint, SigningRegion: region, HostnameImmutable: true}, nil
			})),
	)
	if err != nil {
		return nil, fmt.Errorf("load objectstore config: %w", err)
	}

	s3Client := s3.NewFromConfig(awsCfg, func(o *s3.Options) { o.UsePathStyle = true })
	return &Client{
		s3:       s3Client,
		uploader: manager.NewUploader(s3Client),
		tenancy:  cfg.Tenancy,
	}, nil
}

// BucketName is the `nlds.<transaction-uuid>` convention of spec.md §6.
func BucketName(transactionID uuid.UUID) string {
	return "nlds." + transactionID.String()
}

// EnsureBucket creates bucket if it does not already exist, mirroring
// the teacher's lakeFsEnsureBucketExists head-then-create sequence.
func (c *Client) EnsureBucket(ctx context.Context, bucket string) error {
	_, err := c.s3.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(bucket)})
	if err == nil {
		return nil
	}

	_, err = c.s3.CreateBucket(ctx, &s3.CreateBucketInput{Bucket: aws.String(bucket)})
	if err != nil {
		return fmt.Errorf("create bucket %s: %w", bucket, err)
	}
	return nil
}
