package objectstore

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// ErrObjectMissing is returned when a Get targets an object that does
// not exist, to be wrapped into common.ReasonObjectMissing by callers.
var ErrObjectMissing = errors.New("objectstore: object missing")

// putBucketPolicy sends the policy JSON that ApplyGroupReadPolicy built
// to the store as bucket's policy.
func (c *Client) putBucketPolicy(ctx context.Context, bucket, policyJSON string) error {
	_, err := c.s3.PutBucketPolicy(ctx, &s3.PutBucketPolicyInput{
		Bucket: aws.String(bucket),
		Policy: aws.String(policyJSON),
	})
	return err
}

// Put streams r into bucket/key via the chunked multipart uploader,
// mirroring the teacher's HetznerUploaderFile (Body: r, no intermediate
// buffering).
func (c *Client) Put(ctx context.Context, bucket, key string, r io.Reader) error {
	_, err := c.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
		Body:   r,
	})
	if err != nil {
		return fmt.Errorf("put %s:%s: %w", bucket, key, err)
	}
	return nil
}

// Get streams bucket/key's body to the caller, who must close it,
// mirroring the teacher's MinioGetObject streaming-download shape
// (minus the local-file-write step, which callers perform themselves).
func (c *Client) Get(ctx context.Context, bucket, key string) (io.ReadCloser, int64, error) {
	out, err := c.s3.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var noKey *types.NoSuchKey
		if errors.As(err, &noKey) {
			return nil, 0, ErrObjectMissing
		}
		return nil, 0, fmt.Errorf("get %s:%s: %w", bucket, key, err)
	}
	size := int64(0)
	if out.ContentLength != nil {
		size = *out.ContentLength
	}
	return out.Body, size, nil
}

// Delete removes bucket/key.
func (c *Client) Delete(ctx context.Context, bucket, key string) error {
	_, err := c.s3.DeleteObject(ctx, &s3.DeleteObjectInput{Bucket: aws.String(bucket), Key: aws.String(key)})
	if err != nil {
		return fmt.Errorf("delete %s:%s: %w", bucket, key, err)
	}
	return nil
}
