package objectstore

import (
	"context"
	"encoding/json"
	"fmt"
)

// policyStatement is one AWS-style bucket-policy statement.
type policyStatement struct {
	Sid       string   `json:"Sid"`
	Effect    string   `json:"Effect"`
	Principal any      `json:"Principal"`
	Action    []string `json:"Action"`
	Resource  []string `json:"Resource"`
}

type bucketPolicy struct {
	Version   string            `json:"Version"`
	Statement []policyStatement `json:"Statement"`
}

// groupReadPolicy builds the bucket policy granting group read access on
// first write (spec.md §4.4 "Bucket policies applied on first write grant
// the owning group read access").
func groupReadPolicy(bucket, group string) bucketPolicy {
	return bucketPolicy{
		Version: "2012-10-17",
		Statement: []policyStatement{{
			Sid:       "nlds-group-read-" + group,
			Effect:    "Allow",
			Principal: map[string]string{"AWS": group},
			Action:    []string{"s3:GetObject", "s3:ListBucket"},
			Resource:  []string{"arn:aws:s3:::" + bucket, "arn:aws:s3:::" + bucket + "/*"},
		}},
	}
}

// ApplyGroupReadPolicy sets bucket's policy to grant group read access.
// Applying the same (bucket, group) pair repeatedly is a no-op after the
// first call: the policy document (its Sid derived from group, its
// Resource from bucket) is deterministic from (bucket, group), so
// re-applying overwrites with byte-identical content rather than
// accumulating duplicate statements (testable property 7).
func (c *Client) ApplyGroupReadPolicy(ctx context.Context, bucket, group string) error {
	policy := groupReadPolicy(bucket, group)
	body, err := json.Marshal(policy)
	if err != nil {
		return fmt.Errorf("marshal bucket policy for %s: %w", bucket, err)
	}

	if err := c.putBucketPolicy(ctx, bucket, string(body)); err != nil {
		return fmt.Errorf("apply group read policy on %s: %w", bucket, err)
	}
	return nil
}
