package objectstore

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBucketName_UsesTransactionUUIDConvention(t *testing.T) {
	id := uuid.MustParse("11111111-1111-1111-1111-111111111111")
	assert.Equal(t, "nlds.11111111-1111-1111-1111-111111111111", BucketName(id))
}

func TestGroupReadPolicy_IsDeterministic(t *testing.T) {
	// testable property 7: applying the same policy twice is idempotent,
	// which requires the serialized policy itself to be byte-identical
	// across calls for the same inputs.
	p1, err := json.Marshal(groupReadPolicy("nlds.txn-1", "gws-foo"))
	require.NoError(t, err)
	p2, err := json.Marshal(groupReadPolicy("nlds.txn-1", "gws-foo"))
	require.NoError(t, err)
	assert.Equal(t, string(p1), string(p2))
}

func TestGroupReadPolicy_GrantsReadOnly(t *testing.T) {
	policy := groupReadPolicy("nlds.txn-1", "gws-foo")
	require.Len(t, policy.Statement, 1)
	stmt := policy.Statement[0]
	assert.Equal(t, "Allow", stmt.Effect)
	assert.ElementsMatch(t, []string{"s3:GetObject", "s3:ListBucket"}, stmt.Action)
	assert.NotContains(t, stmt.Action, "s3:PutObject")
	assert.NotContains(t, stmt.Action, "s3:DeleteObject")
}

func TestGroupReadPolicy_ScopedToBucket(t *testing.T) {
	policy := groupReadPolicy("nlds.txn-1", "gws-foo")
	assert.Contains(t, policy.Statement[0].Resource, "arn:aws:s3:::nlds.txn-1")
	assert.Contains(t, policy.Statement[0].Resource, "arn:aws:s3:::nlds.txn-1/*")
}
