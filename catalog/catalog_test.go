package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsRegex_LiteralPathIsNotRegex(t *testing.T) {
	assert.False(t, IsRegex("/data/foo.nc"))
	assert.False(t, IsRegex("relative/path/file_01.txt"))
}

func TestIsRegex_MetacharacterQueriesAreRegex(t *testing.T) {
	assert.True(t, IsRegex(`^/data/(foo|bar)\.nc$`))
	assert.True(t, IsRegex(`/data/file_\d+\.nc`))
	assert.True(t, IsRegex(`/data/[abc]file.nc`))
}

func TestIsRegex_UncompilableMetacharacterStringIsLiteral(t *testing.T) {
	// unbalanced bracket: contains a metacharacter but does not compile,
	// so treated as a literal path rather than erroring every lookup.
	assert.False(t, IsRegex("/data/[unterminated"))
}

func TestQuota_ExceedsAndRemaining(t *testing.T) {
	q := Quota{Group: "gws-foo", Size: 1000, Used: 900}
	assert.Equal(t, int64(100), q.Remaining())
	assert.False(t, q.Exceeds(100))
	assert.True(t, q.Exceeds(101))
}

func TestQuota_RemainingIsZeroWhenExhausted(t *testing.T) {
	q := Quota{Group: "gws-foo", Size: 1000, Used: 1000}
	assert.Equal(t, int64(0), q.Remaining())
	assert.True(t, q.Exceeds(1))
}

type fakeRoles struct{ managerOf map[string]bool }

func (f fakeRoles) IsManagerOrDeputy(user, group string) bool { return f.managerOf[user+"/"+group] }

func TestUserHasGetHoldingPermission_OwnerAlwaysAllowed(t *testing.T) {
	h := Holding{User: "alice", Group: "gws-foo"}
	assert.True(t, UserHasGetHoldingPermission("alice", h, fakeRoles{}))
}

func TestUserHasGetHoldingPermission_ManagerOfGroupAllowed(t *testing.T) {
	h := Holding{User: "alice", Group: "gws-foo"}
	roles := fakeRoles{managerOf: map[string]bool{"bob/gws-foo": true}}
	assert.True(t, UserHasGetHoldingPermission("bob", h, roles))
}

func TestUserHasGetHoldingPermission_UnrelatedUserDenied(t *testing.T) {
	h := Holding{User: "alice", Group: "gws-foo"}
	assert.False(t, UserHasGetHoldingPermission("eve", h, fakeRoles{}))
}

func TestUserHasDeleteFromHoldingPermission_OwnerInOwnGroupAllowed(t *testing.T) {
	h := Holding{User: "alice", Group: "gws-foo"}
	assert.True(t, UserHasDeleteFromHoldingPermission("alice", "gws-foo", h, fakeRoles{}))
}

func TestUserHasDeleteFromHoldingPermission_ManagerOfGroupAllowed(t *testing.T) {
	h := Holding{User: "alice", Group: "gws-foo"}
	roles := fakeRoles{managerOf: map[string]bool{"bob/gws-foo": true}}
	assert.True(t, UserHasDeleteFromHoldingPermission("bob", "gws-foo", h, roles))
}

func TestUserHasDeleteFromHoldingPermission_UnrelatedUserDenied(t *testing.T) {
	h := Holding{User: "alice", Group: "gws-foo"}
	assert.False(t, UserHasDeleteFromHoldingPermission("eve", "gws-foo", h, fakeRoles{}))
}
