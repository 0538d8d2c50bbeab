package identity

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/google/uuid"
)

// managerRole and deputyRole are the two role strings user_grants_url
// reports (spec.md §9, §4.5 "Admin role").
const (
	managerRole = "MANAGER"
	deputyRole  = "DEPUTY"
)

// grantsResponse is the user_grants_url body: each group workspace name
// mapped to the caller's role strings in it,
// `{group_workspaces: {group: [role, ...]}}`.
type grantsResponse struct {
	GroupWorkspaces map[string][]string `json:"group_workspaces"`
}

// AuthenticateGrants reports whether token's holder has role MANAGER or
// DEPUTY in group, by calling UserGrantsURL directly (no cache).
func (c *Client) AuthenticateGrants(ctx context.Context, token, group string) (bool, error) {
	if c.cfg.UserGrantsURL == "" {
		return false, fmt.Errorf("identity: user grants url not configured")
	}
	resp, err := c.authedGet(ctx, c.cfg.UserGrantsURL, token)
	if err != nil {
		return false, fmt.Errorf("reach user grants url: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return false, nil
	}

	var body grantsResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return false, fmt.Errorf("decode user grants response: %w", err)
	}
	for _, role := range body.GroupWorkspaces[group] {
		if role == managerRole || role == deputyRole {
			return true, nil
		}
	}
	return false, nil
}

// RoleResolver is a per-transaction MANAGER/DEPUTY resolver, satisfying
// catalog.RoleResolver, that caches its answer in redis for the life of
// one transaction (spec.md §4.5 "the engine caches the answer for the
// life of one transaction").
type RoleResolver struct {
	client        *Client
	cache         *Cache
	token         string
	transactionID uuid.UUID
}

// NewRoleResolver builds a RoleResolver scoped to one transaction and
// bearer token.
func NewRoleResolver(client *Client, cache *Cache, transactionID uuid.UUID, token string) *RoleResolver {
	return &RoleResolver{client: client, cache: cache, token: token, transactionID: transactionID}
}

// IsManagerOrDeputy implements catalog.RoleResolver. A portal error is
// treated as "not a manager/deputy" rather than propagated, since the
// caller only uses this to grant additional access beyond ownership —
// failing closed never locks an owner out of their own holding.
func (r *RoleResolver) IsManagerOrDeputy(user, group string) bool {
	ctx := context.Background()
	if v, ok := r.cache.CachedIsManagerOrDeputy(ctx, r.transactionID, user, group); ok {
		return v
	}

	value, err := r.client.AuthenticateGrants(ctx, r.token, group)
	if err != nil {
		value = false
	}
	_ = r.cache.StoreIsManagerOrDeputy(ctx, r.transactionID, user, group, value)
	return value
}
