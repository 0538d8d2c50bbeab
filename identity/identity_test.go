package identity

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuthenticateToken_ActiveTrue(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok123", r.Header.Get("Authorization"))
		json.NewEncoder(w).Encode(map[string]bool{"active": true})
	}))
	defer srv.Close()

	c := New(Config{TokenIntrospectURL: srv.URL})
	active, err := c.AuthenticateToken(context.Background(), "tok123")
	require.NoError(t, err)
	assert.True(t, active)
}

func TestAuthenticateUser_MatchesUsername(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"username": "alice"})
	}))
	defer srv.Close()

	c := New(Config{UserProfileURL: srv.URL})
	ok, err := c.AuthenticateUser(context.Background(), "tok", "alice")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = c.AuthenticateUser(context.Background(), "tok", "bob")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestAuthenticateGroup_MembershipLookup(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string][]string{"group_workspaces": {"gws-foo", "gws-bar"}})
	}))
	defer srv.Close()

	c := New(Config{UserServicesURL: srv.URL})
	ok, err := c.AuthenticateGroup(context.Background(), "tok", "gws-foo")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = c.AuthenticateGroup(context.Background(), "tok", "gws-absent")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestAuthenticateGroup_NonOKStatusIsFalseNotError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := New(Config{UserServicesURL: srv.URL})
	ok, err := c.AuthenticateGroup(context.Background(), "badtok", "gws-foo")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestGetTapeQuota_ExtractsProvisionedTapeResource(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode([]serviceInfo{{
			Category: serviceCategoryGroupWorkspace,
			Requirements: []serviceRequirement{
				{Status: requirementStatusProvisioned, Amount: 1 << 40, Resource: serviceResource{ShortName: "tape"}},
				{Status: 10, Amount: 99, Resource: serviceResource{ShortName: "tape"}},
			},
		}})
	}))
	defer srv.Close()

	c := New(Config{UserServicesURL: srv.URL})
	quota, err := c.GetTapeQuota(context.Background(), "tok", "gws-foo")
	require.NoError(t, err)
	assert.Equal(t, int64(1<<40), quota)
}

func TestGetTapeQuota_NoProvisionedTapeResourceErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode([]serviceInfo{{
			Category:     serviceCategoryGroupWorkspace,
			Requirements: []serviceRequirement{{Status: 10, Amount: 1, Resource: serviceResource{ShortName: "tape"}}},
		}})
	}))
	defer srv.Close()

	c := New(Config{UserServicesURL: srv.URL})
	_, err := c.GetTapeQuota(context.Background(), "tok", "gws-foo")
	assert.Error(t, err)
}

func TestAuthenticateGrants_ManagerOrDeputyDetected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(grantsResponse{GroupWorkspaces: map[string][]string{
			"gws-foo": {"MANAGER"},
			"gws-bar": {"USER"},
		}})
	}))
	defer srv.Close()

	c := New(Config{UserGrantsURL: srv.URL})
	ok, err := c.AuthenticateGrants(context.Background(), "tok", "gws-foo")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = c.AuthenticateGrants(context.Background(), "tok", "gws-bar")
	require.NoError(t, err)
	assert.False(t, ok)
}
