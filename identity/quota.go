package identity

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
)

// serviceCategoryGroupWorkspace is the category id the portal uses for
// group-workspace services, mirroring the original's magic constant
// (attr["category"] == 1).
const serviceCategoryGroupWorkspace = 1

// requirementStatusProvisioned is the requirement status id meaning the
// resource has actually been granted, not merely requested.
const requirementStatusProvisioned = 50

// tapeResourceShortName is the resource short_name the portal uses for
// tape allocation.
const tapeResourceShortName = "tape"

type serviceResource struct {
	ShortName string `json:"short_name"`
}

type serviceRequirement struct {
	Status   int             `json:"status"`
	Amount   int64           `json:"amount"`
	Resource serviceResource `json:"resource"`
}

type serviceInfo struct {
	Category     int                  `json:"category"`
	Requirements []serviceRequirement `json:"requirements"`
}

// GetTapeQuota resolves the provisioned tape allocation, in bytes, for
// the group workspace named serviceName (spec.md §9 get_tape_quota),
// grounded on the original's Quotas.extract_tape_quota.
func (c *Client) GetTapeQuota(ctx context.Context, token, serviceName string) (int64, error) {
	if c.cfg.UserServicesURL == "" {
		return 0, fmt.Errorf("identity: user services url not configured")
	}

	u := c.cfg.UserServicesURL + "?name=" + url.QueryEscape(serviceName)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return 0, fmt.Errorf("build tape quota request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("cache-control", "no-cache")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("reach user services url: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("identity: error getting service information for %s", serviceName)
	}

	var services []serviceInfo
	if err := json.NewDecoder(resp.Body).Decode(&services); err != nil {
		return 0, fmt.Errorf("decode service information: %w", err)
	}

	var requirements []serviceRequirement
	for _, svc := range services {
		if svc.Category != serviceCategoryGroupWorkspace {
			return 0, fmt.Errorf("identity: no group workspace named %s found", serviceName)
		}
		if len(svc.Requirements) == 0 {
			return 0, fmt.Errorf("identity: no requirements found for %s", serviceName)
		}
		requirements = svc.Requirements
	}

	for _, req := range requirements {
		if req.Status != requirementStatusProvisioned {
			continue
		}
		if req.Resource.ShortName != tapeResourceShortName {
			continue
		}
		if req.Amount == 0 {
			return 0, fmt.Errorf("identity: tape quota for %s is zero or missing", serviceName)
		}
		return req.Amount, nil
	}

	return 0, fmt.Errorf("identity: no provisioned tape resource found for %s", serviceName)
}

// GetServiceInformation returns the raw requirement list for serviceName
// (spec.md §9 get_service_information), for callers that need more than
// just the tape quota (e.g. a future disk-quota check).
func (c *Client) GetServiceInformation(ctx context.Context, token, serviceName string) ([]serviceRequirement, error) {
	if c.cfg.UserServicesURL == "" {
		return nil, fmt.Errorf("identity: user services url not configured")
	}

	u := c.cfg.UserServicesURL + "?name=" + url.QueryEscape(serviceName)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("build service information request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("cache-control", "no-cache")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("reach user services url: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("identity: error getting service information for %s", serviceName)
	}

	var services []serviceInfo
	if err := json.NewDecoder(resp.Body).Decode(&services); err != nil {
		return nil, fmt.Errorf("decode service information: %w", err)
	}
	for _, svc := range services {
		return svc.Requirements, nil
	}
	return nil, nil
}
