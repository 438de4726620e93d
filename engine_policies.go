package mfaflow

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/MrEthical07/mfaflow/platform"
	"golang.org/x/sync/singleflight"
)

// policyCache caches device authentication policies per environment with a
// TTL and collapses concurrent fetches for the same environment into one
// remote call.
type policyCache struct {
	client platform.Client
	ttl    time.Duration
	group  singleflight.Group

	mu      sync.Mutex
	entries map[string]policyEntry
}

type policyEntry struct {
	policies  []Policy
	fetchedAt time.Time
}

func newPolicyCache(client platform.Client, ttl time.Duration) *policyCache {
	return &policyCache{
		client:  client,
		ttl:     ttl,
		entries: make(map[string]policyEntry),
	}
}

// List returns cached policies when fresh, otherwise fetches once per
// environment regardless of concurrent callers. The bool reports a cache hit.
func (c *policyCache) List(ctx context.Context, environmentID string, auth platform.Auth, now time.Time) ([]Policy, bool, error) {
	c.mu.Lock()
	if entry, ok := c.entries[environmentID]; ok && now.Sub(entry.fetchedAt) < c.ttl {
		c.mu.Unlock()
		return entry.policies, true, nil
	}
	c.mu.Unlock()

	result, err, _ := c.group.Do(environmentID, func() (any, error) {
		policies, err := c.client.ListPolicies(ctx, platform.ListPoliciesRequest{
			EnvironmentID: environmentID,
			Auth:          auth,
		})
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.entries[environmentID] = policyEntry{policies: policies, fetchedAt: now}
		c.mu.Unlock()
		return policies, nil
	})
	if err != nil {
		return nil, false, err
	}
	return result.([]Policy), false, nil
}

func (c *policyCache) invalidate(environmentID string) {
	c.mu.Lock()
	delete(c.entries, environmentID)
	c.mu.Unlock()
}

// ListPolicies describes the listpolicies operation and its observable behavior.
//
// ListPolicies may return an error when input validation, dependency calls, or security checks fail.
// ListPolicies does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) ListPolicies(ctx context.Context, creds *Credentials) ([]Policy, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}
	if creds == nil || creds.EnvironmentID == "" {
		return nil, fmt.Errorf("%w: environment id required", ErrCredentialsIncomplete)
	}

	policies, cached, err := e.policies.List(ctx, creds.EnvironmentID, creds.Auth(), e.now())
	if err != nil {
		e.metricInc(MetricPolicyFetchFailure)
		e.emitAudit(ctx, auditEventPolicyFetch, false, nil, "", ErrPolicyFetchFailed, nil)
		return nil, fmt.Errorf("%w: %v", ErrPolicyFetchFailed, err)
	}
	if cached {
		e.metricInc(MetricPolicyCacheHit)
	} else {
		e.metricInc(MetricPolicyFetchSuccess)
	}
	return policies, nil
}

// InvalidatePolicies drops the cached policy list for one environment.
func (e *Engine) InvalidatePolicies(environmentID string) {
	if e == nil || e.policies == nil {
		return
	}
	e.policies.invalidate(environmentID)
}

// ListFIDO2Policies describes the listfido2policies operation and its observable behavior.
//
// ListFIDO2Policies may return an error when input validation, dependency calls, or security checks fail.
// ListFIDO2Policies does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) ListFIDO2Policies(ctx context.Context, creds *Credentials) ([]FIDO2Policy, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}
	if creds == nil || creds.EnvironmentID == "" {
		return nil, fmt.Errorf("%w: environment id required", ErrCredentialsIncomplete)
	}

	policies, err := e.platform.ListFIDO2Policies(ctx, platform.ListFIDO2PoliciesRequest{
		EnvironmentID: creds.EnvironmentID,
		Auth:          creds.Auth(),
	})
	if err != nil {
		e.metricInc(MetricPolicyFetchFailure)
		return nil, fmt.Errorf("%w: %v", ErrPolicyFetchFailed, err)
	}
	e.metricInc(MetricPolicyFetchSuccess)
	return policies, nil
}

// EffectivePolicyID resolves the policy a flow should use: an explicitly
// selected policy that still exists wins, otherwise the first available
// policy is auto-selected. Empty when no policies exist.
func EffectivePolicyID(selected string, policies []Policy) string {
	if selected != "" {
		for _, p := range policies {
			if p.ID == selected {
				return selected
			}
		}
	}
	if len(policies) > 0 {
		return policies[0].ID
	}
	return ""
}
