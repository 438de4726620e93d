package mfaflow

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/MrEthical07/mfaflow/platform"
)

func TestListPoliciesCollapsesConcurrentFetches(t *testing.T) {
	gate := make(chan struct{})
	fake := &fakePlatform{}
	fake.listPolicies = func(_ context.Context, _ platform.ListPoliciesRequest) ([]platform.Policy, error) {
		<-gate
		return []platform.Policy{{ID: "pol-1", Name: "Default"}}, nil
	}
	engine, _, done := newTestEngine(t, fake)
	defer done()

	creds := &Credentials{EnvironmentID: "env-123", Username: "alice", TokenKind: TokenWorker}
	creds.Worker = TokenMaterial{Token: "w"}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := engine.ListPolicies(context.Background(), creds); err != nil {
				t.Errorf("ListPolicies failed: %v", err)
			}
		}()
	}
	time.Sleep(50 * time.Millisecond)
	close(gate)
	wg.Wait()

	if calls := atomic.LoadInt32(&fake.policyCalls); calls != 1 {
		t.Fatalf("expected exactly one remote fetch for concurrent callers, got %d", calls)
	}
}

func TestListPoliciesServesFromCacheWithinTTL(t *testing.T) {
	engine, _, done := newTestEngine(t, &fakePlatform{})
	defer done()

	creds := &Credentials{EnvironmentID: "env-123", Username: "alice", TokenKind: TokenWorker}
	creds.Worker = TokenMaterial{Token: "w"}

	if _, err := engine.ListPolicies(context.Background(), creds); err != nil {
		t.Fatalf("first ListPolicies failed: %v", err)
	}
	if _, err := engine.ListPolicies(context.Background(), creds); err != nil {
		t.Fatalf("second ListPolicies failed: %v", err)
	}

	snapshot := engine.MetricsSnapshot()
	if snapshot.Counters[MetricPolicyCacheHit] != 1 {
		t.Fatalf("expected one cache hit, got %d", snapshot.Counters[MetricPolicyCacheHit])
	}
}

func TestListPoliciesRefetchesAfterTTL(t *testing.T) {
	fake := &fakePlatform{}
	engine, _, done := newTestEngine(t, fake)
	defer done()
	clock := newTestClock(engine, time.Now())

	creds := &Credentials{EnvironmentID: "env-123", Username: "alice", TokenKind: TokenWorker}
	creds.Worker = TokenMaterial{Token: "w"}

	if _, err := engine.ListPolicies(context.Background(), creds); err != nil {
		t.Fatalf("first ListPolicies failed: %v", err)
	}
	clock.Advance(6 * time.Minute)
	if _, err := engine.ListPolicies(context.Background(), creds); err != nil {
		t.Fatalf("post-TTL ListPolicies failed: %v", err)
	}

	if calls := atomic.LoadInt32(&fake.policyCalls); calls != 2 {
		t.Fatalf("expected refetch after TTL, got %d calls", calls)
	}
}

func TestListPoliciesWrapsRemoteFailure(t *testing.T) {
	fake := &fakePlatform{
		listPolicies: func(_ context.Context, _ platform.ListPoliciesRequest) ([]platform.Policy, error) {
			return nil, &platform.Error{Status: 500, Message: "upstream down"}
		},
	}
	engine, _, done := newTestEngine(t, fake)
	defer done()

	creds := &Credentials{EnvironmentID: "env-123", TokenKind: TokenWorker}
	creds.Worker = TokenMaterial{Token: "w"}

	if _, err := engine.ListPolicies(context.Background(), creds); !errors.Is(err, ErrPolicyFetchFailed) {
		t.Fatalf("expected ErrPolicyFetchFailed, got %v", err)
	}
}

func TestEffectivePolicyID(t *testing.T) {
	policies := []Policy{{ID: "pol-1"}, {ID: "pol-2"}}

	if got := EffectivePolicyID("pol-2", policies); got != "pol-2" {
		t.Fatalf("existing selection must be kept, got %q", got)
	}
	if got := EffectivePolicyID("pol-gone", policies); got != "pol-1" {
		t.Fatalf("stale selection must fall back to first policy, got %q", got)
	}
	if got := EffectivePolicyID("", policies); got != "pol-1" {
		t.Fatalf("no selection must auto-select first policy, got %q", got)
	}
	if got := EffectivePolicyID("pol-1", nil); got != "" {
		t.Fatalf("no policies must yield empty, got %q", got)
	}
}

func TestEnsurePolicyAutoSelectsAndPersists(t *testing.T) {
	engine, _, done := newTestEngine(t, &fakePlatform{})
	defer done()

	flow, err := engine.StartFlow(context.Background(), "bundle-1", DeviceSMS)
	if err != nil {
		t.Fatalf("StartFlow failed: %v", err)
	}
	if err := flow.UpdateCredentials(context.Background(), func(c *Credentials) {
		c.EnvironmentID = "env-123"
		c.Username = "alice"
		c.SetToken(TokenWorker, TokenMaterial{Token: "w"})
	}); err != nil {
		t.Fatalf("UpdateCredentials failed: %v", err)
	}

	policyID, err := flow.EnsurePolicy(context.Background())
	if err != nil {
		t.Fatalf("EnsurePolicy failed: %v", err)
	}
	if policyID != "pol-1" {
		t.Fatalf("expected auto-selected pol-1, got %q", policyID)
	}
	if got := flow.Credentials().PolicyID; got != "pol-1" {
		t.Fatalf("expected persisted policy id, got %q", got)
	}
}
