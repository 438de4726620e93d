package mfaflow

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/MrEthical07/mfaflow/platform"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

// fakePlatform implements platform.Client with per-method hooks. Nil hooks
// succeed with empty results.
type fakePlatform struct {
	listDevices    func(ctx context.Context, req platform.ListDevicesRequest) ([]platform.Device, error)
	createDevice   func(ctx context.Context, req platform.CreateDeviceRequest) (*platform.CreateDeviceResult, error)
	attestDevice   func(ctx context.Context, req platform.AttestDeviceRequest) (platform.DeviceStatus, error)
	activateDevice func(ctx context.Context, req platform.ActivateDeviceRequest) error
	deleteDevice   func(ctx context.Context, req platform.DeleteDeviceRequest) error
	sendOTP        func(ctx context.Context, req platform.SendOTPRequest) error
	validateOTP    func(ctx context.Context, req platform.ValidateOTPRequest) (*platform.ValidateOTPResult, error)
	initializeAuth func(ctx context.Context, req platform.InitializeAuthenticationRequest) (*platform.AuthenticationResult, error)
	cancelAuth     func(ctx context.Context, req platform.CancelAuthenticationRequest) error
	listPolicies   func(ctx context.Context, req platform.ListPoliciesRequest) ([]platform.Policy, error)
	listFIDO2      func(ctx context.Context, req platform.ListFIDO2PoliciesRequest) ([]platform.FIDO2Policy, error)

	policyCalls int32
	cancelCalls int32
}

func (f *fakePlatform) ListDevices(ctx context.Context, req platform.ListDevicesRequest) ([]platform.Device, error) {
	if f.listDevices != nil {
		return f.listDevices(ctx, req)
	}
	return nil, nil
}

func (f *fakePlatform) CreateDevice(ctx context.Context, req platform.CreateDeviceRequest) (*platform.CreateDeviceResult, error) {
	if f.createDevice != nil {
		return f.createDevice(ctx, req)
	}
	return &platform.CreateDeviceResult{DeviceID: "dev-1"}, nil
}

func (f *fakePlatform) AttestDevice(ctx context.Context, req platform.AttestDeviceRequest) (platform.DeviceStatus, error) {
	if f.attestDevice != nil {
		return f.attestDevice(ctx, req)
	}
	return platform.StatusActive, nil
}

func (f *fakePlatform) ActivateDevice(ctx context.Context, req platform.ActivateDeviceRequest) error {
	if f.activateDevice != nil {
		return f.activateDevice(ctx, req)
	}
	return nil
}

func (f *fakePlatform) DeleteDevice(ctx context.Context, req platform.DeleteDeviceRequest) error {
	if f.deleteDevice != nil {
		return f.deleteDevice(ctx, req)
	}
	return nil
}

func (f *fakePlatform) SendOTP(ctx context.Context, req platform.SendOTPRequest) error {
	if f.sendOTP != nil {
		return f.sendOTP(ctx, req)
	}
	return nil
}

func (f *fakePlatform) ValidateOTP(ctx context.Context, req platform.ValidateOTPRequest) (*platform.ValidateOTPResult, error) {
	if f.validateOTP != nil {
		return f.validateOTP(ctx, req)
	}
	return &platform.ValidateOTPResult{}, nil
}

func (f *fakePlatform) InitializeAuthentication(ctx context.Context, req platform.InitializeAuthenticationRequest) (*platform.AuthenticationResult, error) {
	if f.initializeAuth != nil {
		return f.initializeAuth(ctx, req)
	}
	return &platform.AuthenticationResult{AuthenticationID: "auth-1", NextStep: platform.NextCompleted}, nil
}

func (f *fakePlatform) CancelAuthentication(ctx context.Context, req platform.CancelAuthenticationRequest) error {
	atomic.AddInt32(&f.cancelCalls, 1)
	if f.cancelAuth != nil {
		return f.cancelAuth(ctx, req)
	}
	return nil
}

func (f *fakePlatform) ListPolicies(ctx context.Context, req platform.ListPoliciesRequest) ([]platform.Policy, error) {
	atomic.AddInt32(&f.policyCalls, 1)
	if f.listPolicies != nil {
		return f.listPolicies(ctx, req)
	}
	return []platform.Policy{{ID: "pol-1", Name: "Default", Default: true}}, nil
}

func (f *fakePlatform) ListFIDO2Policies(ctx context.Context, req platform.ListFIDO2PoliciesRequest) ([]platform.FIDO2Policy, error) {
	if f.listFIDO2 != nil {
		return f.listFIDO2(ctx, req)
	}
	return []platform.FIDO2Policy{{ID: "fp-1", Name: "Default"}}, nil
}

type fakeCeremony struct {
	createErr error
	assertErr error
}

func (c *fakeCeremony) CreateCredential(_ context.Context, _ []byte) ([]byte, error) {
	if c.createErr != nil {
		return nil, c.createErr
	}
	return []byte(`{"attestation":"ok"}`), nil
}

func (c *fakeCeremony) GetAssertion(_ context.Context, _ []byte) ([]byte, error) {
	if c.assertErr != nil {
		return nil, c.assertErr
	}
	return []byte(`{"assertion":"ok"}`), nil
}

type recordingSink struct {
	mu     sync.Mutex
	levels []NotificationLevel
	msgs   []string
}

func (s *recordingSink) Notify(level NotificationLevel, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.levels = append(s.levels, level)
	s.msgs = append(s.msgs, message)
}

// captureAuditSink records every dispatched audit event.
type captureAuditSink struct {
	mu     sync.Mutex
	events []AuditEvent
}

func (s *captureAuditSink) Emit(_ context.Context, event AuditEvent) {
	s.mu.Lock()
	s.events = append(s.events, event)
	s.mu.Unlock()
}

func (s *captureAuditSink) snapshot() []AuditEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]AuditEvent(nil), s.events...)
}

func newTestEngine(t *testing.T, fake *fakePlatform) (*Engine, *miniredis.Miniredis, func()) {
	t.Helper()
	return newTestEngineWithSink(t, fake, nil)
}

func newTestEngineWithAudit(t *testing.T, fake *fakePlatform, sink AuditSink) (*Engine, *miniredis.Miniredis, func()) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis start failed: %v", err)
	}
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	if fake == nil {
		fake = &fakePlatform{}
	}

	engine, err := New().
		WithRedis(client).
		WithPlatformClient(fake).
		WithCeremonyDriver(&fakeCeremony{}).
		WithAuditSink(sink).
		Build()
	if err != nil {
		mr.Close()
		t.Fatalf("Build failed: %v", err)
	}

	done := func() {
		engine.Close()
		_ = client.Close()
		mr.Close()
	}
	return engine, mr, done
}

func newTestEngineWithSink(t *testing.T, fake *fakePlatform, sink NotificationSink) (*Engine, *miniredis.Miniredis, func()) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis start failed: %v", err)
	}
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	if fake == nil {
		fake = &fakePlatform{}
	}

	builder := New().
		WithRedis(client).
		WithPlatformClient(fake).
		WithCeremonyDriver(&fakeCeremony{})
	if sink != nil {
		builder = builder.WithNotificationSink(sink)
	}

	engine, err := builder.Build()
	if err != nil {
		mr.Close()
		t.Fatalf("Build failed: %v", err)
	}

	done := func() {
		engine.Close()
		_ = client.Close()
		mr.Close()
	}
	return engine, mr, done
}

// testClock pins the engine clock so cooldown tests control time.
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock(e *Engine, at time.Time) *testClock {
	c := &testClock{now: at}
	e.clock = c.Now
	return c
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func startConfiguredFlow(t *testing.T, e *Engine, deviceType DeviceType) *Flow {
	t.Helper()
	flow, err := e.StartFlow(context.Background(), "bundle-1", deviceType)
	if err != nil {
		t.Fatalf("StartFlow failed: %v", err)
	}
	if err := flow.UpdateCredentials(context.Background(), func(c *Credentials) {
		c.EnvironmentID = "env-123"
		c.Username = "alice"
		c.PolicyID = "pol-1"
		c.SetToken(TokenWorker, TokenMaterial{
			Token:     "worker-token",
			ExpiresAt: time.Now().Add(time.Hour),
		})
	}); err != nil {
		t.Fatalf("UpdateCredentials failed: %v", err)
	}
	return flow
}
