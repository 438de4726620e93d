package mfaflow

import (
	"context"
	"fmt"
	"log"

	"github.com/MrEthical07/mfaflow/platform"
)

// InitializeAuthentication starts a device authentication session, optionally
// pinned to one device. The platform's next-step signal drives the flow's
// navigation; an unrecognized signal is treated as an anomaly rather than a
// success.
//
// InitializeAuthentication may return an error when input validation, dependency calls, or security checks fail.
// InitializeAuthentication does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (f *Flow) InitializeAuthentication(ctx context.Context, deviceID string) (*AuthenticationSession, error) {
	if f == nil || f.engine == nil {
		return nil, ErrEngineNotReady
	}
	if !f.busy.CompareAndSwap(false, true) {
		return nil, ErrOperationInFlight
	}
	defer f.busy.Store(false)

	e := f.engine

	f.mu.Lock()
	creds := *f.creds
	f.mu.Unlock()

	if creds.EnvironmentID == "" || creds.Username == "" {
		return nil, fmt.Errorf("%w: environment id and username required", ErrCredentialsIncomplete)
	}

	result, err := e.platform.InitializeAuthentication(ctx, platform.InitializeAuthenticationRequest{
		EnvironmentID: creds.EnvironmentID,
		Username:      creds.Username,
		Auth:          creds.Auth(),
		DeviceID:      deviceID,
		PolicyID:      creds.PolicyID,
	})
	if err != nil {
		e.emitAudit(ctx, auditEventAuthInitialized, false, f, deviceID, ErrAuthenticationAnomaly, nil)
		initErr := fmt.Errorf("%w: %v", ErrChallengeSendFailed, remoteMessage(err))
		f.pushError(initErr.Error())
		return nil, initErr
	}

	f.mu.Lock()
	f.state.AuthenticationID = result.AuthenticationID
	f.state.AssertionOptions = result.AssertionOptions
	if deviceID != "" {
		f.state.DeviceID = deviceID
	}
	applyErr := f.applyNextStepLocked(ctx, result.NextStep, deviceID != "")
	f.mu.Unlock()

	e.metricInc(MetricAuthInitialized)
	e.emitAudit(ctx, auditEventAuthInitialized, applyErr == nil, f, deviceID, applyErr, func() map[string]string {
		return map[string]string{"next_step": string(result.NextStep)}
	})
	if applyErr != nil {
		return nil, applyErr
	}

	return &AuthenticationSession{
		ID:               result.AuthenticationID,
		NextStep:         result.NextStep,
		AssertionOptions: result.AssertionOptions,
	}, nil
}

// CancelAuthentication abandons the active session. The remote cancel is
// fire-and-forget: a platform failure is logged and the local state is
// cleared regardless, so the user is never stuck in a dead session.
//
// CancelAuthentication may return an error when input validation, dependency calls, or security checks fail.
// CancelAuthentication does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (f *Flow) CancelAuthentication(ctx context.Context, reason string) error {
	if f == nil || f.engine == nil {
		return ErrEngineNotReady
	}

	e := f.engine

	f.mu.Lock()
	creds := *f.creds
	authID := f.state.AuthenticationID
	f.mu.Unlock()

	if authID == "" {
		return ErrAuthenticationNotActive
	}

	err := e.platform.CancelAuthentication(ctx, platform.CancelAuthenticationRequest{
		EnvironmentID:    creds.EnvironmentID,
		Auth:             creds.Auth(),
		AuthenticationID: authID,
		Reason:           reason,
	})
	if err != nil {
		log.Printf("mfaflow: remote authentication cancel failed, clearing local state anyway: %v", err)
	}

	f.mu.Lock()
	f.state.AuthenticationID = ""
	f.state.AssertionOptions = nil
	f.state.Challenge = ChallengeNotSent
	f.state.ChallengeAttempts = 0
	f.mu.Unlock()

	e.metricInc(MetricAuthCancelled)
	e.emitAudit(ctx, auditEventAuthCancelled, err == nil, f, "", nil, func() map[string]string {
		return map[string]string{"reason": reason}
	})
	return nil
}

// PerformAssertion runs the WebAuthn assertion ceremony for a session in the
// ASSERTION_REQUIRED state.
//
// PerformAssertion may return an error when input validation, dependency calls, or security checks fail.
// PerformAssertion does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (f *Flow) PerformAssertion(ctx context.Context) error {
	if f == nil || f.engine == nil {
		return ErrEngineNotReady
	}
	if !f.busy.CompareAndSwap(false, true) {
		return ErrOperationInFlight
	}
	defer f.busy.Store(false)

	e := f.engine
	if e.ceremony == nil {
		return ErrCeremonyUnavailable
	}

	f.mu.Lock()
	options := f.state.AssertionOptions
	authID := f.state.AuthenticationID
	f.mu.Unlock()

	if authID == "" {
		return ErrAuthenticationNotActive
	}

	if _, err := e.ceremony.GetAssertion(ctx, options); err != nil {
		e.metricInc(MetricAssertionFailure)
		e.emitAudit(ctx, auditEventAssertion, false, f, "", ErrAuthenticationAnomaly, nil)
		assertErr := fmt.Errorf("%w: assertion: %v", ErrAuthenticationAnomaly, err)
		f.pushError(assertErr.Error())
		return assertErr
	}

	f.mu.Lock()
	f.state.AssertionCompleted = true
	f.mu.Unlock()

	e.metricInc(MetricAssertionSuccess)
	e.emitAudit(ctx, auditEventAssertion, true, f, "", nil, nil)
	return nil
}
