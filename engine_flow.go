package mfaflow

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/MrEthical07/mfaflow/credstore"
	"github.com/MrEthical07/mfaflow/oauth"
	"github.com/MrEthical07/mfaflow/step"
	"github.com/google/uuid"
)

// StepID identifies one wizard step within a flow.
type StepID uint8

const (
	StepConfiguration StepID = iota
	StepDeviceSelection
	StepRegistration
	StepActivation
	StepAssertion
	StepComplete
)

func (s StepID) String() string {
	switch s {
	case StepConfiguration:
		return "CONFIGURATION"
	case StepDeviceSelection:
		return "DEVICE_SELECTION"
	case StepRegistration:
		return "REGISTRATION"
	case StepActivation:
		return "ACTIVATION"
	case StepAssertion:
		return "ASSERTION"
	case StepComplete:
		return "COMPLETE"
	default:
		return "UNKNOWN"
	}
}

// stepsForDeviceType builds the wizard step list for a device type. OTP-based
// types carry an activation step, FIDO2 an assertion step, and mobile pairing
// completes at registration.
func stepsForDeviceType(t DeviceType) []StepID {
	switch t {
	case DeviceFIDO2:
		return []StepID{StepConfiguration, StepDeviceSelection, StepRegistration, StepAssertion, StepComplete}
	case DeviceMobile:
		return []StepID{StepConfiguration, StepDeviceSelection, StepRegistration, StepComplete}
	default:
		return []StepID{StepConfiguration, StepDeviceSelection, StepRegistration, StepActivation, StepComplete}
	}
}

// Flow is one registration/authentication wizard run over a credential
// bundle. A Flow is safe for concurrent use; mutating operations that reach
// the platform are serialized by a busy guard and overlap attempts fail with
// ErrOperationInFlight.
type Flow struct {
	engine     *Engine
	id         string
	deviceType DeviceType
	steps      []StepID
	nav        *step.Navigator

	mu    sync.Mutex
	creds *Credentials
	state FlowState

	// auditID mirrors the audited credential fields so emitAudit never reads
	// creds directly; some emit sites hold f.mu, some do not.
	auditID atomic.Pointer[auditIdentity]

	busy atomic.Bool
}

// StartFlow opens a flow for the named credential bundle. A missing bundle
// starts the flow with empty credentials rather than failing, since entering
// them is what the configuration step is for.
//
// StartFlow may return an error when input validation, dependency calls, or security checks fail.
// StartFlow does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) StartFlow(ctx context.Context, name string, deviceType DeviceType) (*Flow, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}
	if !deviceType.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrDeviceTypeUnsupported, deviceType)
	}

	var creds *Credentials
	bundle, err := e.credentials.Get(ctx, name)
	switch {
	case err == nil:
		creds = credentialsFromBundle(name, bundle)
	case errors.Is(err, credstore.ErrNotFound):
		creds = &Credentials{Name: name, TokenKind: TokenWorker}
	default:
		return nil, err
	}
	creds.DeviceType = deviceType

	steps := stepsForDeviceType(deviceType)
	f := &Flow{
		engine:     e,
		id:         uuid.NewString(),
		deviceType: deviceType,
		steps:      steps,
		nav:        step.New(len(steps), nil),
		creds:      creds,
	}
	f.refreshAuditIdentityLocked()

	e.metricInc(MetricFlowStarted)
	e.emitAudit(ctx, auditEventFlowStarted, true, f, "", nil, nil)
	return f, nil
}

// ID returns the flow's unique identifier.
func (f *Flow) ID() string {
	return f.id
}

// DeviceType returns the device type this flow was opened for.
func (f *Flow) DeviceType() DeviceType {
	return f.deviceType
}

// Steps returns the wizard step list in order.
func (f *Flow) Steps() []StepID {
	out := make([]StepID, len(f.steps))
	copy(out, f.steps)
	return out
}

// Navigator exposes the underlying step navigator for rendering.
func (f *Flow) Navigator() *step.Navigator {
	return f.nav
}

// CurrentStep returns the step the flow is on.
func (f *Flow) CurrentStep() StepID {
	return f.steps[f.nav.Current()]
}

// Credentials returns a copy of the flow's credential bundle.
func (f *Flow) Credentials() Credentials {
	f.mu.Lock()
	defer f.mu.Unlock()
	return *f.creds
}

// State returns a copy of the flow's working state.
func (f *Flow) State() FlowState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

func (f *Flow) stepIndex(id StepID) int {
	for i, s := range f.steps {
		if s == id {
			return i
		}
	}
	return -1
}

// refreshAuditIdentityLocked republishes the credential fields audit events
// carry. Called with f.mu held, or before the flow is shared.
func (f *Flow) refreshAuditIdentityLocked() {
	f.auditID.Store(&auditIdentity{
		environmentID: f.creds.EnvironmentID,
		username:      f.creds.Username,
	})
}

func (f *Flow) pushError(message string) {
	f.mu.Lock()
	f.state.LastError = message
	f.mu.Unlock()
	f.nav.PushError(message)
	f.engine.notify(NotifyError, message)
}

func (f *Flow) pushWarning(message string) {
	f.nav.PushWarning(message)
	f.engine.notify(NotifyWarning, message)
}

// UpdateCredentials applies a mutation to the bundle, persists it, and wakes
// the token watcher.
//
// UpdateCredentials may return an error when input validation, dependency calls, or security checks fail.
// UpdateCredentials does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (f *Flow) UpdateCredentials(ctx context.Context, mutate func(*Credentials)) error {
	if f == nil || f.engine == nil {
		return ErrEngineNotReady
	}
	if mutate == nil {
		return errors.New("mutation required")
	}

	f.mu.Lock()
	mutate(f.creds)
	f.creds.DeviceType = f.deviceType
	f.refreshAuditIdentityLocked()
	bundle := f.creds.bundle()
	name := f.creds.Name
	f.mu.Unlock()

	if err := f.engine.credentials.Put(ctx, name, bundle); err != nil {
		return err
	}
	f.engine.NotifyTokenUpdated()
	return nil
}

// SwitchTokenKind changes the authoritative token kind on the bundle and
// persists the change. Without force, a still-valid active token refuses the
// switch.
//
// SwitchTokenKind may return an error when input validation, dependency calls, or security checks fail.
// SwitchTokenKind does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (f *Flow) SwitchTokenKind(ctx context.Context, kind TokenKind, force bool) error {
	if f == nil || f.engine == nil {
		return ErrEngineNotReady
	}

	f.mu.Lock()
	err := f.creds.SwitchTokenKind(kind, force, f.engine.now())
	f.refreshAuditIdentityLocked()
	bundle := f.creds.bundle()
	name := f.creds.Name
	f.mu.Unlock()
	if err != nil {
		return err
	}

	if err := f.engine.credentials.Put(ctx, name, bundle); err != nil {
		return err
	}
	f.engine.metricInc(MetricTokenSwitched)
	f.engine.emitAudit(ctx, auditEventTokenSwitched, true, f, "", nil, func() map[string]string {
		return map[string]string{"kind": string(kind)}
	})
	f.engine.NotifyTokenUpdated()
	return nil
}

// EnsurePolicy resolves the flow's effective policy: an explicitly selected
// policy that still exists is kept, otherwise the first available policy is
// auto-selected and persisted.
//
// EnsurePolicy may return an error when input validation, dependency calls, or security checks fail.
// EnsurePolicy does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (f *Flow) EnsurePolicy(ctx context.Context) (string, error) {
	if f == nil || f.engine == nil {
		return "", ErrEngineNotReady
	}

	f.mu.Lock()
	creds := *f.creds
	f.mu.Unlock()

	policies, err := f.engine.ListPolicies(ctx, &creds)
	if err != nil {
		return "", err
	}

	effective := EffectivePolicyID(creds.PolicyID, policies)
	if effective == "" {
		return "", fmt.Errorf("%w: no device authentication policies available", ErrPolicyFetchFailed)
	}
	if effective == creds.PolicyID {
		return effective, nil
	}

	if err := f.UpdateCredentials(ctx, func(c *Credentials) {
		c.PolicyID = effective
	}); err != nil {
		return "", err
	}
	return effective, nil
}

// CanAdvanceConfiguration reports whether the configuration step's guard
// holds: environment id, username and policy id present, and the active
// token valid. The result is a pure function of the bundle and the clock.
func (f *Flow) CanAdvanceConfiguration() bool {
	f.mu.Lock()
	creds := *f.creds
	f.mu.Unlock()

	if creds.EnvironmentID == "" || creds.Username == "" || creds.PolicyID == "" {
		return false
	}
	return evaluateToken(creds.TokenKind, creds.ActiveToken(), f.engine.now()).Valid
}

// Next advances the wizard by one step after enforcing the current step's
// guard. Guard failures surface on the navigator's validation channel and as
// an ErrStepGuardFailed-wrapped error.
//
// Next may return an error when input validation, dependency calls, or security checks fail.
// Next does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (f *Flow) Next(ctx context.Context) error {
	if f == nil || f.engine == nil {
		return ErrEngineNotReady
	}

	current := f.CurrentStep()
	switch current {
	case StepConfiguration:
		if !f.CanAdvanceConfiguration() {
			err := fmt.Errorf("%w: configuration incomplete or token invalid", ErrStepGuardFailed)
			f.pushError(err.Error())
			return err
		}

	case StepDeviceSelection:
		// A selected device starts an authentication session; no selection
		// routes toward registration.
		f.mu.Lock()
		deviceID := f.state.DeviceID
		f.mu.Unlock()
		if deviceID != "" {
			_, err := f.InitializeAuthentication(ctx, deviceID)
			return err
		}

	case StepRegistration:
		f.mu.Lock()
		deviceID := f.state.DeviceID
		status := f.state.DeviceStatus
		f.mu.Unlock()
		if deviceID == "" {
			err := fmt.Errorf("%w: register a device first", ErrStepGuardFailed)
			f.pushError(err.Error())
			return err
		}
		if status == StatusActive {
			// Nothing left to prove; skip activation or assertion.
			f.nav.MarkCurrentComplete()
			return f.goToStep(StepComplete)
		}

	case StepActivation:
		f.mu.Lock()
		validated := f.state.Challenge == ChallengeValidated
		f.mu.Unlock()
		if !validated {
			err := fmt.Errorf("%w: verify the code first", ErrStepGuardFailed)
			f.pushError(err.Error())
			return err
		}

	case StepAssertion:
		f.mu.Lock()
		asserted := f.state.AssertionCompleted
		f.mu.Unlock()
		if !asserted {
			err := fmt.Errorf("%w: complete the security key prompt first", ErrStepGuardFailed)
			f.pushError(err.Error())
			return err
		}

	case StepComplete:
		// Advancing past the terminal step restarts the wizard.
		return f.Reset(ctx)
	}

	f.nav.MarkCurrentComplete()
	f.nav.Next()
	if f.CurrentStep() == StepComplete {
		f.engine.metricInc(MetricFlowCompleted)
		f.engine.emitAudit(ctx, auditEventFlowCompleted, true, f, "", nil, nil)
	}
	return nil
}

// Back moves one step backward. At the first step it is a no-op.
func (f *Flow) Back() {
	if f == nil {
		return
	}
	f.nav.Previous()
}

// SelectDevice records the device the user picked on the selection step.
func (f *Flow) SelectDevice(deviceID string) {
	if f == nil {
		return
	}
	f.mu.Lock()
	f.state.DeviceID = deviceID
	f.mu.Unlock()
}

func (f *Flow) goToStep(id StepID) error {
	idx := f.stepIndex(id)
	if idx < 0 {
		return fmt.Errorf("%w: flow has no %s step", ErrAuthenticationAnomaly, id)
	}
	if id == StepComplete {
		f.engine.metricInc(MetricFlowCompleted)
	}
	return f.nav.GoTo(idx)
}

// applyNextStepLocked maps the platform's next-step signal onto navigation.
// Called with f.mu held. An unrecognized signal or a selection demand after
// an explicit device choice is an anomaly, not a success.
func (f *Flow) applyNextStepLocked(ctx context.Context, next NextStep, explicitDevice bool) error {
	e := f.engine

	fail := func(reason string) error {
		e.metricInc(MetricAuthAnomaly)
		e.emitAudit(ctx, auditEventAuthAnomaly, false, f, f.state.DeviceID, ErrAuthenticationAnomaly, func() map[string]string {
			return map[string]string{"next_step": string(next), "reason": reason}
		})
		err := fmt.Errorf("%w: %s", ErrAuthenticationAnomaly, reason)
		f.state.LastError = err.Error()
		f.nav.PushError(err.Error())
		return err
	}

	switch next {
	case NextCompleted:
		f.nav.MarkCurrentComplete()
		return f.goToStep(StepComplete)
	case NextOTPRequired:
		if idx := f.stepIndex(StepActivation); idx >= 0 {
			f.state.Challenge = ChallengeSent
			f.nav.MarkCurrentComplete()
			return f.nav.GoTo(idx)
		}
		return fail("platform demanded an OTP for a flow without an activation step")
	case NextAssertionRequired:
		if idx := f.stepIndex(StepAssertion); idx >= 0 {
			f.nav.MarkCurrentComplete()
			return f.nav.GoTo(idx)
		}
		return fail("platform demanded an assertion for a non-FIDO2 flow")
	case NextSelectionRequired:
		if explicitDevice {
			return fail("platform demanded device selection after an explicit device choice")
		}
		if idx := f.stepIndex(StepDeviceSelection); idx >= 0 {
			return f.nav.GoTo(idx)
		}
		return fail("platform demanded device selection for a flow without a selection step")
	default:
		return fail(fmt.Sprintf("unrecognized next step %q", next))
	}
}

// Reset returns the flow to the first step and clears all working state.
// Credentials survive a reset; challenge counters are cleared best-effort.
//
// Reset may return an error when input validation, dependency calls, or security checks fail.
// Reset does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (f *Flow) Reset(ctx context.Context) error {
	if f == nil || f.engine == nil {
		return ErrEngineNotReady
	}

	e := f.engine

	f.mu.Lock()
	target := f.challengeTarget()
	hadChallenge := f.state.Challenge != ChallengeNotSent
	f.state = FlowState{}
	f.mu.Unlock()

	if hadChallenge {
		if err := e.challenges.Reset(ctx, target); err != nil {
			e.emitAudit(ctx, auditEventFlowReset, true, f, "", err, nil)
		}
	}

	f.nav.Reset()
	e.metricInc(MetricFlowReset)
	e.emitAudit(ctx, auditEventFlowReset, true, f, "", nil, nil)
	return nil
}

// Cancel abandons the current run: any active authentication session is
// cancelled remotely (fire-and-forget) and the wizard returns to device
// selection with challenge state cleared.
//
// Cancel may return an error when input validation, dependency calls, or security checks fail.
// Cancel does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (f *Flow) Cancel(ctx context.Context, reason string) error {
	if f == nil || f.engine == nil {
		return ErrEngineNotReady
	}

	e := f.engine

	f.mu.Lock()
	authID := f.state.AuthenticationID
	f.mu.Unlock()

	if authID != "" {
		if err := f.CancelAuthentication(ctx, reason); err != nil && !errors.Is(err, ErrAuthenticationNotActive) {
			return err
		}
	}

	f.mu.Lock()
	f.state.DeviceID = ""
	f.state.DeviceStatus = ""
	f.state.Challenge = ChallengeNotSent
	f.state.ChallengeAttempts = 0
	f.state.AssertionOptions = nil
	f.state.AssertionCompleted = false
	f.mu.Unlock()

	e.metricInc(MetricFlowCancelled)
	e.emitAudit(ctx, auditEventFlowCancelled, true, f, "", nil, func() map[string]string {
		return map[string]string{"reason": reason}
	})
	return f.goToStep(StepDeviceSelection)
}

// CompleteOAuth exchanges an authorization code for a user token, stores it
// as the authoritative token, and wakes the token watcher.
//
// CompleteOAuth may return an error when input validation, dependency calls, or security checks fail.
// CompleteOAuth does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (f *Flow) CompleteOAuth(ctx context.Context, code, verifier string) error {
	if f == nil || f.engine == nil {
		return ErrEngineNotReady
	}

	e := f.engine
	if e.exchanger == nil {
		return ErrOAuthNotConfigured
	}

	token, err := e.exchanger.Exchange(ctx, code, verifier)
	if err != nil {
		e.metricInc(MetricOAuthExchangeFailure)
		xerr := fmt.Errorf("%w: %v", ErrOAuthExchangeFailed, err)
		if errors.Is(err, oauth.ErrCodeExpired) {
			xerr = fmt.Errorf("%w: %v", ErrOAuthCodeExpired, err)
		}
		e.emitAudit(ctx, auditEventOAuthExchange, false, f, "", xerr, nil)
		f.pushError(xerr.Error())
		return xerr
	}

	if err := f.UpdateCredentials(ctx, func(c *Credentials) {
		c.SetToken(TokenUser, TokenMaterial{Token: token})
	}); err != nil {
		return err
	}

	e.metricInc(MetricOAuthExchangeSuccess)
	e.emitAudit(ctx, auditEventOAuthExchange, true, f, "", nil, nil)
	return nil
}
