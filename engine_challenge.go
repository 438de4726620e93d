package mfaflow

import (
	"context"
	"fmt"
	"strings"

	"github.com/MrEthical07/mfaflow/platform"
)

// NormalizeOTP strips every non-digit rune from user input and truncates the
// result to limit digits. Codes arrive pasted with spaces, dashes or
// invisible characters more often than clean, and over-long pastes keep
// their leading digits. A limit of zero or less disables truncation.
func NormalizeOTP(input string, limit int) string {
	var b strings.Builder
	b.Grow(len(input))
	for _, r := range input {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
		if limit > 0 && b.Len() == limit {
			break
		}
	}
	return b.String()
}

// challengeTarget scopes cooldown and attempt counters. Authentication
// challenges key on the session, activation challenges on the device.
func (f *Flow) challengeTarget() string {
	if f.state.AuthenticationID != "" {
		return "auth:" + f.state.AuthenticationID
	}
	return "dev:" + f.state.DeviceID
}

// SendChallenge issues the first OTP for the flow's current device. Resends
// go through ResendChallenge, which enforces the cooldown.
//
// SendChallenge may return an error when input validation, dependency calls, or security checks fail.
// SendChallenge does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (f *Flow) SendChallenge(ctx context.Context) error {
	if f == nil || f.engine == nil {
		return ErrEngineNotReady
	}
	if !f.busy.CompareAndSwap(false, true) {
		return ErrOperationInFlight
	}
	defer f.busy.Store(false)

	f.mu.Lock()
	if f.state.Challenge != ChallengeNotSent {
		f.mu.Unlock()
		return f.resendGuarded(ctx)
	}
	f.mu.Unlock()

	return f.sendOTP(ctx, false)
}

// ResendChallenge re-issues the OTP after the cooldown window has elapsed.
//
// ResendChallenge may return an error when input validation, dependency calls, or security checks fail.
// ResendChallenge does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (f *Flow) ResendChallenge(ctx context.Context) error {
	if f == nil || f.engine == nil {
		return ErrEngineNotReady
	}
	if !f.busy.CompareAndSwap(false, true) {
		return ErrOperationInFlight
	}
	defer f.busy.Store(false)

	return f.resendGuarded(ctx)
}

func (f *Flow) resendGuarded(ctx context.Context) error {
	f.mu.Lock()
	state := f.state.Challenge
	f.mu.Unlock()

	if state == ChallengeNotSent {
		return ErrChallengeNotSent
	}
	return f.sendOTP(ctx, true)
}

func (f *Flow) sendOTP(ctx context.Context, resend bool) error {
	e := f.engine

	f.mu.Lock()
	creds := *f.creds
	deviceID := f.state.DeviceID
	authID := f.state.AuthenticationID
	target := f.challengeTarget()
	f.mu.Unlock()

	if deviceID == "" && authID == "" {
		return fmt.Errorf("%w: no device or authentication to challenge", ErrChallengeNotSent)
	}

	now := e.now()
	if err := e.challenges.CheckResend(ctx, target, now, e.config.Challenge.ResendCooldown); err != nil {
		if resend {
			e.metricInc(MetricChallengeCooldownHit)
			e.emitAudit(ctx, auditEventChallengeCooldown, false, f, deviceID, ErrChallengeCooldown, nil)
		}
		return err
	}

	err := e.platform.SendOTP(ctx, platform.SendOTPRequest{
		EnvironmentID:    creds.EnvironmentID,
		Username:         creds.Username,
		Auth:             creds.Auth(),
		DeviceID:         deviceID,
		AuthenticationID: authID,
	})
	if err != nil {
		e.emitAudit(ctx, auditEventChallengeSent, false, f, deviceID, fmt.Errorf("%w: %w", ErrChallengeSendFailed, err), nil)
		sendErr := fmt.Errorf("%w: %v", ErrChallengeSendFailed, remoteMessage(err))
		f.pushError(sendErr.Error())
		return sendErr
	}

	if err := e.challenges.MarkSent(ctx, target, now, e.config.Challenge.StateTTL); err != nil {
		// The OTP is already on its way; a limiter write failure must not
		// surface as a send failure.
		e.emitAudit(ctx, auditEventChallengeSent, true, f, deviceID, err, nil)
	}

	f.mu.Lock()
	f.state.Challenge = ChallengeSent
	f.mu.Unlock()

	if resend {
		e.metricInc(MetricChallengeResent)
		e.emitAudit(ctx, auditEventChallengeResent, true, f, deviceID, nil, nil)
	} else {
		e.metricInc(MetricChallengeSent)
		e.emitAudit(ctx, auditEventChallengeSent, true, f, deviceID, nil, nil)
	}
	return nil
}

// ValidateChallenge submits a user-entered OTP. The code is normalized to
// digits and truncated to the configured length first; short codes are
// rejected locally without a remote call.
// Validation of an authentication challenge advances the flow according to
// the platform's next-step signal.
//
// ValidateChallenge may return an error when input validation, dependency calls, or security checks fail.
// ValidateChallenge does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (f *Flow) ValidateChallenge(ctx context.Context, otp string) error {
	if f == nil || f.engine == nil {
		return ErrEngineNotReady
	}
	if !f.busy.CompareAndSwap(false, true) {
		return ErrOperationInFlight
	}
	defer f.busy.Store(false)

	e := f.engine

	code := NormalizeOTP(otp, e.config.Challenge.OTPDigits)
	if len(code) != e.config.Challenge.OTPDigits {
		return fmt.Errorf("%w: need %d digits", ErrChallengeCodeIncomplete, e.config.Challenge.OTPDigits)
	}

	f.mu.Lock()
	creds := *f.creds
	deviceID := f.state.DeviceID
	authID := f.state.AuthenticationID
	target := f.challengeTarget()
	state := f.state.Challenge
	f.mu.Unlock()

	if state != ChallengeSent && state != ChallengeFailed {
		return ErrChallengeNotSent
	}

	var result *platform.ValidateOTPResult
	var err error
	if authID == "" {
		// Activation challenges go through the device activation endpoint;
		// a successful check activates the device server-side.
		err = e.platform.ActivateDevice(ctx, platform.ActivateDeviceRequest{
			EnvironmentID: creds.EnvironmentID,
			Username:      creds.Username,
			Auth:          creds.Auth(),
			DeviceID:      deviceID,
			OTP:           code,
		})
	} else {
		result, err = e.platform.ValidateOTP(ctx, platform.ValidateOTPRequest{
			EnvironmentID:    creds.EnvironmentID,
			Username:         creds.Username,
			Auth:             creds.Auth(),
			DeviceID:         deviceID,
			AuthenticationID: authID,
			OTP:              code,
		})
	}
	if err != nil {
		attempts, limErr := e.challenges.RecordFailure(ctx, target, e.config.Challenge.StateTTL)
		if limErr != nil {
			attempts = int64(f.attemptCount()) + 1
		}

		f.mu.Lock()
		f.state.Challenge = ChallengeFailed
		f.state.ChallengeAttempts = int(attempts)
		f.mu.Unlock()

		e.metricInc(MetricChallengeFailed)
		e.emitAudit(ctx, auditEventChallengeFailed, false, f, deviceID, fmt.Errorf("%w: %w", ErrChallengeValidationFailed, err), func() map[string]string {
			return map[string]string{"attempts": fmt.Sprintf("%d", attempts)}
		})

		if int(attempts) >= e.config.Challenge.MaxAttempts {
			e.metricInc(MetricChallengeAttemptsWarning)
			f.pushWarning(fmt.Sprintf("%d failed attempts; request a new code", attempts))
		}

		valErr := fmt.Errorf("%w: %v", ErrChallengeValidationFailed, remoteMessage(err))
		f.pushError(valErr.Error())
		return valErr
	}

	if err := e.challenges.Reset(ctx, target); err != nil {
		e.emitAudit(ctx, auditEventChallengeValidated, true, f, deviceID, err, nil)
	}

	f.mu.Lock()
	f.state.Challenge = ChallengeValidated
	f.state.ChallengeAttempts = 0
	if authID == "" && f.state.DeviceStatus == StatusActivationRequired {
		f.state.DeviceStatus = StatusActive
		e.metricInc(MetricDeviceActivated)
	}
	f.mu.Unlock()

	e.metricInc(MetricChallengeValidated)
	e.emitAudit(ctx, auditEventChallengeValidated, true, f, deviceID, nil, nil)
	e.notify(NotifySuccess, "code verified")

	if authID != "" && result != nil && result.NextStep != "" {
		f.mu.Lock()
		err := f.applyNextStepLocked(ctx, result.NextStep, deviceID != "")
		f.mu.Unlock()
		if err != nil {
			return err
		}
	}
	return nil
}

func (f *Flow) attemptCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state.ChallengeAttempts
}
