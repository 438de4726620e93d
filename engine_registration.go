package mfaflow

import (
	"context"
	"fmt"
	"strings"

	"github.com/MrEthical07/mfaflow/platform"
)

// computeDeviceStatus decides the effective status of a freshly registered
// device. Precedence:
//
//  1. An explicit admin status choice wins, but only while the worker token
//     kind is authoritative.
//  2. FIDO2 devices are born ACTIVE. The attestation itself proves possession.
//  3. TOTP devices registered under a user token are forced to
//     ACTIVATION_REQUIRED so the user proves the seed landed in their app.
//  4. Otherwise the platform-reported status applies, defaulting to
//     ACTIVATION_REQUIRED when the platform reports none.
func computeDeviceStatus(deviceType DeviceType, tokenKind TokenKind, explicit, reported DeviceStatus) DeviceStatus {
	if explicit != "" && tokenKind == TokenWorker {
		return explicit
	}
	if deviceType == DeviceFIDO2 {
		return StatusActive
	}
	if deviceType == DeviceTOTP && tokenKind == TokenUser {
		return StatusActivationRequired
	}
	if reported != "" {
		return reported
	}
	return StatusActivationRequired
}

// isDeviceLimitError classifies a registration failure as a device-limit
// rejection by inspecting the remote message. The platform does not expose a
// stable machine-readable code for this case.
func isDeviceLimitError(err error) bool {
	if err == nil {
		return false
	}
	message := err.Error()
	if apiErr, ok := platform.AsError(err); ok {
		message = apiErr.Message
	}
	message = strings.ToLower(message)
	for _, marker := range []string{"exceed", "limit", "maximum"} {
		if strings.Contains(message, marker) {
			return true
		}
	}
	return false
}

// RegisterDevice registers a new MFA device of the flow's configured type.
// FIDO2 registrations run two phases: device creation, then the WebAuthn
// ceremony plus attestation upload. A phase-two failure fails the whole
// operation; no partial success is reported.
//
// RegisterDevice may return an error when input validation, dependency calls, or security checks fail.
// RegisterDevice does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (f *Flow) RegisterDevice(ctx context.Context, req RegistrationRequest) (*RegistrationResult, error) {
	if f == nil || f.engine == nil {
		return nil, ErrEngineNotReady
	}
	if !f.busy.CompareAndSwap(false, true) {
		return nil, ErrOperationInFlight
	}
	defer f.busy.Store(false)

	e := f.engine
	start := e.now()

	f.mu.Lock()
	creds := *f.creds
	deviceType := f.deviceType
	f.mu.Unlock()

	if !deviceType.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrDeviceTypeUnsupported, deviceType)
	}
	if creds.EnvironmentID == "" || creds.Username == "" {
		return nil, fmt.Errorf("%w: environment id and username required", ErrCredentialsIncomplete)
	}

	explicit := req.Status
	if creds.TokenKind != TokenWorker {
		explicit = ""
	}

	created, err := e.platform.CreateDevice(ctx, platform.CreateDeviceRequest{
		EnvironmentID: creds.EnvironmentID,
		Username:      creds.Username,
		Auth:          creds.Auth(),
		Type:          deviceType,
		Nickname:      req.Nickname,
		Phone:         req.Phone,
		Email:         req.Email,
		PolicyID:      creds.PolicyID,
		Status:        explicit,
	})
	if err != nil {
		if isDeviceLimitError(err) {
			e.metricInc(MetricDeviceLimitRejected)
			e.emitAudit(ctx, auditEventDeviceLimit, false, f, "", ErrDeviceLimitExceeded, nil)
			limitErr := fmt.Errorf("%w: %v", ErrDeviceLimitExceeded, remoteMessage(err))
			f.pushError(limitErr.Error())
			return nil, limitErr
		}
		e.metricInc(MetricRegistrationFailure)
		e.emitAudit(ctx, auditEventDeviceRegistered, false, f, "", fmt.Errorf("%w: %w", ErrRegistrationFailed, err), nil)
		regErr := fmt.Errorf("%w: %v", ErrRegistrationFailed, remoteMessage(err))
		f.pushError(regErr.Error())
		return nil, regErr
	}

	if deviceType == DeviceFIDO2 {
		if err := f.completeFIDO2Registration(ctx, &creds, created); err != nil {
			e.metricInc(MetricRegistrationFailure)
			e.emitAudit(ctx, auditEventDeviceRegistered, false, f, created.DeviceID, err, nil)
			f.pushError(err.Error())
			return nil, err
		}
	}

	status := computeDeviceStatus(deviceType, creds.TokenKind, req.Status, created.Status)

	result := &RegistrationResult{
		DeviceID:          created.DeviceID,
		Status:            status,
		QRCode:            created.QRCode,
		Secret:            created.Secret,
		PairingKey:        created.PairingKey,
		CredentialOptions: created.CredentialOptions,
	}

	f.mu.Lock()
	f.state.DeviceID = result.DeviceID
	f.state.DeviceStatus = result.Status
	f.state.QRCode = result.QRCode
	f.state.Secret = result.Secret
	f.state.PairingKey = result.PairingKey
	f.state.CredentialOptions = result.CredentialOptions
	f.state.Challenge = ChallengeNotSent
	f.state.ChallengeAttempts = 0
	f.state.LastError = ""
	f.mu.Unlock()

	e.metricInc(MetricRegistrationSuccess)
	e.metricObserve(MetricRegisterLatency, e.now().Sub(start))
	e.emitAudit(ctx, auditEventDeviceRegistered, true, f, result.DeviceID, nil, func() map[string]string {
		return map[string]string{"status": string(result.Status)}
	})
	e.notify(NotifySuccess, "device registered")
	return result, nil
}

// completeFIDO2Registration runs the ceremony and uploads the attestation.
func (f *Flow) completeFIDO2Registration(ctx context.Context, creds *Credentials, created *platform.CreateDeviceResult) error {
	e := f.engine
	if e.ceremony == nil {
		return ErrCeremonyUnavailable
	}

	attestation, err := e.ceremony.CreateCredential(ctx, created.CredentialOptions)
	if err != nil {
		return fmt.Errorf("%w: ceremony: %v", ErrRegistrationFailed, err)
	}

	_, err = e.platform.AttestDevice(ctx, platform.AttestDeviceRequest{
		EnvironmentID: creds.EnvironmentID,
		Username:      creds.Username,
		Auth:          creds.Auth(),
		DeviceID:      created.DeviceID,
		Attestation:   attestation,
	})
	if err != nil {
		return fmt.Errorf("%w: attestation: %v", ErrRegistrationFailed, remoteMessage(err))
	}
	return nil
}

// remoteMessage extracts the platform's verbatim message when available.
func remoteMessage(err error) string {
	if apiErr, ok := platform.AsError(err); ok && apiErr.Message != "" {
		return apiErr.Message
	}
	return err.Error()
}
