package mfaflow

import "errors"

var (
	// ErrEngineNotReady is an exported constant or variable used by the flow engine.
	ErrEngineNotReady = errors.New("engine not initialized")
	// ErrTokenInvalid is an exported constant or variable used by the flow engine.
	ErrTokenInvalid = errors.New("active token invalid")
	// ErrTokenStillValid is an exported constant or variable used by the flow engine.
	ErrTokenStillValid = errors.New("other token kind still valid")
	// ErrCredentialsIncomplete is an exported constant or variable used by the flow engine.
	ErrCredentialsIncomplete = errors.New("credentials incomplete")
	// ErrPolicyFetchFailed is an exported constant or variable used by the flow engine.
	ErrPolicyFetchFailed = errors.New("device authentication policy fetch failed")
	// ErrDeviceLookupFailed is an exported constant or variable used by the flow engine.
	ErrDeviceLookupFailed = errors.New("device lookup failed")
	// ErrRegistrationFailed is an exported constant or variable used by the flow engine.
	ErrRegistrationFailed = errors.New("device registration failed")
	// ErrDeviceLimitExceeded is an exported constant or variable used by the flow engine.
	ErrDeviceLimitExceeded = errors.New("device limit exceeded")
	// ErrDeviceTypeUnsupported is an exported constant or variable used by the flow engine.
	ErrDeviceTypeUnsupported = errors.New("unsupported device type")
	// ErrCeremonyUnavailable is an exported constant or variable used by the flow engine.
	ErrCeremonyUnavailable = errors.New("webauthn ceremony driver not configured")
	// ErrChallengeSendFailed is an exported constant or variable used by the flow engine.
	ErrChallengeSendFailed = errors.New("challenge send failed")
	// ErrChallengeValidationFailed is an exported constant or variable used by the flow engine.
	ErrChallengeValidationFailed = errors.New("challenge validation failed")
	// ErrChallengeCooldown is an exported constant or variable used by the flow engine.
	ErrChallengeCooldown = errors.New("challenge resend cooldown active")
	// ErrChallengeNotSent is an exported constant or variable used by the flow engine.
	ErrChallengeNotSent = errors.New("challenge not sent")
	// ErrChallengeCodeIncomplete is an exported constant or variable used by the flow engine.
	ErrChallengeCodeIncomplete = errors.New("challenge code incomplete")
	// ErrChallengeUnavailable is an exported constant or variable used by the flow engine.
	ErrChallengeUnavailable = errors.New("challenge backend unavailable")
	// ErrAuthenticationAnomaly is an exported constant or variable used by the flow engine.
	ErrAuthenticationAnomaly = errors.New("authentication session anomaly")
	// ErrAuthenticationNotActive is an exported constant or variable used by the flow engine.
	ErrAuthenticationNotActive = errors.New("no active authentication session")
	// ErrOperationInFlight is an exported constant or variable used by the flow engine.
	ErrOperationInFlight = errors.New("operation already in flight")
	// ErrOAuthExchangeFailed is an exported constant or variable used by the flow engine.
	ErrOAuthExchangeFailed = errors.New("oauth exchange failed")
	// ErrOAuthCodeExpired is an exported constant or variable used by the flow engine.
	ErrOAuthCodeExpired = errors.New("authorization code expired or replayed")
	// ErrOAuthNotConfigured is an exported constant or variable used by the flow engine.
	ErrOAuthNotConfigured = errors.New("oauth exchanger not configured")
	// ErrStepGuardFailed is an exported constant or variable used by the flow engine.
	ErrStepGuardFailed = errors.New("step guard failed")
)
