package mfaflow

import (
	"context"
	"errors"
	"time"

	"github.com/MrEthical07/mfaflow/platform"
)

const (
	auditEventFlowStarted        = "flow_started"
	auditEventFlowCompleted      = "flow_completed"
	auditEventFlowReset          = "flow_reset"
	auditEventFlowCancelled      = "flow_cancelled"
	auditEventTokenSwitched      = "token_switched"
	auditEventTokenInvalid       = "token_invalid"
	auditEventPolicyFetch        = "policy_fetch"
	auditEventDeviceLookup       = "device_lookup"
	auditEventDeviceRegistered   = "device_registered"
	auditEventDeviceLimit        = "device_limit_exceeded"
	auditEventDeviceActivated    = "device_activated"
	auditEventDeviceDeleted      = "device_deleted"
	auditEventChallengeSent      = "challenge_sent"
	auditEventChallengeResent    = "challenge_resent"
	auditEventChallengeCooldown  = "challenge_cooldown"
	auditEventChallengeValidated = "challenge_validated"
	auditEventChallengeFailed    = "challenge_failed"
	auditEventAuthInitialized    = "authentication_initialized"
	auditEventAuthCancelled      = "authentication_cancelled"
	auditEventAuthAnomaly        = "authentication_anomaly"
	auditEventAssertion          = "assertion_completed"
	auditEventOAuthExchange      = "oauth_exchange"
)

// AuditErrorCode defines a public type used by mfaflow APIs.
//
// AuditErrorCode instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type AuditErrorCode string

const (
	auditErrTokenInvalid       AuditErrorCode = "token_invalid"
	auditErrCredentials        AuditErrorCode = "credentials_incomplete"
	auditErrPolicyFetch        AuditErrorCode = "policy_fetch_failed"
	auditErrDeviceLookup       AuditErrorCode = "device_lookup_failed"
	auditErrRegistration       AuditErrorCode = "registration_failed"
	auditErrDeviceLimit        AuditErrorCode = "device_limit_exceeded"
	auditErrDeviceType         AuditErrorCode = "device_type_unsupported"
	auditErrCeremony           AuditErrorCode = "ceremony_unavailable"
	auditErrChallengeSend      AuditErrorCode = "challenge_send_failed"
	auditErrChallengeValidate  AuditErrorCode = "challenge_validation_failed"
	auditErrChallengeCooldown  AuditErrorCode = "challenge_cooldown"
	auditErrChallengeNotSent   AuditErrorCode = "challenge_not_sent"
	auditErrChallengeCode      AuditErrorCode = "challenge_code_incomplete"
	auditErrChallengeBackend   AuditErrorCode = "challenge_backend_unavailable"
	auditErrAnomaly            AuditErrorCode = "authentication_anomaly"
	auditErrAuthNotActive      AuditErrorCode = "authentication_not_active"
	auditErrOperationInFlight  AuditErrorCode = "operation_in_flight"
	auditErrOAuthExchange      AuditErrorCode = "oauth_exchange_failed"
	auditErrOAuthCodeExpired   AuditErrorCode = "oauth_code_expired"
	auditErrPlatformUnavail    AuditErrorCode = "platform_unavailable"
	auditErrInternal           AuditErrorCode = "internal_error"
)

// auditIdentity is the race-free view of the credential fields audit events
// carry. Flows republish it whenever the bundle changes.
type auditIdentity struct {
	environmentID string
	username      string
}

func (e *Engine) emitAudit(
	ctx context.Context,
	eventType string,
	success bool,
	flow *Flow,
	deviceID string,
	err error,
	metadataBuilder func() map[string]string,
) {
	if e == nil || e.audit == nil {
		return
	}

	var metadata map[string]string
	if metadataBuilder != nil {
		metadata = metadataBuilder()
	}

	event := AuditEvent{
		Timestamp: time.Now().UTC(),
		EventType: eventType,
		DeviceID:  deviceID,
		Success:   success,
		Metadata:  metadata,
	}
	if flow != nil {
		event.FlowID = flow.id
		event.DeviceType = string(flow.deviceType)
		// Credential fields come from the flow's published snapshot, not from
		// flow.creds: emitAudit runs both with and without f.mu held, so it
		// must not touch lock-guarded state.
		if id := flow.auditID.Load(); id != nil {
			event.EnvironmentID = id.environmentID
			event.Username = id.username
		}
	}
	if code := auditErrorCode(err); code != "" {
		event.Error = string(code)
	}

	e.audit.Emit(ctx, event)
}

func auditErrorCode(err error) AuditErrorCode {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, platform.ErrUnavailable):
		return auditErrPlatformUnavail
	case errors.Is(err, ErrTokenInvalid):
		return auditErrTokenInvalid
	case errors.Is(err, ErrCredentialsIncomplete):
		return auditErrCredentials
	case errors.Is(err, ErrPolicyFetchFailed):
		return auditErrPolicyFetch
	case errors.Is(err, ErrDeviceLookupFailed):
		return auditErrDeviceLookup
	case errors.Is(err, ErrDeviceLimitExceeded):
		return auditErrDeviceLimit
	case errors.Is(err, ErrDeviceTypeUnsupported):
		return auditErrDeviceType
	case errors.Is(err, ErrCeremonyUnavailable):
		return auditErrCeremony
	case errors.Is(err, ErrRegistrationFailed):
		return auditErrRegistration
	case errors.Is(err, ErrChallengeSendFailed):
		return auditErrChallengeSend
	case errors.Is(err, ErrChallengeCooldown):
		return auditErrChallengeCooldown
	case errors.Is(err, ErrChallengeNotSent):
		return auditErrChallengeNotSent
	case errors.Is(err, ErrChallengeCodeIncomplete):
		return auditErrChallengeCode
	case errors.Is(err, ErrChallengeUnavailable):
		return auditErrChallengeBackend
	case errors.Is(err, ErrChallengeValidationFailed):
		return auditErrChallengeValidate
	case errors.Is(err, ErrAuthenticationAnomaly):
		return auditErrAnomaly
	case errors.Is(err, ErrAuthenticationNotActive):
		return auditErrAuthNotActive
	case errors.Is(err, ErrOperationInFlight):
		return auditErrOperationInFlight
	case errors.Is(err, ErrOAuthCodeExpired):
		return auditErrOAuthCodeExpired
	case errors.Is(err, ErrOAuthExchangeFailed):
		return auditErrOAuthExchange
	default:
		return auditErrInternal
	}
}
