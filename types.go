package mfaflow

import (
	"context"
	"io"
	"time"

	"github.com/MrEthical07/mfaflow/credstore"
	"github.com/MrEthical07/mfaflow/internal/audit"
	"github.com/MrEthical07/mfaflow/platform"
)

// DeviceType is a public type used by mfaflow APIs.
type DeviceType = platform.DeviceType

// DeviceStatus is a public type used by mfaflow APIs.
type DeviceStatus = platform.DeviceStatus

// TokenKind is a public type used by mfaflow APIs.
type TokenKind = platform.TokenKind

// NextStep is a public type used by mfaflow APIs.
type NextStep = platform.NextStep

// Device is a public type used by mfaflow APIs.
type Device = platform.Device

// Policy is a public type used by mfaflow APIs.
type Policy = platform.Policy

// FIDO2Policy is a public type used by mfaflow APIs.
type FIDO2Policy = platform.FIDO2Policy

const (
	DeviceSMS      = platform.DeviceSMS
	DeviceEmail    = platform.DeviceEmail
	DeviceWhatsApp = platform.DeviceWhatsApp
	DeviceTOTP     = platform.DeviceTOTP
	DeviceFIDO2    = platform.DeviceFIDO2
	DeviceMobile   = platform.DeviceMobile

	StatusActive             = platform.StatusActive
	StatusActivationRequired = platform.StatusActivationRequired

	TokenWorker = platform.TokenWorker
	TokenUser   = platform.TokenUser

	NextCompleted         = platform.NextCompleted
	NextOTPRequired       = platform.NextOTPRequired
	NextAssertionRequired = platform.NextAssertionRequired
	NextSelectionRequired = platform.NextSelectionRequired
)

// AuditEvent is a public type used by mfaflow APIs.
type AuditEvent = audit.Event

// AuditSink is a public type used by mfaflow APIs.
type AuditSink = audit.Sink

// NoOpAuditSink is a public type used by mfaflow APIs.
type NoOpAuditSink = audit.NoOpSink

// NewChannelAuditSink builds a buffered channel sink for audit events.
func NewChannelAuditSink(buffer int) *audit.ChannelSink {
	return audit.NewChannelSink(buffer)
}

// NewJSONAuditSink builds a line-delimited JSON sink for audit events.
func NewJSONAuditSink(w io.Writer) *audit.JSONWriterSink {
	return audit.NewJSONWriterSink(w)
}

// TokenMaterial holds one bearer token and its expiry metadata when known.
type TokenMaterial struct {
	Token     string
	ExpiresAt time.Time
}

// TokenState classifies the outcome of a token evaluation.
type TokenState uint8

const (
	TokenMissing TokenState = iota
	TokenMalformed
	TokenExpired
	TokenActive
)

func (s TokenState) String() string {
	switch s {
	case TokenMissing:
		return "MISSING"
	case TokenMalformed:
		return "MALFORMED"
	case TokenExpired:
		return "EXPIRED"
	case TokenActive:
		return "ACTIVE"
	default:
		return "UNKNOWN"
	}
}

// TokenStatus describes the token evaluation operation result.
type TokenStatus struct {
	Kind      TokenKind
	Valid     bool
	State     TokenState
	Message   string
	ExpiresAt time.Time
}

// Credentials is the tagged credential bundle a flow operates on. Exactly one
// token kind is authoritative at any time.
type Credentials struct {
	Name          string
	EnvironmentID string
	Username      string
	DeviceType    DeviceType
	Region        string
	CustomDomain  string
	PolicyID      string
	TokenKind     TokenKind
	Worker        TokenMaterial
	User          TokenMaterial
}

// ActiveToken returns the material for the authoritative token kind.
func (c *Credentials) ActiveToken() TokenMaterial {
	if c.TokenKind == TokenUser {
		return c.User
	}
	return c.Worker
}

// Auth builds the platform auth header material from the active token.
func (c *Credentials) Auth() platform.Auth {
	return platform.Auth{
		Kind:  c.TokenKind,
		Token: c.ActiveToken().Token,
	}
}

// SetToken stores material for one kind and makes that kind authoritative.
func (c *Credentials) SetToken(kind TokenKind, material TokenMaterial) {
	if kind == TokenUser {
		c.User = material
	} else {
		c.Worker = material
	}
	c.TokenKind = kind
}

// SwitchTokenKind changes the authoritative kind. Without force the switch is
// refused while the currently active token still evaluates as valid.
func (c *Credentials) SwitchTokenKind(kind TokenKind, force bool, now time.Time) error {
	if kind == c.TokenKind {
		return nil
	}
	if !force {
		if status := evaluateToken(c.TokenKind, c.ActiveToken(), now); status.Valid {
			return ErrTokenStillValid
		}
	}
	c.TokenKind = kind
	return nil
}

// TokenStatus evaluates the active token at the given instant.
func (c *Credentials) TokenStatus(now time.Time) TokenStatus {
	return evaluateToken(c.TokenKind, c.ActiveToken(), now)
}

func credentialsFromBundle(name string, b *credstore.Bundle) *Credentials {
	c := &Credentials{
		Name:          name,
		EnvironmentID: b.EnvironmentID,
		Username:      b.Username,
		DeviceType:    DeviceType(b.DeviceType),
		Region:        b.Region,
		CustomDomain:  b.CustomDomain,
		PolicyID:      b.PolicyID,
		TokenKind:     TokenKind(b.TokenKind),
		Worker:        TokenMaterial{Token: b.WorkerToken},
		User:          TokenMaterial{Token: b.UserToken},
	}
	if b.WorkerExpiresAt > 0 {
		c.Worker.ExpiresAt = time.Unix(b.WorkerExpiresAt, 0)
	}
	if c.TokenKind != TokenUser {
		c.TokenKind = TokenWorker
	}
	return c
}

func (c *Credentials) bundle() *credstore.Bundle {
	b := &credstore.Bundle{
		EnvironmentID: c.EnvironmentID,
		Username:      c.Username,
		DeviceType:    string(c.DeviceType),
		Region:        c.Region,
		CustomDomain:  c.CustomDomain,
		PolicyID:      c.PolicyID,
		TokenKind:     string(c.TokenKind),
		WorkerToken:   c.Worker.Token,
		UserToken:     c.User.Token,
	}
	if !c.Worker.ExpiresAt.IsZero() {
		b.WorkerExpiresAt = c.Worker.ExpiresAt.Unix()
	}
	return b
}

// ChallengeState tracks the lifecycle of one OTP challenge.
type ChallengeState uint8

const (
	ChallengeNotSent ChallengeState = iota
	ChallengeSent
	ChallengeValidated
	ChallengeFailed
)

func (s ChallengeState) String() string {
	switch s {
	case ChallengeNotSent:
		return "NOT_SENT"
	case ChallengeSent:
		return "SENT"
	case ChallengeValidated:
		return "VALIDATED"
	case ChallengeFailed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}

// FlowState is the mutable per-flow working state outside of credentials.
type FlowState struct {
	DeviceID           string
	DeviceStatus       DeviceStatus
	AuthenticationID   string
	AssertionOptions   []byte
	AssertionCompleted bool
	Challenge          ChallengeState
	ChallengeAttempts  int
	QRCode             string
	Secret             string
	PairingKey         string
	CredentialOptions  []byte
	LastError          string
}

// RegistrationRequest describes the register-device operation input.
type RegistrationRequest struct {
	Nickname string
	Phone    string
	Email    string
	// Status is an explicit admin status choice. It is honored only while the
	// worker token kind is authoritative.
	Status DeviceStatus
}

// RegistrationResult describes the register-device operation outcome.
type RegistrationResult struct {
	DeviceID          string
	Status            DeviceStatus
	QRCode            string
	Secret            string
	PairingKey        string
	CredentialOptions []byte
}

// AuthenticationSession describes an initialized device authentication.
type AuthenticationSession struct {
	ID               string
	NextStep         NextStep
	AssertionOptions []byte
}

// CeremonyDriver runs the WebAuthn authenticator ceremony on behalf of the
// engine. Implementations own all user interaction.
type CeremonyDriver interface {
	CreateCredential(ctx context.Context, options []byte) ([]byte, error)
	GetAssertion(ctx context.Context, options []byte) ([]byte, error)
}

// NotificationLevel grades user-facing notifications.
type NotificationLevel uint8

const (
	NotifySuccess NotificationLevel = iota
	NotifyWarning
	NotifyError
)

// NotificationSink receives user-facing notifications emitted by flows.
type NotificationSink interface {
	Notify(level NotificationLevel, message string)
}

// NoOpNotificationSink drops notifications.
type NoOpNotificationSink struct{}

func (NoOpNotificationSink) Notify(NotificationLevel, string) {}
