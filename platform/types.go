package platform

import "time"

// DeviceType identifies an MFA device kind supported by the identity platform.
//
//	Docs: docs/registration.md
type DeviceType string

const (
	// DeviceSMS is an exported constant or variable used by the flow engine.
	DeviceSMS DeviceType = "SMS"
	// DeviceEmail is an exported constant or variable used by the flow engine.
	DeviceEmail DeviceType = "EMAIL"
	// DeviceWhatsApp is an exported constant or variable used by the flow engine.
	DeviceWhatsApp DeviceType = "WHATSAPP"
	// DeviceTOTP is an exported constant or variable used by the flow engine.
	DeviceTOTP DeviceType = "TOTP"
	// DeviceFIDO2 is an exported constant or variable used by the flow engine.
	DeviceFIDO2 DeviceType = "FIDO2"
	// DeviceMobile is an exported constant or variable used by the flow engine.
	DeviceMobile DeviceType = "MOBILE"
)

// Valid reports whether t is one of the supported device types.
func (t DeviceType) Valid() bool {
	switch t {
	case DeviceSMS, DeviceEmail, DeviceWhatsApp, DeviceTOTP, DeviceFIDO2, DeviceMobile:
		return true
	default:
		return false
	}
}

// DeviceStatus is the platform-side lifecycle state of a registered device.
type DeviceStatus string

const (
	// StatusActive is an exported constant or variable used by the flow engine.
	StatusActive DeviceStatus = "ACTIVE"
	// StatusActivationRequired is an exported constant or variable used by the flow engine.
	StatusActivationRequired DeviceStatus = "ACTIVATION_REQUIRED"
)

// TokenKind distinguishes the two credential sources the platform accepts:
// a service-account worker token or an end-user OAuth access token.
type TokenKind string

const (
	// TokenWorker is an exported constant or variable used by the flow engine.
	TokenWorker TokenKind = "worker"
	// TokenUser is an exported constant or variable used by the flow engine.
	TokenUser TokenKind = "user"
)

// NextStep is the platform's signal indicating what the client must do next
// during a device authentication session. The flow engine maps each value to
// a wizard transition; this package only transports the signal.
type NextStep string

const (
	// NextCompleted is an exported constant or variable used by the flow engine.
	NextCompleted NextStep = "COMPLETED"
	// NextOTPRequired is an exported constant or variable used by the flow engine.
	NextOTPRequired NextStep = "OTP_REQUIRED"
	// NextAssertionRequired is an exported constant or variable used by the flow engine.
	NextAssertionRequired NextStep = "ASSERTION_REQUIRED"
	// NextSelectionRequired is an exported constant or variable used by the flow engine.
	NextSelectionRequired NextStep = "SELECTION_REQUIRED"
)

// Auth carries the credential presented on every platform call.
type Auth struct {
	Kind  TokenKind
	Token string
}

// Device is a registered MFA device owned by the identity platform. The flow
// engine treats it as an immutable read value except for status transitions
// it explicitly triggers (registration, activation).
type Device struct {
	ID       string       `json:"id"`
	Type     DeviceType   `json:"type"`
	Nickname string       `json:"nickname,omitempty"`
	Status   DeviceStatus `json:"status"`
	Phone    string       `json:"phone,omitempty"`
	Email    string       `json:"email,omitempty"`
}

// OTPPolicy holds the per-type OTP constraints of a device authentication policy.
type OTPPolicy struct {
	MaxFailures int           `json:"maxFailures,omitempty"`
	Cooldown    time.Duration `json:"cooldown,omitempty"`
}

// Policy is a device authentication policy. Read-only; cached per environment
// by the flow engine.
type Policy struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Default     bool      `json:"default,omitempty"`
	OTP         OTPPolicy `json:"otp,omitempty"`
}

// FIDO2Policy is a platform-side FIDO2/WebAuthn policy.
type FIDO2Policy struct {
	ID                   string `json:"id"`
	Name                 string `json:"name"`
	AttestationRequested string `json:"attestationRequested,omitempty"`
	ResidentKey          string `json:"residentKeyRequirement,omitempty"`
}

// ListDevicesRequest identifies the user whose devices should be listed.
type ListDevicesRequest struct {
	EnvironmentID string
	Username      string
	Auth          Auth
}

// CreateDeviceRequest is the first (and for most types only) phase of a
// device registration.
type CreateDeviceRequest struct {
	EnvironmentID string
	Username      string
	Auth          Auth
	Type          DeviceType
	Nickname      string
	Phone         string
	Email         string
	PolicyID      string
	// Status is the explicitly requested device status. Only honored by the
	// platform for worker-token calls; empty means platform default.
	Status DeviceStatus
}

// CreateDeviceResult is returned by [Client.CreateDevice]. Device-type-specific
// payloads are populated only when the platform supplies them: QR/secret for
// TOTP, credential creation options for FIDO2, pairing key for Mobile.
type CreateDeviceResult struct {
	DeviceID          string
	Status            DeviceStatus
	QRCode            string
	Secret            string
	CredentialOptions []byte
	PairingKey        string
}

// AttestDeviceRequest completes phase two of a FIDO2 registration with the
// attestation produced by the WebAuthn ceremony.
type AttestDeviceRequest struct {
	EnvironmentID string
	Username      string
	Auth          Auth
	DeviceID      string
	Attestation   []byte
}

// ActivateDeviceRequest activates an ACTIVATION_REQUIRED device with a
// verified OTP.
type ActivateDeviceRequest struct {
	EnvironmentID string
	Username      string
	Auth          Auth
	DeviceID      string
	OTP           string
}

// DeleteDeviceRequest removes a registered device. Used as the remediation
// path for device-limit rejections.
type DeleteDeviceRequest struct {
	EnvironmentID string
	Username      string
	Auth          Auth
	DeviceID      string
}

// SendOTPRequest asks the platform to issue an OTP challenge for a device.
type SendOTPRequest struct {
	EnvironmentID string
	Username      string
	Auth          Auth
	DeviceID      string
	// AuthenticationID scopes the challenge to a device authentication
	// session when present; empty for activation challenges.
	AuthenticationID string
}

// ValidateOTPRequest submits a user-entered OTP for verification.
type ValidateOTPRequest struct {
	EnvironmentID    string
	Username         string
	Auth             Auth
	DeviceID         string
	AuthenticationID string
	OTP              string
}

// ValidateOTPResult reports the outcome of an OTP validation.
type ValidateOTPResult struct {
	NextStep NextStep
}

// InitializeAuthenticationRequest starts a device authentication session.
// DeviceID may be empty, in which case the platform decides whether device
// selection is required.
type InitializeAuthenticationRequest struct {
	EnvironmentID string
	Username      string
	Auth          Auth
	DeviceID      string
	PolicyID      string
}

// AuthenticationResult is returned by [Client.InitializeAuthentication].
type AuthenticationResult struct {
	AuthenticationID string
	NextStep         NextStep
	// AssertionOptions carries WebAuthn assertion options when NextStep is
	// ASSERTION_REQUIRED.
	AssertionOptions []byte
}

// CancelAuthenticationRequest abandons a device authentication session.
type CancelAuthenticationRequest struct {
	EnvironmentID    string
	Auth             Auth
	AuthenticationID string
	Reason           string
}

// ListPoliciesRequest lists device authentication policies for an environment.
type ListPoliciesRequest struct {
	EnvironmentID string
	Auth          Auth
}

// ListFIDO2PoliciesRequest lists FIDO2 policies for an environment.
type ListFIDO2PoliciesRequest struct {
	EnvironmentID string
	Auth          Auth
}
