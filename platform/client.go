package platform

import "context"

// Client is the abstract contract the flow engine consumes. The identity
// platform owns every wire format behind it; implementations translate these
// calls into whatever transport the deployment uses. [HTTPClient] is the
// default REST implementation.
type Client interface {
	ListDevices(ctx context.Context, req ListDevicesRequest) ([]Device, error)
	CreateDevice(ctx context.Context, req CreateDeviceRequest) (*CreateDeviceResult, error)
	AttestDevice(ctx context.Context, req AttestDeviceRequest) (DeviceStatus, error)
	ActivateDevice(ctx context.Context, req ActivateDeviceRequest) error
	DeleteDevice(ctx context.Context, req DeleteDeviceRequest) error
	SendOTP(ctx context.Context, req SendOTPRequest) error
	ValidateOTP(ctx context.Context, req ValidateOTPRequest) (*ValidateOTPResult, error)
	InitializeAuthentication(ctx context.Context, req InitializeAuthenticationRequest) (*AuthenticationResult, error)
	CancelAuthentication(ctx context.Context, req CancelAuthenticationRequest) error
	ListPolicies(ctx context.Context, req ListPoliciesRequest) ([]Policy, error)
	ListFIDO2Policies(ctx context.Context, req ListFIDO2PoliciesRequest) ([]FIDO2Policy, error)
}
