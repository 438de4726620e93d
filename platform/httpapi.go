package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const defaultHTTPTimeout = 30 * time.Second

// HTTPConfig configures the default REST client.
//
// BaseURL wins when set. Otherwise the URL is derived from CustomDomain
// (https://<domain>) or Region (https://api.<region>).
type HTTPConfig struct {
	BaseURL      string
	Region       string
	CustomDomain string
	HTTPClient   *http.Client
	UserAgent    string
}

// HTTPClient is the default [Client] implementation speaking the platform's
// REST device API. All calls are authenticated by the bearer token carried in
// the request's [Auth]; the client itself holds no credential state.
type HTTPClient struct {
	base      string
	http      *http.Client
	userAgent string
}

// NewHTTPClient builds an [HTTPClient] from cfg. It fails when no base URL
// can be derived.
func NewHTTPClient(cfg HTTPConfig) (*HTTPClient, error) {
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" && cfg.CustomDomain != "" {
		base = "https://" + cfg.CustomDomain
	}
	if base == "" && cfg.Region != "" {
		base = "https://api." + cfg.Region
	}
	if base == "" {
		return nil, errors.New("platform: base URL, custom domain, or region required")
	}
	if _, err := url.Parse(base); err != nil {
		return nil, fmt.Errorf("platform: invalid base URL: %v", err)
	}

	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: defaultHTTPTimeout}
	}

	return &HTTPClient{
		base:      base,
		http:      hc,
		userAgent: cfg.UserAgent,
	}, nil
}

type wireDeviceList struct {
	Devices []Device `json:"devices"`
}

type wireCreateDevice struct {
	Type     DeviceType   `json:"type"`
	Nickname string       `json:"nickname,omitempty"`
	Phone    string       `json:"phone,omitempty"`
	Email    string       `json:"email,omitempty"`
	PolicyID string       `json:"policyId,omitempty"`
	Status   DeviceStatus `json:"status,omitempty"`
}

type wireCreateDeviceResult struct {
	ID                string          `json:"id"`
	Status            DeviceStatus    `json:"status"`
	QRCode            string          `json:"qrCode,omitempty"`
	Secret            string          `json:"secret,omitempty"`
	CredentialOptions json.RawMessage `json:"credentialOptions,omitempty"`
	PairingKey        string          `json:"pairingKey,omitempty"`
}

type wireAuthentication struct {
	ID               string          `json:"id"`
	NextStep         NextStep        `json:"nextStep"`
	AssertionOptions json.RawMessage `json:"assertionOptions,omitempty"`
}

type wireError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (c *HTTPClient) ListDevices(ctx context.Context, req ListDevicesRequest) ([]Device, error) {
	path := fmt.Sprintf("/v1/environments/%s/users/%s/devices",
		url.PathEscape(req.EnvironmentID), url.PathEscape(req.Username))

	var out wireDeviceList
	if err := c.do(ctx, http.MethodGet, path, req.Auth, nil, &out); err != nil {
		return nil, err
	}
	return out.Devices, nil
}

func (c *HTTPClient) CreateDevice(ctx context.Context, req CreateDeviceRequest) (*CreateDeviceResult, error) {
	path := fmt.Sprintf("/v1/environments/%s/users/%s/devices",
		url.PathEscape(req.EnvironmentID), url.PathEscape(req.Username))

	body := wireCreateDevice{
		Type:     req.Type,
		Nickname: req.Nickname,
		Phone:    req.Phone,
		Email:    req.Email,
		PolicyID: req.PolicyID,
		Status:   req.Status,
	}

	var out wireCreateDeviceResult
	if err := c.do(ctx, http.MethodPost, path, req.Auth, body, &out); err != nil {
		return nil, err
	}

	return &CreateDeviceResult{
		DeviceID:          out.ID,
		Status:            out.Status,
		QRCode:            out.QRCode,
		Secret:            out.Secret,
		CredentialOptions: []byte(out.CredentialOptions),
		PairingKey:        out.PairingKey,
	}, nil
}

func (c *HTTPClient) AttestDevice(ctx context.Context, req AttestDeviceRequest) (DeviceStatus, error) {
	path := fmt.Sprintf("/v1/environments/%s/users/%s/devices/%s/attestation",
		url.PathEscape(req.EnvironmentID), url.PathEscape(req.Username), url.PathEscape(req.DeviceID))

	body := map[string]json.RawMessage{
		"attestation": json.RawMessage(req.Attestation),
	}

	var out struct {
		Status DeviceStatus `json:"status"`
	}
	if err := c.do(ctx, http.MethodPost, path, req.Auth, body, &out); err != nil {
		return "", err
	}
	return out.Status, nil
}

func (c *HTTPClient) ActivateDevice(ctx context.Context, req ActivateDeviceRequest) error {
	path := fmt.Sprintf("/v1/environments/%s/users/%s/devices/%s/activation",
		url.PathEscape(req.EnvironmentID), url.PathEscape(req.Username), url.PathEscape(req.DeviceID))

	body := map[string]string{"otp": req.OTP}
	return c.do(ctx, http.MethodPost, path, req.Auth, body, nil)
}

func (c *HTTPClient) DeleteDevice(ctx context.Context, req DeleteDeviceRequest) error {
	path := fmt.Sprintf("/v1/environments/%s/users/%s/devices/%s",
		url.PathEscape(req.EnvironmentID), url.PathEscape(req.Username), url.PathEscape(req.DeviceID))

	return c.do(ctx, http.MethodDelete, path, req.Auth, nil, nil)
}

func (c *HTTPClient) SendOTP(ctx context.Context, req SendOTPRequest) error {
	var path string
	if req.AuthenticationID != "" {
		path = fmt.Sprintf("/v1/environments/%s/deviceAuthentications/%s/otp",
			url.PathEscape(req.EnvironmentID), url.PathEscape(req.AuthenticationID))
	} else {
		path = fmt.Sprintf("/v1/environments/%s/users/%s/devices/%s/otp",
			url.PathEscape(req.EnvironmentID), url.PathEscape(req.Username), url.PathEscape(req.DeviceID))
	}
	return c.do(ctx, http.MethodPost, path, req.Auth, struct{}{}, nil)
}

func (c *HTTPClient) ValidateOTP(ctx context.Context, req ValidateOTPRequest) (*ValidateOTPResult, error) {
	var path string
	if req.AuthenticationID != "" {
		path = fmt.Sprintf("/v1/environments/%s/deviceAuthentications/%s/otp/check",
			url.PathEscape(req.EnvironmentID), url.PathEscape(req.AuthenticationID))
	} else {
		path = fmt.Sprintf("/v1/environments/%s/users/%s/devices/%s/otp/check",
			url.PathEscape(req.EnvironmentID), url.PathEscape(req.Username), url.PathEscape(req.DeviceID))
	}

	body := map[string]string{"otp": req.OTP}
	var out struct {
		NextStep NextStep `json:"nextStep"`
	}
	if err := c.do(ctx, http.MethodPost, path, req.Auth, body, &out); err != nil {
		return nil, err
	}
	return &ValidateOTPResult{NextStep: out.NextStep}, nil
}

func (c *HTTPClient) InitializeAuthentication(ctx context.Context, req InitializeAuthenticationRequest) (*AuthenticationResult, error) {
	path := fmt.Sprintf("/v1/environments/%s/deviceAuthentications", url.PathEscape(req.EnvironmentID))

	body := map[string]string{
		"username": req.Username,
	}
	if req.DeviceID != "" {
		body["deviceId"] = req.DeviceID
	}
	if req.PolicyID != "" {
		body["policyId"] = req.PolicyID
	}

	var out wireAuthentication
	if err := c.do(ctx, http.MethodPost, path, req.Auth, body, &out); err != nil {
		return nil, err
	}
	return &AuthenticationResult{
		AuthenticationID: out.ID,
		NextStep:         out.NextStep,
		AssertionOptions: []byte(out.AssertionOptions),
	}, nil
}

func (c *HTTPClient) CancelAuthentication(ctx context.Context, req CancelAuthenticationRequest) error {
	path := fmt.Sprintf("/v1/environments/%s/deviceAuthentications/%s",
		url.PathEscape(req.EnvironmentID), url.PathEscape(req.AuthenticationID))

	body := map[string]string{"status": "CANCELLED"}
	if req.Reason != "" {
		body["reason"] = req.Reason
	}
	return c.do(ctx, http.MethodPost, path, req.Auth, body, nil)
}

func (c *HTTPClient) ListPolicies(ctx context.Context, req ListPoliciesRequest) ([]Policy, error) {
	path := fmt.Sprintf("/v1/environments/%s/deviceAuthenticationPolicies", url.PathEscape(req.EnvironmentID))

	var out struct {
		Policies []Policy `json:"policies"`
	}
	if err := c.do(ctx, http.MethodGet, path, req.Auth, nil, &out); err != nil {
		return nil, err
	}
	return out.Policies, nil
}

func (c *HTTPClient) ListFIDO2Policies(ctx context.Context, req ListFIDO2PoliciesRequest) ([]FIDO2Policy, error) {
	path := fmt.Sprintf("/v1/environments/%s/fido2Policies", url.PathEscape(req.EnvironmentID))

	var out struct {
		Policies []FIDO2Policy `json:"policies"`
	}
	if err := c.do(ctx, http.MethodGet, path, req.Auth, nil, &out); err != nil {
		return nil, err
	}
	return out.Policies, nil
}

func (c *HTTPClient) do(ctx context.Context, method, path string, auth Auth, in, out any) error {
	var body io.Reader
	if in != nil {
		encoded, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("platform: encode request: %v", err)
		}
		body = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base+path, body)
	if err != nil {
		return fmt.Errorf("platform: build request: %v", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if auth.Token != "" {
		req.Header.Set("Authorization", "Bearer "+auth.Token)
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeAPIError(resp)
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("platform: decode response: %v", err)
	}
	return nil
}

func decodeAPIError(resp *http.Response) error {
	apiErr := &Error{Status: resp.StatusCode}

	data, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err == nil && len(data) > 0 {
		var we wireError
		if json.Unmarshal(data, &we) == nil && (we.Code != "" || we.Message != "") {
			apiErr.Code = we.Code
			apiErr.Message = we.Message
		} else {
			apiErr.Message = strings.TrimSpace(string(data))
		}
	}
	if apiErr.Message == "" {
		apiErr.Message = http.StatusText(resp.StatusCode)
	}
	return apiErr
}
