package platform

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newTestClient(t *testing.T, handler http.Handler) (*HTTPClient, func()) {
	t.Helper()
	srv := httptest.NewServer(handler)
	client, err := NewHTTPClient(HTTPConfig{BaseURL: srv.URL})
	if err != nil {
		srv.Close()
		t.Fatalf("NewHTTPClient failed: %v", err)
	}
	return client, srv.Close
}

func TestNewHTTPClientDerivesBaseURL(t *testing.T) {
	cases := []struct {
		cfg  HTTPConfig
		want string
	}{
		{HTTPConfig{BaseURL: "https://api.example.com/"}, "https://api.example.com"},
		{HTTPConfig{CustomDomain: "auth.acme.example"}, "https://auth.acme.example"},
		{HTTPConfig{Region: "eu.example.com"}, "https://api.eu.example.com"},
		{HTTPConfig{BaseURL: "https://x.example", Region: "ignored"}, "https://x.example"},
	}
	for _, tc := range cases {
		client, err := NewHTTPClient(tc.cfg)
		if err != nil {
			t.Fatalf("cfg %+v: unexpected error %v", tc.cfg, err)
		}
		if client.base != tc.want {
			t.Fatalf("cfg %+v: expected base %q, got %q", tc.cfg, tc.want, client.base)
		}
	}

	if _, err := NewHTTPClient(HTTPConfig{}); err == nil {
		t.Fatal("expected error when no base URL can be derived")
	}
}

func TestListDevicesSendsBearerAndDecodes(t *testing.T) {
	client, done := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/environments/env-1/users/alice/devices" {
			t.Fatalf("unexpected path %q", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer tok-1" {
			t.Fatalf("unexpected auth header %q", got)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"devices": []map[string]any{
				{"id": "dev-1", "type": "SMS", "status": "ACTIVE"},
				{"id": "dev-2", "type": "TOTP", "status": "ACTIVATION_REQUIRED"},
			},
		})
	}))
	defer done()

	devices, err := client.ListDevices(context.Background(), ListDevicesRequest{
		EnvironmentID: "env-1",
		Username:      "alice",
		Auth:          Auth{Kind: TokenWorker, Token: "tok-1"},
	})
	if err != nil {
		t.Fatalf("ListDevices failed: %v", err)
	}
	if len(devices) != 2 || devices[0].ID != "dev-1" || devices[1].Status != StatusActivationRequired {
		t.Fatalf("unexpected devices: %+v", devices)
	}
}

func TestCreateDeviceCarriesTypeSpecificPayloads(t *testing.T) {
	client, done := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if body["type"] != "TOTP" {
			t.Fatalf("unexpected type %v", body["type"])
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":     "dev-totp",
			"status": "ACTIVATION_REQUIRED",
			"qrCode": "data:image/png;base64,abc",
			"secret": "JBSWY3DP",
		})
	}))
	defer done()

	result, err := client.CreateDevice(context.Background(), CreateDeviceRequest{
		EnvironmentID: "env-1",
		Username:      "alice",
		Type:          DeviceTOTP,
		Auth:          Auth{Token: "tok"},
	})
	if err != nil {
		t.Fatalf("CreateDevice failed: %v", err)
	}
	if result.DeviceID != "dev-totp" || result.QRCode == "" || result.Secret == "" {
		t.Fatalf("expected TOTP payloads, got %+v", result)
	}
}

func TestSendOTPRoutesByAuthenticationScope(t *testing.T) {
	var paths []string
	client, done := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)
		w.WriteHeader(http.StatusOK)
	}))
	defer done()

	if err := client.SendOTP(context.Background(), SendOTPRequest{
		EnvironmentID:    "env-1",
		AuthenticationID: "auth-9",
	}); err != nil {
		t.Fatalf("session-scoped SendOTP failed: %v", err)
	}
	if err := client.SendOTP(context.Background(), SendOTPRequest{
		EnvironmentID: "env-1",
		Username:      "alice",
		DeviceID:      "dev-1",
	}); err != nil {
		t.Fatalf("device-scoped SendOTP failed: %v", err)
	}

	if paths[0] != "/v1/environments/env-1/deviceAuthentications/auth-9/otp" {
		t.Fatalf("unexpected session path %q", paths[0])
	}
	if paths[1] != "/v1/environments/env-1/users/alice/devices/dev-1/otp" {
		t.Fatalf("unexpected device path %q", paths[1])
	}
}

func TestValidateOTPReturnsNextStep(t *testing.T) {
	client, done := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/environments/env-1/deviceAuthentications/auth-9/otp/check" {
			t.Fatalf("unexpected path %q", r.URL.Path)
		}
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body["otp"] != "123456" {
			t.Fatalf("unexpected otp %q", body["otp"])
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"nextStep": "COMPLETED"})
	}))
	defer done()

	result, err := client.ValidateOTP(context.Background(), ValidateOTPRequest{
		EnvironmentID:    "env-1",
		AuthenticationID: "auth-9",
		OTP:              "123456",
	})
	if err != nil {
		t.Fatalf("ValidateOTP failed: %v", err)
	}
	if result.NextStep != NextCompleted {
		t.Fatalf("expected COMPLETED, got %s", result.NextStep)
	}
}

func TestErrorDecodingPreservesRemoteMessage(t *testing.T) {
	client, done := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]string{
			"code":    "DEVICE_LIMIT",
			"message": "Device limit exceeded for user",
		})
	}))
	defer done()

	_, err := client.CreateDevice(context.Background(), CreateDeviceRequest{
		EnvironmentID: "env-1",
		Username:      "alice",
		Type:          DeviceSMS,
	})
	if err == nil {
		t.Fatal("expected error")
	}
	apiErr, ok := AsError(err)
	if !ok {
		t.Fatalf("expected *Error, got %T", err)
	}
	if apiErr.Status != http.StatusBadRequest || apiErr.Code != "DEVICE_LIMIT" {
		t.Fatalf("unexpected api error %+v", apiErr)
	}
	if apiErr.Message != "Device limit exceeded for user" {
		t.Fatalf("remote message must be preserved verbatim, got %q", apiErr.Message)
	}
}

func TestErrorDecodingFallsBackToBodyText(t *testing.T) {
	client, done := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("upstream not ready"))
	}))
	defer done()

	err := client.DeleteDevice(context.Background(), DeleteDeviceRequest{
		EnvironmentID: "env-1",
		Username:      "alice",
		DeviceID:      "dev-1",
	})
	apiErr, ok := AsError(err)
	if !ok {
		t.Fatalf("expected *Error, got %T", err)
	}
	if apiErr.Message != "upstream not ready" {
		t.Fatalf("expected body text fallback, got %q", apiErr.Message)
	}
}

func TestTransportFailureClassifiesUnavailable(t *testing.T) {
	client, err := NewHTTPClient(HTTPConfig{BaseURL: "http://127.0.0.1:1"})
	if err != nil {
		t.Fatalf("NewHTTPClient failed: %v", err)
	}

	_, err = client.ListDevices(context.Background(), ListDevicesRequest{
		EnvironmentID: "env-1",
		Username:      "alice",
	})
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}

func TestCancelAuthenticationPostsCancelledStatus(t *testing.T) {
	client, done := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body["status"] != "CANCELLED" || body["reason"] != "user backed out" {
			t.Fatalf("unexpected body %v", body)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer done()

	if err := client.CancelAuthentication(context.Background(), CancelAuthenticationRequest{
		EnvironmentID:    "env-1",
		AuthenticationID: "auth-9",
		Reason:           "user backed out",
	}); err != nil {
		t.Fatalf("CancelAuthentication failed: %v", err)
	}
}
