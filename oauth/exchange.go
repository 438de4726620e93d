package oauth

import (
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

const defaultExchangeTimeout = 30 * time.Second

// ErrExchangeFailed is an exported constant or variable used by the flow engine.
var ErrExchangeFailed = errors.New("oauth code exchange failed")

// ErrCodeExpired is returned when the authorization server rejects the code
// as expired or already redeemed. Callers present re-authentication guidance
// instead of a generic failure.
var ErrCodeExpired = errors.New("authorization code expired or already used")

// Exchanger redeems an authorization code plus PKCE verifier for an access
// token. The engine only consumes the resulting token string.
type Exchanger interface {
	Exchange(ctx context.Context, code, verifier string) (string, error)
}

// HTTPExchanger is the default [Exchanger] against a standard token endpoint.
type HTTPExchanger struct {
	TokenURL    string
	ClientID    string
	RedirectURI string
	HTTPClient  *http.Client
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	Error       string `json:"error"`
	Description string `json:"error_description"`
}

// Exchange posts the authorization-code grant. invalid_grant responses map to
// [ErrCodeExpired]; everything else to [ErrExchangeFailed].
func (x *HTTPExchanger) Exchange(ctx context.Context, code, verifier string) (string, error) {
	if code == "" || verifier == "" {
		return "", fmt.Errorf("%w: missing code or verifier", ErrExchangeFailed)
	}

	form := url.Values{
		"grant_type":    {"authorization_code"},
		"code":          {code},
		"code_verifier": {verifier},
	}
	if x.ClientID != "" {
		form.Set("client_id", x.ClientID)
	}
	if x.RedirectURI != "" {
		form.Set("redirect_uri", x.RedirectURI)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, x.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrExchangeFailed, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	hc := x.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: defaultExchangeTimeout}
	}
	resp, err := hc.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrExchangeFailed, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrExchangeFailed, err)
	}

	var tok tokenResponse
	if err := json.Unmarshal(body, &tok); err != nil {
		return "", fmt.Errorf("%w: malformed token response", ErrExchangeFailed)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 || tok.Error != "" {
		// invalid_grant covers expired and replayed authorization codes.
		if tok.Error == "invalid_grant" {
			return "", fmt.Errorf("%w: %s", ErrCodeExpired, tok.Description)
		}
		return "", fmt.Errorf("%w: %s %s", ErrExchangeFailed, tok.Error, tok.Description)
	}
	if tok.AccessToken == "" {
		return "", fmt.Errorf("%w: empty access token", ErrExchangeFailed)
	}
	return tok.AccessToken, nil
}
