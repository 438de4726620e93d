package oauth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
)

const verifierSize = 32

// PKCE holds a proof-key pair for one authorization-code exchange. The
// verifier stays client-side; the challenge travels in the authorization URL.
type PKCE struct {
	Verifier  string
	Challenge string
	Method    string
}

// NewPKCE generates a fresh S256 proof-key pair.
func NewPKCE() (PKCE, error) {
	var raw [verifierSize]byte
	if _, err := rand.Read(raw[:]); err != nil {
		return PKCE{}, err
	}

	verifier := base64.RawURLEncoding.EncodeToString(raw[:])
	sum := sha256.Sum256([]byte(verifier))

	return PKCE{
		Verifier:  verifier,
		Challenge: base64.RawURLEncoding.EncodeToString(sum[:]),
		Method:    "S256",
	}, nil
}
