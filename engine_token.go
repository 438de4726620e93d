package mfaflow

import (
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// evaluateToken is a pure function over token material and a point in time.
// Worker tokens carry expiry metadata alongside the opaque token; user tokens
// are JWTs whose exp claim is read without signature verification, because
// verification belongs to the platform, not this client.
func evaluateToken(kind TokenKind, material TokenMaterial, now time.Time) TokenStatus {
	status := TokenStatus{Kind: kind, ExpiresAt: material.ExpiresAt}

	if material.Token == "" {
		status.State = TokenMissing
		status.Message = "no token present"
		return status
	}

	if kind == TokenWorker {
		if !material.ExpiresAt.IsZero() && !material.ExpiresAt.After(now) {
			status.State = TokenExpired
			status.Message = "worker token expired"
			return status
		}
		status.State = TokenActive
		status.Valid = true
		return status
	}

	// User tokens must be structurally three-segment JWTs.
	if strings.Count(material.Token, ".") != 2 {
		status.State = TokenMalformed
		status.Message = "token is not a JWT"
		return status
	}

	claims := jwt.MapClaims{}
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(material.Token, claims); err != nil {
		status.State = TokenMalformed
		status.Message = "token payload undecodable"
		return status
	}

	exp, err := claims.GetExpirationTime()
	if err != nil {
		status.State = TokenMalformed
		status.Message = "exp claim malformed"
		return status
	}
	if exp != nil {
		status.ExpiresAt = exp.Time
		if !exp.Time.After(now) {
			status.State = TokenExpired
			status.Message = "user token expired"
			return status
		}
	}

	// A missing exp claim counts as valid. The platform rejects the token
	// remotely if it disagrees.
	status.State = TokenActive
	status.Valid = true
	return status
}

// EvaluateToken describes the evaluatetoken operation and its observable behavior.
//
// EvaluateToken does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) EvaluateToken(kind TokenKind, material TokenMaterial) TokenStatus {
	status := evaluateToken(kind, material, e.now())
	e.metricInc(MetricTokenEvaluated)
	if !status.Valid {
		e.metricInc(MetricTokenInvalid)
	}
	return status
}
