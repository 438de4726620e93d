// Package oauth implements the authorization-code + PKCE exchange consumed by
// user-token flows.
//
// # Architecture boundaries
//
// This package owns PKCE material generation and the token-endpoint request.
// It does NOT store tokens, inspect claims, or decide token-kind policy —
// the engine does.
package oauth
