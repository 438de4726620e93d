// Package mfaflow provides a render-agnostic MFA registration and
// authentication flow engine: wizard step navigation, credential bundle
// reconciliation between worker and user tokens, device registration with
// per-type status rules, OTP challenge pacing, and device authentication
// session orchestration against an external identity platform.
//
// The package is designed for concurrent callers: Engine methods are safe to
// call from multiple goroutines after initialization through [Builder.Build].
// Each [Flow] serializes its own mutating operations; an overlapping call
// fails fast with [ErrOperationInFlight].
//
// # Architecture boundaries
//
// mfaflow is the public surface. It exposes [Engine], [Builder], [Config],
// [Flow], and value types (Credentials, FlowState, MetricsSnapshot, etc.).
// Platform transport lives in platform/, credential persistence in
// credstore/, step bookkeeping in step/, and audit dispatch under internal/.
//
// # What this package must NOT do
//
//   - Render anything. Step state, validation messages, and notifications are
//     surfaced through values and sinks; presentation belongs to the caller.
//   - Verify token signatures. User JWTs are decoded structurally for expiry
//     only; cryptographic verification is the platform's job.
//   - Retry mutating platform calls. Callers decide retry policy; the engine
//     reports each outcome exactly once.
package mfaflow
