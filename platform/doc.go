// Package platform defines the abstract contract between the flow engine and
// the external identity platform, plus a default REST implementation.
//
// # Components
//
//   - [Client] — the interface the engine consumes: device CRUD, OTP
//     send/check, device authentication sessions, policy listings.
//   - [HTTPClient] — default REST transport; injectable and replaceable.
//   - [Error] — structured API rejection preserving the platform's message
//     verbatim for classification upstream.
//
// # Architecture boundaries
//
// This package owns transport and payload translation only. It does NOT
// interpret nextStep signals, classify device-limit rejections, or hold
// credential state — that responsibility belongs to the engine.
//
// # What this package must NOT do
//
//   - Retry, cache, or deduplicate calls.
//   - Import mfaflow or any sibling package.
//   - Decide device status: values pass through exactly as reported.
package platform
