// Package credstore persists named credential bundles for MFA flows.
//
// # Components
//
//   - [Store] — get/put/delete of named bundles plus a change-notification
//     stream.
//   - [RedisStore] — Redis implementation; JSON values, pub/sub notifications.
//   - [Bundle] — serialized credential set keeping both token kinds with an
//     authoritative-kind tag.
//
// # Architecture boundaries
//
// This package owns persistence and change signaling. Token validity rules,
// the authoritative-kind switching policy, and flow state all live in the
// engine.
//
// # What this package must NOT do
//
//   - Validate or decode tokens.
//   - Import mfaflow or any sibling package.
package credstore
