// Package step implements the finite-state wizard driver behind every
// registration and authentication flow.
//
// # Architecture boundaries
//
// This package owns step indices, the completed set, and the validation
// error/warning channel. It does NOT know what a step means — step semantics,
// guard conditions, and business-state resets live in the engine.
//
// # What this package must NOT do
//
//   - Perform I/O of any kind.
//   - Import mfaflow or any sibling package.
//   - Mutate business state on Reset.
package step
