// Package authcore provides a low-latency authentication engine with JWT
// access tokens, rotating opaque refresh tokens, and Redis-backed session
// and rate-limit state.
//
// The package is designed for concurrent server workloads: Engine methods
// are safe to call from multiple goroutines after initialization through
// [Builder.Build].
//
// # Architecture boundaries
//
// authcore is the public surface. It exposes [Engine], [Builder], [Config],
// and value types (AuthResult, MetricsSnapshot, etc.). All internal
// coordination — session encoding, rate limiting, metric storage — lives
// under internal/ and is never exported.
//
// # What this package must NOT do
//
//   - Expose Redis clients, internal stores, or encoding details in its
//     public API.
//   - Perform I/O outside of Engine methods (construction via Builder does
//     no network calls).
//   - Import any sub-package that re-imports authcore (no import cycles).
//
// # Performance contract
//
// Validate is the hot path. It is purely cryptographic and must complete
// without Redis round-trips. Refresh, Login, and account operations are
// allowed a small constant number of Redis round-trips per call.
package authcore
