// Package middleware exposes HTTP adapters for token validation and request
// rate limiting built on top of authcore.Engine.
//
// # Guards
//
//   - [Guard] — reads the Authorization header, calls Engine.Validate, and
//     injects validated claims into the request context.
//   - [RateLimit] — consumes the fixed-window budget per request key and
//     answers 429 with Retry-After when the budget is exhausted.
//
// # Architecture boundaries
//
// This package translates HTTP semantics into Engine calls. It does NOT
// implement authentication logic itself — all decisions are delegated to
// the Engine.
//
// # What this package must NOT do
//
//   - Parse or create JWTs directly (delegates to Engine).
//   - Access Redis (Engine handles I/O).
//   - Make authorization decisions beyond pass/reject from Engine.Validate.
package middleware
