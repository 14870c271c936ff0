// Package rate provides Redis-backed fixed-window rate limit primitives for
// authcore's login throttling and request limiting.
//
// # Window semantics
//
// Counters live entirely in Redis with key TTLs bounding the window; the
// limiter keeps no local state. [Limiter.Allow] runs a Lua script so the
// increment and the read happen as one atomic step, and a request over
// budget neither increments the counter nor extends the TTL. Key prefixes:
//   - rl:  — generic fixed-window counters
//   - lf:  — failed logins per identifier
//   - lfi: — failed logins per client IP
//
// # What this package must NOT do
//
//   - Decide which operations are throttled (the engine owns policy).
//   - Be imported outside the authcore module.
package rate
