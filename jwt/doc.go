// Package jwt issues and verifies the stateless access tokens used by the
// authentication engine.
//
// # Token shape
//
// Access tokens are compact JWTs carrying the user id (uid), the owning
// session id (sid), and registered issued-at/expires-at claims. Validity is
// decided purely by signature and expiry against the injected clock — never
// by a store lookup.
//
// # Key rotation
//
// The signing key is process-wide configuration loaded once at startup.
// Rotation happens across restarts: the VerifyKeys map accepts signatures
// from previous keys (selected by the kid header) during a grace window
// while freshly issued tokens already use the new key.
//
// # Architecture boundaries
//
// This package owns token encoding and verification only. Session state,
// refresh rotation, and revocation live elsewhere.
//
// # What this package must NOT do
//
//   - Perform I/O of any kind.
//   - Read the wall clock ambiently (the clock is injected via Config.Now).
//   - Import any other authcore package.
package jwt
