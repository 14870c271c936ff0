// Package internal contains helper utilities that are intentionally private to
// authcore, including secure random generation and refresh token packing.
//
// # Sub-packages
//
//   - metrics — lock-free counters and latency histograms
//   - rate — Redis-backed fixed-window rate limit primitives
//
// # What this package must NOT do
//
//   - Export types that appear in the public authcore API.
//   - Be imported by any package outside the authcore module.
package internal
