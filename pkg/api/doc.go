// Package api wires the HTTP surface: the MFA completion and enrollment
// flows, a small authenticated user surface, and the internally-gated ops
// endpoints for signing-key rotation, cache invalidation, permission-config
// refresh, and isolation-violation inspection.
package api
