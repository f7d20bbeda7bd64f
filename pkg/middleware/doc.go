// Package middleware holds the HTTP middleware chain: request id injection,
// Bearer token authentication, permission checks, login rate limiting, and
// the internal-key gate for ops endpoints. Tenant resolution and the
// isolation gate live next to their subsystems in pkg/tenant and
// pkg/isolation.
package middleware
