// Package observability provides structured logging, Prometheus metrics,
// and health checks for the identity core.
//
// Logging uses a thin wrapper around logrus emitting JSON. Request-scoped
// fields (request id, tenant id, user id) are carried through context and
// attached by FromContext. Metrics cover the cache tiers, tenant resolution,
// token verification, MFA outcomes, and isolation violations.
package observability
