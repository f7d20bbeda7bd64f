// Package tenant resolves which tenant an inbound request belongs to and
// freezes that decision for the rest of the request.
//
// Resolution maps the host/origin subdomain to a tenant row, requires an
// active or trial status and a non-empty schema name, and caches the result
// through the tiered cache. The resolved Identity is structurally immutable:
// unexported fields, getters only, attached to the request context exactly
// once. A request without a resolvable subdomain carries no tenant, which is
// a valid state; route-level requirements are enforced by the isolation gate.
package tenant
