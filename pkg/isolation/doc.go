// Package isolation is the last line of defense between tenants sharing one
// database.
//
// The Guard validates every dynamic schema name against a fixed blocklist and
// a strict identifier character class, blocks writes to the public schema,
// and rejects tokens replayed across tenant boundaries. The request-pipeline
// gate applies the same checks per route; a permissive development mode keeps
// recording violations while letting requests through. Violations land in a
// bounded rolling log for the ops API.
package isolation
