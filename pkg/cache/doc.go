// Package cache implements the multi-tier read-through cache the identity
// core is built on.
//
// Three tiers: a process-local LRU with a sub-second TTL (L1), a distributed
// key-value store (L2, Redis in deployments, in-memory for tests), and the
// caller's fetch function against the source of truth (L3). The invariant
// "L1 TTL <= L2 TTL" is enforced at configuration load. Writes go through L2
// before L1; reads never repair a newer tier backwards.
//
// L2 failures are soft: logged, counted, and treated as misses, so cache
// unavailability costs latency, not availability.
package cache
