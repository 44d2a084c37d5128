// Package cache provides the byte cache behind the state stores' cached
// single-record reads.
//
// The Repository interface is deliberately small: get, set with TTL, delete,
// flush. Values are raw bytes; callers marshal whatever they cache. Two
// backends exist:
//
//   - Memory: an in-process map with lazy expiry, checked at read time.
//     This is the default and what a single console instance wants.
//   - Redis: for setups where several console instances should share cached
//     reads, keyed under a common prefix with Redis-native TTLs.
//
// Expired entries are treated as absent everywhere; there is no background
// sweeper in either backend.
package cache
