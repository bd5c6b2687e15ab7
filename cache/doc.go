// Package cache stores computed prediction results keyed by fingerprint.
//
// It provides a Cache interface, a sharded in-memory implementation with
// time-based expiry and an optional LRU size bound, and TTL policies.
// A SQLite-backed implementation lives in the sqlite subpackage.
package cache
