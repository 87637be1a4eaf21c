// Package cache holds the Redis-backed pieces: a read-through cache in front
// of the ancillary customer lookups and the store for quality snapshots.
//
// Redis is never required for correctness. Cache read or write failures fall
// through to the underlying source.
package cache
