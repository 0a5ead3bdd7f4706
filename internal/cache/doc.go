// Package cache stores synthesized speech clips in a two-level cache: an
// in-memory LRU in front of a zstd-compressed disk cache that survives
// restarts.
package cache
