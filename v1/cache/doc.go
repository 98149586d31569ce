// Package cache provides read-through caches for chunk content. Entries are
// dropped by the engine whenever a gated write or delete touches the chunk.
package cache
