// Package datastore keeps the editor's in-memory configuration state for one
// tenant: a per-type, per-instance map of component data plus the ordered
// component list of every loaded page.
//
// Every operation takes the store lock for its whole duration, so a write is
// visible to the next read without any gap: EnsureVariant followed by
// GetData always observes the seeded data. Concurrent writes to the same
// instance are last-write-wins.
//
// Writes produce a Delta with a monotonically increasing sequence number.
// Deltas are delivered to subscribers without blocking the writer; a slow
// subscriber loses deltas rather than stalling the editor.
package datastore
