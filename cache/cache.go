// Package cache provides a two-tier (memory + disk) result cache for
// provider fetches, keyed by operation name and arguments, with
// per-operation TTL expiration.
//
// The memory tier is the fast path and lives for the process lifetime.
// The disk tier stores one JSON file per key and survives restarts.
// Lookups go memory, then disk, then the wrapped fetch; successful
// fetches are written through to both tiers. Cache failures are never
// surfaced to callers: a corrupt or unwritable entry only costs a
// re-fetch.
package cache

import "time"

// Entry kinds. Tabular values carry their own discriminator so they are
// reconstructed as typed tables on read-back instead of generic maps.
const (
	KindPlain = "plain"
	KindTable = "table"
)

// Tabular marks values that serialize as typed tables. dataset.Table
// implements it; anything else is stored as a plain value.
type Tabular interface {
	Tabular()
}

// Call identifies one invocation of a cached operation: positional
// arguments in call order plus named arguments. Positional order is
// significant for key derivation; named argument order is not.
type Call struct {
	Args []string
	KV   map[string]string
}

// entry is a memory-tier record: the decoded value plus its creation time.
type entry struct {
	value     any
	createdAt time.Time
}

// fresh reports whether an entry created at createdAt is still within ttl
// as observed at now. Each tier evaluates this independently at read time.
func fresh(createdAt, now time.Time, ttl time.Duration) bool {
	return now.Sub(createdAt) < ttl
}

// kindOf returns the envelope discriminator for a value.
func kindOf(v any) string {
	if _, ok := v.(Tabular); ok {
		return KindTable
	}
	return KindPlain
}
