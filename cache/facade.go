package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// FetchFunc is a wrapped provider operation. The cache treats it as a
// black box: its errors are returned to the caller unchanged and nothing
// is cached for a failed call.
type FetchFunc[T any] func(ctx context.Context, call Call) (T, error)

// Op is the caching version of a fetch operation. Lookup order is memory,
// then disk (which repopulates memory), then the wrapped fetch with
// write-through to both tiers.
type Op[T any] struct {
	store *Store
	name  string
	ttl   time.Duration
	fetch FetchFunc[T]
}

// Cached wraps fetch with two-tier caching under the given operation
// name. Distinct operations may use the same Store with different TTLs.
func Cached[T any](store *Store, name string, ttl time.Duration, fetch FetchFunc[T]) *Op[T] {
	return &Op[T]{store: store, name: name, ttl: ttl, fetch: fetch}
}

// Name returns the operation name used for key derivation.
func (o *Op[T]) Name() string { return o.name }

// TTL returns the operation's time-to-live.
func (o *Op[T]) TTL() time.Duration { return o.ttl }

// Call invokes the operation with positional arguments only.
func (o *Op[T]) Call(ctx context.Context, args ...string) (T, error) {
	return o.Do(ctx, Call{Args: args})
}

// Do invokes the operation, serving from cache when a fresh entry exists.
func (o *Op[T]) Do(ctx context.Context, call Call) (T, error) {
	st := o.store
	key := DeriveKey(o.name, call.Args, call.KV)
	now := st.now()

	if e, ok := st.mem.get(key); ok && fresh(e.createdAt, now, o.ttl) {
		if v, ok := e.value.(T); ok {
			st.log.Debug().Str("op", o.name).Str("key", key).Msg("memory cache hit")
			return v, nil
		}
	}

	if fe, ok := st.disk.get(key); ok && fresh(fe.CreatedAt, now, o.ttl) {
		v, err := decodeValue[T](fe)
		if err == nil {
			st.mem.put(key, entry{value: v, createdAt: fe.CreatedAt})
			st.log.Debug().Str("op", o.name).Str("key", key).Msg("disk cache hit")
			return v, nil
		}
		st.log.Warn().Err(err).Str("op", o.name).Str("key", key).Msg("cache entry undecodable, re-fetching")
	}

	// Miss or stale in both tiers. Concurrent misses for the same key are
	// collapsed so the fetch runs once for all waiting callers.
	res, err, _ := st.group.Do(key, func() (any, error) {
		st.log.Debug().Str("op", o.name).Str("key", key).Msg("cache miss")
		v, err := o.fetch(ctx, call)
		if err != nil {
			return nil, err
		}

		created := st.now()
		st.mem.put(key, entry{value: v, createdAt: created})

		fe, err := encodeValue(v, created)
		if err != nil {
			st.log.Warn().Err(err).Str("op", o.name).Str("key", key).Msg("cache entry not serializable, skipping disk write")
			return v, nil
		}
		if err := st.disk.put(key, fe); err != nil {
			// A failed disk write only costs future hit rate; the result
			// from this call is still returned.
			st.log.Warn().Err(err).Str("op", o.name).Str("key", key).Msg("cache write failed")
		}
		return v, nil
	})
	var zero T
	if err != nil {
		return zero, err
	}
	v, ok := res.(T)
	if !ok {
		// Two operations sharing a key with different result types. The
		// winning flight's value is unusable here.
		return zero, fmt.Errorf("cache: operation %q returned %T for key %s", o.name, res, key)
	}
	return v, nil
}

// encodeValue builds the disk envelope for a value, tagging tabular
// values so they round-trip as typed tables.
func encodeValue(v any, createdAt time.Time) (fileEntry, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return fileEntry{}, err
	}
	return fileEntry{Kind: kindOf(v), Value: raw, CreatedAt: createdAt}, nil
}

// decodeValue reconstructs a stored value, verifying that the stored kind
// matches the requested type. A mismatch (e.g. a table read back as a
// plain mapping) is treated as corruption by the caller.
func decodeValue[T any](fe fileEntry) (T, error) {
	var v T
	if err := json.Unmarshal(fe.Value, &v); err != nil {
		return v, err
	}
	if got := kindOf(v); got != fe.Kind {
		return v, fmt.Errorf("cache entry kind %q does not match %q", fe.Kind, got)
	}
	return v, nil
}
