package cache

import (
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

// Store owns both cache tiers. Construct one at startup and share it by
// reference; independent Stores (e.g. in tests) do not interact.
type Store struct {
	mem   *memoryTier
	disk  *diskTier
	group singleflight.Group
	log   zerolog.Logger
	now   func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger used for cache diagnostics.
func WithLogger(log zerolog.Logger) Option {
	return func(s *Store) { s.log = log }
}

// WithClock overrides the time source. Tests use this to control
// freshness without sleeping.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// New creates a Store backed by dir, creating the directory if needed.
func New(dir string, opts ...Option) (*Store, error) {
	s := &Store{
		mem: newMemoryTier(),
		log: zerolog.Nop(),
		now: time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	disk, err := newDiskTier(dir, s.log)
	if err != nil {
		return nil, err
	}
	s.disk = disk
	return s, nil
}

// Dir returns the disk tier directory.
func (s *Store) Dir() string {
	return s.disk.dir
}

// Remove drops the entry for key from both tiers.
func (s *Store) Remove(key string) {
	s.mem.remove(key)
	s.disk.remove(key)
}

// ClearAll removes every entry from both tiers unconditionally. Any
// subsequent call through the facade is a guaranteed miss.
func (s *Store) ClearAll() error {
	s.mem.clear()
	if err := s.disk.clearAll(); err != nil {
		return err
	}
	s.log.Info().Msg("cache cleared")
	return nil
}

// SweepResult reports how many entries a sweep removed per tier.
type SweepResult struct {
	Memory int `json:"memory"`
	Disk   int `json:"disk"`
}

// SweepExpired removes entries older than ttl from both tiers. Expiration
// is otherwise lazy (checked on read), so this exists purely to reclaim
// space and is only run when triggered explicitly.
func (s *Store) SweepExpired(ttl time.Duration) SweepResult {
	now := s.now()
	res := SweepResult{
		Memory: s.mem.removeExpired(ttl, now),
		Disk:   s.disk.removeExpired(ttl, now),
	}
	s.log.Info().
		Dur("ttl", ttl).
		Int("memory_removed", res.Memory).
		Int("disk_removed", res.Disk).
		Msg("swept expired cache entries")
	return res
}
