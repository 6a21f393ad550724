package cache

import (
	"errors"
	"fmt"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/dustin/go-humanize"
)

// Store is the persistent audio store: an optional in-memory L1 in front of
// the durable disk L2. Every Put lands on disk before it returns, so L1 only
// ever holds copies.
type Store struct {
	l1 *MemoryCache // nil when the memory tier is disabled
	l2 *DiskStore

	logger *log.Logger

	// Writers (Put, Delete, Clear) take the write lock so a concurrent Get
	// cannot promote a clip it read from disk over a newer entry.
	mu sync.RWMutex

	stats struct {
		sync.Mutex
		L1Hits     int64
		L2Hits     int64
		Misses     int64
		Promotions int64
	}
}

// NewStore opens the store described by cfg.
func NewStore(cfg Config, logger *log.Logger) (*Store, error) {
	if logger == nil {
		logger = log.Default().WithPrefix("cache")
	}

	l2, err := NewDiskStore(cfg.Dir, cfg.DiskCapacity, cfg.CompressionLevel)
	if err != nil {
		return nil, err
	}

	s := &Store{
		l2:     l2,
		logger: logger,
	}
	if cfg.MemoryCapacity > 0 {
		s.l1 = NewMemoryCache(cfg.MemoryCapacity)
	}

	stats, _ := l2.Stats()
	logger.Debug("audio store opened",
		"dir", cfg.Dir,
		"entries", stats.EntryCount,
		"size", humanize.IBytes(uint64(stats.TotalSizeBytes)))

	return s, nil
}

// Get returns the clip stored for key, checking memory before disk.
func (s *Store) Get(key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.l1 != nil {
		if data, ok := s.l1.Get(key); ok {
			s.record(LevelMemory)
			return data, nil
		}
	}

	data, _, err := s.l2.Get(key)
	if err != nil {
		if errors.Is(err, ErrCacheMiss) {
			s.recordMiss()
		}
		return nil, err
	}
	s.record(LevelDisk)

	if s.l1 != nil {
		if err := s.l1.Put(key, data); err == nil {
			s.stats.Lock()
			s.stats.Promotions++
			s.stats.Unlock()
		}
	}
	return data, nil
}

// Put durably stores blob under key, replacing any earlier entry.
func (s *Store) Put(key string, blob []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.l2.Put(key, blob); err != nil {
		// Keep L1 consistent with disk: no stale copy of a failed replace.
		if s.l1 != nil {
			s.l1.Delete(key)
		}
		return err
	}

	if s.l1 != nil {
		// ErrItemTooLarge here only means the clip is disk-only.
		_ = s.l1.Put(key, blob)
	}
	return nil
}

// Contains reports whether key has an entry.
func (s *Store) Contains(key string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.l2.Contains(key)
}

// Delete removes one entry from both tiers.
func (s *Store) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.l1 != nil {
		s.l1.Delete(key)
	}
	return s.l2.Delete(key)
}

// Stats enumerates the disk index.
func (s *Store) Stats() (Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.l2.Stats()
}

// Entries lists metadata for every stored clip.
func (s *Store) Entries() []Metadata {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.l2.Entries()
}

// Clear deletes every entry from both tiers.
func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.l1 != nil {
		s.l1.Clear()
	}
	if err := s.l2.Clear(); err != nil {
		return fmt.Errorf("clear disk store: %w", err)
	}
	s.logger.Debug("audio store cleared")
	return nil
}

// Close flushes the index. The store is unusable afterwards.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.l1 != nil {
		s.l1.Clear()
	}
	return s.l2.Close()
}

// StoreStats are the tier-level counters of a Store.
type StoreStats struct {
	L1Hits     int64
	L2Hits     int64
	Misses     int64
	Promotions int64
	HitRate    float64
	L1         Metrics
	L2         Metrics
	L1Size     int64
	L2Size     int64
}

// GetStats returns hit counters per tier.
func (s *Store) GetStats() StoreStats {
	s.stats.Lock()
	out := StoreStats{
		L1Hits:     s.stats.L1Hits,
		L2Hits:     s.stats.L2Hits,
		Misses:     s.stats.Misses,
		Promotions: s.stats.Promotions,
	}
	s.stats.Unlock()

	if total := out.L1Hits + out.L2Hits + out.Misses; total > 0 {
		out.HitRate = float64(out.L1Hits+out.L2Hits) / float64(total)
	}
	if s.l1 != nil {
		out.L1 = s.l1.Metrics()
		out.L1Size = s.l1.Size()
	}
	out.L2 = s.l2.Metrics()
	out.L2Size = s.l2.DiskSize()
	return out
}

func (s *Store) record(level Level) {
	s.stats.Lock()
	defer s.stats.Unlock()
	switch level {
	case LevelMemory:
		s.stats.L1Hits++
	case LevelDisk:
		s.stats.L2Hits++
	}
}

func (s *Store) recordMiss() {
	s.stats.Lock()
	s.stats.Misses++
	s.stats.Unlock()
}
