package cache

import (
	"errors"
	"time"
)

// Common errors for cache operations
var (
	// ErrCacheMiss is returned when no entry exists for a key
	ErrCacheMiss = errors.New("cache miss")

	// ErrItemTooLarge is returned when an item exceeds the configured capacity
	ErrItemTooLarge = errors.New("item too large for cache")

	// ErrCacheUnavailable is returned when the backing store cannot be used
	// (directory not writable, cache disabled, store closed)
	ErrCacheUnavailable = errors.New("audio cache unavailable")
)

// Level represents the cache tier an entry was served from
type Level int

const (
	// LevelMemory is the in-process LRU
	LevelMemory Level = iota

	// LevelDisk is the persistent store
	LevelDisk
)

// String returns the string representation of the cache level
func (l Level) String() string {
	switch l {
	case LevelMemory:
		return "L1-Memory"
	case LevelDisk:
		return "L2-Disk"
	default:
		return "Unknown"
	}
}

// Entry is one stored clip. Entries are immutable once written; a second Put
// for the same key replaces the whole entry.
type Entry struct {
	Key       string
	Blob      []byte
	SizeBytes int64 // size of Blob as handed to Put
	StoredAt  time.Time
}

// Stats is the administrative snapshot of the store.
type Stats struct {
	EntryCount     int
	TotalSizeBytes int64
}

// Metrics holds cache performance counters
type Metrics struct {
	Hits      int64
	Misses    int64
	Evictions int64
	HitRate   float64 // hits / (hits + misses)

	LastAccess time.Time
	LastEvict  time.Time
}

// Metadata describes a stored entry without its payload
type Metadata struct {
	Key        string
	Size       int64 // original size in bytes
	DiskSize   int64 // bytes on disk after compression
	StoredAt   time.Time
	LastAccess time.Time
	Hits       int64
	Level      Level
}

// Config holds configuration for a Store
type Config struct {
	// Directory for the index and payload files
	Dir string

	// Disk capacity in bytes; 0 means unbounded
	DiskCapacity int64

	// Memory (L1) capacity in bytes; 0 disables the L1 tier
	MemoryCapacity int64

	// Zstd compression level (1-22); 0 disables compression
	CompressionLevel int
}

// DefaultConfig returns the default store configuration.
func DefaultConfig() Config {
	return Config{
		DiskCapacity:     0,                // unbounded
		MemoryCapacity:   16 * 1024 * 1024, // 16MB
		CompressionLevel: 3,
	}
}

// AudioStore is the contract the playback pipeline depends on.
type AudioStore interface {
	// Get returns the blob stored for key, or ErrCacheMiss.
	Get(key string) ([]byte, error)

	// Put stores or replaces the blob for key.
	Put(key string, blob []byte) error

	// Contains reports whether key has an entry.
	Contains(key string) bool

	// Stats enumerates the store.
	Stats() (Stats, error)

	// Clear deletes every entry.
	Clear() error
}
