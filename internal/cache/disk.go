package cache

import (
	"crypto/sha256"
	"encoding/gob"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"
)

const (
	indexFile     = "clips.index"
	payloadSuffix = ".clip"

	// Payloads at or below this size are stored raw.
	compressThreshold = 1024
)

// DiskStore is the L2 tier. Payloads live in one file each, named by a hash
// of the key; a gob-encoded index maps keys to files and is rewritten
// atomically after every mutation so a crash never loses stored entries.
type DiskStore struct {
	basePath string
	capacity int64 // 0 means unbounded
	size     int64 // bytes on disk

	compress bool
	encoder  *zstd.Encoder
	decoder  *zstd.Decoder

	index  map[string]*diskEntry
	closed bool

	mu sync.Mutex

	metrics Metrics
}

// diskEntry is persisted in the index, so its fields are exported for gob.
type diskEntry struct {
	Key          string
	File         string // base name inside basePath
	Size         int64  // bytes on disk
	OriginalSize int64
	StoredAt     time.Time
	LastAccess   time.Time
	Hits         int64
	Compressed   bool
}

// NewDiskStore opens (or creates) a disk store rooted at basePath.
func NewDiskStore(basePath string, capacity int64, compressionLevel int) (*DiskStore, error) {
	if basePath == "" {
		return nil, fmt.Errorf("%w: no cache directory configured", ErrCacheUnavailable)
	}
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("%w: failed to create cache directory: %v", ErrCacheUnavailable, err)
	}

	ds := &DiskStore{
		basePath: basePath,
		capacity: capacity,
		compress: compressionLevel > 0,
		index:    make(map[string]*diskEntry),
	}

	if ds.compress {
		var err error
		ds.encoder, err = zstd.NewWriter(nil,
			zstd.WithEncoderLevel(zstd.EncoderLevelFromZstd(compressionLevel)))
		if err != nil {
			return nil, fmt.Errorf("failed to create zstd encoder: %w", err)
		}
	}

	// The decoder is always available so a store written with compression
	// can be reopened with compression turned off.
	var err error
	ds.decoder, err = zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd decoder: %w", err)
	}

	if err := ds.loadIndex(); err != nil {
		// A corrupt index is not fatal; start over and sweep orphans.
		ds.index = make(map[string]*diskEntry)
		ds.removeOrphans()
	}
	ds.dropMissing()
	ds.calculateSize()

	return ds, nil
}

// Get reads the payload for key.
func (ds *DiskStore) Get(key string) ([]byte, Metadata, error) {
	ds.mu.Lock()
	defer ds.mu.Unlock()

	if ds.closed {
		return nil, Metadata{}, ErrCacheUnavailable
	}

	entry, ok := ds.index[key]
	if !ok {
		ds.metrics.Misses++
		return nil, Metadata{}, ErrCacheMiss
	}

	data, err := os.ReadFile(ds.path(entry.File))
	if err != nil {
		// File vanished underneath us, forget it.
		ds.forget(key, entry)
		ds.metrics.Misses++
		return nil, Metadata{}, ErrCacheMiss
	}

	if entry.Compressed {
		decompressed, err := ds.decoder.DecodeAll(data, nil)
		if err != nil {
			ds.forget(key, entry)
			os.Remove(ds.path(entry.File))
			ds.metrics.Misses++
			return nil, Metadata{}, ErrCacheMiss
		}
		data = decompressed
	}

	entry.LastAccess = time.Now()
	entry.Hits++

	ds.metrics.Hits++
	ds.metrics.LastAccess = entry.LastAccess

	return data, entry.metadata(), nil
}

// Put writes the payload and records it in the index.
func (ds *DiskStore) Put(key string, value []byte) error {
	ds.mu.Lock()
	defer ds.mu.Unlock()

	if ds.closed {
		return ErrCacheUnavailable
	}

	originalSize := int64(len(value))

	dataToWrite := value
	var compressed bool
	if ds.compress && originalSize > compressThreshold {
		encoded := ds.encoder.EncodeAll(value, nil)
		if len(encoded) < len(value) {
			dataToWrite = encoded
			compressed = true
		}
	}
	diskSize := int64(len(dataToWrite))

	if ds.capacity > 0 && diskSize > ds.capacity {
		return ErrItemTooLarge
	}

	if existing, ok := ds.index[key]; ok {
		ds.size -= existing.Size
		delete(ds.index, key)
	}

	if ds.capacity > 0 {
		for ds.size+diskSize > ds.capacity && len(ds.index) > 0 {
			ds.evictOldest()
		}
	}

	file := fileName(key)
	if err := writeFileAtomic(ds.path(file), dataToWrite); err != nil {
		return fmt.Errorf("%w: failed to write clip: %v", ErrCacheUnavailable, err)
	}

	now := time.Now()
	ds.index[key] = &diskEntry{
		Key:          key,
		File:         file,
		Size:         diskSize,
		OriginalSize: originalSize,
		StoredAt:     now,
		LastAccess:   now,
		Compressed:   compressed,
	}
	ds.size += diskSize

	if err := ds.saveIndex(); err != nil {
		return fmt.Errorf("%w: failed to save index: %v", ErrCacheUnavailable, err)
	}
	return nil
}

// Delete removes an entry from the disk store.
func (ds *DiskStore) Delete(key string) error {
	ds.mu.Lock()
	defer ds.mu.Unlock()

	if ds.closed {
		return ErrCacheUnavailable
	}

	entry, ok := ds.index[key]
	if !ok {
		return nil
	}
	os.Remove(ds.path(entry.File))
	ds.forget(key, entry)
	return ds.saveIndex()
}

// Clear removes every payload and resets the index.
func (ds *DiskStore) Clear() error {
	ds.mu.Lock()
	defer ds.mu.Unlock()

	if ds.closed {
		return ErrCacheUnavailable
	}

	for _, entry := range ds.index {
		os.Remove(ds.path(entry.File))
	}
	ds.index = make(map[string]*diskEntry)
	ds.size = 0
	ds.removeOrphans()

	return ds.saveIndex()
}

// Contains checks if a key exists without touching access time.
func (ds *DiskStore) Contains(key string) bool {
	ds.mu.Lock()
	defer ds.mu.Unlock()

	_, ok := ds.index[key]
	return ok
}

// Stats enumerates the index, counting entries and summing original sizes.
func (ds *DiskStore) Stats() (Stats, error) {
	ds.mu.Lock()
	defer ds.mu.Unlock()

	if ds.closed {
		return Stats{}, ErrCacheUnavailable
	}

	var stats Stats
	for _, entry := range ds.index {
		stats.EntryCount++
		stats.TotalSizeBytes += entry.OriginalSize
	}
	return stats, nil
}

// Entries returns metadata for every entry, in no particular order.
func (ds *DiskStore) Entries() []Metadata {
	ds.mu.Lock()
	defer ds.mu.Unlock()

	out := make([]Metadata, 0, len(ds.index))
	for _, entry := range ds.index {
		out = append(out, entry.metadata())
	}
	return out
}

// DiskSize returns the bytes used on disk by payloads.
func (ds *DiskStore) DiskSize() int64 {
	ds.mu.Lock()
	defer ds.mu.Unlock()
	return ds.size
}

// Metrics returns hit/miss/eviction counters.
func (ds *DiskStore) Metrics() Metrics {
	ds.mu.Lock()
	defer ds.mu.Unlock()

	m := ds.metrics
	if m.Hits+m.Misses > 0 {
		m.HitRate = float64(m.Hits) / float64(m.Hits+m.Misses)
	}
	return m
}

// Close saves the index (persisting access stats) and rejects further use.
func (ds *DiskStore) Close() error {
	ds.mu.Lock()
	defer ds.mu.Unlock()

	if ds.closed {
		return nil
	}
	ds.closed = true

	if ds.encoder != nil {
		ds.encoder.Close()
	}
	ds.decoder.Close()

	return ds.saveIndex()
}

// Private helper methods

func (e *diskEntry) metadata() Metadata {
	return Metadata{
		Key:        e.Key,
		Size:       e.OriginalSize,
		DiskSize:   e.Size,
		StoredAt:   e.StoredAt,
		LastAccess: e.LastAccess,
		Hits:       e.Hits,
		Level:      LevelDisk,
	}
}

func (ds *DiskStore) path(file string) string {
	return filepath.Join(ds.basePath, file)
}

// forget drops an entry from the index (must be called with lock held).
func (ds *DiskStore) forget(key string, entry *diskEntry) {
	delete(ds.index, key)
	ds.size -= entry.Size
}

// evictOldest removes the least recently accessed entry (must be called with lock held).
func (ds *DiskStore) evictOldest() {
	var oldest *diskEntry
	for _, entry := range ds.index {
		if oldest == nil || entry.LastAccess.Before(oldest.LastAccess) {
			oldest = entry
		}
	}
	if oldest == nil {
		return
	}

	os.Remove(ds.path(oldest.File))
	ds.forget(oldest.Key, oldest)
	ds.metrics.Evictions++
	ds.metrics.LastEvict = time.Now()
}

func fileName(key string) string {
	hash := sha256.Sum256([]byte(key))
	return hex.EncodeToString(hash[:16]) + payloadSuffix
}

func writeFileAtomic(path string, data []byte) error {
	tempPath := path + ".tmp"

	file, err := os.Create(tempPath)
	if err != nil {
		return err
	}

	_, err = file.Write(data)
	closeErr := file.Close()

	if err != nil {
		os.Remove(tempPath)
		return err
	}
	if closeErr != nil {
		os.Remove(tempPath)
		return closeErr
	}

	return os.Rename(tempPath, path)
}

func (ds *DiskStore) loadIndex() error {
	file, err := os.Open(ds.path(indexFile))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return err
	}
	defer file.Close()

	index := make(map[string]*diskEntry)
	if err := gob.NewDecoder(file).Decode(&index); err != nil {
		return err
	}
	ds.index = index
	return nil
}

func (ds *DiskStore) saveIndex() error {
	indexPath := ds.path(indexFile)
	tempPath := indexPath + ".tmp"

	file, err := os.Create(tempPath)
	if err != nil {
		return err
	}

	err = gob.NewEncoder(file).Encode(ds.index)
	closeErr := file.Close()

	if err != nil {
		os.Remove(tempPath)
		return err
	}
	if closeErr != nil {
		os.Remove(tempPath)
		return closeErr
	}

	return os.Rename(tempPath, indexPath)
}

// dropMissing forgets index entries whose payload file is gone.
func (ds *DiskStore) dropMissing() {
	for key, entry := range ds.index {
		if _, err := os.Stat(ds.path(entry.File)); err != nil {
			delete(ds.index, key)
		}
	}
}

// removeOrphans deletes payload and temp files the index does not reference.
func (ds *DiskStore) removeOrphans() {
	known := make(map[string]bool, len(ds.index))
	for _, entry := range ds.index {
		known[entry.File] = true
	}

	matches, _ := filepath.Glob(filepath.Join(ds.basePath, "*"+payloadSuffix))
	for _, m := range matches {
		if !known[filepath.Base(m)] {
			os.Remove(m)
		}
	}
	temps, _ := filepath.Glob(filepath.Join(ds.basePath, "*.tmp"))
	for _, m := range temps {
		os.Remove(m)
	}
}

func (ds *DiskStore) calculateSize() {
	ds.size = 0
	for _, entry := range ds.index {
		ds.size += entry.Size
	}
}
