package cache

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestDiskStore_PutGet(t *testing.T) {
	ds, err := NewDiskStore(t.TempDir(), 0, 3)
	if err != nil {
		t.Fatalf("NewDiskStore failed: %v", err)
	}
	defer ds.Close()

	blob := []byte("RIFF....WAVEfmt ")
	if err := ds.Put("a", blob); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	got, meta, err := ds.Get("a")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !bytes.Equal(got, blob) {
		t.Errorf("Get = %q, want %q", got, blob)
	}
	if meta.Size != int64(len(blob)) {
		t.Errorf("meta.Size = %d, want %d", meta.Size, len(blob))
	}
	if meta.Level != LevelDisk {
		t.Errorf("meta.Level = %v", meta.Level)
	}

	if _, _, err := ds.Get("b"); !errors.Is(err, ErrCacheMiss) {
		t.Errorf("Get(b) error = %v, want ErrCacheMiss", err)
	}
}

func TestDiskStore_Compression(t *testing.T) {
	ds, err := NewDiskStore(t.TempDir(), 0, 3)
	if err != nil {
		t.Fatalf("NewDiskStore failed: %v", err)
	}
	defer ds.Close()

	// Silence compresses well.
	blob := make([]byte, 64*1024)
	if err := ds.Put("silence", blob); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	if ds.DiskSize() >= int64(len(blob)) {
		t.Errorf("DiskSize = %d, expected compression below %d", ds.DiskSize(), len(blob))
	}

	stats, err := ds.Stats()
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if stats.TotalSizeBytes != int64(len(blob)) {
		t.Errorf("TotalSizeBytes = %d, want uncompressed %d", stats.TotalSizeBytes, len(blob))
	}

	got, _, err := ds.Get("silence")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !bytes.Equal(got, blob) {
		t.Error("decompressed payload differs")
	}
}

func TestDiskStore_Persistence(t *testing.T) {
	dir := t.TempDir()

	ds, err := NewDiskStore(dir, 0, 3)
	if err != nil {
		t.Fatalf("NewDiskStore failed: %v", err)
	}
	ds.Put("ka", []byte("ka-clip"))
	ds.Put("ki", make([]byte, 4096))
	// No Close: every Put already saved the index.

	reopened, err := NewDiskStore(dir, 0, 3)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer reopened.Close()

	got, _, err := reopened.Get("ka")
	if err != nil {
		t.Fatalf("Get after reopen failed: %v", err)
	}
	if string(got) != "ka-clip" {
		t.Errorf("Get = %q", got)
	}

	stats, _ := reopened.Stats()
	if stats.EntryCount != 2 {
		t.Errorf("EntryCount = %d, want 2", stats.EntryCount)
	}
}

func TestDiskStore_DropsMissingFiles(t *testing.T) {
	dir := t.TempDir()

	ds, err := NewDiskStore(dir, 0, 0)
	if err != nil {
		t.Fatalf("NewDiskStore failed: %v", err)
	}
	ds.Put("a", []byte("a"))
	ds.Put("b", []byte("b"))
	ds.Close()

	if err := os.Remove(filepath.Join(dir, fileName("a"))); err != nil {
		t.Fatalf("remove payload: %v", err)
	}

	reopened, err := NewDiskStore(dir, 0, 0)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer reopened.Close()

	if reopened.Contains("a") {
		t.Error("entry with missing payload should be dropped")
	}
	if !reopened.Contains("b") {
		t.Error("intact entry lost")
	}
}

func TestDiskStore_CorruptIndex(t *testing.T) {
	dir := t.TempDir()

	ds, _ := NewDiskStore(dir, 0, 0)
	ds.Put("a", []byte("a"))
	ds.Close()

	if err := os.WriteFile(filepath.Join(dir, indexFile), []byte("garbage"), 0o644); err != nil {
		t.Fatal(err)
	}

	reopened, err := NewDiskStore(dir, 0, 0)
	if err != nil {
		t.Fatalf("corrupt index should not be fatal: %v", err)
	}
	defer reopened.Close()

	stats, _ := reopened.Stats()
	if stats.EntryCount != 0 {
		t.Errorf("EntryCount = %d, want 0", stats.EntryCount)
	}
	if _, err := os.Stat(filepath.Join(dir, fileName("a"))); !os.IsNotExist(err) {
		t.Error("orphaned payload not swept")
	}
}

func TestDiskStore_CapacityEviction(t *testing.T) {
	ds, err := NewDiskStore(t.TempDir(), 100, 0)
	if err != nil {
		t.Fatalf("NewDiskStore failed: %v", err)
	}
	defer ds.Close()

	ds.Put("a", make([]byte, 40))
	ds.Put("b", make([]byte, 40))
	ds.Get("a")
	ds.Put("c", make([]byte, 40))

	if !ds.Contains("a") || !ds.Contains("c") {
		t.Error("recent entries evicted")
	}
	if ds.Contains("b") {
		t.Error("oldest entry should have been evicted")
	}
	if ds.Metrics().Evictions != 1 {
		t.Errorf("Evictions = %d, want 1", ds.Metrics().Evictions)
	}

	if err := ds.Put("huge", make([]byte, 101)); !errors.Is(err, ErrItemTooLarge) {
		t.Errorf("Put(huge) error = %v, want ErrItemTooLarge", err)
	}
}

func TestDiskStore_Clear(t *testing.T) {
	dir := t.TempDir()
	ds, _ := NewDiskStore(dir, 0, 3)
	defer ds.Close()

	ds.Put("a", []byte("a"))
	ds.Put("b", make([]byte, 2048))

	if err := ds.Clear(); err != nil {
		t.Fatalf("Clear failed: %v", err)
	}

	stats, _ := ds.Stats()
	if stats.EntryCount != 0 || stats.TotalSizeBytes != 0 {
		t.Errorf("Stats after clear = %+v", stats)
	}

	matches, _ := filepath.Glob(filepath.Join(dir, "*"+payloadSuffix))
	if len(matches) != 0 {
		t.Errorf("payload files left after clear: %v", matches)
	}
}

func TestDiskStore_Closed(t *testing.T) {
	ds, _ := NewDiskStore(t.TempDir(), 0, 0)
	ds.Close()

	if err := ds.Put("a", []byte("a")); !errors.Is(err, ErrCacheUnavailable) {
		t.Errorf("Put after close = %v", err)
	}
	if _, err := ds.Stats(); !errors.Is(err, ErrCacheUnavailable) {
		t.Errorf("Stats after close = %v", err)
	}
}

func TestNewDiskStore_Unwritable(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "file")
	if err := os.WriteFile(blocker, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	_, err := NewDiskStore(filepath.Join(blocker, "cache"), 0, 0)
	if !errors.Is(err, ErrCacheUnavailable) {
		t.Errorf("expected ErrCacheUnavailable, got %v", err)
	}

	if _, err := NewDiskStore("", 0, 0); !errors.Is(err, ErrCacheUnavailable) {
		t.Errorf("empty dir: expected ErrCacheUnavailable, got %v", err)
	}
}
