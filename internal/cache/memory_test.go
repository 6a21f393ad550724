package cache

import (
	"errors"
	"fmt"
	"sync"
	"testing"
)

func TestMemoryCache_GetPutDelete(t *testing.T) {
	c := NewMemoryCache(1024)
	blob := []byte("RIFF-clip")

	if err := c.Put("こんにちは", blob); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	got, ok := c.Get("こんにちは")
	if !ok || string(got) != string(blob) {
		t.Fatalf("Get = %q, %v", got, ok)
	}
	if _, ok := c.Get("こんにちは "); ok {
		t.Error("keys must match exactly")
	}
	if c.Size() != int64(len(blob)) || c.Len() != 1 {
		t.Errorf("size/len = %d/%d", c.Size(), c.Len())
	}

	c.Delete("こんにちは")
	if c.Contains("こんにちは") || c.Size() != 0 {
		t.Errorf("clip still held after Delete, size %d", c.Size())
	}
}

func TestMemoryCache_DropsLeastRecentlyPlayed(t *testing.T) {
	c := NewMemoryCache(100)
	for _, tok := range []string{"a", "i", "u", "e", "o"} {
		if err := c.Put(tok, make([]byte, 20)); err != nil {
			t.Fatalf("Put(%s) failed: %v", tok, err)
		}
	}

	// Replaying a and i leaves u as the oldest.
	c.Get("a")
	c.Get("i")

	if err := c.Put("ka", make([]byte, 30)); err != nil {
		t.Fatalf("Put(ka) failed: %v", err)
	}

	for tok, want := range map[string]bool{"a": true, "i": true, "u": false, "e": false, "o": true, "ka": true} {
		if got := c.Contains(tok); got != want {
			t.Errorf("Contains(%s) = %v, want %v", tok, got, want)
		}
	}
	if c.Size() != 90 {
		t.Errorf("Size = %d, want 90", c.Size())
	}
	if got := c.Metrics().Evictions; got != 2 {
		t.Errorf("Evictions = %d, want 2", got)
	}
}

func TestMemoryCache_Replace(t *testing.T) {
	tests := []struct {
		name     string
		second   int
		wantErr  error
		wantHeld bool
		wantSize int64
	}{
		{"grows", 40, nil, true, 40},
		{"shrinks", 5, nil, true, 5},
		{"too large drops the old clip", 101, ErrItemTooLarge, false, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewMemoryCache(100)
			c.Put("ne", make([]byte, 10))

			err := c.Put("ne", make([]byte, tt.second))
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Put = %v, want %v", err, tt.wantErr)
			}
			if c.Contains("ne") != tt.wantHeld || c.Size() != tt.wantSize {
				t.Errorf("held/size = %v/%d, want %v/%d", c.Contains("ne"), c.Size(), tt.wantHeld, tt.wantSize)
			}
		})
	}
}

func TestMemoryCache_HitRate(t *testing.T) {
	c := NewMemoryCache(100)
	c.Put("a", []byte("x"))

	c.Get("a")
	c.Get("a")
	c.Get("ka")

	m := c.Metrics()
	if m.Hits != 2 || m.Misses != 1 {
		t.Errorf("hits/misses = %d/%d, want 2/1", m.Hits, m.Misses)
	}
	if m.HitRate < 0.66 || m.HitRate > 0.67 {
		t.Errorf("HitRate = %f", m.HitRate)
	}
}

func TestMemoryCache_Clear(t *testing.T) {
	c := NewMemoryCache(100)
	c.Put("a", []byte("x"))
	c.Put("i", []byte("y"))
	c.Clear()

	if c.Len() != 0 || c.Size() != 0 {
		t.Errorf("len/size after Clear = %d/%d", c.Len(), c.Size())
	}
	if err := c.Put("u", []byte("z")); err != nil {
		t.Errorf("Put after Clear failed: %v", err)
	}
}

func TestMemoryCache_Concurrent(t *testing.T) {
	c := NewMemoryCache(1024)

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				key := fmt.Sprintf("clip-%d-%d", g, j%16)
				c.Put(key, make([]byte, 16))
				c.Get(key)
			}
		}(g)
	}
	wg.Wait()

	if c.Size() > 1024 {
		t.Errorf("Size over limit: %d", c.Size())
	}
}
