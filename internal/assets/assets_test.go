package assets

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"
)

func TestAlphabet(t *testing.T) {
	tokens := Alphabet()
	if len(tokens) != 71 {
		t.Fatalf("alphabet has %d tokens, want 71", len(tokens))
	}

	seen := make(map[string]bool)
	for _, tok := range tokens {
		if seen[tok] {
			t.Errorf("duplicate token %q", tok)
		}
		seen[tok] = true
		if !IsKana(tok) {
			t.Errorf("IsKana(%q) = false", tok)
		}
	}

	for _, s := range []string{"", "こんにちは", "KA", "ka ", "kya"} {
		if IsKana(s) {
			t.Errorf("IsKana(%q) = true", s)
		}
	}
}

func TestRows(t *testing.T) {
	rows := Rows()
	total := 0
	for _, r := range rows {
		total += len(r)
	}
	if total != 71 {
		t.Errorf("rows hold %d kana, want 71", total)
	}
	if rows[0][0].Hiragana != "あ" {
		t.Errorf("first row starts with %q", rows[0][0].Hiragana)
	}
	if got := len(rows[len(rows)-1]); got != 5 {
		t.Errorf("last row has %d kana, want 5", got)
	}
}

func TestHiragana(t *testing.T) {
	tests := map[string]string{
		"ka":  "か",
		"shi": "し",
		"n":   "ん",
		"pa":  "ぱ",
		"ねこ":  "ねこ",
	}
	for in, want := range tests {
		if got := Hiragana(in); got != want {
			t.Errorf("Hiragana(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestDirFetcher(t *testing.T) {
	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, "kana"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, "kana", "ka.wav"), []byte("ka-clip"), 0o644); err != nil {
		t.Fatal(err)
	}

	f := NewDirFetcher(root, Options{})
	ctx := context.Background()

	data, err := f.Fetch(ctx, "ka")
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if string(data) != "ka-clip" {
		t.Errorf("Fetch = %q", data)
	}

	if _, err := f.Fetch(ctx, "ki"); !errors.Is(err, ErrAssetNotFound) {
		t.Errorf("missing clip error = %v, want ErrAssetNotFound", err)
	}
	if _, err := f.Fetch(ctx, "hello"); !errors.Is(err, ErrNotKana) {
		t.Errorf("non-kana error = %v, want ErrNotKana", err)
	}
}

func TestHTTPFetcher(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		switch r.URL.Path {
		case "/audio/kana/a.wav":
			w.Write([]byte("a-clip"))
		case "/audio/kana/e.wav":
			w.WriteHeader(http.StatusInternalServerError)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	f, err := NewHTTPFetcher(srv.URL+"/audio/", Options{Timeout: time.Second})
	if err != nil {
		t.Fatalf("NewHTTPFetcher failed: %v", err)
	}
	ctx := context.Background()

	data, err := f.Fetch(ctx, "a")
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if string(data) != "a-clip" {
		t.Errorf("Fetch = %q", data)
	}

	if _, err := f.Fetch(ctx, "o"); !errors.Is(err, ErrAssetNotFound) {
		t.Errorf("404 error = %v, want ErrAssetNotFound", err)
	}

	_, err = f.Fetch(ctx, "e")
	if err == nil || errors.Is(err, ErrAssetNotFound) {
		t.Errorf("500 error = %v, want a non-not-found error", err)
	}

	if _, err := f.Fetch(ctx, "not-kana"); !errors.Is(err, ErrNotKana) {
		t.Errorf("non-kana error = %v", err)
	}
	if hits.Load() != 3 {
		t.Errorf("server saw %d requests, want 3", hits.Load())
	}
}

func TestHTTPFetcher_RateLimitHonoursContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("clip"))
	}))
	defer srv.Close()

	f, err := NewHTTPFetcher(srv.URL, Options{RequestsPerSecond: 0.1})
	if err != nil {
		t.Fatal(err)
	}

	if _, err := f.Fetch(context.Background(), "a"); err != nil {
		t.Fatalf("first fetch: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if _, err := f.Fetch(ctx, "i"); err == nil {
		t.Error("second fetch should wait on the limiter and give up with the context")
	}
}

func TestNewFetcher(t *testing.T) {
	tests := []struct {
		base    string
		wantDir bool
		wantErr bool
	}{
		{base: "https://example.com/clips", wantDir: false},
		{base: "http://localhost:8080", wantDir: false},
		{base: "file:///usr/share/koe", wantDir: true},
		{base: "/usr/share/koe", wantDir: true},
		{base: "./assets", wantDir: true},
		{base: "", wantErr: true},
	}

	for _, tt := range tests {
		f, err := NewFetcher(tt.base, Options{})
		if tt.wantErr {
			if err == nil {
				t.Errorf("NewFetcher(%q) expected error", tt.base)
			}
			continue
		}
		if err != nil {
			t.Errorf("NewFetcher(%q) error: %v", tt.base, err)
			continue
		}
		_, isDir := f.(*DirFetcher)
		if isDir != tt.wantDir {
			t.Errorf("NewFetcher(%q) dir = %v, want %v", tt.base, isDir, tt.wantDir)
		}
	}
}

func TestHTTPFetcher_URL(t *testing.T) {
	f, _ := NewHTTPFetcher("https://cdn.example.com/app/", Options{Pattern: "voice/%s.ogg"})
	if got, want := f.URL("shi"), "https://cdn.example.com/app/voice/shi.ogg"; got != want {
		t.Errorf("URL = %q, want %q", got, want)
	}
}
