package ui

import (
	"errors"
	"strings"
	"sync"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/yomu-app/koe/internal/cache"
)

type fakePlayer struct {
	mu       sync.Mutex
	played   []string
	stops    int
	clears   int
	stats    cache.Stats
	statsErr error
	current  string
}

func (p *fakePlayer) Play(text string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.played = append(p.played, text)
	p.current = text
}

func (p *fakePlayer) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stops++
	p.current = ""
}

func (p *fakePlayer) NowPlaying() (string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current, p.current != ""
}

func (p *fakePlayer) CacheStats() (cache.Stats, error) {
	return p.stats, p.statsErr
}

func (p *fakePlayer) ClearCache() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.clears++
	p.stats = cache.Stats{}
	return nil
}

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

// press feeds keys through Update and returns the resulting model.
func press(t *testing.T, m model, keys ...tea.KeyMsg) model {
	t.Helper()
	for _, k := range keys {
		next, _ := m.Update(k)
		m = next.(model)
	}
	return m
}

func TestBoard_CursorAutoplay(t *testing.T) {
	testCases := []struct {
		description string
		keys        []tea.KeyMsg
		want        []string
	}{
		{"right plays next kana", []tea.KeyMsg{runes("l")}, []string{"i"}},
		{"down keeps column", []tea.KeyMsg{runes("l"), {Type: tea.KeyDown}}, []string{"i", "ki"}},
		{"moving off the edge is a no-op", []tea.KeyMsg{runes("h"), runes("k")}, nil},
		{"rapid moves each play", []tea.KeyMsg{runes("l"), runes("l"), runes("l")}, []string{"i", "u", "e"}},
		{"enter replays", []tea.KeyMsg{{Type: tea.KeyEnter}, {Type: tea.KeyEnter}}, []string{"a", "a"}},
	}

	for _, tc := range testCases {
		t.Run(tc.description, func(t *testing.T) {
			p := &fakePlayer{}
			press(t, newModel(p), tc.keys...)
			if strings.Join(p.played, ",") != strings.Join(tc.want, ",") {
				t.Errorf("played %v, want %v", p.played, tc.want)
			}
		})
	}
}

func TestBoard_AutoplayToggle(t *testing.T) {
	p := &fakePlayer{}
	m := press(t, newModel(p), runes("a"), runes("l"))

	if m.autoplay {
		t.Error("autoplay should be off after toggling")
	}
	if len(p.played) != 0 {
		t.Errorf("moving with autoplay off played %v", p.played)
	}
	if m.selected().Romaji != "i" {
		t.Errorf("cursor on %q, want i", m.selected().Romaji)
	}

	press(t, m, runes("a"), runes("l"))
	if len(p.played) != 1 || p.played[0] != "u" {
		t.Errorf("played %v after re-enabling autoplay", p.played)
	}
}

func TestBoard_Stop(t *testing.T) {
	p := &fakePlayer{}
	press(t, newModel(p), runes("l"), runes("s"))
	if p.stops != 1 {
		t.Errorf("stops = %d, want 1", p.stops)
	}
}

func TestBoard_ClearNeedsConfirmation(t *testing.T) {
	p := &fakePlayer{stats: cache.Stats{EntryCount: 3, TotalSizeBytes: 2048}}
	m := newModel(p)

	next, _ := m.Update(statsMsg{stats: p.stats})
	m = press(t, next.(model), runes("X"))
	if !m.confirming {
		t.Fatal("X should ask for confirmation")
	}
	if !strings.Contains(m.footer(), "Delete 3 cached clips?") {
		t.Errorf("footer = %q", m.footer())
	}

	// Anything but y cancels.
	m = press(t, m, runes("n"))
	if m.confirming {
		t.Error("still confirming after n")
	}

	m = press(t, m, runes("X"))
	next, cmd := m.Update(runes("y"))
	m = next.(model)
	if cmd == nil {
		t.Fatal("confirming should return the clear command")
	}
	if _, ok := cmd().(clearedMsg); !ok {
		t.Fatal("clear command did not report completion")
	}
	if p.clears != 1 {
		t.Errorf("clears = %d, want 1", p.clears)
	}
}

func TestBoard_Footer(t *testing.T) {
	p := &fakePlayer{}
	m := newModel(p)

	next, _ := m.Update(statsMsg{stats: cache.Stats{EntryCount: 2, TotalSizeBytes: 1536}, nowPlaying: "ka", playing: true})
	m = next.(model)
	footer := m.footer()
	for _, want := range []string{"か ka", "2 clips", "1.5 KiB", "autoplay"} {
		if !strings.Contains(footer, want) {
			t.Errorf("footer %q missing %q", footer, want)
		}
	}

	next, _ = m.Update(statsMsg{err: errors.New("disk gone")})
	m = next.(model)
	if !strings.Contains(m.footer(), "cache unavailable") || !strings.Contains(m.footer(), "idle") {
		t.Errorf("footer = %q", m.footer())
	}
}

func TestBoard_FooterTruncates(t *testing.T) {
	m := newModel(&fakePlayer{})
	next, _ := m.Update(tea.WindowSizeMsg{Width: 12, Height: 20})
	m = next.(model)
	if got := m.footer(); !strings.HasSuffix(got, ellipsis) {
		t.Errorf("footer %q not truncated", got)
	}
}

func TestBoard_Refresh(t *testing.T) {
	p := &fakePlayer{stats: cache.Stats{EntryCount: 1}}
	p.Play("ne")
	msg := newModel(p).refresh().(statsMsg)
	if !msg.playing || msg.nowPlaying != "ne" || msg.stats.EntryCount != 1 {
		t.Errorf("refresh = %+v", msg)
	}
}

func TestBoard_Quit(t *testing.T) {
	p := &fakePlayer{}
	_, cmd := newModel(p).Update(runes("q"))
	if cmd == nil {
		t.Fatal("q should return a command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("q should quit")
	}
	if p.stops != 1 {
		t.Error("quitting should stop playback")
	}
}

func TestBoard_View(t *testing.T) {
	v := newModel(&fakePlayer{}).View()
	for _, want := range []string{"あ", "ka", "ん"} {
		if !strings.Contains(v, want) {
			t.Errorf("view missing %q", want)
		}
	}
}
