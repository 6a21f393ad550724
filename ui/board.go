// Package ui provides the interactive kana board.
package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"
	"github.com/dustin/go-humanize"
	runewidth "github.com/mattn/go-runewidth"
	"github.com/muesli/reflow/truncate"
	"github.com/muesli/termenv"

	"github.com/yomu-app/koe/internal/assets"
	"github.com/yomu-app/koe/internal/cache"
)

const (
	statusMessageTimeout = time.Second * 3
	refreshInterval      = time.Second / 2
	cellWidth            = 9
	ellipsis             = "…"
)

// Player is what the board drives.
type Player interface {
	Play(text string)
	Stop()
	NowPlaying() (string, bool)
	CacheStats() (cache.Stats, error)
	ClearCache() error
}

// NewProgram returns a new Tea program for the board.
func NewProgram(p Player) *tea.Program {
	log.Debug("Starting kana board")
	return tea.NewProgram(newModel(p), tea.WithAltScreen())
}

type (
	tickMsg  time.Time
	statsMsg struct {
		stats      cache.Stats
		err        error
		nowPlaying string
		playing    bool
	}
	clearedMsg              struct{ err error }
	statusMsg               string
	statusMessageTimeoutMsg struct{}
)

type model struct {
	player Player
	keys   keyMap
	help   help.Model
	spin   spinner.Model

	rows     [][]assets.Kana
	row, col int

	autoplay   bool
	confirming bool

	nowPlaying string
	playing    bool
	stats      cache.Stats
	statsErr   error

	status string

	width, height int
}

func newModel(p Player) model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = playingStyle

	return model{
		player:   p,
		keys:     newKeyMap(),
		help:     help.New(),
		spin:     sp,
		rows:     assets.Rows(),
		autoplay: true,
	}
}

func (m model) Init() tea.Cmd {
	return tea.Batch(m.refresh, tick(), m.spin.Tick)
}

func tick() tea.Cmd {
	return tea.Tick(refreshInterval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

// refresh reads playback and cache state off the UI goroutine.
func (m model) refresh() tea.Msg {
	stats, err := m.player.CacheStats()
	text, ok := m.player.NowPlaying()
	return statsMsg{stats: stats, err: err, nowPlaying: text, playing: ok}
}

func (m model) clear() tea.Msg {
	return clearedMsg{err: m.player.ClearCache()}
}

func copyKana(k assets.Kana) tea.Cmd {
	return func() tea.Msg {
		// Copy using OSC 52, then the system clipboard.
		termenv.Copy(k.Hiragana)
		if err := clipboard.WriteAll(k.Hiragana); err != nil {
			log.Debug("system clipboard unavailable", "error", err)
		}
		return statusMsg("copied " + k.Hiragana)
	}
}

// selected returns the kana under the cursor.
func (m model) selected() assets.Kana {
	return m.rows[m.row][m.col]
}

func (m *model) move(dRow, dCol int) bool {
	row := clampInt(m.row+dRow, 0, len(m.rows)-1)
	col := m.col + dCol
	if dRow != 0 {
		col = m.col
	}
	col = clampInt(col, 0, len(m.rows[row])-1)

	if row == m.row && col == m.col {
		return false
	}
	m.row, m.col = row, col
	return true
}

func (m *model) showStatus(s string) {
	m.status = s
}

func (m model) statusTimeout() tea.Cmd {
	return tea.Tick(statusMessageTimeout, func(time.Time) tea.Msg { return statusMessageTimeoutMsg{} })
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.help.Width = msg.Width
		return m, nil

	case tickMsg:
		return m, tea.Batch(m.refresh, tick())

	case statsMsg:
		m.stats, m.statsErr = msg.stats, msg.err
		m.nowPlaying, m.playing = msg.nowPlaying, msg.playing
		return m, nil

	case clearedMsg:
		if msg.err != nil {
			m.showStatus("clear failed: " + msg.err.Error())
		} else {
			m.showStatus("cache cleared")
		}
		return m, tea.Batch(m.refresh, m.statusTimeout())

	case statusMsg:
		m.showStatus(string(msg))
		return m, m.statusTimeout()

	case statusMessageTimeoutMsg:
		m.status = ""
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		if m.confirming {
			return m.updateConfirm(msg)
		}
		return m.updateKeys(msg)
	}
	return m, nil
}

func (m model) updateConfirm(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	m.confirming = false
	switch msg.String() {
	case "y", "Y":
		return m, m.clear
	}
	m.showStatus("clear cancelled")
	return m, m.statusTimeout()
}

func (m model) updateKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	moved := false
	switch {
	case key.Matches(msg, m.keys.Quit):
		m.player.Stop()
		return m, tea.Quit
	case key.Matches(msg, m.keys.Up):
		moved = m.move(-1, 0)
	case key.Matches(msg, m.keys.Down):
		moved = m.move(1, 0)
	case key.Matches(msg, m.keys.Left):
		moved = m.move(0, -1)
	case key.Matches(msg, m.keys.Right):
		moved = m.move(0, 1)
	case key.Matches(msg, m.keys.Play):
		m.play()
		return m, m.refresh
	case key.Matches(msg, m.keys.Stop):
		m.player.Stop()
		return m, m.refresh
	case key.Matches(msg, m.keys.Autoplay):
		m.autoplay = !m.autoplay
		if m.autoplay {
			m.showStatus("autoplay on")
		} else {
			m.showStatus("autoplay off")
		}
		return m, m.statusTimeout()
	case key.Matches(msg, m.keys.Copy):
		return m, copyKana(m.selected())
	case key.Matches(msg, m.keys.Clear):
		m.confirming = true
		return m, nil
	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
		return m, nil
	}

	if moved && m.autoplay {
		m.play()
		return m, m.refresh
	}
	return m, nil
}

func (m *model) play() {
	k := m.selected()
	m.player.Play(k.Romaji)
	m.nowPlaying, m.playing = k.Romaji, true
}

func (m model) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("koe ・ かな"))
	b.WriteString("\n\n")
	b.WriteString(m.grid())
	b.WriteString("\n")
	b.WriteString(footerStyle.Render(m.footer()))
	b.WriteString("\n")
	b.WriteString(m.help.View(m.keys))
	return b.String()
}

func (m model) grid() string {
	var b strings.Builder
	for r, row := range m.rows {
		for c, k := range row {
			b.WriteString(m.cell(k, r == m.row && c == m.col))
		}
		b.WriteString("\n")
	}
	return b.String()
}

// cell renders one kana padded to cellWidth columns. Hiragana are two
// columns wide, so the padding is measured in display width.
func (m model) cell(k assets.Kana, selected bool) string {
	kana := k.Hiragana
	switch {
	case selected:
		kana = selectedStyle.Render(kana)
	case m.playing && k.Romaji == m.nowPlaying:
		kana = playingStyle.Render(kana)
	default:
		kana = cellStyle.Render(kana)
	}
	pad := cellWidth - runewidth.StringWidth(k.Hiragana) - 1 - runewidth.StringWidth(k.Romaji)
	if pad < 1 {
		pad = 1
	}
	return kana + " " + romajiStyle.Render(k.Romaji) + strings.Repeat(" ", pad)
}

func (m model) footer() string {
	if m.confirming {
		return warnStyle.Render(fmt.Sprintf("Delete %d cached clips? [y/N]", m.stats.EntryCount))
	}

	var parts []string
	if m.playing {
		now := m.nowPlaying
		if h := assets.Hiragana(now); h != now {
			now = h + " " + now
		}
		parts = append(parts, m.spin.View()+" "+now)
	} else {
		parts = append(parts, "■ idle")
	}

	if m.statsErr != nil {
		parts = append(parts, "cache unavailable")
	} else {
		parts = append(parts, fmt.Sprintf("%d clips · %s",
			m.stats.EntryCount, humanize.IBytes(uint64(m.stats.TotalSizeBytes)))) //nolint:gosec
	}

	if m.autoplay {
		parts = append(parts, "autoplay")
	}
	if m.status != "" {
		parts = append(parts, m.status)
	}

	line := strings.Join(parts, "  ")
	if m.width > 0 {
		line = truncate.StringWithTail(line, uint(m.width), ellipsis) //nolint:gosec
	}
	return line
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
