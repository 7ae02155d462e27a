// Package ui is the terminal renderer: a bubbletea program that redraws the
// session snapshot and maps keys to sync offset adjustments.
package ui

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"karolbroda.com/lyrisync/internal/artwork"
	"karolbroda.com/lyrisync/internal/engine"
	"karolbroda.com/lyrisync/internal/session"
)

const (
	tickInterval    = 100 * time.Millisecond
	transitionTicks = 4

	fineStepMs   = 100
	coarseStepMs = 500
)

type TickMsg time.Time

type paletteMsg struct {
	url    string
	colors artwork.Colors
	err    error
}

// Controller is the part of a session the renderer reads and adjusts.
type Controller interface {
	Snapshot() session.Snapshot
	AdjustOffset(deltaMs int64) int64
	ResetOffset()
}

// PaletteLoader derives colors from a track's album art.
type PaletteLoader interface {
	Load(ctx context.Context, artworkURL string) (artwork.Colors, error)
}

type ModelConfig struct {
	Session    Controller
	HideHeader bool
	Palette    *Palette
	// Artwork is optional; without it the palette never changes.
	Artwork    PaletteLoader
}

type Model struct {
	session     Controller
	artwork     PaletteLoader
	basePalette *Palette
	palette     *Palette
	artworkURL  string
	hideHeader  bool

	snap      session.Snapshot
	trackKey  string
	lineIndex int

	animState AnimState
	tickCount int
	quitting  bool
	width     int
	height    int
}

func NewModel(cfg ModelConfig) Model {
	m := Model{
		session:     cfg.Session,
		artwork:     cfg.Artwork,
		basePalette: cfg.Palette,
		hideHeader:  cfg.HideHeader,
		lineIndex:   engine.NoLine,
	}
	if m.basePalette == nil {
		m.basePalette = DefaultPalette()
	}
	m.palette = m.basePalette
	m.animState.Reset()
	m.refresh()

	return m
}

func (m Model) Init() tea.Cmd {
	return tickCmd()
}

func tickCmd() tea.Cmd {
	return tea.Tick(tickInterval, func(t time.Time) tea.Msg {
		return TickMsg(t)
	})
}

// refresh pulls a new snapshot and reports whether the highlighted line
// moved to another line.
func (m *Model) refresh() bool {
	snap := m.session.Snapshot()

	key := ""
	if snap.Track != nil {
		key = snap.Track.Key()
	}

	if key != m.trackKey {
		m.animState.Reset()
	}
	moved := snap.LineIndex != engine.NoLine && (key != m.trackKey || snap.LineIndex != m.lineIndex)

	m.snap = snap
	m.trackKey = key
	m.lineIndex = snap.LineIndex
	return moved
}

// syncArtwork restores the base palette when the artwork changes and starts
// loading the new one.
func (m *Model) syncArtwork() tea.Cmd {
	url := ""
	if m.snap.Track != nil {
		url = m.snap.Track.ArtworkURL
	}
	if url == m.artworkURL {
		return nil
	}

	m.artworkURL = url
	m.palette = m.basePalette
	if url == "" || m.artwork == nil {
		return nil
	}

	loader := m.artwork
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), artwork.DefaultTimeout)
		defer cancel()
		colors, err := loader.Load(ctx, url)
		return paletteMsg{url: url, colors: colors, err: err}
	}
}

func (m Model) Width() int  { return m.width }
func (m Model) Height() int { return m.height }

func (m Model) Snapshot() session.Snapshot { return m.snap }
func (m Model) HideHeader() bool           { return m.hideHeader }
func (m Model) TickCount() int             { return m.tickCount }
func (m Model) IsQuitting() bool           { return m.quitting }
func (m Model) AnimState() *AnimState      { return &m.animState }
func (m Model) Palette() *Palette          { return m.palette }
