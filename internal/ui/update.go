package ui

import (
	tea "github.com/charmbracelet/bubbletea"
)

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tea.KeyMsg:
		return m.handleKeyPress(msg)

	case TickMsg:
		return m.handleTick()

	case paletteMsg:
		// a stale load for a previous track is dropped
		if msg.err == nil && msg.url == m.artworkURL {
			m.palette = m.basePalette.withArtwork(msg.colors)
		}
		return m, nil
	}

	return m, nil
}

func (m Model) handleKeyPress(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c", "esc":
		m.quitting = true
		return m, tea.Quit

	case "up", "k", "+", "=":
		m.adjustOffset(fineStepMs)

	case "down", "j", "-":
		m.adjustOffset(-fineStepMs)

	case "right", "l":
		m.adjustOffset(coarseStepMs)

	case "left", "h":
		m.adjustOffset(-coarseStepMs)

	case "0":
		m.session.ResetOffset()
		m.refresh()

	case "tab", "i":
		m.hideHeader = !m.hideHeader
	}

	return m, nil
}

// adjustOffset shifts the session offset. The highlighted line follows on the
// next sync step.
func (m *Model) adjustOffset(deltaMs int64) {
	m.session.AdjustOffset(deltaMs)
	m.refresh()
}

func (m Model) handleTick() (tea.Model, tea.Cmd) {
	m.tickCount++

	moved := m.refresh()
	m.animState.Update(moved, transitionTicks)

	if cmd := m.syncArtwork(); cmd != nil {
		return m, tea.Batch(tickCmd(), cmd)
	}
	return m, tickCmd()
}
