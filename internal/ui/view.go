package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"

	"karolbroda.com/lyrisync/internal/engine"
	"karolbroda.com/lyrisync/internal/lyrics"
	"karolbroda.com/lyrisync/internal/present"
)

const (
	noLyricsText = "no synced lyrics"
	waitText     = "awaiting music"
)

func (m Model) View() string {
	width := m.width
	height := m.height
	if width == 0 {
		width = 80
	}
	if height == 0 {
		height = 24
	}

	if m.quitting {
		return ""
	}

	if !m.snap.HasTrack() {
		return m.renderWaitingScreen(width, height)
	}

	return m.renderMainScreen(width, height)
}

func (m Model) renderWaitingScreen(width int, height int) string {
	palette := m.palette
	var lines []string

	for y := 0; y < height; y++ {
		centerY := height / 2

		switch y {
		case centerY - 1:
			style := lipgloss.NewStyle().
				Foreground(lipgloss.Color(palette.Dim)).
				Italic(true)
			lines = append(lines, centerText(style.Render(waitText), width))
		case centerY:
			pulseChars := []string{"·", "•", "●", "•"}
			pulseIdx := (m.tickCount / 4) % len(pulseChars)
			style := lipgloss.NewStyle().Foreground(lipgloss.Color(palette.Secondary))
			lines = append(lines, centerText(style.Render(pulseChars[pulseIdx]), width))
		case centerY + 2:
			lines = append(lines, m.renderPlayerStatus(width))
		default:
			lines = append(lines, "")
		}
	}

	return strings.Join(lines, "\n")
}

// renderPlayerStatus shows the player name, or the last poll error.
func (m Model) renderPlayerStatus(width int) string {
	if m.snap.LastError != nil {
		style := lipgloss.NewStyle().Foreground(lipgloss.Color(m.palette.Error))
		return centerText(style.Render(truncate(m.snap.LastError.Error(), width-4)), width)
	}
	style := lipgloss.NewStyle().Foreground(lipgloss.Color(m.palette.Dim)).Faint(true)
	return centerText(style.Render(m.snap.Player), width)
}

func (m Model) renderMainScreen(width int, height int) string {
	var lines []string

	if !m.hideHeader {
		lines = append(lines, m.renderCompactHeader(width)...)
	}

	lyricsHeight := height - len(lines)

	if m.snap.View.Empty() {
		lines = append(lines, m.renderWaitingForLyrics(lyricsHeight, width)...)
	} else {
		lines = append(lines, m.renderLyrics(lyricsHeight, width)...)
	}

	for len(lines) < height {
		lines = append(lines, "")
	}

	if len(lines) > height {
		lines = lines[:height]
	}

	return strings.Join(lines, "\n")
}

func (m Model) renderCompactHeader(width int) []string {
	lines := []string{""}

	for _, info := range m.renderTrackInfo(width) {
		lines = append(lines, "  "+info)
	}
	lines = append(lines, "")

	if m.snap.Track.DurationMs > 0 {
		lines = append(lines, m.renderMinimalProgress(width))
	}
	lines = append(lines, m.renderStatusLine(width), "")

	return lines
}

func (m Model) renderTrackInfo(width int) []string {
	trk := m.snap.Track
	palette := m.palette

	maxWidth := width - 4
	if maxWidth < 20 {
		maxWidth = 20
	}

	titleStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color(palette.Primary)).
		Bold(true)
	artistStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color(palette.Secondary))

	lines := []string{
		titleStyle.Render(truncate(trk.Title, maxWidth)),
		artistStyle.Render(truncate(trk.Artist, maxWidth)),
	}

	if trk.Album != "" {
		albumStyle := lipgloss.NewStyle().
			Foreground(lipgloss.Color(palette.Dim))
		lines = append(lines, albumStyle.Render(truncate(trk.Album, maxWidth)))
	}

	return lines
}

func (m Model) renderMinimalProgress(width int) string {
	palette := m.palette
	durationMs := m.snap.Track.DurationMs

	barWidth := width - 20
	if barWidth < 20 {
		barWidth = 20
	}

	progress := clamp(float64(m.snap.ElapsedMs)/float64(durationMs), 0, 1)
	filledWidth := int(float64(barWidth) * progress)

	filledStyle := lipgloss.NewStyle().Foreground(lipgloss.Color(palette.Primary))
	emptyStyle := lipgloss.NewStyle().Foreground(lipgloss.Color(palette.Dim)).Faint(true)

	var bar strings.Builder
	for i := 0; i < barWidth; i++ {
		switch {
		case i < filledWidth:
			bar.WriteString(filledStyle.Render("━"))
		case i == filledWidth:
			bar.WriteString(filledStyle.Render("●"))
		default:
			bar.WriteString(emptyStyle.Render("─"))
		}
	}

	timeStyle := lipgloss.NewStyle().Foreground(lipgloss.Color(palette.Dim))

	return fmt.Sprintf("  %s  %s  %s",
		timeStyle.Render(present.FormatTime(m.snap.ElapsedMs)),
		bar.String(),
		timeStyle.Render(present.FormatTime(durationMs)))
}

// renderStatusLine shows line progress, the sync offset, and the player.
func (m Model) renderStatusLine(width int) string {
	palette := m.palette
	dim := lipgloss.NewStyle().Foreground(lipgloss.Color(palette.Dim))

	parts := []string{m.snap.Player}
	if i, n := m.snap.View.Position(); n > 0 {
		parts = append(parts, fmt.Sprintf("line %d/%d", i, n))
	}
	if m.snap.LyricsSource != "" {
		parts = append(parts, m.snap.LyricsSource)
	}
	if !m.snap.Playing {
		parts = append(parts, "paused")
	}
	if m.snap.Stale {
		parts = append(parts, "stale")
	}

	status := dim.Render(truncate(strings.Join(parts, " · "), width-20))

	offsetStyle := dim
	if m.snap.OffsetMs != 0 {
		offsetStyle = lipgloss.NewStyle().Foreground(lipgloss.Color(palette.Accent))
	}
	status += "  " + offsetStyle.Render("offset "+present.FormatOffset(m.snap.OffsetMs))

	if m.snap.LastError != nil {
		errStyle := lipgloss.NewStyle().Foreground(lipgloss.Color(palette.Error))
		status += "  " + errStyle.Render("⚠")
	}

	return "  " + status
}

func (m Model) renderLyrics(height int, width int) []string {
	view := m.snap.View
	output := make([]string, height)

	contextCount := 3
	if height < 20 {
		contextCount = 1
	}

	const spacing = 2
	centerY := height / 2
	if !m.animState.Settled() {
		// slide the block up from one row below
		centerY += int(lerp(1, 0, m.animState.SlideOffset()))
	}

	place := func(row int, text string) {
		if row >= 0 && row < height {
			output[row] = centerText(text, width)
		}
	}

	place(centerY, m.renderCurrentLine(*view.Current, width))

	for dist := 1; dist <= contextCount; dist++ {
		if i := len(view.Passed) - dist; i >= 0 {
			place(centerY-dist*spacing, m.renderContextLine(view.Passed[i], dist, true, width))
		}
		if dist-1 < len(view.Upcoming) {
			place(centerY+dist*spacing, m.renderContextLine(view.Upcoming[dist-1], dist, false, width))
		}
	}

	return output
}

func (m Model) renderCurrentLine(line lyrics.Line, width int) string {
	palette := m.palette
	glow := m.animState.GlowIntensity

	if line.IsRest() {
		style := lipgloss.NewStyle().Foreground(lipgloss.Color(palette.Accent))
		return style.Render(present.RestText)
	}

	sung := lipgloss.NewStyle().
		Foreground(lipgloss.Color(blend(palette.Primary, "#FFFFFF", glow*0.5))).
		Bold(true)
	unsung := lipgloss.NewStyle().
		Foreground(lipgloss.Color(palette.Secondary)).
		Bold(true)

	words := make([]string, len(line.Words))
	for i, word := range line.Words {
		if m.snap.WordIndex != engine.NoLine && i <= m.snap.WordIndex {
			words[i] = sung.Render(word)
		} else {
			words[i] = unsung.Render(word)
		}
	}

	return truncate(strings.Join(words, " "), width-4)
}

func (m Model) renderContextLine(line lyrics.Line, distance int, passed bool, width int) string {
	color := m.palette.contextColor(distance, passed)

	// the line that was just left fades out over the transition
	if passed && distance == 1 && !m.animState.Settled() {
		color = blend(m.palette.Primary, color, m.animState.SlideOffset())
	}

	style := lipgloss.NewStyle().Foreground(lipgloss.Color(color))
	if passed {
		style = style.Faint(true)
	}

	return style.Render(truncate(present.LineText(line), width-4))
}

func (m Model) renderWaitingForLyrics(height int, width int) []string {
	palette := m.palette
	lines := make([]string, 0, height)

	for i := 0; i < height/2-1; i++ {
		lines = append(lines, "")
	}

	switch {
	case m.snap.LyricsLoading:
		frames := []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}
		idx := m.tickCount % len(frames)
		spinnerStyle := lipgloss.NewStyle().Foreground(lipgloss.Color(palette.Secondary))
		textStyle := lipgloss.NewStyle().Foreground(lipgloss.Color(palette.Dim))
		lines = append(lines, centerText(spinnerStyle.Render(frames[idx])+textStyle.Render(" loading"), width))
	case m.snap.View.Total == 0:
		style := lipgloss.NewStyle().Foreground(lipgloss.Color(palette.Dim)).Italic(true)
		lines = append(lines, centerText(style.Render("♪ "+noLyricsText), width))
	default:
		style := lipgloss.NewStyle().Foreground(lipgloss.Color(palette.Dim))
		lines = append(lines, centerText(style.Render("♪"), width))
	}

	return lines
}

func centerText(text string, screenWidth int) string {
	padding := (screenWidth - lipgloss.Width(text)) / 2
	if padding < 0 {
		padding = 0
	}
	return strings.Repeat(" ", padding) + text
}

func truncate(s string, maxWidth int) string {
	if maxWidth < 1 {
		maxWidth = 1
	}
	return ansi.Truncate(s, maxWidth, "…")
}
