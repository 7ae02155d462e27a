// Package present splits the installed lines around the highlighted one
// for display.
package present

import (
	"fmt"

	"karolbroda.com/lyrisync/internal/engine"
	"karolbroda.com/lyrisync/internal/lyrics"
)

// RestText is shown for lines without words.
const RestText = "···"

// View is the display partition of a lyric track.
type View struct {
	Passed   []lyrics.Line
	Current  *lyrics.Line
	Upcoming []lyrics.Line

	// Index is the highlighted line or engine.NoLine.
	Index int
	Total int
}

// Empty reports whether there is nothing to highlight. Renderers show a
// no-lyrics affordance instead.
func (v View) Empty() bool {
	return v.Current == nil
}

// Position returns "line i of n" progress, 1-based. Both are 0 when empty.
func (v View) Position() (int, int) {
	if v.Empty() {
		return 0, 0
	}
	return v.Index + 1, v.Total
}

// Fraction is the share of lines reached so far, in [0, 1].
func (v View) Fraction() float64 {
	if v.Empty() || v.Total == 0 {
		return 0
	}
	return float64(v.Index+1) / float64(v.Total)
}

// Partition places every line before current in Passed, the line at
// current in Current, and the rest in Upcoming. An out-of-range current
// yields an empty view with every line upcoming.
func Partition(lines []lyrics.Line, current int) View {
	v := View{Index: engine.NoLine, Total: len(lines)}

	if current < 0 || current >= len(lines) {
		v.Upcoming = lines
		return v
	}

	line := lines[current]
	v.Index = current
	v.Current = &line
	v.Passed = lines[:current]
	v.Upcoming = lines[current+1:]
	return v
}

// FromState partitions an engine state snapshot.
func FromState(state engine.State) View {
	return Partition(state.Track.Lines(), state.Cursor.Current)
}

// LineText returns the display text for a line.
func LineText(line lyrics.Line) string {
	if line.IsRest() {
		return RestText
	}
	return line.Text()
}

// FormatTime renders milliseconds as m:ss.
func FormatTime(ms int64) string {
	if ms < 0 {
		return "0:00"
	}
	seconds := ms / 1000
	return fmt.Sprintf("%d:%02d", seconds/60, seconds%60)
}

// FormatOffset renders a sync offset with an explicit sign.
func FormatOffset(ms int64) string {
	if ms == 0 {
		return "±0ms"
	}
	return fmt.Sprintf("%+dms", ms)
}
