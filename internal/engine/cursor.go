// Package engine maps an elapsed-time estimate to the highlighted lyric line.
package engine

import (
	"time"

	"karolbroda.com/lyrisync/internal/lyrics"
)

// NoLine is the cursor position for a track without lines.
const NoLine = -1

// Cursor is the sync position within one lyric track. Current never
// decreases for the lifetime of the track it was created for.
type Cursor struct {
	Current int
	Highest int
}

// NewCursor returns the starting cursor for a track with lineCount lines.
func NewCursor(lineCount int) Cursor {
	if lineCount <= 0 {
		return Cursor{Current: NoLine, Highest: NoLine}
	}
	return Cursor{}
}

func (c Cursor) IsNone() bool {
	return c.Current == NoLine
}

// Advance applies a candidate index. Candidates above the highest index
// reached move the cursor; anything else pins it at the highest index.
func (c Cursor) Advance(candidate int) Cursor {
	if c.IsNone() {
		return c
	}
	if candidate > c.Highest {
		return Cursor{Current: candidate, Highest: candidate}
	}
	return Cursor{Current: c.Highest, Highest: c.Highest}
}

// CandidateIndex returns the greatest index whose start time is at or
// before elapsedSeconds, 0 when no line qualifies, or NoLine for an empty
// track. Every line is scanned, so unsorted input selects the last
// qualifying line rather than stopping at the first later one.
func CandidateIndex(trk *lyrics.Track, elapsedSeconds float64) int {
	n := trk.Len()
	if n == 0 {
		return NoLine
	}

	index := 0
	for i := 0; i < n; i++ {
		if trk.StartTime(i) <= elapsedSeconds {
			index = i
		}
	}
	return index
}

// WordIndex estimates the sung word by spreading perWord evenly from the
// line's start. It returns NoLine for a line without words.
func WordIndex(line lyrics.Line, elapsedSeconds float64, perWord time.Duration) int {
	if len(line.Words) == 0 {
		return NoLine
	}
	if perWord <= 0 {
		return 0
	}

	into := elapsedSeconds - line.StartTime
	if into <= 0 {
		return 0
	}

	idx := int(into / perWord.Seconds())
	if idx >= len(line.Words) {
		idx = len(line.Words) - 1
	}
	return idx
}
