// Package lyrics holds the timed lyric model and the sources that resolve it.
package lyrics

import "strings"

// Line is one lyric line. StartTime is in seconds from the start of the track.
// A line without words is a rest marker.
type Line struct {
	StartTime float64
	Words     []string
}

func (l Line) Text() string {
	return strings.Join(l.Words, " ")
}

func (l Line) IsRest() bool {
	return len(l.Words) == 0
}

func (l Line) clone() Line {
	words := make([]string, len(l.Words))
	copy(words, l.Words)
	return Line{StartTime: l.StartTime, Words: words}
}

// Track is the immutable line list for one song. It is never mutated after
// construction; a track change installs a new Track.
type Track struct {
	lines  []Line
	source string
}

var empty = &Track{}

// Empty returns the shared "no lyrics available" track.
func Empty() *Track {
	return empty
}

// NewTrack copies lines into a new Track. Lines are kept in the given order;
// negative start times are clamped to zero.
func NewTrack(source string, lines []Line) *Track {
	copied := make([]Line, len(lines))
	for i, line := range lines {
		copied[i] = line.clone()
		if copied[i].StartTime < 0 {
			copied[i].StartTime = 0
		}
	}
	return &Track{lines: copied, source: source}
}

func (t *Track) Len() int {
	if t == nil {
		return 0
	}
	return len(t.lines)
}

func (t *Track) IsEmpty() bool {
	return t.Len() == 0
}

func (t *Track) Source() string {
	if t == nil {
		return ""
	}
	return t.source
}

// StartTime returns the start time of line i, or 0 when i is out of range.
func (t *Track) StartTime(i int) float64 {
	if i < 0 || i >= t.Len() {
		return 0
	}
	return t.lines[i].StartTime
}

// Line returns a copy of line i.
func (t *Track) Line(i int) (Line, bool) {
	if i < 0 || i >= t.Len() {
		return Line{}, false
	}
	return t.lines[i].clone(), true
}

// Lines returns a copy of every line.
func (t *Track) Lines() []Line {
	if t.Len() == 0 {
		return nil
	}
	result := make([]Line, len(t.lines))
	for i, line := range t.lines {
		result[i] = line.clone()
	}
	return result
}

// IsSorted reports whether start times are non-decreasing.
func (t *Track) IsSorted() bool {
	for i := 1; i < t.Len(); i++ {
		if t.lines[i].StartTime < t.lines[i-1].StartTime {
			return false
		}
	}
	return true
}
