package engine

import (
	"sync"
	"time"

	"karolbroda.com/lyrisync/internal/lyrics"
)

const (
	DefaultDwell        = 300 * time.Millisecond
	DefaultWordDuration = 300 * time.Millisecond
)

type Options struct {
	// Dwell is the minimum time between two line changes.
	Dwell time.Duration
	// WordDuration is the assumed length of one sung word.
	WordDuration time.Duration
	// OffsetMs is added to every elapsed estimate before lines are picked.
	OffsetMs int64
}

func DefaultOptions() Options {
	return Options{
		Dwell:        DefaultDwell,
		WordDuration: DefaultWordDuration,
	}
}

// Result describes one recompute step.
type Result struct {
	Index     int
	Word      int
	Candidate int
	// Changed is set when the step moved the cursor to a new line.
	Changed bool
	// Suppressed is set when the candidate was behind the cursor.
	Suppressed bool
	// Dwelling is set when an advance was held back by the dwell time.
	Dwelling bool
}

// State is a consistent copy of everything the engine exposes.
type State struct {
	Track    *lyrics.Track
	Cursor   Cursor
	Word     int
	OffsetMs int64
}

// Engine owns the installed lyric track and its cursor. The two are only
// ever replaced together.
type Engine struct {
	mu sync.RWMutex

	track      *lyrics.Track
	cursor     Cursor
	word       int
	lastChange time.Time

	dwell        time.Duration
	wordDuration time.Duration
	offsetMs     int64
}

func New(opts Options) *Engine {
	if opts.Dwell < 0 {
		opts.Dwell = 0
	}
	e := &Engine{
		dwell:        opts.Dwell,
		wordDuration: opts.WordDuration,
		offsetMs:     opts.OffsetMs,
	}
	e.install(lyrics.Empty())
	return e
}

// Install swaps in a new lyric track and a fresh cursor for it.
func (e *Engine) Install(trk *lyrics.Track) {
	if trk == nil {
		trk = lyrics.Empty()
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.install(trk)
}

// Clear installs the empty track.
func (e *Engine) Clear() {
	e.Install(lyrics.Empty())
}

func (e *Engine) install(trk *lyrics.Track) {
	e.track = trk
	e.cursor = NewCursor(trk.Len())
	e.lastChange = time.Time{}
	if e.cursor.IsNone() {
		e.word = NoLine
	} else {
		e.word = 0
	}
}

// Step recomputes the cursor for elapsedMs at wall-clock time now.
func (e *Engine) Step(elapsedMs int64, now time.Time) Result {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.cursor.IsNone() {
		return Result{Index: NoLine, Word: NoLine, Candidate: NoLine}
	}

	adjusted := elapsedMs + e.offsetMs
	if adjusted < 0 {
		adjusted = 0
	}
	elapsedSeconds := float64(adjusted) / 1000

	candidate := CandidateIndex(e.track, elapsedSeconds)
	res := Result{Candidate: candidate}

	switch {
	case candidate < e.cursor.Highest:
		res.Suppressed = true
	case candidate > e.cursor.Highest && !e.lastChange.IsZero() && now.Sub(e.lastChange) < e.dwell:
		res.Dwelling = true
	default:
		next := e.cursor.Advance(candidate)
		if next.Current != e.cursor.Current {
			res.Changed = true
			e.lastChange = now
			e.word = 0
		}
		e.cursor = next
	}

	if line, ok := e.track.Line(e.cursor.Current); ok {
		w := WordIndex(line, elapsedSeconds, e.wordDuration)
		if w > e.word || w == NoLine {
			e.word = w
		}
	}

	res.Index = e.cursor.Current
	res.Word = e.word
	return res
}

// CurrentLineIndex returns the highlighted line, or NoLine when the
// installed track is empty.
func (e *Engine) CurrentLineIndex() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.cursor.Current
}

func (e *Engine) CurrentWordIndex() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.word
}

// Lines returns a copy of the installed lines.
func (e *Engine) Lines() []lyrics.Line {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.track.Lines()
}

func (e *Engine) State() State {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return State{
		Track:    e.track,
		Cursor:   e.cursor,
		Word:     e.word,
		OffsetMs: e.offsetMs,
	}
}

func (e *Engine) Offset() int64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.offsetMs
}

// SetOffset replaces the sync offset. A smaller offset never moves the
// cursor back; it only delays the next advance.
func (e *Engine) SetOffset(ms int64) {
	e.mu.Lock()
	e.offsetMs = ms
	e.mu.Unlock()
}

// AdjustOffset adds deltaMs to the sync offset and returns the new value.
func (e *Engine) AdjustOffset(deltaMs int64) int64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.offsetMs += deltaMs
	return e.offsetMs
}
