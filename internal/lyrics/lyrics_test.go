package lyrics

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap"

	"karolbroda.com/lyrisync/internal/cache"
)

func TestNewTrack_CopiesInput(t *testing.T) {
	input := []Line{
		{StartTime: 0, Words: []string{"a"}},
		{StartTime: -2, Words: []string{"b"}},
	}

	trk := NewTrack("test", input)
	input[0].Words[0] = "mutated"

	line, ok := trk.Line(0)
	if !ok || line.Words[0] != "a" {
		t.Errorf("Line(0) = %+v, expected the original words", line)
	}
	if trk.StartTime(1) != 0 {
		t.Errorf("StartTime(1) = %v, expected negative start clamped to 0", trk.StartTime(1))
	}

	lines := trk.Lines()
	lines[0].Words[0] = "changed"
	if again, _ := trk.Line(0); again.Words[0] != "a" {
		t.Error("Lines() should return a copy")
	}
}

func TestTrack_EmptyIsSafe(t *testing.T) {
	var nilTrack *Track
	if nilTrack.Len() != 0 || !nilTrack.IsEmpty() {
		t.Error("nil track should be empty")
	}
	if !Empty().IsEmpty() {
		t.Error("Empty() should be empty")
	}
	if _, ok := Empty().Line(0); ok {
		t.Error("Line(0) on empty track should report false")
	}
	if Empty().Lines() != nil {
		t.Error("Lines() on empty track should be nil")
	}
}

func TestParseLRC(t *testing.T) {
	raw := `[ti:Song]
[ar:Band]
[al:Record]
[00:10.50]second line here
[00:01.00]first line
[00:20.00]
[01:00.00][01:30.00]chorus
not a lyric line
[bad]ignored`

	doc := ParseLRC(raw)

	if doc.Title != "Song" || doc.Artist != "Band" || doc.Album != "Record" {
		t.Errorf("ParseLRC() meta = %q/%q/%q, expected Song/Band/Record", doc.Title, doc.Artist, doc.Album)
	}

	expected := []struct {
		start float64
		text  string
	}{
		{1, "first line"},
		{10.5, "second line here"},
		{20, ""},
		{60, "chorus"},
		{90, "chorus"},
	}

	if len(doc.Lines) != len(expected) {
		t.Fatalf("ParseLRC() returned %d lines, expected %d: %+v", len(doc.Lines), len(expected), doc.Lines)
	}
	for i, want := range expected {
		got := doc.Lines[i]
		if got.StartTime != want.start || got.Text() != want.text {
			t.Errorf("line %d = (%v, %q), expected (%v, %q)", i, got.StartTime, got.Text(), want.start, want.text)
		}
	}
	if !doc.Lines[2].IsRest() {
		t.Error("empty timed line should be a rest")
	}
}

func TestParseLRC_Offset(t *testing.T) {
	doc := ParseLRC("[offset:+500]\n[00:02.00]a\n[00:00.20]b")

	if doc.OffsetMs != 500 {
		t.Fatalf("OffsetMs = %d, expected 500", doc.OffsetMs)
	}
	if doc.Lines[0].StartTime != 0 || doc.Lines[1].StartTime != 1.5 {
		t.Errorf("ParseLRC() starts = %v, %v, expected 0, 1.5", doc.Lines[0].StartTime, doc.Lines[1].StartTime)
	}
}

func TestParseLrcTimeToSeconds(t *testing.T) {
	tests := []struct {
		input    string
		expected float64
		wantErr  bool
	}{
		{"00:01.00", 1, false},
		{"01:02.5", 62.5, false},
		{"1:00:00", 3600, false},
		{"", 0, true},
		{"abc", 0, true},
		{"00:-5", 0, true},
	}

	for _, tt := range tests {
		got, err := parseLrcTimeToSeconds(tt.input)
		if (err != nil) != tt.wantErr {
			t.Errorf("parseLrcTimeToSeconds(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			continue
		}
		if got != tt.expected {
			t.Errorf("parseLrcTimeToSeconds(%q) = %v, expected %v", tt.input, got, tt.expected)
		}
	}
}

func TestPlaceholder(t *testing.T) {
	trk := Placeholder("Demo Song", "Demo Artist")

	if trk.Len() != 6 {
		t.Fatalf("Placeholder() has %d lines, expected 6", trk.Len())
	}
	if !trk.IsSorted() {
		t.Error("Placeholder() lines should be sorted")
	}
	first, _ := trk.Line(0)
	if first.Text() != "Demo Song" {
		t.Errorf("first line = %q, expected title", first.Text())
	}
	second, _ := trk.Line(1)
	if second.StartTime != 3 || second.Text() != "By Demo Artist" {
		t.Errorf("second line = (%v, %q), expected (3, \"By Demo Artist\")", second.StartTime, second.Text())
	}
	if trk.Source() != SourcePlaceholder {
		t.Errorf("Source() = %q, expected %q", trk.Source(), SourcePlaceholder)
	}
}

type stubSource struct {
	name  string
	track *Track
	err   error
	delay time.Duration
	calls int
}

func (s *stubSource) Name() string { return s.name }

func (s *stubSource) Fetch(ctx context.Context, _ Query) (*Track, error) {
	s.calls++
	if s.delay > 0 {
		time.Sleep(s.delay)
	}
	return s.track, s.err
}

func TestChain_FirstMatchWins(t *testing.T) {
	miss := &stubSource{name: "miss", err: ErrNotFound}
	broken := &stubSource{name: "broken", err: errors.New("boom")}
	hit := &stubSource{name: "hit", track: NewTrack("hit", []Line{{StartTime: 0, Words: []string{"x"}}})}
	never := &stubSource{name: "never", track: Empty()}

	chain := NewChain(time.Second, zap.NewNop(), miss, broken, hit, never)
	trk, err := chain.Fetch(context.Background(), Query{Title: "t", Artist: "a"})
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if trk.Source() != "hit" {
		t.Errorf("Fetch() source = %q, expected %q", trk.Source(), "hit")
	}
	if never.calls != 0 {
		t.Error("sources after the first match should not be called")
	}
}

func TestChain_AllMiss(t *testing.T) {
	chain := NewChain(time.Second, nil, &stubSource{name: "a", err: ErrNotFound}, &stubSource{name: "b", err: errors.New("down")})

	_, err := chain.Fetch(context.Background(), Query{Title: "t", Artist: "a"})
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Fetch() error = %v, expected ErrNotFound", err)
	}

	_, err = chain.Fetch(context.Background(), Query{})
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Fetch() with empty query error = %v, expected ErrNotFound", err)
	}
}

func TestChain_TimeoutPerSource(t *testing.T) {
	slow := &stubSource{name: "slow", delay: 200 * time.Millisecond, track: Placeholder("a", "b")}
	fallback := PlaceholderSource{}

	chain := NewChain(20*time.Millisecond, nil, slow, fallback)
	trk, err := chain.Fetch(context.Background(), Query{Title: "t", Artist: "a"})
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if trk.Source() != SourcePlaceholder {
		t.Errorf("Fetch() source = %q, expected the fallback after timeout", trk.Source())
	}
}

func TestLocalSource(t *testing.T) {
	dir := t.TempDir()
	write := func(name, body string) {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	write("The Band - Great_Song.lrc", "[00:01.00]hello\n[00:04.00]world")
	write("Solo.lrc", "[00:02.00]alone")
	write("Empty.lrc", "no timings here")
	write("notes.txt", "[00:01.00]ignored")

	src := NewLocalSource(dir, zap.NewNop())

	trk, err := src.Fetch(context.Background(), Query{Title: "Great Song", Artist: "The Band"})
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if trk.Len() != 2 || trk.Source() != SourceLocal {
		t.Errorf("Fetch() = %d lines from %q, expected 2 from local", trk.Len(), trk.Source())
	}

	trk, err = src.Fetch(context.Background(), Query{Title: "Solo", Artist: "Anyone"})
	if err != nil || trk.Len() != 1 {
		t.Errorf("Fetch() by title = %v, %v, expected 1 line", trk, err)
	}

	if _, err := src.Fetch(context.Background(), Query{Title: "Empty", Artist: "X"}); !errors.Is(err, ErrNotFound) {
		t.Errorf("Fetch() of untimed file error = %v, expected ErrNotFound", err)
	}
	if _, err := src.Fetch(context.Background(), Query{Title: "Missing", Artist: "X"}); !errors.Is(err, ErrNotFound) {
		t.Errorf("Fetch() of missing file error = %v, expected ErrNotFound", err)
	}

	if _, err := NewLocalSource("", nil).Fetch(context.Background(), Query{Title: "a", Artist: "b"}); !errors.Is(err, ErrNotFound) {
		t.Errorf("Fetch() without dir error = %v, expected ErrNotFound", err)
	}
}

func TestCachedSource(t *testing.T) {
	diskCache := cache.NewMemory()
	inner := &stubSource{name: "inner", track: NewTrack("inner", []Line{{StartTime: 1, Words: []string{"cached"}}})}
	src := NewCachedSource(inner, diskCache, true, zap.NewNop())
	q := Query{Title: "Song", Artist: "Band"}

	if _, err := src.Fetch(context.Background(), q); err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if err := diskCache.SaveOffset("Band", "Song", 250); err != nil {
		t.Fatalf("SaveOffset() error = %v", err)
	}

	trk, err := src.Fetch(context.Background(), q)
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if inner.calls != 1 {
		t.Errorf("inner called %d times, expected 1", inner.calls)
	}
	if trk.Source() != "cache/inner" {
		t.Errorf("Fetch() source = %q, expected %q", trk.Source(), "cache/inner")
	}

	// a refresh that bypasses reads still keeps the tuned offset
	refresh := NewCachedSource(inner, diskCache, false, nil)
	if _, err := refresh.Fetch(context.Background(), q); err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if offset, ok := diskCache.Offset("Band", "Song"); !ok || offset != 250 {
		t.Errorf("Offset() = %d, %v, expected 250, true", offset, ok)
	}
}
