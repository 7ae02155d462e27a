package player

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/godbus/dbus/v5"
	"github.com/zmb3/spotify/v2"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

var t0 = time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

type fakeClock struct{ now time.Time }

func (c *fakeClock) Now() time.Time          { return c.now }
func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func TestDemo_Poll(t *testing.T) {
	clock := &fakeClock{now: t0}
	demo := NewDemo(clock.Now)

	tests := []struct {
		advance  time.Duration
		expected int64
	}{
		{0, 30_000},
		{time.Second, 31_000},
		{149 * time.Second, 0},
		{time.Second, 1_000},
	}

	for _, tt := range tests {
		clock.Advance(tt.advance)
		sample, err := demo.Poll(context.Background())
		if err != nil {
			t.Fatalf("Poll() error = %v", err)
		}
		if sample.ElapsedMs != tt.expected {
			t.Errorf("Poll() after +%v elapsed = %d, expected %d", tt.advance, sample.ElapsedMs, tt.expected)
		}
		if !sample.Playing || sample.Track.TrackID != DemoTrackID {
			t.Errorf("Poll() = %+v, expected the playing demo track", sample)
		}
	}
}

func TestDemo_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := NewDemo(nil).Poll(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Poll() error = %v, expected context.Canceled", err)
	}
}

type scriptedPoller struct {
	name   string
	err    error
	sample *Sample
	calls  int
}

func (p *scriptedPoller) Name() string { return p.name }

func (p *scriptedPoller) Poll(ctx context.Context) (*Sample, error) {
	p.calls++
	if p.err != nil {
		return nil, p.err
	}
	return p.sample, nil
}

func TestFallback(t *testing.T) {
	clock := &fakeClock{now: t0}
	primary := &scriptedPoller{name: "primary", sample: &Sample{ElapsedMs: 1}}
	secondary := &scriptedPoller{name: "secondary", sample: &Sample{ElapsedMs: 2}}
	f := NewFallback(primary, secondary, 5*time.Second, zap.NewNop()).WithClock(clock.Now)

	sample, err := f.Poll(context.Background())
	if err != nil || sample.ElapsedMs != 1 {
		t.Fatalf("Poll() = %v, %v, expected the primary sample", sample, err)
	}

	primary.err = errors.New("offline")
	clock.Advance(2 * time.Second)
	if _, err := f.Poll(context.Background()); err == nil {
		t.Error("Poll() before staleAfter should return the primary error")
	}
	if f.Active() {
		t.Error("Active() should be false before staleAfter")
	}

	clock.Advance(3 * time.Second)
	sample, err = f.Poll(context.Background())
	if err != nil || sample.ElapsedMs != 2 {
		t.Errorf("Poll() after staleAfter = %v, %v, expected the fallback sample", sample, err)
	}
	if !f.Active() {
		t.Error("Active() should be true once stale")
	}

	primary.err = nil
	sample, err = f.Poll(context.Background())
	if err != nil || sample.ElapsedMs != 1 {
		t.Errorf("Poll() after recovery = %v, %v, expected the primary sample", sample, err)
	}
	if f.Active() {
		t.Error("Active() should be false after recovery")
	}
}

func TestFallback_NeverSucceeded(t *testing.T) {
	clock := &fakeClock{now: t0}
	primary := &scriptedPoller{name: "primary", err: ErrNothingPlaying}
	f := NewFallback(primary, NewDemo(clock.Now), time.Second, nil).WithClock(clock.Now)

	if _, err := f.Poll(context.Background()); !errors.Is(err, ErrNothingPlaying) {
		t.Errorf("Poll() error = %v, expected ErrNothingPlaying", err)
	}

	clock.Advance(time.Second)
	sample, err := f.Poll(context.Background())
	if err != nil || sample.Track.TrackID != DemoTrackID {
		t.Errorf("Poll() = %v, %v, expected the demo track", sample, err)
	}
	if f.Name() != "primary+demo" {
		t.Errorf("Name() = %q, expected %q", f.Name(), "primary+demo")
	}
}

// hangingPoller blocks until its context ends.
type hangingPoller struct{}

func (hangingPoller) Name() string { return "hanging" }

func (hangingPoller) Poll(ctx context.Context) (*Sample, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestFallback_PrimaryTimesOut(t *testing.T) {
	clock := &fakeClock{now: t0}
	f := NewFallback(hangingPoller{}, NewDemo(clock.Now), 10*time.Millisecond, zap.NewNop()).WithClock(clock.Now)

	clock.Advance(time.Second)
	for i := 0; i < 3; i++ {
		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		sample, err := f.Poll(ctx)
		cancel()

		if err != nil {
			t.Fatalf("Poll() #%d error = %v, expected the demo sample", i, err)
		}
		if sample == nil || sample.Track.TrackID != DemoTrackID {
			t.Errorf("Poll() #%d = %+v, expected the demo track", i, sample)
		}
		if !f.Active() {
			t.Errorf("Active() after poll #%d = false, expected true", i)
		}
		clock.Advance(time.Second)
	}
}

func TestFallback_CallerCancelled(t *testing.T) {
	clock := &fakeClock{now: t0}
	f := NewFallback(hangingPoller{}, NewDemo(clock.Now), 10*time.Millisecond, zap.NewNop()).WithClock(clock.Now)
	clock.Advance(time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := f.Poll(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Poll() error = %v, expected context.Canceled", err)
	}
}

func TestHintsOf(t *testing.T) {
	if HintsOf(NewDemo(nil)) != nil {
		t.Error("HintsOf() for a poller without hints should be nil")
	}

	m := &MPRIS{hints: make(chan struct{}, 1)}
	if HintsOf(m) == nil {
		t.Error("HintsOf() for mpris should return its channel")
	}

	// hints coalesce instead of blocking
	notify(m.hints)
	notify(m.hints)
	if len(m.hints) != 1 {
		t.Errorf("pending hints = %d, expected 1", len(m.hints))
	}
}

func TestInfoFromMetadata(t *testing.T) {
	metadata := map[string]dbus.Variant{
		"xesam:title":   dbus.MakeVariant("Song"),
		"xesam:artist":  dbus.MakeVariant([]string{"Band", "Guest"}),
		"xesam:album":   dbus.MakeVariant("Record"),
		"mpris:trackid": dbus.MakeVariant(dbus.ObjectPath("/com/spotify/track/abc")),
		"mpris:length":  dbus.MakeVariant(int64(215_000_000)),
	}

	info := infoFromMetadata(metadata)
	if info.Title != "Song" || info.Artist != "Band" || info.Album != "Record" {
		t.Errorf("infoFromMetadata() = %+v, expected Song/Band/Record", info)
	}
	if info.TrackID != "/com/spotify/track/abc" {
		t.Errorf("TrackID = %q, expected object path", info.TrackID)
	}
	if info.DurationMs != 215_000 {
		t.Errorf("DurationMs = %d, expected 215000", info.DurationMs)
	}

	if infoFromMetadata(nil).IsValid() {
		t.Error("infoFromMetadata(nil) should not be valid")
	}
}

func TestMicrosToMillis(t *testing.T) {
	tests := []struct {
		raw      interface{}
		expected int64
	}{
		{int64(1_500_000), 1_500},
		{int64(-5), 0},
		{uint64(2_000), 2},
		{int32(999), 0},
		{"nope", 0},
		{nil, 0},
	}

	for _, tt := range tests {
		if got := microsToMillis(tt.raw); got != tt.expected {
			t.Errorf("microsToMillis(%v) = %d, expected %d", tt.raw, got, tt.expected)
		}
	}
}

func TestIsPlayerSignal(t *testing.T) {
	tests := []struct {
		name     string
		sig      *dbus.Signal
		expected bool
	}{
		{"nil", nil, false},
		{"seeked", &dbus.Signal{Name: mprisPlayerIface + ".Seeked", Body: []interface{}{int64(0)}}, true},
		{"player props", &dbus.Signal{Name: propertiesIface + ".PropertiesChanged", Body: []interface{}{mprisPlayerIface, map[string]dbus.Variant{}}}, true},
		{"other props", &dbus.Signal{Name: propertiesIface + ".PropertiesChanged", Body: []interface{}{"org.example", map[string]dbus.Variant{}}}, false},
		{"short body", &dbus.Signal{Name: propertiesIface + ".PropertiesChanged"}, false},
		{"unrelated", &dbus.Signal{Name: "org.example.Ping"}, false},
	}

	for _, tt := range tests {
		if got := isPlayerSignal(tt.sig); got != tt.expected {
			t.Errorf("%s: isPlayerSignal() = %v, expected %v", tt.name, got, tt.expected)
		}
	}
}

func TestSampleFromPlayerState(t *testing.T) {
	if _, err := sampleFromPlayerState(nil, t0); !errors.Is(err, ErrNothingPlaying) {
		t.Errorf("sampleFromPlayerState(nil) error = %v, expected ErrNothingPlaying", err)
	}

	item := &spotify.FullTrack{}
	item.ID = "4uLU6hMCjMI75M1A2tKUQC"
	item.Name = "Song"
	item.Artists = []spotify.SimpleArtist{{Name: "Band"}}
	item.Album.Name = "Record"
	item.Duration = 200_000

	state := &spotify.PlayerState{}
	state.Item = item
	state.Progress = 42_000
	state.Playing = true

	sample, err := sampleFromPlayerState(state, t0)
	if err != nil {
		t.Fatalf("sampleFromPlayerState() error = %v", err)
	}
	if sample.ElapsedMs != 42_000 || !sample.Playing || !sample.SampledAt.Equal(t0) {
		t.Errorf("sample = %+v, expected 42000ms playing at t0", sample)
	}
	if sample.Track.Artist != "Band" || sample.Track.TrackID != "4uLU6hMCjMI75M1A2tKUQC" || sample.Track.DurationMs != 200_000 {
		t.Errorf("track = %+v, expected Band / id / 200000ms", sample.Track)
	}

	state.Item.Artists = nil
	if _, err := sampleFromPlayerState(state, t0); !errors.Is(err, ErrNothingPlaying) {
		t.Errorf("sampleFromPlayerState() without artist error = %v, expected ErrNothingPlaying", err)
	}
}

func TestLoadToken(t *testing.T) {
	path := filepath.Join(t.TempDir(), "spotify", "token.json")

	if _, err := LoadToken(path); err == nil {
		t.Error("LoadToken() of a missing file should fail")
	}
	if _, err := LoadToken(""); err == nil {
		t.Error("LoadToken(\"\") should fail")
	}

	if err := SaveToken(path, &oauth2.Token{AccessToken: "access", RefreshToken: "refresh"}); err != nil {
		t.Fatalf("SaveToken() error = %v", err)
	}
	token, err := LoadToken(path)
	if err != nil {
		t.Fatalf("LoadToken() error = %v", err)
	}
	if token.RefreshToken != "refresh" {
		t.Errorf("RefreshToken = %q, expected %q", token.RefreshToken, "refresh")
	}
}
