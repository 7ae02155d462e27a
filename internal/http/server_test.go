package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/zap"

	"karolbroda.com/lyrisync/internal/config"
	"karolbroda.com/lyrisync/internal/engine"
	"karolbroda.com/lyrisync/internal/lyrics"
	"karolbroda.com/lyrisync/internal/present"
	"karolbroda.com/lyrisync/internal/session"
	"karolbroda.com/lyrisync/internal/track"
)

type fakeStatus struct {
	ready bool
	snap  session.Snapshot
}

func (f *fakeStatus) Snapshot() session.Snapshot { return f.snap }
func (f *fakeStatus) Ready() bool                { return f.ready }

func sampleLines() []lyrics.Line {
	return []lyrics.Line{
		{StartTime: 0, Words: []string{"first", "line"}},
		{StartTime: 5, Words: nil},
		{StartTime: 10, Words: []string{"third"}},
	}
}

func playingSnapshot(current int) session.Snapshot {
	return session.Snapshot{
		Player:       "demo",
		Track:        &track.Info{Title: "Song", Artist: "Artist", DurationMs: 180000},
		Playing:      true,
		ElapsedMs:    6200,
		OffsetMs:     -100,
		LineIndex:    current,
		WordIndex:    0,
		View:         present.Partition(sampleLines(), current),
		LyricsSource: lyrics.SourceLocal,
	}
}

func get(t *testing.T, srv *httptest.Server, path string) *http.Response {
	t.Helper()
	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, srv.URL+path, http.NoBody)
	if err != nil {
		t.Fatalf("NewRequest(%s) error = %v", path, err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET %s error = %v", path, err)
	}
	return resp
}

func TestCreateHTTPServer(t *testing.T) {
	cfg := &config.ServerConfig{
		Host:         "0.0.0.0",
		Port:         9090,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	mux := http.NewServeMux()
	server := createHTTPServer(cfg, mux)

	if server.Addr != "0.0.0.0:9090" {
		t.Errorf("createHTTPServer() Addr = %q, expected %q", server.Addr, "0.0.0.0:9090")
	}
	if server.Handler != mux {
		t.Errorf("createHTTPServer() Handler mismatch")
	}
	if server.ReadTimeout != cfg.ReadTimeout {
		t.Errorf("createHTTPServer() ReadTimeout = %v, expected %v", server.ReadTimeout, cfg.ReadTimeout)
	}
	if server.WriteTimeout != cfg.WriteTimeout {
		t.Errorf("createHTTPServer() WriteTimeout = %v, expected %v", server.WriteTimeout, cfg.WriteTimeout)
	}
}

func TestHealthAndReady(t *testing.T) {
	status := &fakeStatus{}
	srv := httptest.NewServer(setupRoutes(status, NewMetrics(), zap.NewNop()))
	defer srv.Close()

	resp := get(t, srv, "/healthz")
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("/healthz returned status %d, expected %d", resp.StatusCode, http.StatusOK)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
		t.Errorf("/healthz Content-Type = %q, expected %q", ct, "application/json")
	}

	resp = get(t, srv, "/readyz")
	resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("/readyz before first poll returned %d, expected %d", resp.StatusCode, http.StatusServiceUnavailable)
	}

	status.ready = true
	resp = get(t, srv, "/readyz")
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("/readyz returned %d, expected %d", resp.StatusCode, http.StatusOK)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	metrics := NewMetrics()
	metrics.TrackChanged()
	metrics.LyricsResolved(lyrics.SourceLocal)
	metrics.LyricsMissing()
	metrics.SampleReceived("demo")

	srv := httptest.NewServer(setupRoutes(&fakeStatus{}, metrics, zap.NewNop()))
	defer srv.Close()

	resp := get(t, srv, "/metrics")
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("reading /metrics: %v", err)
	}

	for _, want := range []string{
		"lyrisync_track_changes_total 1",
		`lyrisync_lyrics_lookups_total{source="local"} 1`,
		`lyrisync_lyrics_lookups_total{source="none"} 1`,
		`lyrisync_player_samples_total{player="demo"} 1`,
	} {
		if !strings.Contains(string(body), want) {
			t.Errorf("/metrics missing %q", want)
		}
	}
}

func TestMetrics_Recorder(t *testing.T) {
	m := NewMetrics()
	m.PollFailed("mpris:spotify")
	m.PollFailed("mpris:spotify")
	m.PollSkipped()
	m.LineAdvanced()
	m.RegressionSuppressed()

	if got := testutil.ToFloat64(m.PollErrorsTotal.WithLabelValues("mpris:spotify")); got != 2 {
		t.Errorf("poll errors = %v, expected 2", got)
	}
	if got := testutil.ToFloat64(m.PollsSkippedTotal); got != 1 {
		t.Errorf("polls skipped = %v, expected 1", got)
	}
	if got := testutil.ToFloat64(m.LineAdvancesTotal); got != 1 {
		t.Errorf("line advances = %v, expected 1", got)
	}
	if got := testutil.ToFloat64(m.RegressionsSuppressedTotal); got != 1 {
		t.Errorf("regressions suppressed = %v, expected 1", got)
	}
}

func TestNewMetrics_Twice(t *testing.T) {
	// separate registries, so no duplicate registration panic
	NewMetrics()
	NewMetrics()
}

func TestNowEndpoint(t *testing.T) {
	status := &fakeStatus{ready: true, snap: playingSnapshot(1)}
	srv := httptest.NewServer(setupRoutes(status, NewMetrics(), zap.NewNop()))
	defer srv.Close()

	resp := get(t, srv, "/api/now")
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("/api/now returned %d, expected %d", resp.StatusCode, http.StatusOK)
	}

	var got struct {
		Player           string          `json:"player"`
		Track            *trackResponse  `json:"track"`
		OffsetMs         int64           `json:"offsetMs"`
		CurrentLineIndex json.RawMessage `json:"currentLineIndex"`
		CurrentWordIndex *int            `json:"currentWordIndex"`
		Lines            []lineResponse  `json:"lines"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("decoding /api/now: %v", err)
	}

	if string(got.CurrentLineIndex) != "1" {
		t.Errorf("currentLineIndex = %s, expected 1", got.CurrentLineIndex)
	}
	if got.CurrentWordIndex == nil || *got.CurrentWordIndex != 0 {
		t.Errorf("currentWordIndex = %v, expected 0", got.CurrentWordIndex)
	}
	if got.Track == nil || got.Track.Title != "Song" {
		t.Errorf("track = %+v, expected Song", got.Track)
	}
	if got.OffsetMs != -100 {
		t.Errorf("offsetMs = %d, expected -100", got.OffsetMs)
	}

	wantStates := []string{statePassed, stateCurrent, stateUpcoming}
	if len(got.Lines) != len(wantStates) {
		t.Fatalf("lines = %d, expected %d", len(got.Lines), len(wantStates))
	}
	for i, want := range wantStates {
		if got.Lines[i].State != want || got.Lines[i].Index != i {
			t.Errorf("lines[%d] = %+v, expected state %q", i, got.Lines[i], want)
		}
	}
	if got.Lines[1].Text != present.RestText || !got.Lines[1].Rest {
		t.Errorf("rest line = %+v, expected rest marker", got.Lines[1])
	}
}

func TestNewNowResponse_NoLine(t *testing.T) {
	snap := session.Snapshot{
		Player:    "demo",
		LineIndex: engine.NoLine,
		WordIndex: engine.NoLine,
		View:      present.Partition(nil, engine.NoLine),
		LastError: errors.New("player unreachable"),
	}

	resp := newNowResponse(snap)

	if resp.CurrentLineIndex != "none" {
		t.Errorf("CurrentLineIndex = %v, expected %q", resp.CurrentLineIndex, "none")
	}
	if resp.CurrentWordIndex != nil {
		t.Errorf("CurrentWordIndex = %v, expected nil", *resp.CurrentWordIndex)
	}
	if resp.Track != nil {
		t.Errorf("Track = %+v, expected nil", resp.Track)
	}
	if resp.LastError != "player unreachable" {
		t.Errorf("LastError = %q, expected %q", resp.LastError, "player unreachable")
	}
	if resp.Lines == nil || len(resp.Lines) != 0 {
		t.Errorf("Lines = %v, expected empty non-nil slice", resp.Lines)
	}
}

func TestNewNowResponse_Stale(t *testing.T) {
	snap := session.Snapshot{
		LineIndex: engine.NoLine,
		WordIndex: engine.NoLine,
		View:      present.Partition(nil, engine.NoLine),
	}

	if newNowResponse(snap).Stale {
		t.Errorf("Stale = true, expected false")
	}

	snap.Stale = true
	data, err := json.Marshal(newNowResponse(snap))
	if err != nil {
		t.Fatalf("json.Marshal() error = %v", err)
	}
	if !strings.Contains(string(data), `"stale":true`) {
		t.Errorf("now response = %s, expected \"stale\":true", data)
	}
}

func TestNowEndpoint_MethodNotAllowed(t *testing.T) {
	srv := httptest.NewServer(setupRoutes(&fakeStatus{}, NewMetrics(), zap.NewNop()))
	defer srv.Close()

	req, _ := http.NewRequestWithContext(context.Background(), http.MethodPost, srv.URL+"/api/now", http.NoBody)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("POST /api/now error = %v", err)
	}
	resp.Body.Close()

	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("POST /api/now returned %d, expected %d", resp.StatusCode, http.StatusMethodNotAllowed)
	}
}

func TestServer_StartStops(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	port := ln.Addr().(*net.TCPAddr).Port
	ln.Close()

	cfg := &config.ServerConfig{Host: "127.0.0.1", Port: port, ReadTimeout: time.Second, WriteTimeout: time.Second}
	s := NewServer(cfg, &fakeStatus{ready: true}, NewMetrics(), zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Start(ctx) }()

	// wait for the listener
	deadline := time.Now().Add(2 * time.Second)
	for {
		conn, err := net.Dial("tcp", net.JoinHostPort(cfg.Host, strconv.Itoa(port)))
		if err == nil {
			conn.Close()
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("server never listened: %v", err)
		}
		time.Sleep(10 * time.Millisecond)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Start() = %v, expected nil after shutdown", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Start() did not return after cancel")
	}
}
