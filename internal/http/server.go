// Package http serves health, readiness, Prometheus metrics, and the
// current sync state as JSON.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"karolbroda.com/lyrisync/internal/config"
	"karolbroda.com/lyrisync/internal/engine"
	"karolbroda.com/lyrisync/internal/lyrics"
	"karolbroda.com/lyrisync/internal/present"
	"karolbroda.com/lyrisync/internal/session"
)

const (
	serviceName     = "lyrisync"
	shutdownTimeout = 10 * time.Second
)

// Status is the read side of a running session.
type Status interface {
	Snapshot() session.Snapshot
	Ready() bool
}

type Server struct {
	config  *config.ServerConfig
	logger  *zap.Logger
	server  *http.Server
	metrics *Metrics
}

func NewServer(cfg *config.ServerConfig, status Status, metrics *Metrics, logger *zap.Logger) *Server {
	mux := setupRoutes(status, metrics, logger)

	return &Server{
		config:  cfg,
		logger:  logger,
		server:  createHTTPServer(cfg, mux),
		metrics: metrics,
	}
}

func createHTTPServer(cfg *config.ServerConfig, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      handler,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
}

func setupRoutes(status Status, metrics *Metrics, logger *zap.Logger) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "service": serviceName}, logger)
	})

	mux.HandleFunc("/readyz", func(w http.ResponseWriter, _ *http.Request) {
		if !status.Ready() {
			writeJSON(w, http.StatusServiceUnavailable,
				map[string]string{"status": "starting", "service": serviceName}, logger)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready", "service": serviceName}, logger)
	})

	mux.Handle("/metrics", promhttp.HandlerFor(metrics.Registry(), promhttp.HandlerOpts{}))

	mux.HandleFunc("/api/now", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.Header().Set("Allow", http.MethodGet)
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		writeJSON(w, http.StatusOK, newNowResponse(status.Snapshot()), logger)
	})

	return mux
}

func writeJSON(w http.ResponseWriter, code int, body any, logger *zap.Logger) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.Debug("Failed to write response", zap.Error(err))
	}
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	s.logger.Info("Starting HTTP server",
		zap.String("addr", s.server.Addr))

	go func() {
		<-ctx.Done()
		s.logger.Info("Shutting down HTTP server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := s.server.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("Failed to shutdown HTTP server gracefully", zap.Error(err))
		}
	}()

	if err := s.server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("HTTP server failed: %w", err)
	}

	return nil
}

func (s *Server) Metrics() *Metrics {
	return s.metrics
}

const (
	statePassed   = "passed"
	stateCurrent  = "current"
	stateUpcoming = "upcoming"
)

type trackResponse struct {
	Title      string `json:"title"`
	Artist     string `json:"artist"`
	Album      string `json:"album,omitempty"`
	DurationMs int64  `json:"durationMs"`
	ArtworkURL string `json:"artworkUrl,omitempty"`
}

type lineResponse struct {
	Index     int     `json:"index"`
	StartTime float64 `json:"startTime"`
	Text      string  `json:"text"`
	Rest      bool    `json:"rest,omitempty"`
	State     string  `json:"state"`
}

type nowResponse struct {
	Player    string         `json:"player"`
	Track     *trackResponse `json:"track"`
	Playing   bool           `json:"playing"`
	ElapsedMs int64          `json:"elapsedMs"`
	OffsetMs  int64          `json:"offsetMs"`

	// CurrentLineIndex is the line number or the string "none".
	CurrentLineIndex any  `json:"currentLineIndex"`
	CurrentWordIndex *int `json:"currentWordIndex"`
	TotalLines       int  `json:"totalLines"`

	LyricsSource  string         `json:"lyricsSource,omitempty"`
	LyricsLoading bool           `json:"lyricsLoading"`
	LastError     string         `json:"lastError,omitempty"`
	Stale         bool           `json:"stale"`
	Lines         []lineResponse `json:"lines"`
}

func newNowResponse(snap session.Snapshot) nowResponse {
	resp := nowResponse{
		Player:           snap.Player,
		Playing:          snap.Playing,
		ElapsedMs:        snap.ElapsedMs,
		OffsetMs:         snap.OffsetMs,
		CurrentLineIndex: "none",
		TotalLines:       snap.View.Total,
		LyricsSource:     snap.LyricsSource,
		LyricsLoading:    snap.LyricsLoading,
		Stale:            snap.Stale,
		Lines:            make([]lineResponse, 0, snap.View.Total),
	}

	if snap.Track != nil {
		resp.Track = &trackResponse{
			Title:      snap.Track.Title,
			Artist:     snap.Track.Artist,
			Album:      snap.Track.Album,
			DurationMs: snap.Track.DurationMs,
			ArtworkURL: snap.Track.ArtworkURL,
		}
	}
	if snap.LastError != nil {
		resp.LastError = snap.LastError.Error()
	}

	if snap.LineIndex != engine.NoLine {
		resp.CurrentLineIndex = snap.LineIndex
	}
	if snap.WordIndex != engine.NoLine {
		word := snap.WordIndex
		resp.CurrentWordIndex = &word
	}

	v := snap.View
	for _, line := range v.Passed {
		resp.Lines = append(resp.Lines, newLineResponse(len(resp.Lines), line, statePassed))
	}
	if v.Current != nil {
		resp.Lines = append(resp.Lines, newLineResponse(len(resp.Lines), *v.Current, stateCurrent))
	}
	for _, line := range v.Upcoming {
		resp.Lines = append(resp.Lines, newLineResponse(len(resp.Lines), line, stateUpcoming))
	}

	return resp
}

func newLineResponse(index int, line lyrics.Line, state string) lineResponse {
	return lineResponse{
		Index:     index,
		StartTime: line.StartTime,
		Text:      present.LineText(line),
		Rest:      line.IsRest(),
		State:     state,
	}
}
