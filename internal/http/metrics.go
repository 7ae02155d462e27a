package http

import (
	"github.com/prometheus/client_golang/prometheus"

	"karolbroda.com/lyrisync/internal/session"
)

var _ session.Recorder = (*Metrics)(nil)

// Metrics records session events on its own registry.
type Metrics struct {
	registry *prometheus.Registry

	SamplesTotal               *prometheus.CounterVec
	PollErrorsTotal            *prometheus.CounterVec
	PollsSkippedTotal          prometheus.Counter
	TrackChangesTotal          prometheus.Counter
	LyricsTotal                *prometheus.CounterVec
	LineAdvancesTotal          prometheus.Counter
	RegressionsSuppressedTotal prometheus.Counter
}

func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		SamplesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lyrisync_player_samples_total",
				Help: "Total number of playback samples received",
			},
			[]string{"player"},
		),
		PollErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lyrisync_player_poll_errors_total",
				Help: "Total number of failed player polls",
			},
			[]string{"player"},
		),
		PollsSkippedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "lyrisync_player_polls_skipped_total",
				Help: "Total number of poll ticks skipped while a poll was in flight",
			},
		),
		TrackChangesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "lyrisync_track_changes_total",
				Help: "Total number of track changes",
			},
		),
		LyricsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lyrisync_lyrics_lookups_total",
				Help: "Total number of lyric lookups by resolving source",
			},
			[]string{"source"},
		),
		LineAdvancesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "lyrisync_line_advances_total",
				Help: "Total number of highlighted line changes",
			},
		),
		RegressionsSuppressedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "lyrisync_regressions_suppressed_total",
				Help: "Total number of sync steps whose candidate was behind the highest line reached",
			},
		),
	}

	m.registry.MustRegister(
		m.SamplesTotal,
		m.PollErrorsTotal,
		m.PollsSkippedTotal,
		m.TrackChangesTotal,
		m.LyricsTotal,
		m.LineAdvancesTotal,
		m.RegressionsSuppressedTotal,
	)

	return m
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) SampleReceived(player string) {
	m.SamplesTotal.WithLabelValues(player).Inc()
}

func (m *Metrics) PollFailed(player string) {
	m.PollErrorsTotal.WithLabelValues(player).Inc()
}

func (m *Metrics) PollSkipped() {
	m.PollsSkippedTotal.Inc()
}

func (m *Metrics) TrackChanged() {
	m.TrackChangesTotal.Inc()
}

func (m *Metrics) LyricsResolved(source string) {
	m.LyricsTotal.WithLabelValues(source).Inc()
}

func (m *Metrics) LyricsMissing() {
	m.LyricsTotal.WithLabelValues("none").Inc()
}

func (m *Metrics) LineAdvanced() {
	m.LineAdvancesTotal.Inc()
}

func (m *Metrics) RegressionSuppressed() {
	m.RegressionsSuppressedTotal.Inc()
}
