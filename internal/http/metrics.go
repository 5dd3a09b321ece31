package http

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"jukebox/internal/transcode"
	"jukebox/pkg/resolver"
)

// Metrics holds the jukebox collectors. It implements engine.Recorder.
type Metrics struct {
	registry *prometheus.Registry

	TracksAdded        *prometheus.CounterVec
	ResolutionFailures prometheus.Counter
	FramesSent         prometheus.Counter
	TrackOutcomes      *prometheus.CounterVec
	PlaylistTracks     prometheus.Gauge
	RequestsTotal      *prometheus.CounterVec
	RequestDuration    *prometheus.HistogramVec
	RateLimited        prometheus.Counter
}

// NewMetrics creates the collectors on a private registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		TracksAdded: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "jukebox_tracks_added_total",
				Help: "Total number of tracks added to the playlist",
			},
			[]string{"resolver"},
		),
		ResolutionFailures: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "jukebox_resolution_failures_total",
				Help: "Total number of locations no resolver could handle",
			},
		),
		FramesSent: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "jukebox_frames_sent_total",
				Help: "Total number of PCM frames sent to the destination",
			},
		),
		TrackOutcomes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "jukebox_track_outcomes_total",
				Help: "Tracks that stopped playing, by outcome",
			},
			[]string{"outcome"},
		),
		PlaylistTracks: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "jukebox_playlist_size",
				Help: "Current number of tracks in the playlist",
			},
		),
		RequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "jukebox_control_requests_total",
				Help: "Control API requests by operation and result",
			},
			[]string{"op", "status"},
		),
		RequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "jukebox_control_request_duration_seconds",
				Help:    "Time spent handling control API requests",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"op"},
		),
		RateLimited: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "jukebox_rate_limited_total",
				Help: "Control API requests rejected by the flood limiter",
			},
		),
	}

	m.registry.MustRegister(
		m.TracksAdded,
		m.ResolutionFailures,
		m.FramesSent,
		m.TrackOutcomes,
		m.PlaylistTracks,
		m.RequestsTotal,
		m.RequestDuration,
		m.RateLimited,
		prometheus.NewGaugeFunc(
			prometheus.GaugeOpts{
				Name: "jukebox_active_transcoders",
				Help: "Number of running transcoder processes",
			},
			func() float64 { return float64(transcode.Active()) },
		),
	)

	return m
}

// Registry returns the registry the collectors live on.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) TrackAdded(kind resolver.Kind) {
	m.TracksAdded.WithLabelValues(string(kind)).Inc()
}

func (m *Metrics) ResolutionFailed() {
	m.ResolutionFailures.Inc()
}

func (m *Metrics) FrameSent() {
	m.FramesSent.Inc()
}

func (m *Metrics) TrackOutcome(outcome string) {
	m.TrackOutcomes.WithLabelValues(outcome).Inc()
}

func (m *Metrics) PlaylistSize(size int) {
	m.PlaylistTracks.Set(float64(size))
}

// RecordRequest counts a control request and its duration.
func (m *Metrics) RecordRequest(op, status string, duration time.Duration) {
	m.RequestsTotal.WithLabelValues(op, status).Inc()
	m.RequestDuration.WithLabelValues(op).Observe(duration.Seconds())
}
