// Package http exposes the playback controls, health checks and metrics.
package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"jukebox/internal/core"
	"jukebox/internal/engine"
	"jukebox/internal/flood"
	"jukebox/internal/i18n"
	"jukebox/internal/playlist"
	"jukebox/internal/voice"
)

const shutdownTimeout = 10 * time.Second

// Controller is the playback engine as seen by the control API.
type Controller interface {
	Add(ctx context.Context, location string) (*playlist.Track, int, error)
	RemoveAt(index int) (*playlist.Track, error)
	SetPosition(index int) (*playlist.Track, error)
	Play(ctx context.Context) error
	Stop()
	Next()
	Prev()
	TogglePause() (bool, error)
	Seek(position time.Duration) error
	Clear() int
	Status() engine.Status
	Tracks() []*playlist.Track
	SetDestination(d voice.Destination)
}

// DestinationFunc builds a Discord destination for a guild voice channel.
type DestinationFunc func(guildID, channelID string) (voice.Destination, error)

// Options wires the server to the rest of the application.
type Options struct {
	Controller Controller
	Localizer  *i18n.Localizer
	// Floodgate limits control requests per client. Nil disables limiting.
	Floodgate *flood.Floodgate
	// Destinations enables POST /api/destination when set.
	Destinations DestinationFunc
	// Ready reports whether the service can take requests. Nil means always.
	Ready func() error
}

type Server struct {
	config  *core.ServerConfig
	logger  *zap.Logger
	server  *http.Server
	metrics *Metrics
	opts    Options
}

func NewServer(config *core.ServerConfig, metrics *Metrics, opts Options, logger *zap.Logger) *Server {
	if opts.Localizer == nil {
		opts.Localizer = i18n.NewLocalizer(i18n.DefaultLanguage)
	}
	if metrics == nil {
		metrics = NewMetrics()
	}

	s := &Server{
		config:  config,
		logger:  logger,
		metrics: metrics,
		opts:    opts,
	}
	s.server = createHTTPServer(config, s.setupRoutes())
	return s
}

func createHTTPServer(config *core.ServerConfig, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:         fmt.Sprintf("%s:%d", config.Host, config.Port),
		Handler:      handler,
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
	}
}

func (s *Server) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeRaw(w, http.StatusOK, "application/json", `{"status":"ok","service":"jukebox"}`)
	})
	mux.HandleFunc("GET /readyz", s.readyHandler)
	mux.Handle("GET /metrics", promhttp.HandlerFor(s.metrics.Registry(), promhttp.HandlerOpts{}))
	mux.HandleFunc("GET /{$}", homeHandler(s.logger))

	mux.HandleFunc("GET /api/status", s.handle("status", "", s.handleStatus))
	mux.HandleFunc("GET /api/playlist", s.handle("playlist", "", s.handlePlaylist))

	const scope = "control"
	mux.HandleFunc("POST /api/tracks", s.handle("add", scope, s.handleAdd))
	mux.HandleFunc("DELETE /api/tracks/{index}", s.handle("remove", scope, s.handleRemove))
	mux.HandleFunc("POST /api/position", s.handle("position", scope, s.handlePosition))
	mux.HandleFunc("POST /api/play", s.handle("play", scope, s.handlePlay))
	mux.HandleFunc("POST /api/stop", s.handle("stop", scope, s.handleStop))
	mux.HandleFunc("POST /api/next", s.handle("next", scope, s.handleNext))
	mux.HandleFunc("POST /api/prev", s.handle("prev", scope, s.handlePrev))
	mux.HandleFunc("POST /api/pause", s.handle("pause", scope, s.handlePause))
	mux.HandleFunc("POST /api/seek", s.handle("seek", scope, s.handleSeek))
	mux.HandleFunc("POST /api/clear", s.handle("clear", scope, s.handleClear))
	if s.opts.Destinations != nil {
		mux.HandleFunc("POST /api/destination", s.handle("destination", scope, s.handleDestination))
	}

	return mux
}

func (s *Server) readyHandler(w http.ResponseWriter, _ *http.Request) {
	if s.opts.Ready != nil {
		if err := s.opts.Ready(); err != nil {
			s.logger.Debug("Not ready", zap.Error(err))
			writeRaw(w, http.StatusServiceUnavailable, "application/json",
				`{"status":"not ready","service":"jukebox"}`)
			return
		}
	}
	writeRaw(w, http.StatusOK, "application/json", `{"status":"ready","service":"jukebox"}`)
}

func homeHandler(logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte(homePage)); err != nil {
			logger.Debug("Failed to write home page", zap.Error(err))
		}
	}
}

const homePage = `<!DOCTYPE html>
<html>
<head>
    <title>jukebox</title>
    <style>
        body { font-family: Arial, sans-serif; margin: 40px; }
        .header { color: #333; }
        .endpoint { margin: 10px 0; }
        code { background: #f4f4f4; padding: 2px 4px; }
    </style>
</head>
<body>
    <h1 class="header">🎵 jukebox</h1>
    <p>Playlist driven audio streaming</p>

    <h2>Endpoints</h2>
    <div class="endpoint">📊 <a href="/metrics">Metrics</a> - Prometheus metrics</div>
    <div class="endpoint">💚 <a href="/healthz">Health</a> - Health check</div>
    <div class="endpoint">✅ <a href="/readyz">Ready</a> - Readiness check</div>
    <div class="endpoint">🎶 <a href="/api/status">Status</a> - What is playing</div>
    <div class="endpoint">📜 <a href="/api/playlist">Playlist</a> - Queued tracks</div>

    <h2>Controls</h2>
    <p><code>POST /api/tracks {"location": "..."}</code>, <code>DELETE /api/tracks/{index}</code>,
    <code>POST /api/play</code>, <code>/api/stop</code>, <code>/api/next</code>, <code>/api/prev</code>,
    <code>/api/pause</code>, <code>/api/seek {"position": "1m30s"}</code>, <code>/api/clear</code></p>
</body>
</html>`

// Handler returns the routed handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// Addr returns the listen address.
func (s *Server) Addr() string {
	return s.server.Addr
}

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

func (s *Server) GetMetrics() *Metrics {
	return s.metrics
}

func writeRaw(w http.ResponseWriter, status int, contentType, body string) {
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}
