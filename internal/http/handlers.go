package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"jukebox/internal/engine"
	"jukebox/internal/playlist"
)

const maxBodyBytes = 1 << 16

var errBadRequest = errors.New("bad request")

// response is the body of every control API reply. Track positions are
// 1-based.
type response struct {
	OK      bool        `json:"ok"`
	Message string      `json:"message"`
	Index   int         `json:"index,omitempty"`
	Track   *trackView  `json:"track,omitempty"`
	Tracks  []trackView `json:"tracks,omitempty"`
	Status  *statusView `json:"status,omitempty"`
	Paused  *bool       `json:"paused,omitempty"`
	Removed *int        `json:"removed,omitempty"`
}

type trackView struct {
	Index    int      `json:"index"`
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	Location string   `json:"location"`
	Length   *float64 `json:"length_seconds,omitempty"`
}

type statusView struct {
	State       string   `json:"state"`
	Playing     bool     `json:"playing"`
	Index       int      `json:"index,omitempty"`
	Name        string   `json:"name,omitempty"`
	Location    string   `json:"location,omitempty"`
	Length      *float64 `json:"length_seconds,omitempty"`
	Elapsed     float64  `json:"elapsed_seconds"`
	Tracks      int      `json:"tracks"`
	Destination string   `json:"destination,omitempty"`
}

type handlerFunc func(r *http.Request) (response, error)

// handle wraps a control handler with flood limiting, metrics and the
// JSON envelope. An empty scope skips limiting.
func (s *Server) handle(op, scope string, h handlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		if scope != "" && s.opts.Floodgate != nil {
			client := clientID(r)
			if !s.opts.Floodgate.Allow(scope, client) {
				s.metrics.RateLimited.Inc()
				s.metrics.RecordRequest(op, "rate_limited", time.Since(start))
				retry := s.opts.Floodgate.RetryAfter(scope, client)
				w.Header().Set("Retry-After", strconv.Itoa(int(retry.Round(time.Second).Seconds())))
				s.writeJSON(w, http.StatusTooManyRequests, response{
					Message: s.opts.Localizer.T("error.rate_limited"),
				})
				return
			}
		}

		resp, err := h(r)
		if err != nil {
			key := messageKey(err)
			code := statusCode(key)
			if code >= http.StatusInternalServerError {
				s.logger.Error("Control request failed", zap.String("op", op), zap.Error(err))
			} else {
				s.logger.Debug("Control request rejected", zap.String("op", op), zap.Error(err))
			}
			s.metrics.RecordRequest(op, "error", time.Since(start))
			s.writeJSON(w, code, response{Message: s.opts.Localizer.T(key)})
			return
		}

		resp.OK = true
		s.metrics.RecordRequest(op, "ok", time.Since(start))
		s.writeJSON(w, http.StatusOK, resp)
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, code int, resp response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		s.logger.Debug("Failed to write response", zap.Error(err))
	}
}

func messageKey(err error) string {
	if errors.Is(err, errBadRequest) {
		return "error.bad_request"
	}
	return engine.MessageKey(err)
}

func statusCode(key string) int {
	switch key {
	case "error.bad_request", "error.empty_location", "error.seek_out_of_range":
		return http.StatusBadRequest
	case "error.index_out_of_range":
		return http.StatusNotFound
	case "error.no_destination", "error.empty_playlist", "error.already_playing",
		"error.not_playing", "error.duplicate":
		return http.StatusConflict
	case "error.resolution_failed":
		return http.StatusUnprocessableEntity
	case "error.destination_failed", "error.transcoder":
		return http.StatusBadGateway
	case "error.stalled":
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// clientID identifies the caller for flood limiting.
func clientID(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func decodeBody(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("decode body: %w: %w", errBadRequest, err)
	}
	return nil
}

func viewTrack(index int, t *playlist.Track) *trackView {
	rec := t.Record()
	v := &trackView{
		Index:    index + 1,
		ID:       rec.ID,
		Name:     rec.Name,
		Location: rec.Location,
	}
	if rec.Known {
		secs := rec.Length.Seconds()
		v.Length = &secs
	}
	return v
}

// formatClock renders d as m:ss, or h:mm:ss past the hour.
func formatClock(d time.Duration) string {
	d = d.Round(time.Second)
	h := int(d / time.Hour)
	m := int(d % time.Hour / time.Minute)
	sec := int(d % time.Minute / time.Second)
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, sec)
	}
	return fmt.Sprintf("%d:%02d", m, sec)
}

func (s *Server) statusLine(st engine.Status) string {
	if !st.Playing {
		return s.opts.Localizer.T("status.nothing_playing")
	}
	length := s.opts.Localizer.T("status.unknown_length")
	if st.LengthKnown {
		length = formatClock(st.Length)
	}
	key := "status.playing"
	if st.State == engine.StatePaused {
		key = "status.paused"
	}
	return s.opts.Localizer.T(key, st.Index+1, st.Name, formatClock(st.Elapsed), length)
}

func (s *Server) handleStatus(_ *http.Request) (response, error) {
	st := s.opts.Controller.Status()
	view := &statusView{
		State:       st.State.String(),
		Playing:     st.Playing,
		Name:        st.Name,
		Location:    st.Location,
		Elapsed:     st.Elapsed.Seconds(),
		Tracks:      st.Tracks,
		Destination: st.Destination,
	}
	if st.Playing {
		view.Index = st.Index + 1
	}
	if st.LengthKnown {
		secs := st.Length.Seconds()
		view.Length = &secs
	}
	return response{Message: s.statusLine(st), Status: view}, nil
}

func (s *Server) handlePlaylist(_ *http.Request) (response, error) {
	tracks := s.opts.Controller.Tracks()
	views := make([]trackView, 0, len(tracks))
	for i, t := range tracks {
		views = append(views, *viewTrack(i, t))
	}
	return response{Message: s.opts.Localizer.T("success.ok"), Tracks: views}, nil
}

func (s *Server) handleAdd(r *http.Request) (response, error) {
	var body struct {
		Location string `json:"location"`
	}
	if err := decodeBody(r, &body); err != nil {
		return response{}, err
	}

	track, index, err := s.opts.Controller.Add(r.Context(), body.Location)
	if err != nil {
		return response{}, err
	}
	return response{
		Message: s.opts.Localizer.T("success.track_added", index+1, track.Name()),
		Index:   index + 1,
		Track:   viewTrack(index, track),
	}, nil
}

// parsePosition converts a 1-based position to an engine index.
func parsePosition(raw string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("position %q: %w", raw, errBadRequest)
	}
	return n - 1, nil
}

func (s *Server) handleRemove(r *http.Request) (response, error) {
	index, err := parsePosition(r.PathValue("index"))
	if err != nil {
		return response{}, err
	}
	track, err := s.opts.Controller.RemoveAt(index)
	if err != nil {
		return response{}, err
	}
	return response{
		Message: s.opts.Localizer.T("success.track_removed", index+1, track.Name()),
		Index:   index + 1,
		Track:   viewTrack(index, track),
	}, nil
}

func (s *Server) handlePosition(r *http.Request) (response, error) {
	var body struct {
		Index json.Number `json:"index"`
	}
	if err := decodeBody(r, &body); err != nil {
		return response{}, err
	}
	index, err := parsePosition(body.Index.String())
	if err != nil {
		return response{}, err
	}
	track, err := s.opts.Controller.SetPosition(index)
	if err != nil {
		return response{}, err
	}
	return response{
		Message: s.opts.Localizer.T("success.position_set", index+1, track.Name()),
		Index:   index + 1,
		Track:   viewTrack(index, track),
	}, nil
}

func (s *Server) handlePlay(r *http.Request) (response, error) {
	if err := s.opts.Controller.Play(r.Context()); err != nil {
		return response{}, err
	}
	return response{Message: s.opts.Localizer.T("success.playing")}, nil
}

func (s *Server) handleStop(_ *http.Request) (response, error) {
	s.opts.Controller.Stop()
	return response{Message: s.opts.Localizer.T("success.stopped")}, nil
}

func (s *Server) handleNext(_ *http.Request) (response, error) {
	s.opts.Controller.Next()
	return response{Message: s.opts.Localizer.T("success.next")}, nil
}

func (s *Server) handlePrev(_ *http.Request) (response, error) {
	s.opts.Controller.Prev()
	return response{Message: s.opts.Localizer.T("success.prev")}, nil
}

func (s *Server) handlePause(_ *http.Request) (response, error) {
	paused, err := s.opts.Controller.TogglePause()
	if err != nil {
		return response{}, err
	}
	key := "success.resumed"
	if paused {
		key = "success.paused"
	}
	return response{Message: s.opts.Localizer.T(key), Paused: &paused}, nil
}

// parseSeek accepts a number of seconds or a Go duration string.
func parseSeek(raw json.RawMessage) (time.Duration, error) {
	var secs float64
	if err := json.Unmarshal(raw, &secs); err == nil {
		return time.Duration(secs * float64(time.Second)), nil
	}
	var text string
	if err := json.Unmarshal(raw, &text); err != nil {
		return 0, fmt.Errorf("seek position: %w", errBadRequest)
	}
	if secs, err := strconv.ParseFloat(text, 64); err == nil {
		return time.Duration(secs * float64(time.Second)), nil
	}
	d, err := time.ParseDuration(text)
	if err != nil {
		return 0, fmt.Errorf("seek position %q: %w", text, errBadRequest)
	}
	return d, nil
}

func (s *Server) handleSeek(r *http.Request) (response, error) {
	var body struct {
		Position json.RawMessage `json:"position"`
	}
	if err := decodeBody(r, &body); err != nil {
		return response{}, err
	}
	position, err := parseSeek(body.Position)
	if err != nil {
		return response{}, err
	}
	if err := s.opts.Controller.Seek(position); err != nil {
		return response{}, err
	}
	return response{Message: s.opts.Localizer.T("success.seeked", formatClock(position))}, nil
}

func (s *Server) handleClear(_ *http.Request) (response, error) {
	removed := s.opts.Controller.Clear()
	return response{
		Message: s.opts.Localizer.T("success.cleared", removed),
		Removed: &removed,
	}, nil
}

func (s *Server) handleDestination(r *http.Request) (response, error) {
	var body struct {
		GuildID   string `json:"guild_id"`
		ChannelID string `json:"channel_id"`
	}
	if err := decodeBody(r, &body); err != nil {
		return response{}, err
	}
	if body.GuildID == "" || body.ChannelID == "" {
		return response{}, fmt.Errorf("guild_id and channel_id required: %w", errBadRequest)
	}

	dest, err := s.opts.Destinations(body.GuildID, body.ChannelID)
	if err != nil {
		return response{}, fmt.Errorf("%w: %w", errBadRequest, err)
	}
	s.opts.Controller.SetDestination(dest)
	return response{Message: s.opts.Localizer.T("success.destination_set", dest.String())}, nil
}
