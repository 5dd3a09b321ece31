// Package engine drives playlist playback: it resolves the current track,
// runs one transcoder for it and pumps PCM frames into a voice sink while
// honoring transport controls.
package engine

import (
	"context"
	"time"

	"go.uber.org/zap"

	"jukebox/internal/playlist"
	"jukebox/internal/transcode"
	"jukebox/pkg/resolver"
)

// State is the playback session state.
type State int

const (
	StateIdle State = iota
	StateStarting
	StateStreaming
	StatePaused
	StateStopping
)

func (s State) String() string {
	switch s {
	case StateStarting:
		return "starting"
	case StateStreaming:
		return "streaming"
	case StatePaused:
		return "paused"
	case StateStopping:
		return "stopping"
	default:
		return "idle"
	}
}

// Resolver is the part of resolver.Chain the engine needs.
type Resolver interface {
	Resolve(ctx context.Context, location string) (*resolver.Resolution, error)
	StreamURL(ctx context.Context, location string, hint resolver.Resolver) (string, resolver.Resolver, error)
}

// Stream is a running transcoder.
type Stream interface {
	Ready() bool
	Err() error
	ReadFrame(buf []byte) error
	Close() error
}

// StartFunc spawns a transcoder for location, optionally seeking first.
type StartFunc func(location string, seek *time.Duration) Stream

// SpawnerStart adapts a transcode.Spawner to a StartFunc.
func SpawnerStart(s *transcode.Spawner) StartFunc {
	return func(location string, seek *time.Duration) Stream {
		return s.Start(location, seek)
	}
}

// Prober looks up the duration of a media location.
type Prober interface {
	Probe(ctx context.Context, location string) (time.Duration, error)
}

// EventKind identifies a playback notification.
type EventKind int

const (
	EventNowPlaying EventKind = iota
	EventTrackFailed
	EventPlaybackStopped
)

// Event is sent to the Notifier from the streaming goroutine.
type Event struct {
	Kind  EventKind
	Track *playlist.Track
	// Index is the 0-based playlist position of Track.
	Index int
	Err   error
}

// Notifier receives playback events. Implementations must not block.
type Notifier interface {
	Notify(Event)
}

// NotifierFunc adapts a function to a Notifier.
type NotifierFunc func(Event)

func (f NotifierFunc) Notify(e Event) { f(e) }

type logNotifier struct {
	logger *zap.Logger
}

func (n logNotifier) Notify(e Event) {
	switch e.Kind {
	case EventNowPlaying:
		n.logger.Info("Now playing",
			zap.Int("position", e.Index+1),
			zap.String("name", e.Track.Name()),
			zap.String("location", e.Track.Location()))
	case EventTrackFailed:
		n.logger.Warn("Track failed",
			zap.String("name", e.Track.Name()),
			zap.Error(e.Err))
	case EventPlaybackStopped:
		n.logger.Info("Playback stopped", zap.Error(e.Err))
	}
}

// Deduper tracks queued locations so duplicates can be refused.
type Deduper interface {
	Has(location string) bool
	Add(location string)
	Remove(location string)
	Reset(records []playlist.Record)
}

// Track outcomes reported to the Recorder.
const (
	OutcomeFinished = "finished"
	OutcomeSkipped  = "skipped"
	OutcomeFailed   = "failed"
	OutcomeAborted  = "aborted"
)

// Recorder receives playback metrics.
type Recorder interface {
	TrackAdded(kind resolver.Kind)
	ResolutionFailed()
	FrameSent()
	TrackOutcome(outcome string)
	PlaylistSize(n int)
}

type nopRecorder struct{}

func (nopRecorder) TrackAdded(resolver.Kind) {}
func (nopRecorder) ResolutionFailed()        {}
func (nopRecorder) FrameSent()               {}
func (nopRecorder) TrackOutcome(string)      {}
func (nopRecorder) PlaylistSize(int)         {}

// Status is a snapshot of the playback session. Index is 0-based and only
// meaningful while Playing.
type Status struct {
	State       State
	Playing     bool
	Index       int
	Name        string
	Location    string
	Length      time.Duration
	LengthKnown bool
	Elapsed     time.Duration
	Tracks      int
	Destination string
}
