// Package playlist holds queued tracks and the wrap-around playback cursor.
package playlist

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"jukebox/pkg/resolver"
)

// Track is one queued item. Location never changes after construction; the
// name, the length and the cached resolver are filled in lazily.
type Track struct {
	ID       string
	location string

	mu           sync.RWMutex
	name         string
	length       time.Duration
	hasLength    bool
	hint         resolver.Resolver
	probeStarted bool
	detached     bool
}

// NewTrack creates a track for location with the given display name and
// resolver hint. An empty name falls back to the location.
func NewTrack(location, name string, hint resolver.Resolver) *Track {
	if name == "" {
		name = location
	}
	return &Track{
		ID:       uuid.NewString(),
		location: location,
		name:     name,
		hint:     hint,
	}
}

// Location returns the original reference the track was added with.
func (t *Track) Location() string {
	return t.location
}

// Name returns the display name.
func (t *Track) Name() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.name
}

// Length returns the track length and whether it is known.
func (t *Track) Length() (time.Duration, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.length, t.hasLength
}

// SetLength records the length once. Later calls, and calls after the track
// left its playlist, are ignored and report false.
func (t *Track) SetLength(d time.Duration) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.hasLength || t.detached {
		return false
	}
	t.length = d
	t.hasLength = true
	return true
}

// Hint returns the resolver that last produced a stream for this track.
func (t *Track) Hint() resolver.Resolver {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.hint
}

// SetHint caches the resolver used for the next stream lookup.
func (t *Track) SetHint(r resolver.Resolver) {
	t.mu.Lock()
	t.hint = r
	t.mu.Unlock()
}

// MarkProbeStarted reports true the first time it is called for a track that
// still has no length.
func (t *Track) MarkProbeStarted() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.probeStarted || t.hasLength {
		return false
	}
	t.probeStarted = true
	return true
}

func (t *Track) detach() {
	t.mu.Lock()
	t.detached = true
	t.mu.Unlock()
}

// Record is the persisted form of a track. Resolver hints are never stored.
type Record struct {
	ID       string        `json:"id"`
	Location string        `json:"location"`
	Name     string        `json:"name"`
	Length   time.Duration `json:"length,omitempty"`
	Known    bool          `json:"length_known"`
}

// Record snapshots the track for persistence or display.
func (t *Track) Record() Record {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return Record{
		ID:       t.ID,
		Location: t.location,
		Name:     t.name,
		Length:   t.length,
		Known:    t.hasLength,
	}
}

// FromRecord rehydrates a track. It carries no resolver hint, so the first
// playback resolves the location again.
func FromRecord(r Record) *Track {
	t := NewTrack(r.Location, r.Name, nil)
	if r.ID != "" {
		t.ID = r.ID
	}
	if r.Known {
		t.length = r.Length
		t.hasLength = true
	}
	return t
}
