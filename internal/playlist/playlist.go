package playlist

import (
	"errors"
	"fmt"
	"sync"
)

var (
	// ErrEmpty is returned when there is nothing to play.
	ErrEmpty = errors.New("playlist is empty")
	// ErrIndexOutOfRange is returned for indices outside the track list.
	ErrIndexOutOfRange = errors.New("track index out of range")
)

// Playlist is an ordered track list with a cursor. All methods are safe for
// concurrent use.
type Playlist struct {
	mu     sync.RWMutex
	tracks []*Track
	cursor int
}

// New creates an empty playlist.
func New() *Playlist {
	return &Playlist{}
}

// normalize maps an arbitrary index onto the list: negative indices wrap to
// the last track, indices past the end wrap to the first.
func normalize(index, length int) int {
	if length == 0 {
		return 0
	}
	if index < 0 {
		return length - 1
	}
	if index >= length {
		return 0
	}
	return index
}

// Append adds a track to the end and returns its index.
func (p *Playlist) Append(t *Track) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.tracks = append(p.tracks, t)
	return len(p.tracks) - 1
}

// Insert places a track at index, shifting later tracks back. index may equal
// the current length.
func (p *Playlist) Insert(index int, t *Track) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if index < 0 || index > len(p.tracks) {
		return fmt.Errorf("insert at %d: %w", index, ErrIndexOutOfRange)
	}
	p.tracks = append(p.tracks, nil)
	copy(p.tracks[index+1:], p.tracks[index:])
	p.tracks[index] = t
	return nil
}

// RemoveAt deletes the track at index and fixes the cursor in the same
// step: it stays on the same track when an earlier one is removed, and moves
// to the track that took the removed one's place otherwise, wrapping to the
// first track past the end.
func (p *Playlist) RemoveAt(index int) (*Track, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if index < 0 || index >= len(p.tracks) {
		return nil, fmt.Errorf("remove %d: %w", index, ErrIndexOutOfRange)
	}
	t := p.tracks[index]
	p.tracks = append(p.tracks[:index], p.tracks[index+1:]...)
	if index < p.cursor {
		p.cursor--
	}
	p.cursor = normalize(p.cursor, len(p.tracks))
	t.detach()
	return t, nil
}

// Clear removes every track and resets the cursor.
func (p *Playlist) Clear() []*Track {
	p.mu.Lock()
	defer p.mu.Unlock()
	removed := p.tracks
	for _, t := range removed {
		t.detach()
	}
	p.tracks = nil
	p.cursor = 0
	return removed
}

// Len returns the number of tracks.
func (p *Playlist) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.tracks)
}

// Cursor returns the raw cursor value.
func (p *Playlist) Cursor() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.cursor
}

// SetCursor stores a normalized cursor and returns it.
func (p *Playlist) SetCursor(index int) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cursor = normalize(index, len(p.tracks))
	return p.cursor
}

// Step moves the cursor by delta with wrap-around and returns the new value.
func (p *Playlist) Step(delta int) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cursor = normalize(p.cursor+delta, len(p.tracks))
	return p.cursor
}

// Current returns the track under the cursor. If a concurrent removal left
// the cursor past the end, the cursor is reset to 0 and ErrIndexOutOfRange
// is returned so the caller can log it and ask again.
func (p *Playlist) Current() (*Track, int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.tracks) == 0 {
		return nil, 0, ErrEmpty
	}
	if p.cursor < 0 || p.cursor >= len(p.tracks) {
		bad := p.cursor
		p.cursor = 0
		return nil, 0, fmt.Errorf("cursor %d with %d tracks: %w", bad, len(p.tracks), ErrIndexOutOfRange)
	}
	return p.tracks[p.cursor], p.cursor, nil
}

// At returns the track at index.
func (p *Playlist) At(index int) (*Track, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if index < 0 || index >= len(p.tracks) {
		return nil, fmt.Errorf("track %d: %w", index, ErrIndexOutOfRange)
	}
	return p.tracks[index], nil
}

// Contains reports whether t is still queued.
func (p *Playlist) Contains(t *Track) bool {
	return p.IndexOf(t) >= 0
}

// IndexOf returns the position of t, or -1 once it has been removed.
func (p *Playlist) IndexOf(t *Track) int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	for i, item := range p.tracks {
		if item == t {
			return i
		}
	}
	return -1
}

// Tracks returns a snapshot of the queued tracks.
func (p *Playlist) Tracks() []*Track {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]*Track, len(p.tracks))
	copy(out, p.tracks)
	return out
}

// Records snapshots every track for persistence.
func (p *Playlist) Records() []Record {
	tracks := p.Tracks()
	out := make([]Record, 0, len(tracks))
	for _, t := range tracks {
		out = append(out, t.Record())
	}
	return out
}
