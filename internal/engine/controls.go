package engine

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"jukebox/internal/playlist"
	"jukebox/internal/voice"
	"jukebox/pkg/text"
)

// Add resolves location and appends the resulting track. It returns the
// track and its 0-based position. The track keeps location as given, minus
// surrounding whitespace.
func (p *Player) Add(ctx context.Context, location string) (*playlist.Track, int, error) {
	location = strings.TrimSpace(location)
	if location == "" {
		return nil, 0, text.ErrEmptyLocation
	}

	if p.opts.Dedup != nil && p.opts.Dedup.Has(location) {
		return nil, 0, fmt.Errorf("%q: %w", location, ErrDuplicate)
	}

	res, err := p.resolver.Resolve(ctx, location)
	if err != nil {
		p.opts.Recorder.ResolutionFailed()
		return nil, 0, err
	}

	track := playlist.NewTrack(location, res.Name, res.Resolver)
	index := p.playlist.Append(track)
	if p.opts.Dedup != nil {
		p.opts.Dedup.Add(track.Location())
	}
	p.opts.Recorder.TrackAdded(res.Resolver.Kind())
	p.changed()

	p.logger.Info("Track added",
		zap.Int("position", index+1),
		zap.String("name", track.Name()),
		zap.String("resolver", string(res.Resolver.Kind())))
	return track, index, nil
}

// Load replaces the playlist with persisted records. Loaded tracks carry no
// resolver and are resolved again on first play.
func (p *Player) Load(records []playlist.Record) {
	p.playlist.Clear()
	for _, r := range records {
		p.playlist.Append(playlist.FromRecord(r))
	}
	if p.opts.Dedup != nil {
		p.opts.Dedup.Reset(records)
	}
	p.opts.Recorder.PlaylistSize(p.playlist.Len())
}

// RemoveAt removes the track at the 0-based index. Removing the playing
// track ends it and playback continues with the track that moved into its
// place.
func (p *Player) RemoveAt(index int) (*playlist.Track, error) {
	p.mu.Lock()
	current := p.current
	running := p.running
	p.mu.Unlock()

	track, err := p.playlist.RemoveAt(index)
	if err != nil {
		return nil, err
	}
	if p.opts.Dedup != nil {
		p.opts.Dedup.Remove(track.Location())
	}

	if running && track == current {
		p.mu.Lock()
		p.flags.stopTrack = true
		p.flags.jumpRequested = true
		p.mu.Unlock()
		p.poke()
	}

	p.changed()
	return track, nil
}

// SetPosition moves the cursor to the 0-based index and abandons the
// playing track.
func (p *Player) SetPosition(index int) (*playlist.Track, error) {
	track, err := p.playlist.At(index)
	if err != nil {
		return nil, err
	}
	p.playlist.SetCursor(index)

	p.mu.Lock()
	if p.running {
		p.flags.stopTrack = true
		p.flags.jumpRequested = true
		p.flags.prevRequested = false
	}
	p.mu.Unlock()
	p.poke()
	return track, nil
}

// Stop ends the playing track and the session.
func (p *Player) Stop() {
	p.mu.Lock()
	if p.running {
		p.flags.stopTrack = true
		p.flags.stopPlaylist = true
	}
	p.mu.Unlock()
	p.poke()
}

// Next ends the playing track; the cursor advances when it exits. While
// idle the cursor is moved directly.
func (p *Player) Next() {
	p.mu.Lock()
	running := p.running
	if running {
		p.flags.stopTrack = true
	}
	p.mu.Unlock()
	if !running {
		p.playlist.Step(1)
	}
	p.poke()
}

// Prev ends the playing track and steps the cursor back.
func (p *Player) Prev() {
	p.mu.Lock()
	running := p.running
	if running {
		p.flags.prevRequested = true
		p.flags.stopTrack = true
	}
	p.mu.Unlock()
	if !running {
		p.playlist.Step(-1)
	}
	p.poke()
}

// TogglePause flips the pause state of the running session and reports
// whether playback is now paused. It fails with ErrNotPlaying while idle.
func (p *Player) TogglePause() (bool, error) {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return false, ErrNotPlaying
	}
	p.flags.pauseTrack = !p.flags.pauseTrack
	paused := p.flags.pauseTrack
	p.mu.Unlock()
	p.poke()
	return paused, nil
}

// Seek restarts the playing track at position.
func (p *Player) Seek(position time.Duration) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.running || p.current == nil {
		return ErrNotPlaying
	}
	if position < 0 {
		return fmt.Errorf("%v: %w", position, ErrSeekOutOfRange)
	}
	if length, known := p.current.Length(); known && position >= length {
		return fmt.Errorf("%v of %v: %w", position, length, ErrSeekOutOfRange)
	}

	p.flags.skipRequested = true
	p.flags.skipTarget = position
	p.flags.stopTrack = true
	p.poke()
	return nil
}

// Clear stops playback and empties the playlist.
func (p *Player) Clear() int {
	p.mu.Lock()
	if p.running {
		p.flags.stopTrack = true
		p.flags.stopPlaylist = true
	}
	p.mu.Unlock()
	p.poke()

	removed := len(p.playlist.Clear())
	if p.opts.Dedup != nil {
		p.opts.Dedup.Reset(nil)
	}
	p.changed()
	return removed
}

// Status returns a snapshot of the session.
func (p *Player) Status() Status {
	p.mu.Lock()
	defer p.mu.Unlock()

	st := Status{
		State:  p.state,
		Tracks: p.playlist.Len(),
	}
	if p.destination != nil {
		st.Destination = p.destination.String()
	}
	if !p.running || p.current == nil {
		return st
	}

	st.Playing = true
	st.Index = p.index
	if i := p.playlist.IndexOf(p.current); i >= 0 {
		st.Index = i
	}
	st.Name = p.current.Name()
	st.Location = p.current.Location()
	st.Length, st.LengthKnown = p.current.Length()
	st.Elapsed = p.offset + time.Duration(p.frames.Load())*voice.FrameDuration
	return st
}

// Tracks returns the playlist in play order.
func (p *Player) Tracks() []*playlist.Track {
	return p.playlist.Tracks()
}

// Destination returns the configured destination, or nil.
func (p *Player) Destination() voice.Destination {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.destination
}
