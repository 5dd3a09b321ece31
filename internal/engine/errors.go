package engine

import (
	"errors"

	"jukebox/internal/playlist"
	"jukebox/internal/transcode"
	"jukebox/pkg/resolver"
	"jukebox/pkg/text"
)

var (
	// ErrNoDestination is returned by Play when no playback channel is set.
	ErrNoDestination = errors.New("playback channel not set")
	// ErrEmptyPlaylist is returned by Play when there is nothing to play.
	ErrEmptyPlaylist = errors.New("playlist empty")
	// ErrDestinationFailed is returned by Play when the sink cannot be opened.
	ErrDestinationFailed = errors.New("destination unavailable")
	// ErrAlreadyPlaying is returned by Play while a session is running.
	ErrAlreadyPlaying = errors.New("already playing")
	// ErrNotPlaying is returned by Seek and TogglePause when nothing is playing.
	ErrNotPlaying = errors.New("nothing playing")
	// ErrSeekOutOfRange is returned by Seek for positions outside the track.
	ErrSeekOutOfRange = errors.New("seek position out of range")
	// ErrStalled is returned when a transcoder never produced output.
	ErrStalled = errors.New("transcoder produced no output in time")
	// ErrDuplicate is returned by Add for a location that is already queued.
	ErrDuplicate = errors.New("already in playlist")
	// ErrNothingPlayable ends a session in which every track failed in a row.
	ErrNothingPlayable = errors.New("no track in the playlist could be played")
)

// ErrIndexOutOfRange is returned for positions outside the playlist.
var ErrIndexOutOfRange = playlist.ErrIndexOutOfRange

// MessageKey returns the i18n key describing err for users.
func MessageKey(err error) string {
	var spawnErr *transcode.SpawnError
	switch {
	case err == nil:
		return "success.ok"
	case errors.Is(err, ErrNoDestination):
		return "error.no_destination"
	case errors.Is(err, ErrEmptyPlaylist), errors.Is(err, playlist.ErrEmpty):
		return "error.empty_playlist"
	case errors.Is(err, ErrDestinationFailed):
		return "error.destination_failed"
	case errors.Is(err, ErrAlreadyPlaying):
		return "error.already_playing"
	case errors.Is(err, ErrNotPlaying):
		return "error.not_playing"
	case errors.Is(err, ErrSeekOutOfRange):
		return "error.seek_out_of_range"
	case errors.Is(err, ErrIndexOutOfRange):
		return "error.index_out_of_range"
	case errors.Is(err, resolver.ErrResolutionFailed):
		return "error.resolution_failed"
	case errors.Is(err, text.ErrEmptyLocation):
		return "error.empty_location"
	case errors.Is(err, ErrStalled):
		return "error.stalled"
	case errors.As(err, &spawnErr):
		return "error.transcoder"
	case errors.Is(err, ErrDuplicate):
		return "error.duplicate"
	case errors.Is(err, ErrNothingPlayable):
		return "error.nothing_playable"
	default:
		return "error.generic"
	}
}
