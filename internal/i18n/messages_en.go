package i18n

// englishMessages contains all English translations.
var englishMessages = map[string]string{
	// Error messages
	"error.generic":            "Something went wrong. Please try again.",
	"error.bad_request":        "I couldn't understand that request.",
	"error.rate_limited":       "Slow down a little, too many requests.",
	"error.no_destination":     "Playback channel not set.",
	"error.empty_playlist":     "The playlist is empty, add something first.",
	"error.already_playing":    "Already playing.",
	"error.not_playing":        "Nothing is playing right now.",
	"error.seek_out_of_range":  "That position is outside the track.",
	"error.index_out_of_range": "Track index out of range.",
	"error.resolution_failed":  "Nothing resolvable found for this input.",
	"error.empty_location":     "Tell me what to play.",
	"error.stalled":            "The stream never started.",
	"error.transcoder":         "Couldn't start the transcoder.",
	"error.nothing_playable":   "None of the tracks in the playlist could be played.",
	"error.destination_failed": "Couldn't connect to the playback channel.",
	"error.duplicate":          "Already in the playlist.",

	// Control confirmations
	"success.ok":              "OK.",
	"success.track_added":     "Added #%d: %s",
	"success.track_removed":   "Removed #%d: %s",
	"success.position_set":    "Up next: #%d %s",
	"success.playing":         "Playback started.",
	"success.stopped":         "Playback stopped.",
	"success.next":            "Skipping to the next track.",
	"success.prev":            "Going back to the previous track.",
	"success.paused":          "Paused.",
	"success.resumed":         "Resumed.",
	"success.seeked":          "Jumping to %s.",
	"success.cleared":         "Cleared %d tracks from the playlist.",
	"success.destination_set": "Playback channel set to %s.",

	// Status
	"status.nothing_playing": "Nothing playing.",
	"status.playing":         "Playing #%d: %s [%s / %s]",
	"status.paused":          "Paused #%d: %s [%s / %s]",
	"status.unknown_length":  "?",

	// Bot notifications
	"bot.now_playing":      "🎵 Now playing: %s",
	"bot.track_failed":     "⚠️ Couldn't play %s, skipping.",
	"bot.playback_stopped": "⏹ Playback stopped.",
}
