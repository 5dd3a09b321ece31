package main

import (
	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"jukebox/internal/engine"
	"jukebox/internal/i18n"
)

// announcer posts playback events to a Discord text channel and logs them.
type announcer struct {
	session   *discordgo.Session
	channelID string
	localizer *i18n.Localizer
	logger    *zap.Logger
}

func newAnnouncer(session *discordgo.Session, channelID string, localizer *i18n.Localizer, logger *zap.Logger) engine.Notifier {
	return &announcer{
		session:   session,
		channelID: channelID,
		localizer: localizer,
		logger:    logger,
	}
}

func (a *announcer) message(e engine.Event) string {
	switch e.Kind {
	case engine.EventNowPlaying:
		return a.localizer.T("bot.now_playing", e.Track.Name())
	case engine.EventTrackFailed:
		return a.localizer.T("bot.track_failed", e.Track.Name())
	case engine.EventPlaybackStopped:
		return a.localizer.T("bot.playback_stopped")
	default:
		return ""
	}
}

func (a *announcer) Notify(e engine.Event) {
	text := a.message(e)
	if text == "" {
		return
	}

	fields := []zap.Field{zap.String("message", text)}
	if e.Err != nil {
		fields = append(fields, zap.Error(e.Err))
	}
	if e.Kind == engine.EventTrackFailed {
		a.logger.Warn("Playback event", fields...)
	} else {
		a.logger.Info("Playback event", fields...)
	}

	if a.session == nil || a.channelID == "" {
		return
	}
	go func() {
		if _, err := a.session.ChannelMessageSend(a.channelID, text); err != nil {
			a.logger.Warn("Failed to send announcement",
				zap.String("channel_id", a.channelID),
				zap.Error(err))
		}
	}()
}
