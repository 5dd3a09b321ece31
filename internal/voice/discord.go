package voice

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

// DefaultSendTimeout bounds how long a packet may wait for the voice
// connection.
const DefaultSendTimeout = 10 * time.Second

var (
	// ErrVoiceSendTimeout is returned when the voice connection stops accepting packets.
	ErrVoiceSendTimeout = errors.New("voice connection send timeout")
	// ErrInvalidSnowflake is returned for guild or channel IDs that are not
	// Discord snowflakes.
	ErrInvalidSnowflake = errors.New("invalid Discord ID")
)

// ValidateSnowflake checks that id is a numeric Discord ID.
func ValidateSnowflake(id string) error {
	if _, err := discordgo.SnowflakeTimestamp(id); err != nil {
		return fmt.Errorf("%q: %w", id, ErrInvalidSnowflake)
	}
	return nil
}

// voiceConn is the part of a discordgo voice connection the sink uses.
type voiceConn interface {
	Speaking(bool) error
	Disconnect() error
	OpusChannel() chan<- []byte
}

type discordConn struct {
	vc *discordgo.VoiceConnection
}

func (c discordConn) Speaking(b bool) error      { return c.vc.Speaking(b) }
func (c discordConn) Disconnect() error          { return c.vc.Disconnect() }
func (c discordConn) OpusChannel() chan<- []byte { return c.vc.OpusSend }

// DiscordDestination is a guild voice channel.
type DiscordDestination struct {
	session   *discordgo.Session
	guildID   string
	channelID string
	ffmpeg    string
	channels  int
	bitrate   int
	logger    *zap.Logger
}

// DiscordOptions configures the Opus encoder used for Discord.
type DiscordOptions struct {
	FFmpegBinary string
	Channels     int
	Bitrate      int
}

// NewDiscordDestination creates a destination for one voice channel.
func NewDiscordDestination(
	session *discordgo.Session,
	guildID, channelID string,
	opts DiscordOptions,
	logger *zap.Logger,
) *DiscordDestination {
	if opts.FFmpegBinary == "" {
		opts.FFmpegBinary = "ffmpeg"
	}
	if opts.Channels <= 0 {
		opts.Channels = 2
	}
	if opts.Bitrate <= 0 {
		opts.Bitrate = DefaultOpusBitrate
	}
	return &DiscordDestination{
		session:   session,
		guildID:   guildID,
		channelID: channelID,
		ffmpeg:    opts.FFmpegBinary,
		channels:  opts.Channels,
		bitrate:   opts.Bitrate,
		logger:    logger,
	}
}

// Open joins the voice channel and starts an encoder for it.
func (d *DiscordDestination) Open(_ context.Context) (Sink, error) {
	vc, err := d.session.ChannelVoiceJoin(d.guildID, d.channelID, false, true)
	if err != nil {
		return nil, fmt.Errorf("join voice channel %s: %w", d.channelID, err)
	}

	enc, err := startOpusEncoder(d.ffmpeg, d.channels, d.bitrate, d.logger)
	if err != nil {
		_ = vc.Disconnect()
		return nil, err
	}

	d.logger.Info("Joined voice channel",
		zap.String("guild_id", d.guildID),
		zap.String("channel_id", d.channelID))

	return newDiscordSink(discordConn{vc: vc}, enc, DefaultSendTimeout, d.logger), nil
}

func (d *DiscordDestination) String() string {
	return fmt.Sprintf("discord:%s/%s", d.guildID, d.channelID)
}

// DiscordSink encodes PCM frames to Opus and forwards the packets to a
// voice connection.
type DiscordSink struct {
	conn        voiceConn
	encoder     packetEncoder
	sendTimeout time.Duration
	logger      *zap.Logger

	forwarded chan struct{}
	stop      chan struct{}

	mu     sync.Mutex
	err    error
	closed bool
	once   sync.Once
}

func newDiscordSink(conn voiceConn, enc packetEncoder, sendTimeout time.Duration, logger *zap.Logger) *DiscordSink {
	s := &DiscordSink{
		conn:        conn,
		encoder:     enc,
		sendTimeout: sendTimeout,
		logger:      logger,
		forwarded:   make(chan struct{}),
		stop:        make(chan struct{}),
	}
	if err := conn.Speaking(true); err != nil {
		logger.Debug("Failed to set speaking state", zap.Error(err))
	}
	go s.forward()
	return s
}

// forward moves encoded packets to the voice connection until the encoder
// finishes or the connection stalls. A stalled connection kills the encoder
// so writers blocked on it fail instead of waiting forever.
func (s *DiscordSink) forward() {
	defer close(s.forwarded)
	out := s.conn.OpusChannel()
	for packet := range s.encoder.Packets() {
		timer := time.NewTimer(s.sendTimeout)
		select {
		case out <- packet:
			timer.Stop()
		case <-s.stop:
			timer.Stop()
			return
		case <-timer.C:
			s.setErr(ErrVoiceSendTimeout)
			s.logger.Warn("Voice connection stopped accepting audio")
			if err := s.encoder.Close(); err != nil {
				s.logger.Debug("Failed to stop opus encoder", zap.Error(err))
			}
			return
		}
	}
}

func (s *DiscordSink) setErr(err error) {
	s.mu.Lock()
	if s.err == nil {
		s.err = err
	}
	s.mu.Unlock()
}

func (s *DiscordSink) failure() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSinkClosed
	}
	if s.err != nil {
		return s.err
	}
	return s.encoder.Err()
}

// SendFrame writes one PCM frame to the encoder. Backpressure from the
// voice connection propagates through the encoder pipes; ctx bounds how
// long it may block.
func (s *DiscordSink) SendFrame(ctx context.Context, frame []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.failure(); err != nil {
		return err
	}
	if err := s.encoder.Write(ctx, frame); err != nil {
		if failure := s.failure(); failure != nil {
			return fmt.Errorf("write to opus encoder: %w", failure)
		}
		return fmt.Errorf("write to opus encoder: %w", err)
	}
	return nil
}

// Drain flushes pending PCM through the encoder and waits for the last
// packet to reach the voice connection.
func (s *DiscordSink) Drain(ctx context.Context) error {
	if err := s.encoder.CloseInput(); err != nil {
		s.logger.Debug("Failed to close encoder input", zap.Error(err))
	}
	select {
	case <-s.forwarded:
	case <-ctx.Done():
		return ctx.Err()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Close stops the encoder and leaves the voice channel.
func (s *DiscordSink) Close() error {
	var err error
	s.once.Do(func() {
		s.mu.Lock()
		s.closed = true
		s.mu.Unlock()

		close(s.stop)
		_ = s.encoder.Close()
		<-s.forwarded
		if spErr := s.conn.Speaking(false); spErr != nil {
			s.logger.Debug("Failed to clear speaking state", zap.Error(spErr))
		}
		err = s.conn.Disconnect()
	})
	return err
}
