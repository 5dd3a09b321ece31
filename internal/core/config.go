package core

import (
	"time"

	"jukebox/internal/i18n"
)

// Default configuration values.
const (
	DefaultServerHost             = "0.0.0.0"
	DefaultServerPort             = 8080
	DefaultServerReadTimeout      = 10 * time.Second
	DefaultServerWriteTimeout     = 10 * time.Second
	DefaultStorePath              = "./jukebox.db"
	DefaultPlaylistName           = "default"
	DefaultFFmpegPath             = "ffmpeg"
	DefaultFFprobePath            = "ffprobe"
	DefaultStreamlinkPath         = "streamlink"
	DefaultStreamQuality          = "best"
	DefaultChannels               = 2
	DefaultOpusBitrate            = 96000
	DefaultReadyTimeout           = 30 * time.Second
	DefaultPauseInterval          = 100 * time.Millisecond
	DefaultPollInterval           = 10 * time.Millisecond
	DefaultMetadataCacheSize      = 512
	DefaultSearchLimit            = 5
	DefaultRequestLimitPerMinute  = 60
	DefaultDedupCapacity          = 10000
	DefaultDedupFalsePositiveRate = 0.001
	DefaultOutput                 = "-"
	DefaultLogLevel               = "info"
	DefaultShutdownDrainTimeout   = 5 * time.Second
)

// Config holds all runtime settings. It is populated from flags,
// environment and .env by the command, then handed to the components.
type Config struct {
	Engine     EngineConfig
	Transcoder TranscoderConfig
	Resolver   ResolverConfig
	Discord    DiscordConfig
	Spotify    SpotifyConfig
	Server     ServerConfig
	Store      StoreConfig
	Log        LogConfig
	App        AppConfig
}

type EngineConfig struct {
	// ReadyTimeout bounds the wait for a transcoder's first output. Zero waits forever.
	ReadyTimeout  time.Duration
	PauseInterval time.Duration
	PollInterval  time.Duration
	DrainTimeout  time.Duration
}

type TranscoderConfig struct {
	FFmpegPath  string
	FFprobePath string
	Channels    int
}

type ResolverConfig struct {
	StreamlinkPath    string
	StreamQuality     string
	MetadataCacheSize int
	SearchLimit       int
}

type DiscordConfig struct {
	Token     string
	GuildID   string
	ChannelID string
	// TextChannelID receives now-playing announcements when set.
	TextChannelID string
	Bitrate       int
}

// Enabled reports whether a Discord bot token is configured.
func (c DiscordConfig) Enabled() bool {
	return c.Token != ""
}

type SpotifyConfig struct {
	ClientID     string
	ClientSecret string
}

// Enabled reports whether Spotify catalog credentials are configured.
func (c SpotifyConfig) Enabled() bool {
	return c.ClientID != "" && c.ClientSecret != ""
}

type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

type StoreConfig struct {
	// Path of the sqlite database. Empty disables persistence.
	Path     string
	Playlist string
}

type LogConfig struct {
	Level string
}

type AppConfig struct {
	Language              string
	RequestLimitPerMinute int
	// Output is the PCM destination when Discord is disabled; "-" is stdout.
	Output string
	// OutputRealtime paces file output to playback speed.
	OutputRealtime bool
	// RejectDuplicates refuses locations that are already queued.
	RejectDuplicates bool
	DedupCapacity    uint
}

func DefaultConfig() *Config {
	return &Config{
		Engine: EngineConfig{
			ReadyTimeout:  DefaultReadyTimeout,
			PauseInterval: DefaultPauseInterval,
			PollInterval:  DefaultPollInterval,
			DrainTimeout:  DefaultShutdownDrainTimeout,
		},
		Transcoder: TranscoderConfig{
			FFmpegPath:  DefaultFFmpegPath,
			FFprobePath: DefaultFFprobePath,
			Channels:    DefaultChannels,
		},
		Resolver: ResolverConfig{
			StreamlinkPath:    DefaultStreamlinkPath,
			StreamQuality:     DefaultStreamQuality,
			MetadataCacheSize: DefaultMetadataCacheSize,
			SearchLimit:       DefaultSearchLimit,
		},
		Discord: DiscordConfig{
			Bitrate: DefaultOpusBitrate,
		},
		Server: ServerConfig{
			Host:         DefaultServerHost,
			Port:         DefaultServerPort,
			ReadTimeout:  DefaultServerReadTimeout,
			WriteTimeout: DefaultServerWriteTimeout,
		},
		Store: StoreConfig{
			Path:     DefaultStorePath,
			Playlist: DefaultPlaylistName,
		},
		Log: LogConfig{
			Level: DefaultLogLevel,
		},
		App: AppConfig{
			Language:              i18n.DefaultLanguage,
			RequestLimitPerMinute: DefaultRequestLimitPerMinute,
			Output:                DefaultOutput,
			OutputRealtime:        true,
			DedupCapacity:         DefaultDedupCapacity,
		},
	}
}
