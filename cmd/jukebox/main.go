// Package main provides the jukebox CLI application entry point.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/subosito/gotenv"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"

	"jukebox/internal/core"
	"jukebox/internal/engine"
	"jukebox/internal/flood"
	httpserver "jukebox/internal/http"
	"jukebox/internal/i18n"
	"jukebox/internal/playlist"
	"jukebox/internal/store"
	"jukebox/internal/transcode"
	"jukebox/internal/voice"
	"jukebox/pkg/resolver"
)

const envPrefix = "JUKEBOX"

var (
	cfgFile string
	config  *core.Config
	logger  *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "jukebox",
	Short: "jukebox - playlist driven audio streaming",
	Long: `jukebox keeps a playlist of local files, hosted tracks, searches and live streams,
transcodes the current track with ffmpeg and streams it to a Discord voice channel or a PCM output.
Playback is controlled through an HTTP API.`,
	RunE: runJukebox,
}

var resolveCmd = &cobra.Command{
	Use:   "resolve <location>...",
	Short: "Show which resolver handles a location and what it resolves to",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runResolve,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default is .env)")
	flags.String("log-level", core.DefaultLogLevel, "log level (debug, info, warn, error)")
	supportedLangs := strings.Join(i18n.GetSupportedLanguages(), ", ")
	flags.String("language", i18n.DefaultLanguage, fmt.Sprintf("Message language (%s)", supportedLangs))

	flags.String("server-host", core.DefaultServerHost, "HTTP server host")
	flags.Int("server-port", core.DefaultServerPort, "HTTP server port")
	flags.Int("request-limit-per-minute", core.DefaultRequestLimitPerMinute,
		"Maximum control requests per client per minute (0 disables limiting)")

	flags.String("store-path", core.DefaultStorePath, "SQLite database for the playlist (empty disables persistence)")
	flags.String("playlist-name", core.DefaultPlaylistName, "Name the playlist is stored under")
	flags.Bool("reject-duplicates", false, "Refuse locations that are already in the playlist")
	flags.Uint("dedup-capacity", core.DefaultDedupCapacity, "Maximum number of locations tracked for duplicate detection")

	flags.String("ffmpeg-path", core.DefaultFFmpegPath, "ffmpeg binary")
	flags.String("ffprobe-path", core.DefaultFFprobePath, "ffprobe binary")
	flags.String("streamlink-path", core.DefaultStreamlinkPath, "streamlink binary for live streams")
	flags.String("stream-quality", core.DefaultStreamQuality, "streamlink quality selector")
	flags.Int("channels", core.DefaultChannels, "PCM output channels (1 or 2)")
	flags.Duration("ready-timeout", core.DefaultReadyTimeout, "How long to wait for a transcoder's first output (0 waits forever)")
	flags.Duration("pause-interval", core.DefaultPauseInterval, "Sleep between checks while paused")
	flags.Duration("poll-interval", core.DefaultPollInterval, "Sleep between readiness checks")
	flags.Duration("drain-timeout", core.DefaultShutdownDrainTimeout, "How long to let buffered audio play out on stop")
	flags.Int("metadata-cache-size", core.DefaultMetadataCacheSize, "Entries kept in each resolver metadata cache")
	flags.Int("search-limit", core.DefaultSearchLimit, "Search results considered per lookup")

	flags.String("discord-token", "", "Discord bot token (enables the Discord destination)")
	flags.String("discord-guild-id", "", "Discord guild to join")
	flags.String("discord-channel-id", "", "Discord voice channel to join")
	flags.String("discord-text-channel-id", "", "Discord text channel for now playing announcements")
	flags.Int("discord-bitrate", core.DefaultOpusBitrate, "Opus bitrate for Discord")

	flags.String("output", core.DefaultOutput, "PCM output file when Discord is disabled (- for stdout)")
	flags.Bool("output-realtime", true, "Pace PCM output to playback speed")

	flags.String("spotify-client-id", "", "Spotify client ID (enables Spotify links)")
	flags.String("spotify-client-secret", "", "Spotify client secret")

	flags.Bool("generate-env-example", false, "Generate .env.example file from current configuration and exit")

	resolveCmd.Flags().Bool("stream", false, "Also look up the stream URL")
	rootCmd.AddCommand(resolveCmd)

	if err := viper.BindPFlags(flags); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to bind flags: %v\n", err)
		os.Exit(1)
	}
}

func initConfig() {
	envFile := ".env"
	if cfgFile != "" {
		envFile = cfgFile
	}

	if err := gotenv.Load(envFile); err != nil {
		if !os.IsNotExist(err) {
			fmt.Fprintf(os.Stderr, "Error loading .env file: %v\n", err)
		}
	}

	viper.SetEnvPrefix(envPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	config = buildConfig()
	logger = buildLogger(config.Log.Level)
}

func buildConfig() *core.Config {
	cfg := core.DefaultConfig()

	configureEngine(cfg)
	configureTranscoder(cfg)
	configureResolver(cfg)
	configureDiscord(cfg)
	configureSpotify(cfg)
	configureServer(cfg)
	configureStore(cfg)
	configureApp(cfg)

	return cfg
}

func configureEngine(cfg *core.Config) {
	cfg.Engine.ReadyTimeout = viper.GetDuration("ready-timeout")
	if cfg.Engine.ReadyTimeout < 0 {
		cfg.Engine.ReadyTimeout = 0
	}
	if d := viper.GetDuration("pause-interval"); d > 0 {
		cfg.Engine.PauseInterval = d
	}
	if d := viper.GetDuration("poll-interval"); d > 0 {
		cfg.Engine.PollInterval = d
	}
	if d := viper.GetDuration("drain-timeout"); d > 0 {
		cfg.Engine.DrainTimeout = d
	}
}

func configureTranscoder(cfg *core.Config) {
	cfg.Transcoder.FFmpegPath = viper.GetString("ffmpeg-path")
	cfg.Transcoder.FFprobePath = viper.GetString("ffprobe-path")
	cfg.Transcoder.Channels = viper.GetInt("channels")
}

func configureResolver(cfg *core.Config) {
	cfg.Resolver.StreamlinkPath = viper.GetString("streamlink-path")
	cfg.Resolver.StreamQuality = viper.GetString("stream-quality")
	if n := viper.GetInt("metadata-cache-size"); n > 0 {
		cfg.Resolver.MetadataCacheSize = n
	}
	if n := viper.GetInt("search-limit"); n > 0 {
		cfg.Resolver.SearchLimit = n
	}
}

func configureDiscord(cfg *core.Config) {
	cfg.Discord.Token = viper.GetString("discord-token")
	cfg.Discord.GuildID = viper.GetString("discord-guild-id")
	cfg.Discord.ChannelID = viper.GetString("discord-channel-id")
	cfg.Discord.TextChannelID = viper.GetString("discord-text-channel-id")
	if n := viper.GetInt("discord-bitrate"); n > 0 {
		cfg.Discord.Bitrate = n
	}
}

func configureSpotify(cfg *core.Config) {
	cfg.Spotify.ClientID = viper.GetString("spotify-client-id")
	cfg.Spotify.ClientSecret = viper.GetString("spotify-client-secret")
}

func configureServer(cfg *core.Config) {
	cfg.Server.Host = viper.GetString("server-host")
	if cfg.Server.Host == "" {
		cfg.Server.Host = core.DefaultServerHost
	}
	cfg.Server.Port = viper.GetInt("server-port")
	cfg.Log.Level = viper.GetString("log-level")
}

func configureStore(cfg *core.Config) {
	cfg.Store.Path = viper.GetString("store-path")
	cfg.Store.Playlist = viper.GetString("playlist-name")
	if cfg.Store.Playlist == "" {
		cfg.Store.Playlist = core.DefaultPlaylistName
	}
}

func configureApp(cfg *core.Config) {
	cfg.App.Language = viper.GetString("language")
	if cfg.App.Language == "" {
		cfg.App.Language = i18n.DefaultLanguage
	}

	lang, ok := i18n.Match(cfg.App.Language)
	if !ok {
		fmt.Fprintf(os.Stderr, "Warning: Unsupported language '%s', falling back to '%s'. Supported languages: %s\n",
			cfg.App.Language, i18n.DefaultLanguage, strings.Join(i18n.GetSupportedLanguages(), ", "))
		lang = i18n.DefaultLanguage
	}
	cfg.App.Language = lang

	cfg.App.RequestLimitPerMinute = viper.GetInt("request-limit-per-minute")
	cfg.App.Output = viper.GetString("output")
	if cfg.App.Output == "" {
		cfg.App.Output = core.DefaultOutput
	}
	cfg.App.OutputRealtime = viper.GetBool("output-realtime")
	cfg.App.RejectDuplicates = viper.GetBool("reject-duplicates")
	if n := viper.GetUint("dedup-capacity"); n > 0 {
		cfg.App.DedupCapacity = n
	}
}

func buildLogger(level string) *zap.Logger {
	var zapLevel zapcore.Level
	switch strings.ToLower(level) {
	case "debug":
		zapLevel = zapcore.DebugLevel
	case "info":
		zapLevel = zapcore.InfoLevel
	case "warn":
		zapLevel = zapcore.WarnLevel
	case "error":
		zapLevel = zapcore.ErrorLevel
	default:
		zapLevel = zapcore.InfoLevel
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zapLevel)

	builtLogger, err := cfg.Build()
	if err != nil {
		panic(fmt.Sprintf("Failed to build logger: %v", err))
	}

	return builtLogger
}

func runJukebox(cmd *cobra.Command, _ []string) error {
	if viper.GetBool("generate-env-example") {
		return generateEnvExample(cmd)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger.Info("Starting jukebox",
		zap.String("language", config.App.Language),
		zap.Bool("discord_enabled", config.Discord.Enabled()),
		zap.Bool("spotify_enabled", config.Spotify.Enabled()),
		zap.Bool("persistence", config.Store.Path != ""))

	if err := validateConfig(); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}

	svcs, err := initializeServices(ctx)
	if err != nil {
		return err
	}
	defer svcs.close()

	return runServices(ctx, svcs)
}

func runResolve(cmd *cobra.Command, args []string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	chain := buildResolverChain(ctx)
	withStream, err := cmd.Flags().GetBool("stream")
	if err != nil {
		return err
	}

	var failed int
	for _, location := range args {
		res, err := chain.Resolve(ctx, location)
		if err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "%s: %v\n", location, err)
			failed++
			continue
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s\n  resolver: %s\n  name:     %s\n", location, res.Resolver.Kind(), res.Name)

		if withStream {
			streamURL, _, err := chain.StreamURL(ctx, location, res.Resolver)
			if err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "  stream:   %v\n", err)
				failed++
				continue
			}
			fmt.Fprintf(cmd.OutOrStdout(), "  stream:   %s\n", streamURL)
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d locations failed", failed, len(args))
	}
	return nil
}

type services struct {
	player     *engine.Player
	httpServer *httpserver.Server
	discord    *discordgo.Session
	store      *store.PlaylistStore
	saver      *store.Saver
	floodgate  *flood.Floodgate
}

func (s *services) close() {
	if s.floodgate != nil {
		s.floodgate.Stop()
	}
	if s.discord != nil {
		if err := s.discord.Close(); err != nil {
			logger.Debug("Failed to close Discord session", zap.Error(err))
		}
	}
	if s.store != nil {
		if err := s.store.Close(); err != nil {
			logger.Debug("Failed to close playlist store", zap.Error(err))
		}
	}
}

func buildResolverChain(ctx context.Context) *resolver.Chain {
	rc := config.Resolver
	extractor := resolver.NewYTDLP(resolver.DefaultFormat)
	searcher := resolver.NewYouTubeSearch(rc.SearchLimit)

	resolvers := []resolver.Resolver{
		resolver.NewYouTubeResolver(extractor, rc.MetadataCacheSize),
		resolver.NewSoundCloudResolver(extractor, rc.MetadataCacheSize),
	}
	if config.Spotify.Enabled() {
		catalog := resolver.NewSpotifyCatalog(ctx, config.Spotify.ClientID, config.Spotify.ClientSecret)
		resolvers = append(resolvers,
			resolver.NewSpotifyResolver(catalog, searcher, extractor, rc.MetadataCacheSize))
	}
	resolvers = append(resolvers,
		resolver.NewSearchResolver(searcher, extractor, rc.MetadataCacheSize),
		resolver.NewLiveStreamResolver(rc.StreamlinkPath, rc.StreamQuality),
	)

	return resolver.NewChain(logger.Named("resolver"), resolvers...)
}

func initializeServices(ctx context.Context) (*services, error) {
	svcs := &services{}
	localizer := i18n.NewLocalizer(config.App.Language)
	metrics := httpserver.NewMetrics()

	var records []playlist.Record
	if config.Store.Path != "" {
		ps, err := store.OpenPlaylistStore(ctx, config.Store.Path)
		if err != nil {
			return nil, fmt.Errorf("failed to open playlist store: %w", err)
		}
		svcs.store = ps
		svcs.saver = store.NewSaver(ps, config.Store.Playlist, logger.Named("store"))

		records, err = ps.Load(ctx, config.Store.Playlist)
		if err != nil {
			svcs.close()
			return nil, fmt.Errorf("failed to load playlist %q: %w", config.Store.Playlist, err)
		}
	}

	if config.Discord.Enabled() {
		session, err := openDiscord()
		if err != nil {
			svcs.close()
			return nil, err
		}
		svcs.discord = session
	}

	opts := engine.Options{
		Channels:      config.Transcoder.Channels,
		ReadyTimeout:  readyTimeout(config.Engine.ReadyTimeout),
		PauseInterval: config.Engine.PauseInterval,
		PollInterval:  config.Engine.PollInterval,
		DrainTimeout:  config.Engine.DrainTimeout,
		Prober:        transcode.NewProber(config.Transcoder.FFprobePath),
		Notifier:      newAnnouncer(svcs.discord, config.Discord.TextChannelID, localizer, logger.Named("announcer")),
		Recorder:      metrics,
	}
	if config.App.RejectDuplicates {
		opts.Dedup = store.NewDedupStore(config.App.DedupCapacity, core.DefaultDedupFalsePositiveRate)
	}
	if svcs.saver != nil {
		opts.OnChange = svcs.saver.Offer
	}

	spawner := transcode.NewSpawner(config.Transcoder.FFmpegPath, config.Transcoder.Channels, logger.Named("transcode"))
	player := engine.New(buildResolverChain(ctx), engine.SpawnerStart(spawner), opts, logger.Named("engine"))
	if len(records) > 0 {
		player.Load(records)
		logger.Info("Playlist restored",
			zap.String("playlist", config.Store.Playlist),
			zap.Int("tracks", len(records)))
	}
	svcs.player = player

	destinations := discordDestinations(svcs.discord)
	switch {
	case svcs.discord != nil && config.Discord.GuildID != "" && config.Discord.ChannelID != "":
		dest, err := destinations(config.Discord.GuildID, config.Discord.ChannelID)
		if err != nil {
			svcs.close()
			return nil, fmt.Errorf("failed to create Discord destination: %w", err)
		}
		player.SetDestination(dest)
	case svcs.discord == nil:
		player.SetDestination(voice.NewFileDestination(config.App.Output, config.App.OutputRealtime))
	}

	if config.App.RequestLimitPerMinute > 0 {
		svcs.floodgate = flood.New(config.App.RequestLimitPerMinute)
	}

	svcs.httpServer = httpserver.NewServer(&config.Server, metrics, httpserver.Options{
		Controller:   player,
		Localizer:    localizer,
		Floodgate:    svcs.floodgate,
		Destinations: destinations,
		Ready:        discordReady(svcs.discord),
	}, logger.Named("http"))

	return svcs, nil
}

// readyTimeout maps the configured value onto engine.Options, where zero
// selects the default and a negative value waits forever.
func readyTimeout(d time.Duration) time.Duration {
	if d == 0 {
		return -1
	}
	return d
}

func openDiscord() (*discordgo.Session, error) {
	session, err := discordgo.New("Bot " + config.Discord.Token)
	if err != nil {
		return nil, fmt.Errorf("failed to create Discord session: %w", err)
	}
	session.Identify.Intents = discordgo.IntentsGuilds | discordgo.IntentsGuildVoiceStates

	if err := session.Open(); err != nil {
		return nil, fmt.Errorf("failed to open Discord session: %w", err)
	}
	logger.Info("Connected to Discord")
	return session, nil
}

func discordDestinations(session *discordgo.Session) httpserver.DestinationFunc {
	if session == nil {
		return nil
	}
	return func(guildID, channelID string) (voice.Destination, error) {
		for _, id := range []string{guildID, channelID} {
			if err := voice.ValidateSnowflake(id); err != nil {
				return nil, err
			}
		}
		return voice.NewDiscordDestination(session, guildID, channelID, voice.DiscordOptions{
			FFmpegBinary: config.Transcoder.FFmpegPath,
			Channels:     config.Transcoder.Channels,
			Bitrate:      config.Discord.Bitrate,
		}, logger.Named("discord")), nil
	}
}

func discordReady(session *discordgo.Session) func() error {
	if session == nil {
		return nil
	}
	return func() error {
		if !session.DataReady {
			return errors.New("discord session not ready")
		}
		return nil
	}
}

func runServices(ctx context.Context, svcs *services) error {
	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return svcs.httpServer.Start(gCtx)
	})

	g.Go(func() error {
		return svcs.player.Run(gCtx)
	})

	if svcs.saver != nil {
		g.Go(func() error {
			return svcs.saver.Run(gCtx)
		})
	}

	logger.Info("jukebox started successfully",
		zap.String("http_addr", svcs.httpServer.Addr()),
		zap.Int("tracks", len(svcs.player.Tracks())))

	err := g.Wait()

	if svcs.saver != nil {
		if flushErr := svcs.saver.Flush(trackRecords(svcs.player.Tracks())); flushErr != nil {
			logger.Error("Failed to save playlist on shutdown", zap.Error(flushErr))
		}
	}

	if err != nil {
		logger.Error("jukebox stopped with error", zap.Error(err))
		return err
	}

	logger.Info("jukebox stopped gracefully")
	return nil
}

func trackRecords(tracks []*playlist.Track) []playlist.Record {
	records := make([]playlist.Record, 0, len(tracks))
	for _, t := range tracks {
		records = append(records, t.Record())
	}
	return records
}

func validateConfig() error {
	if config.Transcoder.Channels < 1 || config.Transcoder.Channels > 2 {
		return fmt.Errorf("channels must be 1 or 2, got %d", config.Transcoder.Channels)
	}

	if config.Server.Port < 0 || config.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", config.Server.Port)
	}

	if config.Discord.Enabled() && (config.Discord.GuildID == "") != (config.Discord.ChannelID == "") {
		return fmt.Errorf("discord guild ID and channel ID must be set together")
	}

	if (config.Spotify.ClientID == "") != (config.Spotify.ClientSecret == "") {
		return fmt.Errorf("spotify client ID and secret must be set together")
	}

	return nil
}
