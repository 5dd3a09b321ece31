package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

type envSection struct {
	title string
	flags []string
}

var envSections = []envSection{
	{"Playback Destination - Discord (leave the token empty to write PCM instead)", []string{
		"discord-token", "discord-guild-id", "discord-channel-id", "discord-text-channel-id", "discord-bitrate",
	}},
	{"Playback Destination - PCM output", []string{"output", "output-realtime"}},
	{"Transcoder", []string{
		"ffmpeg-path", "ffprobe-path", "channels", "ready-timeout", "pause-interval", "poll-interval", "drain-timeout",
	}},
	{"Resolvers", []string{"streamlink-path", "stream-quality", "metadata-cache-size", "search-limit"}},
	{"Spotify Links (optional, app credentials only)", []string{"spotify-client-id", "spotify-client-secret"}},
	{"Playlist Persistence", []string{"store-path", "playlist-name", "reject-duplicates", "dedup-capacity"}},
	{"Control API", []string{"server-host", "server-port", "request-limit-per-minute"}},
	{"Localization & Logging", []string{"language", "log-level"}},
}

func generateEnvExample(cmd *cobra.Command) error {
	fmt.Println("Generating .env.example file from current configuration...")

	content := generateEnvExampleContent(cmd)

	if err := os.WriteFile(".env.example", []byte(content), 0600); err != nil {
		return fmt.Errorf("failed to write .env.example: %w", err)
	}

	fmt.Println("✅ Successfully generated .env.example file")
	return nil
}

func generateEnvExampleContent(cmd *cobra.Command) string {
	var content strings.Builder

	content.WriteString("# =============================================================================\n")
	content.WriteString("# jukebox Configuration\n")
	content.WriteString("# =============================================================================\n")
	content.WriteString("#\n")
	content.WriteString("# Copy this file to .env and update with your values\n")
	content.WriteString("# All environment variables have CLI flag equivalents (use --help to see them)\n")
	content.WriteString("#\n")
	fmt.Fprintf(&content, "# Format: %s_<SETTING>=value\n", envPrefix)
	content.WriteString("# CLI equivalent: --<setting>\n")
	content.WriteString("#\n")
	content.WriteString("# =============================================================================\n\n")

	for _, section := range envSections {
		generateSection(&content, cmd, section)
	}
	generateQuickSetupGuide(&content)

	return content.String()
}

func flagToEnvVar(flagName string) string {
	return envPrefix + "_" + strings.ToUpper(strings.ReplaceAll(flagName, "-", "_"))
}

func getDefaultValueString(cmd *cobra.Command, flagName string) string {
	if f := cmd.PersistentFlags().Lookup(flagName); f != nil {
		return f.DefValue
	}
	return ""
}

func generateSection(content *strings.Builder, cmd *cobra.Command, section envSection) {
	content.WriteString("# -----------------------------------------------------------------------------\n")
	fmt.Fprintf(content, "# %s\n", section.title)
	content.WriteString("# -----------------------------------------------------------------------------\n")

	cli := make([]string, 0, len(section.flags))
	for _, name := range section.flags {
		cli = append(cli, "--"+name)
	}
	fmt.Fprintf(content, "# CLI: %s\n", strings.Join(cli, ", "))

	for _, name := range section.flags {
		f := cmd.PersistentFlags().Lookup(name)
		if f == nil {
			continue
		}
		def := getDefaultValueString(cmd, name)
		line := fmt.Sprintf("%s=%s", flagToEnvVar(name), def)
		fmt.Fprintf(content, "%-52s # %s (default: %q)\n", line, f.Usage, def)
	}
	content.WriteString("\n")
}

func generateQuickSetupGuide(content *strings.Builder) {
	content.WriteString("# =============================================================================\n")
	content.WriteString("# QUICK SETUP GUIDE\n")
	content.WriteString("# =============================================================================\n")
	content.WriteString("\n")
	content.WriteString("# 1. REQUIREMENTS:\n")
	content.WriteString("#    - ffmpeg and ffprobe on PATH (or set the paths above)\n")
	content.WriteString("#    - yt-dlp on PATH for YouTube, SoundCloud, Spotify and search\n")
	content.WriteString("#    - streamlink on PATH for live streams (optional)\n")
	content.WriteString("\n")
	content.WriteString("# 2. DISCORD SETUP (optional):\n")
	content.WriteString("#    - Create an application at https://discord.com/developers/applications\n")
	content.WriteString("#    - Add a bot, copy its token to " + flagToEnvVar("discord-token") + "\n")
	content.WriteString("#    - Invite it with the Connect and Speak permissions\n")
	content.WriteString("#    - Set guild and voice channel IDs, or POST them to /api/destination later\n")
	content.WriteString("\n")
	content.WriteString("# 3. TRY IT:\n")
	content.WriteString("#    go run ./cmd/jukebox --output=out.pcm --output-realtime=false\n")
	content.WriteString("#    curl -XPOST localhost:8080/api/tracks -d '{\"location\":\"./song.flac\"}'\n")
	content.WriteString("#    curl -XPOST localhost:8080/api/play\n")
	content.WriteString("#    go run ./cmd/jukebox resolve \"lofi hip hop\" --stream      # Debug the resolver chain\n")
	content.WriteString("\n")
}
