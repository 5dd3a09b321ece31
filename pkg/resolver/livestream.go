package resolver

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

const (
	// DefaultStreamlinkBinary is looked up on PATH.
	DefaultStreamlinkBinary = "streamlink"
	// DefaultStreamQuality asks streamlink for the best available stream.
	DefaultStreamQuality = "best"
	// streamlinkErrorPrefix marks streamlink's failure lines.
	streamlinkErrorPrefix = "error:"
)

// LiveStreamResolver is the generic fallback for anything streamlink knows
// how to open, including live broadcasts. It cannot name tracks.
type LiveStreamResolver struct {
	unnamed
	binary  string
	quality string
}

// NewLiveStreamResolver creates a streamlink backed resolver. Empty
// arguments use the defaults.
func NewLiveStreamResolver(binary, quality string) *LiveStreamResolver {
	if binary == "" {
		binary = DefaultStreamlinkBinary
	}
	if quality == "" {
		quality = DefaultStreamQuality
	}
	return &LiveStreamResolver{binary: binary, quality: quality}
}

func (r *LiveStreamResolver) Kind() Kind { return KindLiveStream }

func (r *LiveStreamResolver) Capabilities() Capabilities {
	return Capabilities{AsyncCheck: true}
}

// CanResolve only filters out things that are not URLs.
func (r *LiveStreamResolver) CanResolve(location string) bool {
	return isURL(location)
}

// Probe asks streamlink whether it has a plugin for location. A non-zero
// exit status means no.
func (r *LiveStreamResolver) Probe(ctx context.Context, location string) (bool, error) {
	if !r.CanResolve(location) {
		return false, nil
	}

	err := exec.CommandContext(ctx, r.binary, "--can-handle-url", location).Run()
	if err == nil {
		return true, nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return false, nil
	}
	return false, fmt.Errorf("run %s: %w", r.binary, err)
}

// StreamURL asks streamlink for the direct URL of the configured quality.
func (r *LiveStreamResolver) StreamURL(ctx context.Context, location string) (string, error) {
	var stdout bytes.Buffer
	cmd := exec.CommandContext(ctx, r.binary, "--stream-url", location, r.quality)
	cmd.Stdout = &stdout
	runErr := cmd.Run()

	line := firstLine(stdout.String())
	if strings.HasPrefix(strings.ToLower(line), streamlinkErrorPrefix) {
		return "", fmt.Errorf("streamlink: %s: %w",
			strings.TrimSpace(line[len(streamlinkErrorPrefix):]), ErrResolutionFailed)
	}
	if runErr != nil {
		return "", fmt.Errorf("run %s: %w", r.binary, runErr)
	}
	if line == "" {
		return "", fmt.Errorf("streamlink printed no URL: %w", ErrResolutionFailed)
	}
	return line, nil
}

func firstLine(s string) string {
	sc := bufio.NewScanner(strings.NewReader(s))
	for sc.Scan() {
		if line := strings.TrimSpace(sc.Text()); line != "" {
			return line
		}
	}
	return ""
}
