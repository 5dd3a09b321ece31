package transcode

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

// DefaultFFprobeBinary is looked up on PATH.
const DefaultFFprobeBinary = "ffprobe"

// ErrUnknownDuration is returned when the container reports no duration,
// which is normal for live streams.
var ErrUnknownDuration = errors.New("duration unknown")

// Prober measures media durations with ffprobe.
type Prober struct {
	binary string
}

// NewProber creates a prober. An empty binary uses DefaultFFprobeBinary.
func NewProber(binary string) *Prober {
	if binary == "" {
		binary = DefaultFFprobeBinary
	}
	return &Prober{binary: binary}
}

// Probe returns the duration of location truncated to whole seconds.
func (p *Prober) Probe(ctx context.Context, location string) (time.Duration, error) {
	out, err := exec.CommandContext(ctx, p.binary,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		location,
	).Output()
	if err != nil {
		return 0, fmt.Errorf("ffprobe %q: %w", location, err)
	}
	return parseProbeOutput(string(out))
}

func parseProbeOutput(out string) (time.Duration, error) {
	value := strings.TrimSpace(out)
	if i := strings.IndexByte(value, '\n'); i >= 0 {
		value = strings.TrimSpace(value[:i])
	}
	if value == "" || value == "N/A" {
		return 0, ErrUnknownDuration
	}
	secs, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("parse ffprobe duration %q: %w", value, err)
	}
	if secs < 0 {
		return 0, ErrUnknownDuration
	}
	return time.Duration(int64(secs)) * time.Second, nil
}
