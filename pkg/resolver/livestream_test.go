package resolver

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// writeScript installs an executable shell script standing in for a helper binary.
func writeScript(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "helper.sh")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0o700); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLiveStreamResolver_Probe(t *testing.T) {
	script := writeScript(t, `
if [ "$1" = "--can-handle-url" ]; then
  case "$2" in
    *twitch.tv*) exit 0 ;;
    *) exit 1 ;;
  esac
fi
exit 2
`)
	r := NewLiveStreamResolver(script, "")

	tests := []struct {
		name     string
		location string
		want     bool
	}{
		{name: "supported", location: "https://www.twitch.tv/somechannel", want: true},
		{name: "unsupported", location: "https://example.com/page", want: false},
		{name: "not a URL", location: "some words", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := r.Probe(context.Background(), tt.location)
			if err != nil {
				t.Fatalf("Probe() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("Probe() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestLiveStreamResolver_ProbeMissingBinary(t *testing.T) {
	r := NewLiveStreamResolver(filepath.Join(t.TempDir(), "missing"), "")
	if _, err := r.Probe(context.Background(), "https://example.com"); err == nil {
		t.Error("Probe() error = nil, want error for missing binary")
	}
}

func TestLiveStreamResolver_StreamURL(t *testing.T) {
	tests := []struct {
		name    string
		script  string
		want    string
		wantErr error
	}{
		{
			name:   "prints URL",
			script: `echo "https://video.example.com/live.m3u8?q=$3"`,
			want:   "https://video.example.com/live.m3u8?q=best",
		},
		{
			name:    "error line",
			script:  "echo 'error: No playable streams found on this URL'\nexit 1",
			wantErr: ErrResolutionFailed,
		},
		{
			name:    "no output",
			script:  "exit 0",
			wantErr: ErrResolutionFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewLiveStreamResolver(writeScript(t, tt.script), "")
			got, err := r.StreamURL(context.Background(), "https://live.example.com/x")
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("StreamURL() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("StreamURL() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("StreamURL() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestLiveStreamResolver_NoNames(t *testing.T) {
	r := NewLiveStreamResolver("", "")
	if r.Capabilities().TrackNames {
		t.Error("Capabilities().TrackNames = true, want false")
	}
	if _, err := r.TrackName(context.Background(), "https://x"); !errors.Is(err, ErrNamesUnsupported) {
		t.Errorf("TrackName() error = %v, want %v", err, ErrNamesUnsupported)
	}
}

func TestParseExtractOutput(t *testing.T) {
	m, err := parseExtractOutput("\nhttps://cdn.example.com/a.webm\tSome Title\t213.4\n")
	if err != nil {
		t.Fatalf("parseExtractOutput() error = %v", err)
	}
	if m.URL != "https://cdn.example.com/a.webm" || m.Title != "Some Title" || m.Duration != 213*time.Second {
		t.Errorf("parseExtractOutput() = %+v", m)
	}

	m, err = parseExtractOutput("https://cdn.example.com/live\tNA\tNA")
	if err != nil {
		t.Fatalf("parseExtractOutput() error = %v", err)
	}
	if m.Title != "" || m.Duration != 0 {
		t.Errorf("parseExtractOutput() with NA fields = %+v", m)
	}

	if _, err := parseExtractOutput("WARNING: nothing here"); err == nil {
		t.Error("parseExtractOutput() error = nil, want error")
	}
}

func TestParseClockDuration(t *testing.T) {
	tests := []struct {
		in   string
		want time.Duration
	}{
		{in: "3:20", want: 200 * time.Second},
		{in: "1:05:20", want: time.Hour + 5*time.Minute + 20*time.Second},
		{in: "42", want: 0},
		{in: "LIVE", want: 0},
		{in: "", want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := parseClockDuration(tt.in); got != tt.want {
				t.Errorf("parseClockDuration(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}
