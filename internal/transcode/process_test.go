package transcode

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/zap"
)

// fakeFFmpeg installs a shell script that stands in for ffmpeg.
func fakeFFmpeg(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ffmpeg")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0o700); err != nil {
		t.Fatal(err)
	}
	return path
}

// waitSettled waits until the process has output or failed.
func waitSettled(t *testing.T, p *Process) {
	t.Helper()
	select {
	case <-p.ready:
	case <-time.After(5 * time.Second):
		t.Fatal("transcoder did not become ready")
	}
}

func TestSpawner_Args(t *testing.T) {
	s := NewSpawner("", 2, zap.NewNop())
	seek := 90 * time.Second
	half := 1500 * time.Millisecond

	tests := []struct {
		name     string
		location string
		seek     *time.Duration
		want     []string
	}{
		{
			name:     "local file",
			location: "/music/a.flac",
			want: []string{"-hide_banner", "-loglevel", "error", "-nostdin",
				"-i", "/music/a.flac", "-vn", "-f", "s16le", "-ar", "48000", "-ac", "2", "pipe:1"},
		},
		{
			name:     "seek before input",
			location: "/music/a.flac",
			seek:     &seek,
			want: []string{"-hide_banner", "-loglevel", "error", "-nostdin", "-ss", "90",
				"-i", "/music/a.flac", "-vn", "-f", "s16le", "-ar", "48000", "-ac", "2", "pipe:1"},
		},
		{
			name:     "remote stream reconnects",
			location: "https://cdn.example.com/a",
			seek:     &half,
			want: []string{"-hide_banner", "-loglevel", "error", "-nostdin",
				"-reconnect", "1", "-reconnect_streamed", "1", "-reconnect_delay_max", "5", "-ss", "1.5",
				"-i", "https://cdn.example.com/a", "-vn", "-f", "s16le", "-ar", "48000", "-ac", "2", "pipe:1"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if diff := cmp.Diff(tt.want, s.Args(tt.location, tt.seek)); diff != "" {
				t.Errorf("Args() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestFrameSize(t *testing.T) {
	if got := FrameSize(2); got != 3840 {
		t.Errorf("FrameSize(2) = %d, want 3840", got)
	}
	if got := FrameSize(1); got != 1920 {
		t.Errorf("FrameSize(1) = %d, want 1920", got)
	}
}

func TestProcess_ReadFrames(t *testing.T) {
	bin := fakeFFmpeg(t, "head -c 7680 /dev/zero\nprintf 'xy'")
	p := NewSpawner(bin, 2, zap.NewNop()).Start("/music/a.flac", nil)
	defer p.Close()

	waitSettled(t, p)
	if !p.Ready() {
		t.Fatalf("Ready() = false, Err() = %v", p.Err())
	}

	buf := make([]byte, FrameSize(2))
	for i := 0; i < 2; i++ {
		if err := p.ReadFrame(buf); err != nil {
			t.Fatalf("ReadFrame() #%d error = %v", i, err)
		}
	}
	if err := p.ReadFrame(buf); !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Errorf("short ReadFrame() error = %v, want %v", err, io.ErrUnexpectedEOF)
	}
}

func TestProcess_NoOutput(t *testing.T) {
	bin := fakeFFmpeg(t, "echo 'Invalid data found' >&2\nexit 1")
	p := NewSpawner(bin, 2, zap.NewNop()).Start("/nope", nil)
	defer p.Close()

	waitSettled(t, p)
	if p.Ready() {
		t.Error("Ready() = true for process without output")
	}
	if err := p.ReadFrame(make([]byte, 16)); !errors.Is(err, io.EOF) {
		t.Errorf("ReadFrame() error = %v, want %v", err, io.EOF)
	}
}

func TestProcess_SpawnFailure(t *testing.T) {
	before := Active()
	p := NewSpawner(filepath.Join(t.TempDir(), "missing"), 2, zap.NewNop()).Start("/music/a.flac", nil)

	var spawnErr *SpawnError
	if !errors.As(p.Err(), &spawnErr) {
		t.Fatalf("Err() = %v, want *SpawnError", p.Err())
	}
	if p.Ready() {
		t.Error("Ready() = true after spawn failure")
	}
	if Active() != before {
		t.Errorf("Active() = %d, want %d", Active(), before)
	}
	if err := p.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}

func TestProcess_NotReadyYet(t *testing.T) {
	bin := fakeFFmpeg(t, "sleep 2\nhead -c 3840 /dev/zero")
	p := NewSpawner(bin, 2, zap.NewNop()).Start("/music/a.flac", nil)
	defer p.Close()

	if err := p.ReadFrame(make([]byte, 8)); !errors.Is(err, ErrNotReady) {
		t.Errorf("ReadFrame() before output error = %v, want %v", err, ErrNotReady)
	}
}

func TestProcess_CloseIsIdempotent(t *testing.T) {
	before := Active()
	bin := fakeFFmpeg(t, "exec sleep 30")
	p := NewSpawner(bin, 2, zap.NewNop()).Start("/music/a.flac", nil)

	if Active() != before+1 {
		t.Fatalf("Active() = %d, want %d", Active(), before+1)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		var wg sync.WaitGroup
		for i := 0; i < 5; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_ = p.Close()
			}()
		}
		wg.Wait()
		_ = p.Close()
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Close() did not terminate the process")
	}

	if Active() != before {
		t.Errorf("Active() after Close() = %d, want %d", Active(), before)
	}
	if err := p.ReadFrame(make([]byte, 8)); !errors.Is(err, ErrClosed) {
		t.Errorf("ReadFrame() after Close() error = %v, want %v", err, ErrClosed)
	}
}

func TestParseProbeOutput(t *testing.T) {
	tests := []struct {
		name    string
		out     string
		want    time.Duration
		wantErr error
	}{
		{name: "fractional seconds truncate", out: "213.987000\n", want: 213 * time.Second},
		{name: "whole seconds", out: "60", want: time.Minute},
		{name: "not available", out: "N/A\n", wantErr: ErrUnknownDuration},
		{name: "empty", out: "", wantErr: ErrUnknownDuration},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseProbeOutput(tt.out)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("parseProbeOutput() error = %v, want %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("parseProbeOutput() = %v, want %v", got, tt.want)
			}
		})
	}

	if _, err := parseProbeOutput("abc"); err == nil {
		t.Error("parseProbeOutput(garbage) error = nil")
	}
}

func TestProber_Probe(t *testing.T) {
	bin := fakeFFmpeg(t, `case "$7" in *live*) echo N/A ;; *) echo 184.52 ;; esac`)
	p := NewProber(bin)

	got, err := p.Probe(context.Background(), "/music/a.flac")
	if err != nil {
		t.Fatalf("Probe() error = %v", err)
	}
	if got != 184*time.Second {
		t.Errorf("Probe() = %v, want %v", got, 184*time.Second)
	}

	if _, err := p.Probe(context.Background(), "https://live.example.com"); !errors.Is(err, ErrUnknownDuration) {
		t.Errorf("Probe(live) error = %v, want %v", err, ErrUnknownDuration)
	}
}
