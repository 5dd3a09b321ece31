// Package transcode runs ffmpeg to turn any playable location into raw PCM
// frames and ffprobe to measure durations.
package transcode

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

const (
	// SampleRate is the output sample rate in Hz.
	SampleRate = 48000
	// FrameSamples is the number of samples per channel in one 20ms frame.
	FrameSamples = 960
	// BytesPerSample is the size of one s16le sample.
	BytesPerSample = 2
	// DefaultChannels is stereo output.
	DefaultChannels = 2
	// DefaultFFmpegBinary is looked up on PATH.
	DefaultFFmpegBinary = "ffmpeg"
	// readBufferSize is the stdout buffer; a few frames of slack.
	readBufferSize = 64 * 1024
)

var (
	// ErrNotReady is returned by ReadFrame before the first byte arrived.
	ErrNotReady = errors.New("transcoder output not ready")
	// ErrClosed is returned after Close.
	ErrClosed = errors.New("transcoder closed")
)

// active counts transcoder processes that were started and not yet closed.
var active atomic.Int64

// Active returns the number of live transcoder processes in this process.
func Active() int64 {
	return active.Load()
}

// FrameSize returns the byte size of one 20ms PCM frame.
func FrameSize(channels int) int {
	return FrameSamples * channels * BytesPerSample
}

// SpawnError reports a transcoder that could not be started.
type SpawnError struct {
	Location string
	Err      error
}

func (e *SpawnError) Error() string {
	return fmt.Sprintf("start transcoder for %q: %v", e.Location, e.Err)
}

func (e *SpawnError) Unwrap() error {
	return e.Err
}

// Spawner starts ffmpeg processes with a fixed output format.
type Spawner struct {
	binary   string
	channels int
	logger   *zap.Logger
}

// NewSpawner creates a spawner. Empty or zero arguments use the defaults.
func NewSpawner(binary string, channels int, logger *zap.Logger) *Spawner {
	if binary == "" {
		binary = DefaultFFmpegBinary
	}
	if channels <= 0 {
		channels = DefaultChannels
	}
	return &Spawner{binary: binary, channels: channels, logger: logger}
}

// Channels returns the configured output channel count.
func (s *Spawner) Channels() int {
	return s.channels
}

// Args builds the ffmpeg argument list. The seek flag is only present when
// seek is non-nil and placed before the input for fast seeking.
func (s *Spawner) Args(location string, seek *time.Duration) []string {
	args := []string{"-hide_banner", "-loglevel", "error", "-nostdin"}
	if strings.HasPrefix(location, "http://") || strings.HasPrefix(location, "https://") {
		args = append(args, "-reconnect", "1", "-reconnect_streamed", "1", "-reconnect_delay_max", "5")
	}
	if seek != nil {
		args = append(args, "-ss", strconv.FormatFloat(seek.Seconds(), 'f', -1, 64))
	}
	return append(args,
		"-i", location,
		"-vn",
		"-f", "s16le",
		"-ar", strconv.Itoa(SampleRate),
		"-ac", strconv.Itoa(s.channels),
		"pipe:1",
	)
}

// Start launches a transcoder. It never fails outright: a process that
// could not be started reports the failure through Err.
func (s *Spawner) Start(location string, seek *time.Duration) *Process {
	p := &Process{
		ready:  make(chan struct{}),
		logger: s.logger.With(zap.String("location", location)),
	}

	cmd := exec.Command(s.binary, s.Args(location, seek)...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		p.fail(&SpawnError{Location: location, Err: err})
		return p
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		p.fail(&SpawnError{Location: location, Err: err})
		return p
	}
	if err := cmd.Start(); err != nil {
		p.fail(&SpawnError{Location: location, Err: err})
		p.logger.Error("Failed to start transcoder", zap.Error(err))
		return p
	}

	active.Add(1)
	p.cmd = cmd
	p.reader = bufio.NewReaderSize(stdout, readBufferSize)

	go p.logStderr(stderr)
	go p.watchReady()

	p.logger.Debug("Transcoder started", zap.Int("pid", cmd.Process.Pid))
	return p
}

// Process is one running ffmpeg instance.
type Process struct {
	cmd    *exec.Cmd
	reader *bufio.Reader
	logger *zap.Logger

	ready     chan struct{}
	hasOutput atomic.Bool

	mu  sync.Mutex
	err error

	closeOnce sync.Once
	closed    atomic.Bool
}

func (p *Process) fail(err error) {
	p.setErr(err)
	close(p.ready)
}

func (p *Process) setErr(err error) {
	p.mu.Lock()
	if p.err == nil {
		p.err = err
	}
	p.mu.Unlock()
}

// Err returns the spawn failure or the reason output ended before it began.
func (p *Process) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.err
}

// watchReady blocks until ffmpeg wrote its first byte or exited without any.
func (p *Process) watchReady() {
	defer close(p.ready)
	if _, err := p.reader.Peek(1); err != nil {
		p.setErr(err)
		return
	}
	p.hasOutput.Store(true)
}

func (p *Process) logStderr(r io.Reader) {
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		p.logger.Debug("ffmpeg", zap.String("stderr", sc.Text()))
	}
}

// Ready reports whether PCM output is available.
func (p *Process) Ready() bool {
	return p.hasOutput.Load() && !p.closed.Load()
}

// ReadFrame fills buf completely. A short or empty read means the stream
// ended and is reported as io.EOF or io.ErrUnexpectedEOF.
func (p *Process) ReadFrame(buf []byte) error {
	if p.closed.Load() {
		return ErrClosed
	}
	select {
	case <-p.ready:
	default:
		return ErrNotReady
	}
	if !p.hasOutput.Load() {
		if err := p.Err(); err != nil {
			return err
		}
		return io.EOF
	}
	_, err := io.ReadFull(p.reader, buf)
	return err
}

// Close kills and reaps the process. It is safe to call more than once and
// from several goroutines.
func (p *Process) Close() error {
	p.closeOnce.Do(func() {
		p.closed.Store(true)
		if p.cmd == nil || p.cmd.Process == nil {
			return
		}
		defer active.Add(-1)

		if err := p.cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
			p.logger.Debug("Failed to kill transcoder", zap.Error(err))
		}
		// Wait reports "signal: killed" for the normal teardown path.
		_ = p.cmd.Wait()
		p.logger.Debug("Transcoder closed")
	})
	return nil
}
