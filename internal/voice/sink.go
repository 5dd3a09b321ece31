// Package voice provides the real-time audio sinks the engine streams to.
package voice

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

// FrameDuration is the playback time covered by one PCM frame.
const FrameDuration = 20 * time.Millisecond

// ErrSinkClosed is returned when sending to a closed sink.
var ErrSinkClosed = errors.New("sink closed")

// Sink accepts fixed size PCM frames in real time.
type Sink interface {
	// SendFrame blocks until the sink accepted the frame. The frame buffer
	// is not retained after the call returns.
	SendFrame(ctx context.Context, frame []byte) error
	// Drain waits until everything sent so far has been played.
	Drain(ctx context.Context) error
	// Close releases the sink.
	Close() error
}

// Destination is where a playback session streams to. Open acquires a sink
// for the duration of one play run.
type Destination interface {
	Open(ctx context.Context) (Sink, error)
	String() string
}

// WriterSink writes raw PCM to an io.Writer, optionally paced to real time.
type WriterSink struct {
	w      io.Writer
	closer io.Closer
	pace   *time.Ticker

	mu     sync.Mutex
	closed bool
}

// NewWriterSink wraps w. When realtime is set, SendFrame releases one frame
// per FrameDuration like a voice connection would.
func NewWriterSink(w io.Writer, realtime bool) *WriterSink {
	s := &WriterSink{w: w}
	if c, ok := w.(io.Closer); ok {
		s.closer = c
	}
	if realtime {
		s.pace = time.NewTicker(FrameDuration)
	}
	return s
}

func (s *WriterSink) SendFrame(ctx context.Context, frame []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.pace != nil {
		select {
		case <-s.pace.C:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSinkClosed
	}
	_, err := s.w.Write(frame)
	return err
}

// Drain flushes writers that buffer.
func (s *WriterSink) Drain(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if f, ok := s.w.(interface{ Sync() error }); ok {
		// Pipes and terminals do not support fsync.
		_ = f.Sync()
	}
	return nil
}

func (s *WriterSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	if s.pace != nil {
		s.pace.Stop()
	}
	if s.closer != nil && s.closer != os.Stdout {
		return s.closer.Close()
	}
	return nil
}

// FileDestination streams PCM into a file, or to stdout for "-".
type FileDestination struct {
	path     string
	realtime bool
}

// NewFileDestination creates a destination writing to path.
func NewFileDestination(path string, realtime bool) *FileDestination {
	return &FileDestination{path: path, realtime: realtime}
}

func (d *FileDestination) Open(context.Context) (Sink, error) {
	if d.path == "-" {
		return NewWriterSink(os.Stdout, d.realtime), nil
	}
	f, err := os.OpenFile(d.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open output %s: %w", d.path, err)
	}
	return NewWriterSink(f, d.realtime), nil
}

func (d *FileDestination) String() string {
	if d.path == "-" {
		return "stdout"
	}
	return "file:" + d.path
}
