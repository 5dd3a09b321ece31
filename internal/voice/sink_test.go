package voice

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/zap"
)

func TestWriterSink(t *testing.T) {
	var buf bytes.Buffer
	s := NewWriterSink(&buf, false)

	frame := []byte{1, 2, 3, 4}
	if err := s.SendFrame(context.Background(), frame); err != nil {
		t.Fatalf("SendFrame() error = %v", err)
	}
	frame[0] = 9
	if err := s.SendFrame(context.Background(), frame); err != nil {
		t.Fatalf("SendFrame() error = %v", err)
	}
	if err := s.Drain(context.Background()); err != nil {
		t.Fatalf("Drain() error = %v", err)
	}
	if diff := cmp.Diff([]byte{1, 2, 3, 4, 9, 2, 3, 4}, buf.Bytes()); diff != "" {
		t.Errorf("written bytes mismatch (-want +got):\n%s", diff)
	}

	if err := s.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := s.SendFrame(context.Background(), frame); !errors.Is(err, ErrSinkClosed) {
		t.Errorf("SendFrame() after Close() error = %v, want %v", err, ErrSinkClosed)
	}
}

func TestWriterSink_RealtimePacing(t *testing.T) {
	s := NewWriterSink(&bytes.Buffer{}, true)
	defer s.Close()

	start := time.Now()
	for i := 0; i < 5; i++ {
		if err := s.SendFrame(context.Background(), []byte{0}); err != nil {
			t.Fatalf("SendFrame() error = %v", err)
		}
	}
	if elapsed := time.Since(start); elapsed < 4*FrameDuration {
		t.Errorf("5 paced frames took %v, want at least %v", elapsed, 4*FrameDuration)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := s.SendFrame(ctx, []byte{0}); !errors.Is(err, context.Canceled) {
		t.Errorf("SendFrame() with canceled context error = %v, want %v", err, context.Canceled)
	}
}

func TestFileDestination(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.pcm")
	dest := NewFileDestination(path, false)

	if dest.String() != "file:"+path {
		t.Errorf("String() = %q", dest.String())
	}

	sink, err := dest.Open(context.Background())
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if err := sink.SendFrame(context.Background(), []byte("pcm")); err != nil {
		t.Fatalf("SendFrame() error = %v", err)
	}
	if err := sink.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "pcm" {
		t.Errorf("file contents = %q, want %q", got, "pcm")
	}

	if NewFileDestination("-", false).String() != "stdout" {
		t.Error("String() for - is not stdout")
	}
}

type fakeConn struct {
	mu           sync.Mutex
	speaking     []bool
	disconnected int
	opus         chan []byte
}

func (c *fakeConn) Speaking(b bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.speaking = append(c.speaking, b)
	return nil
}

func (c *fakeConn) Disconnect() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.disconnected++
	return nil
}

func (c *fakeConn) OpusChannel() chan<- []byte { return c.opus }

// echoEncoder turns every PCM frame into one packet holding a copy of it.
type echoEncoder struct {
	packets chan []byte
	once    sync.Once
	closed  bool
}

func newEchoEncoder() *echoEncoder {
	return &echoEncoder{packets: make(chan []byte, 64)}
}

func (e *echoEncoder) Write(_ context.Context, frame []byte) error {
	e.packets <- append([]byte(nil), frame...)
	return nil
}

func (e *echoEncoder) Packets() <-chan []byte { return e.packets }
func (e *echoEncoder) Err() error             { return nil }

func (e *echoEncoder) CloseInput() error {
	e.once.Do(func() { close(e.packets) })
	return nil
}

func (e *echoEncoder) Close() error {
	e.closed = true
	return e.CloseInput()
}

func TestDiscordSink_ForwardsAndDrains(t *testing.T) {
	conn := &fakeConn{opus: make(chan []byte, 64)}
	enc := newEchoEncoder()
	sink := newDiscordSink(conn, enc, DefaultSendTimeout, zap.NewNop())

	frame := []byte{1, 1}
	for i := 0; i < 3; i++ {
		frame[0] = byte(i)
		if err := sink.SendFrame(context.Background(), frame); err != nil {
			t.Fatalf("SendFrame() error = %v", err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := sink.Drain(ctx); err != nil {
		t.Fatalf("Drain() error = %v", err)
	}
	if len(conn.opus) != 3 {
		t.Fatalf("packets delivered = %d, want 3", len(conn.opus))
	}
	for i := 0; i < 3; i++ {
		if p := <-conn.opus; p[0] != byte(i) {
			t.Errorf("packet %d starts with %d", i, p[0])
		}
	}

	if err := sink.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	_ = sink.Close()

	if !enc.closed {
		t.Error("encoder not closed")
	}
	if conn.disconnected != 1 {
		t.Errorf("Disconnect() calls = %d, want 1", conn.disconnected)
	}
	if diff := cmp.Diff([]bool{true, false}, conn.speaking); diff != "" {
		t.Errorf("speaking states mismatch (-want +got):\n%s", diff)
	}
	if err := sink.SendFrame(context.Background(), frame); !errors.Is(err, ErrSinkClosed) {
		t.Errorf("SendFrame() after Close() error = %v, want %v", err, ErrSinkClosed)
	}
}

// stuckEncoder behaves like ffmpeg behind a full pipe: a write only gets
// through when the forwarder takes the packet, and killing it fails every
// pending write.
type stuckEncoder struct {
	packets chan []byte
	killed  chan struct{}
	once    sync.Once
}

func newStuckEncoder() *stuckEncoder {
	return &stuckEncoder{packets: make(chan []byte), killed: make(chan struct{})}
}

func (e *stuckEncoder) Write(ctx context.Context, frame []byte) error {
	select {
	case e.packets <- append([]byte(nil), frame...):
		return nil
	case <-e.killed:
		return errors.New("broken pipe")
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (e *stuckEncoder) Packets() <-chan []byte { return e.packets }
func (e *stuckEncoder) Err() error             { return nil }
func (e *stuckEncoder) CloseInput() error      { return nil }

func (e *stuckEncoder) Close() error {
	e.once.Do(func() { close(e.killed) })
	return nil
}

func TestDiscordSink_StalledConnectionFailsWriters(t *testing.T) {
	conn := &fakeConn{opus: make(chan []byte)}
	enc := newStuckEncoder()
	sink := newDiscordSink(conn, enc, 20*time.Millisecond, zap.NewNop())

	errc := make(chan error, 1)
	go func() {
		frame := make([]byte, 3840)
		for {
			if err := sink.SendFrame(context.Background(), frame); err != nil {
				errc <- err
				return
			}
		}
	}()

	select {
	case err := <-errc:
		if !errors.Is(err, ErrVoiceSendTimeout) {
			t.Errorf("SendFrame() error = %v, want %v", err, ErrVoiceSendTimeout)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("SendFrame() still blocked after the voice connection stalled")
	}

	closed := make(chan error, 1)
	go func() { closed <- sink.Close() }()
	select {
	case <-closed:
	case <-time.After(3 * time.Second):
		t.Fatal("Close() blocked after a stall")
	}
}

func TestDiscordSink_SendFrameHonorsContext(t *testing.T) {
	sink := newDiscordSink(&fakeConn{opus: make(chan []byte)}, newStuckEncoder(), time.Hour, zap.NewNop())
	defer func() { _ = sink.Close() }()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	// The first frame is taken by the forwarder, the second one blocks.
	frame := make([]byte, 3840)
	var err error
	for i := 0; i < 3 && err == nil; i++ {
		err = sink.SendFrame(ctx, frame)
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("SendFrame() error = %v, want %v", err, context.DeadlineExceeded)
	}
}

// writeFakeFFmpeg installs a script that ignores its arguments and runs
// body instead.
func writeFakeFFmpeg(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ffmpeg")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0o700); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestOpusEncoder_WriteCanceledWhileBlocked(t *testing.T) {
	enc, err := startOpusEncoder(writeFakeFFmpeg(t, "exec sleep 30"), 2, 64000, zap.NewNop())
	if err != nil {
		t.Fatalf("startOpusEncoder() error = %v", err)
	}
	defer func() { _ = enc.Close() }()

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(300*time.Millisecond, cancel)

	errc := make(chan error, 1)
	go func() {
		frame := make([]byte, 3840)
		for {
			if err := enc.Write(ctx, frame); err != nil {
				errc <- err
				return
			}
		}
	}()

	select {
	case err := <-errc:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Write() error = %v, want %v", err, context.Canceled)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Write() still blocked after ctx was canceled")
	}
}

func TestDemuxOpus_EmptyStream(t *testing.T) {
	called := 0
	err := demuxOpus(bytes.NewReader(nil), func([]byte) error {
		called++
		return nil
	})
	if err != nil {
		t.Errorf("demuxOpus() error = %v, want nil", err)
	}
	if called != 0 {
		t.Errorf("emit called %d times, want 0", called)
	}
}

func TestOpusEncoderArgs(t *testing.T) {
	args := opusEncoderArgs(1, 64000)
	joined := map[string]string{}
	for i := 0; i+1 < len(args); i++ {
		joined[args[i]] = args[i+1]
	}
	if joined["-ac"] != "1" || joined["-b:a"] != "64000" || joined["-acodec"] != "libopus" || joined["-f"] == "" {
		t.Errorf("opusEncoderArgs() = %v", args)
	}
	if args[len(args)-1] != "pipe:1" {
		t.Errorf("last arg = %q, want pipe:1", args[len(args)-1])
	}
}

func TestValidateSnowflake(t *testing.T) {
	tests := []struct {
		id      string
		wantErr bool
	}{
		{"175928847299117063", false},
		{"0", false},
		{"", true},
		{"general", true},
		{"<#175928847299117063>", true},
	}
	for _, tt := range tests {
		err := ValidateSnowflake(tt.id)
		if tt.wantErr != errors.Is(err, ErrInvalidSnowflake) {
			t.Errorf("ValidateSnowflake(%q) = %v, want error %v", tt.id, err, tt.wantErr)
		}
	}
}
