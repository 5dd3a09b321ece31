package engine

import (
	"context"
	"encoding/binary"
	"errors"
	"io"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"

	"jukebox/internal/voice"
	"jukebox/pkg/resolver"
)

// memResolver accepts "mem:" locations. Locations containing "broken"
// resolve but never produce a stream.
type memResolver struct{}

func (memResolver) Kind() resolver.Kind { return "mem" }

func (memResolver) Capabilities() resolver.Capabilities {
	return resolver.Capabilities{TrackNames: true}
}

func (memResolver) CanResolve(location string) bool {
	return strings.HasPrefix(location, "mem:")
}

func (memResolver) Probe(context.Context, string) (bool, error) {
	return false, errors.New("sync only")
}

func (memResolver) StreamURL(_ context.Context, location string) (string, error) {
	if strings.Contains(location, "broken") {
		return "", errors.New("extractor exploded")
	}
	return "stream://" + strings.TrimPrefix(location, "mem:"), nil
}

func (memResolver) TrackName(_ context.Context, location string) (string, error) {
	return "Song " + strings.TrimPrefix(location, "mem:"), nil
}

// fakeStream emits numbered frames. The first 8 bytes of every frame hold
// the stream id in the high word and the frame sequence in the low word.
type fakeStream struct {
	id       uint32
	location string
	seek     *time.Duration
	limit    int // frames before EOF; negative is endless
	never    bool
	err      error

	seq    atomic.Int64
	closes atomic.Int32
}

func (s *fakeStream) Ready() bool { return !s.never && s.err == nil && s.closes.Load() == 0 }
func (s *fakeStream) Err() error  { return s.err }

func (s *fakeStream) ReadFrame(buf []byte) error {
	if s.closes.Load() > 0 {
		return errors.New("read after close")
	}
	n := s.seq.Load()
	if s.limit >= 0 && n >= int64(s.limit) {
		return io.EOF
	}
	binary.BigEndian.PutUint64(buf, uint64(s.id)<<32|uint64(n))
	s.seq.Add(1)
	return nil
}

func (s *fakeStream) Close() error {
	s.closes.Add(1)
	return nil
}

// starter hands out fakeStreams and records every spawn.
type starter struct {
	mu      sync.Mutex
	streams []*fakeStream
	// configure adjusts a stream before it is returned.
	configure func(*fakeStream)
}

func (st *starter) Start(location string, seek *time.Duration) Stream {
	st.mu.Lock()
	defer st.mu.Unlock()
	s := &fakeStream{id: uint32(len(st.streams) + 1), location: location, seek: seek, limit: -1}
	if st.configure != nil {
		st.configure(s)
	}
	st.streams = append(st.streams, s)
	return s
}

func (st *starter) all() []*fakeStream {
	st.mu.Lock()
	defer st.mu.Unlock()
	return append([]*fakeStream(nil), st.streams...)
}

func (st *starter) count() int {
	st.mu.Lock()
	defer st.mu.Unlock()
	return len(st.streams)
}

func (st *starter) last() *fakeStream {
	st.mu.Lock()
	defer st.mu.Unlock()
	if len(st.streams) == 0 {
		return nil
	}
	return st.streams[len(st.streams)-1]
}

// recordingSink stores the id word of every frame.
type recordingSink struct {
	mu     sync.Mutex
	frames []uint64
	drains int
	closes int
	err    error
}

func (s *recordingSink) SendFrame(ctx context.Context, frame []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	time.Sleep(time.Millisecond)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.frames = append(s.frames, binary.BigEndian.Uint64(frame))
	return nil
}

func (s *recordingSink) Drain(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.drains++
	return nil
}

func (s *recordingSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closes++
	return nil
}

func (s *recordingSink) snapshot() []uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]uint64(nil), s.frames...)
}

func (s *recordingSink) fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

type sinkDestination struct {
	sink  *recordingSink
	err   error
	opens atomic.Int32
}

func (d *sinkDestination) Open(context.Context) (voice.Sink, error) {
	d.opens.Add(1)
	if d.err != nil {
		return nil, d.err
	}
	return d.sink, nil
}

func (d *sinkDestination) String() string { return "test" }

type eventLog struct {
	mu     sync.Mutex
	events []Event
}

func (l *eventLog) Notify(e Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, e)
}

func (l *eventLog) count(kind EventKind) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, e := range l.events {
		if e.Kind == kind {
			n++
		}
	}
	return n
}

func (l *eventLog) lastOf(kind EventKind) (Event, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i := len(l.events) - 1; i >= 0; i-- {
		if l.events[i].Kind == kind {
			return l.events[i], true
		}
	}
	return Event{}, false
}

type harness struct {
	player  *Player
	starter *starter
	sink    *recordingSink
	dest    *sinkDestination
	events  *eventLog
}

func newHarness(t *testing.T, opts Options) *harness {
	t.Helper()
	h := &harness{
		starter: &starter{},
		sink:    &recordingSink{},
		events:  &eventLog{},
	}
	h.dest = &sinkDestination{sink: h.sink}

	if opts.PollInterval == 0 {
		opts.PollInterval = time.Millisecond
	}
	if opts.PauseInterval == 0 {
		opts.PauseInterval = 5 * time.Millisecond
	}
	if opts.ReadyTimeout == 0 {
		opts.ReadyTimeout = time.Second
	}
	opts.Notifier = h.events

	chain := resolver.NewChain(zap.NewNop(), memResolver{})
	h.player = New(chain, h.starter.Start, opts, zap.NewNop())
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		h.player.Shutdown(ctx)
	})
	return h
}

func (h *harness) add(t *testing.T, locations ...string) {
	t.Helper()
	for _, loc := range locations {
		if _, _, err := h.player.Add(context.Background(), loc); err != nil {
			t.Fatalf("Add(%q) error = %v", loc, err)
		}
	}
}

func (h *harness) play(t *testing.T) {
	t.Helper()
	h.player.SetDestination(h.dest)
	if err := h.player.Play(context.Background()); err != nil {
		t.Fatalf("Play() error = %v", err)
	}
}

// waitFor polls cond until it holds or the test times out.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(time.Millisecond)
	}
}

func streamOf(frame uint64) uint32 { return uint32(frame >> 32) }
func seqOf(frame uint64) uint32    { return uint32(frame) }
