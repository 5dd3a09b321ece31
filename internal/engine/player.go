package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"jukebox/internal/playlist"
	"jukebox/internal/transcode"
	"jukebox/internal/voice"
)

const (
	DefaultReadyTimeout  = 30 * time.Second
	DefaultPauseInterval = 100 * time.Millisecond
	DefaultPollInterval  = 10 * time.Millisecond
	DefaultDrainTimeout  = 5 * time.Second

	probeTimeout = 30 * time.Second
)

// Options configures a Player. Zero values select the defaults; a negative
// ReadyTimeout waits for transcoder output forever.
type Options struct {
	Channels      int
	ReadyTimeout  time.Duration
	PauseInterval time.Duration
	PollInterval  time.Duration
	DrainTimeout  time.Duration

	Prober   Prober
	Notifier Notifier
	Recorder Recorder
	// Dedup, when set, makes Add refuse locations that are already queued.
	Dedup Deduper
	// OnChange is called with the track list after every mutation.
	OnChange func([]playlist.Record)
}

// controls are pending operator intents consumed by the streaming loop.
type controls struct {
	stopTrack     bool
	stopPlaylist  bool
	pauseTrack    bool
	prevRequested bool
	skipRequested bool
	skipTarget    time.Duration
	// jumpRequested keeps the cursor where SetPosition put it.
	jumpRequested bool
}

// Player is one playback session bound to a destination.
type Player struct {
	resolver Resolver
	start    StartFunc
	playlist *playlist.Playlist
	opts     Options
	logger   *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu          sync.Mutex
	destination voice.Destination
	state       State
	running     bool
	done        chan struct{}
	flags       controls
	current     *playlist.Track
	index       int
	offset      time.Duration

	frames atomic.Int64
	wake   chan struct{}
}

// New creates an idle player with an empty playlist.
func New(r Resolver, start StartFunc, opts Options, logger *zap.Logger) *Player {
	if opts.Channels <= 0 {
		opts.Channels = transcode.DefaultChannels
	}
	if opts.ReadyTimeout == 0 {
		opts.ReadyTimeout = DefaultReadyTimeout
	}
	if opts.PauseInterval <= 0 {
		opts.PauseInterval = DefaultPauseInterval
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	if opts.DrainTimeout <= 0 {
		opts.DrainTimeout = DefaultDrainTimeout
	}
	if opts.Notifier == nil {
		opts.Notifier = logNotifier{logger: logger}
	}
	if opts.Recorder == nil {
		opts.Recorder = nopRecorder{}
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Player{
		resolver: r,
		start:    start,
		playlist: playlist.New(),
		opts:     opts,
		logger:   logger,
		ctx:      ctx,
		cancel:   cancel,
		wake:     make(chan struct{}, 1),
	}
}

// SetDestination sets where the next Play streams to.
func (p *Player) SetDestination(d voice.Destination) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.destination = d
	if d != nil {
		p.logger.Info("Playback destination set", zap.String("destination", d.String()))
	}
}

// Play opens the destination and starts streaming from the cursor.
func (p *Player) Play(ctx context.Context) error {
	p.mu.Lock()
	switch {
	case p.destination == nil:
		p.mu.Unlock()
		return ErrNoDestination
	case p.running:
		p.mu.Unlock()
		return ErrAlreadyPlaying
	case p.playlist.Len() == 0:
		p.mu.Unlock()
		return ErrEmptyPlaylist
	}
	dest := p.destination
	p.running = true
	p.state = StateStarting
	p.flags = controls{}
	p.mu.Unlock()

	sink, err := dest.Open(ctx)
	if err != nil {
		p.mu.Lock()
		p.running = false
		p.state = StateIdle
		p.mu.Unlock()
		return fmt.Errorf("open %s: %w: %w", dest, ErrDestinationFailed, err)
	}

	done := make(chan struct{})
	p.mu.Lock()
	p.done = done
	p.mu.Unlock()

	p.logger.Info("Playback started", zap.String("destination", dest.String()))
	go p.run(sink, done)
	return nil
}

// Run blocks until ctx is done and then shuts the player down.
func (p *Player) Run(ctx context.Context) error {
	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), p.opts.DrainTimeout)
	defer cancel()
	p.Shutdown(shutdownCtx)
	return nil
}

// Shutdown stops playback and waits for the session to end. If ctx expires
// first, in-flight sends are canceled.
func (p *Player) Shutdown(ctx context.Context) {
	p.Stop()
	p.mu.Lock()
	done := p.done
	p.mu.Unlock()
	if done != nil {
		select {
		case <-done:
		case <-ctx.Done():
			p.cancel()
			<-done
		}
	}
	p.cancel()
}

// Wait blocks until the current session, if any, has ended.
func (p *Player) Wait() {
	p.mu.Lock()
	done := p.done
	p.mu.Unlock()
	if done != nil {
		<-done
	}
}

// run is the outer loop: one iteration per track until the playlist is
// stopped, emptied, or the sink fails.
func (p *Player) run(sink voice.Sink, done chan struct{}) {
	var stopErr error
	defer func() {
		p.finish(sink, stopErr)
		close(done)
	}()

	failures := 0
	for {
		if p.takeStopPlaylist() {
			return
		}
		if p.ctx.Err() != nil {
			return
		}

		track, index, err := p.playlist.Current()
		if errors.Is(err, playlist.ErrEmpty) {
			return
		}
		if err != nil {
			p.logger.Warn("Playlist cursor was invalid, restarting from the top", zap.Error(err))
			continue
		}

		outcome, err := p.playTrack(sink, track, index)
		p.opts.Recorder.TrackOutcome(outcome)
		if p.ctx.Err() != nil {
			return
		}

		switch outcome {
		case OutcomeAborted:
			stopErr = err
			return
		case OutcomeFailed:
			failures++
			p.opts.Notifier.Notify(Event{Kind: EventTrackFailed, Track: track, Index: index, Err: err})
			if failures >= max(1, p.playlist.Len()) {
				stopErr = fmt.Errorf("%w: %w", ErrNothingPlayable, err)
				return
			}
		default:
			failures = 0
		}

		p.advance()
	}
}

// advance moves the cursor after a track ended. A pending seek, position
// jump or stop leaves it in place.
func (p *Player) advance() {
	p.mu.Lock()
	prev := p.flags.prevRequested
	stay := p.flags.skipRequested || p.flags.jumpRequested || p.flags.stopPlaylist
	p.flags.prevRequested = false
	p.flags.jumpRequested = false
	p.mu.Unlock()

	switch {
	case prev:
		p.playlist.Step(-1)
	case stay:
	default:
		p.playlist.Step(1)
	}
}

func (p *Player) finish(sink voice.Sink, stopErr error) {
	p.mu.Lock()
	p.state = StateStopping
	p.mu.Unlock()

	drainCtx, cancel := context.WithTimeout(context.Background(), p.opts.DrainTimeout)
	defer cancel()
	if err := sink.Drain(drainCtx); err != nil {
		p.logger.Debug("Voice sink did not drain", zap.Error(err))
	}
	if err := sink.Close(); err != nil {
		p.logger.Debug("Failed to close voice sink", zap.Error(err))
	}

	p.mu.Lock()
	p.running = false
	p.state = StateIdle
	p.current = nil
	p.index = 0
	p.offset = 0
	p.flags = controls{}
	p.mu.Unlock()
	p.frames.Store(0)

	p.opts.Notifier.Notify(Event{Kind: EventPlaybackStopped, Err: stopErr})
}

func (p *Player) takeStopPlaylist() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.flags.stopPlaylist {
		p.flags.stopPlaylist = false
		return true
	}
	return false
}

// takeSeek consumes a pending seek.
func (p *Player) takeSeek() (*time.Duration, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.flags.skipRequested {
		return nil, false
	}
	target := p.flags.skipTarget
	p.flags.skipRequested = false
	p.flags.skipTarget = 0
	return &target, true
}

// checkpoint consumes a pending stopTrack or reports the pause state.
func (p *Player) checkpoint() (stop, paused bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.flags.stopTrack {
		p.flags.stopTrack = false
		p.flags.pauseTrack = false
		return true, false
	}
	if p.flags.pauseTrack {
		p.state = StatePaused
		return false, true
	}
	p.state = StateStreaming
	return false, false
}

func (p *Player) stopPending() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.flags.stopTrack
}

// poke wakes a sleeping streaming loop.
func (p *Player) poke() {
	select {
	case p.wake <- struct{}{}:
	default:
	}
}

func (p *Player) sleep(d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-p.wake:
	case <-p.ctx.Done():
	}
}

// playTrack is the inner loop for one track. The transcoder it starts is
// closed on every return path.
func (p *Player) playTrack(sink voice.Sink, track *playlist.Track, index int) (string, error) {
	seek, resume := p.takeSeek()

	p.mu.Lock()
	p.state = StateStarting
	p.current = track
	p.index = index
	p.offset = 0
	if seek != nil {
		p.offset = *seek
	}
	p.mu.Unlock()
	p.frames.Store(0)

	streamURL, hint, err := p.resolver.StreamURL(p.ctx, track.Location(), track.Hint())
	if err != nil {
		p.opts.Recorder.ResolutionFailed()
		return OutcomeFailed, err
	}
	if track.Hint() == nil && hint != nil {
		track.SetHint(hint)
	}
	p.probeLength(track, streamURL)

	stream := p.start(streamURL, seek)
	defer func() {
		if err := stream.Close(); err != nil {
			p.logger.Debug("Failed to close transcoder", zap.Error(err))
		}
	}()

	if !resume {
		p.opts.Notifier.Notify(Event{Kind: EventNowPlaying, Track: track, Index: index})
	}

	if stopped, err := p.awaitReady(stream); err != nil {
		return OutcomeFailed, err
	} else if stopped {
		return OutcomeSkipped, nil
	}

	buf := make([]byte, transcode.FrameSize(p.opts.Channels))
	for {
		stop, paused := p.checkpoint()
		if stop {
			return OutcomeSkipped, nil
		}
		if paused {
			p.sleep(p.opts.PauseInterval)
			continue
		}

		if err := stream.ReadFrame(buf); err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
				p.logger.Warn("Transcoder output ended", zap.String("name", track.Name()), zap.Error(err))
			}
			return OutcomeFinished, nil
		}
		if p.stopPending() {
			continue
		}
		if err := sink.SendFrame(p.ctx, buf); err != nil {
			return OutcomeAborted, fmt.Errorf("send frame: %w", err)
		}
		p.frames.Add(1)
		p.opts.Recorder.FrameSent()
	}
}

// awaitReady polls until the transcoder has output. It reports stopped when
// a control ended the track first.
func (p *Player) awaitReady(stream Stream) (bool, error) {
	var deadline time.Time
	if p.opts.ReadyTimeout > 0 {
		deadline = time.Now().Add(p.opts.ReadyTimeout)
	}
	for {
		if stream.Ready() {
			return false, nil
		}
		if err := stream.Err(); err != nil {
			return false, fmt.Errorf("transcoder: %w", err)
		}
		if p.stopPending() {
			p.checkpoint()
			return true, nil
		}
		if p.ctx.Err() != nil {
			return true, nil
		}
		if !deadline.IsZero() && time.Now().After(deadline) {
			return false, ErrStalled
		}
		p.sleep(p.opts.PollInterval)
	}
}

// probeLength starts a detached duration probe the first time a track is
// streamed.
func (p *Player) probeLength(track *playlist.Track, streamURL string) {
	if p.opts.Prober == nil {
		return
	}
	if _, known := track.Length(); known {
		return
	}
	if !track.MarkProbeStarted() {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(p.ctx, probeTimeout)
		defer cancel()
		length, err := p.opts.Prober.Probe(ctx, streamURL)
		if err != nil {
			p.logger.Debug("Duration unknown", zap.String("name", track.Name()), zap.Error(err))
			return
		}
		if track.SetLength(length) {
			p.changed()
		}
	}()
}

func (p *Player) changed() {
	p.opts.Recorder.PlaylistSize(p.playlist.Len())
	if p.opts.OnChange != nil {
		p.opts.OnChange(p.playlist.Records())
	}
}
