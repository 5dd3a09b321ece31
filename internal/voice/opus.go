package voice

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/jonas747/ogg"
	"go.uber.org/zap"
)

const (
	// DefaultOpusBitrate is the encoder target in bits per second.
	DefaultOpusBitrate = 96000
	// oggHeaderPackets is the number of OpusHead/OpusTags packets to skip.
	oggHeaderPackets = 2
	// packetBuffer is how many encoded packets may queue ahead of the sender.
	packetBuffer = 16
)

// packetEncoder turns PCM frames into Opus packets.
type packetEncoder interface {
	// Write blocks while the encoder is backed up. It returns once ctx is
	// done even if the write never completes.
	Write(ctx context.Context, frame []byte) error
	Packets() <-chan []byte
	// CloseInput signals end of PCM; Packets is closed once everything is encoded.
	CloseInput() error
	Err() error
	Close() error
}

// ffmpegOpusEncoder pipes s16le PCM through ffmpeg's libopus encoder and
// demuxes the resulting ogg stream into packets.
type ffmpegOpusEncoder struct {
	cmd     *exec.Cmd
	stdin   io.WriteCloser
	packets chan []byte
	logger  *zap.Logger

	mu  sync.Mutex
	err error

	closing   atomic.Bool
	inputOnce sync.Once
	closeOnce sync.Once
}

func opusEncoderArgs(channels, bitrate int) []string {
	return []string{
		"-hide_banner", "-loglevel", "error",
		"-f", "s16le",
		"-ar", "48000",
		"-ac", strconv.Itoa(channels),
		"-i", "pipe:0",
		"-acodec", "libopus",
		"-f", "ogg",
		"-vbr", "on",
		"-b:a", strconv.Itoa(bitrate),
		"-application", "audio",
		"-frame_duration", "20",
		"-packet_loss", "1",
		"pipe:1",
	}
}

func startOpusEncoder(binary string, channels, bitrate int, logger *zap.Logger) (*ffmpegOpusEncoder, error) {
	cmd := exec.Command(binary, opusEncoderArgs(channels, bitrate)...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, err
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, err
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start opus encoder: %w", err)
	}

	e := &ffmpegOpusEncoder{
		cmd:     cmd,
		stdin:   stdin,
		packets: make(chan []byte, packetBuffer),
		logger:  logger,
	}
	go e.pump(stdout)
	return e, nil
}

func (e *ffmpegOpusEncoder) pump(stdout io.Reader) {
	defer close(e.packets)
	err := demuxOpus(stdout, func(packet []byte) error {
		// The decoder may reuse its buffer between packets.
		e.packets <- append([]byte(nil), packet...)
		return nil
	})
	if err != nil && !e.closing.Load() {
		e.setErr(err)
		e.logger.Warn("Opus encoder output ended with error", zap.Error(err))
	}
}

// demuxOpus reads an ogg/opus stream and hands every audio packet to emit.
// A clean or truncated end of stream is not an error.
func demuxOpus(r io.Reader, emit func([]byte) error) error {
	decoder := ogg.NewPacketDecoder(ogg.NewDecoder(r))

	skip := oggHeaderPackets
	for {
		packet, _, err := decoder.Decode()
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				return nil
			}
			return err
		}
		if skip > 0 {
			skip--
			continue
		}
		if err := emit(packet); err != nil {
			return err
		}
	}
}

func (e *ffmpegOpusEncoder) setErr(err error) {
	e.mu.Lock()
	if e.err == nil {
		e.err = err
	}
	e.mu.Unlock()
}

func (e *ffmpegOpusEncoder) Err() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.err
}

// Write feeds frame to ffmpeg. When ctx ends first the encoder is killed,
// which fails the pending pipe write; frame is not touched after Write
// returns.
func (e *ffmpegOpusEncoder) Write(ctx context.Context, frame []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	done := make(chan error, 1)
	go func() {
		_, err := e.stdin.Write(frame)
		done <- err
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		_ = e.Close()
		<-done
		return ctx.Err()
	}
}

func (e *ffmpegOpusEncoder) Packets() <-chan []byte {
	return e.packets
}

func (e *ffmpegOpusEncoder) CloseInput() error {
	var err error
	e.inputOnce.Do(func() {
		err = e.stdin.Close()
	})
	return err
}

func (e *ffmpegOpusEncoder) Close() error {
	e.closeOnce.Do(func() {
		e.closing.Store(true)
		_ = e.CloseInput()
		if e.cmd.Process != nil {
			if err := e.cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
				e.logger.Debug("Failed to kill opus encoder", zap.Error(err))
			}
		}
		_ = e.cmd.Wait()
		// Unblock the pump if nobody reads the remaining packets.
		for range e.packets {
		}
	})
	return nil
}
