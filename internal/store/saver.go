package store

import (
	"context"
	"time"

	"go.uber.org/zap"

	"jukebox/internal/playlist"
)

const saveTimeout = 5 * time.Second

// Saver writes playlist snapshots in the background. Only the most recent
// pending snapshot is kept.
type Saver struct {
	store   *PlaylistStore
	name    string
	pending chan []playlist.Record
	logger  *zap.Logger
}

func NewSaver(store *PlaylistStore, name string, logger *zap.Logger) *Saver {
	return &Saver{
		store:   store,
		name:    name,
		pending: make(chan []playlist.Record, 1),
		logger:  logger,
	}
}

// Offer queues records for saving, replacing any snapshot not yet written.
// It never blocks.
func (s *Saver) Offer(records []playlist.Record) {
	for {
		select {
		case s.pending <- records:
			return
		default:
		}
		select {
		case <-s.pending:
		default:
		}
	}
}

// Run saves offered snapshots until ctx is done. A snapshot still pending at
// that point is written before returning.
func (s *Saver) Run(ctx context.Context) error {
	for {
		select {
		case records := <-s.pending:
			s.save(records)
		case <-ctx.Done():
			select {
			case records := <-s.pending:
				s.save(records)
			default:
			}
			return nil
		}
	}
}

// Flush writes records synchronously.
func (s *Saver) Flush(records []playlist.Record) error {
	ctx, cancel := context.WithTimeout(context.Background(), saveTimeout)
	defer cancel()
	return s.store.Save(ctx, s.name, records)
}

func (s *Saver) save(records []playlist.Record) {
	if err := s.Flush(records); err != nil {
		s.logger.Error("Failed to save playlist",
			zap.String("playlist", s.name),
			zap.Int("tracks", len(records)),
			zap.Error(err))
		return
	}
	s.logger.Debug("Playlist saved",
		zap.String("playlist", s.name),
		zap.Int("tracks", len(records)))
}
