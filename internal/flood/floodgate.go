// Package flood limits how often a single client may issue control requests.
package flood

import (
	"sync"
	"time"
)

const (
	// windowDuration is the sliding window requests are counted in
	windowDuration = 60 * time.Second
	// cleanupInterval is how often expired entries are swept
	cleanupInterval = 10 * time.Minute
	// idleTimeout is how long a client stays tracked after its last request
	idleTimeout = 10 * time.Minute
)

// Floodgate rate limits requests per client and scope with a sliding window.
// A limit of zero or less blocks everything.
type Floodgate struct {
	limitPerMinute int
	entries        map[string]*clientEntry // Key: "scope:client"
	now            func() time.Time
	mutex          sync.RWMutex
	stopCleanup    chan struct{}
	stopOnce       sync.Once
}

type clientEntry struct {
	timestamps []time.Time
	lastSeen   time.Time
}

// New creates a Floodgate allowing limitPerMinute requests per client and scope.
func New(limitPerMinute int) *Floodgate {
	fg := &Floodgate{
		limitPerMinute: limitPerMinute,
		entries:        make(map[string]*clientEntry),
		now:            time.Now,
		stopCleanup:    make(chan struct{}),
	}

	go fg.cleanup()

	return fg
}

// Stop ends the background cleanup. It is safe to call more than once.
func (fg *Floodgate) Stop() {
	fg.stopOnce.Do(func() { close(fg.stopCleanup) })
}

// Allow records a request from client in scope and reports whether it is
// within the limit. Blocked requests are not counted.
func (fg *Floodgate) Allow(scope, client string) bool {
	key := scope + ":" + client

	fg.mutex.Lock()
	defer fg.mutex.Unlock()

	now := fg.now()
	entry, exists := fg.entries[key]
	if !exists {
		entry = &clientEntry{}
		fg.entries[key] = entry
	}
	entry.lastSeen = now

	windowStart := now.Add(-windowDuration)
	valid := entry.timestamps[:0]
	for _, ts := range entry.timestamps {
		if ts.After(windowStart) {
			valid = append(valid, ts)
		}
	}
	entry.timestamps = valid

	if len(entry.timestamps) >= fg.limitPerMinute {
		return false
	}

	entry.timestamps = append(entry.timestamps, now)
	return true
}

// RetryAfter returns how long client has to wait in scope before a request
// would be allowed again. Zero means it is allowed now.
func (fg *Floodgate) RetryAfter(scope, client string) time.Duration {
	fg.mutex.RLock()
	defer fg.mutex.RUnlock()

	entry, exists := fg.entries[scope+":"+client]
	if !exists || len(entry.timestamps) < fg.limitPerMinute || len(entry.timestamps) == 0 {
		return 0
	}

	wait := entry.timestamps[0].Add(windowDuration).Sub(fg.now())
	if wait < 0 {
		return 0
	}
	return wait
}

func (fg *Floodgate) cleanup() {
	fg.performCleanup()

	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			fg.performCleanup()
		case <-fg.stopCleanup:
			return
		}
	}
}

func (fg *Floodgate) performCleanup() {
	fg.mutex.Lock()
	defer fg.mutex.Unlock()

	cutoff := fg.now().Add(-idleTimeout)
	for key, entry := range fg.entries {
		if entry.lastSeen.Before(cutoff) {
			delete(fg.entries, key)
		}
	}
}

// GetStats returns statistics about the floodgate
func (fg *Floodgate) GetStats() Stats {
	fg.mutex.RLock()
	defer fg.mutex.RUnlock()

	return Stats{
		ActiveClients:  len(fg.entries),
		LimitPerMinute: fg.limitPerMinute,
		WindowSeconds:  int(windowDuration.Seconds()),
	}
}

// Stats contains floodgate statistics
type Stats struct {
	ActiveClients  int `json:"active_clients"`
	LimitPerMinute int `json:"limit_per_minute"`
	WindowSeconds  int `json:"window_seconds"`
}
