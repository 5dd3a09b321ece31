package store

import (
	"strings"
	"sync"

	"github.com/bits-and-blooms/bloom/v3"
	lru "github.com/hashicorp/golang-lru/v2"

	"jukebox/internal/playlist"
)

// DedupStore remembers queued locations. A Bloom filter answers most
// misses without touching the map; the LRU bounds memory on huge playlists.
type DedupStore struct {
	counts                 map[string]int
	bloom                  *bloom.BloomFilter
	lru                    *lru.Cache[string, struct{}]
	mutex                  sync.RWMutex
	maxLocations           uint
	bloomFalsePositiveRate float64
}

// NewDedupStore creates a store for up to maxLocations distinct locations.
func NewDedupStore(maxLocations uint, bloomFalsePositiveRate float64) *DedupStore {
	if maxLocations == 0 {
		maxLocations = 1
	}
	// lru.New only fails for a non-positive size.
	cache, _ := lru.New[string, struct{}](int(maxLocations))

	return &DedupStore{
		counts:                 make(map[string]int),
		bloom:                  bloom.NewWithEstimates(maxLocations, bloomFalsePositiveRate),
		lru:                    cache,
		maxLocations:           maxLocations,
		bloomFalsePositiveRate: bloomFalsePositiveRate,
	}
}

func dedupKey(location string) string {
	return strings.ToLower(strings.TrimSpace(location))
}

// Has reports whether location is queued.
func (ds *DedupStore) Has(location string) bool {
	key := dedupKey(location)

	ds.mutex.RLock()
	defer ds.mutex.RUnlock()

	if !ds.bloom.TestString(key) {
		return false
	}
	return ds.counts[key] > 0
}

// Add records one more queued copy of location.
func (ds *DedupStore) Add(location string) {
	ds.mutex.Lock()
	defer ds.mutex.Unlock()
	ds.add(dedupKey(location))
}

func (ds *DedupStore) add(key string) {
	if key == "" {
		return
	}
	ds.counts[key]++
	ds.bloom.AddString(key)
	ds.lru.Add(key, struct{}{})

	if uint(len(ds.counts)) > ds.maxLocations {
		ds.evictOldest()
	}
}

// Remove forgets one queued copy of location.
func (ds *DedupStore) Remove(location string) {
	key := dedupKey(location)

	ds.mutex.Lock()
	defer ds.mutex.Unlock()

	n, ok := ds.counts[key]
	if !ok {
		return
	}
	if n > 1 {
		ds.counts[key] = n - 1
		return
	}
	delete(ds.counts, key)
	ds.lru.Remove(key)
	// Bloom filters cannot forget; the count map settles false positives.
}

// Reset replaces the contents with the locations of records.
func (ds *DedupStore) Reset(records []playlist.Record) {
	ds.mutex.Lock()
	defer ds.mutex.Unlock()

	ds.counts = make(map[string]int)
	ds.bloom = bloom.NewWithEstimates(ds.maxLocations, ds.bloomFalsePositiveRate)
	ds.lru.Purge()

	for _, r := range records {
		ds.add(dedupKey(r.Location))
	}
}

// Size returns the number of distinct locations stored.
func (ds *DedupStore) Size() int {
	ds.mutex.RLock()
	defer ds.mutex.RUnlock()
	return len(ds.counts)
}

func (ds *DedupStore) evictOldest() {
	oldest, _, ok := ds.lru.GetOldest()
	if !ok {
		return
	}
	delete(ds.counts, oldest)
	ds.lru.Remove(oldest)
}
