package resolver

import (
	"context"
	"strings"
)

// SearchResolver treats free text as a video search and plays the first hit.
type SearchResolver struct {
	syncOnly
	searcher  Searcher
	extractor Extractor
	cache     *lookupCache[SearchHit]
}

// NewSearchResolver creates a search resolver.
func NewSearchResolver(searcher Searcher, extractor Extractor, cacheSize int) *SearchResolver {
	return &SearchResolver{
		searcher:  searcher,
		extractor: extractor,
		cache:     newLookupCache[SearchHit](cacheSize),
	}
}

func (r *SearchResolver) Kind() Kind { return KindSearch }

func (r *SearchResolver) Capabilities() Capabilities {
	return Capabilities{TrackNames: true, FreeText: true}
}

// CanResolve accepts any non-empty text that is not a URL or URI. The chain
// keeps paths away from it.
func (r *SearchResolver) CanResolve(location string) bool {
	location = strings.TrimSpace(location)
	if location == "" || isURL(location) {
		return false
	}
	return !strings.Contains(location, "://") && !strings.HasPrefix(location, "spotify:")
}

func (r *SearchResolver) TrackName(ctx context.Context, location string) (string, error) {
	hit, err := r.first(ctx, location)
	if err != nil {
		return "", err
	}
	return hit.Title, nil
}

func (r *SearchResolver) StreamURL(ctx context.Context, location string) (string, error) {
	hit, err := r.first(ctx, location)
	if err != nil {
		return "", err
	}
	media, err := r.extractor.Extract(ctx, hit.URL())
	if err != nil {
		return "", err
	}
	return media.URL, nil
}

// first returns the top hit, cached so naming and playback agree.
func (r *SearchResolver) first(ctx context.Context, query string) (SearchHit, error) {
	key := strings.ToLower(strings.TrimSpace(query))
	return r.cache.get(ctx, key, func(ctx context.Context) (SearchHit, error) {
		hits, err := r.searcher.Search(ctx, strings.TrimSpace(query))
		if err != nil {
			return SearchHit{}, err
		}
		if len(hits) == 0 {
			return SearchHit{}, ErrNoResults
		}
		return hits[0], nil
	})
}
