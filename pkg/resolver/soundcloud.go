package resolver

import (
	"context"
	"net/http"
	"strings"
)

// SoundCloudOEmbedURL is the SoundCloud oEmbed API endpoint.
const SoundCloudOEmbedURL = "https://soundcloud.com/oembed"

// SoundCloudResolver handles SoundCloud tracks. Profile and set pages share
// the track hostnames, so acceptance is decided by a successful oEmbed lookup.
type SoundCloudResolver struct {
	client    *http.Client
	oembedURL string
	extractor Extractor
	cache     *lookupCache[Metadata]
}

// NewSoundCloudResolver creates a SoundCloud resolver.
func NewSoundCloudResolver(extractor Extractor, cacheSize int) *SoundCloudResolver {
	return &SoundCloudResolver{
		client:    newHTTPClient(),
		oembedURL: SoundCloudOEmbedURL,
		extractor: extractor,
		cache:     newLookupCache[Metadata](cacheSize),
	}
}

func (r *SoundCloudResolver) Kind() Kind { return KindSoundCloud }

func (r *SoundCloudResolver) Capabilities() Capabilities {
	return Capabilities{TrackNames: true, AsyncCheck: true}
}

// CanResolve checks the hostname only.
func (r *SoundCloudResolver) CanResolve(location string) bool {
	switch hostOf(location) {
	case "soundcloud.com", "www.soundcloud.com", "m.soundcloud.com", "on.soundcloud.com":
		return true
	}
	return false
}

// Probe accepts SoundCloud URLs the oEmbed API knows about.
func (r *SoundCloudResolver) Probe(ctx context.Context, location string) (bool, error) {
	if !r.CanResolve(location) {
		return false, nil
	}
	if _, err := r.metadata(ctx, location); err != nil {
		return false, err
	}
	return true, nil
}

func (r *SoundCloudResolver) StreamURL(ctx context.Context, location string) (string, error) {
	m, err := r.extractor.Extract(ctx, location)
	if err != nil {
		return "", err
	}
	return m.URL, nil
}

func (r *SoundCloudResolver) TrackName(ctx context.Context, location string) (string, error) {
	m, err := r.metadata(ctx, location)
	if err != nil {
		return "", err
	}
	return m.DisplayName(), nil
}

func (r *SoundCloudResolver) metadata(ctx context.Context, location string) (Metadata, error) {
	return r.cache.get(ctx, location, func(ctx context.Context) (Metadata, error) {
		resp, err := fetchOEmbed(ctx, r.client, r.oembedURL, location)
		if err != nil {
			return Metadata{}, err
		}
		return parseSoundCloudTitle(resp), nil
	})
}

// parseSoundCloudTitle splits the usual "Track by Artist" title.
func parseSoundCloudTitle(resp *oEmbedResponse) Metadata {
	if title, artist, ok := strings.Cut(resp.Title, " by "); ok {
		return Metadata{Title: strings.TrimSpace(title), Artist: strings.TrimSpace(artist)}
	}
	return Metadata{Title: strings.TrimSpace(resp.Title), Artist: strings.TrimSpace(resp.AuthorName)}
}
