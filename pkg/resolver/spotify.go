package resolver

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/zmb3/spotify/v2"
	spotifyauth "github.com/zmb3/spotify/v2/auth"
	"golang.org/x/oauth2/clientcredentials"

	"jukebox/pkg/fuzzy"
)

const (
	// minSpotifyMatchScore is the lowest fuzzy score accepted for a search hit.
	minSpotifyMatchScore = 0.45
	// unknownArtist is used when the catalog lists no artists.
	unknownArtist = "Unknown"
)

var (
	spotifyTrackRegex = regexp.MustCompile(`^(?:https?://)?(?:open\.)?spotify\.com/(?:intl-[a-z]+/)?track/([a-zA-Z0-9]+)`)
	spotifyURIRegex   = regexp.MustCompile(`^spotify:track:([a-zA-Z0-9]+)$`)
)

// TrackCatalog looks up catalog metadata by Spotify track ID.
type TrackCatalog interface {
	Track(ctx context.Context, id string) (Metadata, error)
}

// SpotifyCatalog reads track metadata from the Spotify Web API with the
// client credentials flow. No user login is involved.
type SpotifyCatalog struct {
	client *spotify.Client
}

// NewSpotifyCatalog creates a catalog authorized with app credentials.
func NewSpotifyCatalog(ctx context.Context, clientID, clientSecret string) *SpotifyCatalog {
	cfg := &clientcredentials.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		TokenURL:     spotifyauth.TokenURL,
	}
	return &SpotifyCatalog{client: spotify.New(cfg.Client(ctx))}
}

func (c *SpotifyCatalog) Track(ctx context.Context, id string) (Metadata, error) {
	track, err := c.client.GetTrack(ctx, spotify.ID(id))
	if err != nil {
		return Metadata{}, fmt.Errorf("spotify track %s: %w", id, err)
	}

	artists := make([]string, 0, len(track.Artists))
	for _, a := range track.Artists {
		artists = append(artists, a.Name)
	}
	artist := strings.Join(artists, ", ")
	if artist == "" {
		artist = unknownArtist
	}

	return Metadata{
		Title:    track.Name,
		Artist:   artist,
		Duration: time.Duration(track.Duration) * time.Millisecond,
	}, nil
}

// SpotifyResolver names Spotify tracks from the catalog and plays them by
// finding the closest video search hit. Spotify itself serves no audio.
type SpotifyResolver struct {
	syncOnly
	catalog    TrackCatalog
	searcher   Searcher
	extractor  Extractor
	normalizer *fuzzy.Normalizer
	cache      *lookupCache[Metadata]
}

// NewSpotifyResolver creates a Spotify resolver.
func NewSpotifyResolver(catalog TrackCatalog, searcher Searcher, extractor Extractor, cacheSize int) *SpotifyResolver {
	return &SpotifyResolver{
		catalog:    catalog,
		searcher:   searcher,
		extractor:  extractor,
		normalizer: fuzzy.NewNormalizer(),
		cache:      newLookupCache[Metadata](cacheSize),
	}
}

func (r *SpotifyResolver) Kind() Kind { return KindSpotify }

func (r *SpotifyResolver) Capabilities() Capabilities {
	return Capabilities{TrackNames: true}
}

func (r *SpotifyResolver) CanResolve(location string) bool {
	_, err := ExtractSpotifyTrackID(location)
	return err == nil
}

func (r *SpotifyResolver) TrackName(ctx context.Context, location string) (string, error) {
	m, err := r.metadata(ctx, location)
	if err != nil {
		return "", err
	}
	return m.DisplayName(), nil
}

// StreamURL searches for "artist title" and extracts the best scoring hit.
func (r *SpotifyResolver) StreamURL(ctx context.Context, location string) (string, error) {
	m, err := r.metadata(ctx, location)
	if err != nil {
		return "", err
	}

	hits, err := r.searcher.Search(ctx, m.Artist+" "+m.Title)
	if err != nil {
		return "", err
	}

	candidates := make([]fuzzy.Candidate, len(hits))
	for i, h := range hits {
		candidates[i] = fuzzy.Candidate{Title: h.Title, Channel: h.Channel, Duration: h.Duration}
	}
	best, score := r.normalizer.Best(fuzzy.Query{Title: m.Title, Artist: m.Artist, Duration: m.Duration}, candidates)
	if best < 0 || score < minSpotifyMatchScore {
		return "", fmt.Errorf("no close match for %q: %w", m.DisplayName(), ErrNoResults)
	}

	media, err := r.extractor.Extract(ctx, hits[best].URL())
	if err != nil {
		return "", err
	}
	return media.URL, nil
}

func (r *SpotifyResolver) metadata(ctx context.Context, location string) (Metadata, error) {
	id, err := ExtractSpotifyTrackID(location)
	if err != nil {
		return Metadata{}, err
	}
	return r.cache.get(ctx, id, func(ctx context.Context) (Metadata, error) {
		return r.catalog.Track(ctx, id)
	})
}

// ExtractSpotifyTrackID returns the track ID of a Spotify track URL or URI.
func ExtractSpotifyTrackID(location string) (string, error) {
	location = strings.TrimSpace(location)

	if matches := spotifyURIRegex.FindStringSubmatch(location); len(matches) > 1 {
		return matches[1], nil
	}
	if matches := spotifyTrackRegex.FindStringSubmatch(location); len(matches) > 1 {
		return matches[1], nil
	}
	return "", errors.New("no Spotify track ID in location")
}
