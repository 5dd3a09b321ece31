package resolver

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"
)

// YouTubeOEmbedURL is the YouTube oEmbed API endpoint.
const YouTubeOEmbedURL = "https://www.youtube.com/oembed"

// YouTubeResolver handles YouTube and YouTube Music links.
type YouTubeResolver struct {
	syncOnly
	client    *http.Client
	oembedURL string
	extractor Extractor
	cache     *lookupCache[Metadata]
}

// NewYouTubeResolver creates a YouTube resolver that extracts streams with
// extractor.
func NewYouTubeResolver(extractor Extractor, cacheSize int) *YouTubeResolver {
	return &YouTubeResolver{
		client:    newHTTPClient(),
		oembedURL: YouTubeOEmbedURL,
		extractor: extractor,
		cache:     newLookupCache[Metadata](cacheSize),
	}
}

func (r *YouTubeResolver) Kind() Kind { return KindYouTube }

func (r *YouTubeResolver) Capabilities() Capabilities {
	return Capabilities{TrackNames: true}
}

// CanResolve checks if the URL is a YouTube or YouTube Music video link.
func (r *YouTubeResolver) CanResolve(location string) bool {
	switch hostOf(location) {
	case "youtube.com", "www.youtube.com", "m.youtube.com", "music.youtube.com", "youtu.be":
		_, err := extractVideoID(location)
		return err == nil
	}
	return false
}

func (r *YouTubeResolver) StreamURL(ctx context.Context, location string) (string, error) {
	m, err := r.extractor.Extract(ctx, location)
	if err != nil {
		return "", err
	}
	return m.URL, nil
}

// TrackName returns "Channel - Title" from the oEmbed API.
func (r *YouTubeResolver) TrackName(ctx context.Context, location string) (string, error) {
	videoID, err := extractVideoID(location)
	if err != nil {
		return "", err
	}

	m, err := r.cache.get(ctx, videoID, func(ctx context.Context) (Metadata, error) {
		resp, err := fetchOEmbed(ctx, r.client, r.oembedURL, "https://www.youtube.com/watch?v="+videoID)
		if err != nil {
			return Metadata{}, err
		}
		return Metadata{
			Title:  strings.TrimSpace(resp.Title),
			Artist: strings.TrimSuffix(strings.TrimSpace(resp.AuthorName), " - Topic"),
		}, nil
	})
	if err != nil {
		return "", err
	}
	return m.DisplayName(), nil
}

// extractVideoID extracts the video ID from watch, short, shorts and embed URLs.
func extractVideoID(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}

	if strings.ToLower(u.Hostname()) == "youtu.be" {
		id := strings.Trim(u.Path, "/")
		if id == "" {
			return "", errors.New("no video ID in youtu.be URL")
		}
		return id, nil
	}

	if id := u.Query().Get("v"); id != "" {
		return id, nil
	}

	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(parts) == 2 && (parts[0] == "shorts" || parts[0] == "embed" || parts[0] == "live") && parts[1] != "" {
		return parts[1], nil
	}
	return "", errors.New("no video ID in YouTube URL")
}
