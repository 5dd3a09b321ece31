package resolver

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/lrstanley/go-ytdlp"
	"github.com/ppalone/ytsearch"
)

// DefaultFormat selects the best audio-only format with a muxed fallback.
const DefaultFormat = "bestaudio/best"

// Media is a directly playable stream found behind a page URL.
type Media struct {
	URL      string
	Title    string
	Duration time.Duration
}

// Extractor finds the media stream behind a hosted page.
type Extractor interface {
	Extract(ctx context.Context, pageURL string) (*Media, error)
}

// YTDLP extracts streams with yt-dlp.
type YTDLP struct {
	format string
}

// NewYTDLP creates an extractor. An empty format uses DefaultFormat.
func NewYTDLP(format string) *YTDLP {
	if format == "" {
		format = DefaultFormat
	}
	return &YTDLP{format: format}
}

func (y *YTDLP) Extract(ctx context.Context, pageURL string) (*Media, error) {
	res, err := ytdlp.New().
		Quiet().
		NoWarnings().
		NoPlaylist().
		IgnoreConfig().
		Format(y.format).
		Print("%(url)s\t%(title)s\t%(duration)s").
		Run(ctx, pageURL)
	if err != nil {
		if res != nil && strings.TrimSpace(res.Stderr) != "" {
			return nil, fmt.Errorf("yt-dlp: %w: %s", err, strings.TrimSpace(res.Stderr))
		}
		return nil, fmt.Errorf("yt-dlp: %w", err)
	}
	return parseExtractOutput(res.Stdout)
}

// parseExtractOutput reads the first "url\ttitle\tduration" line.
func parseExtractOutput(out string) (*Media, error) {
	for _, line := range strings.Split(strings.TrimSpace(out), "\n") {
		parts := strings.Split(strings.TrimSpace(line), "\t")
		if len(parts) == 0 || !isURL(parts[0]) {
			continue
		}
		m := &Media{URL: parts[0]}
		if len(parts) > 1 && parts[1] != "NA" {
			m.Title = parts[1]
		}
		if len(parts) > 2 {
			if secs, err := strconv.ParseFloat(parts[2], 64); err == nil && secs > 0 {
				m.Duration = time.Duration(secs) * time.Second
			}
		}
		return m, nil
	}
	return nil, errors.New("yt-dlp printed no stream URL")
}

// SearchHit is one video search result.
type SearchHit struct {
	VideoID  string
	Title    string
	Channel  string
	Duration time.Duration
}

// URL returns the watch page for the hit.
func (h SearchHit) URL() string {
	return "https://www.youtube.com/watch?v=" + h.VideoID
}

// Searcher runs free text video searches.
type Searcher interface {
	Search(ctx context.Context, query string) ([]SearchHit, error)
}

// YouTubeSearch queries YouTube search results without an API key.
type YouTubeSearch struct {
	limit  int
	search func(ctx context.Context, query string) ([]SearchHit, error)
}

// NewYouTubeSearch creates a searcher returning at most limit hits
// (0 means no limit).
func NewYouTubeSearch(limit int) *YouTubeSearch {
	c := ytsearch.NewClient(nil)
	return &YouTubeSearch{
		limit: limit,
		search: func(ctx context.Context, query string) ([]SearchHit, error) {
			res, err := c.Search(ctx, query)
			if err != nil {
				return nil, err
			}
			hits := make([]SearchHit, 0, len(res.Results))
			for _, r := range res.Results {
				if r.VideoID == "" {
					continue
				}
				hits = append(hits, SearchHit{
					VideoID:  r.VideoID,
					Title:    r.Title,
					Channel:  r.Channel,
					Duration: parseClockDuration(r.Duration),
				})
			}
			return hits, nil
		},
	}
}

func (s *YouTubeSearch) Search(ctx context.Context, query string) ([]SearchHit, error) {
	hits, err := s.search(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("search %q: %w", query, err)
	}
	if len(hits) == 0 {
		return nil, fmt.Errorf("search %q: %w", query, ErrNoResults)
	}
	if s.limit > 0 && len(hits) > s.limit {
		hits = hits[:s.limit]
	}
	return hits, nil
}

// parseClockDuration parses "3:20" or "1:05:20". Anything else is 0.
func parseClockDuration(s string) time.Duration {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0
	}
	var total time.Duration
	for _, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 {
			return 0
		}
		total = total*60 + time.Duration(n)
	}
	return total * time.Second
}
