package resolver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"
)

const (
	// defaultHTTPTimeout is the timeout for metadata requests.
	defaultHTTPTimeout = 10 * time.Second
	// maxHTTPRedirects is the maximum number of redirects to follow.
	maxHTTPRedirects = 3
	// DefaultMetadataCacheSize is the number of metadata lookups kept per resolver.
	DefaultMetadataCacheSize = 512
)

// ErrTooManyRedirects is returned when too many redirects are encountered.
var ErrTooManyRedirects = errors.New("too many redirects")

func newHTTPClient() *http.Client {
	return &http.Client{
		Timeout: defaultHTTPTimeout,
		CheckRedirect: func(_ *http.Request, via []*http.Request) error {
			if len(via) >= maxHTTPRedirects {
				return ErrTooManyRedirects
			}
			return nil
		},
	}
}

// oEmbedResponse is the subset of the oEmbed document we read.
type oEmbedResponse struct {
	Title      string `json:"title"`
	AuthorName string `json:"author_name"`
}

// fetchOEmbed queries an oEmbed endpoint for targetURL.
func fetchOEmbed(ctx context.Context, client *http.Client, endpoint, targetURL string) (*oEmbedResponse, error) {
	reqURL := fmt.Sprintf("%s?url=%s&format=json", endpoint, url.QueryEscape(targetURL))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, http.NoBody)
	if err != nil {
		return nil, err
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("oEmbed API returned status %d", resp.StatusCode)
	}

	var out oEmbedResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode oEmbed response: %w", err)
	}
	return &out, nil
}

// hostOf returns the lowercased hostname of an http(s) URL, or "".
func hostOf(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return ""
	}
	return strings.ToLower(u.Hostname())
}

// isURL reports whether raw looks like an http(s) URL.
func isURL(raw string) bool {
	return hostOf(raw) != ""
}

// lookupCache memoizes successful lookups. Concurrent lookups for the same
// key share one fetch. Failures are not cached.
type lookupCache[V any] struct {
	entries *lru.Cache[string, V]
	group   singleflight.Group
}

func newLookupCache[V any](size int) *lookupCache[V] {
	if size <= 0 {
		size = DefaultMetadataCacheSize
	}
	entries, err := lru.New[string, V](size)
	if err != nil {
		// Only returned for non-positive sizes.
		panic(err)
	}
	return &lookupCache[V]{entries: entries}
}

func (c *lookupCache[V]) get(ctx context.Context, key string, fetch func(context.Context) (V, error)) (V, error) {
	if v, ok := c.entries.Get(key); ok {
		return v, nil
	}

	v, err, _ := c.group.Do(key, func() (interface{}, error) {
		v, err := fetch(ctx)
		if err != nil {
			return v, err
		}
		c.entries.Add(key, v)
		return v, nil
	})
	if err != nil {
		var zero V
		return zero, err
	}
	return v.(V), nil
}

func (c *lookupCache[V]) len() int {
	return c.entries.Len()
}
