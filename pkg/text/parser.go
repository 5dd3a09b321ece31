// Package text cleans and classifies user supplied track locations.
package text

import (
	"errors"
	"net/url"
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// ErrEmptyLocation is returned for input that is blank after cleanup.
var ErrEmptyLocation = errors.New("empty location")

// LocationType classifies a cleaned location.
type LocationType int

const (
	LocationSearch LocationType = iota
	LocationFile
	LocationURL
	LocationURI
)

func (t LocationType) String() string {
	switch t {
	case LocationFile:
		return "file"
	case LocationURL:
		return "url"
	case LocationURI:
		return "uri"
	default:
		return "search"
	}
}

// Location is a cleaned location string with its classification.
type Location struct {
	Type  LocationType
	Value string
}

var (
	whitespaceRegex = regexp.MustCompile(`\s+`)
	uriRegex        = regexp.MustCompile(`^spotify:\w+:\w+$`)

	trackingParams = []string{
		"utm_source", "utm_medium", "utm_campaign", "utm_term", "utm_content",
		"si", "feature", "pp",
	}
)

type Parser struct{}

func NewParser() *Parser {
	return &Parser{}
}

// ParseLocation trims and normalizes raw, strips tracking parameters from
// URLs and reports what kind of location it is.
func (p *Parser) ParseLocation(raw string) (Location, error) {
	s := norm.NFC.String(strings.TrimSpace(raw))
	if s == "" {
		return Location{}, ErrEmptyLocation
	}

	switch {
	case strings.HasPrefix(s, "file://"):
		u, err := url.Parse(s)
		if err != nil || u.Path == "" {
			return Location{Type: LocationFile, Value: strings.TrimPrefix(s, "file://")}, nil
		}
		return Location{Type: LocationFile, Value: u.Path}, nil
	case strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://"):
		if cleaned := p.cleanURL(s); cleaned != "" {
			return Location{Type: LocationURL, Value: cleaned}, nil
		}
		return Location{Type: LocationSearch, Value: p.normalizeText(s)}, nil
	case uriRegex.MatchString(s):
		return Location{Type: LocationURI, Value: s}, nil
	case looksLikePath(s):
		return Location{Type: LocationFile, Value: s}, nil
	default:
		return Location{Type: LocationSearch, Value: p.normalizeText(s)}, nil
	}
}

func looksLikePath(s string) bool {
	for _, prefix := range []string{"/", "./", "../", "~/"} {
		if strings.HasPrefix(s, prefix) {
			return true
		}
	}
	return strings.Contains(s, "/") && !strings.Contains(s, " ")
}

func (p *Parser) normalizeText(text string) string {
	text = norm.NFKC.String(text)
	return strings.TrimSpace(whitespaceRegex.ReplaceAllString(text, " "))
}

func (p *Parser) cleanURL(rawURL string) string {
	rawURL = strings.TrimRight(rawURL, ".,!?;")

	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	if u.Host == "" {
		return ""
	}

	if u.RawQuery != "" {
		q := u.Query()
		for _, param := range trackingParams {
			q.Del(param)
		}
		u.RawQuery = q.Encode()
	}

	return u.String()
}
