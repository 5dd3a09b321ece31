// Package resolver turns user supplied track references into playable stream
// locations.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Kind identifies a resolver variant.
type Kind string

const (
	KindFile       Kind = "file"
	KindYouTube    Kind = "youtube"
	KindSoundCloud Kind = "soundcloud"
	KindSpotify    Kind = "spotify"
	KindSearch     Kind = "search"
	KindLiveStream Kind = "livestream"
)

var (
	// ErrResolutionFailed is returned when no resolver accepts a location or
	// the accepting resolver cannot produce a stream.
	ErrResolutionFailed = errors.New("resolution failed")
	// ErrNamesUnsupported is returned by TrackName on resolvers without naming.
	ErrNamesUnsupported = errors.New("resolver does not provide track names")
	// ErrNoResults is returned when a search yields nothing usable.
	ErrNoResults = errors.New("no results")
)

// Capabilities describes the optional behavior of a resolver.
type Capabilities struct {
	// TrackNames is set when TrackName returns human readable names.
	TrackNames bool
	// AsyncCheck is set when Probe must be used instead of CanResolve.
	AsyncCheck bool
	// FreeText is set for resolvers that accept arbitrary text. They are
	// only offered search queries, never paths, URLs or URIs.
	FreeText bool
}

// Resolver is one strategy for mapping a location to a stream URL.
type Resolver interface {
	Kind() Kind
	Capabilities() Capabilities
	// CanResolve is the cheap synchronous predicate.
	CanResolve(location string) bool
	// Probe is the capability check for resolvers that need I/O to decide.
	Probe(ctx context.Context, location string) (bool, error)
	// StreamURL returns something the transcoder can open.
	StreamURL(ctx context.Context, location string) (string, error)
	// TrackName returns a display name or ErrNamesUnsupported.
	TrackName(ctx context.Context, location string) (string, error)
}

// Metadata is what platform lookups tell us about a track.
type Metadata struct {
	Title    string
	Artist   string
	Duration time.Duration
}

// DisplayName formats the metadata as "Artist - Title".
func (m Metadata) DisplayName() string {
	if m.Artist == "" {
		return m.Title
	}
	if m.Title == "" {
		return m.Artist
	}
	return fmt.Sprintf("%s - %s", m.Artist, m.Title)
}

// syncOnly is embedded by resolvers that decide with CanResolve alone.
type syncOnly struct{}

func (syncOnly) Probe(context.Context, string) (bool, error) {
	return false, errors.New("resolver has no async capability check")
}

// unnamed is embedded by resolvers that cannot name tracks.
type unnamed struct{}

func (unnamed) TrackName(context.Context, string) (string, error) {
	return "", ErrNamesUnsupported
}
