package resolver

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"jukebox/pkg/text"
)

// Resolution is the outcome of resolving a location for the playlist.
type Resolution struct {
	Resolver Resolver
	Name     string
}

// Chain tries resolvers in a fixed priority order. Local files always come
// first, the remaining order is the order passed to NewChain. Locations are
// checked against the filesystem exactly as given; only the other resolvers
// see the cleaned form the parser produces.
type Chain struct {
	file      *FileResolver
	resolvers []Resolver
	parser    *text.Parser
	logger    *zap.Logger
}

// NewChain creates a chain. Hosted platform resolvers must be passed before
// generic fallbacks.
func NewChain(logger *zap.Logger, resolvers ...Resolver) *Chain {
	return &Chain{
		file:      NewFileResolver(),
		resolvers: resolvers,
		parser:    text.NewParser(),
		logger:    logger,
	}
}

// Resolvers returns the configured resolvers in priority order, file first.
func (c *Chain) Resolvers() []Resolver {
	out := make([]Resolver, 0, len(c.resolvers)+1)
	out = append(out, c.file)
	return append(out, c.resolvers...)
}

// canResolve asks r whether it accepts location, using whichever check the
// resolver declares.
func (c *Chain) canResolve(ctx context.Context, r Resolver, location string) bool {
	if !r.Capabilities().AsyncCheck {
		return r.CanResolve(location)
	}
	ok, err := r.Probe(ctx, location)
	if err != nil {
		c.logger.Debug("Resolver probe failed",
			zap.String("resolver", string(r.Kind())),
			zap.String("location", location),
			zap.Error(err))
		return false
	}
	return ok
}

// pick returns the first resolver that accepts location along with the
// string that resolver should be given. A location that looks like a path
// but names no file is rejected, and free text resolvers only see search
// queries.
func (c *Chain) pick(ctx context.Context, location string) (Resolver, string, error) {
	raw := strings.TrimSpace(location)
	if c.file.CanResolve(raw) {
		return c.file, raw, nil
	}

	loc, err := c.parser.ParseLocation(raw)
	if err != nil {
		return nil, "", err
	}
	if loc.Type == text.LocationFile {
		if loc.Value != raw && c.file.CanResolve(loc.Value) {
			return c.file, loc.Value, nil
		}
		return nil, "", fmt.Errorf("%q: no such file: %w", raw, ErrResolutionFailed)
	}

	for _, r := range c.resolvers {
		if err := ctx.Err(); err != nil {
			return nil, "", err
		}
		if r.Capabilities().FreeText && loc.Type != text.LocationSearch {
			continue
		}
		if c.canResolve(ctx, r, loc.Value) {
			return r, loc.Value, nil
		}
	}
	return nil, "", fmt.Errorf("%q: %w", raw, ErrResolutionFailed)
}

// query returns the string r is asked about for location.
func (c *Chain) query(location string, r Resolver) string {
	raw := strings.TrimSpace(location)
	if r.Kind() == KindFile && c.file.CanResolve(raw) {
		return raw
	}
	loc, err := c.parser.ParseLocation(raw)
	if err != nil {
		return raw
	}
	return loc.Value
}

// Resolve selects the resolver for location and computes its display name.
// Naming failures fall back to the location itself.
func (c *Chain) Resolve(ctx context.Context, location string) (*Resolution, error) {
	r, query, err := c.pick(ctx, location)
	if err != nil {
		return nil, err
	}

	name := strings.TrimSpace(location)
	if r.Capabilities().TrackNames {
		n, nameErr := r.TrackName(ctx, query)
		switch {
		case nameErr != nil:
			c.logger.Warn("Failed to name track",
				zap.String("resolver", string(r.Kind())),
				zap.String("location", location),
				zap.Error(nameErr))
		case n != "":
			name = n
		}
	}

	c.logger.Debug("Resolved location",
		zap.String("resolver", string(r.Kind())),
		zap.String("location", location),
		zap.String("name", name))

	return &Resolution{Resolver: r, Name: name}, nil
}

// StreamURL returns a stream for location. With a hint the hinted resolver
// is asked directly; without one the chain picks a resolver again and
// returns it so the caller can cache it.
func (c *Chain) StreamURL(ctx context.Context, location string, hint Resolver) (string, Resolver, error) {
	r := hint
	var query string
	if r == nil {
		var err error
		if r, query, err = c.pick(ctx, location); err != nil {
			return "", nil, err
		}
	} else {
		query = c.query(location, r)
	}

	streamURL, err := r.StreamURL(ctx, query)
	if err != nil {
		if errors.Is(err, ErrResolutionFailed) {
			return "", r, err
		}
		return "", r, fmt.Errorf("%s stream for %q: %w: %w", r.Kind(), location, ErrResolutionFailed, err)
	}
	if streamURL == "" {
		return "", r, fmt.Errorf("%s returned empty stream for %q: %w", r.Kind(), location, ErrResolutionFailed)
	}
	return streamURL, r, nil
}
