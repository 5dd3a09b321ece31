package resolver

import (
	"context"
	"os"
	"path/filepath"

	"golang.org/x/text/unicode/norm"
)

// FileResolver plays files from the local filesystem.
type FileResolver struct {
	syncOnly
}

// NewFileResolver creates a local file resolver.
func NewFileResolver() *FileResolver {
	return &FileResolver{}
}

func (r *FileResolver) Kind() Kind { return KindFile }

func (r *FileResolver) Capabilities() Capabilities {
	return Capabilities{TrackNames: true}
}

// CanResolve reports whether location is an existing regular file.
func (r *FileResolver) CanResolve(location string) bool {
	if location == "" {
		return false
	}
	info, err := os.Stat(location)
	return err == nil && info.Mode().IsRegular()
}

func (r *FileResolver) StreamURL(_ context.Context, location string) (string, error) {
	if !r.CanResolve(location) {
		return "", os.ErrNotExist
	}
	abs, err := filepath.Abs(location)
	if err != nil {
		return location, nil
	}
	return abs, nil
}

// TrackName returns the file's base name. Names are NFC normalized because
// some filesystems hand back decomposed forms.
func (r *FileResolver) TrackName(_ context.Context, location string) (string, error) {
	return norm.NFC.String(filepath.Base(location)), nil
}
