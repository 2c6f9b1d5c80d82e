// Package library exposes a directory tree of photos as a pipeline source.
package library

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"

	"github.com/kozaktomas/samephoto/internal/constants"
	"github.com/kozaktomas/samephoto/internal/fingerprint"
)

// ErrNotFound is returned for identities that are not part of the library.
var ErrNotFound = errors.New("photo not found in library")

// File is a photo found in the library.
type File struct {
	ID      string    `json:"id"` // slash separated path relative to the root, NFC normalized
	Path    string    `json:"path"`
	Size    int64     `json:"size"`
	ModTime time.Time `json:"mod_time"`
}

// Library is a read-mostly view of the photos under a root directory, ordered
// most recently modified first.
type Library struct {
	root      string
	thumbnail int
	limit     int
	files     []File
	byID      map[string]File
}

// Option configures Open.
type Option func(*Library)

// WithLimit caps the number of photos listed. Zero means no limit.
func WithLimit(n int) Option {
	return func(l *Library) { l.limit = n }
}

// WithThumbnailSize sets the bound on the shorter side of loaded images.
// Zero or negative disables downscaling.
func WithThumbnailSize(px int) Option {
	return func(l *Library) { l.thumbnail = px }
}

// IsImage reports whether name has one of the supported image extensions.
func IsImage(name string) bool {
	_, ok := constants.ImageExtensions[strings.ToLower(filepath.Ext(name))]
	return ok
}

// Open scans root recursively. Hidden directories are skipped.
func Open(root string, opts ...Option) (*Library, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s: %w", root, err)
	}

	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("failed to open library: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("library root %s is not a directory", abs)
	}

	l := &Library{
		root:      abs,
		thumbnail: constants.DefaultThumbnailSize,
		byID:      make(map[string]File),
	}
	for _, opt := range opts {
		opt(l)
	}

	err = filepath.WalkDir(abs, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			if path == abs {
				return walkErr
			}
			// Unreadable entries below the root are ignored.
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			if path != abs && strings.HasPrefix(d.Name(), ".") {
				return fs.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() || !IsImage(d.Name()) {
			return nil
		}

		fi, err := d.Info()
		if err != nil {
			return nil
		}
		rel, err := filepath.Rel(abs, path)
		if err != nil {
			return err
		}

		id := norm.NFC.String(filepath.ToSlash(rel))
		l.files = append(l.files, File{ID: id, Path: path, Size: fi.Size(), ModTime: fi.ModTime()})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan %s: %w", abs, err)
	}

	sort.SliceStable(l.files, func(i, j int) bool {
		if !l.files[i].ModTime.Equal(l.files[j].ModTime) {
			return l.files[i].ModTime.After(l.files[j].ModTime)
		}
		return l.files[i].ID < l.files[j].ID
	})

	if l.limit > 0 && len(l.files) > l.limit {
		l.files = l.files[:l.limit]
	}
	for _, f := range l.files {
		l.byID[f.ID] = f
	}

	return l, nil
}

// Root returns the absolute library root.
func (l *Library) Root() string {
	return l.root
}

// Files returns the photos in listing order.
func (l *Library) Files() []File {
	out := make([]File, len(l.files))
	copy(out, l.files)
	return out
}

// Len returns the number of photos.
func (l *Library) Len() int {
	return len(l.files)
}

// File returns the photo with the given identity.
func (l *Library) File(id string) (File, error) {
	f, ok := l.byID[norm.NFC.String(id)]
	if !ok {
		return File{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return f, nil
}

// List returns the photo identities, most recently modified first.
func (l *Library) List(ctx context.Context) ([]string, error) {
	ids := make([]string, len(l.files))
	for i, f := range l.files {
		ids[i] = f.ID
	}
	return ids, nil
}

// Load decodes a photo and downscales it to the thumbnail bound.
func (l *Library) Load(ctx context.Context, id string) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f, err := l.File(id)
	if err != nil {
		return nil, err
	}

	file, err := os.Open(f.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", id, err)
	}
	defer file.Close()

	img, _, err := fingerprint.Decode(file)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", id, err)
	}

	return fingerprint.Downscale(img, l.thumbnail), nil
}
