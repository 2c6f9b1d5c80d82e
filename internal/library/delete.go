package library

import (
	"fmt"
	"os"
)

// DeleteResult reports the outcome of removing photos.
type DeleteResult struct {
	Deleted    []string `json:"deleted"`
	FreedBytes int64    `json:"freed_bytes"`
	Errors     []error  `json:"-"`
}

// FreedMB returns the reclaimed space in megabytes.
func (r *DeleteResult) FreedMB() float64 {
	return float64(r.FreedBytes) / (1024 * 1024)
}

// TotalSize returns the current on-disk size of the given photos.
func (l *Library) TotalSize(ids []string) (int64, error) {
	var total int64
	for _, id := range ids {
		f, err := l.File(id)
		if err != nil {
			return 0, err
		}
		info, err := os.Stat(f.Path)
		if err != nil {
			return 0, fmt.Errorf("failed to stat %s: %w", id, err)
		}
		total += info.Size()
	}
	return total, nil
}

// Delete removes the given photos from disk. Failures are collected per photo
// and do not stop the remaining deletions. Deleted photos are dropped from the
// library listing.
func (l *Library) Delete(ids []string) *DeleteResult {
	result := &DeleteResult{}
	removed := make(map[string]bool, len(ids))

	for _, id := range ids {
		f, err := l.File(id)
		if err != nil {
			result.Errors = append(result.Errors, err)
			continue
		}

		size := f.Size
		if info, err := os.Stat(f.Path); err == nil {
			size = info.Size()
		}

		if err := os.Remove(f.Path); err != nil {
			result.Errors = append(result.Errors, fmt.Errorf("failed to delete %s: %w", id, err))
			continue
		}

		result.Deleted = append(result.Deleted, f.ID)
		result.FreedBytes += size
		removed[f.ID] = true
		delete(l.byID, f.ID)
	}

	if len(removed) > 0 {
		kept := l.files[:0]
		for _, f := range l.files {
			if !removed[f.ID] {
				kept = append(kept, f)
			}
		}
		l.files = kept
	}

	return result
}
