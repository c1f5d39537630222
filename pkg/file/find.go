package file

import (
	"os"
	"path/filepath"
	"time"
)

// FindOlderThan lists the direct children of dir last modified before
// cutoff. A missing dir yields no entries.
func FindOlderThan(dir string, cutoff time.Time) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var old []string
	for _, entry := range entries {
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().Before(cutoff) {
			old = append(old, filepath.Join(dir, entry.Name()))
		}
	}
	return old, nil
}

// EnsureDir creates dir and its parents when missing.
func EnsureDir(dir string) error {
	if dir == "" || dir == "." {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
