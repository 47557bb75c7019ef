// Package fileutil provides file system utility functions.
package fileutil

import (
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// FindFileCaseInsensitive searches for a file with the given name in the specified directory.
// The search is case-insensitive, which is useful for tune collections copied
// between file systems with different casing rules.
//
// Parameters:
//   - dir: The directory to search in
//   - filename: The filename to search for (case-insensitive)
//
// Returns:
//   - string: The actual path to the file if found
//   - error: Error if the file is not found or if there's an I/O error
//
// Example:
//
//	path, err := FindFileCaseInsensitive("/path/to/tunes", "Reel.MID")
//	// Will find "reel.mid", "REEL.MID", "Reel.mid", etc.
func FindFileCaseInsensitive(dir, filename string) (string, error) {
	searchName := strings.ToLower(filename)

	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("failed to read directory %s: %w", dir, err)
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if strings.ToLower(entry.Name()) == searchName {
			return filepath.Join(dir, entry.Name()), nil
		}
	}

	return "", fmt.Errorf("file not found: %s (searched in %s): %w", filename, dir, os.ErrNotExist)
}

// ResolvePath returns path itself when it exists, otherwise the first file in
// the same directory whose name matches case-insensitively.
//
// The returned error wraps os.ErrNotExist when nothing matches, so callers
// can keep using errors.Is(err, os.ErrNotExist).
func ResolvePath(path string) (string, error) {
	// fast path
	if _, err := os.Stat(path); err == nil {
		return path, nil
	}

	dir := filepath.Dir(path)
	base := filepath.Base(path)
	return FindFileCaseInsensitive(dir, base)
}

// FindFileCaseInsensitiveFS is FindFileCaseInsensitive over an fs.FS.
// Paths use forward slashes.
func FindFileCaseInsensitiveFS(fsys fs.FS, dir, filename string) (string, error) {
	searchName := strings.ToLower(filename)

	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return "", fmt.Errorf("failed to read directory %s: %w", dir, err)
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if strings.ToLower(entry.Name()) == searchName {
			return path.Join(dir, entry.Name()), nil
		}
	}

	return "", fmt.Errorf("file not found: %s (searched in %s): %w", filename, dir, fs.ErrNotExist)
}
