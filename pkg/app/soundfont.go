package app

import (
	"path/filepath"

	"github.com/zurustar/tunesync/pkg/fileutil"
)

// DefaultSoundFontName is the SoundFont filename searched for when none is given.
const DefaultSoundFontName = "GeneralUser-GS.sf2"

// findSoundFont searches for a SoundFont file in the following order:
// 1. The explicitly given path (returned as is, even if missing)
// 2. Current directory
// 3. Directory of the first tune
//
// Names are matched case-insensitively.
//
// Parameters:
//   - explicit: The --soundfont value (may be empty)
//   - tunePaths: The tunes to be played
//
// Returns:
//   - string: Path to the SoundFont file, or "" if not found
func findSoundFont(explicit string, tunePaths []string) string {
	if explicit != "" {
		return explicit
	}

	// 2. カレントディレクトリ
	if path, err := fileutil.FindFileCaseInsensitive(".", DefaultSoundFontName); err == nil {
		return path
	}

	// 3. 最初の曲と同じディレクトリ
	if len(tunePaths) > 0 {
		dir := filepath.Dir(tunePaths[0])
		if path, err := fileutil.FindFileCaseInsensitive(dir, DefaultSoundFontName); err == nil {
			return path
		}
	}

	return ""
}
