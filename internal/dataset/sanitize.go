package dataset

import (
	"fmt"
	"regexp"
)

// unsafePathChars matches characters that are not safe in directory names on
// any of the supported platforms.
var unsafePathChars = regexp.MustCompile(`[\\/*?:"<>|]`)

// maxFolderNameLen caps the sanitized name portion of a compound folder.
const maxFolderNameLen = 100

// FolderName derives the deterministic per-compound output directory name:
// the 1-based sequence number zero-padded to three digits, an underscore,
// and the sanitized compound name truncated to 100 characters.
func FolderName(seq int, name string) string {
	safe := unsafePathChars.ReplaceAllString(name, "_")
	if runes := []rune(safe); len(runes) > maxFolderNameLen {
		safe = string(runes[:maxFolderNameLen])
	}
	return fmt.Sprintf("%03d_%s", seq, safe)
}
