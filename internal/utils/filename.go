package utils

import (
	"regexp"
	"strings"
)

var (
	// Characters invalid in filenames on most filesystems
	invalidFilenameChars = regexp.MustCompile(`[<>:"/\\|?*\x00-\x1f]`)
	multipleSpaces       = regexp.MustCompile(`\s+`)
)

const maxFilenameLength = 120

// SanitizeFilename turns a lorebook name into a portable file name stem.
func SanitizeFilename(name string) string {
	name = multipleSpaces.ReplaceAllString(name, " ")
	name = invalidFilenameChars.ReplaceAllString(name, "")
	name = strings.Trim(strings.TrimSpace(name), ".")

	if runes := []rune(name); len(runes) > maxFilenameLength {
		name = strings.TrimSpace(string(runes[:maxFilenameLength]))
	}

	if name == "" {
		name = "Untitled"
	}
	return name
}

// ExportFilename names the export file of a lorebook. The id keeps files of
// identically named books apart.
func ExportFilename(name, id string) string {
	stem := SanitizeFilename(name)
	if id == "" {
		return stem + ".json"
	}
	return stem + "_" + SanitizeFilename(id) + ".json"
}
