// Package host adapts the host platform: native downloads, the tab badge and the
// download folder.
package host

import (
	"strings"
)

const (
	defaultFilename = "video"
	maxFilenameLen  = 200
)

var unsafeFilenameChars = strings.NewReplacer(
	`\`, "_", "/", "_", ":", "_", "*", "_", "?", "_",
	`"`, "_", "<", "_", ">", "_", "|", "_",
)

// SanitizeFilename replaces characters that are invalid in file names on common
// filesystems with underscores.
func SanitizeFilename(name string) string {
	out := strings.TrimSpace(unsafeFilenameChars.Replace(name))
	out = strings.Map(func(r rune) rune {
		if r < 0x20 || r == 0x7f {
			return -1
		}
		return r
	}, out)
	if out == "" {
		return defaultFilename
	}
	return truncate(out, maxFilenameLen)
}

// DownloadFilename builds "<sanitized title>.<container>".
func DownloadFilename(title, container string) string {
	base := SanitizeFilename(title)
	container = strings.TrimPrefix(strings.TrimSpace(container), ".")
	if container == "" {
		return base
	}
	return base + "." + SanitizeFilename(container)
}

// truncate cuts s to at most maxBytes without splitting a rune.
func truncate(s string, maxBytes int) string {
	if len(s) <= maxBytes {
		return s
	}
	cut := 0
	for i := range s {
		if i > maxBytes {
			break
		}
		cut = i
	}
	return s[:cut]
}
