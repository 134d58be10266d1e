// Package validation recognizes supported watch-page URLs and extracts video identifiers.
package validation

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/streamsave/streamsave-go/internal/models"
)

var videoIDRegex = regexp.MustCompile(`^[a-zA-Z0-9_-]{11}$`)

var youtubeHosts = map[string]struct{}{
	"youtube.com":       {},
	"www.youtube.com":   {},
	"m.youtube.com":     {},
	"music.youtube.com": {},
	"youtu.be":          {},
}

// IsValidVideoID reports whether id looks like a YouTube video identifier.
func IsValidVideoID(id string) bool {
	return videoIDRegex.MatchString(id)
}

// IsYouTubeHost reports whether host belongs to YouTube.
func IsYouTubeHost(host string) bool {
	_, ok := youtubeHosts[strings.ToLower(stripPort(host))]
	return ok
}

// IsVideoPath reports whether u points at a video-bearing YouTube page, regardless of
// whether an id can be extracted. It accepts every shape VideoIDFromURL reads.
func IsVideoPath(u *url.URL) bool {
	if u == nil || !IsYouTubeHost(u.Host) {
		return false
	}
	if strings.EqualFold(stripPort(u.Host), "youtu.be") {
		return strings.Trim(u.Path, "/") != ""
	}
	return u.Path == "/watch" ||
		strings.HasPrefix(u.Path, "/shorts/") ||
		strings.HasPrefix(u.Path, "/embed/")
}

// VideoIDFromURL extracts the video identifier from a parsed YouTube URL.
// It returns "" when the URL carries no valid identifier.
func VideoIDFromURL(u *url.URL) string {
	if u == nil || !IsYouTubeHost(u.Host) {
		return ""
	}

	var id string
	switch {
	case strings.EqualFold(stripPort(u.Host), "youtu.be"):
		id = strings.Trim(u.Path, "/")
	case u.Path == "/watch":
		id = u.Query().Get("v")
	case strings.HasPrefix(u.Path, "/shorts/"):
		id = firstSegment(strings.TrimPrefix(u.Path, "/shorts/"))
	case strings.HasPrefix(u.Path, "/embed/"):
		id = firstSegment(strings.TrimPrefix(u.Path, "/embed/"))
	}

	if !IsValidVideoID(id) {
		return ""
	}
	return id
}

// ExtractVideoID parses rawURL and returns its YouTube video identifier.
// Unparseable or unsupported URLs yield an InvalidInput error.
func ExtractVideoID(rawURL string) (string, error) {
	raw := strings.TrimSpace(rawURL)
	if raw == "" {
		return "", models.NewError(models.ErrInvalidInput, "Invalid YouTube URL", nil)
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", models.NewError(models.ErrInvalidInput, "Invalid YouTube URL", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", models.NewError(models.ErrInvalidInput, "Invalid YouTube URL",
			fmt.Errorf("unsupported scheme %q", u.Scheme))
	}

	id := VideoIDFromURL(u)
	if id == "" {
		return "", models.NewError(models.ErrInvalidInput, "Invalid YouTube URL",
			fmt.Errorf("no video id in %s", raw))
	}
	return id, nil
}

// WatchURL returns the canonical watch-page URL for a video identifier.
func WatchURL(videoID string) string {
	return "https://www.youtube.com/watch?v=" + videoID
}

// ThumbnailURL returns the synthetic high-quality thumbnail URL for a video identifier.
func ThumbnailURL(videoID string) string {
	return "https://i.ytimg.com/vi/" + videoID + "/hqdefault.jpg"
}

func firstSegment(p string) string {
	if i := strings.IndexByte(p, '/'); i >= 0 {
		return p[:i]
	}
	return p
}

func stripPort(host string) string {
	if i := strings.LastIndexByte(host, ':'); i >= 0 && !strings.Contains(host[i:], "]") {
		return host[:i]
	}
	return host
}
