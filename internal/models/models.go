// Package models contains the data models and DTOs shared by the detection pipeline,
// the resolution service and the dispatch layer.
package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Platform identifies the site a detected video belongs to.
type Platform string

// Platform constants define the sites with dedicated detection rules.
const (
	PlatformGeneric     Platform = "Generic"
	PlatformYouTube     Platform = "YouTube"
	PlatformVimeo       Platform = "Vimeo"
	PlatformDailymotion Platform = "Dailymotion"
	PlatformTwitch      Platform = "Twitch"
)

// RequiresResolution reports whether candidates of this platform carry a watch-page
// URL that must be resolved server-side before it can be downloaded.
func (p Platform) RequiresResolution() bool {
	return p == PlatformYouTube
}

// Sentinel duration labels.
const (
	DurationUnknown = "Unknown"
	DurationLive    = "Live"
)

// PlaceholderThumbnail is the static thumbnail reference used when no frame or poster
// can be captured.
const PlaceholderThumbnail = "assets/placeholder-video.png"

// VideoCandidate is a detected, potentially downloadable media item.
//
//nolint:govet // fieldalignment: Accept minor memory overhead for better readability
type VideoCandidate struct {
	ID             string   `json:"id"`
	Title          string   `json:"title"`
	SourceURL      string   `json:"url"`
	DurationLabel  string   `json:"duration"`
	QualityLabel   string   `json:"quality"`
	QualityOptions []string `json:"quality_options"`
	ThumbnailRef   string   `json:"thumbnail"`
	Platform       Platform `json:"platform"`
}

// Clone returns a deep copy so callers never share the quality slice.
func (c VideoCandidate) Clone() VideoCandidate {
	out := c
	out.QualityOptions = append([]string(nil), c.QualityOptions...)
	return out
}

// RawFormat is one stream variant as reported by an extractor, before normalization.
//
//nolint:govet // fieldalignment: Accept minor memory overhead for better readability
type RawFormat struct {
	FormatKey    string `json:"formatKey"`
	QualityLabel string `json:"qualityLabel,omitempty"`
	Height       int    `json:"height,omitempty"`
	AudioBitrate int    `json:"audioBitrate,omitempty"`
	Container    string `json:"container,omitempty"`
	SizeBytes    *int64 `json:"sizeBytes,omitempty"`
	DirectURL    string `json:"directUrl"`
	HasAudio     bool   `json:"hasAudio"`
	HasVideo     bool   `json:"hasVideo"`
}

// ResolvedFormat is a concrete, directly fetchable stream variant.
//
//nolint:govet // fieldalignment: Accept minor memory overhead for better readability
type ResolvedFormat struct {
	FormatKey    string `json:"formatKey"`
	QualityLabel string `json:"qualityLabel"`
	Container    string `json:"container"`
	SizeBytes    *int64 `json:"sizeBytes,omitempty"`
	DirectURL    string `json:"directUrl"`
	HasAudio     bool   `json:"hasAudio"`
	HasVideo     bool   `json:"hasVideo"`
	Height       int    `json:"height,omitempty"`
	AudioBitrate int    `json:"audioBitrate,omitempty"`
}

// Raw converts a resolved format back into extractor shape so it can be normalized again.
func (f ResolvedFormat) Raw() RawFormat {
	return RawFormat{
		FormatKey:    f.FormatKey,
		QualityLabel: f.QualityLabel,
		Height:       f.Height,
		AudioBitrate: f.AudioBitrate,
		Container:    f.Container,
		SizeBytes:    f.SizeBytes,
		DirectURL:    f.DirectURL,
		HasAudio:     f.HasAudio,
		HasVideo:     f.HasVideo,
	}
}

// VideoInfo is the result of resolving one watch-page URL.
//
//nolint:govet // fieldalignment: Accept minor memory overhead for better readability
type VideoInfo struct {
	VideoID   string           `json:"videoId,omitempty"`
	Title     string           `json:"title"`
	Author    string           `json:"author"`
	Thumbnail string           `json:"thumbnail"`
	Formats   []ResolvedFormat `json:"formats"`
}

// Clone returns a deep copy of the resolution result.
func (v *VideoInfo) Clone() *VideoInfo {
	if v == nil {
		return nil
	}
	out := *v
	out.Formats = append([]ResolvedFormat(nil), v.Formats...)
	return &out
}

// QualityAuto asks for the best available format.
const QualityAuto = "Auto"

// FindFormat returns the format with the given quality label. An empty or Auto label
// selects the first (best) format. A label the video does not offer reports false.
func (v *VideoInfo) FindFormat(quality string) (ResolvedFormat, bool) {
	if v == nil || len(v.Formats) == 0 {
		return ResolvedFormat{}, false
	}
	quality = strings.TrimSpace(quality)
	if quality == "" || strings.EqualFold(quality, QualityAuto) {
		return v.Formats[0], true
	}
	for _, f := range v.Formats {
		if f.QualityLabel == quality {
			return f, true
		}
	}
	return ResolvedFormat{}, false
}

// VideoInfoResponse is the wire shape of GET /get-video-info.
//
//nolint:govet // fieldalignment: Accept minor memory overhead for better readability
type VideoInfoResponse struct {
	Success   bool             `json:"success"`
	Title     string           `json:"title,omitempty"`
	Author    string           `json:"author,omitempty"`
	Thumbnail string           `json:"thumbnail,omitempty"`
	Formats   []ResolvedFormat `json:"formats,omitempty"`
	Error     string           `json:"error,omitempty"`
}

// DownloadEvent is published whenever the host accepts a download.
//
//nolint:govet // fieldalignment: Accept minor memory overhead for better readability
type DownloadEvent struct {
	ID         uuid.UUID `json:"id"`
	DownloadID string    `json:"downloadId"`
	TabID      int       `json:"tabId"`
	Filename   string    `json:"filename"`
	SourceURL  string    `json:"sourceUrl"`
	Quality    string    `json:"quality"`
	Platform   Platform  `json:"platform"`
	IssuedAt   time.Time `json:"issuedAt"`
}

// ErrorResponse represents an error response.
//
//nolint:govet // fieldalignment: Accept minor memory overhead for better readability
type ErrorResponse struct {
	Timestamp time.Time `json:"timestamp"`
	Status    int       `json:"status"`
	Error     string    `json:"error"`
	Message   string    `json:"message"`
	Path      string    `json:"path"`
}
