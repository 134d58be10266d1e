// Package youtube adapts github.com/kkdai/youtube/v2 into the raw variant model used by
// the format normalizer.
package youtube

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"strconv"
	"strings"

	ytclient "github.com/kkdai/youtube/v2"
	"go.uber.org/zap"

	"github.com/streamsave/streamsave-go/internal/models"
	"github.com/streamsave/streamsave-go/internal/validation"
	"github.com/streamsave/streamsave-go/pkg/logger"
)

// API is the subset of the kkdai client used for extraction.
type API interface {
	GetVideoContext(ctx context.Context, url string) (*ytclient.Video, error)
	GetStreamURLContext(ctx context.Context, video *ytclient.Video, format *ytclient.Format) (string, error)
}

// Extraction is the raw outcome of reading one watch page.
//
//nolint:govet // fieldalignment: Accept minor memory overhead for better readability
type Extraction struct {
	VideoID   string
	Title     string
	Author    string
	Thumbnail string
	Formats   []models.RawFormat
}

// Client extracts video metadata and stream variants.
type Client struct {
	api API
}

// NewClient creates an extraction client backed by the kkdai web client.
func NewClient(httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{api: &ytclient.Client{HTTPClient: httpClient}}
}

// NewClientWithAPI creates an extraction client over an arbitrary API implementation.
func NewClientWithAPI(api API) *Client {
	return &Client{api: api}
}

// Extract fetches the watch page for videoID and maps every format into a raw variant.
// Formats whose direct URL cannot be deciphered are skipped.
func (c *Client) Extract(ctx context.Context, videoID string) (*Extraction, error) {
	video, err := c.api.GetVideoContext(ctx, validation.WatchURL(videoID))
	if err != nil {
		return nil, fmt.Errorf("failed to fetch video %s: %w", videoID, wrapAccessError(err))
	}

	out := &Extraction{
		VideoID:   video.ID,
		Title:     video.Title,
		Author:    video.Author,
		Thumbnail: lastThumbnail(video.Thumbnails),
		Formats:   make([]models.RawFormat, 0, len(video.Formats)),
	}
	if out.VideoID == "" {
		out.VideoID = videoID
	}

	for i := range video.Formats {
		f := &video.Formats[i]
		raw := MapFormat(f)

		if raw.DirectURL == "" {
			streamURL, err := c.api.GetStreamURLContext(ctx, video, f)
			if err != nil {
				logger.Log.Debug("Skipping format without stream URL",
					zap.String("videoId", videoID),
					zap.Int("itag", f.ItagNo),
					zap.Error(err),
				)
				continue
			}
			raw.DirectURL = streamURL
		}

		out.Formats = append(out.Formats, raw)
	}

	return out, nil
}

// MapFormat converts one kkdai format into a raw variant.
func MapFormat(f *ytclient.Format) models.RawFormat {
	hasVideo := f.Width > 0 || strings.HasPrefix(f.MimeType, "video/")
	hasAudio := f.AudioChannels > 0

	raw := models.RawFormat{
		FormatKey:    strconv.Itoa(f.ItagNo),
		QualityLabel: f.QualityLabel,
		Height:       f.Height,
		Container:    containerFromMime(f.MimeType),
		DirectURL:    f.URL,
		HasAudio:     hasAudio,
		HasVideo:     hasVideo,
	}

	if hasAudio && !hasVideo {
		bitrate := f.AverageBitrate
		if bitrate == 0 {
			bitrate = f.Bitrate
		}
		raw.AudioBitrate = bitrate / 1000
	}

	if f.ContentLength > 0 {
		size := int64(f.ContentLength)
		raw.SizeBytes = &size
	}

	return raw
}

func containerFromMime(mimeType string) string {
	if mimeType == "" {
		return ""
	}
	mediaType, _, err := mime.ParseMediaType(mimeType)
	if err != nil {
		return ""
	}
	_, sub, ok := strings.Cut(mediaType, "/")
	if !ok {
		return ""
	}
	return sub
}

func lastThumbnail(thumbs ytclient.Thumbnails) string {
	if len(thumbs) == 0 {
		return ""
	}
	return thumbs[len(thumbs)-1].URL
}

func wrapAccessError(err error) error {
	switch {
	case errors.Is(err, ytclient.ErrLoginRequired),
		errors.Is(err, ytclient.ErrVideoPrivate),
		errors.Is(err, ytclient.ErrNotPlayableInEmbed):
		return fmt.Errorf("restricted access: %w", err)
	default:
		return err
	}
}
